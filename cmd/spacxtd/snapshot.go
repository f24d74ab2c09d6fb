// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tumluliu/spacxt/internal/bootstrap"
)

var snapshotBootstrapFlag string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Load a bootstrap scene and print its §6.2 spatial-context export",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireBootstrapFlag(snapshotBootstrapFlag)
		if err != nil {
			return err
		}
		e, err := buildEngine(path)
		if err != nil {
			return err
		}

		data, compressed, err := bootstrap.Export(e.AssembledContext())
		if err != nil {
			return fmt.Errorf("spacxtd: exporting snapshot: %w", err)
		}
		if compressed {
			fmt.Fprintln(os.Stderr, "spacxtd: snapshot exceeded the compression threshold; printing zstd-compressed bytes")
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotBootstrapFlag, "bootstrap", "", "bootstrap scene JSON file")
	rootCmd.AddCommand(snapshotCmd)
}
