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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var tickCount int

var tickCmd = &cobra.Command{
	Use:   "tick <bootstrap.json>",
	Short: "Load a bootstrap scene and run one or more orchestrator ticks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEngine(args[0])
		if err != nil {
			return err
		}

		var last any
		for i := 0; i < tickCount; i++ {
			res, err := e.Tick(cmd.Context())
			if err != nil {
				return fmt.Errorf("spacxtd: tick %d: %w", i, err)
			}
			last = res
		}
		out, err := json.MarshalIndent(last, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	tickCmd.Flags().IntVar(&tickCount, "count", 1, "number of ticks to run")
	rootCmd.AddCommand(tickCmd)
}
