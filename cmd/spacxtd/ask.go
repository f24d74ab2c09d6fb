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

	"github.com/spf13/cobra"
)

var askBootstrapFlag string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Load a bootstrap scene and answer a question against it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireBootstrapFlag(askBootstrapFlag)
		if err != nil {
			return err
		}
		e, err := buildEngine(path)
		if err != nil {
			return err
		}
		ans := e.Ask(args[0])
		fmt.Println(ans.AnswerText)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askBootstrapFlag, "bootstrap", "", "bootstrap scene JSON file")
	rootCmd.AddCommand(askCmd)
}
