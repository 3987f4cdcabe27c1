/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var delegateFormat string

var delegateCmd = &cobra.Command{
	Use:   "delegate <task>",
	Short: "Let the better-suited backend perform a task alone",
	Long: `Ask Model A which backend is better suited for the task and send the task
to that backend. If the classification call fails, Model B is used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(delegateFormat); err != nil {
			return err
		}
		ctx := cmd.Context()
		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer orch.Close()

		d, err := orch.Delegate(ctx, joinArgs(args))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if delegateFormat != formatText {
			return writeStructured(out, delegateFormat, d)
		}

		fmt.Fprintln(out, faint.Sprintf("assigned to %s", d.AssignedTo))
		printResult(out, "result", d.Result)
		if !d.Result.Succeeded {
			return fmt.Errorf("%s did not answer: %s", d.AssignedTo, d.Result.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(delegateCmd)

	delegateCmd.Flags().StringVarP(&delegateFormat, "format", "f", formatText, "Output format: text, json or yaml")
}
