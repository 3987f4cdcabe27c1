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

var compareFormat string

var compareCmd = &cobra.Command{
	Use:   "compare <task>",
	Short: "Compare the approaches of both backends",
	Long: `Ask each backend how it would approach a task, then have the synthesis
judge (Model A by default) contrast the two approaches and recommend one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(compareFormat); err != nil {
			return err
		}
		ctx := cmd.Context()
		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer orch.Close()

		c, err := orch.CompareApproaches(ctx, joinArgs(args))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if compareFormat != formatText {
			return writeStructured(out, compareFormat, c)
		}

		printHeading(out, "Task: "+c.Task)
		for i, r := range c.Calls {
			label := "approach"
			if i == 2 {
				label = "analysis"
			}
			printResult(out, label, r)
			fmt.Fprintln(out)
		}
		if len(c.Calls) < 3 {
			fmt.Fprintln(out, c.Analysis)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVarP(&compareFormat, "format", "f", formatText, "Output format: text, json or yaml")
}
