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

var discussFormat string

var discussCmd = &cobra.Command{
	Use:   "discuss <topic>",
	Short: "Ask both backends for a quick opinion",
	Long: `Ask both backends for a short opinion on a topic in one parallel round.
No draft, review or scoring takes place.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(discussFormat); err != nil {
			return err
		}
		ctx := cmd.Context()
		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer orch.Close()

		d, err := orch.QuickDiscussion(ctx, joinArgs(args))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if discussFormat != formatText {
			return writeStructured(out, discussFormat, d)
		}

		printHeading(out, "Topic: "+d.Topic)
		for _, r := range d.Calls {
			printResult(out, "opinion", r)
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discussCmd)

	discussCmd.Flags().StringVarP(&discussFormat, "format", "f", formatText, "Output format: text, json or yaml")
}
