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

	"github.com/valpere/tandem/internal/pipeline"
)

var askSide string

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send a prompt directly to one backend",
	Long: `Send a prompt unchanged to Model A or Model B and print the raw reply.
Useful for checking that a backend is configured correctly.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		side, err := pipeline.ParseSide(askSide)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer orch.Close()

		a, b := orch.Backends()
		id := a.ID()
		if side == pipeline.SideB {
			id = b.ID()
		}

		res, err := orch.Direct(ctx, id, joinArgs(args))
		if err != nil {
			return err
		}
		if !res.Succeeded {
			return fmt.Errorf("%s: %s", res.Backend, res.Error)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askSide, "backend", "b", "a", "Backend to ask: a or b")
}
