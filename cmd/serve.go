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
	"github.com/spf13/cobra"

	"github.com/valpere/tandem/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the collaboration tools over MCP (stdio)",
	Long: `Start an MCP server on stdin/stdout exposing:

  collaborative_task       full six-stage collaboration
  quick_discussion         one parallel round of opinions
  compare_approaches       two approaches and a comparison
  delegate_task            advisor-chosen backend performs the task
  get_collaboration_stats  statistics over this session's runs
  execute_a_direct         raw prompt to Model A
  execute_b_direct         raw prompt to Model B

Logs go to stderr or log.file; stdout carries only protocol messages.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer orch.Close()

		a, b := orch.Backends()
		logger.Info("mcp server starting", "version", version, "a", a.ID(), "b", b.ID())
		return mcpserver.New(orch, version, logger).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
