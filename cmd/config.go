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
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/tandem/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and environment
overrides have been applied. API keys are never printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.File != "" {
			fmt.Fprintf(os.Stderr, "# loaded from %s\n", cfg.File)
		} else {
			fmt.Fprintf(os.Stderr, "# no config file found, user config path: %s\n", config.UserConfigPath())
		}
		return writeStructured(cmd.OutOrStdout(), formatYAML, cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
