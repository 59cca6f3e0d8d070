// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strings"

	"powerexec/cli/internal/execution"

	"github.com/spf13/cobra"
)

var (
	flagCLJobLog bool
	flagASPGroup string
)

var clCmd = &cobra.Command{
	Use:   "cl COMMAND",
	Short: "Run a CL command",
	Long: `Runs a CL command on the host. Display and work-with commands (DSP*, WRK*, or any
command with OUTPUT(*)) run through the line-mode "system" utility and return their
listing; all other commands run through XMLSERVICE and return the job log.

Example: powerexec cl "CRTLIB LIB(TESTLIB) TEXT('test library')" --joblog`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")
		return runAndRender(cmd.Context(), "running command", flagCLJobLog, func(e *execution.Executor) execution.Result {
			return e.RunCommandOnce(cmd.Context(), command)
		})
	},
}

func init() {
	rootCmd.AddCommand(clCmd)
	clCmd.Flags().BoolVar(&flagCLJobLog, "joblog", false, "Show the job log even when the command succeeds")
	clCmd.Flags().StringVar(&flagASPGroup, "asp-group", "", "ASP group to switch to before the command, default *SYSBAS")
}
