// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"powerexec/cli/internal/execution"
	"powerexec/cli/internal/joblog"

	"github.com/spf13/cobra"
)

var joblogCmd = &cobra.Command{
	Use:   "joblog JOB_NUMBER JOB_USER JOB_NAME",
	Short: "Show the job log of a job",
	Long: `Reads the job log of a job, newest message first.

Example: powerexec joblog 123456 QUSER QZDASOINIT`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		job := joblog.FormatJob(args[0], args[1], args[2])
		return runAndRender(cmd.Context(), "reading job log", true, func(e *execution.Executor) execution.Result {
			return e.JobLogOnce(cmd.Context(), job)
		})
	},
}

func init() {
	rootCmd.AddCommand(joblogCmd)
}
