// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strings"

	"powerexec/cli/internal/execution"

	"github.com/spf13/cobra"
)

var (
	flagExecuteJobLog bool
	flagExecuteParams []string
)

var sqlExecuteCmd = &cobra.Command{
	Use:   "sql-execute SQL",
	Short: "Run an SQL statement that returns no rows",
	Long: `Runs a DDL, DML or CALL statement through XMLSERVICE. Each --param binds one
? marker, in order.

Example: powerexec sql-execute "CALL QSYS2.QCMDEXC('CRTLIB LIB(TESTLIB)')"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		statement := strings.Join(args, " ")
		return runAndRender(cmd.Context(), "running statement", flagExecuteJobLog, func(e *execution.Executor) execution.Result {
			return e.RunSQLCallableOnce(cmd.Context(), statement, bindArgs(flagExecuteParams)...)
		})
	},
}

func init() {
	rootCmd.AddCommand(sqlExecuteCmd)
	sqlExecuteCmd.Flags().BoolVar(&flagExecuteJobLog, "joblog", false, "Show the job log even when the statement succeeds")
	sqlExecuteCmd.Flags().StringArrayVar(&flagExecuteParams, "param", nil, "Value for the next ? marker (repeatable)")
}
