// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strings"

	"powerexec/cli/internal/execution"

	"github.com/spf13/cobra"
)

var (
	flagQueryJobLog  bool
	flagExpectedRows int
	flagHexColumns   []string
	flagQueryParams  []string
)

var sqlQueryCmd = &cobra.Command{
	Use:   "sql-query SQL",
	Short: "Run an SQL query and return its rows",
	Long: `Runs a SELECT statement and returns every row. With --expected-row-count the
command fails with rc 258 when the number of rows differs. With --hex-column the
query is read directly over the database connection and the named binary columns
are returned as hex text. Each --param binds one ? marker, in order.

Example: powerexec sql-query "SELECT * FROM QSYS2.LIBRARY_LIST_INFO" --expected-row-count 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		statement := strings.Join(args, " ")
		var expected *int
		if cmd.Flags().Changed("expected-row-count") {
			n := flagExpectedRows
			expected = &n
		}
		return runAndRender(cmd.Context(), "running query", flagQueryJobLog, func(e *execution.Executor) execution.Result {
			params := bindArgs(flagQueryParams)
			if len(flagHexColumns) > 0 {
				return e.QueryRowsOnce(cmd.Context(), statement, flagHexColumns, expected, params...)
			}
			return e.RunQueryOnce(cmd.Context(), statement, expected, params...)
		})
	},
}

func init() {
	rootCmd.AddCommand(sqlQueryCmd)
	sqlQueryCmd.Flags().BoolVar(&flagQueryJobLog, "joblog", false, "Show the job log even when the query succeeds")
	sqlQueryCmd.Flags().IntVar(&flagExpectedRows, "expected-row-count", 0, "Fail unless the query returns exactly this many rows")
	sqlQueryCmd.Flags().StringSliceVar(&flagHexColumns, "hex-column", nil, "Column to return as hex text (repeatable)")
	sqlQueryCmd.Flags().StringArrayVar(&flagQueryParams, "param", nil, "Value for the next ? marker (repeatable)")
}

// bindArgs turns --param values into statement arguments.
func bindArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
