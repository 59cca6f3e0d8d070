// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strings"

	"powerexec/cli/internal/neterrors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var flagDBInfoCheck bool

var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "Show the configured host connection",
	Long: `The dbinfo command displays the configured DSN with the password masked. With
--check it also opens a session and shows the host release and job.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		connStr, source, err := resolveDSN()
		if err != nil {
			pterm.Println("⚠️  " + err.Error())
			return nil
		}
		pterm.Println("Using DSN from " + source)
		pterm.Println()

		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Host Connection")).
			WithPadding(1).
			Println(maskPassword(connStr))
		pterm.Println()

		if flagDBInfoCheck {
			release, job, err := verifyConnection(cmd.Context(), connStr)
			if err != nil {
				return neterrors.FormatNetworkError(err, "opening a session")
			}
			pterm.Printf("IBM i %s, job %s\n", release, job)
		}
		pterm.Println("To update this connection, run: powerexec connect")
		return nil
	},
}

// maskPassword replaces the password of a user:password@ DSN with ***. The
// user name stays visible so the profile can be recognised. Passwords with
// unescaped special characters are handled by splitting on the last '@'.
func maskPassword(dsn string) string {
	atIndex := strings.LastIndex(dsn, "@")
	if atIndex == -1 {
		return dsn
	}
	beforeAt := dsn[:atIndex]
	protocolEnd := strings.Index(beforeAt, "://")
	start := 0
	if protocolEnd != -1 {
		start = protocolEnd + 3
	}
	colonIndex := strings.Index(beforeAt[start:], ":")
	if colonIndex == -1 {
		return dsn
	}
	colonIndex += start
	return dsn[:colonIndex+1] + "***" + dsn[atIndex:]
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
	dbinfoCmd.Flags().BoolVar(&flagDBInfoCheck, "check", false, "Open a session and show the host release and job")
}
