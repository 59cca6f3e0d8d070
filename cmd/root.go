// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the powerexec command-line interface. Each task
// command composes a CL command or SQL statement, runs it through the
// execution layer and renders the result.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"powerexec/cli/internal/config"
	"powerexec/cli/internal/logging"
	"powerexec/cli/internal/render"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	showVersion  bool
	flagDatabase string
	flagBecome   string
	flagOutput   string
	flagLogLevel string
	flagVerbose  bool

	cfg    config.Config
	logger = zap.NewNop()
	output = render.Text
)

// errFailed marks a command whose result was already rendered.
type errFailed struct{ msg string }

func (e errFailed) Error() string { return e.msg }

var rootCmd = &cobra.Command{
	Use:           "powerexec",
	Short:         "Run CL commands and SQL on IBM i and collect the job log",
	Long:          `powerexec runs CL commands and SQL statements on an IBM i host through XMLSERVICE, reports a uniform return code and shows the job log the request left behind.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.LogLevel
		if cmd.Flags().Changed("log-level") {
			level = flagLogLevel
		}
		if logger, err = logging.New(level, flagVerbose); err != nil {
			return err
		}
		if output, err = render.ParseFormat(flagOutput); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("powerexec %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application and exits 1 on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var failed errFailed
		if errors.As(err, &failed) {
			fmt.Fprintln(os.Stderr, failed.msg)
		} else {
			fmt.Fprintln(os.Stderr, logging.PresentError("powerexec", err))
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDatabase, "database", "", "Relational database (IASP) to connect to, default *SYSBAS")
	pf.StringVar(&flagBecome, "become-user", "", "User profile to run the request as")
	pf.StringVarP(&flagOutput, "output", "o", "text", "Output format: text, json or yaml")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}
