// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"powerexec/cli/internal/config"
	"powerexec/cli/internal/dsn"
	"powerexec/cli/internal/execution"
	"powerexec/cli/internal/joblog"
	"powerexec/cli/internal/keychain"
	"powerexec/cli/internal/logging"
	"powerexec/cli/internal/rc"
	"powerexec/cli/internal/render"
	"powerexec/cli/internal/session"
	"powerexec/cli/internal/shell"
	"powerexec/cli/internal/terminal"
	"powerexec/cli/internal/toolkit"

	"go.uber.org/zap"
)

// EnvBecomePassword holds the password for --become-user.
const EnvBecomePassword = "POWEREXEC_BECOME_PASSWORD"

// resolveDSN returns the DSN from the environment/config, then the keychain.
func resolveDSN() (string, string, error) {
	if v := strings.TrimSpace(cfg.DB.DSN); v != "" {
		if os.Getenv(config.EnvDSN) != "" {
			return v, config.EnvDSN + " environment variable", nil
		}
		return v, "config file", nil
	}
	km, err := keychain.GetManager()
	if err != nil {
		return "", "", fmt.Errorf("no DSN configured and secure storage is unavailable: %w", err)
	}
	v, err := km.LoadDBDSN()
	if err != nil || strings.TrimSpace(v) == "" {
		return "", "", errors.New("no database connection configured, run: powerexec connect")
	}
	return v, "OS keychain", nil
}

// becomeIdentity builds the --become-user identity. The password comes from
// the environment, the keychain or an interactive prompt, in that order. No
// password at all means *NOPWD.
func becomeIdentity() (*session.Identity, error) {
	user := strings.TrimSpace(flagBecome)
	if user == "" {
		return nil, nil
	}
	if pw, ok := os.LookupEnv(EnvBecomePassword); ok {
		return &session.Identity{User: user, Password: pw}, nil
	}
	if km, err := keychain.GetManager(); err == nil {
		if pw, err := km.LoadBecomePassword(user); err == nil {
			return &session.Identity{User: user, Password: pw}, nil
		}
	}
	if terminal.IsInteractive() {
		pw, err := terminal.ReadSecret(os.Stderr, fmt.Sprintf("Password for %s (empty for *NOPWD): ", strings.ToUpper(user)))
		if err != nil {
			return nil, err
		}
		return &session.Identity{User: user, Password: pw}, nil
	}
	return &session.Identity{User: user}, nil
}

// toolkitTransport builds the configured transport. The returned closer
// releases it.
func toolkitTransport(ctx context.Context, info *dsn.DSNInfo) (session.TransportFunc, func(), error) {
	tc := cfg.Toolkit
	switch tc.Transport {
	case config.TransportHTTP:
		t := toolkit.NewHTTPTransport(tc.HTTPURL, "", info.User, info.Password)
		if tc.IPC != "" {
			t.IPC = tc.IPC
		}
		if tc.CTL != "" {
			t.CTL = tc.CTL
		}
		return func(toolkit.Querier) toolkit.Transport { return t }, func() {}, nil
	case config.TransportGRPC:
		var opts []toolkit.GRPCOption
		if tc.Insecure {
			opts = append(opts, toolkit.WithInsecure())
		}
		t, err := toolkit.DialGRPC(ctx, tc.GRPCAddr, info.User, info.Password, opts...)
		if err != nil {
			return nil, nil, err
		}
		return func(toolkit.Querier) toolkit.Transport { return t }, func() { _ = t.Close() }, nil
	}
	return nil, func() {}, nil
}

// newExecutor wires the execution layer from config and flags. The returned
// cleanup must be called when the command is done.
func newExecutor(ctx context.Context) (*execution.Executor, func(), error) {
	connStr, source, err := resolveDSN()
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("using DSN", zap.String("source", source))
	info, err := dsn.ParseInfo(connStr)
	if err != nil {
		return nil, nil, err
	}

	transport, closeTransport, err := toolkitTransport(ctx, info)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := session.NewManager(session.Config{
		DSN:       connStr,
		Driver:    cfg.DB.Driver,
		Library:   cfg.Toolkit.Library,
		Transport: transport,
		Logger:    logger,
	})
	if err != nil {
		closeTransport()
		return nil, nil, err
	}
	identity, err := becomeIdentity()
	if err != nil {
		closeTransport()
		_ = mgr.Close()
		return nil, nil, err
	}

	database := flagDatabase
	if database == "" {
		database = cfg.DB.Database
	}
	var runner *shell.Runner
	if cfg.Shell.Local {
		runner = shell.NewRunner(logger)
		if cfg.Shell.Binary != "" {
			runner.Binary = cfg.Shell.Binary
		}
		if cfg.Shell.Timeout > 0 {
			runner.Timeout = cfg.Shell.Timeout
		}
	}

	exec := execution.New(execution.Config{
		Sessions:   mgr,
		Correlator: joblog.NewCorrelator(logger),
		Shell:      runner,
		Logger:     logger,
		Database:   database,
		Identity:   identity,
		ASPGroup:   flagASPGroup,
	})
	cleanup := func() {
		_ = mgr.Close()
		closeTransport()
	}
	return exec, cleanup, nil
}

// runAndRender builds an executor, runs fn with a spinner and renders the
// result. A failed result becomes errFailed after rendering.
func runAndRender(ctx context.Context, label string, withJobLog bool, fn func(*execution.Executor) execution.Result) error {
	exec, cleanup, err := newExecutor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	stop := render.StartSpinner(label, output == render.Text && terminal.IsInteractive())
	res := fn(exec)
	stop()

	if err := render.Result(os.Stdout, res, output, withJobLog); err != nil {
		return err
	}
	if res.RC == rc.Unexpected && cfg.Toolkit.Transport != "" && cfg.Toolkit.Transport != config.TransportDB {
		fmt.Fprintln(os.Stderr, logging.FormatGatewayError(res.Stderr))
	}
	if res.Failed() {
		return errFailed{msg: res.FailureMessage()}
	}
	return nil
}
