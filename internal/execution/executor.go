// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package execution runs CL commands and SQL statements on the host and
// shapes every outcome into a Result.
//
// The *Once methods own their session: they open it, run one request, read
// the job log the request left behind and close the session again. Failures
// to open the session are reported as results with the 997/998 return codes,
// so callers always get a Result. The session-scoped methods take an open
// session, return no job log and leave the session open.
package execution

import (
	"context"
	"time"

	perrors "powerexec/cli/internal/errors"
	"powerexec/cli/internal/envelope"
	"powerexec/cli/internal/joblog"
	"powerexec/cli/internal/logging"
	"powerexec/cli/internal/rc"
	"powerexec/cli/internal/session"
	"powerexec/cli/internal/shell"
	"powerexec/cli/internal/toolkit"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Opener opens sessions. *session.Manager implements it.
type Opener interface {
	Open(ctx context.Context, database string, identity *session.Identity) (*session.Session, error)
}

// Config configures an Executor.
type Config struct {
	Sessions   Opener
	Correlator *joblog.Correlator
	// Shell, when set, runs screen commands locally. Only useful when the
	// CLI itself runs on the host; otherwise they go through the toolkit.
	Shell  *shell.Runner
	Logger *zap.Logger

	// Database is the relational database for *Once requests; empty is *SYSBAS.
	Database string
	// Identity, when set, is the user profile *Once requests run as.
	Identity *session.Identity
	// ASPGroup is switched to before commands; empty is *SYSBAS.
	ASPGroup string
}

// Executor runs requests. It holds no per-request state and may be shared
// by goroutines that use distinct sessions.
type Executor struct {
	cfg    Config
	logger *zap.Logger
}

// New returns an Executor. Nil collaborators get defaults.
func New(cfg Config) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Correlator == nil {
		cfg.Correlator = joblog.NewCorrelator(cfg.Logger)
	}
	return &Executor{cfg: cfg, logger: cfg.Logger}
}

// openFailure maps a session error onto the return-code taxonomy.
func openFailure(err error) Result {
	switch perrors.KindOf(err) {
	case perrors.DependencyUnavailable:
		return failure(rc.PackagesNotFound, err)
	case perrors.ConnectionFailed, perrors.AuthorizationFailed, perrors.InvalidRequest:
		return failure(rc.DBConnectionError, err)
	}
	return failure(rc.Unexpected, err)
}

// callFailure maps a toolkit call error. There is no envelope to decode: the
// request either never reached the host job or its reply was unreadable, in
// which case the error carries the reply text.
func callFailure(err error) Result {
	switch perrors.KindOf(err) {
	case perrors.DependencyUnavailable:
		return failure(rc.PackagesNotFound, err)
	case perrors.ProtocolFault:
		return failure(rc.NoKeyError, err)
	}
	return failure(rc.Unexpected, err)
}

// once opens a session for req, runs fn in it and, when correlate is set,
// reads the job log the request left behind.
func (e *Executor) once(ctx context.Context, req Request, correlate bool, fn func(*session.Session) Result) Result {
	id := uuid.NewString()
	logger := e.logger.With(zap.String("invocation_id", id), zap.Stringer("kind", req.Kind))
	start := time.Now()

	database := req.Database
	if database == "" {
		database = e.cfg.Database
	}
	if e.cfg.Sessions == nil {
		res := failure(rc.PackagesNotFound, perrors.New(perrors.DependencyUnavailable, "no database session manager configured"))
		res.ID = id
		res.stamp(start)
		return res
	}

	sess, err := e.cfg.Sessions.Open(ctx, database, e.cfg.Identity)
	if err != nil {
		logger.Error("failed to open session", zap.String("error", logging.Mask(err.Error())))
		res := openFailure(err)
		res.ID = id
		res.stamp(start)
		return res
	}
	defer sess.Close()

	logger = logger.With(zap.String("job", sess.Job().String()))
	logger.Debug("running request", zap.String("text", logging.Mask(req.Text)))

	res := fn(sess)
	if correlate {
		entries, note := e.cfg.Correlator.Collect(ctx, sess, joblog.CurrentJob, sess.Opened())
		res.JobLog = entries
		if note != "" {
			res.Notes = append(res.Notes, note)
		}
	}
	res.Job = sess.Job().String()
	res.ID = id
	res.stamp(start)

	logger.Info("request finished", zap.Int("rc", int(res.RC)), zap.Duration("delta", res.Delta),
		zap.Int("rows", len(res.Rows)), zap.Int("job_log", len(res.JobLog)))
	return res
}

// RunCommandOnce runs a CL command in its own session. Screen commands run
// through the host's line-mode system utility and carry no job log; all
// others run through the toolkit and carry the session's job log.
func (e *Executor) RunCommandOnce(ctx context.Context, command string) Result {
	req := NewCommand(command, "")
	if req.Kind == KindScreen {
		if e.cfg.Shell != nil {
			return e.runLocalScreen(ctx, req)
		}
		return e.once(ctx, req, false, func(s *session.Session) Result {
			return e.RunScreenCommand(ctx, s, req.Text)
		})
	}
	return e.once(ctx, req, true, func(s *session.Session) Result {
		return e.RunCommand(ctx, s, req.Text)
	})
}

// RunScreenCommand runs a screen command in sess through the line-mode
// system utility on the host and returns its display output as Stdout.
func (e *Executor) RunScreenCommand(ctx context.Context, sess *session.Session, command string) Result {
	start := time.Now()
	out, err := sess.Toolkit().Call(ctx, toolkit.EncodeScreenCommand(command))
	if err != nil {
		res := callFailure(err)
		res.stamp(start)
		return res
	}
	env := out.Get(toolkit.LabelCommand)
	var res Result
	if hasError(env) {
		res = Result{RC: rc.Error, Stderr: envelope.Serialize(env)}
	} else {
		stdout, _ := env[toolkit.LabelCommand].(string)
		res = Result{RC: rc.Success, Stdout: stdout}
	}
	res.stamp(start)
	return res
}

// runLocalScreen runs a screen command through the configured local shell.
func (e *Executor) runLocalScreen(ctx context.Context, req Request) Result {
	id := uuid.NewString()
	start := time.Now()
	out, err := e.cfg.Shell.Run(ctx, req.Text)
	var res Result
	if err != nil {
		e.logger.Error("screen command could not start", zap.String("invocation_id", id), zap.Error(err))
		res = callFailure(err)
	} else {
		res = Result{RC: out.RC, Stdout: out.Stdout, Stderr: out.Stderr}
	}
	res.ID = id
	res.stamp(start)
	return res
}

// RunCommand runs a CL command through the toolkit in sess. When an ASP
// group applies, SETASPGRP runs first and its failure is the result.
func (e *Executor) RunCommand(ctx context.Context, sess *session.Session, command string) Result {
	start := time.Now()
	payload, group := toolkit.EncodeCommandWithASP(command, e.cfg.ASPGroup)
	out, err := sess.Toolkit().Call(ctx, payload)
	if err != nil {
		res := callFailure(err)
		res.stamp(start)
		return res
	}
	if group != toolkit.SYSBAS {
		if env := out.Get(toolkit.LabelSetASPGrp); hasError(env) {
			e.logger.Warn("SETASPGRP failed", zap.String("asp_group", group))
			res := fromEnvelope(envelope.Decode(env, envelope.Command))
			res.stamp(start)
			return res
		}
	}
	res := fromEnvelope(envelope.Decode(out.Get(toolkit.LabelCommand), envelope.Command))
	res.stamp(start)
	return res
}

// RunQueryOnce runs a query in its own session. A non-nil expected asserts
// the exact row count. args bind the statement's parameter markers.
func (e *Executor) RunQueryOnce(ctx context.Context, statement string, expected *int, args ...any) Result {
	req := NewSQL(statement, "", args...)
	return e.once(ctx, req, true, func(s *session.Session) Result {
		res := e.RunQuery(ctx, s, req.Text, req.Args...)
		return applyRowCount(res, expected)
	})
}

// RunQuery runs a query with fetch and free in sess. An error on the query
// step itself, or on the execute step of a bound statement, is decoded in
// place of the fetch.
func (e *Executor) RunQuery(ctx context.Context, sess *session.Session, statement string, args ...any) Result {
	start := time.Now()
	out, err := sess.Toolkit().Call(ctx, toolkit.EncodeQuery(statement, true, args...))
	if err != nil {
		res := callFailure(err)
		res.stamp(start)
		return res
	}
	env := out.Get(toolkit.LabelFetch)
	if x := out.Get(toolkit.LabelExecute); hasError(x) {
		env = x
	}
	if q := out.Get(toolkit.LabelQuery); hasError(q) {
		env = q
	}
	res := fromEnvelope(envelope.Decode(env, envelope.Query))
	res.stamp(start)
	return res
}

// RunSQLCallableOnce runs a statement without a result set in its own session.
func (e *Executor) RunSQLCallableOnce(ctx context.Context, statement string, args ...any) Result {
	req := NewSQL(statement, "", args...)
	return e.once(ctx, req, true, func(s *session.Session) Result {
		return e.RunSQLCallable(ctx, s, req.Text, req.Args...)
	})
}

// RunSQLCallable runs a statement without a result set in sess. A bound
// statement succeeds or fails on its execute step.
func (e *Executor) RunSQLCallable(ctx context.Context, sess *session.Session, statement string, args ...any) Result {
	start := time.Now()
	out, err := sess.Toolkit().Call(ctx, toolkit.EncodeCallable(statement, args...))
	if err != nil {
		res := callFailure(err)
		res.stamp(start)
		return res
	}
	env := out.Get(toolkit.LabelQuery)
	if len(args) > 0 && !hasError(env) {
		env = out.Get(toolkit.LabelExecute)
	}
	res := fromEnvelope(envelope.Decode(env, envelope.Callable))
	res.stamp(start)
	return res
}

// RunRetrieveCommandOnce runs a retrieve command in its own session.
func (e *Executor) RunRetrieveCommandOnce(ctx context.Context, command string, vars []toolkit.RetrieveVar) Result {
	req := NewCommand(command, "")
	return e.once(ctx, req, true, func(s *session.Session) Result {
		return e.RunRetrieveCommand(ctx, s, req.Text, vars)
	})
}

// RunRetrieveCommand runs a retrieve command such as RTVJOBA in sess. The
// return variables come back as a single row.
func (e *Executor) RunRetrieveCommand(ctx context.Context, sess *session.Session, command string, vars []toolkit.RetrieveVar) Result {
	start := time.Now()
	out, err := sess.Toolkit().Call(ctx, toolkit.EncodeRetrieve(command, vars))
	if err != nil {
		res := callFailure(err)
		res.stamp(start)
		return res
	}
	res := fromEnvelope(envelope.Decode(out.Get(toolkit.LabelRetrieve), envelope.Retrieve))
	res.stamp(start)
	return res
}

// QueryRowsOnce reads a query directly over the session connection in its
// own session. Columns in hexColumns are returned as hex text.
func (e *Executor) QueryRowsOnce(ctx context.Context, statement string, hexColumns []string, expected *int, args ...any) Result {
	req := NewSQL(statement, "", args...)
	return e.once(ctx, req, true, func(s *session.Session) Result {
		return applyRowCount(e.QueryRows(ctx, s, req.Text, hexColumns, req.Args...), expected)
	})
}

// QueryRows reads a query directly over the connection of sess. A cursor
// failure is the generic failure, with the driver error as Stderr.
func (e *Executor) QueryRows(ctx context.Context, sess *session.Session, statement string, hexColumns []string, args ...any) Result {
	start := time.Now()
	rows, err := sess.QueryRows(ctx, statement, hexColumns, args...)
	var res Result
	if err != nil {
		res = failure(rc.Error, err)
	} else {
		res = Result{RC: rc.Success, Rows: rows}
	}
	res.stamp(start)
	return res
}

// JobLog returns the entries the job of sess logged at or after since.
func (e *Executor) JobLog(ctx context.Context, sess *session.Session, since time.Time) ([]joblog.Entry, error) {
	return e.cfg.Correlator.Correlate(ctx, sess, joblog.CurrentJob, since)
}

// JobLogOnce reads the job log of another job in its own session.
func (e *Executor) JobLogOnce(ctx context.Context, job string) Result {
	id := uuid.NewString()
	start := time.Now()
	if err := joblog.ValidateJob(job); err != nil {
		res := failure(rc.ParamNotValid, err)
		res.ID = id
		res.stamp(start)
		return res
	}
	if e.cfg.Sessions == nil {
		res := failure(rc.PackagesNotFound, perrors.New(perrors.DependencyUnavailable, "no database session manager configured"))
		res.ID = id
		res.stamp(start)
		return res
	}
	sess, err := e.cfg.Sessions.Open(ctx, e.cfg.Database, e.cfg.Identity)
	if err != nil {
		res := openFailure(err)
		res.ID = id
		res.stamp(start)
		return res
	}
	defer sess.Close()

	entries, err := e.cfg.Correlator.Correlate(ctx, sess, job, time.Time{})
	res := Result{RC: rc.Success, JobLog: entries}
	if err != nil {
		res = failure(rc.Error, err)
	} else if len(entries) == 0 {
		res.RC = rc.NoRowFound
		res.Stderr = "job " + job + " not found or its job log is empty"
	}
	res.Job = job
	res.ID = id
	res.stamp(start)
	return res
}

func applyRowCount(res Result, expected *int) Result {
	checked := envelope.CheckRowCount(envelope.Result{RC: res.RC, Stdout: res.Stdout, Rows: res.Rows, Stderr: res.Stderr}, expected)
	res.RC, res.Stderr = checked.RC, checked.Stderr
	return res
}

func hasError(env toolkit.Envelope) bool {
	_, ok := env["error"]
	return ok
}
