// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session manages database sessions to an IBM i host.
//
// A Session owns one dedicated connection, which on the host is one job. Every
// toolkit request and every direct query of the session runs in that job, so
// the job log read afterwards reflects exactly what the session did. When a
// become-user identity is given, the job swaps to that user profile inside
// Open, before the session is handed to the caller.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"powerexec/cli/internal/dsn"
	perrors "powerexec/cli/internal/errors"
	"powerexec/cli/internal/joblog"
	"powerexec/cli/internal/logging"
	"powerexec/cli/internal/toolkit"

	"go.uber.org/zap"
)

// DefaultJobQuery reads the identity of the connection's own job.
const DefaultJobQuery = "SELECT SUBSTR(JOB_NAME,1,6) AS JOB_NUMBER, " +
	"SUBSTR(JOB_NAME,8,POSSTR(SUBSTR(JOB_NAME,8),'/')-1) AS JOB_USER, " +
	"SUBSTR(SUBSTR(JOB_NAME,8),POSSTR(SUBSTR(JOB_NAME,8),'/')+1) AS JOB_NAME " +
	"FROM TABLE (QSYS2.ACTIVE_JOB_INFO(JOB_NAME_FILTER => '*')) AS X"

// DefaultClockQuery reads the host clock. Job-log timestamps are compared
// against it, never against the local clock.
const DefaultClockQuery = "VALUES CURRENT TIMESTAMP"

const sqliteClockQuery = "SELECT datetime('now', 'localtime')"

// Identity is a user profile to run as. An empty Password means *NOPWD.
type Identity struct {
	User     string
	Password string
}

// JobID identifies a host job.
type JobID struct {
	Number string
	User   string
	Name   string
}

// String returns NNNNNN/USER/NAME, or "*" when the job is unknown.
func (j JobID) String() string {
	if j.Number == "" {
		return "*"
	}
	return j.Number + "/" + j.User + "/" + j.Name
}

// TransportFunc builds a toolkit transport on top of a session connection.
type TransportFunc func(q toolkit.Querier) toolkit.Transport

// Config configures a Manager.
type Config struct {
	// DSN is an ibmi://, postgres:// or sqlite: connection string.
	DSN string
	// Driver overrides the database/sql driver derived from DSN.
	Driver string
	// Library holding the XMLSERVICE stored procedures.
	Library string
	// Placeholders selects bind markers for the stored procedure call.
	Placeholders toolkit.PlaceholderStyle
	// Transport carries command, SQL and retrieve requests. Defaults to the
	// stored procedure over the session connection.
	Transport TransportFunc
	// ProfileTransport carries the profile swap calls. It must reach the
	// session's own job. Defaults to the stored procedure transport.
	ProfileTransport TransportFunc
	// JobQuery overrides DefaultJobQuery.
	JobQuery string
	// ClockQuery overrides DefaultClockQuery.
	ClockQuery string
	Logger   *zap.Logger
}

// Manager opens sessions. Every session gets its own database handle with a
// single physical connection that is closed, not pooled, when the session
// closes, so no host job is ever shared by two sessions.
type Manager struct {
	cfg    Config
	driver string
	logger *zap.Logger

	mu   sync.Mutex
	open map[*sql.DB]struct{}
}

// NewManager validates the configuration and checks that the database driver
// is registered. A missing driver is a DependencyUnavailable error.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, perrors.New(perrors.InvalidRequest, "no database DSN configured")
	}
	info, err := dsn.ParseInfo(cfg.DSN)
	if err != nil {
		return nil, perrors.Wrap(perrors.InvalidRequest, "invalid database DSN", err)
	}
	driver := cfg.Driver
	if driver == "" {
		driver = info.Driver()
	}
	if !slices.Contains(sql.Drivers(), driver) {
		return nil, perrors.New(perrors.DependencyUnavailable,
			fmt.Sprintf("database driver %q is not available in this build", driver))
	}
	if cfg.Library == "" {
		cfg.Library = toolkit.DefaultLibrary
	}
	if driver == dsn.DriverPGX && cfg.Driver == "" {
		cfg.Placeholders = toolkit.Dollar
	}
	return &Manager{cfg: cfg, driver: driver, logger: cfg.Logger, open: map[*sql.DB]struct{}{}}, nil
}

// Driver returns the database/sql driver name in use.
func (m *Manager) Driver() string { return m.driver }

// connect opens a dedicated handle for one session. With no idle slots the
// physical connection is closed as soon as the session returns it.
func (m *Manager) connect(ctx context.Context, connStr string) (*sql.DB, *sql.Conn, error) {
	db, err := sql.Open(m.driver, connStr)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	m.mu.Lock()
	m.open[db] = struct{}{}
	m.mu.Unlock()
	return db, conn, nil
}

func (m *Manager) release(db *sql.DB) error {
	m.mu.Lock()
	delete(m.open, db)
	m.mu.Unlock()
	return db.Close()
}

// Close closes the handles of sessions that were never closed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for db := range m.open {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.open, db)
	}
	return firstErr
}

func connectHint(database string) string {
	if database == dsn.SYSBAS {
		return "check that the *LOCAL relational database directory entry exists"
	}
	return fmt.Sprintf("check that IASP %s exists and is varied on", database)
}

// Open acquires a dedicated connection to database (*SYSBAS when empty) and,
// when identity is set, swaps the job to that user profile. On any failure
// the connection is closed before Open returns.
func (m *Manager) Open(ctx context.Context, database string, identity *Identity) (*Session, error) {
	database = strings.ToUpper(strings.TrimSpace(database))
	if database == "" {
		database = dsn.SYSBAS
	}

	_, connStr, err := dsn.Resolve(m.cfg.DSN, database)
	if err != nil {
		return nil, perrors.Wrap(perrors.ConnectionFailed, "invalid database DSN", err)
	}
	db, conn, err := m.connect(ctx, connStr)
	if err != nil {
		m.logger.Debug("connection failed", zap.String("database", database), zap.String("dsn", logging.Mask(connStr)))
		return nil, perrors.Wrap(perrors.ConnectionFailed,
			fmt.Sprintf("failed to connect to database %s, %s", database, connectHint(database)), err)
	}

	s := &Session{
		database: database,
		db:       db,
		conn:     conn,
		release:  m.release,
		logger:   m.logger.With(zap.String("database", database)),
	}
	s.toolkit = toolkit.New(m.transport(m.cfg.Transport, s), s.logger)

	opened, err := s.hostTime(ctx, m.clockQuery())
	if err != nil {
		s.logger.Warn("host clock not available, job log lower bound uses the local clock", zap.Error(err))
		opened = time.Now()
	}
	s.opened = opened

	job, err := s.readJob(ctx, m.jobQuery())
	if err != nil {
		s.logger.Warn("job of the connection is not available", zap.Error(err))
	} else {
		s.job = job
		s.logger.Info("job of the connection to execute the task", zap.String("job", job.String()))
	}

	if identity != nil && identity.User != "" {
		profile := toolkit.New(m.transport(m.cfg.ProfileTransport, s), s.logger)
		if err := s.become(ctx, profile, *identity); err != nil {
			s.Close()
			return nil, perrors.Wrap(perrors.AuthorizationFailed,
				fmt.Sprintf("failed to become user %s to execute the task, invalid user or password or user is disabled",
					strings.ToUpper(identity.User)), err)
		}
		s.logger.Info("switched user profile", zap.String("user", s.user))
	}
	return s, nil
}

func (m *Manager) jobQuery() string {
	if m.cfg.JobQuery != "" {
		return m.cfg.JobQuery
	}
	return DefaultJobQuery
}

func (m *Manager) clockQuery() string {
	switch {
	case m.cfg.ClockQuery != "":
		return m.cfg.ClockQuery
	case m.driver == dsn.DriverSQLite:
		return sqliteClockQuery
	}
	return DefaultClockQuery
}

func (m *Manager) transport(f TransportFunc, s *Session) toolkit.Transport {
	if f != nil {
		return f(s)
	}
	t := toolkit.NewDatabaseTransport(s)
	t.Library = m.cfg.Library
	t.Placeholders = m.cfg.Placeholders
	return t
}

// Session is one dedicated connection and its host job. A Session is not
// safe for concurrent use: the host job runs one statement at a time.
type Session struct {
	database string
	db       *sql.DB
	conn     *sql.Conn
	release  func(*sql.DB) error
	job      JobID
	opened   time.Time
	toolkit  *toolkit.Toolkit
	logger   *zap.Logger

	user    string
	handle  string
	profile *toolkit.Toolkit
	closed  bool
}

// Database returns the relational database name the session is connected to.
func (s *Session) Database() string { return s.database }

// Job returns the session's job identity; it is empty when it could not be read.
func (s *Session) Job() JobID { return s.job }

// Opened returns the host time at which the session was opened.
func (s *Session) Opened() time.Time { return s.opened }

// User returns the impersonated user, or "" when none.
func (s *Session) User() string { return s.user }

// Toolkit returns the toolkit bound to the session.
func (s *Session) Toolkit() *toolkit.Toolkit { return s.toolkit }

// QueryContext runs a query on the session connection.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.closed {
		return nil, perrors.New(perrors.ConnectionFailed, "session is closed")
	}
	return s.conn.QueryContext(ctx, query, args...)
}

// ExecContext runs a statement on the session connection.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.closed {
		return nil, perrors.New(perrors.ConnectionFailed, "session is closed")
	}
	return s.conn.ExecContext(ctx, query, args...)
}

func (s *Session) readJob(ctx context.Context, query string) (JobID, error) {
	rows, err := s.QueryContext(ctx, query)
	if err != nil {
		return JobID{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return JobID{}, err
		}
		return JobID{}, fmt.Errorf("job not found")
	}
	var number, user, name sql.NullString
	if err := rows.Scan(&number, &user, &name); err != nil {
		return JobID{}, err
	}
	return JobID{
		Number: strings.TrimSpace(number.String),
		User:   strings.TrimSpace(user.String),
		Name:   strings.TrimSpace(name.String),
	}, nil
}

// hostTime reads the host's current timestamp.
func (s *Session) hostTime(ctx context.Context, query string) (time.Time, error) {
	var v any
	if err := s.conn.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return time.Time{}, err
	}
	t, err := joblog.ParseTimestamp(v)
	if err != nil {
		return time.Time{}, err
	}
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("host returned no timestamp")
	}
	return t, nil
}

// JobInfo re-reads the job identity from the host.
func (s *Session) JobInfo(ctx context.Context) (JobID, error) {
	job, err := s.readJob(ctx, DefaultJobQuery)
	if err != nil {
		return JobID{}, fmt.Errorf("read job info: %w", err)
	}
	return job, nil
}

// Release is the host operating system level.
type Release struct {
	Version int `json:"version" yaml:"version"`
	Release int `json:"release" yaml:"release"`
}

// String returns V.R, for example 7.5.
func (r Release) String() string { return fmt.Sprintf("%d.%d", r.Version, r.Release) }

// Release reads the OS version and release from SYSIBMADM.ENV_SYS_INFO.
func (s *Session) Release(ctx context.Context) (Release, error) {
	rows, err := s.QueryContext(ctx, "SELECT OS_VERSION, OS_RELEASE FROM SYSIBMADM.ENV_SYS_INFO")
	if err != nil {
		return Release{}, fmt.Errorf("read OS release: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Release{}, fmt.Errorf("read OS release: %w", err)
		}
		return Release{}, fmt.Errorf("nothing returned for OS version and release")
	}
	var version, release sql.NullString
	if err := rows.Scan(&version, &release); err != nil {
		return Release{}, fmt.Errorf("read OS release: %w", err)
	}
	var r Release
	if _, err := fmt.Sscan(strings.TrimSpace(version.String), &r.Version); err != nil {
		return Release{}, fmt.Errorf("unexpected OS version %q", version.String)
	}
	if _, err := fmt.Sscan(strings.TrimSpace(release.String), &r.Release); err != nil {
		return Release{}, fmt.Errorf("unexpected OS release %q", release.String)
	}
	return r, nil
}

// Close releases the profile handle, then closes the connection and its
// handle. It is idempotent and logs failures instead of returning them.
func (s *Session) Close() {
	if s == nil || s.closed {
		return
	}
	if s.handle != "" && s.profile != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := s.releaseHandle(ctx); err != nil {
			s.logger.Warn("failed to release profile handle", zap.String("user", s.user), zap.Error(err))
		}
		cancel()
	}
	s.closed = true
	if err := s.conn.Close(); err != nil {
		s.logger.Warn("failed to close connection", zap.Error(err))
	}
	if s.release != nil {
		if err := s.release(s.db); err != nil {
			s.logger.Warn("failed to close database handle", zap.Error(err))
		}
	}
}
