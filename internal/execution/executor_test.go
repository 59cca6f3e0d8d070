package execution

import (
	"context"
	"database/sql"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	perrors "powerexec/cli/internal/errors"
	"powerexec/cli/internal/joblog"
	"powerexec/cli/internal/rc"
	"powerexec/cli/internal/session"
	"powerexec/cli/internal/shell"
	"powerexec/cli/internal/toolkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	fixtureJobQuery = "SELECT '654321' AS JOB_NUMBER, 'QUSER' AS JOB_USER, 'QZDASOINIT' AS JOB_NAME"

	fixtureDDL = `CREATE TABLE joblog_fixture (
	ORDINAL_POSITION INTEGER, MESSAGE_ID TEXT, MESSAGE_TYPE TEXT, MESSAGE_SUBTYPE TEXT,
	SEVERITY INTEGER, MESSAGE_TIMESTAMP TEXT,
	FROM_LIBRARY TEXT, FROM_PROGRAM TEXT, FROM_MODULE TEXT, FROM_PROCEDURE TEXT, FROM_INSTRUCTION TEXT,
	TO_LIBRARY TEXT, TO_PROGRAM TEXT, TO_MODULE TEXT, TO_PROCEDURE TEXT, TO_INSTRUCTION TEXT,
	FROM_USER TEXT, MESSAGE_FILE TEXT, MESSAGE_LIBRARY TEXT, MESSAGE_TEXT TEXT, MESSAGE_SECOND_LEVEL_TEXT TEXT)`
)

// host answers toolkit requests with canned replies picked by a substring of
// the request document.
type host struct {
	mu       sync.Mutex
	replies  map[string]string
	err      error
	requests []string
}

func (h *host) Call(_ context.Context, xmlIn string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, xmlIn)
	if h.err != nil {
		return "", h.err
	}
	for marker, reply := range h.replies {
		if strings.Contains(xmlIn, marker) {
			return reply, nil
		}
	}
	return "<xmlservice/>", nil
}

type fixture struct {
	exec *Executor
	host *host
	db   *sql.DB
}

func newFixture(t *testing.T, h *host) *fixture {
	t.Helper()
	return newFixtureWithClock(t, h, "")
}

// newFixtureWithClock reads the session open time with clockQuery, standing
// in for a host whose clock differs from the local one.
func newFixtureWithClock(t *testing.T, h *host, clockQuery string) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "host.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(fixtureDDL)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	m, err := session.NewManager(session.Config{
		DSN:        "sqlite:" + path,
		JobQuery:   fixtureJobQuery,
		ClockQuery: clockQuery,
		Logger:     logger,
		Transport: func(toolkit.Querier) toolkit.Transport {
			return h
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	c := joblog.NewCorrelator(logger)
	c.Source = func(string) string { return "joblog_fixture A" }

	return &fixture{
		exec: New(Config{Sessions: m, Correlator: c, Logger: logger}),
		host: h,
		db:   db,
	}
}

func (f *fixture) logMessage(t *testing.T, ordinal int, id, stamp, text string) {
	t.Helper()
	_, err := f.db.Exec(`INSERT INTO joblog_fixture (ORDINAL_POSITION, MESSAGE_ID, MESSAGE_TYPE, SEVERITY,
		MESSAGE_TIMESTAMP, MESSAGE_TEXT) VALUES (?, ?, 'DIAGNOSTIC', 30, ?, ?)`, ordinal, id, stamp, text)
	require.NoError(t, err)
}

func intPtr(n int) *int { return &n }

const (
	cmdSuccess = `<?xml version='1.0'?><xmlservice><cmd exec='cmd' var='command' error='on'>` +
		`<success>+++ success CRTLIB LIB(TESTLIB)</success></cmd></xmlservice>`
	cmdFailure = `<xmlservice><cmd exec='cmd' var='command' error='on'><error><status>false</status>` +
		`<errnoxml>1100005</errnoxml><xmlerrmsg>CPF2111</xmlerrmsg></error>` +
		`<joblog>CPF2111 Library TESTLIB already exists.</joblog></cmd></xmlservice>`
	cmdNoJobLog = `<xmlservice><cmd exec='cmd' var='command' error='on'><error><status>false</status>` +
		`<errnoxml>1100016</errnoxml></error></cmd></xmlservice>`
	queryRows = `<xmlservice><sql><query var='query' error='on'><success>+++ success</success></query>` +
		`<fetch var='fetch' block='all' desc='on'><row><data desc='NAME'>QGPL</data></row>` +
		`<row><data desc='NAME'>QTEMP</data></row></fetch><free var='free'><success>+++ success</success></free></sql></xmlservice>`
	queryNoRows = `<xmlservice><sql><query var='query' error='on'><success>+++ success</success></query>` +
		`<fetch var='fetch' block='all' desc='on'><error><xmlhint>Row not found</xmlhint></error></fetch>` +
		`<free var='free'><success>+++ success</success></free></sql></xmlservice>`
	queryFailure = `<xmlservice><sql><query var='query' error='on'><error><xmlerrmsg>SQL0204</xmlerrmsg></error>` +
		`<joblog>SQL0204 NOPE in QGPL type *FILE not found.</joblog></query><fetch var='fetch' block='all' desc='on'/>` +
		`<free var='free'><success>+++ success</success></free></sql></xmlservice>`
	callSuccess = `<xmlservice><sql><query var='query' error='on'><success>+++ success UPDATE</success></query>` +
		`<free var='free'><success>+++ success</success></free></sql></xmlservice>`
	retrieveReply = `<xmlservice><cmd exec='rexx' var='rtv_command'><success>+++ success</success>` +
		`<row><data desc='CCSID'>37</data></row><row><data desc='USRLIBL'>QGPL QTEMP</data></row></cmd></xmlservice>`
	screenReply = "<xmlservice><sh var='command' error='on'>\n                          Library List\n" +
		" QSYS        SYS\n QGPL        USR\n</sh></xmlservice>"
	screenFailure = `<xmlservice><sh var='command' error='on'><error><status>false</status>` +
		`<xmlerrmsg>CPF9801</xmlerrmsg></error></sh></xmlservice>`
	boundQueryRows = `<xmlservice><sql><prepare var='query' error='on'><success>+++ success</success></prepare>` +
		`<execute var='execute' error='on'><success>+++ success</success></execute>` +
		`<fetch var='fetch' block='all' desc='on'><row><data desc='NAME'>QGPL</data></row></fetch>` +
		`<free var='free'><success>+++ success</success></free></sql></xmlservice>`
	boundCallSuccess = `<xmlservice><sql><prepare var='query' error='on'><success>+++ success</success></prepare>` +
		`<execute var='execute' error='on'><success>+++ success EXECUTE</success></execute>` +
		`<free var='free'><success>+++ success</success></free></sql></xmlservice>`
	boundCallFailure = `<xmlservice><sql><prepare var='query' error='on'><success>+++ success</success></prepare>` +
		`<execute var='execute' error='on'><error><xmlerrmsg>SQL0302</xmlerrmsg></error>` +
		`<joblog>SQL0302 Conversion error on host variable or parameter *N.</joblog></execute>` +
		`<free var='free'><success>+++ success</success></free></sql></xmlservice>`
	aspFailure = `<xmlservice><cmd exec='cmd' var='setaspgrp' error='on'><error><status>false</status></error>` +
		`<joblog>CPD0030 ASP group IASP1 not found.</joblog></cmd>` +
		`<cmd exec='cmd' var='command' error='on'><success>+++ success</success></cmd></xmlservice>`
)

func TestRunCommandOnceSuccessCarriesJobLog(t *testing.T) {
	f := newFixture(t, &host{replies: map[string]string{"CRTLIB": cmdSuccess}})
	f.logMessage(t, 4, "CPC2102", "2999-01-01-00.00.01.000000", "Library TESTLIB created.")
	f.logMessage(t, 7, "CPI2101", "2999-01-01-00.00.00.000000", "later ordinal, earlier time")
	f.logMessage(t, 1, "CPF1124", "2000-01-01-00.00.00.000000", "before the session")

	res := f.exec.RunCommandOnce(context.Background(), "CRTLIB LIB(TESTLIB)")

	assert.Equal(t, rc.Success, res.RC)
	assert.Equal(t, "+++ success CRTLIB LIB(TESTLIB)", res.Stdout)
	assert.Empty(t, res.Stderr)
	require.Len(t, res.JobLog, 2)
	assert.Equal(t, int64(7), res.JobLog[0].OrdinalPosition)
	assert.Equal(t, "CPC2102", res.JobLog[1].MessageID)
	assert.Equal(t, "654321/QUSER/QZDASOINIT", res.Job)
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.End.Before(res.Start))
	assert.Equal(t, res.End.Sub(res.Start), res.Delta)
}

func TestRunCommandOnceBusinessError(t *testing.T) {
	f := newFixture(t, &host{replies: map[string]string{"CRTLIB": cmdFailure}})
	f.logMessage(t, 2, "CPF2111", "2999-01-01-00.00.00.000000", "Library TESTLIB already exists.")

	res := f.exec.RunCommandOnce(context.Background(), "CRTLIB LIB(TESTLIB)")

	assert.Equal(t, rc.Error, res.RC)
	assert.Equal(t, "CPF2111 Library TESTLIB already exists.", res.Stderr)
	assert.Empty(t, res.Stdout)
	require.Len(t, res.JobLog, 1)
	assert.Equal(t, "non-zero return code:255", res.FailureMessage())
}

func TestRunCommandOnceProtocolFault(t *testing.T) {
	f := newFixture(t, &host{replies: map[string]string{"CRTLIB": cmdNoJobLog}})

	res := f.exec.RunCommandOnce(context.Background(), "CRTLIB LIB(TESTLIB)")

	assert.Equal(t, rc.NoKeyJobLog, res.RC)
	assert.True(t, strings.HasPrefix(res.Stderr, "toolkit result does not have key 'joblog', the output is "))
	assert.NotNil(t, res.JobLog)
}

func TestRunCommandOnceScreenRunsOnHost(t *testing.T) {
	h := &host{replies: map[string]string{"dsplibl": screenReply}}
	f := newFixture(t, h)
	f.logMessage(t, 3, "CPF0000", "2999-01-01-00.00.00.000000", "unrelated message")

	res := f.exec.RunCommandOnce(context.Background(), "  dsplibl output(*) ")

	assert.Equal(t, rc.Success, res.RC)
	assert.Contains(t, res.Stdout, "Library List")
	assert.Contains(t, res.Stdout, "QGPL        USR")
	assert.Empty(t, res.JobLog)
	assert.NotNil(t, res.JobLog)
	assert.Equal(t, "654321/QUSER/QZDASOINIT", res.Job)
	require.Len(t, h.requests, 1)
	assert.Contains(t, h.requests[0], "<sh var='command' error='on'>/QOpenSys/usr/bin/system &#34;dsplibl&#34;</sh>")
}

func TestRunCommandOnceScreenFailure(t *testing.T) {
	f := newFixture(t, &host{replies: map[string]string{"WRKACTJOB": screenFailure}})

	res := f.exec.RunCommandOnce(context.Background(), "WRKACTJOB")

	assert.Equal(t, rc.Error, res.RC)
	assert.Contains(t, res.Stderr, "CPF9801")
	assert.Empty(t, res.Stdout)
}

func TestRunCommandOnceScreenUsesLocalShellWhenConfigured(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	h := &host{}
	f := newFixture(t, h)
	f.exec.cfg.Shell = &shell.Runner{Binary: "echo", Logger: zaptest.NewLogger(t)}

	res := f.exec.RunCommandOnce(context.Background(), "  dsplibl output(*) ")

	assert.Equal(t, rc.Success, res.RC)
	assert.Equal(t, "dsplibl output(*)", strings.TrimSpace(res.Stdout))
	assert.Empty(t, res.JobLog)
	assert.NotNil(t, res.JobLog)
	assert.Empty(t, h.requests, "screen commands must not reach the toolkit")
}

func TestRunCommandOnceScreenLocalShellMissing(t *testing.T) {
	f := newFixture(t, &host{})
	f.exec.cfg.Shell = &shell.Runner{Binary: "powerexec-no-such-binary"}

	res := f.exec.RunCommandOnce(context.Background(), "WRKACTJOB")

	assert.Equal(t, rc.PackagesNotFound, res.RC)
	assert.Contains(t, res.Stderr, "not found")
}

type failingOpener struct{ err error }

func (o failingOpener) Open(context.Context, string, *session.Identity) (*session.Session, error) {
	return nil, o.err
}

func TestOnceSessionFailuresBecomeResults(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want rc.Code
	}{
		{"driver missing", perrors.New(perrors.DependencyUnavailable, "database driver \"x\" is not available"), rc.PackagesNotFound},
		{"connect failed", perrors.New(perrors.ConnectionFailed, "failed to connect to database IASP1"), rc.DBConnectionError},
		{"become failed", perrors.New(perrors.AuthorizationFailed, "failed to become user BOB"), rc.DBConnectionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(Config{Sessions: failingOpener{err: tt.err}, Logger: zaptest.NewLogger(t)})

			for _, res := range []Result{
				e.RunCommandOnce(context.Background(), "CRTLIB LIB(X)"),
				e.RunQueryOnce(context.Background(), "SELECT 1 FROM SYSIBM.SYSDUMMY1", nil),
				e.RunSQLCallableOnce(context.Background(), "CALL QSYS2.QCMDEXC('X')"),
			} {
				assert.Equal(t, tt.want, res.RC)
				assert.Equal(t, tt.err.Error(), res.Stderr)
				assert.NotNil(t, res.Rows)
				assert.NotNil(t, res.JobLog)
			}
		})
	}
}

func TestRunCommandOnceRealConnectionFailure(t *testing.T) {
	bad := "sqlite:" + filepath.Join(t.TempDir(), "missing", "host.db")
	m, err := session.NewManager(session.Config{DSN: bad, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	defer m.Close()

	res := New(Config{Sessions: m}).RunCommandOnce(context.Background(), "CRTLIB LIB(X)")
	assert.Equal(t, rc.DBConnectionError, res.RC)
	assert.Contains(t, res.Stderr, "*LOCAL relational database directory entry")
}

func TestRunQueryOnce(t *testing.T) {
	t.Run("rows", func(t *testing.T) {
		f := newFixture(t, &host{replies: map[string]string{"SCHEMATA": queryRows}})
		res := f.exec.RunQueryOnce(context.Background(), "SELECT NAME FROM QSYS2.SCHEMATA", nil)
		assert.Equal(t, rc.Success, res.RC)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "QTEMP", res.Rows[1]["NAME"])
	})
	t.Run("expected count matches", func(t *testing.T) {
		f := newFixture(t, &host{replies: map[string]string{"SCHEMATA": queryRows}})
		res := f.exec.RunQueryOnce(context.Background(), "SELECT NAME FROM QSYS2.SCHEMATA", intPtr(2))
		assert.Equal(t, rc.Success, res.RC)
	})
	t.Run("expected count mismatch keeps rows", func(t *testing.T) {
		f := newFixture(t, &host{replies: map[string]string{"SCHEMATA": queryRows}})
		res := f.exec.RunQueryOnce(context.Background(), "SELECT NAME FROM QSYS2.SCHEMATA", intPtr(3))
		assert.Equal(t, rc.UnexpectedRowCount, res.RC)
		assert.Len(t, res.Rows, 2)
	})
	t.Run("negative expectation", func(t *testing.T) {
		f := newFixture(t, &host{replies: map[string]string{"SCHEMATA": queryRows}})
		res := f.exec.RunQueryOnce(context.Background(), "SELECT NAME FROM QSYS2.SCHEMATA", intPtr(-1))
		assert.Equal(t, rc.InvalidExpectedRowCount, res.RC)
	})
	t.Run("row not found is success", func(t *testing.T) {
		f := newFixture(t, &host{replies: map[string]string{"SCHEMATA": queryNoRows}})
		res := f.exec.RunQueryOnce(context.Background(), "SELECT NAME FROM QSYS2.SCHEMATA WHERE 1 = 0", intPtr(0))
		assert.Equal(t, rc.Success, res.RC)
		assert.Empty(t, res.Rows)
		assert.Contains(t, res.Stderr, "Row not found")
	})
	t.Run("query step error", func(t *testing.T) {
		f := newFixture(t, &host{replies: map[string]string{"NOPE": queryFailure}})
		res := f.exec.RunQueryOnce(context.Background(), "SELECT * FROM QGPL.NOPE", nil)
		assert.Equal(t, rc.Error, res.RC)
		assert.Contains(t, res.Stderr, "SQL0204")
	})
}

func TestRunSQLCallableOnce(t *testing.T) {
	h := &host{replies: map[string]string{"UPDATE": callSuccess}}
	f := newFixture(t, h)

	res := f.exec.RunSQLCallableOnce(context.Background(), "UPDATE QGPL.T SET A = 'x''y'")

	assert.Equal(t, rc.Success, res.RC)
	assert.Equal(t, "+++ success UPDATE", res.Stdout)
	require.Len(t, h.requests, 1)
	assert.NotContains(t, h.requests[0], "<fetch")
	assert.Contains(t, h.requests[0], "<free var='free'/>")
}

func TestRunRetrieveCommandOnceMergesRow(t *testing.T) {
	f := newFixture(t, &host{replies: map[string]string{"RTVJOBA": retrieveReply}})

	res := f.exec.RunRetrieveCommandOnce(context.Background(), "RTVJOBA",
		[]toolkit.RetrieveVar{{Name: "CCSID", Numeric: true}, {Name: "USRLIBL"}})

	assert.Equal(t, rc.Success, res.RC)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "37", res.Rows[0]["CCSID"])
	assert.Equal(t, "QGPL QTEMP", res.Rows[0]["USRLIBL"])
}

func TestRunCommandASPGroupFailure(t *testing.T) {
	h := &host{replies: map[string]string{"SETASPGRP": aspFailure}}
	f := newFixture(t, h)
	f.exec.cfg.ASPGroup = "iasp1"

	res := f.exec.RunCommandOnce(context.Background(), "CRTLIB LIB(TESTLIB)")

	assert.Equal(t, rc.Error, res.RC)
	assert.Contains(t, res.Stderr, "CPD0030")
	require.Len(t, h.requests, 1)
	assert.Contains(t, h.requests[0], "QSYS/SETASPGRP ASPGRP(IASP1)")
}

func TestTransportFailureIsUnexpected(t *testing.T) {
	f := newFixture(t, &host{err: perrors.New(perrors.TransportFailed, "toolkit endpoint returned 502")})

	res := f.exec.RunCommandOnce(context.Background(), "CRTLIB LIB(TESTLIB)")

	assert.Equal(t, rc.Unexpected, res.RC)
	assert.Contains(t, res.Stderr, "502")
}

func TestUnparseableReplyIsProtocolFault(t *testing.T) {
	f := newFixture(t, &host{replies: map[string]string{"CRTLIB": "<html>502 Bad Gateway from toolkit</html>"}})

	res := f.exec.RunCommandOnce(context.Background(), "CRTLIB LIB(TESTLIB)")

	assert.Equal(t, rc.NoKeyError, res.RC)
	assert.Contains(t, res.Stderr, "<html>502 Bad Gateway from toolkit</html>")
	assert.Contains(t, res.Stderr, "protocol_fault")
}

func TestJobLogBoundUsesHostClock(t *testing.T) {
	f := newFixtureWithClock(t, &host{replies: map[string]string{"CRTLIB": cmdSuccess}},
		"SELECT '2500-01-01-00.00.00.000000'")
	f.logMessage(t, 1, "CPF1124", "2400-01-01-00.00.00.000000", "before the host opened the session")
	f.logMessage(t, 2, "CPC2102", "2600-01-01-00.00.00.000000", "Library TESTLIB created.")

	res := f.exec.RunCommandOnce(context.Background(), "CRTLIB LIB(TESTLIB)")

	assert.Equal(t, rc.Success, res.RC)
	require.Len(t, res.JobLog, 1)
	assert.Equal(t, "CPC2102", res.JobLog[0].MessageID)
}

func TestBoundStatements(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		h := &host{replies: map[string]string{"<parm io='in'>QGPL</parm>": boundQueryRows}}
		f := newFixture(t, h)

		res := f.exec.RunQueryOnce(context.Background(), "SELECT NAME FROM QSYS2.SCHEMATA WHERE NAME = ?", intPtr(1), "QGPL")

		assert.Equal(t, rc.Success, res.RC)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, "QGPL", res.Rows[0]["NAME"])
		require.Len(t, h.requests, 1)
		assert.Contains(t, h.requests[0], "<prepare var='query' error='on'>SELECT NAME FROM QSYS2.SCHEMATA WHERE NAME = ?</prepare>")
	})
	t.Run("callable", func(t *testing.T) {
		f := newFixture(t, &host{replies: map[string]string{"<parm io='in'>42</parm>": boundCallSuccess}})
		res := f.exec.RunSQLCallableOnce(context.Background(), "UPDATE QGPL.T SET A = ?", 42)
		assert.Equal(t, rc.Success, res.RC)
		assert.Equal(t, "+++ success EXECUTE", res.Stdout)
	})
	t.Run("execute failure", func(t *testing.T) {
		f := newFixture(t, &host{replies: map[string]string{"<parm io='in'>x</parm>": boundCallFailure}})
		res := f.exec.RunSQLCallableOnce(context.Background(), "UPDATE QGPL.T SET N = ?", "x")
		assert.Equal(t, rc.Error, res.RC)
		assert.Contains(t, res.Stderr, "SQL0302")
	})
	t.Run("direct cursor", func(t *testing.T) {
		f := newFixture(t, &host{})
		_, err := f.db.Exec(`CREATE TABLE labels (LABEL TEXT)`)
		require.NoError(t, err)
		_, err = f.db.Exec(`INSERT INTO labels VALUES ('x'), ('y')`)
		require.NoError(t, err)

		res := f.exec.QueryRowsOnce(context.Background(), "SELECT LABEL FROM labels WHERE LABEL = ?", nil, intPtr(1), "y")
		assert.Equal(t, rc.Success, res.RC)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, "y", res.Rows[0]["LABEL"])
	})
}

func TestJobLogFailureIsANote(t *testing.T) {
	f := newFixture(t, &host{replies: map[string]string{"CRTLIB": cmdSuccess}})
	f.exec.cfg.Correlator.Source = func(string) string { return "no_such_table A" }

	res := f.exec.RunCommandOnce(context.Background(), "CRTLIB LIB(TESTLIB)")

	assert.Equal(t, rc.Success, res.RC)
	assert.Empty(t, res.JobLog)
	require.Len(t, res.Notes, 1)
	assert.True(t, strings.HasPrefix(res.Notes[0], "job log unavailable: "))
}

func TestQueryRowsOnceConvertsHexColumns(t *testing.T) {
	f := newFixture(t, &host{})
	_, err := f.db.Exec(`CREATE TABLE msgkeys (MESSAGE_KEY BLOB, LABEL TEXT)`)
	require.NoError(t, err)
	_, err = f.db.Exec(`INSERT INTO msgkeys VALUES (x'0000ABCD', 'x'), (x'0000ABCE', 'y')`)
	require.NoError(t, err)

	res := f.exec.QueryRowsOnce(context.Background(), "SELECT MESSAGE_KEY, LABEL FROM msgkeys ORDER BY LABEL", nil, intPtr(2))

	assert.Equal(t, rc.Success, res.RC)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "0000ABCD", res.Rows[0]["MESSAGE_KEY"])

	res = f.exec.QueryRowsOnce(context.Background(), "SELECT * FROM missing_table", nil, nil)
	assert.Equal(t, rc.Error, res.RC, "a cursor failure is the generic failure")
	assert.Contains(t, res.Stderr, "missing_table")
}

func TestJobLogOnce(t *testing.T) {
	f := newFixture(t, &host{})
	f.logMessage(t, 1, "CPF1124", "2000-01-01-00.00.00.000000", "Job started.")
	f.logMessage(t, 2, "CPF1164", "2000-01-01-00.00.05.000000", "Job ended.")

	res := f.exec.JobLogOnce(context.Background(), "123456/QUSER/QPADEV0001")
	assert.Equal(t, rc.Success, res.RC)
	require.Len(t, res.JobLog, 2)
	assert.Equal(t, "CPF1164", res.JobLog[0].MessageID)

	res = f.exec.JobLogOnce(context.Background(), "bad job")
	assert.Equal(t, rc.ParamNotValid, res.RC)
}

func TestNewRequest(t *testing.T) {
	assert.Equal(t, KindScreen, NewCommand("QSYS/WRKSYSSTS", "").Kind)
	assert.Equal(t, KindProcedural, NewCommand("CRTLIB LIB(A)", "").Kind)
	req := NewSQL(" SELECT 1 ", "IASP1", 7)
	assert.Equal(t, KindSQL, req.Kind)
	assert.Equal(t, "SELECT 1", req.Text)
	assert.Equal(t, []any{7}, req.Args)
	assert.Equal(t, "sql", req.Kind.String())
}
