// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package toolkit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	perrors "powerexec/cli/internal/errors"
	"powerexec/cli/internal/logging"

	"go.uber.org/zap"
)

// Transport delivers an XMLSERVICE request document and returns the reply document.
type Transport interface {
	Call(ctx context.Context, xmlIn string) (string, error)
}

// Querier is the subset of *sql.Conn / *sql.DB the database transport needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Default XMLSERVICE settings.
const (
	DefaultLibrary = "QXMLSERV"
	DefaultIPC     = "*na"
	DefaultCTL     = "*here *cdata"
)

// PlaceholderStyle selects how bind markers are written for the database driver.
type PlaceholderStyle int

const (
	// QuestionMark writes "?" markers (Db2, SQLite).
	QuestionMark PlaceholderStyle = iota
	// Dollar writes "$1, $2, ..." markers (pgx).
	Dollar
)

// DatabaseTransport calls the XMLSERVICE stored procedure over the session's
// database connection, so the toolkit runs inside the session's own job and
// its messages land in that job's log.
type DatabaseTransport struct {
	Conn         Querier
	Library      string
	IPC          string
	CTL          string
	Placeholders PlaceholderStyle
}

// NewDatabaseTransport returns a transport with default library, IPC and CTL.
func NewDatabaseTransport(conn Querier) *DatabaseTransport {
	return &DatabaseTransport{Conn: conn, Library: DefaultLibrary, IPC: DefaultIPC, CTL: DefaultCTL}
}

func (t *DatabaseTransport) statement() string {
	lib := t.Library
	if lib == "" {
		lib = DefaultLibrary
	}
	if t.Placeholders == Dollar {
		return "CALL " + lib + ".iPLUGR512K($1, $2, $3)"
	}
	return "CALL " + lib + ".iPLUGR512K(?, ?, ?)"
}

// Call runs the stored procedure and concatenates the reply result set.
func (t *DatabaseTransport) Call(ctx context.Context, xmlIn string) (string, error) {
	if t.Conn == nil {
		return "", perrors.New(perrors.TransportFailed, "database transport has no connection")
	}
	ipc, ctl := t.IPC, t.CTL
	if ipc == "" {
		ipc = DefaultIPC
	}
	if ctl == "" {
		ctl = DefaultCTL
	}
	rows, err := t.Conn.QueryContext(ctx, t.statement(), ipc, ctl, xmlIn)
	if err != nil {
		return "", perrors.Wrap(perrors.TransportFailed, "call XMLSERVICE stored procedure", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var chunk sql.NullString
		if err := rows.Scan(&chunk); err != nil {
			return "", perrors.Wrap(perrors.TransportFailed, "read XMLSERVICE reply", err)
		}
		b.WriteString(chunk.String)
	}
	if err := rows.Err(); err != nil {
		return "", perrors.Wrap(perrors.TransportFailed, "read XMLSERVICE reply", err)
	}
	// XMLSERVICE pads the last chunk with NULs.
	return strings.TrimRight(b.String(), "\x00 "), nil
}

// maxExcerpt caps the reply text carried in a protocol fault.
const maxExcerpt = 2048

// replyExcerpt is the masked reply, cut to maxExcerpt bytes.
func replyExcerpt(reply string) string {
	masked := logging.Mask(strings.TrimSpace(reply))
	if len(masked) > maxExcerpt {
		return masked[:maxExcerpt] + "...[truncated]"
	}
	return masked
}

// Toolkit sends payloads over a transport and parses the replies.
type Toolkit struct {
	transport Transport
	logger    *zap.Logger
}

// New creates a Toolkit. A nil logger is replaced with a no-op logger.
func New(transport Transport, logger *zap.Logger) *Toolkit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Toolkit{transport: transport, logger: logger}
}

// Call delivers the payload and parses the reply. Transport failures and
// unparseable replies are returned as errors; outcome classification of the
// individual steps is left to the caller.
func (t *Toolkit) Call(ctx context.Context, p *Payload) (Output, error) {
	xmlIn := p.XML()
	t.logger.Debug("toolkit request", zap.Strings("labels", p.Labels()), zap.Int("bytes", len(xmlIn)))

	reply, err := t.transport.Call(ctx, xmlIn)
	if err != nil {
		return Output{}, err
	}
	out, err := Parse(reply)
	if err != nil {
		t.logger.Warn("toolkit reply could not be parsed", zap.Error(err), zap.Int("bytes", len(reply)))
		return Output{}, perrors.Wrap(perrors.ProtocolFault,
			fmt.Sprintf("unparseable toolkit reply (%d bytes), the output is %s", len(reply), replyExcerpt(reply)), err)
	}
	t.logger.Debug("toolkit reply", zap.Strings("labels", out.Labels()))
	return out, nil
}
