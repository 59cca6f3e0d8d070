// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import "fmt"

// DBType represents the kind of connection string.
type DBType string

const (
	// DBTypeIBMi is an ibmi:// DSN addressing the host through its
	// PostgreSQL-wire SQL gateway.
	DBTypeIBMi       DBType = "ibmi"
	DBTypePostgreSQL DBType = "postgresql"
	DBTypeSQLite     DBType = "sqlite"
	DBTypeUnknown    DBType = "unknown"
)

// Driver names registered with database/sql.
const (
	DriverPGX    = "pgx"
	DriverSQLite = "sqlite"
)

// DSNInfo contains parsed information from a DSN string
type DSNInfo struct {
	Type     DBType
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Path     string
	Params   map[string]string
	Original string
}

// String returns the DSN as it was given.
func (d *DSNInfo) String() string {
	return d.Original
}

// Driver returns the database/sql driver that serves this DSN.
func (d *DSNInfo) Driver() string {
	if d.Type == DBTypeSQLite {
		return DriverSQLite
	}
	return DriverPGX
}

// Resolver is an interface for scheme-specific DSN resolution
type Resolver interface {
	// Parse parses a DSN string and returns its parts
	Parse(dsn string) (*DSNInfo, error)

	// Normalize converts DSN info to the driver connection string
	Normalize(info *DSNInfo) (string, error)

	// Validate checks if the DSN is valid for its scheme
	Validate(dsn string) error
}

// ParseError represents an error that occurred during DSN parsing
type ParseError struct {
	DSN    string
	Reason string
	Hint   string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid DSN format: %s\nHint: %s", e.Reason, e.Hint)
	}
	return fmt.Sprintf("invalid DSN format: %s", e.Reason)
}

// NewParseError creates a new ParseError
func NewParseError(dsn, reason, hint string) *ParseError {
	return &ParseError{
		DSN:    dsn,
		Reason: reason,
		Hint:   hint,
	}
}
