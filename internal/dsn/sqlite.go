package dsn

import "strings"

// SQLiteResolver handles sqlite:PATH, sqlite://PATH, file: URIs and :memory:.
// These run the execution layer against a local database, mostly in tests.
type SQLiteResolver struct{}

// NewSQLiteResolver creates a new SQLite resolver
func NewSQLiteResolver() *SQLiteResolver { return &SQLiteResolver{} }

// Parse keeps the file path in Path.
func (r *SQLiteResolver) Parse(dsn string) (*DSNInfo, error) {
	path := dsn
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "sqlite://"):
		path = dsn[len("sqlite://"):]
	case strings.HasPrefix(lower, "sqlite:"):
		path = dsn[len("sqlite:"):]
	case strings.HasPrefix(lower, "file:"), lower == ":memory:":
	default:
		return nil, NewParseError(dsn, "missing or invalid scheme", "use sqlite:PATH or file:PATH")
	}
	if strings.TrimSpace(path) == "" {
		return nil, NewParseError(dsn, "missing database path", "use sqlite:PATH or sqlite::memory:")
	}
	return &DSNInfo{Type: DBTypeSQLite, Path: path, Database: LocalDatabase, Original: dsn}, nil
}

// Normalize returns the path as the driver expects it.
func (r *SQLiteResolver) Normalize(info *DSNInfo) (string, error) {
	if info == nil {
		return "", NewParseError("", "nil DSN info", "")
	}
	return info.Path, nil
}

// Validate checks that a path is present.
func (r *SQLiteResolver) Validate(dsn string) error {
	_, err := r.Parse(dsn)
	return err
}
