package session

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"powerexec/cli/internal/envelope"
)

// KnownHexColumns hold binary keys and are always rendered as hex.
var KnownHexColumns = []string{"MESSAGE_KEY", "ASSOCIATED_MESSAGE_KEY", "INTERNAL_JOB_ID"}

// QueryRows runs query with args on the session connection and returns every
// row keyed by column name. NULL becomes "", columns named in hexColumns or
// KnownHexColumns become upper-case hex text.
func (s *Session) QueryRows(ctx context.Context, query string, hexColumns []string, args ...any) ([]envelope.Row, error) {
	hexSet := make(map[string]bool, len(hexColumns)+len(KnownHexColumns))
	for _, c := range append(append([]string{}, KnownHexColumns...), hexColumns...) {
		hexSet[strings.ToUpper(strings.TrimSpace(c))] = true
	}

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []envelope.Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(envelope.Row, len(cols))
		for i, col := range cols {
			row[col] = convert(values[i], hexSet[strings.ToUpper(col)])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func convert(v any, asHex bool) any {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		if asHex {
			return strings.ToUpper(hex.EncodeToString(t))
		}
		return string(t)
	case string:
		if asHex {
			return strings.ToUpper(hex.EncodeToString([]byte(t)))
		}
		return t
	case time.Time:
		return t.Format("2006-01-02 15:04:05.000000")
	case int64, float64, bool:
		return t
	}
	return fmt.Sprint(v)
}
