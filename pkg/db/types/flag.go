package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Flag is a boolean persisted as an integer 0/1 column so the same schema
// works on Postgres (SMALLINT) and SQLite (INTEGER).
type Flag bool

func (f *Flag) Scan(src any) error {
	if src == nil {
		return fmt.Errorf("Flag: cannot scan NULL")
	}

	switch v := src.(type) {
	case int64:
		*f = v != 0
	case int32:
		*f = v != 0
	case int16:
		*f = v != 0
	case int:
		*f = v != 0
	case bool:
		*f = Flag(v)
	case []byte:
		return f.parseFromString(string(v))
	case string:
		return f.parseFromString(v)
	default:
		return fmt.Errorf("Flag: unsupported Scan type %T", src)
	}
	return nil
}

func (f Flag) Value() (driver.Value, error) {
	if f {
		return int64(1), nil
	}
	return int64(0), nil
}

func (f *Flag) parseFromString(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true":
		*f = true
	case "0", "f", "false":
		*f = false
	default:
		return fmt.Errorf("Flag: parse %q", s)
	}
	return nil
}
