package relational

import (
	"database/sql"
	"fmt"
	"time"
)

type scanner interface {
	Scan(dest ...any) error
}

// timestamp scans TIMESTAMPTZ values from pgx and TEXT values from SQLite.
type timestamp struct {
	t     *time.Time
	valid bool
}

var timeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

func (ts *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		ts.valid = false
		return nil
	case time.Time:
		*ts.t, ts.valid = v.UTC(), true
		return nil
	case []byte:
		return ts.parse(string(v))
	case string:
		return ts.parse(v)
	default:
		return fmt.Errorf("timestamp: cannot scan %T", src)
	}
}

func (ts *timestamp) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*ts.t, ts.valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized value %q", s)
}

func scanTime(dst *time.Time) *timestamp { return &timestamp{t: dst} }

// nullTime scans into a *time.Time that stays nil for NULL.
type nullTime struct {
	dst **time.Time
	buf time.Time
}

func (n *nullTime) Scan(src any) error {
	ts := timestamp{t: &n.buf}
	if err := ts.Scan(src); err != nil {
		return err
	}
	if ts.valid {
		v := n.buf
		*n.dst = &v
	} else {
		*n.dst = nil
	}
	return nil
}

func scanNullTime(dst **time.Time) *nullTime { return &nullTime{dst: dst} }

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
