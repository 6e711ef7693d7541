package sqlstore

import (
	"fmt"
	"time"
)

// sqliteTimeLayout is fixed width so TEXT comparisons order chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func encodeTime(driver Driver, t time.Time) any {
	t = t.UTC()
	if driver == DriverPostgres {
		return t
	}
	return t.Format(sqliteTimeLayout)
}

// dbTime scans timestamps stored as TEXT by SQLite or TIMESTAMPTZ by PostgreSQL.
type dbTime struct {
	Time time.Time
}

// Scan implements sql.Scanner.
func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = v.UTC()
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		return fmt.Errorf("sqlstore: unexpected NULL timestamp")
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into timestamp", src)
	}
}

func (d *dbTime) parse(value string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("sqlstore: failed to parse timestamp %q", value)
}
