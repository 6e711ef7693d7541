package sqlstore

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	// DriverSQLite selects the pure Go modernc.org/sqlite driver.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres selects github.com/lib/pq.
	DriverPostgres Driver = "postgres"
)

// ParseDriver converts a configuration value into a Driver.
func ParseDriver(value string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pq":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported driver %q", value)
	}
}

// Options configures a storage pool.
type Options struct {
	Driver Driver
	// DSN is a file path for SQLite or a connection string for PostgreSQL.
	DSN string
	// QueryTimeout bounds every storage operation, including whole transactions.
	QueryTimeout time.Duration
	// BusyTimeout sets how long SQLite waits for locks.
	BusyTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultOptions returns options for the given driver with sensible pool settings.
// SQLite is limited to a single connection so writers never contend for the file lock.
func DefaultOptions(driver Driver, dsn string) Options {
	opts := Options{
		Driver:          driver,
		DSN:             dsn,
		QueryTimeout:    5 * time.Second,
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
	}
	if driver == DriverSQLite {
		opts.MaxOpenConns = 1
		opts.MaxIdleConns = 1
		opts.ConnMaxLifetime = 0
	}
	return opts
}

func (o Options) validate() error {
	if o.DSN == "" {
		return fmt.Errorf("sqlstore: DSN cannot be empty")
	}
	if o.Driver != DriverSQLite && o.Driver != DriverPostgres {
		return fmt.Errorf("sqlstore: unsupported driver %q", o.Driver)
	}
	if o.QueryTimeout < 0 || o.BusyTimeout < 0 || o.ConnMaxLifetime < 0 {
		return fmt.Errorf("sqlstore: timeouts cannot be negative")
	}
	if o.MaxOpenConns < 0 || o.MaxIdleConns < 0 {
		return fmt.Errorf("sqlstore: connection limits cannot be negative")
	}
	return nil
}

// driverName is the name registered with database/sql.
func (o Options) driverName() string {
	if o.Driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

// dataSourceName appends connection pragmas to SQLite DSNs. The pragmas are
// applied by the driver on every new connection, so foreign keys stay enabled
// even if the pool replaces a connection.
func (o Options) dataSourceName() string {
	if o.Driver != DriverSQLite {
		return o.DSN
	}

	pragmas := []struct {
		name  string
		value string
	}{
		{"foreign_keys", "1"},
		{"busy_timeout", fmt.Sprintf("%d", o.BusyTimeout.Milliseconds())},
	}
	if o.DSN != ":memory:" && !strings.Contains(o.DSN, "mode=memory") {
		pragmas = append(pragmas, struct {
			name  string
			value string
		}{"journal_mode", "WAL"})
	}

	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		if strings.Contains(o.DSN, p.name+"(") {
			continue
		}
		params = append(params, "_pragma="+url.QueryEscape(fmt.Sprintf("%s(%s)", p.name, p.value)))
	}
	if len(params) == 0 {
		return o.DSN
	}

	sep := "?"
	if strings.Contains(o.DSN, "?") {
		sep = "&"
	}
	return o.DSN + sep + strings.Join(params, "&")
}
