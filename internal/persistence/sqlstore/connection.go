package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/example/eventboard/internal/persistence"
)

// Pool manages database connections with transaction support and per-operation timeouts.
type Pool struct {
	db      *sql.DB
	driver  Driver
	timeout time.Duration
	mapper  *ErrorMapper
}

// NewPool opens and verifies a connection pool for the configured driver.
func NewPool(ctx context.Context, opts Options) (*Pool, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(opts.driverName(), opts.dataSourceName())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Driver, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pool := &Pool{
		db:      db,
		driver:  opts.Driver,
		timeout: opts.QueryTimeout,
		mapper:  NewErrorMapper(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", opts.Driver, err)
	}

	return pool, nil
}

// DB returns the underlying database handle.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Driver reports which driver backs the pool.
func (p *Pool) Driver() Driver {
	return p.driver
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (p *Pool) Ping(ctx context.Context) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.mapper.MapError(ctx, p.db.PingContext(ctx))
}

// withTimeout derives the bounded context used for a single operation.
func (p *Pool) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// TransactionFunc represents a function that executes within a transaction.
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction executes fn within a transaction bounded by the pool timeout.
// If fn returns an error or panics the transaction is rolled back, otherwise it
// is committed.
func (p *Pool) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return p.mapper.MapError(ctx, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, p.mapper.MapError(ctx, err))
		}
		return p.mapper.MapError(ctx, err)
	}

	if err := tx.Commit(); err != nil {
		return p.mapper.MapError(ctx, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QueryHelper rewrites placeholders and time arguments for the active driver.
type QueryHelper struct {
	pool *Pool
}

// NewQueryHelper creates a new query helper.
func NewQueryHelper(pool *Pool) *QueryHelper {
	return &QueryHelper{pool: pool}
}

// QueryRow executes a query that returns a single row.
func (qh *QueryHelper) QueryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, qh.rebind(query), qh.args(args)...)
}

// Query executes a query that returns multiple rows.
func (qh *QueryHelper) Query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, qh.rebind(query), qh.args(args)...)
}

// Exec executes a query that doesn't return rows.
func (qh *QueryHelper) Exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, qh.rebind(query), qh.args(args)...)
}

// rebind converts ? placeholders into $n for PostgreSQL. Queries in this
// package never contain literal question marks.
func (qh *QueryHelper) rebind(query string) string {
	if qh.pool.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// args normalises time values so both drivers compare them consistently.
func (qh *QueryHelper) args(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		if t, ok := arg.(time.Time); ok {
			out[i] = encodeTime(qh.pool.driver, t)
			continue
		}
		out[i] = arg
	}
	return out
}

// inClause renders n comma separated placeholders.
func inClause(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// ErrorMapper maps driver errors to persistence layer errors.
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError maps driver specific errors to persistence sentinels. The original
// error stays in the chain for logging.
func (em *ErrorMapper) MapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) ||
		errors.Is(err, persistence.ErrDuplicate) ||
		errors.Is(err, persistence.ErrForeignKeyViolation) ||
		errors.Is(err, persistence.ErrConstraintViolation) ||
		errors.Is(err, persistence.ErrTimeout) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", persistence.ErrNotFound, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || (ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return fmt.Errorf("%w: %w", persistence.ErrTimeout, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
		case "foreign_key_violation":
			return fmt.Errorf("%w: %w", persistence.ErrForeignKeyViolation, err)
		case "check_violation", "not_null_violation":
			return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
		case "query_canceled":
			return fmt.Errorf("%w: %w", persistence.ErrTimeout, err)
		}
		return err
	}

	errStr := err.Error()

	if containsAny(errStr, []string{"UNIQUE constraint failed", "PRIMARY KEY constraint failed"}) {
		return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
	}

	if containsAny(errStr, []string{"FOREIGN KEY constraint failed"}) {
		return fmt.Errorf("%w: %w", persistence.ErrForeignKeyViolation, err)
	}

	if containsAny(errStr, []string{"CHECK constraint failed", "NOT NULL constraint failed"}) {
		return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
	}

	if containsAny(errStr, []string{"interrupted"}) && ctx != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", persistence.ErrTimeout, err)
	}

	return err
}

func containsAny(s string, substrings []string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// RetryConfig configures retry behavior for lock contention.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper retries operations that failed because the database was busy.
type RetryHelper struct {
	config RetryConfig
}

// NewRetryHelper creates a new retry helper.
func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{config: config}
}

// WithRetry executes fn, retrying only lock and serialization failures.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
				if delay > rh.config.MaxDelay {
					delay = rh.config.MaxDelay
				}
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryableError(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", rh.config.MaxRetries, lastErr)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		name := pqErr.Code.Name()
		return name == "serialization_failure" || name == "deadlock_detected" || name == "lock_not_available"
	}
	return containsAny(err.Error(), []string{"database is locked", "database table is locked", "SQLITE_BUSY"})
}
