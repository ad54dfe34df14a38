package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RestJSON/internal/rescue"

	"github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQLExecutor runs plans through database/sql. It backs SQLite deployments
// and the unit tests.
type SQLExecutor struct {
	DB     *sql.DB
	format squirrel.PlaceholderFormat
}

// OpenSQL opens driver ("sqlite" or "pgx") with dsn.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLExecutor, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// a shared in-memory database lives as long as its only connection
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return NewSQLExecutor(conn, driver), nil
}

func NewSQLExecutor(conn *sql.DB, driver string) *SQLExecutor {
	format := squirrel.PlaceholderFormat(squirrel.Question)
	if driver == "pgx" || driver == "postgres" {
		format = squirrel.Dollar
	}
	return &SQLExecutor{DB: conn, format: format}
}

func (e *SQLExecutor) Placeholder() squirrel.PlaceholderFormat { return e.format }

func (e *SQLExecutor) Query(ctx context.Context, q squirrel.Sqlizer) ([]map[string]any, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	logSQL(sqlStr, args)
	defer observe("query", time.Now())

	rows, err := e.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, rescue.DataLayer(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, rescue.DataLayer(err)
	}
	out := make([]map[string]any, 0, 16)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, rescue.DataLayer(err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, rescue.DataLayer(err)
	}
	return out, nil
}

func (e *SQLExecutor) QueryInt(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	logSQL(sqlStr, args)
	defer observe("count", time.Now())

	var n int64
	if err := e.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, rescue.DataLayer(err)
	}
	return n, nil
}

func (e *SQLExecutor) Exec(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	logSQL(sqlStr, args)
	defer observe("exec", time.Now())

	res, err := e.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, rescue.DataLayer(err)
	}
	return res.RowsAffected()
}

func (e *SQLExecutor) Close() {
	if e.DB != nil {
		_ = e.DB.Close()
	}
}

// Open picks the executor for driver.
func Open(ctx context.Context, driver, dsn string) (Executor, error) {
	switch driver {
	case "pgx", "postgres", "":
		return InitPostgres(ctx, dsn)
	case "sqlite":
		return OpenSQL(ctx, "sqlite", dsn)
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
}
