package db

import (
	"context"

	"github.com/Masterminds/squirrel"
)

// Executor runs compiled plans against a relational engine.
type Executor interface {
	// Placeholder is the bind variable format the engine expects.
	Placeholder() squirrel.PlaceholderFormat
	// Query materializes every row as column -> value.
	Query(ctx context.Context, q squirrel.Sqlizer) ([]map[string]any, error)
	// QueryInt reads a single integer, e.g. a COUNT.
	QueryInt(ctx context.Context, q squirrel.Sqlizer) (int64, error)
	// Exec runs a statement and returns the affected row count.
	Exec(ctx context.Context, q squirrel.Sqlizer) (int64, error)
	Close()
}

// Select starts a SELECT builder with the executor's placeholder format.
func Select(ex Executor, columns ...string) squirrel.SelectBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(ex.Placeholder()).Select(columns...)
}

func Insert(ex Executor, table string) squirrel.InsertBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(ex.Placeholder()).Insert(table)
}

func Update(ex Executor, table string) squirrel.UpdateBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(ex.Placeholder()).Update(table)
}

func Delete(ex Executor, table string) squirrel.DeleteBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(ex.Placeholder()).Delete(table)
}
