package resolver

import (
	"context"
	"testing"

	"RestJSON/internal/db"
	"RestJSON/internal/model"
	"RestJSON/internal/rescue"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/require"
)

var testSchema = []string{
	`CREATE TABLE bars (id INTEGER PRIMARY KEY, name TEXT)`,
	`CREATE TABLE foos (id INTEGER PRIMARY KEY, bar_id INTEGER, name TEXT)`,
	`CREATE TABLE foobars (
		id INTEGER PRIMARY KEY,
		foo_id INTEGER,
		bar_id INTEGER,
		foo_date TEXT,
		bar_date TEXT,
		color TEXT
	)`,
	`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, role TEXT)`,
	`CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER, title TEXT)`,

	`INSERT INTO bars (id, name) VALUES (1, 'alpha'), (2, 'beta')`,
	`INSERT INTO foos (id, bar_id, name) VALUES (1, 1, 'one'), (2, 2, 'two'), (3, 1, 'three')`,
	`INSERT INTO foobars (id, foo_id, bar_id, foo_date, bar_date, color) VALUES
		(1, 1, 10, '2024-01-01', '2024-02-01', 'red'),
		(2, 1, 20, '2024-01-05', NULL, 'blue'),
		(3, 2, NULL, '2024-01-10', '2024-02-03', 'red'),
		(4, 3, 30, '2023-12-31', '2024-02-04', 'green')`,
	`INSERT INTO users (id, name, role) VALUES (1, 'ann', 'admin'), (2, 'bob', 'member')`,
	`INSERT INTO posts (id, user_id, title) VALUES
		(1, 1, 'hello'), (2, 1, 'hello'), (3, 2, 'hello'), (4, 2, 'bye')`,
}

var testResources = map[string]string{
	"bars": `
filters:
  - attrs: [name]
    using: [starts_with]
`,
	"foos": `
relations:
  bar: {type: belongs_to, model: bars}
`,
	"foobars": `
page_size: 2
relations:
  foo: {type: belongs_to, model: foos}
filters:
  - attrs: [foo_id, bar_id]
  - attrs: [foo_date, bar_date]
    using: [lt, eq, gt]
  - attrs: [color]
    using: [in, not_in, not_eq, matches, does_not_match]
through:
  - params: [bar_name]
    path: [foo, bar, name]
queries:
  actions:
    reds: "foobars.color = 'red'"
  params:
    color_like: "foobars.color LIKE ?"
order:
  - foo_date: desc
  - bar_date
supports: [page, page_count, count, skip, take, uniq]
`,
	"users": `
relations:
  posts: {type: has_many}
filters:
  - attrs: [role]
    default: admin
  - attrs: [name]
through:
  - params: [post_title]
    path: [posts, title]
order:
  - id
required: [name]
defaults:
  role: member
permit:
  create: [name, role]
  update: [name]
supports: [uniq, count]
`,
	"posts": `
relations:
  user: {type: belongs_to, model: users}
`,
}

func setupDB(t *testing.T) (*model.Registry, *db.SQLExecutor) {
	t.Helper()
	ctx := context.Background()

	ex, err := db.OpenSQL(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(ex.Close)
	for _, stmt := range testSchema {
		_, err := ex.DB.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	reg := model.NewRegistry()
	for name, data := range testResources {
		require.NoError(t, reg.LoadBytes(name, []byte(data)), name)
	}
	require.NoError(t, reg.Freeze())
	return reg, ex
}

func mustResource(t *testing.T, reg *model.Registry, name string) *model.Resource {
	t.Helper()
	res, ok := reg.Get(name)
	require.True(t, ok, name)
	return res
}

func ids(records []*model.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		id, _ := r.Get("id").(int64)
		out = append(out, id)
	}
	return out
}

// denyIDs refuses every action on the listed record ids.
type denyIDs map[int64]bool

func (d denyIDs) Authorize(_ context.Context, action, resource string, rec *model.Record) error {
	if id, _ := rec.Get("id").(int64); d[id] {
		return rescue.AccessDenied(action, resource)
	}
	return nil
}

func stmt(sql string) squirrel.Sqlizer { return squirrel.Expr(sql) }
