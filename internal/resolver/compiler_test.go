package resolver

import (
	"context"
	"math"
	"net/url"
	"strings"
	"testing"

	"RestJSON/internal/model"
	"RestJSON/internal/rescue"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexFilters(t *testing.T) {
	reg, ex := setupDB(t)
	c := NewCompiler(reg, ex, nil)
	foobars := mustResource(t, reg, "foobars")

	cases := []struct {
		name   string
		query  string
		expect []int64
	}{
		{"no params, declared order", "", []int64{3, 2, 1, 4}},
		{"eq bare name", "foo_id=1", []int64{2, 1}},
		{"eq prefixed name", "foo_id!eq=1", []int64{2, 1}},
		{"eq comma list", "foo_id=1,2", []int64{3, 2, 1}},
		{"eq null token", "bar_id=NULL", []int64{3}},
		{"eq list with nil token", "bar_id=10,nil", []int64{3, 1}},
		{"blank value is ignored", "foo_id=", []int64{3, 2, 1, 4}},
		{"lt", "foo_date!lt=2024-01-05", []int64{1, 4}},
		{"lt values are ORed", "foo_date!lt=2024-01-01|2024-01-06", []int64{2, 1, 4}},
		{"gt", "foo_date!gt=2024-01-04", []int64{3, 2}},
		{"in", "color!in=red|green", []int64{3, 1, 4}},
		{"not_in", "color!not_in=red", []int64{2, 4}},
		{"not_eq", "color!not_eq=red", []int64{2, 4}},
		{"not_eq excludes every value", "color!not_eq=red|blue", []int64{4}},
		{"not_eq with nil token", "color!not_eq=red|null", []int64{2, 4}},
		{"does_not_match excludes every pattern", "color!does_not_match=r%25|g%25", []int64{2}},
		{"trailing separator is dropped", "foo_id=1,", []int64{2, 1}},
		{"matches", "color!matches=%25ee%25", []int64{4}},
		{"filters combine", "foo_id=1&foo_date!gt=2024-01-02", []int64{2}},
		{"through path", "bar_name=alpha", []int64{2, 1, 4}},
		{"param query gets the raw value", "color_like=re%25", []int64{3, 1}},
		{"unknown params are ignored", "nope=1", []int64{3, 2, 1, 4}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params, err := url.ParseQuery(tc.query)
			require.NoError(t, err)
			res, err := c.Index(context.Background(), foobars, "index", params)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, ids(res.Records))
		})
	}
}

func TestIndexPaging(t *testing.T) {
	reg, ex := setupDB(t)
	c := NewCompiler(reg, ex, nil)
	foobars := mustResource(t, reg, "foobars")

	cases := []struct {
		name   string
		query  string
		expect []int64
	}{
		{"first page", "page=1", []int64{3, 2}},
		{"second page", "page=2", []int64{1, 4}},
		{"page past the end", "page=3", []int64{}},
		{"page below one clamps", "page=0", []int64{3, 2}},
		{"negative page clamps", "page=-4", []int64{3, 2}},
		{"non numeric page clamps", "page=abc", []int64{3, 2}},
		{"numeric prefix", "page=2nd", []int64{1, 4}},
		{"skip", "skip=3", []int64{4}},
		{"take", "take=1", []int64{3}},
		{"skip and take", "skip=1&take=2", []int64{2, 1}},
		{"skip and take override page", "page=2&skip=0&take=1", []int64{3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params, _ := url.ParseQuery(tc.query)
			res, err := c.Index(context.Background(), foobars, "index", params)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, ids(res.Records))
		})
	}
}

func TestPlanPageOffsetIsClamped(t *testing.T) {
	reg, ex := setupDB(t)
	c := NewCompiler(reg, ex, nil)
	wide, err := model.NewBuilder("foobars").
		PageSize(100).
		SupportsFunctions(model.FuncPage).
		Build()
	require.NoError(t, err)

	plan, err := c.Plan(context.Background(), wide, "index", url.Values{"page": {"99999999999999999999"}})
	require.NoError(t, err)
	require.NotNil(t, plan.Offset)
	assert.LessOrEqual(t, *plan.Offset, uint64(math.MaxInt64))
	assert.Greater(t, *plan.Offset, uint64(math.MaxInt64-100))
	assert.Equal(t, uint64(0), *plan.Offset%100)

	res, err := c.Index(context.Background(), wide, "index", url.Values{"page": {"99999999999999999999"}})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestIndexUnsupportedFunctionsAreIgnored(t *testing.T) {
	reg, ex := setupDB(t)
	c := NewCompiler(reg, ex, nil)
	foos := mustResource(t, reg, "foos")

	res, err := c.Index(context.Background(), foos, "index", url.Values{"page": {"2"}, "count": {""}})
	require.NoError(t, err)
	assert.Equal(t, AggNone, res.Aggregation)
	assert.Len(t, res.Records, 3)
}

func TestIndexAggregation(t *testing.T) {
	reg, ex := setupDB(t)
	c := NewCompiler(reg, ex, nil)
	foobars := mustResource(t, reg, "foobars")
	ctx := context.Background()

	res, err := c.Index(ctx, foobars, "index", url.Values{"count": {""}})
	require.NoError(t, err)
	assert.Equal(t, AggCount, res.Aggregation)
	assert.Equal(t, int64(4), res.Value())

	res, err = c.Index(ctx, foobars, "index", url.Values{"count": {"1"}, "foo_id": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Scalar)

	res, err = c.Index(ctx, foobars, "index", url.Values{"page_count": {""}})
	require.NoError(t, err)
	assert.Equal(t, AggPageCount, res.Aggregation)
	assert.Equal(t, int64(2), res.Scalar)

	res, err = c.Index(ctx, foobars, "index", url.Values{"page_count": {""}, "foo_id": {"1,2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Scalar)

	res, err = c.Index(ctx, foobars, "index", url.Values{"page_count": {""}, "foo_id": {"3"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Scalar)

	// count wins over page_count
	res, err = c.Index(ctx, foobars, "index", url.Values{"page_count": {""}, "count": {""}})
	require.NoError(t, err)
	assert.Equal(t, AggCount, res.Aggregation)
	assert.Equal(t, int64(4), res.Scalar)
}

func TestIndexUniq(t *testing.T) {
	reg, ex := setupDB(t)
	c := NewCompiler(reg, ex, nil)
	users := mustResource(t, reg, "users")
	ctx := context.Background()

	params := url.Values{"post_title": {"hello"}, "role": {"admin,member"}}
	res, err := c.Index(ctx, users, "index", params)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 2}, ids(res.Records))

	params.Set("uniq", "")
	res, err = c.Index(ctx, users, "index", params)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(res.Records))

	params.Set("count", "")
	res, err = c.Index(ctx, users, "index", params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Scalar)
}

func TestIndexFilterDefault(t *testing.T) {
	reg, ex := setupDB(t)
	c := NewCompiler(reg, ex, nil)
	users := mustResource(t, reg, "users")
	ctx := context.Background()

	res, err := c.Index(ctx, users, "index", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(res.Records))

	res, err = c.Index(ctx, users, "index", url.Values{"role": {""}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(res.Records), "empty value falls back to the default")

	res, err = c.Index(ctx, users, "index", url.Values{"role": {"member"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(res.Records))
}

func TestIndexActionQuery(t *testing.T) {
	reg, ex := setupDB(t)
	c := NewCompiler(reg, ex, nil)
	foobars := mustResource(t, reg, "foobars")

	res, err := c.Index(context.Background(), foobars, "reds", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, ids(res.Records))

	// filters still apply on top of the action query
	res, err = c.Index(context.Background(), foobars, "reds", url.Values{"foo_id": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(res.Records))
}

func TestIndexGoHooks(t *testing.T) {
	_, ex := setupDB(t)
	reg := model.NewRegistry()
	for name, data := range testResources {
		require.NoError(t, reg.LoadBytes(name, []byte(data)))
	}
	reg.Extend("foobars", func(b *model.Builder) {
		b.CanFilterWithQuery("after", func(tb model.Table, q squirrel.SelectBuilder, v string) squirrel.SelectBuilder {
			return q.Where(squirrel.Gt{tb.Col("id"): v})
		})
		b.QueryFor("index", func(tb model.Table, q squirrel.SelectBuilder) squirrel.SelectBuilder {
			return q.Where(squirrel.NotEq{tb.Col("color"): "blue"})
		})
	})
	require.NoError(t, reg.Freeze())
	c := NewCompiler(reg, ex, nil)
	foobars := mustResource(t, reg, "foobars")

	res, err := c.Index(context.Background(), foobars, "index", url.Values{"after": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids(res.Records))
}

func TestIndexCustomPredicate(t *testing.T) {
	reg, ex := setupDB(t)
	c := NewCompiler(reg, ex, nil)
	bars := mustResource(t, reg, "bars")
	params := url.Values{"name!starts_with": {"al"}}

	_, err := c.Index(context.Background(), bars, "index", params)
	require.Error(t, err)
	assert.True(t, rescue.IsKind(err, rescue.KindConfiguration))

	require.NoError(t, c.RegisterPredicate("starts_with", func(col string, values []any) (squirrel.Sqlizer, error) {
		or := squirrel.Or{}
		for _, v := range values {
			or = append(or, squirrel.Like{col: v.(string) + "%"})
		}
		return or, nil
	}))
	res, err := c.Index(context.Background(), bars, "index", params)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(res.Records))

	assert.Error(t, c.RegisterPredicate(model.Eq, inList))
}

func TestIndexNullComparisonIsBadRequest(t *testing.T) {
	reg, ex := setupDB(t)
	c := NewCompiler(reg, ex, nil)
	foobars := mustResource(t, reg, "foobars")

	_, err := c.Index(context.Background(), foobars, "index", url.Values{"foo_date!gt": {"null"}})
	require.Error(t, err)
	assert.True(t, rescue.IsKind(err, rescue.KindBadRequest))
}

func TestIndexAuthorizationDenied(t *testing.T) {
	reg, ex := setupDB(t)
	foobars := mustResource(t, reg, "foobars")
	ctx := context.Background()

	c := NewCompiler(reg, ex, denyIDs{2: true})
	_, err := c.Index(ctx, foobars, "index", nil)
	require.Error(t, err)
	assert.True(t, rescue.IsKind(err, rescue.KindAccessDenied))

	// a filtered result without the denied record passes
	res, err := c.Index(ctx, foobars, "index", url.Values{"foo_id": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(res.Records))

	// aggregates are not per-record and skip authorization
	res, err = c.Index(ctx, foobars, "index", url.Values{"count": {""}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Scalar)
}

func TestPlanSQL(t *testing.T) {
	reg, ex := setupDB(t)
	c := NewCompiler(reg, ex, nil)
	foobars := mustResource(t, reg, "foobars")

	params := url.Values{"bar_name": {"alpha"}, "foo_id": {"1"}, "page": {"2"}}
	plan, err := c.Plan(context.Background(), foobars, "index", params)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar_name", "foo_id"}, plan.Applied)
	assert.Len(t, plan.Joins, 2)

	sqlStr, args, err := plan.Select().ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT foobars.* FROM foobars"+
			" JOIN foos AS j_foo ON foobars.foo_id = j_foo.id"+
			" JOIN bars AS j_foo_bar ON j_foo.bar_id = j_foo_bar.id"+
			" WHERE j_foo_bar.name = ? AND foobars.foo_id = ?"+
			" ORDER BY foobars.foo_date DESC, foobars.bar_date ASC LIMIT 2 OFFSET 2",
		sqlStr)
	assert.Equal(t, []any{"alpha", "1"}, args)

	countSQL, _, err := plan.CountQuery(squirrel.Dollar).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(countSQL, "SELECT COUNT(*) FROM (SELECT foobars.* FROM foobars"), countSQL)
	assert.Contains(t, countSQL, "j_foo_bar.name = $1 AND foobars.foo_id = $2")
	assert.NotContains(t, countSQL, "ORDER BY")
	assert.True(t, strings.HasSuffix(countSQL, ") AS counted"), countSQL)
}

func TestPlanDedupesSharedJoins(t *testing.T) {
	reg, _ := setupDB(t)

	plan := newPlan(mustResource(t, reg, "foobars"), "index", squirrel.Select("*").From("foobars"))
	js := model.JoinSpec{Table: "foos", Alias: "j_foo", On: "foobars.foo_id = j_foo.id"}
	plan.join(js)
	plan.join(js)
	assert.Len(t, plan.Joins, 1)
}
