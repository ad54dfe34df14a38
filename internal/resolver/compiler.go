package resolver

import (
	"context"
	"math"
	"net/url"

	"RestJSON/internal/db"
	"RestJSON/internal/logger"
	"RestJSON/internal/model"
	"RestJSON/internal/rescue"

	"github.com/Masterminds/squirrel"
)

// Authorizer decides whether action on a record is allowed. A non-nil error
// denies it.
type Authorizer interface {
	Authorize(ctx context.Context, action, resource string, rec *model.Record) error
}

// Result of a list action: records, or a scalar when aggregated.
type Result struct {
	Records     []*model.Record
	Scalar      int64
	Aggregation Aggregation
}

// Value is what the dispatcher renders.
func (r Result) Value() any {
	if r.Aggregation != AggNone {
		return r.Scalar
	}
	return r.Records
}

// Compiler turns request parameters into a query plan for a resource and
// executes it.
type Compiler struct {
	Registry   *model.Registry
	Exec       db.Executor
	Authorizer Authorizer

	predicates map[model.Predicate]PredicateFunc
}

func NewCompiler(reg *model.Registry, ex db.Executor, authz Authorizer) *Compiler {
	return &Compiler{
		Registry:   reg,
		Exec:       ex,
		Authorizer: authz,
		predicates: builtinPredicates(ex.Placeholder() == squirrel.Dollar),
	}
}

// RegisterPredicate installs an adapter for a predicate name outside the
// built-in set. Call before serving.
func (c *Compiler) RegisterPredicate(name model.Predicate, fn PredicateFunc) error {
	if name.Builtin() {
		return rescue.Configuration("predicate %q is built in", name)
	}
	if fn == nil {
		return rescue.Configuration("predicate %q has no adapter", name)
	}
	c.predicates[name] = fn
	return nil
}

// Plan builds the query state of a list action without running it.
func (c *Compiler) Plan(ctx context.Context, res *model.Resource, action string, params url.Values) (*Plan, error) {
	t := res.Table()

	// 1) base query
	base := db.Select(c.Exec, t.Name+".*").From(t.Name)
	plan := newPlan(res, action, base)

	// 2) action query
	if q, ok := res.ActionQuery(action); ok {
		plan.Query = q(t, plan.Query)
	}

	// 3) param queries get the raw value
	res.ParamQueries(func(param string, q model.ParamQuery) {
		if v, ok := lookup(params, param); ok {
			plan.Query = q(t, plan.Query, v)
			plan.Applied = append(plan.Applied, param)
		}
	})

	// 4) through paths
	for _, tp := range res.Throughs() {
		v, ok := lookup(params, tp.Param)
		if !ok {
			continue
		}
		joins, alias, err := c.Registry.ThroughJoins(ctx, res, tp)
		if err != nil {
			return nil, err
		}
		for _, js := range joins {
			plan.join(js)
		}
		plan.where(tp.Param, squirrel.Eq{alias + "." + tp.Attribute: v})
	}

	// 5) filters in declaration order
	for _, f := range res.Filters() {
		raw, ok := filled(params, f.Param)
		if !ok {
			if f.Default == nil || *f.Default == "" {
				continue
			}
			raw = *f.Default
		}
		cond, err := c.condition(res, f, raw)
		if err != nil {
			return nil, err
		}
		plan.where(f.Param, cond)
	}

	size := uint64(res.PageSize())

	// 6) page
	if v, ok := lookup(params, string(model.FuncPage)); ok && res.Supports(model.FuncPage) {
		page := toInt(v)
		if page < 1 {
			page = 1
		}
		// the offset must fit a signed 64-bit integer
		if size > 0 && uint64(page-1) > math.MaxInt64/size {
			page = int64(math.MaxInt64/size) + 1
		}
		plan.setOffset(size * uint64(page-1))
		plan.setLimit(size)
	}

	// 7) skip/take override page
	if v, ok := lookup(params, string(model.FuncSkip)); ok && res.Supports(model.FuncSkip) {
		plan.setOffset(toUint(v))
	}
	if v, ok := lookup(params, string(model.FuncTake)); ok && res.Supports(model.FuncTake) {
		plan.setLimit(toUint(v))
	}

	// 8) uniq
	if _, ok := lookup(params, string(model.FuncUniq)); ok && res.Supports(model.FuncUniq) {
		plan.Distinct = true
	}

	if _, ok := lookup(params, string(model.FuncCount)); ok && res.Supports(model.FuncCount) {
		plan.Aggregation = AggCount
	} else if _, ok := lookup(params, string(model.FuncPageCount)); ok && res.Supports(model.FuncPageCount) {
		plan.Aggregation = AggPageCount
	}
	return plan, nil
}

func (c *Compiler) condition(res *model.Resource, f model.FilterRule, raw string) (squirrel.Sqlizer, error) {
	col := res.Table().Col(f.Attribute)
	sep := res.SplitToken()
	if f.Predicate == model.Eq {
		sep = ","
	}
	fn, ok := c.predicates[f.Predicate]
	if !ok {
		return nil, rescue.Configuration("no adapter for predicate %q on %s.%s", f.Predicate, res.Name(), f.Param)
	}
	return fn(col, splitValues(raw, sep))
}

// Index runs a list action: plan, aggregate or materialize, then authorize
// every record for read.
func (c *Compiler) Index(ctx context.Context, res *model.Resource, action string, params url.Values) (Result, error) {
	plan, err := c.Plan(ctx, res, action, params)
	if err != nil {
		return Result{}, err
	}

	logger.Debug("plan", map[string]any{
		"resource":    res.Name(),
		"action":      action,
		"applied":     plan.Applied,
		"aggregation": plan.Aggregation.String(),
	})

	// 9) aggregate or materialize
	switch plan.Aggregation {
	case AggCount:
		n, err := c.Exec.QueryInt(ctx, plan.CountQuery(c.Exec.Placeholder()))
		if err != nil {
			return Result{}, err
		}
		return Result{Scalar: n, Aggregation: AggCount}, nil
	case AggPageCount:
		n, err := c.Exec.QueryInt(ctx, plan.CountQuery(c.Exec.Placeholder()))
		if err != nil {
			return Result{}, err
		}
		return Result{Scalar: pageCount(n, int64(res.PageSize())), Aggregation: AggPageCount}, nil
	}

	rows, err := c.Exec.Query(ctx, plan.Select())
	if err != nil {
		return Result{}, err
	}
	records := make([]*model.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.NewRecord(row))
	}

	// 10) the first denial aborts the response
	for _, rec := range records {
		if err := c.authorize(ctx, "read", res, rec); err != nil {
			return Result{}, err
		}
	}
	return Result{Records: records}, nil
}

func (c *Compiler) authorize(ctx context.Context, action string, res *model.Resource, rec *model.Record) error {
	if c.Authorizer == nil {
		return nil
	}
	return c.Authorizer.Authorize(ctx, action, res.Name(), rec)
}

func pageCount(count, size int64) int64 {
	if size <= 0 {
		return 0
	}
	return (count + size - 1) / size
}
