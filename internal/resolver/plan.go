package resolver

import (
	"fmt"
	"math"
	"strings"

	"RestJSON/internal/model"

	"github.com/Masterminds/squirrel"
)

// Aggregation replaces row materialization with a scalar.
type Aggregation int

const (
	AggNone Aggregation = iota
	AggCount
	AggPageCount
)

func (a Aggregation) String() string {
	switch a {
	case AggCount:
		return "count"
	case AggPageCount:
		return "page_count"
	}
	return "none"
}

// Plan is the query state of one list request. It is built, executed and
// dropped inside a single call and is never shared.
type Plan struct {
	Resource    *model.Resource
	Action      string
	Query       squirrel.SelectBuilder
	Applied     []string // parameters that changed the query, in order
	Joins       []model.JoinSpec
	Limit       *uint64
	Offset      *uint64
	Distinct    bool
	Aggregation Aggregation

	joined map[string]bool
}

func newPlan(res *model.Resource, action string, base squirrel.SelectBuilder) *Plan {
	return &Plan{
		Resource: res,
		Action:   action,
		Query:    base,
		joined:   map[string]bool{},
	}
}

func (p *Plan) where(param string, cond squirrel.Sqlizer) {
	p.Query = p.Query.Where(cond)
	p.Applied = append(p.Applied, param)
}

// join adds js once per alias; through paths sharing a prefix reuse it.
func (p *Plan) join(js model.JoinSpec) {
	if p.joined[js.Alias] {
		return
	}
	p.joined[js.Alias] = true
	p.Joins = append(p.Joins, js)

	clause := fmt.Sprintf("%s AS %s ON %s", js.Table, js.Alias, js.On)
	if js.Where != "" {
		clause += " AND (" + js.Where + ")"
	}
	p.Query = p.Query.Join(clause)
}

func (p *Plan) setLimit(n uint64)  { p.Limit = &n }
func (p *Plan) setOffset(n uint64) { p.Offset = &n }

// Select renders the plan for row materialization: window, distinct and the
// declared ordering applied in sequence.
func (p *Plan) Select() squirrel.SelectBuilder {
	q := p.windowed()
	t := p.Resource.Table()
	for _, o := range p.Resource.Orders() {
		q = q.OrderBy(t.Col(o.Attribute) + " " + strings.ToUpper(string(o.Direction)))
	}
	return q
}

// CountQuery wraps the plan as SELECT COUNT(*) FROM (plan) AS counted.
func (p *Plan) CountQuery(format squirrel.PlaceholderFormat) squirrel.SelectBuilder {
	return squirrel.StatementBuilder.
		PlaceholderFormat(format).
		Select("COUNT(*)").
		FromSelect(p.windowed(), "counted")
}

func (p *Plan) windowed() squirrel.SelectBuilder {
	q := p.Query
	if p.Distinct {
		q = q.Distinct()
	}
	if p.Limit != nil {
		q = q.Limit(*p.Limit)
	}
	if p.Offset != nil {
		if p.Limit == nil {
			// SQLite rejects OFFSET without LIMIT
			q = q.Limit(math.MaxInt64)
		}
		q = q.Offset(*p.Offset)
	}
	return q
}
