package resolver

import (
	"RestJSON/internal/model"
	"RestJSON/internal/rescue"

	"github.com/Masterminds/squirrel"
	"github.com/samber/lo"
)

// PredicateFunc builds the condition for column from normalized request
// values. A nil element stands for SQL NULL.
type PredicateFunc func(column string, values []any) (squirrel.Sqlizer, error)

func builtinPredicates(caseInsensitive bool) map[model.Predicate]PredicateFunc {
	matches := func(col string, v any) squirrel.Sqlizer { return squirrel.Like{col: v} }
	notMatches := func(col string, v any) squirrel.Sqlizer { return squirrel.NotLike{col: v} }
	if caseInsensitive {
		matches = func(col string, v any) squirrel.Sqlizer { return squirrel.ILike{col: v} }
		notMatches = func(col string, v any) squirrel.Sqlizer { return squirrel.NotILike{col: v} }
	}

	return map[model.Predicate]PredicateFunc{
		model.Eq:    inList,
		model.In:    inList,
		model.NotIn: notInList,
		model.NotEq: notEqual,
		model.Gt:    each(func(col string, v any) squirrel.Sqlizer { return squirrel.Gt{col: v} }, false),
		model.Gteq:  each(func(col string, v any) squirrel.Sqlizer { return squirrel.GtOrEq{col: v} }, false),
		model.Lt:    each(func(col string, v any) squirrel.Sqlizer { return squirrel.Lt{col: v} }, false),
		model.Lteq:  each(func(col string, v any) squirrel.Sqlizer { return squirrel.LtOrEq{col: v} }, false),

		model.Matches:      each(matches, false),
		model.DoesNotMatch: every(notMatches, false),
	}
}

// inList matches any of values. One value compiles to = or IS NULL; more
// compile to IN, ORed with IS NULL when a nil is among them.
func inList(col string, values []any) (squirrel.Sqlizer, error) {
	present := lo.Filter(values, func(v any, _ int) bool { return v != nil })
	hasNil := len(present) < len(values)

	switch {
	case len(values) == 1:
		return squirrel.Eq{col: values[0]}, nil
	case !hasNil:
		return squirrel.Eq{col: present}, nil
	case len(present) == 0:
		return squirrel.Eq{col: nil}, nil
	}
	return squirrel.Or{squirrel.Eq{col: present}, squirrel.Eq{col: nil}}, nil
}

func notInList(col string, values []any) (squirrel.Sqlizer, error) {
	present := lo.Filter(values, func(v any, _ int) bool { return v != nil })
	hasNil := len(present) < len(values)

	switch {
	case len(present) == 0:
		return squirrel.NotEq{col: nil}, nil
	case !hasNil:
		return squirrel.NotEq{col: present}, nil
	}
	return squirrel.And{squirrel.NotEq{col: present}, squirrel.NotEq{col: nil}}, nil
}

// notEqual excludes every value. One value compiles to <> or IS NOT NULL;
// more compile like not_in.
func notEqual(col string, values []any) (squirrel.Sqlizer, error) {
	if len(values) == 1 && values[0] != nil {
		return squirrel.NotEq{col: values[0]}, nil
	}
	return notInList(col, values)
}

// each ORs one comparison per value, every ANDs them. Comparisons that
// have no NULL form reject nil values as a bad request.
func each(cmp func(col string, v any) squirrel.Sqlizer, nilOK bool) PredicateFunc {
	return joined(cmp, nilOK, func(conds []squirrel.Sqlizer) squirrel.Sqlizer { return squirrel.Or(conds) })
}

func every(cmp func(col string, v any) squirrel.Sqlizer, nilOK bool) PredicateFunc {
	return joined(cmp, nilOK, func(conds []squirrel.Sqlizer) squirrel.Sqlizer { return squirrel.And(conds) })
}

func joined(cmp func(col string, v any) squirrel.Sqlizer, nilOK bool, join func([]squirrel.Sqlizer) squirrel.Sqlizer) PredicateFunc {
	return func(col string, values []any) (squirrel.Sqlizer, error) {
		conds := make([]squirrel.Sqlizer, 0, len(values))
		for _, v := range values {
			if v == nil && !nilOK {
				return nil, rescue.BadRequest("%s cannot be compared with null", col)
			}
			conds = append(conds, cmp(col, v))
		}
		if len(conds) == 1 {
			return conds[0], nil
		}
		return join(conds), nil
	}
}
