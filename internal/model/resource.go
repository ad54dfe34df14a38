package model

import (
	"sort"

	"RestJSON/internal/rescue"
)

// Resource is the immutable configuration of one resource. It is produced
// by Builder.Build and shared read-only by every request.
type Resource struct {
	name     string
	singular string
	table    string
	pk       string

	relations map[string]*Relation

	filters      []FilterRule
	filterIndex  map[string]int
	throughs     []ThroughPath
	paramQueries []paramQuery
	actionQuery  map[string]ActionQuery
	queryActions []string

	orders          []OrderRule
	functions       map[Function]bool
	pageSize        int
	split           string
	predicatePrefix string

	serializers map[string]SerializerSpec
	overrides   map[string]SerializationOverride

	rescueRules     []rescue.Rule
	returnErrorData *bool

	permit   map[string][]string
	required []string
	defaults map[string]any
}

type paramQuery struct {
	param string
	fn    ParamQuery
}

// Name is the plural resource name used in routes.
func (r *Resource) Name() string { return r.name }

// Singular is the name used for single-record payload roots.
func (r *Resource) Singular() string { return r.singular }

func (r *Resource) Table() Table { return Table{Name: r.table, PK: r.pk} }

func (r *Resource) PrimaryKey() string { return r.pk }

func (r *Resource) Relation(name string) (*Relation, bool) {
	rel, ok := r.relations[name]
	return rel, ok
}

func (r *Resource) RelationNames() []string {
	names := make([]string, 0, len(r.relations))
	for n := range r.relations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Filters returns filter rules in declaration order.
func (r *Resource) Filters() []FilterRule {
	out := make([]FilterRule, len(r.filters))
	copy(out, r.filters)
	return out
}

func (r *Resource) Filter(param string) (FilterRule, bool) {
	i, ok := r.filterIndex[param]
	if !ok {
		return FilterRule{}, false
	}
	return r.filters[i], true
}

func (r *Resource) Throughs() []ThroughPath {
	out := make([]ThroughPath, len(r.throughs))
	copy(out, r.throughs)
	return out
}

// ParamQueries calls fn for every param-scoped query in declaration order.
func (r *Resource) ParamQueries(fn func(param string, q ParamQuery)) {
	for _, pq := range r.paramQueries {
		fn(pq.param, pq.fn)
	}
}

func (r *Resource) ActionQuery(action string) (ActionQuery, bool) {
	q, ok := r.actionQuery[action]
	return q, ok
}

// QueryActions lists custom list actions other than index.
func (r *Resource) QueryActions() []string {
	out := make([]string, len(r.queryActions))
	copy(out, r.queryActions)
	return out
}

func (r *Resource) IsQueryAction(action string) bool {
	for _, a := range r.queryActions {
		if a == action {
			return true
		}
	}
	return false
}

func (r *Resource) Orders() []OrderRule {
	out := make([]OrderRule, len(r.orders))
	copy(out, r.orders)
	return out
}

func (r *Resource) Supports(fn Function) bool { return r.functions[fn] }

func (r *Resource) PageSize() int { return r.pageSize }

func (r *Resource) SplitToken() string { return r.split }

func (r *Resource) PredicatePrefix() string { return r.predicatePrefix }

func (r *Resource) SerializerSpec(name string) (SerializerSpec, bool) {
	s, ok := r.serializers[name]
	return s, ok
}

func (r *Resource) SerializationOverride(action string) (SerializationOverride, bool) {
	o, ok := r.overrides[action]
	return o, ok
}

// Classifier returns the exception rules of the resource. Nil means
// exceptions are not handled at all.
func (r *Resource) Classifier() *rescue.Classifier {
	if r.rescueRules == nil {
		return nil
	}
	return rescue.NewClassifier(r.rescueRules...)
}

// ReturnErrorData reports the per-resource diagnostics override.
func (r *Resource) ReturnErrorData() (bool, bool) {
	if r.returnErrorData == nil {
		return false, false
	}
	return *r.returnErrorData, true
}

// Permitted returns the allowed input fields for action and whether a list
// was declared.
func (r *Resource) Permitted(action string) ([]string, bool) {
	fields, ok := r.permit[action]
	if !ok {
		return nil, false
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out, true
}

func (r *Resource) Required() []string {
	out := make([]string, len(r.required))
	copy(out, r.required)
	return out
}

// Defaults are the attribute values of a new, unsaved record.
func (r *Resource) Defaults() map[string]any {
	out := make(map[string]any, len(r.defaults))
	for k, v := range r.defaults {
		out[k] = v
	}
	return out
}
