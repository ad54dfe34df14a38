package model

import (
	"reflect"
	"strings"

	"RestJSON/internal/rescue"

	"github.com/samber/lo"
)

const (
	DefaultPageSize        = 15
	DefaultSplitToken      = "|"
	DefaultPredicatePrefix = "!"
)

// Builder collects resource registrations during the setup phase. Calls
// are additive; Build freezes the result.
type Builder struct {
	res               *Resource
	defaultPredicates []Predicate
	rescueSet         bool
	errs              []error
}

func NewBuilder(name string) *Builder {
	return &Builder{
		res: &Resource{
			name:            name,
			singular:        singularize(name),
			table:           name,
			pk:              "id",
			relations:       map[string]*Relation{},
			filterIndex:     map[string]int{},
			actionQuery:     map[string]ActionQuery{},
			functions:       map[Function]bool{},
			pageSize:        DefaultPageSize,
			split:           DefaultSplitToken,
			predicatePrefix: DefaultPredicatePrefix,
			serializers:     map[string]SerializerSpec{},
			overrides:       map[string]SerializationOverride{},
			permit:          map[string][]string{},
			defaults:        map[string]any{},
		},
		defaultPredicates: []Predicate{Eq},
	}
}

func (b *Builder) Name() string { return b.res.name }

func (b *Builder) fail(format string, args ...any) {
	b.errs = append(b.errs, rescue.Configuration("%s: "+format, append([]any{b.res.name}, args...)...))
}

func (b *Builder) Table(name string) *Builder {
	if name != "" {
		b.res.table = name
	}
	return b
}

func (b *Builder) Singular(name string) *Builder {
	if name != "" {
		b.res.singular = name
	}
	return b
}

func (b *Builder) PrimaryKey(pk string) *Builder {
	if pk != "" {
		b.res.pk = pk
	}
	return b
}

func (b *Builder) Relation(name string, rel Relation) *Builder {
	if _, exists := b.res.relations[name]; exists {
		b.fail("relation %q declared twice", name)
		return b
	}
	rel.Name = name
	b.res.relations[name] = &rel
	return b
}

// DefaultPredicates replaces the predicate set used by CanFilterBy calls
// that do not name any.
func (b *Builder) DefaultPredicates(preds ...Predicate) *Builder {
	if len(preds) > 0 {
		b.defaultPredicates = lo.Uniq(preds)
	}
	return b
}

func (b *Builder) PredicatePrefix(prefix string) *Builder {
	if prefix != "" {
		b.res.predicatePrefix = prefix
	}
	return b
}

// SplitOn sets the multi-value separator of non-eq predicates. Eq lists
// always split on ','.
func (b *Builder) SplitOn(token string) *Builder {
	if token != "" {
		b.res.split = token
	}
	return b
}

func (b *Builder) PageSize(n int) *Builder {
	if n < 1 {
		b.fail("page size must be positive, got %d", n)
		return b
	}
	b.res.pageSize = n
	return b
}

// CanFilterBy exposes attrs as filter parameters. Each predicate p adds the
// parameter attr+prefix+p; eq also adds the bare attribute name.
func (b *Builder) CanFilterBy(attrs []string, opts FilterOptions) *Builder {
	preds := opts.Using
	if len(preds) == 0 {
		preds = b.defaultPredicates
	}
	for _, p := range lo.Uniq(preds) {
		for _, attr := range attrs {
			rule := FilterRule{Attribute: attr, Predicate: p, Default: opts.Default}
			if p == Eq {
				rule.Param = attr
				b.addFilter(rule)
			}
			rule.Param = attr + b.res.predicatePrefix + string(p)
			b.addFilter(rule)
		}
	}
	return b
}

func (b *Builder) addFilter(rule FilterRule) {
	if i, exists := b.res.filterIndex[rule.Param]; exists {
		if reflect.DeepEqual(b.res.filters[i], rule) {
			return
		}
		b.fail("filter parameter %q already registered", rule.Param)
		return
	}
	if b.paramTaken(rule.Param) {
		b.fail("filter parameter %q clashes with another parameter", rule.Param)
		return
	}
	b.res.filterIndex[rule.Param] = len(b.res.filters)
	b.res.filters = append(b.res.filters, rule)
}

func (b *Builder) paramTaken(param string) bool {
	if _, ok := b.res.filterIndex[param]; ok {
		return true
	}
	if lo.ContainsBy(b.res.throughs, func(t ThroughPath) bool { return t.Param == param }) {
		return true
	}
	return lo.ContainsBy(b.res.paramQueries, func(q paramQuery) bool { return q.param == param })
}

// CanFilterThrough exposes params filtering by an attribute of a related
// resource. path lists association hops followed by the terminal attribute.
func (b *Builder) CanFilterThrough(params []string, path ...string) *Builder {
	if len(path) < 2 {
		b.fail("through path %v needs at least one association and an attribute", path)
		return b
	}
	hops := append([]string(nil), path[:len(path)-1]...)
	attr := path[len(path)-1]
	for _, p := range params {
		if b.paramTaken(p) {
			b.fail("through parameter %q already registered", p)
			continue
		}
		b.res.throughs = append(b.res.throughs, ThroughPath{Param: p, Hops: hops, Attribute: attr})
	}
	return b
}

// CanFilterWithQuery hands the raw value of param to fn.
func (b *Builder) CanFilterWithQuery(param string, fn ParamQuery) *Builder {
	if fn == nil {
		b.fail("query for parameter %q is nil", param)
		return b
	}
	if b.paramTaken(param) {
		b.fail("query parameter %q already registered", param)
		return b
	}
	b.res.paramQueries = append(b.res.paramQueries, paramQuery{param: param, fn: fn})
	return b
}

// QueryFor installs an action-scoped query. Actions other than index become
// custom list actions served by the same compiler.
func (b *Builder) QueryFor(action string, fn ActionQuery) *Builder {
	if fn == nil {
		b.fail("query_for %q must supply a query", action)
		return b
	}
	if reservedActions[action] && action != "index" {
		b.fail("query_for %q clashes with a built-in action", action)
		return b
	}
	b.res.actionQuery[action] = fn
	if action != "index" && !lo.Contains(b.res.queryActions, action) {
		b.res.queryActions = append(b.res.queryActions, action)
	}
	return b
}

// OrderBy appends to the declared ordering; it never re-sorts.
func (b *Builder) OrderBy(rules ...OrderRule) *Builder {
	for _, r := range rules {
		dir := Direction(strings.ToLower(string(r.Direction)))
		if dir == "" {
			dir = Asc
		}
		if dir != Asc && dir != Desc {
			b.fail("order %q has invalid direction %q", r.Attribute, r.Direction)
			continue
		}
		b.res.orders = append(b.res.orders, OrderRule{Attribute: r.Attribute, Direction: dir})
	}
	return b
}

func (b *Builder) SupportsFunctions(fns ...Function) *Builder {
	for _, fn := range fns {
		if !knownFunctions[fn] {
			b.fail("unknown function %q", fn)
			continue
		}
		b.res.functions[fn] = true
	}
	return b
}

func (b *Builder) Serializer(spec SerializerSpec) *Builder {
	if spec.Name == "" {
		b.fail("serializer without name")
		return b
	}
	b.res.serializers[spec.Name] = spec
	return b
}

func (b *Builder) SerializeAction(actions []string, serializer string, mode Mode) *Builder {
	if serializer == "" {
		b.fail("serialize_action %v must supply a serializer", actions)
		return b
	}
	if mode != ModeDefault && mode != ModeSingle && mode != ModeCollection {
		b.fail("serialize_action %v has invalid mode %q", actions, mode)
		return b
	}
	for _, a := range actions {
		b.res.overrides[a] = SerializationOverride{Action: a, Serializer: serializer, Mode: mode}
	}
	return b
}

// Rescue appends exception rules. The first call replaces the defaults.
func (b *Builder) Rescue(rules ...rescue.Rule) *Builder {
	if !b.rescueSet {
		b.res.rescueRules = []rescue.Rule{}
		b.rescueSet = true
	}
	b.res.rescueRules = append(b.res.rescueRules, rules...)
	return b
}

// NoRescue disables exception handling for the resource.
func (b *Builder) NoRescue() *Builder {
	b.rescueSet = true
	b.res.rescueRules = nil
	return b
}

func (b *Builder) ReturnErrorData(on bool) *Builder {
	b.res.returnErrorData = &on
	return b
}

func (b *Builder) Permit(action string, fields ...string) *Builder {
	b.res.permit[action] = lo.Uniq(append(b.res.permit[action], fields...))
	return b
}

func (b *Builder) Require(fields ...string) *Builder {
	b.res.required = lo.Uniq(append(b.res.required, fields...))
	return b
}

func (b *Builder) Default(attr string, value any) *Builder {
	b.res.defaults[attr] = value
	return b
}

// Build validates the registrations and returns the frozen resource.
func (b *Builder) Build() (*Resource, error) {
	for action, o := range b.res.overrides {
		if _, ok := b.res.serializers[o.Serializer]; !ok {
			b.fail("serializer %q for action %q is not declared", o.Serializer, action)
		}
	}
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if !b.rescueSet {
		b.res.rescueRules = rescue.DefaultRules()
	}
	res := b.res
	b.res = nil
	return res, nil
}

var reservedActions = map[string]bool{
	"index": true, "show": true, "new": true, "edit": true,
	"create": true, "update": true, "destroy": true,
}

func singularize(name string) string {
	switch {
	case strings.HasSuffix(name, "ies") && len(name) > 3:
		return name[:len(name)-3] + "y"
	case strings.HasSuffix(name, "sses"), strings.HasSuffix(name, "xes"), strings.HasSuffix(name, "ches"), strings.HasSuffix(name, "shes"):
		return name[:len(name)-2]
	case strings.HasSuffix(name, "ss"):
		return name
	case strings.HasSuffix(name, "s") && len(name) > 1:
		return name[:len(name)-1]
	}
	return name
}
