package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"RestJSON/internal/logger"
	"RestJSON/internal/rescue"

	"github.com/Masterminds/squirrel"
	"gopkg.in/yaml.v3"
)

// resourceFile is the YAML shape of one resource declaration.
type resourceFile struct {
	Table           string                    `yaml:"table"`
	Singular        string                    `yaml:"singular"`
	PrimaryKey      string                    `yaml:"primary_key"`
	Relations       map[string]Relation       `yaml:"relations"`
	Filters         []filterEntry             `yaml:"filters"`
	Through         []throughEntry            `yaml:"through"`
	Queries         queriesEntry              `yaml:"queries"`
	Order           []orderEntry              `yaml:"order"`
	Supports        []string                  `yaml:"supports"`
	PageSize        int                       `yaml:"page_size"`
	Split           string                    `yaml:"split"`
	PredicatePrefix string                    `yaml:"predicate_prefix"`
	DefaultUsing    []string                  `yaml:"default_using"`
	Serializers     map[string]SerializerSpec `yaml:"serializers"`
	Serialize       []serializeEntry          `yaml:"serialize"`
	Permit          map[string][]string       `yaml:"permit"`
	Required        []string                  `yaml:"required"`
	Defaults        map[string]any            `yaml:"defaults"`
	Rescue          *[]rescueEntry            `yaml:"rescue"`
	ReturnErrorData *bool                     `yaml:"return_error_data"`
}

type filterEntry struct {
	Attrs   []string `yaml:"attrs"`
	Using   []string `yaml:"using"`
	Default *string  `yaml:"default"`
}

type throughEntry struct {
	Params []string `yaml:"params"`
	Path   []string `yaml:"path"`
}

// queriesEntry holds raw SQL conditions. Param conditions receive the raw
// request value through a single ? placeholder.
type queriesEntry struct {
	Actions map[string]string `yaml:"actions"`
	Params  map[string]string `yaml:"params"`
}

type serializeEntry struct {
	Actions []string `yaml:"actions"`
	With    string   `yaml:"with"`
	For     string   `yaml:"for"`
}

type rescueEntry struct {
	Exact     []string    `yaml:"exact"`
	Ancestors []string    `yaml:"ancestors"`
	Status    statusValue `yaml:"status"`
	I18nKey   string      `yaml:"i18n_key"`
}

// statusValue accepts 404 or not_found.
type statusValue int

func (s *statusValue) UnmarshalYAML(node *yaml.Node) error {
	if n, err := strconv.Atoi(node.Value); err == nil {
		*s = statusValue(n)
		return nil
	}
	code, ok := rescue.StatusCode(node.Value)
	if !ok {
		return fmt.Errorf("unknown status %q (line %d)", node.Value, node.Line)
	}
	*s = statusValue(code)
	return nil
}

// orderEntry accepts "attr" or {attr: desc}.
type orderEntry OrderRule

func (o *orderEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*o = orderEntry{Attribute: node.Value, Direction: Asc}
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("order entry must have exactly one attribute (line %d)", node.Line)
		}
		*o = orderEntry{Attribute: node.Content[0].Value, Direction: Direction(node.Content[1].Value)}
		return nil
	}
	return fmt.Errorf("invalid order entry (line %d)", node.Line)
}

// LoadDir reads every *.yml in dir. The file name is the resource name.
func (r *Registry) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		b, err := r.parseResource(name, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := r.Add(b); err != nil {
			return err
		}
		logger.Info("resource_loaded", map[string]any{"resource": name, "file": path})
	}
	return nil
}

// LoadBytes registers one resource from YAML.
func (r *Registry) LoadBytes(name string, data []byte) error {
	b, err := r.parseResource(name, data)
	if err != nil {
		return err
	}
	return r.Add(b)
}

func (r *Registry) parseResource(name string, data []byte) (*Builder, error) {
	// structural validation first, then decode
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, rescue.Configuration("YAML parse error: %v", err)
	}
	if len(root.Content) == 0 {
		return nil, rescue.Configuration("empty YAML")
	}
	if err := validateYAMLNode(root.Content[0], "model"); err != nil {
		return nil, rescue.Configuration("validation error: %v", err)
	}
	var f resourceFile
	if err := root.Decode(&f); err != nil {
		return nil, rescue.Configuration("unmarshal error: %v", err)
	}
	return r.applyFile(name, &f)
}

func (r *Registry) applyFile(name string, f *resourceFile) (*Builder, error) {
	b := NewBuilder(name).
		Table(f.Table).
		Singular(f.Singular).
		PrimaryKey(f.PrimaryKey).
		PredicatePrefix(f.PredicatePrefix).
		SplitOn(f.Split)

	pageSize := r.defaultPageSize
	if f.PageSize != 0 {
		pageSize = f.PageSize
	}
	b.PageSize(pageSize)

	if len(f.DefaultUsing) > 0 {
		b.DefaultPredicates(toPredicates(f.DefaultUsing)...)
	}
	for _, relName := range sortedKeys(f.Relations) {
		b.Relation(relName, f.Relations[relName])
	}
	for _, fe := range f.Filters {
		b.CanFilterBy(fe.Attrs, FilterOptions{Using: toPredicates(fe.Using), Default: fe.Default})
	}
	for _, te := range f.Through {
		b.CanFilterThrough(te.Params, te.Path...)
	}
	for _, action := range sortedKeys(f.Queries.Actions) {
		cond := f.Queries.Actions[action]
		b.QueryFor(action, func(_ Table, q squirrel.SelectBuilder) squirrel.SelectBuilder {
			return q.Where(cond)
		})
	}
	for _, param := range sortedKeys(f.Queries.Params) {
		cond := f.Queries.Params[param]
		if strings.Count(cond, "?") != 1 {
			return nil, rescue.Configuration("query for parameter %q must contain exactly one ?", param)
		}
		b.CanFilterWithQuery(param, func(_ Table, q squirrel.SelectBuilder, value string) squirrel.SelectBuilder {
			return q.Where(cond, value)
		})
	}
	for _, o := range f.Order {
		b.OrderBy(OrderRule(o))
	}
	for _, fn := range f.Supports {
		b.SupportsFunctions(Function(fn))
	}
	for _, sName := range sortedKeys(f.Serializers) {
		spec := f.Serializers[sName]
		spec.Name = sName
		b.Serializer(spec)
	}
	for _, se := range f.Serialize {
		b.SerializeAction(se.Actions, se.With, Mode(se.For))
	}
	for _, action := range sortedKeys(f.Permit) {
		b.Permit(action, f.Permit[action]...)
	}
	b.Require(f.Required...)
	for _, attr := range sortedKeys(f.Defaults) {
		b.Default(attr, f.Defaults[attr])
	}
	if f.Rescue != nil {
		if len(*f.Rescue) == 0 {
			b.NoRescue()
		}
		for _, re := range *f.Rescue {
			rule, err := toRule(re)
			if err != nil {
				return nil, err
			}
			b.Rescue(rule)
		}
	}
	if f.ReturnErrorData != nil {
		b.ReturnErrorData(*f.ReturnErrorData)
	}
	return b, nil
}

func toPredicates(names []string) []Predicate {
	out := make([]Predicate, 0, len(names))
	for _, n := range names {
		out = append(out, Predicate(strings.TrimSpace(n)))
	}
	return out
}

func unknownKind(name string) error {
	return rescue.Configuration("unknown error kind %q (known: %s)", name, strings.Join(rescue.KindNames(), ", "))
}

func toRule(re rescueEntry) (rescue.Rule, error) {
	rule := rescue.Rule{Status: int(re.Status), MessageKey: re.I18nKey}
	if rule.Status == 0 {
		rule.Status = 500
	}
	for _, n := range re.Exact {
		k, ok := rescue.LookupKind(n)
		if !ok {
			return rule, unknownKind(n)
		}
		rule.Exact = append(rule.Exact, k)
	}
	for _, n := range re.Ancestors {
		k, ok := rescue.LookupKind(n)
		if !ok {
			return rule, unknownKind(n)
		}
		rule.Ancestors = append(rule.Ancestors, k)
	}
	return rule, nil
}
