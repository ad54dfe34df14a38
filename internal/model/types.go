package model

import (
	"encoding/json"

	"github.com/Masterminds/squirrel"
)

// Relation describes an association between two resources.
type Relation struct {
	Name    string `yaml:"-"`
	Type    string `yaml:"type"`    // has_one, has_many, belongs_to
	Model   string `yaml:"model"`   // related resource name
	FK      string `yaml:"fk"`      // foreign key column
	PK      string `yaml:"pk"`      // referenced key, defaults to id
	Through string `yaml:"through"` // intermediate resource for has_one/has_many :through
	Where   string `yaml:"where"`   // extra join condition, without WHERE

	// runtime, set by the linker
	target  *Resource
	through *Resource
}

func (r *Relation) Target() *Resource { return r.target }

func (r *Relation) ThroughRef() *Resource { return r.through }

// Predicate names a comparison between an attribute and request values.
type Predicate string

const (
	Eq           Predicate = "eq"
	NotEq        Predicate = "not_eq"
	In           Predicate = "in"
	NotIn        Predicate = "not_in"
	Gt           Predicate = "gt"
	Gteq         Predicate = "gteq"
	Lt           Predicate = "lt"
	Lteq         Predicate = "lteq"
	Matches      Predicate = "matches"
	DoesNotMatch Predicate = "does_not_match"
)

var builtinPredicates = map[Predicate]bool{
	Eq: true, NotEq: true, In: true, NotIn: true,
	Gt: true, Gteq: true, Lt: true, Lteq: true,
	Matches: true, DoesNotMatch: true,
}

// Builtin reports whether p belongs to the closed predicate set. Anything
// else is resolved by a custom predicate adapter at query time.
func (p Predicate) Builtin() bool { return builtinPredicates[p] }

// Function is a request-level switch a resource may opt into.
type Function string

const (
	FuncPage      Function = "page"
	FuncPageCount Function = "page_count"
	FuncSkip      Function = "skip"
	FuncTake      Function = "take"
	FuncUniq      Function = "uniq"
	FuncCount     Function = "count"
)

var knownFunctions = map[Function]bool{
	FuncPage: true, FuncPageCount: true, FuncSkip: true,
	FuncTake: true, FuncUniq: true, FuncCount: true,
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Mode selects how a serializer is applied to the action result.
type Mode string

const (
	ModeDefault    Mode = ""
	ModeSingle     Mode = "single"     // serializer receives the whole value
	ModeCollection Mode = "collection" // serializer is mapped over each record
)

// Table is handed to custom query hooks.
type Table struct {
	Name string
	PK   string
}

// Col returns a table-qualified column reference.
func (t Table) Col(name string) string { return t.Name + "." + name }

// ActionQuery replaces or refines the base plan for one action.
type ActionQuery func(t Table, q squirrel.SelectBuilder) squirrel.SelectBuilder

// ParamQuery refines the plan with the raw request value of one parameter.
type ParamQuery func(t Table, q squirrel.SelectBuilder, value string) squirrel.SelectBuilder

type FilterOptions struct {
	Using   []Predicate
	Default *string // used when the parameter is absent or empty
}

type FilterRule struct {
	Param     string
	Attribute string
	Predicate Predicate
	Default   *string
}

type ThroughPath struct {
	Param     string
	Hops      []string
	Attribute string
}

type OrderRule struct {
	Attribute string
	Direction Direction
}

type SerializationOverride struct {
	Action     string
	Serializer string
	Mode       Mode
}

// SerializerSpec declares a field projection for records.
type SerializerSpec struct {
	Name   string      `yaml:"-"`
	Root   string      `yaml:"root"`
	Fields []FieldSpec `yaml:"fields"`
}

type FieldSpec struct {
	Source    string `yaml:"source"`
	Alias     string `yaml:"alias"`
	Formatter string `yaml:"formatter"` // e.g. "{surname} {name}[0]."
	Localize  bool   `yaml:"localize"`
}

// Key is the output name of the field.
func (f FieldSpec) Key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Source
}

// Record is one entity. A non-empty Errors map marks a validation failure.
type Record struct {
	Values map[string]any
	Errors map[string][]string
}

func NewRecord(values map[string]any) *Record {
	if values == nil {
		values = map[string]any{}
	}
	return &Record{Values: values}
}

func (r *Record) Get(key string) any {
	if r == nil {
		return nil
	}
	return r.Values[key]
}

func (r *Record) AddError(field, msg string) {
	if r.Errors == nil {
		r.Errors = map[string][]string{}
	}
	r.Errors[field] = append(r.Errors[field], msg)
}

func (r *Record) Valid() bool {
	return r == nil || len(r.Errors) == 0
}

func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.Values)
}

// JoinSpec is one flattened join of a through path.
type JoinSpec struct {
	Table string
	Alias string
	On    string
	Where string
}
