package serializer

import (
	"RestJSON/internal/model"

	"github.com/samber/lo"
)

// SingleValueActions default to single mode. Every other action, show
// included, maps the serializer over its result.
var SingleValueActions = []string{"create", "update", "destroy", "new"}

// Serializer projects records through a named field list.
type Serializer struct {
	resource string
	spec     model.SerializerSpec
	dict     *model.Dictionary
}

// Default is the identity projection.
func Default(resource string) *Serializer {
	return &Serializer{resource: resource}
}

func New(resource string, spec model.SerializerSpec, dict *model.Dictionary) *Serializer {
	return &Serializer{resource: resource, spec: spec, dict: dict}
}

// For picks the serializer and mode for action: the action override when
// declared, else the identity projection in the action's natural mode.
func For(res *model.Resource, action string, dict *model.Dictionary) (*Serializer, model.Mode) {
	mode := model.ModeCollection
	if lo.Contains(SingleValueActions, action) {
		mode = model.ModeSingle
	}
	o, ok := res.SerializationOverride(action)
	if !ok {
		return Default(res.Name()), mode
	}
	if o.Mode != model.ModeDefault {
		mode = o.Mode
	}
	spec, _ := res.SerializerSpec(o.Serializer)
	return New(res.Name(), spec, dict), mode
}

// Render shapes value for action. Records and record lists are projected;
// anything else, such as an aggregate, is returned unchanged.
func Render(res *model.Resource, action string, value any, dict *model.Dictionary) any {
	s, mode := For(res, action, dict)
	if mode == model.ModeCollection {
		return s.Each(value)
	}
	return s.Whole(value)
}

// One projects a single record.
func (s *Serializer) One(rec *model.Record) map[string]any {
	if rec == nil {
		return nil
	}
	if len(s.spec.Fields) == 0 {
		return lo.Assign(rec.Values)
	}

	out := make(map[string]any, len(s.spec.Fields))
	for _, f := range s.spec.Fields {
		var v any
		if f.Formatter != "" {
			v = Format(f.Formatter, rec.Values)
		} else {
			v = rec.Values[f.Source]
		}
		if f.Localize {
			v = s.localize(f.Key(), v)
		}
		out[f.Key()] = v
	}
	return out
}

// Each maps One over value without root wrapping.
func (s *Serializer) Each(value any) any {
	switch v := value.(type) {
	case *model.Record:
		return s.One(v)
	case []*model.Record:
		return lo.Map(v, func(r *model.Record, _ int) map[string]any { return s.One(r) })
	}
	return value
}

// Whole serializes value as one unit, wrapped in the root key when the
// serializer declares one.
func (s *Serializer) Whole(value any) any {
	out := s.Each(value)
	if s.spec.Root == "" {
		return out
	}
	switch value.(type) {
	case *model.Record, []*model.Record:
		return map[string]any{s.spec.Root: out}
	}
	return out
}

// localize looks the value up by resource, serializer and field, then by
// serializer and field, then by field alone. Untranslated values pass.
func (s *Serializer) localize(field string, v any) any {
	if s.dict == nil || v == nil {
		return v
	}
	if t, ok := s.dict.Node(s.resource).Lookup(s.spec.Name, field, v); ok {
		return t
	}
	if s.spec.Name != "" {
		if t, ok := s.dict.Node(s.spec.Name).Lookup(field, v); ok {
			return t
		}
	}
	if t, ok := s.dict.Node(field).Lookup(v); ok {
		return t
	}
	return v
}
