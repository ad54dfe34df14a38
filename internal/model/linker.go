package model

import (
	"unicode"

	"RestJSON/internal/rescue"
)

func (r *Registry) linkRelations() error {
	for _, name := range sortedKeys(r.resources) {
		res := r.resources[name]
		for _, relName := range res.RelationNames() {
			rel := res.relations[relName]
			if rel.Type != "has_many" && rel.Type != "has_one" && rel.Type != "belongs_to" {
				return rescue.Configuration("relation '%s.%s' must have valid type (has_many, has_one, belongs_to), got '%s'", name, relName, rel.Type)
			}
			modelName := rel.Model
			if modelName == "" {
				modelName = relName
			}
			target, ok := r.resources[modelName]
			if !ok && rel.Type == "belongs_to" {
				target, ok = r.findBySingular(modelName)
			}
			if !ok {
				return rescue.Configuration("invalid relation: model '%s' not found in '%s.%s'", modelName, name, relName)
			}
			rel.Model = target.name
			rel.target = target

			// defaults follow the usual foreign key conventions
			switch rel.Type {
			case "belongs_to":
				if rel.FK == "" {
					rel.FK = toSnakeCase(relName) + "_id"
				}
				if rel.PK == "" {
					rel.PK = target.pk
				}
			case "has_one", "has_many":
				if rel.FK == "" {
					rel.FK = toSnakeCase(res.singular) + "_id"
				}
				if rel.PK == "" {
					rel.PK = res.pk
				}
			}

			if rel.Through != "" {
				through, ok := r.resources[rel.Through]
				if !ok {
					return rescue.Configuration("invalid through: model '%s' not found in '%s.%s'", rel.Through, name, relName)
				}
				if finalRelation(through, target) == nil {
					return rescue.Configuration("invalid through: no relation from '%s' to '%s' found in '%s.%s'", rel.Through, target.name, name, relName)
				}
				rel.through = through
			}
		}
	}
	return nil
}

func (r *Registry) findBySingular(singular string) (*Resource, bool) {
	for _, name := range sortedKeys(r.resources) {
		if r.resources[name].singular == singular {
			return r.resources[name], true
		}
	}
	return nil, false
}

// finalRelation finds the relation of the intermediate resource that
// reaches target. Relations of through are declared in the same registry,
// so the lookup compares declared model names.
func finalRelation(through, target *Resource) *Relation {
	for _, relName := range through.RelationNames() {
		rel := through.relations[relName]
		if rel.Model == target.name || rel.Model == target.singular || (rel.Model == "" && (relName == target.name || relName == target.singular)) {
			return rel
		}
	}
	return nil
}

func toSnakeCase(s string) string {
	var result []rune
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result = append(result, '_')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}
