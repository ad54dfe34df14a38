package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Allowed keys per mapping context
var allowedKeys = map[string]map[string]bool{
	"model": {
		"table": true, "singular": true, "primary_key": true, "relations": true,
		"filters": true, "through": true, "queries": true, "order": true,
		"supports": true, "page_size": true, "split": true, "predicate_prefix": true,
		"default_using": true, "serializers": true, "serialize": true, "permit": true,
		"required": true, "defaults": true, "rescue": true, "return_error_data": true,
	},
	"relation": {
		"type": true, "model": true, "fk": true, "pk": true, "through": true, "where": true,
	},
	"filter":     {"attrs": true, "using": true, "default": true},
	"through":    {"params": true, "path": true},
	"queries":    {"actions": true, "params": true},
	"serializer": {"root": true, "fields": true},
	"field":      {"source": true, "alias": true, "formatter": true, "localize": true},
	"serialize":  {"actions": true, "with": true, "for": true},
	"rescue":     {"exact": true, "ancestors": true, "status": true, "i18n_key": true},
}

var allowedRelationTypes = map[string]bool{
	"belongs_to": true, "has_one": true, "has_many": true,
}

var allowedSerializeModes = map[string]bool{
	"single": true, "collection": true,
}

func validateYAMLNode(node *yaml.Node, context string) error {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			if err := validateYAMLNode(child, "model"); err != nil {
				return err
			}
		}

	case yaml.MappingNode:
		allowed := allowedKeys[context] // nil means free form

		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			valNode := node.Content[i+1]
			key := keyNode.Value

			if allowed != nil && !allowed[key] {
				return fmt.Errorf("unknown key '%s' in %s (line %d)", key, context, keyNode.Line)
			}
			if context == "relation" && key == "type" && !allowedRelationTypes[valNode.Value] {
				return fmt.Errorf("unknown relation type '%s' (line %d)", valNode.Value, valNode.Line)
			}
			if context == "serialize" && key == "for" && !allowedSerializeModes[valNode.Value] {
				return fmt.Errorf("unknown serialize mode '%s' (line %d)", valNode.Value, valNode.Line)
			}

			if err := validateYAMLNode(valNode, nextContext(context, key)); err != nil {
				return err
			}
		}

	case yaml.SequenceNode:
		item := context
		switch context {
		case "filters-seq":
			item = "filter"
		case "through-seq":
			item = "through"
		case "fields-seq":
			item = "field"
		case "serialize-seq":
			item = "serialize"
		case "rescue-seq":
			item = "rescue"
		}
		for _, child := range node.Content {
			if err := validateYAMLNode(child, item); err != nil {
				return err
			}
		}

	case yaml.ScalarNode:
		// scalars are checked while walking their parent mapping
	}

	return nil
}

func nextContext(context, key string) string {
	switch context {
	case "model":
		switch key {
		case "relations":
			return "relations-map"
		case "filters":
			return "filters-seq"
		case "through":
			return "through-seq"
		case "queries":
			return "queries"
		case "serializers":
			return "serializers-map"
		case "serialize":
			return "serialize-seq"
		case "rescue":
			return "rescue-seq"
		}
		return "value"
	case "relations-map":
		return "relation"
	case "serializers-map":
		return "serializer"
	case "serializer":
		if key == "fields" {
			return "fields-seq"
		}
	}
	return "value"
}
