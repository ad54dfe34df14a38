package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"RestJSON/internal/logger"

	"gopkg.in/yaml.v3"
)

// LocaleNode is one node of the locale dictionary.
type LocaleNode struct {
	Value    string
	Children map[string]*LocaleNode
}

// Dictionary is the loaded dictionary of one locale.
type Dictionary struct {
	Locale string
	root   map[string]*LocaleNode
}

// LoadLocales reads <dir>/<locale>.yml.
func LoadLocales(dir, locale string) (*Dictionary, error) {
	path := filepath.Join(dir, locale+".yml")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read locale file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal locale error in %s: %w", path, err)
	}

	d := &Dictionary{Locale: locale, root: parseNodeMap(raw)}
	// a top level key equal to the locale name is unwrapped
	if n, ok := d.root[locale]; ok && n.Children != nil && len(d.root) == 1 {
		d.root = n.Children
	}
	logger.Info("locale_loaded", map[string]any{"locale": locale, "entries": len(d.root)})
	return d, nil
}

// NewDictionary builds a dictionary from already decoded data.
func NewDictionary(locale string, raw map[string]any) *Dictionary {
	return &Dictionary{Locale: locale, root: parseNodeMap(raw)}
}

func parseNodeMap(raw map[string]any) map[string]*LocaleNode {
	result := make(map[string]*LocaleNode, len(raw))
	for key, val := range raw {
		result[key] = parseNode(val)
	}
	return result
}

func parseNode(val any) *LocaleNode {
	switch v := val.(type) {
	case string:
		return &LocaleNode{Value: v}
	case map[string]any:
		return &LocaleNode{Children: parseNodeMap(v)}
	case map[any]any:
		children := make(map[string]*LocaleNode, len(v))
		for k, child := range v {
			children[fmt.Sprintf("%v", k)] = parseNode(child)
		}
		return &LocaleNode{Children: children}
	case map[int]any:
		children := make(map[string]*LocaleNode, len(v))
		for k, child := range v {
			children[fmt.Sprintf("%d", k)] = parseNode(child)
		}
		return &LocaleNode{Children: children}
	default:
		return &LocaleNode{Value: fmt.Sprintf("%v", v)}
	}
}

// Lookup walks keys below n. Non-string keys are formatted with %v.
func (n *LocaleNode) Lookup(keys ...any) (string, bool) {
	if n == nil {
		return "", false
	}
	cur := n
	for _, k := range keys {
		if cur == nil {
			return "", false
		}
		next, ok := cur.Children[fmt.Sprintf("%v", k)]
		if !ok {
			return "", false
		}
		cur = next
	}
	if cur.Value != "" {
		return cur.Value, true
	}
	return "", false
}

// Translate resolves a dotted key such as "api.not_found".
func (d *Dictionary) Translate(key, fallback string) string {
	if d == nil || key == "" {
		return fallback
	}
	parts := strings.Split(key, ".")
	head, ok := d.root[parts[0]]
	if !ok {
		return fallback
	}
	rest := make([]any, 0, len(parts)-1)
	for _, p := range parts[1:] {
		rest = append(rest, p)
	}
	if v, ok := head.Lookup(rest...); ok {
		return v
	}
	return fallback
}

// Node returns the top level node named key.
func (d *Dictionary) Node(key string) *LocaleNode {
	if d == nil {
		return nil
	}
	return d.root[key]
}
