package model

import (
	"context"
	"fmt"
	"strings"

	"RestJSON/internal/rescue"
)

// JoinTree is the nested join descriptor of a through path. The deepest
// node carries the terminal attribute.
type JoinTree struct {
	Association string
	Relation    *Relation
	Resource    *Resource
	Child       *JoinTree
	Attribute   string
}

// String renders the tree as "a(b(attr))".
func (t *JoinTree) String() string {
	if t == nil {
		return ""
	}
	inner := t.Attribute
	if t.Child != nil {
		inner = t.Child.String()
	}
	return t.Association + "(" + inner + ")"
}

// ResolveThrough walks hops from root and builds the nested join tree.
// An association that cannot be resolved is a configuration error.
func (r *Registry) ResolveThrough(root *Resource, hops []string, attribute string) (*JoinTree, error) {
	if len(hops) == 0 {
		return nil, rescue.Configuration("through path for %q has no associations", attribute)
	}
	type step struct {
		rel    *Relation
		target *Resource
	}
	steps := make([]step, len(hops))
	cur := root
	for i, hop := range hops {
		target, ok := r.Resolve(cur, hop)
		if !ok {
			return nil, rescue.Configuration("association %q not found on %s", hop, cur.name)
		}
		steps[i] = step{rel: cur.relations[hop], target: target}
		cur = target
	}

	// wrap right to left; the last hop holds the attribute
	var tree *JoinTree
	for i := len(hops) - 1; i >= 0; i-- {
		node := &JoinTree{
			Association: hops[i],
			Relation:    steps[i].rel,
			Resource:    steps[i].target,
			Child:       tree,
		}
		if tree == nil {
			node.Attribute = attribute
		}
		tree = node
	}
	return tree, nil
}

// Flatten turns the tree into ordered joins starting at parent (the root
// table name). It returns the alias of the deepest table.
func (t *JoinTree) Flatten(parent string) ([]JoinSpec, string, error) {
	joins := make([]JoinSpec, 0, 2)
	parentAlias := parent
	path := make([]string, 0, 4)
	for node := t; node != nil; node = node.Child {
		path = append(path, node.Association)
		alias := "j_" + strings.Join(path, "_")
		rel := node.Relation
		target := node.Resource

		if rel.through != nil {
			final := finalRelation(rel.through, target)
			if final == nil {
				return nil, "", rescue.Configuration("no final relation found in through %s -> %s", rel.through.name, target.name)
			}
			throughAlias := alias + "_t"
			joins = append(joins, JoinSpec{
				Table: rel.through.table,
				Alias: throughAlias,
				On:    fmt.Sprintf("%s.%s = %s.%s", parentAlias, rel.PK, throughAlias, rel.FK),
			})
			var on string
			if final.Type == "belongs_to" {
				on = fmt.Sprintf("%s.%s = %s.%s", throughAlias, final.FK, alias, final.PK)
			} else {
				on = fmt.Sprintf("%s.%s = %s.%s", alias, final.FK, throughAlias, final.PK)
			}
			joins = append(joins, JoinSpec{
				Table: target.table,
				Alias: alias,
				On:    on,
				Where: replaceTableWithAlias(rel.Where, target.table, alias),
			})
		} else {
			var on string
			switch rel.Type {
			case "belongs_to":
				// parent.FK = alias.PK
				on = fmt.Sprintf("%s.%s = %s.%s", parentAlias, rel.FK, alias, rel.PK)
			case "has_one", "has_many":
				// alias.FK = parent.PK
				on = fmt.Sprintf("%s.%s = %s.%s", alias, rel.FK, parentAlias, rel.PK)
			default:
				return nil, "", rescue.Configuration("unsupported relation type: %s", rel.Type)
			}
			joins = append(joins, JoinSpec{
				Table: target.table,
				Alias: alias,
				On:    on,
				Where: replaceTableWithAlias(rel.Where, target.table, alias),
			})
		}
		parentAlias = alias
	}
	return joins, parentAlias, nil
}

// ThroughJoins resolves tp for res, consulting the join cache first.
func (r *Registry) ThroughJoins(ctx context.Context, res *Resource, tp ThroughPath) ([]JoinSpec, string, error) {
	key := res.name + "|" + tp.Param
	if joins, alias, ok := r.cache.Get(ctx, key); ok {
		return joins, alias, nil
	}
	tree, err := r.ResolveThrough(res, tp.Hops, tp.Attribute)
	if err != nil {
		return nil, "", err
	}
	joins, alias, err := tree.Flatten(res.table)
	if err != nil {
		return nil, "", err
	}
	r.cache.Set(ctx, key, joins, alias)
	return joins, alias, nil
}

// replaceTableWithAlias rewrites "table.col" references in a relation
// condition to the join alias.
func replaceTableWithAlias(where, table, alias string) string {
	if where == "" {
		return ""
	}
	return strings.ReplaceAll(where, table+".", alias+".")
}
