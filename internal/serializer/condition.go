package serializer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var opRe = regexp.MustCompile(`\s*(==|!=|>=|<=|=|>|<)\s*`)

// evalCondition handles "field" (truthiness) and "field <op> literal".
func evalCondition(cond string, row map[string]any) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return false, fmt.Errorf("empty condition")
	}
	loc := opRe.FindStringSubmatchIndex(cond)
	if loc == nil {
		return truthy(lookupPath(row, cond)), nil
	}

	left := strings.TrimSpace(cond[:loc[0]])
	op := cond[loc[2]:loc[3]]
	right := strings.TrimSpace(cond[loc[1]:])
	if op == "=" {
		op = "=="
	}
	return compare(lookupPath(row, left), op, parseLiteral(right)), nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if n, ok := toNumber(v); ok {
		return n != 0
	}
	return true
}

func parseLiteral(s string) any {
	switch s {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func compare(lv any, op string, rv any) bool {
	if ln, ok := toNumber(lv); ok {
		if rn, ok := toNumber(rv); ok {
			return ordered(op, ln, rn)
		}
	}
	if lb, ok := lv.(bool); ok {
		if rb, ok := rv.(bool); ok {
			switch op {
			case "==":
				return lb == rb
			case "!=":
				return lb != rb
			}
			return false
		}
	}
	if lv == nil || rv == nil {
		switch op {
		case "==":
			return lv == nil && rv == nil
		case "!=":
			return (lv == nil) != (rv == nil)
		}
		return false
	}
	return ordered(op, fmt.Sprintf("%v", lv), fmt.Sprintf("%v", rv))
}

func ordered[T float64 | string](op string, l, r T) bool {
	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	case ">":
		return l > r
	case ">=":
		return l >= r
	case "<":
		return l < r
	case "<=":
		return l <= r
	}
	return false
}
