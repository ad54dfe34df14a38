package serializer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tokenRe matches {field}, {field}[i] and {field}[i..j].
var tokenRe = regexp.MustCompile(`\{([a-zA-Z0-9_\.]+)\}(?:\[(\d+)(?:\.\.(\d+))?\])?`)

// Format renders a field template against one record. Ternary blocks
// {? cond ? then : else} are resolved first, then plain tokens.
func Format(template string, row map[string]any) string {
	out := replaceTernaries(template, row)

	return tokenRe.ReplaceAllStringFunc(out, func(tok string) string {
		m := tokenRe.FindStringSubmatch(tok)
		val := lookupPath(row, m[1])
		if val == nil {
			return ""
		}
		s := []rune(fmt.Sprintf("%v", val))
		if m[2] == "" {
			return string(s)
		}

		from, _ := strconv.Atoi(m[2])
		if m[3] == "" {
			if from < len(s) {
				return string(s[from])
			}
			return ""
		}
		to, _ := strconv.Atoi(m[3])
		if to > len(s) {
			to = len(s)
		}
		if from >= to {
			return ""
		}
		return string(s[from:to])
	})
}

// replaceTernaries evaluates every {? ... } block. Quotes and nested
// braces inside a block are respected; an unterminated block is kept as text.
func replaceTernaries(s string, row map[string]any) string {
	var out strings.Builder
	for i := 0; i < len(s); {
		if !strings.HasPrefix(s[i:], "{?") {
			out.WriteByte(s[i])
			i++
			continue
		}

		start := i + 2
		end := blockEnd(s, start)
		if end < 0 {
			out.WriteString(s[i:])
			break
		}
		out.WriteString(evalTernary(s[start:end], row))
		i = end + 1
	}
	return out.String()
}

// blockEnd returns the index of the brace closing a block opened before
// start, or -1.
func blockEnd(s string, start int) int {
	depth := 1
	var quote byte
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote && s[i-1] != '\\' {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// evalTernary splits "cond ? then : else" on the first top level ? and the
// following top level : and renders the chosen branch.
func evalTernary(block string, row map[string]any) string {
	var quote byte
	depth := 0
	qPos, cPos := -1, -1
scan:
	for i := 0; i < len(block); i++ {
		c := block[i]
		if quote != 0 {
			if c == quote && block[i-1] != '\\' {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '?':
			if depth == 0 && qPos < 0 {
				qPos = i
			}
		case ':':
			if depth == 0 && qPos >= 0 {
				cPos = i
				break scan
			}
		}
	}
	if qPos < 0 || cPos < 0 {
		return "{?" + block + "}"
	}

	chosen := strings.TrimSpace(block[cPos+1:])
	if ok, err := evalCondition(block[:qPos], row); err == nil && ok {
		chosen = strings.TrimSpace(block[qPos+1 : cPos])
	}
	if strings.EqualFold(chosen, "null") {
		return ""
	}
	// branches may hold tokens and ternaries of their own
	return Format(unquote(chosen), row)
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// lookupPath reads a column, or a dotted path into a JSON column value.
func lookupPath(row map[string]any, path string) any {
	if v, ok := row[path]; ok {
		return v
	}
	var cur any = row
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}
