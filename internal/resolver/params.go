package resolver

import (
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// nilTokens are request values that mean SQL NULL.
var nilTokens = map[string]bool{"NULL": true, "null": true, "nil": true}

// normalize turns a nil token into nil and leaves anything else as is.
func normalize(v string) any {
	if nilTokens[v] {
		return nil
	}
	return v
}

// splitValues splits raw on sep and normalizes every element. Trailing
// empty elements are dropped, so "1," is the single value "1".
func splitValues(raw, sep string) []any {
	parts := strings.Split(raw, sep)
	for len(parts) > 1 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return lo.Map(parts, func(v string, _ int) any {
		return normalize(v)
	})
}

// lookup reports a parameter as given when the key is present, even empty.
func lookup(params url.Values, name string) (string, bool) {
	vals, ok := params[name]
	if !ok {
		return "", false
	}
	if len(vals) == 0 {
		return "", true
	}
	return vals[0], true
}

// filled returns a non-blank parameter value.
func filled(params url.Values, name string) (string, bool) {
	v, ok := lookup(params, name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// toInt reads a leading optional sign and digits, ignoring the rest.
// "12abc" is 12, "abc" and "" are 0.
func toInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' && i > 0 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9' {
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		if n > (1<<62)/10 {
			break
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		return -n
	}
	return n
}

// toUint clamps negative values to zero.
func toUint(s string) uint64 {
	n := toInt(s)
	if n < 0 {
		return 0
	}
	return uint64(n)
}
