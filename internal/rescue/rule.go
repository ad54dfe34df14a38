package rescue

import (
	"net/http"
	"strings"
)

// Rule maps error kinds to a response status and a message key.
// A rule without Exact and Ancestors matches every error.
type Rule struct {
	Exact      []*Kind
	Ancestors  []*Kind
	Status     int
	MessageKey string
}

func (r Rule) CatchAll() bool {
	return len(r.Exact) == 0 && len(r.Ancestors) == 0
}

func (r Rule) Matches(k *Kind) bool {
	if r.CatchAll() {
		return true
	}
	for _, e := range r.Exact {
		if k == e {
			return true
		}
	}
	for _, a := range r.Ancestors {
		if k.Is(a) {
			return true
		}
	}
	return false
}

// Classifier scans its rules in declared order; the first match wins.
type Classifier struct {
	rules []Rule
}

func NewClassifier(rules ...Rule) *Classifier {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Classifier{rules: cp}
}

func (c *Classifier) Rules() []Rule {
	if c == nil {
		return nil
	}
	cp := make([]Rule, len(c.rules))
	copy(cp, c.rules)
	return cp
}

// Classify returns the first rule matching err. Configuration errors are
// never classified; they must surface to the process.
func (c *Classifier) Classify(err error) (Rule, bool) {
	if c == nil || err == nil {
		return Rule{}, false
	}
	kind := KindOf(err)
	if kind.Is(KindConfiguration) {
		return Rule{}, false
	}
	for _, r := range c.rules {
		if r.Matches(kind) {
			return r, true
		}
	}
	return Rule{}, false
}

// DefaultRules is used when a resource declares no rescue section.
func DefaultRules() []Rule {
	return []Rule{
		{Exact: []*Kind{KindRecordNotFound}, Status: http.StatusNotFound, MessageKey: "api.not_found"},
		{Exact: []*Kind{KindUnauthenticated}, Status: http.StatusUnauthorized, MessageKey: "api.unauthorized"},
		{Ancestors: []*Kind{KindAccessDenied}, Status: http.StatusForbidden, MessageKey: "api.forbidden"},
		{Ancestors: []*Kind{KindBadRequest}, Status: http.StatusBadRequest, MessageKey: "api.bad_request"},
		{Status: http.StatusInternalServerError, MessageKey: "api.internal_server_error"},
	}
}

// StatusName turns 404 into "not_found".
func StatusName(code int) string {
	text := http.StatusText(code)
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteByte('_')
		}
	}
	return b.String()
}

// StatusCode resolves a status name produced by StatusName.
func StatusCode(name string) (int, bool) {
	name = strings.TrimSpace(strings.ToLower(name))
	for code := 100; code < 600; code++ {
		if n := StatusName(code); n != "" && n == name {
			return code, true
		}
	}
	return 0, false
}
