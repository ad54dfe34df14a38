package router

import (
	"net/http"
	"strings"

	"RestJSON/internal/config"

	"github.com/samber/lo"
)

// corsPolicy is resolved once from config and applied to every API request.
type corsPolicy struct {
	origins     []string
	wildcard    bool
	credentials bool
	methods     string
}

func newCORSPolicy(cfg config.CORSConfig, routes []Route) *corsPolicy {
	origins := lo.Compact(lo.Map(strings.Split(cfg.AllowOrigin, ","), func(o string, _ int) string {
		return strings.TrimSpace(o)
	}))
	methods := lo.Uniq(append(lo.Map(routes, func(rt Route, _ int) string { return rt.Method }), http.MethodOptions))
	return &corsPolicy{
		origins:     origins,
		wildcard:    len(origins) == 0 || lo.Contains(origins, "*"),
		credentials: cfg.AllowCredentials,
		methods:     strings.Join(methods, ", "),
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for the
// request origin and whether the answer depends on that origin.
func (p *corsPolicy) allowOrigin(requestOrigin string) (string, bool) {
	if p.wildcard {
		if p.credentials && requestOrigin != "" {
			return requestOrigin, true
		}
		return "*", false
	}
	if requestOrigin != "" && lo.Contains(p.origins, requestOrigin) {
		return requestOrigin, true
	}
	return "", true
}

// wrap answers preflight requests itself and decorates the rest.
func (p *corsPolicy) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		origin, vary := p.allowOrigin(r.Header.Get("Origin"))
		if origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
		}
		if vary {
			h.Set("Vary", "Origin")
		}
		if p.credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Methods", p.methods)
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
		h.Set("Access-Control-Expose-Headers", requestIDHeader)
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
