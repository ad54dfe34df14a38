package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"RestJSON/internal/logger"
	"RestJSON/internal/rescue"
)

// Middleware validates a Bearer token when one is sent and stores its
// claims in the request context. Requests without a token pass through;
// whether they may proceed is up to the Authorizer.
func Middleware(v *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := v.ValidateToken(token)
			if err != nil {
				logger.Warn("jwt_rejected", map[string]any{"path": r.URL.Path, "error": err.Error()})
				writeUnauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(rescue.Payload{
		Status: rescue.StatusName(http.StatusUnauthorized),
		Error:  err.Error(),
	})
}
