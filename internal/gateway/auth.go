package gateway

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/flemzord/cinechat/internal/security"
)

var errUnauthorized = errors.New("unauthorized")

// tokenQueryParam carries the bearer token on WebSocket upgrades, since
// browsers cannot set headers on them.
const tokenQueryParam = "access_token"

// authMiddleware admits requests that present the configured bearer token
// or basic credentials. Every refusal is audited.
func authMiddleware(cfg AuthConfig, audit *security.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reason := cfg.reject(r); reason != "" {
				auditAuthFailure(audit, r, reason)
				writeUnauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// reject returns why r is not authenticated, or "" when it is.
func (a AuthConfig) reject(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, isBearer := strings.CutPrefix(header, "Bearer ")
	if !isBearer && isWebSocketUpgrade(r) {
		token, isBearer = r.URL.Query().Get(tokenQueryParam), r.URL.Query().Has(tokenQueryParam)
	}

	switch {
	case isBearer && a.BearerToken != "":
		if secureEqual(token, a.BearerToken) {
			return ""
		}
	case header != "" && a.BasicUser != "" && a.BasicPass != "":
		user, pass, ok := r.BasicAuth()
		if ok && secureEqual(user, a.BasicUser) && secureEqual(pass, a.BasicPass) {
			return ""
		}
	case header == "" && !isBearer:
		return "missing credentials"
	}
	return "invalid credentials"
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="cinechat"`)
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:     errUnauthorized.Error(),
		ErrorCode: CodeUnauthorized,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func auditAuthFailure(audit *security.AuditLogger, r *http.Request, reason string) {
	if audit == nil {
		return
	}
	audit.Log(security.AuditEvent{
		Type:      security.EventAuthFailure,
		RequestID: middleware.GetReqID(r.Context()),
		RemoteIP:  r.RemoteAddr,
		Detail:    reason,
		Metadata: map[string]string{
			"method": r.Method,
			"path":   r.URL.Path,
		},
	})
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
