package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flemzord/cinechat/internal/security"
	"github.com/flemzord/cinechat/internal/security/securitytest"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	both := AuthConfig{BearerToken: "film-token", BasicUser: "admin", BasicPass: "pass123"}
	bearerOnly := AuthConfig{BearerToken: "film-token"}

	tests := []struct {
		name      string
		cfg       AuthConfig
		prepare   func(r *http.Request)
		target    string
		want      int
		wantAudit string
	}{
		{
			name:    "bearer",
			cfg:     both,
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer film-token") },
			want:    http.StatusOK,
		},
		{
			name:      "wrong_bearer",
			cfg:       both,
			prepare:   func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			want:      http.StatusUnauthorized,
			wantAudit: "invalid credentials",
		},
		{
			name:    "basic",
			cfg:     both,
			prepare: func(r *http.Request) { r.SetBasicAuth("admin", "pass123") },
			want:    http.StatusOK,
		},
		{
			name:      "wrong_basic",
			cfg:       both,
			prepare:   func(r *http.Request) { r.SetBasicAuth("admin", "guess") },
			want:      http.StatusUnauthorized,
			wantAudit: "invalid credentials",
		},
		{
			name:      "basic_not_configured",
			cfg:       bearerOnly,
			prepare:   func(r *http.Request) { r.SetBasicAuth("admin", "pass123") },
			want:      http.StatusUnauthorized,
			wantAudit: "invalid credentials",
		},
		{
			name:      "missing",
			cfg:       both,
			want:      http.StatusUnauthorized,
			wantAudit: "missing credentials",
		},
		{
			name:    "websocket_query_token",
			cfg:     bearerOnly,
			target:  "/chat/ws?access_token=film-token",
			prepare: func(r *http.Request) { r.Header.Set("Upgrade", "websocket") },
			want:    http.StatusOK,
		},
		{
			name:      "query_token_needs_upgrade",
			cfg:       bearerOnly,
			target:    "/sessions?access_token=film-token",
			want:      http.StatusUnauthorized,
			wantAudit: "missing credentials",
		},
		{
			name:      "websocket_wrong_query_token",
			cfg:       bearerOnly,
			target:    "/chat/ws?access_token=stale",
			prepare:   func(r *http.Request) { r.Header.Set("Upgrade", "websocket") },
			want:      http.StatusUnauthorized,
			wantAudit: "invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			audit, rec := securitytest.NewAuditRecorder()
			target := tt.target
			if target == "" {
				target = "/sessions"
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.prepare != nil {
				tt.prepare(req)
			}
			rr := httptest.NewRecorder()
			authMiddleware(tt.cfg, audit)(okHandler()).ServeHTTP(rr, req)
			events := rec.Events()

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.wantAudit == "" {
				if len(events) != 0 {
					t.Errorf("unexpected audit events: %+v", events)
				}
				return
			}
			if len(events) != 1 || events[0].Type != security.EventAuthFailure || events[0].Detail != tt.wantAudit {
				t.Errorf("audit events = %+v, want one auth_failure %q", events, tt.wantAudit)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.ErrorCode != CodeUnauthorized || rr.Header().Get("WWW-Authenticate") == "" {
				t.Errorf("body = %+v, WWW-Authenticate = %q", body, rr.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestAuthConfig_IsConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  AuthConfig
		want bool
	}{
		{"empty", AuthConfig{}, false},
		{"bearer only", AuthConfig{BearerToken: "tok"}, true},
		{"basic complete", AuthConfig{BasicUser: "u", BasicPass: "p"}, true},
		{"basic partial user", AuthConfig{BasicUser: "u"}, false},
		{"basic partial pass", AuthConfig{BasicPass: "p"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.cfg.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}
