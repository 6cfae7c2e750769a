package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/parking-manager/internal/application"
)

func TestSessionMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without valid session tokens", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name         string
			cookieToken  *http.Cookie
			headerToken  string
			lookupError  error
			expectStatus int
			expectCode   string
		}{
			{
				name:         "missing credentials",
				expectStatus: http.StatusUnauthorized,
				expectCode:   "AUTH_REQUIRED",
			},
			{
				name:         "non bearer header",
				headerToken:  "Basic abc",
				expectStatus: http.StatusUnauthorized,
				expectCode:   "AUTH_REQUIRED",
			},
			{
				name:         "unknown token",
				headerToken:  "Bearer malformed",
				lookupError:  application.ErrNotFound,
				expectStatus: http.StatusUnauthorized,
				expectCode:   "AUTH_REQUIRED",
			},
			{
				name:         "revoked session",
				cookieToken:  &http.Cookie{Name: "session_token", Value: "revoked-token"},
				lookupError:  application.ErrSessionRevoked,
				expectStatus: http.StatusUnauthorized,
				expectCode:   "AUTH_SESSION_REVOKED",
			},
			{
				name:         "inactive account",
				cookieToken:  &http.Cookie{Name: "session_token", Value: "valid-token"},
				lookupError:  application.ErrAccountInactive,
				expectStatus: http.StatusForbidden,
				expectCode:   "ACCOUNT_INACTIVE",
			},
			{
				name:         "storage failure",
				headerToken:  "Bearer valid-token",
				lookupError:  application.ErrPersistence,
				expectStatus: http.StatusServiceUnavailable,
				expectCode:   "STORAGE_UNAVAILABLE",
			},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				if tc.cookieToken != nil {
					req.AddCookie(tc.cookieToken)
				}
				if tc.headerToken != "" {
					req.Header.Set("Authorization", tc.headerToken)
				}
				recorder := httptest.NewRecorder()

				handler := RequireSession(fakeSessionValidator{err: tc.lookupError}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler should not be called when authentication fails")
				}))
				handler.ServeHTTP(recorder, req)

				if recorder.Code != tc.expectStatus {
					t.Fatalf("status = %d, want %d", recorder.Code, tc.expectStatus)
				}
				var resp errorResponse
				if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.ErrorCode != tc.expectCode {
					t.Fatalf("error_code = %q, want %q", resp.ErrorCode, tc.expectCode)
				}
			})
		}
	})

	t.Run("attaches authenticated principal to request context", func(t *testing.T) {
		t.Parallel()

		principal := application.Principal{UserID: "@asha101", IsAdmin: true}

		req := httptest.NewRequest(http.MethodGet, "/protected", nil).WithContext(context.Background())
		req.AddCookie(&http.Cookie{Name: "session_token", Value: "valid-token"})
		recorder := httptest.NewRecorder()

		var captured application.Principal
		handler := RequireSession(fakeSessionValidator{principal: principal}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				t.Fatal("expected principal in request context")
			}
			captured = p
			w.WriteHeader(http.StatusOK)
		}))
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", recorder.Code)
		}
		if captured != principal {
			t.Fatalf("principal = %+v, want %+v", captured, principal)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var scoped *slog.Logger
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = LoggerFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/lots", nil))

	if scoped == nil {
		t.Fatal("expected request scoped logger in context")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var completed map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &completed); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if completed["status"] != float64(http.StatusTeapot) || completed["path"] != "/lots" || completed["request_id"] != float64(1) {
		t.Fatalf("unexpected log line %v", completed)
	}
}

type fakeSessionValidator struct {
	principal application.Principal
	err       error
}

func (f fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	return f.principal, f.err
}
