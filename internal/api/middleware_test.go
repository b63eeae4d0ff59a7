package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleet-control-service/internal/adapters/counter"
	"fleet-control-service/internal/domain"
	"fleet-control-service/internal/ratelimit"
)

func TestClientKey(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"forwarded single", "10.0.0.1:4567", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain uses first", "10.0.0.1:4567", "203.0.113.7, 70.1.2.3", "203.0.113.7"},
		{"forwarded with spaces", "10.0.0.1:4567", "  203.0.113.7 ,70.1.2.3", "203.0.113.7"},
		{"no forwarding strips port", "10.0.0.1:4567", "", "10.0.0.1"},
		{"remote addr without port", "10.0.0.1", "", "10.0.0.1"},
		{"nothing", "", "", "unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := ClientKey(r); got != tc.want {
				t.Errorf("ClientKey = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	guard := ratelimit.NewGuard(counter.NewMemoryCounterStore())
	throttle := rateLimitMiddleware(guard, nil, "test", 15*time.Second, 3)

	handler := throttle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	for i := 0; i < 3; i++ {
		if w := do("203.0.113.7"); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d, want 204", i+1, w.Code)
		}
	}

	w := do("203.0.113.7")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "15" {
		t.Fatalf("Retry-After = %q, want 15", w.Header().Get("Retry-After"))
	}

	// Other clients are unaffected.
	if w := do("203.0.113.8"); w.Code != http.StatusNoContent {
		t.Fatalf("other client status = %d, want 204", w.Code)
	}
}

func TestLocalLayerRejectsBeforeGuard(t *testing.T) {
	guard := ratelimit.NewGuard(counter.NewMemoryCounterStore())
	local := ratelimit.NewLocalLimiter(1, 1)
	throttle := rateLimitMiddleware(guard, local, "test", 15*time.Second, 100)

	handler := throttle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d, want 204", w.Code)
	}

	// Burst of 1 exhausted; the local layer answers before redis is asked.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRequireCapabilities(t *testing.T) {
	protected := requireCapabilities(HasRole(domain.RoleOperator, domain.RoleAdmin))

	var seen Identity
	handler := protected(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(operatorID, role string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		if operatorID != "" {
			r.Header.Set("X-Operator-ID", operatorID)
		}
		if role != "" {
			r.Header.Set("X-Role", role)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	if w := do("op-1", "operator"); w.Code != http.StatusNoContent {
		t.Fatalf("operator status = %d, want 204", w.Code)
	}
	if seen.OperatorID != "op-1" || seen.Role != domain.RoleOperator {
		t.Fatalf("identity = %+v", seen)
	}

	// Role header is case-insensitive.
	if w := do("adm-1", "Admin"); w.Code != http.StatusNoContent {
		t.Fatalf("admin status = %d, want 204", w.Code)
	}

	if w := do("chk-1", "checker"); w.Code != http.StatusForbidden {
		t.Fatalf("checker status = %d, want 403", w.Code)
	}
	if w := do("", ""); w.Code != http.StatusForbidden {
		t.Fatalf("anonymous status = %d, want 403", w.Code)
	}
}
