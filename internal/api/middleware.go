package api

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleet-control-service/internal/domain"
	"fleet-control-service/internal/ratelimit"
)

// statusWriter captures the final HTTP status code and number of bytes written.
// This helps distinguish "handler returned 200" from "client received a response".
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Record implicit 200 responses when handlers write without calling WriteHeader.
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// loggingMiddleware logs end-to-end request duration and response size for basic observability.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{
			ResponseWriter: w,
			status:         0,
		}

		next.ServeHTTP(sw, r)

		duration := time.Since(start).Milliseconds()

		log.Printf(
			"method=%s path=%s status=%d bytes=%d dur=%dms",
			r.Method, r.URL.RequestURI(), sw.status, sw.bytes, duration,
		)
	})
}

// ClientKey identifies the caller for rate limiting: the first entry of
// X-Forwarded-For when present, otherwise the connection address.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// rateLimitMiddleware throttles a scope through the distributed guard, with
// an optional local token-bucket layer in front of it.
func rateLimitMiddleware(guard *ratelimit.Guard, local *ratelimit.LocalLimiter, scope string, window time.Duration, maxAttempts int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKey(r)

			if local != nil && !local.Allow(scope+":"+key) {
				w.Header().Set("Retry-After", "1")
				writeError(w, r, http.StatusTooManyRequests, "too many requests")
				return
			}

			dec := guard.Check(r.Context(), scope, key, window, maxAttempts)
			if !dec.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(dec.RetryAfter.Seconds())))
				writeError(w, r, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Identity is the caller as asserted by the upstream identity layer. This
// service trusts those headers and does not re-authenticate.
type Identity struct {
	OperatorID string
	Role       domain.Role
}

func (id Identity) IsAdmin() bool { return id.Role == domain.RoleAdmin }

type identityKey struct{}

func callerIdentity(r *http.Request) Identity {
	return Identity{
		OperatorID: strings.TrimSpace(r.Header.Get("X-Operator-ID")),
		Role:       domain.Role(strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role")))),
	}
}

// IdentityFrom returns the caller identity stashed by requireCapabilities.
func IdentityFrom(r *http.Request) Identity {
	id, _ := r.Context().Value(identityKey{}).(Identity)
	return id
}

func contextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// Capability is one predicate in an ordered authorization chain.
type Capability func(Identity) bool

func HasRole(roles ...domain.Role) Capability {
	return func(id Identity) bool {
		for _, role := range roles {
			if id.Role == role {
				return true
			}
		}
		return false
	}
}

// requireCapabilities evaluates the capability chain in order before the
// handler runs; every predicate must pass.
func requireCapabilities(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := callerIdentity(r)

			for _, cap := range caps {
				if !cap(id) {
					writeError(w, r, http.StatusForbidden, "forbidden")
					return
				}
			}

			ctx := contextWithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(`{"error":` + strconv.Quote(msg) + `}`)); err != nil {
		log.Printf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}
