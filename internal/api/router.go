package api

import (
	"net/http"
	"time"

	"fleet-control-service/internal/api/handlers"
	"fleet-control-service/internal/domain"
	"fleet-control-service/internal/ratelimit"
	"fleet-control-service/internal/services"
)

// Config wires the router's dependencies and throttling knobs.
type Config struct {
	Activation *services.ActivationService
	CheckIns   *services.CheckInService
	Guard      *ratelimit.Guard
	Local      *ratelimit.LocalLimiter

	// Window and MaxAttempts apply per scope+client; zero values take the
	// defaults below.
	Window      time.Duration
	MaxAttempts int64
}

const (
	defaultWindow      = 15 * time.Second
	defaultMaxAttempts = 5
)

// NewRouter wires HTTP handlers with their dependencies and returns an
// http.Handler. This is the API composition root (handlers stay unaware of
// concrete adapters).
func NewRouter(cfg Config) http.Handler {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	identity := func(r *http.Request) (string, bool) {
		id := IdentityFrom(r)
		return id.OperatorID, id.IsAdmin()
	}

	actHandler := &handlers.ActivationHandler{
		Service:        cfg.Activation,
		CallerIdentity: identity,
	}
	checkInHandler := &handlers.CheckInHandler{
		Service:        cfg.CheckIns,
		CallerIdentity: identity,
	}

	throttleActivation := rateLimitMiddleware(cfg.Guard, cfg.Local, "activation", cfg.Window, cfg.MaxAttempts)
	throttleCheckIn := rateLimitMiddleware(cfg.Guard, cfg.Local, "checkin", cfg.Window, cfg.MaxAttempts)

	asOperator := requireCapabilities(HasRole(domain.RoleOperator, domain.RoleAdmin))
	asChecker := requireCapabilities(HasRole(domain.RoleChecker, domain.RoleAdmin))

	mux := http.NewServeMux()

	mux.HandleFunc("/health", handlers.Health)

	mux.Handle("/activations/claim", throttleActivation(asOperator(http.HandlerFunc(actHandler.Claim))))
	mux.Handle("/activations/release", throttleActivation(asOperator(http.HandlerFunc(actHandler.Release))))
	mux.Handle("/activations/reopen", throttleActivation(asOperator(http.HandlerFunc(actHandler.Reopen))))
	mux.Handle("/activations/direction", throttleActivation(asOperator(http.HandlerFunc(actHandler.Direction))))
	mux.HandleFunc("/vehicles/status", actHandler.VehicleStatus)

	mux.Handle("/checkins", throttleCheckIn(asChecker(http.HandlerFunc(checkInHandler.Create))))
	mux.Handle("/checkins/payload", throttleCheckIn(asChecker(http.HandlerFunc(checkInHandler.CreateFromPayload))))
	mux.HandleFunc("/checkins/recent", checkInHandler.Recent)
	// POST /checkins/{id}/paid; the handler parses the path itself.
	mux.Handle("/checkins/", throttleCheckIn(asChecker(http.HandlerFunc(checkInHandler.MarkPaid))))

	return loggingMiddleware(mux)
}
