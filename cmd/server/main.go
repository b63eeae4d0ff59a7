package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"fleet-control-service/internal/adapters/audit"
	"fleet-control-service/internal/adapters/counter"
	"fleet-control-service/internal/adapters/repositories"
	"fleet-control-service/internal/api"
	"fleet-control-service/internal/config"
	"fleet-control-service/internal/platform/db"
	"fleet-control-service/internal/ports"
	"fleet-control-service/internal/ratelimit"
	"fleet-control-service/internal/services"
)

// main is the application composition root.
// It wires concrete adapters (SQL, redis, audit webhook) behind ports and
// starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	store, err := db.Open(cfg.DSN())
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	// Initialize schema and seed demo data on startup for local sqlite runs.
	if cfg.DatabaseURL == "" {
		if err := repositories.InitSchema(store); err != nil {
			log.Fatal(err)
		}
		if err := repositories.SeedFromJSON(store, cfg.SeedPath); err != nil {
			log.Fatal(err)
		}
	}

	fleet := repositories.NewSQLFleetRepository(store)
	ledger := repositories.NewSQLLedgerRepository(store)
	settings := repositories.NewSQLSettingsRepository(store)

	var sink ports.AuditSink
	if cfg.AuditURL != "" {
		sink = audit.NewHTTPAuditSink(cfg.AuditURL)
	} else {
		sink = audit.NewLogAuditSink()
	}

	// Without redis the guard has no shared counter and fails open; the
	// optional local token bucket still provides per-process throttling.
	var guard *ratelimit.Guard
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		guard = ratelimit.NewGuard(counter.NewRedisCounterStore(rdb))
	} else {
		log.Println("REDIS_ADDR not set (rate limiting disabled)")
		guard = ratelimit.NewGuard(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var local *ratelimit.LocalLimiter
	if cfg.LocalRateRPS > 0 {
		local = ratelimit.NewLocalLimiter(cfg.LocalRateRPS, cfg.LocalRateBurst)
		local.StartJanitor(ctx)
	}

	activation := &services.ActivationService{Fleet: fleet, Audit: sink}
	checkIns := &services.CheckInService{
		Fleet:    fleet,
		Ledger:   ledger,
		Settings: settings,
		Audit:    sink,
	}

	router := api.NewRouter(api.Config{
		Activation:  activation,
		CheckIns:    checkIns,
		Guard:       guard,
		Local:       local,
		Window:      cfg.RateLimitWindow,
		MaxAttempts: cfg.RateLimitMax,
	})

	log.Printf("Server listening addr=:%s", cfg.Port)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}
