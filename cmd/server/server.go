// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/rallyworks/courtguard/internal/api"
	adminapi "github.com/rallyworks/courtguard/internal/api/admin"
	bookingsapi "github.com/rallyworks/courtguard/internal/api/bookings"
	occupancyapi "github.com/rallyworks/courtguard/internal/api/occupancy"
	slotblocksapi "github.com/rallyworks/courtguard/internal/api/slotblocks"
	trustapi "github.com/rallyworks/courtguard/internal/api/trust"
	"github.com/rallyworks/courtguard/internal/audit"
	"github.com/rallyworks/courtguard/internal/config"
	"github.com/rallyworks/courtguard/internal/db"
	"github.com/rallyworks/courtguard/internal/lock"
	"github.com/rallyworks/courtguard/internal/occupancy"
	"github.com/rallyworks/courtguard/internal/ratelimit"
	"github.com/rallyworks/courtguard/internal/scheduler"
	"github.com/rallyworks/courtguard/internal/slotblock"
	"github.com/rallyworks/courtguard/internal/trust"
)

func newServer(cfg *config.Config) (*http.Server, func(), error) {
	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	lockStore, closeLocks := newLockStore(cfg)
	recorder := audit.NewRecorder()
	machine := trust.NewMachine(database, recorder, nil)
	limiter := ratelimit.New(nil)

	bookingsapi.InitHandlers(database, lockStore, limiter, machine, recorder)
	trustapi.InitHandlers(machine)
	slotblocksapi.InitHandlers(slotblock.NewEngine(database))
	occupancyapi.InitHandlers(occupancy.NewAggregator(database))
	adminapi.InitHandlers(database, machine)

	if err := scheduler.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing scheduler: %w", err)
	}
	if err := scheduler.RegisterTrustJobs(database, machine, cfg.Jobs.StrikeExpiryCron, cfg.Jobs.CompletionSweepCron); err != nil {
		return nil, nil, fmt.Errorf("registering trust jobs: %w", err)
	}

	router := http.NewServeMux()
	registerRoutes(router)

	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	cleanup := func() {
		limiter.Close()
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Database close error")
		}
		closeLocks()
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, cleanup, nil
}

// newLockStore picks the distributed Redis store when an address is
// configured, otherwise the single-node in-memory store.
func newLockStore(cfg *config.Config) (lock.Store, func()) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("No Redis configured, using in-memory booking locks")
		return lock.NewMemoryStore(nil), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis booking locks")
	return lock.NewRedisStore(client), func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("Redis close error")
		}
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Booking pipeline
	mux.HandleFunc("POST /api/v1/bookings/validate", bookingsapi.HandleValidate)
	mux.HandleFunc("POST /api/v1/bookings/check-conflicts", bookingsapi.HandleCheckConflicts)
	mux.HandleFunc("POST /api/v1/bookings/detect-abuse", bookingsapi.HandleDetectAbuse)
	mux.HandleFunc("POST /api/v1/bookings/resolve-conflicts", bookingsapi.HandleResolveConflicts)
	mux.HandleFunc("POST /api/v1/bookings", bookingsapi.HandleCreate)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", bookingsapi.HandleCancel)

	// Trust and strikes
	mux.HandleFunc("GET /api/v1/trust/can-book", trustapi.HandleCanBook)
	mux.HandleFunc("POST /api/v1/trust/no-show-reports", trustapi.HandleReportNoShow)
	mux.HandleFunc("POST /api/v1/trust/completions", trustapi.HandleProcessCompletion)

	// Slot blocks
	mux.HandleFunc("POST /api/v1/slot-blocks", slotblocksapi.HandleCreate)
	mux.HandleFunc("GET /api/v1/slot-blocks", slotblocksapi.HandleList)
	mux.HandleFunc("DELETE /api/v1/slot-blocks", slotblocksapi.HandleDelete)

	// Occupancy reporting
	mux.HandleFunc("GET /api/v1/occupancy", occupancyapi.HandleQuery)

	// Admin
	mux.HandleFunc("POST /api/v1/admin/expire-strikes", adminapi.HandleExpireStrikes)
	mux.HandleFunc("POST /api/v1/admin/members/invite", adminapi.HandleInviteMember)
}
