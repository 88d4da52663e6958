package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gameday-live-service/internal/app"
	"gameday-live-service/internal/config"
	"gameday-live-service/internal/domain"
	"gameday-live-service/internal/engine"
	"gameday-live-service/internal/infra/memory"
	pgloader "gameday-live-service/internal/infra/postgres"
	redisinfra "gameday-live-service/internal/infra/redis"
	transport "gameday-live-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the gameday question server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	stateTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.EventLoader = memory.NewStaticEventLoader(sampleEvents())
	if pool != nil {
		loader = pgloader.NewEventLoader(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog app.CatalogRepository
	if redisClient != nil {
		catalog = redisinfra.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalogRepository(loader, catalogTTL)
	}

	var states engine.StateStore
	if redisClient != nil {
		states = redisinfra.NewStateStore(redisClient, stateTTL)
	} else {
		states = memory.NewStateStore()
	}
	service := app.NewLiveService(memory.NewSessionStore(states), catalog)
	wsHandler := transport.NewWSHandler(service)
	operatorHandler := transport.NewOperatorHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	operatorHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// The engines own no timers; the server sweeps expired answer windows.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				service.SweepExpired(sweepCtx)
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	go func() {
		log.Printf("starting gameday question service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleEvents provides a minimal catalog; swap the loader for the Postgres-backed one in production.
func sampleEvents() map[string]domain.Event {
	return map[string]domain.Event{
		"gameday-1": {
			ID:      "gameday-1",
			Title:   "Sunday Night Showdown",
			Kickoff: time.Date(2026, time.September, 13, 20, 20, 0, 0, time.UTC),
			Questions: []domain.Question{
				{
					ID:      "q1-1",
					Quarter: domain.QuarterQ1,
					Ordinal: 1,
					Prompt:  "Will the opening drive end in a score?",
					Options: []domain.Option{
						{ID: "yes", Label: "Yes"},
						{ID: "no", Label: "No"},
					},
					Points:       10,
					TimeLimitSec: 60,
				},
				{
					ID:      "q1-2",
					Quarter: domain.QuarterQ1,
					Ordinal: 2,
					Prompt:  "First play of the game?",
					Options: []domain.Option{
						{ID: "run", Label: "Run"},
						{ID: "pass", Label: "Pass"},
					},
					Points:       10,
					TimeLimitSec: 30,
				},
				{
					ID:      "q2-1",
					Quarter: domain.QuarterQ2,
					Ordinal: 1,
					Prompt:  "Over or under 10 combined points this quarter?",
					Options: []domain.Option{
						{ID: "over", Label: "Over"},
						{ID: "under", Label: "Under"},
					},
					Points:       20,
					TimeLimitSec: 60,
				},
			},
		},
	}
}
