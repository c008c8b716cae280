// cmd/scorecard-server/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cashflow-scorecard/internal/api"
	"cashflow-scorecard/internal/common/aws"
	"cashflow-scorecard/internal/common/camunda"
	"cashflow-scorecard/internal/common/config"
	"cashflow-scorecard/internal/common/database"
	"cashflow-scorecard/internal/common/logger"
	"cashflow-scorecard/internal/common/observability"
	"cashflow-scorecard/internal/frontend"
	"cashflow-scorecard/internal/models"
	"cashflow-scorecard/internal/runs"
	"cashflow-scorecard/internal/scoring/pipeline"
	"cashflow-scorecard/internal/storage"
)

type readinessCheck func(ctx context.Context) error

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.MustNew(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting scorecard server...", zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()
	checks := map[string]readinessCheck{}
	deps := runs.Deps{}

	if cfg.Database.Redis.Enabled {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			zapLog.Fatal("redis connection failed", zap.Error(err))
		}
		defer rc.Close()
		deps.Store = runs.NewRedisStore(rc.GetClient(), time.Duration(cfg.Database.Redis.ResultTTL)*time.Second)
		checks["redis"] = rc.Ping
		zapLog.Info("Redis connected successfully")
	}

	if cfg.Database.Postgres.Enabled {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			zapLog.Fatal("postgres connection failed", zap.Error(err))
		}
		defer pg.Close()
		ledger := runs.NewLedger(pg)
		if err := ledger.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("run ledger schema", zap.Error(err))
		}
		deps.History = ledger
		checks["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")
	}

	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client", zap.Error(err))
		}
		deps.Publisher = snsClient
		deps.TopicARN = cfg.Notifications.SNS.TopicARN
	}

	if cfg.Camunda.ReviewProcessID != "" {
		zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		if err != nil {
			zapLog.Fatal("zeebe connection failed", zap.Error(err))
		}
		defer zeebe.Close()
		deps.Workflow = zeebe
		deps.ProcessID = cfg.Camunda.ReviewProcessID
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe connected", zap.String("reviewProcess", cfg.Camunda.ReviewProcessID))
	}

	runService := runs.NewService(deps, log)
	store := storage.New(cfg.Storage.UploadDir, cfg.Storage.OutputDir)
	scorer := pipeline.New(store, obs, log, cfg.Scoring.PolicyNote)

	windows := make([]models.Window, 0, len(cfg.Scoring.Windows))
	for _, w := range cfg.Scoring.Windows {
		windows = append(windows, models.Window(w))
	}

	router := mux.NewRouter()
	api.RegisterRoutes(router, api.NewScoreController(scorer, store, runService, windows, int(cfg.Server.MaxUploadMB), log))

	renderer := frontend.NewRenderer()
	client := frontend.NewScoringClient(cfg.Frontend.ScoringURL, config.GetDuration(cfg.Frontend.Timeout))
	frontend.RegisterRoutes(router, frontend.NewHandlers(
		frontend.NewController(client, renderer, log), renderer, runService, int(cfg.Server.MaxUploadMB), log))

	router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ready", handleReady(checks)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	srv := makeServer(cfg.Server, router, zapLog)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during server shutdown", zap.Error(err))
	}
	zapLog.Info("Scorecard server stopped")
}

func makeServer(cfg config.ServerConfig, r *mux.Router, zapLog *zap.Logger) *http.Server {
	var corsOptions []handlers.CORSOption
	corsOptions = append(corsOptions, handlers.AllowedHeaders([]string{"Accept-Encoding", "Content-Encoding", "X-Requested-With", "Content-Type"}))
	if len(cfg.AllowedOrigins) > 0 {
		corsOptions = append(corsOptions, handlers.AllowedOrigins(cfg.AllowedOrigins))
	}
	corsOptions = append(corsOptions, handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "OPTIONS"}))
	corsOptions = append(corsOptions, handlers.ExposedHeaders([]string{api.RunIDHeader}))

	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(zap.NewStdLog(zapLog)), handlers.PrintRecoveryStack(true))

	return &http.Server{
		Handler:      recovery(handlers.CompressHandler(handlers.CORS(corsOptions...)(r))),
		Addr:         cfg.Address,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// handleReady reports 503 while any configured backing service is down.
func handleReady(checks map[string]readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ready"}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				status["status"] = "not ready"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
