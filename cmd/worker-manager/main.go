// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"movienight-workers/internal/common/camunda"
	"movienight-workers/internal/common/config"
	"movienight-workers/internal/common/database"
	"movienight-workers/internal/common/genai"
	"movienight-workers/internal/common/logger"
	"movienight-workers/internal/common/observability"
	"movienight-workers/internal/common/tmdb"
	"movienight-workers/internal/recommend"
	"movienight-workers/internal/recommend/credits"
	"movienight-workers/internal/recommend/fanout"
	"movienight-workers/internal/recommend/pool"
	"movienight-workers/internal/recommend/profile"
	"movienight-workers/internal/recommend/selection"
	"movienight-workers/internal/recommend/sourcing"
	"movienight-workers/internal/store"

	rm "movienight-workers/internal/workers/recommendation/recommend-movies"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logging config is not known yet
		bootLog := logger.New("info", "console", "")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("movienight-workers")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      time.Duration(cfg.Camunda.RequestTimeout) * time.Millisecond,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init External Service Clients ---
	catalogAPI := tmdb.NewClient(cfg.APIs.TMDB)
	explainer := genai.NewClient(cfg.APIs.GenAI)
	zapLog.Info("All external service clients initialized")

	// --- Stores ---
	rc := cfg.Recommendation
	catalog := store.NewCatalog(pg.DB)
	history := store.NewHistoryStore(pg.DB)
	signals := store.NewSignalCache(redis.Client)
	creditsCache := store.NewCreditsCache(redis.Client, catalogAPI, time.Duration(rc.CreditsCacheTTL)*time.Second)
	advisories := store.NewAdvisoryIndex(esClient.Client, cfg.Database.Elasticsearch.AdvisoryIndex)

	// --- Pipeline ---
	group := fanout.NewGroup(rc.MaxConcurrentFetches, time.Duration(rc.FetchTimeout)*time.Millisecond, log)

	selector := selection.NewStage(advisories, explainer, history, selection.Options{
		ResultSize:       rc.ResultSize,
		Retention:        time.Duration(rc.HistoryRetentionDays) * 24 * time.Hour,
		PurgeProbability: rc.PurgeProbability,
	}, log)

	pipeline := recommend.New(recommend.Stages{
		Profiles: profile.NewAggregator(pg.DB, catalog, group, time.Duration(rc.HistoryWindowDays)*24*time.Hour, log),
		Sourcer: sourcing.NewSourcer(catalogAPI, group, sourcing.Options{
			PowerUserSeenThreshold: rc.PowerUserSeenThreshold,
			PressureThreshold:      rc.PressureThreshold,
			EmergencyPages:         rc.EmergencyPages,
		}, log),
		Assembler: pool.NewAssembler(signals, catalog, group, log),
		Credits:   credits.NewStage(creditsCache, group, rc.GatePoolSize, log),
		Selector:  selector,
	}, recommend.Options{
		ResultSize:         rc.ResultSize,
		GatePoolSize:       rc.GatePoolSize,
		EmergencyThreshold: rc.EmergencyThreshold,
	}, obs.Tracer(), log)

	// --- Workers ---
	wcfg := cfg.Workers[rm.TaskType]
	handler, err := rm.NewHandler(rm.HandlerOptions{
		Config:        rm.ConfigFromWorker(wcfg),
		Recommender:   pipeline,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("failed to create recommend-movies handler", zap.Error(err))
	}
	recommendWorker := camunda.StartWorker(zeebe.GetClient(), rm.TaskType, wcfg, handler, log)

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true
		probe := func(name string, err error) {
			if err != nil {
				checks[name] = err.Error()
				ready = false
				return
			}
			checks[name] = "ok"
		}
		probe("zeebe", zeebe.HealthCheck(checkCtx))
		probe("postgres", pg.Ping(checkCtx))
		probe("redis", redis.Ping(checkCtx))
		probe("elasticsearch", esClient.Ping(checkCtx))
		// an open breaker degrades sourcing but does not make the worker unready
		checks["tmdb_breaker"] = catalogAPI.BreakerState()

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	server := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recommendWorker.Stop()
	// pending history writes
	selector.Wait()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}
