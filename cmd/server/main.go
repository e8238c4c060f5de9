// cmd/server/main.go
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	http_api "rtm-dispatcher/internal/api/http"
	"rtm-dispatcher/internal/codec"
	"rtm-dispatcher/internal/config"
	"rtm-dispatcher/internal/delivery"
	"rtm-dispatcher/internal/dispatcher"
	"rtm-dispatcher/internal/domain"
	"rtm-dispatcher/internal/handler"
	"rtm-dispatcher/internal/idempotency"
	"rtm-dispatcher/internal/infra/etcd"
	infra_http "rtm-dispatcher/internal/infra/http"
	"rtm-dispatcher/internal/registry"
	"rtm-dispatcher/internal/tracing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// corsMiddleware wraps an http.Handler with CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*") // For local dev, allow all origins
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		// Handle pre-flight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Call the next handler
		next.ServeHTTP(w, r)
	})
}

func main() {
	// 1. Initialize logger and tracer
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	tracerShutdown, err := tracing.InitTracer("rtm-dispatcher")
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	log.Println("Starting RTM dispatcher...")

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 3. Create root context for lifecycle management
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Setup graceful shutdown
	setupGracefulShutdown(cancel)

	// 5. Init etcd client (shared state: cases, ownership, audience, history)
	etcdClient, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
	if err != nil {
		log.Fatalf("Failed to create etcd client: %v", err)
	}
	defer etcdClient.Close()
	log.Println("Connected to etcd.")

	// 6. Select the idempotency guard
	var guard domain.IdempotencyGuard
	switch cfg.IdempotencyBackend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		guard = idempotency.NewRedis(redisClient, cfg.IdempotencyWindow, logger)
	case "etcd":
		guard = idempotency.NewEtcd(etcdClient, cfg.IdempotencyWindow, logger)
	case "memory":
		guard = idempotency.NewMemory(cfg.IdempotencyWindow, cfg.IdempotencyCapacity, logger)
	default:
		log.Fatalf("Unknown idempotency backend: %q", cfg.IdempotencyBackend)
	}

	// 7. Collaborator adapters
	surveyClient := infra_http.NewSurveyClient(cfg.SurveysBaseURL, cfg.ClientRetries, cfg.ClientBackoff, logger)
	feedClient := infra_http.NewFeedClient(cfg.FeedsBaseURL, cfg.ClientRetries, cfg.ClientBackoff, logger)
	notifierClient := infra_http.NewNotifierClient(cfg.NotifierBaseURL, cfg.ClientRetries, cfg.ClientBackoff, logger)

	audienceDir := etcd.NewAudienceDirectory(etcdClient, logger)
	go audienceDir.WatchMembers(rootCtx)

	caseRepo := etcd.NewEtcdCaseRepository(etcdClient, logger)
	ownershipRepo := etcd.NewEtcdOwnershipRepository(etcdClient, logger)
	outcomeRepo := etcd.NewEtcdOutcomeRepository(etcdClient, logger)

	// 8. Delivery queue behind Broadcast
	queue := delivery.NewQueue(notifierClient, cfg.DeliveryQueueCapacity, cfg.DeliveryWorkers, cfg.DeliverySendTimeout, logger)
	go func() {
		if err := queue.Start(rootCtx); err != nil && err != context.Canceled {
			log.Printf("delivery queue stopped with error: %v", err)
		}
	}()

	// 9. Handlers and registry. A missing or duplicate handler aborts startup here.
	reg, err := registry.New(
		handler.NewSendSurvey(surveyClient, surveyClient, logger),
		handler.NewBroadcast(audienceDir, feedClient, queue, logger),
		handler.NewNudge(notifierClient, logger),
		handler.NewEscalate(caseRepo, logger),
		handler.NewReassign(ownershipRepo, logger),
	)
	if err != nil {
		log.Fatalf("Failed to build operation registry: %v", err)
	}

	dispatchService := dispatcher.New(guard, reg, codec.Decode, outcomeRepo, cfg.HandlerTimeout, logger)

	// 10. Periodic maintenance: purge expired guard records (memory backend) and
	// trim outcome history. The etcd lock keeps multi-node deployments to one
	// active sweeper per tick.
	jobs := []idempotency.SweepJob{{
		Name: "outcome-history",
		Run: func(ctx context.Context) (int, error) {
			return outcomeRepo.PruneOlderThan(ctx, time.Now().Add(-cfg.HistoryRetention))
		},
	}}
	if sweepable, ok := guard.(domain.IdempotencySweeper); ok {
		jobs = append([]idempotency.SweepJob{idempotency.GuardJob(sweepable)}, jobs...)
	}
	sweeper, err := idempotency.NewSweeper(cfg.SweepSchedule, etcd.NewEtcdLocker(etcdClient), logger, jobs...)
	if err != nil {
		log.Fatalf("Failed to create sweeper: %v", err)
	}
	go func() {
		if err := sweeper.Start(rootCtx); err != nil && err != context.Canceled {
			log.Printf("sweeper stopped with error: %v", err)
		}
	}()

	// 11. Register routes and metrics endpoint
	operationHandler := http_api.NewOperationHandler(dispatchService, outcomeRepo, logger)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	operationHandler.RegisterRoutes(mux)

	// 12. Start HTTP API server with CORS middleware
	log.Printf("Starting HTTP API server on %s", cfg.HttpListenAddr)
	server := &http.Server{
		Addr:    cfg.HttpListenAddr,
		Handler: corsMiddleware(mux), // Apply CORS middleware
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 13. Block until shutdown
	<-rootCtx.Done()
	log.Println("Shutting down application gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}

	log.Println("Application shut down.")
}

func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v. Initiating graceful shutdown...", sig)
		cancel()
	}()
}
