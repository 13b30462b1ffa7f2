package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"discourse-search-platform/internal/ai"
	"discourse-search-platform/internal/config"
	"discourse-search-platform/internal/logger"
	"discourse-search-platform/internal/queue"
	"discourse-search-platform/internal/search"
	"discourse-search-platform/internal/telemetry"
	"discourse-search-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("discourse-search-worker")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Search cluster
	searchClient, err := search.NewClient(cfg)
	if err != nil {
		log.Fatal("Failed to create search client:", err)
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := searchClient.EnsureIndex(ctx); err != nil {
			log.Fatal("Failed to ensure search index:", err)
		}
	}

	embedder, err := ai.NewEmbeddingClient(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to init embedding client:", err)
	}
	defer embedder.Close()

	db := mongoClient.Database(cfg.DBName)
	store := services.NewStateStore(db)
	resolver := services.NewConfigResolver(cfg.CorpusRoot)
	ocrCache := services.NewOCRPageCache(db)
	ocrClient := services.NewOCRClient(cfg, ocrCache)
	indexer := services.NewIndexer(searchClient)
	pipeline := services.NewPipeline(cfg, resolver, store, ocrClient, embedder, indexer, metrics)

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Asynq client feeds discovery results into the queue
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	dispatcher := queue.NewDispatcher(asynqClient)
	discovery := services.NewDiscovery(cfg, resolver, store, dispatcher, metrics)

	// Periodic corpus scans
	scheduler := services.NewScheduler()
	if err := scheduler.ScheduleScan(cfg.ScanInterval, discovery); err != nil {
		log.Fatal("Failed to schedule corpus scan:", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(pipeline)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.HandleIngestDocument)
	mux.HandleFunc(queue.TaskUpdateMetadata, processor.HandleUpdateMetadata)
	mux.HandleFunc(queue.TaskDeleteDocument, processor.HandleDeleteDocument)

	logger.Info("Starting worker",
		"concurrency", cfg.WorkerConcurrency,
		"scan_interval", cfg.ScanInterval.String(),
		"redis", cfg.RedisURL)

	if err := server.Start(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker")
	server.Shutdown()
}
