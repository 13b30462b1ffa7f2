package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"discourse-search-platform/internal/ai"
	"discourse-search-platform/internal/config"
	"discourse-search-platform/internal/logger"
	"discourse-search-platform/internal/queue"
	"discourse-search-platform/internal/search"
	"discourse-search-platform/services"
)

func main() {
	syncMode := flag.Bool("sync", false, "run the pipeline inline instead of enqueueing tasks")
	reportPath := flag.String("report", "", "write an xlsx corpus status report to this path and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	db := mongoClient.Database(cfg.DBName)
	store := services.NewStateStore(db)

	if *reportPath != "" {
		rows, err := services.NewExportService(store).WriteStatusReport(context.Background(), *reportPath)
		if err != nil {
			logger.Error("Report failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %d rows to %s\n", rows, *reportPath)
		return
	}

	resolver := services.NewConfigResolver(cfg.CorpusRoot)
	ctx := context.Background()

	var dispatcher services.Dispatcher
	var wait func() error

	if *syncMode {
		searchClient, err := search.NewClient(cfg)
		if err != nil {
			log.Fatal("Failed to create search client:", err)
		}
		if err := searchClient.EnsureIndex(ctx); err != nil {
			log.Fatal("Failed to ensure search index:", err)
		}

		embedder, err := ai.NewEmbeddingClient(ctx, cfg)
		if err != nil {
			log.Fatal("Failed to init embedding client:", err)
		}
		defer embedder.Close()

		ocrClient := services.NewOCRClient(cfg, services.NewOCRPageCache(db))
		indexer := services.NewIndexer(searchClient)
		pipeline := services.NewPipeline(cfg, resolver, store, ocrClient, embedder, indexer, nil)

		inline := services.NewInlineDispatcher(ctx, pipeline, cfg.WorkerConcurrency)
		dispatcher = inline
		wait = inline.Wait
	} else {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer asynqClient.Close()

		dispatcher = queue.NewDispatcher(asynqClient)
		wait = func() error { return nil }
	}

	discovery := services.NewDiscovery(cfg, resolver, store, dispatcher, nil)
	stats, err := discovery.Scan(ctx)
	if err != nil {
		logger.Error("Scan aborted", "error", err)
		os.Exit(1)
	}
	if err := wait(); err != nil {
		logger.Error("Scan work failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("scan complete: new=%d content_changed=%d config_changed=%d unchanged=%d deleted=%d failed=%d\n",
		stats.New, stats.ContentChanged, stats.ConfigChanged, stats.Unchanged, stats.Deleted, stats.Failed)

	if stats.Failed > 0 {
		os.Exit(1)
	}
}
