package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"stancegraph/internal/graph"
	"stancegraph/internal/ingest"
	"stancegraph/internal/oracle"
	"stancegraph/pkg/config"
	"stancegraph/pkg/logger"
)

// Reads a JSONL post feed, enriches each batch through the oracles and loads
// it into the graph.
func main() {
	feedPath := flag.String("feed", "", "path to the JSONL post feed")
	flag.Parse()

	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()

	if *feedPath == "" {
		log.Fatal("Missing required flag: -feed")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	repo := graph.NewRepository(driver, cfg.ConfidenceThreshold)
	if err := repo.EnsureSchema(ctx, cfg.EmbeddingDims); err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}

	posts, dropped, err := ingest.ReadFeedFile(*feedPath)
	if err != nil {
		log.Fatal("Failed to read feed", zap.Error(err))
	}
	log.Info("Read feed",
		zap.String("path", *feedPath),
		zap.Int("posts", len(posts)),
		zap.Int("dropped", dropped),
	)

	oracleClient := oracle.NewClient(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.ChatModelID, cfg.EmbeddingModelID)
	enricher := ingest.NewEnricher(oracleClient, cfg.EnrichConcurrency)

	start := time.Now()
	total := ingest.Stats{}
	for i, batch := range ingest.Batches(posts, cfg.FeedBatchSize) {
		enriched, stats, err := enricher.EnrichBatch(ctx, batch)
		if err != nil {
			log.Error("Failed to enrich batch", zap.Int("batch", i), zap.Error(err))
			logger.Sync()
			os.Exit(1)
		}
		if err := repo.LoadEnrichedPosts(ctx, enriched); err != nil {
			log.Error("Failed to load batch", zap.Int("batch", i), zap.Error(err))
			logger.Sync()
			os.Exit(1)
		}

		total.Posts += stats.Posts
		total.Mentions += stats.Mentions
		total.Stances += stats.Stances
		total.MalformedDropped += stats.MalformedDropped
	}

	log.Info("Ingestion completed",
		zap.Int("posts", total.Posts),
		zap.Int("mentions", total.Mentions),
		zap.Int("stances", total.Stances),
		zap.Int("malformed_dropped", total.MalformedDropped),
		zap.Duration("duration", time.Since(start)),
	)
}
