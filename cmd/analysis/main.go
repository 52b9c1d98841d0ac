package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"stancegraph/internal/alliance"
	"stancegraph/internal/community"
	"stancegraph/internal/graph"
	"stancegraph/internal/oracle"
	"stancegraph/internal/pipeline"
	"stancegraph/internal/resolver"
	"stancegraph/internal/summarizer"
	"stancegraph/pkg/config"
	"stancegraph/pkg/logger"
)

// Runs the offline analysis pipeline once and exits: entity resolution,
// alliance projection, community detection, community summarization.
func main() {
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting analysis run...")

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

	overrides, err := resolver.LoadOverrides(cfg.MergeOverridesPath)
	if err != nil {
		log.Fatal("Failed to load merge overrides", zap.Error(err))
	}

	oracleClient := oracle.NewClient(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.ChatModelID, cfg.EmbeddingModelID)

	analysis := pipeline.NewAnalysis(
		repo,
		resolver.NewResolver(repo, cfg.EntitySimilarityThreshold, overrides),
		alliance.NewBuilder(repo, cfg.ConfidenceThreshold),
		community.NewDetector(repo, cfg.LeidenGamma, cfg.LeidenSeed, cfg.SingletonPolicy),
		summarizer.NewSummarizer(repo, oracleClient, cfg.PopularityTopK, cfg.ExemplarCount, cfg.SummaryConcurrency),
	)

	start := time.Now()
	results, err := analysis.Run(ctx)
	for _, r := range results {
		log.Info("Stage finished", zap.String("stage", r.Stage), zap.Duration("duration", r.Duration))
	}
	if err != nil {
		log.Error("Analysis run failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	log.Info("Analysis run completed", zap.Duration("total", time.Since(start)))
}
