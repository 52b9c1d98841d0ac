package main

import (
	"context"
	"fmt"
	"net/http"
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
	"stancegraph/internal/orchestrator"
	"stancegraph/internal/pipeline"
	"stancegraph/internal/resolver"
	"stancegraph/internal/server"
	"stancegraph/internal/summarizer"
	"stancegraph/pkg/config"
	"stancegraph/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify Neo4j connection and apply schema
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	repo := graph.NewRepository(driver, cfg.ConfidenceThreshold)
	if err := repo.EnsureSchema(ctx, cfg.EmbeddingDims); err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}

	// Oracles and query orchestration
	oracleClient := oracle.NewClient(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.ChatModelID, cfg.EmbeddingModelID)
	stepTimeout := time.Duration(cfg.OracleTimeoutSec) * time.Second
	queryOrc := orchestrator.NewOrchestrator(repo, oracleClient, cfg.QueryTopK, stepTimeout)

	// Offline analysis pipeline, exposed for on-demand runs
	overrides, err := resolver.LoadOverrides(cfg.MergeOverridesPath)
	if err != nil {
		log.Fatal("Failed to load merge overrides", zap.Error(err))
	}
	analysis := pipeline.NewAnalysis(
		repo,
		resolver.NewResolver(repo, cfg.EntitySimilarityThreshold, overrides),
		alliance.NewBuilder(repo, cfg.ConfidenceThreshold),
		community.NewDetector(repo, cfg.LeidenGamma, cfg.LeidenSeed, cfg.SingletonPolicy),
		summarizer.NewSummarizer(repo, oracleClient, cfg.PopularityTopK, cfg.ExemplarCount, cfg.SummaryConcurrency),
	)

	router := server.NewRouter(server.Deps{
		Orchestrator: queryOrc,
		Communities:  repo,
		Analysis:     analysis,
		Logger:       log,
		Production:   cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
