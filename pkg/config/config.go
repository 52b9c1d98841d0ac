package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	apperrors "stancegraph/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Oracles (OpenAI-compatible endpoint, e.g. LiteLLM or Ollama)
	OracleBaseURL    string
	OracleAPIKey     string
	ChatModelID      string
	EmbeddingModelID string
	EmbeddingDims    int
	OracleTimeoutSec int

	// Enrichment
	ConfidenceThreshold       float64 // minimum HAS_STANCE confidence for structural reasoning
	EntitySimilarityThreshold float64 // name similarity for merge candidates
	MergeOverridesPath        string  // JSON file with do-not-merge pairs, optional

	// Community detection
	LeidenGamma     float64
	LeidenSeed      int
	SingletonPolicy string // "singleton" or "noise" for edge-less users

	// Summarization
	PopularityTopK     int // step-2 popularity filter size
	ExemplarCount      int // step-4 exemplar count
	SummaryConcurrency int

	// Querying
	QueryTopK int

	// Ingestion
	FeedBatchSize     int
	EnrichConcurrency int

	// Discord
	DiscordBotToken string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", "password"),

		OracleBaseURL:    getEnv("ORACLE_BASE_URL", "http://localhost:4000"),
		OracleAPIKey:     getEnv("ORACLE_API_KEY", ""),
		ChatModelID:      getEnv("CHAT_MODEL_ID", "qwen3:4b-instruct"),
		EmbeddingModelID: getEnv("EMBEDDING_MODEL_ID", "all-mpnet-base-v2"),
		EmbeddingDims:    getEnvInt("EMBEDDING_DIMS", 768),
		OracleTimeoutSec: getEnvInt("ORACLE_TIMEOUT_SEC", 60),

		ConfidenceThreshold:       getEnvFloat("CONFIDENCE_THRESHOLD", 0.85),
		EntitySimilarityThreshold: getEnvFloat("ENTITY_SIMILARITY_THRESHOLD", 0.85),
		MergeOverridesPath:        getEnv("MERGE_OVERRIDES_PATH", ""),

		LeidenGamma:     getEnvFloat("LEIDEN_GAMMA", 1.4),
		LeidenSeed:      getEnvInt("LEIDEN_SEED", 42),
		SingletonPolicy: getEnv("SINGLETON_POLICY", "singleton"),

		PopularityTopK:     getEnvInt("POPULARITY_TOP_K", 100),
		ExemplarCount:      getEnvInt("EXEMPLAR_COUNT", 5),
		SummaryConcurrency: getEnvInt("SUMMARY_CONCURRENCY", 5),

		QueryTopK: getEnvInt("QUERY_TOP_K", 10),

		FeedBatchSize:     getEnvInt("FEED_BATCH_SIZE", 10),
		EnrichConcurrency: getEnvInt("ENRICH_CONCURRENCY", 5),

		DiscordBotToken: getEnv("DISCORD_BOT_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and thresholds are sane
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_URI")
	}
	if c.Neo4jUser == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_USER")
	}
	if c.Neo4jPassword == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
	}
	if c.OracleBaseURL == "" {
		return apperrors.NewConfigMissingRequired("ORACLE_BASE_URL")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,1], got %f", c.ConfidenceThreshold)
	}
	if c.EntitySimilarityThreshold < 0 || c.EntitySimilarityThreshold > 1 {
		return fmt.Errorf("ENTITY_SIMILARITY_THRESHOLD must be in [0,1], got %f", c.EntitySimilarityThreshold)
	}
	if c.SingletonPolicy != "singleton" && c.SingletonPolicy != "noise" {
		return fmt.Errorf("SINGLETON_POLICY must be 'singleton' or 'noise', got %q", c.SingletonPolicy)
	}
	if c.PopularityTopK < 1 {
		return fmt.Errorf("POPULARITY_TOP_K must be positive")
	}
	if c.ExemplarCount < 1 {
		return fmt.Errorf("EXEMPLAR_COUNT must be positive")
	}
	if c.QueryTopK < 1 {
		return fmt.Errorf("QUERY_TOP_K must be positive")
	}
	// Discord token is optional; only cmd/bot requires it
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
