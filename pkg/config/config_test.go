package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stancegraph/pkg/errors"
)

func validConfig() *Config {
	return &Config{
		Neo4jURI:                  "bolt://localhost:7687",
		Neo4jUser:                 "neo4j",
		Neo4jPassword:             "password",
		OracleBaseURL:             "http://localhost:4000",
		ConfidenceThreshold:       0.85,
		EntitySimilarityThreshold: 0.85,
		SingletonPolicy:           "singleton",
		PopularityTopK:            100,
		ExemplarCount:             5,
		QueryTopK:                 10,
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_MissingRequired(t *testing.T) {
	cases := []struct {
		field string
		strip func(*Config)
	}{
		{"NEO4J_URI", func(c *Config) { c.Neo4jURI = "" }},
		{"NEO4J_USER", func(c *Config) { c.Neo4jUser = "" }},
		{"NEO4J_PASSWORD", func(c *Config) { c.Neo4jPassword = "" }},
		{"ORACLE_BASE_URL", func(c *Config) { c.OracleBaseURL = "" }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.strip(cfg)
		err := cfg.Validate()
		require.Error(t, err, tc.field)
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig), tc.field)
		assert.Contains(t, err.Error(), tc.field)
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	cfg := validConfig()
	cfg.ConfidenceThreshold = 1.2
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.EntitySimilarityThreshold = -0.1
	require.Error(t, cfg.Validate())
}

func TestValidate_SingletonPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.SingletonPolicy = "discard"
	require.Error(t, cfg.Validate())

	cfg.SingletonPolicy = "noise"
	require.NoError(t, cfg.Validate())
}
