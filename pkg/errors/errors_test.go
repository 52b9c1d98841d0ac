package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsErrorType_ThroughWrapping(t *testing.T) {
	err := NewStagePrecondition("alliance-projection", "no stances")
	assert.True(t, IsErrorType(err, ErrorTypeAnalysis))
	assert.False(t, IsErrorType(err, ErrorTypeOracle))

	wrapped := fmt.Errorf("stage failed: %w", err)
	assert.True(t, IsErrorType(wrapped, ErrorTypeAnalysis))

	assert.False(t, IsErrorType(errors.New("plain"), ErrorTypeAnalysis))
	assert.False(t, IsErrorType(nil, ErrorTypeAnalysis))
}

func TestIsOracleUnavailable(t *testing.T) {
	err := NewOracleUnavailable("ner", errors.New("connection refused"))
	assert.True(t, IsOracleUnavailable(err))
	assert.True(t, IsOracleUnavailable(fmt.Errorf("query failed: %w", err)))
	assert.False(t, IsOracleUnavailable(NewOracleMalformedOutput("ner", "bad json")))
}

func TestIsMalformedOutput(t *testing.T) {
	err := NewOracleMalformedOutput("stance", "missing confidence")
	assert.True(t, IsMalformedOutput(err))
	assert.True(t, IsMalformedOutput(fmt.Errorf("enrichment failed: %w", err)))
	assert.False(t, IsMalformedOutput(NewOracleUnavailable("stance", errors.New("down"))))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewOracleUnavailable("ner", errors.New("timeout"))))
	assert.True(t, IsRetryable(NewStoreUnavailable("load", errors.New("down"))))
	assert.True(t, IsRetryable(fmt.Errorf("stage failed: %w", NewStoreUnavailable("load", errors.New("down")))))
	assert.False(t, IsRetryable(NewOracleMalformedOutput("ner", "bad json")))
	assert.False(t, IsRetryable(NewConfigMissingRequired("NEO4J_URI")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestStoreUnavailableCategory(t *testing.T) {
	err := NewStoreUnavailable("vector search", errors.New("connection refused"))
	assert.True(t, IsErrorType(err, ErrorTypeStore))
	assert.True(t, IsErrorType(fmt.Errorf("query failed: %w", err), ErrorTypeStore))
	assert.Equal(t, "vector search", err.Operation)
}

func TestBaseError_Message(t *testing.T) {
	err := NewMergeConflict("Biden", "Joe Biden")
	assert.Contains(t, err.Error(), "Biden")
	assert.Equal(t, ErrorTypeMerge, err.Category())
	assert.Equal(t, "Biden", err.EntityA)
}
