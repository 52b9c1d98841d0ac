package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeOracle represents oracle (NER/stance/embedding/generation) errors
	ErrorTypeOracle ErrorType = "oracle"
	// ErrorTypeStore represents graph store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeMerge represents entity resolution merge errors
	ErrorTypeMerge ErrorType = "merge"
	// ErrorTypeAnalysis represents offline analysis pipeline errors
	ErrorTypeAnalysis ErrorType = "analysis"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Category returns the error's type. Promoted to every typed error that
// embeds BaseError, so category checks work through wrapping.
func (e *BaseError) Category() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Oracle Errors

// ErrOracleUnavailable is returned when an oracle cannot be reached or times out
type ErrOracleUnavailable struct {
	*BaseError
	Oracle string
}

func NewOracleUnavailable(oracle string, err error) *ErrOracleUnavailable {
	return &ErrOracleUnavailable{
		BaseError: NewBaseError(ErrorTypeOracle, fmt.Sprintf("%s oracle unavailable", oracle), err),
		Oracle:    oracle,
	}
}

// ErrOracleMalformedOutput is returned when an oracle returns an unusable shape
// (missing confidence, out-of-range score, unparseable JSON)
type ErrOracleMalformedOutput struct {
	*BaseError
	Oracle string
	Reason string
}

func NewOracleMalformedOutput(oracle, reason string) *ErrOracleMalformedOutput {
	return &ErrOracleMalformedOutput{
		BaseError: NewBaseError(ErrorTypeOracle, fmt.Sprintf("%s oracle returned malformed output: %s", oracle, reason), nil),
		Oracle:    oracle,
		Reason:    reason,
	}
}

// Store Errors

// ErrStoreUnavailable is returned when the graph store cannot serve an operation
type ErrStoreUnavailable struct {
	*BaseError
	Operation string
}

func NewStoreUnavailable(operation string, err error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("store unavailable during %s", operation), err),
		Operation: operation,
	}
}

// Merge Errors

// ErrMergeConflict is returned when a merge candidate pair hits an explicit
// do-not-merge override. Reported per pair, never fatal for the run.
type ErrMergeConflict struct {
	*BaseError
	EntityA string
	EntityB string
}

func NewMergeConflict(entityA, entityB string) *ErrMergeConflict {
	return &ErrMergeConflict{
		BaseError: NewBaseError(ErrorTypeMerge, fmt.Sprintf("merge blocked by override: %s / %s", entityA, entityB), nil),
		EntityA:   entityA,
		EntityB:   entityB,
	}
}

// Analysis Errors

// ErrEmptyGraph is returned when the alliance graph has no edges
type ErrEmptyGraph struct {
	*BaseError
	Users int
}

func NewEmptyGraph(users int) *ErrEmptyGraph {
	return &ErrEmptyGraph{
		BaseError: NewBaseError(ErrorTypeAnalysis, fmt.Sprintf("alliance graph has no edges (%d users)", users), nil),
		Users:     users,
	}
}

// ErrNoPostsInCommunity is returned when a community has no member posts to summarize
type ErrNoPostsInCommunity struct {
	*BaseError
	CommunityID string
}

func NewNoPostsInCommunity(communityID string) *ErrNoPostsInCommunity {
	return &ErrNoPostsInCommunity{
		BaseError:   NewBaseError(ErrorTypeAnalysis, fmt.Sprintf("community has no posts: %s", communityID), nil),
		CommunityID: communityID,
	}
}

// ErrStagePrecondition is returned when a pipeline stage's preconditions do not hold
type ErrStagePrecondition struct {
	*BaseError
	Stage  string
	Reason string
}

func NewStagePrecondition(stage, reason string) *ErrStagePrecondition {
	return &ErrStagePrecondition{
		BaseError: NewBaseError(ErrorTypeAnalysis, fmt.Sprintf("stage %s precondition failed: %s", stage, reason), nil),
		Stage:     stage,
		Reason:    reason,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// IsErrorType checks if an error belongs to a category
func IsErrorType(err error, errType ErrorType) bool {
	var categorized interface{ Category() ErrorType }
	if errors.As(err, &categorized) {
		return categorized.Category() == errType
	}
	return false
}

// IsOracleUnavailable reports whether err is a transport/timeout oracle failure
func IsOracleUnavailable(err error) bool {
	var target *ErrOracleUnavailable
	return errors.As(err, &target)
}

// IsMalformedOutput reports whether err is an oracle shape violation
func IsMalformedOutput(err error) bool {
	var target *ErrOracleMalformedOutput
	return errors.As(err, &target)
}

// IsRetryable checks if an error is retryable on a re-run of the same operation
func IsRetryable(err error) bool {
	// Malformed oracle output will not improve on retry
	if IsMalformedOutput(err) {
		return false
	}
	// Transport failures and store hiccups are retryable
	if IsOracleUnavailable(err) {
		return true
	}
	if IsErrorType(err, ErrorTypeStore) {
		return true
	}
	return false
}
