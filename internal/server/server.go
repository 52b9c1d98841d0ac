package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"stancegraph/internal/graph"
	"stancegraph/internal/orchestrator"
	"stancegraph/internal/pipeline"
	apperrors "stancegraph/pkg/errors"
)

// QueryOrchestrator answers user queries over the graph
type QueryOrchestrator interface {
	Answer(ctx context.Context, query string) (*orchestrator.Result, error)
}

// CommunityReader lists the current community partition
type CommunityReader interface {
	ListCommunities(ctx context.Context) ([]graph.Community, error)
}

// AnalysisRunner runs the offline analysis pipeline
type AnalysisRunner interface {
	Run(ctx context.Context) ([]pipeline.StageResult, error)
}

// Deps are the collaborators the HTTP surface exposes
type Deps struct {
	Orchestrator QueryOrchestrator
	Communities  CommunityReader
	Analysis     AnalysisRunner
	Logger       *zap.Logger
	Production   bool
}

// NewRouter builds the HTTP API
func NewRouter(deps Deps) *gin.Engine {
	if deps.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(requestLogger(deps.Logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/query", handleQuery(deps))
		api.GET("/communities", handleCommunities(deps))
		api.POST("/analysis/run", handleAnalysis(deps))
	}

	return router
}

func handleQuery(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Header("X-Request-ID", requestID)

		var req struct {
			Query string `json:"query" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "request_id": requestID})
			return
		}

		result, err := deps.Orchestrator.Answer(c.Request.Context(), req.Query)
		if err != nil {
			deps.Logger.Error("Query failed",
				zap.String("request_id", requestID),
				zap.Error(err),
			)
			// Generation failed after successful retrieval: return the evidence
			if result != nil && result.GenerationFailed {
				c.JSON(http.StatusBadGateway, gin.H{
					"error":      "answer generation failed",
					"request_id": requestID,
					"result":     result,
				})
				return
			}
			if apperrors.IsOracleUnavailable(err) {
				c.JSON(http.StatusBadGateway, gin.H{"error": "oracle unavailable", "request_id": requestID})
				return
			}
			if apperrors.IsErrorType(err, apperrors.ErrorTypeStore) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "graph store unavailable", "request_id": requestID})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to answer query", "request_id": requestID})
			return
		}

		c.JSON(http.StatusOK, gin.H{"request_id": requestID, "result": result})
	}
}

func handleCommunities(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		communities, err := deps.Communities.ListCommunities(c.Request.Context())
		if err != nil {
			deps.Logger.Error("Failed to list communities", zap.Error(err))
			if apperrors.IsErrorType(err, apperrors.ErrorTypeStore) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "graph store unavailable"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list communities"})
			return
		}
		if communities == nil {
			communities = []graph.Community{}
		}
		c.JSON(http.StatusOK, gin.H{"communities": communities})
	}
}

func handleAnalysis(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := deps.Analysis.Run(c.Request.Context())
		if err != nil {
			if strings.Contains(err.Error(), "already in progress") {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			if apperrors.IsErrorType(err, apperrors.ErrorTypeAnalysis) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "completed": results})
				return
			}
			if apperrors.IsErrorType(err, apperrors.ErrorTypeStore) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "graph store unavailable", "completed": results})
				return
			}
			deps.Logger.Error("Analysis run failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis run failed", "completed": results})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stages": results})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// requestLogger logs one line per request
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
