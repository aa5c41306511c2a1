package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go-scan-sorter/internal/config"
	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/internal/service"
	"go-scan-sorter/pkg/models"
	"go-scan-sorter/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Version is reported by the health check
var Version = "1.0.0"

func NewHandler(svc service.BatchService, inspector service.InspectionService, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck(svc))
	r.GET("/categories", listCategories(svc, cfg))
	r.GET("/categories/:alias", getCategory(svc, cfg))
	r.GET("/registry/issues", registryIssues(svc, cfg))
	r.GET("/basic-types", getBasicTypes(svc, cfg))
	r.PUT("/basic-types/:n", putBasicType(svc, cfg))
	r.POST("/batches", runBatch(svc))
	r.GET("/batches/progress", batchProgress(svc))
	r.GET("/metrics", batchMetrics(svc))
	r.POST("/inspect", inspectImage(inspector, cfg))

	return r
}

// runBatch holds the connection until the batch ends. Progress is polled
// on /batches/progress meanwhile.
func runBatch(svc service.BatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// Log request start
		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing batch request")

		var req models.BatchRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "invalid request format", err)
				return
			}
		}
		if render := c.Query("render"); render != "" {
			req.RenderReport = render == "true"
		}

		// a dropped client must not abandon a half-copied batch
		ctx := context.WithoutCancel(c.Request.Context())
		result, err := svc.RunBatch(ctx, req)
		if err != nil {
			respondError(c, determineStatusCode(err), "batch failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"batch_id":           result.ID,
			"images":             result.Total,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Batch request completed successfully")

		c.JSON(http.StatusOK, result)
	}
}

func inspectImage(inspector service.InspectionService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.InspectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		ctx := c.Request.Context()
		if cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()
		}

		resp, err := inspector.Inspect(ctx, req)
		if err != nil {
			respondError(c, determineStatusCode(err), "inspection failed", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func batchProgress(svc service.BatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Progress())
	}
}

func batchMetrics(svc service.BatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Metrics())
	}
}

func listCategories(svc service.BatchService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()
		c.JSON(http.StatusOK, gin.H{"categories": svc.Categories(ctx)})
	}
}

func getCategory(svc service.BatchService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		category, err := svc.Category(ctx, c.Param("alias"))
		if err != nil {
			respondError(c, determineStatusCode(err), "category lookup failed", err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

func registryIssues(svc service.BatchService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		issues := svc.ValidateRegistry(ctx)
		c.JSON(http.StatusOK, gin.H{
			"valid":  !validation.HasErrors(issues),
			"issues": issues,
		})
	}
}

func getBasicTypes(svc service.BatchService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()
		c.JSON(http.StatusOK, svc.BasicTypes(ctx))
	}
}

func putBasicType(svc service.BatchService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		n, err := strconv.Atoi(c.Param("n"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid basic type",
				apperrors.NewValidationError("basic type must be a number", err))
			return
		}

		var settings models.EngineSettings
		if err := c.ShouldBindJSON(&settings); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		if err := svc.SetBasicType(ctx, n, settings); err != nil {
			respondError(c, determineStatusCode(err), "basic type not saved", err)
			return
		}
		c.JSON(http.StatusOK, svc.BasicTypes(ctx))
	}
}

func healthCheck(svc service.BatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "available"
		code := http.StatusOK
		if err := svc.CheckPreconditions(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"version": Version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
