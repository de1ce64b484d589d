package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voucher-service/internal/api/handlers"
	"voucher-service/internal/core/auth"
	"voucher-service/internal/core/voucher"
)

// Options configure the router. A nil Auth leaves the API open.
type Options struct {
	Vouchers       voucher.Service
	Auth           auth.Service
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// NewRouter configures HTTP routes for the application.
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	if opts.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = opts.MaxUploadBytes
		r.Use(limitBody(opts.MaxUploadBytes))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "service": "voucher-service"})
	})

	vouchers := handlers.NewVoucherHandler(opts.Vouchers)
	apiV1 := r.Group("/api/v1")
	if opts.Auth != nil {
		apiV1.POST("/auth/login", handlers.NewAuthHandler(opts.Auth).Login)
	}

	protected := apiV1.Group("")
	if opts.Auth != nil {
		protected.Use(handlers.RequireAuth(opts.Auth))
	}
	{
		protected.POST("/vouchers/generate", vouchers.HandleGenerate)
		protected.POST("/vouchers/preview", vouchers.HandlePreview)
		protected.POST("/templates/analyze", vouchers.HandleAnalyzeTemplate)
	}

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// limitBody caps multipart uploads, including the part kept on disk.
func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
