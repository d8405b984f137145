package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Service exposes the pipeline operations the API triggers.
type Service interface {
	// TriggerScrape runs one ingestion pass. A non-empty URL overrides the
	// configured source list. Returns articles added and sources processed.
	TriggerScrape(ctx context.Context, overrideURL string) (int, int, error)

	// ProcessUnprocessed drains the enrichment queue once and returns the
	// number of articles processed.
	ProcessUnprocessed(ctx context.Context) (int, error)

	// Reprocess re-runs enrichment for one article and returns the new
	// summary text.
	Reprocess(ctx context.Context, articleID int64) (string, error)
}

// Server owns the HTTP listener for the operational API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires routes and returns a server ready to listen on addr.
func NewServer(addr string, service Service, store ArticleReader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(logger))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := newHandler(service, store, logger)

	api := router.Group("/api")
	articles := api.Group("/articles")
	articles.GET("", h.listArticles)
	articles.GET("/:id", h.getArticle)
	articles.POST("/scrape", h.triggerScrape)
	articles.POST("/process", h.triggerProcess)
	articles.POST("/reprocess/:id", h.reprocess)

	admin := api.Group("/admin")
	admin.GET("/status", h.status)
	admin.GET("/failed", h.listFailed)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http api listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
