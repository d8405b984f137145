package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	failedListLimit  = 100

	// recentFailedLimit bounds the failed-article excerpt in the status view.
	recentFailedLimit = 10
)

// ArticleReader is the read-only slice of the store the API serves from.
type ArticleReader interface {
	List(ctx context.Context, limit, offset int) ([]domain.Article, error)
	FindByID(ctx context.Context, id int64) (*domain.Article, error)
	ListFailed(ctx context.Context, limit int) ([]domain.Article, error)
	SummaryForArticle(ctx context.Context, articleID int64) (*domain.Summary, error)
	Counts(ctx context.Context) (domain.StoreCounts, error)
}

type handler struct {
	service Service
	store   ArticleReader
	logger  *slog.Logger
}

func newHandler(service Service, store ArticleReader, logger *slog.Logger) *handler {
	return &handler{service: service, store: store, logger: logger}
}

type articleResponse struct {
	ID                    int64      `json:"id"`
	Title                 string     `json:"title"`
	URL                   string     `json:"url"`
	PublishedAt           *time.Time `json:"published_at,omitempty"`
	ScrapedAt             time.Time  `json:"scraped_at"`
	IsProcessed           bool       `json:"is_processed"`
	ProcessingAttempts    int        `json:"processing_attempts"`
	LastProcessingError   *string    `json:"last_processing_error,omitempty"`
	LastProcessingAttempt *time.Time `json:"last_processing_attempt,omitempty"`
}

type articleDetailResponse struct {
	articleResponse
	Content string           `json:"content"`
	Summary *summaryResponse `json:"summary,omitempty"`
}

type summaryResponse struct {
	Text        string    `json:"text"`
	ProcessedAt time.Time `json:"processed_at"`
}

func toArticleResponse(a domain.Article) articleResponse {
	return articleResponse{
		ID:                    a.ID,
		Title:                 a.Title,
		URL:                   a.URL,
		PublishedAt:           a.PublishedAt,
		ScrapedAt:             a.ScrapedAt,
		IsProcessed:           a.IsProcessed,
		ProcessingAttempts:    a.ProcessingAttempts,
		LastProcessingError:   a.LastProcessingError,
		LastProcessingAttempt: a.LastProcessingAttempt,
	}
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (h *handler) triggerScrape(c *gin.Context) {
	var req scrapeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	added, sources, err := h.service.TriggerScrape(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Error("manual scrape failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scrape failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"new_articles":      added,
		"sources_processed": sources,
	})
}

func (h *handler) triggerProcess(c *gin.Context) {
	processed, err := h.service.ProcessUnprocessed(c.Request.Context())
	if err != nil {
		if errors.Is(err, ports.ErrMissingAPIKey) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summary generation is not configured"})
			return
		}
		h.logger.Error("manual processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"articles_processed": processed})
}

func (h *handler) reprocess(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}

	text, err := h.service.Reprocess(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrArticleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		case errors.Is(err, ports.ErrMissingAPIKey):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summary generation is not configured"})
		default:
			h.logger.Error("reprocess failed", "article_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reprocessing failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"article_id": id,
		"summary":    text,
	})
}

func (h *handler) listArticles(c *gin.Context) {
	limit := queryInt(c, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	articles, err := h.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list articles failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}

	out := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		out = append(out, toArticleResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"articles": out, "count": len(out)})
}

func (h *handler) getArticle(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}

	article, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("load article failed", "article_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}

	resp := articleDetailResponse{
		articleResponse: toArticleResponse(*article),
		Content:         article.Content,
	}

	summary, err := h.store.SummaryForArticle(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("load summary failed", "article_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if summary != nil {
		resp.Summary = &summaryResponse{Text: summary.Text, ProcessedAt: summary.ProcessedAt}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) status(c *gin.Context) {
	counts, err := h.store.Counts(c.Request.Context())
	if err != nil {
		h.logger.Error("status query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status unavailable"})
		return
	}

	recent, err := h.store.ListFailed(c.Request.Context(), recentFailedLimit)
	if err != nil {
		h.logger.Error("status query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status unavailable"})
		return
	}

	failed := make([]articleResponse, 0, len(recent))
	for _, a := range recent {
		failed = append(failed, toArticleResponse(a))
	}

	c.JSON(http.StatusOK, gin.H{
		"total_articles": counts.Total,
		"processed":      counts.Processed,
		"unprocessed":    counts.Unprocessed,
		"failed":         counts.Failed,
		"recent_failed":  failed,
	})
}

func (h *handler) listFailed(c *gin.Context) {
	articles, err := h.store.ListFailed(c.Request.Context(), failedListLimit)
	if err != nil {
		h.logger.Error("failed listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}

	out := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		out = append(out, toArticleResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"articles": out, "count": len(out)})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
