package ports

import (
	"context"
	"errors"
	"time"

	"NewsScanner/internal/domain"
)

var (
	// ErrDuplicateURL reports an insert that lost against an existing row
	// with the same URL. Callers treat it as "already exists".
	ErrDuplicateURL = errors.New("article url already exists")

	// ErrArticleNotFound reports a lookup for an article id that is not in
	// the store.
	ErrArticleNotFound = errors.New("article not found")

	// ErrEmptyContent reports an article whose body normalizes to the empty
	// string; such articles are never sent upstream.
	ErrEmptyContent = errors.New("article has no content")

	// ErrEmptyResponse reports a generation call that returned no text.
	ErrEmptyResponse = errors.New("empty response from generation service")

	// ErrMissingAPIKey is a configuration error fatal to the whole
	// enrichment phase, not to a single article.
	ErrMissingAPIKey = errors.New("generation service api key is not configured")
)

// ArticleStore is the single source of truth for article existence and
// lifecycle state.
type ArticleStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	Create(ctx context.Context, draft domain.ArticleDraft) (domain.Article, error)
	FindByID(ctx context.Context, id int64) (*domain.Article, error)
	List(ctx context.Context, limit, offset int) ([]domain.Article, error)

	// ListUnprocessed orders by ascending attempts then id, so articles
	// with fewer prior attempts are retried first.
	ListUnprocessed(ctx context.Context) ([]domain.Article, error)

	// ListFailed returns unprocessed articles with at least one attempt,
	// most recent attempt first.
	ListFailed(ctx context.Context, limit int) ([]domain.Article, error)

	RecordAttempt(ctx context.Context, articleID int64) error
	RecordSuccess(ctx context.Context, articleID int64, summary domain.Summary) error
	RecordFailure(ctx context.Context, articleID int64, cause string) error

	SummaryForArticle(ctx context.Context, articleID int64) (*domain.Summary, error)
	Counts(ctx context.Context) (domain.StoreCounts, error)
}

// SummaryClient produces a natural-language summary for a prepared prompt.
type SummaryClient interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Scheduler controls when pipeline cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
