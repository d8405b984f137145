package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

const uniqueViolationCode = "23505"

var articleColumns = []string{
	"id", "title", "url", "content", "published_at", "scraped_at",
	"is_processed", "processing_attempts", "last_processing_error", "last_processing_attempt",
}

// PostgresStore persists articles and their summaries in Postgres.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ArticleStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Exists reports whether a row with the given URL is already stored.
func (s *PostgresStore) Exists(ctx context.Context, url string) (bool, error) {
	query, args, err := s.builder.
		Select("1").
		From("articles").
		Where(sq.Eq{"url": url}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query existing url: %w", err)
	}
	return true, nil
}

// Create persists a new unprocessed article. A concurrent insert of the same
// URL is reported as ports.ErrDuplicateURL, never as a fatal error.
func (s *PostgresStore) Create(ctx context.Context, draft domain.ArticleDraft) (domain.Article, error) {
	now := time.Now()

	query, args, err := s.builder.
		Insert("articles").
		Columns("title", "url", "content", "published_at", "scraped_at", "is_processed", "processing_attempts").
		Values(draft.Title, draft.URL, draft.Content, draft.PublishedAt, now, false, 0).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return domain.Article{}, ports.ErrDuplicateURL
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("insert article: %w", err)
	}

	return domain.Article{
		ID:          id,
		Title:       draft.Title,
		URL:         draft.URL,
		Content:     draft.Content,
		PublishedAt: draft.PublishedAt,
		ScrapedAt:   now,
	}, nil
}

// FindByID returns the article or nil when absent.
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*domain.Article, error) {
	query, args, err := s.builder.
		Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	article, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query article %d: %w", id, err)
	}
	return &article, nil
}

// List returns articles newest-scraped first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]domain.Article, error) {
	query, args, err := s.builder.
		Select(articleColumns...).
		From("articles").
		OrderBy("scraped_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	return s.queryArticles(ctx, query, args...)
}

// ListUnprocessed returns the enrichment queue: fewest attempts first so a
// chronically failing article cannot starve first-time attempts.
func (s *PostgresStore) ListUnprocessed(ctx context.Context) ([]domain.Article, error) {
	query, args, err := s.builder.
		Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"is_processed": false}).
		OrderBy("processing_attempts ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unprocessed query: %w", err)
	}
	return s.queryArticles(ctx, query, args...)
}

// ListFailed returns articles that have been attempted without success,
// most recent attempt first.
func (s *PostgresStore) ListFailed(ctx context.Context, limit int) ([]domain.Article, error) {
	query, args, err := s.builder.
		Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"is_processed": false}).
		Where(sq.Gt{"processing_attempts": 0}).
		OrderBy("last_processing_attempt DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build failed query: %w", err)
	}
	return s.queryArticles(ctx, query, args...)
}

// RecordAttempt bumps the attempt counter and timestamp. Called before the
// content is sent upstream so accounting reflects calls that error out.
func (s *PostgresStore) RecordAttempt(ctx context.Context, articleID int64) error {
	query, args, err := s.builder.
		Update("articles").
		Set("processing_attempts", sq.Expr("processing_attempts + 1")).
		Set("last_processing_attempt", time.Now()).
		Where(sq.Eq{"id": articleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build attempt update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record attempt for article %d: %w", articleID, err)
	}
	return nil
}

// RecordSuccess marks the article processed, clears any earlier error and
// upserts the summary in the same transaction.
func (s *PostgresStore) RecordSuccess(ctx context.Context, articleID int64, summary domain.Summary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin success tx: %w", err)
	}
	defer tx.Rollback()

	update, args, err := s.builder.
		Update("articles").
		Set("is_processed", true).
		Set("last_processing_error", nil).
		Where(sq.Eq{"id": articleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build processed update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		return fmt.Errorf("mark article %d processed: %w", articleID, err)
	}

	upsert, args, err := s.builder.
		Insert("summaries").
		Columns("article_id", "summary_text", "prompt_used", "processed_at").
		Values(articleID, summary.Text, summary.PromptUsed, summary.ProcessedAt).
		Suffix(`ON CONFLICT (article_id) DO UPDATE
			SET summary_text = EXCLUDED.summary_text,
			    prompt_used = EXCLUDED.prompt_used,
			    processed_at = EXCLUDED.processed_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build summary upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, args...); err != nil {
		return fmt.Errorf("upsert summary for article %d: %w", articleID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit success tx: %w", err)
	}
	return nil
}

// RecordFailure stores the diagnostic text for an unsuccessful attempt. A
// processed article keeps its clean state: a failed reprocess must not erase
// a previously successful summary.
func (s *PostgresStore) RecordFailure(ctx context.Context, articleID int64, cause string) error {
	query, args, err := s.builder.
		Update("articles").
		Set("last_processing_error", cause).
		Where(sq.Eq{"id": articleID}).
		Where(sq.Eq{"is_processed": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build failure update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record failure for article %d: %w", articleID, err)
	}
	return nil
}

// SummaryForArticle returns the current summary or nil when none exists.
func (s *PostgresStore) SummaryForArticle(ctx context.Context, articleID int64) (*domain.Summary, error) {
	query, args, err := s.builder.
		Select("id", "article_id", "summary_text", "prompt_used", "processed_at").
		From("summaries").
		Where(sq.Eq{"article_id": articleID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build summary query: %w", err)
	}

	var sum domain.Summary
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&sum.ID, &sum.ArticleID, &sum.Text, &sum.PromptUsed, &sum.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query summary for article %d: %w", articleID, err)
	}
	return &sum, nil
}

// Counts aggregates lifecycle statistics in a single round trip.
func (s *PostgresStore) Counts(ctx context.Context) (domain.StoreCounts, error) {
	query, args, err := s.builder.
		Select(
			"COUNT(*)",
			"COUNT(*) FILTER (WHERE is_processed)",
			"COUNT(*) FILTER (WHERE NOT is_processed)",
			"COUNT(*) FILTER (WHERE NOT is_processed AND processing_attempts > 0)",
		).
		From("articles").
		ToSql()
	if err != nil {
		return domain.StoreCounts{}, fmt.Errorf("build counts query: %w", err)
	}

	var counts domain.StoreCounts
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&counts.Total, &counts.Processed, &counts.Unprocessed, &counts.Failed)
	if err != nil {
		return domain.StoreCounts{}, fmt.Errorf("query counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) queryArticles(ctx context.Context, query string, args ...any) ([]domain.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var a domain.Article
	err := row.Scan(
		&a.ID, &a.Title, &a.URL, &a.Content, &a.PublishedAt, &a.ScrapedAt,
		&a.IsProcessed, &a.ProcessingAttempts, &a.LastProcessingError, &a.LastProcessingAttempt,
	)
	return a, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode
}
