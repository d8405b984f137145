package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

// summaryPrompt is the fixed instruction template. The same text is used for
// first-time processing and reprocessing, and the exact prompt sent is
// persisted with every summary for auditability.
const summaryPrompt = `Read and analyze the following financial news article, then summarize it ` +
	`into one short, concise paragraph of exactly 250 to 300 characters. Make sure the summary ` +
	`covers the main points and key facts of the original article. Do not add personal opinions ` +
	`or analysis beyond the article content. Return only the summary paragraph and do NOT include ` +
	`any introductory or concluding sentences. Do not start with "This article..." or "This ` +
	`piece...". Strictly keep the summary between 250 and 300 characters.`

var whitespaceExpr = regexp.MustCompile(`\s+`)

// Navigation labels cafef injects into extracted text. Everything from the
// related-articles marker onward is trailing boilerplate.
const relatedSectionMarker = "CÙNG CHUYÊN MỤC"

var boilerplateLabels = []string{"TIN MỚI", "Xem theo ngày"}

// normalizeContent collapses whitespace runs and strips the source site's
// navigation fragments. An article that normalizes to empty is never sent
// upstream.
func normalizeContent(content string) string {
	content = whitespaceExpr.ReplaceAllString(content, " ")

	if idx := strings.Index(content, relatedSectionMarker); idx >= 0 {
		content = content[:idx]
	}
	for _, label := range boilerplateLabels {
		content = strings.ReplaceAll(content, label, " ")
	}

	content = whitespaceExpr.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

func buildPrompt(title, content string) string {
	return fmt.Sprintf("%s\n\nTitle: %s\n\nArticle content: %s", summaryPrompt, title, content)
}

// ProcessUnprocessed drains the enrichment queue once. Per-article failures
// are recorded against the article and the loop continues; the returned
// error is reserved for phase-fatal conditions (missing credential, store
// failures). Returns the number of articles successfully processed.
func (p *Pipeline) ProcessUnprocessed(ctx context.Context) (int, error) {
	if p.summaries == nil {
		return 0, ports.ErrMissingAPIKey
	}

	queue, err := p.store.ListUnprocessed(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unprocessed: %w", err)
	}

	if len(queue) == 0 {
		p.logger.Info("no unprocessed articles found")
		return 0, nil
	}

	p.logger.Info("processing unprocessed articles", "count", len(queue))

	processed := 0
	for _, article := range queue {
		p.logger.Info("enriching article", "id", article.ID, "title", article.Title,
			"prior_attempts", article.ProcessingAttempts)

		if _, err := p.enrichOne(ctx, article); err != nil {
			if isPhaseFatal(err) {
				return processed, err
			}
			p.logger.Warn("enrichment failed", "id", article.ID, "error", err)
			continue
		}
		processed++
	}

	p.logger.Info("enrichment pass done", "processed", processed, "queued", len(queue))
	return processed, nil
}

// Reprocess re-runs enrichment for one article regardless of its processed
// state. On success the existing summary is overwritten; on failure prior
// state survives apart from attempt bookkeeping.
func (p *Pipeline) Reprocess(ctx context.Context, articleID int64) (string, error) {
	if p.summaries == nil {
		return "", ports.ErrMissingAPIKey
	}

	article, err := p.store.FindByID(ctx, articleID)
	if err != nil {
		return "", fmt.Errorf("find article %d: %w", articleID, err)
	}
	if article == nil {
		return "", ports.ErrArticleNotFound
	}

	return p.enrichOne(ctx, *article)
}

// enrichOne performs one enrichment attempt: attempt bookkeeping first, so
// accounting reflects calls made even when the remote call itself fails.
func (p *Pipeline) enrichOne(ctx context.Context, article domain.Article) (string, error) {
	if err := p.store.RecordAttempt(ctx, article.ID); err != nil {
		return "", &storeError{fmt.Errorf("record attempt for article %d: %w", article.ID, err)}
	}

	normalized := normalizeContent(article.Content)
	if normalized == "" {
		cause := fmt.Sprintf("article %d %q has no content", article.ID, article.Title)
		if err := p.store.RecordFailure(ctx, article.ID, cause); err != nil {
			return "", &storeError{fmt.Errorf("record failure for article %d: %w", article.ID, err)}
		}
		return "", ports.ErrEmptyContent
	}

	prompt := buildPrompt(article.Title, normalized)

	text, err := p.summaries.Summarize(ctx, prompt)
	if err != nil {
		if recordErr := p.store.RecordFailure(ctx, article.ID, err.Error()); recordErr != nil {
			return "", &storeError{fmt.Errorf("record failure for article %d: %w", article.ID, recordErr)}
		}
		return "", err
	}

	summary := domain.Summary{
		ArticleID:   article.ID,
		Text:        text,
		PromptUsed:  prompt,
		ProcessedAt: time.Now(),
	}
	if err := p.store.RecordSuccess(ctx, article.ID, summary); err != nil {
		return "", &storeError{fmt.Errorf("record success for article %d: %w", article.ID, err)}
	}

	p.logger.Info("article enriched", "id", article.ID, "summary_length", len(text))
	return text, nil
}

// storeError marks persistence failures, which doom the whole enrichment
// pass instead of just the current article.
type storeError struct{ err error }

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

// isPhaseFatal separates per-article outcomes from conditions that doom the
// whole enrichment pass.
func isPhaseFatal(err error) bool {
	if errors.Is(err, ports.ErrMissingAPIKey) {
		return true
	}
	var se *storeError
	return errors.As(err, &se)
}
