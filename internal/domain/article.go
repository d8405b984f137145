package domain

import "time"

// Article is a single piece of scraped content together with its enrichment
// lifecycle state. URL is the natural key; the store never holds two rows
// with the same URL.
type Article struct {
	ID                    int64
	Title                 string
	URL                   string
	Content               string
	PublishedAt           *time.Time
	ScrapedAt             time.Time
	IsProcessed           bool
	ProcessingAttempts    int
	LastProcessingError   *string
	LastProcessingAttempt *time.Time
}

// ArticleDraft is an extracted article that has not been persisted yet.
type ArticleDraft struct {
	Title       string
	URL         string
	Content     string
	PublishedAt *time.Time
}

// Summary is the generated enrichment result for one article. At most one
// summary exists per article; reprocessing updates it in place.
type Summary struct {
	ID          int64
	ArticleID   int64
	Text        string
	PromptUsed  string
	ProcessedAt time.Time
}

// StoreCounts aggregates article lifecycle statistics for the ops surface.
type StoreCounts struct {
	Total       int
	Processed   int
	Unprocessed int
	Failed      int
}
