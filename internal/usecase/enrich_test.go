package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

func seedArticle(t *testing.T, store *fakeStore, title, url, content string) domain.Article {
	t.Helper()
	article, err := store.Create(context.Background(), domain.ArticleDraft{
		Title:   title,
		URL:     url,
		Content: content,
	})
	require.NoError(t, err)
	return article
}

func TestNormalizeContent(t *testing.T) {
	got := normalizeContent("  First   paragraph.\n\nSecond\tparagraph.  ")
	assert.Equal(t, "First paragraph. Second paragraph.", got)

	got = normalizeContent("Body text here. CÙNG CHUYÊN MỤC Link one Link two")
	assert.Equal(t, "Body text here.", got)

	got = normalizeContent("TIN MỚI Body text. Xem theo ngày")
	assert.Equal(t, "Body text.", got)

	assert.Equal(t, "", normalizeContent("   \n\t  "))
}

func TestProcessUnprocessedEmptyContent(t *testing.T) {
	store := newFakeStore()
	article := seedArticle(t, store, "Blank", "https://cafef.vn/blank.chn", "   ")

	summaries := &fakeSummaries{response: "sum"}
	p, _ := newTestPipeline(store, &fakeStrategy{name: "cafef"}, summaries)

	processed, err := p.ProcessUnprocessed(context.Background())
	require.NoError(t, err, "empty content is a per-article failure, not a phase failure")
	assert.Equal(t, 0, processed)
	assert.Equal(t, 0, summaries.calls, "blank articles never reach the generation service")

	stored, err := store.FindByID(context.Background(), article.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsProcessed)
	assert.Equal(t, 1, stored.ProcessingAttempts)
	require.NotNil(t, stored.LastProcessingError)
	assert.Contains(t, *stored.LastProcessingError, "has no content")
	assert.NotNil(t, stored.LastProcessingAttempt)
}

func TestProcessUnprocessedServiceFailureThenSuccess(t *testing.T) {
	store := newFakeStore()
	article := seedArticle(t, store, "Markets", "https://cafef.vn/markets.chn", longBody("markets"))

	failing := &fakeSummaries{err: errors.New("upstream 429")}
	p, _ := newTestPipeline(store, &fakeStrategy{name: "cafef"}, failing)

	processed, err := p.ProcessUnprocessed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)

	stored, err := store.FindByID(context.Background(), article.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsProcessed)
	assert.Equal(t, 1, stored.ProcessingAttempts)
	require.NotNil(t, stored.LastProcessingError)
	assert.Equal(t, "upstream 429", *stored.LastProcessingError)

	// The next pass succeeds and clears the recorded error.
	p.summaries = &fakeSummaries{response: "a solid summary"}
	processed, err = p.ProcessUnprocessed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	stored, err = store.FindByID(context.Background(), article.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)
	assert.Equal(t, 2, stored.ProcessingAttempts)
	assert.Nil(t, stored.LastProcessingError)

	sum, err := store.SummaryForArticle(context.Background(), article.ID)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, "a solid summary", sum.Text)
}

func TestProcessUnprocessedEmptyResponseRecorded(t *testing.T) {
	store := newFakeStore()
	article := seedArticle(t, store, "Quiet", "https://cafef.vn/quiet.chn", longBody("quiet"))

	p, _ := newTestPipeline(store, &fakeStrategy{name: "cafef"}, &fakeSummaries{err: ports.ErrEmptyResponse})

	processed, err := p.ProcessUnprocessed(context.Background())
	require.NoError(t, err, "an empty upstream response fails the article, not the pass")
	assert.Equal(t, 0, processed)

	stored, err := store.FindByID(context.Background(), article.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsProcessed)
	require.NotNil(t, stored.LastProcessingError)
	assert.Equal(t, ports.ErrEmptyResponse.Error(), *stored.LastProcessingError)
}

func TestProcessUnprocessedMissingClient(t *testing.T) {
	store := newFakeStore()
	seedArticle(t, store, "Queued", "https://cafef.vn/q.chn", longBody("queued"))

	p, _ := newTestPipeline(store, &fakeStrategy{name: "cafef"}, &fakeSummaries{})
	p.summaries = nil

	_, err := p.ProcessUnprocessed(context.Background())
	assert.ErrorIs(t, err, ports.ErrMissingAPIKey)
}

func TestReprocessOverwritesSummary(t *testing.T) {
	store := newFakeStore()
	article := seedArticle(t, store, "Earnings", "https://cafef.vn/earnings.chn", longBody("earnings"))

	p, _ := newTestPipeline(store, &fakeStrategy{name: "cafef"}, &fakeSummaries{response: "first take"})
	processed, err := p.ProcessUnprocessed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	p.summaries = &fakeSummaries{response: "second take"}
	text, err := p.Reprocess(context.Background(), article.ID)
	require.NoError(t, err)
	assert.Equal(t, "second take", text)

	sum, err := store.SummaryForArticle(context.Background(), article.ID)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, "second take", sum.Text, "reprocess replaces the stored summary")

	stored, err := store.FindByID(context.Background(), article.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.ProcessingAttempts)
}

func TestReprocessFailureKeepsProcessedState(t *testing.T) {
	store := newFakeStore()
	article := seedArticle(t, store, "Bonds", "https://cafef.vn/bonds.chn", longBody("bonds"))

	p, _ := newTestPipeline(store, &fakeStrategy{name: "cafef"}, &fakeSummaries{response: "first take"})
	_, err := p.ProcessUnprocessed(context.Background())
	require.NoError(t, err)

	p.summaries = &fakeSummaries{err: errors.New("upstream down")}
	_, err = p.Reprocess(context.Background(), article.ID)
	require.Error(t, err)

	stored, err := store.FindByID(context.Background(), article.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed, "failed reprocess must not unprocess the article")
	assert.Nil(t, stored.LastProcessingError, "processed articles keep a clean error field")
	assert.Equal(t, 2, stored.ProcessingAttempts)

	sum, err := store.SummaryForArticle(context.Background(), article.ID)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, "first take", sum.Text, "prior summary survives a failed reprocess")
}

func TestReprocessUnknownArticle(t *testing.T) {
	store := newFakeStore()
	p, _ := newTestPipeline(store, &fakeStrategy{name: "cafef"}, &fakeSummaries{response: "sum"})

	_, err := p.Reprocess(context.Background(), 404)
	assert.ErrorIs(t, err, ports.ErrArticleNotFound)
}

func TestBuildPromptCarriesTitleAndBody(t *testing.T) {
	prompt := buildPrompt("VN-Index climbs", "Body of the piece.")
	assert.Contains(t, prompt, "250 to 300 characters")
	assert.Contains(t, prompt, "Title: VN-Index climbs")
	assert.Contains(t, prompt, "Article content: Body of the piece.")
}
