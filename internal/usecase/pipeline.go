package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsScanner/internal/config"
	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
	"NewsScanner/internal/scanner"
)

const manualSourceName = "manual"

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Registry    *scanner.Registry
	Sources     []config.SourceConfig
	Store       ports.ArticleStore
	Summaries   ports.SummaryClient
	ScrapeRetry RetryPolicy
	EnrichRetry RetryPolicy
	Logger      *slog.Logger
}

// Pipeline sequences discovery, extraction, persistence and enrichment. One
// logical worker: units of work are processed one at a time so retry delays
// and rate-sensitive upstreams are respected deterministically.
type Pipeline struct {
	registry    *scanner.Registry
	sources     []config.SourceConfig
	store       ports.ArticleStore
	summaries   ports.SummaryClient
	scrapeRetry RetryPolicy
	enrichRetry RetryPolicy
	logger      *slog.Logger
	sleep       sleepFunc
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		registry:    deps.Registry,
		sources:     deps.Sources,
		store:       deps.Store,
		summaries:   deps.Summaries,
		scrapeRetry: deps.ScrapeRetry,
		enrichRetry: deps.EnrichRetry,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// RunCycle performs one full pass: ingest every configured source, then
// enrich the queue, but only when ingestion actually added something new.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	added, err := p.IngestAll(ctx)
	if err != nil {
		return fmt.Errorf("ingestion phase: %w", err)
	}

	if added == 0 {
		p.logger.Info("no new articles, skipping enrichment")
		return nil
	}

	p.logger.Info("ingestion added articles, starting enrichment", "new_articles", added)

	var processed int
	err = p.withRetry(ctx, p.enrichRetry, "enrichment", func() error {
		n, enrichErr := p.ProcessUnprocessed(ctx)
		processed = n
		return enrichErr
	})
	if err != nil {
		return fmt.Errorf("enrichment phase: %w", err)
	}

	p.logger.Info("cycle complete", "new_articles", added, "articles_processed", processed)
	return nil
}

// IngestAll walks every configured source in order. A source that cannot be
// reached is abandoned for this cycle; persistence errors fail the cycle.
func (p *Pipeline) IngestAll(ctx context.Context) (int, error) {
	total := 0
	for _, src := range p.sources {
		added, err := p.ingestSource(ctx, src)
		if err != nil {
			return total, err
		}
		total += added
	}
	return total, nil
}

// TriggerScrape runs the ingestion phase synchronously for a manual request.
// A non-empty override URL replaces the configured source list for this run.
// Returns articles added and the number of sources processed.
func (p *Pipeline) TriggerScrape(ctx context.Context, overrideURL string) (int, int, error) {
	if overrideURL == "" {
		added, err := p.IngestAll(ctx)
		return added, len(p.sources), err
	}

	src := config.SourceConfig{
		Name:    manualSourceName,
		Scanner: p.defaultScannerName(),
		URL:     overrideURL,
	}
	added, err := p.ingestSource(ctx, src)
	return added, 1, err
}

func (p *Pipeline) defaultScannerName() string {
	if len(p.sources) > 0 {
		return p.sources[0].Scanner
	}
	return "cafef"
}

func (p *Pipeline) ingestSource(ctx context.Context, src config.SourceConfig) (int, error) {
	strategy, err := p.registry.Resolve(src.Scanner)
	if err != nil {
		return 0, fmt.Errorf("source %s: %w", src.Name, err)
	}

	var links []string
	err = p.withRetry(ctx, p.scrapeRetry, "discover "+src.Name, func() error {
		discovered, discoverErr := strategy.DiscoverLinks(ctx, src.URL)
		if discoverErr != nil {
			return discoverErr
		}
		links = discovered
		return nil
	})
	if err != nil {
		// One unreachable source must not abort the multi-source cycle.
		p.logger.Warn("source abandoned for this cycle", "source", src.Name, "url", src.URL, "error", err)
		return 0, nil
	}

	p.logger.Info("links discovered", "source", src.Name, "count", len(links))

	added := 0
	for _, link := range links {
		known, err := p.store.Exists(ctx, link)
		if err != nil {
			return added, fmt.Errorf("check url %s: %w", link, err)
		}
		if known {
			p.logger.Debug("article already known", "url", link)
			continue
		}

		var draft *domain.ArticleDraft
		err = p.withRetry(ctx, p.scrapeRetry, "extract "+src.Name, func() error {
			extracted, extractErr := strategy.ExtractContent(ctx, link)
			if extractErr != nil {
				return extractErr
			}
			draft = extracted
			return nil
		})
		if err != nil {
			p.logger.Warn("article fetch abandoned for this cycle", "url", link, "error", err)
			continue
		}
		if draft == nil {
			// Expected miss: the page carries no extractable article.
			p.logger.Debug("skipping page without extractable content", "url", link)
			continue
		}

		if _, err := p.store.Create(ctx, *draft); err != nil {
			if errors.Is(err, ports.ErrDuplicateURL) {
				// A concurrent cycle won the race; not an error.
				p.logger.Debug("article inserted by concurrent run", "url", link)
				continue
			}
			return added, fmt.Errorf("persist article %s: %w", link, err)
		}

		added++
		p.logger.Info("stored new article", "source", src.Name, "title", draft.Title)
	}

	p.logger.Info("source ingested", "source", src.Name, "links", len(links), "new_articles", added)
	return added, nil
}
