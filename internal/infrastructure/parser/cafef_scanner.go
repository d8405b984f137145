package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/scanner"
)

const (
	cafefBaseURL = "https://cafef.vn"

	// Candidates above this length are almost always corrupted relative
	// links and get dropped.
	maxArticleURLLength = 200

	// Paragraphs at or below this length are navigation/boilerplate noise.
	minParagraphLength = 30

	maxRedirects = 5

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// linkSelectors cover the listing containers cafef uses across sections.
const linkSelectors = "div.list-news-main .tlitem a, div.listchungkhoannew .tlitem a, .featured-news a, .box-category-item a"

const titleSelectors = ".kbwc-title, .title, h1.title"

const dateSelectors = ".kbwc-time, .date, .time, .post-date"

// contentSelectors are tried in order; the site does not commit to a single
// markup shape across sections.
var contentSelectors = []string{
	".knc-content",
	".detail-content",
	".article-content",
	`div[id*="content"]`,
	".newscontent",
	".maincontent",
	".article-body",
	".knc-body",
	"#mainContent",
}

// Matches the site's date line, e.g. "22/05/2025 - 15:52".
var dateExpr = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})\s*-\s*(\d{2}):(\d{2})`)

// CafefScanner discovers article links on cafef.vn section pages and
// extracts article content with selector fallback chains.
type CafefScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Strategy = (*CafefScanner)(nil)

// NewCafefScanner wires an HTTP client; a nil client gets a bounded-timeout
// default with a capped redirect count.
func NewCafefScanner(client *http.Client, logger *slog.Logger) *CafefScanner {
	if client == nil {
		client = &http.Client{
			Timeout: 20 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		}
	}
	return &CafefScanner{client: client, logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *CafefScanner) Name() string {
	return "cafef"
}

// DiscoverLinks fetches a section page and returns candidate article URLs in
// first-appearance order, de-duplicated within the result.
func (s *CafefScanner) DiscoverLinks(ctx context.Context, sourceURL string) ([]string, error) {
	doc, err := s.fetchDocument(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	links := make([]string, 0)

	doc.Find(linkSelectors).Each(func(i int, sel *goquery.Selection) {
		if !isHeadlineAnchor(sel) {
			return
		}

		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}

		full := absoluteURL(href)
		if !isArticleURL(full) {
			return
		}
		if _, dup := seen[full]; dup {
			return
		}

		seen[full] = struct{}{}
		links = append(links, full)
	})

	s.debug("discovered links", "source", sourceURL, "count", len(links))
	return links, nil
}

// ExtractContent fetches an article page and extracts its title, body and
// publish date. Pages without a recognizable title or body yield (nil, nil).
func (s *CafefScanner) ExtractContent(ctx context.Context, articleURL string) (*domain.ArticleDraft, error) {
	doc, err := s.fetchDocument(ctx, articleURL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find(titleSelectors).First().Text())

	var content string
	for _, selector := range contentSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(sel.First().Text()); text != "" {
			content = text
			break
		}
	}

	if content == "" {
		content = collectParagraphs(doc)
	}

	if title == "" || content == "" {
		s.debug("no extractable content", "url", articleURL,
			"has_title", title != "", "has_content", content != "")
		return nil, nil
	}

	return &domain.ArticleDraft{
		Title:       title,
		URL:         articleURL,
		Content:     content,
		PublishedAt: parsePublishedAt(doc),
	}, nil
}

func (s *CafefScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("source returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// isHeadlineAnchor keeps only anchors living in headline markup, skipping
// thumbnails and category chips sharing the same containers.
func isHeadlineAnchor(sel *goquery.Selection) bool {
	if sel.HasClass("title") {
		return true
	}
	if sel.Parent().Is("h3") {
		return true
	}
	return sel.ParentsFiltered("h3").Length() > 0
}

func absoluteURL(href string) string {
	if strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return cafefBaseURL + href
}

// isArticleURL applies the site's content-URL shape: cafef host, .chn
// suffix pages, no video sections, sane length.
func isArticleURL(u string) bool {
	return strings.Contains(u, "cafef.vn/") &&
		strings.Contains(u, ".chn") &&
		!strings.Contains(u, "video") &&
		len(u) < maxArticleURLLength
}

// collectParagraphs is the last-resort extraction path: join every
// paragraph long enough to be real prose.
func collectParagraphs(doc *goquery.Document) string {
	var paragraphs []string
	doc.Find("p").Each(func(i int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len(text) > minParagraphLength {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}

// parsePublishedAt reads the site's date line. Absent or unparsable dates
// yield nil, never an extraction failure.
func parsePublishedAt(doc *goquery.Document) *time.Time {
	dateText := strings.TrimSpace(doc.Find(dateSelectors).First().Text())
	if dateText == "" {
		return nil
	}

	m := dateExpr.FindStringSubmatch(dateText)
	if m == nil {
		return nil
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local)
	return &t
}

func (s *CafefScanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
