package research

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"tg-xpost-bot/internal/domain"
	"tg-xpost-bot/internal/infra/metrics"
)

const userAgent = "Mozilla/5.0 (compatible; tg-xpost-bot/1.0)"

// DuckDuckGo queries the keyless HTML endpoint and parses the result list.
type DuckDuckGo struct {
	http    *http.Client
	log     zerolog.Logger
	baseURL string
}

// NewDuckDuckGo creates the research source.
func NewDuckDuckGo(log zerolog.Logger, baseURL string) *DuckDuckGo {
	if baseURL == "" {
		baseURL = "https://html.duckduckgo.com"
	}
	return &DuckDuckGo{
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Search returns up to maxResults title/snippet/url triples for the query.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]domain.ResearchRecord, error) {
	endpoint := fmt.Sprintf("%s/html/?q=%s", d.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: build request: %w", err)
	}
	// the HTML endpoint rejects the default Go user agent
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := d.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("duckduckgo", "search", "html", start, err)
		return nil, fmt.Errorf("duckduckgo: search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("duckduckgo: search: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("duckduckgo", "search", "html", start, err)
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("duckduckgo", "search", "html", start, err)
		return nil, fmt.Errorf("duckduckgo: parse page: %w", err)
	}
	metrics.ObserveNetworkRequest("duckduckgo", "search", "html", start, nil)

	records := parseResults(doc, maxResults)
	d.log.Debug().Str("query", query).Int("records", len(records)).Msg("web search done")
	return records, nil
}

func parseResults(doc *goquery.Document, maxResults int) []domain.ResearchRecord {
	var records []domain.ResearchRecord
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		records = append(records, domain.ResearchRecord{
			Title:   title,
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
			URL:     resolveRedirect(href),
		})
		return maxResults <= 0 || len(records) < maxResults
	})
	return records
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg=<target> redirect links.
func resolveRedirect(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
