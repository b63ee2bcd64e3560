package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"tg-xpost-bot/internal/domain"
	"tg-xpost-bot/internal/infra/metrics"
)

// Nitter scrapes hashtag search results from a Nitter instance, the
// keyless way to read X posts with their engagement counters.
type Nitter struct {
	http    *http.Client
	log     zerolog.Logger
	baseURL string
}

// NewNitter creates the hashtag discovery source.
func NewNitter(log zerolog.Logger, baseURL string) *Nitter {
	if baseURL == "" {
		baseURL = "https://nitter.net"
	}
	return &Nitter{
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Fetch scrapes the tweet search page for the hashtag. The instance decides
// how many results one page carries; limit only caps what we keep.
func (n *Nitter) Fetch(ctx context.Context, hashtag string, limit int) ([]domain.CandidateItem, error) {
	if !strings.HasPrefix(hashtag, "#") {
		hashtag = "#" + hashtag
	}
	endpoint := fmt.Sprintf("%s/search?f=tweets&q=%s", n.baseURL, url.QueryEscape(hashtag))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("nitter: build request: %w", err)
	}

	start := time.Now()
	resp, err := n.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("nitter", "search", hashtag, start, err)
		return nil, fmt.Errorf("nitter: search %s: %w", hashtag, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("nitter: search %s: unexpected status %d", hashtag, resp.StatusCode)
		metrics.ObserveNetworkRequest("nitter", "search", hashtag, start, err)
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("nitter", "search", hashtag, start, err)
		return nil, fmt.Errorf("nitter: parse page: %w", err)
	}
	metrics.ObserveNetworkRequest("nitter", "search", hashtag, start, nil)

	items := parseTimeline(doc, n.baseURL)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	n.log.Debug().Str("hashtag", hashtag).Int("items", len(items)).Msg("scraped hashtag search")
	return items, nil
}

func parseTimeline(doc *goquery.Document, baseURL string) []domain.CandidateItem {
	var items []domain.CandidateItem
	doc.Find(".timeline-item").Each(func(_ int, sel *goquery.Selection) {
		if sel.HasClass("show-more") {
			return
		}
		text := strings.TrimSpace(sel.Find(".tweet-content").First().Text())
		if text == "" {
			return
		}
		href, _ := sel.Find(".tweet-link").First().Attr("href")
		href = strings.TrimSuffix(href, "#m")

		author := strings.TrimSpace(sel.Find(".username").First().Text())
		author = strings.TrimPrefix(author, "@")
		if author == "" {
			author = "unknown"
		}

		date, _ := sel.Find(".tweet-date a").First().Attr("title")

		item := domain.CandidateItem{
			ID:        lastPathSegment(href),
			Text:      text,
			Author:    author,
			URL:       baseURL + href,
			CreatedAt: date,
		}
		sel.Find(".tweet-stats .tweet-stat").Each(func(_ int, stat *goquery.Selection) {
			value := parseStatValue(stat.Text())
			switch {
			case stat.Find(".icon-heart").Length() > 0:
				item.LikeCount = value
			case stat.Find(".icon-retweet").Length() > 0:
				item.ShareCount = value
			case stat.Find(".icon-comment").Length() > 0:
				item.ReplyCount = value
			}
		})
		items = append(items, item)
	})
	return items
}

func parseStatValue(text string) int {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return value
}

func lastPathSegment(href string) string {
	href = strings.TrimSuffix(href, "/")
	if idx := strings.LastIndexByte(href, '/'); idx >= 0 {
		return href[idx+1:]
	}
	return href
}
