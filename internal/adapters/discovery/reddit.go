package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-xpost-bot/internal/domain"
	"tg-xpost-bot/internal/infra/metrics"
)

// Curated topic-to-subreddit mapping; an unknown topic falls back to the
// subreddit of the same name.
var topicSubreddits = map[string][]string{
	"python":      {"python", "learnpython", "pythontips"},
	"javascript":  {"javascript", "learnjavascript", "webdev"},
	"ai":          {"artificial", "MachineLearning", "deeplearning"},
	"ml":          {"MachineLearning", "learnmachinelearning", "datascience"},
	"crypto":      {"cryptocurrency", "CryptoMarkets", "bitcoin"},
	"tech":        {"technology", "tech", "gadgets"},
	"programming": {"programming", "learnprogramming", "coding"},
	"web":         {"webdev", "web_design", "Frontend"},
	"data":        {"datascience", "datasets", "dataengineering"},
	"startup":     {"startups", "Entrepreneur", "SideProject"},
}

const selftextPreviewRunes = 200

// Reddit fetches top posts from Reddit's public JSON listings. No
// authentication is needed for the read-only endpoints it uses.
type Reddit struct {
	http      *http.Client
	log       zerolog.Logger
	baseURL   string
	userAgent string
	linkBase  string
}

// NewReddit creates the discovery source.
func NewReddit(log zerolog.Logger, baseURL, userAgent string) *Reddit {
	if baseURL == "" {
		baseURL = "https://www.reddit.com"
	}
	return &Reddit{
		http:      &http.Client{Timeout: 10 * time.Second},
		log:       log,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		linkBase:  "https://reddit.com",
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID          string  `json:"id"`
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Author      string  `json:"author"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				Permalink   string  `json:"permalink"`
				CreatedUTC  float64 `json:"created_utc"`
				Stickied    bool    `json:"stickied"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Fetch pulls the weekly top listing of every subreddit mapped to the topic.
// A single failing subreddit is skipped; the call fails only when every
// listing failed and nothing was collected.
func (r *Reddit) Fetch(ctx context.Context, topic string, limit int) ([]domain.CandidateItem, error) {
	var items []domain.CandidateItem
	var lastErr error
	for _, sub := range subredditsFor(topic) {
		fetched, err := r.fetchSubreddit(ctx, sub, limit)
		if err != nil {
			r.log.Warn().Err(err).Str("subreddit", sub).Msg("skipping subreddit")
			lastErr = err
			continue
		}
		items = append(items, fetched...)
	}
	if len(items) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return items, nil
}

func (r *Reddit) fetchSubreddit(ctx context.Context, subreddit string, limit int) ([]domain.CandidateItem, error) {
	endpoint := fmt.Sprintf("%s/r/%s/top.json?t=week&limit=%d", r.baseURL, url.PathEscape(subreddit), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("reddit: build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("reddit", "top_listing", subreddit, start, err)
		return nil, fmt.Errorf("reddit: r/%s: %w", subreddit, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("reddit: r/%s: unexpected status %d", subreddit, resp.StatusCode)
		metrics.ObserveNetworkRequest("reddit", "top_listing", subreddit, start, err)
		return nil, err
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		metrics.ObserveNetworkRequest("reddit", "top_listing", subreddit, start, err)
		return nil, fmt.Errorf("reddit: r/%s: decode listing: %w", subreddit, err)
	}
	metrics.ObserveNetworkRequest("reddit", "top_listing", subreddit, start, nil)

	items := make([]domain.CandidateItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied {
			continue
		}
		text := post.Title
		if preview := clipRunes(post.Selftext, selftextPreviewRunes); preview != "" {
			text = post.Title + "\n\n" + preview
		}
		author := post.Author
		if author == "" {
			author = "deleted"
		}
		items = append(items, domain.CandidateItem{
			ID:         post.ID,
			Text:       text,
			Author:     author,
			LikeCount:  post.Score,
			ReplyCount: post.NumComments,
			URL:        r.linkBase + post.Permalink,
			CreatedAt:  time.Unix(int64(post.CreatedUTC), 0).UTC().Format("2006-01-02 15:04"),
		})
	}
	return items, nil
}

func subredditsFor(topic string) []string {
	normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(topic, "#")))
	if subs, ok := topicSubreddits[normalized]; ok {
		return subs
	}
	return []string{normalized}
}

func clipRunes(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
