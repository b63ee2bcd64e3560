package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"tg-xpost-bot/internal/domain"
	"tg-xpost-bot/internal/infra/metrics"
)

// X publishes posts through the X API v2 with an OAuth2 user-context token.
type X struct {
	http    *http.Client
	baseURL string
}

// NewX creates the publisher. The token must carry the tweet.write scope.
func NewX(baseURL, accessToken string) *X {
	if baseURL == "" {
		baseURL = "https://api.twitter.com"
	}
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	client := oauth2.NewClient(context.Background(), source)
	client.Timeout = 15 * time.Second
	return &X{http: client, baseURL: strings.TrimRight(baseURL, "/")}
}

type createPostRequest struct {
	Text string `json:"text"`
}

type createPostResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Publish posts the text and returns the platform-assigned identifier.
// The caller guarantees the budget; the check here only catches misuse.
func (x *X) Publish(ctx context.Context, text string) (string, error) {
	if n := len([]rune(text)); n > domain.PostMaxChars {
		return "", fmt.Errorf("x: post too long: %d characters (max %d)", n, domain.PostMaxChars)
	}

	body, err := json.Marshal(createPostRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("x: marshal request: %w", err)
	}
	endpoint := x.baseURL + "/2/tweets"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("x: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := x.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("x", "create_post", "v2", start, err)
		return "", fmt.Errorf("x: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("x", "create_post", "v2", start, err)
		return "", fmt.Errorf("x: read response: %w", err)
	}

	var parsed createPostResponse
	if jsonErr := json.Unmarshal(respBody, &parsed); jsonErr != nil && resp.StatusCode < 400 {
		metrics.ObserveNetworkRequest("x", "create_post", "v2", start, jsonErr)
		return "", fmt.Errorf("x: decode response: %w", jsonErr)
	}
	if resp.StatusCode >= 400 {
		detail := parsed.Detail
		if detail == "" {
			detail = parsed.Title
		}
		if detail == "" {
			detail = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		err = fmt.Errorf("x: %s", detail)
		metrics.ObserveNetworkRequest("x", "create_post", "v2", start, err)
		return "", err
	}
	if parsed.Data.ID == "" {
		err = fmt.Errorf("x: response carries no post id")
		metrics.ObserveNetworkRequest("x", "create_post", "v2", start, err)
		return "", err
	}
	metrics.ObserveNetworkRequest("x", "create_post", "v2", start, nil)
	return parsed.Data.ID, nil
}
