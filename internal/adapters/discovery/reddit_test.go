package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

const listingBody = `{
  "data": {
    "children": [
      {"data": {"id": "aa1", "title": "Go 1.25 released", "selftext": "Release notes", "author": "gopher", "score": 120, "num_comments": 30, "permalink": "/r/golang/comments/aa1/", "created_utc": 1700000000}},
      {"data": {"id": "aa2", "title": "Pinned post", "stickied": true, "score": 999, "permalink": "/r/golang/comments/aa2/"}},
      {"data": {"id": "aa3", "title": "Question", "author": "", "score": 5, "num_comments": 2, "permalink": "/r/golang/comments/aa3/", "created_utc": 1700000100}}
    ]
  }
}`

func TestFetchParsesListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/golang/top.json" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Fatalf("unexpected user agent %q", ua)
		}
		fmt.Fprint(w, listingBody)
	}))
	defer srv.Close()

	client := NewReddit(zerolog.Nop(), srv.URL, "test-agent")
	items, err := client.Fetch(context.Background(), "golang", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items (stickied skipped), got %d", len(items))
	}
	first := items[0]
	if first.ID != "aa1" || first.Author != "gopher" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.LikeCount != 120 || first.ReplyCount != 30 || first.ShareCount != 0 {
		t.Fatalf("unexpected counters: %+v", first)
	}
	if first.EngagementScore() != 150 {
		t.Fatalf("unexpected engagement %d", first.EngagementScore())
	}
	if first.Text != "Go 1.25 released\n\nRelease notes" {
		t.Fatalf("unexpected text %q", first.Text)
	}
	if items[1].Author != "deleted" {
		t.Fatalf("missing author must map to deleted, got %q", items[1].Author)
	}
}

func TestFetchAllSubredditsFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewReddit(zerolog.Nop(), srv.URL, "test-agent")
	if _, err := client.Fetch(context.Background(), "golang", 10); err == nil {
		t.Fatal("expected an error when every listing fails")
	}
}

func TestFetchPartialFailureStillReturnsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/r/python/top.json" {
			fmt.Fprint(w, listingBody)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewReddit(zerolog.Nop(), srv.URL, "test-agent")
	// "python" maps to three subreddits; only one of them responds.
	items, err := client.Fetch(context.Background(), "python", 10)
	if err != nil {
		t.Fatalf("partial failure must not fail the fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected items from the healthy subreddit, got %d", len(items))
	}
}

func TestSubredditsForKnownTopic(t *testing.T) {
	subs := subredditsFor(" AI ")
	if len(subs) != 3 || subs[0] != "artificial" {
		t.Fatalf("unexpected mapping: %v", subs)
	}
	fallback := subredditsFor("golang")
	if len(fallback) != 1 || fallback[0] != "golang" {
		t.Fatalf("unexpected fallback: %v", fallback)
	}
}
