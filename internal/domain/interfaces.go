package domain

import "context"

// DiscoverySource returns candidate items for a subject. The order of the
// returned slice is whatever the upstream service produced; it may return
// fewer items than asked for and an empty slice when nothing matched.
type DiscoverySource interface {
	Fetch(ctx context.Context, subject string, limit int) ([]CandidateItem, error)
}

// ResearchSource searches the web and returns title/snippet/url triples.
type ResearchSource interface {
	Search(ctx context.Context, query string, maxResults int) ([]ResearchRecord, error)
}

// Generator produces free text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Health(ctx context.Context) bool
}

// Publisher posts finalized text publicly and returns its identifier.
type Publisher interface {
	Publish(ctx context.Context, text string) (string, error)
}

// CandidateRanker orders candidates by engagement and cuts the batch to limit.
type CandidateRanker interface {
	Rank(items []CandidateItem, limit int) []CandidateItem
}
