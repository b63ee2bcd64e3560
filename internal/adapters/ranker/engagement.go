package ranker

import (
	"sort"

	"tg-xpost-bot/internal/domain"
)

// Engagement orders candidates by their engagement score, highest first.
// The sort is stable: items with equal scores keep the order the source
// returned them in, which is the only tie-break the pipeline defines.
type Engagement struct{}

// NewEngagement creates the ranker.
func NewEngagement() *Engagement {
	return &Engagement{}
}

// Rank sorts a copy of the batch and cuts it to limit when limit > 0.
func (r *Engagement) Rank(items []domain.CandidateItem, limit int) []domain.CandidateItem {
	out := append([]domain.CandidateItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EngagementScore() > out[j].EngagementScore()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
