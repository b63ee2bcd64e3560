package domain

// SubjectKind marks which workflow variant a subject came from.
type SubjectKind string

const (
	// SubjectTopic — free-text topic discovered on a forum and researched on the web.
	SubjectTopic SubjectKind = "topic"
	// SubjectHashtag — social hashtag searched directly on the post platform.
	SubjectHashtag SubjectKind = "hashtag"
)

// Subject is what the current discovery batch was fetched for.
type Subject struct {
	Kind  SubjectKind
	Label string
}

// PostMaxChars is the hard character budget for a published post.
const PostMaxChars = 280

// CandidateItem is one discovered piece of content with its engagement counters.
// Counters default to zero when the source has no matching concept.
type CandidateItem struct {
	ID         string
	Text       string
	Author     string
	LikeCount  int
	ShareCount int
	ReplyCount int
	URL        string
	CreatedAt  string
}

// EngagementScore is the sole ranking key: the plain sum of the counters.
// It is recomputed on demand and never stored, so it cannot drift.
func (c CandidateItem) EngagementScore() int {
	return c.LikeCount + c.ShareCount + c.ReplyCount
}

// ResearchRecord is one web-search hit.
type ResearchRecord struct {
	Title   string
	Snippet string
	URL     string
}

// Proposal is a generated draft awaiting explicit approval.
// Content is guaranteed to fit PostMaxChars by the pipeline that built it.
type Proposal struct {
	Content      string
	SubjectLabel string
	Candidates   []CandidateItem
	Research     []ResearchRecord
}
