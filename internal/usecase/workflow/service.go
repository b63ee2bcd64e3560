package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"tg-xpost-bot/internal/domain"
	"tg-xpost-bot/internal/usecase/proposal"
	"tg-xpost-bot/internal/usecase/session"
)

// Stage names used by NotReadyError.
const (
	StageDiscover = "discover"
	StageResearch = "research"
	StagePropose  = "propose"
)

// DiscoverResult is the stored, ranked discovery batch.
type DiscoverResult struct {
	Subject domain.Subject
	Items   []domain.CandidateItem
}

// ResearchResult is the committed selection plus its research batch.
type ResearchResult struct {
	Index    int
	Selected domain.CandidateItem
	Records  []domain.ResearchRecord
}

// ProposeResult carries the draft now held by the session.
type ProposeResult struct {
	Proposal domain.Proposal
}

// ApproveResult carries the identifier assigned by the publish platform.
type ApproveResult struct {
	PostID  string
	Content string
}

// CancelResult reports whether a draft was actually discarded.
type CancelResult struct {
	Discarded bool
}

// Service dispatches the workflow commands: per command it checks the caller
// identity, validates arguments, checks the session precondition, calls the
// external adapter and only then mutates the session. A failed adapter call
// leaves the session exactly as it was. Commands are serialized: each one
// runs to completion before the next is processed, even when the webhook
// runtime delivers updates concurrently.
type Service struct {
	cmdMu         sync.Mutex
	log           zerolog.Logger
	session       *session.Session
	topics        domain.DiscoverySource
	hashtags      domain.DiscoverySource
	research      domain.ResearchSource
	pipeline      *proposal.Service
	publisher     domain.Publisher
	ranker        domain.CandidateRanker
	ownerID       int64
	discoverLimit int
	researchLimit int
}

// NewService wires the dispatcher.
func NewService(log zerolog.Logger, sess *session.Session, topics, hashtags domain.DiscoverySource, research domain.ResearchSource, pipeline *proposal.Service, publisher domain.Publisher, ranker domain.CandidateRanker, ownerID int64, discoverLimit, researchLimit int) *Service {
	if discoverLimit <= 0 {
		discoverLimit = 10
	}
	if researchLimit <= 0 {
		researchLimit = 5
	}
	return &Service{
		log:           log,
		session:       sess,
		topics:        topics,
		hashtags:      hashtags,
		research:      research,
		pipeline:      pipeline,
		publisher:     publisher,
		ranker:        ranker,
		ownerID:       ownerID,
		discoverLimit: discoverLimit,
		researchLimit: researchLimit,
	}
}

func (s *Service) authorize(callerID int64) error {
	if callerID != s.ownerID {
		s.log.Warn().Int64("caller", callerID).Msg("rejected command from unknown user")
		return ErrUnauthorized
	}
	return nil
}

// Authorize reports whether the caller is the allow-listed user. Exposed so
// the chat surface can reject strangers before doing any command work,
// including onboarding replies.
func (s *Service) Authorize(callerID int64) error {
	return s.authorize(callerID)
}

// Discover fetches candidates for the subject, keeps the top items by
// engagement and replaces the discovery batch. The previous selection is
// invalidated; a pending proposal is kept (staleness is accepted).
func (s *Service) Discover(ctx context.Context, callerID int64, kind domain.SubjectKind, label string) (DiscoverResult, error) {
	if err := s.authorize(callerID); err != nil {
		return DiscoverResult{}, err
	}
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	label = strings.TrimSpace(label)
	if label == "" {
		return DiscoverResult{}, &InvalidArgumentError{Reason: "subject is required"}
	}

	var source domain.DiscoverySource
	switch kind {
	case domain.SubjectHashtag:
		if !strings.HasPrefix(label, "#") {
			label = "#" + label
		}
		source = s.hashtags
	default:
		kind = domain.SubjectTopic
		source = s.topics
	}

	items, err := source.Fetch(ctx, label, s.discoverLimit)
	if err != nil {
		return DiscoverResult{}, &AdapterError{Op: "discovery", Err: err}
	}

	top := s.ranker.Rank(items, s.discoverLimit)
	subject := domain.Subject{Kind: kind, Label: label}
	s.session.SetCandidates(subject, top)
	s.log.Info().Str("subject", label).Int("fetched", len(items)).Int("kept", len(top)).Msg("discovery batch replaced")
	return DiscoverResult{Subject: subject, Items: top}, nil
}

// SelectAndResearch resolves a 1-based index into the discovery batch and
// researches the chosen candidate on the web. Selection and research batch
// are committed together, only after the search succeeded.
func (s *Service) SelectAndResearch(ctx context.Context, callerID int64, index int) (ResearchResult, error) {
	if err := s.authorize(callerID); err != nil {
		return ResearchResult{}, err
	}
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	count := s.session.CandidateCount()
	if count == 0 {
		return ResearchResult{}, &NotReadyError{Stage: StageDiscover}
	}
	candidate, ok := s.session.Candidate(index)
	if !ok {
		return ResearchResult{}, &InvalidArgumentError{
			Reason: fmt.Sprintf("index %d is out of range, valid range is [1, %d]", index, count),
		}
	}

	query := firstLine(candidate.Text)
	records, err := s.research.Search(ctx, query, s.researchLimit)
	if err != nil {
		return ResearchResult{}, &AdapterError{Op: "research", Err: err}
	}

	s.session.SetResearch(candidate, records)
	s.log.Info().Int("index", index).Int("records", len(records)).Msg("research batch replaced")
	return ResearchResult{Index: index, Selected: candidate, Records: records}, nil
}

// Propose drafts a post from the research batch, or directly from the
// candidate batch for the hashtag variant, and stores it as the current
// proposal, overwriting any unapproved prior one.
func (s *Service) Propose(ctx context.Context, callerID int64) (ProposeResult, error) {
	if err := s.authorize(callerID); err != nil {
		return ProposeResult{}, err
	}
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	subject := s.session.Subject()
	research := s.session.Research()
	candidates := s.session.Candidates()

	var build func(context.Context) (domain.Proposal, error)
	switch {
	case len(research) > 0:
		label := subject.Label
		if subject.Kind != domain.SubjectHashtag {
			if selected, ok := s.session.Selected(); ok {
				label = firstLine(selected.Text)
			}
		}
		build = func(ctx context.Context) (domain.Proposal, error) {
			return s.pipeline.FromResearch(ctx, domain.Subject{Kind: subject.Kind, Label: label}, research)
		}
	case subject.Kind == domain.SubjectHashtag && len(candidates) > 0:
		build = func(ctx context.Context) (domain.Proposal, error) {
			return s.pipeline.FromCandidates(ctx, subject, candidates)
		}
	default:
		return ProposeResult{}, &NotReadyError{Stage: StageResearch}
	}

	if !s.pipeline.Healthy(ctx) {
		return ProposeResult{}, &AdapterError{Op: "generation", Err: errors.New("generation backend is unreachable")}
	}

	draft, err := build(ctx)
	if err != nil {
		if errors.Is(err, proposal.ErrNoSources) {
			return ProposeResult{}, err
		}
		return ProposeResult{}, &AdapterError{Op: "generation", Err: err}
	}

	s.session.SetProposal(draft)
	s.log.Info().Int("chars", len([]rune(draft.Content))).Msg("proposal stored")
	return ProposeResult{Proposal: draft}, nil
}

// Approve publishes the current proposal and clears it on success. On a
// publish failure the proposal stays intact so the command can be retried.
func (s *Service) Approve(ctx context.Context, callerID int64) (ApproveResult, error) {
	if err := s.authorize(callerID); err != nil {
		return ApproveResult{}, err
	}
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	draft, ok := s.session.Proposal()
	if !ok {
		return ApproveResult{}, &NotReadyError{Stage: StagePropose}
	}

	id, err := s.publisher.Publish(ctx, draft.Content)
	if err != nil {
		return ApproveResult{}, &AdapterError{Op: "publish", Err: err}
	}

	s.session.ClearProposal()
	s.log.Info().Str("post_id", id).Msg("proposal published")
	return ApproveResult{PostID: id, Content: draft.Content}, nil
}

// Cancel discards the current proposal. Cancelling with nothing pending is
// a no-op success, not an error.
func (s *Service) Cancel(ctx context.Context, callerID int64) (CancelResult, error) {
	if err := s.authorize(callerID); err != nil {
		return CancelResult{}, err
	}
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	return CancelResult{Discarded: s.session.ClearProposal()}, nil
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
