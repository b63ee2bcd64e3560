package session

import (
	"sync"

	"tg-xpost-bot/internal/domain"
)

// Session owns the state of one chat workflow: the latest discovery batch,
// the selected candidate, the latest research batch and the current proposal.
// It is constructed explicitly per logical chat; there is no package-level
// instance. A mutex guards every access because the Telegram runtime may
// deliver the next update before the previous command finished.
type Session struct {
	mu         sync.Mutex
	subject    domain.Subject
	candidates []domain.CandidateItem
	selected   *domain.CandidateItem
	research   []domain.ResearchRecord
	proposal   *domain.Proposal
}

// New creates an empty session.
func New() *Session {
	return &Session{}
}

// SetCandidates replaces the discovery batch wholesale and invalidates the
// previous selection. An existing proposal is kept: it was approved-or-pending
// against the batch that produced it, and staleness is accepted.
func (s *Session) SetCandidates(subject domain.Subject, items []domain.CandidateItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = subject
	s.candidates = append([]domain.CandidateItem(nil), items...)
	s.selected = nil
}

// Subject returns what the current discovery batch was fetched for.
func (s *Session) Subject() domain.Subject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subject
}

// CandidateCount reports the size of the current discovery batch.
func (s *Session) CandidateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candidates)
}

// Candidates returns a copy of the current discovery batch.
func (s *Session) Candidates() []domain.CandidateItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CandidateItem(nil), s.candidates...)
}

// Candidate resolves a 1-based index into the discovery batch without
// mutating anything. The second result is false when the index is out of
// the valid range [1, CandidateCount].
func (s *Session) Candidate(index int) (domain.CandidateItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 1 || index > len(s.candidates) {
		return domain.CandidateItem{}, false
	}
	return s.candidates[index-1], true
}

// SetResearch commits the research stage: it records the selected candidate
// and replaces the research batch in one step, so a failed search never
// leaves a half-updated session behind.
func (s *Session) SetResearch(selected domain.CandidateItem, records []domain.ResearchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &selected
	s.research = append([]domain.ResearchRecord(nil), records...)
}

// Selected returns the candidate chosen by the research stage, if any.
func (s *Session) Selected() (domain.CandidateItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return domain.CandidateItem{}, false
	}
	return *s.selected, true
}

// Research returns a copy of the latest research batch.
func (s *Session) Research() []domain.ResearchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ResearchRecord(nil), s.research...)
}

// SetProposal stores the draft, overwriting any unapproved prior one.
func (s *Session) SetProposal(p domain.Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposal = &p
}

// Proposal returns the current draft, if any.
func (s *Session) Proposal() (domain.Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proposal == nil {
		return domain.Proposal{}, false
	}
	return *s.proposal, true
}

// ClearProposal discards the current draft and reports whether one existed.
func (s *Session) ClearProposal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.proposal != nil
	s.proposal = nil
	return had
}
