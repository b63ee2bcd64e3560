package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-xpost-bot/internal/adapters/ranker"
	"tg-xpost-bot/internal/domain"
	"tg-xpost-bot/internal/usecase/proposal"
	"tg-xpost-bot/internal/usecase/session"
)

const ownerID int64 = 42

type stubDiscovery struct {
	items []domain.CandidateItem
	err   error
}

func (s *stubDiscovery) Fetch(context.Context, string, int) ([]domain.CandidateItem, error) {
	return s.items, s.err
}

type stubResearch struct {
	records []domain.ResearchRecord
	err     error
	query   string
}

func (s *stubResearch) Search(_ context.Context, query string, _ int) ([]domain.ResearchRecord, error) {
	s.query = query
	return s.records, s.err
}

type stubGenerator struct {
	reply   string
	err     error
	healthy bool
}

func (s *stubGenerator) Generate(context.Context, string) (string, error) { return s.reply, s.err }
func (s *stubGenerator) Health(context.Context) bool                      { return s.healthy }

type stubPublisher struct {
	id    string
	err   error
	calls int
}

func (s *stubPublisher) Publish(context.Context, string) (string, error) {
	s.calls++
	return s.id, s.err
}

type fixture struct {
	svc       *Service
	sess      *session.Session
	discovery *stubDiscovery
	hashtags  *stubDiscovery
	research  *stubResearch
	gen       *stubGenerator
	publisher *stubPublisher
}

func newFixture() *fixture {
	f := &fixture{
		sess:      session.New(),
		discovery: &stubDiscovery{},
		hashtags:  &stubDiscovery{},
		research:  &stubResearch{},
		gen:       &stubGenerator{reply: "a fine draft", healthy: true},
		publisher: &stubPublisher{id: "123456"},
	}
	pipeline := proposal.NewService(f.gen)
	f.svc = NewService(zerolog.Nop(), f.sess, f.discovery, f.hashtags, f.research, pipeline, f.publisher, ranker.NewEngagement(), ownerID, 10, 5)
	return f
}

func items(n int) []domain.CandidateItem {
	out := make([]domain.CandidateItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.CandidateItem{
			ID:        fmt.Sprintf("p%d", i+1),
			Text:      fmt.Sprintf("post number %d", i+1),
			LikeCount: i + 1,
		})
	}
	return out
}

func TestDiscoverKeepsTopTenByEngagement(t *testing.T) {
	f := newFixture()
	f.discovery.items = items(12)

	res, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectTopic, "python")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 10 {
		t.Fatalf("expected 10 retained items, got %d", len(res.Items))
	}
	if res.Items[0].ID != "p12" {
		t.Fatalf("expected highest-engagement item first, got %s", res.Items[0].ID)
	}
	if f.sess.CandidateCount() != 10 {
		t.Fatalf("session batch size %d", f.sess.CandidateCount())
	}
	if _, ok := f.sess.Selected(); ok {
		t.Fatal("discover must clear the selection")
	}
}

func TestDiscoverRejectsEmptySubject(t *testing.T) {
	f := newFixture()
	var invalid *InvalidArgumentError
	if _, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectTopic, "   "); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidArgumentError, got %v", err)
	}
}

func TestDiscoverAdapterFailureLeavesBatch(t *testing.T) {
	f := newFixture()
	f.discovery.items = items(3)
	if _, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectTopic, "go"); err != nil {
		t.Fatalf("seed discover failed: %v", err)
	}

	f.discovery.items = nil
	f.discovery.err = errors.New("dns failure")
	var adapterErr *AdapterError
	if _, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectTopic, "rust"); !errors.As(err, &adapterErr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
	if f.sess.CandidateCount() != 3 {
		t.Fatal("failed discover must not replace the stored batch")
	}
}

func TestHashtagDiscoverNormalizesLabel(t *testing.T) {
	f := newFixture()
	f.hashtags.items = items(1)
	res, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectHashtag, "golang")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Subject.Label != "#golang" {
		t.Fatalf("expected #golang, got %q", res.Subject.Label)
	}
}

func TestSelectAndResearchHappyPath(t *testing.T) {
	f := newFixture()
	f.discovery.items = items(12)
	f.research.records = []domain.ResearchRecord{{Title: "t", Snippet: "s", URL: "u"}}
	if _, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectTopic, "python"); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.SelectAndResearch(context.Background(), ownerID, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// batch is sorted by engagement, so index 3 is the third-highest item.
	if res.Selected.ID != "p10" {
		t.Fatalf("expected p10 at index 3, got %s", res.Selected.ID)
	}
	if f.research.query != "post number 10" {
		t.Fatalf("unexpected research query %q", f.research.query)
	}
	if selected, ok := f.sess.Selected(); !ok || selected.ID != "p10" {
		t.Fatal("selection not committed")
	}
}

func TestSelectBeforeDiscoverIsNotReady(t *testing.T) {
	f := newFixture()
	var notReady *NotReadyError
	_, err := f.svc.SelectAndResearch(context.Background(), ownerID, 1)
	if !errors.As(err, &notReady) {
		t.Fatalf("expected NotReadyError, got %v", err)
	}
	if notReady.Stage != StageDiscover {
		t.Fatalf("expected discover stage, got %s", notReady.Stage)
	}
}

func TestSelectOutOfRangeReportsValidRange(t *testing.T) {
	f := newFixture()
	f.discovery.items = items(12)
	if _, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectTopic, "python"); err != nil {
		t.Fatal(err)
	}

	var invalid *InvalidArgumentError
	_, err := f.svc.SelectAndResearch(context.Background(), ownerID, 11)
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidArgumentError, got %v", err)
	}
	if !strings.Contains(invalid.Reason, "[1, 10]") {
		t.Fatalf("expected the valid range in %q", invalid.Reason)
	}
	if _, ok := f.sess.Selected(); ok {
		t.Fatal("invalid index must never mutate the selection")
	}
}

func TestResearchFailureKeepsSelectionUnset(t *testing.T) {
	f := newFixture()
	f.discovery.items = items(2)
	f.research.err = errors.New("search down")
	if _, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectTopic, "go"); err != nil {
		t.Fatal(err)
	}

	var adapterErr *AdapterError
	if _, err := f.svc.SelectAndResearch(context.Background(), ownerID, 1); !errors.As(err, &adapterErr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
	if _, ok := f.sess.Selected(); ok {
		t.Fatal("failed research must not commit the selection")
	}
}

func TestProposeFromResearch(t *testing.T) {
	f := newFixture()
	f.discovery.items = items(12)
	f.research.records = []domain.ResearchRecord{
		{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"}, {Title: "e"},
	}
	if _, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectTopic, "python"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SelectAndResearch(context.Background(), ownerID, 1); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Propose(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len([]rune(res.Proposal.Content)); n > domain.PostMaxChars {
		t.Fatalf("proposal exceeds budget: %d", n)
	}
	if _, ok := f.sess.Proposal(); !ok {
		t.Fatal("proposal not stored")
	}
}

func TestProposeBeforeResearchIsNotReady(t *testing.T) {
	f := newFixture()
	f.discovery.items = items(2)
	if _, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectTopic, "go"); err != nil {
		t.Fatal(err)
	}
	var notReady *NotReadyError
	if _, err := f.svc.Propose(context.Background(), ownerID); !errors.As(err, &notReady) {
		t.Fatalf("expected NotReadyError, got %v", err)
	}
}

func TestProposeFromHashtagCandidates(t *testing.T) {
	f := newFixture()
	f.hashtags.items = items(4)
	if _, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectHashtag, "#golang"); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Propose(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Proposal.SubjectLabel != "#golang" {
		t.Fatalf("expected hashtag label, got %q", res.Proposal.SubjectLabel)
	}
	if len(res.Proposal.Candidates) == 0 {
		t.Fatal("hashtag proposal must record the candidate sources")
	}
}

func TestProposeUnhealthyGenerator(t *testing.T) {
	f := newFixture()
	f.hashtags.items = items(1)
	f.gen.healthy = false
	if _, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectHashtag, "#go"); err != nil {
		t.Fatal(err)
	}
	var adapterErr *AdapterError
	if _, err := f.svc.Propose(context.Background(), ownerID); !errors.As(err, &adapterErr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
	if _, ok := f.sess.Proposal(); ok {
		t.Fatal("no proposal may be stored on a failed generation")
	}
}

func TestApproveFailureKeepsProposal(t *testing.T) {
	f := newFixture()
	f.sess.SetProposal(domain.Proposal{Content: "draft"})
	f.publisher.err = errors.New("403 forbidden")

	var adapterErr *AdapterError
	if _, err := f.svc.Approve(context.Background(), ownerID); !errors.As(err, &adapterErr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
	if p, ok := f.sess.Proposal(); !ok || p.Content != "draft" {
		t.Fatal("proposal must survive a failed publish unchanged")
	}

	// retry with the publisher back up
	f.publisher.err = nil
	res, err := f.svc.Approve(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if res.PostID != "123456" {
		t.Fatalf("expected published id, got %q", res.PostID)
	}
	if _, ok := f.sess.Proposal(); ok {
		t.Fatal("proposal must be cleared after a successful publish")
	}
}

func TestApproveWithoutProposal(t *testing.T) {
	f := newFixture()
	var notReady *NotReadyError
	if _, err := f.svc.Approve(context.Background(), ownerID); !errors.As(err, &notReady) {
		t.Fatalf("expected NotReadyError, got %v", err)
	}
	if f.publisher.calls != 0 {
		t.Fatal("publish must not be attempted without a proposal")
	}
}

func TestCancelIsNoOpWithoutProposal(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Cancel(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("cancel must succeed: %v", err)
	}
	if res.Discarded {
		t.Fatal("nothing should have been discarded")
	}

	f.sess.SetProposal(domain.Proposal{Content: "x"})
	res, err = f.svc.Cancel(context.Background(), ownerID)
	if err != nil || !res.Discarded {
		t.Fatalf("expected discard, got %v %v", res, err)
	}
}

func TestRediscoveryKeepsPendingProposal(t *testing.T) {
	f := newFixture()
	f.sess.SetProposal(domain.Proposal{Content: "pending"})
	f.discovery.items = items(2)
	if _, err := f.svc.Discover(context.Background(), ownerID, domain.SubjectTopic, "go"); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.sess.Proposal(); !ok {
		t.Fatal("re-discovery must keep the pending proposal")
	}
}

type blockingResearch struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingResearch) Search(context.Context, string, int) ([]domain.ResearchRecord, error) {
	close(b.entered)
	<-b.release
	return []domain.ResearchRecord{{Title: "t"}}, nil
}

func TestCommandsRunToCompletionInOrder(t *testing.T) {
	sess := session.New()
	blocker := &blockingResearch{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(
		zerolog.Nop(),
		sess,
		&stubDiscovery{items: items(3)},
		&stubDiscovery{},
		blocker,
		proposal.NewService(&stubGenerator{reply: "d", healthy: true}),
		&stubPublisher{},
		ranker.NewEngagement(),
		ownerID,
		10,
		5,
	)
	ctx := context.Background()
	if _, err := svc.Discover(ctx, ownerID, domain.SubjectTopic, "go"); err != nil {
		t.Fatalf("seed discover failed: %v", err)
	}

	researchDone := make(chan error, 1)
	go func() {
		_, err := svc.SelectAndResearch(ctx, ownerID, 1)
		researchDone <- err
	}()
	<-blocker.entered

	discoverDone := make(chan error, 1)
	go func() {
		_, err := svc.Discover(ctx, ownerID, domain.SubjectTopic, "rust")
		discoverDone <- err
	}()

	select {
	case <-discoverDone:
		t.Fatal("discover must wait for the in-flight research command")
	case <-time.After(50 * time.Millisecond):
	}

	close(blocker.release)
	if err := <-researchDone; err != nil {
		t.Fatalf("research failed: %v", err)
	}
	if err := <-discoverDone; err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	// research committed first, then the new batch replaced it wholesale:
	// no selection from the old batch may survive against the new one
	if _, ok := sess.Selected(); ok {
		t.Fatal("a selection from the replaced batch leaked into the new one")
	}
	if sess.Subject().Label != "rust" {
		t.Fatalf("expected the later subject, got %q", sess.Subject().Label)
	}
}

func TestEveryCommandRejectsUnknownCaller(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	checks := []error{}
	_, err := f.svc.Discover(ctx, 7, domain.SubjectTopic, "go")
	checks = append(checks, err)
	_, err = f.svc.SelectAndResearch(ctx, 7, 1)
	checks = append(checks, err)
	_, err = f.svc.Propose(ctx, 7)
	checks = append(checks, err)
	_, err = f.svc.Approve(ctx, 7)
	checks = append(checks, err)
	_, err = f.svc.Cancel(ctx, 7)
	checks = append(checks, err)
	for i, err := range checks {
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("command %d: expected ErrUnauthorized, got %v", i, err)
		}
	}
}
