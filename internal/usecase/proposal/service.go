package proposal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tg-xpost-bot/internal/domain"
)

// ErrNoSources is returned when the pipeline is invoked without a single
// source record to condition the draft on.
var ErrNoSources = errors.New("no source records for content generation")

// At most this many records go into the prompt; the rest of the batch is
// ignored to keep the prompt small. This is a size cap, not a ranking step.
const maxPromptSources = 5

const ellipsis = "..."

// Service turns ranked candidates or research records into a post draft
// that always fits domain.PostMaxChars.
type Service struct {
	gen domain.Generator
}

// NewService creates the pipeline.
func NewService(gen domain.Generator) *Service {
	return &Service{gen: gen}
}

// Healthy probes the generation backend.
func (s *Service) Healthy(ctx context.Context) bool {
	return s.gen.Health(ctx)
}

// FromResearch drafts a post conditioned on web-research records.
func (s *Service) FromResearch(ctx context.Context, subject domain.Subject, records []domain.ResearchRecord) (domain.Proposal, error) {
	if len(records) == 0 {
		return domain.Proposal{}, ErrNoSources
	}
	used := records
	if len(used) > maxPromptSources {
		used = used[:maxPromptSources]
	}
	lines := make([]string, 0, len(used))
	for i, rec := range used {
		lines = append(lines, fmt.Sprintf("Source %d: %s\n%s", i+1, rec.Title, rec.Snippet))
	}
	content, err := s.generate(ctx, buildPrompt(subject, strings.Join(lines, "\n\n")))
	if err != nil {
		return domain.Proposal{}, err
	}
	return domain.Proposal{
		Content:      content,
		SubjectLabel: subject.Label,
		Research:     append([]domain.ResearchRecord(nil), used...),
	}, nil
}

// FromCandidates drafts a post conditioned on discovered posts directly,
// the hashtag-variant path that skips web research.
func (s *Service) FromCandidates(ctx context.Context, subject domain.Subject, items []domain.CandidateItem) (domain.Proposal, error) {
	if len(items) == 0 {
		return domain.Proposal{}, ErrNoSources
	}
	used := items
	if len(used) > maxPromptSources {
		used = used[:maxPromptSources]
	}
	lines := make([]string, 0, len(used))
	for _, item := range used {
		lines = append(lines, "- "+item.Text)
	}
	content, err := s.generate(ctx, buildPrompt(subject, strings.Join(lines, "\n")))
	if err != nil {
		return domain.Proposal{}, err
	}
	return domain.Proposal{
		Content:      content,
		SubjectLabel: subject.Label,
		Candidates:   append([]domain.CandidateItem(nil), used...),
	}, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate draft: %w", err)
	}
	return Clamp(strings.TrimSpace(text)), nil
}

// Clamp enforces the character budget: text longer than domain.PostMaxChars
// is cut to 277 characters plus a three-character ellipsis, so the result is
// exactly domain.PostMaxChars long. Characters are counted as runes.
func Clamp(text string) string {
	runes := []rune(text)
	if len(runes) <= domain.PostMaxChars {
		return text
	}
	return string(runes[:domain.PostMaxChars-len(ellipsis)]) + ellipsis
}

func buildPrompt(subject domain.Subject, block string) string {
	var b strings.Builder
	b.WriteString("You are a social media expert creating engaging posts for X (Twitter).\n\n")
	switch subject.Kind {
	case domain.SubjectHashtag:
		fmt.Fprintf(&b, "Based on these top trending posts about %s:\n\n%s\n\n", subject.Label, block)
	default:
		fmt.Fprintf(&b, "Topic: %s\n\nBased on this research from the web:\n\n%s\n\n", subject.Label, block)
	}
	b.WriteString("Create ONE engaging post in ENGLISH that:\n")
	b.WriteString("1. Captures the key themes and insights from the material above\n")
	b.WriteString("2. Is informative and shareable\n")
	fmt.Fprintf(&b, "3. Is MAXIMUM %d characters (very important!)\n", domain.PostMaxChars)
	if subject.Kind == domain.SubjectHashtag {
		fmt.Fprintf(&b, "4. Includes the hashtag %s\n", subject.Label)
		b.WriteString("5. Uses a conversational, authentic tone\n")
		b.WriteString("6. Is original and creative, not a copy\n")
	} else {
		b.WriteString("4. Uses a conversational, authentic tone\n")
		b.WriteString("5. Is original and creative\n")
	}
	b.WriteString("\nIMPORTANT: Respond ONLY with the post text in English. No explanations, no extra text, just the post.\n")
	return b.String()
}
