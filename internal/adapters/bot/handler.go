package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-xpost-bot/internal/adapters/telegram"
	"tg-xpost-bot/internal/domain"
	"tg-xpost-bot/internal/infra/metrics"
	"tg-xpost-bot/internal/usecase/proposal"
	"tg-xpost-bot/internal/usecase/workflow"
)

const previewRunes = 100

// Handler serves bot updates, delivered by webhook or long polling.
type Handler struct {
	bot      *tgbotapi.BotAPI
	log      zerolog.Logger
	workflow *workflow.Service
}

// NewHandler creates the update handler.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, wf *workflow.Service) *Handler {
	return &Handler{bot: bot, log: log, workflow: wf}
}

// HandleUpdate routes an incoming update. Only text commands are supported.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.From == nil {
		return
	}
	msg := upd.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	command, payload := splitCommand(text)

	log := h.log.With().
		Str("request_id", uuid.NewString()).
		Str("command", command).
		Int64("caller", msg.From.ID).
		Logger()

	reply, err := h.dispatch(ctx, msg.From.ID, command, payload)
	metrics.IncCommand(strings.TrimPrefix(command, "/"), err)
	if err != nil {
		log.Warn().Err(err).Msg("command failed")
		reply = renderError(err)
	} else {
		log.Info().Msg("command handled")
	}
	h.reply(msg.Chat.ID, reply)
}

func (h *Handler) dispatch(ctx context.Context, callerID int64, command, payload string) (string, error) {
	// identity first, before any reply is composed: strangers get nothing,
	// not even the onboarding text or a usage hint
	if err := h.workflow.Authorize(callerID); err != nil {
		return "", err
	}
	switch command {
	case "/start", "/help":
		return helpMessage(), nil
	case "/trending":
		res, err := h.workflow.Discover(ctx, callerID, domain.SubjectTopic, payload)
		if err != nil {
			return "", err
		}
		return renderDiscovery(res), nil
	case "/hashtag":
		res, err := h.workflow.Discover(ctx, callerID, domain.SubjectHashtag, payload)
		if err != nil {
			return "", err
		}
		return renderDiscovery(res), nil
	case "/research":
		index, convErr := strconv.Atoi(strings.TrimSpace(payload))
		if convErr != nil {
			return "", &workflow.InvalidArgumentError{Reason: "usage: /research <number from the last list>"}
		}
		res, err := h.workflow.SelectAndResearch(ctx, callerID, index)
		if err != nil {
			return "", err
		}
		return renderResearch(res), nil
	case "/propose":
		res, err := h.workflow.Propose(ctx, callerID)
		if err != nil {
			return "", err
		}
		return renderProposal(res.Proposal), nil
	case "/approve":
		res, err := h.workflow.Approve(ctx, callerID)
		if err != nil {
			return "", err
		}
		metrics.IncPublished()
		return renderApprove(res), nil
	case "/cancel":
		res, err := h.workflow.Cancel(ctx, callerID)
		if err != nil {
			return "", err
		}
		return renderCancel(res.Discarded), nil
	default:
		return "Unknown command. Send /help for the list.", nil
	}
}

// splitCommand separates the command from its payload and strips the
// @botname suffix Telegram appends in group-style mentions.
func splitCommand(text string) (string, string) {
	command, payload, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	return command, strings.TrimSpace(payload)
}

func renderDiscovery(res workflow.DiscoverResult) string {
	if len(res.Items) == 0 {
		return fmt.Sprintf("No posts found for %s. Try another subject.", res.Subject.Label)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Top %d posts for %s:\n\n", len(res.Items), res.Subject.Label)
	for i, item := range res.Items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, previewLine(item.Text))
		fmt.Fprintf(&b, "   by %s | ❤️ %d  🔁 %d  💬 %d\n", item.Author, item.LikeCount, item.ShareCount, item.ReplyCount)
		if item.URL != "" {
			fmt.Fprintf(&b, "   %s\n", item.URL)
		}
		b.WriteString("\n")
	}
	if res.Subject.Kind == domain.SubjectHashtag {
		b.WriteString("Pick one with /research <number>, or send /propose to draft from the whole batch.")
	} else {
		b.WriteString("Pick one with /research <number>.")
	}
	return b.String()
}

func renderResearch(res workflow.ResearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Researched post %d: %s\n\n", res.Index, previewLine(res.Selected.Text))
	if len(res.Records) == 0 {
		b.WriteString("The web search returned nothing for this post.\n\n")
	}
	for i, rec := range res.Records {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rec.Title)
		if rec.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", rec.Snippet)
		}
		if rec.URL != "" {
			fmt.Fprintf(&b, "   %s\n", rec.URL)
		}
		b.WriteString("\n")
	}
	b.WriteString("Send /propose to draft a post.")
	return b.String()
}

func renderProposal(draft domain.Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 Draft (%d/%d characters):\n\n", len([]rune(draft.Content)), domain.PostMaxChars)
	b.WriteString(draft.Content)
	b.WriteString("\n\nSend /approve to publish or /cancel to discard.")
	return b.String()
}

func renderApprove(res workflow.ApproveResult) string {
	return fmt.Sprintf("✅ Published: https://twitter.com/i/web/status/%s", res.PostID)
}

func renderCancel(discarded bool) string {
	if discarded {
		return "Draft discarded."
	}
	return "Nothing to discard."
}

func renderError(err error) string {
	var (
		invalid  *workflow.InvalidArgumentError
		notReady *workflow.NotReadyError
		adapter  *workflow.AdapterError
	)
	switch {
	case errors.Is(err, workflow.ErrUnauthorized):
		return "This bot is private."
	case errors.Is(err, proposal.ErrNoSources):
		return "Nothing to draft from: the source batch is empty. Run /trending or /hashtag again."
	case errors.As(err, &invalid):
		return invalid.Reason
	case errors.As(err, &notReady):
		return notReadyHint(notReady.Stage)
	case errors.As(err, &adapter):
		return fmt.Sprintf("The %s service is unavailable right now. Try again later.", adapter.Op)
	}
	return "Something went wrong. Try again later."
}

func notReadyHint(stage string) string {
	switch stage {
	case workflow.StageDiscover:
		return "No posts discovered yet. Run /trending <topic> or /hashtag <tag> first."
	case workflow.StageResearch:
		return "Nothing researched yet. Run /research <number> first."
	case workflow.StagePropose:
		return "No pending draft. Run /propose first."
	}
	return "Previous step missing. Send /help for the workflow."
}

func helpMessage() string {
	lines := []string{
		"👋 This bot drafts posts for X from trending content.",
		"",
		"Workflow:",
		"1. /trending <topic> — top posts for a topic (e.g. /trending python).",
		"   /hashtag <tag> — top posts for a hashtag (e.g. /hashtag #golang).",
		"2. /research <number> — pick a post and research it on the web.",
		"3. /propose — draft a post from the research.",
		"4. /approve — publish the draft, or /cancel — discard it.",
		"",
		"Every step can be re-run; a new discovery replaces the old list.",
	}
	return strings.Join(lines, "\n")
}

func previewLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}

func (h *Handler) reply(chatID int64, text string) {
	for _, part := range telegram.SplitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			h.log.Error().Err(err).Msg("failed to send message")
			return
		}
	}
}
