package bot

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"signature-lab/internal/card"
	"signature-lab/internal/studio"
	"signature-lab/internal/telegram"
)

type Options struct {
	Telegram     *telegram.Client
	Orchestrator *studio.Orchestrator
	Sessions     *studio.Store
	Logger       *slog.Logger
}

// Handler maps chat commands onto the generation orchestrator, one
// session per user.
type Handler struct {
	tg       *telegram.Client
	orch     *studio.Orchestrator
	sessions *studio.Store
	logger   *slog.Logger
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:       opts.Telegram,
		orch:     opts.Orchestrator,
		sessions: opts.Sessions,
		logger:   logger,
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	sess := h.sessions.GetOrCreate(strconv.FormatInt(msg.From.ID, 10))

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, sess, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, sess, msg)
	}

	if msg.Text != "" {
		return h.handleText(chatID, sess, msg.Text)
	}

	return nil
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, sess *studio.Session, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID,
			"Signature Lab — branded greeting cards\n\n"+
				"/occasion <name> — pick the occasion\n"+
				"/audience <name> — pick the audience\n"+
				"/tone <name> — pick the tone\n"+
				"/sender <name> — your signature\n"+
				"/theme <name> — quote theme, then /quotes for candidates\n"+
				"Reply with 1-5 to select a quote\n"+
				"/card — compose the greeting message\n"+
				"/quotecard — compose from the selected quote\n"+
				"/alt — swap in the alternative message\n"+
				"/image — generate the background image\n"+
				"/video — render the background video\n"+
				"/show — show the current card\n"+
				"Send a photo to use it as a reference image.",
		)

	case "occasion":
		return h.setChoice(chatID, sess, args, card.Occasions, "occasion", func(f *card.FormState, v string) { f.Occasion = v })
	case "audience":
		return h.setChoice(chatID, sess, args, card.Audiences, "audience", func(f *card.FormState, v string) { f.Audience = v })
	case "tone":
		return h.setChoice(chatID, sess, args, card.Tones, "tone", func(f *card.FormState, v string) { f.Tone = v })
	case "theme":
		return h.setChoice(chatID, sess, args, card.QuoteThemes, "quote theme", func(f *card.FormState, v string) { f.QuoteTheme = v })

	case "sender":
		sess.UpdateForm(func(f *card.FormState) { f.Sender = args })
		return h.tg.SendText(chatID, "Sender set to: "+args)

	case "quotes":
		h.tg.SendTyping(chatID)
		if err := h.orch.FetchQuotes(ctx, sess); err != nil {
			return h.reportError(chatID, err)
		}
		snap := sess.Snapshot()
		var b strings.Builder
		b.WriteString("Quote candidates (reply with a number to select):\n\n")
		for i, q := range snap.Quotes {
			fmt.Fprintf(&b, "%d. %q — %s\n", i+1, q.Text, q.Author)
		}
		return h.tg.SendText(chatID, b.String())

	case "card":
		if args != "" {
			sess.UpdateForm(func(f *card.FormState) { f.Requirement = args })
		}
		h.tg.SendTyping(chatID)
		if err := h.orch.GenerateContent(ctx, sess, false); err != nil {
			return h.reportError(chatID, err)
		}
		return h.sendCard(chatID, sess)

	case "quotecard":
		h.tg.SendTyping(chatID)
		if err := h.orch.GenerateContent(ctx, sess, true); err != nil {
			return h.reportError(chatID, err)
		}
		return h.sendCard(chatID, sess)

	case "alt":
		h.tg.SendTyping(chatID)
		if err := h.orch.RecommendAlternative(ctx, sess); err != nil {
			return h.reportError(chatID, err)
		}
		return h.sendCard(chatID, sess)

	case "image":
		h.tg.SendTyping(chatID)
		if err := h.orch.GenerateVisual(ctx, sess, studio.VisualImage); err != nil {
			return h.reportError(chatID, err)
		}
		snap := sess.Snapshot()
		if strings.HasPrefix(snap.BackgroundImage, "data:") {
			return h.tg.SendPhotoDataURL(chatID, snap.BackgroundImage, "Background ready.")
		}
		return h.tg.SendText(chatID, "Background ready: "+snap.BackgroundImage)

	case "video":
		_ = h.tg.SendText(chatID, "Rendering the background video, this takes about 1-2 minutes...")
		if err := h.orch.GenerateVisual(ctx, sess, studio.VisualVideo); err != nil {
			return h.reportError(chatID, err)
		}
		snap := sess.Snapshot()
		return h.tg.SendVideoURL(chatID, snap.BackgroundVideo, "Background video ready.")

	case "show":
		return h.sendCard(chatID, sess)

	default:
		return h.tg.SendText(chatID, "Unknown command. Use /help.")
	}
}

func (h *Handler) handleText(chatID int64, sess *studio.Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// A bare number is always a quote selection, never free-form text.
	if n, err := strconv.Atoi(text); err == nil {
		return h.tg.SendText(chatID, applyQuoteSelection(sess, n))
	}

	sess.UpdateForm(func(f *card.FormState) { f.Requirement = text })
	return h.tg.SendText(chatID, "Noted. The next /card will include your request.")
}

// applyQuoteSelection resolves a numeric reply against the current quote
// batch and returns the reply text.
func applyQuoteSelection(sess *studio.Session, n int) string {
	snap := sess.Snapshot()
	if len(snap.Quotes) == 0 {
		return "No quote candidates yet. Use /quotes first."
	}
	if n < 1 || n > len(snap.Quotes) {
		return fmt.Sprintf("Pick a number between 1 and %d.", len(snap.Quotes))
	}

	sess.SelectQuote(n - 1)
	return fmt.Sprintf("Selected quote %d: %q", n, snap.Quotes[n-1].Text)
}

// handlePhoto registers an uploaded photo as the reference image and
// detects its aspect ratio for the image/video calls.
func (h *Handler) handlePhoto(ctx context.Context, chatID int64, sess *studio.Session, msg *tgbotapi.Message) error {
	photo := msg.Photo[len(msg.Photo)-1]

	dataURL, err := h.tg.DownloadFileDataURL(ctx, photo.FileID)
	if err != nil {
		h.logger.Error("reference download failed", "err", err)
		return h.tg.SendText(chatID, "Could not download the photo. Please try again.")
	}

	ratio := detectAspectRatio(dataURL)
	sess.UpdateForm(func(f *card.FormState) {
		f.ReferenceImage = dataURL
		f.AspectRatio = ratio
	})

	return h.tg.SendText(chatID, fmt.Sprintf("Reference image saved (aspect %s). It will guide the next /image or /video.", ratio))
}

func (h *Handler) sendCard(chatID int64, sess *studio.Session) error {
	snap := sess.Snapshot()
	if snap.Content == nil {
		return h.tg.SendText(chatID, "No card yet. Use /card or /quotecard first.")
	}

	var b strings.Builder
	b.WriteString(snap.CurrentMessage)
	if snap.Content.Sender != "" {
		b.WriteString("\n\n— " + snap.Content.Sender)
	}
	fmt.Fprintf(&b, "\n\n(theme: %s, font %.0fpx)", snap.Content.BgTheme, snap.Typography.FontSizePx)
	return h.tg.SendText(chatID, b.String())
}

func (h *Handler) reportError(chatID int64, err error) error {
	if errors.Is(err, studio.ErrBusy) {
		return nil
	}
	h.logger.Error("operation failed", "err", err)
	return h.tg.SendText(chatID, studio.UserMessage(err))
}

func (h *Handler) setChoice(chatID int64, sess *studio.Session, value string, options []string, label string, apply func(*card.FormState, string)) error {
	match := ""
	for _, opt := range options {
		if strings.EqualFold(opt, value) {
			match = opt
			break
		}
	}
	if match == "" {
		return h.tg.SendText(chatID, fmt.Sprintf("Pick a %s from: %s", label, strings.Join(options, ", ")))
	}

	sess.UpdateForm(func(f *card.FormState) { apply(f, match) })
	return h.tg.SendText(chatID, fmt.Sprintf("Set %s to: %s", label, match))
}

// detectAspectRatio maps the reference image dimensions onto the nearest
// supported ratio, defaulting to 1:1 when the image cannot be decoded.
func detectAspectRatio(dataURL string) string {
	idx := strings.IndexByte(dataURL, ',')
	if idx < 0 {
		return "1:1"
	}

	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+1:])
	if err != nil {
		return "1:1"
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || cfg.Height == 0 {
		return "1:1"
	}

	ratio := float64(cfg.Width) / float64(cfg.Height)
	candidates := map[string]float64{
		"1:1":  1.0,
		"3:4":  3.0 / 4.0,
		"4:3":  4.0 / 3.0,
		"9:16": 9.0 / 16.0,
		"16:9": 16.0 / 9.0,
	}

	best, bestDiff := "1:1", 1e9
	for name, r := range candidates {
		diff := ratio - r
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = name, diff
		}
	}
	return best
}
