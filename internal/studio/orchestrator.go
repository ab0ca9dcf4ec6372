package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"signature-lab/internal/card"
	"signature-lab/internal/gemini"
	"signature-lab/internal/keygate"
)

// Service is the Remote Generation Service port the orchestrator drives.
// *gemini.Client implements it; tests supply a fake.
type Service interface {
	GenerateQuotes(ctx context.Context, p card.TextPrompt) ([]card.QuoteCandidate, error)
	GenerateContent(ctx context.Context, p card.TextPrompt) (card.GeneratedContent, error)
	GenerateImage(ctx context.Context, p card.ImagePrompt) (string, error)
	StartVideo(ctx context.Context, p card.VideoPrompt) (gemini.VideoOperation, error)
	PollVideo(ctx context.Context, op gemini.VideoOperation) (gemini.VideoOperation, error)
	APIKey() string
}

var _ Service = (*gemini.Client)(nil)

// ErrBusy signals that the same operation is already in flight for this
// session. The trigger is ignored, never queued.
var ErrBusy = errors.New("operation already in progress")

// ValidationError is a local precondition failure: the operation never
// started and no network call was made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type VisualKind string

const (
	VisualImage VisualKind = "image"
	VisualVideo VisualKind = "video"
)

const (
	progressQuotes  = "Extracting quote candidates..."
	progressContent = "Composing your signature message..."
	progressImage   = "Compositing the cinematic background..."
	progressVideo   = "Rendering the background video (takes about 1-2 minutes)..."
)

const defaultPollInterval = 10 * time.Second

type Options struct {
	Service Service
	Gate    *keygate.Gate
	Logger  *slog.Logger

	// PollInterval between video job status checks. Polling is unbounded:
	// the loop runs until the job finishes or ctx is cancelled.
	PollInterval time.Duration

	// ForwardReferenceImage controls whether a user-supplied reference
	// image is forwarded into image and video calls.
	ForwardReferenceImage bool

	// Now is injectable for deterministic prompts in tests.
	Now func() time.Time
}

// Orchestrator owns the four user-triggered generation flows and their
// loading-flag lifecycle. One instance serves all sessions.
type Orchestrator struct {
	svc          Service
	gate         *keygate.Gate
	logger       *slog.Logger
	pollInterval time.Duration
	forwardRef   bool
	now          func() time.Time
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		svc:          opts.Service,
		gate:         opts.Gate,
		logger:       logger,
		pollInterval: interval,
		forwardRef:   opts.ForwardReferenceImage,
		now:          now,
	}
}

// FetchQuotes requests a fresh batch of five quote candidates for the
// session's quote theme and auto-selects the first one. A failed refetch
// leaves any previously fetched candidates and selection untouched.
func (o *Orchestrator) FetchQuotes(ctx context.Context, s *Session) error {
	if !s.begin(OpQuoteFetch, progressQuotes) {
		return ErrBusy
	}
	defer s.end(OpQuoteFetch)

	if err := o.gate.EnsureSelected(ctx); err != nil {
		return err
	}

	prompt := card.BuildQuotePrompt(s.Form().QuoteTheme)
	quotes, err := o.svc.GenerateQuotes(ctx, prompt)
	if err != nil {
		o.logger.Error("quote fetch failed", "err", err)
		return o.classify(err)
	}

	s.setQuotes(quotes)
	return nil
}

// GenerateContent runs the message call and replaces the session's
// GeneratedContent wholesale. In quote-only mode a selected quote is a
// hard precondition checked before any loading state or network traffic.
func (o *Orchestrator) GenerateContent(ctx context.Context, s *Session, quoteOnly bool) error {
	var quoteText string
	if quoteOnly {
		var ok bool
		quoteText, ok = s.selectedQuoteText()
		if !ok {
			return &ValidationError{Message: "fetch quotes and select one before generating"}
		}
	}

	if !s.begin(OpContentGenerate, progressContent) {
		return ErrBusy
	}
	defer s.end(OpContentGenerate)

	if err := o.gate.EnsureSelected(ctx); err != nil {
		return err
	}

	form := s.Form()
	prompt := card.BuildContentPrompt(form, quoteOnly, quoteText, o.now())
	content, err := o.svc.GenerateContent(ctx, prompt)
	if err != nil {
		o.logger.Error("content generation failed", "err", err)
		return o.classify(err)
	}

	content.Sender = form.Sender
	content.Situation = form.Occasion
	content.Target = form.Audience
	s.setContent(content)
	return nil
}

// GenerateVisual produces the single background slot: an image or a
// video, each clearing the other on success. Requires live generated
// content; fails fast without touching the network otherwise.
func (o *Orchestrator) GenerateVisual(ctx context.Context, s *Session, kind VisualKind) error {
	if !s.hasContent() {
		return &ValidationError{Message: "generate the card message first"}
	}

	progress := progressImage
	if kind == VisualVideo {
		progress = progressVideo
	}
	if !s.begin(OpVisualGenerate, progress) {
		return ErrBusy
	}
	defer s.end(OpVisualGenerate)

	if err := o.gate.EnsureSelected(ctx); err != nil {
		return err
	}

	snap := s.Snapshot()
	reference := ""
	if o.forwardRef {
		reference = snap.Form.ReferenceImage
	}

	switch kind {
	case VisualVideo:
		prompt := card.BuildVideoPrompt(card.VideoOptions{
			BgTheme:           snap.Content.BgTheme,
			DesignRequirement: snap.Form.DesignRequirement,
			MessageContext:    snap.CurrentMessage,
			ReferenceImage:    reference,
			AspectRatio:       snap.Form.AspectRatio,
		})

		uri, err := o.generateVideo(ctx, prompt)
		if err != nil {
			o.logger.Error("video generation failed", "err", err)
			return o.classify(err)
		}
		s.setBackgroundVideo(uri)

	default:
		prompt := card.BuildImagePrompt(card.ImageOptions{
			BgTheme:           snap.Content.BgTheme,
			DesignRequirement: snap.Form.DesignRequirement,
			ImageType:         snap.Form.ImageType,
			StylePreset:       snap.Form.StylePreset,
			RefinementText:    snap.Form.RefinementText,
			MessageContext:    snap.CurrentMessage,
			ReferenceImage:    reference,
			AspectRatio:       snap.Form.AspectRatio,
			Now:               o.now(),
		})

		uri, err := o.svc.GenerateImage(ctx, prompt)
		if err != nil {
			o.logger.Error("image generation failed", "err", err)
			return o.classify(err)
		}
		s.setBackgroundImage(uri)
	}

	return nil
}

// RecommendAlternative swaps the generated alternative message into the
// card. When no alternative exists the request falls through to a fresh
// content generation instead of failing.
func (o *Orchestrator) RecommendAlternative(ctx context.Context, s *Session) error {
	if s.SwapToAlternative() {
		return nil
	}
	return o.GenerateContent(ctx, s, false)
}

// generateVideo submits the job and drives the poll loop to completion.
// The loop has no iteration cap: it checks every pollInterval until the
// remote job reports done or ctx is cancelled. The returned asset address
// is not self-authenticating, so the credential is appended.
func (o *Orchestrator) generateVideo(ctx context.Context, prompt card.VideoPrompt) (string, error) {
	op, err := o.svc.StartVideo(ctx, prompt)
	if err != nil {
		return "", err
	}

	for !op.Done {
		if err := o.waitPoll(ctx); err != nil {
			return "", err
		}
		op, err = o.svc.PollVideo(ctx, op)
		if err != nil {
			return "", err
		}
	}

	if op.VideoURI == "" {
		return "", &gemini.Error{Kind: gemini.KindVideoJobFailed, Message: "video generation failed"}
	}
	return op.VideoURI + "&key=" + o.svc.APIKey(), nil
}

func (o *Orchestrator) waitPoll(ctx context.Context) error {
	timer := time.NewTimer(o.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify turns a credential failure into a gate reset before handing
// the error back for user display.
func (o *Orchestrator) classify(err error) error {
	if gemini.IsCredential(err) {
		o.gate.ReportInvalid()
	}
	return err
}

// UserMessage maps an operation error onto the single user-visible
// notification shown at the operation boundary.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if errors.Is(err, ErrBusy) {
		return "This operation is already running. Please wait for it to finish."
	}

	switch gemini.KindOf(err) {
	case gemini.KindCredential:
		return "Your API key is missing or no longer valid. Please select a key and try again."
	case gemini.KindVideoJobFailed:
		return "Video generation failed. Please try again."
	case gemini.KindEmptyResponse:
		return "The service returned an empty or malformed response. Please try again."
	default:
		return fmt.Sprintf("Generation failed: %v (check your network or quota)", err)
	}
}
