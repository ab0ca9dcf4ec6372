package card

import (
	"fmt"
	"strings"
	"time"
)

// TextPrompt is the natural-language half of a text generation call. The
// response schema lives with the service adapter; builders stay pure.
type TextPrompt struct {
	Instruction string
	System      string
}

type ImageOptions struct {
	BgTheme           string
	DesignRequirement string
	ImageType         string
	StylePreset       string
	RefinementText    string
	MessageContext    string
	ReferenceImage    string // data URI, optional
	AspectRatio       string
	Now               time.Time
}

type ImagePrompt struct {
	Prompt         string
	ReferenceImage string
	AspectRatio    string
}

type VideoOptions struct {
	BgTheme           string
	DesignRequirement string
	MessageContext    string
	ReferenceImage    string // data URI, optional seed image
	AspectRatio       string
}

type VideoPrompt struct {
	Prompt      string
	SeedImage   string
	AspectRatio string
	Resolution  string
	Count       int
}

const quoteSystem = "You are a world-class humanities scholar. For the requested theme, " +
	"respond with five inspiring quotations and their authors as a JSON array."

func BuildQuotePrompt(theme string) TextPrompt {
	return TextPrompt{
		Instruction: fmt.Sprintf(
			"Theme: %s. Extract five profound quotations related to business leadership and success, each with its author.",
			theme),
		System: quoteSystem,
	}
}

// BuildContentPrompt assembles the message-generation call. The current
// date is embedded so generated copy can reference the season. In
// quote-only mode the supplied quote must survive verbatim as mainMessage.
func BuildContentPrompt(form FormState, isQuoteOnly bool, selectedQuote string, now time.Time) TextPrompt {
	var instruction string
	if isQuoteOnly {
		instruction = fmt.Sprintf(
			"Selected quotation: %q. Keep this quotation verbatim as mainMessage. "+
				"Invent a fitting alternativeMessage, a visual bgTheme, and a recommendedSeason to match it.",
			selectedQuote)
	} else {
		instruction = fmt.Sprintf(
			"Sender: %s, Audience: %s, Occasion: %s, Tone: %s. Additional request: %s",
			form.Sender, form.Audience, form.Occasion, form.Tone, form.Requirement)
	}

	return TextPrompt{
		Instruction: instruction,
		System: fmt.Sprintf(
			"You are a top-tier leadership message specialist. Reflect the current date (%s) "+
				"and compose dignified business prose.",
			now.Format("2006-01-02")),
	}
}

// BuildImagePrompt turns the visual form fields into one image request.
// Rendering decisions (font, color, layout) deliberately never appear in
// the prompt text.
func BuildImagePrompt(opts ImageOptions) ImagePrompt {
	var b strings.Builder

	b.WriteString("High-end cinematic professional background for a greeting card. ")
	fmt.Fprintf(&b, "Theme: %s. ", opts.BgTheme)

	style := opts.StylePreset
	if style == "" {
		style = "Cinematic"
	}
	fmt.Fprintf(&b, "Art style: %s. ", style)

	if opts.DesignRequirement != "" {
		fmt.Fprintf(&b, "Visual direction: %s. ", opts.DesignRequirement)
	}
	if opts.RefinementText != "" {
		fmt.Fprintf(&b, "Refinement: %s. ", opts.RefinementText)
	}

	if cue := natureSceneCue(opts.ImageType, opts.MessageContext, opts.Now); cue != "" {
		b.WriteString(cue)
		b.WriteString(" ")
	}

	if opts.ReferenceImage != "" {
		b.WriteString("Use the attached reference image as a compositional guide: blend its mood and palette, do not copy it. ")
	} else {
		b.WriteString("Generate freely without a reference. ")
	}

	b.WriteString("Composition must leave generous negative space suitable for a text overlay. ")
	b.WriteString("Strictly NO embedded text, NO letters, NO logos, NO watermarks.")

	ratio := opts.AspectRatio
	if !validAspectRatio(ratio) {
		ratio = "1:1"
	}

	return ImagePrompt{
		Prompt:         b.String(),
		ReferenceImage: opts.ReferenceImage,
		AspectRatio:    ratio,
	}
}

func BuildVideoPrompt(opts VideoOptions) VideoPrompt {
	var b strings.Builder

	b.WriteString("Slow, graceful camera movement over a 4K-quality cinematic background loop. ")
	fmt.Fprintf(&b, "Theme: %s. ", opts.BgTheme)
	if opts.DesignRequirement != "" {
		fmt.Fprintf(&b, "Visual direction: %s. ", opts.DesignRequirement)
	}
	if opts.MessageContext != "" {
		fmt.Fprintf(&b, "The mood should suit this message: %q. ", opts.MessageContext)
	}
	b.WriteString("Calm, seamless, premium atmosphere with open space for a text overlay. ")
	b.WriteString("Strictly NO embedded text, NO letters, NO logos.")

	ratio := opts.AspectRatio
	if ratio != "9:16" {
		ratio = "16:9"
	}

	return VideoPrompt{
		Prompt:      b.String(),
		SeedImage:   opts.ReferenceImage,
		AspectRatio: ratio,
		Resolution:  "1080p",
		Count:       1,
	}
}

var sunriseCues = []string{"new year", "new beginning", "beginning", "launch", "start", "goal", "vision", "kickoff"}
var sunsetCues = []string{"thank", "gratitude", "year-end", "farewell", "closing", "wrap-up", "retrospect"}

// natureSceneCue makes nature imagery content-aware: messages about new
// beginnings map to sunrise, gratitude and wrap-up map to sunset, and the
// current season contributes a fixed flora cue.
func natureSceneCue(imageType, messageContext string, now time.Time) string {
	if !strings.EqualFold(imageType, "Nature") {
		return ""
	}

	var parts []string

	ctx := strings.ToLower(messageContext)
	if containsAny(ctx, sunriseCues) {
		parts = append(parts, "Scene: a hopeful sunrise over a wide horizon.")
	} else if containsAny(ctx, sunsetCues) {
		parts = append(parts, "Scene: a serene golden sunset.")
	}

	switch now.Month() {
	case time.March, time.April, time.May:
		parts = append(parts, "Seasonal element: cherry blossom.")
	case time.September, time.October, time.November:
		parts = append(parts, "Seasonal element: maple leaves.")
	case time.December, time.January, time.February:
		parts = append(parts, "Seasonal element: gentle snow.")
	}

	return strings.Join(parts, " ")
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
