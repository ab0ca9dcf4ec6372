package card_test

import (
	"strings"
	"testing"
	"time"

	"signature-lab/internal/card"
)

func TestBuildQuotePrompt_CarriesTheme(t *testing.T) {
	p := card.BuildQuotePrompt("Courage")

	if !strings.Contains(p.Instruction, "Courage") {
		t.Errorf("instruction missing theme: %q", p.Instruction)
	}
	if !strings.Contains(p.Instruction, "five") {
		t.Errorf("instruction should request five quotations: %q", p.Instruction)
	}
	if p.System == "" {
		t.Error("expected a system instruction")
	}
}

func TestBuildContentPrompt_EmbedsCurrentDate(t *testing.T) {
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	p := card.BuildContentPrompt(card.DefaultForm(), false, "", now)

	if !strings.Contains(p.System, "2026-09-01") {
		t.Errorf("system instruction missing date: %q", p.System)
	}
}

func TestBuildContentPrompt_QuoteOnlyKeepsQuoteVerbatim(t *testing.T) {
	quote := "Fortune favors the bold.\n- Virgil"
	p := card.BuildContentPrompt(card.DefaultForm(), true, quote, time.Now())

	if !strings.Contains(p.Instruction, "Fortune favors the bold.") || !strings.Contains(p.Instruction, "Virgil") {
		t.Errorf("instruction missing quote: %q", p.Instruction)
	}
	if !strings.Contains(p.Instruction, "verbatim") {
		t.Errorf("instruction should demand the quote stays verbatim: %q", p.Instruction)
	}
}

func TestBuildContentPrompt_GreetingModeUsesFormFields(t *testing.T) {
	form := card.DefaultForm()
	form.Sender = "J. Doe"
	form.Audience = "Clients"
	form.Occasion = "New Year Greeting"
	form.Tone = "Warm"
	form.Requirement = "mention the spring launch"

	p := card.BuildContentPrompt(form, false, "", time.Now())
	for _, want := range []string{"J. Doe", "Clients", "New Year Greeting", "Warm", "mention the spring launch"} {
		if !strings.Contains(p.Instruction, want) {
			t.Errorf("instruction missing %q: %q", want, p.Instruction)
		}
	}
}

func TestBuildImagePrompt_ForbidsTextAndKeepsNegativeSpace(t *testing.T) {
	p := card.BuildImagePrompt(card.ImageOptions{
		BgTheme:     "quiet mountain dawn",
		AspectRatio: "16:9",
		Now:         time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
	})

	if !strings.Contains(p.Prompt, "NO embedded text") {
		t.Errorf("prompt should forbid text: %q", p.Prompt)
	}
	if !strings.Contains(p.Prompt, "negative space") {
		t.Errorf("prompt should demand negative space: %q", p.Prompt)
	}
	if p.AspectRatio != "16:9" {
		t.Errorf("aspect ratio %q, want 16:9 as a structured parameter", p.AspectRatio)
	}
}

func TestBuildImagePrompt_InvalidAspectRatioFallsBack(t *testing.T) {
	p := card.BuildImagePrompt(card.ImageOptions{BgTheme: "t", AspectRatio: "2:1"})
	if p.AspectRatio != "1:1" {
		t.Errorf("aspect ratio %q, want 1:1 fallback", p.AspectRatio)
	}
}

func TestBuildImagePrompt_NatureMappingIsContentAware(t *testing.T) {
	spring := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)
	autumn := time.Date(2026, time.October, 10, 0, 0, 0, 0, time.UTC)
	winter := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		message string
		now     time.Time
		want    []string
		without []string
	}{
		{
			name:    "new beginnings map to sunrise",
			message: "Here is to a new beginning and bold goals",
			now:     spring,
			want:    []string{"sunrise", "cherry blossom"},
		},
		{
			name:    "gratitude maps to sunset",
			message: "Thank you for a remarkable year-end",
			now:     autumn,
			want:    []string{"sunset", "maple"},
		},
		{
			name:    "winter adds snow",
			message: "neutral words",
			now:     winter,
			want:    []string{"snow"},
			without: []string{"sunrise", "sunset"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := card.BuildImagePrompt(card.ImageOptions{
				BgTheme:        "calm",
				ImageType:      "Nature",
				MessageContext: tc.message,
				Now:            tc.now,
			})
			lower := strings.ToLower(p.Prompt)
			for _, want := range tc.want {
				if !strings.Contains(lower, want) {
					t.Errorf("prompt missing %q: %q", want, p.Prompt)
				}
			}
			for _, not := range tc.without {
				if strings.Contains(lower, not) {
					t.Errorf("prompt should not contain %q: %q", not, p.Prompt)
				}
			}
		})
	}
}

func TestBuildImagePrompt_NonNatureSkipsSceneCues(t *testing.T) {
	p := card.BuildImagePrompt(card.ImageOptions{
		BgTheme:        "calm",
		ImageType:      "Abstract",
		MessageContext: "a new beginning",
		Now:            time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	})
	if strings.Contains(strings.ToLower(p.Prompt), "sunrise") {
		t.Errorf("abstract type should not get nature cues: %q", p.Prompt)
	}
}

func TestBuildImagePrompt_ReferenceImageGuidesBlending(t *testing.T) {
	withRef := card.BuildImagePrompt(card.ImageOptions{
		BgTheme:        "calm",
		ReferenceImage: "data:image/png;base64,aGVsbG8=",
	})
	if !strings.Contains(withRef.Prompt, "blend") {
		t.Errorf("reference prompt should instruct blending: %q", withRef.Prompt)
	}
	if withRef.ReferenceImage == "" {
		t.Error("reference image should pass through as a structured field")
	}

	withoutRef := card.BuildImagePrompt(card.ImageOptions{BgTheme: "calm"})
	if !strings.Contains(withoutRef.Prompt, "without a reference") {
		t.Errorf("free generation prompt missing: %q", withoutRef.Prompt)
	}
}

func TestBuildPrompts_NeverLeakRenderingParameters(t *testing.T) {
	form := card.DefaultForm()
	form.Font = "'Noto Serif KR', serif"
	form.Colors.Text = "#ff00aa"

	content := card.BuildContentPrompt(form, false, "", time.Now())
	img := card.BuildImagePrompt(card.ImageOptions{BgTheme: "calm", AspectRatio: "1:1", Now: time.Now()})
	vid := card.BuildVideoPrompt(card.VideoOptions{BgTheme: "calm"})

	for _, prompt := range []string{content.Instruction, content.System, img.Prompt, vid.Prompt} {
		if strings.Contains(prompt, "Noto Serif") || strings.Contains(prompt, "#ff00aa") {
			t.Errorf("rendering parameter leaked into prompt: %q", prompt)
		}
	}
}

func TestBuildVideoPrompt_StructuredParameters(t *testing.T) {
	p := card.BuildVideoPrompt(card.VideoOptions{
		BgTheme:        "ocean at dusk",
		MessageContext: "thank you all",
		AspectRatio:    "9:16",
		ReferenceImage: "data:image/png;base64,aGVsbG8=",
	})

	if p.Count != 1 {
		t.Errorf("count %d, want fixed 1", p.Count)
	}
	if p.Resolution == "" {
		t.Error("expected a target resolution")
	}
	if p.AspectRatio != "9:16" {
		t.Errorf("aspect ratio %q, want 9:16", p.AspectRatio)
	}
	if p.SeedImage == "" {
		t.Error("seed image should pass through")
	}
	if !strings.Contains(p.Prompt, "NO embedded text") {
		t.Errorf("video prompt should forbid text: %q", p.Prompt)
	}
}

func TestBuildVideoPrompt_CoercesUnsupportedRatio(t *testing.T) {
	p := card.BuildVideoPrompt(card.VideoOptions{BgTheme: "t", AspectRatio: "3:4"})
	if p.AspectRatio != "16:9" {
		t.Errorf("aspect ratio %q, want 16:9 fallback", p.AspectRatio)
	}
}
