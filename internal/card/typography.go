package card

import (
	"fmt"
	"unicode/utf8"
)

// StyleParameters is the fully resolved presentation style for the card
// text. Purely local: nothing here is ever sent to the generation service.
type StyleParameters struct {
	FontFamily    string
	FontWeight    string
	FontStyle     string
	TextAlign     string
	FontSizePx    float64
	LetterSpacing string
	LineHeight    float64
	Padding       string
	Color         string
	Opacity       float64
	TextShadow    string
}

type bucket struct {
	maxLen        int // exclusive upper bound on rune count
	fontSize      float64
	lineHeight    float64
	letterSpacing float64 // em
	padding       string
}

var buckets = []bucket{
	{maxLen: 25, fontSize: 42, lineHeight: 1.35, letterSpacing: 0.08, padding: "25% 15%"},
	{maxLen: 55, fontSize: 32, lineHeight: 1.55, letterSpacing: 0.04, padding: "22% 13%"},
	{maxLen: 100, fontSize: 24, lineHeight: 1.70, letterSpacing: 0.01, padding: "18% 10%"},
	{maxLen: -1, fontSize: 18, lineHeight: 1.80, letterSpacing: -0.01, padding: "14% 8%"},
}

// ResolveTypography maps the message length to a discrete preset bucket and
// applies the user's slider scales on top. Pure: equal inputs always
// resolve to equal output.
func ResolveTypography(message string, form FormState) StyleParameters {
	b := bucketFor(utf8.RuneCountInString(message))

	weight := "400"
	if form.Bold {
		weight = "900"
	}
	style := "normal"
	if form.Italic {
		style = "italic"
	}

	s := form.Scales
	c := form.Colors
	return StyleParameters{
		FontFamily:    form.Font,
		FontWeight:    weight,
		FontStyle:     style,
		TextAlign:     form.Align,
		FontSizePx:    b.fontSize * s.FontSize,
		LetterSpacing: fmt.Sprintf("%gem", b.letterSpacing+(s.LetterSpacing-1)*0.05),
		LineHeight:    b.lineHeight * s.LineHeight,
		Padding:       b.padding,
		Color:         c.Text,
		Opacity:       c.TextOpacity,
		TextShadow:    fmt.Sprintf("0 %gpx %gpx %s", c.ShadowIntensity, c.ShadowIntensity*2.2, c.ShadowColor),
	}
}

func bucketFor(length int) bucket {
	for _, b := range buckets {
		if b.maxLen < 0 || length < b.maxLen {
			return b
		}
	}
	return buckets[len(buckets)-1]
}
