package card

// QuoteCandidate is one quote option produced by a quote fetch. Immutable
// once created; a batch is held until the next fetch replaces it.
type QuoteCandidate struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// GeneratedContent is the full output of one content-generation call.
// Exactly one live instance exists per session; regeneration replaces it
// wholesale, never merges.
type GeneratedContent struct {
	MainMessage        string `json:"mainMessage"`
	AlternativeMessage string `json:"alternativeMessage"`
	BgTheme            string `json:"bgTheme"`
	RecommendedSeason  string `json:"recommendedSeason"`
	Sender             string `json:"sender"`
	Situation          string `json:"situation"`
	Target             string `json:"target"`
}

// FormState is the mutable snapshot of everything the user can edit.
// Owned by the running session, reset only by starting a new session.
type FormState struct {
	Sender      string
	Occasion    string
	Audience    string
	Tone        string
	QuoteTheme  string
	Requirement string

	ImageType   string
	StylePreset string
	LayoutFrame string
	TextFrame   string

	DesignRequirement string
	RefinementText    string

	Font      string
	Align     string
	Bold      bool
	Italic    bool

	Scales Scales
	Colors Colors

	// ReferenceImage is a data URI carrying the user's uploaded image, or
	// empty when none was supplied. AspectRatio is detected from it.
	ReferenceImage string
	AspectRatio    string
}

// Scales are the three user-controlled typography sliders. The resolver
// applies them on top of the length bucket without imposing bounds.
type Scales struct {
	FontSize      float64
	LetterSpacing float64
	LineHeight    float64
}

// Colors carries the color and opacity settings forwarded untouched into
// the resolved style. None of these ever reach a generation prompt.
type Colors struct {
	Text            string
	TextOpacity     float64
	ShadowIntensity float64
	ShadowColor     string
	Frame           string
	OverlayOpacity  float64
}

func DefaultForm() FormState {
	return FormState{
		Occasion:    Occasions[0],
		Audience:    Audiences[0],
		Tone:        Tones[0],
		QuoteTheme:  QuoteThemes[0],
		ImageType:   ImageTypes[0],
		StylePreset: StylePresets[0],
		LayoutFrame: "FullGold",
		TextFrame:   "None",
		Font:        Fonts[0].Value,
		Align:       "center",
		Bold:        true,
		AspectRatio: "1:1",
		Scales: Scales{
			FontSize:      1.0,
			LetterSpacing: 1.0,
			LineHeight:    1.0,
		},
		Colors: Colors{
			Text:            "#ffffff",
			TextOpacity:     1.0,
			ShadowIntensity: 12,
			ShadowColor:     "rgba(0,0,0,0.9)",
			Frame:           "#f59e0b",
			OverlayOpacity:  0.5,
		},
	}
}
