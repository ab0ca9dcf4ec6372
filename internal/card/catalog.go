package card

type NamedOption struct {
	Value string
	Name  string
}

var Occasions = []string{
	"New Year Greeting",
	"Year-End Thanks",
	"Project Launch",
	"Promotion Congratulations",
	"Team Encouragement",
	"Client Appreciation",
	"Condolence",
	"Recovery Wishes",
}

var Audiences = []string{
	"Executives",
	"Team Members",
	"Clients",
	"Partners",
	"Mentor",
	"Family",
}

var Tones = []string{
	"Powerful",
	"Energetic",
	"Warm",
	"Simple",
}

var QuoteThemes = []string{
	"Leadership",
	"Courage",
	"Gratitude",
}

var ImageTypes = []string{
	"Nature",
	"Abstract",
	"Urban",
	"Texture",
}

var StylePresets = []string{
	"Cinematic",
	"Realistic",
	"Watercolor",
	"Oil Painting",
	"Minimal",
}

var LayoutFrames = []string{
	"FullGold",
	"ThinLine",
	"Corner",
	"None",
}

var TextFrames = []string{
	"None",
	"Underline",
	"Box",
	"Glow",
}

var Fonts = []NamedOption{
	{Value: "'Noto Serif KR', serif", Name: "Noto Serif"},
	{Value: "'Nanum Myeongjo', serif", Name: "Nanum Myeongjo"},
	{Value: "'Gowun Batang', serif", Name: "Gowun Batang"},
	{Value: "'Pretendard', sans-serif", Name: "Pretendard"},
	{Value: "'Playfair Display', serif", Name: "Playfair Display"},
}

// AspectRatios the image call accepts as a structured parameter.
var AspectRatios = []string{"1:1", "3:4", "4:3", "9:16", "16:9"}

func validAspectRatio(ratio string) bool {
	for _, r := range AspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}
