package story

import (
	"fmt"
	"math"
	"strings"
)

// GenerateRequest is the story-generation form payload.
type GenerateRequest struct {
	ReadingLevel   string   `json:"readingLevel"`
	InterestLevel  string   `json:"interestLevel"`
	Theme          string   `json:"theme"`
	ThemeLesson    string   `json:"themeLesson,omitempty"`
	HasThemeLesson bool     `json:"hasThemeLesson"`
	Length         string   `json:"length"`
	Language       string   `json:"language"`
	IsDrSeussStyle bool     `json:"isDrSeussStyle"`
	UseSightWords  bool     `json:"useSightWords"`
	Keywords       []string `json:"keywords"`
}

type levelProfile struct {
	minWords    int
	maxWords    int
	minSentence int
	maxSentence int
	guidance    string
}

// readingLevelProfiles maps a reading level to its word-count and
// sentence-length ranges before the length multiplier is applied.
var readingLevelProfiles = map[string]levelProfile{
	"pre-reader":   {40, 80, 3, 5, "Use very simple, repetitive vocabulary a pre-reader can follow along with."},
	"kindergarten": {80, 150, 4, 6, "Use common sight words and short, simple sentences."},
	"grade-1":      {150, 250, 5, 8, "Use familiar vocabulary with a few gently challenging words."},
	"grade-2":      {250, 400, 6, 10, "Use varied sentence starts and some descriptive language."},
	"grade-3":      {400, 600, 8, 12, "Use richer vocabulary, dialogue, and a clear story arc."},
}

var defaultLevelProfile = levelProfile{150, 250, 5, 8, "Use simple, age-appropriate vocabulary."}

var lengthMultipliers = map[string]float64{
	"short":  0.7,
	"medium": 1.0,
	"long":   1.3,
}

// lengthTokenBudgets caps upstream cost and latency per requested length.
var lengthTokenBudgets = map[string]int{
	"short":  300,
	"medium": 500,
	"long":   800,
}

var interestToneGuidance = map[string]string{
	"toddler":          "Keep the tone gentle, warm, and soothing.",
	"early-elementary": "Keep the tone playful and full of wonder.",
	"upper-elementary": "Keep the tone adventurous with a touch of humor.",
}

const defaultToneGuidance = "Keep the tone warm, positive, and age-appropriate."

// TokenBudget returns the bounded completion budget for a length. Unknown
// lengths get the medium budget.
func TokenBudget(length string) int {
	if budget, ok := lengthTokenBudgets[length]; ok {
		return budget
	}
	return lengthTokenBudgets["medium"]
}

// BuildPrompt renders the generation prompt deterministically from the
// request: same request, same prompt.
func BuildPrompt(req *GenerateRequest) string {
	profile, ok := readingLevelProfiles[req.ReadingLevel]
	if !ok {
		profile = defaultLevelProfile
	}
	multiplier, ok := lengthMultipliers[req.Length]
	if !ok {
		multiplier = lengthMultipliers["medium"]
	}

	minWords := int(math.Round(float64(profile.minWords) * multiplier))
	maxWords := int(math.Round(float64(profile.maxWords) * multiplier))

	var b strings.Builder
	fmt.Fprintf(&b, "Write a children's story about %q for a reader at the %s level.\n", req.Theme, req.ReadingLevel)
	fmt.Fprintf(&b, "The story must be between %d and %d words, with sentences of %d to %d words.\n",
		minWords, maxWords, profile.minSentence, profile.maxSentence)
	b.WriteString(profile.guidance)
	b.WriteString("\n")

	tone, ok := interestToneGuidance[req.InterestLevel]
	if !ok {
		tone = defaultToneGuidance
	}
	b.WriteString(tone)
	b.WriteString("\n")

	if req.HasThemeLesson && req.ThemeLesson != "" {
		fmt.Fprintf(&b, "Weave in this lesson naturally: %s\n", req.ThemeLesson)
	}

	if req.UseSightWords && len(req.Keywords) > 0 {
		fmt.Fprintf(&b, "Include each of these sight words at least once: %s.\n",
			strings.Join(req.Keywords, ", "))
	}

	if req.IsDrSeussStyle {
		b.WriteString("Write in a whimsical rhyming style with a bouncy rhythm.\n")
	}

	fmt.Fprintf(&b, "Write the story in %s.\n", req.Language)
	b.WriteString(`Respond with a JSON object: {"title": "...", "content": "..."} and nothing else.`)

	return b.String()
}
