package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts are the user messages sent for each step, plus the system prompt
// the chat agent runs with.
type Prompts struct {
	System       string `yaml:"system"`
	Verification string `yaml:"verification"`
	Analysis     string `yaml:"analysis"`
	Ratings      string `yaml:"ratings"`
	Shopping     string `yaml:"shopping"`
}

const verificationPrompt = "Here are 3 images of human face. requires images to be front face, left side face, " +
	"and right side face. If you find that the required images are not present, give negative " +
	"response and ask tell the user what they are missing in simple and less words. " +
	"give response in json like {success: false/true, message: '...'}"

const analysisPrompt = "Please analyze my bare-face photo. List bullet-point concerns (acne, pigmentation, " +
	"redness, wrinkles, etc.) and rate Hydration, Oil Balance, Tone, Barrier Strength, " +
	"and Sensitivity on a 1-5 scale. Keep it concise."

const ratingsPrompt = "From that analysis, output a JSON object with keys hydration, oilBalance, tone, " +
	"barrierStrength, sensitivity (numbers 1-5). No prose."

const shoppingPrompt = "Using that assessment, fetch current shopping options with links and thumbnails " +
	"for the AM/PM plan. Use tools if needed and return markdown with inline product cards. " +
	"Format the response in this format: ```json\n{\n  \"products\": [\n    {\n      " +
	"\"title\": \"Example Product Title\",\n      \"source\": \"ExampleSource.com\",\n      " +
	"\"link\": \"https://example.com/product-page\",\n      \"price\": \"$0.00\",\n      " +
	"\"imageUrl\": \"https://example.com/product-image.jpg\",\n      \"rating\": 0,\n      " +
	"\"ratingCount\": 0,\n      \"productId\": \"123456789\",\n      \"position\": 1\n    }\n  ]\n}\n```"

// DefaultPrompts returns the built-in script. System is left empty so the
// agent's own default applies.
func DefaultPrompts() Prompts {
	return Prompts{
		Verification: verificationPrompt,
		Analysis:     analysisPrompt,
		Ratings:      ratingsPrompt,
		Shopping:     shoppingPrompt,
	}
}

// LoadPrompts overlays the YAML file at path on DefaultPrompts. Keys missing
// from the file keep their default.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return p, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	for _, f := range []struct {
		dst *string
		src string
	}{
		{&p.System, override.System},
		{&p.Verification, override.Verification},
		{&p.Analysis, override.Analysis},
		{&p.Ratings, override.Ratings},
		{&p.Shopping, override.Shopping},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}
	return p, nil
}

func (p Prompts) forStep(s Step) string {
	switch s {
	case StepVerification:
		return p.Verification
	case StepAnalysis:
		return p.Analysis
	case StepRatings:
		return p.Ratings
	case StepShopping:
		return p.Shopping
	}
	return ""
}
