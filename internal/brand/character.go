// Package brand keeps generated clips visually consistent across segments.
package brand

import (
	"fmt"
	"strings"
)

type Style string

const (
	NoFace           Style = "no_face"
	ProfessionalMale Style = "professional_male"
	RelatableFemale  Style = "relatable_female"
)

// Character is the presenter and camera look prepended to every clip prompt.
type Character struct {
	Style       Style
	VisualStyle string
	Description string
	CameraStyle string
}

var characters = map[Style]Character{
	NoFace: {
		Style:       NoFace,
		VisualStyle: "professional motion graphics",
		Description: "No human presenter. Focus on visual storytelling with charts, infographics, money symbols, and financial concepts. Use clean animations, bold text overlays, and dynamic transitions. Professional color scheme: navy blue, gold accents, white backgrounds.",
		CameraStyle: "static shots of graphics, smooth transitions between visual elements",
	},
	ProfessionalMale: {
		Style:       ProfessionalMale,
		VisualStyle: "professional finance expert",
		Description: "Male presenter, early 30s, short black hair neatly styled, clean-shaven with a confident smile. Wearing a navy blue blazer over a white dress shirt. Modern office background with minimal decor and natural lighting. Speaks directly to camera with professional hand gestures.",
		CameraStyle: "medium shot, eye-level, professional lighting setup",
	},
	RelatableFemale: {
		Style:       RelatableFemale,
		VisualStyle: "relatable millennial advisor",
		Description: "Female presenter, late 20s, shoulder-length brown hair in casual waves, warm genuine smile. Wearing a fitted cream sweater and minimal gold jewelry. Home office setup with plants and a bookshelf visible. Conversational and energetic style.",
		CameraStyle: "medium close-up, slightly off-center, warm natural lighting",
	},
}

// Lookup returns the character for a style name.
func Lookup(name string) (Character, error) {
	c, ok := characters[Style(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return Character{}, fmt.Errorf("unknown brand character %q", name)
	}
	return c, nil
}

// Default is the faceless motion-graphics character.
func Default() Character {
	return characters[NoFace]
}

const DefaultCategory = "money_saving"

var categoryVisuals = map[string]string{
	"money_saving":   "piggy bank, growing stacks of coins, savings jar, budget spreadsheet",
	"passive_income": "money tree, multiple income streams visualization, rental property, dividend stocks",
	"investing":      "stock market charts, rising graphs, portfolio diversification, compound interest visualization",
	"budgeting":      "expense tracking app, categorized spending, 50/30/20 rule visualization",
	"credit_score":   "credit report, score gauge moving upward, payment history timeline",
	"debt_payoff":    "debt snowball visualization, decreasing debt bars, celebration of milestone",
	"side_hustle":    "laptop with earnings dashboard, freelance workspace, online business icons",
	"tax_strategies": "tax forms, deduction checklist, refund visualization",
}

// Checked in order; the first category with a matching keyword wins.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"money_saving", []string{"save", "saving", "budget"}},
	{"passive_income", []string{"passive income", "side hustle", "extra income"}},
	{"investing", []string{"invest", "stock", "portfolio", "dividend"}},
	{"credit_score", []string{"credit score", "credit report", "fico"}},
	{"debt_payoff", []string{"debt", "payoff", "loan"}},
	{"tax_strategies", []string{"tax", "deduction", "refund"}},
}

// DetectCategory picks a topic category from narration text.
func DetectCategory(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range categoryKeywords {
		for _, w := range kw.words {
			if strings.Contains(lower, w) {
				return kw.category
			}
		}
	}
	return DefaultCategory
}

// Enhance wraps one segment's visual description with the character look and
// the category's visual elements.
func (c Character) Enhance(visual, category string) string {
	var b strings.Builder
	b.WriteString(c.Description)
	if c.CameraStyle != "" {
		fmt.Fprintf(&b, " %s.", c.CameraStyle)
	}
	if elements, ok := categoryVisuals[category]; ok {
		fmt.Fprintf(&b, " Visual elements: %s.", elements)
	}
	fmt.Fprintf(&b, " Scene: %s", strings.TrimSpace(visual))
	b.WriteString(" Professional production quality, well-lit, sharp focus, cinematic composition. The clip should have a natural, smooth ending that can transition seamlessly to the next scene, avoiding abrupt cuts mid-action.")
	return strings.TrimSpace(b.String())
}
