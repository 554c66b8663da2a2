package brand

import (
	"strings"
	"testing"
)

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"How to save more each month", "money_saving"},
		{"Build passive income streams", "passive_income"},
		{"Why index funds beat stock picking", "investing"},
		{"Raise your FICO quickly", "credit_score"},
		{"Crush your student loan", "debt_payoff"},
		{"Claim every deduction", "tax_strategies"},
		{"Morning routines of founders", DefaultCategory},
		// budget outranks invest
		{"Budget first, invest second", "money_saving"},
	}
	for _, tt := range tests {
		if got := DetectCategory(tt.text); got != tt.want {
			t.Errorf("DetectCategory(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	c, err := Lookup(" Professional_Male ")
	if err != nil || c.Style != ProfessionalMale {
		t.Errorf("Lookup() = %+v, %v", c, err)
	}
	if _, err := Lookup("cartoon"); err == nil {
		t.Error("Lookup(cartoon) should fail")
	}
}

func TestEnhanceKeepsSegmentVisual(t *testing.T) {
	p := Default().Enhance("  Coins stacking on a desk ", "investing")
	if !strings.Contains(p, "Scene: Coins stacking on a desk") {
		t.Errorf("prompt lost the segment visual: %q", p)
	}
	if !strings.Contains(p, "stock market charts") {
		t.Errorf("prompt lost the category elements: %q", p)
	}
	if !strings.HasPrefix(p, "No human presenter.") {
		t.Errorf("prompt should start with the character description: %q", p)
	}

	unknown := Default().Enhance("x", "gardening")
	if strings.Contains(unknown, "Visual elements:") {
		t.Errorf("unknown category should add no elements: %q", unknown)
	}
}
