package prompt

import (
	"strings"
	"testing"

	"neurodeck/internal/catalog"
)

func TestGuidanceListsAllTools(t *testing.T) {
	c := catalog.Build(catalog.TierStandard, catalog.Options{})
	got := BuildGuidancePrompt(c)

	for _, name := range c.Names() {
		if !strings.Contains(got, "- "+name+":") {
			t.Errorf("guidance missing tool %s", name)
		}
	}
}

func TestGuidanceScreenContract(t *testing.T) {
	c := catalog.Build(catalog.TierStandard, catalog.Options{})
	got := BuildGuidancePrompt(c)

	if !strings.Contains(got, "canonical output channel") {
		t.Error("guidance must name emit_screen as the canonical output channel")
	}
	if !strings.Contains(got, "read_screen is optional") {
		t.Error("guidance must present read_screen as optional")
	}
	if !strings.Contains(got, "lightest mode first") {
		t.Error("guidance must suggest the lightest read mode first")
	}
}

func TestGuidanceNeverMandatesReadEveryTurn(t *testing.T) {
	for _, tier := range []catalog.Tier{catalog.TierNone, catalog.TierStandard, catalog.TierExperimental} {
		c := catalog.Build(tier, catalog.Options{})
		got := strings.ToLower(BuildGuidancePrompt(c))

		for _, banned := range []string{
			"call read_screen every turn",
			"always call read_screen",
			"read_screen each turn",
		} {
			if strings.Contains(got, banned) {
				t.Errorf("tier %s guidance contains banned instruction %q", tier, banned)
			}
		}
	}
}

func TestGuidanceOmitsReadbackWhenAbsent(t *testing.T) {
	c := catalog.Build(catalog.TierStandard, catalog.Options{OnboardingRequired: true})
	got := BuildGuidancePrompt(c)

	if strings.Contains(got, "read_screen is optional") {
		t.Error("onboarding catalog has no read_screen; guidance should not mention its policy")
	}
	if !strings.Contains(got, "onboarding") {
		t.Error("restricted guidance should explain the onboarding gate")
	}
}

func TestGuidanceDeterministic(t *testing.T) {
	c := catalog.Build(catalog.TierExperimental, catalog.Options{})
	if BuildGuidancePrompt(c) != BuildGuidancePrompt(c) {
		t.Error("guidance must be deterministic for a fixed catalog")
	}
}
