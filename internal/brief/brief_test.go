package brief

import (
	"strings"
	"testing"

	"github.com/railscan/polemap/internal/severity"
)

func TestBuildPrompt(t *testing.T) {
	s := Summary{
		Source:   "run-0301.csv",
		RowCount: 120,
		Counts: map[severity.Category]int{
			severity.Normal:         100,
			severity.SeverePositive: 3,
			severity.Unknown:        17,
		},
		Worst: []WorstPole{
			{PoleID: "POLE-17", Value: 0.21, Category: severity.SeverePositive},
			{PoleID: "POLE-90", Value: -0.31, Category: severity.SevereNegative},
		},
	}

	prompt := BuildPrompt(s)
	for _, want := range []string{"run-0301.csv", "120 poles", "severe_positive: 3", "POLE-17", "POLE-90"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "normal: 0") {
		t.Error("zero-count categories should be omitted")
	}
	// worst offenders sorted by magnitude regardless of sign
	if strings.Index(prompt, "POLE-90") > strings.Index(prompt, "POLE-17") {
		t.Error("largest magnitude should come first")
	}
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewGenerator(); err == nil {
		t.Error("expected error without API key")
	}
}
