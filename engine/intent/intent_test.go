package intent

import (
	"testing"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		question string
		want     domain.Intent
	}{
		{"How do I apply for a hostel room?", domain.IntentProcedure},
		{"how to get a bonafide certificate", domain.IntentProcedure},
		{"Steps for semester registration", domain.IntentProcedure},
		{"What is the attendance policy?", domain.IntentDefinition},
		{"Define academic probation", domain.IntentDefinition},
		{"What are the eligibility criteria for scholarships?", domain.IntentRequirement},
		{"minimum attendance requirement for exams", domain.IntentRequirement},
		{"When is the fee payment deadline?", domain.IntentDeadline},
		{"last date for course withdrawal", domain.IntentDeadline},
		{"Tell me about the library", domain.IntentGeneral},
		{"", domain.IntentGeneral},
	}
	for _, tc := range cases {
		if got := Detect(tc.question); got != tc.want {
			t.Errorf("Detect(%q) = %q, want %q", tc.question, got, tc.want)
		}
	}
}

func TestDetect_PrefixPrecedence(t *testing.T) {
	// "what is" wins over a deadline keyword later in the sentence: prefix
	// patterns are checked first.
	if got := Detect("What is the deadline policy?"); got != domain.IntentDefinition {
		t.Errorf("got %q, want definition", got)
	}
}

func TestDepthFor(t *testing.T) {
	cases := map[domain.Intent]int{
		domain.IntentDefinition:  3,
		domain.IntentDeadline:    3,
		domain.IntentRequirement: 4,
		domain.IntentProcedure:   5,
		domain.IntentGeneral:     5,
		domain.Intent("bogus"):   5,
	}
	for i, want := range cases {
		if got := DepthFor(i); got != want {
			t.Errorf("DepthFor(%q) = %d, want %d", i, got, want)
		}
	}
}

func TestVisualPolicy_Detect(t *testing.T) {
	p := DefaultVisualPolicy
	visual := []string{
		"Show me the campus map",
		"where is the PARKING lot",
		"what does the admission form look like",
		"fee structure table",
	}
	for _, q := range visual {
		if !p.Detect(q) {
			t.Errorf("expected visual intent for %q", q)
		}
	}
	plain := []string{
		"When is the fee deadline?",
		"How do I register for courses?",
	}
	for _, q := range plain {
		if p.Detect(q) {
			t.Errorf("did not expect visual intent for %q", q)
		}
	}
}

func TestVisualPolicy_CustomKeywords(t *testing.T) {
	p := VisualPolicy{Keywords: []string{"blueprint"}}
	if !p.Detect("show the blueprint") {
		t.Error("custom keyword not matched")
	}
	if p.Detect("show me the campus map") {
		t.Error("default keywords should not apply to a custom policy")
	}
}
