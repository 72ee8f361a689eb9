package experiments

import (
	"errors"
	"testing"
)

func TestParseEntryWeighted(t *testing.T) {
	experiment, err := ParseEntry("checkout:control[50],treatment[50]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if experiment.Name != "checkout" {
		t.Fatalf("expected name checkout, got %q", experiment.Name)
	}
	if !experiment.Active {
		t.Fatalf("expected entry to default to active")
	}
	if experiment.Identity != DefaultIdentityKeypath {
		t.Fatalf("expected default identity keypath, got %q", experiment.Identity)
	}
	if len(experiment.Variants) != 2 || experiment.Variants[0] != "control" || experiment.Variants[1] != "treatment" {
		t.Fatalf("unexpected variants: %v", experiment.Variants)
	}
	if len(experiment.Audiences) != 1 {
		t.Fatalf("expected a single audience, got %d", len(experiment.Audiences))
	}
	allocations := experiment.Audiences[0].Allocations
	if len(allocations) != 2 || allocations[0].Weight != 50 || allocations[1].Weight != 50 {
		t.Fatalf("unexpected allocations: %+v", allocations)
	}
}

func TestParseEntrySplitsRemainderAmongUnweighted(t *testing.T) {
	cases := []struct {
		entry   string
		weights []int
	}{
		{"exp:a,b", []int{50, 50}},
		{"exp:a[60],b", []int{60, 40}},
		{"exp:a,b,c", []int{34, 33, 33}},
		{"exp:a[90],b,c", []int{90, 5, 5}},
	}
	for _, tc := range cases {
		experiment, err := ParseEntry(tc.entry)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.entry, err)
		}
		allocations := experiment.Audiences[0].Allocations
		if len(allocations) != len(tc.weights) {
			t.Fatalf("%s: expected %d allocations, got %d", tc.entry, len(tc.weights), len(allocations))
		}
		for i, weight := range tc.weights {
			if allocations[i].Weight != weight {
				t.Fatalf("%s: allocation %d expected weight %d, got %d", tc.entry, i, weight, allocations[i].Weight)
			}
		}
	}
}

func TestParseEntrySwitchShorthand(t *testing.T) {
	experiment, err := ParseEntry("new_banner:on")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !experiment.IsSwitch() {
		t.Fatalf("expected switch shorthand to produce a switch, got %+v", experiment)
	}
	if experiment.Identity != IdentityRandom {
		t.Fatalf("expected random identity for switch, got %q", experiment.Identity)
	}
	allocations := experiment.Audiences[0].Allocations
	if len(allocations) != 1 || allocations[0].Variant != VariantOn || allocations[0].Weight != DefaultWeightTotal {
		t.Fatalf("expected all-or-nothing allocation on %q, got %+v", VariantOn, allocations)
	}

	off, err := ParseEntry("new_banner:off")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off.Audiences[0].Allocations[0].Variant != VariantOff {
		t.Fatalf("expected allocation on %q, got %+v", VariantOff, off.Audiences[0].Allocations)
	}
}

func TestParseEntryStatusFlag(t *testing.T) {
	experiment, err := ParseEntry("checkout:control[50],treatment[50]@inactive")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if experiment.Active {
		t.Fatalf("expected @inactive entry to be inactive")
	}

	experiment, err = ParseEntry("flag:on@active")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !experiment.Active {
		t.Fatalf("expected @active entry to be active")
	}

	if _, err := ParseEntry("flag:on@paused"); !errors.Is(err, ErrMalformedDefinition) {
		t.Fatalf("expected malformed error for unknown status flag, got %v", err)
	}
}

func TestParseEntryMalformed(t *testing.T) {
	cases := []string{
		"",
		"noseparator",
		":control[100]",
		"exp:",
		"exp:control[100",
		"exp:control[x]",
		"exp:control[-1]",
		"exp:a[60],b[20]",
		"bad:::",
		"exp:a[50],a[50]",
		"exp:a[0],b[0]",
	}
	for _, entry := range cases {
		if _, err := ParseEntry(entry); !errors.Is(err, ErrMalformedDefinition) {
			t.Fatalf("%q: expected ErrMalformedDefinition, got %v", entry, err)
		}
	}
}

func TestParseEntryWeightOverflow(t *testing.T) {
	_, err := ParseEntry("exp:a[80],b[30]")
	if !errors.Is(err, ErrWeightOverflow) {
		t.Fatalf("expected ErrWeightOverflow, got %v", err)
	}
	var parseError *ParseError
	if !errors.As(err, &parseError) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if parseError.Line != 1 {
		t.Fatalf("expected line 1, got %d", parseError.Line)
	}
}

func TestParseEntryCustomWeightTotal(t *testing.T) {
	experiment, err := ParseEntry("exp:a[7],b[3]", WithWeightTotal(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if experiment.Audiences[0].Allocations[0].Weight != 7 {
		t.Fatalf("unexpected allocations: %+v", experiment.Audiences[0].Allocations)
	}
	if _, err := ParseEntry("exp:a[7],b[3]"); !errors.Is(err, ErrMalformedDefinition) {
		t.Fatalf("expected default total to reject sum 10, got %v", err)
	}
}

func TestParseEntriesPartialSuccess(t *testing.T) {
	definitions, err := ParseEntries([]string{
		"checkout:on",
		"bad:::",
		"",
		"ranking:control[50],treatment[50]",
	})
	if err == nil {
		t.Fatalf("expected joined error for the bad entry")
	}
	if !errors.Is(err, ErrMalformedDefinition) {
		t.Fatalf("expected ErrMalformedDefinition in joined error, got %v", err)
	}
	if len(definitions) != 2 {
		t.Fatalf("expected the two valid definitions to survive, got %d", len(definitions))
	}
	if definitions[0].Name != "checkout" || definitions[1].Name != "ranking" {
		t.Fatalf("unexpected definitions: %+v", definitions)
	}

	var parseError *ParseError
	if !errors.As(err, &parseError) {
		t.Fatalf("expected *ParseError in joined error, got %v", err)
	}
	if parseError.Line != 2 {
		t.Fatalf("expected error to point at entry 2, got %d", parseError.Line)
	}
}

func TestParseEntriesDuplicateFirstWins(t *testing.T) {
	definitions, err := ParseEntries([]string{"flag:on", "flag:off"})
	if !errors.Is(err, ErrDuplicateExperiment) {
		t.Fatalf("expected ErrDuplicateExperiment, got %v", err)
	}
	if len(definitions) != 1 {
		t.Fatalf("expected first occurrence to win, got %d definitions", len(definitions))
	}
	if definitions[0].Audiences[0].Allocations[0].Variant != VariantOn {
		t.Fatalf("expected the first definition to be kept, got %+v", definitions[0])
	}
}

func TestValidateRejectsBrokenAudiences(t *testing.T) {
	base := Experiment{
		Name:     "exp",
		Identity: DefaultIdentityKeypath,
		Variants: []string{"a", "b"},
		Active:   true,
	}

	broken := base
	broken.Audiences = []Audience{{Rule: `locale == "en"`, Allocations: []Allocation{{Variant: "a", Weight: 100}}}}
	if err := broken.Validate(); err == nil {
		t.Fatalf("expected final audience with a rule to be rejected")
	}

	broken = base
	broken.Audiences = []Audience{
		{Allocations: []Allocation{{Variant: "a", Weight: 100}}},
		{Allocations: []Allocation{{Variant: "b", Weight: 100}}},
	}
	if err := broken.Validate(); err == nil {
		t.Fatalf("expected rule-less non-final audience to be rejected")
	}

	broken = base
	broken.Audiences = []Audience{{Allocations: []Allocation{{Variant: "missing", Weight: 100}}}}
	if err := broken.Validate(); err == nil {
		t.Fatalf("expected allocation naming undeclared variant to be rejected")
	}

	broken = base
	broken.Audiences = []Audience{{Allocations: []Allocation{{Variant: "a", Weight: 60}, {Variant: "b", Weight: 60}}}}
	if err := broken.Validate(); err == nil {
		t.Fatalf("expected allocation sum above total to be rejected")
	}
}
