package layering

import "testing"

func TestMergeLayersStrongWins(t *testing.T) {
	type config struct {
		Name    string
		Weights map[string]int
		Tags    []string
	}

	strong := config{Name: "cookie", Weights: map[string]int{"ranking": 2}}
	weak := config{Name: "settings", Weights: map[string]int{"ranking": 1, "checkout": 1}, Tags: []string{"base"}}

	merged := MergeLayers(strong, weak)
	if merged.Name != "cookie" {
		t.Fatalf("expected strong scalar to win, got %q", merged.Name)
	}
	if merged.Weights["ranking"] != 2 {
		t.Fatalf("expected strong map entry to win, got %v", merged.Weights)
	}
	if merged.Weights["checkout"] != 1 {
		t.Fatalf("expected weak-only map entry filled in, got %v", merged.Weights)
	}
	if len(merged.Tags) != 1 || merged.Tags[0] != "base" {
		t.Fatalf("expected nil strong slice filled from weak, got %v", merged.Tags)
	}
}

func TestMergeLayersMaps(t *testing.T) {
	strong := map[string]string{"ranking": "treatment"}
	weak := map[string]string{"ranking": "control", "checkout": "on"}

	merged := MergeLayers(strong, weak)
	if merged["ranking"] != "treatment" || merged["checkout"] != "on" {
		t.Fatalf("unexpected merge: %v", merged)
	}
	// Inputs stay untouched.
	if strong["checkout"] != "" || weak["ranking"] != "control" {
		t.Fatalf("expected merge not to mutate layers: %v %v", strong, weak)
	}
}

func TestMergeLayersEmpty(t *testing.T) {
	if merged := MergeLayers[map[string]int](); merged != nil {
		t.Fatalf("expected zero value for no layers, got %v", merged)
	}
}

func TestCloneDetaches(t *testing.T) {
	type definition struct {
		Name  string
		Attrs map[string]any
		Rules []string
	}

	original := []definition{{
		Name:  "ranking",
		Attrs: map[string]any{"locale": "en-US"},
		Rules: []string{"a", "b"},
	}}
	cloned := Clone(original)

	original[0].Attrs["locale"] = "fr-FR"
	original[0].Rules[0] = "mutated"
	original[0].Name = "renamed"

	if cloned[0].Name != "ranking" {
		t.Fatalf("expected cloned scalar detached, got %q", cloned[0].Name)
	}
	if cloned[0].Attrs["locale"] != "en-US" {
		t.Fatalf("expected cloned map detached, got %v", cloned[0].Attrs)
	}
	if cloned[0].Rules[0] != "a" {
		t.Fatalf("expected cloned slice detached, got %v", cloned[0].Rules)
	}
}

func TestCloneNil(t *testing.T) {
	if cloned := Clone[[]string](nil); cloned != nil {
		t.Fatalf("expected nil slice to clone to nil, got %v", cloned)
	}
}
