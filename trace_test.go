package experiments

import (
	"strings"
	"testing"
)

func TestTraceJSONRoundTrip(t *testing.T) {
	trace := Trace{
		Experiment: "ranking",
		Variant:    "treatment",
		Source:     SourceComputed,
		Audience:   1,
		Rule:       `locale == "en-US"`,
		Identity:   "user.id",
		Bucket:     73,
	}
	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if decoded != trace {
		t.Fatalf("expected round trip, got %+v", decoded)
	}
}

func TestTraceJSONOmitsEmptyProvenance(t *testing.T) {
	trace := Trace{Experiment: "checkout", Variant: VariantOn, Source: SourceOverride, Audience: -1}
	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	if strings.Contains(string(payload), `"rule"`) || strings.Contains(string(payload), `"identity"`) {
		t.Fatalf("expected empty rule/identity omitted, got %s", payload)
	}
}
