package hydrate

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Name     string   `json:"name"`
	Variants []string `json:"variants"`
	Weight   int      `json:"weight"`
}

func TestDecoderDecodesPayload(t *testing.T) {
	decoder := NewDecoder[sample]()
	payload := map[string]any{
		"name":     "ranking",
		"variants": []any{"control", "treatment"},
		"weight":   50,
	}

	value, err := decoder.Decode(Context{Name: "ranking", Source: "test"}, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if value.Name != "ranking" || value.Weight != 50 || len(value.Variants) != 2 {
		t.Fatalf("unexpected value: %+v", value)
	}
}

func TestDecoderRejectsNilPayload(t *testing.T) {
	decoder := NewDecoder[sample]()
	if _, err := decoder.Decode(Context{Name: "ranking"}, nil); err == nil {
		t.Fatalf("expected nil payload to be rejected")
	}
}

func TestDecoderDisallowUnknownFields(t *testing.T) {
	decoder := NewDecoder[sample](WithDisallowUnknownFields[sample]())
	payload := map[string]any{"name": "ranking", "surprise": true}

	_, err := decoder.Decode(Context{Name: "ranking"}, payload)
	if err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
	if !strings.Contains(err.Error(), "surprise") {
		t.Fatalf("expected error to name the field, got %v", err)
	}
}

func TestDecoderHooks(t *testing.T) {
	errInvalid := errors.New("invalid weight")
	decoder := NewDecoder[sample](
		WithPreHook[sample](func(_ Context, payload map[string]any) (map[string]any, error) {
			if _, ok := payload["weight"]; !ok {
				payload["weight"] = 100
			}
			return payload, nil
		}),
		WithPostHook[sample](func(_ Context, value *sample) error {
			if value.Weight < 0 {
				return errInvalid
			}
			return nil
		}),
	)

	value, err := decoder.Decode(Context{Name: "ranking"}, map[string]any{"name": "ranking"})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if value.Weight != 100 {
		t.Fatalf("expected pre-hook default applied, got %+v", value)
	}

	_, err = decoder.Decode(Context{Name: "ranking"}, map[string]any{"name": "ranking", "weight": -1})
	if !errors.Is(err, errInvalid) {
		t.Fatalf("expected post-hook error surfaced, got %v", err)
	}
}

func TestDecoderDoesNotMutateCallerPayload(t *testing.T) {
	decoder := NewDecoder[sample](
		WithPreHook[sample](func(_ Context, payload map[string]any) (map[string]any, error) {
			payload["weight"] = 100
			return payload, nil
		}),
	)
	payload := map[string]any{"name": "ranking"}
	if _, err := decoder.Decode(Context{Name: "ranking"}, payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := payload["weight"]; ok {
		t.Fatalf("expected caller payload untouched, got %v", payload)
	}
}
