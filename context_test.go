package experiments

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestContextValueKeypath(t *testing.T) {
	ctx := NewContext(map[string]any{
		"locale": "en-US",
		"user": map[string]any{
			"id":   "user-42",
			"plan": map[string]any{"tier": "pro"},
		},
	})

	value, ok := ctx.Value("locale")
	if !ok || value != "en-US" {
		t.Fatalf("expected locale lookup to succeed, got %v %v", value, ok)
	}
	value, ok = ctx.Value("user.id")
	if !ok || value != "user-42" {
		t.Fatalf("expected dotted keypath lookup, got %v %v", value, ok)
	}
	value, ok = ctx.Value("user.plan.tier")
	if !ok || value != "pro" {
		t.Fatalf("expected deep keypath lookup, got %v %v", value, ok)
	}
	if _, ok := ctx.Value("user.missing"); ok {
		t.Fatalf("expected missing keypath to report absence")
	}
	if _, ok := ctx.Value("locale.nested"); ok {
		t.Fatalf("expected traversal through a scalar to fail")
	}
}

func TestContextIdentityDeterministic(t *testing.T) {
	first := IdentityContext("user-42", nil)
	second := IdentityContext("user-42", nil)

	a, err := first.Identity(DefaultIdentityKeypath, "checkout", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := second.Identity(DefaultIdentityKeypath, "checkout", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical identity input to bucket identically, got %d and %d", a, b)
	}
	if a >= 100 {
		t.Fatalf("expected bucket in [0, 100), got %d", a)
	}

	other, err := first.Identity(DefaultIdentityKeypath, "ranking", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Different seeds must bucket independently; a collision on one pair is
	// possible but not for this fixed input.
	if other == a {
		t.Fatalf("expected seed to vary the bucket, got %d twice", a)
	}
}

func TestContextIdentityCachesRandom(t *testing.T) {
	ctx := NewContext(nil)
	first, err := ctx.Identity(IdentityRandom, "flag", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ctx.Identity(IdentityRandom, "flag", 100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("expected random bucket to stay stable within a scope, got %d then %d", first, again)
		}
	}
}

func TestContextIdentityMissingKeypath(t *testing.T) {
	ctx := NewContext(map[string]any{"locale": "en-US"})
	if _, err := ctx.Identity("user.id", "seed", 100); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
	var nilCtx *Context
	if _, err := nilCtx.Identity(DefaultIdentityKeypath, "seed", 100); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound on nil context, got %v", err)
	}
}

func TestIdentityContextSetsDefaultKeypath(t *testing.T) {
	ctx := IdentityContext("user-7", map[string]any{"locale": "en-US"})
	value, ok := ctx.Value(DefaultIdentityKeypath)
	if !ok || value != "user-7" {
		t.Fatalf("expected identity attribute to be set, got %v %v", value, ok)
	}
	if value, ok := ctx.Value("locale"); !ok || value != "en-US" {
		t.Fatalf("expected extra attributes to be kept, got %v %v", value, ok)
	}
}

func TestTrackingKey(t *testing.T) {
	key := TrackingKey()
	if _, err := uuid.Parse(key); err != nil {
		t.Fatalf("expected tracking key to be a UUID, got %q: %v", key, err)
	}
	if key == TrackingKey() {
		t.Fatalf("expected tracking keys to be unique")
	}
}
