package experiments

import (
	"fmt"
	"testing"
)

func BenchmarkContextIdentity(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ctx := IdentityContext(fmt.Sprintf("user-%d", i), nil)
		if _, err := ctx.Identity(DefaultIdentityKeypath, "ranking", DefaultWeightTotal); err != nil {
			b.Fatalf("identity: %v", err)
		}
	}
}

func BenchmarkEngineResolve(b *testing.B) {
	definitions, err := ParseEntries([]string{"ranking:control[50],treatment[50]"})
	if err != nil {
		b.Fatalf("parse: %v", err)
	}
	snap := NewSnapshot(definitions)
	engine := New()
	ctx := IdentityContext("user-42", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Resolve(snap, "ranking", ctx, nil); err != nil {
			b.Fatalf("resolve: %v", err)
		}
	}
}

func BenchmarkStateResolveMemoized(b *testing.B) {
	definitions, err := ParseEntries([]string{"ranking:control[50],treatment[50]"})
	if err != nil {
		b.Fatalf("parse: %v", err)
	}
	state := NewState(New(), NewSnapshot(definitions), IdentityContext("user-42", nil), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := state.Resolve("ranking"); err != nil {
			b.Fatalf("resolve: %v", err)
		}
	}
}
