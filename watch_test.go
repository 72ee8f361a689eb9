package experiments

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestProviderWatchRefreshesOnChange(t *testing.T) {
	path := writeFile(t, "experiments.conf", "checkout:on\n")
	provider := NewProvider(NewFileSource(path))
	if err := provider.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if provider.Current().Len() != 1 {
		t.Fatalf("expected initial snapshot, got %d", provider.Current().Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := provider.Watch(ctx, path); err != nil {
		t.Fatalf("watch: %v", err)
	}

	content := "checkout:on\nranking:control[50],treatment[50]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if provider.Current().Len() == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected watcher to publish the updated snapshot, still at %d definitions", provider.Current().Len())
}

func TestProviderWatchMissingDirectory(t *testing.T) {
	provider := NewProvider(NewFileSource("/nonexistent/dir/experiments.conf"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := provider.Watch(ctx, "/nonexistent/dir/experiments.conf"); err == nil {
		t.Fatalf("expected watch on a missing directory to fail")
	}
}
