package experiments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithRefreshLogger attaches a logger receiving one event per refresh,
// including the load failures that never reach resolution callers.
func WithRefreshLogger(logger RefreshLogger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSourceName labels the provider's source in log events and errors.
func WithSourceName(name string) ProviderOption {
	return func(p *Provider) {
		if name != "" {
			p.name = name
		}
	}
}

// Provider owns the published definition snapshot for a Source. Reads are
// lock-free: Current loads an atomic pointer to an immutable Snapshot.
// Refresh swaps in a whole new snapshot, so no reader ever observes a
// partially updated set. A failed refresh keeps the last-known-good snapshot
// serving.
type Provider struct {
	source Source
	logger RefreshLogger
	name   string

	snapshot   atomic.Pointer[Snapshot]
	generation atomic.Uint64

	refreshMu sync.Mutex
	lastErr   error // guarded by refreshMu
}

// NewProvider wraps source. The provider starts with an empty snapshot;
// call Refresh to load.
func NewProvider(source Source, opts ...ProviderOption) *Provider {
	p := &Provider{
		source: source,
		logger: noopRefreshLogger{},
		name:   fmt.Sprintf("%T", source),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.snapshot.Store(NewSnapshot(nil))
	return p
}

// Current returns the published snapshot. Safe for unlimited concurrent
// callers; the returned snapshot stays consistent for as long as the caller
// holds it, regardless of later refreshes.
func (p *Provider) Current() *Snapshot {
	return p.snapshot.Load()
}

// Refresh reloads definitions from the source and atomically swaps the
// published snapshot. At most one refresh is in flight: a caller that waited
// while another refresh completed coalesces into that refresh's outcome
// instead of reloading.
//
// A total load failure leaves the previous snapshot in place and returns an
// error matching ErrSourceUnavailable. A partial parse failure publishes the
// valid definitions and returns the aggregated per-entry errors; resolution
// against the new snapshot is unaffected.
func (p *Provider) Refresh(ctx context.Context) error {
	gen := p.generation.Load()
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	if p.generation.Load() != gen {
		return p.lastErr
	}
	return p.refresh(ctx)
}

func (p *Provider) refresh(ctx context.Context) error {
	start := time.Now()
	definitions, err := p.source.Load(ctx)

	refreshErr := err
	published := p.Current()
	if err == nil || len(definitions) > 0 {
		published = NewSnapshot(definitions)
		p.snapshot.Store(published)
	} else {
		var sourceErr *SourceError
		if !errors.As(err, &sourceErr) {
			refreshErr = &SourceError{Source: p.name, Err: err}
		}
	}

	p.generation.Add(1)
	p.lastErr = refreshErr
	p.logger.LogRefresh(RefreshLogEvent{
		Source:      p.name,
		Experiments: published.Len(),
		Duration:    time.Since(start),
		Err:         refreshErr,
	})
	return refreshErr
}
