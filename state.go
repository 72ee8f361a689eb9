package experiments

// State holds the experiment decisions for one entity within one scope,
// typically a single request. Results are memoized on first resolution, so
// repeated lookups of the same experiment return bit-identical results and
// a request branching on one experiment several times cannot flip
// mid-request.
//
// A State is owned exclusively by the flow that created it and must never be
// shared across concurrent requests; it does no locking. The definition
// snapshot it reads is immutable, so holding it for the scope's lifetime is
// safe even across provider refreshes.
type State struct {
	engine    *Engine
	snapshot  *Snapshot
	rctx      *Context
	overrides Overrides
	results   map[string]ResolutionResult
}

// NewState builds a scope-owned state. The overrides map is copied; later
// caller mutations do not leak in, and SetOverride mutates only the copy.
func NewState(engine *Engine, snapshot *Snapshot, rctx *Context, overrides Overrides) *State {
	if engine == nil {
		engine = New()
	}
	if rctx == nil {
		rctx = NewContext(nil)
	}
	copied := overrides.Clone()
	if copied == nil {
		copied = Overrides{}
	}
	return &State{
		engine:    engine,
		snapshot:  snapshot,
		rctx:      rctx,
		overrides: copied,
		results:   map[string]ResolutionResult{},
	}
}

// Resolve returns the active variant for name, memoized for the lifetime of
// the state. The first call per experiment computes; later calls replay the
// cached result.
func (s *State) Resolve(name string) (ResolutionResult, error) {
	if cached, ok := s.results[name]; ok {
		return cached, nil
	}
	result, err := s.engine.Resolve(s.snapshot, name, s.rctx, s.overrides)
	if err != nil {
		return ResolutionResult{}, err
	}
	s.results[name] = result
	return result, nil
}

// IsVariant reports whether the determined variant for name matches any of
// variants. Resolution errors (unknown experiment, invalid override) report
// as a non-match so template-style call sites degrade to the feature being
// off; callers needing the error use Resolve.
func (s *State) IsVariant(name string, variants ...string) bool {
	result, err := s.Resolve(name)
	if err != nil {
		return false
	}
	for _, variant := range variants {
		if result.Variant == variant {
			return true
		}
	}
	return false
}

// IsOn reports whether the named switch resolves to "on".
func (s *State) IsOn(name string) bool {
	return s.IsVariant(name, VariantOn)
}

// IsOff reports whether the named switch resolves to "off".
func (s *State) IsOff(name string) bool {
	return s.IsVariant(name, VariantOff)
}

// SetOverride forces a variant for the remainder of the scope and drops any
// cached result for that experiment, so the next lookup reflects the
// override. Used by tests to make experiment behaviour deterministic.
func (s *State) SetOverride(name, variant string) {
	s.overrides[name] = variant
	delete(s.results, name)
}

// Overrides returns a copy of the currently effective overrides.
func (s *State) Overrides() Overrides {
	return s.overrides.Clone()
}

// Clear drops all memoized results and overrides so the state can be reused
// by a pooled worker for a new scope.
func (s *State) Clear() {
	s.results = map[string]ResolutionResult{}
	s.overrides = Overrides{}
}

// Export resolves every experiment in the snapshot and returns the
// name→variant mapping, e.g. for handing assignments to a client.
func (s *State) Export() (map[string]string, error) {
	if s.snapshot == nil {
		return map[string]string{}, nil
	}
	out := make(map[string]string, s.snapshot.Len())
	for _, name := range s.snapshot.Names() {
		result, err := s.Resolve(name)
		if err != nil {
			return nil, err
		}
		out[name] = result.Variant
	}
	return out, nil
}
