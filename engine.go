package experiments

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-experiments/pkg/exposure"
)

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	evaluator Evaluator
	cache     ProgramCache
	functions *FunctionRegistry
	logger    ResolutionLogger
	emitter   *exposure.Emitter
	total     int
}

// WithEvaluator sets the audience-rule evaluator. The default is an
// expr-lang evaluator.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *engineConfig) {
		cfg.evaluator = evaluator
	}
}

// WithProgramCache wires a compiled-rule cache into the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registered functions to audience rules run by
// the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithResolutionLogger attaches a logger receiving one event per resolution.
func WithResolutionLogger(logger ResolutionLogger) Option {
	return func(cfg *engineConfig) {
		cfg.logger = logger
	}
}

// WithExposureEmitter attaches an emitter that records an exposure event for
// every successful resolution.
func WithExposureEmitter(emitter *exposure.Emitter) Option {
	return func(cfg *engineConfig) {
		cfg.emitter = emitter
	}
}

// WithBucketTotal overrides the bucket space identities hash into. It must
// match the weight total definitions were parsed with.
func WithBucketTotal(total int) Option {
	return func(cfg *engineConfig) {
		if total > 0 {
			cfg.total = total
		}
	}
}

// Engine computes the active variant for an experiment and identity. It is
// stateless and free of shared mutable state: Resolve only reads the given
// snapshot and pure-computes from its arguments, so it is safe to call from
// unlimited parallel callers without synchronization.
type Engine struct {
	evaluator Evaluator
	logger    ResolutionLogger
	emitter   *exposure.Emitter
	total     uint64
}

// New constructs an Engine. Without options it uses the expr evaluator, a
// noop logger, no exposure emitter, and the default weight total.
func New(opts ...Option) *Engine {
	cfg := engineConfig{total: DefaultWeightTotal}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	evaluator := cfg.evaluator
	if evaluator == nil {
		var exprOpts []ExprEvaluatorOption
		if cfg.cache != nil {
			exprOpts = append(exprOpts, ExprWithProgramCache(cfg.cache))
		}
		if cfg.functions != nil {
			exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
		}
		evaluator = NewExprEvaluator(exprOpts...)
	}

	logger := cfg.logger
	if logger == nil {
		logger = noopResolutionLogger{}
	}

	return &Engine{
		evaluator: evaluator,
		logger:    logger,
		emitter:   cfg.emitter,
		total:     uint64(cfg.total),
	}
}

// Resolve determines the active variant for the named experiment, in strict
// precedence order: explicit override, inactive default, computed
// assignment. Identical (definitions, name, context) inputs produce the
// identical computed variant across processes and restarts.
func (e *Engine) Resolve(snap *Snapshot, name string, rctx *Context, overrides Overrides) (ResolutionResult, error) {
	result, _, err := e.resolve(snap, name, rctx, overrides)
	return result, err
}

// ResolveTraced is Resolve plus the provenance of the decision.
func (e *Engine) ResolveTraced(snap *Snapshot, name string, rctx *Context, overrides Overrides) (ResolutionResult, Trace, error) {
	return e.resolve(snap, name, rctx, overrides)
}

func (e *Engine) resolve(snap *Snapshot, name string, rctx *Context, overrides Overrides) (ResolutionResult, Trace, error) {
	if rctx == nil {
		rctx = NewContext(nil)
	}
	start := time.Now()
	result, trace, err := e.determine(snap, name, rctx, overrides)
	e.logger.LogResolution(ResolutionLogEvent{
		Experiment: name,
		Variant:    result.Variant,
		Source:     result.Source,
		Duration:   time.Since(start),
		Err:        err,
	})
	if err == nil && e.emitter.Enabled() {
		_ = e.emitter.Emit(context.Background(), exposure.BuildExposureEvent(exposure.Input{
			Experiment: result.Experiment,
			Variant:    result.Variant,
			Source:     string(result.Source),
			Rule:       trace.Rule,
			Audience:   trace.Audience,
			Bucket:     trace.Bucket,
		}))
	}
	return result, trace, err
}

func (e *Engine) determine(snap *Snapshot, name string, rctx *Context, overrides Overrides) (ResolutionResult, Trace, error) {
	experiment, ok := snap.Lookup(name)
	if !ok {
		return ResolutionResult{}, Trace{}, fmt.Errorf("%w: %q", ErrUnknownExperiment, name)
	}

	if forced, ok := overrides[name]; ok {
		if !experiment.HasVariant(forced) {
			return ResolutionResult{}, Trace{}, fmt.Errorf("%w: experiment %q has no variant %q", ErrInvalidOverride, name, forced)
		}
		result := ResolutionResult{Experiment: name, Variant: forced, Source: SourceOverride}
		return result, Trace{Experiment: name, Variant: forced, Source: SourceOverride, Audience: -1}, nil
	}

	if !experiment.Active {
		variant := experiment.DefaultVariant()
		result := ResolutionResult{Experiment: name, Variant: variant, Source: SourceDefault}
		return result, Trace{Experiment: name, Variant: variant, Source: SourceDefault, Audience: -1}, nil
	}

	for i, audience := range experiment.Audiences {
		matched, err := e.matches(experiment, audience, rctx)
		if err != nil {
			return ResolutionResult{}, Trace{}, err
		}
		if !matched {
			continue
		}
		bucket, err := rctx.Identity(experiment.Identity, experiment.seed(), e.total)
		if err != nil {
			return ResolutionResult{}, Trace{}, err
		}
		variant := pickAllocation(audience.Allocations, bucket)
		result := ResolutionResult{Experiment: name, Variant: variant, Source: SourceComputed}
		trace := Trace{
			Experiment: name,
			Variant:    variant,
			Source:     SourceComputed,
			Audience:   i,
			Rule:       audience.Rule,
			Identity:   experiment.Identity,
			Bucket:     bucket,
		}
		return result, trace, nil
	}

	// Validation guarantees a rule-less final audience, so this only fires on
	// definitions built by hand and never validated.
	return ResolutionResult{}, Trace{}, fmt.Errorf("experiments: experiment %q matched no audience", name)
}

func (e *Engine) matches(experiment Experiment, audience Audience, rctx *Context) (bool, error) {
	if audience.Rule == "" {
		return true, nil
	}
	value, err := e.evaluator.Evaluate(RuleContext{
		Attrs:      rctx.Attrs(),
		Experiment: experiment.Name,
	}, audience.Rule)
	if err != nil {
		return false, err
	}
	matched, ok := value.(bool)
	if !ok {
		return false, wrapEvaluationError("", audience.Rule, experiment.Name,
			fmt.Errorf("audience rule must evaluate to a boolean, got %T", value))
	}
	return matched, nil
}

// pickAllocation walks allocations in definition order, accumulating weights
// until the cumulative sum exceeds the bucket position.
func pickAllocation(allocations []Allocation, bucket uint64) string {
	cumulative := uint64(0)
	for _, allocation := range allocations {
		cumulative += uint64(allocation.Weight)
		if bucket < cumulative {
			return allocation.Variant
		}
	}
	if len(allocations) == 0 {
		return ""
	}
	return allocations[len(allocations)-1].Variant
}
