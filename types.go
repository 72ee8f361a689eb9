package experiments

import (
	"fmt"
	"regexp"
	"time"
)

const (
	// DefaultWeightTotal is the allocation space an audience partitions among
	// its variants. Identities hash into [0, total).
	DefaultWeightTotal = 100

	// IdentityRandom is the identity keypath that buckets an entity randomly
	// instead of reading a context value. The drawn bucket is cached on the
	// Context, so it stays stable within one scope.
	IdentityRandom = "random"

	// VariantOn and VariantOff are the two variants of a switch.
	VariantOn  = "on"
	VariantOff = "off"
)

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	keypathPattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)
)

// Allocation assigns a portion of the weight total to one variant.
type Allocation struct {
	Variant string
	Weight  int
}

// Audience is a population of entities sharing a matching rule. Entities that
// match are partitioned among the audience's allocations by identity bucket.
// An empty rule matches everyone; only the final audience of an experiment may
// (and must) omit its rule.
type Audience struct {
	Rule        string
	Allocations []Allocation
}

// Experiment is a named decision point with one or more weighted variants.
// A switch is a degenerate experiment with on/off variants and an
// all-or-nothing allocation.
type Experiment struct {
	Name      string
	Identity  string // context keypath used as the hash identity, or IdentityRandom
	Seed      string // hashing seed, defaults to Name when empty
	Variants  []string
	Audiences []Audience
	Active    bool
}

// ResolutionSource tags how a resolution result was produced.
type ResolutionSource string

const (
	// SourceOverride marks a result forced by an explicit override.
	SourceOverride ResolutionSource = "override"
	// SourceComputed marks a result produced by deterministic bucketing.
	SourceComputed ResolutionSource = "computed"
	// SourceDefault marks the default variant of an inactive experiment.
	SourceDefault ResolutionSource = "default"
)

// ResolutionResult is the outcome of resolving one experiment for one
// identity. The Source tag is part of the contract, not optional metadata.
type ResolutionResult struct {
	Experiment string           `json:"experiment"`
	Variant    string           `json:"variant"`
	Source     ResolutionSource `json:"source"`
}

// Validate checks structural invariants using the default weight total.
func (e Experiment) Validate() error {
	return e.validate(DefaultWeightTotal)
}

func (e Experiment) validate(total int) error {
	if !namePattern.MatchString(e.Name) {
		return fmt.Errorf("experiments: experiment name must match [A-Za-z0-9_]+, got %q", e.Name)
	}
	if e.Identity != IdentityRandom && !keypathPattern.MatchString(e.Identity) {
		return fmt.Errorf("experiments: experiment %q has invalid identity keypath %q", e.Name, e.Identity)
	}
	if len(e.Variants) == 0 {
		return fmt.Errorf("experiments: experiment %q must declare at least one variant", e.Name)
	}
	seen := make(map[string]struct{}, len(e.Variants))
	for _, variant := range e.Variants {
		if !namePattern.MatchString(variant) {
			return fmt.Errorf("experiments: experiment %q variant name must match [A-Za-z0-9_]+, got %q", e.Name, variant)
		}
		if _, dup := seen[variant]; dup {
			return fmt.Errorf("experiments: experiment %q declares variant %q twice", e.Name, variant)
		}
		seen[variant] = struct{}{}
	}
	if len(e.Audiences) == 0 {
		return fmt.Errorf("experiments: experiment %q must declare at least one audience", e.Name)
	}
	for i, audience := range e.Audiences {
		last := i == len(e.Audiences)-1
		if last && audience.Rule != "" {
			return fmt.Errorf("experiments: experiment %q final audience must not declare a rule", e.Name)
		}
		if !last && audience.Rule == "" {
			return fmt.Errorf("experiments: experiment %q audience %d must declare a rule", e.Name, i)
		}
		if err := audience.validate(total, seen); err != nil {
			return fmt.Errorf("experiments: experiment %q audience %d: %w", e.Name, i, err)
		}
	}
	return nil
}

func (a Audience) validate(total int, variants map[string]struct{}) error {
	if len(a.Allocations) == 0 {
		return fmt.Errorf("audience must declare at least one allocation")
	}
	sum := 0
	for _, allocation := range a.Allocations {
		if allocation.Weight < 0 {
			return fmt.Errorf("allocation weight for %q must not be negative", allocation.Variant)
		}
		if _, ok := variants[allocation.Variant]; !ok {
			return fmt.Errorf("allocation names undeclared variant %q", allocation.Variant)
		}
		sum += allocation.Weight
	}
	if sum != total {
		return fmt.Errorf("allocation weights must sum to %d, got %d", total, sum)
	}
	return nil
}

// DefaultVariant returns the variant an inactive experiment resolves to:
// the first variant in definition order.
func (e Experiment) DefaultVariant() string {
	if len(e.Variants) == 0 {
		return ""
	}
	return e.Variants[0]
}

// HasVariant reports whether name is one of the experiment's variants.
func (e Experiment) HasVariant(name string) bool {
	for _, variant := range e.Variants {
		if variant == name {
			return true
		}
	}
	return false
}

// IsSwitch reports whether the experiment is an on/off switch.
func (e Experiment) IsSwitch() bool {
	return len(e.Variants) == 2 && e.HasVariant(VariantOn) && e.HasVariant(VariantOff)
}

func (e Experiment) seed() string {
	if e.Seed == "" {
		return e.Name
	}
	return e.Seed
}

// RuleContext carries the inputs an evaluator sees when testing an audience
// rule. Attrs are exposed as top-level identifiers to the rule expression.
type RuleContext struct {
	Attrs      map[string]any
	Experiment string
	Now        *time.Time
	Metadata   map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Attrs == nil {
		ctx.Attrs = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) experimentLabel() string {
	if ctx.Experiment == "" {
		return "unknown"
	}
	return ctx.Experiment
}

// Evaluator executes audience rules against a rule context. Rules must
// produce a boolean; the engine rejects anything else.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable rule program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}
