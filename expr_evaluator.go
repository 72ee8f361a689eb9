package experiments

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator runs audience rules using github.com/expr-lang/expr.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr. It is
// the engine's default rule evaluator.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluate compiles and runs rule against the context attributes.
func (e *exprEvaluator) Evaluate(ctx RuleContext, rule string) (any, error) {
	if rule == "" {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("rule must not be empty"))
	}
	ctx = ctx.withDefaultNow().withDefaultMaps()
	env := e.environment(ctx)
	if e.cache == nil {
		result, err := exprlang.Eval(rule, env)
		if err != nil {
			return nil, wrapEvaluationError("expr", rule, ctx.experimentLabel(), err)
		}
		return result, nil
	}
	program, err := e.loadOrCompile(rule)
	if err != nil {
		return nil, err
	}
	result, err := exprlang.Run(program, env)
	if err != nil {
		return nil, wrapEvaluationError("expr", rule, ctx.experimentLabel(), err)
	}
	return result, nil
}

// Compile returns a compiled rule that evaluates per invocation.
func (e *exprEvaluator) Compile(rule string, _ ...CompileOption) (CompiledRule, error) {
	if rule == "" {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("rule must not be empty"))
	}
	program, err := e.loadOrCompile(rule)
	if err != nil {
		return nil, err
	}
	return &exprCompiledRule{
		evaluator: e,
		program:   program,
		rule:      rule,
	}, nil
}

func (e *exprEvaluator) loadOrCompile(rule string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(rule); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registryNames() {
		fn := e.registryFunction(name)
		options = append(options, exprlang.Function(name, fn))
	}
	program, err := exprlang.Compile(rule, options...)
	if err != nil {
		return nil, wrapEvaluationError("expr", rule, "", err)
	}
	if e.cache != nil {
		e.cache.Set(rule, program)
	}
	return program, nil
}

type exprCompiledRule struct {
	evaluator *exprEvaluator
	program   *exprvm.Program
	rule      string
}

func (r *exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("compiled rule missing evaluator"))
	}
	ctx = ctx.withDefaultNow().withDefaultMaps()
	if r.program == nil {
		return r.evaluator.Evaluate(ctx, r.rule)
	}
	env := r.evaluator.environment(ctx)
	result, err := exprlang.Run(r.program, env)
	if err != nil {
		return nil, wrapEvaluationError("expr", r.rule, ctx.experimentLabel(), err)
	}
	return result, nil
}

// environment exposes the context attributes as top-level identifiers, so a
// rule reads like `locale == "en-US"` rather than `attrs.locale == "en-US"`.
func (e *exprEvaluator) environment(ctx RuleContext) map[string]any {
	env := map[string]any{
		"now":        ctx.timestamp(),
		"experiment": ctx.Experiment,
		"metadata":   ctx.Metadata,
	}
	for key, value := range ctx.Attrs {
		env[key] = value
	}
	if e.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
		for _, name := range e.registry.Names() {
			fn := name
			env[fn] = func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			}
		}
	}
	return env
}

func (e *exprEvaluator) registryNames() []string {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.Names()
}

func (e *exprEvaluator) registryFunction(name string) func(...any) (any, error) {
	if e == nil || e.registry == nil {
		return nil
	}
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}
