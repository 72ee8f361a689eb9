package experiments

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// maxCallArgs bounds the arity ladder declared for the call() function; CEL
// overloads are fixed-arity, so varargs dispatch needs one overload per arity.
const maxCallArgs = 4

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, rule string) (any, error) {
	if rule == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("rule must not be empty"))
	}
	ctx = ctx.withDefaultNow().withDefaultMaps()
	program, err := e.loadOrCompile(rule, ctx.Attrs)
	if err != nil {
		return nil, wrapEvaluationError("cel", rule, ctx.experimentLabel(), err)
	}
	out, _, err := program.program.Eval(e.activation(ctx))
	if err != nil {
		return nil, wrapEvaluationError("cel", rule, ctx.experimentLabel(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) Compile(rule string, _ ...CompileOption) (CompiledRule, error) {
	if rule == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("rule must not be empty"))
	}
	return &celCompiledRule{
		evaluator: e,
		rule:      rule,
	}, nil
}

// loadOrCompile builds a CEL environment declaring each context attribute as
// a dyn variable. Programs are cached per rule string; rules referencing
// attributes absent from the first caching context still evaluate because
// every attribute key is declared dyn.
func (e *celEvaluator) loadOrCompile(rule string, attrs map[string]any) (*celProgram, error) {
	if attrs == nil {
		attrs = map[string]any{}
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(rule); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(attrs)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(rule)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{
		env:     env,
		program: prg,
	}
	if e.cache != nil {
		e.cache.Set(rule, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(attrs map[string]any) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("experiment", celgo.StringType),
		celgo.Variable("metadata", celgo.DynType),
	}
	if e.registry != nil {
		opts = append(opts, e.callFunction())
	}
	for key := range attrs {
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx RuleContext) map[string]any {
	activation := map[string]any{
		"now":        ctx.timestamp(),
		"experiment": ctx.Experiment,
		"metadata":   ctx.Metadata,
	}
	for key, value := range ctx.Attrs {
		activation[key] = value
	}
	if e.registry != nil {
		activation["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
	}
	return activation
}

type celCompiledRule struct {
	evaluator *celEvaluator
	rule      string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("compiled rule missing evaluator"))
	}
	return r.evaluator.Evaluate(ctx, r.rule)
}

// callFunction declares call(name, args...) for registry dispatch, one
// overload per arity up to maxCallArgs.
func (e *celEvaluator) callFunction() celgo.EnvOption {
	binding := e.callBinding()
	overloads := make([]celgo.FunctionOpt, 0, maxCallArgs+1)
	args := []*celgo.Type{celgo.StringType}
	for i := 0; i <= maxCallArgs; i++ {
		overloads = append(overloads, celgo.Overload(
			fmt.Sprintf("call_dyn_%d", i),
			append([]*celgo.Type(nil), args...),
			celgo.DynType,
			celgo.FunctionBinding(binding),
		))
		args = append(args, celgo.DynType)
	}
	return celgo.Function("call", overloads...)
}

func (e *celEvaluator) callBinding() func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if e.registry == nil {
			return types.NewErr("experiments: function registry not configured")
		}
		if len(values) == 0 {
			return types.NewErr("experiments: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("experiments: call name must be string")
		}
		args := make([]any, 0, len(values)-1)
		for _, val := range values[1:] {
			args = append(args, val.Value())
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
