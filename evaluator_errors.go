package experiments

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError captures evaluator metadata alongside the originating
// error when an audience rule fails to compile or run.
type EvaluationError struct {
	Engine     string
	Rule       string
	Experiment string
	Err        error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("experiments: %s evaluator %s experiment=%s: %v", e.Engine, describeRule(e.Rule), e.Experiment, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeRule(rule string) string {
	if rule == "" {
		return "rule=<empty>"
	}
	return fmt.Sprintf("rule=%q", rule)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "experiments:") {
		return err
	}
	return fmt.Errorf("experiments: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, rule, experiment string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Rule == "" {
			evalErr.Rule = rule
		}
		if evalErr.Experiment == "" {
			evalErr.Experiment = experiment
		}
		return evalErr
	}

	return &EvaluationError{
		Engine:     engine,
		Rule:       rule,
		Experiment: experiment,
		Err:        err,
	}
}
