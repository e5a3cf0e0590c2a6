// Package scope implements the concrete Grant.Scope predicate
// evaluator: a CEL boolean expression compiled on its first evaluation,
// cached, and evaluated against a Context's explicit fields at every
// admission (spec §3's Open Question on scope representation
// — resolved here as "predicate over context fields", grounded on the
// teacher's governance/policy_evaluator_cel.go and kernel/cel_dp.go use
// of cel-go for exactly this shape of decision).
//
// The evaluator is deliberately pluggable (Evaluator interface) rather
// than baked into the Guard, mirroring the teacher's own PDP
// indirection (pdp package) so a future scope language never requires
// touching the admission pipeline itself.
package scope

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Evaluator decides whether a Grant's scope expression permits a given
// set of context fields.
type Evaluator interface {
	Evaluate(scopeExpr string, fields map[string]any) (bool, error)
}

// CELEvaluator compiles and caches CEL programs keyed by expression
// text, since the same Grant's scope is evaluated on every admission
// for that grant and recompiling per call would make the hot path pay
// for parsing every time.
type CELEvaluator struct {
	env     *cel.Env
	cache   map[string]cel.Program
}

// NewCELEvaluator builds an environment where every field referenced by
// a scope expression is treated as a dynamic top-level variable named
// "fields", e.g. a scope of `fields.amount < 1000` checks the Context
// field "amount".
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("fields", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("scope: cel environment construction failed: %w", err)
	}
	return &CELEvaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

func (e *CELEvaluator) program(scopeExpr string) (cel.Program, error) {
	if p, ok := e.cache[scopeExpr]; ok {
		return p, nil
	}
	ast, issues := e.env.Compile(scopeExpr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("scope: compile failed: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("scope: program construction failed: %w", err)
	}
	e.cache[scopeExpr] = prg
	return prg, nil
}

// Evaluate runs the compiled scope expression against the supplied
// fields. A non-boolean result is treated as a compile-class error
// (INVALID_GRANT_SCOPE), never coerced to true or false.
func (e *CELEvaluator) Evaluate(scopeExpr string, fields map[string]any) (bool, error) {
	if scopeExpr == "" {
		// An empty scope means "unconditional" (spec leaves the zero
		// case to the issuer; a grant with no scope text permits any
		// context) rather than a compile error.
		return true, nil
	}
	prg, err := e.program(scopeExpr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{"fields": fields})
	if err != nil {
		return false, fmt.Errorf("scope: evaluation failed: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("scope: expression %q did not evaluate to a boolean", scopeExpr)
	}
	return b, nil
}
