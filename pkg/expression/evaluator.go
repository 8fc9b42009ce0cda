package expression

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/tombee/opspilot/pkg/errors"
)

// Evaluator evaluates step conditions against extracted entities.
// Compiled programs are cached; an Evaluator is safe for concurrent use.
type Evaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// New creates a new expression evaluator.
func New() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate reports whether condition holds for entities. An empty condition
// is true.
func (e *Evaluator) Evaluate(condition string, entities map[string]string) (bool, error) {
	if condition == "" {
		return true, nil
	}

	program, err := e.compile(condition)
	if err != nil {
		return false, &errors.ValidationError{
			Field:      "condition",
			Message:    fmt.Sprintf("failed to compile condition: %s", err.Error()),
			Suggestion: "check the condition syntax, e.g. has(entities, \"status\")",
		}
	}

	result, err := expr.Run(program, Env(entities))
	if err != nil {
		return false, &errors.ValidationError{
			Field:   "condition",
			Message: fmt.Sprintf("condition evaluation failed: %s", err.Error()),
		}
	}

	ok, isBool := result.(bool)
	if !isBool {
		return false, &errors.ValidationError{
			Field:      "condition",
			Message:    fmt.Sprintf("condition must return boolean, got %T (%v)", result, result),
			Suggestion: "use comparison operators (==, !=, in) or has()",
		}
	}

	return ok, nil
}

// Env builds the evaluation environment for entities.
func Env(entities map[string]string) map[string]interface{} {
	ents := make(map[string]interface{}, len(entities))
	env := make(map[string]interface{}, len(entities)+4)
	for k, v := range entities {
		ents[k] = v
		env[k] = v
	}
	env["entities"] = ents
	env["has"] = hasFunc
	env["includes"] = hasFunc
	env["length"] = lengthFunc
	return env
}

func (e *Evaluator) compile(condition string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.cache[condition]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	// "contains" is reserved by expr, hence has/includes
	env := map[string]interface{}{
		"has":      hasFunc,
		"includes": hasFunc,
		"length":   lengthFunc,
	}

	prog, err := expr.Compile(condition,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[condition] = prog
	e.mu.Unlock()

	return prog, nil
}

// CacheSize returns the number of cached programs.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
