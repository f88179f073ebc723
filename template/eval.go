package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrNoValue is reported when an expression evaluates to nil.
var ErrNoValue = errors.New("no usable value")

// Env is the variable environment an expression is evaluated against.
// Every key is visible to the expression as a name bound to its value.
type Env map[string]any

// ExpressionError carries the text of the expression that failed.
type ExpressionError struct {
	Expr string
	Err  error
}

func (e *ExpressionError) Error() string {
	if errors.Is(e.Err, ErrNoValue) {
		return fmt.Sprintf("expression '%s' produced no usable value", e.Expr)
	}
	// expr-lang appends a source snippet on the following lines; the
	// expression text is already part of our message.
	msg, _, _ := strings.Cut(e.Err.Error(), "\n")
	return fmt.Sprintf("expression '%s' failed: %s", e.Expr, msg)
}

func (e *ExpressionError) Unwrap() error {
	return e.Err
}

// Func is a helper callable from expressions.
type Func func(args ...any) (any, error)

// Evaluator evaluates single expressions. The zero value has no helper
// functions; use NewEvaluator for the built-in set.
type Evaluator struct {
	funcs map[string]Func
}

// NewEvaluator returns an evaluator with the built-in helper functions.
func NewEvaluator() *Evaluator {
	ev := &Evaluator{funcs: make(map[string]Func, len(builtins))}
	for name, fn := range builtins {
		ev.funcs[name] = fn
	}
	return ev
}

// Compile checks that code is a valid expression over env without running it.
func (ev *Evaluator) Compile(code string, env Env) error {
	if _, err := ev.compile(code, env); err != nil {
		return &ExpressionError{Expr: code, Err: err}
	}
	return nil
}

// Evaluate runs code with every key of env bound as a name. Names that are
// neither in env nor registered helpers fail compilation. A nil result is
// reported as ErrNoValue.
func (ev *Evaluator) Evaluate(code string, env Env) (any, error) {
	if env == nil {
		env = Env{}
	}

	program, err := ev.compile(code, env)
	if err != nil {
		return nil, &ExpressionError{Expr: code, Err: err}
	}

	out, err := expr.Run(program, map[string]any(env))
	if err != nil {
		return nil, &ExpressionError{Expr: code, Err: err}
	}
	if out == nil {
		return nil, &ExpressionError{Expr: code, Err: ErrNoValue}
	}
	return out, nil
}

func (ev *Evaluator) compile(code string, env Env) (*vm.Program, error) {
	if env == nil {
		env = Env{}
	}
	opts := make([]expr.Option, 0, len(ev.funcs)+1)
	opts = append(opts, expr.Env(map[string]any(env)))
	for name, fn := range ev.funcs {
		// Environment entries shadow helpers of the same name.
		if _, ok := env[name]; ok {
			continue
		}
		opts = append(opts, expr.Function(name, fn))
	}
	return expr.Compile(code, opts...)
}
