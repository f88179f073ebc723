// Package template renders paste formats. A format is literal text with
// {{ ... }} placeholders; each placeholder holds an expression evaluated
// against a variable environment, and its result replaces the placeholder.
package template

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// placeholder matches the shortest span between "{{" and the next "}}".
// Like the rest of the pattern, the inner text cannot cross a newline.
var placeholder = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Engine renders templates.
type Engine struct {
	eval *Evaluator
}

// New creates a new template engine with all built-in helper functions.
func New() *Engine {
	return &Engine{eval: NewEvaluator()}
}

// Render replaces every placeholder in tmpl with the text form of its value.
// The first failing placeholder aborts the render with an *ExpressionError
// and no partial output.
func (e *Engine) Render(tmpl string, env Env) (string, error) {
	matches := placeholder.FindAllStringSubmatchIndex(tmpl, -1)
	if len(matches) == 0 {
		return tmpl, nil
	}

	var buf strings.Builder
	last := 0
	for _, m := range matches {
		buf.WriteString(tmpl[last:m[0]])
		v, err := e.eval.Evaluate(tmpl[m[2]:m[3]], env)
		if err != nil {
			return "", err
		}
		buf.WriteString(Stringify(v))
		last = m[1]
	}
	buf.WriteString(tmpl[last:])

	return buf.String(), nil
}

// Check compiles every placeholder in tmpl against env without running any
// of them, returning the first failure.
func (e *Engine) Check(tmpl string, env Env) error {
	for _, code := range Placeholders(tmpl) {
		if err := e.eval.Compile(code, env); err != nil {
			return err
		}
	}
	return nil
}

// Placeholders returns the expression text of each placeholder in order.
func Placeholders(tmpl string) []string {
	var out []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		out = append(out, m[1])
	}
	return out
}

// Stringify converts an expression result to text: strings verbatim,
// numbers and booleans in their canonical form, lists comma-joined.
func Stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return formatFloat(v, 64)
	case float32:
		return formatFloat(float64(v), 32)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = Stringify(item)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(v, ",")
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		// Covers negative zero.
		return "0"
	}
	if abs := math.Abs(f); abs < 1e-6 || abs >= 1e21 {
		// Exponent without padding: 1e-7, 1.5e+21.
		mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, bits), "e")
		sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
