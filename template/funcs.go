package template

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// builtins are the helpers every evaluator starts with. Names already taken
// by the expression language (upper, lower, trim, split, join, ...) are left
// to it.
var builtins = map[string]Func{
	"truncate": truncateFunc,
	"wrap":     wrapFunc,
	"indent":   indentFunc,
	"quote":    quoteFunc,
	"link":     linkFunc,
	"bold":     boldFunc,
	"code":     codeFunc,
	"default":  defaultFunc,
	"coalesce": coalesceFunc,
	"encode":   encodeFunc,
	"decode":   decodeFunc,
}

// --- argument helpers ---

func argCount(name string, args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: expected %d arguments, got %d", name, n, len(args))
	}
	return nil
}

func intArg(name string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("%s: expected a number, got %T", name, v)
}

// --- text formatting ---

// truncate(n, s) shortens s to n characters with an ellipsis.
func truncateFunc(args ...any) (any, error) {
	if err := argCount("truncate", args, 2); err != nil {
		return nil, err
	}
	n, err := intArg("truncate", args[0])
	if err != nil {
		return nil, err
	}
	return truncate(n, Stringify(args[1])), nil
}

func truncate(n int, s string) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// wrap(n, s) wraps s to lines of at most n characters.
func wrapFunc(args ...any) (any, error) {
	if err := argCount("wrap", args, 2); err != nil {
		return nil, err
	}
	n, err := intArg("wrap", args[0])
	if err != nil {
		return nil, err
	}
	return wrap(n, Stringify(args[1])), nil
}

func wrap(width int, s string) string {
	if width <= 0 {
		width = 70
	}

	var result strings.Builder
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		result.WriteString(wrapLine(line, width))
	}
	return result.String()
}

func wrapLine(line string, width int) string {
	if utf8.RuneCountInString(line) <= width {
		return line
	}

	var result strings.Builder
	lineLen := 0
	for _, word := range strings.Fields(line) {
		wordLen := utf8.RuneCountInString(word)
		if lineLen+wordLen+1 > width && lineLen > 0 {
			result.WriteString("\n")
			lineLen = 0
		}
		if lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}
		result.WriteString(word)
		lineLen += wordLen
	}
	return result.String()
}

// indent(n, s) adds n spaces to the start of each non-empty line.
func indentFunc(args ...any) (any, error) {
	if err := argCount("indent", args, 2); err != nil {
		return nil, err
	}
	n, err := intArg("indent", args[0])
	if err != nil {
		return nil, err
	}
	return indent(n, Stringify(args[1])), nil
}

func indent(n int, s string) string {
	if n <= 0 {
		return s
	}
	prefix := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// quote(s) turns s into a markdown blockquote, one "> " per line.
func quoteFunc(args ...any) (any, error) {
	if err := argCount("quote", args, 1); err != nil {
		return nil, err
	}
	lines := strings.Split(Stringify(args[0]), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n"), nil
}

// --- markdown ---

// link(text, href) renders [text](href), or just text when href is empty.
func linkFunc(args ...any) (any, error) {
	if err := argCount("link", args, 2); err != nil {
		return nil, err
	}
	text, href := Stringify(args[0]), Stringify(args[1])
	if href == "" {
		return text, nil
	}
	return "[" + text + "](" + href + ")", nil
}

func boldFunc(args ...any) (any, error) {
	if err := argCount("bold", args, 1); err != nil {
		return nil, err
	}
	return "**" + Stringify(args[0]) + "**", nil
}

func codeFunc(args ...any) (any, error) {
	if err := argCount("code", args, 1); err != nil {
		return nil, err
	}
	return "`" + Stringify(args[0]) + "`", nil
}

// --- conditionals ---

// default(def, v) returns def when v is empty.
func defaultFunc(args ...any) (any, error) {
	if err := argCount("default", args, 2); err != nil {
		return nil, err
	}
	if empty(args[1]) {
		return args[0], nil
	}
	return args[1], nil
}

// coalesce returns the first non-empty argument, or "" when all are empty.
func coalesceFunc(args ...any) (any, error) {
	for _, v := range args {
		if !empty(v) {
			return v, nil
		}
	}
	return "", nil
}

func empty(val any) bool {
	if val == nil {
		return true
	}
	switch v := val.(type) {
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case bool:
		return !v
	case int:
		return v == 0
	case float64:
		return v == 0
	}
	return false
}

// --- urls ---

// encode(s) percent-encodes s the way encodeURIComponent does.
func encodeFunc(args ...any) (any, error) {
	if err := argCount("encode", args, 1); err != nil {
		return nil, err
	}
	return encodeComponent(Stringify(args[0])), nil
}

func encodeComponent(s string) string {
	// QueryEscape encodes space as '+' and leaves nothing else unescaped
	// that encodeURIComponent would keep, apart from the marks fixed below.
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")
	for _, mark := range []string{"!", "'", "(", ")", "*"} {
		e = strings.ReplaceAll(e, url.QueryEscape(mark), mark)
	}
	return e
}

// decode(s) reverses encode.
func decodeFunc(args ...any) (any, error) {
	if err := argCount("decode", args, 1); err != nil {
		return nil, err
	}
	return url.PathUnescape(Stringify(args[0]))
}
