package internal

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/Knetic/govaluate"
	"github.com/PaesslerAG/jsonpath"
)

// Rule is a compiled boolean expression evaluated against a payload tree.
//
// Plain identifiers resolve to top-level payload keys. Dotted or indexed
// identifiers (repository.owner.login, pages[0].sha) resolve through the
// flattened payload, and identifiers starting with "$" are JSONPath queries.
type Rule struct {
	source string
	expr   *govaluate.EvaluableExpression
	refs   []pathRef
}

type pathRef struct {
	param    string
	path     string
	jsonPath bool
}

const pathParamPrefix = "mirrorhooksPath"

var ruleFunctions = map[string]govaluate.ExpressionFunction{
	"contains": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("contains expects 2 arguments, got %d", len(args))
		}
		switch haystack := args[0].(type) {
		case string:
			return strings.Contains(haystack, fmt.Sprint(args[1])), nil
		case []interface{}:
			for _, item := range haystack {
				if reflect.DeepEqual(item, args[1]) {
					return true, nil
				}
			}
			return false, nil
		case nil:
			return false, nil
		default:
			return nil, fmt.Errorf("contains: unsupported type %T", args[0])
		}
	},
	"like": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("like expects 2 arguments, got %d", len(args))
		}
		value, ok := args[0].(string)
		if !ok {
			return false, nil
		}
		pattern := regexp.QuoteMeta(fmt.Sprint(args[1]))
		pattern = strings.NewReplacer("%", ".*", "_", ".").Replace(pattern)
		return regexp.MatchString("^"+pattern+"$", value)
	},
	"matches": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("matches expects 2 arguments, got %d", len(args))
		}
		value, ok := args[0].(string)
		if !ok {
			return false, nil
		}
		return regexp.MatchString(fmt.Sprint(args[1]), value)
	},
	"hasPrefix": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("hasPrefix expects 2 arguments, got %d", len(args))
		}
		value, ok := args[0].(string)
		if !ok {
			return false, nil
		}
		return strings.HasPrefix(value, fmt.Sprint(args[1])), nil
	},
}

// CompileRule parses expression into a Rule.
func CompileRule(expression string) (*Rule, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("rule expression is empty")
	}
	rewritten, refs := rewritePaths(expression)
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(rewritten, ruleFunctions)
	if err != nil {
		return nil, fmt.Errorf("compile rule %q: %w", expression, err)
	}
	return &Rule{source: expression, expr: expr, refs: refs}, nil
}

// String returns the expression the rule was compiled from.
func (r *Rule) String() string {
	return r.source
}

// Match evaluates the rule. extra values shadow top-level payload keys.
// A non-boolean result is an error.
func (r *Rule) Match(data map[string]interface{}, extra map[string]interface{}) (bool, error) {
	params := make(map[string]interface{}, len(data)+len(extra)+len(r.refs))
	for key, value := range data {
		params[key] = value
	}
	for key, value := range extra {
		params[key] = value
	}

	var flat map[string]interface{}
	for _, ref := range r.refs {
		if ref.jsonPath {
			value, err := jsonpath.Get(ref.path, map[string]interface{}(data))
			if err != nil {
				value = nil
			}
			params[ref.param] = value
			continue
		}
		if flat == nil {
			flat = Flatten(data)
		}
		params[ref.param] = flat[ref.path]
	}

	result, err := r.expr.Evaluate(params)
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", r.source, err)
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("rule %q returned %T, want bool", r.source, result)
	}
	return ok, nil
}

// RuleCache compiles each distinct expression once.
type RuleCache struct {
	mu    sync.Mutex
	rules map[string]*Rule
}

func NewRuleCache() *RuleCache {
	return &RuleCache{rules: make(map[string]*Rule)}
}

func (c *RuleCache) Compile(expression string) (*Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rule, ok := c.rules[expression]; ok {
		return rule, nil
	}
	rule, err := CompileRule(expression)
	if err != nil {
		return nil, err
	}
	c.rules[expression] = rule
	return rule, nil
}

func rewritePaths(expression string) (string, []pathRef) {
	runes := []rune(expression)
	var out strings.Builder
	var refs []pathRef

	for i := 0; i < len(runes); {
		c := runes[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			j := i + 1
			for j < len(runes) && runes[j] != c {
				if runes[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(runes) {
				j++
			}
			if j > len(runes) {
				j = len(runes)
			}
			out.WriteString(string(runes[i:j]))
			i = j
		case c == '[':
			// govaluate escaped parameter name, copied verbatim.
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j < len(runes) {
				j++
			}
			out.WriteString(string(runes[i:j]))
			i = j
		case unicode.IsDigit(c):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			out.WriteString(string(runes[i:j]))
			i = j
		case c == '$' || c == '_' || unicode.IsLetter(c):
			j := scanPath(runes, i)
			token := string(runes[i:j])
			if c == '$' || strings.ContainsAny(token, ".[") {
				param := pathParamPrefix + strconv.Itoa(len(refs))
				refs = append(refs, pathRef{param: param, path: token, jsonPath: c == '$'})
				out.WriteString(param)
			} else {
				out.WriteString(token)
			}
			i = j
		default:
			out.WriteRune(c)
			i++
		}
	}
	return out.String(), refs
}

func scanPath(runes []rune, start int) int {
	j := start
	if runes[j] == '$' {
		j++
	}
	for j < len(runes) {
		c := runes[j]
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.' {
			j++
			continue
		}
		if c == '[' {
			k := j + 1
			for k < len(runes) && runes[k] != ']' {
				k++
			}
			if k < len(runes) {
				j = k + 1
				continue
			}
		}
		break
	}
	return j
}
