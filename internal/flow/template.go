package flow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var templatePattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Interpolate resolves {{identifier}} placeholders against the variable
// map, substituting each value as plain text. Unresolved identifiers stay
// as literal {{identifier}} text.
func Interpolate(s string, vars map[string]any) string {
	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := templateName(match)
		v, ok := vars[name]
		if !ok {
			return match
		}
		return stringify(v)
	})
}

// interpolateExpr resolves placeholders for expression evaluation: values
// are substituted in serialized (JSON) form so strings stay quoted, and an
// unresolved identifier becomes the token `undefined` so conditions fail
// closed instead of erroring.
func interpolateExpr(s string, vars map[string]any) string {
	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := templateName(match)
		v, ok := vars[name]
		if !ok {
			return "undefined"
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "undefined"
		}
		return string(b)
	})
}

func templateName(match string) string {
	return strings.TrimSpace(strings.Trim(match, "{}"))
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case float64, float32, int, int64, bool:
		return fmt.Sprintf("%v", val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
