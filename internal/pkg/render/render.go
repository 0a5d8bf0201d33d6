// Package render implements the placeholder substitution engine used by all
// notification channels. Templates use {{ name }} placeholders; keys are
// whitespace-trimmed and values are HTML-escaped on substitution.
package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Vars returns the deduplicated, trimmed placeholder names found in s,
// in order of first appearance.
func Vars(s string) []string {
	matches := placeholderRe.FindAllStringSubmatch(s, -1)
	seen := make(map[string]struct{}, len(matches))
	vars := make([]string, 0, len(matches))
	for _, m := range matches {
		key := strings.TrimSpace(m[1])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		vars = append(vars, key)
	}
	return vars
}

// Render substitutes every placeholder in s with the HTML-escaped value from
// vars. A missing key is an error: intake validation guarantees every required
// variable is present, so hitting one here means an upstream defect and we
// fail loudly instead of emitting an empty string.
func Render(s string, vars map[string]any) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		key := strings.TrimSpace(placeholderRe.FindStringSubmatch(m)[1])
		v, ok := vars[key]
		if !ok {
			missing = append(missing, key)
			return ""
		}
		return html.EscapeString(fmt.Sprintf("%v", v))
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("Render: unresolved template variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
