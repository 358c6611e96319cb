// Package templates renders notification text containing {{key}}
// placeholders and reports which keys a template needs.
package templates

import (
	"regexp"
)

// placeholder matches {{key}} where key is a word identifier.
var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Vars maps placeholder keys to their substitution values.
type Vars map[string]string

// Validation is the outcome of checking a template against a set of variables.
type Validation struct {
	Valid       bool     `json:"valid"`
	MissingKeys []string `json:"missingKeys"`
}

// ExtractKeys returns the distinct placeholder keys in tmpl in first-seen order.
func ExtractKeys(tmpl string) []string {
	matches := placeholder.FindAllStringSubmatch(tmpl, -1)
	keys := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		k := m[1]
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// Interpolate substitutes every placeholder whose key is present in vars.
// Placeholders with no matching key are left untouched.
func Interpolate(tmpl string, vars Vars) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := match[2 : len(match)-2]
		if v, ok := vars[key]; ok {
			return v
		}
		return match
	})
}

// RequiredKeys returns the union of keys used by body and, if present, subject.
func RequiredKeys(body string, subject *string) []string {
	keys := ExtractKeys(body)
	if subject == nil || *subject == "" {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	for _, k := range ExtractKeys(*subject) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}

// Validate reports which required keys of body/subject have no entry in vars.
func Validate(body string, subject *string, vars Vars) Validation {
	missing := []string{}
	for _, k := range RequiredKeys(body, subject) {
		if _, ok := vars[k]; !ok {
			missing = append(missing, k)
		}
	}
	return Validation{Valid: len(missing) == 0, MissingKeys: missing}
}
