package renderings

import (
	"regexp"
	"strings"
)

// Separator joins alternative map forms when a term has more than one
// rendering and none has been chosen. A label containing it is unresolved.
const Separator = "——"

// overridePattern matches "(@text)" and "(map: text)". An annotation with
// nothing but spaces inside is not an override.
var overridePattern = regexp.MustCompile(`\((?:@|map:)\s*([^)\s][^)]*)\)`)

// ExplicitOverride returns the map form forced by an override annotation in
// renderings, ignoring wildcards. The form is trimmed.
func ExplicitOverride(renderings string) (string, bool) {
	m := overridePattern.FindStringSubmatch(strings.ReplaceAll(renderings, "*", ""))
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// HasExplicitOverride reports whether renderings carries an override annotation.
func HasExplicitOverride(renderings string) bool {
	_, ok := ExplicitOverride(renderings)
	return ok
}

// Items returns the display forms of the rendering items: wildcards and
// comments removed, trimmed, empties dropped.
func Items(renderings string) []string {
	var out []string
	for _, item := range SplitItems(strings.ReplaceAll(renderings, "*", "")) {
		item = strings.TrimSpace(StripComments(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// MapForm returns the text a map label for the term should show. An explicit
// override wins; otherwise all items are joined with Separator. A nil entry
// or blank renderings give "".
func MapForm(e *Entry) string {
	if e == nil {
		return ""
	}
	if form, ok := ExplicitOverride(e.Renderings); ok {
		return form
	}
	return strings.Join(Items(e.Renderings), Separator)
}

// SplitMapForm returns the alternatives of an unresolved map form, for
// offering the user a choice.
func SplitMapForm(form string) []string {
	var out []string
	for _, part := range strings.Split(form, Separator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
