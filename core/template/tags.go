package template

import (
	"regexp"
	"strings"
)

// StopMarker ends a replacement pattern whose rule, once it applies, stops
// the remaining rules of the tag.
const StopMarker = "{stop}"

// TagRule is one find/replace step of a tag. Find is a regular expression;
// Replace may refer to groups as $1.
type TagRule struct {
	Find    string
	Replace string
	Stop    bool

	re *regexp.Regexp
}

// NewTagRule builds a rule from a [find, replace] pair. A replacement ending
// in StopMarker makes a stop rule. Invalid expressions give a rule that
// never applies.
func NewTagRule(find, replace string) TagRule {
	r := TagRule{Find: find, Replace: replace}
	if strings.HasSuffix(replace, StopMarker) {
		r.Replace = strings.TrimSuffix(replace, StopMarker)
		r.Stop = true
	}
	r.re, _ = regexp.Compile(find)
	return r
}

// Valid reports whether the rule's expression compiled.
func (r TagRule) Valid() bool {
	return r.re != nil
}

// ApplyTag runs the rules over s in order. A rule whose expression does not
// match is skipped; a matching stop rule ends the sequence.
func ApplyTag(rules []TagRule, s string) string {
	for _, r := range rules {
		if r.re == nil || !r.re.MatchString(s) {
			continue
		}
		s = r.re.ReplaceAllString(s, r.Replace)
		if r.Stop {
			break
		}
	}
	return s
}

// TagRules supplies the rules of a tag.
type TagRules interface {
	Rules(tag string) []TagRule
}

// DefaultTags are the rules used when a project does not define the tag.
var DefaultTags = map[string][][2]string{
	// q marks an uncertain location.
	"q": {{`$`, `?`}},
}

// RuleSet is a TagRules built from [find, replace] pairs.
type RuleSet struct {
	rules map[string][]TagRule
}

// NewRuleSet returns the default tags overlaid with project tags. A project
// tag replaces the default of the same name entirely.
func NewRuleSet(project map[string][][2]string) *RuleSet {
	rs := &RuleSet{rules: make(map[string][]TagRule)}
	for tag, pairs := range DefaultTags {
		rs.Set(tag, pairs)
	}
	for tag, pairs := range project {
		rs.Set(tag, pairs)
	}
	return rs
}

// Set replaces the rules of tag.
func (rs *RuleSet) Set(tag string, pairs [][2]string) {
	rules := make([]TagRule, 0, len(pairs))
	for _, p := range pairs {
		rules = append(rules, NewTagRule(p[0], p[1]))
	}
	rs.rules[tag] = rules
}

// Rules implements TagRules. Unknown tags have no rules.
func (rs *RuleSet) Rules(tag string) []TagRule {
	return rs.rules[tag]
}

// Tags returns the defined tag names.
func (rs *RuleSet) Tags() []string {
	out := make([]string, 0, len(rs.rules))
	for tag := range rs.rules {
		out = append(out, tag)
	}
	return out
}
