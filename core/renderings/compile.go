package renderings

import (
	"regexp"
	"strings"
)

// WordClass matches one word character: a letter, a mark, a format
// character or a hyphen.
const WordClass = `[\p{L}\p{M}\p{Cf}\-]`

// nonWordClass matches one character that is not a word character.
const nonWordClass = `[^\p{L}\p{M}\p{Cf}\-]`

// wildcard is what "*" expands to inside a pattern.
const wildcard = WordClass + `*`

var (
	// commentRun matches a complete parenthesized comment.
	commentRun = regexp.MustCompile(`\([^)]*\)`)

	// itemSeparator splits renderings text into items.
	itemSeparator = regexp.MustCompile(`\|\||\r?\n|\r`)
)

// SplitItems splits renderings text on "||" and line breaks. Items are
// returned untrimmed and may be empty.
func SplitItems(renderings string) []string {
	return itemSeparator.Split(renderings, -1)
}

// StripComments removes parenthesized comments from one item. A comment the
// user is still typing is removed too: everything from a dangling "(" to
// the end and everything up to a dangling ")".
func StripComments(item string) string {
	s := commentRun.ReplaceAllString(item, "")
	if i := strings.LastIndex(s, "("); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, ")"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// Pattern is one compiled rendering item.
type Pattern struct {
	source    string
	unbounded *regexp.Regexp // search anywhere; group 1 is the rendering span
	full      *regexp.Regexp // the whole input must be the rendering
}

// Source returns the rendering item the pattern was compiled from.
func (p *Pattern) Source() string {
	return p.source
}

// MatchString reports whether the rendering occurs anywhere in s, respecting
// word boundaries.
func (p *Pattern) MatchString(s string) bool {
	return p.unbounded.MatchString(s)
}

// MatchFull reports whether s as a whole is the rendering.
func (p *Pattern) MatchFull(s string) bool {
	return p.full.MatchString(s)
}

// Find returns the byte offsets of the first occurrence of the rendering in s.
// Boundary characters are not part of the span.
func (p *Pattern) Find(s string) (start, end int, ok bool) {
	loc := p.unbounded.FindStringSubmatchIndex(s)
	if loc == nil {
		return 0, 0, false
	}
	return loc[2], loc[3], true
}

// String returns the unanchored expression.
func (p *Pattern) String() string {
	return p.unbounded.String()
}

// Patterns is an ordered list of compiled rendering items. Order is the item
// order in the renderings text.
type Patterns []*Pattern

// MatchAny reports whether any pattern occurs in s.
func (ps Patterns) MatchAny(s string) bool {
	for _, p := range ps {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// MatchAnyFull reports whether s as a whole equals some rendering.
func (ps Patterns) MatchAnyFull(s string) bool {
	for _, p := range ps {
		if p.MatchFull(s) {
			return true
		}
	}
	return false
}

// FirstMatch returns the index of the first pattern, in item order, that
// occurs in s, with the span it matched.
func (ps Patterns) FirstMatch(s string) (idx, start, end int, ok bool) {
	for i, p := range ps {
		if from, to, found := p.Find(s); found {
			return i, from, to, true
		}
	}
	return -1, 0, 0, false
}

// Sources returns the rendering items behind the patterns.
func (ps Patterns) Sources() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.source
	}
	return out
}

// PatternCompiler turns renderings text into patterns.
type PatternCompiler interface {
	Compile(renderings string) Patterns
}

// Compiler compiles renderings text. The zero value is ready to use.
type Compiler struct {
	// OnDrop, if set, is called for every item that fails to compile.
	OnDrop func(item string, err error)
}

// Compile compiles every usable item of renderings in item order. Items that
// cannot be compiled are skipped; the result may be empty but is never nil.
func (c Compiler) Compile(renderings string) Patterns {
	items := SplitItems(Normalize(renderings))
	out := make(Patterns, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(StripComments(item))
		if item == "" {
			continue
		}
		p, err := CompileItem(item)
		if err != nil {
			if c.OnDrop != nil {
				c.OnDrop(item, err)
			}
			continue
		}
		out = append(out, p)
	}
	return out
}

// Compile compiles renderings with a zero Compiler.
func Compile(renderings string) Patterns {
	return Compiler{}.Compile(renderings)
}

// CompileItem compiles a single, already trimmed rendering item. The item's
// text is matched literally apart from "*".
func CompileItem(item string) (*Pattern, error) {
	parts := strings.Split(item, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	body := strings.Join(parts, wildcard)

	var b strings.Builder
	b.WriteString("(?i)")
	if !strings.HasPrefix(item, "*") {
		b.WriteString("(?:^|" + nonWordClass + ")")
	}
	b.WriteString("(" + body + ")")
	if !strings.HasSuffix(item, "*") {
		b.WriteString("(?:" + nonWordClass + "|$)")
	}

	unbounded, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	full, err := regexp.Compile("(?i)^(?:" + body + ")$")
	if err != nil {
		return nil, err
	}
	return &Pattern{source: item, unbounded: unbounded, full: full}, nil
}
