// Package tally counts how many of a term's expected verses contain one of
// its renderings.
//
// Counting and highlighting are separate operations over the same patterns:
// Count treats the patterns as a set, so reordering rendering items never
// changes a tally, while Highlight and Detail pick the first pattern in item
// order to mark a span in the verse text.
package tally

import (
	"fmt"

	"github.com/FocuswithJustin/MapLabeler/core/renderings"
)

// Denier reports whether a reference has been accepted as missing its
// rendering. *renderings.Entry implements it.
type Denier interface {
	IsDenied(ref string) bool
}

// AnyDenier denies a reference when any of its members does.
type AnyDenier []Denier

// IsDenied implements Denier.
func (a AnyDenier) IsDenied(ref string) bool {
	for _, d := range a {
		if d != nil && d.IsDenied(ref) {
			return true
		}
	}
	return false
}

// Result is the outcome of a tally.
type Result struct {
	// Matched counts verses containing a rendering plus denied verses.
	Matched int `json:"matched"`
	// Considered counts verses whose text is available.
	Considered int `json:"considered"`
	// AnyDenials is set when at least one denial was counted as a match.
	AnyDenials bool `json:"any_denials,omitempty"`
}

// Complete reports whether every considered verse is accounted for.
func (r Result) Complete() bool {
	return r.Considered > 0 && r.Matched == r.Considered
}

// Fraction returns Matched/Considered, or 0 when nothing was considered.
func (r Result) Fraction() float64 {
	if r.Considered == 0 {
		return 0
	}
	return float64(r.Matched) / float64(r.Considered)
}

func (r Result) String() string {
	if r.AnyDenials {
		return fmt.Sprintf("%d/%d*", r.Matched, r.Considered)
	}
	return fmt.Sprintf("%d/%d", r.Matched, r.Considered)
}

// Count tallies refs against verses. References without text are not yet
// available and are left out of every count. Verse text is compared in NFC,
// like the patterns.
func Count(denials Denier, patterns renderings.Patterns, refs []string, verses map[string]string) Result {
	var r Result
	for _, ref := range refs {
		text := renderings.Normalize(verses[ref])
		if text == "" {
			continue
		}
		r.Considered++
		if patterns.MatchAny(text) {
			r.Matched++
			continue
		}
		if denials != nil && denials.IsDenied(ref) {
			r.Matched++
			r.AnyDenials = true
		}
	}
	return r
}

// CountMany tallies refs for several terms at once, as a template label that
// names more than one term does. A verse counts when the renderings of any
// entry occur in it or when any entry denies it.
func CountMany(entries []*renderings.Entry, c renderings.PatternCompiler, refs []string, verses map[string]string) Result {
	if c == nil {
		c = renderings.Compiler{}
	}
	var patterns renderings.Patterns
	denials := make(AnyDenier, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		patterns = append(patterns, c.Compile(e.Renderings)...)
		denials = append(denials, e)
	}
	return Count(denials, patterns, refs, verses)
}

// Span is a byte range in a verse text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
	// Pattern is the index of the rendering item that matched.
	Pattern int `json:"pattern"`
}

// Highlight returns the span of the first rendering, in item order, found in text.
func Highlight(patterns renderings.Patterns, text string) (Span, bool) {
	idx, start, end, ok := patterns.FirstMatch(text)
	if !ok {
		return Span{}, false
	}
	return Span{Start: start, End: end, Pattern: idx}, true
}

// VerseState describes one expected verse.
type VerseState int

const (
	// Pending means the verse text is not available yet.
	Pending VerseState = iota
	// Found means the verse contains a rendering.
	Found
	// Denied means the rendering is missing and the user accepted that.
	Denied
	// Missing means the rendering is missing.
	Missing
)

func (s VerseState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Found:
		return "found"
	case Denied:
		return "denied"
	case Missing:
		return "missing"
	default:
		return fmt.Sprintf("VerseState(%d)", int(s))
	}
}

// VerseResult is the state of one expected verse, for the verse list view.
type VerseResult struct {
	Ref   string     `json:"ref"`
	State VerseState `json:"state"`
	Text  string     `json:"text,omitempty"`
	Span  *Span      `json:"span,omitempty"`
}

// Detail returns the state of every reference in refs, in order. Text is
// the verse in NFC and spans index into it.
func Detail(denials Denier, patterns renderings.Patterns, refs []string, verses map[string]string) []VerseResult {
	out := make([]VerseResult, 0, len(refs))
	for _, ref := range refs {
		vr := VerseResult{Ref: ref, Text: renderings.Normalize(verses[ref])}
		switch {
		case vr.Text == "":
			vr.State = Pending
		default:
			if span, ok := Highlight(patterns, vr.Text); ok {
				vr.State = Found
				vr.Span = &span
			} else if denials != nil && denials.IsDenied(ref) {
				vr.State = Denied
			} else {
				vr.State = Missing
			}
		}
		out = append(out, vr)
	}
	return out
}

// Summarize folds verse results into a Result; it agrees with Count.
func Summarize(results []VerseResult) Result {
	var r Result
	for _, vr := range results {
		switch vr.State {
		case Found:
			r.Considered++
			r.Matched++
		case Denied:
			r.Considered++
			r.Matched++
			r.AnyDenials = true
		case Missing:
			r.Considered++
		}
	}
	return r
}
