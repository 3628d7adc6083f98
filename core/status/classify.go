package status

import (
	"strings"

	"github.com/FocuswithJustin/MapLabeler/core/renderings"
	"github.com/FocuswithJustin/MapLabeler/core/tally"
)

// Form is what a label's text is checked against.
type Form struct {
	// Text is the expected label text, "" when there are no renderings.
	Text string
	// Guessed is set when a rendering behind Text is unapproved.
	Guessed bool
	// BadOverride is set when an explicit override behind Text does not
	// occur in the renderings that carry it.
	BadOverride bool
	// Short reports whether a normalized label is a declared rendering.
	Short func(label string) bool
}

// EntryForm is the form of a single term: its map form, checked against the
// term's own patterns. A nil entry has no renderings.
func EntryForm(entry *renderings.Entry, patterns renderings.Patterns) Form {
	if entry == nil {
		return Form{}
	}
	text := renderings.Normalize(renderings.MapForm(entry))
	return Form{
		Text:    text,
		Guessed: entry.IsGuessed,
		// The override is checked against every compiled item, including
		// whatever text remains of the override's own item.
		BadOverride: renderings.HasExplicitOverride(entry.Renderings) && !patterns.MatchAny(text),
		Short:       patterns.MatchAnyFull,
	}
}

// Classify returns the status of vernLabel for a term with the given entry
// and compiled patterns. The first rule that applies wins:
//
//  1. empty label: Blank
//  2. label still holds alternatives: Multiple
//  3. no entry or an empty map form: NoRenderings
//  4. label equals the map form: Guessed if unapproved, BadExplicitForm if an
//     override does not occur in the renderings, otherwise Matched
//  5. label is a whole rendering: RenderingShort
//  6. otherwise: Unmatched
//
// Classify never panics and a nil entry is a valid input.
func Classify(entry *renderings.Entry, vernLabel string, patterns renderings.Patterns) Status {
	return ClassifyForm(vernLabel, EntryForm(entry, patterns))
}

// ClassifyForm applies the rules of Classify to an arbitrary form, such as
// the expansion of a label template.
func ClassifyForm(vernLabel string, f Form) Status {
	label := renderings.Normalize(strings.TrimSpace(vernLabel))
	if label == "" {
		return Blank
	}
	if strings.Contains(label, renderings.Separator) {
		return Multiple
	}
	text := renderings.Normalize(strings.TrimSpace(f.Text))
	if text == "" {
		return NoRenderings
	}

	if label == text {
		switch {
		case f.Guessed:
			return Guessed
		case f.BadOverride:
			return BadExplicitForm
		}
		return Matched
	}

	if f.Short != nil && f.Short(label) {
		return RenderingShort
	}
	return Unmatched
}

// Inputs are everything needed to evaluate one label.
type Inputs struct {
	Entry  *renderings.Entry
	Label  string
	Refs   []string
	Verses map[string]string
}

// Result is the evaluation of one label.
type Result struct {
	Status  Status       `json:"status"`
	MapForm string       `json:"map_form"`
	Tally   tally.Result `json:"tally"`
}

// Classifier evaluates labels with an injected pattern compiler.
type Classifier struct {
	compiler renderings.PatternCompiler
}

// NewClassifier returns a classifier compiling with c. A nil c compiles
// without caching.
func NewClassifier(c renderings.PatternCompiler) *Classifier {
	if c == nil {
		c = renderings.Compiler{}
	}
	return &Classifier{compiler: c}
}

// Patterns compiles the entry's renderings. A nil entry has no patterns.
func (c *Classifier) Patterns(entry *renderings.Entry) renderings.Patterns {
	if entry == nil {
		return renderings.Patterns{}
	}
	return c.compiler.Compile(entry.Renderings)
}

// Classify returns the status of label for entry.
func (c *Classifier) Classify(entry *renderings.Entry, label string) Status {
	return Classify(entry, label, c.Patterns(entry))
}

// Evaluate classifies the label and tallies the expected verses with one
// set of compiled patterns.
func (c *Classifier) Evaluate(in Inputs) Result {
	patterns := c.Patterns(in.Entry)
	return Result{
		Status:  Classify(in.Entry, in.Label, patterns),
		MapForm: renderings.MapForm(in.Entry),
		Tally:   tally.Count(in.Entry, patterns, in.Refs, in.Verses),
	}
}
