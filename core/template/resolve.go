package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/MapLabeler/core/ref"
	"github.com/FocuswithJustin/MapLabeler/core/renderings"
)

// Resolution is an expanded template.
type Resolution struct {
	// Text is the label text.
	Text string `json:"text"`
	// PlaceNames are the place name IDs used, in first-use order.
	PlaceNames []string `json:"place_names,omitempty"`
	// References are the scripture references used, in canonical key form.
	References []string `json:"references,omitempty"`
	// Fields holds the text each field expanded to, in source order.
	Fields []string `json:"-"`
}

// Resolver expands templates.
type Resolver struct {
	Catalog    Catalog
	Terms      TermSource
	Tags       TagRules
	References ReferenceFormatter
	Digits     DigitConverter
}

// NewResolver returns a resolver. Without References and Digits set,
// references are formatted by RefFormatter using Digits, and numbers keep
// ASCII digits.
func NewResolver(catalog Catalog, terms TermSource, tags TagRules) *Resolver {
	return &Resolver{
		Catalog: catalog,
		Terms:   terms,
		Tags:    tags,
	}
}

// PlaceNameForm returns the label text for a place name. An explicit
// override on any of its terms wins; otherwise the distinct rendering items
// of all its terms are joined with renderings.Separator. With a tag, every
// item goes through the tag's rules first.
func (r *Resolver) PlaceNameForm(placeNameID, tag string) string {
	var items []string
	seen := make(map[string]bool)

	var termIDs []string
	if r.Catalog != nil {
		termIDs = r.Catalog.TermsForPlaceName(placeNameID)
	}
	for _, termID := range termIDs {
		var e *renderings.Entry
		if r.Terms != nil {
			e = r.Terms.Entry(termID)
		}
		if e == nil || strings.TrimSpace(e.Renderings) == "" {
			continue
		}
		if form, ok := renderings.ExplicitOverride(e.Renderings); ok {
			items = []string{form}
			break
		}
		for _, item := range renderings.Items(e.Renderings) {
			if !seen[item] {
				seen[item] = true
				items = append(items, item)
			}
		}
	}

	if tag != "" && r.Tags != nil {
		rules := r.Tags.Rules(tag)
		for i, item := range items {
			items[i] = ApplyTag(rules, item)
		}
	}
	return strings.Join(items, renderings.Separator)
}

// Resolve expands every field of src. Replacements are applied from the last
// field to the first so earlier offsets stay valid.
func (r *Resolver) Resolve(ctx context.Context, src string) (*Resolution, error) {
	t, err := Parse(src)
	if err != nil {
		return nil, err
	}

	fields := t.Fields()
	texts := make([]string, len(fields))
	res := &Resolution{}
	seenPlace := make(map[string]bool)
	seenRef := make(map[string]bool)

	for i, f := range fields {
		switch f.Kind {
		case FieldPlaceName, FieldTaggedPlaceName:
			texts[i] = r.PlaceNameForm(f.Value, f.Tag)
			if !seenPlace[f.Value] {
				seenPlace[f.Value] = true
				res.PlaceNames = append(res.PlaceNames, f.Value)
			}
		case FieldReference:
			texts[i], err = r.formatReference(ctx, f)
			if err != nil {
				return nil, err
			}
			if key := ref.Canonical(f.Value); !seenRef[key] {
				seenRef[key] = true
				res.References = append(res.References, key)
			}
		case FieldNumber:
			texts[i], err = r.convertDigits(ctx, f.Value)
			if err != nil {
				return nil, err
			}
		}
	}

	out := t.Source
	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		out = out[:f.Offset] + texts[i] + out[f.End:]
	}
	res.Text = out
	res.Fields = texts
	return res, nil
}

func (r *Resolver) formatReference(ctx context.Context, f *Field) (string, error) {
	formatter := r.References
	if formatter == nil {
		formatter = RefFormatter{Digits: r.Digits}
	}
	text, err := formatter.FormatReference(ctx, f.Value, f.Long)
	if err != nil {
		return "", fmt.Errorf("resolving reference %q: %w", f.Value, err)
	}
	return text, nil
}

func (r *Resolver) convertDigits(ctx context.Context, number string) (string, error) {
	digits := r.Digits
	if digits == nil {
		digits = ScriptDigits{}
	}
	text, err := digits.ConvertDigits(ctx, number)
	if err != nil {
		return "", fmt.Errorf("converting number %q: %w", number, err)
	}
	return text, nil
}
