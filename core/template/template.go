// Package template expands map label templates into label text.
//
// A template is literal text with fields in braces:
//
//	{jerusalem}        the map form of a place name
//	{q#jerusalem}      the same, passed through the rules of tag "q"
//	{r#GEN001001}      a scripture reference ("R" for the long form)
//	{#12}              a number in the vernacular digits
//
// Place names are resolved across every term associated with them. Reference
// and number fields are handed to injected collaborators that may block, so
// Resolve takes a context; callers that re-resolve on each edit tag requests
// with Generations and drop superseded results.
package template

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
)

// FieldKind identifies what a template field refers to.
type FieldKind int

const (
	// FieldPlaceName is "{id}".
	FieldPlaceName FieldKind = iota
	// FieldTaggedPlaceName is "{tag#id}".
	FieldTaggedPlaceName
	// FieldReference is "{r#REF}" or "{R#REF}".
	FieldReference
	// FieldNumber is "{#NUM}".
	FieldNumber
)

func (k FieldKind) String() string {
	switch k {
	case FieldPlaceName:
		return "placename"
	case FieldTaggedPlaceName:
		return "tagged-placename"
	case FieldReference:
		return "reference"
	case FieldNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Field is one "{...}" field of a template.
type Field struct {
	Kind FieldKind
	// Tag is the tag of a tagged place name.
	Tag string
	// Value is the place name ID, reference or number.
	Value string
	// Long is set for "{R#...}".
	Long bool
	// Offset and End delimit the field, braces included, in the source.
	Offset int
	End    int
}

// Segment is either literal text or a field.
type Segment struct {
	Literal string
	Field   *Field
}

// Template is a parsed label template.
type Template struct {
	Source   string
	Segments []Segment
}

// Fields returns the template's fields in source order.
func (t *Template) Fields() []*Field {
	var out []*Field
	for _, s := range t.Segments {
		if s.Field != nil {
			out = append(out, s.Field)
		}
	}
	return out
}

//nolint:govet // participle grammar tags are not standard struct tags
type templateGrammar struct {
	Segments []*segmentGrammar `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type segmentGrammar struct {
	Pos   lexer.Position
	Field *string `  @Field`
	Text  *string `| @( Text | Brace )`
}

// templateLexer splits a template into fields and text; a brace that does
// not open a well-formed field is text.
var templateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Field", Pattern: `\{[^{}]*\}`},
	{Name: "Text", Pattern: `[^{]+`},
	{Name: "Brace", Pattern: `\{`},
})

var templateParser = participle.MustBuild[templateGrammar](
	participle.Lexer(templateLexer),
)

// Parse splits a template into literal text and fields.
func Parse(src string) (*Template, error) {
	t := &Template{Source: src}
	if src == "" {
		return t, nil
	}

	parsed, err := templateParser.ParseString("", src)
	if err != nil {
		perr := apperrors.NewParse("template", "", err.Error())
		perr.Err = err
		return nil, perr
	}

	for _, seg := range parsed.Segments {
		switch {
		case seg.Field != nil:
			raw := *seg.Field
			f := parseField(raw[1 : len(raw)-1])
			if f == nil {
				t.Segments = append(t.Segments, Segment{Literal: raw})
				continue
			}
			f.Offset = seg.Pos.Offset
			f.End = seg.Pos.Offset + len(raw)
			t.Segments = append(t.Segments, Segment{Field: f})
		case seg.Text != nil:
			t.Segments = append(t.Segments, Segment{Literal: *seg.Text})
		}
	}
	return t, nil
}

// parseField interprets the text between braces; nil means "not a field".
func parseField(inner string) *Field {
	tag, value, tagged := strings.Cut(inner, "#")
	tag = strings.TrimSpace(tag)
	value = strings.TrimSpace(value)
	if !tagged {
		if tag == "" {
			return nil
		}
		return &Field{Kind: FieldPlaceName, Value: tag}
	}
	if value == "" {
		return nil
	}
	switch tag {
	case "":
		return &Field{Kind: FieldNumber, Value: value}
	case "r", "R":
		return &Field{Kind: FieldReference, Value: value, Long: tag == "R"}
	default:
		return &Field{Kind: FieldTaggedPlaceName, Tag: tag, Value: value}
	}
}
