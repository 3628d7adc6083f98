package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/MapLabeler/core/ref"
	"github.com/FocuswithJustin/MapLabeler/core/renderings"
)

// Catalog maps place names to the terms that denote them.
type Catalog interface {
	TermsForPlaceName(placeNameID string) []string
}

// TermSource returns the renderings entry of a term, or nil.
type TermSource interface {
	Entry(termID string) *renderings.Entry
}

// EntryMap is a TermSource over a plain map.
type EntryMap map[string]*renderings.Entry

// Entry implements TermSource.
func (m EntryMap) Entry(termID string) *renderings.Entry {
	return m[termID]
}

// ReferenceFormatter renders a scripture reference in the vernacular.
type ReferenceFormatter interface {
	FormatReference(ctx context.Context, reference string, long bool) (string, error)
}

// DigitConverter renders a number in the vernacular digits.
type DigitConverter interface {
	ConvertDigits(ctx context.Context, number string) (string, error)
}

// ScriptDigits maps ASCII digits onto the decimal digits of a script whose
// zero is Zero. The zero value leaves digits unchanged.
type ScriptDigits struct {
	Zero rune
}

// ConvertDigits implements DigitConverter.
func (d ScriptDigits) ConvertDigits(ctx context.Context, number string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d.Zero == 0 || d.Zero == '0' {
		return number, nil
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return d.Zero + (r - '0')
		}
		return r
	}, number), nil
}

// RefFormatter formats references with optional vernacular book names and
// digits.
type RefFormatter struct {
	// BookNames overrides book names by USFM code for the long form.
	BookNames map[string]string
	// Digits converts chapter and verse numbers; nil keeps ASCII digits.
	Digits DigitConverter
	// Separator goes between chapter and verse; default ":".
	Separator string
}

// FormatReference implements ReferenceFormatter.
func (f RefFormatter) FormatReference(ctx context.Context, reference string, long bool) (string, error) {
	r, err := ref.Parse(reference)
	if err != nil {
		return "", err
	}

	book := r.Book
	if long {
		book = ref.BookName(r.Book)
		if name, ok := f.BookNames[r.Book]; ok {
			book = name
		}
	}

	num := fmt.Sprint(r.Chapter)
	if r.Verse > 0 {
		sep := f.Separator
		if sep == "" {
			sep = ":"
		}
		num = fmt.Sprintf("%d%s%d", r.Chapter, sep, r.Verse)
	}

	digits := f.Digits
	if digits == nil {
		digits = ScriptDigits{}
	}
	num, err = digits.ConvertDigits(ctx, num)
	if err != nil {
		return "", err
	}
	return book + " " + num, nil
}
