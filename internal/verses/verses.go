// Package verses supplies the vernacular text of scripture verses.
package verses

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"unicode"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
	"github.com/FocuswithJustin/MapLabeler/core/ref"
	"github.com/FocuswithJustin/MapLabeler/core/renderings"
)

// Provider returns verse text by reference. The result holds only the
// references that have text; absent references are not yet translated.
type Provider interface {
	Verses(ctx context.Context, refs []string) (map[string]string, error)
}

// Clean collapses runs of whitespace to one space, trims the ends and
// normalizes to NFC.
func Clean(text string) string {
	return renderings.Normalize(strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " "))
}

// Key returns the canonical form of a reference, or the reference unchanged
// when it does not parse.
func Key(reference string) string {
	return ref.Canonical(reference)
}

// MapProvider is a Provider over a map keyed by canonical reference.
type MapProvider map[string]string

// Verses implements Provider.
func (m MapProvider) Verses(ctx context.Context, refs []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(refs))
	for _, r := range refs {
		if text := m[Key(r)]; text != "" {
			out[r] = text
		}
	}
	return out, nil
}

// Decode reads a JSON object mapping references to verse text. References
// are canonicalized and texts cleaned; empty texts are dropped.
func Decode(r io.Reader) (MapProvider, error) {
	var raw map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, &apperrors.ParseError{Document: "verses", Message: err.Error(), Err: err}
	}
	out := make(MapProvider, len(raw))
	for reference, text := range raw {
		if text = Clean(text); text != "" {
			out[Key(reference)] = text
		}
	}
	return out, nil
}
