// Package ref parses the verse references used as keys for expected verses.
//
// Three spellings are accepted:
//
//   - "GEN001001": book code followed by a three-digit chapter and verse
//   - "001001001": packed BBBCCCVVV with the canonical book number
//   - "GEN 1:1" (or "GEN 1.1", or "GEN 1" for a whole chapter)
//
// The canonical key form is the first one.
package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Ref is a parsed verse reference.
type Ref struct {
	// Book is the USFM book code (e.g., "GEN", "1SA").
	Book string `json:"book"`

	// Chapter is the chapter number.
	Chapter int `json:"chapter"`

	// Verse is the verse number, 0 for a whole chapter.
	Verse int `json:"verse,omitempty"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type refGrammar struct {
	Packed *string     `  @Packed`
	Coded  *string     `| @Coded`
	Spoken *spokenPart `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type spokenPart struct {
	Book    string `@Book`
	Chapter int    `@Int`
	Verse   *int   `( (":" | ".") @Int )?`
}

// refLexer tries the fixed-width forms before the spoken one.
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Packed", Pattern: `[0-9]{9}`},
	{Name: "Coded", Pattern: `(?:[1-4][A-Z]{2}|[A-Z]{3})[0-9]{6}`},
	{Name: "Book", Pattern: `[1-4][A-Z]{2}|[A-Z]{3}`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[:.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a verse reference in any accepted spelling.
func Parse(s string) (*Ref, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return nil, fmt.Errorf("empty reference string")
	}

	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid reference format: %q: %w", s, err)
	}

	var r *Ref
	switch {
	case parsed.Packed != nil:
		p := *parsed.Packed
		book := BookCode(atoi(p[:3]))
		if book == "" {
			return nil, fmt.Errorf("invalid book number in %q", s)
		}
		r = &Ref{Book: book, Chapter: atoi(p[3:6]), Verse: atoi(p[6:])}
	case parsed.Coded != nil:
		c := *parsed.Coded
		r = &Ref{Book: c[:3], Chapter: atoi(c[3:6]), Verse: atoi(c[6:])}
	default:
		r = &Ref{Book: parsed.Spoken.Book, Chapter: parsed.Spoken.Chapter}
		if parsed.Spoken.Verse != nil {
			r.Verse = *parsed.Spoken.Verse
		}
	}

	if BookNumber(r.Book) == 0 {
		return nil, fmt.Errorf("unknown book %q in %q", r.Book, s)
	}
	if r.Chapter < 1 {
		return nil, fmt.Errorf("invalid chapter in %q", s)
	}
	return r, nil
}

// MustParse is like Parse but panics on error. For tests and fixed tables.
func MustParse(s string) *Ref {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Key returns the canonical "GEN001001" form.
func (r *Ref) Key() string {
	return fmt.Sprintf("%s%03d%03d", r.Book, r.Chapter, r.Verse)
}

// Packed returns the BBBCCCVVV form.
func (r *Ref) Packed() string {
	return fmt.Sprintf("%03d%03d%03d", BookNumber(r.Book), r.Chapter, r.Verse)
}

// Format renders the reference for display: "Genesis 1:1" when long,
// otherwise "GEN 1:1".
func (r *Ref) Format(long bool) string {
	book := r.Book
	if long {
		book = BookName(r.Book)
	}
	if r.Verse == 0 {
		return book + " " + strconv.Itoa(r.Chapter)
	}
	return fmt.Sprintf("%s %d:%d", book, r.Chapter, r.Verse)
}

func (r *Ref) String() string {
	return r.Format(false)
}

// Less orders references canonically.
func (r *Ref) Less(other *Ref) bool {
	if a, b := BookNumber(r.Book), BookNumber(other.Book); a != b {
		return a < b
	}
	if r.Chapter != other.Chapter {
		return r.Chapter < other.Chapter
	}
	return r.Verse < other.Verse
}

// Canonical returns the key form of s, or s unchanged when it does not parse.
func Canonical(s string) string {
	r, err := Parse(s)
	if err != nil {
		return s
	}
	return r.Key()
}

// atoi converts a run of ASCII digits matched by the lexer.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
