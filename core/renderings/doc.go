// Package renderings turns the free-form renderings text recorded for a
// biblical term into the two things map labeling needs: compiled patterns
// that find a rendering in verse text or in a label, and the canonical
// "map form" that a label should show.
//
// # Renderings text
//
// A renderings string is a list of items separated by newlines or "||".
// Each item is one vernacular spelling. Items may contain:
//
//   - "*" wildcards standing for zero or more word characters
//   - parenthesized comments, which are ignored (an unterminated comment
//     typed halfway is ignored as well)
//   - an explicit override "(@text)" or "(map: text)" naming the map form
//
// # Word characters
//
// Boundaries and wildcards use WordClass (letters, marks, format characters
// and hyphen) rather than the regexp engine's ASCII \w and \b, so that
// combining marks and zero-width joiners in non-Latin scripts stay inside
// a word and hyphenated compounds match as a unit.
//
// Everything in this package is a pure function of its inputs. Patterns
// are immutable once compiled and safe to share between goroutines.
package renderings
