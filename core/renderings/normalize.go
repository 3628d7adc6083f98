package renderings

import "golang.org/x/text/unicode/norm"

// Normalize returns s in Unicode normalization form C, so that precomposed
// and decomposed spellings of the same word compare equal.
func Normalize(s string) string {
	return norm.NFC.String(s)
}
