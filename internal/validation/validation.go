// Package validation checks user-supplied input before it reaches a session
// or the database: identifiers and text from feed clients, and paths of
// files given on the command line.
package validation

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
)

// Limits on user input.
const (
	// MaxFileSize is the largest import file accepted (64 MB).
	MaxFileSize = 64 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
	// MaxIDLength bounds term IDs, merge keys and references.
	MaxIDLength = 256
	// MaxTextLength bounds renderings and label text.
	MaxTextLength = 64 << 10
)

// ValidatePath checks a file path for length and for null or control
// characters.
func ValidatePath(path string) error {
	if path == "" {
		return apperrors.NewValidation("path", "cannot be empty")
	}
	if len(path) > MaxPathLength {
		return apperrors.NewValidation("path", "too long")
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return apperrors.NewValidation("path", "control character not allowed")
		}
	}
	return nil
}

// ValidateID checks an identifier such as a term ID, merge key or verse
// reference. Identifiers are non-empty valid UTF-8 without control
// characters; references may contain spaces, so only leading and trailing
// space is rejected.
func ValidateID(field, id string) error {
	switch {
	case id == "":
		return apperrors.NewValidation(field, "cannot be empty")
	case len(id) > MaxIDLength:
		return apperrors.NewValidation(field, fmt.Sprintf("longer than %d bytes", MaxIDLength))
	case !utf8.ValidString(id):
		return apperrors.NewValidation(field, "not valid UTF-8")
	case strings.TrimSpace(id) != id:
		return apperrors.NewValidation(field, "leading or trailing space")
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return apperrors.NewValidation(field, "control character not allowed")
		}
	}
	return nil
}

// ValidateText checks free text such as renderings or a label. Empty text is
// allowed; line breaks and tabs are the only control characters accepted.
func ValidateText(field, text string) error {
	if len(text) > MaxTextLength {
		return apperrors.NewValidation(field, fmt.Sprintf("longer than %d bytes", MaxTextLength))
	}
	if !utf8.ValidString(text) {
		return apperrors.NewValidation(field, "not valid UTF-8")
	}
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return apperrors.NewValidation(field, "control character not allowed")
		}
	}
	return nil
}

// OpenFile opens an import file after checking its path and size.
func OpenFile(path string) (*os.File, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewIO("open", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperrors.NewIO("stat", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, apperrors.NewValidation("path", path+" is a directory")
	}
	if info.Size() > MaxFileSize {
		f.Close()
		return nil, apperrors.NewValidation("path", fmt.Sprintf("%s is larger than %d bytes", path, MaxFileSize))
	}
	return f, nil
}

// ReadFile reads a whole import file through OpenFile.
func ReadFile(path string) ([]byte, error) {
	f, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, apperrors.NewIO("read", path, err)
	}
	if len(data) > MaxFileSize {
		return nil, apperrors.NewValidation("path", fmt.Sprintf("%s is larger than %d bytes", path, MaxFileSize))
	}
	return data, nil
}
