package renderings

import (
	"encoding/json"
	"sort"
)

// Entry holds the renderings recorded for one biblical term.
type Entry struct {
	// Renderings is the raw renderings text as the translation team typed it.
	Renderings string `json:"renderings"`

	// IsGuessed is true while the renderings were proposed automatically and
	// not yet approved by a person.
	IsGuessed bool `json:"is_guessed,omitempty"`

	// Denials holds the verse references where a missing rendering has been
	// accepted by the user.
	Denials map[string]struct{} `json:"-"`
}

// NewEntry creates an entry with the given denied references.
func NewEntry(renderings string, guessed bool, denials ...string) *Entry {
	e := &Entry{
		Renderings: renderings,
		IsGuessed:  guessed,
	}
	for _, ref := range denials {
		e.Deny(ref)
	}
	return e
}

// IsDenied reports whether ref has been marked as acceptably missing.
// A nil entry denies nothing.
func (e *Entry) IsDenied(ref string) bool {
	if e == nil || e.Denials == nil {
		return false
	}
	_, ok := e.Denials[ref]
	return ok
}

// Deny marks ref as acceptably missing.
func (e *Entry) Deny(ref string) {
	if e.Denials == nil {
		e.Denials = make(map[string]struct{})
	}
	e.Denials[ref] = struct{}{}
}

// Undeny removes a denial. It reports whether the denial existed.
func (e *Entry) Undeny(ref string) bool {
	if _, ok := e.Denials[ref]; !ok {
		return false
	}
	delete(e.Denials, ref)
	return true
}

// DenialList returns the denied references in sorted order.
func (e *Entry) DenialList() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.Denials))
	for ref := range e.Denials {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	return NewEntry(e.Renderings, e.IsGuessed, e.DenialList()...)
}

// entryJSON is the wire form of an Entry, with denials as a sorted list.
type entryJSON struct {
	Renderings string   `json:"renderings"`
	IsGuessed  bool     `json:"is_guessed,omitempty"`
	Denials    []string `json:"denials,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Renderings: e.Renderings,
		IsGuessed:  e.IsGuessed,
		Denials:    e.DenialList(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = *NewEntry(raw.Renderings, raw.IsGuessed, raw.Denials...)
	return nil
}
