// Package status classifies a map label against the renderings of its term.
//
// A label is in exactly one Status. The classification is a pure function of
// the label text, the term's renderings entry and its compiled patterns; it
// holds no state between calls.
package status

import (
	"fmt"
	"sort"
)

// Status is the classification of one map label. The numeric values are
// stable identifiers and are stored and sent over the wire; they are not a
// display order (see SortRank).
type Status int

const (
	// Blank means the label has no text.
	Blank Status = 0
	// Multiple means the label still shows several alternatives joined by
	// the separator and the user has to pick one.
	Multiple Status = 1
	// NoRenderings means the term has no renderings to compare against.
	NoRenderings Status = 2
	// Unmatched means the label matches none of the term's renderings.
	Unmatched Status = 3
	// Matched means the label is the approved map form.
	Matched Status = 4
	// Guessed means the label is the map form of renderings nobody approved yet.
	Guessed Status = 5
	// RenderingShort means the label is a valid rendering but not the map form.
	RenderingShort Status = 6
	// BadExplicitForm means the label is an explicit override that matches
	// none of the declared renderings.
	BadExplicitForm Status = 7
)

var names = map[Status]string{
	Blank:           "BLANK",
	Multiple:        "MULTIPLE",
	NoRenderings:    "NO_RENDERINGS",
	Unmatched:       "UNMATCHED",
	Matched:         "MATCHED",
	Guessed:         "GUESSED",
	RenderingShort:  "RENDERING_SHORT",
	BadExplicitForm: "BAD_EXPLICIT_FORM",
}

// sortRanks is the order statuses appear in tallies and reports.
var sortRanks = map[Status]int{
	Matched:         0,
	Guessed:         1,
	NoRenderings:    2,
	Unmatched:       3,
	Blank:           4,
	Multiple:        5,
	RenderingShort:  6,
	BadExplicitForm: 7,
}

// colors are the UI color hints for each status.
var colors = map[Status]string{
	Matched:         "green",
	Guessed:         "yellow",
	NoRenderings:    "gray",
	Unmatched:       "red",
	Blank:           "white",
	Multiple:        "orange",
	RenderingShort:  "cyan",
	BadExplicitForm: "magenta",
}

// All returns every status in sort-rank order.
func All() []Status {
	out := make([]Status, 0, len(sortRanks))
	for s := range sortRanks {
		out = append(out, s)
	}
	ByRank(out)
	return out
}

// ByRank sorts statuses in place by SortRank.
func ByRank(statuses []Status) {
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].SortRank() < statuses[j].SortRank()
	})
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := names[s]
	return ok
}

// SortRank returns the display position of s. Unknown statuses sort last.
func (s Status) SortRank() int {
	if r, ok := sortRanks[s]; ok {
		return r
	}
	return len(sortRanks)
}

// Color returns the UI color hint for s.
func (s Status) Color() string {
	return colors[s]
}

func (s Status) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Parse returns the status with the given name.
func Parse(name string) (Status, error) {
	for s, n := range names {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
