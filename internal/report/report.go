// Package report summarizes the status of every label in a session.
package report

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
	"github.com/FocuswithJustin/MapLabeler/core/status"
	"github.com/FocuswithJustin/MapLabeler/core/tally"
	"github.com/FocuswithJustin/MapLabeler/internal/session"
)

// xzMagic starts every xz stream.
var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// LabelSource supplies the labels to report on. *session.Session
// implements it.
type LabelSource interface {
	Labels() []session.LabelLocation
}

// Row is one label in a report.
type Row struct {
	MergeKey   string        `json:"merge_key"`
	Vernacular string        `json:"vernacular"`
	MapForm    string        `json:"map_form"`
	Status     status.Status `json:"status"`
	Tally      tally.Result  `json:"tally"`
	TermID     string        `json:"term_id,omitempty"`
}

// Report is a snapshot of label statuses.
type Report struct {
	ID        string                `json:"id"`
	SessionID string                `json:"session_id,omitempty"`
	Generated time.Time             `json:"generated"`
	Labels    []Row                 `json:"labels"`
	Counts    map[status.Status]int `json:"counts"`
	// Digest is the BLAKE3 hash of the JSON encoding of Labels. Two reports
	// with the same digest describe the same label states.
	Digest string `json:"digest"`
}

// Build reports on every label of src, ordered by status rank and then by
// merge key.
func Build(src LabelSource) *Report {
	labels := src.Labels()
	r := &Report{
		ID:        uuid.NewString(),
		Generated: time.Now().UTC().Round(0),
		Labels:    make([]Row, 0, len(labels)),
		Counts:    make(map[status.Status]int),
	}
	if s, ok := src.(*session.Session); ok {
		r.SessionID = s.ID
	}

	for _, l := range labels {
		r.Labels = append(r.Labels, Row{
			MergeKey:   l.MergeKey,
			Vernacular: l.Vernacular,
			MapForm:    l.MapForm,
			Status:     l.Status,
			Tally:      l.Tally,
			TermID:     l.TermID,
		})
		r.Counts[l.Status]++
	}
	sort.SliceStable(r.Labels, func(i, j int) bool {
		a, b := r.Labels[i], r.Labels[j]
		if a.Status.SortRank() != b.Status.SortRank() {
			return a.Status.SortRank() < b.Status.SortRank()
		}
		return a.MergeKey < b.MergeKey
	})
	r.Digest = Digest(r.Labels)
	return r
}

// Digest hashes rows.
func Digest(rows []Row) string {
	data, err := json.Marshal(rows)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the digest matches the rows.
func (r *Report) Verify() bool {
	return r.Digest == Digest(r.Labels)
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ReadJSON reads a report written by WriteJSON.
func ReadJSON(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, &apperrors.ParseError{Document: "report", Message: err.Error(), Err: err}
	}
	return &r, nil
}

// WriteXZ writes the report as xz-compressed JSON.
func WriteXZ(w io.Writer, r *Report) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create xz writer: %w", err)
	}
	if err := WriteJSON(xw, r); err != nil {
		xw.Close()
		return err
	}
	return xw.Close()
}

// ReadXZ reads a report written by WriteXZ.
func ReadXZ(rd io.Reader) (*Report, error) {
	xr, err := xz.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz reader: %w", err)
	}
	return ReadJSON(xr)
}

// Read reads a report, detecting xz compression from the stream header.
func Read(rd io.Reader) (*Report, error) {
	br := bufio.NewReader(rd)
	head, err := br.Peek(len(xzMagic))
	if err == nil && bytes.Equal(head, xzMagic) {
		return ReadXZ(br)
	}
	return ReadJSON(br)
}

// WriteFile writes the report to path, compressed when path ends in ".xz".
func WriteFile(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewIO("create", path, err)
	}
	if strings.HasSuffix(path, ".xz") {
		err = WriteXZ(f, r)
	} else {
		err = WriteJSON(f, r)
	}
	if err != nil {
		f.Close()
		return apperrors.NewIO("write", path, err)
	}
	if err := f.Close(); err != nil {
		return apperrors.NewIO("close", path, err)
	}
	return nil
}

// ReadFile reads a report written by WriteFile.
func ReadFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewIO("open", path, err)
	}
	defer f.Close()
	return Read(f)
}

// statusStyles maps the status color hints onto terminal colors.
var statusStyles = map[string]func(a ...interface{}) string{
	"green":   pterm.Green,
	"yellow":  pterm.Yellow,
	"gray":    pterm.Gray,
	"red":     pterm.Red,
	"white":   pterm.White,
	"orange":  pterm.LightRed,
	"cyan":    pterm.Cyan,
	"magenta": pterm.Magenta,
}

// StyleStatus renders a status name in its color.
func StyleStatus(s status.Status) string {
	if style, ok := statusStyles[s.Color()]; ok {
		return style(s.String())
	}
	return s.String()
}

// RenderTable writes the report as a terminal table followed by the count
// of labels per status.
func RenderTable(w io.Writer, r *Report) error {
	data := pterm.TableData{{"Status", "Label", "Vernacular", "Map form", "Verses"}}
	for _, row := range r.Labels {
		data = append(data, []string{
			StyleStatus(row.Status),
			row.MergeKey,
			row.Vernacular,
			row.MapForm,
			row.Tally.String(),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	if _, err := io.WriteString(w, table+"\n"); err != nil {
		return err
	}

	for _, st := range status.All() {
		if n := r.Counts[st]; n > 0 {
			if _, err := fmt.Fprintf(w, "%s: %d\n", StyleStatus(st), n); err != nil {
				return err
			}
		}
	}
	return nil
}
