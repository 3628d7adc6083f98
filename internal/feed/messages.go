package feed

import (
	"fmt"
	"time"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
	"github.com/FocuswithJustin/MapLabeler/core/status"
	"github.com/FocuswithJustin/MapLabeler/internal/session"
	"github.com/FocuswithJustin/MapLabeler/internal/validation"
)

// Message types sent to clients.
const (
	TypeStatus   = "status"
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

// Command operations accepted from clients.
const (
	OpSetVernacular = "set-vernacular"
	OpSetRenderings = "set-renderings"
	OpDeny          = "deny"
	OpUndeny        = "undeny"
	OpApprove       = "approve"
	OpResolve       = "resolve"
	OpSnapshot      = "snapshot"
)

// StatusMessage reports the evaluation of one label.
type StatusMessage struct {
	Type       string        `json:"type"`
	MergeKey   string        `json:"mergeKey"`
	Vernacular string        `json:"vernacular"`
	MapForm    string        `json:"mapForm"`
	Status     status.Status `json:"status"`
	Matched    int           `json:"matched"`
	Considered int           `json:"considered"`
	AnyDenials bool          `json:"anyDenials"`
	Timestamp  string        `json:"timestamp"`
}

// SnapshotMessage carries every label, sent when a client connects and on
// request.
type SnapshotMessage struct {
	Type      string          `json:"type"`
	Labels    []StatusMessage `json:"labels"`
	Timestamp string          `json:"timestamp"`
}

// ErrorMessage tells one client its command failed.
type ErrorMessage struct {
	Type      string  `json:"type"`
	Command   Command `json:"command"`
	Code      string  `json:"code,omitempty"`
	Message   string  `json:"message"`
	Timestamp string  `json:"timestamp"`
}

// Command is a change requested by a client.
type Command struct {
	Op       string `json:"op"`
	MergeKey string `json:"mergeKey,omitempty"`
	TermID   string `json:"termId,omitempty"`
	Ref      string `json:"ref,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Validate checks the fields the command's operation uses.
func (c Command) Validate() error {
	switch c.Op {
	case OpSnapshot:
		return nil
	case OpSetVernacular:
		if err := validation.ValidateID("mergeKey", c.MergeKey); err != nil {
			return err
		}
		return validation.ValidateText("text", c.Text)
	case OpResolve:
		return validation.ValidateID("mergeKey", c.MergeKey)
	case OpSetRenderings:
		if err := validation.ValidateID("termId", c.TermID); err != nil {
			return err
		}
		return validation.ValidateText("text", c.Text)
	case OpDeny, OpUndeny:
		if err := validation.ValidateID("termId", c.TermID); err != nil {
			return err
		}
		return validation.ValidateID("ref", c.Ref)
	case OpApprove:
		return validation.ValidateID("termId", c.TermID)
	default:
		return apperrors.NewValidation("op", fmt.Sprintf("unknown operation %q", c.Op))
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewStatusMessage converts a label into its feed message.
func NewStatusMessage(l session.LabelLocation) StatusMessage {
	return StatusMessage{
		Type:       TypeStatus,
		MergeKey:   l.MergeKey,
		Vernacular: l.Vernacular,
		MapForm:    l.MapForm,
		Status:     l.Status,
		Matched:    l.Tally.Matched,
		Considered: l.Tally.Considered,
		AnyDenials: l.Tally.AnyDenials,
		Timestamp:  timestamp(),
	}
}

// NewSnapshotMessage converts labels into a snapshot.
func NewSnapshotMessage(labels []session.LabelLocation) SnapshotMessage {
	msgs := make([]StatusMessage, len(labels))
	for i, l := range labels {
		msgs[i] = NewStatusMessage(l)
	}
	return SnapshotMessage{Type: TypeSnapshot, Labels: msgs, Timestamp: timestamp()}
}

// Apply runs a synchronous command against the session and returns the
// labels it changed. OpResolve and OpSnapshot are handled by the hub.
func Apply(s *session.Session, cmd Command) ([]session.LabelLocation, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	switch cmd.Op {
	case OpSetVernacular:
		l, err := s.SetVernacular(cmd.MergeKey, cmd.Text)
		if err != nil {
			return nil, err
		}
		return []session.LabelLocation{l}, nil
	case OpSetRenderings:
		return s.SetRenderings(cmd.TermID, cmd.Text)
	case OpDeny:
		return s.Deny(cmd.TermID, cmd.Ref)
	case OpUndeny:
		return s.Undeny(cmd.TermID, cmd.Ref)
	case OpApprove:
		return s.Approve(cmd.TermID)
	default:
		return nil, apperrors.NewValidation("op", fmt.Sprintf("%q is handled by the hub", cmd.Op))
	}
}
