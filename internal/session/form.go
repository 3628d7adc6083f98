package session

import (
	"context"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/MapLabeler/core/renderings"
	"github.com/FocuswithJustin/MapLabeler/core/status"
	"github.com/FocuswithJustin/MapLabeler/core/template"
)

// labelForm builds what a label's text is checked against: its template with
// every place name expanded across all of the place name's terms. Callers
// hold s.mu.
//
// A bare "{placeName}" label accepts any rendering of any of its terms as
// RENDERING_SHORT. Other templates accept one declared alternative per place
// name, with the literal text, references and numbers as resolved.
func (s *Session) labelForm(loc *LabelLocation) status.Form {
	t := s.templates[loc.MergeKey]
	if t == nil || len(loc.TermIDs) == 0 {
		return status.Form{}
	}

	var (
		form  status.Form
		union renderings.Patterns
	)
	for _, id := range loc.TermIDs {
		e := s.entries[id]
		if e == nil || strings.TrimSpace(e.Renderings) == "" {
			continue
		}
		patterns := s.compiler.Compile(e.Renderings)
		union = append(union, patterns...)
		if e.IsGuessed {
			form.Guessed = true
		}
		if override, ok := renderings.ExplicitOverride(e.Renderings); ok && !patterns.MatchAny(renderings.Normalize(override)) {
			form.BadOverride = true
		}
	}

	resolver := template.NewResolver(s.catalog, s.entries, s.tags)
	if f := bareField(t); f != nil {
		form.Text = resolver.PlaceNameForm(f.Value, "")
		form.Short = union.MatchAnyFull
		return form
	}

	resolved := s.fieldTexts[loc.MergeKey]
	var text, expr strings.Builder
	expr.WriteString("^")
	i := 0
	for _, seg := range t.Segments {
		if seg.Field == nil {
			text.WriteString(seg.Literal)
			expr.WriteString(regexp.QuoteMeta(renderings.Normalize(seg.Literal)))
			continue
		}
		var part string
		switch f := seg.Field; f.Kind {
		case template.FieldPlaceName, template.FieldTaggedPlaceName:
			part = resolver.PlaceNameForm(f.Value, f.Tag)
			if part == "" {
				return status.Form{}
			}
			alts := renderings.SplitMapForm(part)
			for j, alt := range alts {
				alts[j] = regexp.QuoteMeta(renderings.Normalize(alt))
			}
			expr.WriteString("(?i:" + strings.Join(alts, "|") + ")")
		default:
			if i < len(resolved) {
				part = resolved[i]
			} else {
				part = s.formatField(f)
			}
			expr.WriteString(regexp.QuoteMeta(renderings.Normalize(part)))
		}
		text.WriteString(part)
		i++
	}
	expr.WriteString("$")

	form.Text = text.String()
	if re, err := regexp.Compile(expr.String()); err == nil {
		form.Short = re.MatchString
	}
	return form
}

// bareField returns the only field of a "{placeName}" template.
func bareField(t *template.Template) *template.Field {
	if len(t.Segments) != 1 {
		return nil
	}
	f := t.Segments[0].Field
	if f == nil || f.Kind != template.FieldPlaceName {
		return nil
	}
	return f
}

// formatField formats a reference or number field of a label that has not
// been resolved yet. The session's collaborators may block, so the built-in
// formatters stand in for them; script digits are kept.
func (s *Session) formatField(f *template.Field) string {
	digits, _ := s.digits.(template.ScriptDigits)
	var (
		text string
		err  error
	)
	switch f.Kind {
	case template.FieldReference:
		text, err = template.RefFormatter{Digits: digits}.FormatReference(context.Background(), f.Value, f.Long)
	case template.FieldNumber:
		text, err = digits.ConvertDigits(context.Background(), f.Value)
	}
	if err != nil {
		return ""
	}
	return text
}
