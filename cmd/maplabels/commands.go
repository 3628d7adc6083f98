package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FocuswithJustin/MapLabeler/core/renderings"
	"github.com/FocuswithJustin/MapLabeler/core/status"
	"github.com/FocuswithJustin/MapLabeler/core/tally"
	"github.com/FocuswithJustin/MapLabeler/core/template"
	"github.com/FocuswithJustin/MapLabeler/internal/feed"
	"github.com/FocuswithJustin/MapLabeler/internal/logging"
	"github.com/FocuswithJustin/MapLabeler/internal/report"
	"github.com/FocuswithJustin/MapLabeler/internal/session"
	"github.com/FocuswithJustin/MapLabeler/internal/termstore"
	"github.com/FocuswithJustin/MapLabeler/internal/validation"
	"github.com/FocuswithJustin/MapLabeler/internal/verses"
)

// MapformCmd prints the text a label should carry for some renderings.
type MapformCmd struct {
	Renderings string `arg:"" help:"Renderings text; items separated by || or \\n"`
}

func (c *MapformCmd) Run() error {
	fmt.Fprintln(stdout, renderings.MapForm(renderings.NewEntry(unescapeRenderings(c.Renderings), false)))
	return nil
}

// PatternsCmd prints each compiled rendering item with its expression.
type PatternsCmd struct {
	Renderings string `arg:"" help:"Renderings text; items separated by || or \\n"`
}

func (c *PatternsCmd) Run() error {
	compiler := renderings.Compiler{OnDrop: func(item string, err error) {
		fmt.Fprintf(stdout, "  [DROP] %s: %v\n", item, err)
	}}
	for _, p := range compiler.Compile(unescapeRenderings(c.Renderings)) {
		fmt.Fprintf(stdout, "%s\t%s\n", p.Source(), p.String())
	}
	return nil
}

// ClassifyCmd classifies one label against renderings.
type ClassifyCmd struct {
	Renderings string `required:"" help:"Renderings text; items separated by || or \\n"`
	Label      string `required:"" help:"Vernacular label text"`
	Guessed    bool   `help:"Renderings are unapproved guesses"`
}

func (c *ClassifyCmd) Run() error {
	entry := renderings.NewEntry(unescapeRenderings(c.Renderings), c.Guessed)
	st := status.NewClassifier(nil).Classify(entry, c.Label)
	fmt.Fprintf(stdout, "%s (%d)\n", st, int(st))
	return nil
}

// TallyCmd counts the verses that contain a rendering.
type TallyCmd struct {
	Renderings string   `required:"" help:"Renderings text; items separated by || or \\n"`
	Ref        []string `name:"ref" required:"" help:"Expected verse reference (repeatable)"`
	Verses     string   `required:"" help:"JSON file mapping references to verse text" type:"existingfile"`
	Deny       []string `help:"Reference accepted as not containing a rendering (repeatable)"`
}

func (c *TallyCmd) Run() error {
	f, err := validation.OpenFile(c.Verses)
	if err != nil {
		return fmt.Errorf("failed to open verses: %w", err)
	}
	provider, err := verses.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to read verses: %w", err)
	}

	refs := make([]string, len(c.Ref))
	for i, r := range c.Ref {
		refs[i] = verses.Key(r)
	}
	denials := make([]string, len(c.Deny))
	for i, r := range c.Deny {
		denials[i] = verses.Key(r)
	}
	texts, err := provider.Verses(context.Background(), refs)
	if err != nil {
		return err
	}

	entry := renderings.NewEntry(unescapeRenderings(c.Renderings), false, denials...)
	results := tally.Detail(entry, renderings.Compile(entry.Renderings), refs, texts)
	for _, vr := range results {
		fmt.Fprintf(stdout, "  %-10s %s\n", vr.Ref, vr.State)
	}
	fmt.Fprintf(stdout, "Tally: %s\n", tally.Summarize(results))
	return nil
}

// TemplateCmd expands a template against the configured catalog and the
// renderings in the database.
type TemplateCmd struct {
	Template string `arg:"" help:"Template text, e.g. \"{jerusalem} ({r#JOS 10:1})\""`
}

func (c *TemplateCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	ws, err := openWorkspace(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer ws.Close()

	entries, err := termstore.Snapshot(ctx, ws.store)
	if err != nil {
		return err
	}
	resolver := template.NewResolver(ws.catalog, template.EntryMap(entries), ws.tags)
	resolver.Digits = ws.digits
	res, err := resolver.Resolve(ctx, c.Template)
	if err != nil {
		return fmt.Errorf("failed to resolve template: %w", err)
	}
	fmt.Fprintln(stdout, res.Text)
	return nil
}

// LabelFlags are the flags that supply label text to a session.
type LabelFlags struct {
	Labels  string `help:"JSON file mapping merge keys to vernacular label text" type:"existingfile"`
	Resolve bool   `help:"Fill labels without text from their templates"`
}

func (l LabelFlags) read() (map[string]string, error) {
	if l.Labels == "" {
		return nil, nil
	}
	data, err := validation.ReadFile(l.Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	var labels map[string]string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse labels %s: %w", l.Labels, err)
	}
	return labels, nil
}

// openSession opens the workspace and builds a session with the label text
// from src. Close the workspace when done.
func openSession(ctx context.Context, g *Globals, src LabelFlags, readOnly bool) (*workspace, *session.Session, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, nil, err
	}
	labels, err := src.read()
	if err != nil {
		return nil, nil, err
	}
	ws, err := openWorkspace(ctx, cfg, readOnly)
	if err != nil {
		return nil, nil, err
	}
	s, err := ws.session(ctx, labels)
	if err != nil {
		ws.Close()
		return nil, nil, err
	}

	if src.Resolve {
		for _, l := range s.Labels() {
			if l.Vernacular != "" {
				continue
			}
			if _, err := s.ResolveTemplate(ctx, l.MergeKey); err != nil {
				ws.Close()
				return nil, nil, err
			}
		}
	}
	return ws, s, nil
}

// ReportCmd reports the status of every label.
type ReportCmd struct {
	LabelFlags `embed:""`

	Out   string `short:"o" help:"Write the report to a file; a .xz suffix compresses it" type:"path"`
	Table bool   `help:"Print the report as a table"`
}

func (c *ReportCmd) Run(g *Globals) error {
	ctx := context.Background()
	ws, s, err := openSession(ctx, g, c.LabelFlags, true)
	if err != nil {
		return err
	}
	defer ws.Close()

	r := report.Build(s)
	if c.Out != "" {
		if err := report.WriteFile(c.Out, r); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %d labels to %s\n", len(r.Labels), c.Out)
	}
	if c.Table {
		return report.RenderTable(stdout, r)
	}
	if c.Out == "" {
		return report.WriteJSON(stdout, r)
	}
	return nil
}

// ImportVersesCmd loads verse text into the database.
type ImportVersesCmd struct {
	Path string `arg:"" help:"JSON file mapping references to verse text" type:"existingfile"`
}

func (c *ImportVersesCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	f, err := validation.OpenFile(c.Path)
	if err != nil {
		return fmt.Errorf("failed to open verses: %w", err)
	}
	texts, err := verses.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to read verses: %w", err)
	}

	ctx := context.Background()
	store, provider, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := provider.PutMany(ctx, texts); err != nil {
		return err
	}
	total, err := provider.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Imported %d verses (%d in database)\n", len(texts), total)
	return nil
}

// ImportTermsCmd loads term renderings into the database.
type ImportTermsCmd struct {
	Path string `arg:"" help:"JSON file mapping term IDs to {renderings, is_guessed, denials}" type:"existingfile"`
}

func (c *ImportTermsCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	data, err := validation.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("failed to read terms: %w", err)
	}
	var raw map[string]*renderings.Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse terms %s: %w", c.Path, err)
	}
	entries := make(map[string]*renderings.Entry, len(raw))
	for id, e := range raw {
		if e == nil {
			continue
		}
		denials := e.DenialList()
		for i, r := range denials {
			denials[i] = verses.Key(r)
		}
		entries[id] = renderings.NewEntry(e.Renderings, e.IsGuessed, denials...)
	}

	ctx := context.Background()
	store, _, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := termstore.WriteAll(ctx, store, entries); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Imported %d terms\n", len(entries))
	return nil
}

// ServeCmd serves the live label feed until interrupted, then saves the
// session's renderings.
type ServeCmd struct {
	LabelFlags `embed:""`

	Addr           string   `help:"Listen address (default from config)"`
	AllowedOrigins []string `name:"allowed-origin" help:"Additional allowed websocket origin (repeatable)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, s, err := openSession(ctx, g, c.LabelFlags, false)
	if err != nil {
		return err
	}
	defer ws.Close()

	addr := c.Addr
	if addr == "" {
		addr = ws.cfg.Feed.Addr
	}
	security := feed.DefaultSecurityConfig()
	security.AllowedOrigins = append(security.AllowedOrigins, c.AllowedOrigins...)

	srv := feed.NewServer(s, feed.NewHub(s), security)
	serveErr := srv.ListenAndServe(ctx, addr)

	saveCtx := logging.WithSessionID(context.Background(), s.ID)
	pending := len(s.Dirty())
	if err := s.Save(saveCtx); err != nil {
		logging.ErrorContext(saveCtx, "failed to save renderings", "error", err)
		return errors.Join(serveErr, err)
	}
	logging.InfoContext(saveCtx, "session saved", "terms", pending)
	return serveErr
}
