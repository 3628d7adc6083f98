// Package session holds the live state of one map labeling session: the
// vernacular text of every label, the renderings of every term and the
// verse text, with label statuses recomputed after every change.
//
// A Session is safe for concurrent use but is meant to have one logical
// writer, such as a UI event loop or the feed hub.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/agext/levenshtein"
	"github.com/google/uuid"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
	"github.com/FocuswithJustin/MapLabeler/core/renderings"
	"github.com/FocuswithJustin/MapLabeler/core/status"
	"github.com/FocuswithJustin/MapLabeler/core/tally"
	"github.com/FocuswithJustin/MapLabeler/core/template"
	"github.com/FocuswithJustin/MapLabeler/internal/catalog"
	"github.com/FocuswithJustin/MapLabeler/internal/logging"
	"github.com/FocuswithJustin/MapLabeler/internal/termstore"
	"github.com/FocuswithJustin/MapLabeler/internal/verses"
)

// LabelLocation is one label on the map with its current evaluation.
type LabelLocation struct {
	MergeKey   string        `json:"merge_key"`
	Template   string        `json:"template"`
	Vernacular string        `json:"vernacular"`
	Status     status.Status `json:"status"`
	MapForm    string        `json:"map_form"`
	Tally      tally.Result  `json:"tally"`
	// TermID is the primary term, the first term of the first place name.
	TermID     string   `json:"term_id,omitempty"`
	PlaceNames []string `json:"place_names,omitempty"`
	TermIDs    []string `json:"term_ids,omitempty"`
	Refs       []string `json:"refs,omitempty"`
}

func (l *LabelLocation) clone() LabelLocation {
	c := *l
	c.PlaceNames = append([]string(nil), l.PlaceNames...)
	c.TermIDs = append([]string(nil), l.TermIDs...)
	c.Refs = append([]string(nil), l.Refs...)
	return c
}

// Deps are the collaborators of a session. Only Catalog is required.
type Deps struct {
	Catalog *catalog.Catalog
	// Store supplies the initial entries and receives them on Save.
	Store termstore.Store
	// Verses supplies verse text for every reference in the catalog.
	Verses verses.Provider
	// Tags defaults to the built-in tag rules.
	Tags       template.TagRules
	References template.ReferenceFormatter
	Digits     template.DigitConverter
	// Vernacular holds initial label text by merge key.
	Vernacular map[string]string
	// CacheSize bounds the compiled pattern cache.
	CacheSize int
}

// Session is the live labeling state.
type Session struct {
	ID string

	mu          sync.Mutex
	catalog     *catalog.Catalog
	store       termstore.Store
	provider    verses.Provider
	entries     template.EntryMap
	dirty       map[string]bool
	verses      map[string]string
	compiler    *renderings.CachedCompiler
	tags        template.TagRules
	references  template.ReferenceFormatter
	digits      template.DigitConverter
	labels      map[string]*LabelLocation
	order       []string
	byTerm      map[string][]string
	generations map[string]*template.Generations
	templates   map[string]*template.Template
	// fieldTexts holds the field texts of each label's last resolution.
	fieldTexts map[string][]string
	log        *slog.Logger
}

// New builds a session over the catalog, loading entries from the store and
// verse text from the provider.
func New(ctx context.Context, deps Deps) (*Session, error) {
	if deps.Catalog == nil {
		return nil, apperrors.NewValidation("catalog", "is required")
	}

	compiler := renderings.NewCachedCompiler(renderings.Compiler{OnDrop: logging.PatternDropped}, deps.CacheSize)
	s := &Session{
		ID:          uuid.NewString(),
		catalog:     deps.Catalog,
		store:       deps.Store,
		provider:    deps.Verses,
		entries:     make(template.EntryMap),
		dirty:       make(map[string]bool),
		verses:      make(map[string]string),
		compiler:    compiler,
		tags:        deps.Tags,
		references:  deps.References,
		digits:      deps.Digits,
		labels:      make(map[string]*LabelLocation),
		byTerm:      make(map[string][]string),
		generations: make(map[string]*template.Generations),
		templates:   make(map[string]*template.Template),
		fieldTexts:  make(map[string][]string),
	}
	ctx = logging.WithSessionID(ctx, s.ID)
	s.log = logging.LoggerFromContext(ctx)
	if s.tags == nil {
		s.tags = template.NewRuleSet(nil)
	}

	if s.store != nil {
		entries, err := termstore.Snapshot(ctx, s.store)
		if err != nil {
			return nil, apperrors.Wrap(err, "loading term renderings")
		}
		for id, e := range entries {
			s.entries[id] = e
		}
	}

	var allRefs []string
	seenRef := make(map[string]bool)
	for _, l := range deps.Catalog.Labels() {
		loc, err := s.locate(l)
		if err != nil {
			return nil, err
		}
		loc.Vernacular = deps.Vernacular[l.MergeKey]
		s.labels[l.MergeKey] = loc
		s.order = append(s.order, l.MergeKey)
		s.generations[l.MergeKey] = &template.Generations{}
		for _, termID := range loc.TermIDs {
			s.byTerm[termID] = append(s.byTerm[termID], l.MergeKey)
		}
		for _, r := range loc.Refs {
			if !seenRef[r] {
				seenRef[r] = true
				allRefs = append(allRefs, r)
			}
		}
	}

	if err := s.loadVerses(ctx, allRefs); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.recomputeAll()
	s.mu.Unlock()
	logging.DebugContext(ctx, "session_opened", "labels", len(s.order), "terms", len(s.entries))
	return s, nil
}

// locate finds the place names, terms and expected verses of a label.
func (s *Session) locate(l catalog.Label) (*LabelLocation, error) {
	t, err := template.Parse(l.Template)
	if err != nil {
		return nil, apperrors.Wrapf(err, "label %s", l.MergeKey)
	}
	s.templates[l.MergeKey] = t
	loc := &LabelLocation{MergeKey: l.MergeKey, Template: l.Template}
	for _, f := range t.Fields() {
		if f.Kind != template.FieldPlaceName && f.Kind != template.FieldTaggedPlaceName {
			continue
		}
		loc.PlaceNames = appendUnique(loc.PlaceNames, f.Value)
		loc.TermIDs = appendUnique(loc.TermIDs, s.catalog.TermsForPlaceName(f.Value)...)
		loc.Refs = appendUnique(loc.Refs, s.catalog.RefsForPlaceName(f.Value)...)
	}
	if len(loc.TermIDs) > 0 {
		loc.TermID = loc.TermIDs[0]
	}
	return loc, nil
}

func (s *Session) loadVerses(ctx context.Context, refs []string) error {
	if s.provider == nil || len(refs) == 0 {
		return nil
	}
	texts, err := s.provider.Verses(ctx, refs)
	if err != nil {
		return apperrors.Wrap(err, "loading verse text")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verses = make(map[string]string, len(texts))
	for r, text := range texts {
		s.verses[r] = verses.Clean(text)
	}
	return nil
}

// ReloadVerses fetches verse text again and recomputes every label.
func (s *Session) ReloadVerses(ctx context.Context) ([]LabelLocation, error) {
	s.mu.Lock()
	var refs []string
	for _, key := range s.order {
		refs = appendUnique(refs, s.labels[key].Refs...)
	}
	s.mu.Unlock()

	if err := s.loadVerses(ctx, refs); err != nil {
		return nil, err
	}
	return s.RecomputeAll(), nil
}

// SetVerse replaces the text of one verse and recomputes the labels that
// expect it.
func (s *Session) SetVerse(reference, text string) []LabelLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := verses.Key(reference)
	if text = verses.Clean(text); text == "" {
		delete(s.verses, key)
	} else {
		s.verses[key] = text
	}

	var out []LabelLocation
	for _, mk := range s.order {
		loc := s.labels[mk]
		for _, r := range loc.Refs {
			if r == key {
				s.recompute(loc)
				out = append(out, loc.clone())
				break
			}
		}
	}
	return out
}

// Labels returns every label in catalog order.
func (s *Session) Labels() []LabelLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LabelLocation, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.labels[key].clone())
	}
	return out
}

// Label returns one label.
func (s *Session) Label(mergeKey string) (LabelLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, err := s.label(mergeKey)
	if err != nil {
		return LabelLocation{}, err
	}
	return loc.clone(), nil
}

func (s *Session) label(mergeKey string) (*LabelLocation, error) {
	loc, ok := s.labels[mergeKey]
	if !ok {
		return nil, apperrors.NewNotFound("label", mergeKey)
	}
	return loc, nil
}

// Entry returns a copy of a term's renderings entry, or nil.
func (s *Session) Entry(termID string) *renderings.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[termID].Clone()
}

// SetVernacular sets the text of a label.
func (s *Session) SetVernacular(mergeKey, text string) (LabelLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, err := s.label(mergeKey)
	if err != nil {
		return LabelLocation{}, err
	}
	loc.Vernacular = text
	s.recompute(loc)
	return loc.clone(), nil
}

// SetRenderings replaces the renderings text of a term, creating its entry
// when needed. Denials and the guessed flag are kept. It returns the labels
// that use the term.
func (s *Session) SetRenderings(termID, text string) ([]LabelLocation, error) {
	if termID == "" {
		return nil, apperrors.NewValidation("termID", "must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryFor(termID)
	e.Renderings = text
	return s.touched(termID), nil
}

// Approve marks a term's renderings as confirmed by a person.
func (s *Session) Approve(termID string) ([]LabelLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[termID]
	if !ok {
		return nil, apperrors.NewNotFound("term", termID)
	}
	e.IsGuessed = false
	return s.touched(termID), nil
}

// Deny accepts that ref does not contain a rendering of the term.
func (s *Session) Deny(termID, ref string) ([]LabelLocation, error) {
	if termID == "" || ref == "" {
		return nil, apperrors.NewValidation("deny", "term and reference are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entryFor(termID).Deny(verses.Key(ref))
	return s.touched(termID), nil
}

// Undeny withdraws a denial.
func (s *Session) Undeny(termID, ref string) ([]LabelLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[termID]
	if !ok || !e.Undeny(verses.Key(ref)) {
		return nil, apperrors.NewNotFound("denial", termID+" "+ref)
	}
	return s.touched(termID), nil
}

func (s *Session) entryFor(termID string) *renderings.Entry {
	e, ok := s.entries[termID]
	if !ok {
		e = renderings.NewEntry("", false)
		s.entries[termID] = e
	}
	return e
}

// touched marks a term changed and recomputes the labels that use it.
func (s *Session) touched(termID string) []LabelLocation {
	s.dirty[termID] = true
	keys := s.byTerm[termID]
	out := make([]LabelLocation, 0, len(keys))
	for _, key := range keys {
		loc := s.labels[key]
		s.recompute(loc)
		out = append(out, loc.clone())
	}
	return out
}

// Recompute evaluates one label again.
func (s *Session) Recompute(mergeKey string) (LabelLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, err := s.label(mergeKey)
	if err != nil {
		return LabelLocation{}, err
	}
	s.recompute(loc)
	return loc.clone(), nil
}

// RecomputeAll evaluates every label again.
func (s *Session) RecomputeAll() []LabelLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeAll()
	out := make([]LabelLocation, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.labels[key].clone())
	}
	return out
}

func (s *Session) recomputeAll() {
	for _, key := range s.order {
		s.recompute(s.labels[key])
	}
}

// recompute classifies a label against its expanded template and tallies
// the expected verses of all its terms. Callers hold s.mu.
func (s *Session) recompute(loc *LabelLocation) {
	form := s.labelForm(loc)
	loc.Status = status.ClassifyForm(loc.Vernacular, form)
	loc.MapForm = form.Text

	entries := make([]*renderings.Entry, 0, len(loc.TermIDs))
	for _, id := range loc.TermIDs {
		entries = append(entries, s.entries[id])
	}
	loc.Tally = tally.CountMany(entries, s.compiler, loc.Refs, s.verses)

	logging.LabelClassified(s.log, loc.MergeKey, loc.Status.String(), loc.Tally.Matched, loc.Tally.Considered)
}

// VerseDetail lists the expected verses of a label with the state of each.
func (s *Session) VerseDetail(mergeKey string) ([]tally.VerseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, err := s.label(mergeKey)
	if err != nil {
		return nil, err
	}
	var (
		patterns renderings.Patterns
		denials  tally.AnyDenier
	)
	for _, id := range loc.TermIDs {
		if e := s.entries[id]; e != nil {
			patterns = append(patterns, s.compiler.Compile(e.Renderings)...)
			denials = append(denials, e)
		}
	}
	return tally.Detail(denials, patterns, loc.Refs, s.verses), nil
}

// ResolveTemplate expands the label's template and makes the result its
// vernacular text. Reference and number fields may block on collaborators,
// so the session is not locked while they run; if the label was resolved
// again in the meantime the result is dropped with template.ErrStale.
func (s *Session) ResolveTemplate(ctx context.Context, mergeKey string) (LabelLocation, error) {
	s.mu.Lock()
	loc, err := s.label(mergeKey)
	if err != nil {
		s.mu.Unlock()
		return LabelLocation{}, err
	}
	gens := s.generations[mergeKey]
	gen := gens.Next()
	terms := make(template.EntryMap, len(loc.TermIDs))
	for _, id := range loc.TermIDs {
		if e := s.entries[id]; e != nil {
			terms[id] = e.Clone()
		}
	}
	resolver := template.NewResolver(s.catalog, terms, s.tags)
	resolver.References = s.references
	resolver.Digits = s.digits
	src := loc.Template
	s.mu.Unlock()

	res, err := resolver.Resolve(ctx, src)
	if err != nil {
		return LabelLocation{}, apperrors.Wrapf(err, "resolving label %s", mergeKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := gens.Check(gen); err != nil {
		return LabelLocation{}, err
	}
	loc.Vernacular = res.Text
	s.fieldTexts[mergeKey] = res.Fields
	s.recompute(loc)
	return loc.clone(), nil
}

// Suggestion is a rendering close to a label's text.
type Suggestion struct {
	TermID     string  `json:"term_id"`
	Rendering  string  `json:"rendering"`
	Distance   int     `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// Suggest ranks the rendering items of the label's terms by edit distance
// to its vernacular text, closest first, returning at most limit entries
// (all when limit < 1). Only UNMATCHED and RENDERING_SHORT labels get
// suggestions.
func (s *Session) Suggest(mergeKey string, limit int) ([]Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, err := s.label(mergeKey)
	if err != nil {
		return nil, err
	}
	if loc.Status != status.Unmatched && loc.Status != status.RenderingShort {
		return nil, nil
	}

	label := renderings.Normalize(loc.Vernacular)
	var out []Suggestion
	seen := make(map[string]bool)
	for _, id := range loc.TermIDs {
		e := s.entries[id]
		if e == nil {
			continue
		}
		for _, item := range renderings.Items(e.Renderings) {
			item = renderings.Normalize(item)
			if seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, Suggestion{
				TermID:     id,
				Rendering:  item,
				Distance:   levenshtein.Distance(label, item, nil),
				Similarity: levenshtein.Similarity(label, item, nil),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Rendering < out[j].Rendering
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Dirty returns the IDs of terms changed since the last Save.
func (s *Session) Dirty() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Save writes changed entries to the store.
func (s *Session) Save(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	pending := make(map[string]*renderings.Entry, len(s.dirty))
	for id := range s.dirty {
		pending[id] = s.entries[id].Clone()
	}
	s.mu.Unlock()

	if err := termstore.WriteAll(ctx, s.store, pending); err != nil {
		return apperrors.Wrap(err, "saving term renderings")
	}

	s.mu.Lock()
	for id, saved := range pending {
		if current := s.entries[id]; current != nil && entriesEqual(current, saved) {
			delete(s.dirty, id)
		}
	}
	s.mu.Unlock()
	return nil
}

func entriesEqual(a, b *renderings.Entry) bool {
	if a.Renderings != b.Renderings || a.IsGuessed != b.IsGuessed {
		return false
	}
	da, db := a.DenialList(), b.DenialList()
	if len(da) != len(db) {
		return false
	}
	for i := range da {
		if da[i] != db[i] {
			return false
		}
	}
	return true
}

func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, have := range dst {
			if have == item {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, item)
		}
	}
	return dst
}
