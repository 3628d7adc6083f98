package session

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
	"github.com/FocuswithJustin/MapLabeler/core/renderings"
	"github.com/FocuswithJustin/MapLabeler/core/status"
	"github.com/FocuswithJustin/MapLabeler/core/tally"
	"github.com/FocuswithJustin/MapLabeler/core/template"
	"github.com/FocuswithJustin/MapLabeler/internal/catalog"
	"github.com/FocuswithJustin/MapLabeler/internal/termstore"
	"github.com/FocuswithJustin/MapLabeler/internal/verses"
)

const catalogXML = `<mapTemplate name="test">
  <label mergeKey="jerusalem" template="{jerusalem}"/>
  <label mergeKey="salem"/>
  <label mergeKey="to_jerusalem" template="{jerusalem} ({r#JOS 10:1})"/>
  <placeName id="jerusalem">
    <term id="H3389" refs="JOS010001 2SA005006"/>
    <term id="G2419" refs="MAT002001"/>
  </placeName>
  <placeName id="salem">
    <term id="H8004" refs="GEN014018 PSA076002"/>
  </placeName>
</mapTemplate>`

func testVerses() verses.MapProvider {
	return verses.MapProvider{
		"JOS010001": "Adoni-zedek king of Yerusalem heard",
		"2SA005006": "the king went to Yerusalem",
		"MAT002001": "wise men came to Yerusalem",
		"GEN014018": "Melchizedek king of Salem",
	}
}

func newTestSession(t *testing.T, deps Deps) *Session {
	t.Helper()
	return newSessionFrom(t, catalogXML, deps)
}

func newSessionFrom(t *testing.T, doc string, deps Deps) *Session {
	t.Helper()
	cat, err := catalog.Load(strings.NewReader(doc))
	require.NoError(t, err)
	deps.Catalog = cat
	if deps.Store == nil {
		deps.Store = termstore.NewMemoryStore(map[string]*renderings.Entry{
			"H3389": renderings.NewEntry("Yerusalem", false),
			"H8004": renderings.NewEntry("Salem", true),
		})
	}
	if deps.Verses == nil {
		deps.Verses = testVerses()
	}
	s, err := New(context.Background(), deps)
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	s := newTestSession(t, Deps{Vernacular: map[string]string{"salem": "Salem"}})
	assert.NotEmpty(t, s.ID)

	labels := s.Labels()
	require.Len(t, labels, 3)

	j := labels[0]
	assert.Equal(t, "jerusalem", j.MergeKey)
	assert.Equal(t, "H3389", j.TermID)
	assert.Equal(t, []string{"jerusalem"}, j.PlaceNames)
	assert.Equal(t, []string{"H3389", "G2419"}, j.TermIDs)
	assert.Equal(t, []string{"JOS010001", "2SA005006", "MAT002001"}, j.Refs)
	assert.Equal(t, status.Blank, j.Status)
	assert.Equal(t, "Yerusalem", j.MapForm)
	assert.Equal(t, tally.Result{Matched: 3, Considered: 3}, j.Tally)

	sl := labels[1]
	assert.Equal(t, status.Guessed, sl.Status)
	assert.Equal(t, tally.Result{Matched: 1, Considered: 1}, sl.Tally, "PSA076002 has no text yet")

	_, err := New(context.Background(), Deps{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestLabelNotFound(t *testing.T) {
	s := newTestSession(t, Deps{})
	_, err := s.Label("babel")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.SetVernacular("babel", "x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Recompute("babel")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStatusFollowsEdits(t *testing.T) {
	s := newTestSession(t, Deps{})

	loc, err := s.SetVernacular("jerusalem", "Yerusalem")
	require.NoError(t, err)
	assert.Equal(t, status.Matched, loc.Status)

	loc, err = s.SetVernacular("jerusalem", "Urusalim")
	require.NoError(t, err)
	assert.Equal(t, status.Unmatched, loc.Status)

	changed, err := s.SetRenderings("H3389", "Yerusalem\nUrusalim")
	require.NoError(t, err)
	require.Len(t, changed, 2, "both labels using H3389")
	assert.Equal(t, "jerusalem", changed[0].MergeKey)
	assert.Equal(t, status.RenderingShort, changed[0].Status)
	assert.Equal(t, "Yerusalem"+renderings.Separator+"Urusalim", changed[0].MapForm)

	loc, err = s.SetVernacular("jerusalem", "Yerusalem"+renderings.Separator+"Urusalim")
	require.NoError(t, err)
	assert.Equal(t, status.Multiple, loc.Status)

	_, err = s.SetRenderings("", "x")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestApprove(t *testing.T) {
	s := newTestSession(t, Deps{Vernacular: map[string]string{"salem": "Salem"}})

	changed, err := s.Approve("H8004")
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, status.Matched, changed[0].Status)
	assert.False(t, s.Entry("H8004").IsGuessed)

	_, err = s.Approve("G2419")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDenyAndUndeny(t *testing.T) {
	s := newTestSession(t, Deps{})
	_, err := s.SetRenderings("H3389", "Urusalim")
	require.NoError(t, err)

	loc, err := s.Label("jerusalem")
	require.NoError(t, err)
	assert.Equal(t, tally.Result{Matched: 0, Considered: 3}, loc.Tally)

	changed, err := s.Deny("H3389", "2SA 5:6")
	require.NoError(t, err)
	assert.Equal(t, tally.Result{Matched: 1, Considered: 3, AnyDenials: true}, changed[0].Tally)
	assert.True(t, s.Entry("H3389").IsDenied("2SA005006"))

	changed, err = s.Undeny("H3389", "2SA005006")
	require.NoError(t, err)
	assert.Equal(t, tally.Result{Matched: 0, Considered: 3}, changed[0].Tally)

	_, err = s.Undeny("H3389", "2SA005006")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = s.Deny("G2419", "MAT002001")
	require.NoError(t, err, "denying creates the entry")
	assert.NotNil(t, s.Entry("G2419"))

	_, err = s.Deny("", "MAT002001")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSetVerse(t *testing.T) {
	s := newTestSession(t, Deps{})
	changed := s.SetVerse("PSA 76:2", "In Salem also is his tabernacle")
	require.Len(t, changed, 1)
	assert.Equal(t, "salem", changed[0].MergeKey)
	assert.Equal(t, tally.Result{Matched: 2, Considered: 2}, changed[0].Tally)

	changed = s.SetVerse("PSA076002", "")
	assert.Equal(t, tally.Result{Matched: 1, Considered: 1}, changed[0].Tally)

	assert.Empty(t, s.SetVerse("GEN001001", "In the beginning"))
}

func TestReloadVerses(t *testing.T) {
	provider := testVerses()
	s := newTestSession(t, Deps{Verses: provider})
	provider["PSA076002"] = "In Salem also"

	labels, err := s.ReloadVerses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, labels[1].Tally.Considered)
}

func TestVerseDetail(t *testing.T) {
	s := newTestSession(t, Deps{})
	detail, err := s.VerseDetail("salem")
	require.NoError(t, err)
	require.Len(t, detail, 2)
	assert.Equal(t, tally.Found, detail[0].State)
	require.NotNil(t, detail[0].Span)
	assert.Equal(t, "Salem", detail[0].Text[detail[0].Span.Start:detail[0].Span.End])
	assert.Equal(t, tally.Pending, detail[1].State)

	_, err = s.VerseDetail("babel")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestResolveTemplate(t *testing.T) {
	s := newTestSession(t, Deps{})
	ctx := context.Background()

	loc, err := s.ResolveTemplate(ctx, "jerusalem")
	require.NoError(t, err)
	assert.Equal(t, "Yerusalem", loc.Vernacular)
	assert.Equal(t, status.Matched, loc.Status)

	loc, err = s.Label("to_jerusalem")
	require.NoError(t, err)
	assert.Equal(t, status.Blank, loc.Status)
	assert.Equal(t, "Yerusalem (JOS 10:1)", loc.MapForm, "unresolved references use the built-in format")

	loc, err = s.ResolveTemplate(ctx, "to_jerusalem")
	require.NoError(t, err)
	assert.Equal(t, "Yerusalem (JOS 10:1)", loc.Vernacular)
	assert.Equal(t, "Yerusalem (JOS 10:1)", loc.MapForm)
	assert.Equal(t, status.Matched, loc.Status)

	_, err = s.SetRenderings("G2419", "Ierousalem")
	require.NoError(t, err)
	loc, err = s.ResolveTemplate(ctx, "jerusalem")
	require.NoError(t, err)
	assert.Equal(t, "Yerusalem"+renderings.Separator+"Ierousalem", loc.Vernacular)
	assert.Equal(t, status.Multiple, loc.Status)

	loc, err = s.SetVernacular("jerusalem", "Ierousalem")
	require.NoError(t, err)
	assert.Equal(t, status.RenderingShort, loc.Status, "a rendering of the second term")

	loc, err = s.SetVernacular("to_jerusalem", "Ierousalem (JOS 10:1)")
	require.NoError(t, err)
	assert.Equal(t, status.RenderingShort, loc.Status)
	assert.Equal(t, "Yerusalem"+renderings.Separator+"Ierousalem (JOS 10:1)", loc.MapForm)

	_, err = s.ResolveTemplate(ctx, "babel")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

const templatesXML = `<mapTemplate name="templates">
  <label mergeKey="maybe_salem" template="{q#salem}"/>
  <label mergeKey="two_cities" template="{salem} / {jerusalem}"/>
  <placeName id="jerusalem">
    <term id="H3389" refs="JOS010001"/>
  </placeName>
  <placeName id="salem">
    <term id="H8004" refs="GEN014018"/>
  </placeName>
</mapTemplate>`

func TestTemplateLabelStatus(t *testing.T) {
	s := newSessionFrom(t, templatesXML, Deps{})
	ctx := context.Background()

	loc, err := s.ResolveTemplate(ctx, "maybe_salem")
	require.NoError(t, err)
	assert.Equal(t, "Salem?", loc.Vernacular)
	assert.Equal(t, status.Guessed, loc.Status)

	loc, err = s.ResolveTemplate(ctx, "two_cities")
	require.NoError(t, err)
	assert.Equal(t, "Salem / Yerusalem", loc.Vernacular)
	assert.Equal(t, status.Guessed, loc.Status, "any unapproved term")

	changed, err := s.Approve("H8004")
	require.NoError(t, err)
	require.Len(t, changed, 2)
	assert.Equal(t, status.Matched, changed[0].Status)
	assert.Equal(t, status.Matched, changed[1].Status)

	tests := []struct {
		name  string
		key   string
		label string
		want  status.Status
	}{
		{"tag not applied", "maybe_salem", "Salem", status.Unmatched},
		{"case differs", "maybe_salem", "salem?", status.RenderingShort},
		{"literal text differs", "two_cities", "Salem - Yerusalem", status.Unmatched},
		{"missing place name", "two_cities", "Salem", status.Unmatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := s.SetVernacular(tt.key, tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.Status)
		})
	}

	_, err = s.SetRenderings("H3389", "(@Yelusalema)\nYerusalem")
	require.NoError(t, err)
	loc, err = s.SetVernacular("two_cities", "Salem / Yelusalema")
	require.NoError(t, err)
	assert.Equal(t, status.BadExplicitForm, loc.Status)

	changed, err = s.SetRenderings("H8004", "")
	require.NoError(t, err)
	require.Len(t, changed, 2)
	assert.Equal(t, status.NoRenderings, changed[1].Status)
	assert.Empty(t, changed[1].MapForm)
}

func TestResolveTemplateDigits(t *testing.T) {
	s := newTestSession(t, Deps{Digits: template.ScriptDigits{Zero: '\u0966'}})
	loc, err := s.ResolveTemplate(context.Background(), "to_jerusalem")
	require.NoError(t, err)
	assert.Equal(t, "Yerusalem (JOS \u0967\u0966:\u0967)", loc.Vernacular)
}

// blockingFormatter blocks its first call until release is closed.
type blockingFormatter struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFormatter) FormatReference(ctx context.Context, reference string, long bool) (string, error) {
	first := false
	f.once.Do(func() { first = true })
	if first {
		close(f.entered)
		<-f.release
		return "old", nil
	}
	return "new", nil
}

func TestResolveTemplateDropsStaleResult(t *testing.T) {
	f := &blockingFormatter{entered: make(chan struct{}), release: make(chan struct{})}
	s := newTestSession(t, Deps{References: f})

	errc := make(chan error, 1)
	go func() {
		_, err := s.ResolveTemplate(context.Background(), "to_jerusalem")
		errc <- err
	}()
	<-f.entered

	loc, err := s.ResolveTemplate(context.Background(), "to_jerusalem")
	require.NoError(t, err)
	assert.Equal(t, "Yerusalem (new)", loc.Vernacular)

	close(f.release)
	assert.ErrorIs(t, <-errc, template.ErrStale)

	loc, err = s.Label("to_jerusalem")
	require.NoError(t, err)
	assert.Equal(t, "Yerusalem (new)", loc.Vernacular)
}

func TestSuggest(t *testing.T) {
	s := newTestSession(t, Deps{})
	_, err := s.SetRenderings("H3389", "Yerusalem\nUrushalim (old)")
	require.NoError(t, err)
	_, err = s.SetRenderings("G2419", "Ierousalem")
	require.NoError(t, err)

	_, err = s.SetVernacular("jerusalem", "Urusalim")
	require.NoError(t, err)

	got, err := s.Suggest("jerusalem", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Urushalim", got[0].Rendering)
	assert.Equal(t, 1, got[0].Distance)
	assert.Equal(t, "H3389", got[0].TermID)
	assert.Greater(t, got[0].Similarity, got[2].Similarity)

	got, err = s.Suggest("jerusalem", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = s.SetVernacular("jerusalem", "Yerusalem"+renderings.Separator+"Urushalim")
	require.NoError(t, err)
	got, err = s.Suggest("jerusalem", 0)
	require.NoError(t, err)
	assert.Empty(t, got, "RENDERING_SHORT and UNMATCHED labels only")
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	store := termstore.NewMemoryStore(map[string]*renderings.Entry{
		"H3389": renderings.NewEntry("Yerusalem", false),
	})
	s := newTestSession(t, Deps{Store: store})

	_, err := s.SetRenderings("H8004", "Salem")
	require.NoError(t, err)
	_, err = s.Deny("H3389", "MAT002001")
	require.NoError(t, err)
	assert.Equal(t, []string{"H3389", "H8004"}, s.Dirty())

	require.NoError(t, s.Save(ctx))
	assert.Empty(t, s.Dirty())

	e, err := store.Get(ctx, "H8004")
	require.NoError(t, err)
	assert.Equal(t, "Salem", e.Renderings)
	e, err = store.Get(ctx, "H3389")
	require.NoError(t, err)
	assert.True(t, e.IsDenied("MAT002001"))
}

func TestConcurrentEdits(t *testing.T) {
	s := newTestSession(t, Deps{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.SetVernacular("jerusalem", "Yerusalem")
			} else {
				s.SetRenderings("H3389", "Yerusalem")
			}
			s.Labels()
		}(i)
	}
	wg.Wait()

	loc, err := s.Label("jerusalem")
	require.NoError(t, err)
	assert.Equal(t, status.Matched, loc.Status)
}
