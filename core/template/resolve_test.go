package template

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/MapLabeler/core/renderings"
)

type fakeCatalog map[string][]string

func (c fakeCatalog) TermsForPlaceName(id string) []string {
	return c[id]
}

type recordingFormatter struct {
	longs []bool
}

func (f *recordingFormatter) FormatReference(_ context.Context, reference string, long bool) (string, error) {
	f.longs = append(f.longs, long)
	if reference == "bad" {
		return "", errors.New("no such verse")
	}
	return "<" + reference + ">", nil
}

func newTestResolver() *Resolver {
	catalog := fakeCatalog{
		"jerusalem": {"T1", "T2"},
		"galilee":   {"T3"},
		"zion":      {"T4", "T5"},
		"nowhere":   {"T6", "T7"},
	}
	terms := EntryMap{
		"T1": renderings.NewEntry("Yerusalem*\nSalem (poetic)", false),
		"T2": renderings.NewEntry("Yerusalem || Yerushalem", false),
		"T3": renderings.NewEntry("Galilaya", false),
		"T4": renderings.NewEntry("Siyon", false),
		"T5": renderings.NewEntry("(@Sayuni)", false),
		"T6": renderings.NewEntry("   ", false),
	}
	return NewResolver(catalog, terms, NewRuleSet(nil))
}

func TestPlaceNameForm(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name string
		id   string
		tag  string
		want string
	}{
		{"union of all terms", "jerusalem", "", "Yerusalem——Salem——Yerushalem"},
		{"override wins", "zion", "", "Sayuni"},
		{"single term", "galilee", "", "Galilaya"},
		{"tag applied", "galilee", "q", "Galilaya?"},
		{"tag applied per item", "jerusalem", "q", "Yerusalem?——Salem?——Yerushalem?"},
		{"tag applied to override", "zion", "q", "Sayuni?"},
		{"unknown tag", "galilee", "zz", "Galilaya"},
		{"no usable renderings", "nowhere", "", ""},
		{"unknown place name", "atlantis", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.PlaceNameForm(tt.id, tt.tag))
		})
	}
}

func TestResolve(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	res, err := r.Resolve(ctx, "Sea of {q#galilee}")
	require.NoError(t, err)
	assert.Equal(t, "Sea of Galilaya?", res.Text)
	assert.Equal(t, []string{"galilee"}, res.PlaceNames)
	assert.Empty(t, res.References)

	res, err = r.Resolve(ctx, "{zion} ({R#2SA005007}) {#3}")
	require.NoError(t, err)
	assert.Equal(t, "Sayuni (2 Samuel 5:7) 3", res.Text)
	assert.Equal(t, []string{"2SA005007"}, res.References)
	assert.Equal(t, []string{"Sayuni", "2 Samuel 5:7", "3"}, res.Fields)

	res, err = r.Resolve(ctx, "{galilee}{galilee} {r#gen 1:1}")
	require.NoError(t, err)
	assert.Equal(t, "GalilayaGalilaya GEN 1:1", res.Text)
	assert.Equal(t, []string{"galilee"}, res.PlaceNames)
	assert.Equal(t, []string{"GEN001001"}, res.References)

	res, err = r.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
}

func TestResolveWithCollaborators(t *testing.T) {
	r := newTestResolver()
	f := &recordingFormatter{}
	r.References = f
	r.Digits = ScriptDigits{Zero: '\u0966'}

	res, err := r.Resolve(context.Background(), "{r#A} {R#B} {#12}")
	require.NoError(t, err)
	assert.Equal(t, "<A> <B> \u0967\u0968", res.Text)
	assert.Equal(t, []bool{false, true}, f.longs)

	_, err = r.Resolve(context.Background(), "{r#bad}")
	assert.Error(t, err)
}

func TestResolveDefaultFormatterUsesDigits(t *testing.T) {
	r := newTestResolver()
	r.Digits = ScriptDigits{Zero: '\u0660'}

	res, err := r.Resolve(context.Background(), "{r#PSA023001}")
	require.NoError(t, err)
	assert.Equal(t, "PSA \u0662\u0663:\u0661", res.Text)
}

func TestResolveErrors(t *testing.T) {
	r := newTestResolver()

	_, err := r.Resolve(context.Background(), "{r#XYZ999}")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Resolve(ctx, "{#1}")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefFormatterBookNames(t *testing.T) {
	f := RefFormatter{BookNames: map[string]string{"JHN": "Yohane"}, Separator: "."}
	text, err := f.FormatReference(context.Background(), "JHN003016", true)
	require.NoError(t, err)
	assert.Equal(t, "Yohane 3.16", text)

	text, err = f.FormatReference(context.Background(), "JHN 3", false)
	require.NoError(t, err)
	assert.Equal(t, "JHN 3", text)
}
