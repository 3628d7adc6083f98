package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FocuswithJustin/MapLabeler/core/renderings"
	"github.com/FocuswithJustin/MapLabeler/core/tally"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		entry *renderings.Entry
		label string
		want  Status
	}{
		{"scenario A: unresolved alternatives", renderings.NewEntry("Yerusalem\nYerushalem", false), "Yerusalem——Yerushalem", Multiple},
		{"scenario B: override drifted", renderings.NewEntry("(@Yelusalema)\nYerusalem*", false), "Yelusalema", BadExplicitForm},
		{"scenario C: guessed", renderings.NewEntry("Yerusalem*", true), "Yerusalem", Guessed},
		{"scenario D: unmatched", renderings.NewEntry("Yerusalem", false), "Yerusalemu", Unmatched},
		{"matched", renderings.NewEntry("Yerusalem", false), "Yerusalem", Matched},
		{"label trimmed", renderings.NewEntry("Yerusalem", false), "  Yerusalem ", Matched},
		{"blank", renderings.NewEntry("Yerusalem", false), " \t", Blank},
		{"blank before missing entry", nil, "", Blank},
		{"multiple before missing entry", nil, "A——B", Multiple},
		{"no entry", nil, "Yerusalem", NoRenderings},
		{"empty renderings", renderings.NewEntry("  \n ", false), "Yerusalem", NoRenderings},
		{"comment only renderings", renderings.NewEntry("(not yet)", false), "Yerusalem", NoRenderings},
		{"override consistent", renderings.NewEntry("(@Yerusalem)\nYerusalem*", false), "Yerusalem", Matched},
		{"override matches own item", renderings.NewEntry("Yelusalema (@Yelusalema)", false), "Yelusalema", Matched},
		{"map override drifted", renderings.NewEntry("Salem\n(map: Yelusalema)", false), "Yelusalema", BadExplicitForm},
		{"guessed wins over drift", renderings.NewEntry("(@Yelusalema)\nYerusalem", true), "Yelusalema", Guessed},
		{"alternate rendering", renderings.NewEntry("Yerusalem\n(@Yerusalemi)", false), "Yerusalem", RenderingShort},
		{"one of several", renderings.NewEntry("Yerusalem\nSalem", false), "Salem", RenderingShort},
		{"wildcard variant", renderings.NewEntry("Yerusalem*", false), "Yerusalemu", RenderingShort},
		{"case differs from map form", renderings.NewEntry("Yerusalem", false), "yerusalem", RenderingShort},
		{"substring is not enough", renderings.NewEntry("Salem", false), "Salem city", Unmatched},
		{"normalized comparison", renderings.NewEntry("Jose\u0301", false), "Jos\u00e9", Matched},
		{"regex bait label", renderings.NewEntry("Yerusalem", false), "(*[", Unmatched},
		{"empty override is ignored", renderings.NewEntry("(@)\nYerusalem", false), "Yerusalem", Matched},
		{"padded override", renderings.NewEntry("(@ Yerusalem )\nYerusalem", false), "Yerusalem", Matched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var patterns renderings.Patterns
			if tt.entry != nil {
				patterns = renderings.Compile(tt.entry.Renderings)
			}
			assert.Equal(t, tt.want, Classify(tt.entry, tt.label, patterns))
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	entry := renderings.NewEntry("(@Yelusalema)\nYerusalem*", false, "GEN001001")
	patterns := renderings.Compile(entry.Renderings)
	before := entry.Clone()

	first := Classify(entry, "Yelusalema", patterns)
	second := Classify(entry, "Yelusalema", patterns)

	assert.Equal(t, first, second)
	assert.Equal(t, before, entry)
	assert.Equal(t, []string{"Yerusalem*"}, patterns.Sources())
}

func TestClassifyForm(t *testing.T) {
	short := func(label string) bool { return label == "Ierousalem" }
	tests := []struct {
		name  string
		form  Form
		label string
		want  Status
	}{
		{"blank", Form{Text: "Yerusalem (JOS 10:1)"}, "", Blank},
		{"alternatives", Form{Text: "A——B (JOS 10:1)"}, "A——B (JOS 10:1)", Multiple},
		{"no renderings", Form{}, "Yerusalem", NoRenderings},
		{"matched", Form{Text: "Yerusalem (JOS 10:1)"}, " Yerusalem (JOS 10:1)", Matched},
		{"guessed", Form{Text: "Yerusalem", Guessed: true, BadOverride: true}, "Yerusalem", Guessed},
		{"bad override", Form{Text: "Yerusalem", BadOverride: true}, "Yerusalem", BadExplicitForm},
		{"short", Form{Text: "Yerusalem", Short: short}, "Ierousalem", RenderingShort},
		{"no short check", Form{Text: "Yerusalem"}, "Ierousalem", Unmatched},
		{"unmatched", Form{Text: "Yerusalem", Short: short}, "Babel", Unmatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyForm(tt.label, tt.form))
		})
	}
}

func TestClassifierEvaluate(t *testing.T) {
	c := NewClassifier(renderings.NewCachedCompiler(renderings.Compiler{}, 4))

	t.Run("scenario E", func(t *testing.T) {
		res := c.Evaluate(Inputs{
			Entry:  renderings.NewEntry("Yerusalem", false),
			Label:  "Yerusalem",
			Refs:   []string{"GEN001001", "GEN001002"},
			Verses: map[string]string{"GEN001001": "In Yerusalem there was peace", "GEN001002": ""},
		})
		assert.Equal(t, Matched, res.Status)
		assert.Equal(t, "Yerusalem", res.MapForm)
		assert.Equal(t, tally.Result{Matched: 1, Considered: 1}, res.Tally)
	})

	t.Run("scenario F", func(t *testing.T) {
		res := c.Evaluate(Inputs{
			Entry:  renderings.NewEntry("Yerusalem", false, "GEN001001"),
			Label:  "Yerusalem",
			Refs:   []string{"GEN001001", "GEN001002"},
			Verses: map[string]string{"GEN001001": "In Babel", "GEN001002": ""},
		})
		assert.Equal(t, tally.Result{Matched: 1, Considered: 1, AnyDenials: true}, res.Tally)
	})

	t.Run("missing entry", func(t *testing.T) {
		res := c.Evaluate(Inputs{Label: "Yerusalem", Refs: []string{"GEN001001"}, Verses: map[string]string{"GEN001001": "x"}})
		assert.Equal(t, NoRenderings, res.Status)
		assert.Equal(t, "", res.MapForm)
		assert.Equal(t, tally.Result{Considered: 1}, res.Tally)
	})

	assert.Equal(t, Guessed, NewClassifier(nil).Classify(renderings.NewEntry("Yerusalem*", true), "Yerusalem"))
}
