package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tpl, err := Parse("Sea of {q#galilee} ({r#MRK001016}, {#3})")
	require.NoError(t, err)

	fields := tpl.Fields()
	require.Len(t, fields, 3)

	assert.Equal(t, FieldTaggedPlaceName, fields[0].Kind)
	assert.Equal(t, "q", fields[0].Tag)
	assert.Equal(t, "galilee", fields[0].Value)
	assert.Equal(t, "{q#galilee}", tpl.Source[fields[0].Offset:fields[0].End])

	assert.Equal(t, FieldReference, fields[1].Kind)
	assert.False(t, fields[1].Long)
	assert.Equal(t, "MRK001016", fields[1].Value)

	assert.Equal(t, FieldNumber, fields[2].Kind)
	assert.Equal(t, "3", fields[2].Value)
	assert.Equal(t, "{#3}", tpl.Source[fields[2].Offset:fields[2].End])
}

func TestParseFieldKinds(t *testing.T) {
	tests := []struct {
		src  string
		kind FieldKind
		val  string
		long bool
	}{
		{"{jerusalem}", FieldPlaceName, "jerusalem", false},
		{"{ jerusalem }", FieldPlaceName, "jerusalem", false},
		{"{R#GEN001001}", FieldReference, "GEN001001", true},
		{"{r#GEN001001}", FieldReference, "GEN001001", false},
		{"{#40}", FieldNumber, "40", false},
		{"{x#jordan}", FieldTaggedPlaceName, "jordan", false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tpl, err := Parse(tt.src)
			require.NoError(t, err)
			fields := tpl.Fields()
			require.Len(t, fields, 1)
			assert.Equal(t, tt.kind, fields[0].Kind)
			assert.Equal(t, tt.val, fields[0].Value)
			assert.Equal(t, tt.long, fields[0].Long)
			assert.Equal(t, 0, fields[0].Offset)
			assert.Equal(t, len(tt.src), fields[0].End)
		})
	}
}

func TestParseLiterals(t *testing.T) {
	for _, src := range []string{"", "plain text", "{}", "{ #}", "{q#}", "unclosed {abc", "close } only"} {
		t.Run(src, func(t *testing.T) {
			tpl, err := Parse(src)
			require.NoError(t, err)
			assert.Empty(t, tpl.Fields())
		})
	}

	tpl, err := Parse("{a{b}")
	require.NoError(t, err)
	fields := tpl.Fields()
	require.Len(t, fields, 1)
	assert.Equal(t, "b", fields[0].Value)
	assert.Equal(t, 2, fields[0].Offset)
}

func TestFieldKindString(t *testing.T) {
	assert.Equal(t, "placename", FieldPlaceName.String())
	assert.Equal(t, "number", FieldNumber.String())
	assert.Equal(t, "unknown", FieldKind(9).String())
}
