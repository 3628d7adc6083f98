package renderings

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryDenials(t *testing.T) {
	e := NewEntry("Yerusalem", false, "GEN001002", "GEN001001")
	assert.True(t, e.IsDenied("GEN001001"))
	assert.False(t, e.IsDenied("EXO001001"))
	assert.Equal(t, []string{"GEN001001", "GEN001002"}, e.DenialList())

	assert.True(t, e.Undeny("GEN001001"))
	assert.False(t, e.Undeny("GEN001001"))
	assert.Equal(t, []string{"GEN001002"}, e.DenialList())

	var nilEntry *Entry
	assert.False(t, nilEntry.IsDenied("GEN001001"))
	assert.Nil(t, nilEntry.DenialList())
	assert.Nil(t, nilEntry.Clone())
}

func TestEntryClone(t *testing.T) {
	e := NewEntry("Yerusalem", true, "GEN001001")
	c := e.Clone()
	c.Deny("GEN001002")
	c.Renderings = "Salem"

	assert.Equal(t, "Yerusalem", e.Renderings)
	assert.False(t, e.IsDenied("GEN001002"))
	assert.True(t, c.IsGuessed)
}

func TestEntryJSON(t *testing.T) {
	e := NewEntry("Yerusalem*", true, "JOS010001")
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"renderings":"Yerusalem*","is_guessed":true,"denials":["JOS010001"]}`, string(data))

	var decoded Entry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, e.Renderings, decoded.Renderings)
	assert.True(t, decoded.IsGuessed)
	assert.True(t, decoded.IsDenied("JOS010001"))
}
