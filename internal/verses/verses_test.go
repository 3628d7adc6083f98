package verses

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
	"github.com/FocuswithJustin/MapLabeler/core/sqlite"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "In the beginning", "In the beginning"},
		{"runs", "  In\tthe\n\nbeginning  ", "In the beginning"},
		{"nbsp", "a\u00a0b", "a b"},
		{"nfc", "Jose\u0301", "Jos\u00e9"},
		{"empty", " \n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestMapProvider(t *testing.T) {
	p := MapProvider{
		"GEN001001": "In the beginning",
		"GEN001002": "",
	}
	got, err := p.Verses(context.Background(), []string{"GEN 1:1", "GEN001002", "EXO001001"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"GEN 1:1": "In the beginning"}, got)
}

func TestDecode(t *testing.T) {
	p, err := Decode(strings.NewReader(`{"JOS 10:1": " the king  of Yerusalem ", "GEN001001": ""}`))
	require.NoError(t, err)
	assert.Equal(t, MapProvider{"JOS010001": "the king of Yerusalem"}, p)

	_, err = Decode(strings.NewReader(`[1, 2]`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSQLiteProvider(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "verses.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	p, err := NewSQLiteProvider(ctx, db)
	require.NoError(t, err)

	require.NoError(t, p.PutMany(ctx, map[string]string{
		"JOS 10:1":  "Adoni-zedek king of  Yerusalem heard",
		"2SA005006": "the king went to Yerusalem",
		"PSA076002": "",
	}))
	require.NoError(t, p.Put(ctx, "PSA076002", "In Salem also is his tabernacle"))

	n, err := p.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := p.Verses(ctx, []string{"JOS010001", "PSA 76:2", "GEN001001"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"JOS010001": "Adoni-zedek king of Yerusalem heard",
		"PSA 76:2":  "In Salem also is his tabernacle",
	}, got)

	require.NoError(t, p.Put(ctx, "PSA076002", "  "))
	got, err = p.Verses(ctx, []string{"PSA076002"})
	require.NoError(t, err)
	assert.Empty(t, got)

	var _ Provider = p
	var _ Provider = MapProvider{}
}
