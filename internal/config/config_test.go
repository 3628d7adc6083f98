package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
)

const sampleYAML = `
database: project.db
catalog: maps/jerusalem.xml
log:
  level: debug
  format: json
digits:
  zero: "०"
tags:
  q:
    - ["$", " (?)"]
  cap:
    - ["^(.)", "[$1]{stop}"]
    - ["x", "y"]
feed:
  addr: ":9000"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFile(t *testing.T) {
	cfg, err := ReadFile(writeFile(t, "maplabels.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "project.db", cfg.Database)
	assert.Equal(t, "maps/jerusalem.xml", cfg.Catalog)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9000", cfg.Feed.Addr)

	zero, err := cfg.ZeroDigit()
	require.NoError(t, err)
	assert.Equal(t, '\u0966', zero)

	pairs := cfg.TagPairs()
	assert.Equal(t, [][2]string{{"$", " (?)"}}, pairs["q"])
	assert.Equal(t, [][2]string{{"^(.)", "[$1]{stop}"}, {"x", "y"}}, pairs["cap"])
	assert.NoError(t, cfg.Validate())
}

func TestReadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := ReadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = ReadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestReadFilePartialKeepsDefaults(t *testing.T) {
	cfg, err := ReadFile(writeFile(t, "c.yaml", "catalog: only.xml\n"))
	require.NoError(t, err)
	assert.Equal(t, "only.xml", cfg.Catalog)
	assert.Equal(t, "maplabels.db", cfg.Database)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestReadFileInvalidYAML(t *testing.T) {
	_, err := ReadFile(writeFile(t, "bad.yaml", "log: [unclosed\n"))
	require.Error(t, err)
	var pe *apperrors.ParseError
	assert.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDatabase:  "env.db",
		EnvCatalog:   "env.xml",
		EnvLogLevel:  "warn",
		EnvLogFormat: "",
		EnvFeedAddr:  ":1234",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, "env.xml", cfg.Catalog)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "empty values do not override")
	assert.Equal(t, ":1234", cfg.Feed.Addr)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", EnvCatalog+"=dotenv.xml\n"+EnvDatabase+"=dotenv.db\n")
	t.Setenv(EnvCatalog, "")
	os.Unsetenv(EnvCatalog)
	t.Setenv(EnvDatabase, "already.db")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "dotenv.xml", os.Getenv(EnvCatalog))
	assert.Equal(t, "already.db", os.Getenv(EnvDatabase), "existing variables win")

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "maplabels.yaml", sampleYAML)
	t.Setenv(EnvFeedAddr, ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Feed.Addr)
	assert.Equal(t, "project.db", cfg.Database)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty zero", func(c *Config) { c.Digits.Zero = "" }, false},
		{"two character zero", func(c *Config) { c.Digits.Zero = "00" }, true},
		{"short rule", func(c *Config) { c.Tags = map[string][][]string{"q": {{"$"}}} }, true},
		{"good rule", func(c *Config) { c.Tags = map[string][][]string{"q": {{"$", "?"}}} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Catalog = "x.xml"
	data, err := cfg.Marshal()
	require.NoError(t, err)

	back, err := ReadFile(writeFile(t, "out.yaml", string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
