// Command maplabels checks vernacular map labels against the renderings of
// the biblical terms they name.
// It provides commands for inspecting renderings, classifying labels,
// importing data and serving a live status feed.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/MapLabeler/core/sqlite"
	"github.com/FocuswithJustin/MapLabeler/core/template"
	"github.com/FocuswithJustin/MapLabeler/internal/catalog"
	"github.com/FocuswithJustin/MapLabeler/internal/config"
	"github.com/FocuswithJustin/MapLabeler/internal/logging"
	"github.com/FocuswithJustin/MapLabeler/internal/session"
	"github.com/FocuswithJustin/MapLabeler/internal/termstore"
	"github.com/FocuswithJustin/MapLabeler/internal/verses"
)

const version = "0.1.0"

// stdout receives command output. Tests replace it.
var stdout io.Writer = os.Stdout

// Globals are the flags shared by every command. Flags override the config
// file and the environment.
type Globals struct {
	Config    string `name:"config" short:"c" help:"Config file path" default:"maplabels.yaml" type:"path"`
	Database  string `name:"database" short:"d" help:"SQLite database path" type:"path"`
	Catalog   string `name:"catalog" help:"Map template XML path" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (text, json)"`
}

// CLI defines the command-line interface for maplabels.
type CLI struct {
	Globals

	Mapform      MapformCmd      `cmd:"" help:"Print the map form of renderings text"`
	Patterns     PatternsCmd     `cmd:"" help:"Print the patterns compiled from renderings text"`
	Classify     ClassifyCmd     `cmd:"" help:"Classify a label against renderings"`
	Tally        TallyCmd        `cmd:"" help:"Count the verses where renderings occur"`
	Template     TemplateCmd     `cmd:"" help:"Expand a label template against the catalog and database"`
	Report       ReportCmd       `cmd:"" help:"Report the status of every label"`
	ImportVerses ImportVersesCmd `cmd:"" name:"import-verses" help:"Load verse text from a JSON file into the database"`
	ImportTerms  ImportTermsCmd  `cmd:"" name:"import-terms" help:"Load term renderings from a JSON file into the database"`
	Serve        ServeCmd        `cmd:"" help:"Serve label statuses over HTTP and websockets"`
	Version      VersionCmd      `cmd:"" help:"Print version information"`
}

// load reads the configuration, applies flag overrides and sets up logging.
func (g *Globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.Database != "" {
		cfg.Database = g.Database
	}
	if g.Catalog != "" {
		cfg.Catalog = g.Catalog
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logging.InitLoggerTo(os.Stderr, level, format)
	return cfg, nil
}

// workspace is everything a command needs to work on the configured
// project.
type workspace struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	store   *termstore.SQLiteStore
	verses  *verses.SQLiteProvider
	tags    *template.RuleSet
	digits  template.DigitConverter
}

// openDatabase opens the configured database with its term and verse
// tables.
func openDatabase(ctx context.Context, cfg *config.Config) (*termstore.SQLiteStore, *verses.SQLiteProvider, error) {
	store, err := termstore.OpenSQLiteStore(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	provider, err := verses.NewSQLiteProvider(ctx, store.DB())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, provider, nil
}

// openDatabaseReadOnly opens the configured database for commands that only
// read it. The tables must have been created by an import.
func openDatabaseReadOnly(ctx context.Context, cfg *config.Config) (*termstore.SQLiteStore, *verses.SQLiteProvider, error) {
	store, err := termstore.OpenSQLiteStoreReadOnly(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s read-only (run import-terms first?): %w", cfg.Database, err)
	}
	return store, verses.NewReadOnlySQLiteProvider(store.DB()), nil
}

// openWorkspace loads the catalog and opens the database, read-only when
// readOnly is set. Close releases the database.
func openWorkspace(ctx context.Context, cfg *config.Config, readOnly bool) (*workspace, error) {
	if cfg.Catalog == "" {
		return nil, fmt.Errorf("no catalog configured: set --catalog, %s or catalog in %s", config.EnvCatalog, config.DefaultFile)
	}
	cat, err := catalog.LoadFile(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	zero, err := cfg.ZeroDigit()
	if err != nil {
		return nil, err
	}
	open := openDatabase
	if readOnly {
		open = openDatabaseReadOnly
	}
	store, provider, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ws := &workspace{
		cfg:     cfg,
		catalog: cat,
		store:   store,
		verses:  provider,
		tags:    template.NewRuleSet(cfg.TagPairs()),
	}
	if zero != '0' {
		ws.digits = template.ScriptDigits{Zero: zero}
	}
	return ws, nil
}

func (ws *workspace) Close() error {
	return ws.store.Close()
}

// session builds a session over the workspace with the given label text.
func (ws *workspace) session(ctx context.Context, vernacular map[string]string) (*session.Session, error) {
	return session.New(ctx, session.Deps{
		Catalog:    ws.catalog,
		Store:      ws.store,
		Verses:     ws.verses,
		Tags:       ws.tags,
		Digits:     ws.digits,
		Vernacular: vernacular,
	})
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(stdout, "maplabels version %s\n", version)
	info := sqlite.GetInfo()
	fmt.Fprintf(stdout, "sqlite driver %s (%s, %s)\n", info.DriverName, info.DriverType, info.Package)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("maplabels"),
		kong.Description("Map label checking against biblical term renderings"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// unescapeRenderings lets renderings be passed on the command line with "\n"
// standing for a line break.
func unescapeRenderings(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
