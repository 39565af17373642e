package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

// Environment variables read before flags. Flags win.
const (
	EnvConfigDir = "INBOXPURGE_CONFIG_DIR"
	EnvLogDir    = "INBOXPURGE_LOG_DIR"
	EnvQuery     = "INBOXPURGE_QUERY"
	EnvLogLevel  = "INBOXPURGE_LOG_LEVEL"
)

const (
	DefaultQuery      = "is:unread"
	DefaultMaxResults = 500
	// MaxResultsCap is Gmail's page size limit for messages.list.
	MaxResultsCap = 500
	journalFile   = "inboxpurge.db"
)

type Config struct {
	ConfigDir   string // client_secret.json, token.json, journal
	LogDir      string // deletion logs; "" is the working directory
	Query       string
	MaxResults  int64
	AssumeYes   bool
	JournalPath string // "" disables the journal
	History     int    // >0 prints that many journal runs and exits
	ShowRun     int64  // >0 prints the messages of that journal run and exits
	LogLevel    slog.Level
}

// Load builds the config from .env files, the environment and args (without
// the program name). Help output goes to stderr.
func Load(args []string, stderr io.Writer) (*Config, error) {
	if err := loadDotenv(".env"); err != nil {
		return nil, err
	}

	home, _ := os.UserHomeDir()
	defaultDir := filepath.Join(home, ".config", "inboxpurge")
	if v := os.Getenv(EnvConfigDir); v != "" {
		defaultDir = v
	}

	fs := flag.NewFlagSet("inboxpurge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: inboxpurge [flags]")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Search Gmail, show the matches and, after confirmation, move them to Trash.")
		fmt.Fprintln(stderr, "")
		fs.PrintDefaults()
	}

	var (
		cfg       Config
		journal   string
		noJournal bool
		level     string
	)
	fs.StringVar(&cfg.ConfigDir, "config-dir", defaultDir, "directory holding client_secret.json and token.json")
	fs.StringVar(&cfg.LogDir, "log-dir", os.Getenv(EnvLogDir), "directory for deletion logs (default: working directory)")
	fs.StringVarP(&cfg.Query, "query", "q", envOr(EnvQuery, DefaultQuery), "Gmail search query")
	fs.Int64VarP(&cfg.MaxResults, "max-results", "n", DefaultMaxResults, "maximum messages to match (Gmail caps at 500)")
	fs.BoolVarP(&cfg.AssumeYes, "yes", "y", false, "trash without asking for confirmation")
	fs.StringVar(&journal, "journal", "", "run journal database (default: <config-dir>/inboxpurge.db)")
	fs.BoolVar(&noJournal, "no-journal", false, "do not record runs in the journal")
	fs.IntVar(&cfg.History, "history", 0, "print the last N journaled runs and exit")
	fs.Int64Var(&cfg.ShowRun, "run", 0, "print the messages and outcomes of journal run ID and exit")
	fs.StringVar(&level, "log-level", envOr(EnvLogLevel, "info"), "diagnostic log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	// The config dir is only known after parsing. Its .env never overrides
	// variables that are already set, and flags given explicitly still win.
	if err := loadDotenv(filepath.Join(cfg.ConfigDir, ".env")); err != nil {
		return nil, err
	}
	if !fs.Changed("log-dir") {
		cfg.LogDir = os.Getenv(EnvLogDir)
	}
	if !fs.Changed("query") {
		cfg.Query = envOr(EnvQuery, DefaultQuery)
	}
	if !fs.Changed("log-level") {
		level = envOr(EnvLogLevel, "info")
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	switch {
	case noJournal:
		cfg.JournalPath = ""
	case journal != "":
		cfg.JournalPath = journal
	default:
		cfg.JournalPath = filepath.Join(cfg.ConfigDir, journalFile)
	}
	return &cfg, nil
}

var (
	ErrEmptyQuery      = errors.New("query must not be empty")
	ErrInvalidMaxCount = errors.New("max-results must be at least 1")
)

// Validate checks the search bounds. A max above Gmail's page limit is
// clamped and reported through warn.
func (c *Config) Validate(warn *slog.Logger) error {
	c.Query = strings.TrimSpace(c.Query)
	if c.Query == "" {
		return ErrEmptyQuery
	}
	if c.MaxResults < 1 {
		return ErrInvalidMaxCount
	}
	if c.MaxResults > MaxResultsCap {
		if warn != nil {
			warn.Warn("max-results above Gmail page limit, clamping", "requested", c.MaxResults, "used", MaxResultsCap)
		}
		c.MaxResults = MaxResultsCap
	}
	if c.History < 0 {
		return fmt.Errorf("history must not be negative")
	}
	if c.ShowRun < 0 {
		return fmt.Errorf("run id must not be negative")
	}
	return nil
}

// NewLogger returns the diagnostic logger: slog text on w.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadDotenv skips a missing file. A file that exists but does not parse is
// an error.
func loadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
