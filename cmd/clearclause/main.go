// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"unicode/utf8"

	"clearclause/internal/config"
	"clearclause/internal/formatters"
	"clearclause/internal/observability"
	"clearclause/internal/preprocessors"
	"clearclause/internal/recognizer"
	"clearclause/internal/redaction"
	"clearclause/internal/security"
	"clearclause/internal/version"
	"clearclause/internal/web"

	_ "clearclause/internal/formatters/json"
	_ "clearclause/internal/formatters/text"
	_ "clearclause/internal/formatters/yaml"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/term"
)

// Exit codes
const (
	exitOK              = 0
	exitRuntimeError    = 1
	exitUsageError      = 2
	exitRecognizerError = 3
)

// configFlags holds command line flag values
type configFlags struct {
	file         string
	configFile   string
	profile      string
	listProfiles bool
	format       string
	output       string
	summary      bool
	summaryOnly  bool
	entities     bool
	showEntities bool
	overlapMode  string
	noColor      bool
	debug        bool
	web          bool
	port         int
	version      bool

	set map[string]bool
}

// isFlagSet reports whether a flag was given on the command line.
func (f *configFlags) isFlagSet(name string) bool {
	return f.set[name]
}

func parseFlags(args []string, stderr io.Writer) (*configFlags, error) {
	flags := &configFlags{set: make(map[string]bool)}
	fs := flag.NewFlagSet("clearclause", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&flags.file, "file", "", "Input file (text or PDF); reads stdin when empty")
	fs.StringVar(&flags.configFile, "config", "", "Path to configuration file")
	fs.StringVar(&flags.profile, "profile", "", "Configuration profile to apply")
	fs.BoolVar(&flags.listProfiles, "list-profiles", false, "List available profiles and exit")
	fs.StringVar(&flags.format, "format", "", "Output format: "+strings.Join(formatters.List(), ", "))
	fs.StringVar(&flags.output, "output", "", "Write the report to a file instead of stdout")
	fs.BoolVar(&flags.summary, "summary", false, "Include the redaction summary")
	fs.BoolVar(&flags.summaryOnly, "summary-only", false, "Print the summary without the redacted text")
	fs.BoolVar(&flags.entities, "entities", false, "Include detected entity positions")
	fs.BoolVar(&flags.showEntities, "show-entities", false, "Include the original entity text (contains PII)")
	fs.StringVar(&flags.overlapMode, "overlap-mode", "", "Overlap handling: sequential or merge")
	fs.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&flags.web, "web", false, "Serve the HTTP API instead of redacting input")
	fs.IntVar(&flags.port, "port", 0, "Port for the HTTP API")
	fs.BoolVar(&flags.version, "version", false, "Print version information and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: clearclause [flags] [-file path]\n\n")
		fmt.Fprintf(stderr, "Replaces personal information in text with %s.\n\n", redaction.Marker)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		if fs.NArg() > 1 || flags.file != "" {
			return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
		}
		flags.file = fs.Arg(0)
	}
	fs.Visit(func(f *flag.Flag) { flags.set[f.Name] = true })
	return flags, nil
}

// newLogger builds the process logger. LOG_LEVEL selects the level; -debug
// forces debug.
func newLogger(stderr io.Writer, debug bool) hclog.Logger {
	level := hclog.Warn
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = hclog.LevelFromString(v)
	}
	if debug {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "clearclause",
		Level:  level,
		Output: stderr,
	})
}

// newObserver selects per-operation timing: debug output with -debug,
// trace-level metrics with LOG_LEVEL=trace, otherwise none.
func newObserver(cfg *config.Config, logger hclog.Logger) *observability.StandardObserver {
	switch {
	case cfg.Defaults.Debug:
		return observability.NewStandardObserver(observability.ObservabilityDebug, logger)
	case logger.IsTrace():
		return observability.NewStandardObserver(observability.ObservabilityMetrics, logger)
	default:
		return nil
	}
}

// resolveConfiguration loads the configuration, applies the profile and
// environment, then command line flags.
func resolveConfiguration(flags *configFlags, logger hclog.Logger) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("ignoring .env", "error", err)
	}

	cfg, err := config.LoadConfigOrDefault(flags.configFile, logger)
	if err != nil {
		return nil, err
	}

	if flags.profile != "" {
		if err := cfg.ApplyProfile(flags.profile); err != nil {
			return nil, err
		}
		if p := cfg.GetProfile(flags.profile); p != nil && p.ShowEntities {
			flags.showEntities = true
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if flags.isFlagSet("format") {
		cfg.Defaults.Format = flags.format
	}
	if flags.isFlagSet("overlap-mode") {
		cfg.Redaction.OverlapMode = flags.overlapMode
	}
	if flags.isFlagSet("no-color") {
		cfg.Defaults.NoColor = flags.noColor
	}
	if flags.isFlagSet("debug") {
		cfg.Defaults.Debug = flags.debug
	}
	if flags.isFlagSet("port") {
		cfg.Web.Port = flags.port
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsageError
	}

	if flags.version {
		fmt.Fprintln(stdout, version.Info())
		return exitOK
	}

	logger := newLogger(stderr, flags.debug)

	cfg, err := resolveConfiguration(flags, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsageError
	}
	if cfg.Defaults.Debug {
		logger.SetLevel(hclog.Debug)
	}

	if flags.listProfiles {
		printProfiles(stdout, cfg)
		return exitOK
	}

	rec, err := recognizer.Shared(ctx, cfg.RecognizerOptions(), logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize recognizer: %v\n", err)
		return exitRecognizerError
	}

	engineOptions := cfg.EngineOptions()
	engineOptions.Observer = newObserver(cfg, logger)
	engine, err := redaction.NewEngine(rec, nil, engineOptions)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsageError
	}

	if flags.web {
		server := web.NewWebServer(engine, cfg.Web, logger)
		if err := server.Start(ctx); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitRuntimeError
		}
		return exitOK
	}

	if err := redactInput(engine, cfg, flags, stdin, stdout, logger); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRuntimeError
	}
	return exitOK
}

// redactInput redacts the input file or stdin and writes the report.
func redactInput(engine *redaction.Engine, cfg *config.Config, flags *configFlags, stdin io.Reader, stdout io.Writer, logger hclog.Logger) error {
	source, content, err := readInput(flags.file, stdin, engine.Observer())
	if err != nil {
		return err
	}
	defer content.Clear()
	text := content.String()

	if content.Truncated {
		logger.Warn("document truncated", "source", source, "pages", content.PageCount)
	}

	logger.Debug("input loaded", "source", source, "format", content.Format, "chars", content.CharCount)

	redacted, err := engine.Redact(text)
	if err != nil {
		return err
	}

	report := &formatters.Report{Source: source, RedactedText: redacted}
	if flags.summary || flags.summaryOnly {
		report.Summary, err = engine.Summarize(text, redacted)
		if err != nil {
			return err
		}
	}
	if flags.entities || flags.showEntities {
		report.Entities, err = engine.EntityDetails(text)
		if err != nil {
			return err
		}
		defer report.Entities.Clear()
	}

	options := formatters.FormatterOptions{
		NoColor:      cfg.Defaults.NoColor || flags.output != "" || !isTerminal(stdout),
		ShowEntities: flags.showEntities,
		SummaryOnly:  flags.summaryOnly,
	}
	output, err := formatters.Export(cfg.Defaults.Format, report, options)
	if err != nil {
		return err
	}

	if flags.output != "" {
		if err := os.WriteFile(flags.output, []byte(output), 0o600); err != nil {
			return fmt.Errorf("error writing %s: %w", flags.output, err)
		}
		return nil
	}
	_, err = io.WriteString(stdout, output)
	return err
}

// readInput extracts text from a file or stdin. Blank plain-text input is
// passed through unchanged so that it redacts to itself.
func readInput(path string, stdin io.Reader, observer *observability.StandardObserver) (string, *preprocessors.ProcessedContent, error) {
	source := path
	r := stdin
	if path == "" || path == "-" {
		source = "stdin"
	} else {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return "", nil, fmt.Errorf("error opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	data, err := preprocessors.ReadLimited(r, 0)
	if err != nil {
		return "", nil, fmt.Errorf("error reading %s: %w", source, err)
	}

	chain := preprocessors.NewChain()
	chain.SetObserver(observer)
	content, err := chain.Process(source, data)
	if errors.Is(err, preprocessors.ErrNoText) && !bytes.HasPrefix(data, []byte("%PDF-")) {
		return source, &preprocessors.ProcessedContent{
			Filename:      source,
			Text:          security.NewSecureStringFromBytes(data),
			Format:        "text",
			CharCount:     utf8.RuneCount(data),
			ProcessorType: "passthrough",
		}, nil
	}
	if err != nil {
		return "", nil, err
	}
	clear(data)
	return source, content, nil
}

func printProfiles(w io.Writer, cfg *config.Config) {
	profiles := cfg.ListProfiles()
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No profiles defined.")
		return
	}
	fmt.Fprintln(w, "Available profiles:")
	for _, name := range profiles {
		profile := cfg.GetProfile(name)
		if profile != nil && profile.Description != "" {
			fmt.Fprintf(w, "  - %s: %s\n", name, profile.Description)
		} else {
			fmt.Fprintf(w, "  - %s\n", name)
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
