package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/joseph-ayodele/doctext/internal/common"
	"github.com/joseph-ayodele/doctext/internal/docx"
	"github.com/joseph-ayodele/doctext/internal/extract"
	"github.com/joseph-ayodele/doctext/internal/ingest"
	"github.com/joseph-ayodele/doctext/internal/legacy"
	"github.com/joseph-ayodele/doctext/internal/pipeline"
	repo "github.com/joseph-ayodele/doctext/internal/repository"
	"github.com/joseph-ayodele/doctext/internal/scratch"
)

type options struct {
	configPath string
	jobsDB     string
	watch      bool
	hidden     bool
	jsonOut    bool
	noColor    bool
	quiet      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.StringVar(&opts.jobsDB, "jobs-db", "", "record jobs in this database (sqlite path or postgres:// URL)")
	flag.BoolVar(&opts.watch, "watch", false, "keep watching directory arguments for new documents")
	flag.BoolVar(&opts.hidden, "hidden", false, "include hidden files and directories")
	flag.BoolVar(&opts.jsonOut, "json", false, "print one JSON object per document instead of raw text")
	flag.BoolVar(&opts.noColor, "no-color", false, "disable coloured status output")
	flag.BoolVar(&opts.quiet, "quiet", false, "do not print status lines")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: doctext [flags] <file-or-directory>...\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(run(opts, flag.Args()))
}

func run(opts options, args []string) int {
	cfg, err := common.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	if opts.jobsDB != "" {
		cfg.Database.DSN = opts.jobsDB
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := scratch.NewStore(cfg.Scratch.Dir, logger)
	if err != nil {
		logger.Error("scratch dir unavailable", "dir", cfg.Scratch.Dir, "error", err)
		return 1
	}

	var jobs repo.ExtractJobRepository
	if cfg.Database.DSN != "" {
		db, err := repo.Open(ctx, repo.Config{DSN: cfg.Database.DSN, DialTimeout: cfg.Database.DialTimeout}, logger)
		if err != nil {
			logger.Error("open job store", "error", err)
			return 1
		}
		defer db.Close(logger)
		jobs = repo.NewExtractJobRepository(db, logger)
	}

	decoder := legacy.NewDecoder(legacy.Config{
		Command: cfg.Legacy.Decoder,
		Args:    cfg.Legacy.Args,
		Timeout: cfg.Legacy.Timeout,
	}, logger)
	if !decoder.Available() {
		logger.Warn("legacy decoder not found; .doc files will fail", "command", decoder.Command())
	}

	proc := pipeline.NewProcessor(logger, store,
		extract.NewDocxAdapter(docx.NewExtractor(logger), logger),
		extract.NewLegacyAdapter(decoder, cfg.Legacy.Timeout, logger),
		jobs,
	)
	uc := ingest.NewUsecase(proc, logger)

	p := newPrinter(os.Stdout, os.Stderr, opts)
	var dirs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			p.result(ingest.FileResult{Path: arg, Err: err.Error()}, pipeline.Outcome{})
			continue
		}
		if info.IsDir() {
			dirs = append(dirs, arg)
			stats, err := uc.IngestDirectory(ctx, arg, !opts.hidden, p.result)
			if err != nil {
				logger.Error("directory walk failed", "root", arg, "error", err)
				p.failed++
			}
			p.summary(arg, stats)
			continue
		}
		res, out, err := uc.IngestPath(ctx, arg)
		if err != nil {
			logger.Debug("ingest path failed", "path", arg, "error", err)
		}
		p.result(res, out)
	}

	if opts.watch && len(dirs) > 0 {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:      dirs,
			SkipHidden: !opts.hidden,
			Debounce:   500 * time.Millisecond,
		}, logger)
		if err != nil {
			logger.Error("watch failed", "error", err)
			return 1
		}
		p.status(color.New(color.FgCyan), "watching %d director(ies), Ctrl-C to stop", len(dirs))
		for {
			select {
			case path, ok := <-events:
				if !ok {
					return p.exitCode()
				}
				res, out, _ := uc.IngestPath(ctx, path)
				p.result(res, out)
			case err, ok := <-errs:
				if ok {
					logger.Warn("watcher error", "error", err)
				}
			case <-ctx.Done():
				return p.exitCode()
			}
		}
	}
	return p.exitCode()
}

type printer struct {
	out, statusw io.Writer
	opts         options
	failed       int
	ok, bad, dup *color.Color
}

func newPrinter(out, status io.Writer, opts options) *printer {
	if opts.noColor || !isTerminal(os.Stderr) {
		color.NoColor = true
	}
	return &printer{
		out:     out,
		statusw: status,
		opts:    opts,
		ok:      color.New(color.FgGreen),
		bad:     color.New(color.FgRed, color.Bold),
		dup:     color.New(color.FgYellow),
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type jsonLine struct {
	Path         string `json:"path"`
	Format       string `json:"format,omitempty"`
	Text         string `json:"text,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Error        string `json:"error,omitempty"`
	JobID        string `json:"job_id,omitempty"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
}

func (p *printer) result(r ingest.FileResult, out pipeline.Outcome) {
	if !r.OK() {
		p.failed++
	}
	switch {
	case p.opts.jsonOut:
		_ = json.NewEncoder(p.out).Encode(jsonLine{
			Path: r.Path, Format: r.Format, Text: out.Text, Kind: r.Kind,
			Error: r.Err, JobID: r.JobID, Deduplicated: r.Deduplicated,
		})
	case r.OK() && !r.Deduplicated:
		fmt.Fprintf(p.out, "==> %s <==\n%s\n", r.Path, out.Text)
	}

	switch {
	case r.Deduplicated:
		p.status(p.dup, "= %s (same content as an earlier file)", r.Path)
	case r.OK():
		p.status(p.ok, "✓ %s (%s, %d chars, %dms)", r.Path, r.Format, r.Chars, r.Duration.Milliseconds())
	default:
		p.status(p.bad, "✗ %s: %s", r.Path, r.Err)
	}
}

func (p *printer) summary(root string, s ingest.DirStats) {
	p.status(color.New(color.Bold), "%s: %d matched, %d ok, %d duplicate, %d failed",
		root, s.Matched, s.Succeeded, s.Deduplicated, s.Failed)
}

func (p *printer) status(c *color.Color, format string, args ...any) {
	if p.opts.quiet {
		return
	}
	_, _ = c.Fprintf(p.statusw, format+"\n", args...)
}

func (p *printer) exitCode() int {
	if p.failed > 0 {
		return 1
	}
	return 0
}
