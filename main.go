// surveyor scans a source tree into a typed code graph with health warnings,
// clusters and tiered summaries.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/surveyor/internal/artifact"
	"github.com/phobologic/surveyor/internal/behavior"
	"github.com/phobologic/surveyor/internal/config"
	"github.com/phobologic/surveyor/internal/logging"
	"github.com/phobologic/surveyor/internal/model"
	"github.com/phobologic/surveyor/internal/output"
	"github.com/phobologic/surveyor/internal/ranking"
	"github.com/phobologic/surveyor/internal/scan"
	"github.com/phobologic/surveyor/internal/storage"
	"github.com/phobologic/surveyor/internal/summary"
	"github.com/phobologic/surveyor/internal/toon"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := runContext(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	return runContext(context.Background(), args, stdout, stderr)
}

func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	verbosity  int
	quiet      bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "surveyor",
		Short: "Map a codebase into a graph of files, symbols and health warnings",
		Long: `surveyor parses TypeScript, JavaScript and Python sources with tree-sitter,
links imports, calls and inheritance into a typed graph, reports structural
health warnings, groups files into clusters and renders L0/L1/L2 summaries.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("surveyor {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default: surveyor.yaml in the project root)")
	pf.CountVarP(&g.verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	pf.BoolVarP(&g.quiet, "quiet", "q", false, "suppress logs and progress")

	root.AddCommand(
		newScanCmd(g),
		newListCmd(g),
		newShowCmd(g),
		newDeleteCmd(g),
		newCacheCmd(g),
		newInitCmd(g),
		newConfigCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(g.stdout, "surveyor %s\n", version)
			},
		},
	)
	return root
}

// project resolves the optional path argument to an absolute directory and
// loads its config.
func (g *globals) project(args []string) (string, *config.Config, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("%s: not a directory", root)
	}
	cfg, err := config.Load(root, g.configPath)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// logger honors -v/-q when given and the configured level otherwise.
func (g *globals) logger(cfg *config.Config) *slog.Logger {
	level := logging.LevelFromString(cfg.Logging.Level)
	if g.verbosity > 0 || g.quiet {
		level = logging.LevelFromVerbosity(g.verbosity, g.quiet)
	}
	return logging.New(g.stderr, level)
}

func openDB(ctx context.Context, root string, cfg *config.Config, logger *slog.Logger) (*storage.DB, error) {
	path := cfg.Storage.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return storage.Open(ctx, path, logger)
}

type scanFlags struct {
	format         string
	level          string
	analyze        bool
	functionCycles bool
	save           bool
	upload         bool
	maxFiles       int
	file           string
	symbol         string
}

func newScanCmd(g *globals) *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a project and print its summary, graph or TOON map",
		Long: `Scan a project and print the result.

Examples:
  surveyor scan                        # current directory, tiered text summary
  surveyor scan ./app --format toon    # compact tabular map
  surveyor scan --format json --save   # full result, stored for 'surveyor list'
  surveyor scan --level l0             # one-line health summary
  surveyor scan --analyze              # add behavioral summaries (needs analyzer config)
  surveyor scan --file api --symbol handle`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.runScan(cmd.Context(), args, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.format, "format", "text", "output format: text, json or toon")
	fl.StringVar(&f.level, "level", string(output.LevelAll), "summary tier for text output: l0, l1, l2 or all")
	fl.BoolVar(&f.analyze, "analyze", false, "run behavioral analysis on functions")
	fl.BoolVar(&f.functionCycles, "function-cycles", false, "also detect cycles between functions")
	fl.BoolVar(&f.save, "save", false, "store the result in the scan database")
	fl.BoolVar(&f.upload, "upload", false, "upload the result to the configured artifact bucket")
	fl.IntVarP(&f.maxFiles, "max-files", "n", 0, "limit output to the top N files by rank")
	fl.StringVar(&f.file, "file", "", "limit output to files whose path contains this string")
	fl.StringVar(&f.symbol, "symbol", "", "limit output to symbols whose name contains this string and their neighbors")
	return cmd
}

func (g *globals) runScan(ctx context.Context, args []string, f *scanFlags) error {
	level, err := output.ParseLevel(f.level)
	if err != nil {
		return err
	}
	if err := checkFormat(f.format); err != nil {
		return err
	}
	root, cfg, err := g.project(args)
	if err != nil {
		return err
	}
	logger := g.logger(cfg)

	opts, err := cfg.ScanOptions(root)
	if err != nil {
		return err
	}
	opts.Analyze = f.analyze
	opts.Graph.FunctionCycles = opts.Graph.FunctionCycles || f.functionCycles

	var db *storage.DB
	if f.save || f.analyze {
		if db, err = openDB(ctx, root, cfg, logger); err != nil {
			return err
		}
		defer db.Close()
	}

	scanOpts := []scan.Option{scan.WithLogger(logger)}
	if f.analyze {
		if !cfg.AnalyzerEnabled() {
			return errors.New("--analyze needs analyzer.apiKey or analyzer.endpoint (or SURVEYOR_ANALYZER_APIKEY)")
		}
		analyzer := behavior.NewAnalyzer(behavior.NewOpenAI(cfg.Analyzer), storage.NewAnalysisCache(db), cfg.Analyzer, logger)
		scanOpts = append(scanOpts, scan.WithAnalyzer(analyzer))
	}

	status := output.New(g.stderr)
	var progress model.ProgressFunc
	if !g.quiet && g.verbosity > 0 {
		progress = func(ev model.ScanProgress) { status.Progress(ev, g.verbosity > 1) }
	}

	res, scanErr := scan.New(scanOpts...).Scan(ctx, root, opts, progress)
	if res == nil {
		return scanErr
	}

	if f.save {
		if err := storage.NewScanRepository(db).Save(ctx, res); err != nil {
			return fmt.Errorf("saving scan: %w", err)
		}
		if !g.quiet {
			status.Success("saved scan " + res.ID)
		}
	}
	if scanErr != nil {
		return scanErr
	}

	if f.upload {
		if !cfg.Artifacts.Enabled() {
			return errors.New("--upload needs artifacts.endpoint and artifacts.bucket")
		}
		store, err := artifact.New(ctx, cfg.Artifacts, logger)
		if err != nil {
			return err
		}
		url, err := store.UploadScan(ctx, res)
		if err != nil {
			return err
		}
		if !g.quiet {
			status.Success("uploaded " + url)
		}
	}

	view := narrow(res, f, cfg.Summary)
	return render(g.stdout, view, f.format, level)
}

// narrow applies the --file, --symbol and --max-files filters. A narrowed
// view gets stats and summaries recomputed over what remains.
func narrow(res *model.ScanResult, f *scanFlags, sumOpts summary.Options) *model.ScanResult {
	view := res
	if f.file != "" {
		view = ranking.FilterByFile(view, f.file)
	}
	if f.symbol != "" {
		view = ranking.FilterBySymbol(view, f.symbol)
	}
	view = ranking.SelectFiles(view, f.maxFiles)
	if view == res {
		return res
	}

	cycles := 0
	for _, w := range view.Warnings {
		if w.Category == model.CircularDependency {
			cycles++
		}
	}
	duration := res.Stats.DurationMS
	view.Stats = scan.ComputeStats(view, cycles)
	view.Stats.DurationMS = duration
	if res.Summary != nil {
		sums := summary.Generate(view, sumOpts)
		view.Summary = &sums
	}
	return view
}

func checkFormat(format string) error {
	switch format {
	case "text", "json", "toon":
		return nil
	}
	return fmt.Errorf("unknown format %q (want text, json or toon)", format)
}

func render(w io.Writer, res *model.ScanResult, format string, level output.Level) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "toon":
		_, err := fmt.Fprintln(w, toon.Encode(res))
		return err
	default:
		output.New(w).Report(res, level)
		return nil
	}
}
