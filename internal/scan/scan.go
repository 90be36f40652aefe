// Package scan runs the full surveyor pipeline over a project and drives the
// scan state machine.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/phobologic/surveyor/internal/behavior"
	"github.com/phobologic/surveyor/internal/cluster"
	"github.com/phobologic/surveyor/internal/discover"
	"github.com/phobologic/surveyor/internal/graph"
	"github.com/phobologic/surveyor/internal/logging"
	"github.com/phobologic/surveyor/internal/model"
	"github.com/phobologic/surveyor/internal/parse"
	"github.com/phobologic/surveyor/internal/summary"
	"github.com/phobologic/surveyor/internal/warnings"
)

var (
	// ErrCancelled is returned when the context is cancelled mid-scan. The
	// result is marked Failed and keeps whatever was produced.
	ErrCancelled = errors.New("scan cancelled")
	// ErrRootUnreadable is returned when the project root cannot be read.
	ErrRootUnreadable = errors.New("project root unreadable")
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Options configures one scan.
type Options struct {
	Discover    discover.Options
	Workers     int
	MaxFileSize int64
	Graph       graph.Options
	Warnings    warnings.Options
	Clusters    cluster.Options
	Summary     summary.Options
	// Analyze runs the behavioral analyzer when one is configured.
	Analyze bool
}

// DefaultOptions enables every default rule and folder clustering.
func DefaultOptions() Options {
	return Options{
		MaxFileSize: 1 << 20,
		Warnings:    warnings.DefaultOptions(),
		Clusters:    cluster.DefaultOptions(),
		Summary:     summary.DefaultOptions(),
	}
}

// Scanner runs scans. It holds no per-scan state and may run several scans
// concurrently.
type Scanner struct {
	parser   parse.Parser
	analyzer *behavior.Analyzer
	logger   *slog.Logger
	clock    Clock
	newID    func() string
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithParser replaces the tree-sitter parser.
func WithParser(p parse.Parser) Option { return func(s *Scanner) { s.parser = p } }

// WithAnalyzer enables behavioral analysis for scans with Options.Analyze.
func WithAnalyzer(a *behavior.Analyzer) Option { return func(s *Scanner) { s.analyzer = a } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Scanner) { s.logger = l } }

// WithClock sets the clock used for timestamps.
func WithClock(c Clock) Option { return func(s *Scanner) { s.clock = c } }

// WithIDGenerator sets the scan ID generator.
func WithIDGenerator(f func() string) Option { return func(s *Scanner) { s.newID = f } }

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{clock: SystemClock{}, newID: uuid.NewString}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	return s
}

// run is the state of one scan.
type run struct {
	*Scanner
	root     string
	opts     Options
	res      *model.ScanResult
	progress model.ProgressFunc
	started  time.Time
	cycles   int
}

// Scan scans root. It always returns a result unless the options are
// invalid; a scan that fails keeps its partial nodes, warnings and errors
// and has status Failed alongside a non-nil error.
func (s *Scanner) Scan(ctx context.Context, root string, opts Options, progress model.ProgressFunc) (*model.ScanResult, error) {
	detector, err := warnings.New(opts.Warnings)
	if err != nil {
		return nil, fmt.Errorf("warning rules: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	parser := s.parser
	if parser == nil {
		parser = parse.NewTreeSitter(opts.MaxFileSize)
	}

	now := s.clock.Now().UTC()
	r := &run{
		Scanner:  s,
		root:     abs,
		opts:     opts,
		progress: progress,
		started:  now,
		res: &model.ScanResult{
			ID:          s.newID(),
			ProjectPath: abs,
			ProjectName: filepath.Base(abs),
			Status:      model.StatusPending,
			CreatedAt:   now,
			Nodes:       model.NodeMap{},
			Connections: []*model.Connection{},
			Warnings:    []*model.Warning{},
			Clusters:    []*model.Cluster{},
			Errors:      []model.ScanError{},
		},
	}
	detector.SetClock(func() time.Time { return s.clock.Now() })
	s.logger.Info("scan started", "id", r.res.ID, "root", abs)

	if err := r.execute(ctx, parser, detector); err != nil {
		return r.fail(err)
	}
	return r.res, nil
}

func (r *run) execute(ctx context.Context, parser parse.Parser, detector *warnings.Detector) error {
	if err := r.advance(model.StatusParsing); err != nil {
		return err
	}

	r.emit(model.ScanProgress{Phase: model.PhaseDiscovering})
	entries, err := discover.Files(r.root, r.opts.Discover)
	if err != nil {
		r.res.Errors = append(r.res.Errors, model.ScanError{FilePath: r.root, Message: err.Error()})
		return fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	r.logger.Debug("discovered files", "count", len(entries))

	files, err := r.parseAll(ctx, parser, entries)
	if err != nil {
		return err
	}

	r.emit(model.ScanProgress{Phase: model.PhaseLinking, Total: len(files)})
	g := graph.Build(files, r.opts.Graph)
	r.res.Nodes, r.res.Connections = g.Nodes, g.Connections
	r.cycles = len(g.Cycles)
	if err := r.advance(model.StatusAnalyzing); err != nil {
		return err
	}

	r.emit(model.ScanProgress{Phase: model.PhaseDetecting})
	r.res.Warnings = detector.Detect(&warnings.Input{
		Graph: g,
		ReadFile: func(rel string) ([]byte, error) {
			return os.ReadFile(filepath.Join(r.root, filepath.FromSlash(rel)))
		},
	})

	r.emit(model.ScanProgress{Phase: model.PhaseClustering})
	clusters, err := cluster.Build(cluster.Input{
		Nodes:       r.res.Nodes,
		Connections: r.res.Connections,
		Warnings:    r.res.Warnings,
	}, r.opts.Clusters)
	if err != nil {
		return err
	}
	r.res.Clusters = clusters

	if r.opts.Analyze && r.analyzer != nil {
		fns := r.res.Nodes.OfType(model.NodeFunction)
		stats, err := r.analyzer.Run(ctx, fns, r.progress)
		r.logger.Info("behavioral analysis", "analyzed", stats.Analyzed, "cached", stats.FromCache, "failed", stats.Failed)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	if err := r.advance(model.StatusComplete); err != nil {
		return err
	}
	r.finish()
	sums := summary.Generate(r.res, r.opts.Summary)
	r.res.Summary = &sums
	r.emit(model.ScanProgress{Phase: model.PhaseComplete, Current: r.res.Stats.TotalFiles, Total: r.res.Stats.TotalFiles})
	r.logger.Info("scan complete", "id", r.res.ID, "files", r.res.Stats.TotalFiles,
		"warnings", r.res.Stats.TotalWarnings, "health", r.res.Stats.HealthScore, "duration_ms", r.res.Stats.DurationMS)
	return nil
}

// parseAll parses every entry, recording per-file failures as recoverable
// errors. On cancellation the files parsed so far are kept in the result.
func (r *run) parseAll(ctx context.Context, parser parse.Parser, entries []discover.FileEntry) ([]*model.ParsedFile, error) {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}

	var done atomic.Int32
	results := parse.All(ctx, parser, r.root, paths, r.opts.Workers, func(pr parse.Result) {
		p := model.ScanProgress{
			Phase:    model.PhaseParsing,
			Current:  int(done.Add(1)),
			Total:    len(paths),
			FilePath: pr.Path,
		}
		if pr.Err != nil {
			p.Error = pr.Err.Error()
		}
		r.emit(p)
	})

	var files []*model.ParsedFile
	for _, pr := range results {
		switch {
		case pr.Err == nil:
			files = append(files, pr.File)
		case errors.Is(pr.Err, context.Canceled), errors.Is(pr.Err, context.DeadlineExceeded):
			// not reached before cancellation
		default:
			r.res.Errors = append(r.res.Errors, parseError(pr))
			r.logger.Debug("skipping file", "path", pr.Path, "error", pr.Err)
		}
	}

	if err := ctx.Err(); err != nil {
		for _, f := range files {
			for _, n := range f.Nodes() {
				r.res.Nodes[n.ID] = n
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return files, nil
}

func parseError(pr parse.Result) model.ScanError {
	se := model.ScanError{FilePath: pr.Path, Message: pr.Err.Error(), Recoverable: true}
	var pe *parse.Error
	if errors.As(pr.Err, &pe) {
		se.Message = pe.Err.Error()
		if pe.Line > 0 {
			line := pe.Line
			se.Line = &line
		}
	}
	return se
}

func (r *run) advance(next model.ScanStatus) error {
	if !r.res.Status.CanTransition(next) {
		return fmt.Errorf("illegal scan transition %s -> %s", r.res.Status, next)
	}
	r.logger.Debug("scan status", "id", r.res.ID, "from", r.res.Status, "to", next)
	r.res.Status = next
	return nil
}

// fail marks the result Failed, keeping partial content.
func (r *run) fail(err error) (*model.ScanResult, error) {
	if r.res.Status.CanTransition(model.StatusFailed) {
		r.res.Status = model.StatusFailed
	}
	r.finish()
	r.emit(model.ScanProgress{Phase: model.PhaseFailed, Error: err.Error()})
	r.logger.Error("scan failed", "id", r.res.ID, "error", err)
	return r.res, err
}

// finish stamps completion and computes stats.
func (r *run) finish() {
	end := r.clock.Now().UTC()
	r.res.CompletedAt = &end
	r.res.Stats = ComputeStats(r.res, r.cycles)
	r.res.Stats.DurationMS = end.Sub(r.started).Milliseconds()
}

func (r *run) emit(p model.ScanProgress) {
	if r.progress != nil {
		r.progress(p)
	}
}

// ComputeStats aggregates the content of res. cycles is the number of
// dependency cycles found while linking.
func ComputeStats(res *model.ScanResult, cycles int) model.ScanStats {
	s := model.ScanStats{
		NodesByType:        map[model.NodeType]int{},
		WarningsByLevel:    map[model.WarningLevel]int{},
		WarningsByCategory: map[model.WarningCategory]int{},
		TotalConnections:   len(res.Connections),
		TotalWarnings:      len(res.Warnings),
		TotalClusters:      len(res.Clusters),
		CircularCount:      cycles,
	}
	for _, n := range res.Nodes {
		s.NodesByType[n.Type]++
		switch n.Type {
		case model.NodeFile:
			s.TotalFiles++
		case model.NodeFunction:
			s.TotalFunctions++
			if n.Function != nil && n.Function.Behavioral != nil {
				s.AnalyzedCount++
			} else {
				s.PendingAnalysis++
			}
		case model.NodeClass:
			s.TotalClasses++
		}
	}
	for _, w := range res.Warnings {
		s.WarningsByLevel[w.Level]++
		s.WarningsByCategory[w.Category]++
	}
	for _, e := range res.Errors {
		if e.Recoverable {
			s.ParseErrors++
		}
	}
	s.HealthScore = summary.HealthScore(s)
	return s
}
