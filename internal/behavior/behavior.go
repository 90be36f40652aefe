// Package behavior augments function nodes with cached, LLM-derived
// behavioral summaries.
package behavior

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/phobologic/surveyor/internal/logging"
	"github.com/phobologic/surveyor/internal/model"
)

// CacheVersion is stored with every cache entry; bump it when the prompt or
// result shape changes so older entries read as misses.
const CacheVersion = 1

var (
	// ErrEmptyResponse is returned when the endpoint answers without a
	// usable summary.
	ErrEmptyResponse = errors.New("empty analysis response")
	// ErrQuotaExceeded indicates the endpoint rejected the request for rate
	// or quota reasons.
	ErrQuotaExceeded = errors.New("analysis quota exceeded")
)

// Request is one function to analyze.
type Request struct {
	Name     string
	Code     string
	FilePath string
}

// Result is a one-line summary plus side-effect flags.
type Result struct {
	Summary string              `json:"summary"`
	Flags   model.BehaviorFlags `json:"flags"`
}

// Client analyzes a single function.
type Client interface {
	Analyze(ctx context.Context, req Request) (Result, error)
}

// Cache stores analyses by content hash and model. Get returns nil, nil on a
// miss.
type Cache interface {
	Get(ctx context.Context, contentHash, model string) (*model.AnalysisCacheEntry, error)
	Put(ctx context.Context, entry model.AnalysisCacheEntry) error
}

// Config holds the endpoint and request bounds.
type Config struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"apiKey"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"maxTokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

// DefaultConfig returns the request bounds used when none are configured.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o-mini",
		MaxTokens:   256,
		Temperature: 0.2,
		Timeout:     30 * time.Second,
		Concurrency: 5,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	return c
}

// ContentHash is the cache key of a function source.
func ContentHash(source string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(source))
}

// Stats counts the outcome of an analysis pass.
type Stats struct {
	Analyzed  int
	FromCache int
	Failed    int
	Skipped   int
}

// Analyzer runs a Client over function nodes with caching and bounded
// concurrency.
type Analyzer struct {
	client Client
	cache  Cache
	cfg    Config
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewAnalyzer creates an Analyzer. A nil cache disables caching.
func NewAnalyzer(client Client, cache Cache, cfg Config, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		cache:  cache,
		cfg:    cfg.withDefaults(),
		logger: logging.OrDiscard(logger),
		now:    time.Now,
	}
}

// Model is the model name analyses are cached under.
func (a *Analyzer) Model() string { return a.cfg.Model }

// Run analyzes every function node that lacks a current summary. At most
// Concurrency requests are in flight; each is bounded by Timeout. Failures
// leave the node's Behavioral nil and are reported through progress. Once a
// request fails with ErrQuotaExceeded no further requests are sent and the
// remaining nodes are reported as failed. Run returns ctx's error if it is
// cancelled, after in-flight work stops.
func (a *Analyzer) Run(ctx context.Context, fns []*model.Node, progress model.ProgressFunc) (Stats, error) {
	var (
		done                                 atomic.Int32
		analyzed, fromCache, failed, skipped atomic.Int32
		quota                                atomic.Bool
	)
	total := len(fns)
	report := func(p model.ScanProgress) {
		if progress != nil {
			p.Phase = model.PhaseAnalyzing
			p.Current = int(done.Add(1))
			p.Total = total
			progress(p)
		}
	}

	stopped := func(fn *model.Node) {
		failed.Add(1)
		report(model.ScanProgress{FilePath: fn.FilePath, FunctionName: fn.Name, Error: ErrQuotaExceeded.Error()})
	}

	g := new(errgroup.Group)
	g.SetLimit(a.cfg.Concurrency)
	for _, fn := range fns {
		if ctx.Err() != nil {
			break
		}
		if fn == nil || fn.Function == nil {
			continue
		}
		if quota.Load() {
			stopped(fn)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			hash := ContentHash(fn.Function.Source)
			if b := fn.Function.Behavioral; b != nil && b.ContentHash == hash && b.Model == a.cfg.Model {
				skipped.Add(1)
				return nil
			}
			if quota.Load() {
				stopped(fn)
				return nil
			}
			summary, cached, err := a.analyze(ctx, fn, hash)
			p := model.ScanProgress{FilePath: fn.FilePath, FunctionName: fn.Name, FromCache: cached}
			switch {
			case err != nil:
				failed.Add(1)
				p.Error = err.Error()
				if errors.Is(err, ErrQuotaExceeded) && !quota.Swap(true) {
					a.logger.Warn("analysis quota exceeded, stopping pass", "function", fn.ID, "error", err)
					break
				}
				a.logger.Warn("analysis failed", "function", fn.ID, "error", err)
			case cached:
				fromCache.Add(1)
				fn.Function.Behavioral = summary
			default:
				analyzed.Add(1)
				fn.Function.Behavioral = summary
			}
			report(p)
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{
		Analyzed:  int(analyzed.Load()),
		FromCache: int(fromCache.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
	a.logger.Debug("analysis pass finished",
		"analyzed", stats.Analyzed, "cached", stats.FromCache, "failed", stats.Failed, "skipped", stats.Skipped)
	return stats, ctx.Err()
}

type outcome struct {
	summary *model.BehavioralSummary
	cached  bool
}

// analyze returns the summary for one function. Concurrent requests for the
// same source share one call.
func (a *Analyzer) analyze(ctx context.Context, fn *model.Node, hash string) (*model.BehavioralSummary, bool, error) {
	if s, ok := a.lookup(ctx, hash); ok {
		return s, true, nil
	}
	leader := false
	v, err, shared := a.group.Do(hash+"\x00"+a.cfg.Model, func() (any, error) {
		leader = true
		if s, ok := a.lookup(ctx, hash); ok {
			return outcome{summary: s, cached: true}, nil
		}
		reqCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
		res, err := a.client.Analyze(reqCtx, Request{
			Name:     fn.Name,
			Code:     fn.Function.Source,
			FilePath: fn.FilePath,
		})
		if err != nil {
			return nil, err
		}
		now := a.now().UTC()
		s := &model.BehavioralSummary{
			Summary:     res.Summary,
			Flags:       res.Flags,
			ContentHash: hash,
			Model:       a.cfg.Model,
			AnalyzedAt:  now,
		}
		if a.cache != nil {
			entry := model.AnalysisCacheEntry{
				ContentHash: hash,
				Model:       a.cfg.Model,
				Version:     CacheVersion,
				Result:      *s,
				AnalyzedAt:  now,
			}
			if err := a.cache.Put(ctx, entry); err != nil {
				a.logger.Warn("cache write failed", "hash", hash, "error", err)
			}
		}
		return outcome{summary: s}, nil
	})
	if err != nil {
		return nil, false, err
	}
	o, ok := v.(outcome)
	if !ok {
		return nil, false, fmt.Errorf("unexpected analysis result %T", v)
	}
	// Callers that joined an in-flight request get their own copy and count
	// as cached; the caller that issued it does not.
	s := *o.summary
	return &s, o.cached || (shared && !leader), nil
}

func (a *Analyzer) lookup(ctx context.Context, hash string) (*model.BehavioralSummary, bool) {
	if a.cache == nil {
		return nil, false
	}
	entry, err := a.cache.Get(ctx, hash, a.cfg.Model)
	if err != nil {
		a.logger.Warn("cache read failed", "hash", hash, "error", err)
		return nil, false
	}
	if entry == nil || entry.Version != CacheVersion {
		return nil, false
	}
	s := entry.Result
	s.ContentHash, s.Model = hash, a.cfg.Model
	return &s, true
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]model.AnalysisCacheEntry
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]model.AnalysisCacheEntry)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, contentHash, modelName string) (*model.AnalysisCacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[contentHash+"\x00"+modelName]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, entry model.AnalysisCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.ContentHash+"\x00"+entry.Model] = entry
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// NopClient uses the function name as its summary and performs no I/O.
type NopClient struct{}

// Analyze implements Client.
func (NopClient) Analyze(_ context.Context, req Request) (Result, error) {
	return Result{Summary: req.Name}, nil
}
