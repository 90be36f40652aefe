package behavior

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/surveyor/internal/model"
)

type countingClient struct {
	calls atomic.Int32
	fail  map[string]bool
	delay time.Duration
}

func (c *countingClient) Analyze(ctx context.Context, req Request) (Result, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if c.fail[req.Name] {
		return Result{}, errors.New("boom")
	}
	return Result{Summary: "does " + req.Name, Flags: model.BehaviorFlags{HTTPCall: true}}, nil
}

func fn(name, source string) *model.Node {
	return &model.Node{
		ID:       model.FunctionID("a.ts", name, 1),
		Type:     model.NodeFunction,
		Name:     name,
		FilePath: "a.ts",
		Function: &model.FunctionNode{Source: source},
	}
}

func TestCacheCorrectness(t *testing.T) {
	t.Parallel()

	client := &countingClient{}
	cache := NewMemoryCache()
	a := NewAnalyzer(client, cache, Config{}, nil)
	ctx := context.Background()

	f := fn("load", "function load() { return fetch('/x'); }")
	stats, err := a.Run(ctx, []*model.Node{f}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), client.calls.Load())
	assert.Equal(t, 1, stats.Analyzed)
	require.NotNil(t, f.Function.Behavioral)
	assert.Equal(t, "does load", f.Function.Behavioral.Summary)
	assert.Equal(t, ContentHash(f.Function.Source), f.Function.Behavioral.ContentHash)

	// Fresh node, same source: served from cache.
	again := fn("load", f.Function.Source)
	stats, err = a.Run(ctx, []*model.Node{again}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), client.calls.Load())
	assert.Equal(t, 1, stats.FromCache)
	require.NotNil(t, again.Function.Behavioral)

	// Already-analyzed node: nothing to do.
	stats, err = a.Run(ctx, []*model.Node{again}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, int32(1), client.calls.Load())

	again.Function.Source = "function load() { return fetch('/y'); }"
	_, err = a.Run(ctx, []*model.Node{again}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), client.calls.Load())
	assert.Equal(t, 2, cache.Len())
}

func TestCacheVersionMismatch(t *testing.T) {
	t.Parallel()

	src := "function f() {}"
	cache := NewMemoryCache()
	require.NoError(t, cache.Put(context.Background(), model.AnalysisCacheEntry{
		ContentHash: ContentHash(src),
		Model:       DefaultConfig().Model,
		Version:     CacheVersion + 1,
		Result:      model.BehavioralSummary{Summary: "stale"},
	}))

	client := &countingClient{}
	f := fn("f", src)
	_, err := NewAnalyzer(client, cache, Config{}, nil).Run(context.Background(), []*model.Node{f}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), client.calls.Load())
	assert.Equal(t, "does f", f.Function.Behavioral.Summary)
}

func TestFailuresReportedNotFatal(t *testing.T) {
	t.Parallel()

	client := &countingClient{fail: map[string]bool{"bad": true}}
	good, bad := fn("good", "function good() {}"), fn("bad", "function bad() {}")

	var (
		mu     sync.Mutex
		events []model.ScanProgress
	)
	stats, err := NewAnalyzer(client, nil, Config{}, nil).Run(context.Background(), []*model.Node{good, bad},
		func(p model.ScanProgress) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, p)
		})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Analyzed)
	assert.Equal(t, 1, stats.Failed)
	assert.NotNil(t, good.Function.Behavioral)
	assert.Nil(t, bad.Function.Behavioral)

	require.Len(t, events, 2)
	var errs int
	for _, e := range events {
		assert.Equal(t, model.PhaseAnalyzing, e.Phase)
		assert.Equal(t, 2, e.Total)
		if e.Error != "" {
			errs++
			assert.Equal(t, "bad", e.FunctionName)
		}
	}
	assert.Equal(t, 1, errs)
}

func TestTimeoutPerRequest(t *testing.T) {
	t.Parallel()

	client := &countingClient{delay: time.Second}
	f := fn("slow", "function slow() {}")
	stats, err := NewAnalyzer(client, nil, Config{Timeout: 10 * time.Millisecond}, nil).
		Run(context.Background(), []*model.Node{f}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Nil(t, f.Function.Behavioral)
}

func TestIdenticalSourcesShareRequest(t *testing.T) {
	t.Parallel()

	client := &countingClient{delay: 20 * time.Millisecond}
	src := "function twin() { return 1; }"
	nodes := []*model.Node{fn("a", src), fn("b", src), fn("c", src)}
	_, err := NewAnalyzer(client, NewMemoryCache(), Config{Concurrency: 3}, nil).Run(context.Background(), nodes, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), client.calls.Load())
	for _, n := range nodes {
		assert.NotNil(t, n.Function.Behavioral)
	}
}

type quotaClient struct{ calls atomic.Int32 }

func (c *quotaClient) Analyze(context.Context, Request) (Result, error) {
	c.calls.Add(1)
	return Result{}, fmt.Errorf("%w: 429 too many requests", ErrQuotaExceeded)
}

func TestQuotaExceededStopsPass(t *testing.T) {
	t.Parallel()

	for _, concurrency := range []int{1, 4} {
		client := &quotaClient{}
		nodes := make([]*model.Node, 50)
		for i := range nodes {
			name := fmt.Sprintf("f%d", i)
			nodes[i] = fn(name, "function "+name+"() {}")
		}

		var (
			mu     sync.Mutex
			events []model.ScanProgress
		)
		stats, err := NewAnalyzer(client, nil, Config{Concurrency: concurrency}, nil).Run(context.Background(), nodes,
			func(p model.ScanProgress) {
				mu.Lock()
				defer mu.Unlock()
				events = append(events, p)
			})
		require.NoError(t, err)
		assert.LessOrEqual(t, int(client.calls.Load()), concurrency)
		assert.Equal(t, 50, stats.Failed)
		assert.Zero(t, stats.Analyzed)
		for _, n := range nodes {
			assert.Nil(t, n.Function.Behavioral)
		}
		require.Len(t, events, 50, "every node is reported")
		for _, e := range events {
			assert.Contains(t, e.Error, ErrQuotaExceeded.Error())
		}
	}
}

func TestSharedRequestCountsOnce(t *testing.T) {
	t.Parallel()

	client := &countingClient{delay: 50 * time.Millisecond}
	src := "function twin() { return 2; }"
	nodes := []*model.Node{fn("a", src), fn("b", src)}

	var (
		mu     sync.Mutex
		cached int
	)
	stats, err := NewAnalyzer(client, nil, Config{Concurrency: 5}, nil).Run(context.Background(), nodes,
		func(p model.ScanProgress) {
			mu.Lock()
			defer mu.Unlock()
			if p.FromCache {
				cached++
			}
		})
	require.NoError(t, err)
	assert.Equal(t, int32(1), client.calls.Load())
	assert.Equal(t, 1, stats.Analyzed, "the request that went out is not a cache hit")
	assert.Equal(t, 1, stats.FromCache)
	assert.Equal(t, 1, cached)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	client := &countingClient{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAnalyzer(client, nil, Config{}, nil).Run(ctx, []*model.Node{fn("f", "x")}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), client.calls.Load())
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	res, err := ParseResponse("```json\n{\"summary\": \"Writes the\\n user row\", \"flags\": {\"databaseWrite\": true}}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Writes the user row", res.Summary)
	assert.True(t, res.Flags.DatabaseWrite)
	assert.True(t, res.Flags.HasSideEffects)

	_, err = ParseResponse("   ")
	assert.ErrorIs(t, err, ErrEmptyResponse)
	_, err = ParseResponse(`{"summary": ""}`)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	_, err = ParseResponse("not json")
	assert.Error(t, err)

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	res, err = ParseResponse(`{"summary": "` + string(long) + `"}`)
	require.NoError(t, err)
	assert.Len(t, []rune(res.Summary), maxSummaryLen)
}

func TestUserPromptTruncates(t *testing.T) {
	t.Parallel()

	code := make([]byte, maxPromptCode*2)
	for i := range code {
		code[i] = 'x'
	}
	p := userPrompt(Request{Name: "f", FilePath: "a.ts", Code: string(code)})
	assert.Contains(t, p, truncateMarker)
	assert.Less(t, len(p), maxPromptCode+200)
}

func TestReasoningModel(t *testing.T) {
	t.Parallel()

	assert.True(t, reasoningModel("o3-mini"))
	assert.True(t, reasoningModel("gpt-5-nano"))
	assert.False(t, reasoningModel("gpt-4o-mini"))
}
