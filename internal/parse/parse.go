// Package parse turns source files into surveyor nodes using tree-sitter.
package parse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/surveyor/internal/lang"
	"github.com/phobologic/surveyor/internal/model"
)

var (
	// ErrUnsupported is returned for files with no registered language.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrSyntax is returned when the syntax tree contains errors.
	ErrSyntax = errors.New("syntax error")
	// ErrTooLarge is returned for files above the size limit.
	ErrTooLarge = errors.New("file too large")
)

// Parser turns one source file into a file node plus its function and class
// children. relPath is slash-separated and relative to root.
type Parser interface {
	ParseFile(ctx context.Context, root, relPath string) (*model.ParsedFile, error)
}

// Error is a failure to parse a single file. Line is 0 when unknown.
type Error struct {
	Path string
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// TreeSitter is a Parser backed by the registered tree-sitter languages.
// It is safe for concurrent use; parsers are pooled per language.
type TreeSitter struct {
	maxFileSize int64
	pools       map[string]*sync.Pool
}

// NewTreeSitter creates a TreeSitter parser. Files larger than maxFileSize
// bytes are rejected; zero disables the limit.
func NewTreeSitter(maxFileSize int64) *TreeSitter {
	pools := make(map[string]*sync.Pool, len(lang.Languages))
	for name, l := range lang.Languages {
		l := l
		pools[name] = &sync.Pool{New: func() any { return l.NewParser() }}
	}
	return &TreeSitter{maxFileSize: maxFileSize, pools: pools}
}

// ParseFile implements Parser.
func (p *TreeSitter) ParseFile(ctx context.Context, root, relPath string) (*model.ParsedFile, error) {
	langName := lang.ForExtension(filepath.Ext(relPath))
	if langName == "" {
		return nil, &Error{Path: relPath, Err: ErrUnsupported}
	}
	absPath := filepath.Join(root, filepath.FromSlash(relPath))
	if p.maxFileSize > 0 {
		if fi, err := os.Stat(absPath); err == nil && fi.Size() > p.maxFileSize {
			return nil, &Error{Path: relPath, Err: fmt.Errorf("%w (>%d bytes)", ErrTooLarge, p.maxFileSize)}
		}
	}
	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &Error{Path: relPath, Err: err}
	}
	return p.ParseSource(ctx, langName, relPath, source)
}

// ParseSource parses in-memory source as the named language.
func (p *TreeSitter) ParseSource(ctx context.Context, langName, relPath string, source []byte) (*model.ParsedFile, error) {
	l := lang.Languages[langName]
	pool := p.pools[langName]
	if l == nil || pool == nil {
		return nil, &Error{Path: relPath, Err: ErrUnsupported}
	}
	parser := pool.Get().(*sitter.Parser)
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &Error{Path: relPath, Err: fmt.Errorf("parsing: %w", err)}
	}
	defer tree.Close()

	root := tree.RootNode()
	if line := lang.FirstError(root); line > 0 {
		return nil, &Error{Path: relPath, Line: line, Err: ErrSyntax}
	}
	return l.Extract(root, source, relPath), nil
}

// Result is the outcome of parsing one file.
type Result struct {
	Path string
	File *model.ParsedFile
	Err  error
}

// All parses paths with a pool of workers and returns one Result per path in
// input order. Cancellation is checked before each file; files not reached
// carry ctx's error. onFile, if set, is called after each file completes and
// must be safe for concurrent use.
func All(ctx context.Context, p Parser, root string, paths []string, workers int, onFile func(Result)) []Result {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	type indexed struct {
		index int
		res   Result
	}

	work := make(chan int, len(paths))
	results := make(chan indexed, len(paths))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				res := Result{Path: paths[idx]}
				if err := ctx.Err(); err != nil {
					res.Err = err
				} else {
					res.File, res.Err = p.ParseFile(ctx, root, paths[idx])
				}
				if onFile != nil && ctx.Err() == nil {
					onFile(res)
				}
				results <- indexed{index: idx, res: res}
			}
		}()
	}

	for i := range paths {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]Result, len(paths))
	for r := range results {
		out[r.index] = r.res
	}
	return out
}
