package parse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseFileTypeScript(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "src/math.ts", "export function add(a: number, b: number): number {\n  return a + b;\n}\n")

	p := NewTreeSitter(0)
	pf, err := p.ParseFile(context.Background(), root, "src/math.ts")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if pf.File.ID != "file:src/math.ts" {
		t.Errorf("file ID = %q", pf.File.ID)
	}
	if pf.File.File.Language != "typescript" {
		t.Errorf("language = %q", pf.File.File.Language)
	}
	if pf.File.File.LineCount != 3 || pf.File.EndLine != 3 {
		t.Errorf("lines = %d/%d, want 3", pf.File.File.LineCount, pf.File.EndLine)
	}
	if len(pf.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(pf.Functions))
	}
	if pf.Functions[0].ID != "fn:src/math.ts#add:1" {
		t.Errorf("function ID = %q", pf.Functions[0].ID)
	}
}

func TestParseFilePython(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "sample.py", `def calculate_total(items):
    return sum(item['price'] for item in items if item['price'] > 0)

def get_user_name(user):
    return user.get('name', 'Unknown') if user else 'Unknown'
`)

	pf, err := NewTreeSitter(0).ParseFile(context.Background(), root, "sample.py")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(pf.Functions) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(pf.Functions))
	}
	if pf.Functions[1].Name != "get_user_name" || pf.Functions[1].Line != 4 {
		t.Errorf("second function = %s:%d", pf.Functions[1].Name, pf.Functions[1].Line)
	}
	if len(pf.File.File.Exports) != 2 {
		t.Errorf("public functions should be exported, got %+v", pf.File.File.Exports)
	}
}

func TestParseFileSyntaxError(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "bad.ts", "export function (\n")

	_, err := NewTreeSitter(0).ParseFile(context.Background(), root, "bad.ts")
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
	var perr *Error
	if !errors.As(err, &perr) || perr.Path != "bad.ts" || perr.Line == 0 {
		t.Errorf("unexpected error detail: %#v", err)
	}
}

func TestParseFileUnsupported(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "README.md", "# hi\n")

	_, err := NewTreeSitter(0).ParseFile(context.Background(), root, "README.md")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestParseFileTooLarge(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "big.js", "const a = 1;\nconst b = 2;\n")

	_, err := NewTreeSitter(10).ParseFile(context.Background(), root, "big.js")
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestParseFileMissing(t *testing.T) {
	t.Parallel()

	_, err := NewTreeSitter(0).ParseFile(context.Background(), t.TempDir(), "gone.ts")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestParseSourceStableIDs(t *testing.T) {
	t.Parallel()
	src := []byte("class A {\n  run() { return helper(); }\n}\nfunction helper() {}\n")
	p := NewTreeSitter(0)

	first, err := p.ParseSource(context.Background(), "typescript", "a.ts", src)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.ParseSource(context.Background(), "typescript", "a.ts", src)
	if err != nil {
		t.Fatal(err)
	}
	a, b := first.Nodes(), second.Nodes()
	if len(a) != len(b) || len(a) != 4 {
		t.Fatalf("expected 4 nodes twice, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("node %d: %q != %q", i, a[i].ID, b[i].ID)
		}
	}
}

func TestAllPreservesOrder(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	paths := []string{"a.ts", "b.py", "c.js", "d.ts"}
	writeFile(t, root, "a.ts", "export const a = 1;\n")
	writeFile(t, root, "b.py", "def b():\n    pass\n")
	writeFile(t, root, "c.js", "function c() {}\n")
	writeFile(t, root, "d.ts", "export function (\n")

	var calls atomic.Int32
	results := All(context.Background(), NewTreeSitter(0), root, paths, 2, func(Result) { calls.Add(1) })
	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}
	for i, r := range results {
		if r.Path != paths[i] {
			t.Errorf("result %d path = %q, want %q", i, r.Path, paths[i])
		}
	}
	if results[3].Err == nil {
		t.Error("expected syntax error for d.ts")
	}
	for _, r := range results[:3] {
		if r.Err != nil {
			t.Errorf("%s: %v", r.Path, r.Err)
		}
	}
	if calls.Load() != 4 {
		t.Errorf("onFile called %d times, want 4", calls.Load())
	}
}

func TestAllCancelled(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", "export const a = 1;\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := All(ctx, NewTreeSitter(0), root, []string{"a.ts"}, 1, nil)
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", results[0].Err)
	}
}
