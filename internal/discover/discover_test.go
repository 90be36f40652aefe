package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverSourceFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.py", "print('hello')")
	writeFile(t, dir, "lib/util.ts", "export const a = 1;")
	writeFile(t, dir, "web/App.tsx", "export default () => null;")
	// Unsupported file should be ignored
	writeFile(t, dir, "readme.txt", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.py", "secret")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %v", len(entries), entries)
	}

	// Should be sorted and slash-separated
	want := []FileEntry{
		{Path: "lib/util.ts", Language: "typescript"},
		{Path: "main.py", Language: "python"},
		{Path: "web/App.tsx", Language: "tsx"},
	}
	for i, w := range want {
		if entries[i] != w {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], w)
		}
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "node_modules/pkg/index.js", "pass")
	writeFile(t, dir, "__pycache__/cached.py", "pass")
	writeFile(t, dir, ".hidden/secret.py", "pass")
	writeFile(t, dir, "dist/bundle.js", "pass")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Path != "main.py" {
		t.Errorf("expected main.py, got %q", entries[0].Path)
	}
}

func TestDiscoverExtensionFilters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "lib.ts", "pass")
	writeFile(t, dir, "old.js", "pass")

	entries, err := Files(dir, Options{IncludeExtensions: []string{"py"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "main.py" {
		t.Fatalf("include filter: got %v", entries)
	}

	entries, err = Files(dir, Options{ExcludeExtensions: []string{".JS"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("exclude filter: expected 2 entries, got %v", entries)
	}
}

func TestDiscoverExcludeGlobs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "src/app.ts", "pass")
	writeFile(t, dir, "src/generated/api.ts", "pass")
	writeFile(t, dir, "src/types.d.ts", "pass")

	entries, err := Files(dir, Options{ExcludeGlobs: []string{"generated/", "*.d.ts"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "src/app.ts" {
		t.Fatalf("expected only src/app.ts, got %v", entries)
	}
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "out/\n")
	writeFile(t, dir, "app.js", "pass")
	writeFile(t, dir, "out/app.js", "pass")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "app.js" {
		t.Fatalf("expected only app.js, got %v", entries)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	t.Parallel()

	if _, err := Files(filepath.Join(t.TempDir(), "missing"), Options{}); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.py", "pass")

	// Create symlink
	err := os.Symlink(filepath.Join(dir, "real.py"), filepath.Join(dir, "link.py"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry (no symlink), got %d", len(entries))
	}
	if entries[0].Path != "real.py" {
		t.Errorf("expected real.py, got %q", entries[0].Path)
	}
}

func TestIsTestFile(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path string
		want bool
	}{
		// Test directory components
		{"tests/test_scenes.py", true},
		{"tests/conftest.py", true},
		{"src/__tests__/foo.js", true},
		{"spec/models/user.ts", true},
		// Filename patterns
		{"test_helpers.py", true},
		{"foo.test.js", true},
		{"foo.spec.ts", true},
		{"api_test.py", true},
		// Production files
		{"loom/models.py", false},
		{"src/routes/scenes.ts", false},
		{"conftest.py", false},      // top-level conftest, not in tests/
		{"testing_utils.ts", false}, // contains "testing" but not a test pattern
		{"src/contest.ts", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got := IsTestFile(tc.path)
			if got != tc.want {
				t.Errorf("IsTestFile(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
