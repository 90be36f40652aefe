package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplySection(t *testing.T) {
	t.Parallel()

	block := sentinelStart + "\nnew\n" + sentinelEnd
	cases := []struct {
		name, content, want string
	}{
		{"empty", "", block + "\n"},
		{"append", "# Notes\n", "# Notes\n\n" + block + "\n"},
		{"append without newline", "# Notes", "# Notes\n\n" + block + "\n"},
		{"append trims blank lines", "# Notes\n\n\n", "# Notes\n\n" + block + "\n"},
		{
			"replace",
			"# Notes\n\n" + sentinelStart + "\nold\n" + sentinelEnd + "\n\n## Build\n",
			"# Notes\n\n" + block + "\n\n## Build\n",
		},
		{
			"truncated block",
			"# Notes\n\n" + sentinelStart + "\nold and cut off",
			"# Notes\n\n" + block + "\n",
		},
		{
			"stray end marker before block",
			sentinelEnd + "\n" + sentinelStart + "\nold\n" + sentinelEnd + "\n",
			sentinelEnd + "\n" + block + "\n",
		},
	}
	for _, tc := range cases {
		if got := applySection(tc.content, block); got != tc.want {
			t.Errorf("%s:\ngot  %q\nwant %q", tc.name, got, tc.want)
		}
		if got := applySection(tc.want, block); got != tc.want {
			t.Errorf("%s: reapplying changed the file:\n%q", tc.name, got)
		}
	}
}

func TestGeneratedSectionDocumentsScan(t *testing.T) {
	t.Parallel()

	section := generateSection()
	if !strings.HasPrefix(section, sentinelStart) || !strings.HasSuffix(section, sentinelEnd) {
		t.Fatalf("section not wrapped in markers:\n%s", section)
	}
	for _, want := range []string{
		"surveyor version",
		"surveyor scan --level l0",
		"--format toon -n 20",
		"--file api",
		"--symbol Login",
		"surveyor scan --save && surveyor list",
		"surveyor scan --help",
		"PageRank",
	} {
		if !strings.Contains(section, want) {
			t.Errorf("section missing %q", want)
		}
	}
}

func TestInitWritesClaudeFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "CLAUDE.md")
	notes := "# Service\n\nRun make test before pushing.\n"
	writeTestFile(t, dir, "CLAUDE.md", notes)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", path}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(stderr.String(), "wrote surveyor section to "+path) {
		t.Errorf("stderr = %q", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("init printed to stdout: %q", stdout.String())
	}

	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(first), notes) {
		t.Errorf("existing notes not kept:\n%s", first)
	}
	if !strings.Contains(string(first), generateSection()) {
		t.Errorf("section not written:\n%s", first)
	}

	if err := run([]string{"init", path}, &stdout, &stderr); err != nil {
		t.Fatalf("second init: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(second) != string(first) {
		t.Errorf("second init changed the file:\n%s", second)
	}
	if n := strings.Count(string(second), sentinelStart); n != 1 {
		t.Errorf("expected one surveyor block, found %d", n)
	}
}

func TestInitCreatesMissingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "CLAUDE.md")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", path}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("CLAUDE.md not created: %v", err)
	}
	if string(data) != generateSection()+"\n" {
		t.Errorf("unexpected new file:\n%s", data)
	}
}

func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "CLAUDE.md")
	writeTestFile(t, dir, "CLAUDE.md", "# Service\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", "--dry-run", path}, &stdout, &stderr); err != nil {
		t.Fatalf("init --dry-run: %v", err)
	}
	if got, want := stdout.String(), applySection("# Service\n", generateSection()); got != want {
		t.Errorf("dry run printed:\n%s\nwant:\n%s", got, want)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "# Service\n" {
		t.Errorf("dry run modified the file:\n%s", data)
	}

	stdout.Reset()
	if err := run([]string{"init", "--dry-run"}, &stdout, &stderr); err != nil {
		t.Fatalf("init --dry-run without path: %v", err)
	}
	if got := strings.TrimSuffix(stdout.String(), "\n"); got != generateSection() {
		t.Errorf("dry run without path should print only the section:\n%s", got)
	}
}

// TestConfigInit verifies that config init writes a loadable surveyor.yaml and
// refuses to overwrite it without --force.
func TestConfigInit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"config", "init", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("config init: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "surveyor.yaml"))
	if err != nil {
		t.Fatalf("surveyor.yaml not written: %v", err)
	}
	for _, key := range []string{"scan:", "warnings:", "analyzer:", "duplicateThreshold: 0.85"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("template missing %q", key)
		}
	}

	if err := run([]string{"config", "init", dir}, &stdout, &stderr); err == nil {
		t.Error("second config init without --force should fail")
	}
	if err := run([]string{"config", "init", "--force", dir}, &stdout, &stderr); err != nil {
		t.Errorf("config init --force: %v", err)
	}
}

// TestConfigShowRedactsSecrets verifies that config show never prints keys.
func TestConfigShowRedactsSecrets(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "surveyor.yaml", "analyzer:\n  apiKey: sk-very-secret\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"config", "show", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(stdout.String(), "sk-very-secret") {
		t.Error("api key leaked into config show output")
	}
	if !strings.Contains(stdout.String(), "apiKey: '********'") && !strings.Contains(stdout.String(), "apiKey: \"********\"") {
		t.Errorf("expected masked api key:\n%s", stdout.String())
	}
}
