package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/surveyor/internal/model"
	"github.com/phobologic/surveyor/internal/storage"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(1<<20), cfg.Scan.MaxFileSize)
	assert.Equal(t, model.ClusterFolder, cfg.Clusters.Method)
	assert.Equal(t, storage.DefaultPath, cfg.Storage.Path)
	assert.Equal(t, 0.85, cfg.Warnings.DuplicateThreshold)
	assert.False(t, cfg.AnalyzerEnabled())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root, "")
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, Default().Analyzer, cfg.Analyzer)
}

func TestLoadYAML(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "surveyor.yaml", `
scan:
  excludeGlobs: ["vendor/"]
  functionCycles: true
  pathAliases:
    - pattern: "@App/*"
      targets: ["src/app/*"]
warnings:
  largeFileThreshold: 200
  extraSecurityRules:
    - name: todo-secret
      pattern: "SECRET_[A-Z]+"
clusters:
  method: manual
  manual:
    - name: API
      patterns: ["src/api/**"]
analyzer:
  model: local-model
  timeout: 5s
`)
	cfg, err := Load(root, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "surveyor.yaml"), cfg.File)
	assert.Equal(t, []string{"vendor/"}, cfg.Scan.ExcludeGlobs)
	assert.True(t, cfg.Scan.FunctionCycles)
	require.Len(t, cfg.Scan.PathAliases, 1)
	assert.Equal(t, "@App/*", cfg.Scan.PathAliases[0].Pattern, "pattern case is preserved")
	assert.Equal(t, 200, cfg.Warnings.LargeFileThreshold)
	assert.True(t, cfg.Warnings.OrphanedCode, "unset keys keep their defaults")
	require.Len(t, cfg.Warnings.ExtraSecurityRules, 1)
	assert.Equal(t, model.ClusterManual, cfg.Clusters.Method)
	require.Len(t, cfg.Clusters.Manual, 1)
	assert.Equal(t, []string{"src/api/**"}, cfg.Clusters.Manual[0].Patterns)
	assert.Equal(t, "local-model", cfg.Analyzer.Model)
	assert.Equal(t, 5*time.Second, cfg.Analyzer.Timeout)
	assert.Equal(t, 256, cfg.Analyzer.MaxTokens)

	opts, err := cfg.ScanOptions(root)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"@App/*": {"src/app/*"}}, opts.Graph.Aliases)
	assert.True(t, opts.Graph.FunctionCycles)
	assert.Equal(t, []string{"vendor/"}, opts.Discover.ExcludeGlobs)
}

func TestLoadDotFileAndExplicitPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".surveyor.yaml", "logging:\n  level: debug\n")
	cfg, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)

	other := writeFile(t, t.TempDir(), "custom.yaml", "logging:\n  level: error\n")
	cfg, err = Load(root, other)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)

	_, err = Load(root, filepath.Join(root, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SURVEYOR_ANALYZER_APIKEY", "sk-test")
	t.Setenv("SURVEYOR_ANALYZER_CONCURRENCY", "9")
	t.Setenv("SURVEYOR_SUMMARY_MAXL2CHARS", "1234")

	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Analyzer.APIKey)
	assert.Equal(t, 9, cfg.Analyzer.Concurrency)
	assert.Equal(t, 1234, cfg.Summary.MaxL2Chars)
	assert.True(t, cfg.AnalyzerEnabled())
}

func TestLoadInvalid(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "surveyor.yaml", "clusters:\n  method: alphabetical\n")
	_, err := Load(root, "")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "clusters.method")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative workers", func(c *Config) { c.Scan.Workers = -1 }, "scan.workers"},
		{"empty alias", func(c *Config) { c.Scan.PathAliases = []Alias{{Pattern: "@/*"}} }, "scan.pathAliases[0]"},
		{"zero threshold", func(c *Config) { c.Warnings.DuplicateThreshold = 0 }, "warnings.duplicateThreshold"},
		{"threshold above one", func(c *Config) { c.Warnings.DuplicateThreshold = 1.5 }, "warnings.duplicateThreshold"},
		{"manual without definitions", func(c *Config) { c.Clusters.Method = model.ClusterManual }, "clusters.manual"},
		{"inverted ratios", func(c *Config) { c.Clusters.WarningRatio = 0.5 }, "clusters.criticalRatio"},
		{"hot temperature", func(c *Config) { c.Analyzer.Temperature = 3 }, "analyzer.temperature"},
		{"negative concurrency", func(c *Config) { c.Analyzer.Concurrency = -2 }, "analyzer.concurrency"},
		{"bucketless artifacts", func(c *Config) { c.Artifacts.Endpoint = "localhost:9000" }, "artifacts.bucket"},
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "surveyor.yaml")
	require.NoError(t, WriteTemplate(p, false))
	assert.Error(t, WriteTemplate(p, false), "refuses to overwrite")
	require.NoError(t, WriteTemplate(p, true))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# surveyor configuration")
	assert.Contains(t, string(data), "timeout: 30s")

	cfg, err := Load(root, "")
	require.NoError(t, err)
	want := Default()
	assert.Equal(t, p, cfg.File)
	assert.Equal(t, want.Scan.MaxFileSize, cfg.Scan.MaxFileSize)
	assert.Equal(t, want.Warnings.DuplicateThreshold, cfg.Warnings.DuplicateThreshold)
	assert.Equal(t, want.Warnings.MissingTypes, cfg.Warnings.MissingTypes)
	assert.Empty(t, cfg.Warnings.ExtraSecurityRules)
	assert.Equal(t, want.Clusters.Method, cfg.Clusters.Method)
	assert.Equal(t, want.Analyzer, cfg.Analyzer)
	assert.Equal(t, want.Summary, cfg.Summary)
}
