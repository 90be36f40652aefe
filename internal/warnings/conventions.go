package warnings

import (
	"path"
	"strings"

	"github.com/phobologic/surveyor/internal/discover"
	"github.com/phobologic/surveyor/internal/model"
)

// entryNames are function names frameworks and runtimes call by convention.
var entryNames = map[string]bool{
	"main":      true,
	"init":      true,
	"setup":     true,
	"teardown":  true,
	"bootstrap": true,
	"handler":   true,
	"default":   true,
	"activate":  true,
	// Next.js / Remix data hooks
	"getServerSideProps": true,
	"getStaticProps":     true,
	"getStaticPaths":     true,
	"generateMetadata":   true,
	"loader":             true,
	"action":             true,
	"middleware":         true,
	// test lifecycle
	"beforeAll":  true,
	"afterAll":   true,
	"beforeEach": true,
	"afterEach":  true,
	"setUp":      true,
	"tearDown":   true,
	"setUpClass": true,
}

// generatedMarkers are path fragments of generated code.
var generatedMarkers = []string{
	".generated.",
	".gen.",
	"_pb2.py",
	"_pb2_grpc.py",
	"_pb.js",
	"_pb.d.ts",
	"__generated__/",
	"generated/",
	"migrations/",
	".d.ts",
}

// isEntryPoint reports whether n is reached by a framework or runtime rather
// than by code in the project.
func isEntryPoint(n *model.Node) bool {
	name := n.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	switch {
	case entryNames[name]:
		return true
	case strings.HasPrefix(name, "test") || strings.HasPrefix(name, "Test"):
		return true
	case strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__"):
		return true
	}
	// Decorators register the function with a framework (routes, fixtures,
	// CLI commands).
	if n.Function != nil && strings.HasPrefix(strings.TrimSpace(n.Function.Source), "@") {
		return true
	}
	return isConventionFile(n.FilePath)
}

// isConventionFile reports files whose symbols are consumed by tooling:
// tests, generated code and framework config.
func isConventionFile(rel string) bool {
	if discover.IsTestFile(rel) {
		return true
	}
	lower := strings.ToLower(rel)
	for _, m := range generatedMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	base := path.Base(lower)
	stem := strings.TrimSuffix(base, path.Ext(base))
	switch {
	case strings.HasSuffix(stem, ".config"), strings.HasPrefix(stem, "conftest"),
		stem == "setup", stem == "manage", stem == "__main__":
		return true
	}
	return false
}

// isPackageEntry reports barrel and package init files, which exist to
// define a public surface.
func isPackageEntry(rel string) bool {
	base := path.Base(rel)
	stem := strings.TrimSuffix(base, path.Ext(base))
	return stem == "index" || base == "__init__.py"
}
