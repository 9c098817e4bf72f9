// Package testutil holds helpers that enforce package boundaries from tests.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// AssertNoDirectImports parses the non-test .go files in dir and fails if any
// import path satisfies forbidden. Build tags are ignored.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, "forbidden direct imports", reason, viols)
}

// AssertImportedOnlyBy loads every package matching pattern, tests included,
// and fails if a package outside allowed imports target or one of its
// subpackages. Packages under target itself are exempt.
func AssertImportedOnlyBy(t testing.TB, pattern, target string, allowed ...string) {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	failIfViolations(t, "forbidden imports of "+target, "only "+strings.Join(allowed, ", ")+" may wrap it",
		importedOnlyByViolations(pkgs, target, allowed))
}

// InternalImportForbidden matches any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// UnderPath reports whether path is prefix or one of its subpackages.
func UnderPath(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func importedOnlyByViolations(pkgs []*packages.Package, target string, allowed []string) []string {
	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		// Test binaries and external test packages belong to the package they test.
		path := strings.TrimSuffix(strings.TrimSuffix(pkg.PkgPath, ".test"), "_test")
		if UnderPath(path, target) || underAny(path, allowed) {
			continue
		}
		for importPath := range pkg.Imports {
			if UnderPath(importPath, target) {
				seen[pkg.PkgPath+": "+importPath] = struct{}{}
			}
		}
	}
	viols := make([]string, 0, len(seen))
	for v := range seen {
		viols = append(viols, v)
	}
	sort.Strings(viols)
	return viols
}

func underAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if UnderPath(path, p) {
			return true
		}
	}
	return false
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			ip := strings.Trim(imp.Path.Value, `"`)
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, what, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s (%s):\n%s", what, reason, strings.Join(viols, "\n"))
	}
}
