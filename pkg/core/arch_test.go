package core_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const modulePath = "github.com/leapstack-labs/churnline"

// imports returns the import paths of the non-test Go files in dir, keyed
// by file name.
func imports(t *testing.T, dir string) map[string][]string {
	t.Helper()
	fset := token.NewFileSet()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", dir, err)
	}

	out := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") {
			continue
		}
		// Skip test files
		if strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			t.Errorf("Failed to parse %s: %v", path, err)
			continue
		}
		for _, imp := range f.Imports {
			out[entry.Name()] = append(out[entry.Name()], strings.Trim(imp.Path.Value, `"`))
		}
	}
	return out
}

// TestCoreImportsOnlyStdlib verifies pkg/core imports nothing but the
// standard library.
func TestCoreImportsOnlyStdlib(t *testing.T) {
	for file, paths := range imports(t, ".") {
		for _, p := range paths {
			// Stdlib paths have no dot in their first element
			if strings.Contains(strings.SplitN(p, "/", 2)[0], ".") {
				t.Errorf("%s imports forbidden package: %s", file, p)
			}
		}
	}
}

// TestServingDoesNotImportTraining verifies the serving path shares only
// the encoding packages with training, never the pipeline itself.
func TestServingDoesNotImportTraining(t *testing.T) {
	forbidden := []string{
		modulePath + "/internal/engine",
		modulePath + "/internal/cleaner",
		modulePath + "/internal/loader",
		modulePath + "/internal/validate",
		modulePath + "/internal/state",
	}
	for _, dir := range []string{"../../internal/serving", "../../internal/server"} {
		for file, paths := range imports(t, dir) {
			for _, p := range paths {
				for _, f := range forbidden {
					if p == f {
						t.Errorf("%s/%s imports training package %s", filepath.Base(dir), file, p)
					}
				}
			}
		}
	}
}
