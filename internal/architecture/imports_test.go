package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type violation struct {
	file string
	imp  string
	rule string
}

// walkImports calls visit for every import of every non-test Go file under
// internal/.
func walkImports(t *testing.T, visit func(rel, imp string)) string {
	t.Helper()

	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root, err := findModuleRoot(start)
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}

	modulePath, err := readModulePath(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("read module path: %v", err)
	}

	internalDir := filepath.Join(root, "internal")
	fset := token.NewFileSet()

	walkErr := filepath.WalkDir(internalDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "vendor", "node_modules", ".gocache":
				return filepath.SkipDir
			default:
				return nil
			}
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, spec := range f.Imports {
			if spec == nil || spec.Path == nil {
				continue
			}
			imp, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				continue
			}
			visit(rel, imp)
		}
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk internal/: %v", walkErr)
	}
	return modulePath
}

func report(t *testing.T, title string, violations []violation) {
	t.Helper()
	if len(violations) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString(title + ":\n")
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s imports %q (disallowed: %q)\n", v.file, v.imp, v.rule)
	}
	t.Fatal(b.String())
}

func TestImportBoundaries(t *testing.T) {
	type edge struct{ rel, imp string }
	var edges []edge
	modulePath := walkImports(t, func(rel, imp string) {
		edges = append(edges, edge{rel, imp})
	})

	var violations []violation
	for _, e := range edges {
		layer := layerFor(e.rel)
		if layer == "" {
			continue
		}
		for _, bad := range disallowedImports(modulePath, layer) {
			if strings.HasPrefix(e.imp, bad) {
				violations = append(violations, violation{file: e.rel, imp: e.imp, rule: bad})
				break
			}
		}
	}
	report(t, "import boundary violations", violations)
}

// The pipeline talks to the lock and the archive through its own interfaces;
// only the composition root builds the concrete backends.
func TestConcreteBackendsOnlyInApp(t *testing.T) {
	type edge struct{ rel, imp string }
	var edges []edge
	modulePath := walkImports(t, func(rel, imp string) {
		edges = append(edges, edge{rel, imp})
	})

	backends := []string{
		modulePath + "/internal/clients/redis",
		modulePath + "/internal/platform/gcp",
	}
	var violations []violation
	for _, e := range edges {
		if strings.HasPrefix(e.rel, "internal/app/") {
			continue
		}
		for _, b := range backends {
			if e.imp == b {
				violations = append(violations, violation{file: e.rel, imp: e.imp, rule: b})
			}
		}
	}
	report(t, "concrete backends imported outside internal/app", violations)
}

func layerFor(rel string) string {
	for _, layer := range []string{"pkg", "platform", "domain", "data", "clients", "observability", "jobs", "http"} {
		if strings.HasPrefix(rel, "internal/"+layer+"/") {
			return layer
		}
	}
	return ""
}

func disallowedImports(modulePath string, layer string) []string {
	var names []string
	switch layer {
	case "pkg":
		names = []string{"app", "http", "jobs", "observability", "clients", "data", "domain", "platform"}
	case "platform":
		names = []string{"app", "http", "jobs", "observability", "clients", "data"}
	case "domain":
		names = []string{"app", "http", "jobs", "observability", "clients", "data", "platform"}
	case "data":
		names = []string{"app", "http", "jobs", "observability", "clients"}
	case "clients":
		names = []string{"app", "http", "jobs", "observability", "data"}
	case "observability":
		names = []string{"app", "http", "jobs"}
	case "jobs":
		names = []string{"app", "http", "observability"}
	case "http":
		names = []string{"app", "data"}
	default:
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, modulePath+"/internal/"+n+"/")
	}
	return out
}

func findModuleRoot(start string) (string, error) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found from %s", start)
		}
		dir = parent
	}
}

func readModulePath(goModPath string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if !strings.HasPrefix(line, "module ") {
			continue
		}
		mp := strings.TrimSpace(strings.TrimPrefix(line, "module "))
		if mp == "" {
			return "", fmt.Errorf("empty module path in %s", goModPath)
		}
		return mp, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("module path not found in %s", goModPath)
}
