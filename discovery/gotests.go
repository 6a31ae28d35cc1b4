package discovery

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// GoTestDiscoverer enumerates Test* functions in a Go package without an
// external framework, emitting "<package>::<TestName>" identifiers. Package
// paths may be repo-relative ("./pkg") or module-qualified, in which case the
// module path is resolved through go.mod.
type GoTestDiscoverer struct {
	// PkgPath is the package to scan, relative ("./...") or module-qualified.
	PkgPath string
	// WorkDir is the module root containing go.mod.
	WorkDir string
}

func (d *GoTestDiscoverer) Discover(_ context.Context) ([]TestID, error) {
	pkgDir, err := d.resolvePackageDir()
	if err != nil {
		return nil, err
	}

	names, err := findTestFunctions(pkgDir)
	if err != nil {
		return nil, err
	}

	ids := make([]TestID, 0, len(names))
	for _, name := range names {
		ids = append(ids, TestID(d.PkgPath+Separator+name))
	}
	return ids, nil
}

// resolvePackageDir maps a package path onto a directory under WorkDir.
func (d *GoTestDiscoverer) resolvePackageDir() (string, error) {
	if strings.HasPrefix(d.PkgPath, "./") {
		return filepath.Join(d.WorkDir, strings.TrimPrefix(d.PkgPath, "./")), nil
	}

	goModPath := filepath.Join(d.WorkDir, "go.mod")
	goModContent, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}

	modFile, err := modfile.Parse(goModPath, goModContent, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod: %w", err)
	}

	moduleName := modFile.Module.Mod.Path
	if moduleName == "" {
		return "", fmt.Errorf("could not find module name in go.mod")
	}
	if !strings.HasPrefix(d.PkgPath, moduleName) {
		return "", fmt.Errorf("package %s is not in module %s", d.PkgPath, moduleName)
	}

	relPath := strings.TrimPrefix(d.PkgPath, moduleName)
	if relPath == "" {
		relPath = "."
	}
	return filepath.Join(d.WorkDir, relPath), nil
}

// findTestFunctions parses every _test.go file in pkgDir and returns the names
// of its top-level Test* functions, excluding TestMain.
func findTestFunctions(pkgDir string) ([]string, error) {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}

	var testFunctions []string
	fset := token.NewFileSet()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		filePath := filepath.Join(pkgDir, entry.Name())
		f, err := parser.ParseFile(fset, filePath, nil, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}

		for _, decl := range f.Decls {
			funcDecl, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			if strings.HasPrefix(funcDecl.Name.Name, "Test") && funcDecl.Name.Name != "TestMain" {
				testFunctions = append(testFunctions, funcDecl.Name.Name)
			}
		}
	}

	return testFunctions, nil
}
