// Package purity statically enforces the architectural invariant that
// the compile path is pure: core packages must not reach the
// filesystem, the network, or the wall clock.
//
// It scans non-test Go sources with go/parser and reports two classes
// of violation: forbidden imports, and forbidden call expressions like
// time.Now(). The repository's test suite runs the check, so a
// violation fails the build.
package purity

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CorePackages are the directories (relative to the module root) bound
// by the purity invariant.
var CorePackages = []string{
	"pkg/canonical",
	"pkg/truth",
	"pkg/schema",
	"pkg/flow",
	"pkg/signing",
	"pkg/spatial",
}

// ForbiddenImports are import paths (or path prefixes) that imply I/O,
// network, or storage access.
var ForbiddenImports = []string{
	"os",
	"io/ioutil",
	"net",
	"net/http",
	"database/sql",
	"syscall",
	"os/exec",
	"github.com/kaori-protocol/kaori/pkg/claimtypes",
	"github.com/kaori-protocol/kaori/pkg/signalstore",
	"github.com/kaori-protocol/kaori/pkg/observability",
	"modernc.org/sqlite",
	"go.opentelemetry.io",
}

// allowedImports are exemptions from the prefix rules: pure parsing
// packages that share a prefix with I/O packages.
var allowedImports = map[string]bool{
	"net/url": true,
}

// forbiddenCalls are selector calls that read ambient state. The time
// package itself is allowed (types, parsing, arithmetic); reading the
// clock is not.
var forbiddenCalls = map[string]string{
	"time.Now":   "wall-clock read",
	"time.Since": "wall-clock read",
	"time.Until": "wall-clock read",
	"os.Getenv":  "environment read",
	"rand.Int":   "nondeterministic source",
}

// Violation is a single purity break.
type Violation struct {
	File   string
	Line   int
	What   string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s:%d: %s (%s)", v.File, v.Line, v.What, v.Detail)
}

// Check scans the core packages under root and returns all violations,
// sorted by (file, line).
func Check(root string) ([]Violation, error) {
	var violations []Violation
	fset := token.NewFileSet()

	for _, pkg := range CorePackages {
		dir := filepath.Join(root, pkg)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("purity: read %s: %w", dir, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
				continue
			}
			path := filepath.Join(dir, name)
			fileViolations, err := checkFile(fset, path)
			if err != nil {
				return nil, err
			}
			violations = append(violations, fileViolations...)
		}
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		return violations[i].Line < violations[j].Line
	})
	return violations, nil
}

func checkFile(fset *token.FileSet, path string) ([]Violation, error) {
	file, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("purity: parse %s: %w", path, err)
	}

	var violations []Violation

	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		if allowedImports[importPath] {
			continue
		}
		for _, forbidden := range ForbiddenImports {
			if importPath == forbidden || strings.HasPrefix(importPath, forbidden+"/") {
				violations = append(violations, Violation{
					File:   path,
					Line:   fset.Position(imp.Pos()).Line,
					What:   "forbidden import " + importPath,
					Detail: "core packages must not touch I/O, network, or storage",
				})
			}
		}
	}

	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		ident, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		name := ident.Name + "." + sel.Sel.Name
		if detail, forbidden := forbiddenCalls[name]; forbidden {
			violations = append(violations, Violation{
				File:   path,
				Line:   fset.Position(call.Pos()).Line,
				What:   "forbidden call " + name,
				Detail: detail,
			})
		}
		return true
	})

	return violations, nil
}

// Verify returns an error listing every violation, or nil when the core
// is clean.
func Verify(root string) error {
	violations, err := Check(root)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}
	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = v.String()
	}
	return fmt.Errorf("purity violations:\n%s", strings.Join(lines, "\n"))
}
