// Package sandbox implements the Sandboxed Intelligence Boundary (spec
// §4.11, C11). It has two halves: a startup-time import-graph check
// that fails hard if an intelligence module's dependency closure
// reaches into kernel packages, and a wazero-backed execution boundary
// (see wasm.go) for running untrusted reasoning code with zero ambient
// authority.
//
// The import check is adapted from the teacher's
// kernel/boundary_assertions.go allowlist scanner, inverted: the
// teacher enumerated what the kernel itself may import; here we
// enumerate what an intelligence module must never import. Same
// go/build + strings mechanism, opposite direction of travel.
package sandbox

import (
	"fmt"
	"go/build"
	"strings"
)

// ForbiddenImportPrefixes names the kernel package groups an
// intelligence module must never reach, per §4.11: "it cannot import
// kernel primitives, authority store, Guard, snapshots, capability
// contracts, failure or evidence types."
var ForbiddenImportPrefixes = []string{
	"github.com/mek-labs/kernel/pkg/primitives",
	"github.com/mek-labs/kernel/pkg/authority",
	"github.com/mek-labs/kernel/pkg/guard",
	"github.com/mek-labs/kernel/pkg/snapshotstore",
	"github.com/mek-labs/kernel/pkg/failure",
	"github.com/mek-labs/kernel/pkg/evidence",
	"github.com/mek-labs/kernel/pkg/composition",
	"github.com/mek-labs/kernel/pkg/friction",
	"github.com/mek-labs/kernel/pkg/scope",
}

// BoundaryViolation is one forbidden import found in an intelligence
// module's own import list or its transitive closure.
type BoundaryViolation struct {
	Package    string
	ImportPath string
	Reason     string
}

func checkImport(importPath string) *BoundaryViolation {
	for _, prefix := range ForbiddenImportPrefixes {
		if importPath == prefix || strings.HasPrefix(importPath, prefix+"/") {
			return &BoundaryViolation{
				ImportPath: importPath,
				Reason:     fmt.Sprintf("import reaches into kernel authority surface %q", prefix),
			}
		}
	}
	return nil
}

// CheckModuleBoundary scans pkgPath's direct imports, and recurses into
// every non-stdlib import reachable from it, failing hard (returning a
// non-empty violation list) the moment any forbidden prefix appears
// anywhere in the closure — not just the module's own file.
func CheckModuleBoundary(pkgPath string) ([]BoundaryViolation, error) {
	seen := make(map[string]bool)
	var violations []BoundaryViolation
	var walk func(path string) error
	walk = func(path string) error {
		if seen[path] {
			return nil
		}
		seen[path] = true

		pkg, err := build.Import(path, "", 0)
		if err != nil {
			// Standard library or an already-vendored package that
			// build.Import cannot resolve from here; not this check's
			// concern.
			return nil
		}
		for _, imp := range pkg.Imports {
			if v := checkImport(imp); v != nil {
				v.Package = path
				violations = append(violations, *v)
				continue
			}
			if strings.Contains(imp, ".") { // heuristic: has a domain, not stdlib
				if err := walk(imp); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(pkgPath); err != nil {
		return nil, err
	}
	return violations, nil
}

// AssertModuleBoundary panics if pkgPath's import closure reaches a
// forbidden kernel package. Intended for a process's startup path
// (spec: "verified by a startup check... fails hard"), never for use
// inside the admission pipeline itself.
func AssertModuleBoundary(pkgPath string) {
	violations, err := CheckModuleBoundary(pkgPath)
	if err != nil {
		panic(fmt.Sprintf("sandbox: boundary check failed: %v", err))
	}
	if len(violations) > 0 {
		panic(fmt.Sprintf("sandbox: intelligence module %q violates the kernel boundary: %+v", pkgPath, violations))
	}
}
