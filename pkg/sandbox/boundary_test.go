package sandbox

import "testing"

func TestCheckImport_FlagsForbiddenPrefixes(t *testing.T) {
	cases := []struct {
		importPath string
		forbidden  bool
	}{
		{"github.com/mek-labs/kernel/pkg/primitives", true},
		{"github.com/mek-labs/kernel/pkg/guard", true},
		{"github.com/mek-labs/kernel/pkg/authority", true},
		{"github.com/mek-labs/kernel/pkg/friction", true},
		{"github.com/mek-labs/kernel/pkg/canonicalize", false},
		{"github.com/mek-labs/kernel/pkg/merkle", false},
		{"github.com/tetratelabs/wazero", false},
	}

	for _, c := range cases {
		v := checkImport(c.importPath)
		if c.forbidden && v == nil {
			t.Errorf("expected %q to be flagged as a boundary violation, got none", c.importPath)
		}
		if !c.forbidden && v != nil {
			t.Errorf("expected %q to be permitted, got violation: %+v", c.importPath, v)
		}
	}
}

func TestCheckImport_DoesNotFlagPrefixCollisions(t *testing.T) {
	// A package that merely starts with the same string but isn't a path
	// segment boundary must not be flagged (e.g. "pkg/guardrails" is not
	// "pkg/guard").
	if v := checkImport("github.com/mek-labs/kernel/pkg/guardrails"); v != nil {
		t.Errorf("checkImport should not match on a non-path-segment prefix collision, got %+v", v)
	}
}
