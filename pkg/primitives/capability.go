package primitives

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CapabilityContract is the frozen declaration of one capability the
// Guard can admit executions against. Contracts carry no execute
// function: the private implementation lives only in the Guard's
// internal registry (see pkg/guard), so no caller holding a
// CapabilityContract value can ever invoke the capability directly —
// this is what makes step 12 of the admission pipeline the only path
// to execution (P1, Unified authority).
type CapabilityContract struct {
	name                  string
	consequenceLevel      Consequence
	requiredContextFields map[string]struct{}
	schema                *jsonschema.Schema
	version               *semver.Version
}

// CapabilityContractParams is the input to NewCapabilityContract.
type CapabilityContractParams struct {
	Name                  string
	ConsequenceLevel      Consequence
	RequiredContextFields []string
	// SchemaJSON, if non-empty, is a JSON Schema (draft 2020-12) that the
	// Context's explicit fields must additionally satisfy — this is the
	// domain-stack enrichment beyond the spec's bare field-name set: a
	// finite field set catches missing/extra keys (spec's own wording),
	// the schema additionally catches wrong-shaped values.
	SchemaJSON string
	// Version is a semver string. Re-registering a capability with a
	// differing consequence level, a differing field set, or a lower
	// version is refused with CAPABILITY_REDEFINITION (see guard.Register).
	Version string
}

func NewCapabilityContract(p CapabilityContractParams) (*CapabilityContract, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("primitives: capability name is required")
	}
	if !p.ConsequenceLevel.Valid() {
		return nil, fmt.Errorf("primitives: invalid consequence level %q", p.ConsequenceLevel)
	}

	fields := make(map[string]struct{}, len(p.RequiredContextFields))
	for _, f := range p.RequiredContextFields {
		fields[f] = struct{}{}
	}

	var compiled *jsonschema.Schema
	if p.SchemaJSON != "" {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		url := "mem://capability/" + p.Name + "/fields.schema.json"
		if err := compiler.AddResource(url, strings.NewReader(p.SchemaJSON)); err != nil {
			return nil, fmt.Errorf("primitives: capability %q schema load failed: %w", p.Name, err)
		}
		s, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("primitives: capability %q schema compile failed: %w", p.Name, err)
		}
		compiled = s
	}

	version := p.Version
	if version == "" {
		version = "0.1.0"
	}
	sv, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("primitives: capability %q version %q invalid: %w", p.Name, version, err)
	}

	return &CapabilityContract{
		name:                  p.Name,
		consequenceLevel:      p.ConsequenceLevel,
		requiredContextFields: fields,
		schema:                compiled,
		version:               sv,
	}, nil
}

func (c *CapabilityContract) Name() string                 { return c.name }
func (c *CapabilityContract) ConsequenceLevel() Consequence { return c.consequenceLevel }
func (c *CapabilityContract) Version() *semver.Version      { return c.version }

func (c *CapabilityContract) RequiredContextFields() []string {
	out := make([]string, 0, len(c.requiredContextFields))
	for f := range c.requiredContextFields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// MatchesFieldSet reports whether the given field set is exactly the
// contract's required set — no extra, no missing (admission step 2).
func (c *CapabilityContract) MatchesFieldSet(fields map[string]any) bool {
	if len(fields) != len(c.requiredContextFields) {
		return false
	}
	for f := range fields {
		if _, ok := c.requiredContextFields[f]; !ok {
			return false
		}
	}
	return true
}

// ValidateSchema checks fields against the contract's JSON Schema, if
// one was registered. A contract with no schema always validates.
func (c *CapabilityContract) ValidateSchema(fields map[string]any) error {
	if c.schema == nil {
		return nil
	}
	return c.schema.Validate(fields)
}

// CompatibleRedefinition reports whether replacing this contract with
// candidate is a safe re-registration: same consequence level, same
// required field set, and candidate's version is not lower. Anything
// else is a CAPABILITY_REDEFINITION per §6.
func (c *CapabilityContract) CompatibleRedefinition(candidate *CapabilityContract) bool {
	if c.consequenceLevel != candidate.consequenceLevel {
		return false
	}
	if !equalFieldSets(c.requiredContextFields, candidate.requiredContextFields) {
		return false
	}
	return !candidate.version.LessThan(c.version)
}

func equalFieldSets(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
