package primitives_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mek-labs/kernel/pkg/primitives"
)

func TestCapabilityContract_MatchesFieldSet(t *testing.T) {
	c, err := primitives.NewCapabilityContract(primitives.CapabilityContractParams{
		Name:                  "file.read",
		ConsequenceLevel:      primitives.ConsequenceMedium,
		RequiredContextFields: []string{"path"},
	})
	require.NoError(t, err)

	assert.True(t, c.MatchesFieldSet(map[string]any{"path": "/tmp/x"}))
	assert.False(t, c.MatchesFieldSet(map[string]any{}), "missing field must not match")
	assert.False(t, c.MatchesFieldSet(map[string]any{"path": "/tmp/x", "extra": 1}), "extra field must not match")
}

func TestCapabilityContract_CompatibleRedefinition(t *testing.T) {
	original, err := primitives.NewCapabilityContract(primitives.CapabilityContractParams{
		Name:                  "file.read",
		ConsequenceLevel:      primitives.ConsequenceMedium,
		RequiredContextFields: []string{"path"},
		Version:               "1.0.0",
	})
	require.NoError(t, err)

	sameShapeNewer, err := primitives.NewCapabilityContract(primitives.CapabilityContractParams{
		Name:                  "file.read",
		ConsequenceLevel:      primitives.ConsequenceMedium,
		RequiredContextFields: []string{"path"},
		Version:               "1.1.0",
	})
	require.NoError(t, err)
	assert.True(t, original.CompatibleRedefinition(sameShapeNewer))

	changedConsequence, err := primitives.NewCapabilityContract(primitives.CapabilityContractParams{
		Name:                  "file.read",
		ConsequenceLevel:      primitives.ConsequenceHigh,
		RequiredContextFields: []string{"path"},
		Version:               "1.1.0",
	})
	require.NoError(t, err)
	assert.False(t, original.CompatibleRedefinition(changedConsequence), "a consequence-level change is an incompatible redefinition")

	olderVersion, err := primitives.NewCapabilityContract(primitives.CapabilityContractParams{
		Name:                  "file.read",
		ConsequenceLevel:      primitives.ConsequenceMedium,
		RequiredContextFields: []string{"path"},
		Version:               "0.9.0",
	})
	require.NoError(t, err)
	assert.False(t, original.CompatibleRedefinition(olderVersion), "a version downgrade is an incompatible redefinition")
}

func TestCapabilityContract_ValidateSchema(t *testing.T) {
	c, err := primitives.NewCapabilityContract(primitives.CapabilityContractParams{
		Name:                  "fs.write",
		ConsequenceLevel:      primitives.ConsequenceHigh,
		RequiredContextFields: []string{"path", "content"},
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"content": {"type": "string", "maxLength": 4}
			}
		}`,
	})
	require.NoError(t, err)

	assert.NoError(t, c.ValidateSchema(map[string]any{"path": "/tmp/x", "content": "ok"}))
	assert.Error(t, c.ValidateSchema(map[string]any{"path": "/tmp/x", "content": "way too long"}))
}
