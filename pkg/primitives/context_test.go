package primitives_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mek-labs/kernel/pkg/primitives"
)

func TestNewContext_FailsClosedOnMissingConfidence(t *testing.T) {
	_, err := primitives.NewContext(primitives.ContextParams{
		IntentName: "file.read",
	}, primitives.WallClock{})
	assert.ErrorIs(t, err, primitives.ErrMissingConfidence)
}

func TestNewContext_FailsClosedOnOutOfRangeConfidence(t *testing.T) {
	tooHigh := 1.5
	_, err := primitives.NewContext(primitives.ContextParams{
		Confidence: &tooHigh,
		IntentName: "file.read",
	}, primitives.WallClock{})
	assert.ErrorIs(t, err, primitives.ErrInvalidConfidence)
}

func TestNewContext_FailsClosedOnMissingIntent(t *testing.T) {
	c := 0.9
	_, err := primitives.NewContext(primitives.ContextParams{
		Confidence: &c,
	}, primitives.WallClock{})
	assert.ErrorIs(t, err, primitives.ErrMissingIntent)
}

func TestNewContext_GeneratesIDWhenEmpty(t *testing.T) {
	c := 0.9
	ctx, err := primitives.NewContext(primitives.ContextParams{
		Confidence: &c,
		IntentName: "file.read",
	}, primitives.WallClock{})
	require.NoError(t, err)
	assert.NotEmpty(t, ctx.ID())
}

func TestContext_Fields_DefensiveCopy(t *testing.T) {
	c := 0.9
	fields := map[string]any{"path": "/tmp/x"}
	ctx, err := primitives.NewContext(primitives.ContextParams{
		Confidence: &c,
		IntentName: "file.read",
		Fields:     fields,
	}, primitives.WallClock{})
	require.NoError(t, err)

	out := ctx.Fields()
	out["path"] = "/mutated"
	again := ctx.Fields()
	assert.Equal(t, "/tmp/x", again["path"], "mutating a returned Fields map must not affect the Context")

	fields["path"] = "/also-mutated"
	assert.Equal(t, "/tmp/x", ctx.Fields()["path"], "mutating the caller's original map must not affect the Context")
}
