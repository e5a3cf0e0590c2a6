package sandbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mek-labs/kernel/pkg/sandbox"
)

func TestNewRuntime_ConstructsWithMemoryLimit(t *testing.T) {
	ctx := context.Background()
	rt, err := sandbox.NewRuntime(ctx, sandbox.RuntimeConfig{MemoryLimitBytes: 16 * 1024 * 1024})
	require.NoError(t, err)
	defer rt.Close(ctx)
}

// TestRunProposal_RefusesMalformedModule confirms the sandbox reports a
// compile error rather than attempting to execute non-WASM bytes.
func TestRunProposal_RefusesMalformedModule(t *testing.T) {
	ctx := context.Background()
	rt, err := sandbox.NewRuntime(ctx, sandbox.RuntimeConfig{})
	require.NoError(t, err)
	defer rt.Close(ctx)

	_, err = rt.RunProposal(ctx, []byte("not a real wasm module"), nil)
	assert.Error(t, err)
}

func TestRunProposal_MalformedModuleErrorsWithCPUTimeLimitSet(t *testing.T) {
	ctx := context.Background()
	rt, err := sandbox.NewRuntime(ctx, sandbox.RuntimeConfig{CPUTimeLimit: time.Millisecond})
	require.NoError(t, err)
	defer rt.Close(ctx)

	_, err = rt.RunProposal(ctx, []byte("not a real wasm module"), nil)
	assert.Error(t, err, "an invalid module must still error, whether from the timeout or from compilation")
}
