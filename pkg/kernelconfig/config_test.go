package kernelconfig_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mek-labs/kernel/pkg/kernelconfig"
	"github.com/mek-labs/kernel/pkg/primitives"
)

func TestDefault_MatchesSpecLadder(t *testing.T) {
	cfg := kernelconfig.Default()

	table := cfg.FrictionTable()
	assert.Equal(t, 10*time.Second, table.Compute(primitives.ConsequenceHigh, 0.9))
	assert.Equal(t, 3*time.Second, table.Compute(primitives.ConsequenceMedium, 0.9))
	assert.Equal(t, time.Duration(0), table.Compute(primitives.ConsequenceLow, 0.9))

	assert.Equal(t, 0.7, cfg.Threshold(primitives.ConsequenceHigh))
	assert.Equal(t, 0.5, cfg.Threshold(primitives.ConsequenceMedium))
	assert.Equal(t, 0.0, cfg.Threshold(primitives.ConsequenceLow))
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.yaml")
	contents := []byte(`
friction:
  high_seconds: 20
  medium_seconds: 5
  low_seconds: 0
  low_confidence_threshold: 0.5
  penalty_seconds: 8
confidence_thresholds:
  high: 0.9
  medium: 0.6
  low: 0.1
`)
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	cfg, err := kernelconfig.Load(path)
	require.NoError(t, err)

	table := cfg.FrictionTable()
	assert.Equal(t, 20*time.Second, table.Compute(primitives.ConsequenceHigh, 0.9))
	assert.Equal(t, 13*time.Second, table.Compute(primitives.ConsequenceMedium, 0.4), "below the overridden low_confidence_threshold adds the overridden penalty on top of the base delay")
	assert.Equal(t, 0.9, cfg.Threshold(primitives.ConsequenceHigh))
	assert.Equal(t, 0.1, cfg.Threshold(primitives.ConsequenceLow))
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := kernelconfig.Load("/nonexistent/path/kernel.yaml")
	assert.Error(t, err)
}

