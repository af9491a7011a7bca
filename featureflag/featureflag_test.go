package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{string(FlagDisableCellCulling), ""})

	t.Run("run if enabled", func(t *testing.T) {
		var runCulling bool
		f.IfSet(FlagDisableCellCulling, func() {
			runCulling = true
		})
		require.True(t, runCulling)

		var runBatched bool
		f.IfSet(FlagDisableBatchedPlaneTest, func() {
			runBatched = true
		})
		require.False(t, runBatched)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runCulling bool
		f.IfNotSet(FlagDisableCellCulling, func() {
			runCulling = true
		})
		require.False(t, runCulling)

		var runBatched bool
		f.IfNotSet(FlagDisableBatchedPlaneTest, func() {
			runBatched = true
		})
		require.True(t, runBatched)
	})

	t.Run("empty names are ignored", func(t *testing.T) {
		require.Len(t, f, 1)
		require.Equal(t, []string{string(FlagDisableCellCulling)}, f.Names())
	})

	t.Run("nil flags", func(t *testing.T) {
		var nilFlags FeatureFlag
		require.False(t, nilFlags.IsSet(FlagDisableQueryMetrics))
	})
}
