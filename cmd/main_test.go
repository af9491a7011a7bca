package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() config {
	return config{
		CellSize:           128,
		WorldExtent:        4096,
		ObjectCount:        100,
		MaxHalfExtent:      8,
		FrameDuration:      time.Millisecond * 15,
		CameraRateLimit:    30,
		LogSummaryInterval: time.Minute,
	}
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(testConfig()))

	tests := []struct {
		scenario  string
		configure func(*config)
	}{
		{
			scenario:  "zero cell size",
			configure: func(c *config) { c.CellSize = 0 },
		},
		{
			scenario:  "cell size too small for the world extent",
			configure: func(c *config) { c.CellSize = 0.001 },
		},
		{
			scenario:  "world extent smaller than objects",
			configure: func(c *config) { c.WorldExtent = 4 },
		},
		{
			scenario:  "negative object count",
			configure: func(c *config) { c.ObjectCount = -1 },
		},
		{
			scenario:  "zero frame duration",
			configure: func(c *config) { c.FrameDuration = 0 },
		},
		{
			scenario:  "zero camera rate limit",
			configure: func(c *config) { c.CameraRateLimit = 0 },
		},
		{
			scenario:  "zero log summary interval",
			configure: func(c *config) { c.LogSummaryInterval = 0 },
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			conf := testConfig()
			test.configure(&conf)
			require.Error(t, validateConfig(conf))
		})
	}

	t.Run("largest supported world extent", func(t *testing.T) {
		conf := testConfig()
		conf.CellSize = 1
		conf.WorldExtent = 1 << 19
		require.NoError(t, validateConfig(conf))
	})
}
