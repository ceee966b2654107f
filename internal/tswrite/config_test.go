package tswrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []func(*PacingConfig){
		func(c *PacingConfig) { c.CircBufSize = 0 },
		func(c *PacingConfig) { c.PacketsPerItem = 0 },
		func(c *PacingConfig) { c.PacketsPerItem = 8 },
		func(c *PacingConfig) { c.ByteRate = 0 },
		func(c *PacingConfig) { c.PrimeSize = 0 },
		func(c *PacingConfig) { c.PrimeSpeedup = 0 },
		func(c *PacingConfig) { c.PCRScale = 0 },
		func(c *PacingConfig) { c.MaxNoWait = -2 },
		func(c *PacingConfig) { c.ParentWaitMs = 0 },
		func(c *PacingConfig) { c.ChildWaitMs = 0 },
	}
	for _, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		require.Error(t, cfg.Validate())
	}
}
