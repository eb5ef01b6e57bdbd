package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	riskerr "riskgate/internal/errors"
)

func TestLoadDefaultsValidate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", cfg.Calendar.Timezone)
	assert.InDelta(t, 0.8, cfg.Exposure.RiskOffTightening, 1e-9)
	assert.GreaterOrEqual(t, cfg.Exposure.MacroEventWidening, 1.0)

	// A missing config file leaves a template behind.
	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	bad := []byte("[exposure]\nrisk_off_tightening = 1.5\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), bad, 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, riskerr.Is(err, riskerr.ErrConfigInvalid))
}

func TestValidateBounds(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Exposure: ExposureConfig{RiskOffTightening: 0.8, MacroEventWidening: 1.25},
			Gate:     GateConfig{MaxDrawdownPct: 10},
		}
	}

	require.NoError(t, valid().Validate())

	c := valid()
	c.Selector.MaxBidAskSpread = -0.1
	assert.True(t, riskerr.Is(c.Validate(), riskerr.ErrConfigInvalid))

	c = valid()
	c.Exposure.MacroEventWidening = 0.9
	assert.True(t, riskerr.Is(c.Validate(), riskerr.ErrConfigInvalid))

	c = valid()
	c.Gate.MaxDrawdownPct = 150
	assert.True(t, riskerr.Is(c.Validate(), riskerr.ErrConfigInvalid))
}
