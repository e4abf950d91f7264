package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autofish.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.Control.Kp)
	assert.Equal(t, 0.5, cfg.Control.Kd)
	assert.Equal(t, 15*time.Second, cfg.Timing.ScanTimeout)
	assert.Equal(t, 25*time.Second, cfg.Timing.ForceTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.Timing.ScanInterval)
	assert.Equal(t, image.Rect(100, 100, 272, 595), cfg.Region.Rect())
	assert.Equal(t, Color{R: 85, G: 170, B: 255}, cfg.Detector.Indicator)
	assert.Equal(t, Color{R: 25, G: 25, B: 25}, cfg.Detector.Dark)
	assert.Equal(t, 50*time.Second, cfg.Recovery.Limits["fishing"])
	assert.Equal(t, 8*time.Second, cfg.Recovery.Limits["typing"])
	assert.Equal(t, 90*time.Second, cfg.Recovery.InactivityTimeout)
	assert.Equal(t, "f1", cfg.Hotkeys.ToggleLoop)
	assert.Equal(t, []int{1, 2, 3, 4}, cfg.Purchase.MissingPoints())
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
control:
  kp: 0.3
timing:
  scan_timeout: 20s
purchase:
  enabled: true
  amount: 50
  points:
    "1": {x: 10, y: 20}
    "2": {x: 30, y: 40}
    "3": {x: 50, y: 60}
    "4": {x: 70, y: 80}
recovery:
  limits:
    fishing: 2m
detector:
  backend: gocv
`)
	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 0.3, cfg.Control.Kp)
	assert.Equal(t, 0.5, cfg.Control.Kd)
	assert.Equal(t, 20*time.Second, cfg.Timing.ScanTimeout)
	assert.True(t, cfg.Purchase.Enabled)
	assert.Empty(t, cfg.Purchase.MissingPoints())
	p3, ok := cfg.Purchase.Point(3)
	require.True(t, ok)
	assert.Equal(t, image.Pt(50, 60), p3.ImagePoint())
	assert.Equal(t, 2*time.Minute, cfg.Recovery.Limits["fishing"])
	assert.Equal(t, "gocv", cfg.Detector.Backend)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("AUTOFISH_CONTROL_KD", "0.9")
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Control.Kd)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := writeConfig(t, "control: [unclosed")
	_, err := Load(viper.New(), path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	bad := cfg.Clone()
	bad.Region.Width = 0
	bad.Purchase.LoopsPerPurchase = 0
	bad.Detector.Backend = "tensor"
	bad.Webhook.Enabled = true
	bad.Purchase.Points = map[string]Point{"7": {}}

	err = bad.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "region width")
	assert.Contains(t, err.Error(), "loops_per_purchase")
	assert.Contains(t, err.Error(), "tensor")
	assert.Contains(t, err.Error(), "webhook.url")
	assert.Contains(t, err.Error(), `"7"`)
}

func TestValidateRecoveryTimings(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	tests := []struct {
		key    string
		mutate func(*Config)
	}{
		{"recovery.poll_interval", func(c *Config) { c.Recovery.PollInterval = 0 }},
		{"recovery.join_timeout", func(c *Config) { c.Recovery.JoinTimeout = 0 }},
		{"recovery.check_interval", func(c *Config) { c.Recovery.CheckInterval = -time.Second }},
		{"recovery.cooldown", func(c *Config) { c.Recovery.Cooldown = 0 }},
		{"timing.retry_delay", func(c *Config) { c.Timing.RetryDelay = 0 }},
		{"recovery.settle_delay", func(c *Config) { c.Recovery.SettleDelay = -time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			bad := cfg.Clone()
			tt.mutate(bad)
			err := bad.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadRejectsZeroRecoveryIntervalsFromEnv(t *testing.T) {
	t.Setenv("AUTOFISH_RECOVERY_POLL_INTERVAL", "0s")
	t.Setenv("AUTOFISH_RECOVERY_JOIN_TIMEOUT", "0s")

	_, err := Load(viper.New(), "")
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "recovery.poll_interval")
	assert.Contains(t, err.Error(), "recovery.join_timeout")
}

func TestStoreUpdateCopiesOnWrite(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	store := NewStore(cfg)

	before := store.Get()
	after := store.Update(func(c *Config) {
		c.Control.Kp = 2
		c.Purchase.Points["1"] = Point{X: 1, Y: 1}
	})

	assert.Equal(t, 0.1, before.Control.Kp)
	assert.Empty(t, before.Purchase.Points)
	assert.Equal(t, 2.0, store.Get().Control.Kp)
	assert.Same(t, after, store.Get())
	_, ok := store.Get().Purchase.Point(1)
	assert.True(t, ok)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autofish.yaml")
	v := viper.New()
	_, err := Load(v, path)
	require.NoError(t, err)

	require.NoError(t, SaveRegion(v, path, RegionConfig{X: 5, Y: 6, Width: 70, Height: 80}))
	require.NoError(t, SavePoints(v, path, []Point{{1, 2}, {3, 4}, {5, 6}, {7, 8}}))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(5, 6, 75, 86), cfg.Region.Rect())
	assert.Empty(t, cfg.Purchase.MissingPoints())
	p4, _ := cfg.Purchase.Point(4)
	assert.Equal(t, Point{X: 7, Y: 8}, p4)
}
