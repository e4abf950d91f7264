package config

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"maps"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the runtime copy of the user's settings. A published *Config is
// never mutated; use Store.Update to change it.
type Config struct {
	Control  ControlConfig  `mapstructure:"control" yaml:"control"`
	Timing   TimingConfig   `mapstructure:"timing" yaml:"timing"`
	Purchase PurchaseConfig `mapstructure:"purchase" yaml:"purchase"`
	Region   RegionConfig   `mapstructure:"region" yaml:"region"`
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Recovery RecoveryConfig `mapstructure:"recovery" yaml:"recovery"`
	Hotkeys  HotkeysConfig  `mapstructure:"hotkeys" yaml:"hotkeys"`
	Webhook  WebhookConfig  `mapstructure:"webhook" yaml:"webhook"`
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Tray     TrayConfig     `mapstructure:"tray" yaml:"tray"`
	Game     GameConfig     `mapstructure:"game" yaml:"game"`
}

// ControlConfig holds the PD gains. No bounds are enforced.
type ControlConfig struct {
	Kp float64 `mapstructure:"kp" yaml:"kp"`
	Kd float64 `mapstructure:"kd" yaml:"kd"`
}

type TimingConfig struct {
	ScanTimeout        time.Duration `mapstructure:"scan_timeout" yaml:"scan_timeout"`
	WaitAfterLoss      time.Duration `mapstructure:"wait_after_loss" yaml:"wait_after_loss"`
	ScanInterval       time.Duration `mapstructure:"scan_interval" yaml:"scan_interval"`
	RetryDelay         time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	ErrorBackoff       time.Duration `mapstructure:"error_backoff" yaml:"error_backoff"`
	CastHold           time.Duration `mapstructure:"cast_hold" yaml:"cast_hold"`
	ForceTimeoutMargin time.Duration `mapstructure:"force_timeout_margin" yaml:"force_timeout_margin"`
	ClickSettle        time.Duration `mapstructure:"click_settle" yaml:"click_settle"`
}

// ForceTimeout is the hard cap of a single detection phase.
func (t TimingConfig) ForceTimeout() time.Duration {
	return t.ScanTimeout + t.ForceTimeoutMargin
}

type Point struct {
	X int `mapstructure:"x" yaml:"x"`
	Y int `mapstructure:"y" yaml:"y"`
}

func (p Point) ImagePoint() image.Point {
	return image.Pt(p.X, p.Y)
}

type PurchaseConfig struct {
	Enabled          bool             `mapstructure:"enabled" yaml:"enabled"`
	Amount           int              `mapstructure:"amount" yaml:"amount"`
	LoopsPerPurchase int              `mapstructure:"loops_per_purchase" yaml:"loops_per_purchase"`
	DelayAfterKey    time.Duration    `mapstructure:"delay_after_key" yaml:"delay_after_key"`
	ClickDelay       time.Duration    `mapstructure:"click_delay" yaml:"click_delay"`
	AfterTypeDelay   time.Duration    `mapstructure:"after_type_delay" yaml:"after_type_delay"`
	MenuKey          string           `mapstructure:"menu_key" yaml:"menu_key"`
	Points           map[string]Point `mapstructure:"points" yaml:"points"`
}

// PurchasePointCount is the number of calibrated points the macro needs.
const PurchasePointCount = 4

// Point returns calibration point i (1-based).
func (p PurchaseConfig) Point(i int) (Point, bool) {
	pt, ok := p.Points[strconv.Itoa(i)]
	return pt, ok
}

// MissingPoints lists the 1-based indices of points that are not calibrated.
func (p PurchaseConfig) MissingPoints() []int {
	var missing []int
	for i := 1; i <= PurchasePointCount; i++ {
		if _, ok := p.Point(i); !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// RegionConfig is the capture region in screen pixels.
type RegionConfig struct {
	X      int `mapstructure:"x" yaml:"x"`
	Y      int `mapstructure:"y" yaml:"y"`
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

func (r RegionConfig) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

type Color struct {
	R uint8 `mapstructure:"r" yaml:"r"`
	G uint8 `mapstructure:"g" yaml:"g"`
	B uint8 `mapstructure:"b" yaml:"b"`
}

func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

type DetectorConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend"`
	Indicator Color  `mapstructure:"indicator" yaml:"indicator"`
	Dark      Color  `mapstructure:"dark" yaml:"dark"`
	Marker    Color  `mapstructure:"marker" yaml:"marker"`
}

type CaptureConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
}

type RecoveryConfig struct {
	Enabled           bool                     `mapstructure:"enabled" yaml:"enabled"`
	CheckInterval     time.Duration            `mapstructure:"check_interval" yaml:"check_interval"`
	Cooldown          time.Duration            `mapstructure:"cooldown" yaml:"cooldown"`
	InactivityTimeout time.Duration            `mapstructure:"inactivity_timeout" yaml:"inactivity_timeout"`
	IdleLimit         time.Duration            `mapstructure:"idle_limit" yaml:"idle_limit"`
	SettleDelay       time.Duration            `mapstructure:"settle_delay" yaml:"settle_delay"`
	JoinTimeout       time.Duration            `mapstructure:"join_timeout" yaml:"join_timeout"`
	PollInterval      time.Duration            `mapstructure:"poll_interval" yaml:"poll_interval"`
	Limits            map[string]time.Duration `mapstructure:"limits" yaml:"limits"`
}

type HotkeysConfig struct {
	ToggleLoop string `mapstructure:"toggle_loop" yaml:"toggle_loop"`
	Exit       string `mapstructure:"exit" yaml:"exit"`
}

type WebhookConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	URL              string        `mapstructure:"url" yaml:"url"`
	ProgressInterval int           `mapstructure:"progress_interval" yaml:"progress_interval"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LoggerConfig struct {
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	Verbose     bool   `mapstructure:"verbose" yaml:"verbose"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

type TrayConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

type GameConfig struct {
	WindowTitle string `mapstructure:"window_title" yaml:"window_title"`
}

// SetDefaults registers the defaults of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("control.kp", 0.1)
	v.SetDefault("control.kd", 0.5)

	v.SetDefault("timing.scan_timeout", 15*time.Second)
	v.SetDefault("timing.wait_after_loss", time.Second)
	v.SetDefault("timing.scan_interval", 100*time.Millisecond)
	v.SetDefault("timing.retry_delay", 100*time.Millisecond)
	v.SetDefault("timing.error_backoff", time.Second)
	v.SetDefault("timing.cast_hold", time.Second)
	v.SetDefault("timing.force_timeout_margin", 10*time.Second)
	v.SetDefault("timing.click_settle", 50*time.Millisecond)

	v.SetDefault("purchase.enabled", false)
	v.SetDefault("purchase.amount", 100)
	v.SetDefault("purchase.loops_per_purchase", 1)
	v.SetDefault("purchase.delay_after_key", 2*time.Second)
	v.SetDefault("purchase.click_delay", time.Second)
	v.SetDefault("purchase.after_type_delay", time.Second)
	v.SetDefault("purchase.menu_key", "e")
	v.SetDefault("purchase.points", map[string]any{})

	v.SetDefault("region.x", 100)
	v.SetDefault("region.y", 100)
	v.SetDefault("region.width", 172)
	v.SetDefault("region.height", 495)

	v.SetDefault("detector.backend", "pixel")
	setColorDefault(v, "detector.indicator", 85, 170, 255)
	setColorDefault(v, "detector.dark", 25, 25, 25)
	setColorDefault(v, "detector.marker", 255, 255, 255)

	v.SetDefault("capture.backend", "screenshot")

	v.SetDefault("recovery.enabled", true)
	v.SetDefault("recovery.check_interval", 10*time.Second)
	v.SetDefault("recovery.cooldown", 10*time.Second)
	v.SetDefault("recovery.inactivity_timeout", 90*time.Second)
	v.SetDefault("recovery.idle_limit", 30*time.Second)
	v.SetDefault("recovery.settle_delay", 2*time.Second)
	v.SetDefault("recovery.join_timeout", 5*time.Second)
	v.SetDefault("recovery.poll_interval", time.Second)
	v.SetDefault("recovery.limits", map[string]any{
		"fishing":      "50s",
		"purchasing":   "60s",
		"casting":      "15s",
		"menu_opening": "10s",
		"typing":       "8s",
		"clicking":     "5s",
		"idle":         "45s",
	})

	v.SetDefault("hotkeys.toggle_loop", "f1")
	v.SetDefault("hotkeys.exit", "f3")

	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.progress_interval", 10)
	v.SetDefault("webhook.timeout", 10*time.Second)

	v.SetDefault("logger.service_name", "autofish")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.verbose", false)
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", false)

	v.SetDefault("tray.enabled", false)
	v.SetDefault("game.window_title", "")
}

func setColorDefault(v *viper.Viper, key string, r, g, b uint8) {
	v.SetDefault(key+".r", r)
	v.SetDefault(key+".g", g)
	v.SetDefault(key+".b", b)
}

// Load reads path (a missing file is not an error), applies AUTOFISH_*
// environment overrides and validates the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("autofish")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	return NewConfigFromViper(v)
}

func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string

	if c.Timing.ScanTimeout <= 0 {
		problems = append(problems, "timing.scan_timeout must be positive")
	}
	if c.Timing.ScanInterval <= 0 {
		problems = append(problems, "timing.scan_interval must be positive")
	}
	if c.Timing.RetryDelay <= 0 {
		problems = append(problems, "timing.retry_delay must be positive")
	}
	for key, d := range map[string]time.Duration{
		"recovery.check_interval": c.Recovery.CheckInterval,
		"recovery.cooldown":       c.Recovery.Cooldown,
		"recovery.join_timeout":   c.Recovery.JoinTimeout,
		"recovery.poll_interval":  c.Recovery.PollInterval,
	} {
		if d <= 0 {
			problems = append(problems, key+" must be positive")
		}
	}
	if c.Recovery.SettleDelay < 0 {
		problems = append(problems, "recovery.settle_delay must not be negative")
	}
	if c.Region.Width <= 0 || c.Region.Height <= 0 {
		problems = append(problems, "region width and height must be positive")
	}
	if c.Purchase.LoopsPerPurchase < 1 {
		problems = append(problems, "purchase.loops_per_purchase must be at least 1")
	}
	if c.Purchase.Amount < 0 {
		problems = append(problems, "purchase.amount must not be negative")
	}
	for key := range c.Purchase.Points {
		i, err := strconv.Atoi(key)
		if err != nil || i < 1 || i > PurchasePointCount {
			problems = append(problems, fmt.Sprintf("purchase.points has unknown key %q", key))
		}
	}
	switch c.Detector.Backend {
	case "pixel", "gocv":
	default:
		problems = append(problems, fmt.Sprintf("detector.backend %q is not one of pixel, gocv", c.Detector.Backend))
	}
	switch c.Capture.Backend {
	case "screenshot", "robotgo":
	default:
		problems = append(problems, fmt.Sprintf("capture.backend %q is not one of screenshot, robotgo", c.Capture.Backend))
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		problems = append(problems, "webhook.url is required when webhook.enabled is set")
	}
	if c.Hotkeys.ToggleLoop == "" || c.Hotkeys.Exit == "" {
		problems = append(problems, "hotkeys.toggle_loop and hotkeys.exit must be set")
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Clone returns a deep copy safe to modify.
func (c *Config) Clone() *Config {
	out := *c
	out.Purchase.Points = maps.Clone(c.Purchase.Points)
	if out.Purchase.Points == nil {
		out.Purchase.Points = map[string]Point{}
	}
	out.Recovery.Limits = maps.Clone(c.Recovery.Limits)
	return &out
}

// Store publishes immutable configuration snapshots. The worker reads a
// snapshot once per step; the UI side publishes edited copies.
type Store struct {
	current atomic.Pointer[Config]
}

func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

func (s *Store) Get() *Config {
	return s.current.Load()
}

// Update applies fn to a copy of the current snapshot and publishes it.
func (s *Store) Update(fn func(*Config)) *Config {
	for {
		old := s.current.Load()
		next := old.Clone()
		fn(next)
		if s.current.CompareAndSwap(old, next) {
			return next
		}
	}
}
