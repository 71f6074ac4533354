package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"pulsechart/internal/viewport"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration shared by the pulsechart commands.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
	Viewport Viewport `yaml:"viewport"`
	Refresh  Refresh  `yaml:"refresh"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir" default:"data" validate:"required"`
	SQLitePath string `yaml:"sqlite_path" default:"data/pulsechart.db"`
	// PrefsBackend selects the preference store: "sqlite" or "json".
	PrefsBackend string `yaml:"prefs_backend" default:"sqlite" validate:"oneof=sqlite json"`
	PrefsJSON    string `yaml:"prefs_json" default:"data/prefs.json"`
	Market       string `yaml:"market" default:"us" validate:"oneof=us cn"`
}

// Server holds network listener configuration.
type Server struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	GRPCPort        int           `yaml:"grpc_port" default:"9090" validate:"gt=0,lte=65535,nefield=Port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	Feed            string `yaml:"feed" default:"iex" validate:"oneof=iex sip delayed_sip otc"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min" default:"200" validate:"gt=0"`
}

// HasCredentials reports whether both key and secret are set.
func (a Alpaca) HasCredentials() bool {
	return a.APIKey != "" && a.APISecret != ""
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json text"`
}

// Viewport bounds and tunes the chart gesture machine.
type Viewport struct {
	MinScale      float64 `yaml:"min_scale" default:"1" validate:"gte=1"`
	MaxScale      float64 `yaml:"max_scale" default:"5" validate:"gtefield=MinScale"`
	ZoomStep      float64 `yaml:"zoom_step" default:"1.5" validate:"gt=1"`
	DeadZone      float64 `yaml:"dead_zone" default:"10" validate:"gte=0"`
	AxisLockRatio float64 `yaml:"axis_lock_ratio" default:"1.2" validate:"gte=1"`
	Buffer        Buffer  `yaml:"buffer"`
	// Timeframe is the lookback used when a chart is opened by symbol alone.
	Timeframe string `yaml:"timeframe" default:"1Y" validate:"oneof=1D 5D 1M 6M 1Y 5Y"`
}

// Buffer configures the flat lead-in drawn before the first sample.
type Buffer struct {
	Enabled   bool    `yaml:"enabled"`
	Fraction  float64 `yaml:"fraction" default:"0.15" validate:"gte=0,lte=1"`
	MinPoints int     `yaml:"min_points" default:"5" validate:"gte=0"`
}

// Refresh controls the periodic reload of symbol-backed charts.
type Refresh struct {
	Enabled bool `yaml:"enabled" default:"true"`
	// Schedule is a six-field cron spec (with seconds).
	Schedule string `yaml:"schedule" default:"0 */5 * * * *" validate:"required_if=Enabled true"`
}

// Options converts the viewport section into viewport.Options.
func (v Viewport) Options() viewport.Options {
	return viewport.Options{
		MinScale:      v.MinScale,
		MaxScale:      v.MaxScale,
		ZoomStep:      v.ZoomStep,
		DeadZone:      v.DeadZone,
		AxisLockRatio: v.AxisLockRatio,
		Buffer: viewport.Buffer{
			Enabled:   v.Buffer.Enabled,
			Fraction:  v.Buffer.Fraction,
			MinPoints: v.Buffer.MinPoints,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

var validate = validator.New()

// DefaultPath is where the commands look for their config file unless
// PULSECHART_CONFIG names another.
const DefaultPath = "config/pulsechart.yaml"

// LoadForCommand loads the file named by PULSECHART_CONFIG, or DefaultPath.
// A missing DefaultPath falls back to Default; a missing explicit file is
// an error. The returned path is empty when no file was read.
func LoadForCommand() (*Config, string, error) {
	if p := os.Getenv("PULSECHART_CONFIG"); p != "" {
		cfg, err := Load(p)
		return cfg, p, err
	}
	if _, err := os.Stat(DefaultPath); errors.Is(err, os.ErrNotExist) {
		cfg, err := Default()
		return cfg, "", err
	}
	cfg, err := Load(DefaultPath)
	return cfg, DefaultPath, err
}

// Default returns a Config with every default applied and environment
// overrides honoured, for commands run without a config file.
func Default() (*Config, error) {
	return Load("")
}

// Load builds a Config from defaults, then the YAML file at path (skipped
// when path is empty), then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", field, fe.Param())
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("PULSECHART_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Standard Alpaca env vars (highest priority, the names the SDK reads).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
