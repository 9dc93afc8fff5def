package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the recall configuration.
type Config struct {
	Format   string         `json:"format" mapstructure:"format"`
	Cache    CacheConfig    `json:"cache" mapstructure:"cache"`
	Lookup   LookupConfig   `json:"lookup" mapstructure:"lookup"`
	Privacy  PrivacyConfig  `json:"privacy" mapstructure:"privacy"`
	Log      LogConfig      `json:"log" mapstructure:"log"`
	Metrics  MetricsConfig  `json:"metrics" mapstructure:"metrics"`
	Calendar CalendarConfig `json:"calendar" mapstructure:"calendar"`
}

// CacheConfig controls where the cache lives and how large it may grow.
type CacheConfig struct {
	Dir       string  `json:"dir,omitempty" mapstructure:"dir"`
	MaxSizeMB float64 `json:"maxSizeMB" mapstructure:"maxSizeMB"`
}

// LookupConfig controls lookup behavior.
type LookupConfig struct {
	SimilarityThreshold float64  `json:"similarityThreshold" mapstructure:"similarityThreshold"`
	BypassPhrases       []string `json:"bypassPhrases" mapstructure:"bypassPhrases"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	ExtraPatterns []string `json:"extraPatterns,omitempty" mapstructure:"extraPatterns"`
	RedactPaths   []string `json:"redactPaths,omitempty" mapstructure:"redactPaths"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `json:"maxSizeMB" mapstructure:"maxSizeMB"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays" mapstructure:"maxAgeDays"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty" mapstructure:"textfile"`
}

// CalendarConfig controls the calendar event tool.
type CalendarConfig struct {
	SecretsPath string `json:"secretsPath,omitempty" mapstructure:"secretsPath"`
	CalendarID  string `json:"calendarID,omitempty" mapstructure:"calendarID"`
	TimeZone    string `json:"timeZone" mapstructure:"timeZone"`
}

// DefaultSimilarityThreshold is the minimum cosine similarity for a semantic hit.
const DefaultSimilarityThreshold = 0.88

// DefaultBypassPhrases signal that the caller wants fresh results.
var DefaultBypassPhrases = []string{"ignore cache", "fresh", "recompute", "don't reuse", "dont reuse"}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Format: "json",
		Cache: CacheConfig{
			MaxSizeMB: 250,
		},
		Lookup: LookupConfig{
			SimilarityThreshold: DefaultSimilarityThreshold,
			BypassPhrases:       append([]string(nil), DefaultBypassPhrases...),
		},
		Privacy: PrivacyConfig{
			RedactPaths: []string{"**/.env", "**/*secrets*"},
		},
		Log: LogConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Calendar: CalendarConfig{
			TimeZone: "America/New_York",
		},
	}
}

// envBindings maps config keys to their environment variables.
var envBindings = []struct {
	key string
	env string
}{
	{"format", "RECALL_FORMAT"},
	{"cache.dir", "RECALL_CACHE_DIR"},
	{"cache.maxSizeMB", "RECALL_CACHE_MAX_SIZE_MB"},
	{"lookup.similarityThreshold", "RECALL_SIMILARITY_THRESHOLD"},
	{"lookup.bypassPhrases", "RECALL_BYPASS_PHRASES"},
	{"privacy.extraPatterns", "RECALL_REDACT_PATTERNS"},
	{"privacy.redactPaths", "RECALL_REDACT_PATHS"},
	{"log.level", "RECALL_LOG_LEVEL"},
	{"log.file", "RECALL_LOG_FILE"},
	{"metrics.textfile", "RECALL_METRICS_TEXTFILE"},
	{"calendar.secretsPath", "RECALL_CALENDAR_SECRETS"},
	{"calendar.calendarID", "RECALL_CALENDAR_ID"},
	{"calendar.timeZone", "RECALL_CALENDAR_TZ"},
}

// ConfigDir returns the platform-appropriate config directory for recall.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "recall"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "recall"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "recall"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "recall"), nil
	default:
		return filepath.Join(home, ".config", "recall"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile loads config from the config file. Returns zero Config and nil error if file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// Override keys use the dotted config key names (e.g. "cache.dir"); empty
// values are ignored.
func Load(overrides map[string]string) (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	for k, val := range overrides {
		if val != "" {
			v.Set(k, val)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v, Default())
	for _, b := range envBindings {
		// BindEnv only fails when no key is given.
		_ = v.BindEnv(b.key, b.env)
	}
	return v
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("format", cfg.Format)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.maxSizeMB", cfg.Cache.MaxSizeMB)
	v.SetDefault("lookup.similarityThreshold", cfg.Lookup.SimilarityThreshold)
	v.SetDefault("lookup.bypassPhrases", cfg.Lookup.BypassPhrases)
	v.SetDefault("privacy.extraPatterns", cfg.Privacy.ExtraPatterns)
	v.SetDefault("privacy.redactPaths", cfg.Privacy.RedactPaths)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.maxSizeMB", cfg.Log.MaxSizeMB)
	v.SetDefault("log.maxBackups", cfg.Log.MaxBackups)
	v.SetDefault("log.maxAgeDays", cfg.Log.MaxAgeDays)
	v.SetDefault("log.compress", cfg.Log.Compress)
	v.SetDefault("metrics.textfile", cfg.Metrics.Textfile)
	v.SetDefault("calendar.secretsPath", cfg.Calendar.SecretsPath)
	v.SetDefault("calendar.calendarID", cfg.Calendar.CalendarID)
	v.SetDefault("calendar.timeZone", cfg.Calendar.TimeZone)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported format %q (want json or text)", c.Format)
	}
	if c.Cache.MaxSizeMB < 0 {
		return fmt.Errorf("cache.maxSizeMB must be >= 0, got %v", c.Cache.MaxSizeMB)
	}
	if t := c.Lookup.SimilarityThreshold; t < -1 || t > 1 {
		return fmt.Errorf("lookup.similarityThreshold must be within [-1, 1], got %v", t)
	}
	return nil
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "format":
		cfg.Format = value
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.maxSizeMB":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("cache.maxSizeMB must be a number: %w", err)
		}
		cfg.Cache.MaxSizeMB = f
	case "lookup.similarityThreshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("lookup.similarityThreshold must be a number: %w", err)
		}
		cfg.Lookup.SimilarityThreshold = f
	case "lookup.bypassPhrases":
		cfg.Lookup.BypassPhrases = splitList(value)
	case "privacy.extraPatterns":
		cfg.Privacy.ExtraPatterns = splitList(value)
	case "privacy.redactPaths":
		cfg.Privacy.RedactPaths = splitList(value)
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.maxSizeMB", "log.maxBackups", "log.maxAgeDays":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		switch key {
		case "log.maxSizeMB":
			cfg.Log.MaxSizeMB = n
		case "log.maxBackups":
			cfg.Log.MaxBackups = n
		default:
			cfg.Log.MaxAgeDays = n
		}
	case "log.compress":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("log.compress must be a boolean: %w", err)
		}
		cfg.Log.Compress = b
	case "metrics.textfile":
		cfg.Metrics.Textfile = value
	case "calendar.secretsPath":
		cfg.Calendar.SecretsPath = value
	case "calendar.calendarID":
		cfg.Calendar.CalendarID = value
	case "calendar.timeZone":
		cfg.Calendar.TimeZone = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
