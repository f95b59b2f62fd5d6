package config

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppName names the XDG cache directory and the default User-Agent.
const AppName = "linkvet"

// AppConfig holds the runtime settings of a verification run.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// LogFile, when set, receives log output through a rotating writer.
	LogFile string `koanf:"log_file"`

	// RulesFile is the rule document (JSON, JSONC, YAML or TOML).
	RulesFile string `koanf:"rules_file" validate:"required"`

	// SourceFile maps page names to the URLs found on them.
	SourceFile string `koanf:"source_file" validate:"required"`

	// OutputFile receives the verdict report. It is overwritten on each run.
	OutputFile string `koanf:"output_file" validate:"required"`

	Delimiter string `koanf:"delimiter" validate:"required,len=1"`

	// ReviewDefault fills the manual review column of every row.
	ReviewDefault string `koanf:"review_default" validate:"required"`

	// Workers bounds the number of URLs evaluated at once.
	Workers int `koanf:"workers" validate:"required,gte=1,lte=256"`

	// HostConcurrency bounds in-flight fetches per registrable domain.
	HostConcurrency int `koanf:"host_concurrency" validate:"required,gte=1"`

	// Timeout applies to each individual fetch.
	Timeout time.Duration `koanf:"timeout" validate:"required,gt=0"`

	// RatePerHost caps requests per second to one registrable domain; 0 is
	// unlimited.
	RatePerHost float64 `koanf:"rate_per_host" validate:"gte=0"`

	UserAgent    string `koanf:"user_agent" validate:"required"`
	MaxBodyBytes int64  `koanf:"max_body_bytes" validate:"required,gte=1024"`

	// CacheSize is the in-memory verdict cache capacity; 0 disables it.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`

	// StoreEnabled persists verdicts across runs in StorePath.
	StoreEnabled bool          `koanf:"store_enabled"`
	StorePath    string        `koanf:"store_path" validate:"required_if=StoreEnabled true"`
	StoreMaxAge  time.Duration `koanf:"store_max_age" validate:"gte=0"`
	StoreFPRate  float64       `koanf:"store_fp_rate" validate:"gt=0,lt=1"`

	// InspectMIMEType overrides the rule document's designated type when set.
	InspectMIMEType string `koanf:"inspect_mime_type" validate:"omitempty,mime_type"`
}

// DEFAULT_APP_CONFIG defines the default settings: the classic data/ and
// config/ layout, four workers, a five second fetch timeout and an
// in-memory verdict cache with persistence switched off.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:             "prod",
	LogLevel:        "info",
	RulesFile:       "config/rules.json",
	SourceFile:      "data/source.json",
	OutputFile:      "data/result.csv",
	Delimiter:       ",",
	ReviewDefault:   "No",
	Workers:         4,
	HostConcurrency: 2,
	Timeout:         5 * time.Second,
	UserAgent:       AppName + "/0.1",
	MaxBodyBytes:    5 << 20,
	CacheSize:       1000,
	StoreEnabled:    false,
	StorePath:       filepath.Join(xdg.CacheHome, AppName, "verdicts.db"),
	StoreMaxAge:     24 * time.Hour,
	StoreFPRate:     0.01,
}

// validMIMEType accepts a bare media type such as "text/html".
func validMIMEType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	mt, params, err := mime.ParseMediaType(value)
	if err != nil || len(params) > 0 {
		return false
	}
	return strings.Contains(mt, "/")
}

// envLoader loads environment variables with the prefix "LINKVET_".
// It transforms the keys to lowercase and removes the prefix,
// and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "LINKVET_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "LINKVET_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "mime_type" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("mime_type", validMIMEType)
}

// fileLoader loads an optional configuration file; the format follows the
// extension.
var fileLoader = func(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}
	return k.Load(file.Provider(path), parser)
}

// Load returns the AppConfig built from defaults, then configFile (skipped
// when empty), then LINKVET_* environment variables, then overrides
// (typically CLI flags keyed like the koanf tags). The result is validated
// before it is returned.
func Load(configFile string, overrides map[string]any) (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if configFile != "" {
		if err := fileLoader(k, configFile); err != nil {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("error loading overrides: %w", err)
		}
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// DelimiterRune returns the report delimiter as a rune.
func (c *AppConfig) DelimiterRune() rune {
	return []rune(c.Delimiter)[0]
}
