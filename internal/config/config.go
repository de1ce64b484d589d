// Package config loads the service configuration: compiled defaults, then an
// optional YAML file, then environment variables (a .env file is read first
// when present).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"voucher-service/internal/core/auth"
	"voucher-service/internal/core/dates"
	"voucher-service/internal/core/fields"
	"voucher-service/internal/core/records"
	"voucher-service/internal/core/template"
	"voucher-service/internal/core/voucher"
	"voucher-service/internal/domain"
	"voucher-service/internal/sheet"
)

// Environment variables that override the file.
const (
	EnvPort      = "VOUCHER_PORT"
	EnvLogLevel  = "VOUCHER_LOG_LEVEL"
	EnvJWTSecret = "JWT_SECRET"
)

// Config is the full service configuration.
type Config struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	Development bool   `yaml:"development"`

	// JWTSecret signs login tokens. Usually supplied through JWT_SECRET.
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Users     []auth.User   `yaml:"users"`

	// MaxUploadMB caps multipart request bodies.
	MaxUploadMB int64 `yaml:"max_upload_mb"`

	Fields     FieldsConfig     `yaml:"fields"`
	Dates      DatesConfig      `yaml:"dates"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Render     RenderConfig     `yaml:"render"`
}

// FieldsConfig is the alias table and matching policy.
type FieldsConfig struct {
	// Aliases maps canonical field names to ordered raw labels.
	Aliases map[string][]string `yaml:"aliases"`
	// Preferred overrides the label fuzzy matching compares against.
	Preferred  map[string]string `yaml:"preferred"`
	Threshold  float64           `yaml:"threshold"`
	MatchMode  string            `yaml:"match_mode"`
	HeaderScan int               `yaml:"header_scan"`
}

// DatesConfig is the date display style and era policy.
type DatesConfig struct {
	Style  string `yaml:"style"`
	RocMin int    `yaml:"roc_min"`
	RocMax int    `yaml:"roc_max"`
	Strict bool   `yaml:"strict"`
}

// ExtractionConfig controls row classification and record order.
type ExtractionConfig struct {
	BothAmounts string `yaml:"both_amounts"`
	Ordering    string `yaml:"ordering"`
}

// RenderConfig controls the rendered document.
type RenderConfig struct {
	// Titles maps "income" and "expense" to title keywords; the first
	// keyword is the title written for that type.
	Titles         map[string][]string `yaml:"titles"`
	BreakAfterLast bool                `yaml:"break_after_last"`
}

// Default returns the compiled defaults.
func Default() *Config {
	return &Config{
		Port:        "8083",
		LogLevel:    "info",
		TokenTTL:    auth.DefaultTTL,
		MaxUploadMB: 32,
		Fields: FieldsConfig{
			Threshold:  fields.DefaultThreshold,
			MatchMode:  string(fields.MatchContains),
			HeaderScan: sheet.DefaultHeaderScan,
		},
		Dates: DatesConfig{
			Style:  string(dates.StyleROC),
			RocMin: dates.DefaultOptions().RocMin,
			RocMax: dates.DefaultOptions().RocMax,
		},
		Extraction: ExtractionConfig{
			BothAmounts: string(records.BothAmountsIncome),
			Ordering:    string(voucher.OrderRows),
		},
	}
}

// Load builds the configuration. An empty path skips the file; a missing
// .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvPort); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		cfg.JWTSecret = v
	}
}

var canonical = map[string]domain.CanonicalField{
	string(domain.FieldDate):          domain.FieldDate,
	string(domain.FieldIncome):        domain.FieldIncome,
	string(domain.FieldExpense):       domain.FieldExpense,
	string(domain.FieldSubject):       domain.FieldSubject,
	string(domain.FieldDescription):   domain.FieldDescription,
	string(domain.FieldVoucherNumber): domain.FieldVoucherNumber,
	string(domain.FieldAmount):        domain.FieldAmount,
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Fields.Threshold <= 0 || c.Fields.Threshold > 1 {
		errs = append(errs, fmt.Errorf("fields.threshold must be in (0, 1], got %v", c.Fields.Threshold))
	}
	switch fields.MatchMode(c.Fields.MatchMode) {
	case fields.MatchContains, fields.MatchExact:
	default:
		errs = append(errs, fmt.Errorf("fields.match_mode %q is not contains or exact", c.Fields.MatchMode))
	}
	for name := range c.Fields.Aliases {
		if _, ok := canonical[name]; !ok {
			errs = append(errs, fmt.Errorf("fields.aliases: unknown field %q", name))
		}
	}
	for name := range c.Fields.Preferred {
		if _, ok := canonical[name]; !ok {
			errs = append(errs, fmt.Errorf("fields.preferred: unknown field %q", name))
		}
	}
	switch dates.Style(c.Dates.Style) {
	case dates.StyleROC, dates.StyleGregorian:
	default:
		errs = append(errs, fmt.Errorf("dates.style %q is not roc or gregorian", c.Dates.Style))
	}
	if c.Dates.RocMin > c.Dates.RocMax {
		errs = append(errs, fmt.Errorf("dates.roc_min %d exceeds roc_max %d", c.Dates.RocMin, c.Dates.RocMax))
	}
	switch records.BothAmountsPolicy(c.Extraction.BothAmounts) {
	case records.BothAmountsIncome, records.BothAmountsSkip:
	default:
		errs = append(errs, fmt.Errorf("extraction.both_amounts %q is not income or skip", c.Extraction.BothAmounts))
	}
	switch voucher.Ordering(c.Extraction.Ordering) {
	case voucher.OrderRows, voucher.OrderIncomeFirst:
	default:
		errs = append(errs, fmt.Errorf("extraction.ordering %q is not row or income_first", c.Extraction.Ordering))
	}
	for name := range c.Render.Titles {
		switch domain.TransactionType(name) {
		case domain.TypeIncome, domain.TypeExpense:
		default:
			errs = append(errs, fmt.Errorf("render.titles: unknown type %q", name))
		}
	}
	return errors.Join(errs...)
}

// ResolverOptions converts the alias table for the field resolver.
func (c *Config) ResolverOptions() fields.Options {
	opts := fields.Options{
		Threshold: c.Fields.Threshold,
		Mode:      fields.MatchMode(c.Fields.MatchMode),
	}
	if len(c.Fields.Aliases) > 0 {
		opts.Aliases = fields.DefaultAliases()
		for name, list := range c.Fields.Aliases {
			opts.Aliases[canonical[name]] = list
		}
	}
	if len(c.Fields.Preferred) > 0 {
		opts.Preferred = make(map[domain.CanonicalField]string, len(c.Fields.Preferred))
		for name, label := range c.Fields.Preferred {
			opts.Preferred[canonical[name]] = label
		}
	}
	return opts
}

// DateOptions returns the normalizer era policy.
func (c *Config) DateOptions() dates.Options {
	opts := dates.DefaultOptions()
	opts.RocMin, opts.RocMax = c.Dates.RocMin, c.Dates.RocMax
	return opts
}

// Titles returns the title keywords, defaults filling unset types.
func (c *Config) Titles() template.Titles {
	titles := template.DefaultTitles()
	for name, list := range c.Render.Titles {
		if len(list) > 0 {
			titles[domain.TransactionType(name)] = list
		}
	}
	return titles
}
