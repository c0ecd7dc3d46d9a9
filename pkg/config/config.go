package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/viper"
)

// DefaultFileName is the configuration file looked up in the working
// directory when none is given.
const DefaultFileName = ".srccov.yaml"

// Config is the complete srccov configuration.
type Config struct {
	DataFile string         `mapstructure:"data_file"`
	Run      RunConfig      `mapstructure:"run"`
	Report   ReportConfig   `mapstructure:"report"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
}

// RunConfig controls how recorded executions are imported and combined.
type RunConfig struct {
	Branch     bool   `mapstructure:"branch"`
	Context    string `mapstructure:"context"`
	ModuleRoot string `mapstructure:"module_root"`
	Workers    int    `mapstructure:"workers"`
}

// ReportConfig controls the summary report.
type ReportConfig struct {
	ShowMissing  bool     `mapstructure:"show_missing"`
	SkipCovered  bool     `mapstructure:"skip_covered"`
	SkipEmpty    bool     `mapstructure:"skip_empty"`
	Sort         string   `mapstructure:"sort"`
	Precision    int      `mapstructure:"precision"`
	FailUnder    float64  `mapstructure:"fail_under"`
	IgnoreErrors bool     `mapstructure:"ignore_errors"`
	Include      []string `mapstructure:"include"`
	Omit         []string `mapstructure:"omit"`
	Root         string   `mapstructure:"root"`
	ExcludeLines []string `mapstructure:"exclude_lines"`
	Format       string   `mapstructure:"format"`
}

// BigQueryConfig names where per-file numbers are exported.
type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_file", ".srccov.db")
	v.SetDefault("run.workers", 8)
	v.SetDefault("report.precision", 0)
	v.SetDefault("report.format", "text")
	v.SetDefault("report.root", ".")
	v.SetDefault("report.exclude_lines", []string{`(?i)//\s*pragma:\s*no\s*cover`})
	v.SetDefault("bigquery.dataset", "source_coverage")
}

// Load reads the configuration file at path. With an empty path,
// DefaultFileName is looked up in dir and a missing file yields the
// defaults; an explicitly named file must exist.
func Load(path, dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".srccov")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that are never downgraded to warnings.
func (c *Config) Validate() error {
	if err := CheckPrecision(c.Report.Precision); err != nil {
		return err
	}
	if c.Report.FailUnder < 0 || c.Report.FailUnder > 100 {
		return &ConfigError{Field: "report.fail_under", Message: fmt.Sprintf("must be between 0 and 100, got %g", c.Report.FailUnder)}
	}
	switch c.Report.Format {
	case "", "text", "markdown":
	default:
		return &ConfigError{Field: "report.format", Message: fmt.Sprintf("unknown format %q (valid: text, markdown)", c.Report.Format)}
	}
	if c.Run.Workers < 0 {
		return &ConfigError{Field: "run.workers", Message: "must not be negative"}
	}
	return nil
}

// CheckPrecision checks the number of digits shown after the decimal point.
func CheckPrecision(p int) error {
	if p < 0 || p > 10 {
		return &ConfigError{Field: "report.precision", Message: fmt.Sprintf("must be between 0 and 10, got %d", p)}
	}
	return nil
}

// ParseFailUnder parses a fail-under threshold given on the command line.
func ParseFailUnder(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ConfigError{Field: "fail_under", Message: fmt.Sprintf("not a number: %q", s)}
	}
	if f < 0 || f > 100 {
		return 0, &ConfigError{Field: "fail_under", Message: fmt.Sprintf("must be between 0 and 100, got %s", s)}
	}
	return f, nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
