// Package config loads the aggregator configuration from a YAML file, a .env
// file, AGGREGATOR_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"aggregator/internal/etl"
	"aggregator/internal/etl/sources"
	"aggregator/internal/logger"
)

// EnvPrefix prefixes every environment override, e.g. AGGREGATOR_STORAGE_PATH.
const EnvPrefix = "AGGREGATOR"

// Defaults
const (
	defaultStoragePath    = "data.db"
	defaultColumns        = 3
	defaultQueryColumn    = "column_1"
	defaultQueryValue     = "value"
	defaultCSVDelimiter   = ","
	defaultWatchDebounce  = 500 * time.Millisecond
	defaultLogLevel       = "info"
	defaultHTMLMaxBodyLen = sources.DefaultHTMLMaxBodyBytes
)

// Config represents the application configuration.
type Config struct {
	Sources SourcesConfig `mapstructure:"sources"`
	Storage StorageConfig `mapstructure:"storage"`
	Query   QueryConfig   `mapstructure:"query"`
	Log     logger.Config `mapstructure:"log"`
	Watch   WatchConfig   `mapstructure:"watch"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// SourcesConfig holds one section per extractor.
type SourcesConfig struct {
	CSV  CSVConfig  `mapstructure:"csv"`
	XML  XMLConfig  `mapstructure:"xml"`
	JSON JSONConfig `mapstructure:"json"`
	HTML HTMLConfig `mapstructure:"html"`
}

type CSVConfig struct {
	Path       string `mapstructure:"path"`
	Delimiter  string `mapstructure:"delimiter"`
	SkipHeader bool   `mapstructure:"skip_header"`
}

type XMLConfig struct {
	Path   string   `mapstructure:"path"`
	Fields []string `mapstructure:"fields"`
}

type JSONConfig struct {
	Path     string   `mapstructure:"path"`
	DataPath string   `mapstructure:"data_path"`
	Keys     []string `mapstructure:"keys"`
}

type HTMLConfig struct {
	URL          string        `mapstructure:"url"`
	Selector     string        `mapstructure:"selector"`
	Fields       []string      `mapstructure:"fields"`
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// StorageConfig locates the SQLite file and fixes the column count N.
type StorageConfig struct {
	Path    string `mapstructure:"path"`
	Columns int    `mapstructure:"columns"`
}

// QueryConfig is the lookup issued at the end of every run.
type QueryConfig struct {
	Column string `mapstructure:"column"`
	Value  string `mapstructure:"value"`
}

// WatchConfig drives the long-running watch command.
type WatchConfig struct {
	Schedule string        `mapstructure:"schedule"` // standard 5-field cron expression
	Files    []string      `mapstructure:"files"`    // inputs whose change triggers a run
	Debounce time.Duration `mapstructure:"debounce"`
}

// NewViper returns a viper instance with defaults and environment binding.
// Callers may bind flags on it before passing it to Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("sources.csv.path", "")
	v.SetDefault("sources.csv.delimiter", defaultCSVDelimiter)
	v.SetDefault("sources.csv.skip_header", false)

	v.SetDefault("sources.xml.path", "")
	v.SetDefault("sources.xml.fields", sources.DefaultXMLFields)

	v.SetDefault("sources.json.path", "")
	v.SetDefault("sources.json.data_path", "")
	v.SetDefault("sources.json.keys", sources.DefaultJSONKeys)

	v.SetDefault("sources.html.url", "")
	v.SetDefault("sources.html.selector", sources.DefaultHTMLSelector)
	v.SetDefault("sources.html.fields", sources.DefaultHTMLFields)
	v.SetDefault("sources.html.timeout", sources.DefaultHTMLTimeout)
	v.SetDefault("sources.html.user_agent", sources.DefaultHTMLUserAgent)
	v.SetDefault("sources.html.max_body_bytes", defaultHTMLMaxBodyLen)

	v.SetDefault("storage.path", defaultStoragePath)
	v.SetDefault("storage.columns", defaultColumns)

	v.SetDefault("query.column", defaultQueryColumn)
	v.SetDefault("query.value", defaultQueryValue)

	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output_paths", []string{"stderr"})
	v.SetDefault("log.development", false)

	v.SetDefault("watch.schedule", "")
	v.SetDefault("watch.files", []string{})
	v.SetDefault("watch.debounce", defaultWatchDebounce)
}

// Load reads configuration into a Config. path may be empty, in which case
// config.yaml is looked up in . and ./config and its absence is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	// .env is optional; existing environment variables win over it.
	_ = godotenv.Load()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.Columns < 1 {
		errs = append(errs, fmt.Errorf("storage.columns must be at least 1, got %d", c.Storage.Columns))
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if n := utf8.RuneCountInString(c.Sources.CSV.Delimiter); n > 1 {
		errs = append(errs, fmt.Errorf("sources.csv.delimiter must be a single character, got %q", c.Sources.CSV.Delimiter))
	}
	if c.Sources.HTML.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("sources.html.timeout must be positive, got %s", c.Sources.HTML.Timeout))
	}
	if c.Sources.HTML.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("sources.html.max_body_bytes must not be negative, got %d", c.Sources.HTML.MaxBodyBytes))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Watch.Schedule != "" {
		if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("watch.schedule: %w", err))
		}
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ── Views consumed by the pipeline ─────────────────────────

// Inputs maps each source kind to its configured path or URL.
func (c *Config) Inputs() etl.Inputs {
	return etl.Inputs{
		etl.SourceCSV:  c.Sources.CSV.Path,
		etl.SourceXML:  c.Sources.XML.Path,
		etl.SourceJSON: c.Sources.JSON.Path,
		etl.SourceHTML: c.Sources.HTML.URL,
	}
}

// SourceOptions converts the per-source sections into extractor options.
func (c *Config) SourceOptions() sources.Options {
	return sources.Options{
		CSV: sources.CSVOptions{
			Delimiter:  c.Sources.CSV.Delimiter,
			SkipHeader: c.Sources.CSV.SkipHeader,
		},
		XML: sources.XMLOptions{Fields: c.Sources.XML.Fields},
		JSON: sources.JSONOptions{
			DataPath: c.Sources.JSON.DataPath,
			Keys:     c.Sources.JSON.Keys,
		},
		HTML: sources.HTMLOptions{
			Selector:     c.Sources.HTML.Selector,
			Fields:       c.Sources.HTML.Fields,
			Timeout:      c.Sources.HTML.Timeout,
			UserAgent:    c.Sources.HTML.UserAgent,
			MaxBodyBytes: c.Sources.HTML.MaxBodyBytes,
		},
	}
}

// SearchQuery returns the end-of-run lookup.
func (c *Config) SearchQuery() etl.Query {
	return etl.Query{Column: c.Query.Column, Value: c.Query.Value}
}
