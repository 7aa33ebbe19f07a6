package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/loykin/intentrun"
	"github.com/loykin/intentrun/internal/common"
	"github.com/loykin/intentrun/internal/constants"
	"github.com/loykin/intentrun/internal/httpc"
	"github.com/loykin/intentrun/internal/util"
)

// DefaultConfigPath is tried when --config is not given. A missing default file is not an error.
const DefaultConfigPath = "./intentrun.yaml"

type APIConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	IntentPath string `mapstructure:"intent_path" yaml:"intent_path"`
	HealthPath string `mapstructure:"health_path" yaml:"health_path"`
}

type RunConfig struct {
	CSVFile       string        `mapstructure:"csv_file" yaml:"csv_file"`
	Delay         time.Duration `mapstructure:"delay" yaml:"delay"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	HealthTimeout time.Duration `mapstructure:"health_timeout" yaml:"health_timeout"`
	// Limit replays only the first N records (0 = all)
	Limit int `mapstructure:"limit" yaml:"limit"`
}

type ReportConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive bool   `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
}

type SQLiteStoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type PostgresStoreConfig struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// BuildDSN prefers an explicit DSN; otherwise it builds one from the components when a host is given.
func (p PostgresStoreConfig) BuildDSN() string {
	dsn, hasDSN := util.TrimEmptyCheck(p.DSN)
	host, hasHost := util.TrimEmptyCheck(p.Host)
	if hasDSN || !hasHost {
		return dsn
	}
	port := p.Port
	if port == 0 {
		port = constants.DefaultPostgresPort
	}
	ssl := util.TrimWithDefault(p.SSLMode, constants.DefaultPostgresSSLMode)
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		strings.TrimSpace(p.User), strings.TrimSpace(p.Password), host, port, strings.TrimSpace(p.DBName), ssl)
}

type StoreConfig struct {
	// Type selects the history database: "sqlite" or "postgresql". Empty disables history.
	Type             string              `mapstructure:"type" yaml:"type"`
	SaveResponseBody bool                `mapstructure:"save_response_body" yaml:"save_response_body"`
	SQLite           SQLiteStoreConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres         PostgresStoreConfig `mapstructure:"postgres" yaml:"postgres"`
	TablePrefix      string              `mapstructure:"table_prefix" yaml:"table_prefix"`
}

// Enabled reports whether runs should be saved.
func (c StoreConfig) Enabled() bool { return strings.TrimSpace(c.Type) != "" }

// ToStoreConfig converts the section to the harness store options. It returns nil when disabled.
func (c StoreConfig) ToStoreConfig() *intentrun.StoreConfig {
	if !c.Enabled() {
		return nil
	}
	return &intentrun.StoreConfig{
		Driver:           util.TrimAndLower(c.Type),
		SQLitePath:       util.TrimWithDefault(c.SQLite.Path, constants.DefaultSQLitePath),
		PostgresDSN:      c.Postgres.BuildDSN(),
		TablePrefix:      c.TablePrefix,
		SaveResponseBody: c.SaveResponseBody,
	}
}

type ClientConfig struct {
	Insecure      bool   `mapstructure:"insecure" yaml:"insecure"`
	MinTLSVersion string `mapstructure:"min_tls_version" yaml:"min_tls_version"`
	MaxTLSVersion string `mapstructure:"max_tls_version" yaml:"max_tls_version"`
	UserAgent     string `mapstructure:"user_agent" yaml:"user_agent"`
}

// ToOptions builds the shared HTTP client options.
func (c ClientConfig) ToOptions() *httpc.Httpc {
	return &httpc.Httpc{
		TlsConfig: httpc.TLSConfig(c.Insecure, c.MinTLSVersion, c.MaxTLSVersion),
		UserAgent: c.UserAgent,
	}
}

type UsageConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	KeyEnv  string        `mapstructure:"key_env" yaml:"key_env"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Key returns the configured key, falling back to the KeyEnv variable.
func (c UsageConfig) Key() string {
	if k, ok := util.TrimEmptyCheck(c.APIKey); ok {
		return k
	}
	return strings.TrimSpace(os.Getenv(util.TrimWithDefault(c.KeyEnv, constants.DefaultUsageKeyEnv)))
}

type MockConfig struct {
	Addr    string        `mapstructure:"addr" yaml:"addr"`
	Latency time.Duration `mapstructure:"latency" yaml:"latency"`
}

type ConfigDoc struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Run     RunConfig     `mapstructure:"run" yaml:"run"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Client  ClientConfig  `mapstructure:"client" yaml:"client"`
	Usage   UsageConfig   `mapstructure:"usage" yaml:"usage"`
	Mock    MockConfig    `mapstructure:"mock" yaml:"mock"`
}

// EnvPrefix prefixes environment overrides, e.g. INTENTRUN_RUN_DELAY=1s.
const EnvPrefix = "INTENTRUN"

// Init registers defaults and environment lookup on v.
func Init(v *viper.Viper) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers every key with its default so env variables are picked up on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("config", "")
	v.SetDefault("api.base_url", constants.DefaultBaseURL)
	v.SetDefault("api.intent_path", constants.DefaultIntentPath)
	v.SetDefault("api.health_path", constants.DefaultHealthPath)
	v.SetDefault("run.csv_file", constants.DefaultCSVFile)
	v.SetDefault("run.delay", constants.DefaultRequestDelay)
	v.SetDefault("run.timeout", constants.DefaultRequestTimeout)
	v.SetDefault("run.health_timeout", constants.DefaultHealthTimeout)
	v.SetDefault("run.limit", 0)
	v.SetDefault("report.dir", constants.DefaultReportDir)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.mask_sensitive", true)
	v.SetDefault("store.type", "")
	v.SetDefault("store.save_response_body", false)
	v.SetDefault("store.sqlite.path", constants.DefaultSQLitePath)
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.host", "")
	v.SetDefault("store.postgres.port", constants.DefaultPostgresPort)
	v.SetDefault("store.postgres.user", "")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.dbname", "")
	v.SetDefault("store.postgres.sslmode", constants.DefaultPostgresSSLMode)
	v.SetDefault("store.table_prefix", "")
	v.SetDefault("client.insecure", false)
	v.SetDefault("client.min_tls_version", "")
	v.SetDefault("client.max_tls_version", "")
	v.SetDefault("client.user_agent", "intentrun")
	v.SetDefault("usage.url", constants.DefaultUsageURL)
	v.SetDefault("usage.api_key", "")
	v.SetDefault("usage.key_env", constants.DefaultUsageKeyEnv)
	v.SetDefault("usage.timeout", constants.DefaultUsageTimeout)
	v.SetDefault("mock.addr", constants.DefaultMockAddr)
	v.SetDefault("mock.latency", time.Duration(0))
}

// ReadFile decodes a YAML config file into a plain map suitable for viper.MergeConfigMap.
func ReadFile(path string) (map[string]any, error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the user; cleaned and validated above
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", clean, err)
	}
	return m, nil
}

// Load layers the config file (if any) under env variables and flags already bound to v and
// decodes the result.
func Load(v *viper.Viper) (*ConfigDoc, error) {
	path, explicit := util.TrimEmptyCheck(v.GetString("config"))
	if !explicit {
		path = DefaultConfigPath
	}
	m, err := ReadFile(path)
	switch {
	case err == nil:
		if err := v.MergeConfigMap(m); err != nil {
			return nil, fmt.Errorf("failed to merge config %s: %w", path, err)
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
		// optional default file
	default:
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var doc ConfigDoc
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(&doc, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate rejects values that would only fail later in the run.
func (c *ConfigDoc) Validate() error {
	if _, ok := util.TrimEmptyCheck(c.API.BaseURL); !ok {
		return errors.New("api.base_url must not be empty")
	}
	if c.Run.Timeout < 0 || c.Run.HealthTimeout < 0 {
		return errors.New("run.timeout and run.health_timeout must not be negative")
	}
	if c.Run.Limit < 0 {
		return fmt.Errorf("run.limit must not be negative: %d", c.Run.Limit)
	}
	switch util.TrimAndLower(c.Store.Type) {
	case "", "sqlite", "sqlite3", "postgresql", "postgres", "pgx":
	default:
		return fmt.Errorf("invalid store.type: %s (valid: sqlite, postgresql)", c.Store.Type)
	}
	if _, ok := common.ParseLogLevel(util.TrimAndLower(c.Logging.Level)); !ok {
		return fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
	return nil
}

// Harness builds the run harness from the config.
func (c *ConfigDoc) Harness() *intentrun.Harness {
	delay := c.Run.Delay
	if delay == 0 {
		// an explicit 0 in config means no pause
		delay = -1
	}
	return &intentrun.Harness{
		BaseURL:        c.API.BaseURL,
		IntentPath:     c.API.IntentPath,
		HealthPath:     c.API.HealthPath,
		CSVFile:        c.Run.CSVFile,
		ReportDir:      c.Report.Dir,
		Delay:          delay,
		RequestTimeout: c.Run.Timeout,
		HealthTimeout:  c.Run.HealthTimeout,
		Limit:          c.Run.Limit,
		Client:         c.Client.ToOptions(),
		StoreConfig:    c.Store.ToStoreConfig(),
	}
}

// SetupLogging configures the global logger based on config settings
func (c *ConfigDoc) SetupLogging() error {
	level, ok := common.ParseLogLevel(util.TrimAndLower(c.Logging.Level))
	if !ok {
		return fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}

	var logger *common.Logger
	format := util.TrimAndLower(c.Logging.Format)
	switch format {
	case "json":
		logger = common.NewJSONLogger(level)
	case "color", "colour":
		logger = common.NewColorLogger(level)
	case "text", "":
		logger = common.NewLogger(level)
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}
	logger.EnableMasking(c.Logging.MaskSensitive)
	common.SetDefaultLogger(logger)

	logger.Debug("logging configured",
		"level", level.String(),
		"format", util.TrimWithDefault(format, "text"),
		"mask_sensitive", c.Logging.MaskSensitive)
	return nil
}
