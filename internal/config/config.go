// Package config provides configuration loading for the honeynet pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when no explicit
// config file is given.
const DefaultConfigFile = "honeynet.yaml"

// EnvPrefix is prepended to every environment override (HONEYNET_REMOTE_HOST).
const EnvPrefix = "HONEYNET"

// Config is the master configuration passed to every pipeline stage.
type Config struct {
	Workdir  string         `mapstructure:"workdir" yaml:"workdir"`
	Honeypot HoneypotConfig `mapstructure:"honeypot" yaml:"honeypot"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Remote   RemoteConfig   `mapstructure:"remote" yaml:"remote"`
	Forward  ForwardConfig  `mapstructure:"forward" yaml:"forward"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify"`
}

// HoneypotConfig describes where the Cowrie source, runtime environment and
// its own files live. Paths are relative to Workdir.
type HoneypotConfig struct {
	RepoURL      string `mapstructure:"repo_url" yaml:"repo_url"`
	SourceDir    string `mapstructure:"source_dir" yaml:"source_dir"`
	EnvDir       string `mapstructure:"env_dir" yaml:"env_dir"`
	Python       string `mapstructure:"python" yaml:"python"`
	Requirements string `mapstructure:"requirements" yaml:"requirements"`
	ConfigFile   string `mapstructure:"config_file" yaml:"config_file"`
	Hostname     string `mapstructure:"hostname" yaml:"hostname"`
	EventLog     string `mapstructure:"event_log" yaml:"event_log"`
}

// OutputConfig holds the script-owned output files.
type OutputConfig struct {
	RunLog        string `mapstructure:"run_log" yaml:"run_log"`
	CollectedLogs string `mapstructure:"collected_logs" yaml:"collected_logs"`
}

// RemoteConfig holds the target of the remote executor.
type RemoteConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Host       string        `mapstructure:"host" yaml:"host"`
	Port       int           `mapstructure:"port" yaml:"port"`
	Username   string        `mapstructure:"username" yaml:"username"`
	Password   string        `mapstructure:"password" yaml:"password"`
	Command    string        `mapstructure:"command" yaml:"command"`
	KnownHosts string        `mapstructure:"known_hosts" yaml:"known_hosts"` // empty disables host key checking
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`         // dial and handshake; 0 means none
}

// ForwardConfig holds destinations for collected events.
type ForwardConfig struct {
	OpenSearch OpenSearchConfig `mapstructure:"opensearch" yaml:"opensearch"`
}

// OpenSearchConfig holds OpenSearch connection settings
type OpenSearchConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	URL           string `mapstructure:"url" yaml:"url"`
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"password"`
	Index         string `mapstructure:"index" yaml:"index"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify"`
}

// MetricsConfig holds the Prometheus textfile destination.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// NotifyConfig holds run notification settings.
type NotifyConfig struct {
	NATS NATSConfig `mapstructure:"nats" yaml:"nats"`
}

// NATSConfig holds NATS message broker configuration
type NATSConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	URL     string        `mapstructure:"url" yaml:"url"`
	Subject string        `mapstructure:"subject" yaml:"subject"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Load reads configuration from cfgFile (or ./honeynet.yaml when cfgFile is
// empty) and HONEYNET_* environment variables. A missing default file is not
// an error; a missing explicit file is.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	explicit := cfgFile != ""
	if !explicit {
		cfgFile = DefaultConfigFile
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without consulting files or
// the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults are literals of the right types; decoding cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("workdir", ".")

	// Cowrie layout
	v.SetDefault("honeypot.repo_url", "https://github.com/cowrie/cowrie.git")
	v.SetDefault("honeypot.source_dir", "cowrie")
	v.SetDefault("honeypot.env_dir", "cowrie-env")
	v.SetDefault("honeypot.python", "python3")
	v.SetDefault("honeypot.requirements", "cowrie/requirements.txt")
	v.SetDefault("honeypot.config_file", "cowrie/etc/cowrie.cfg")
	v.SetDefault("honeypot.hostname", "Honeypot-Server")
	v.SetDefault("honeypot.event_log", "cowrie/var/log/cowrie/cowrie.json")

	v.SetDefault("output.run_log", "honeynet_automation.log")
	v.SetDefault("output.collected_logs", "honeynet_logs.json")

	// Demonstration remote call
	v.SetDefault("remote.enabled", true)
	v.SetDefault("remote.host", "127.0.0.1")
	v.SetDefault("remote.port", 22)
	v.SetDefault("remote.username", "test_user")
	v.SetDefault("remote.password", "test_password")
	v.SetDefault("remote.command", "ls -la")
	v.SetDefault("remote.known_hosts", "")
	v.SetDefault("remote.timeout", "0s")

	v.SetDefault("forward.opensearch.enabled", false)
	v.SetDefault("forward.opensearch.url", "https://localhost:9200")
	v.SetDefault("forward.opensearch.username", "admin")
	v.SetDefault("forward.opensearch.password", "admin")
	v.SetDefault("forward.opensearch.index", "cowrie-events")
	v.SetDefault("forward.opensearch.tls_skip_verify", true)

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("notify.nats.enabled", false)
	v.SetDefault("notify.nats.url", "nats://localhost:4222")
	v.SetDefault("notify.nats.subject", "honeynet.pipeline.completed")
	v.SetDefault("notify.nats.timeout", "5s")
}

// Path resolves a configured relative path against Workdir. Absolute paths
// are returned unchanged.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Workdir, p)
}

// Redacted returns a copy with every secret replaced.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Remote.Password != "" {
		out.Remote.Password = "********"
	}
	if out.Forward.OpenSearch.Password != "" {
		out.Forward.OpenSearch.Password = "********"
	}
	return &out
}

// YAML renders the configuration with secrets redacted.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}
