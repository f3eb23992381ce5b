package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   int    `mapstructure:"port"`
	AlternatePort          int    `mapstructure:"alternate_port"`
	BindAddress            string `mapstructure:"bind_address"`
	MaxConnections         int    `mapstructure:"max_connections"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`

	NetCommand            string `mapstructure:"net_command"`
	AppcmdCommand         string `mapstructure:"appcmd_command"`
	OutputEncoding        string `mapstructure:"output_encoding"`
	CommandTimeoutSeconds int    `mapstructure:"command_timeout_seconds"`

	AllowlistFile string    `mapstructure:"allowlist_file"`
	Allow         AllowList `mapstructure:"allow"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

// AllowList holds inline allow-list entries used when no allowlist_file is set.
type AllowList struct {
	Services []string `mapstructure:"services"`
	Websites []string `mapstructure:"websites"`
}

func Default() *Config {
	return &Config{
		Port:                   3000,
		MaxConnections:         100,
		ShutdownTimeoutSeconds: 10,
		NetCommand:             defaultNetCommand(),
		AppcmdCommand:          defaultAppcmdCommand(),
		OutputEncoding:         "utf-8",
		LogLevel:               "info",
		LogFormat:              "text",
		LogMaxSizeMB:           50,
		LogMaxBackups:          3,
	}
}

// Load reads the config file (explicit path or the default search path),
// overlays HEALTHFACADE_* environment variables and returns the result.
// A missing default config file is not an error.
func Load(cfgFile string) (*Config, error) {
	return load(viper.New(), cfgFile)
}

func load(v *viper.Viper, cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("healthfacade")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("HEALTHFACADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// bindEnv registers every key so AutomaticEnv overrides reach Unmarshal even
// when the key is absent from the file. Nested keys map "." to "_", so
// allow.services is HEALTHFACADE_ALLOW_SERVICES (comma separated).
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"port", "alternate_port", "bind_address", "max_connections", "shutdown_timeout_seconds",
		"net_command", "appcmd_command", "output_encoding", "command_timeout_seconds",
		"allowlist_file", "allow.services", "allow.websites",
		"log_level", "log_format", "log_file", "log_max_size_mb", "log_max_backups",
	} {
		_ = v.BindEnv(key)
	}
}

// Addresses returns the listen addresses: the primary port, then the
// alternate port when configured.
func (c *Config) Addresses() []string {
	addrs := []string{listenAddr(c.BindAddress, c.Port)}
	if c.AlternatePort != 0 && c.AlternatePort != c.Port {
		addrs = append(addrs, listenAddr(c.BindAddress, c.AlternatePort))
	}
	return addrs
}

// CommandTimeout returns zero when enumeration commands may run unbounded.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func listenAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "HealthFacade")
	case "darwin":
		return "/Library/Application Support/HealthFacade"
	default:
		return "/etc/healthfacade"
	}
}
