package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultHost is the asset CDN of the live service.
const DefaultHost = "http://storage.game.starlight-stage.jp"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Resource  ResourceConfig  `mapstructure:"resource"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	Download  DownloadConfig  `mapstructure:"download"`
	UI        UIConfig        `mapstructure:"ui"`
	Logging   LoggingConfig   `mapstructure:"logging"`

	v   *viper.Viper
	dir string
}

// ServerConfig holds the remote service configuration
type ServerConfig struct {
	Host     string        `mapstructure:"host"`
	CheckURL string        `mapstructure:"check_url"` // authoritative version check, optional
	Account  string        `mapstructure:"account"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ResourceConfig holds the resource version state
type ResourceConfig struct {
	PinnedVersion int `mapstructure:"pinned_version"` // 0 = discover
	LatestVersion int `mapstructure:"latest_version"` // last confirmed version
}

// PathsConfig holds local storage locations
type PathsConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// TranscodeConfig holds the external sound transcoder. An empty command
// selects the built-in vgmstream-cli + ffmpeg chain.
type TranscodeConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"` // {src} and {dst} are substituted
}

// DownloadConfig holds batch download settings
type DownloadConfig struct {
	MinFreeMB uint64 `mapstructure:"min_free_mb"`
}

// UIConfig holds UI configuration
type UIConfig struct {
	Background int `mapstructure:"background"` // card id, 0 = follow the event
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    DefaultHost,
			Timeout: 30 * time.Second,
		},
		Resource: ResourceConfig{
			LatestVersion: 10031600,
		},
		Paths: PathsConfig{
			DataDir: filepath.Join(defaultDataPath(), "data"),
		},
		Download: DownloadConfig{
			MinFreeMB: 512,
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "starlight.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data root for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "starlight")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "starlight")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "starlight")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "starlight")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	return load(defaultConfigPath(), ".")
}

// LoadConfigFrom loads configuration from dir only. Saves go back to dir.
func LoadConfigFrom(dir string) (*Config, error) {
	return load(dir)
}

func load(dirs ...string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	// Environment variable overrides: STARLIGHT_SERVER_HOST, ...
	v.SetEnvPrefix("STARLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.v = v
	cfg.dir = dirs[0]
	if used := v.ConfigFileUsed(); used != "" {
		cfg.dir = filepath.Dir(used)
	}
	cfg.Paths.DataDir = expandHome(cfg.Paths.DataDir)
	cfg.Logging.File = expandHome(cfg.Logging.File)
	return cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.check_url", cfg.Server.CheckURL)
	v.SetDefault("server.account", cfg.Server.Account)
	v.SetDefault("server.timeout", cfg.Server.Timeout)
	v.SetDefault("resource.pinned_version", cfg.Resource.PinnedVersion)
	v.SetDefault("resource.latest_version", cfg.Resource.LatestVersion)
	v.SetDefault("paths.data_dir", cfg.Paths.DataDir)
	v.SetDefault("transcode.command", cfg.Transcode.Command)
	v.SetDefault("transcode.args", cfg.Transcode.Args)
	v.SetDefault("download.min_free_mb", cfg.Download.MinFreeMB)
	v.SetDefault("ui.background", cfg.UI.Background)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// set updates a single key and writes the config file back.
func (c *Config) set(key string, value any) error {
	if c.v == nil {
		return errors.New("config was not loaded from a file location")
	}
	c.v.Set(key, value)

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(c.dir, "config.yaml")
	if err := c.v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// IsConfigured returns true if the asset host is set
func (c *Config) IsConfigured() bool {
	return c.Server.Host != ""
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}
