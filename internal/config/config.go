package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/michaelbrown/skillforge/internal/logging"
	"github.com/michaelbrown/skillforge/internal/sandbox"
)

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`
}

type CheckerConfig struct {
	Compiler       string        `mapstructure:"compiler"`
	WorkspaceRoot  string        `mapstructure:"workspace_root"`
	CompileTimeout time.Duration `mapstructure:"compile_timeout"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
	MaxOutputLines int           `mapstructure:"max_output_lines"`
	MaxOutputChars int           `mapstructure:"max_output_chars"`
}

type SandboxConfig struct {
	Driver      string `mapstructure:"driver"` // local or docker
	DockerImage string `mapstructure:"docker_image"`
	MaxMemory   string `mapstructure:"max_memory"`
	Network     bool   `mapstructure:"network"`
}

type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Storage StorageConfig  `mapstructure:"storage"`
	Checker CheckerConfig  `mapstructure:"checker"`
	Sandbox SandboxConfig  `mapstructure:"sandbox"`
	Cache   CacheConfig    `mapstructure:"cache"`
	Logging logging.Config `mapstructure:"logging"`
}

// Load reads skillforge.yaml from the working directory or ~/.skillforge.
// A missing file is fine; defaults and SKILLFORGE_* variables still apply.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	// .env only seeds the environment; real variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("skillforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.skillforge")
	}

	v.SetEnvPrefix("SKILLFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	p := sandbox.DefaultPolicy()

	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", filepath.Join(os.Getenv("HOME"), ".skillforge", "skillforge.db"))
	v.SetDefault("checker.compiler", "gcc")
	v.SetDefault("checker.workspace_root", os.TempDir())
	v.SetDefault("checker.compile_timeout", p.CompileTimeout)
	v.SetDefault("checker.run_timeout", p.RunTimeout)
	v.SetDefault("checker.max_output_lines", p.MaxOutputLines)
	v.SetDefault("checker.max_output_chars", p.MaxOutputChars)
	v.SetDefault("sandbox.driver", "local")
	v.SetDefault("sandbox.docker_image", p.Image)
	v.SetDefault("sandbox.max_memory", p.MaxMemory)
	v.SetDefault("sandbox.network", p.Network)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	if c.Checker.CompileTimeout <= 0 || c.Checker.RunTimeout <= 0 {
		return fmt.Errorf("checker timeouts must be positive")
	}
	if c.Checker.MaxOutputLines <= 0 || c.Checker.MaxOutputChars <= 0 {
		return fmt.Errorf("checker output caps must be positive")
	}
	return nil
}

// Policy converts the checker and sandbox sections into sandbox limits.
func (c *Config) Policy() sandbox.Policy {
	return sandbox.Policy{
		CompileTimeout: c.Checker.CompileTimeout,
		RunTimeout:     c.Checker.RunTimeout,
		MaxOutputLines: c.Checker.MaxOutputLines,
		MaxOutputChars: c.Checker.MaxOutputChars,
		Image:          c.Sandbox.DockerImage,
		MaxMemory:      c.Sandbox.MaxMemory,
		Network:        c.Sandbox.Network,
	}
}
