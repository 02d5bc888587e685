// Package config loads accesslogd configuration.
//
// Precedence order (highest to lowest):
// 1. Environment (ACCESSLOG_BIND, ACCESSLOG_FORMAT)
// 2. Config file (.toml, .yaml or .yml)
// 3. Built-in defaults
//
// Command-line flags are applied on top by the caller, between Resolve and
// Validate.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/airyra/accesslog/pkg/accesslog"
)

const (
	// DefaultBind is the default address the server listens on.
	DefaultBind = "localhost:7432"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultBackend is the default access log backend.
	DefaultBackend = BackendZap

	// DefaultOutput is the default access log destination.
	DefaultOutput = OutputStderr

	// EnvBind overrides server.bind.
	EnvBind = "ACCESSLOG_BIND"

	// EnvFormat overrides accesslog.format.
	EnvFormat = "ACCESSLOG_FORMAT"
)

// Access log backends.
const (
	BackendZap     = "zap"
	BackendZerolog = "zerolog"
	BackendStd     = "std"
)

// Access log outputs.
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
)

var (
	// ErrUnsupportedFile is returned for config files with an unknown extension.
	ErrUnsupportedFile = errors.New("unsupported config file type")
	// ErrInvalid is returned when a loaded config fails validation.
	ErrInvalid = errors.New("invalid config")
)

// Config is the resolved accesslogd configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	AccessLog AccessLogConfig `toml:"accesslog" yaml:"accesslog"`
	CORS      CORSConfig      `toml:"cors" yaml:"cors"`
}

// ServerConfig represents the [server] section.
type ServerConfig struct {
	Bind            string        `toml:"bind" yaml:"bind"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// AccessLogConfig represents the [accesslog] section.
type AccessLogConfig struct {
	Format  string `toml:"format" yaml:"format"`
	Backend string `toml:"backend" yaml:"backend"`
	Output  string `toml:"output" yaml:"output"`
}

// CORSConfig represents the [cors] section. CORS is disabled when no
// origins are listed.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:            DefaultBind,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		AccessLog: AccessLogConfig{
			Format:  accesslog.DefaultFormat,
			Backend: DefaultBackend,
			Output:  DefaultOutput,
		},
	}
}

// Load resolves the configuration from defaults, the file at path (if any)
// and the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
// This is useful for testing.
func LoadWithEnv(path string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg, err := Resolve(path, lookupEnv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve layers the file at path and the environment over the defaults
// without validating the result. Callers that apply further overrides, such
// as command-line flags, validate once they are done.
func Resolve(path string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if v, ok := lookupEnv(EnvBind); ok && v != "" {
		cfg.Server.Bind = v
	}
	if v, ok := lookupEnv(EnvFormat); ok && v != "" {
		cfg.AccessLog.Format = v
	}
	return cfg, nil
}

// decodeFile overlays the file at path onto cfg. Keys missing from the file
// keep their current values.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse config TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}
	return nil
}

// Validate checks that cfg can be used to start a server.
func (c *Config) Validate() error {
	if c.Server.Bind == "" {
		return fmt.Errorf("%w: server.bind is empty", ErrInvalid)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: server.shutdown_timeout must be positive", ErrInvalid)
	}

	switch c.AccessLog.Backend {
	case BackendZap, BackendZerolog, BackendStd:
	default:
		return fmt.Errorf("%w: unknown accesslog.backend %q", ErrInvalid, c.AccessLog.Backend)
	}
	switch c.AccessLog.Output {
	case OutputStderr, OutputStdout:
	default:
		return fmt.Errorf("%w: unknown accesslog.output %q", ErrInvalid, c.AccessLog.Output)
	}

	if _, err := accesslog.Compile(c.AccessLog.Format); err != nil {
		return fmt.Errorf("%w: accesslog.format: %w", ErrInvalid, err)
	}
	return nil
}
