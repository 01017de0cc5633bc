// Package config loads server and client configuration from flags,
// environment variables, and YAML files, following the teacher stack's
// viper + mapstructure + validator pipeline (spec "AMBIENT STACK"
// "Configuration").
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/udsforge/udsforge/internal/bytesize"
)

// ServerConfig is the udsserver configuration document.
//
// Precedence (highest to lowest): CLI flags > environment variables
// (UDSFORGE_*) > config file > defaults.
type ServerConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	Isotp IsotpConfig `mapstructure:"isotp" yaml:"isotp"`

	Timing TimingConfig `mapstructure:"timing" yaml:"timing"`

	Security SecurityConfig `mapstructure:"security" yaml:"security"`

	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	Audit AuditConfig `mapstructure:"audit" yaml:"audit"`

	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`

	Obsapi ObsapiConfig `mapstructure:"obsapi" yaml:"obsapi"`

	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// ClientConfig is the udsclient/shell configuration document.
type ClientConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	Isotp IsotpConfig `mapstructure:"isotp" yaml:"isotp"`

	DefaultTimeoutMs int `mapstructure:"default_timeout_ms" validate:"omitempty,gt=0" yaml:"default_timeout_ms"`

	// Secret is the shared secret the demo XORAlgorithm uses to compute
	// a SecurityAccess key from a server-issued seed. Real deployments
	// replace this with a vendor security.Algorithm (spec §9 "Security
	// algorithm plug-point").
	Secret string `mapstructure:"secret" yaml:"secret"`

	History HistoryConfig `mapstructure:"history" yaml:"history"`
}

// LoggingConfig controls logging behavior (spec "AMBIENT STACK" "Logging").
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// IsotpConfig configures the ISO-TP binding both sides of the link use.
type IsotpConfig struct {
	Interface  string        `mapstructure:"interface" validate:"required" yaml:"interface"`
	PhysSource uint32        `mapstructure:"phys_source" yaml:"phys_source"`
	PhysTarget uint32        `mapstructure:"phys_target" yaml:"phys_target"`
	FuncSource uint32        `mapstructure:"func_source" yaml:"func_source"`
	BlockSize  uint8         `mapstructure:"block_size" yaml:"block_size"`
	STmin      time.Duration `mapstructure:"stmin" yaml:"stmin"`
}

// TimingConfig configures the server's P2/P2* and S3 session timeout.
type TimingConfig struct {
	P2Ms             int `mapstructure:"p2_ms" validate:"omitempty,gt=0" yaml:"p2_ms"`
	P2StarMs         int `mapstructure:"p2_star_ms" validate:"omitempty,gt=0" yaml:"p2_star_ms"`
	SessionTimeoutMs int `mapstructure:"session_timeout_ms" validate:"omitempty,gt=0" yaml:"session_timeout_ms"`
}

// SecurityConfig configures the SecurityAccess seed/key challenge.
type SecurityConfig struct {
	Secret   string `mapstructure:"secret" yaml:"secret"`
	SeedSize int    `mapstructure:"seed_size" validate:"omitempty,gt=0" yaml:"seed_size"`
}

// StorageConfig configures the badger-backed parameter store and the
// file-transfer engine's on-disk bounds.
type StorageConfig struct {
	ParamStorePath string           `mapstructure:"param_store_path" validate:"required" yaml:"param_store_path"`
	TransferDir    string           `mapstructure:"transfer_dir" validate:"required" yaml:"transfer_dir"`
	MaxFileSize    bytesize.ByteSize `mapstructure:"max_file_size" yaml:"max_file_size"`
}

// AuditConfig configures the JWT unlock-attestation service.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Secret  string `mapstructure:"secret" yaml:"secret"`
	Issuer  string `mapstructure:"issuer" yaml:"issuer"`
}

// ArchiveConfig configures optional S3 transfer archival.
type ArchiveConfig struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	KeyPrefix      string `mapstructure:"key_prefix" yaml:"key_prefix"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// ObsapiConfig configures the observability HTTP sidecar.
type ObsapiConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// TelemetryConfig controls continuous profiling (spec "AMBIENT STACK").
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// TracingConfig controls distributed tracing: one span per dispatched
// UDS request (pkg/uds/server.Server.Handle), exported over OTLP/gRPC.
// Disabled by default, like Telemetry above.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,min=0,max=1" yaml:"sample_rate"`
}

// HistoryConfig configures the interactive shell's persisted history.
type HistoryConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxEntries int    `mapstructure:"max_entries" validate:"omitempty,gt=0" yaml:"max_entries"`
}

// LoadServerConfig loads a ServerConfig from configPath (or the default
// location if empty), applying defaults, then validating the result.
// UDSFORGE_* environment variables override only keys that the config
// file sets; when no config file is found, they are not read.
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v := newViper(configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultServerConfig()
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(byteSizeDecodeHook())); err != nil {
			return nil, fmt.Errorf("config: unmarshal server config: %w", err)
		}
	}
	applyServerDefaults(cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validate server config: %w", err)
	}
	return cfg, nil
}

// LoadClientConfig loads a ClientConfig the same way LoadServerConfig
// loads a ServerConfig.
func LoadClientConfig(configPath string) (*ClientConfig, error) {
	v := newViper(configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultClientConfig()
	if found {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal client config: %w", err)
		}
	}
	applyClientDefaults(cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validate client config: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("UDSFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(configDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	return v
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "udsforge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "udsforge")
}

// SaveServerConfig writes cfg to path as YAML.
func SaveServerConfig(cfg *ServerConfig, path string) error {
	return saveYAML(cfg, path)
}

// SaveClientConfig writes cfg to path as YAML.
func SaveClientConfig(cfg *ClientConfig, path string) error {
	return saveYAML(cfg, path)
}

func saveYAML(cfg any, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write config file: %w", err)
	}
	return nil
}

// byteSizeDecodeHook lets config files express storage.max_file_size as
// a human-readable size ("64Mi", "1Gi") instead of a raw byte count.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
