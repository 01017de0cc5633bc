package config

import (
	"time"

	"github.com/udsforge/udsforge/internal/bytesize"
)

// DefaultServerConfig returns a ServerConfig with every field at its
// spec-prescribed default; LoadServerConfig starts from it before
// applying the config file.
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{}
	applyServerDefaults(cfg)
	return cfg
}

// DefaultClientConfig returns a ClientConfig with every field at its
// default.
func DefaultClientConfig() *ClientConfig {
	cfg := &ClientConfig{}
	applyClientDefaults(cfg)
	return cfg
}

func applyServerDefaults(cfg *ServerConfig) {
	applyLoggingDefaults(&cfg.Logging)
	applyIsotpDefaults(&cfg.Isotp)

	if cfg.Timing.P2Ms == 0 {
		cfg.Timing.P2Ms = 50
	}
	if cfg.Timing.P2StarMs == 0 {
		cfg.Timing.P2StarMs = 5000
	}
	if cfg.Timing.SessionTimeoutMs == 0 {
		cfg.Timing.SessionTimeoutMs = 5000
	}

	if cfg.Security.SeedSize == 0 {
		cfg.Security.SeedSize = 2
	}
	if cfg.Security.Secret == "" {
		cfg.Security.Secret = defaultSecuritySecret
	}

	if cfg.Storage.ParamStorePath == "" {
		cfg.Storage.ParamStorePath = "/var/lib/udsforge/paramstore"
	}
	if cfg.Storage.TransferDir == "" {
		cfg.Storage.TransferDir = "/var/lib/udsforge/transfers"
	}
	if cfg.Storage.MaxFileSize == 0 {
		cfg.Storage.MaxFileSize = 64 * bytesize.MiB
	}

	if cfg.Audit.Issuer == "" {
		cfg.Audit.Issuer = "udsforge"
	}

	if cfg.Obsapi.Port == 0 {
		cfg.Obsapi.Port = 9090
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "http://localhost:4040"
	}

	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = "localhost:4317"
	}
	if cfg.Tracing.SampleRate == 0 {
		cfg.Tracing.SampleRate = 1.0
	}
}

func applyClientDefaults(cfg *ClientConfig) {
	applyLoggingDefaults(&cfg.Logging)
	applyIsotpDefaults(&cfg.Isotp)

	if cfg.DefaultTimeoutMs == 0 {
		cfg.DefaultTimeoutMs = 1000
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "~/.uds_history"
	}
	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = 500
	}
	if cfg.Secret == "" {
		cfg.Secret = defaultSecuritySecret
	}
}

// defaultSecuritySecret is the out-of-the-box shared secret for the
// demo XORAlgorithm; real deployments override both sides via
// security.secret / secret in their config files (spec §9 "Security
// algorithm plug-point").
const defaultSecuritySecret = "udsforge-default-demo-secret"

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyIsotpDefaults(cfg *IsotpConfig) {
	if cfg.Interface == "" {
		cfg.Interface = "can0"
	}
	if cfg.PhysSource == 0 {
		cfg.PhysSource = 0x7E0
	}
	if cfg.PhysTarget == 0 {
		cfg.PhysTarget = 0x7E8
	}
	if cfg.FuncSource == 0 {
		cfg.FuncSource = 0x7DF
	}
	if cfg.STmin == 0 {
		cfg.STmin = 0
	}
}

// defaultTimeout is the package's canonical fallback timeout, matching
// the ClientConfig.DefaultTimeoutMs default; it is unexported.
const defaultTimeout = 1000 * time.Millisecond
