// Package config parses the quasar configuration document: the
// configuration-file parser this module treats as an external
// collaborator, made concrete here since the master loop's reconfigure
// path needs something real to reparse on every reconfigure.
//
// Modeled on a YAML-driven config loader
// (internal/spec/function.go's Parse/Validate shape) and its
// environment-overlay convention (internal/config/config.go's
// LoadFromEnv), both reused here for a much smaller document.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Listen is one entry of the listen[] directive: an address plus
// per-listener overrides, matching the "Listening socket"
// entity (address, backlog, flags).
type Listen struct {
	Address string `yaml:"address"`
	Backlog int    `yaml:"backlog,omitempty"`
	Vsock   bool   `yaml:"vsock,omitempty"`
}

// Config is the root configuration document a cycle is built from
// (the Cycle's "opaque per-module configuration vector" made
// concrete for this module's one "module": the core itself).
type Config struct {
	WorkerProcesses    int      `yaml:"worker_processes"`
	WorkerConnections  int      `yaml:"worker_connections"`
	Listen             []Listen `yaml:"listen"`
	PidPath            string   `yaml:"pid_path"`
	ErrorLog           string   `yaml:"error_log"`
	AcceptMutex        bool     `yaml:"accept_mutex"`
	AcceptMutexDelayMS int      `yaml:"accept_mutex_delay_ms"`
	AcceptLockPath     string   `yaml:"accept_lock_path"`
	Daemon             bool     `yaml:"daemon"`
	LogFormat          string   `yaml:"log_format"` // "text" or "json", see internal/logging
	LogLevel           string   `yaml:"log_level"`  // debug, info, warn, error

	// MetricsBasePort, when non-zero, has worker i serve its own
	// Prometheus /metrics handler on MetricsBasePort+i (see
	// internal/metrics); 0 disables the HTTP exposition entirely.
	MetricsBasePort int `yaml:"metrics_base_port,omitempty"`

	// AdminSocket, when set, has the master serve internal/admin's gRPC
	// control surface on this unix socket path.
	AdminSocket string `yaml:"admin_socket,omitempty"`

	// Tracing mirrors internal/observability.Config's knobs.
	TracingEnabled  bool   `yaml:"tracing_enabled,omitempty"`
	TracingExporter string `yaml:"tracing_exporter,omitempty"`
	TracingEndpoint string `yaml:"tracing_endpoint,omitempty"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate,omitempty"`

	// Redis/FleetChannel, when RedisAddr is set, has the master subscribe
	// to reconfigure/reopen notifications shared across a fleet of
	// masters behind the same load balancer (internal/fleet).
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
	FleetChannel  string `yaml:"fleet_channel,omitempty"`
}

// Default returns a Config with the same defaults a
// ngx_event_core_module and ngx_core_module compile in.
func Default() *Config {
	return &Config{
		WorkerProcesses:    1,
		WorkerConnections:  512,
		Listen:             []Listen{{Address: "0.0.0.0:8080", Backlog: 511}},
		PidPath:            "/var/run/quasar.pid",
		ErrorLog:           "/var/log/quasar/error.log",
		AcceptMutex:        true,
		AcceptMutexDelayMS: 500,
		AcceptLockPath:     "/var/run/quasar.accept.lock",
		Daemon:             false,
		LogFormat:          "text",
		LogLevel:           "info",
		TracingExporter:    "otlp-http",
		TracingEndpoint:    "localhost:4318",
		TracingSampleRate:  1.0,
		FleetChannel:       "quasar:fleet",
	}
}

// Parse decodes one YAML document into a Config seeded with Default's
// values, so a document that only overrides a few fields still yields a
// complete, valid Config.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses path. Callers needing s3:// support should go
// through internal/configsource.Load instead, which delegates local
// paths to this function.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate rejects a Config the master should refuse to start or
// reconfigure from, matching the "Fatal startup: ... config
// parse failure" category.
func (c *Config) Validate() error {
	if c.WorkerProcesses <= 0 {
		return fmt.Errorf("config: worker_processes must be positive, got %d", c.WorkerProcesses)
	}
	if c.WorkerConnections <= 0 {
		return fmt.Errorf("config: worker_connections must be positive, got %d", c.WorkerConnections)
	}
	if len(c.Listen) == 0 {
		return fmt.Errorf("config: at least one listen[] entry is required")
	}
	for _, l := range c.Listen {
		if l.Address == "" {
			return fmt.Errorf("config: listen entry has empty address")
		}
	}
	if c.AcceptMutexDelayMS < 0 {
		return fmt.Errorf("config: accept_mutex_delay_ms must be >= 0, got %d", c.AcceptMutexDelayMS)
	}
	return nil
}

// Marshal re-serializes c back to YAML, used by the round-trip /
// idempotence property test ("RECONFIGURE with an
// unchanged config file produces a functionally identical cycle").
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// EnvPrefix is the prefix LoadFromEnv overlays onto a parsed Config,
// following the same env-overlay-over-file convention as QUASAR_* below.
const EnvPrefix = "QUASAR_"

// LoadFromEnv overlays the QUASAR_* environment variables it knows onto
// cfg; unset or unparsable numeric values leave the field as it was.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("QUASAR_WORKER_PROCESSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerProcesses = n
		}
	}
	if v := os.Getenv("QUASAR_WORKER_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerConnections = n
		}
	}
	if v := os.Getenv("QUASAR_PID_PATH"); v != "" {
		cfg.PidPath = v
	}
	if v := os.Getenv("QUASAR_ERROR_LOG"); v != "" {
		cfg.ErrorLog = v
	}
	if v := os.Getenv("QUASAR_ACCEPT_MUTEX"); v != "" {
		cfg.AcceptMutex = parseBool(v)
	}
	if v := os.Getenv("QUASAR_ACCEPT_MUTEX_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AcceptMutexDelayMS = n
		}
	}
	if v := os.Getenv("QUASAR_DAEMON"); v != "" {
		cfg.Daemon = parseBool(v)
	}
	if v := os.Getenv("QUASAR_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("QUASAR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("QUASAR_LISTEN"); v != "" {
		cfg.Listen = parseListenEnv(v)
	}
	if v := os.Getenv("QUASAR_ACCEPT_LOCK_PATH"); v != "" {
		cfg.AcceptLockPath = v
	}
	if v := os.Getenv("QUASAR_METRICS_BASE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MetricsBasePort = n
		}
	}
	if v := os.Getenv("QUASAR_ADMIN_SOCKET"); v != "" {
		cfg.AdminSocket = v
	}
	if v := os.Getenv("QUASAR_TRACING_ENABLED"); v != "" {
		cfg.TracingEnabled = parseBool(v)
	}
	if v := os.Getenv("QUASAR_TRACING_ENDPOINT"); v != "" {
		cfg.TracingEndpoint = v
	}
	if v := os.Getenv("QUASAR_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("QUASAR_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("QUASAR_FLEET_CHANNEL"); v != "" {
		cfg.FleetChannel = v
	}
}

// parseListenEnv parses a comma-separated QUASAR_LISTEN override, e.g.
// "0.0.0.0:8080,unix:/run/quasar.sock", into Listen entries with the
// default backlog.
func parseListenEnv(v string) []Listen {
	parts := strings.Split(v, ",")
	out := make([]Listen, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, Listen{Address: p, Backlog: 511})
	}
	return out
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}
