package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// configTemplate is the commented sample configuration written by
// `udpchat init`. Keep it in sync with the defaults in defaults.go; the
// generated file must load and validate as-is.
const configTemplate = `# UDPChat Configuration File
#
# This file configures the UDPChat server. All values shown are the
# defaults; uncomment and edit the ones you want to change.
#
# Every option can also be set through the environment with the UDPCHAT_
# prefix, e.g. UDPCHAT_LOGGING_LEVEL=DEBUG. The legacy variables of
# earlier deployments (SERVER_IP, SERVER_PORT, BUFFER_SIZE, DEBUG, DB_*,
# AI_MODE, OPENAI_API_KEY, METRICS_PORT) keep working and take
# precedence over this file.

# UDP listener and session lifecycle.
server:
  host: 127.0.0.1
  port: 9999
  # Datagram read buffer; bounds the size of a single packet.
  buffer_size: 8192
  # Sessions idle longer than this are evicted and purged.
  session_timeout: 60s
  sweep_interval: 10s
  # Database purge runs every N sweeps.
  cleanup_cycles: 6
  # Reliable delivery: resend unACKed packets this often, this many times.
  retry_interval: 2s
  max_retries: 5
  queue_size: 4096

# Persistent store. SQLite needs no setup; switch to postgres for
# deployments with an external database.
database:
  type: sqlite
  sqlite:
    path: storage/udpchat.db
  # postgres:
  #   host: localhost
  #   port: 5432
  #   database: udpchat
  #   user: udpchat_user
  #   password: udpchat_password
  #   sslmode: disable

# Server RSA identity. The keypair is generated on first start; clients
# pin the fingerprint printed at startup.
keys:
  dir: storage/keys

# Password hashing for accounts that set one. md5 is compatible with
# databases written by earlier deployments; bcrypt is recommended for
# new installations. Verification accepts both regardless.
auth:
  password_hash: md5

# AI assistant. ollama talks to a local model server; gpt talks to an
# OpenAI-compatible API and requires api_key; off disables AI_MESSAGE.
ai:
  mode: ollama
  # model: mistral
  # api_key: ""
  ollama_host: http://localhost:11434
  timeout: 30s

# HTTP endpoint serving /health, /ready and /metrics.
api:
  enabled: true
  host: 127.0.0.1
  port: 8000

# Prometheus metrics collection.
metrics:
  enabled: true

# Logging. Level is one of DEBUG, INFO, WARN, ERROR; format is text or
# json; output is stdout, stderr or a file path.
logging:
  level: INFO
  format: text
  output: stdout

# OpenTelemetry tracing and Pyroscope profiling (both opt-in).
telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040

# Maximum time to wait for in-flight work during shutdown.
shutdown_timeout: 30s
`

// InitConfig writes the sample configuration file to the default
// location and returns its path. Refuses to overwrite an existing file
// unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the sample configuration file to the given
// path, creating parent directories as needed. Refuses to overwrite an
// existing file unless force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The template documents defaults but may hold credentials once
	// edited, so start it owner-only like SaveConfig does.
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
