// Package config loads daemon configuration from a YAML file overlaid with
// environment variables, following the teacher's env-first LoadConfig
// pattern extended with a file layer for the larger knob set this daemon
// needs.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values, mirroring the teacher's DefaultXxx constant block.
const (
	DefaultPort                   = "8080"
	DefaultLogLevel                = "normal"
	DefaultRateLimitPerMinute      = 100
	DefaultMaxBodySizeBytes        = 1 << 20 // 1MB
	DefaultDataDir                 = "./data"
	DefaultShutdownTimeout         = 30 * time.Second
	DefaultVerificationInterval    = 28 * 24 * time.Hour
	DefaultDefragInterval          = 7 * 24 * time.Hour
	DefaultHintQueueConcurrency    = 4
	DefaultTransactionConflictTries = 5
)

// Config holds the daemon's full configuration.
type Config struct {
	Port               string        `yaml:"port"`
	SeedNodes          []string      `yaml:"seedNodes"`
	LogLevel           string        `yaml:"logLevel"`
	RateLimitPerMinute int           `yaml:"rateLimitPerMinute"`
	MaxBodySizeBytes   int64         `yaml:"maxBodySizeBytes"`
	DataDir            string        `yaml:"dataDir"`
	ShutdownTimeout    time.Duration `yaml:"shutdownTimeout"`

	// Score engine / maintenance scheduler knobs (spec §4.3, §4.7).
	VerificationInterval time.Duration `yaml:"verificationInterval"`
	DefragInterval       time.Duration `yaml:"defragInterval"`

	// UseLegacyReferenceImplementation selects the lenient MinCapacity
	// threshold (0) for edition hint acceptance (spec §6, §9). It does not
	// change how scores are computed: the Score Engine uses the same
	// owner-scoped recomputation either way.
	UseLegacyReferenceImplementation bool `yaml:"useLegacyReferenceImplementation"`

	// HintQueueConcurrency is K, the number of concurrent slow-downloader
	// fetches (spec §4.6).
	HintQueueConcurrency int `yaml:"hintQueueConcurrency"`

	// MDNSDiscoveryEnabled toggles zeroconf-based LAN peer discovery as a
	// supplement to SeedNodes.
	MDNSDiscoveryEnabled bool `yaml:"mdnsDiscoveryEnabled"`

	// PKCS11ModulePath, if set, routes OwnIdentity key custody through a
	// PKCS#11 token instead of the in-memory keystore.
	PKCS11ModulePath string `yaml:"pkcs11ModulePath"`

	// NodeAuthSecret is the HMAC secret used to authenticate node-to-node
	// requests (mirrors the teacher's NODE_AUTH_SECRET).
	NodeAuthSecret string `yaml:"-"`
}

// MinCapacity returns the MIN_CAPACITY threshold for edition hint acceptance,
// selected by UseLegacyReferenceImplementation (spec §4.6, §9).
func (c *Config) MinCapacity() int {
	if c.UseLegacyReferenceImplementation {
		return 0
	}
	return 1
}

func defaults() *Config {
	return &Config{
		Port:                 DefaultPort,
		SeedNodes:            nil,
		LogLevel:             DefaultLogLevel,
		RateLimitPerMinute:   DefaultRateLimitPerMinute,
		MaxBodySizeBytes:     DefaultMaxBodySizeBytes,
		DataDir:              DefaultDataDir,
		ShutdownTimeout:      DefaultShutdownTimeout,
		VerificationInterval: DefaultVerificationInterval,
		DefragInterval:       DefaultDefragInterval,
		HintQueueConcurrency: DefaultHintQueueConcurrency,
	}
}

// Load reads configuration from an optional YAML file at path (ignored if it
// does not exist), then applies environment variable overrides, exactly as
// the teacher's LoadConfig applies env vars over compiled-in defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("MAX_BODY_SIZE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodySizeBytes = n
		}
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("VERIFICATION_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.VerificationInterval = d
		}
	}
	if v := os.Getenv("DEFRAG_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DefragInterval = d
		}
	}
	if v := os.Getenv("USE_LEGACY_REFERENCE_IMPLEMENTATION"); v != "" {
		cfg.UseLegacyReferenceImplementation = v == "true"
	}
	if v := os.Getenv("HINT_QUEUE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HintQueueConcurrency = n
		}
	}
	if v := os.Getenv("MDNS_DISCOVERY_ENABLED"); v != "" {
		cfg.MDNSDiscoveryEnabled = v == "true"
	}
	if v := os.Getenv("PKCS11_MODULE_PATH"); v != "" {
		cfg.PKCS11ModulePath = v
	}
	if v := os.Getenv("NODE_AUTH_SECRET"); v != "" {
		cfg.NodeAuthSecret = v
	}
}
