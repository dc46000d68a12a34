// Package config provides unified configuration loading for the parley
// runtime: defaults, YAML file, then environment overrides, in that
// precedence order.
//
// Usage:
//
//	cfg, err := config.Load("parley.yaml")
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "PARLEY_"

// Config is the complete runtime configuration.
type Config struct {
	Memory      MemoryConfig      `yaml:"memory"`
	Skills      SkillsConfig      `yaml:"skills"`
	Resilience  ResilienceConfig  `yaml:"resilience"`
	LLM         LLMConfig         `yaml:"llm"`
	Cache       CacheConfig       `yaml:"cache"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Log         LogConfig         `yaml:"log"`
}

// MemoryConfig bounds per-session conversation memory.
type MemoryConfig struct {
	// ContextWindowSize caps the number of messages returned in a
	// context window.
	ContextWindowSize int `yaml:"context_window_size"`
	// CompressionThreshold is the message count that triggers a
	// compression pass.
	CompressionThreshold int `yaml:"compression_threshold"`
	// CompressionKeepLast is the number of trailing messages a
	// compression pass leaves untouched.
	CompressionKeepLast int `yaml:"compression_keep_last"`
}

// SkillsConfig tunes intent routing and execution.
type SkillsConfig struct {
	// ExecutionTimeout bounds one skill execution.
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	// MinScore is the routing threshold below which no skill matches.
	MinScore float64 `yaml:"min_score"`
	// LearningRate is the EWMA factor for performance-weight updates.
	LearningRate float64 `yaml:"learning_rate"`
}

// ResilienceConfig tunes the circuit breaker and recovery strategies.
type ResilienceConfig struct {
	FailureThreshold         int           `yaml:"failure_threshold"`
	RecoveryTimeout          time.Duration `yaml:"recovery_timeout"`
	HalfOpenSuccessThreshold int           `yaml:"half_open_success_threshold"`
	// MaxRetryAttempts bounds retry-style recovery strategies.
	MaxRetryAttempts int `yaml:"max_retry_attempts"`
	// UnrecoveredWarningThreshold is the consecutive-unrecovered-error
	// count after which user responses carry a degradation warning.
	UnrecoveredWarningThreshold int `yaml:"unrecovered_warning_threshold"`
}

// LLMConfig configures the backend adapter.
type LLMConfig struct {
	Model            string  `yaml:"model"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps"`
	RateLimitBurst   int     `yaml:"rate_limit_burst"`
	StreamBufferSize int     `yaml:"stream_buffer_size"`
}

// CacheConfig configures the request-fingerprint cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// Backend is "memory" or "redis".
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
}

// PersistenceConfig configures the session archive.
type PersistenceConfig struct {
	// Path is the SQLite database file for session export/import.
	Path string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Memory: MemoryConfig{
			ContextWindowSize:    50,
			CompressionThreshold: 100,
			CompressionKeepLast:  30,
		},
		Skills: SkillsConfig{
			ExecutionTimeout: 30 * time.Second,
			MinScore:         1.0,
			LearningRate:     0.2,
		},
		Resilience: ResilienceConfig{
			FailureThreshold:            5,
			RecoveryTimeout:             60 * time.Second,
			HalfOpenSuccessThreshold:    2,
			MaxRetryAttempts:            3,
			UnrecoveredWarningThreshold: 3,
		},
		LLM: LLMConfig{
			Model:            "demo",
			RateLimitRPS:     10,
			RateLimitBurst:   5,
			StreamBufferSize: 64,
		},
		Cache: CacheConfig{
			TTL:     300 * time.Second,
			Backend: "memory",
		},
		Persistence: PersistenceConfig{
			Path: "parley.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration with precedence defaults -> YAML -> env.
// An empty path or a missing file keeps the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.Validate()
	return cfg, nil
}

// applyEnv overrides the recognized options from the environment.
func (c *Config) applyEnv() {
	envInt("MEMORY_CONTEXT_WINDOW_SIZE", &c.Memory.ContextWindowSize)
	envInt("MEMORY_COMPRESSION_THRESHOLD", &c.Memory.CompressionThreshold)
	envInt("MEMORY_COMPRESSION_KEEP_LAST", &c.Memory.CompressionKeepLast)
	envDuration("SKILLS_EXECUTION_TIMEOUT", &c.Skills.ExecutionTimeout)
	envInt("RESILIENCE_FAILURE_THRESHOLD", &c.Resilience.FailureThreshold)
	envDuration("RESILIENCE_RECOVERY_TIMEOUT", &c.Resilience.RecoveryTimeout)
	envInt("RESILIENCE_HALF_OPEN_SUCCESS_THRESHOLD", &c.Resilience.HalfOpenSuccessThreshold)
	envDuration("CACHE_TTL", &c.Cache.TTL)
	envString("CACHE_BACKEND", &c.Cache.Backend)
	envString("CACHE_REDIS_ADDR", &c.Cache.RedisAddr)
	envString("LLM_MODEL", &c.LLM.Model)
	envString("PERSISTENCE_PATH", &c.Persistence.Path)
	envString("LOG_LEVEL", &c.Log.Level)
}

// Validate corrects out-of-range values back to defaults.
func (c *Config) Validate() {
	def := DefaultConfig()

	if c.Memory.ContextWindowSize <= 0 {
		c.Memory.ContextWindowSize = def.Memory.ContextWindowSize
	}
	if c.Memory.CompressionThreshold <= 0 {
		c.Memory.CompressionThreshold = def.Memory.CompressionThreshold
	}
	if c.Memory.CompressionKeepLast <= 0 || c.Memory.CompressionKeepLast >= c.Memory.CompressionThreshold {
		c.Memory.CompressionKeepLast = def.Memory.CompressionKeepLast
	}
	if c.Skills.ExecutionTimeout <= 0 {
		c.Skills.ExecutionTimeout = def.Skills.ExecutionTimeout
	}
	if c.Skills.LearningRate <= 0 || c.Skills.LearningRate >= 1 {
		c.Skills.LearningRate = def.Skills.LearningRate
	}
	if c.Resilience.FailureThreshold <= 0 {
		c.Resilience.FailureThreshold = def.Resilience.FailureThreshold
	}
	if c.Resilience.RecoveryTimeout <= 0 {
		c.Resilience.RecoveryTimeout = def.Resilience.RecoveryTimeout
	}
	if c.Resilience.HalfOpenSuccessThreshold <= 0 {
		c.Resilience.HalfOpenSuccessThreshold = def.Resilience.HalfOpenSuccessThreshold
	}
	if c.Resilience.MaxRetryAttempts < 0 {
		c.Resilience.MaxRetryAttempts = def.Resilience.MaxRetryAttempts
	}
	if c.Resilience.UnrecoveredWarningThreshold <= 0 {
		c.Resilience.UnrecoveredWarningThreshold = def.Resilience.UnrecoveredWarningThreshold
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		c.Cache.Backend = def.Cache.Backend
	}
	if c.LLM.StreamBufferSize <= 0 {
		c.LLM.StreamBufferSize = def.LLM.StreamBufferSize
	}
	if c.LLM.RateLimitRPS <= 0 {
		c.LLM.RateLimitRPS = def.LLM.RateLimitRPS
	}
	if c.LLM.RateLimitBurst <= 0 {
		c.LLM.RateLimitBurst = def.LLM.RateLimitBurst
	}
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
