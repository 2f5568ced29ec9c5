// Package config loads the indexer configuration from a YAML file with
// environment variable overrides, applies defaults, and validates the result.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError marks a fatal start-up misconfiguration.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

type Source struct {
	RPCURL    string  `yaml:"rpc_url"`
	TimeoutMs int     `yaml:"timeout_ms"`
	RPS       float64 `yaml:"rps"`
	// Retries is a pointer so an explicit 0 (no retries) survives
	// defaulting; nil means absent.
	Retries       *int    `yaml:"retries"`
	BackoffMs     int     `yaml:"backoff_ms"`
	BackoffJitter float64 `yaml:"backoff_jitter"`
}

type Range struct {
	From             uint64 `yaml:"from"`
	To               string `yaml:"to"` // decimal height, "latest", or empty
	Resume           bool   `yaml:"resume"`
	FirstBlock       uint64 `yaml:"first_block"`
	Follow           bool   `yaml:"follow"`
	FollowIntervalMs int    `yaml:"follow_interval_ms"`
}

type Pipeline struct {
	Concurrency         int    `yaml:"concurrency"`
	BlockTimeoutMs      int    `yaml:"block_timeout_ms"`
	MaxBlockRetries     *int   `yaml:"max_block_retries"` // nil means absent, 0 is explicit
	ProgressEveryBlocks int    `yaml:"progress_every_blocks"`
	ProgressIntervalSec int    `yaml:"progress_interval_sec"`
	CaseMode            string `yaml:"case_mode"`
	PoolSize            int    `yaml:"decode_pool_size"`
	DescriptorDir       string `yaml:"descriptor_dir"`
}

type Sink struct {
	Kind       string `yaml:"kind"`
	OutPath    string `yaml:"out_path"`
	FlushEvery int    `yaml:"flush_every"`
}

type Postgres struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	SSL         bool   `yaml:"ssl"`
	Mode        string `yaml:"mode"`
	BatchBlocks int    `yaml:"batch_blocks"`
	BatchTxs    int    `yaml:"batch_txs"`
	BatchMsgs   int    `yaml:"batch_msgs"`
	BatchEvents int    `yaml:"batch_events"`
	BatchAttrs  int    `yaml:"batch_attrs"`
	PoolSize    int    `yaml:"pool_size"`
	ProgressID  string `yaml:"progress_id"`
}

type Config struct {
	Source   Source   `yaml:"source"`
	Range    Range    `yaml:"range"`
	Pipeline Pipeline `yaml:"pipeline"`
	Sink     Sink     `yaml:"sink"`
	PG       Postgres `yaml:"pg"`
}

// Load reads path (optional; empty skips the file), overlays environment
// variables, fills defaults, and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RPC_URL"); v != "" {
		c.Source.RPCURL = v
	}
	c.Source.TimeoutMs = getEnvInt("RPC_TIMEOUT_MS", c.Source.TimeoutMs)
	c.Source.RPS = getEnvFloat("RPC_RPS", c.Source.RPS)
	if v, ok := lookupEnvInt("RPC_RETRIES"); ok {
		c.Source.Retries = &v
	}
	c.Source.BackoffMs = getEnvInt("RPC_BACKOFF_MS", c.Source.BackoffMs)
	c.Source.BackoffJitter = getEnvFloat("RPC_BACKOFF_JITTER", c.Source.BackoffJitter)

	c.Range.From = getEnvUint("RANGE_FROM", c.Range.From)
	if v := os.Getenv("RANGE_TO"); v != "" {
		c.Range.To = v
	}
	c.Range.Resume = getEnvBool("RANGE_RESUME", c.Range.Resume)
	c.Range.FirstBlock = getEnvUint("RANGE_FIRST_BLOCK", c.Range.FirstBlock)
	c.Range.Follow = getEnvBool("RANGE_FOLLOW", c.Range.Follow)
	c.Range.FollowIntervalMs = getEnvInt("RANGE_FOLLOW_INTERVAL_MS", c.Range.FollowIntervalMs)

	c.Pipeline.Concurrency = getEnvInt("PIPELINE_CONCURRENCY", c.Pipeline.Concurrency)
	c.Pipeline.BlockTimeoutMs = getEnvInt("PIPELINE_BLOCK_TIMEOUT_MS", c.Pipeline.BlockTimeoutMs)
	if v, ok := lookupEnvInt("PIPELINE_MAX_BLOCK_RETRIES"); ok {
		c.Pipeline.MaxBlockRetries = &v
	}
	if v := os.Getenv("PIPELINE_CASE_MODE"); v != "" {
		c.Pipeline.CaseMode = v
	}
	c.Pipeline.PoolSize = getEnvInt("PIPELINE_DECODE_POOL_SIZE", c.Pipeline.PoolSize)
	if v := os.Getenv("PIPELINE_DESCRIPTOR_DIR"); v != "" {
		c.Pipeline.DescriptorDir = v
	}

	if v := os.Getenv("SINK_KIND"); v != "" {
		c.Sink.Kind = v
	}
	if v := os.Getenv("SINK_OUT_PATH"); v != "" {
		c.Sink.OutPath = v
	}
	c.Sink.FlushEvery = getEnvInt("SINK_FLUSH_EVERY", c.Sink.FlushEvery)

	if v := os.Getenv("PG_HOST"); v != "" {
		c.PG.Host = v
	}
	c.PG.Port = getEnvInt("PG_PORT", c.PG.Port)
	if v := os.Getenv("PG_USER"); v != "" {
		c.PG.User = v
	}
	if v := os.Getenv("PG_PASSWORD"); v != "" {
		c.PG.Password = v
	}
	if v := os.Getenv("PG_DATABASE"); v != "" {
		c.PG.Database = v
	}
	c.PG.SSL = getEnvBool("PG_SSL", c.PG.SSL)
	if v := os.Getenv("PG_MODE"); v != "" {
		c.PG.Mode = v
	}
	c.PG.PoolSize = getEnvInt("PG_POOL_SIZE", c.PG.PoolSize)
	if v := os.Getenv("PG_PROGRESS_ID"); v != "" {
		c.PG.ProgressID = v
	}
}

func (c *Config) applyDefaults() {
	if c.Source.TimeoutMs <= 0 {
		c.Source.TimeoutMs = 5000
	}
	if c.Source.RPS <= 0 {
		c.Source.RPS = 150
	}
	if c.Source.Retries == nil {
		n := 3
		c.Source.Retries = &n
	}
	if c.Source.BackoffMs <= 0 {
		c.Source.BackoffMs = 250
	}
	if c.Source.BackoffJitter == 0 {
		c.Source.BackoffJitter = 0.3
	}

	if c.Range.FirstBlock == 0 {
		c.Range.FirstBlock = 5200792
	}
	if c.Range.FollowIntervalMs <= 0 {
		c.Range.FollowIntervalMs = 5000
	}

	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = 48
	}
	if c.Pipeline.BlockTimeoutMs <= 0 {
		c.Pipeline.BlockTimeoutMs = 30000
	}
	if c.Pipeline.MaxBlockRetries == nil {
		n := 3
		c.Pipeline.MaxBlockRetries = &n
	}
	if c.Pipeline.ProgressEveryBlocks <= 0 {
		c.Pipeline.ProgressEveryBlocks = 1000
	}
	if c.Pipeline.ProgressIntervalSec <= 0 {
		c.Pipeline.ProgressIntervalSec = 15
	}
	if c.Pipeline.CaseMode == "" {
		c.Pipeline.CaseMode = "snake"
	}
	if c.Pipeline.PoolSize <= 0 {
		c.Pipeline.PoolSize = 8
	}

	if c.Sink.Kind == "" {
		c.Sink.Kind = "stdout"
	}

	if c.PG.Port <= 0 {
		c.PG.Port = 5432
	}
	if c.PG.Mode == "" {
		c.PG.Mode = "batch-insert"
	}
	if c.PG.BatchBlocks <= 0 {
		c.PG.BatchBlocks = 1000
	}
	if c.PG.BatchTxs <= 0 {
		c.PG.BatchTxs = 2000
	}
	if c.PG.BatchMsgs <= 0 {
		c.PG.BatchMsgs = 5000
	}
	if c.PG.BatchEvents <= 0 {
		c.PG.BatchEvents = 10000
	}
	if c.PG.BatchAttrs <= 0 {
		c.PG.BatchAttrs = 30000
	}
	if c.PG.PoolSize <= 0 {
		c.PG.PoolSize = 16
	}
	if c.PG.ProgressID == "" {
		c.PG.ProgressID = "default"
	}
}

func (c *Config) validate() error {
	if c.Source.RPCURL == "" {
		return &ConfigError{Field: "source.rpc_url", Msg: "required"}
	}
	u, err := url.Parse(c.Source.RPCURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return &ConfigError{Field: "source.rpc_url", Msg: "must be an http(s) URL"}
	}
	if c.Source.BackoffJitter < 0 || c.Source.BackoffJitter > 1 {
		return &ConfigError{Field: "source.backoff_jitter", Msg: "must be in [0, 1]"}
	}
	if *c.Source.Retries < 0 {
		return &ConfigError{Field: "source.retries", Msg: "must be >= 0"}
	}
	if *c.Pipeline.MaxBlockRetries < 0 {
		return &ConfigError{Field: "pipeline.max_block_retries", Msg: "must be >= 0"}
	}

	if to, ok := c.ToHeight(); ok && c.Range.From > 0 && to < c.Range.From {
		return &ConfigError{Field: "range.to", Msg: fmt.Sprintf("%d is below from=%d", to, c.Range.From)}
	}
	if c.Range.To != "" && c.Range.To != "latest" {
		if _, err := strconv.ParseUint(c.Range.To, 10, 64); err != nil {
			return &ConfigError{Field: "range.to", Msg: "must be a height or \"latest\""}
		}
	}

	switch c.Pipeline.CaseMode {
	case "snake", "camel":
	default:
		return &ConfigError{Field: "pipeline.case_mode", Msg: "must be snake or camel"}
	}

	switch c.Sink.Kind {
	case "stdout", "null":
	case "file":
		if c.Sink.OutPath == "" {
			return &ConfigError{Field: "sink.out_path", Msg: "required for file sink"}
		}
	case "postgres":
		if c.PG.Host == "" || c.PG.Database == "" {
			return &ConfigError{Field: "pg", Msg: "host and database required for postgres sink"}
		}
	case "clickhouse":
		return &ConfigError{Field: "sink.kind", Msg: "clickhouse sink is not supported by this build"}
	default:
		return &ConfigError{Field: "sink.kind", Msg: fmt.Sprintf("unknown sink kind %q", c.Sink.Kind)}
	}

	switch c.PG.Mode {
	case "batch-insert", "block-atomic":
	default:
		return &ConfigError{Field: "pg.mode", Msg: "must be batch-insert or block-atomic"}
	}
	return nil
}

// ToHeight resolves range.to as an explicit height. ok is false for empty
// or "latest", which resolve against chain status at start-up.
func (c *Config) ToHeight() (uint64, bool) {
	if c.Range.To == "" || c.Range.To == "latest" {
		return 0, false
	}
	h, err := strconv.ParseUint(c.Range.To, 10, 64)
	if err != nil {
		return 0, false
	}
	return h, true
}

// DatabaseURL assembles a postgres connection URL from the pg block.
func (c *Config) DatabaseURL() string {
	ssl := "disable"
	if c.PG.SSL {
		ssl = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", c.PG.Host, c.PG.Port),
		Path:     "/" + c.PG.Database,
		RawQuery: "sslmode=" + ssl,
	}
	if c.PG.User != "" {
		if c.PG.Password != "" {
			u.User = url.UserPassword(c.PG.User, c.PG.Password)
		} else {
			u.User = url.User(c.PG.User)
		}
	}
	return u.String()
}

func lookupEnvInt(key string) (int, bool) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}
