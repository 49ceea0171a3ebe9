// Package config holds OPERATOR-LEVEL configuration for a labeler installation.
//
// This is infrastructure config set by whoever deploys the labeler, NOT the
// classification policy. The boundary is:
//
//   - Operator config (this package): data directory, model names, batch and
//     budget limits, server address, webhook endpoint, log settings.
//     Set via env vars (LABELER_*) or config file (labeler.config.yaml).
//
//   - Classification policy: category set, instructions, knowledge refs.
//     Stored in a versioned YAML policy file (internal/policy) so that adding
//     or removing a category is a policy change, not a code change.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the LABELER_ prefix
// (e.g. "batch_size" → LABELER_BATCH_SIZE) and to a YAML field
// in labeler.config.yaml.
const (
	KeyDataDir          = "data_dir"
	KeyPolicyPath       = "policy_path"
	KeyModel            = "model"
	KeyRetryModel       = "retry_model"
	KeyOpenAIAPIKey     = "openai_api_key"
	KeyOllamaBaseURL    = "ollama_base_url"
	KeyBatchSize        = "batch_size"
	KeyMaxPerCycle      = "max_per_cycle"
	KeyExcerptChars     = "excerpt_chars"
	KeyDailyModelCalls  = "daily_model_calls"
	KeyAgentRunsPerRun  = "agent_runs_per_cycle"
	KeyKnowledgeDir     = "knowledge_dir"
	KeyKnowledgeTTLMin  = "knowledge_ttl_minutes"
	KeyWebhookURL       = "webhook_url"
	KeyWebhookRPM       = "webhook_rpm"
	KeyStaleAfterDays   = "stale_after_days"
	KeySigningKey       = "signing_key"
	KeyServerAddr       = "server_addr"
	KeyAPIToken         = "api_token"
	KeyCycleCron        = "cycle_cron"
	KeyDisabledAgents   = "disabled_agents"
)

// Defaults that do NOT involve crypto material. The signing key intentionally
// has no baked-in default; when unset we generate a deterministic per-machine
// fallback and warn loudly.
const (
	DefaultPolicyPath      = "labeler.policy.yaml"
	DefaultModel           = "gpt-4o-mini"
	DefaultRetryModel      = "gpt-4o"
	DefaultOllamaURL       = "http://localhost:11434"
	DefaultBatchSize       = 10
	DefaultMaxPerCycle     = 50
	DefaultExcerptChars    = 1200
	DefaultDailyModelCalls = 100
	DefaultAgentRunsPerRun = 40
	DefaultKnowledgeTTLMin = 30
	DefaultWebhookRPM      = 30
	DefaultStaleAfterDays  = 14
	DefaultServerAddr      = ":8484"
	DefaultCycleCron       = "*/15 * * * *"
)

// Config holds resolved operator-level configuration for a labeler process.
type Config struct {
	DataDir          string // Base directory for all state (~/.labeler)
	PolicyPath       string // Path to the classification policy YAML
	Model            string // Primary classification model
	RetryModel       string // Stronger model used for the single retry; empty = reuse Model
	OpenAIAPIKey     string // API key for OpenAI-routed models
	OllamaBaseURL    string // Ollama API endpoint for "ollama:" models
	BatchSize        int    // Items per classification batch
	MaxPerCycle      int    // Max candidate items fetched per cycle
	ExcerptChars     int    // Character budget for message body excerpts
	DailyModelCalls  int64  // Daily model-call budget
	AgentRunsPerRun  int    // Per-cycle onClassify dispatch budget
	KnowledgeDir     string // Directory of knowledge documents; empty = no knowledge
	KnowledgeTTLMin  int    // Knowledge cache TTL in minutes
	WebhookURL       string // Endpoint for the webhook-notify agent; empty = agent disabled
	WebhookRPM       int    // Outbound webhook rate limit (requests/minute)
	StaleAfterDays   int    // Age threshold for the stale-archiver scan agent
	SigningKey       string // HMAC-SHA256 key for cycle audit records (≥32 bytes)
	ServerAddr       string // Listen address for labeler serve
	APIToken         string // Bearer token for the HTTP API; empty = auth disabled
	CycleCron        string // Cron expression for scheduled cycles
	DisabledAgents   []string

	usingDefaultSigningKey bool
}

// UsingDefaultSigningKey returns true if the audit signing key was derived
// (not set explicitly). Commands should warn when this is the case.
func (c *Config) UsingDefaultSigningKey() bool {
	return c.usingDefaultSigningKey
}

// CountersDBPath returns the full path to the budget counters SQLite database.
func (c *Config) CountersDBPath() string {
	return filepath.Join(c.DataDir, "counters.db")
}

// MailboxDBPath returns the full path to the local mailbox SQLite database.
func (c *Config) MailboxDBPath() string {
	return filepath.Join(c.DataDir, "mailbox.db")
}

// AuditDBPath returns the full path to the cycle audit SQLite database.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// AgentDisabled reports whether the named agent is disabled by operator config.
func (c *Config) AgentDisabled(name string) bool {
	for _, n := range c.DisabledAgents {
		if n == name {
			return true
		}
	}
	return false
}

func init() {
	viper.SetEnvPrefix("LABELER")
	viper.AutomaticEnv()
	viper.SetDefault(KeyPolicyPath, DefaultPolicyPath)
	viper.SetDefault(KeyModel, DefaultModel)
	viper.SetDefault(KeyRetryModel, DefaultRetryModel)
	viper.SetDefault(KeyOllamaBaseURL, DefaultOllamaURL)
	viper.SetDefault(KeyBatchSize, DefaultBatchSize)
	viper.SetDefault(KeyMaxPerCycle, DefaultMaxPerCycle)
	viper.SetDefault(KeyExcerptChars, DefaultExcerptChars)
	viper.SetDefault(KeyDailyModelCalls, DefaultDailyModelCalls)
	viper.SetDefault(KeyAgentRunsPerRun, DefaultAgentRunsPerRun)
	viper.SetDefault(KeyKnowledgeTTLMin, DefaultKnowledgeTTLMin)
	viper.SetDefault(KeyWebhookRPM, DefaultWebhookRPM)
	viper.SetDefault(KeyStaleAfterDays, DefaultStaleAfterDays)
	viper.SetDefault(KeyServerAddr, DefaultServerAddr)
	viper.SetDefault(KeyCycleCron, DefaultCycleCron)
}

// Load reads configuration from Viper (which merges env vars, config
// file, and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:         resolveDataDir(),
		PolicyPath:      viper.GetString(KeyPolicyPath),
		Model:           viper.GetString(KeyModel),
		RetryModel:      viper.GetString(KeyRetryModel),
		OpenAIAPIKey:    resolveOpenAIKey(),
		OllamaBaseURL:   viper.GetString(KeyOllamaBaseURL),
		BatchSize:       viper.GetInt(KeyBatchSize),
		MaxPerCycle:     viper.GetInt(KeyMaxPerCycle),
		ExcerptChars:    viper.GetInt(KeyExcerptChars),
		DailyModelCalls: viper.GetInt64(KeyDailyModelCalls),
		AgentRunsPerRun: viper.GetInt(KeyAgentRunsPerRun),
		KnowledgeDir:    viper.GetString(KeyKnowledgeDir),
		KnowledgeTTLMin: viper.GetInt(KeyKnowledgeTTLMin),
		WebhookURL:      viper.GetString(KeyWebhookURL),
		WebhookRPM:      viper.GetInt(KeyWebhookRPM),
		StaleAfterDays:  viper.GetInt(KeyStaleAfterDays),
		SigningKey:      viper.GetString(KeySigningKey),
		ServerAddr:      viper.GetString(KeyServerAddr),
		APIToken:        viper.GetString(KeyAPIToken),
		CycleCron:       viper.GetString(KeyCycleCron),
		DisabledAgents:  viper.GetStringSlice(KeyDisabledAgents),
	}

	if cfg.SigningKey == "" {
		cfg.SigningKey = deriveDefaultKey(cfg.DataDir, "cycle-audit-signing")
		cfg.usingDefaultSigningKey = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".labeler"
	}
	return filepath.Join(home, ".labeler")
}

// resolveOpenAIKey prefers LABELER_OPENAI_API_KEY but falls back to the
// conventional OPENAI_API_KEY so single-user quickstarts work out of the box.
func resolveOpenAIKey() string {
	if key := viper.GetString(KeyOpenAIAPIKey); key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}

// deriveDefaultKey produces a deterministic 32-byte fallback key from the
// data directory path and a salt. This is NOT cryptographically strong; it
// exists solely so `labeler run` works out of the box while still signing
// audit records with a per-machine-unique key.
func deriveDefaultKey(dataDir, salt string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("labeler:%s:%s", dataDir, salt)))
	return hex.EncodeToString(h[:])
}

func (c *Config) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.MaxPerCycle <= 0 {
		return fmt.Errorf("max_per_cycle must be positive")
	}
	if c.ExcerptChars <= 0 {
		return fmt.Errorf("excerpt_chars must be positive")
	}
	if c.DailyModelCalls <= 0 {
		return fmt.Errorf("daily_model_calls must be positive")
	}
	if c.AgentRunsPerRun < 0 {
		return fmt.Errorf("agent_runs_per_cycle must not be negative")
	}
	if c.Model == "" {
		return fmt.Errorf("model must be set")
	}
	if len(c.SigningKey) < 32 {
		return fmt.Errorf("signing_key must be at least 32 bytes (got %d); set LABELER_SIGNING_KEY", len(c.SigningKey))
	}
	return nil
}
