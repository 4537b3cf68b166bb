package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimlens/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string             `toml:"environment"` // "development" or "production"
	Server      ServerConfig       `toml:"server"`
	Auth        AuthConfig         `toml:"auth"`
	Queue       QueueConfig        `toml:"queue"`
	Storage     StorageConfig      `toml:"storage"`
	Logging     LoggingConfig      `toml:"logging"`
	Gemini      GeminiConfig       `toml:"gemini"`
	Claude      ClaudeConfig       `toml:"claude"`
	Review      ReviewConfig       `toml:"review"`
	Prompts     PromptsConfig      `toml:"prompts"`
	Variables   VariablesDirConfig `toml:"variables"` // Directory holding variables.toml key/value seed files
	Remote      RemoteConfig       `toml:"remote_config"`
	Scheduler   SchedulerConfig    `toml:"scheduler"`
	WebSocket   WebSocketConfig    `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=0,max=65535"`
	Host string `toml:"host"`
}

// AuthConfig contains bearer-token verification settings.
// JWTSecret is required in production; development mode warns and accepts
// unsigned requests only when AllowAnonymous is set.
type AuthConfig struct {
	JWTSecret      string `toml:"jwt_secret"`      // HMAC secret for bearer token verification
	JWTIssuer      string `toml:"jwt_issuer"`      // Expected issuer claim (empty = not checked)
	QueueToken     string `toml:"queue_token"`     // Shared secret for task endpoint callers
	AllowAnonymous bool   `toml:"allow_anonymous"` // Development only: skip bearer verification
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent workers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "5m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max times a message can be received before dead-letter
	QueueName         string `toml:"queue_name"`         // Queue name prefix in Badger
	InternalWorkers   bool   `toml:"internal_workers"`   // Run the in-process worker pool (off = external queue pushes to /chat/task)
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	Media  MediaConfig  `toml:"media"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// MediaConfig configures the filesystem object store for uploaded media
type MediaConfig struct {
	Dir           string `toml:"dir"`             // Root directory for media binaries
	MaxUploadSize int64  `toml:"max_upload_size"` // Maximum accepted upload size in bytes
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// GeminiConfig contains Google Gemini API configuration for review operations
type GeminiConfig struct {
	APIKey            string  `toml:"api_key"`            // Gemini API key (env/KV resolution takes priority)
	Model             string  `toml:"model"`              // Model for the review pass
	VerifyModel       string  `toml:"verify_model"`       // Model for grounded claim verification (default: same as Model)
	Thinking          string  `toml:"thinking"`           // Thinking level: MINIMAL, LOW, MEDIUM, HIGH (empty disables)
	Timeout           string  `toml:"timeout"`            // Operation timeout as duration string
	Temperature       float32 `toml:"temperature"`        // Review pass temperature
	VerifyTemperature float32 `toml:"verify_temperature"` // Verification pass temperature
}

// ClaudeConfig contains Anthropic Claude API configuration for title generation
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (env/KV resolution takes priority)
	Model       string  `toml:"model"`       // Model for title generation
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string
	Temperature float32 `toml:"temperature"` // Completion temperature
}

// ReviewConfig tunes the claim-verification fan-out and citation handling
type ReviewConfig struct {
	Sentinel         string `toml:"sentinel"`           // Client text that forces the full review pass (blank = built-in default)
	VerifyWorkers    int    `toml:"verify_workers"`     // Concurrent verification calls per task
	VerifyPerMinute  int    `toml:"verify_per_minute"`  // Shared verification rate limit (calls/minute)
	CaptureCitations bool   `toml:"capture_citations"`  // Fetch cited pages and store a readable snapshot
	MaxSnapshotBytes int    `toml:"max_snapshot_bytes"` // Truncation bound for citation snapshots
	CaptureTimeout   string `toml:"capture_timeout"`    // Per-page fetch timeout for citation capture
	MaxClaims        int    `toml:"max_claims"`         // Upper bound on claims verified per task (0 = unlimited)
}

// PromptsConfig configures prompt seed loading
type PromptsConfig struct {
	Dir string `toml:"dir"` // Directory containing prompt definition YAML files
}

// RemoteConfig configures the optional remote configuration service client
type RemoteConfig struct {
	Enabled      bool   `toml:"enabled"`
	BaseURL      string `toml:"base_url"`      // Remote config endpoint returning grouped parameters
	TokenURL     string `toml:"token_url"`     // OAuth2 client-credentials token endpoint
	ClientID     string `toml:"client_id"`     // OAuth2 client ID
	ClientSecret string `toml:"client_secret"` // OAuth2 client secret
	CacheTTL     string `toml:"cache_ttl"`     // Per-key cache TTL as duration string (default "1h")
}

// SchedulerConfig configures background maintenance jobs
type SchedulerConfig struct {
	Enabled          bool   `toml:"enabled"`
	GCSchedule       string `toml:"gc_schedule"`       // Cron schedule for Badger value-log GC
	PurgeSchedule    string `toml:"purge_schedule"`    // Cron schedule for the queue retention purge
	QueueRetention   string `toml:"queue_retention"`   // How long queue messages survive before the purge removes them
	SweepSchedule    string `toml:"sweep_schedule"`    // Cron schedule for the orphan media sweep
	RetainUnattached string `toml:"retain_unattached"` // How long unattached media survives before the sweep removes it
}

// WebSocketConfig contains configuration for the status event stream
type WebSocketConfig struct {
	// Whitelist of event types to broadcast. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in claimlens.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Auth: AuthConfig{
			JWTSecret:      "", // User must provide secret (env or config)
			JWTIssuer:      "",
			QueueToken:     "",
			AllowAnonymous: false,
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       2, // Review tasks are long (verification fan-out); keep pool small
			VisibilityTimeout: "10m",
			MaxReceive:        3,
			QueueName:         "claimlens_reviews",
			InternalWorkers:   true,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Media: MediaConfig{
				Dir:           "./data/media",
				MaxUploadSize: 25 * 1024 * 1024, // 25MB
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Gemini: GeminiConfig{
			APIKey:            "", // User must provide API key (no fallback)
			Model:             "gemini-3-flash-preview",
			VerifyModel:       "", // Defaults to Model when empty
			Thinking:          "MEDIUM",
			Timeout:           "5m",
			Temperature:       0.2, // Low temperature keeps function-call output stable
			VerifyTemperature: 0.0, // Verification is factual; no sampling variety wanted
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   1024, // Titles are short
			Timeout:     "1m",
			Temperature: 0.7,
		},
		Review: ReviewConfig{
			VerifyWorkers:    8,
			VerifyPerMinute:  60,
			CaptureCitations: false, // Off by default: adds outbound fetches per citation
			MaxSnapshotBytes: 16 * 1024,
			CaptureTimeout:   "15s",
			MaxClaims:        0,
		},
		Prompts: PromptsConfig{
			Dir: "./prompts",
		},
		Variables: VariablesDirConfig{
			Dir: "./", // variables.toml lives beside the executable by default
		},
		Remote: RemoteConfig{
			Enabled:  false,
			CacheTTL: "1h",
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			GCSchedule:       "0 30 3 * * *", // Daily at 03:30
			PurgeSchedule:    "0 15 * * * *", // Hourly at :15
			QueueRetention:   "72h",
			SweepSchedule:    "0 0 * * * *", // Hourly
			RetainUnattached: "24h",
		},
		WebSocket: WebSocketConfig{
			AllowedEvents: []string{},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
// kvStorage can be nil (key replacement is skipped)
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier
// files; CLI flags are applied separately via ApplyFlagOverrides.
// kvStorage can be nil (key replacement is skipped).
func LoadFromFiles(kvStorage interfaces.KeyValueStorage, paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Perform {key-name} replacement if KV storage is available
	if kvStorage != nil {
		ctx := context.Background()
		kvMap, err := kvStorage.GetAll(ctx)
		if err != nil {
			logger := arbor.NewLogger()
			logger.Warn().Err(err).Msg("Failed to fetch KV map for config replacement, skipping replacement")
		} else {
			logger := arbor.NewLogger()
			if err := ReplaceInStruct(config, kvMap, logger); err != nil {
				logger.Warn().Err(err).Msg("Failed to replace key references in config")
			}
		}
	}

	// Environment variables override all file configs and replacements
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: CLAIMLENS_ENV, fallback: GO_ENV)
	if env := os.Getenv("CLAIMLENS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("CLAIMLENS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CLAIMLENS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Auth configuration
	if secret := os.Getenv("CLAIMLENS_AUTH_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if issuer := os.Getenv("CLAIMLENS_AUTH_JWT_ISSUER"); issuer != "" {
		config.Auth.JWTIssuer = issuer
	}
	if token := os.Getenv("CLAIMLENS_AUTH_QUEUE_TOKEN"); token != "" {
		config.Auth.QueueToken = token
	}
	if anon := os.Getenv("CLAIMLENS_AUTH_ALLOW_ANONYMOUS"); anon != "" {
		if a, err := strconv.ParseBool(anon); err == nil {
			config.Auth.AllowAnonymous = a
		}
	}

	// Queue configuration
	if pollInterval := os.Getenv("CLAIMLENS_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if concurrency := os.Getenv("CLAIMLENS_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if visibilityTimeout := os.Getenv("CLAIMLENS_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}
	if maxReceive := os.Getenv("CLAIMLENS_QUEUE_MAX_RECEIVE"); maxReceive != "" {
		if mr, err := strconv.Atoi(maxReceive); err == nil {
			config.Queue.MaxReceive = mr
		}
	}
	if queueName := os.Getenv("CLAIMLENS_QUEUE_NAME"); queueName != "" {
		config.Queue.QueueName = queueName
	}
	if internalWorkers := os.Getenv("CLAIMLENS_QUEUE_INTERNAL_WORKERS"); internalWorkers != "" {
		if iw, err := strconv.ParseBool(internalWorkers); err == nil {
			config.Queue.InternalWorkers = iw
		}
	}

	// Storage configuration
	if badgerPath := os.Getenv("CLAIMLENS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if mediaDir := os.Getenv("CLAIMLENS_MEDIA_DIR"); mediaDir != "" {
		config.Storage.Media.Dir = mediaDir
	}
	if maxUpload := os.Getenv("CLAIMLENS_MEDIA_MAX_UPLOAD_SIZE"); maxUpload != "" {
		if mu, err := strconv.ParseInt(maxUpload, 10, 64); err == nil {
			config.Storage.Media.MaxUploadSize = mu
		}
	}

	// Logging configuration
	if level := os.Getenv("CLAIMLENS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("CLAIMLENS_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("CLAIMLENS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range splitString(output, ",") {
			trimmed := trimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("CLAIMLENS_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("CLAIMLENS_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if verifyModel := os.Getenv("CLAIMLENS_GEMINI_VERIFY_MODEL"); verifyModel != "" {
		config.Gemini.VerifyModel = verifyModel
	}
	if thinking := os.Getenv("CLAIMLENS_GEMINI_THINKING"); thinking != "" {
		config.Gemini.Thinking = thinking
	}
	if timeout := os.Getenv("CLAIMLENS_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if temperature := os.Getenv("CLAIMLENS_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}
	if temperature := os.Getenv("CLAIMLENS_GEMINI_VERIFY_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.VerifyTemperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("CLAIMLENS_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // CLAIMLENS_ prefix takes priority
	}
	if model := os.Getenv("CLAIMLENS_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("CLAIMLENS_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("CLAIMLENS_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if temperature := os.Getenv("CLAIMLENS_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(t)
		}
	}

	// Review configuration
	if workers := os.Getenv("CLAIMLENS_REVIEW_VERIFY_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Review.VerifyWorkers = w
		}
	}
	if perMinute := os.Getenv("CLAIMLENS_REVIEW_VERIFY_PER_MINUTE"); perMinute != "" {
		if pm, err := strconv.Atoi(perMinute); err == nil {
			config.Review.VerifyPerMinute = pm
		}
	}
	if capture := os.Getenv("CLAIMLENS_REVIEW_CAPTURE_CITATIONS"); capture != "" {
		if c, err := strconv.ParseBool(capture); err == nil {
			config.Review.CaptureCitations = c
		}
	}
	if maxClaims := os.Getenv("CLAIMLENS_REVIEW_MAX_CLAIMS"); maxClaims != "" {
		if mc, err := strconv.Atoi(maxClaims); err == nil {
			config.Review.MaxClaims = mc
		}
	}

	// Prompts configuration
	if promptsDir := os.Getenv("CLAIMLENS_PROMPTS_DIR"); promptsDir != "" {
		config.Prompts.Dir = promptsDir
	}

	// Remote config configuration
	if enabled := os.Getenv("CLAIMLENS_REMOTE_CONFIG_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Remote.Enabled = e
		}
	}
	if baseURL := os.Getenv("CLAIMLENS_REMOTE_CONFIG_BASE_URL"); baseURL != "" {
		config.Remote.BaseURL = baseURL
	}
	if tokenURL := os.Getenv("CLAIMLENS_REMOTE_CONFIG_TOKEN_URL"); tokenURL != "" {
		config.Remote.TokenURL = tokenURL
	}
	if clientID := os.Getenv("CLAIMLENS_REMOTE_CONFIG_CLIENT_ID"); clientID != "" {
		config.Remote.ClientID = clientID
	}
	if clientSecret := os.Getenv("CLAIMLENS_REMOTE_CONFIG_CLIENT_SECRET"); clientSecret != "" {
		config.Remote.ClientSecret = clientSecret
	}
	if cacheTTL := os.Getenv("CLAIMLENS_REMOTE_CONFIG_CACHE_TTL"); cacheTTL != "" {
		if _, err := time.ParseDuration(cacheTTL); err == nil {
			config.Remote.CacheTTL = cacheTTL
		}
	}

	// Scheduler configuration
	if enabled := os.Getenv("CLAIMLENS_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the configuration for structural problems that would
// prevent startup. Missing API keys are not fatal here: the provider
// factory degrades those services with a warning instead.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := time.ParseDuration(c.Queue.PollInterval); err != nil {
		return fmt.Errorf("invalid queue.poll_interval %q: %w", c.Queue.PollInterval, err)
	}
	if _, err := time.ParseDuration(c.Queue.VisibilityTimeout); err != nil {
		return fmt.Errorf("invalid queue.visibility_timeout %q: %w", c.Queue.VisibilityTimeout, err)
	}
	if c.Scheduler.Enabled {
		if err := ValidateJobSchedule(c.Scheduler.GCSchedule); err != nil {
			return fmt.Errorf("invalid scheduler.gc_schedule %q: %w", c.Scheduler.GCSchedule, err)
		}
		if err := ValidateJobSchedule(c.Scheduler.PurgeSchedule); err != nil {
			return fmt.Errorf("invalid scheduler.purge_schedule %q: %w", c.Scheduler.PurgeSchedule, err)
		}
		if _, err := time.ParseDuration(c.Scheduler.QueueRetention); err != nil {
			return fmt.Errorf("invalid scheduler.queue_retention %q: %w", c.Scheduler.QueueRetention, err)
		}
		if err := ValidateJobSchedule(c.Scheduler.SweepSchedule); err != nil {
			return fmt.Errorf("invalid scheduler.sweep_schedule %q: %w", c.Scheduler.SweepSchedule, err)
		}
		if _, err := time.ParseDuration(c.Scheduler.RetainUnattached); err != nil {
			return fmt.Errorf("invalid scheduler.retain_unattached %q: %w", c.Scheduler.RetainUnattached, err)
		}
	}
	if c.IsProduction() && c.Auth.JWTSecret == "" && !c.Auth.AllowAnonymous {
		return fmt.Errorf("auth.jwt_secret is required in production")
	}

	return nil
}

// ValidateJobSchedule validates a six-field cron expression (seconds
// first) and rejects schedules that would fire more than once per minute
func ValidateJobSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	fields := strings.Fields(schedule)
	if sec := fields[0]; sec == "*" || strings.HasPrefix(sec, "*/") {
		return fmt.Errorf("schedule must not fire more than once per minute")
	}

	return nil
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables -> KV store -> config fallback -> error.
// This ensures CLAIMLENS_* environment variables always take precedence.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"CLAIMLENS_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"anthropic_api_key": {"CLAIMLENS_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"claude_api_key":    {"CLAIMLENS_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	// Check environment variables (highest priority)
	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// Try to resolve from KV store (medium priority - file-based variables)
	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	// Fallback to config value (lowest priority)
	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// Helper functions for string manipulation
func splitString(s, sep string) []string {
	result := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if i+len(sep) <= len(s) && s[i:i+len(sep)] == sep {
			result = append(result, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	result = append(result, s[start:])
	return result
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// DeepCloneConfig creates a deep copy of the Config struct.
// Used by the config service to prevent mutations of the original config.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	if len(c.WebSocket.AllowedEvents) > 0 {
		clone.WebSocket.AllowedEvents = make([]string, len(c.WebSocket.AllowedEvents))
		copy(clone.WebSocket.AllowedEvents, c.WebSocket.AllowedEvents)
	}

	return &clone
}
