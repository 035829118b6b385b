package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Prompts     PromptsConfig   `toml:"prompts"`
	Render      RenderConfig    `toml:"render"`
}

// PipelineConfig controls what the analysis pipeline consumes and the
// reporting window it covers.
type PipelineConfig struct {
	InputFile string `toml:"input_file" validate:"required"` // CSV export of support tickets
	StartDate string `toml:"start_date"`                     // Inclusive window start (YYYY-MM-DD), empty = derive from data
	EndDate   string `toml:"end_date"`                       // Inclusive window end (YYYY-MM-DD), empty = derive from data
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// FilesystemConfig holds the roots for cached results and rendered reports
type FilesystemConfig struct {
	Analyses  string `toml:"analyses" validate:"required"`  // Per-ticket analysis cache root
	Summaries string `toml:"summaries" validate:"required"` // Daily summary cache root
	Reports   string `toml:"reports" validate:"required"`   // Rendered report output root
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`                                                      // "json" or "text"
	Output     []string `toml:"output"`                                                      // "stdout", "file"
	TimeFormat string   `toml:"time_format"`                                                 // Time format for logs (default: "15:04:05")
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for AI operations (default: "gemini-3-flash-preview")
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "60s")
	RateLimit   string  `toml:"rate_limit"`  // Minimum spacing between requests, empty disables (default: "")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key for Claude operations
	Model       string  `toml:"model"`       // Model for AI operations (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Default max tokens when a request sets none (default: 8192)
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "60s")
	RateLimit   string  `toml:"rate_limit"`  // Minimum spacing between requests, empty disables (default: "")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains configuration shared by all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"omitempty,oneof=gemini claude"` // "gemini" or "claude" (default: "claude")
	MaxConcurrent   int         `toml:"max_concurrent" validate:"gte=1,lte=100"`                   // In-flight request cap shared across providers (default: 10)
	MaxAttempts     int         `toml:"max_attempts" validate:"gte=1,lte=10"`                      // Total attempts per call including the first (default: 3)
}

// SchedulerConfig controls unattended pipeline runs
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`  // Run the pipeline on a cron schedule (default: false)
	Schedule string `toml:"schedule"` // Cron schedule with seconds field (default: "0 0 6 * * *")
}

// PromptsConfig points at optional prompt template overrides
type PromptsConfig struct {
	File string `toml:"file"` // YAML file overriding built-in prompt templates (default: "")
}

// RenderConfig selects the optional report output formats. JSON and Markdown
// artifacts are always written.
type RenderConfig struct {
	HTML bool `toml:"html"` // Also render the report as HTML (default: false)
	PDF  bool `toml:"pdf"`  // Also render the report as PDF (default: false)
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in relatio.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development", // Default to development mode
		Pipeline: PipelineConfig{
			InputFile: "./tickets.csv",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Filesystem: FilesystemConfig{
				Analyses:  "./data/analyses",
				Summaries: "./data/summaries",
				Reports:   "./data/reports",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",                     // Info level for production (debug|info|warn|error)
			Format:     "text",                     // Human-readable text format (text|json)
			Output:     []string{"stdout", "file"}, // Log to both console and file
			TimeFormat: "15:04:05",
		},
		Gemini: GeminiConfig{
			APIKey:      "",                       // User must provide API key (no fallback)
			Model:       "gemini-3-flash-preview", // Model for AI operations
			Timeout:     "60s",                    // Per-call budget, keeps a stuck call from stalling the batch
			RateLimit:   "",                       // Concurrency cap is the primary throttle
			Temperature: 0.2,                      // Low temperature for reproducible structured output
		},
		Claude: ClaudeConfig{
			APIKey:      "",                          // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022", // Model for AI operations
			MaxTokens:   8192,                        // Default max tokens
			Timeout:     "60s",                       // Per-call budget, keeps a stuck call from stalling the batch
			RateLimit:   "",                          // Concurrency cap is the primary throttle
			Temperature: 0.2,                        // Low temperature for reproducible structured output
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude, // Claude is the primary extraction provider
			MaxConcurrent:   10,                // Shared in-flight cap across every model call
			MaxAttempts:     3,                 // Attempts 1..3, exponential backoff between
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,         // Disabled by default - user must explicitly opt-in
			Schedule: "0 0 6 * * *", // Daily at 06:00 (cron format with seconds)
		},
		Prompts: PromptsConfig{
			File: "", // Built-in prompt templates
		},
		Render: RenderConfig{
			HTML: false,
			PDF:  false,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// Priority system: CLI flags > Environment variables > Config file > Defaults
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files. Priority system: CLI flags > Environment variables > Last config file > ... > First config file > Defaults
// Example: LoadFromFiles("base.toml", "override.toml") - override.toml settings take precedence over base.toml
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: RELATIO_ENV, fallback: GO_ENV)
	if env := os.Getenv("RELATIO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Pipeline configuration
	if inputFile := os.Getenv("RELATIO_INPUT_FILE"); inputFile != "" {
		config.Pipeline.InputFile = inputFile
	}
	if startDate := os.Getenv("RELATIO_START_DATE"); startDate != "" {
		config.Pipeline.StartDate = startDate
	}
	if endDate := os.Getenv("RELATIO_END_DATE"); endDate != "" {
		config.Pipeline.EndDate = endDate
	}

	// Storage configuration
	if badgerPath := os.Getenv("RELATIO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if analysesDir := os.Getenv("RELATIO_ANALYSES_DIR"); analysesDir != "" {
		config.Storage.Filesystem.Analyses = analysesDir
	}
	if summariesDir := os.Getenv("RELATIO_SUMMARIES_DIR"); summariesDir != "" {
		config.Storage.Filesystem.Summaries = summariesDir
	}
	if reportsDir := os.Getenv("RELATIO_REPORTS_DIR"); reportsDir != "" {
		config.Storage.Filesystem.Reports = reportsDir
	}

	// Logging configuration
	if level := os.Getenv("RELATIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("RELATIO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("RELATIO_LOG_OUTPUT"); output != "" {
		// Split comma-separated output types
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
	if apiKey := os.Getenv("RELATIO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("RELATIO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("RELATIO_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("RELATIO_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("RELATIO_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("RELATIO_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // RELATIO_ prefix takes priority
	}
	if model := os.Getenv("RELATIO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("RELATIO_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("RELATIO_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if rateLimit := os.Getenv("RELATIO_CLAUDE_RATE_LIMIT"); rateLimit != "" {
		config.Claude.RateLimit = rateLimit
	}
	if temperature := os.Getenv("RELATIO_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(t)
		}
	}

	// LLM provider configuration
	if provider := os.Getenv("RELATIO_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if maxConcurrent := os.Getenv("RELATIO_LLM_MAX_CONCURRENT"); maxConcurrent != "" {
		if mc, err := strconv.Atoi(maxConcurrent); err == nil {
			config.LLM.MaxConcurrent = mc
		}
	}
	if maxAttempts := os.Getenv("RELATIO_LLM_MAX_ATTEMPTS"); maxAttempts != "" {
		if ma, err := strconv.Atoi(maxAttempts); err == nil {
			config.LLM.MaxAttempts = ma
		}
	}

	// Scheduler configuration
	if enabled := os.Getenv("RELATIO_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("RELATIO_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}

	// Prompts configuration
	if promptsFile := os.Getenv("RELATIO_PROMPTS_FILE"); promptsFile != "" {
		config.Prompts.File = promptsFile
	}

	// Render configuration
	if html := os.Getenv("RELATIO_RENDER_HTML"); html != "" {
		if h, err := strconv.ParseBool(html); err == nil {
			config.Render.HTML = h
		}
	}
	if pdf := os.Getenv("RELATIO_RENDER_PDF"); pdf != "" {
		if p, err := strconv.ParseBool(pdf); err == nil {
			config.Render.PDF = p
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, inputFile, startDate, endDate string) {
	// Command-line flags have highest priority
	if inputFile != "" {
		config.Pipeline.InputFile = inputFile
	}
	if startDate != "" {
		config.Pipeline.StartDate = startDate
	}
	if endDate != "" {
		config.Pipeline.EndDate = endDate
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority
// Resolution order: environment variables → config fallback → error
// This ensures well-known provider variables always take precedence
func ResolveAPIKey(name string, configFallback string) (string, error) {
	// Map of key names to environment variable names, checked in order
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"RELATIO_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"google_api_key":    {"RELATIO_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"ANTHROPIC_API_KEY", "RELATIO_CLAUDE_API_KEY"},
		"claude_api_key":    {"ANTHROPIC_API_KEY", "RELATIO_CLAUDE_API_KEY"},
	}

	// Check environment variables (highest priority)
	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// Fallback to config value (lowest priority)
	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
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

// ValidateSchedule validates a cron schedule expression (seconds field
// included) and ensures a minimum 5-minute interval between runs
func ValidateSchedule(schedule string) error {
	// Parse the cron expression
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 6 {
		return fmt.Errorf("invalid cron format: expected 6 fields")
	}

	secondField := parts[0]
	minuteField := parts[1]

	// Check for patterns that violate the 5-minute minimum
	if secondField == "*" || minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every second/minute is not allowed)")
	}

	// Check for */n minute patterns where n < 5
	if strings.HasPrefix(minuteField, "*/") {
		intervalStr := strings.TrimPrefix(minuteField, "*/")
		interval, err := strconv.Atoi(intervalStr)
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

var configValidator = validator.New()

// Validate checks structural constraints plus the cross-field rules the
// tag syntax cannot express (durations, date windows, schedules)
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for name, value := range map[string]string{
		"gemini.timeout": c.Gemini.Timeout,
		"claude.timeout": c.Claude.Timeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	for name, value := range map[string]string{
		"gemini.rate_limit": c.Gemini.RateLimit,
		"claude.rate_limit": c.Claude.RateLimit,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	var start, end time.Time
	if c.Pipeline.StartDate != "" {
		t, err := time.Parse("2006-01-02", c.Pipeline.StartDate)
		if err != nil {
			return fmt.Errorf("invalid pipeline.start_date: %w", err)
		}
		start = t
	}
	if c.Pipeline.EndDate != "" {
		t, err := time.Parse("2006-01-02", c.Pipeline.EndDate)
		if err != nil {
			return fmt.Errorf("invalid pipeline.end_date: %w", err)
		}
		end = t
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("pipeline.end_date %s precedes pipeline.start_date %s", c.Pipeline.EndDate, c.Pipeline.StartDate)
	}

	if c.Scheduler.Enabled {
		if err := ValidateSchedule(c.Scheduler.Schedule); err != nil {
			return fmt.Errorf("invalid scheduler.schedule: %w", err)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
