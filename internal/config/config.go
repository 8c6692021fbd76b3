package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"PaperDigest/internal/logging"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "PAPERDIGEST_CONFIG"
	logLevelEnv       = "PAPERDIGEST_LOG_LEVEL"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	openAIModelEnv    = "OPENAI_MODEL"
	openAIEndpointEnv = "OPENAI_ENDPOINT"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Recency modes understood by the poller.
const (
	RecencyCutoff = "cutoff"
	RecencyDay    = "day"
)

// Claim policies: when an item is recorded in the seen-set.
const (
	ClaimOnSelect = "select"
	ClaimOnWrite  = "write"
)

// Seen-set backends.
const (
	SeenBackendFile   = "file"
	SeenBackendSQLite = "sqlite"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Source        SourceConfig       `yaml:"source"`
	Seen          SeenConfig         `yaml:"seen"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Summaries     SummaryConfig      `yaml:"summaries"`
	Output        OutputConfig       `yaml:"output"`
	Site          SiteConfig         `yaml:"site"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines the run timezone and the watch interval.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// SourceConfig describes the paper index and the selection window.
type SourceConfig struct {
	Scanner         string        `yaml:"scanner"`
	APIEndpoint     string        `yaml:"apiEndpoint"`
	ListingURL      string        `yaml:"listingUrl"`
	Categories      []string      `yaml:"categories"`
	RecencyWindow   time.Duration `yaml:"recencyWindow"`
	RecencyMode     string        `yaml:"recencyMode"`
	MaxCandidates   int           `yaml:"maxCandidates"`
	RequestInterval time.Duration `yaml:"requestInterval"`
	ClaimPolicy     string        `yaml:"claimPolicy"`
}

// SeenConfig selects where processed identifiers live.
type SeenConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// ChatGPTConfig defines how to contact the completion API.
type ChatGPTConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Temperature  float64       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Missing names the settings a completion call cannot do without.
func (c ChatGPTConfig) Missing() []string {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "apiKey")
	}
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.Model == "" {
		missing = append(missing, "model")
	}
	return missing
}

// SummaryConfig lists the languages to summarise into and their character budgets.
type SummaryConfig struct {
	Languages []string       `yaml:"languages"`
	Budgets   map[string]int `yaml:"budgets"`
	Tags      bool           `yaml:"tags"`
}

// OutputConfig places the per-day record files.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"`
}

// SiteConfig places the rendered HTML.
type SiteConfig struct {
	Dir   string `yaml:"dir"`
	Title string `yaml:"title"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment.
// A missing default ".env" is not an error; a missing explicit file is.
func LoadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads YAML configuration (if any) over the defaults and applies environment overrides.
// path falls back to $PAPERDIGEST_CONFIG; with neither set the defaults are used.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings every command relies on.
func (c Config) Validate() error {
	var problems []string

	if !logging.ValidLevel(c.Logging.Level) {
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if len(c.Source.Categories) == 0 {
		problems = append(problems, "source.categories must not be empty")
	}
	if c.Source.MaxCandidates <= 0 {
		problems = append(problems, "source.maxCandidates must be positive")
	}
	switch c.Source.RecencyMode {
	case RecencyCutoff, RecencyDay:
	default:
		problems = append(problems, fmt.Sprintf("source.recencyMode %q is not one of cutoff, day", c.Source.RecencyMode))
	}
	switch c.Source.ClaimPolicy {
	case ClaimOnSelect, ClaimOnWrite:
	default:
		problems = append(problems, fmt.Sprintf("source.claimPolicy %q is not one of select, write", c.Source.ClaimPolicy))
	}
	switch c.Seen.Backend {
	case SeenBackendFile, SeenBackendSQLite:
	default:
		problems = append(problems, fmt.Sprintf("seen.backend %q is not one of file, sqlite", c.Seen.Backend))
	}
	if c.Seen.Path == "" {
		problems = append(problems, "seen.path must be set")
	}
	if len(c.Summaries.Languages) == 0 {
		problems = append(problems, "summaries.languages must not be empty")
	}
	for _, lang := range c.Summaries.Languages {
		if c.Summaries.Budgets[lang] <= 0 {
			problems = append(problems, fmt.Sprintf("summaries.budgets.%s must be positive", lang))
		}
	}
	if c.Output.Dir == "" || c.Site.Dir == "" {
		problems = append(problems, "output.dir and site.dir must be set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(openAIEndpointEnv); v != "" {
		c.ChatGPT.Endpoint = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{Interval: 24 * time.Hour, Timezone: defaultTimezone, location: tz},
		Source: SourceConfig{
			Scanner:         "arxiv-api",
			APIEndpoint:     "https://export.arxiv.org/api/query",
			ListingURL:      "https://export.arxiv.org/list",
			Categories:      []string{"cs.LG"},
			RecencyWindow:   30 * 24 * time.Hour,
			RecencyMode:     RecencyCutoff,
			MaxCandidates:   50,
			RequestInterval: 3 * time.Second,
			ClaimPolicy:     ClaimOnSelect,
		},
		Seen: SeenConfig{Backend: SeenBackendFile, Path: "seen.txt"},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o",
			APIKey:       "",
			SystemPrompt: "You are a concise academic assistant.",
			Temperature:  0.3,
			Timeout:      60 * time.Second,
		},
		Summaries: SummaryConfig{
			Languages: []string{"en", "ja"},
			Budgets:   map[string]int{"en": 280, "ja": 105},
			Tags:      true,
		},
		Output: OutputConfig{Dir: "outputs", Extension: ".md"},
		Site:   SiteConfig{Dir: "docs", Title: "Paper Summaries"},
	}
}
