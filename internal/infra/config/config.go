package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig describes the service configuration.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		OwnerID    int64  `envconfig:"TG_OWNER_ID"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	X struct {
		BaseURL     string `envconfig:"X_BASE_URL" default:"https://api.twitter.com"`
		AccessToken string `envconfig:"X_ACCESS_TOKEN"`
	} `envconfig:""`

	Ollama struct {
		Host    string        `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`
		Model   string        `envconfig:"OLLAMA_MODEL" default:"mistral"`
		Timeout time.Duration `envconfig:"OLLAMA_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Reddit struct {
		BaseURL   string `envconfig:"REDDIT_BASE_URL" default:"https://www.reddit.com"`
		UserAgent string `envconfig:"REDDIT_USER_AGENT" default:"tg-xpost-bot/1.0"`
	} `envconfig:""`

	Nitter struct {
		BaseURL string `envconfig:"NITTER_BASE_URL" default:"https://nitter.net"`
	} `envconfig:""`

	Search struct {
		BaseURL string `envconfig:"SEARCH_BASE_URL" default:"https://html.duckduckgo.com"`
	} `envconfig:""`

	Limits struct {
		DiscoverItems   int `envconfig:"DISCOVER_MAX_ITEMS" default:"10"`
		ResearchResults int `envconfig:"RESEARCH_MAX_RESULTS" default:"5"`
	} `envconfig:""`
}

// Load reads the config from the environment. Missing required variables are
// the only process-fatal error in the system.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	var missing []string
	if cfg.Telegram.Token == "" {
		missing = append(missing, "TG_BOT_TOKEN")
	}
	if cfg.Telegram.OwnerID == 0 {
		missing = append(missing, "TG_OWNER_ID")
	}
	if cfg.X.AccessToken == "" {
		missing = append(missing, "X_ACCESS_TOKEN")
	}
	if len(missing) > 0 {
		log.Fatalf("missing required config: %v", missing)
	}
	return cfg
}

// LoadLenient reads whatever the environment provides and keeps the defaults
// for the rest. Diagnostics use it: an incomplete setup is a finding to
// report, not a reason to refuse to start.
func LoadLenient() AppConfig {
	var cfg AppConfig
	_ = envconfig.Process("", &cfg)
	return cfg
}
