package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadflow/internal/resilience"
)

// PlaceholderCampaign marks a campaign slot that has not been filled in.
const PlaceholderCampaign = "CAMPAIGN_ID_HERE"

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Instantly  InstantlyConfig  `yaml:"instantly" mapstructure:"instantly"`
	Outreach   OutreachConfig   `yaml:"outreach" mapstructure:"outreach"`
	HubSpot    HubSpotConfig    `yaml:"hubspot" mapstructure:"hubspot"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	CRM        CRMConfig        `yaml:"crm" mapstructure:"crm"`
	Slack      SlackConfig      `yaml:"slack" mapstructure:"slack"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Apify      ApifyConfig      `yaml:"apify" mapstructure:"apify"`
	Kafka      KafkaConfig      `yaml:"kafka" mapstructure:"kafka"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Cleanup    CleanupConfig    `yaml:"cleanup" mapstructure:"cleanup"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string              `yaml:"key" mapstructure:"key"`
	Model       string              `yaml:"model" mapstructure:"model"`
	MaxTokens   int64               `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int                 `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Resilience  resilience.Settings `yaml:"resilience" mapstructure:"resilience"`
}

// Timeout returns the per-call oracle timeout.
func (c AnthropicConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl settings (content fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity settings (news fallback only).
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// InstantlyConfig holds Instantly API settings.
type InstantlyConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// OutreachConfig maps tiers to outreach campaigns and tunes batch pushes.
type OutreachConfig struct {
	// Campaigns maps a tier name (priority, standard, nurture) to a campaign ID.
	Campaigns         map[string]string `yaml:"campaigns" mapstructure:"campaigns"`
	BatchSize         int               `yaml:"batch_size" mapstructure:"batch_size"`
	MaxRetries        int               `yaml:"max_retries" mapstructure:"max_retries"`
	RetryIntervalSecs int               `yaml:"retry_interval_secs" mapstructure:"retry_interval_secs"`
}

// Campaign returns the configured campaign for tier, or "" when the slot is
// missing, empty or still the placeholder.
func (c OutreachConfig) Campaign(tier string) string {
	id := strings.TrimSpace(c.Campaigns[tier])
	if id == PlaceholderCampaign {
		return ""
	}
	return id
}

// RetryInterval returns the linear backoff step for rate-limited pushes.
func (c OutreachConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalSecs) * time.Second
}

// HubSpotConfig holds HubSpot private app settings.
type HubSpotConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// CRMConfig selects the CRM adapter.
type CRMConfig struct {
	// Provider is hubspot, salesforce, or none.
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// SlackConfig holds the incoming webhook used for team notifications.
type SlackConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CalendlyURL string `yaml:"calendly_url" mapstructure:"calendly_url"`
}

// NotionConfig holds the Notion token and the lead queue database.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// ApifyConfig holds Apify settings for scraper sourcing.
type ApifyConfig struct {
	Token       string `yaml:"token" mapstructure:"token"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// KafkaConfig configures the audit event stream. Empty brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// EnrichConfig configures the enrichment batch.
type EnrichConfig struct {
	DefaultBatchSize int `yaml:"default_batch_size" mapstructure:"default_batch_size"`
	MaxBatchSize     int `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	ContentMaxRunes  int `yaml:"content_max_runes" mapstructure:"content_max_runes"`
	NewsMaxItems     int `yaml:"news_max_items" mapstructure:"news_max_items"`
}

// DefaultProtectedStatuses are outreach statuses cleanup never removes.
var DefaultProtectedStatuses = []string{"Meeting Booked", "Call Time Sent", "Objection Follow Up", "Interested"}

// CleanupConfig configures the outreach cleanup policy.
type CleanupConfig struct {
	MaxDeletions      int      `yaml:"max_deletions" mapstructure:"max_deletions"`
	PageSize          int      `yaml:"page_size" mapstructure:"page_size"`
	ProtectedStatuses []string `yaml:"protected_statuses" mapstructure:"protected_statuses"`
}

// ScheduleConfig configures the in-process cron jobs started by serve.
type ScheduleConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Timezone  string `yaml:"timezone" mapstructure:"timezone"`
	Cleanup   string `yaml:"cleanup" mapstructure:"cleanup"`
	Dashboard string `yaml:"dashboard" mapstructure:"dashboard"`
}

// MonitoringConfig configures health alert thresholds.
type MonitoringConfig struct {
	FailureRateThreshold      float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	UnhandledRepliesThreshold int     `yaml:"unhandled_replies_threshold" mapstructure:"unhandled_replies_threshold"`
	CheckIntervalMins         int     `yaml:"check_interval_mins" mapstructure:"check_interval_mins"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// secretKeys have empty defaults so AutomaticEnv can bind them during Unmarshal.
var secretKeys = []string{
	"anthropic.key", "jina.key", "firecrawl.key", "perplexity.key", "instantly.key",
	"hubspot.token", "salesforce.client_id", "salesforce.username", "salesforce.key_path",
	"slack.webhook_url", "slack.calendly_url", "notion.token", "notion.lead_db", "apify.token",
}

func setDefaults(v *viper.Viper) {
	for _, k := range secretKeys {
		v.SetDefault(k, "")
	}
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadflow.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.timeout_secs", 180)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")

	v.SetDefault("instantly.base_url", "https://api.instantly.ai/api/v2")
	v.SetDefault("instantly.rate_limit", 5)
	v.SetDefault("outreach.campaigns", map[string]string{
		"priority": PlaceholderCampaign,
		"standard": PlaceholderCampaign,
		"nurture":  PlaceholderCampaign,
	})
	v.SetDefault("outreach.batch_size", 100)
	v.SetDefault("outreach.max_retries", 3)
	v.SetDefault("outreach.retry_interval_secs", 5)

	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.rate_limit", 9)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("crm.provider", "hubspot")
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.timeout_secs", 300)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "leadflow.events")

	v.SetDefault("enrich.default_batch_size", 10)
	v.SetDefault("enrich.max_batch_size", 10)
	v.SetDefault("enrich.content_max_runes", 8000)
	v.SetDefault("enrich.news_max_items", 5)

	v.SetDefault("cleanup.max_deletions", 500)
	v.SetDefault("cleanup.page_size", 500)
	v.SetDefault("cleanup.protected_statuses", DefaultProtectedStatuses)

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.timezone", "America/New_York")
	v.SetDefault("schedule.cleanup", "0 0 23 * * 0")
	v.SetDefault("schedule.dashboard", "0 0 8 * * 1")

	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.unhandled_replies_threshold", 20)
	v.SetDefault("monitoring.check_interval_mins", 60)
}

// Validate reports configuration that would make the process misbehave.
// Missing API keys are not errors: those integrations are skipped.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Enrich.MaxBatchSize <= 0 {
		problems = append(problems, "enrich.max_batch_size must be positive")
	}
	if c.Outreach.BatchSize <= 0 {
		problems = append(problems, "outreach.batch_size must be positive")
	}
	if c.Cleanup.MaxDeletions < 0 {
		problems = append(problems, "cleanup.max_deletions must not be negative")
	}
	switch c.CRM.Provider {
	case "", "none", "hubspot", "salesforce":
	default:
		problems = append(problems, "crm.provider must be hubspot, salesforce or none")
	}
	if c.Schedule.Enabled {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			problems = append(problems, "schedule.timezone is not a valid IANA zone")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

const redacted = "****"

// Redacted returns a copy of c with credentials masked, for display.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	if c.Store.Driver == "postgres" {
		mask(&c.Store.DatabaseURL)
	}
	mask(&c.Anthropic.Key)
	mask(&c.Jina.Key)
	mask(&c.Firecrawl.Key)
	mask(&c.Perplexity.Key)
	mask(&c.Instantly.Key)
	mask(&c.HubSpot.Token)
	mask(&c.Salesforce.ClientID)
	mask(&c.Slack.WebhookURL)
	mask(&c.Notion.Token)
	mask(&c.Apify.Token)
	return c
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
