package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`
	RedisURL           string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	// Object storage for generated images (S3-compatible)
	S3URL       string `envconfig:"S3_URL" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`

	// Provider key pools, comma separated. Rotated on HTTP 429.
	OpenAIAPIKeys    string `envconfig:"OPENAI_API_KEYS"`
	OpenAIBaseURL    string `envconfig:"OPENAI_BASE_URL"`
	AnthropicAPIKeys string `envconfig:"ANTHROPIC_API_KEYS"`
	AnthropicBaseURL string `envconfig:"ANTHROPIC_BASE_URL"`
	YouTubeAPIKeys   string `envconfig:"YOUTUBE_API_KEYS"`
	DefaultModel     string `envconfig:"DEFAULT_AI_MODEL" default:"gpt-4o-mini"`
	ImageModel       string `envconfig:"IMAGE_MODEL" default:"dall-e-3"`

	// Rate limiting for generation endpoints
	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`

	// Pub/Sub
	GCPProjectID                  string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost            string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubAlertTopic              string `envconfig:"PUBSUB_ALERT_TOPIC" default:"monitor-alerts"`
	DLQEndpointURL                string `envconfig:"DLQ_ENDPOINT_URL"`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL"`

	// Stripe
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePriceFree       string `envconfig:"STRIPE_PRICE_FREE" default:"free"`
	StripePriceMonthly    string `envconfig:"STRIPE_PRICE_MONTHLY"`
	StripePriceAnnual     string `envconfig:"STRIPE_PRICE_ANNUAL"`
	StripePortalReturnURL string `envconfig:"STRIPE_PORTAL_RETURN_URL" default:"http://localhost:3000/billing"`

	// Monitor orchestrator settings
	MonitorQueueName           string `envconfig:"MONITOR_QUEUE_NAME" default:"monitor_scan_queue"`
	MonitorDeadLetterQueueName string `envconfig:"MONITOR_DEAD_LETTER_QUEUE_NAME" default:"monitor_scan_queue_dlq"`
	MonitorPollTimeoutSec      int    `envconfig:"MONITOR_POLL_TIMEOUT_SEC" default:"30"`
	MonitorPollMaxMsg          int    `envconfig:"MONITOR_POLL_MAX_MSG" default:"1"`
	MonitorMaxRetries          int    `envconfig:"MONITOR_MAX_RETRIES" default:"3"`
	MonitorBackoffInitialSec   int    `envconfig:"MONITOR_BACKOFF_INITIAL_SEC" default:"1"`
	MonitorBackoffMaxSec       int    `envconfig:"MONITOR_BACKOFF_MAX_SEC" default:"30"`
	MonitorVideosPerScan       int    `envconfig:"MONITOR_VIDEOS_PER_SCAN" default:"10"`
	SchedulerIntervalMin       int    `envconfig:"SCHEDULER_INTERVAL_MIN" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SplitKeys turns a comma separated key list into a slice, dropping blanks.
func SplitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsLocalPubSub reports whether Pub/Sub traffic goes to the emulator.
func (c *Config) IsLocalPubSub() bool {
	return c.PubSubEmulatorHost != ""
}
