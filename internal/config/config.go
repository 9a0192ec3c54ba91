package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDynamo   = "dynamodb"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreFS       = "fs"

	NotifySNS  = "sns"
	NotifyAMQP = "amqp"

	endpointAliasPrefix = "SAGEMAKER_ENDPOINT_"
)

type Config struct {
	Region            string        `mapstructure:"aws_region"`
	SessionsTable     string        `mapstructure:"sessions_table_name"`
	MessagesTopicArn  string        `mapstructure:"messages_topic_arn"`
	FilesBucket       string        `mapstructure:"chatbot_files_bucket_name"`
	LogLevel          string        `mapstructure:"log_level"`
	InvokeTimeout     time.Duration `mapstructure:"invoke_timeout"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
	InvokeMaxAttempts int           `mapstructure:"invoke_max_attempts"`
	SignedURLTTL      time.Duration `mapstructure:"signed_url_ttl"`
	StoreBackend      string        `mapstructure:"store_backend"`
	StoreDSN          string        `mapstructure:"store_dsn"`
	NotifyBackend     string        `mapstructure:"notify_backend"`
	AMQPURL           string        `mapstructure:"amqp_url"`
	AMQPExchange      string        `mapstructure:"amqp_exchange"`
	AzureEndpoint     string        `mapstructure:"azure_openai_endpoint"`
	AzureAPIKey       string        `mapstructure:"azure_openai_api_key"`

	// EndpointAliases maps the normalized model name of each
	// SAGEMAKER_ENDPOINT_<NAME> variable to its endpoint.
	EndpointAliases map[string]string `mapstructure:"-"`
}

var required = []string{
	"aws_region",
	"sessions_table_name",
	"messages_topic_arn",
	"chatbot_files_bucket_name",
}

var optional = map[string]any{
	"log_level":             "info",
	"invoke_timeout":        "5m",
	"max_concurrency":       1,
	"invoke_max_attempts":   1,
	"signed_url_ttl":        "1h",
	"store_backend":         StoreDynamo,
	"store_dsn":             "",
	"notify_backend":        NotifySNS,
	"amqp_url":              "",
	"amqp_exchange":         "chatbot.messages",
	"azure_openai_endpoint": "",
	"azure_openai_api_key":  "",
}

// Load reads the worker configuration from the environment. A .env file in
// the working directory is read first when present; the environment wins.
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for _, key := range required {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}
	for key, def := range optional {
		v.SetDefault(key, def)
		_ = v.BindEnv(key, strings.ToUpper(key))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.EndpointAliases = endpointAliases(os.Environ())

	if err := cfg.validate(v); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate(v *viper.Viper) error {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, strings.ToUpper(key))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}

	switch c.StoreBackend {
	case StoreDynamo, StoreFS:
	case StoreSQLite, StorePostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("STORE_DSN is required for store backend %q", c.StoreBackend)
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND: %s", c.StoreBackend)
	}

	switch c.NotifyBackend {
	case NotifySNS:
	case NotifyAMQP:
		if c.AMQPURL == "" {
			return errors.New("AMQP_URL is required for notify backend amqp")
		}
	default:
		return fmt.Errorf("unsupported NOTIFY_BACKEND: %s", c.NotifyBackend)
	}

	if c.InvokeTimeout <= 0 {
		return fmt.Errorf("INVOKE_TIMEOUT must be positive: %s", c.InvokeTimeout)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("MAX_CONCURRENCY must be positive: %d", c.MaxConcurrency)
	}
	if c.InvokeMaxAttempts <= 0 {
		return fmt.Errorf("INVOKE_MAX_ATTEMPTS must be positive: %d", c.InvokeMaxAttempts)
	}
	if (c.AzureEndpoint == "") != (c.AzureAPIKey == "") {
		return errors.New("AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_API_KEY must be set together")
	}
	return nil
}

// AzureEnabled reports whether the Azure OpenAI provider is configured.
func (c *Config) AzureEnabled() bool {
	return c.AzureEndpoint != ""
}

func endpointAliases(environ []string) map[string]string {
	aliases := map[string]string{}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(name, endpointAliasPrefix) {
			continue
		}
		if model := strings.TrimPrefix(name, endpointAliasPrefix); model != "" {
			aliases[model] = value
		}
	}
	return aliases
}
