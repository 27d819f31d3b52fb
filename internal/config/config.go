package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
)

const DefaultPath = "backend_config.yml"

// ProxyConfig describes the SOCKS5 proxy used for SMTP probes only.
type ProxyConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required,min=1,max=65535"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

// URL renders the descriptor as a socks5:// URL for the dialer.
func (p *ProxyConfig) URL() string {
	u := url.URL{
		Scheme: "socks5",
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Pass)
	}
	return u.String()
}

// VerifMethodConfig picks the probe path per provider. Providers not
// listed here (proton, generic) always use smtp.
type VerifMethodConfig struct {
	Gmail      string `yaml:"gmail" validate:"oneof=smtp headless api skip"`
	HotmailB2B string `yaml:"hotmailb2b" validate:"oneof=smtp headless api skip"`
	HotmailB2C string `yaml:"hotmailb2c" validate:"oneof=smtp headless api skip"`
	Yahoo      string `yaml:"yahoo" validate:"oneof=smtp headless api skip"`
}

// For resolves the configured method for a provider tag.
func (v VerifMethodConfig) For(tag model.ProviderTag) model.VerifMethod {
	switch tag {
	case model.ProviderGmail:
		return model.VerifMethod(v.Gmail)
	case model.ProviderHotmailB2B:
		return model.VerifMethod(v.HotmailB2B)
	case model.ProviderHotmailB2C:
		return model.VerifMethod(v.HotmailB2C)
	case model.ProviderYahoo:
		return model.VerifMethod(v.Yahoo)
	default:
		return model.MethodSMTP
	}
}

type ThrottleConfig struct {
	MaxRequestsPerSecond int `yaml:"max_requests_per_second" validate:"min=0"`
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute" validate:"min=0"`
	MaxRequestsPerHour   int `yaml:"max_requests_per_hour" validate:"min=0"`
	MaxRequestsPerDay    int `yaml:"max_requests_per_day" validate:"min=0"`
}

type RabbitMQConfig struct {
	URL string `yaml:"url"`
}

type PostgresConfig struct {
	DBURL string `yaml:"db_url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type WebhookTarget struct {
	URL string `yaml:"url"`
}

type WebhookConfig struct {
	OnEachEmail   WebhookTarget `yaml:"on_each_email"`
	OnJobComplete WebhookTarget `yaml:"on_job_complete"`
}

// QueueList is either the literal "all" or an explicit list of the five
// allowed queue names.
type QueueList []string

func (q *QueueList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s != "all" && s != "" {
			return fmt.Errorf("worker.queues: %q is not \"all\" or a list", s)
		}
		*q = QueueList(model.AllQueues())
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*q = QueueList(list)
		return nil
	default:
		return fmt.Errorf("worker.queues: unsupported YAML node")
	}
}

type WorkerConfig struct {
	Enable      bool           `yaml:"enable"`
	Throttle    ThrottleConfig `yaml:"throttle"`
	RabbitMQ    RabbitMQConfig `yaml:"rabbitmq"`
	Queues      QueueList      `yaml:"queues"`
	Concurrency int            `yaml:"concurrency"`
	Postgres    PostgresConfig `yaml:"postgres"`
	Redis       RedisConfig    `yaml:"redis"`
	Webhook     WebhookConfig  `yaml:"webhook"`
}

type OtelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

type HibpConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
}

type Config struct {
	BackendName   string            `yaml:"backend_name"`
	LogLevel      string            `yaml:"log_level"`
	HTTPHost      string            `yaml:"http_host"`
	HTTPPort      int               `yaml:"http_port" validate:"min=1,max=65535"`
	HeaderSecret  string            `yaml:"header_secret"`
	HelloName     string            `yaml:"hello_name" validate:"required"`
	FromEmail     string            `yaml:"from_email" validate:"required"`
	WebdriverAddr string            `yaml:"webdriver_addr"`
	Proxy         *ProxyConfig      `yaml:"proxy"`
	VerifMethod   VerifMethodConfig `yaml:"verif_method"`
	SentryDSN     string            `yaml:"sentry_dsn"`
	WebhookSecret string            `yaml:"webhook_secret"`
	Hibp          HibpConfig        `yaml:"hibp"`
	Otel          OtelConfig        `yaml:"otel"`
	Worker        WorkerConfig      `yaml:"worker"`
}

// Default returns the configuration used when no file and no env are
// present. The from_email/hello_name pair mimics a common consumer
// client, which keeps strict servers talkative.
func Default() *Config {
	return &Config{
		BackendName: "backend-dev",
		LogLevel:    "info",
		HTTPHost:    "0.0.0.0",
		HTTPPort:    8080,
		HelloName:   "gmail.com",
		FromEmail:   "reacher.email@gmail.com",
		VerifMethod: VerifMethodConfig{
			Gmail:      string(model.MethodSMTP),
			HotmailB2B: string(model.MethodSMTP),
			HotmailB2C: string(model.MethodHeadless),
			Yahoo:      string(model.MethodHeadless),
		},
		Worker: WorkerConfig{
			Enable:      false,
			Queues:      QueueList(model.AllQueues()),
			Concurrency: 10,
		},
	}
}

// Load reads the optional config file, applies environment overrides and
// validates the result. A missing file is fine; a malformed one is not.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus env are a complete configuration.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.overrideFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overrideFromEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setStr(&c.BackendName, "BACKEND_NAME")
	setStr(&c.LogLevel, "LOG_LEVEL")
	setStr(&c.HTTPHost, "HTTP_HOST")
	setInt(&c.HTTPPort, "HTTP_PORT")
	setStr(&c.HeaderSecret, "HEADER_SECRET")
	setStr(&c.HelloName, "HELLO_NAME")
	setStr(&c.FromEmail, "FROM_EMAIL")
	setStr(&c.WebdriverAddr, "WEBDRIVER_ADDR")
	setStr(&c.SentryDSN, "SENTRY_DSN")
	setStr(&c.WebhookSecret, "WEBHOOK_SECRET")

	if host := os.Getenv("PROXY_HOST"); host != "" {
		if c.Proxy == nil {
			c.Proxy = &ProxyConfig{}
		}
		c.Proxy.Host = host
	}
	if c.Proxy != nil {
		setInt(&c.Proxy.Port, "PROXY_PORT")
		setStr(&c.Proxy.User, "PROXY_USER")
		setStr(&c.Proxy.Pass, "PROXY_PASS")
	}

	setStr(&c.VerifMethod.Gmail, "VERIF_METHOD_GMAIL")
	setStr(&c.VerifMethod.HotmailB2B, "VERIF_METHOD_HOTMAILB2B")
	setStr(&c.VerifMethod.HotmailB2C, "VERIF_METHOD_HOTMAILB2C")
	setStr(&c.VerifMethod.Yahoo, "VERIF_METHOD_YAHOO")

	setBool(&c.Hibp.Enabled, "HIBP_ENABLED")
	setStr(&c.Hibp.APIKey, "HIBP_API_KEY")
	setBool(&c.Otel.Enabled, "OTEL_ENABLED")
	setStr(&c.Otel.Endpoint, "OTEL_ENDPOINT")

	setBool(&c.Worker.Enable, "WORKER_ENABLE")
	setInt(&c.Worker.Throttle.MaxRequestsPerSecond, "WORKER_THROTTLE_MAX_REQUESTS_PER_SECOND")
	setInt(&c.Worker.Throttle.MaxRequestsPerMinute, "WORKER_THROTTLE_MAX_REQUESTS_PER_MINUTE")
	setInt(&c.Worker.Throttle.MaxRequestsPerHour, "WORKER_THROTTLE_MAX_REQUESTS_PER_HOUR")
	setInt(&c.Worker.Throttle.MaxRequestsPerDay, "WORKER_THROTTLE_MAX_REQUESTS_PER_DAY")
	setStr(&c.Worker.RabbitMQ.URL, "WORKER_RABBITMQ_URL")
	setInt(&c.Worker.Concurrency, "WORKER_CONCURRENCY")
	setStr(&c.Worker.Postgres.DBURL, "WORKER_POSTGRES_DB_URL")
	setStr(&c.Worker.Redis.URL, "WORKER_REDIS_URL")
	setStr(&c.Worker.Webhook.OnEachEmail.URL, "WORKER_WEBHOOK_ON_EACH_EMAIL_URL")
	setStr(&c.Worker.Webhook.OnJobComplete.URL, "WORKER_WEBHOOK_ON_JOB_COMPLETE_URL")

	if v := os.Getenv("WORKER_QUEUES"); v != "" {
		if v == "all" {
			c.Worker.Queues = QueueList(model.AllQueues())
		} else {
			parts := strings.Split(v, ",")
			queues := make([]string, 0, len(parts))
			for _, p := range parts {
				queues = append(queues, strings.TrimSpace(p))
			}
			c.Worker.Queues = QueueList(queues)
		}
	}
}

// Validate enforces the recognized-keys contract. Worker-only settings
// are checked only when the worker is enabled.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, q := range c.Worker.Queues {
		if !model.ValidQueue(q) {
			return fmt.Errorf("invalid configuration: unknown queue %q", q)
		}
	}

	if c.Worker.Enable {
		if c.Worker.RabbitMQ.URL == "" {
			return fmt.Errorf("invalid configuration: worker.rabbitmq.url is required when worker.enable is true")
		}
		if c.Worker.Postgres.DBURL == "" {
			return fmt.Errorf("invalid configuration: worker.postgres.db_url is required when worker.enable is true")
		}
		if c.Worker.Concurrency < 1 {
			return fmt.Errorf("invalid configuration: worker.concurrency must be >= 1")
		}
		if len(c.Worker.Queues) == 0 {
			return fmt.Errorf("invalid configuration: worker.queues must not be empty")
		}
	}

	return nil
}
