package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr       string
	BackendBaseURL string
	BackendTimeout time.Duration
	CRDBDSN        string
	MongoURI       string
	RedisAddr      string
	RabbitURL      string
	JWTSecret      string
	OTLPEndpoint   string
	LogLevel       string

	CacheTTL time.Duration
	FlowTTL  time.Duration

	Payment PaymentConfig

	RateLimitPerUser int
	RateLimitPerIP   int
	IdempotencyTTL   time.Duration

	ConfirmOnServer  bool
	ReminderInterval time.Duration
	ReminderLeadDays int
}

type PaymentConfig struct {
	Provider     string
	SendDelay    time.Duration
	ConfirmDelay time.Duration
	Timeout      time.Duration
	GatewayURL   string
	GatewayKey   string
	// Operators maps an operator code (orange, mtn) to its allowed two-digit prefixes.
	Operators map[string][]string
}

// fileOverlay is the optional YAML document named by HOTEL_CONFIG_FILE.
type fileOverlay struct {
	Payment struct {
		SendDelay    string              `yaml:"send_delay"`
		ConfirmDelay string              `yaml:"confirm_delay"`
		Timeout      string              `yaml:"timeout"`
		Operators    map[string][]string `yaml:"operators"`
	} `yaml:"payment"`
	CacheTTL string `yaml:"cache_ttl"`
	FlowTTL  string `yaml:"flow_ttl"`
}

func DefaultOperators() map[string][]string {
	return map[string][]string{
		"orange": {"69", "65", "66", "67"},
		"mtn":    {"67", "65", "68", "64"},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		BackendBaseURL: envOr("BACKEND_BASE_URL", "http://localhost:5000"),
		BackendTimeout: durationOr("BACKEND_TIMEOUT", 10*time.Second),
		CRDBDSN:        os.Getenv("CRDB_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		CacheTTL:       durationOr("CACHE_TTL", time.Minute),
		FlowTTL:        durationOr("FLOW_TTL", 24*time.Hour),
		Payment: PaymentConfig{
			Provider:     envOr("PAYMENT_PROVIDER", "simulated"),
			SendDelay:    durationOr("PAYMENT_SEND_DELAY", 2*time.Second),
			ConfirmDelay: durationOr("PAYMENT_CONFIRM_DELAY", 3*time.Second),
			Timeout:      durationOr("PAYMENT_TIMEOUT", 2*time.Minute),
			GatewayURL:   os.Getenv("PAYMENT_GATEWAY_URL"),
			GatewayKey:   os.Getenv("PAYMENT_GATEWAY_KEY"),
			Operators:    DefaultOperators(),
		},
		RateLimitPerUser: intOr("RATE_LIMIT_PER_USER", 60),
		RateLimitPerIP:   intOr("RATE_LIMIT_PER_IP", 300),
		IdempotencyTTL:   durationOr("IDEMPOTENCY_TTL", 24*time.Hour),
		ConfirmOnServer:  os.Getenv("CONFIRM_ON_SERVER") == "true",
		ReminderInterval: durationOr("REMINDER_INTERVAL", 24*time.Hour),
		ReminderLeadDays: intOr("REMINDER_LEAD_DAYS", 2),
	}

	if path := os.Getenv("HOTEL_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	var overlay fileOverlay
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &overlay); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}

	overrideDuration(&c.Payment.SendDelay, overlay.Payment.SendDelay)
	overrideDuration(&c.Payment.ConfirmDelay, overlay.Payment.ConfirmDelay)
	overrideDuration(&c.Payment.Timeout, overlay.Payment.Timeout)
	overrideDuration(&c.CacheTTL, overlay.CacheTTL)
	overrideDuration(&c.FlowTTL, overlay.FlowTTL)
	for op, prefixes := range overlay.Payment.Operators {
		c.Payment.Operators[op] = prefixes
	}
	return nil
}

func (c *Config) Validate() error {
	if c.BackendBaseURL == "" {
		return errors.New("BACKEND_BASE_URL is required")
	}
	switch c.Payment.Provider {
	case "simulated":
	case "gateway":
		if c.Payment.GatewayURL == "" {
			return errors.New("PAYMENT_GATEWAY_URL is required for the gateway provider")
		}
	default:
		return errors.Newf("unknown payment provider %q", c.Payment.Provider)
	}
	for op, prefixes := range c.Payment.Operators {
		if len(prefixes) == 0 {
			return errors.Newf("operator %s has no prefixes", op)
		}
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d == 0 {
		return def
	}
	return d
}

func intOr(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func overrideDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}
