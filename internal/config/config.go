package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Env                    string `mapstructure:"env"`
	Port                   int    `mapstructure:"port"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

type PresenceConfig struct {
	DebounceMS int `mapstructure:"debounce_ms"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	PongWaitSeconds      int   `mapstructure:"pong_wait_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	SendBuffer           int   `mapstructure:"send_buffer"`
	InboundRPS           int   `mapstructure:"inbound_rps"`
	TrustUserParam       bool  `mapstructure:"trust_user_param"`
}

type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
	// SeedUsers populates the memory driver's user directory at startup.
	SeedUsers []SeedUser `mapstructure:"seed_users"`
}

type SeedUser struct {
	ID         string `mapstructure:"id"`
	FullName   string `mapstructure:"full_name"`
	Email      string `mapstructure:"email"`
	ProfilePic string `mapstructure:"profile_pic"`
}

type MongoConfig struct {
	URI                string `mapstructure:"uri"`
	Database           string `mapstructure:"database"`
	UsersCollection    string `mapstructure:"users_collection"`
	MessagesCollection string `mapstructure:"messages_collection"`
}

type BreakerConfig struct {
	MaxFailures     uint32 `mapstructure:"max_failures"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

type EventsConfig struct {
	Driver string `mapstructure:"driver"`
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	TopicMessageSent string   `mapstructure:"topic_message_sent"`
	TopicPresence    string   `mapstructure:"topic_presence"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Alg           string `mapstructure:"alg"`
	HSSecret      string `mapstructure:"hs_secret"`
	PublicKeyPath string `mapstructure:"public_key_path"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Presence  PresenceConfig  `mapstructure:"presence"`
	WS        WSConfig        `mapstructure:"ws"`
	Store     StoreConfig     `mapstructure:"store"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Events    EventsConfig    `mapstructure:"events"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	NATS      NATSConfig      `mapstructure:"nats"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`

	// derived
	Debounce        time.Duration
	PingInterval    time.Duration
	WriteDeadline   time.Duration
	PongWait        time.Duration
	StoreTimeout    time.Duration
	ShutdownTimeout time.Duration
	BreakerInterval time.Duration
	BreakerTimeout  time.Duration
}

func (c *Config) Development() bool { return c.App.Env == "development" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8085)
	v.SetDefault("app.shutdown_timeout_seconds", 10)

	v.SetDefault("presence.debounce_ms", 1500)

	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.pong_wait_seconds", 60)
	v.SetDefault("ws.max_message_size_bytes", 65536)
	v.SetDefault("ws.send_buffer", 256)
	v.SetDefault("ws.inbound_rps", 20)
	v.SetDefault("ws.trust_user_param", false)

	v.SetDefault("store.driver", "mongo")
	v.SetDefault("store.timeout_ms", 5000)

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "chatdb")
	v.SetDefault("mongo.users_collection", "users")
	v.SetDefault("mongo.messages_collection", "messages")

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.interval_seconds", 60)
	v.SetDefault("breaker.timeout_seconds", 15)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "presence-svc")

	v.SetDefault("ratelimit.requests_per_minute", 120)

	v.SetDefault("events.driver", "none")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_message_sent", "message.sent")
	v.SetDefault("kafka.topic_presence", "presence.changed")
	v.SetDefault("nats.url", "")

	v.SetDefault("jwt.alg", "HS256")
	v.SetDefault("jwt.hs_secret", "")
	v.SetDefault("jwt.public_key_path", "")

	v.SetDefault("metrics.enabled", true)
}

// Load reads .env (if any), then the YAML file at path (if any), then the
// environment. MONGO_URI overrides mongo.uri and so on.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	// comma separated KAFKA_BROKERS
	if len(c.Kafka.Brokers) == 1 && strings.Contains(c.Kafka.Brokers[0], ",") {
		c.Kafka.Brokers = splitList(c.Kafka.Brokers[0])
	}
	c.derive()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) derive() {
	c.Debounce = time.Duration(c.Presence.DebounceMS) * time.Millisecond
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.PongWait = time.Duration(c.WS.PongWaitSeconds) * time.Second
	c.StoreTimeout = time.Duration(c.Store.TimeoutMS) * time.Millisecond
	c.ShutdownTimeout = time.Duration(c.App.ShutdownTimeoutSeconds) * time.Second
	c.BreakerInterval = time.Duration(c.Breaker.IntervalSeconds) * time.Second
	c.BreakerTimeout = time.Duration(c.Breaker.TimeoutSeconds) * time.Second
}

func (c *Config) Validate() error {
	var errs []error
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d out of range", c.App.Port))
	}
	if c.Presence.DebounceMS <= 0 {
		errs = append(errs, errors.New("presence.debounce_ms must be positive"))
	}
	switch c.Store.Driver {
	case "memory":
		seen := make(map[string]bool, len(c.Store.SeedUsers))
		for i, u := range c.Store.SeedUsers {
			switch {
			case u.ID == "":
				errs = append(errs, fmt.Errorf("store.seed_users[%d].id is required", i))
			case seen[u.ID]:
				errs = append(errs, fmt.Errorf("store.seed_users[%d].id %q is duplicated", i, u.ID))
			}
			seen[u.ID] = true
		}
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo.uri is required when store.driver=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be mongo or memory", c.Store.Driver))
	}
	switch c.Events.Driver {
	case "", "none":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required when events.driver=kafka"))
		}
	case "nats":
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("nats.url is required when events.driver=nats"))
		}
	default:
		errs = append(errs, fmt.Errorf("events.driver %q must be none, kafka or nats", c.Events.Driver))
	}
	switch strings.ToUpper(c.JWT.Alg) {
	case "", "HS256":
		if c.JWT.HSSecret == "" {
			errs = append(errs, errors.New("jwt.hs_secret is required for HS256"))
		}
	case "RS256":
		if c.JWT.PublicKeyPath == "" {
			errs = append(errs, errors.New("jwt.public_key_path is required for RS256"))
		}
	default:
		errs = append(errs, fmt.Errorf("jwt.alg %q must be HS256 or RS256", c.JWT.Alg))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
