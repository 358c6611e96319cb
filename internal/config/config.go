package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all the configuration for the application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Scheduler  SchedulerConfig
	Delivery   DeliveryConfig
	Email      EmailConfig
	SMTP       SMTPConfig
	SES        SESConfig
	Resend     ResendConfig
	SMS        SMSConfig
	CronSecret string `mapstructure:"cronsecret"`
}

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig holds the Redis configuration.
// An empty URL disables the shared fire ledger and scan lock; in-process fallbacks are used instead.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// KafkaConfig holds the notification queue configuration.
type KafkaConfig struct {
	Brokers  string `mapstructure:"brokers"` // comma separated host:port list
	Topic    string `mapstructure:"topic"`
	DLQTopic string `mapstructure:"dlqtopic"`
	GroupID  string `mapstructure:"groupid"`
	ClientID string `mapstructure:"clientid"`

	// Connect retry policy (exponential backoff, capped).
	RetryInitial time.Duration `mapstructure:"retryinitial"`
	RetryMax     time.Duration `mapstructure:"retrymax"`
	Retries      int           `mapstructure:"retries"`

	// Consumer retry policy.
	MaxAttempts int           `mapstructure:"maxattempts"`
	BaseBackoff time.Duration `mapstructure:"basebackoff"`
}

// BrokerList splits Brokers into individual addresses.
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// SchedulerConfig controls the in-process scan trigger and the scan guards.
type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Spec     string `mapstructure:"spec"`
	Timezone string `mapstructure:"timezone"` // IANA TZ, e.g. "Africa/Nairobi"
	Dedupe   bool   `mapstructure:"dedupe"`
}

// Location resolves Timezone, falling back to the process local zone.
func (s SchedulerConfig) Location() *time.Location {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("⚠️ invalid SCHEDULER_TIMEZONE %q, using local time: %v", tz, err)
		return time.Local
	}
	return loc
}

// Delivery modes.
const (
	DeliveryKafka  = "kafka"
	DeliveryDirect = "direct"
)

// DeliveryConfig selects how the api process hands off rendered notifications:
// "kafka" publishes for the worker, "direct" sends through the providers in-process.
type DeliveryConfig struct {
	Mode string `mapstructure:"mode"`
}

// EmailConfig selects the email provider used by the delivery worker.
type EmailConfig struct {
	Provider string `mapstructure:"provider"` // smtp | ses | resend | none
}

type SMTPConfig struct {
	From     string `mapstructure:"from"`
	Password string `mapstructure:"password"`
	Username string `mapstructure:"username"`
	Port     int    `mapstructure:"port"`
	Host     string `mapstructure:"host"`
}

type SESConfig struct {
	Region string `mapstructure:"region"`
	From   string `mapstructure:"from"`
}

type ResendConfig struct {
	APIKey      string `mapstructure:"apikey"`
	SenderEmail string `mapstructure:"senderemail"`
	SenderName  string `mapstructure:"sendername"`
}

// SMSConfig selects and configures the SMS provider used by the delivery worker.
type SMSConfig struct {
	Provider    string `mapstructure:"provider"` // http | sns | none
	URL         string `mapstructure:"url"`
	APIKey      string `mapstructure:"apikey"`
	PartnerID   string `mapstructure:"partnerid"`
	Shortcode   string `mapstructure:"shortcode"`
	PassType    string `mapstructure:"passtype"`
	CountryCode string `mapstructure:"countrycode"`
	Region      string `mapstructure:"region"`
}

// Load creates a new Config object from environment variables.
func Load() *Config {
	// --- Set up Viper ---
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Load .env into process environment for BindEnv to work with file-based envs
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ godotenv could not load .env: %v", err)
	} else {
		log.Printf("ℹ️ .env loaded into process environment via godotenv")
	}

	bindEnv()

	viper.SetDefault("scheduler.dedupe", true)

	// --- Read Configuration ---
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("❌ Error reading config file: %s", err)
		} else {
			log.Printf("⚠️ .env file not found, relying on environment variables")
		}
	} else {
		log.Printf("ℹ️ Using config file: %s", viper.ConfigFileUsed())
	}

	// --- Unmarshal configuration into our struct ---
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("❌ Unable to decode config into struct: %v", err)
	}

	applyDefaults(&cfg)

	log.Printf("🔎 Config: Server.Port=%q Server.Env=%q Delivery=%q Kafka.Brokers=%q Kafka.Topic=%q Email=%q SMS=%q CronSecretEmpty=%t",
		cfg.Server.Port,
		cfg.Server.Env,
		cfg.Delivery.Mode,
		cfg.Kafka.Brokers,
		cfg.Kafka.Topic,
		cfg.Email.Provider,
		cfg.SMS.Provider,
		cfg.CronSecret == "",
	)

	log.Println("✅ Configuration loaded successfully")
	return &cfg
}

func bindEnv() {
	bindings := map[string]string{
		"server.port":            "SERVER_PORT",
		"server.env":             "SERVER_ENV",
		"database.url":           "DATABASE_URL",
		"redis.url":              "REDIS_URL",
		"cronsecret":             "CRON_SECRET",
		"kafka.brokers":          "KAFKA_BROKERS",
		"kafka.topic":            "KAFKA_NOTIFICATION_TOPIC",
		"kafka.dlqtopic":         "KAFKA_DLQ_TOPIC",
		"kafka.groupid":          "KAFKA_GROUP_ID",
		"kafka.clientid":         "KAFKA_CLIENT_ID",
		"kafka.retryinitial":     "KAFKA_RETRY_INITIAL",
		"kafka.retrymax":         "KAFKA_RETRY_MAX",
		"kafka.retries":          "KAFKA_RETRIES",
		"kafka.maxattempts":      "KAFKA_MAX_ATTEMPTS",
		"kafka.basebackoff":      "KAFKA_BASE_BACKOFF",
		"scheduler.enabled":      "SCHEDULER_ENABLED",
		"scheduler.spec":         "SCHEDULER_SPEC",
		"scheduler.timezone":     "SCHEDULER_TIMEZONE",
		"scheduler.dedupe":       "SCHEDULER_DEDUPE",
		"delivery.mode":          "DELIVERY_MODE",
		"email.provider":         "EMAIL_PROVIDER",
		"smtp.from":              "SMTP_FROM",
		"smtp.password":          "SMTP_PASSWORD",
		"smtp.username":          "SMTP_USERNAME",
		"smtp.port":              "SMTP_PORT",
		"smtp.host":              "SMTP_HOST",
		"ses.region":             "AWS_REGION",
		"ses.from":               "SES_FROM",
		"resend.apikey":          "RESEND_API_KEY",
		"resend.senderemail":     "RESEND_FROM_EMAIL",
		"resend.sendername":      "RESEND_FROM_NAME",
		"sms.provider":           "SMS_PROVIDER",
		"sms.url":                "SMS_URL",
		"sms.apikey":             "SMS_API_KEY",
		"sms.partnerid":          "SMS_PARTNER_ID",
		"sms.shortcode":          "SMS_SHORTCODE",
		"sms.passtype":           "SMS_PASS_TYPE",
		"sms.countrycode":        "SMS_COUNTRY_CODE",
		"sms.region":             "AWS_REGION",
	}
	for key, env := range bindings {
		_ = viper.BindEnv(key, env)
	}
}

// applyDefaults fills every unset value that has a sensible default.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Kafka.Brokers == "" {
		cfg.Kafka.Brokers = "localhost:9092"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "notifications"
	}
	if cfg.Kafka.DLQTopic == "" {
		cfg.Kafka.DLQTopic = cfg.Kafka.Topic + ".dlq"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "notification-workers"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "notification-service"
	}
	if cfg.Kafka.RetryInitial <= 0 {
		cfg.Kafka.RetryInitial = 100 * time.Millisecond
	}
	if cfg.Kafka.RetryMax <= 0 {
		cfg.Kafka.RetryMax = 30 * time.Second
	}
	if cfg.Kafka.Retries <= 0 {
		cfg.Kafka.Retries = 8
	}
	if cfg.Kafka.MaxAttempts <= 0 {
		cfg.Kafka.MaxAttempts = 5
	}
	if cfg.Kafka.BaseBackoff <= 0 {
		cfg.Kafka.BaseBackoff = 2 * time.Second
	}
	if cfg.Scheduler.Spec == "" {
		cfg.Scheduler.Spec = "* * * * *"
	}
	cfg.Delivery.Mode = strings.ToLower(strings.TrimSpace(cfg.Delivery.Mode))
	if cfg.Delivery.Mode == "" {
		cfg.Delivery.Mode = DeliveryKafka
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "smtp"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.SMS.Provider == "" {
		cfg.SMS.Provider = "http"
	}
	if cfg.SMS.PassType == "" {
		cfg.SMS.PassType = "plain"
	}
	if cfg.SMS.CountryCode == "" {
		cfg.SMS.CountryCode = "254"
	}
}
