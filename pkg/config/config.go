package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"smartdorm/pkg/client"
	"smartdorm/pkg/logger"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Rates RateCard

	TimeZone string
	Location *time.Location

	AdminRecipient string
	AdminPhone     string
	PublicBaseURL  string

	OverdueSchedule string
	OverdueWorkers  int

	NotifyTransport string
	NotifyQueueSize int
	NotifyWorkers   int
	NotifyTopic     string
	NotifyDLQTopic  string
	NotifyGroupID   string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioChannel    string

	OSSEndpoint      string
	OSSAccessKey     string
	OSSSecretKey     string
	OSSBucket        string
	OSSPublicBaseURL string

	GoogleClientID string

	// Clock overrides time.Now for the business logic; nil means wall clock.
	Clock func() time.Time

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	envErr := godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Rates: RateCard{
			WaterPerUnit:    getEnvFloat(EnvWaterRate, DefaultWaterRate),
			ElectricPerUnit: getEnvFloat(EnvElectricRate, DefaultElectricRate),
			ServiceFee:      getEnvFloat(EnvServiceFee, DefaultServiceFee),
			FinePerDay:      getEnvFloat(EnvFinePerDay, DefaultFinePerDay),
			DueDay:          getEnvNum(EnvBillDueDay, DefaultBillDueDay),
		},

		TimeZone: getEnvStr(EnvTimeZone, DefaultTimeZone),

		AdminRecipient: getEnvStr(EnvAdminRecipient, DefaultAdminRecipient),
		AdminPhone:     getEnvStr(EnvAdminPhone, ""),
		PublicBaseURL:  getEnvStr(EnvPublicBaseURL, ""),

		OverdueSchedule: getEnvStr(EnvOverdueSchedule, DefaultOverdueSchedule),
		OverdueWorkers:  getEnvNum(EnvOverdueWorkers, DefaultOverdueWorkers),

		NotifyTransport: getEnvStr(EnvNotifyTransport, DefaultNotifyTransport),
		NotifyQueueSize: getEnvNum(EnvNotifyQueueSize, DefaultNotifyQueueSize),
		NotifyWorkers:   getEnvNum(EnvNotifyWorkers, DefaultNotifyWorkers),
		NotifyTopic:     getEnvStr(EnvNotifyTopic, DefaultNotifyTopic),
		NotifyDLQTopic:  getEnvStr(EnvNotifyDLQTopic, DefaultNotifyDLQTopic),
		NotifyGroupID:   getEnvStr(EnvNotifyGroupID, DefaultNotifyGroupID),

		TwilioAccountSID: getEnvStr(EnvTwilioAccountSID, ""),
		TwilioAuthToken:  getEnvStr(EnvTwilioAuthToken, ""),
		TwilioFromNumber: getEnvStr(EnvTwilioFromNumber, ""),
		TwilioChannel:    getEnvStr(EnvTwilioChannel, DefaultTwilioChannel),

		OSSEndpoint:      getEnvStr(EnvOSSEndpoint, ""),
		OSSAccessKey:     getEnvStr(EnvOSSAccessKey, ""),
		OSSSecretKey:     getEnvStr(EnvOSSSecretKey, ""),
		OSSBucket:        getEnvStr(EnvOSSBucket, ""),
		OSSPublicBaseURL: getEnvStr(EnvOSSPublicBaseURL, ""),

		GoogleClientID: getEnvStr(EnvGoogleClientID, ""),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		cfg.Log.Warn("Failed to read .env file", "error", envErr)
	}

	if loc, err := time.LoadLocation(cfg.TimeZone); err == nil {
		cfg.Location = loc
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	positive := map[string]time.Duration{
		"MongoConnTimeout": cfg.MongoConnTimeout,
		"RateLimitWindow":  cfg.RateLimitWindow,
		"RequestTimeout":   cfg.RequestTimeout,
		"IdempotencyTTL":   cfg.IdempotencyTTL,
		"ReadTimeout":      cfg.ReadTimeout,
		"WriteTimeout":     cfg.WriteTimeout,
		"IdleTimeout":      cfg.IdleTimeout,
		"ShutdownTimeout":  cfg.ShutdownTimeout,
	}
	for _, name := range []string{"MongoConnTimeout", "RateLimitWindow", "RequestTimeout", "IdempotencyTTL", "ReadTimeout", "WriteTimeout", "IdleTimeout", "ShutdownTimeout"} {
		if positive[name] <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", name, positive[name]))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	errors = append(errors, cfg.Rates.Validate()...)

	if cfg.Location == nil {
		errors = append(errors, fmt.Sprintf("TimeZone must be a valid IANA zone, got: %s", cfg.TimeZone))
	}
	if cfg.AdminRecipient == "" {
		errors = append(errors, "AdminRecipient cannot be empty")
	}

	if _, err := cron.ParseStandard(cfg.OverdueSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("OverdueSchedule must be a standard cron expression, got: %s", cfg.OverdueSchedule))
	}
	if cfg.OverdueWorkers <= 0 {
		errors = append(errors, fmt.Sprintf("OverdueWorkers must be positive, got: %d", cfg.OverdueWorkers))
	}

	if cfg.NotifyTransport != NotifyTransportLog && cfg.NotifyTransport != NotifyTransportKafka {
		errors = append(errors, fmt.Sprintf("NotifyTransport must be one of [log, kafka], got: %s", cfg.NotifyTransport))
	}
	if cfg.NotifyQueueSize <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyQueueSize must be positive, got: %d", cfg.NotifyQueueSize))
	}
	if cfg.NotifyWorkers <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyWorkers must be positive, got: %d", cfg.NotifyWorkers))
	}
	if cfg.NotifyTransport == NotifyTransportKafka && cfg.NotifyTopic == "" {
		errors = append(errors, "NotifyTopic cannot be empty when NotifyTransport is kafka")
	}
	if cfg.TwilioChannel != "sms" && cfg.TwilioChannel != "whatsapp" {
		errors = append(errors, fmt.Sprintf("TwilioChannel must be one of [sms, whatsapp], got: %s", cfg.TwilioChannel))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"water_per_unit", cfg.Rates.WaterPerUnit,
		"electric_per_unit", cfg.Rates.ElectricPerUnit,
		"service_fee", cfg.Rates.ServiceFee,
		"fine_per_day", cfg.Rates.FinePerDay,
		"bill_due_day", cfg.Rates.DueDay,
		"time_zone", cfg.TimeZone,
		"admin_recipient", cfg.AdminRecipient,
		"overdue_schedule", cfg.OverdueSchedule,
		"overdue_workers", cfg.OverdueWorkers,
		"notify_transport", cfg.NotifyTransport,
		"notify_topic", cfg.NotifyTopic,
		"twilio_configured", cfg.TwilioConfigured(),
		"oss_configured", cfg.OSSConfigured(),
		"google_client_id_set", cfg.GoogleClientID != "",
	)
}

func (cfg *Config) OSSConfigured() bool {
	return cfg.OSSEndpoint != "" && cfg.OSSAccessKey != "" && cfg.OSSSecretKey != "" && cfg.OSSBucket != ""
}

func (cfg *Config) TwilioConfigured() bool {
	return cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != ""
}

// Now is the clock used by every service.
func (cfg *Config) Now() time.Time {
	if cfg.Clock != nil {
		return cfg.Clock().UTC()
	}
	return time.Now().UTC()
}

// Loc is the dormitory's local time zone; calendar-day rules use it.
func (cfg *Config) Loc() *time.Location {
	if cfg.Location == nil {
		return time.UTC
	}
	return cfg.Location
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
