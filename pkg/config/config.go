package config

import (
	"fmt"
	"medisched/pkg/client"
	"medisched/pkg/logger"
	"os"
	"regexp"
	"strconv"
	"time"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SlotGranularity         time.Duration
	CancellationWindow      time.Duration
	NextSlotHorizonDays     int
	MaxQuerySpan            time.Duration
	MaxSlotsPerRequest      int
	DefaultTimeZone         string
	IncludePendingAbsences  bool
	OpenWhenNoLocationHours bool
	ReservationLockTTL      time.Duration
	ReservationLockWait     time.Duration
	RRuleCacheSize          int

	KafkaEnabled           bool
	KafkaAuditTopic        string
	KafkaNotificationTopic string
	KafkaDLQTopic          string

	OtelEnabled       bool
	OtelEndpoint      string
	OtelSamplingRatio float64

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := FromEnv(serviceName)

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv reads the configuration without validating it.
func FromEnv(serviceName string) *Config {
	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		SlotGranularity:         getEnvDuration(EnvSlotGranularity, DefaultSlotGranularity),
		CancellationWindow:      getEnvDuration(EnvCancellationWindow, DefaultCancellationWindow),
		NextSlotHorizonDays:     getEnvNum(EnvNextSlotHorizonDays, DefaultNextSlotHorizonDays),
		MaxQuerySpan:            getEnvDuration(EnvMaxQuerySpan, DefaultMaxQuerySpan),
		MaxSlotsPerRequest:      getEnvNum(EnvMaxSlotsPerRequest, DefaultMaxSlotsPerRequest),
		DefaultTimeZone:         getEnvStr(EnvDefaultTimeZone, DefaultTimeZone),
		IncludePendingAbsences:  getEnvBool(EnvIncludePendingAbsences, DefaultIncludePendingAbsences),
		OpenWhenNoLocationHours: getEnvBool(EnvOpenWhenNoLocationHours, DefaultOpenWhenNoLocationHours),
		ReservationLockTTL:      getEnvDuration(EnvReservationLockTTL, DefaultReservationLockTTL),
		ReservationLockWait:     getEnvDuration(EnvReservationLockWait, DefaultReservationLockWait),
		RRuleCacheSize:          getEnvNum(EnvRRuleCacheSize, DefaultRRuleCacheSize),

		KafkaEnabled:           getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaAuditTopic:        getEnvStr(EnvKafkaAuditTopic, DefaultKafkaAuditTopic),
		KafkaNotificationTopic: getEnvStr(EnvKafkaNotificationTopic, DefaultKafkaNotificationTopic),
		KafkaDLQTopic:          getEnvStr(EnvKafkaDLQTopic, DefaultKafkaDLQTopic),

		OtelEnabled:       getEnvBool(EnvOtelEnabled, DefaultOtelEnabled),
		OtelEndpoint:      getEnvStr(EnvOtelEndpoint, DefaultOtelEndpoint),
		OtelSamplingRatio: getEnvFloat(EnvOtelSamplingRatio, DefaultOtelSamplingRatio),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// Location returns the fallback zone used when a staff member's location
// carries no time zone of its own.
func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.DefaultTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.SlotGranularity < time.Minute {
		errors = append(errors, fmt.Sprintf("SlotGranularity must be at least 1m, got: %s", cfg.SlotGranularity))
	} else if (24*time.Hour)%cfg.SlotGranularity != 0 {
		errors = append(errors, fmt.Sprintf("SlotGranularity must divide a day evenly, got: %s", cfg.SlotGranularity))
	}
	if cfg.CancellationWindow < 0 {
		errors = append(errors, fmt.Sprintf("CancellationWindow cannot be negative, got: %s", cfg.CancellationWindow))
	}
	if cfg.NextSlotHorizonDays <= 0 {
		errors = append(errors, fmt.Sprintf("NextSlotHorizonDays must be positive, got: %d", cfg.NextSlotHorizonDays))
	}
	if cfg.MaxQuerySpan < 24*time.Hour {
		errors = append(errors, fmt.Sprintf("MaxQuerySpan must be at least 24h, got: %s", cfg.MaxQuerySpan))
	}
	if cfg.MaxSlotsPerRequest <= 0 {
		errors = append(errors, fmt.Sprintf("MaxSlotsPerRequest must be positive, got: %d", cfg.MaxSlotsPerRequest))
	}
	if _, err := time.LoadLocation(cfg.DefaultTimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("DefaultTimeZone must be an IANA zone name, got: %s", cfg.DefaultTimeZone))
	}
	if cfg.ReservationLockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("ReservationLockTTL must be positive, got: %s", cfg.ReservationLockTTL))
	}
	if cfg.ReservationLockWait <= 0 {
		errors = append(errors, fmt.Sprintf("ReservationLockWait must be positive, got: %s", cfg.ReservationLockWait))
	}
	if cfg.ReservationLockWait >= cfg.ReservationLockTTL {
		errors = append(errors, fmt.Sprintf("ReservationLockWait (%s) must be shorter than ReservationLockTTL (%s)", cfg.ReservationLockWait, cfg.ReservationLockTTL))
	}
	if cfg.RRuleCacheSize <= 0 {
		errors = append(errors, fmt.Sprintf("RRuleCacheSize must be positive, got: %d", cfg.RRuleCacheSize))
	}

	if cfg.KafkaEnabled {
		if cfg.KafkaAuditTopic == "" {
			errors = append(errors, "KafkaAuditTopic cannot be empty when Kafka is enabled")
		}
		if cfg.KafkaNotificationTopic == "" {
			errors = append(errors, "KafkaNotificationTopic cannot be empty when Kafka is enabled")
		}
	}

	if cfg.OtelEnabled && cfg.OtelEndpoint == "" {
		errors = append(errors, "OtelEndpoint cannot be empty when tracing is enabled")
	}
	if cfg.OtelSamplingRatio < 0 || cfg.OtelSamplingRatio > 1 {
		errors = append(errors, fmt.Sprintf("OtelSamplingRatio must be between 0 and 1, got: %g", cfg.OtelSamplingRatio))
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
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"slot_granularity", cfg.SlotGranularity,
		"cancellation_window", cfg.CancellationWindow,
		"next_slot_horizon_days", cfg.NextSlotHorizonDays,
		"max_query_span", cfg.MaxQuerySpan,
		"max_slots_per_request", cfg.MaxSlotsPerRequest,
		"default_time_zone", cfg.DefaultTimeZone,
		"include_pending_absences", cfg.IncludePendingAbsences,
		"open_when_no_location_hours", cfg.OpenWhenNoLocationHours,
		"reservation_lock_ttl", cfg.ReservationLockTTL,
		"reservation_lock_wait", cfg.ReservationLockWait,
		"rrule_cache_size", cfg.RRuleCacheSize,
		"kafka_enabled", cfg.KafkaEnabled,
		"otel_enabled", cfg.OtelEnabled,
	)
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

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
	cfg.Client.GracefulShutdown()
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
	if offset < 0 {
		return 0
	}
	return offset
}
