package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "medisched"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultSlotGranularity         = 15 * time.Minute
	DefaultCancellationWindow      = 2 * time.Hour
	DefaultNextSlotHorizonDays     = 90
	DefaultMaxQuerySpan            = 31 * 24 * time.Hour
	DefaultMaxSlotsPerRequest      = 500
	DefaultTimeZone                = "UTC"
	DefaultIncludePendingAbsences  = false
	DefaultOpenWhenNoLocationHours = false
	DefaultReservationLockTTL      = 10 * time.Second
	DefaultReservationLockWait     = 2 * time.Second
	DefaultRRuleCacheSize          = 4096

	DefaultKafkaEnabled           = false
	DefaultKafkaAuditTopic        = "booking-audit"
	DefaultKafkaNotificationTopic = "booking-notifications"
	DefaultKafkaDLQTopic          = "booking-dlq"

	DefaultOtelEnabled       = false
	DefaultOtelEndpoint      = "localhost:4317"
	DefaultOtelSamplingRatio = 1.0

	DefaultPaginationLimit = 100
)
