package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSlotGranularity         = "SLOT_GRANULARITY"
	EnvCancellationWindow      = "CANCELLATION_WINDOW"
	EnvNextSlotHorizonDays     = "NEXT_SLOT_HORIZON_DAYS"
	EnvMaxQuerySpan            = "MAX_QUERY_SPAN"
	EnvMaxSlotsPerRequest      = "MAX_SLOTS_PER_REQUEST"
	EnvDefaultTimeZone         = "DEFAULT_TIME_ZONE"
	EnvIncludePendingAbsences  = "INCLUDE_PENDING_ABSENCES"
	EnvOpenWhenNoLocationHours = "OPEN_WHEN_NO_LOCATION_HOURS"
	EnvReservationLockTTL      = "RESERVATION_LOCK_TTL"
	EnvReservationLockWait     = "RESERVATION_LOCK_WAIT"
	EnvRRuleCacheSize          = "RRULE_CACHE_SIZE"

	EnvKafkaEnabled           = "KAFKA_ENABLED"
	EnvKafkaAuditTopic        = "KAFKA_AUDIT_TOPIC"
	EnvKafkaNotificationTopic = "KAFKA_NOTIFICATION_TOPIC"
	EnvKafkaDLQTopic          = "KAFKA_DLQ_TOPIC"

	EnvOtelEnabled       = "OTEL_ENABLED"
	EnvOtelEndpoint      = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOtelSamplingRatio = "OTEL_SAMPLING_RATIO"
)
