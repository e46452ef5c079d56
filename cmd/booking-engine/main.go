package main

import (
	"context"
	"time"

	segkafka "github.com/segmentio/kafka-go"

	absencehandler "medisched/internal/absences/handler"
	absencerepo "medisched/internal/absences/repository"
	absenceservice "medisched/internal/absences/service"
	absencevalidator "medisched/internal/absences/validator"
	"medisched/internal/audit"
	availabilityhandler "medisched/internal/availability/handler"
	availabilityservice "medisched/internal/availability/service"
	bookinghandler "medisched/internal/bookings/handler"
	bookingservice "medisched/internal/bookings/service"
	bookingvalidator "medisched/internal/bookings/validator"
	directoryhandler "medisched/internal/directory/handler"
	directoryrepo "medisched/internal/directory/repository"
	directoryservice "medisched/internal/directory/service"
	directoryvalidator "medisched/internal/directory/validator"
	locationhandler "medisched/internal/locations/handler"
	"medisched/internal/locations/recurrence"
	locationrepo "medisched/internal/locations/repository"
	locationservice "medisched/internal/locations/service"
	locationvalidator "medisched/internal/locations/validator"
	"medisched/internal/notifications"
	reservationrepo "medisched/internal/reservations/repository"
	reservationservice "medisched/internal/reservations/service"
	schedulehandler "medisched/internal/schedules/handler"
	schedulerepo "medisched/internal/schedules/repository"
	scheduleservice "medisched/internal/schedules/service"
	schedulevalidator "medisched/internal/schedules/validator"
	"medisched/pkg/app"
	"medisched/pkg/clock"
	"medisched/pkg/config"
	"medisched/pkg/contracts"
	"medisched/pkg/kafka"
	kafka_config "medisched/pkg/kafka/config"
	kafka_middleware "medisched/pkg/kafka/middleware"
	"medisched/pkg/tracing"
)

const ServiceName = "booking-engine"

const notificationTimeout = 10 * time.Second

type repositories struct {
	directory directoryrepo.DirectoryRepository
	schedules schedulerepo.ScheduleRepository
	locations locationrepo.LocationRepository
	absences  absencerepo.AbsenceRepository
	bookings  reservationrepo.BookingRepository
	locks     reservationrepo.LockRepository
}

func mongoRepositories(cfg *config.Config) repositories {
	return repositories{
		directory: directoryrepo.NewMongoDirectoryRepository(cfg),
		schedules: schedulerepo.NewMongoScheduleRepository(cfg),
		locations: locationrepo.NewMongoLocationRepository(cfg),
		absences:  absencerepo.NewMongoAbsenceRepository(cfg),
		bookings:  reservationrepo.NewMongoBookingRepository(cfg),
		locks:     reservationrepo.NewMongoLockRepository(cfg),
	}
}

type engine struct {
	handlers contracts.Handlers
	checks   []app.Check
	stats    []app.Stat
	closers  []app.ShutdownFunc
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting booking engine")

	shutdownTracing, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.OtelEnabled,
		ServiceName:  ServiceName,
		OTLPEndpoint: cfg.OtelEndpoint,
		SampleRatio:  cfg.OtelSamplingRatio,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to set up tracing", "error", err)
	}

	cfg.SetMongo()
	e := initEngine(cfg, mongoRepositories(cfg), clock.System{})
	e.checks = append(e.checks, app.Check{
		Name: "mongo",
		Run: func(ctx context.Context) error {
			return cfg.Client.Mongo.Ping(ctx, nil)
		},
	})

	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(func(context.Context) error {
		cfg.GracefulShutdown()
		return nil
	})
	serverApp.OnShutdown(shutdownTracing)
	for _, closer := range e.closers {
		serverApp.OnShutdown(closer)
	}
	serverApp.SetApp(app.NewHealthHandler(cfg.Log, e.checks, e.stats), e.handlers)
	serverApp.Run()
}

func initEngine(cfg *config.Config, repos repositories, clk clock.Clock) *engine {
	e := &engine{}

	expander, err := recurrence.NewExpander(cfg.RRuleCacheSize)
	if err != nil {
		cfg.Log.Fatal("Failed to create recurrence expander", "error", err)
	}

	directory := directoryservice.NewDirectoryService(
		repos.directory,
		directoryvalidator.NewDirectoryValidator(),
		clk,
		cfg,
	)
	schedules := scheduleservice.NewScheduleService(
		repos.schedules,
		schedulevalidator.NewScheduleValidator(cfg.Log),
		clk,
		cfg,
	)
	locations := locationservice.NewLocationService(
		repos.locations,
		locationvalidator.NewLocationValidator(cfg.Log),
		expander,
		clk,
		cfg,
	)
	absences := absenceservice.NewAbsenceService(
		repos.absences,
		absencevalidator.NewAbsenceValidator(cfg.Log),
		clk,
		cfg,
	)
	reservations := reservationservice.NewReservationService(
		repos.bookings,
		repos.locks,
		clk,
		cfg,
	)
	availability := availabilityservice.NewAvailabilityService(directory, schedules, locations, absences, reservations, clk, cfg)

	sink, dispatcher := e.initEvents(cfg)
	async := notifications.NewAsync(dispatcher, notificationTimeout, cfg.Log)
	// Drain notifications before producers close.
	e.closers = append(e.closers, func(context.Context) error {
		async.Close()
		return nil
	})

	bookings := bookingservice.NewBookingService(
		availability,
		reservations,
		directory,
		bookingvalidator.NewBookingValidator(cfg.Log),
		sink,
		async,
		clk,
		cfg,
	)

	e.handlers = contracts.Handlers{
		directoryhandler.NewDirectoryHandler(directory, cfg.Log),
		schedulehandler.NewScheduleHandler(schedules, cfg.Log),
		locationhandler.NewLocationHandler(locations, cfg.Log),
		absencehandler.NewAbsenceHandler(absences, cfg.Log),
		availabilityhandler.NewAvailabilityHandler(availability, cfg.Log),
		bookinghandler.NewBookingHandler(bookings, cfg.Log),
	}

	cfg.Log.Info("Booking engine initialized", "database", cfg.MongoDatabaseName)
	return e
}

// initEvents publishes audit and notification events to Kafka when enabled,
// and to the structured log otherwise.
func (e *engine) initEvents(cfg *config.Config) (audit.Sink, notifications.Dispatcher) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, audit and notifications go to the log")
		return audit.NewLogSink(cfg.Log), notifications.NewLogDispatcher(cfg.Log)
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	auditProducer := e.newProducer(cfg, kafkaCfg, cfg.KafkaAuditTopic)
	notificationProducer := e.newProducer(cfg, kafkaCfg, cfg.KafkaNotificationTopic)

	e.checks = append(e.checks, app.Check{
		Name: "kafka",
		Run: func(ctx context.Context) error {
			conn, err := segkafka.DialContext(ctx, "tcp", kafkaCfg.Brokers[0])
			if err != nil {
				return err
			}
			return conn.Close()
		},
	})

	return audit.NewKafkaSink(auditProducer, ServiceName), notifications.NewKafkaDispatcher(notificationProducer, ServiceName)
}

func (e *engine) newProducer(cfg *config.Config, kafkaCfg *kafka_config.Config, topic string) *kafka.Producer {
	producer, err := kafka.NewProducer(kafkaCfg, topic, cfg.KafkaDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "topic", topic, "error", err)
	}

	if kafkaCfg.EnableMiddleware {
		metrics := &kafka_middleware.Metrics{}
		producer.Use(kafka_middleware.Logging(cfg.Log))
		producer.Use(metrics.Middleware())
		e.stats = append(e.stats, app.Stat{
			Name:     "kafka." + topic,
			Snapshot: func() any { return metrics.Snapshot() },
		})
	}

	e.closers = append(e.closers, func(context.Context) error {
		return producer.Close()
	})
	return producer
}
