package main

import (
	"context"
	"errors"
	"os"

	"courtsync/internal/bookings/driver"
	bookinghandler "courtsync/internal/bookings/handler"
	bookingrepo "courtsync/internal/bookings/repository"
	bookingservice "courtsync/internal/bookings/service"
	bookingvalidator "courtsync/internal/bookings/validator"
	"courtsync/internal/events"
	"courtsync/internal/extract"
	ledgerhandler "courtsync/internal/ledger/handler"
	ledgerrepo "courtsync/internal/ledger/repository"
	ledgerservice "courtsync/internal/ledger/service"
	synchandler "courtsync/internal/sync/handler"
	syncrepo "courtsync/internal/sync/repository"
	syncservice "courtsync/internal/sync/service"
	"courtsync/pkg/app"
	"courtsync/pkg/browser"
	"courtsync/pkg/config"
	kafka_config "courtsync/pkg/kafka/config"
	"courtsync/pkg/sealer"
	"courtsync/pkg/timeslot"
)

const ServiceName = "syncd"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting CourtSync engine")

	cal, err := timeslot.NewCalendar(cfg.FacilityTimeZone)
	if err != nil {
		cfg.Log.Fatal("Invalid facility time zone", "time_zone", cfg.FacilityTimeZone, "error", err)
	}

	session := browser.NewSession(browser.Config{
		Endpoint:       cfg.BrowserURL,
		ConnTimeout:    cfg.BrowserConnTimeout,
		NavMinInterval: cfg.NavMinInterval,
	}, cfg.Log)

	keeper := syncservice.NewLockKeeper(cfg.Log)
	ledgerService := ledgerservice.NewLedgerService(ledgerrepo.NewMongoLedgerRepository(cfg), keeper, cfg)
	cycleRepo := syncrepo.NewMongoCycleRepository(cfg)

	// Kafka is optional; without brokers the engine runs standalone and the
	// event sinks stay nil.
	var (
		kafkaCfg  *kafka_config.Config
		publisher *events.Publisher
		sink      syncservice.EventSink
		attempts  bookingservice.AttemptSink
	)
	if os.Getenv(kafka_config.EnvKafkaBrokers) != "" {
		kafkaCfg = kafka_config.Load()
		publisher, err = events.NewPublisher(kafkaCfg, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Could not set up Kafka producers", "error", err)
		}
		sink = publisher
		attempts = publisher
		cfg.Log.Info("Kafka event publishing enabled", "brokers", kafkaCfg.Brokers)
	}

	extractors := []extract.Extractor{
		extract.NewPlayoExtractor(cfg, cal),
		extract.NewHudleExtractor(cfg),
	}
	runner := syncservice.NewCycleRunner(cfg, cal, session, extractors, ledgerService, cycleRepo, sink)
	scheduler := syncservice.NewScheduler(cfg, cal, runner, keeper, cycleRepo, sink)

	engineCtx, stopEngine := context.WithCancel(context.Background())
	scheduler.Start(engineCtx)
	cfg.Log.Info("Sync scheduler started", "interval", cfg.SyncInterval, "window_days", cfg.SyncWindowDays)

	var commands *events.CommandConsumer
	if kafkaCfg != nil {
		commands, err = events.NewCommandConsumer(kafkaCfg, scheduler, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Could not set up Kafka command consumer", "error", err)
		}
		go func() {
			if err := commands.Start(engineCtx); err != nil && !errors.Is(err, context.Canceled) {
				cfg.Log.Error("Command consumer stopped", "error", err)
			}
		}()
		cfg.Log.Info("Kafka command consumer started", "topic", events.TopicCommands)
	}

	var slotSealer *sealer.Sealer
	if cfg.SlotTokenKey != "" {
		slotSealer, err = sealer.New(cfg.SlotTokenKey)
		if err != nil {
			cfg.Log.Fatal("Invalid slot token key", "error", err)
		}
	}

	bookingService := initBookingService(cfg, cal, session, ledgerService, keeper, scheduler, attempts, slotSealer)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		synchandler.NewHealthHandler(cfg.Client.Mongo, session, cfg.Log),
		ledgerhandler.NewSlotHandler(ledgerService, cal, slotSealer, cfg.Log),
		synchandler.NewSyncHandler(scheduler, cfg.Log),
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
	)
	serverApp.OnShutdown(func(ctx context.Context) {
		stopEngine()
		select {
		case <-scheduler.Stopped():
		case <-ctx.Done():
			cfg.Log.Warn("Scheduler did not stop before the shutdown deadline")
		}
		if commands != nil {
			if err := commands.Close(); err != nil {
				cfg.Log.Error("Closing command consumer failed", "error", err)
			}
		}
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				cfg.Log.Error("Closing event producers failed", "error", err)
			}
		}
		if err := session.Close(); err != nil {
			cfg.Log.Error("Closing browser session failed", "error", err)
		}
	})
	serverApp.Run()
}

func initBookingService(
	cfg *config.Config,
	cal *timeslot.Calendar,
	session browser.SessionProvider,
	ledgerService ledgerservice.LedgerService,
	keeper *syncservice.LockKeeper,
	scheduler *syncservice.Scheduler,
	attempts bookingservice.AttemptSink,
	slotSealer *sealer.Sealer,
) bookingservice.BookingService {
	bookingService := bookingservice.NewBookingService(
		bookingrepo.NewAttemptRepository(cfg),
		bookingrepo.NewSlotLockRepository(cfg),
		bookingvalidator.NewBookingValidator(cfg.Log),
		ledgerService,
		keeper,
		session,
		driver.NewPlayoDriver(cfg, cal),
		slotSealer,
		scheduler,
		attempts,
		cal,
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService
}
