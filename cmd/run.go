package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"costpool/config"
	"costpool/database"
	"costpool/events"
	"costpool/payment"
	"costpool/repository"
	"costpool/service"
	"costpool/sink"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting costpool...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize event bus and sinks
	eventBus := events.NewBus()

	auditRecorder := sink.NewAuditRecorder(repository.NewAuditEventRepository(db))
	auditRecorder.Register(eventBus)

	notifier := sink.NewNotifier(sink.LogMailer{})
	notifier.Register(eventBus)

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize services
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.Currency)
	ledger := service.NewFailureLedgerService(uowFactory)
	scheduler := service.NewWithdrawalScheduler(uowFactory, cfg.SettlementLeadDays)
	settler := service.NewSettlementService(uowFactory, gateway, ledger, service.SettlementConfig{
		MinPledge:           cfg.MinPledge,
		ProcessorFeePercent: cfg.ProcessorFeePercent,
		ProcessorFeeFixed:   cfg.ProcessorFeeFixed,
		Workers:             cfg.SettlementWorkers,
	})

	// The daily tick schedules upcoming withdrawals, then settles any that
	// are due. SkipIfStillRunning guards against a slow settlement run
	// overlapping the next tick.
	runner := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err = runner.AddFunc(cfg.SettlementCron, func() {
		tick(ctx, scheduler, settler)
	})
	if err != nil {
		return fmt.Errorf("failed to register settlement tick: %w", err)
	}
	runner.Start()

	log.WithField("environment", cfg.Environment).Info("Costpool is running")
	<-ctx.Done()

	// Cleanup resources
	log.Info("Shutting down...")

	// Let an in-flight settlement tick finish
	stopCtx := runner.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		log.Warn("Shutdown timeout exceeded waiting for settlement tick")
	}

	log.Info("Closing database connection...")
	db.Close()

	return nil
}

func tick(ctx context.Context, scheduler service.WithdrawalScheduler, settler service.SettlementService) {
	now := time.Now().UTC()

	created, err := scheduler.ScheduleWithdrawals(ctx, now)
	if err != nil {
		log.WithError(err).Error("Withdrawal scheduling failed")
	} else if created > 0 {
		log.WithField("created", created).Info("Scheduled withdrawals")
	}

	results, err := settler.SettleDue(ctx, now)
	if err != nil {
		log.WithError(err).Error("Settlement run finished with errors")
	}
	if len(results) > 0 {
		log.WithField("settled", len(results)).Info("Settlement run finished")
	}
}
