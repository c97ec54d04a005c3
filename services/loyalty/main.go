package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/middleware"

	"github.com/appetiteclub/epicure/pkg"
	"github.com/appetiteclub/epicure/pkg/event"
	"github.com/appetiteclub/epicure/services/loyalty/internal/grpchealth"
	"github.com/appetiteclub/epicure/services/loyalty/internal/loyalty"
	"github.com/appetiteclub/epicure/services/loyalty/internal/mongo"
)

const (
	appNamespace = "LOYALTY"
	appName      = "loyalty"
	appVersion   = "0.1.0"
)

func main() {
	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	settings, err := loyalty.SettingsFromConfig(config)
	if err != nil {
		log.Fatalf("%s(%s) invalid settings: %v", appName, appVersion, err)
	}
	if settings.DemoMode {
		logger.Info("Demo mode enabled: OTP codes are echoed and SMS is not sent")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	baseRepo := mongo.NewBaseRepo(config, logger)
	err = baseRepo.Start(ctx)
	if err != nil {
		log.Fatalf("%s(%s) cannot start base repository: %v", appName, appVersion, err)
	}

	db := baseRepo.GetDatabase()
	if db == nil {
		log.Fatalf("%s(%s) cannot initialize repository database: %v", appName, appVersion, errors.New("repository database is nil"))
	}

	customerRepo := mongo.NewCustomerRepo(db)
	otpRepo := mongo.NewOTPRepo(db)
	adminRepo := mongo.NewAdminRepo(db)
	billRepo := mongo.NewBillRepo(db)

	repos := loyalty.Repos{
		CustomerRepo: customerRepo,
		OTPRepo:      otpRepo,
		AdminRepo:    adminRepo,
		BillRepo:     billRepo,
	}

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")

	pub, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
	}

	// Each code is delivered by one instance of the group.
	sub, err := pkg.NewNATSSubscriber(natsURL, "loyalty-otp", logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS subscriber: %v", appName, appVersion, err)
	}

	ledgerStream, err := pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
		URL:               natsURL,
		StreamName:        config.GetStringOrDef("nats.stream.name", "LOYALTY_EVENTS"),
		Subjects:          []string{event.LedgerTopic},
		MaxAge:            7 * 24 * time.Hour,
		InactiveThreshold: time.Hour,
	}, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot create ledger stream: %v", appName, appVersion, err)
	}

	sender, err := loyalty.NewSender(settings, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot create SMS sender: %v", appName, appVersion, err)
	}

	svc := loyalty.NewService(loyalty.ServiceDeps{
		Repos:           repos,
		LedgerPublisher: ledgerStream,
		OTPPublisher:    pub,
	}, settings, logger)

	otpDispatcher := loyalty.NewOTPDispatcher(sub, sender, settings.OTPTTL, logger)
	activityFeed := loyalty.NewActivityFeed(ledgerStream, 0, logger)

	hd := loyalty.HandlerDeps{
		Service:      svc,
		ActivityFeed: activityFeed,
	}

	handler := loyalty.NewHandler(hd, config, logger)

	healthServer := grpchealth.NewServer(appName, baseRepo.Ping, 0, logger)

	indexLifecycle := apt.LifecycleHooks{
		OnStart: func(ctx context.Context) error {
			if err := customerRepo.Start(ctx); err != nil {
				return err
			}
			if err := otpRepo.Start(ctx); err != nil {
				return err
			}
			return billRepo.Start(ctx)
		},
	}

	seedHooks := apt.LifecycleHooks{
		OnStart: loyalty.SeedingFunc(appName, baseRepo.GetDatabase, repos, settings, demoSeeding(config), logger),
	}

	publisherLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	}

	subLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return sub.Close()
		},
	}

	streamLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return ledgerStream.Close()
		},
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: false, // Called from the customer, barista and admin web apps
	})

	lifecycles := []interface{}{
		apt.LifecycleHooks{OnStop: baseRepo.Stop},
		indexLifecycle,
		seedHooks,
		otpDispatcher,
		activityFeed,
		healthServer,
		publisherLifecycle,
		subLifecycle,
		streamLifecycle,
	}

	options := []apt.Option{
		apt.WithConfig(config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithGRPCServerModules("grpc.port", healthServer),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(appName),
	}

	ms := apt.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	err = ms.Run(ctx)
	if err != nil {
		_ = baseRepo.Stop(context.Background())
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}

func demoSeeding(config *apt.Config) bool {
	v, _ := config.GetString("seeding.demo")
	return v == "true"
}
