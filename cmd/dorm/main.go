package main

import (
	"context"
	"io"

	billhandler "smartdorm/internal/billing/handler"
	billrepo "smartdorm/internal/billing/repository"
	billservice "smartdorm/internal/billing/service"
	bookinghandler "smartdorm/internal/bookings/handler"
	bookingrepo "smartdorm/internal/bookings/repository"
	bookingservice "smartdorm/internal/bookings/service"
	checkouthandler "smartdorm/internal/checkouts/handler"
	checkoutrepo "smartdorm/internal/checkouts/repository"
	checkoutservice "smartdorm/internal/checkouts/service"
	customerhandler "smartdorm/internal/customers/handler"
	customerrepo "smartdorm/internal/customers/repository"
	customerservice "smartdorm/internal/customers/service"
	"smartdorm/internal/notices"
	overduehandler "smartdorm/internal/overdue/handler"
	"smartdorm/internal/overdue/scheduler"
	overdueservice "smartdorm/internal/overdue/service"
	paymenthandler "smartdorm/internal/payments/handler"
	paymentrepo "smartdorm/internal/payments/repository"
	paymentservice "smartdorm/internal/payments/service"
	roomhandler "smartdorm/internal/rooms/handler"
	roomrepo "smartdorm/internal/rooms/repository"
	roomservice "smartdorm/internal/rooms/service"
	"smartdorm/pkg/app"
	"smartdorm/pkg/blob"
	"smartdorm/pkg/config"
	"smartdorm/pkg/contracts"
	mongotx "smartdorm/pkg/db/mongo"
	"smartdorm/pkg/identity"
	"smartdorm/pkg/kafka"
	kafka_config "smartdorm/pkg/kafka/config"
	kafka_middleware "smartdorm/pkg/kafka/middleware"
	"smartdorm/pkg/notify"
	"smartdorm/pkg/validator"
)

const ServiceName = "dorm"

type services struct {
	rooms     roomservice.RoomService
	customers customerservice.CustomerService
	bookings  bookingservice.BookingService
	bills     billservice.BillService
	payments  paymentservice.PaymentService
	checkouts checkoutservice.CheckoutService
	overdue   overdueservice.OverdueService
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting dormitory service")
	notifier := initNotifier(cfg)
	svc := initServices(cfg, notifier)

	overdueScheduler, err := scheduler.New(svc.overdue, cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create overdue scheduler", "error", err)
	}

	serverApp := app.NewApplication(cfg)
	serverApp.AddWorker(notifier)
	serverApp.AddWorker(overdueScheduler)
	serverApp.SetApp(
		roomhandler.NewRoomHandler(svc.rooms, cfg.Log),
		customerhandler.NewCustomerHandler(svc.customers, cfg.Log),
		bookinghandler.NewBookingHandler(svc.bookings, cfg.Log),
		billhandler.NewBillHandler(svc.bills, cfg.Log),
		paymenthandler.NewPaymentHandler(svc.payments, cfg.Log),
		checkouthandler.NewCheckoutHandler(svc.checkouts, cfg.Log),
		overduehandler.NewOverdueHandler(svc.overdue, cfg),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config, notifier notify.Notifier) services {
	v := validator.New(cfg.Log)
	txManager := mongotx.NewTransactionManager(cfg.Client.Mongo)

	roomRepo := roomrepo.NewMongoRoomRepository(cfg)
	customerRepo := customerrepo.NewMongoCustomerRepository(cfg)
	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	billRepo := billrepo.NewMongoBillRepository(cfg)
	paymentRepo := paymentrepo.NewMongoPaymentRepository(cfg)
	checkoutRepo := checkoutrepo.NewMongoCheckoutRepository(cfg)

	publisher := notices.NewPublisher(notifier, customerRepo, cfg)
	blobs := initBlobStorage(cfg)

	rooms := roomservice.NewRoomService(roomRepo, txManager, v, cfg, bookingRepo, billRepo)
	customers := customerservice.NewCustomerService(customerRepo, initVerifier(cfg), v, cfg)

	svc := services{
		rooms:     rooms,
		customers: customers,
		bookings: bookingservice.NewBookingService(bookingservice.Dependencies{
			Repo:      bookingRepo,
			Rooms:     rooms,
			Customers: customers,
			Blobs:     blobs,
			TxManager: txManager,
			Notices:   publisher,
			Validator: v,
			Config:    cfg,
		}),
		bills: billservice.NewBillService(billservice.Dependencies{
			Repo:      billRepo,
			Rooms:     rooms,
			Occupants: bookingRepo,
			Payments:  paymentRepo,
			Auth:      customers,
			Notices:   publisher,
			Validator: v,
			Config:    cfg,
		}),
		payments: paymentservice.NewPaymentService(paymentservice.Dependencies{
			Repo:      paymentRepo,
			Bills:     billRepo,
			Auth:      customers,
			Blobs:     blobs,
			TxManager: txManager,
			Notices:   publisher,
			Validator: v,
			Config:    cfg,
		}),
		checkouts: checkoutservice.NewCheckoutService(checkoutservice.Dependencies{
			Repo:      checkoutRepo,
			Bookings:  bookingRepo,
			Rooms:     rooms,
			Auth:      customers,
			TxManager: txManager,
			Notices:   publisher,
			Validator: v,
			Config:    cfg,
		}),
		overdue: overdueservice.NewOverdueService(billRepo, publisher, cfg),
	}

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)
	return svc
}

func initVerifier(cfg *config.Config) identity.Verifier {
	if cfg.GoogleClientID != "" {
		cfg.Log.Info("Using Google ID token verification")
		return identity.NewGoogleVerifier(cfg.GoogleClientID)
	}
	cfg.Log.Warn("GOOGLE_CLIENT_ID not set, no bearer credential will be accepted")
	return identity.NewStaticVerifier()
}

func initBlobStorage(cfg *config.Config) blob.Storage {
	if !cfg.OSSConfigured() {
		cfg.Log.Warn("OSS not configured, slips are kept in memory")
		return blob.NewMemoryStorage()
	}

	storage, err := blob.NewOSSStorage(blob.OSSConfig{
		Endpoint:      cfg.OSSEndpoint,
		AccessKey:     cfg.OSSAccessKey,
		SecretKey:     cfg.OSSSecretKey,
		Bucket:        cfg.OSSBucket,
		PublicBaseURL: cfg.OSSPublicBaseURL,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to initialize OSS storage", "error", err)
	}
	cfg.Log.Info("Slip storage configured", "bucket", cfg.OSSBucket)
	return storage
}

// notifierWorker drains the notification queue on shutdown and then releases
// the transport behind it.
type notifierWorker struct {
	*notify.Dispatcher
	transport io.Closer
}

func (w notifierWorker) Stop(ctx context.Context) error {
	err := w.Dispatcher.Stop(ctx)
	if w.transport != nil {
		if closeErr := w.transport.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func initNotifier(cfg *config.Config) interface {
	notify.Notifier
	contracts.Worker
} {
	if cfg.NotifyTransport != config.NotifyTransportKafka {
		cfg.Log.Info("Notifications are written to the log")
		return notifierWorker{Dispatcher: notify.NewDispatcher(notify.NewLogSender(cfg.Log), cfg.Log, cfg.NotifyQueueSize, cfg.NotifyWorkers)}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)
	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.NotifyTopic, cfg.NotifyDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}

	cfg.Log.Info("Notifications are published to Kafka", "topic", cfg.NotifyTopic)
	return notifierWorker{
		Dispatcher: notify.NewDispatcher(notify.NewKafkaSender(producer), cfg.Log, cfg.NotifyQueueSize, cfg.NotifyWorkers),
		transport:  producer,
	}
}
