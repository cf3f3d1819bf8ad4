package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"

	_ "github.com/fkhayef/tablepay/docs"
	"github.com/fkhayef/tablepay/internal/branch"
	"github.com/fkhayef/tablepay/internal/config"
	"github.com/fkhayef/tablepay/internal/database"
	"github.com/fkhayef/tablepay/internal/diner"
	"github.com/fkhayef/tablepay/internal/events"
	"github.com/fkhayef/tablepay/internal/gateway"
	"github.com/fkhayef/tablepay/internal/logging"
	"github.com/fkhayef/tablepay/internal/money"
	"github.com/fkhayef/tablepay/internal/notification"
	"github.com/fkhayef/tablepay/internal/order"
	"github.com/fkhayef/tablepay/internal/payment"
	"github.com/fkhayef/tablepay/pkg/broker"
	mw "github.com/fkhayef/tablepay/pkg/middleware"
)

// tableNumberConstraint is the unique (branch_id, number) constraint on dining_tables
const tableNumberConstraint = "dining_tables_branch_id_number_key"

// @title        TablePay API
// @version      1.0
// @description  Shared-table ordering and bill splitting for restaurants
// @BasePath     /api/v1
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()
	if err := logging.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Info("Connected to database successfully")

	publisher, dispatcher, mq := setupBroker(cfg.AMQPURL)
	if mq != nil {
		defer mq.Close()
	}

	var gw gateway.Gateway
	if cfg.CardPaymentsEnabled() {
		gw = gateway.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, card payments are disabled")
	}

	currencies := money.Default()

	// Branch feature
	branchRepo := branch.NewRepository(db)
	branchService := branch.NewService(branchRepo, currencies, func(err error) bool {
		return database.IsUniqueViolation(err, tableNumberConstraint)
	})
	branchHandler := branch.NewHandler(branchService)

	// Diner feature
	dinerRepo := diner.NewRepository(db)
	dinerService := diner.NewService(dinerRepo, branchService)
	dinerHandler := diner.NewHandler(dinerService)

	// Order feature
	orderRepo := order.NewRepository(db)
	orderService := order.NewService(orderRepo, branchService, publisher)
	orderHandler := order.NewHandler(orderService)

	// Notification feature
	notificationRepo := notification.NewRepository(db)
	notificationService := notification.NewService(notificationRepo, branchService, dispatcher)
	notificationHandler := notification.NewHandler(notificationService)

	// Payment feature
	paymentService := payment.NewService(payment.Deps{
		Store:      payment.NewRepository(db),
		Orders:     orderService,
		Diners:     dinerService,
		Notifier:   notificationService,
		Publisher:  publisher,
		Gateway:    gw,
		Currencies: currencies,
		BaseURL:    cfg.PublicBaseURL,
	})
	paymentHandler := payment.NewHandler(paymentService)

	middleware.DefaultLogger = middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  log.StandardLogger(),
		NoColor: true,
	})

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mw.SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		if mq != nil {
			if err := mq.Ping(); err != nil {
				log.WithError(err).Warn("RabbitMQ health check failed")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Mount feature routers
		r.Mount("/branches", branchHandler.Routes())
		r.Route("/tables/{tableId}", func(r chi.Router) {
			r.Mount("/diners", dinerHandler.Routes())
			r.Mount("/order", orderHandler.Routes())
			r.Mount("/pay", paymentHandler.TableRoutes())
		})
		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/balance", orderHandler.GetOrderBalance)
			r.Mount("/", paymentHandler.OrderRoutes())
		})
		r.Mount("/payments", paymentHandler.Routes())
		r.Mount("/notifications", notificationHandler.Routes())
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// setupBroker connects to RabbitMQ when a URL is configured. Without one, or
// when the broker is unreachable, events and staff notifications are logged
// and the returned client is nil.
func setupBroker(url string) (events.Publisher, notification.Dispatcher, *broker.Client) {
	if url == "" {
		log.Warn("AMQP_URL not set, domain events and notifications are only logged")
		return events.LogPublisher{}, notification.LogDispatcher{}, nil
	}

	client, err := broker.Dial(url)
	if err != nil {
		log.WithError(err).Error("Failed to connect to RabbitMQ, falling back to logging")
		return events.LogPublisher{}, notification.LogDispatcher{}, nil
	}
	for _, exchange := range []string{events.Exchange, notification.Exchange} {
		if err := client.DeclareFanout(exchange); err != nil {
			client.Close()
			log.WithError(err).WithField("exchange", exchange).Error("Failed to declare exchange, falling back to logging")
			return events.LogPublisher{}, notification.LogDispatcher{}, nil
		}
	}

	log.Info("Connected to RabbitMQ successfully")
	return events.NewAMQPPublisher(client, events.Exchange),
		notification.NewAMQPDispatcher(client, notification.Exchange),
		client
}
