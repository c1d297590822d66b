package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/invoicely/invoicely/internal/activity"
	"github.com/invoicely/invoicely/internal/api"
	"github.com/invoicely/invoicely/internal/api/cron"
	v1 "github.com/invoicely/invoicely/internal/api/v1"
	"github.com/invoicely/invoicely/internal/cache"
	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/email"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/postgres"
	"github.com/invoicely/invoicely/internal/publisher"
	"github.com/invoicely/invoicely/internal/pubsub"
	"github.com/invoicely/invoicely/internal/pubsub/memory"
	pubsubRouter "github.com/invoicely/invoicely/internal/pubsub/router"
	"github.com/invoicely/invoicely/internal/repository"
	"github.com/invoicely/invoicely/internal/rest/middleware"
	"github.com/invoicely/invoicely/internal/sentry"
	"github.com/invoicely/invoicely/internal/service"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/invoicely/invoicely/internal/validator"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,

			// Cache
			cache.NewInMemoryCache,

			// Email
			email.NewEmailClient,
			email.NewEmail,

			// Events
			memory.NewPubSub,
			publisher.NewEventPublisher,
			pubsubRouter.NewRouter,
			activity.NewFeed,

			// Repositories
			repository.NewInvoiceRepository,
			repository.NewPaymentRepository,
			repository.NewClientRepository,
			repository.NewUserRepository,
		),
		postgres.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewInvoiceService,
			service.NewLedgerService,
			service.NewIssuerService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			middleware.NewRateLimiter,
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			registerDBHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	db *postgres.DB,
	logger *logger.Logger,
	invoiceService service.InvoiceService,
	ledgerService service.LedgerService,
	issuerService service.IssuerService,
	feed *activity.Feed,
) api.Handlers {
	return api.Handlers{
		Health:      v1.NewHealthHandler(db, logger),
		Invoice:     v1.NewInvoiceHandler(invoiceService, ledgerService, issuerService, logger),
		Payment:     v1.NewPaymentHandler(ledgerService, logger),
		Public:      v1.NewPublicInvoiceHandler(invoiceService, logger),
		Profile:     v1.NewProfileHandler(issuerService, logger),
		Activity:    v1.NewActivityHandler(feed),
		CronInvoice: cron.NewInvoiceHandler(invoiceService, ledgerService, logger),
	}
}

func provideRouter(
	handlers api.Handlers,
	cfg *config.Configuration,
	logger *logger.Logger,
	sentryService *sentry.Service,
	rateLimiter *middleware.RateLimiter,
) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, sentryService, rateLimiter)
}

func registerDBHooks(lc fx.Lifecycle, db *postgres.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	pubSub pubsub.PubSub,
	feed *activity.Feed,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal, types.ModeAPI:
		startMessageRouter(lc, router, pubSub, feed, log)
		startAPIServer(lc, r, cfg, log)
	case types.ModeAWSLambdaAPI:
		startMessageRouter(lc, router, pubSub, feed, log)
		startAWSLambdaAPI(r)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

func startAWSLambdaAPI(r *gin.Engine) {
	ginLambda := ginadapter.New(r)
	lambda.Start(ginLambda.ProxyWithContext)
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	pubSub pubsub.PubSub,
	feed *activity.Feed,
	logger *logger.Logger,
) {
	// Register handlers before starting the router
	feed.RegisterHandlers(router, pubSub)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting message router")
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping message router")
			if err := router.Close(); err != nil {
				return err
			}
			return pubSub.Close()
		},
	})
}
