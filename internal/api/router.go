package api

import (
	"github.com/gin-gonic/gin"
	"github.com/invoicely/invoicely/internal/api/cron"
	v1 "github.com/invoicely/invoicely/internal/api/v1"
	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/rest/middleware"
	"github.com/invoicely/invoicely/internal/sentry"
	"github.com/invoicely/invoicely/internal/types"
)

type Handlers struct {
	Health   *v1.HealthHandler
	Invoice  *v1.InvoiceHandler
	Payment  *v1.PaymentHandler
	Public   *v1.PublicInvoiceHandler
	Profile  *v1.ProfileHandler
	Activity *v1.ActivityHandler

	CronInvoice *cron.InvoiceHandler
}

func NewRouter(
	handlers Handlers,
	cfg *config.Configuration,
	logger *logger.Logger,
	sentryService *sentry.Service,
	rateLimiter *middleware.RateLimiter,
) *gin.Engine {
	if cfg.Logging.Level != types.LogLevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.ErrorHandler(sentryService, logger),
	)

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1", middleware.UserMiddleware)
	registerV1Routes(v1Group, handlers)

	public := router.Group("/public", rateLimiter.Limit())
	{
		public.GET("/invoices/:id", handlers.Public.GetPublicInvoice)
		public.POST("/invoices/:id/signature", handlers.Public.SubmitSignature)
	}

	cronGroup := router.Group("/cron")
	{
		cronGroup.POST("/invoices/overdue", handlers.CronInvoice.SweepOverdueInvoices)
		cronGroup.POST("/invoices/reconcile", handlers.CronInvoice.ReconcileInvoices)
	}

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	invoices := router.Group("/invoices")
	{
		invoices.POST("", handlers.Invoice.CreateInvoice)
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.PUT("/:id", handlers.Invoice.UpdateInvoice)
		invoices.DELETE("/:id", handlers.Invoice.DeleteInvoice)
		invoices.POST("/:id/send", handlers.Invoice.SendInvoice)
		invoices.PUT("/:id/status", handlers.Invoice.UpdateInvoiceStatus)
		invoices.POST("/:id/reconcile", handlers.Invoice.ReconcileInvoice)
	}

	payments := router.Group("/payments")
	{
		payments.POST("", handlers.Payment.RecordPayment)
		payments.GET("", handlers.Payment.ListPayments)
		payments.GET("/:id", handlers.Payment.GetPayment)
		payments.PUT("/:id", handlers.Payment.UpdatePayment)
		payments.DELETE("/:id", handlers.Payment.DeletePayment)
	}

	router.PUT("/profile/signature", handlers.Profile.UpdateSignature)
	router.GET("/activity", handlers.Activity.GetActivity)
}
