package internal

import (
	"context"
	"fmt"

	"github.com/invoicely/invoicely/internal/cache"
	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/email"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/postgres"
	"github.com/invoicely/invoicely/internal/repository"
	"github.com/invoicely/invoicely/internal/sentry"
	"github.com/invoicely/invoicely/internal/service"
	"github.com/invoicely/invoicely/internal/types"
)

// scriptEnv bundles what the scripts need to talk to the database through the services
type scriptEnv struct {
	cfg    *config.Configuration
	log    *logger.Logger
	db     *postgres.DB
	params service.ServiceParams
}

func newScriptEnv() (*scriptEnv, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sentryService := sentry.NewSentryService(cfg, log)

	// scripts never send email and publish nothing
	params := service.NewServiceParams(
		log,
		cfg,
		postgres.NewClient(db, sentryService, log),
		sentryService,
		repository.NewInvoiceRepository(db, log),
		repository.NewPaymentRepository(db, log),
		repository.NewClientRepository(db, log),
		repository.NewUserRepository(db, log),
		nil,
		email.NewEmail(email.NewEmailClient(cfg), cfg, log),
		cache.NewInMemoryCache(cfg, log),
	)

	return &scriptEnv{cfg: cfg, log: log, db: db, params: params}, nil
}

func (e *scriptEnv) close() {
	_ = e.db.Close()
}

// scriptContext marks every write as done by the given user
func scriptContext(userID string) context.Context {
	ctx := context.WithValue(context.Background(), types.CtxRequestID, types.GenerateUUID())
	if userID == "" {
		userID = "script"
	}
	return types.SetUserID(ctx, userID)
}
