package repository

import (
	"github.com/invoicely/invoicely/internal/domain/client"
	"github.com/invoicely/invoicely/internal/domain/invoice"
	"github.com/invoicely/invoicely/internal/domain/payment"
	"github.com/invoicely/invoicely/internal/domain/user"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/postgres"
	postgresRepo "github.com/invoicely/invoicely/internal/repository/postgres"
)

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}

func NewClientRepository(db *postgres.DB, logger *logger.Logger) client.Repository {
	return postgresRepo.NewClientRepository(db, logger)
}

func NewUserRepository(db *postgres.DB, logger *logger.Logger) user.Repository {
	return postgresRepo.NewUserRepository(db, logger)
}
