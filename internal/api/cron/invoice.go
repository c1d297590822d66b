package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicely/invoicely/internal/api/dto"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/service"
)

// InvoiceHandler handles invoice related cron jobs
type InvoiceHandler struct {
	invoiceService service.InvoiceService
	ledgerService  service.LedgerService
	logger         *logger.Logger
}

// NewInvoiceHandler creates a new invoice cron handler
func NewInvoiceHandler(
	invoiceService service.InvoiceService,
	ledgerService service.LedgerService,
	logger *logger.Logger,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		ledgerService:  ledgerService,
		logger:         logger,
	}
}

// SweepOverdueInvoices moves every unpaid invoice past its due date to OVERDUE
func (h *InvoiceHandler) SweepOverdueInvoices(c *gin.Context) {
	ctx := c.Request.Context()
	h.logger.WithContext(ctx).Infow("starting overdue sweep cron job")

	resp, err := h.invoiceService.SweepOverdueInvoices(ctx)
	if err != nil {
		h.logger.WithContext(ctx).Errorw("overdue sweep failed", "error", err)
		_ = c.Error(err)
		return
	}

	h.logger.WithContext(ctx).Infow("completed overdue sweep cron job",
		"updated", resp.Updated,
		"ran_at", resp.RanAt,
	)

	c.JSON(http.StatusOK, resp)
}

// ReconcileInvoices checks every invoice against its payment history.
// Drift is only repaired when the request asks for it.
func (h *InvoiceHandler) ReconcileInvoices(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ReconcileRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(ierr.WithError(err).
			WithHint("Invalid request parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.WithContext(ctx).Errorw("failed to parse request parameters", "error", err)
			_ = c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return
		}
	}

	h.logger.WithContext(ctx).Infow("starting reconcile cron job", "repair", req.Repair)

	resp, err := h.ledgerService.ReconcileAll(ctx, req.Repair)
	if err != nil {
		h.logger.WithContext(ctx).Errorw("reconcile cron job failed", "error", err)
		_ = c.Error(err)
		return
	}

	h.logger.WithContext(ctx).Infow("completed reconcile cron job",
		"checked", resp.Checked,
		"drifted", resp.Drifted,
		"repaired", resp.Repaired,
	)

	c.JSON(http.StatusOK, resp)
}
