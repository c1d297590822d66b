package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicely/invoicely/internal/api/dto"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/service"
	"github.com/invoicely/invoicely/internal/types"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	ledgerService  service.LedgerService
	issuerService  service.IssuerService
	logger         *logger.Logger
}

func NewInvoiceHandler(
	invoiceService service.InvoiceService,
	ledgerService service.LedgerService,
	issuerService service.IssuerService,
	logger *logger.Logger,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		ledgerService:  ledgerService,
		issuerService:  issuerService,
		logger:         logger,
	}
}

// CreateInvoice godoc
// @Summary Create a new invoice
// @Description Create the client, the optional company, the invoice and its line items
// @Tags Invoices
// @Accept json
// @Produce json
// @Param invoice body dto.CreateInvoiceRequest true "Invoice details"
// @Success 201 {object} dto.InvoiceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	ctx := c.Request.Context()
	signature, err := h.issuerService.GetAdminSignature(ctx)
	if err != nil {
		h.logger.WithContext(ctx).Errorw("failed to resolve admin signature", "error", err)
		c.Error(err)
		return
	}

	resp, err := h.invoiceService.CreateFullInvoice(ctx, req, signature)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetInvoice godoc
// @Summary Get an invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	resp, err := h.invoiceService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListInvoices godoc
// @Summary List invoices
// @Description List invoices by status, client, due range or a free text search
// @Tags Invoices
// @Produce json
// @Param filter query types.InvoiceFilter false "Filter"
// @Success 200 {object} dto.ListInvoicesResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	filter := types.NewInvoiceFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateInvoice godoc
// @Summary Update an invoice
// @Description Replace the editable fields and line items of an invoice. Payments are kept.
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param invoice body dto.UpdateInvoiceRequest true "Invoice details"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /invoices/{id} [put]
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.invoiceService.UpdateFullInvoice(c.Request.Context(), id, req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteInvoice godoc
// @Summary Delete an invoice with its line items and payments
// @Tags Invoices
// @Param id path string true "Invoice ID"
// @Success 204
// @Failure 404 {object} ierr.ErrorResponse
// @Router /invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SendInvoice godoc
// @Summary Email the share link to the client
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.SendInvoiceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /invoices/{id}/send [post]
func (h *InvoiceHandler) SendInvoice(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	resp, err := h.invoiceService.SendInvoice(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateInvoiceStatus godoc
// @Summary Manually move an invoice to SENT or OVERDUE
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param request body dto.UpdateInvoiceStatusRequest true "Target status"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /invoices/{id}/status [put]
func (h *InvoiceHandler) UpdateInvoiceStatus(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.invoiceService.UpdateInvoiceStatus(c.Request.Context(), id, req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ReconcileInvoice godoc
// @Summary Compare the ledger fields of an invoice with its payment history
// @Description With repair set, the derived values are written back
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param request body dto.ReconcileRequest false "Reconcile options"
// @Success 200 {object} dto.ReconciliationReport
// @Failure 404 {object} ierr.ErrorResponse
// @Router /invoices/{id}/reconcile [post]
func (h *InvoiceHandler) ReconcileInvoice(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	req, ok := bindReconcileRequest(c)
	if !ok {
		return
	}

	resp, err := h.ledgerService.RecomputeFromHistory(c.Request.Context(), id, req.Repair)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func invoiceIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invoice ID is required").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation))
		return "", false
	}
	return id, true
}

// bindReconcileRequest accepts the repair flag as a JSON body or a query parameter
func bindReconcileRequest(c *gin.Context) (dto.ReconcileRequest, bool) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request parameters").
			Mark(ierr.ErrValidation))
		return req, false
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return req, false
		}
	}
	return req, true
}
