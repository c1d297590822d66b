package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicely/invoicely/internal/api/dto"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/service"
)

// PublicInvoiceHandler serves the unauthenticated share link pages
type PublicInvoiceHandler struct {
	invoiceService service.InvoiceService
	logger         *logger.Logger
}

func NewPublicInvoiceHandler(invoiceService service.InvoiceService, logger *logger.Logger) *PublicInvoiceHandler {
	return &PublicInvoiceHandler{
		invoiceService: invoiceService,
		logger:         logger,
	}
}

// GetPublicInvoice godoc
// @Summary Get the client facing view of an invoice
// @Tags Public
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.PublicInvoiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /public/invoices/{id} [get]
func (h *PublicInvoiceHandler) GetPublicInvoice(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	resp, err := h.invoiceService.GetPublicInvoice(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SubmitSignature godoc
// @Summary Sign an invoice as the client
// @Tags Public
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param request body dto.SubmitSignatureRequest true "Signature image"
// @Success 200 {object} dto.PublicInvoiceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /public/invoices/{id}/signature [post]
func (h *PublicInvoiceHandler) SubmitSignature(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	var req dto.SubmitSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.invoiceService.SubmitClientSignature(c.Request.Context(), id, req)
	if err != nil {
		h.logger.WithContext(c.Request.Context()).Infow("signature rejected",
			"invoice_id", id,
			"error", err,
		)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
