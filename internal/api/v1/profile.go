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

type ProfileHandler struct {
	issuerService service.IssuerService
	logger        *logger.Logger
}

func NewProfileHandler(issuerService service.IssuerService, logger *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		issuerService: issuerService,
		logger:        logger,
	}
}

// UpdateSignature godoc
// @Summary Store the signature of the current user
// @Description The signature of the first super admin is stamped on every new invoice
// @Tags Profile
// @Accept json
// @Produce json
// @Param request body dto.UpdateSignatureRequest true "Signature image"
// @Success 200 {object} dto.SignatureResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Router /profile/signature [put]
func (h *ProfileHandler) UpdateSignature(c *gin.Context) {
	var req dto.UpdateSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	ctx := c.Request.Context()
	resp, err := h.issuerService.UpdateSignature(ctx, types.GetUserID(ctx), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
