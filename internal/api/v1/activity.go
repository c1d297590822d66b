package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicely/invoicely/internal/activity"
	"github.com/invoicely/invoicely/internal/api/dto"
	ierr "github.com/invoicely/invoicely/internal/errors"
)

type ActivityHandler struct {
	feed *activity.Feed
}

func NewActivityHandler(feed *activity.Feed) *ActivityHandler {
	return &ActivityHandler{feed: feed}
}

type activityQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// GetActivity godoc
// @Summary Recent ledger activity
// @Tags Activity
// @Produce json
// @Param limit query int false "Maximum number of events"
// @Success 200 {object} dto.ActivityResponse
// @Router /activity [get]
func (h *ActivityHandler) GetActivity(c *gin.Context) {
	var query activityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Limit must be between 1 and 1000").
			Mark(ierr.ErrValidation))
		return
	}

	c.JSON(http.StatusOK, dto.ActivityResponse{Items: h.feed.Recent(query.Limit)})
}
