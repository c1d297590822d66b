package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/sentry"
	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error attached to the gin context.
// Server side failures are logged and reported to Sentry.
func ErrorHandler(sentryService *sentry.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := ierr.HTTPStatusFromErr(err)

		if status >= http.StatusInternalServerError {
			ctx := c.Request.Context()
			log.WithContext(ctx).Errorw("request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"status", status,
				"error", err,
			)
			if sentryService != nil {
				sentryService.CaptureException(ctx, err)
			}
		}

		if c.Writer.Written() {
			return
		}

		c.JSON(status, ierr.ErrorResponse{
			Success: false,
			Error: ierr.ErrorDetail{
				Display: ierr.DisplayMessage(err),
				Code:    ierr.CodeFromErr(err),
				Details: getSafeDetails(err),
			},
		})
	}
}

func getSafeDetails(err error) map[string]any {
	details := make(map[string]any)

	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			jsonStr, ok := strings.CutPrefix(payload, "__json__:")
			if !ok || jsonStr == "" {
				continue
			}
			var jsonDetails map[string]any
			if err := json.Unmarshal([]byte(jsonStr), &jsonDetails); err == nil {
				for k, v := range jsonDetails {
					details[k] = v
				}
			}
		}
	}

	if len(details) == 0 {
		return nil
	}
	return details
}
