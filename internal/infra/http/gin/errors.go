package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"homestay/internal/app/apperr"
	domainpricing "homestay/internal/domain/pricing"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Dates  []string          `json:"dates,omitempty"`
}

// respondError maps an application error to its status code and body.
// Internal errors are logged and reported without details.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, body := describeError(err)
	if status >= http.StatusInternalServerError {
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, body)
}

func describeError(err error) (int, errorResponse) {
	switch apperr.Classify(err) {
	case apperr.KindValidation:
		body := errorResponse{Error: "validation failed"}
		var verr *apperr.ValidationError
		if errors.As(err, &verr) {
			body.Fields = verr.Fields
		} else {
			body.Error = err.Error()
		}
		return http.StatusUnprocessableEntity, body
	case apperr.KindNotFound:
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case apperr.KindConflict:
		body := errorResponse{Error: err.Error()}
		var overlap *domainpricing.OverlapError
		if errors.As(err, &overlap) {
			body.Dates = overlap.DateStrings()
		}
		return http.StatusConflict, body
	case apperr.KindForbidden:
		return http.StatusForbidden, errorResponse{Error: err.Error()}
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal error"}
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}
