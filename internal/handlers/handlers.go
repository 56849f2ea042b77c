package handlers

import (
	"errors"
	"net/http"
	"strconv"

	apperrors "busticket/internal/errors"
	"busticket/internal/logger"
	"busticket/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		services: services,
	}
}

// statusOf сопоставляет вид ошибки с HTTP статусом
func statusOf(err error) int {
	if errors.Is(err, apperrors.ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, apperrors.ErrForbidden) {
		return http.StatusForbidden
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidRequest,
		apperrors.KindInvalidCardDetails,
		apperrors.KindValidation,
		apperrors.KindSeatAlreadyBooked:
		return http.StatusBadRequest
	case apperrors.KindNotFound, apperrors.KindSeatNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ошибку в едином формате.
// Текст внутренних ошибок клиенту не отдается.
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	log := logger.WithContext(c.Request.Context())

	body := gin.H{}
	if appErr, ok := apperrors.As(err); ok {
		body["code"] = string(appErr.Kind)
		if appErr.Field != "" {
			body["field"] = appErr.Field
		}
		if appErr.Seat != "" {
			body["seat"] = appErr.Seat
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		body["error"] = "Internal server error"
		if _, ok := body["code"]; !ok {
			body["code"] = "internal_error"
		}
	} else {
		body["error"] = err.Error()
	}

	if requestID := logger.RequestIDFromContext(c.Request.Context()); requestID != "" {
		body["request_id"] = requestID
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// bindError - тело запроса не разобрано
func bindError(c *gin.Context, err error) {
	respondError(c, apperrors.InvalidRequest("invalid request body: %v", err))
}

// idParam разбирает положительный числовой параметр пути
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperrors.InvalidRequest("invalid %s: %q", name, c.Param(name)))
		return 0, false
	}
	return id, true
}
