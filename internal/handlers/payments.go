package handlers

import (
	"fmt"
	"net/http"

	apperrors "busticket/internal/errors"
	"busticket/internal/middleware"
	"busticket/internal/models"

	"github.com/gin-gonic/gin"
)

// Payments handlers

// CreatePayment - POST /api/payments
// Забронировать места и записать платеж; без пользователя - гостевая покупка
func (h *Handlers) CreatePayment(c *gin.Context) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var userID *int64
	if id, ok := middleware.CurrentUserID(c); ok {
		userID = &id
	}

	payment, err := h.services.Bookings.Create(c.Request.Context(), &req, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.NewPaymentResponse(payment))
}

// ListPayments - GET /api/payments
// Платежи текущего пользователя, новые первыми
func (h *Handlers) ListPayments(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	payments, err := h.services.Bookings.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]models.PaymentResponse, len(payments))
	for i := range payments {
		response[i] = models.NewPaymentResponse(&payments[i])
	}
	c.JSON(http.StatusOK, response)
}

// GetPayment - GET /api/payments/:id
// Получить платеж по id
func (h *Handlers) GetPayment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	payment, err := h.services.Bookings.Get(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewPaymentResponse(payment))
}

// CancelPayment - PATCH /api/payments/:id/cancel
// Отменить бронирование и освободить места
func (h *Handlers) CancelPayment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	payment, err := h.services.Bookings.Cancel(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewPaymentResponse(payment))
}

// PaymentTicket - GET /api/payments/:id/ticket
// Билет в PDF
func (h *Handlers) PaymentTicket(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	pdf, err := h.services.Bookings.Ticket(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"ticket-%d.pdf\"", id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// QuotePayment - POST /api/payments/quote
// Рассчитать стоимость без бронирования
func (h *Handlers) QuotePayment(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	quote, err := h.services.Bookings.Quote(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

func requireUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
	}
	return userID, ok
}
