package handlers

import (
	"busticket/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Register подключает все API роуты к группе /api
func (h *Handlers) Register(api *gin.RouterGroup, auth *middleware.Authenticator) {
	optional := auth.OptionalAuth()
	required := auth.RequireAuth()

	// Payments endpoints
	payments := api.Group("/payments")
	{
		payments.POST("", optional, h.CreatePayment)
		payments.POST("/quote", h.QuotePayment)
		payments.GET("", required, h.ListPayments)
		payments.GET("/:id", required, h.GetPayment)
		payments.PATCH("/:id/cancel", required, h.CancelPayment)
		payments.GET("/:id/ticket", required, h.PaymentTicket)
	}

	// Buses endpoints
	buses := api.Group("/buses")
	{
		buses.POST("", required, h.CreateBus)
		buses.GET("", h.ListBuses)
		buses.GET("/:id", h.GetBus)
		buses.PUT("/:id", required, h.UpdateBus)
		buses.GET("/:id/seats", h.GetSeatMap)
	}

	// Routes endpoints
	routes := api.Group("/routes")
	{
		routes.POST("", required, h.CreateRoute)
		routes.GET("/search", h.SearchRoutes)
	}
}
