package handlers

import (
	"net/http"

	"busticket/internal/logger"
	"busticket/internal/models"

	"github.com/gin-gonic/gin"
)

// Buses handlers

// CreateBus - POST /api/buses
// Создать автобус со списком мест
func (h *Handlers) CreateBus(c *gin.Context) {
	var req models.CreateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	bus, err := h.services.Buses.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bus)
}

// ListBuses - GET /api/buses
// Список автобусов без мест
func (h *Handlers) ListBuses(c *gin.Context) {
	buses, err := h.services.Buses.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, buses)
}

// UpdateBus - PUT /api/buses/:id
// Полная замена номера, удобств и мест; забронированные места удалять нельзя
func (h *Handlers) UpdateBus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	bus, err := h.services.Buses.Update(ctx, id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	// маршруты показывают номер и свободные места автобуса
	if err := h.services.Routes.ReindexBus(ctx, id); err != nil {
		logger.WithContext(ctx).Error("Failed to reindex routes after bus update", "bus_id", id, "error", err)
	}

	c.JSON(http.StatusOK, bus)
}

// GetBus - GET /api/buses/:id
func (h *Handlers) GetBus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	bus, err := h.services.Buses.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bus)
}

// GetSeatMap - GET /api/buses/:id/seats
// Карта мест с признаком доступности
func (h *Handlers) GetSeatMap(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	seatMap, err := h.services.Buses.SeatMap(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, seatMap)
}
