package handlers

import (
	"net/http"

	"busticket/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateRoute - POST /api/routes
// Создать маршрут и привязать к нему автобусы
func (h *Handlers) CreateRoute(c *gin.Context) {
	var req models.CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	route, err := h.services.Routes.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, route)
}

// SearchRoutes - GET /api/routes/search?from=&to=
// Поиск маршрутов с числом свободных мест по каждому автобусу
func (h *Handlers) SearchRoutes(c *gin.Context) {
	results, err := h.services.Routes.Search(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}
