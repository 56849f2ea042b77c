package api

import (
	"fmt"
	"net/http"

	"busticket/internal/config"
	"busticket/internal/handlers"
	"busticket/internal/middleware"
	"busticket/internal/service"

	"github.com/gin-gonic/gin"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	infra    *Infra
	services *service.Services
}

// NewServer создает новый экземпляр сервера
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	infra, err := Connect(cfg)
	if err != nil {
		return nil, err
	}

	server := &Server{
		router:   gin.New(),
		config:   cfg,
		infra:    infra,
		services: infra.Services(cfg),
	}
	server.setupRoutes()

	return server, nil
}

// setupRoutes настраивает middleware и все API роуты
func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.CORS(s.config.CORSOrigins))
	s.router.Use(middleware.Logger(s.infra.Metrics))
	s.router.Use(middleware.Timeout(s.config.RequestTimeout))

	var authCache middleware.AuthCache
	if s.infra.Cache != nil {
		authCache = s.infra.Cache
	}
	auth := middleware.NewAuthenticator(s.infra.Store.Users(), authCache, middleware.AuthConfig{
		JWTSecret:  s.config.Auth.JWTSecret,
		CookieName: s.config.Auth.CookieName,
	})

	h := handlers.NewHandlers(s.services)
	h.Register(s.router.Group("/api"), auth)

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(s.infra.Metrics.Handler()))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	db := s.infra.DB.HealthCheck(c.Request.Context())

	status := http.StatusOK
	if db.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   db.Status,
		"service":  "busticket-api",
		"version":  "1.0.0",
		"database": db,
		"nats":     s.infra.NATS.Connected(),
		"cache":    s.infra.Cache != nil,
		"search":   s.infra.Index != nil,
	})
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	return s.infra.Close()
}
