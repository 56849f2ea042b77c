package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"busticket/internal/api"
	"busticket/internal/config"
	"busticket/internal/logger"
	"busticket/internal/validation"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Проверяем, нужно ли запустить валидацию
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		runValidation(cfg)
		return
	}

	// Создаем и настраиваем сервер
	server, err := api.NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize server", "error", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.GetRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Get().Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ждем сигнал для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Get().Error("Server forced to shutdown", "error", err)
	}

	if err := server.Cleanup(); err != nil {
		logger.Get().Error("Error during cleanup", "error", err)
	}

	logger.Get().Info("Server stopped")
}

// runValidation проверяет запущенный API. Учетные данные берутся из
// VALIDATE_TOKEN, VALIDATE_USER_ID (токен подписывается JWT_SECRET) или
// VALIDATE_USER/VALIDATE_PASSWORD.
func runValidation(cfg *config.Config) {
	baseURL := os.Getenv("VALIDATE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Port
	}

	creds := validation.Credentials{
		Token:    os.Getenv("VALIDATE_TOKEN"),
		Username: os.Getenv("VALIDATE_USER"),
		Password: os.Getenv("VALIDATE_PASSWORD"),
	}
	if creds.Token == "" && cfg.Auth.JWTSecret != "" {
		if userID, err := strconv.ParseInt(os.Getenv("VALIDATE_USER_ID"), 10, 64); err == nil {
			creds.Token, err = validation.SignToken(cfg.Auth.JWTSecret, userID, 10*time.Minute)
			if err != nil {
				logger.Fatal("Failed to sign validation token", "error", err)
			}
		}
	}

	if err := validation.NewSmokeValidator(baseURL, creds).ValidateAll(); err != nil {
		logger.Fatal("Smoke validation failed", "error", err)
	}
}
