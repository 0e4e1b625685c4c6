package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"llmevalbench/internal/invoke"
	"llmevalbench/internal/registry"
	"llmevalbench/internal/store"
	"llmevalbench/server"
)

func Run() error {
	// Initialize structured logger first
	server.AppLogger = server.NewLogger()

	// Model configuration is the single source of model definitions
	configPath := os.Getenv("MODELS_CONFIG")
	if configPath == "" {
		configPath = "models.yaml"
	}
	reg, err := registry.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading model configuration: %w", err)
	}
	server.AppLogger.Info("Loaded %d models from %s", reg.Len(), configPath)

	outDir := os.Getenv("RESULTS_DIR")
	if outDir == "" {
		outDir = "results"
	}

	st := store.New(outDir)
	manager := server.NewRunManager(reg, invoke.NewMux(reg), st)
	handlers := server.NewHandlers(reg, manager, st)

	// Set Gin mode based on environment
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.DebugMode)
	}

	// Create Gin router without default middleware (we use custom middleware)
	router := gin.New()
	server.SetupRoutes(router, handlers)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", port),
		Handler:        router,
		ReadTimeout:    5 * time.Minute,
		WriteTimeout:   0,       // Disabled for WebSocket connections
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		server.AppLogger.Info("Server starting on port %s", port)
		server.AppLogger.Info("API endpoints available at http://localhost:%s/api", port)
		server.AppLogger.Info("WebSocket endpoint available at ws://localhost:%s/ws/runs/:id", port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.AppLogger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	server.AppLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		server.AppLogger.Error("Server forced to shutdown: %v", err)
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	server.AppLogger.Info("Server exited gracefully")
	return nil
}
