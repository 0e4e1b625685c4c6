package server

import (
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

// DefaultCORSConfig returns default CORS configuration
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Cache-Control"},
		MaxAge:       86400,
	}
}

// LoadCORSConfigFromEnv loads CORS configuration from environment variables
func LoadCORSConfigFromEnv() CORSConfig {
	config := DefaultCORSConfig()

	if origins := os.Getenv("CORS_ORIGIN"); origins != "" {
		config.AllowOrigins = strings.Split(origins, ",")
		for i, origin := range config.AllowOrigins {
			config.AllowOrigins[i] = strings.TrimSpace(origin)
		}
	}

	if os.Getenv("GIN_MODE") == "release" && len(config.AllowOrigins) == 1 && config.AllowOrigins[0] == "*" {
		AppLogger.Warn("CORS is set to allow all origins in production mode. Consider setting CORS_ORIGIN environment variable.")
	}

	return config
}

// CORSMiddleware adds CORS headers to allow frontend access
func CORSMiddleware() gin.HandlerFunc {
	config := LoadCORSConfigFromEnv()

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if len(config.AllowOrigins) == 1 && config.AllowOrigins[0] == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowedOrigin := range config.AllowOrigins {
				if allowedOrigin == origin || allowedOrigin == "*" {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))
		c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
		c.Writer.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", config.MaxAge))

		// Handle preflight requests
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// LoggingMiddleware logs request details with structured format
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(startTime)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"method":   c.Request.Method,
			"path":     path,
			"status":   statusCode,
			"duration": duration.String(),
			"ip":       c.ClientIP(),
		}
		if query != "" {
			fields["query"] = query
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			AppLogger.ErrorWithFields("Request failed", fields)
		case statusCode >= 400:
			AppLogger.InfoWithFields("Request rejected", fields)
		default:
			AppLogger.InfoWithFields("Request completed", fields)
		}
	}
}

// RecoveryMiddleware recovers from panics and returns a 500 error
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				AppLogger.ErrorWithFields("PANIC RECOVERED", map[string]interface{}{
					"error": err,
					"stack": string(debug.Stack()),
				})

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Error:   "Internal Server Error",
					Message: "An unexpected error occurred. Please try again later.",
					Code:    http.StatusInternalServerError,
				})

				c.Abort()
			}
		}()

		c.Next()
	}
}

// RequestValidationMiddleware validates common request requirements
func RequestValidationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "POST" || c.Request.Method == "PUT" {
			contentType := c.GetHeader("Content-Type")
			if strings.HasPrefix(c.Request.URL.Path, "/api/") && c.Request.ContentLength > 0 {
				if !strings.Contains(contentType, "application/json") {
					c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{
						Error:   "Unsupported Media Type",
						Message: "Content-Type must be application/json",
						Code:    http.StatusUnsupportedMediaType,
					})
					c.Abort()
					return
				}
			}
		}

		c.Next()
	}
}
