package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/content-hub/app/auth"
)

const (
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods = "GET, POST, PATCH, DELETE, OPTIONS"

	userKey = "user"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, functionKey string) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	// CORS middleware; preflight requests are answered here
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", corsAllowMethods)
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, functionKey)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, functionKey string) {
	r.GET("/health", handler.GetHealth)

	functions := r.Group("/functions")
	if functionKey != "" {
		functions.Use(functionKeyMiddleware(functionKey))
		slog.Info("Parse function requires a key")
	}
	functions.POST("/parse-feed", handler.ParseFeed)

	api := r.Group("/api")
	api.POST("/auth/login", handler.Login)
	api.GET("/content", handler.ListContent)
	api.GET("/content/rss", handler.ContentRSS)

	session := api.Group("")
	session.Use(sessionMiddleware(handler.auth))
	session.POST("/auth/logout", handler.Logout)

	// the importer performs its own admin check when a batch runs
	session.POST("/admin/import/:kind/parse", handler.ParseFeeds)

	admin := session.Group("/admin")
	admin.Use(requireAdmin())
	{
		admin.GET("/sources", handler.ListSources)
		admin.DELETE("/sources/:id", handler.DeleteSource)

		admin.GET("/import/:kind", handler.GetImportState)
		admin.POST("/import/:kind/feeds", handler.AddFeed)
		admin.PATCH("/import/:kind/feeds/:index", handler.UpdateFeed)
		admin.DELETE("/import/:kind/feeds/:index", handler.RemoveFeed)
		admin.POST("/import/:kind/preset", handler.LoadPreset)

		admin.GET("/notifications", handler.ListNotifications)
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "Content Hub",
			"version":     handler.version,
			"description": "Content aggregation service with WordPress and podcast feed import",
			"endpoints": map[string]string{
				"health":        "/health",
				"content":       "/api/content?type=<all|video|blog|podcast>&q=<search>",
				"rss":           "/api/content/rss?type=<all|video|blog|podcast>",
				"parse":         "/functions/parse-feed (POST)",
				"login":         "/api/auth/login (POST)",
				"sources":       "/api/admin/sources (requires session)",
				"import":        "/api/admin/import/<wordpress|podcast> (requires session)",
				"notifications": "/api/admin/notifications (requires session)",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// bearerToken reads "Authorization: Bearer <token>"
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// functionKeyMiddleware guards the parse function with a shared key sent as
// a bearer token or in the apikey header.
func functionKeyMiddleware(functionKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("apikey")
		if providedKey == "" {
			providedKey = bearerToken(c)
		}

		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization header"})
			return
		}
		if providedKey != functionKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization key"})
			return
		}

		c.Next()
	}
}

// sessionMiddleware resolves the bearer session token and attaches the user
// to the request context.
func sessionMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		user, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrSessionNotFound) {
				slog.Error("Session lookup failed", "error", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		c.Set(userKey, user)
		c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), user))
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.UserFromContext(c.Request.Context())
		if user == nil || !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You must be an admin to manage content sources"})
			return
		}
		c.Next()
	}
}
