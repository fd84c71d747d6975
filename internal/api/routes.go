// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/teestudio/backend/internal/designstore"
	"github.com/teestudio/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions SessionManager
	Jobs     JobManager // nil disables generation
	Assets   storage.Store
	Designs  designstore.Store
	Defaults SessionDefaults
	Design   DesignOptions
	Version  string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Session  SessionHandler
	Events   EventsHandler
	Generate GenerateHandler
	Design   DesignHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	design := deps.Design
	if design.MockupSize == 0 {
		design.MockupSize = deps.Defaults.MockupSize
	}
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.Sessions),
		Session:  NewSessionHandler(deps.Sessions, deps.Assets, deps.Defaults),
		Events:   NewEventsHandler(deps.Sessions),
		Generate: NewGenerateHandler(deps.Sessions, deps.Jobs),
		Design:   NewDesignHandler(deps.Designs, deps.Assets, deps.Sessions, design),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Design session routes
	sessionGroup := e.Group("/api/sessions")
	sessionGroup.POST("", handlers.Session.HandleCreateSession)
	sessionGroup.GET("/:id", handlers.Session.HandleGetSession)
	sessionGroup.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessionGroup.POST("/:id/keepalive", handlers.Session.HandleKeepAlive)
	sessionGroup.GET("/:id/scene", handlers.Session.HandleGetScene)
	sessionGroup.GET("/:id/scene/msgpack", handlers.Session.HandleGetSceneMsgpack)

	// Canvas objects
	sessionGroup.POST("/:id/text", handlers.Session.HandleAddText)
	sessionGroup.POST("/:id/shapes", handlers.Session.HandleAddShape)
	sessionGroup.POST("/:id/select", handlers.Session.HandleSelect)
	sessionGroup.PATCH("/:id/active", handlers.Session.HandleUpdateActive)
	sessionGroup.DELETE("/:id/active", handlers.Session.HandleDeleteActive)

	// Images
	sessionGroup.POST("/:id/image", handlers.Session.HandleLoadImage)
	sessionGroup.POST("/:id/image/upload", handlers.Session.HandleUploadImage)

	// Freehand drawing
	sessionGroup.PUT("/:id/drawing", handlers.Session.HandleSetDrawingMode)
	sessionGroup.PUT("/:id/brush", handlers.Session.HandleSetBrush)
	sessionGroup.POST("/:id/strokes", handlers.Session.HandleCommitStroke)

	// Output
	sessionGroup.GET("/:id/preview.png", handlers.Session.HandlePreview)
	sessionGroup.GET("/:id/export", handlers.Session.HandleExport)
	sessionGroup.GET("/:id/mockup.png", handlers.Session.HandleMockup)
	sessionGroup.GET("/:id/ws", handlers.Events.HandleEvents)

	// Generation
	sessionGroup.POST("/:id/generate", handlers.Generate.HandleStartGeneration)
	e.GET("/api/generate/:jobId", handlers.Generate.HandleGetJob)

	// Saved designs, signed-in users only
	designGroup := e.Group("/api/designs", RequireUser())
	designGroup.POST("", handlers.Design.HandleCreateDesign)
	designGroup.GET("", handlers.Design.HandleListDesigns)
	designGroup.GET("/:id", handlers.Design.HandleGetDesign)
	designGroup.PUT("/:id", handlers.Design.HandleUpdateDesign)
	designGroup.DELETE("/:id", handlers.Design.HandleDeleteDesign)

	e.GET("/api/assets/:id", handlers.Design.HandleGetAsset)
}

// MiddlewareConfig selects the common middleware
type MiddlewareConfig struct {
	EnableCORS       bool
	AllowOrigins     string // comma separated
	BodyLimit        string // e.g. "25M"
	RequestLogging   bool
	ServiceKey       string // empty disables service-key auth
	ShowErrorDetails bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	e.HTTPErrorHandler = NewErrorHandler(cfg.ShowErrorDetails)

	e.Use(middleware.Recover())

	if cfg.RequestLogging {
		e.Use(requestLogger())
	}

	if cfg.EnableCORS {
		origins := []string{"*"}
		if cfg.AllowOrigins != "" {
			origins = strings.Split(cfg.AllowOrigins, ",")
			for i := range origins {
				origins[i] = strings.TrimSpace(origins[i])
			}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowHeaders: []string{
				echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
				echo.HeaderAuthorization, HeaderUserID,
			},
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.ServiceKey != "" {
		e.Use(ServiceKeyAuth(cfg.ServiceKey))
	}
}

// requestLogger writes one slog line per request.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote", v.RemoteIP,
			}
			if v.Error != nil {
				slog.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Debug("request", attrs...)
			return nil
		},
	})
}
