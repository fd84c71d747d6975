// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/models"
	"github.com/teestudio/backend/internal/session"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionHandler handles design sessions and their canvas
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleGetScene(c echo.Context) error
	HandleGetSceneMsgpack(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleKeepAlive(c echo.Context) error

	HandleAddText(c echo.Context) error
	HandleAddShape(c echo.Context) error
	HandleSelect(c echo.Context) error
	HandleUpdateActive(c echo.Context) error
	HandleDeleteActive(c echo.Context) error

	HandleLoadImage(c echo.Context) error
	HandleUploadImage(c echo.Context) error

	HandleSetDrawingMode(c echo.Context) error
	HandleSetBrush(c echo.Context) error
	HandleCommitStroke(c echo.Context) error

	HandlePreview(c echo.Context) error
	HandleExport(c echo.Context) error
	HandleMockup(c echo.Context) error
}

// EventsHandler pushes session events to clients
type EventsHandler interface {
	HandleEvents(c echo.Context) error
}

// GenerateHandler handles AI image generation jobs
type GenerateHandler interface {
	HandleStartGeneration(c echo.Context) error
	HandleGetJob(c echo.Context) error
}

// DesignHandler handles saved designs and their assets
type DesignHandler interface {
	HandleCreateDesign(c echo.Context) error
	HandleListDesigns(c echo.Context) error
	HandleGetDesign(c echo.Context) error
	HandleUpdateDesign(c echo.Context) error
	HandleDeleteDesign(c echo.Context) error
	HandleGetAsset(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Create(width, height int, background, shirtColor string) (*models.SessionInfo, error)
	Info(id string) (models.SessionInfo, bool)
	Engine(id string) (*canvas.Engine, error)
	Touch(id string) bool
	Delete(id string) bool
	Subscribe(id string) (<-chan session.Event, func(), error)
	Count() int
}

// JobManager runs generation jobs
type JobManager interface {
	StartJob(sessionID, prompt string) (models.GenerationJob, error)
	GetJob(id string) (models.GenerationJob, bool)
}
