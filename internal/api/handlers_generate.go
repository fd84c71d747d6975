// handlers_generate.go - AI image generation handlers
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// GenerateHandlerImpl implements the GenerateHandler interface
type GenerateHandlerImpl struct {
	sessions SessionManager
	jobs     JobManager
}

// NewGenerateHandler creates a new generation handler. A nil jobs manager
// makes every generation request fail with 503.
func NewGenerateHandler(sessions SessionManager, jobs JobManager) GenerateHandler {
	return &GenerateHandlerImpl{
		sessions: sessions,
		jobs:     jobs,
	}
}

// HandleStartGeneration queues a prompt; the image lands on the session's
// canvas when the job completes
func (h *GenerateHandlerImpl) HandleStartGeneration(c echo.Context) error {
	if h.jobs == nil {
		return NewServiceUnavailableError("image generation is not configured")
	}

	id := c.Param("id")
	if _, ok := h.sessions.Info(id); !ok {
		return NewNotFoundError("session", id)
	}

	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return NewValidationError("prompt")
	}

	job, err := h.jobs.StartJob(id, req.Prompt)
	if err != nil {
		return toAPIError(err, "failed to start generation")
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleGetJob returns the status of a generation job
func (h *GenerateHandlerImpl) HandleGetJob(c echo.Context) error {
	if h.jobs == nil {
		return NewServiceUnavailableError("image generation is not configured")
	}
	id := c.Param("jobId")
	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("job", id)
	}
	return c.JSON(http.StatusOK, job)
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}
