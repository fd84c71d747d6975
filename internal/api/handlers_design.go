// handlers_design.go - Saved design and asset handlers
package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/designstore"
	"github.com/teestudio/backend/internal/models"
	"github.com/teestudio/backend/internal/storage"
)

// assetRoute prefixes the public URL of a stored asset.
const assetRoute = "/api/assets/"

// DesignOptions tunes the design handler.
type DesignOptions struct {
	AllowDeletion bool
	MockupSize    int
}

// DesignHandlerImpl implements the DesignHandler interface
type DesignHandlerImpl struct {
	designs  designstore.Store
	assets   storage.Store
	sessions SessionManager
	opts     DesignOptions
}

// NewDesignHandler creates a new design handler
func NewDesignHandler(designs designstore.Store, assets storage.Store, sessions SessionManager, opts DesignOptions) DesignHandler {
	if opts.MockupSize == 0 {
		opts.MockupSize = 600
	}
	return &DesignHandlerImpl{
		designs:  designs,
		assets:   assets,
		sessions: sessions,
		opts:     opts,
	}
}

// HandleCreateDesign saves a design for the signed-in user. With a sessionId
// the session's canvas is flattened and stored together with a mockup;
// otherwise imageUrl must point at an existing image.
func (h *DesignHandlerImpl) HandleCreateDesign(c echo.Context) error {
	var req designRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	d := &models.Design{UserID: userID(c)}
	req.apply(d)
	if d.Name == "" {
		return NewValidationError("name")
	}

	if req.SessionID != nil && *req.SessionID != "" {
		info, ok := h.sessions.Info(*req.SessionID)
		if !ok {
			return NewNotFoundError("session", *req.SessionID)
		}
		if d.TShirtColor == "" {
			d.TShirtColor = info.ShirtColor
		}
		if err := validateShirtColor(d.TShirtColor); err != nil {
			return err
		}
		if err := h.capture(d, *req.SessionID); err != nil {
			return err
		}
	} else {
		if d.ImageURL == "" {
			return NewValidationError("sessionId")
		}
		if err := validateShirtColor(d.TShirtColor); err != nil {
			return err
		}
	}

	if err := h.designs.Create(c.Request().Context(), d); err != nil {
		h.removeAssets(d.ImageAssetID, d.MockupAssetID)
		return toAPIError(err, "failed to save design")
	}
	slog.Info("design saved", "design", shortID(d.ID), "user", shortID(d.UserID))
	return c.JSON(http.StatusCreated, d)
}

// HandleListDesigns returns the signed-in user's designs, newest first
func (h *DesignHandlerImpl) HandleListDesigns(c echo.Context) error {
	designs, err := h.designs.ListByUser(c.Request().Context(), userID(c))
	if err != nil {
		return NewInternalError("failed to list designs", err)
	}
	if designs == nil {
		designs = []*models.Design{}
	}
	return c.JSON(http.StatusOK, designs)
}

// HandleGetDesign returns one design owned by the signed-in user
func (h *DesignHandlerImpl) HandleGetDesign(c echo.Context) error {
	id := c.Param("id")
	d, err := h.designs.Get(c.Request().Context(), userID(c), id)
	if err != nil {
		return h.designError(err, id)
	}
	return c.JSON(http.StatusOK, d)
}

// HandleUpdateDesign changes a design. A sessionId replaces its image and
// mockup with the session's current canvas.
func (h *DesignHandlerImpl) HandleUpdateDesign(c echo.Context) error {
	id := c.Param("id")
	var req designRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	ctx := c.Request().Context()
	d, err := h.designs.Get(ctx, userID(c), id)
	if err != nil {
		return h.designError(err, id)
	}
	oldImage, oldMockup := d.ImageAssetID, d.MockupAssetID

	req.apply(d)
	if d.Name == "" {
		return NewValidationError("name")
	}
	if err := validateShirtColor(d.TShirtColor); err != nil {
		return err
	}

	recaptured := req.SessionID != nil && *req.SessionID != ""
	if recaptured {
		if err := h.capture(d, *req.SessionID); err != nil {
			return err
		}
	}

	if err := h.designs.Update(ctx, d); err != nil {
		if recaptured {
			h.removeAssets(d.ImageAssetID, d.MockupAssetID)
		}
		return h.designError(err, id)
	}
	if recaptured {
		h.removeAssets(oldImage, oldMockup)
	}
	return c.JSON(http.StatusOK, d)
}

// HandleDeleteDesign deletes a design and its stored images
func (h *DesignHandlerImpl) HandleDeleteDesign(c echo.Context) error {
	if !h.opts.AllowDeletion {
		return NewForbiddenError("design deletion is disabled")
	}
	id := c.Param("id")
	ctx := c.Request().Context()

	d, err := h.designs.Get(ctx, userID(c), id)
	if err != nil {
		return h.designError(err, id)
	}
	if err := h.designs.Delete(ctx, userID(c), id); err != nil {
		return h.designError(err, id)
	}
	h.removeAssets(d.ImageAssetID, d.MockupAssetID)
	return c.NoContent(http.StatusNoContent)
}

// HandleGetAsset serves a stored image
func (h *DesignHandlerImpl) HandleGetAsset(c echo.Context) error {
	id := c.Param("id")
	info, err := h.assets.Get(id)
	if err != nil {
		return NewNotFoundError("asset", id)
	}
	path, err := h.assets.GetFilePath(id)
	if err != nil {
		return NewNotFoundError("asset", id)
	}
	c.Response().Header().Set(echo.HeaderContentType, info.ContentType)
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.File(path)
}

// capture stores the session's flattened design and its mockup and points d
// at them.
func (h *DesignHandlerImpl) capture(d *models.Design, sessionID string) error {
	e, err := h.sessions.Engine(sessionID)
	if err != nil {
		return NewNotFoundError("session", sessionID)
	}
	dataURL, err := e.ExportNow()
	if err != nil {
		return toAPIError(err, "failed to export design")
	}
	if dataURL == "" {
		return NewConflictError("the canvas holds no design yet")
	}

	mock, err := renderMockup(e, d.TShirtColor, h.opts.MockupSize)
	if err != nil {
		return err
	}

	img, err := h.assets.SaveDataURL(d.Name+".png", models.AssetExport, dataURL)
	if err != nil {
		return NewInternalError("failed to store design image", err)
	}
	mk, err := h.assets.Save(d.Name+"-mockup.png", models.AssetMockup, bytes.NewReader(mock))
	if err != nil {
		h.removeAssets(img.ID)
		return NewInternalError("failed to store mockup", err)
	}

	d.ImageAssetID = img.ID
	d.ImageURL = assetRoute + img.ID
	d.MockupAssetID = mk.ID
	return nil
}

func (h *DesignHandlerImpl) removeAssets(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := h.assets.Delete(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("failed to remove asset", "asset", shortID(id), "error", err)
		}
	}
}

func (h *DesignHandlerImpl) designError(err error, id string) error {
	if errors.Is(err, designstore.ErrNotFound) {
		return NewNotFoundError("design", id)
	}
	return toAPIError(err, "design store failure")
}

func validateShirtColor(c string) error {
	if c == "" {
		return NewValidationError("tshirtColor")
	}
	if _, err := canvas.ParseColor(c); err != nil {
		return NewBadRequestError("invalid tshirtColor", err)
	}
	return nil
}

// Request/Response types

// designRequest serves both create and update; nil fields are left as they are.
type designRequest struct {
	Name        *string           `json:"name"`
	TShirtColor *string           `json:"tshirtColor"`
	SessionID   *string           `json:"sessionId"`
	ImageURL    *string           `json:"imageUrl"`
	Prompt      *string           `json:"prompt"`
	Answers     map[string]string `json:"answers"`
}

func (r *designRequest) apply(d *models.Design) {
	if r.Name != nil {
		d.Name = strings.TrimSpace(*r.Name)
	}
	if r.TShirtColor != nil {
		d.TShirtColor = *r.TShirtColor
	}
	if r.ImageURL != nil {
		d.ImageURL = *r.ImageURL
	}
	if r.Prompt != nil {
		d.Prompt = *r.Prompt
	}
	if r.Answers != nil {
		d.Answers = r.Answers
	}
}
