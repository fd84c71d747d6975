// handlers_session.go - Design session and canvas handlers
package api

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/mockup"
	"github.com/teestudio/backend/internal/models"
	"github.com/teestudio/backend/internal/storage"
	"github.com/vmihailenco/msgpack/v5"
)

// defaultFontSize is used when an add-text request leaves the size out.
const defaultFontSize = 32

// SessionDefaults fills the fields a create request leaves empty.
type SessionDefaults struct {
	Width      int
	Height     int
	Background string
	ShirtColor string
	MockupSize int
}

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions SessionManager
	assets   storage.Store
	defaults SessionDefaults
}

// NewSessionHandler creates a new session handler. assets may be nil, in
// which case uploaded images are loaded but not kept.
func NewSessionHandler(sessions SessionManager, assets storage.Store, defaults SessionDefaults) SessionHandler {
	if defaults.ShirtColor == "" {
		defaults.ShirtColor = "#ffffff"
	}
	if defaults.Background == "" {
		defaults.Background = "#ffffff"
	}
	if defaults.MockupSize == 0 {
		defaults.MockupSize = 600
	}
	return &SessionHandlerImpl{
		sessions: sessions,
		assets:   assets,
		defaults: defaults,
	}
}

// engine resolves the :id path parameter to a live canvas.
func (h *SessionHandlerImpl) engine(c echo.Context) (*canvas.Engine, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}
	e, err := h.sessions.Engine(id)
	if err != nil {
		return nil, NewNotFoundError("session", id)
	}
	return e, nil
}

// mutate runs fn against the session's canvas and responds with the
// resulting scene.
func (h *SessionHandlerImpl) mutate(c echo.Context, status int, fn func(*canvas.Engine) error) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	if err := fn(e); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return toAPIError(err, "canvas update failed")
	}
	return c.JSON(status, e.Snapshot())
}

// HandleCreateSession starts a design session with an initialised canvas
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	req.applyDefaults(h.defaults)
	if err := req.validate(); err != nil {
		return err
	}

	info, err := h.sessions.Create(req.Width, req.Height, req.Background, req.ShirtColor)
	if err != nil {
		return toAPIError(err, "failed to create session")
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleGetSession returns session metadata
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("id")
	info, ok := h.sessions.Info(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	resp := sessionResponse{SessionInfo: info}
	if e, err := h.sessions.Engine(id); err == nil {
		resp.HasDesign = e.LastExport() != ""
		resp.DrawingMode = e.DrawingMode()
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleGetScene returns the scene as JSON
func (h *SessionHandlerImpl) HandleGetScene(c echo.Context) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e.Snapshot())
}

// HandleGetSceneMsgpack returns the scene encoded with msgpack
func (h *SessionHandlerImpl) HandleGetSceneMsgpack(c echo.Context) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(e.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleDeleteSession tears the session and its canvas down
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if !h.sessions.Delete(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleKeepAlive extends session lifetime while the editor is open
func (h *SessionHandlerImpl) HandleKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if ok := h.sessions.Touch(id); !ok {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleAddText adds a text object
func (h *SessionHandlerImpl) HandleAddText(c echo.Context) error {
	var req addTextRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	return h.mutate(c, http.StatusCreated, func(e *canvas.Engine) error {
		return e.AddText(req.spec())
	})
}

// HandleAddShape adds a rectangle or circle
func (h *SessionHandlerImpl) HandleAddShape(c echo.Context) error {
	var req addShapeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	return h.mutate(c, http.StatusCreated, func(e *canvas.Engine) error {
		return e.AddShape(canvas.ShapeSpec{Kind: canvas.ShapeKind(req.Kind), Fill: req.Fill, Size: req.Size})
	})
}

// HandleSelect makes an object active; an empty id clears the selection
func (h *SessionHandlerImpl) HandleSelect(c echo.Context) error {
	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	return h.mutate(c, http.StatusOK, func(e *canvas.Engine) error {
		if req.ID == "" {
			e.ClearSelection()
			return nil
		}
		return e.Select(req.ID)
	})
}

// HandleUpdateActive sets one property of the active object
func (h *SessionHandlerImpl) HandleUpdateActive(c echo.Context) error {
	var req updatePropertyRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Property == "" {
		return NewValidationError("property")
	}
	return h.mutate(c, http.StatusOK, func(e *canvas.Engine) error {
		return e.UpdateActiveObjectProperty(req.Property, req.Value)
	})
}

// HandleDeleteActive removes the active object
func (h *SessionHandlerImpl) HandleDeleteActive(c echo.Context) error {
	return h.mutate(c, http.StatusOK, func(e *canvas.Engine) error {
		return e.DeleteActiveObject()
	})
}

// HandleLoadImage loads an image from a data URL or http(s) URL
func (h *SessionHandlerImpl) HandleLoadImage(c echo.Context) error {
	var req loadImageRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if strings.TrimSpace(req.Source) == "" {
		return NewValidationError("source")
	}

	e, err := h.engine(c)
	if err != nil {
		return err
	}
	loaded, err := loadImage(c, e, req.Source)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, imageResponse{Loaded: loaded, Scene: e.Snapshot()})
}

// HandleUploadImage accepts an image as multipart/form-data, keeps it as an
// asset and loads it onto the canvas
func (h *SessionHandlerImpl) HandleUploadImage(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	e, err := h.engine(c)
	if err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return NewInternalError("failed to read uploaded file", err)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return NewBadRequestError("file is not an image", fmt.Errorf("detected %s", contentType))
	}

	var asset *models.FileInfo
	if h.assets != nil {
		asset, err = h.assets.Save(file.Filename, models.AssetUpload, bytes.NewReader(data))
		if err != nil {
			return NewInternalError("failed to save file", err)
		}
	}

	loaded, err := loadImage(c, e, canvas.EncodeDataURL(contentType, data))
	if err != nil {
		if asset != nil {
			_ = h.assets.Delete(asset.ID)
		}
		return err
	}
	return c.JSON(http.StatusCreated, imageResponse{Loaded: loaded, Asset: asset, Scene: e.Snapshot()})
}

// loadImage reports false when the source is already on the canvas.
func loadImage(c echo.Context, e *canvas.Engine, source string) (bool, error) {
	err := e.LoadImage(c.Request().Context(), canvas.Source{Value: source, Origin: canvas.OriginUser})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, canvas.ErrDuplicateSource):
		return false, nil
	default:
		return false, toAPIError(err, "failed to load image")
	}
}

// HandleSetDrawingMode switches freehand drawing on or off
func (h *SessionHandlerImpl) HandleSetDrawingMode(c echo.Context) error {
	var req drawingRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Enabled == nil {
		return NewValidationError("enabled")
	}
	return h.mutate(c, http.StatusOK, func(e *canvas.Engine) error {
		return e.SetDrawingMode(*req.Enabled)
	})
}

// HandleSetBrush changes brush colour and/or width for the next stroke
func (h *SessionHandlerImpl) HandleSetBrush(c echo.Context) error {
	var req brushRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Color == nil && req.Width == nil {
		return NewValidationError("brush")
	}
	return h.mutate(c, http.StatusOK, func(e *canvas.Engine) error {
		if req.Color != nil {
			if err := e.SetBrushColor(*req.Color); err != nil {
				return err
			}
		}
		if req.Width != nil {
			return e.SetBrushWidth(*req.Width)
		}
		return nil
	})
}

// HandleCommitStroke adds a finished freehand stroke
func (h *SessionHandlerImpl) HandleCommitStroke(c echo.Context) error {
	var req strokeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if len(req.Points) == 0 {
		return NewValidationError("points")
	}
	return h.mutate(c, http.StatusCreated, func(e *canvas.Engine) error {
		return e.CommitStroke(req.Points)
	})
}

// HandlePreview renders the on-screen view, guide included, as PNG
func (h *SessionHandlerImpl) HandlePreview(c echo.Context) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	img, err := e.Render()
	if err != nil {
		return toAPIError(err, "failed to render preview")
	}
	data, err := encodePNG(img)
	if err != nil {
		return NewInternalError("failed to encode preview", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "image/png", data)
}

// HandleExport flattens the design. It responds 204 while the canvas holds
// no design content. ?format=png returns the image itself.
func (h *SessionHandlerImpl) HandleExport(c echo.Context) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	dataURL, err := e.ExportNow()
	if err != nil {
		return toAPIError(err, "failed to export design")
	}
	if dataURL == "" {
		return c.NoContent(http.StatusNoContent)
	}
	if c.QueryParam("format") == "png" {
		data, err := canvas.DecodeDataURL(dataURL)
		if err != nil {
			return NewInternalError("failed to decode export", err)
		}
		return c.Blob(http.StatusOK, "image/png", data)
	}
	return c.JSON(http.StatusOK, exportResponse{DataURL: dataURL})
}

// HandleMockup renders the design on a shirt in the session's colour.
// ?color overrides the shirt colour and ?size the square edge.
func (h *SessionHandlerImpl) HandleMockup(c echo.Context) error {
	id := c.Param("id")
	info, ok := h.sessions.Info(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	e, err := h.engine(c)
	if err != nil {
		return err
	}

	size := h.defaults.MockupSize
	if s := c.QueryParam("size"); s != "" {
		if size, err = strconv.Atoi(s); err != nil {
			return NewValidationError("size")
		}
	}
	color := info.ShirtColor
	if q := c.QueryParam("color"); q != "" {
		color = q
	}

	data, err := renderMockup(e, color, size)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/png", data)
}

// renderMockup flattens the design and places it on a shirt.
func renderMockup(e *canvas.Engine, shirtColor string, size int) ([]byte, error) {
	dataURL, err := e.ExportNow()
	if err != nil {
		return nil, toAPIError(err, "failed to export design")
	}
	var design image.Image
	if dataURL != "" {
		if design, err = decodeDataURLImage(dataURL); err != nil {
			return nil, NewInternalError("failed to decode export", err)
		}
	}
	img, err := mockup.Render(design, shirtColor, size)
	if err != nil {
		if errors.Is(err, mockup.ErrSize) {
			return nil, toAPIError(err, "")
		}
		return nil, NewBadRequestError("invalid shirt colour", err)
	}
	data, err := mockup.EncodePNG(img)
	if err != nil {
		return nil, NewInternalError("failed to encode mockup", err)
	}
	return data, nil
}

func decodeDataURLImage(dataURL string) (image.Image, error) {
	data, err := canvas.DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Request/Response types

type createSessionRequest struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
	ShirtColor string `json:"shirtColor"`
}

func (r *createSessionRequest) applyDefaults(d SessionDefaults) {
	if r.Width == 0 {
		r.Width = d.Width
	}
	if r.Height == 0 {
		r.Height = d.Height
	}
	if r.Background == "" {
		r.Background = d.Background
	}
	if r.ShirtColor == "" {
		r.ShirtColor = d.ShirtColor
	}
}

func (r *createSessionRequest) validate() error {
	if r.Width <= 0 {
		return NewValidationError("width")
	}
	if r.Height <= 0 {
		return NewValidationError("height")
	}
	return nil
}

type sessionResponse struct {
	models.SessionInfo
	HasDesign   bool `json:"hasDesign"`
	DrawingMode bool `json:"drawingMode"`
}

type addTextRequest struct {
	Content    string  `json:"content"`
	FontFamily string  `json:"fontFamily"`
	FontSize   float64 `json:"fontSize"`
	FontWeight string  `json:"fontWeight"`
	FontStyle  string  `json:"fontStyle"`
	Underline  bool    `json:"underline"`
	Color      string  `json:"color"`
}

func (r *addTextRequest) validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return NewValidationError("content")
	}
	if r.FontSize < 0 {
		return NewValidationError("fontSize")
	}
	return nil
}

func (r *addTextRequest) spec() canvas.TextSpec {
	size := r.FontSize
	if size == 0 {
		size = defaultFontSize
	}
	return canvas.TextSpec{
		Content:    r.Content,
		FontFamily: r.FontFamily,
		FontSize:   size,
		FontWeight: r.FontWeight,
		FontStyle:  r.FontStyle,
		Underline:  r.Underline,
		Color:      r.Color,
	}
}

type addShapeRequest struct {
	Kind string  `json:"kind"` // "rect" or "circle"
	Fill string  `json:"fill"`
	Size float64 `json:"size"`
}

func (r *addShapeRequest) validate() error {
	if r.Kind != string(canvas.ShapeRect) && r.Kind != string(canvas.ShapeCircle) {
		return NewValidationError("kind")
	}
	if r.Fill == "" {
		return NewValidationError("fill")
	}
	if r.Size <= 0 {
		return NewValidationError("size")
	}
	return nil
}

type selectRequest struct {
	ID string `json:"id"`
}

type updatePropertyRequest struct {
	Property string      `json:"property"`
	Value    interface{} `json:"value"`
}

type loadImageRequest struct {
	Source string `json:"source"` // data URL or http(s) URL
}

type imageResponse struct {
	Loaded bool             `json:"loaded"`
	Asset  *models.FileInfo `json:"asset,omitempty"`
	Scene  canvas.Snapshot  `json:"scene"`
}

type drawingRequest struct {
	Enabled *bool `json:"enabled"`
}

type brushRequest struct {
	Color *string  `json:"color"`
	Width *float64 `json:"width"`
}

type strokeRequest struct {
	Points []canvas.Point `json:"points"`
}

type exportResponse struct {
	DataURL string `json:"dataUrl"`
}
