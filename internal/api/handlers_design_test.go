package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teestudio/backend/internal/models"
)

const alice, bob = "user-alice", "user-bob"

func strPtr(s string) *string { return &s }

// sessionWithDesign returns a session whose canvas holds some text.
func sessionWithDesign(t *testing.T, s *testServer) string {
	t.Helper()
	id := s.createSession(t).ID
	rec := s.do(t, http.MethodPost, "/api/sessions/"+id+"/text", addTextRequest{Content: "TEE"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return id
}

func TestDesignHandler_RequiresUser(t *testing.T) {
	s := newTestServer(t)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/designs"},
		{http.MethodPost, "/api/designs"},
		{http.MethodGet, "/api/designs/x"},
		{http.MethodPut, "/api/designs/x"},
		{http.MethodDelete, "/api/designs/x"},
	} {
		rec := s.do(t, r.method, r.path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.path)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
	}
}

func TestDesignHandler_CreateFromSession(t *testing.T) {
	s := newTestServer(t)

	t.Run("empty canvas", func(t *testing.T) {
		id := s.createSession(t).ID
		rec := s.do(t, http.MethodPost, "/api/designs",
			designRequest{Name: strPtr("blank"), SessionID: &id}, HeaderUserID, alice)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Zero(t, s.designs.Count())
		assert.Zero(t, s.assets.GetFileCount())
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/designs",
			designRequest{Name: strPtr("x"), SessionID: strPtr("nope")}, HeaderUserID, alice)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("saves image and mockup", func(t *testing.T) {
		id := sessionWithDesign(t, s)
		rec := s.do(t, http.MethodPost, "/api/designs", designRequest{
			Name:      strPtr("Summer tee"),
			SessionID: &id,
			Prompt:    strPtr("a sunny beach"),
			Answers:   map[string]string{"style": "retro"},
		}, HeaderUserID, alice)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		d := decodeJSON[models.Design](t, rec)
		assert.NotEmpty(t, d.ID)
		assert.Equal(t, alice, d.UserID)
		assert.Equal(t, "#1e40af", d.TShirtColor, "colour defaults to the session's shirt")
		assert.Equal(t, assetRoute+d.ImageAssetID, d.ImageURL)
		assert.NotEmpty(t, d.MockupAssetID)
		assert.Equal(t, "retro", d.Answers["style"])

		assert.Equal(t, 1, s.assets.CountKind(models.AssetExport))
		assert.Equal(t, 1, s.assets.CountKind(models.AssetMockup))

		rec = s.do(t, http.MethodGet, d.ImageURL, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
	})
}

func TestDesignHandler_CreateValidation(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name    string
		req     designRequest
		errCode string
	}{
		{"no name", designRequest{ImageURL: strPtr("https://cdn/x.png"), TShirtColor: strPtr("#fff")}, "VALIDATION_ERROR"},
		{"no image source", designRequest{Name: strPtr("n"), TShirtColor: strPtr("#fff")}, "VALIDATION_ERROR"},
		{"no colour", designRequest{Name: strPtr("n"), ImageURL: strPtr("https://cdn/x.png")}, "VALIDATION_ERROR"},
		{"bad colour", designRequest{Name: strPtr("n"), ImageURL: strPtr("https://cdn/x.png"), TShirtColor: strPtr("plaid")}, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/designs", tt.req, HeaderUserID, alice)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.errCode, errorCode(t, rec))
		})
	}

	rec := s.do(t, http.MethodPost, "/api/designs", designRequest{
		Name:        strPtr("external"),
		ImageURL:    strPtr("https://cdn.example/x.png"),
		TShirtColor: strPtr("black"),
	}, HeaderUserID, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Zero(t, s.assets.GetFileCount())
}

func TestDesignHandler_Ownership(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/designs", designRequest{
		Name:        strPtr("mine"),
		ImageURL:    strPtr("https://cdn.example/x.png"),
		TShirtColor: strPtr("#000"),
	}, HeaderUserID, alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decodeJSON[models.Design](t, rec)
	path := "/api/designs/" + d.ID

	rec = s.do(t, http.MethodGet, path, nil, HeaderUserID, alice)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, path, nil, HeaderUserID, bob)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodPut, path, designRequest{Name: strPtr("stolen")}, HeaderUserID, bob)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, path, nil, HeaderUserID, bob)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/designs", nil, HeaderUserID, bob)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = s.do(t, http.MethodGet, "/api/designs", nil, HeaderUserID, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[[]models.Design](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0].Name)
}

func TestDesignHandler_Update(t *testing.T) {
	s := newTestServer(t)
	sid := sessionWithDesign(t, s)

	rec := s.do(t, http.MethodPost, "/api/designs",
		designRequest{Name: strPtr("v1"), SessionID: &sid}, HeaderUserID, alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decodeJSON[models.Design](t, rec)
	path := "/api/designs/" + d.ID

	rec = s.do(t, http.MethodPut, path, designRequest{Name: strPtr("v2"), TShirtColor: strPtr("#ff0000")}, HeaderUserID, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeJSON[models.Design](t, rec)
	assert.Equal(t, "v2", updated.Name)
	assert.Equal(t, "#ff0000", updated.TShirtColor)
	assert.Equal(t, d.ImageAssetID, updated.ImageAssetID, "assets kept without a session")

	rec = s.do(t, http.MethodPut, path, designRequest{SessionID: &sid}, HeaderUserID, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	recaptured := decodeJSON[models.Design](t, rec)
	assert.NotEqual(t, d.ImageAssetID, recaptured.ImageAssetID)
	assert.NotEqual(t, d.MockupAssetID, recaptured.MockupAssetID)
	assert.Equal(t, 1, s.assets.CountKind(models.AssetExport), "old image removed")
	assert.Equal(t, 1, s.assets.CountKind(models.AssetMockup), "old mockup removed")

	rec = s.do(t, http.MethodPut, path, designRequest{Name: strPtr(" ")}, HeaderUserID, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPut, "/api/designs/missing", designRequest{Name: strPtr("x")}, HeaderUserID, alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDesignHandler_Delete(t *testing.T) {
	s := newTestServer(t)
	sid := sessionWithDesign(t, s)

	rec := s.do(t, http.MethodPost, "/api/designs",
		designRequest{Name: strPtr("gone soon"), SessionID: &sid}, HeaderUserID, alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decodeJSON[models.Design](t, rec)
	require.Equal(t, 2, s.assets.GetFileCount())

	rec = s.do(t, http.MethodDelete, "/api/designs/"+d.ID, nil, HeaderUserID, alice)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, s.designs.Count())
	assert.Zero(t, s.assets.GetFileCount())

	rec = s.do(t, http.MethodDelete, "/api/designs/"+d.ID, nil, HeaderUserID, alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, d.ImageURL, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDesignHandler_DeletionDisabled(t *testing.T) {
	s := newTestServer(t, func(d *Dependencies) { d.Design.AllowDeletion = false })
	rec := s.do(t, http.MethodPost, "/api/designs", designRequest{
		Name:        strPtr("keep"),
		ImageURL:    strPtr("https://cdn.example/x.png"),
		TShirtColor: strPtr("#000"),
	}, HeaderUserID, alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decodeJSON[models.Design](t, rec)

	rec = s.do(t, http.MethodDelete, "/api/designs/"+d.ID, nil, HeaderUserID, alice)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1, s.designs.Count())
}

func TestDesignHandler_StoreFailure(t *testing.T) {
	s := newTestServer(t)
	sid := sessionWithDesign(t, s)
	s.designs.Err = assert.AnError

	rec := s.do(t, http.MethodPost, "/api/designs",
		designRequest{Name: strPtr("x"), SessionID: &sid}, HeaderUserID, alice)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, s.assets.GetFileCount(), "captured assets are rolled back")
}

func TestDesignHandler_UnknownAsset(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/assets/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
