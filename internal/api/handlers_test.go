package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/models"
	"github.com/teestudio/backend/internal/session"
	"github.com/teestudio/backend/internal/testutil"
)

type testServer struct {
	e        *echo.Echo
	sessions *session.Manager
	assets   *testutil.MockStorage
	designs  *testutil.MockDesignStore
}

type serverOption func(*Dependencies)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	sessions := session.NewManager(10, canvas.Options{Debounce: 20 * time.Millisecond})
	t.Cleanup(sessions.Close)

	s := &testServer{
		e:        echo.New(),
		sessions: sessions,
		assets:   testutil.NewMockStorageWithTempDir(t.TempDir()),
		designs:  testutil.NewMockDesignStore(),
	}
	deps := &Dependencies{
		Sessions: sessions,
		Assets:   s.assets,
		Designs:  s.designs,
		Defaults: SessionDefaults{
			Width:      300,
			Height:     300,
			Background: "#ffffff",
			ShirtColor: "#1e40af",
			MockupSize: 128,
		},
		Design:  DesignOptions{AllowDeletion: true},
		Version: "test",
	}
	for _, o := range opts {
		o(deps)
	}

	SetupMiddleware(s.e, MiddlewareConfig{})
	RegisterRoutes(s.e, NewHandlers(deps))
	return s
}

// do sends a request through the router. body is JSON-encoded unless it is
// an io.Reader. headers are key/value pairs.
func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		r = b
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if _, isReader := body.(io.Reader); body != nil && !isReader {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createSession(t *testing.T) models.SessionInfo {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/sessions", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var info models.SessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	return info
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeJSON[APIError](t, rec).Code
}

func countKind(objs []canvas.ObjectView, kind string) int {
	n := 0
	for _, o := range objs {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

func countRole(objs []canvas.ObjectView, role string) int {
	n := 0
	for _, o := range objs {
		if o.Role == role {
			n++
		}
	}
	return n
}
