package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/core"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	return &conf.Settings{
		Main: conf.MainSettings{Name: "api-test", DataDir: t.TempDir()},
		Vision: conf.VisionSettings{
			Backend:         "grid",
			GridSize:        2,
			K:               1,
			Metric:          "cosine",
			FPS:             60,
			CaptureInterval: 10 * time.Millisecond,
		},
		Storage: conf.StorageSettings{Path: "kamiai.db"},
		Backup: conf.BackupConfig{
			Dir:       "backups",
			StateFile: "backup-state.json",
			Timeout:   time.Minute,
			Auto:      conf.AutoBackupSettings{Interval: "manual"},
		},
		IoT: conf.IoTSettings{DeviceTTL: time.Minute},
	}
}

type testEnv struct {
	e    *echo.Echo
	core *core.Core
	ctrl *Controller
}

func newTestEnvWith(t *testing.T, settings *conf.Settings) *testEnv {
	t.Helper()
	return newTestEnvOpts(t, settings, core.Options{})
}

func newTestEnvOpts(t *testing.T, settings *conf.Settings, opts core.Options) *testEnv {
	t.Helper()
	c, err := core.New(t.Context(), settings, opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	e := echo.New()
	return &testEnv{e: e, core: c, ctrl: New(e, c)}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, testSettings(t))
}

// do serves one request. A non-nil body that is not []byte is sent as JSON.
func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	contentType := ""
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
		contentType = echo.MIMEOctetStream
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
		contentType = echo.MIMEApplicationJSON
	}

	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func pngFrame(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var (
	red  = color.RGBA{R: 230, A: 255}
	blue = color.RGBA{B: 230, A: 255}
)

// initVision loads the vision session through the API.
func (env *testEnv) initVision(t *testing.T) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/v1/session", InitSessionRequest{Module: "vision"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// classIDs returns the ids of the two default classes.
func (env *testEnv) classIDs(t *testing.T) (string, string) {
	t.Helper()
	classes := env.core.Workspace.State().Classes
	require.GreaterOrEqual(t, len(classes), 2)
	return classes[0].ID, classes[1].ID
}

// trainRedBlue adds a red frame to the first class and a blue one to the second.
func (env *testEnv) trainRedBlue(t *testing.T) (string, string) {
	t.Helper()
	first, second := env.classIDs(t)
	for id, frame := range map[string][]byte{first: pngFrame(t, red), second: pngFrame(t, blue)} {
		rec := env.do(t, http.MethodPost, "/api/v1/classes/"+id+"/samples", frame)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	return first, second
}
