package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamiai/kamiai/internal/livefeed"
)

func TestLiveToggle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	on := true
	rec := env.do(t, http.MethodPost, "/api/v1/live", LiveRequest{Live: &on})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[livefeed.Status](t, rec).Live)

	rec = env.do(t, http.MethodGet, "/api/v1/live", nil)
	assert.True(t, decode[livefeed.Status](t, rec).Live)

	off := false
	rec = env.do(t, http.MethodPost, "/api/v1/live", LiveRequest{Live: &off})
	assert.False(t, decode[livefeed.Status](t, rec).Live)

	rec = env.do(t, http.MethodPost, "/api/v1/live", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "live is required")
}

func TestPushFrame(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/live/frame", pngFrame(t, red))
	require.Equal(t, http.StatusAccepted, rec.Code)
	first := decode[FrameResponse](t, rec).Seq

	rec = env.do(t, http.MethodPut, "/api/v1/live/frame", pngFrame(t, blue))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Greater(t, decode[FrameResponse](t, rec).Seq, first)

	rec = env.do(t, http.MethodPut, "/api/v1/live/frame", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHoldAndRelease(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	first, _ := env.classIDs(t)

	rec := env.do(t, http.MethodPost, "/api/v1/live/hold", HoldRequest{ClassID: first})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, decode[livefeed.Status](t, rec).HeldClass)

	rec = env.do(t, http.MethodDelete, "/api/v1/live/hold", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[livefeed.Status](t, rec).HeldClass)

	rec = env.do(t, http.MethodPost, "/api/v1/live/hold", HoldRequest{ClassID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/live/hold", HoldRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemovingHeldClassReleasesIt(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	first, _ := env.classIDs(t)
	env.core.Feed.Hold(first)

	rec := env.do(t, http.MethodDelete, "/api/v1/classes/"+first, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.core.Feed.Held())
}
