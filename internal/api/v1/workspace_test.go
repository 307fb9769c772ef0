package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamiai/kamiai/internal/workspace"
)

func TestGetWorkspaceDefaults(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/workspace", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ws := decode[WorkspaceResponse](t, rec)
	assert.Equal(t, workspace.DefaultModelName, ws.ModelName)
	assert.Len(t, ws.Classes, 2)
	assert.Empty(t, ws.Examples)
}

func TestClassLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	name := "Cat"
	rec := env.do(t, http.MethodPost, "/api/v1/classes", ClassRequest{Name: &name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[workspace.Class](t, rec)
	assert.Equal(t, "Cat", created.Name)
	assert.NotEmpty(t, created.Color)

	renamed, color := "Kitten", "#112233"
	rec = env.do(t, http.MethodPatch, "/api/v1/classes/"+created.ID, ClassRequest{Name: &renamed, Color: &color})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[workspace.Class](t, rec)
	assert.Equal(t, "Kitten", updated.Name)
	assert.Equal(t, "#112233", updated.Color)

	empty := ""
	rec = env.do(t, http.MethodPatch, "/api/v1/classes/"+created.ID, ClassRequest{Name: &empty})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/classes/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/classes/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/classes/nope", ClassRequest{Name: &renamed})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateWorkspaceName(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPatch, "/api/v1/workspace", UpdateWorkspaceRequest{ModelName: "Fruit"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Fruit", decode[WorkspaceResponse](t, rec).ModelName)

	rec = env.do(t, http.MethodPatch, "/api/v1/workspace", UpdateWorkspaceRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddSample(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	first, _ := env.classIDs(t)

	t.Run("no session is a no-op", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/classes/"+first+"/samples", pngFrame(t, red))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[SampleResponse](t, rec).Added)
	})

	env.initVision(t)

	t.Run("adds and counts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/classes/"+first+"/samples", pngFrame(t, red))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[SampleResponse](t, rec)
		assert.True(t, resp.Added)
		assert.Equal(t, 1, resp.SampleCount)

		ws := decode[WorkspaceResponse](t, env.do(t, http.MethodGet, "/api/v1/workspace", nil))
		assert.Equal(t, 1, ws.Examples[first])
	})

	t.Run("unknown class", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/classes/nope/samples", pngFrame(t, red))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("undecodable frame", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/classes/"+first+"/samples", []byte("not an image"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/classes/"+first+"/samples", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPredict(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/predict", pngFrame(t, red))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[PredictResponse](t, rec).Prediction, "no module loaded")

	env.initVision(t)
	first, second := env.trainRedBlue(t)

	rec = env.do(t, http.MethodPost, "/api/v1/predict", pngFrame(t, red))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pred := decode[PredictResponse](t, rec).Prediction
	require.NotNil(t, pred)
	assert.Equal(t, first, pred.Label)
	assert.InDelta(t, 1.0, pred.Confidences[first]+pred.Confidences[second], 1e-9)

	rec = env.do(t, http.MethodPost, "/api/v1/predict", []byte{0x01, 0x02})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetWorkspaceKeepsSession(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.initVision(t)
	first, _ := env.classIDs(t)
	env.core.Feed.Hold(first)

	rec := env.do(t, http.MethodDelete, "/api/v1/workspace", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.core.Feed.Held())
	assert.True(t, env.core.Sessions.IsReady())
}
