package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamiai/kamiai/internal/devices"
)

func TestDeviceGatewayProbe(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/devices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[DeviceListResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, gatewayMessage, resp.Message)
	assert.Empty(t, resp.Devices)
}

func TestRegisterDevice(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/devices", devices.Registration{
		DeviceID: "esp32-cam-1",
		Name:     "Door",
		Type:     "camera",
		IP:       "192.168.1.40",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[DeviceRegistrationResponse](t, rec)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Device)
	assert.Equal(t, "http://192.168.1.40/stream", resp.Device.StreamURL)

	list := decode[DeviceListResponse](t, env.do(t, http.MethodGet, "/api/v1/devices", nil))
	require.Len(t, list.Devices, 1)
	assert.Equal(t, "esp32-cam-1", list.Devices[0].ID)

	rec = env.do(t, http.MethodDelete, "/api/v1/devices/esp32-cam-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/devices/esp32-cam-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterDeviceInvalid(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tests := []struct {
		name string
		reg  devices.Registration
	}{
		{"missing id", devices.Registration{Type: "sensor", IP: "10.0.0.2"}},
		{"unknown type", devices.Registration{DeviceID: "x", Type: "toaster", IP: "10.0.0.2"}},
		{"bad ip", devices.Registration{DeviceID: "x", Type: "sensor", IP: "not-an-ip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/devices", tt.reg)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, decode[DeviceRegistrationResponse](t, rec).Success)
		})
	}
	assert.Zero(t, env.core.Devices.Count())
}

func TestRegisterDeviceRateLimited(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	reg := devices.Registration{DeviceID: "esp32-cam-1", Type: "camera", IP: "192.168.1.40"}
	limited := 0
	for range deviceRegistrationBurst + 5 {
		rec := env.do(t, http.MethodPost, "/api/v1/devices", reg)
		if rec.Code == http.StatusTooManyRequests {
			limited++
			assert.False(t, decode[DeviceRegistrationResponse](t, rec).Success)
		}
	}
	assert.Positive(t, limited)
}
