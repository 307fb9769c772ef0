package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/kamiai/kamiai/internal/devices"
	"github.com/kamiai/kamiai/internal/logger"
)

// gatewayMessage is returned to devices probing the gateway.
const gatewayMessage = "KamiAI IoT Gateway is active."

// Registration limits per client IP. Devices re-register well below this.
const (
	deviceRegistrationRate  = rate.Limit(1)
	deviceRegistrationBurst = 10
	deviceLimiterExpiry     = 3 * time.Minute
)

func (c *Controller) initDeviceRoutes() {
	limiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      deviceRegistrationRate,
				Burst:     deviceRegistrationBurst,
				ExpiresIn: deviceLimiterExpiry,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			c.logger.Warn("device registration rate limited", logger.String("client", identifier))
			return ctx.JSON(http.StatusTooManyRequests, DeviceRegistrationResponse{
				Message: "Too many registration attempts, please wait before trying again",
			})
		},
	})

	c.Group.GET("/devices", c.ListDevices)
	c.Group.POST("/devices", c.RegisterDevice, limiter)
	c.Group.DELETE("/devices/:id", c.RemoveDevice)
}

// DeviceListResponse answers gateway probes and lists live devices.
type DeviceListResponse struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	Devices []devices.Device `json:"devices"`
}

// DeviceRegistrationResponse is the answer to a device announcing itself.
type DeviceRegistrationResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Device  *devices.Device `json:"device,omitempty"`
}

// ListDevices handles GET /api/v1/devices.
func (c *Controller) ListDevices(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, DeviceListResponse{
		Status:  "ok",
		Message: gatewayMessage,
		Devices: c.Core.Devices.List(),
	})
}

// RegisterDevice handles POST /api/v1/devices. Devices refresh their entry
// by registering again before it expires.
func (c *Controller) RegisterDevice(ctx echo.Context) error {
	var reg devices.Registration
	if err := bindJSON(ctx, &reg); err != nil {
		return ctx.JSON(http.StatusBadRequest, DeviceRegistrationResponse{Message: "Invalid payload"})
	}
	d, err := c.Core.Devices.Register(reg)
	if err != nil {
		c.logger.Debug("device registration rejected", logger.Error(err))
		return ctx.JSON(http.StatusBadRequest, DeviceRegistrationResponse{Message: "Invalid payload: " + err.Error()})
	}
	return ctx.JSON(http.StatusOK, DeviceRegistrationResponse{
		Success: true,
		Message: "Device registered",
		Device:  &d,
	})
}

// RemoveDevice handles DELETE /api/v1/devices/:id.
func (c *Controller) RemoveDevice(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, ok := c.Core.Devices.Get(id); !ok {
		return c.HandleError(ctx, nil, "Device not found", http.StatusNotFound)
	}
	c.Core.Devices.Remove(id)
	return ctx.NoContent(http.StatusNoContent)
}
