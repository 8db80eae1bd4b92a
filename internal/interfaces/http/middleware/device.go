package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/infrastructure/logger"
)

const (
	// DeviceHeaderKey carries the storefront-generated device id
	DeviceHeaderKey = "X-Device-ID"
	// DeviceContextKey is the gin context key holding the parsed device id
	DeviceContextKey = "device_id"

	// maxDeviceIDLength bounds the header so the cache namespace stays sane
	maxDeviceIDLength = 128
)

// RequireDevice extracts the device id every cart route is scoped by.
// Requests without one are rejected: there is no meaningful cart without a
// device namespace.
func RequireDevice() gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := c.GetHeader(DeviceHeaderKey)
		if deviceID == "" || len(deviceID) > maxDeviceIDLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MISSING_DEVICE_ID",
					"message": "A valid X-Device-ID header is required",
				},
			})
			return
		}

		c.Set(DeviceContextKey, cart.DeviceID(deviceID))

		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		ctx, _ = logger.WithDeviceID(ctx, log, deviceID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetDevice retrieves the device id from gin.Context
func GetDevice(c *gin.Context) cart.DeviceID {
	if v, exists := c.Get(DeviceContextKey); exists {
		if device, ok := v.(cart.DeviceID); ok {
			return device
		}
	}
	return ""
}
