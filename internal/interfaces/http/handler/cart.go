package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reformshop/backend/internal/application/cartsync"
	"github.com/reformshop/backend/internal/domain/shared"
	"github.com/reformshop/backend/internal/infrastructure/storage"
	"github.com/reformshop/backend/internal/interfaces/http/dto"
	"github.com/reformshop/backend/internal/interfaces/http/middleware"
)

// CartHandler exposes the device-scoped cart over HTTP. Every route is
// scoped by the X-Device-ID header and the identity resolved from the
// Authorization header.
type CartHandler struct {
	engines *cartsync.Manager
	images  storage.ReformImageStorage
	logger  *zap.Logger
}

// NewCartHandler creates a cart handler
func NewCartHandler(engines *cartsync.Manager, images storage.ReformImageStorage, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		engines: engines,
		images:  images,
		logger:  logger,
	}
}

// RegisterRoutes mounts the cart routes. Every route requires a device id;
// identity resolution is applied by the surrounding API group.
func (h *CartHandler) RegisterRoutes(rg *gin.RouterGroup) {
	carts := rg.Group("/cart", middleware.RequireDevice())
	carts.GET("", h.GetCart)
	carts.PUT("/items", h.ReplaceItems)
	carts.DELETE("", h.ClearCart)
	carts.POST("/reform-images/presign", h.PresignReformImageUpload)
	carts.POST("/reform-images/presign-download", h.PresignReformImageDownload)
}

// GetCart returns the cart for the request's device and identity. Reading
// the cart is what drives identity transitions: a first authenticated read
// after anonymous activity runs the merge.
func (h *CartHandler) GetCart(c *gin.Context) {
	device := middleware.GetDevice(c)
	identity := middleware.GetIdentity(c)
	engine := h.engines.Engine(device)

	if err := engine.Sync(c.Request.Context(), identity); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.CartResponse{
		Identity: identity.Key(),
		Items:    engine.Items(),
	}))
}

// ReplaceItems replaces the whole cart snapshot for the request's identity
func (h *CartHandler) ReplaceItems(c *gin.Context) {
	var req dto.ReplaceCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	items, err := req.ToDomainItems()
	if err != nil {
		h.respondError(c, err)
		return
	}

	device := middleware.GetDevice(c)
	identity := middleware.GetIdentity(c)
	engine := h.engines.Engine(device)

	if err := engine.UpdateItems(c.Request.Context(), identity, items); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.CartResponse{
		Identity: identity.Key(),
		Items:    engine.Items(),
	}))
}

// ClearCart empties the cart for the request's identity
func (h *CartHandler) ClearCart(c *gin.Context) {
	device := middleware.GetDevice(c)
	identity := middleware.GetIdentity(c)
	engine := h.engines.Engine(device)

	if err := engine.Clear(c.Request.Context(), identity); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.CartResponse{
		Identity: identity.Key(),
		Items:    engine.Items(),
	}))
}

// PresignReformImageUpload mints a presigned PUT URL for a new reform
// reference image.
func (h *CartHandler) PresignReformImageUpload(c *gin.Context) {
	var req dto.PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	key, err := storage.NewReformImageKey(req.ContentType)
	if err != nil {
		h.respondError(c, err)
		return
	}

	presigned, err := h.images.PresignUpload(c.Request.Context(), key, req.ContentType)
	if err != nil {
		h.logger.Error("failed to presign reform image upload", zap.Error(err))
		c.JSON(http.StatusBadGateway, dto.NewErrorResponse("STORAGE_UNAVAILABLE", "Image storage is temporarily unavailable"))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(presigned))
}

// PresignReformImageDownload mints a presigned GET URL for an existing
// reform reference image.
func (h *CartHandler) PresignReformImageDownload(c *gin.Context) {
	var req dto.PresignDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if !storage.IsReformImageKey(req.Key) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_IMAGE_KEY", "Key is outside the reform image namespace"))
		return
	}

	exists, err := h.images.Exists(c.Request.Context(), req.Key)
	if err != nil {
		h.logger.Error("failed to check reform image", zap.String("key", req.Key), zap.Error(err))
		c.JSON(http.StatusBadGateway, dto.NewErrorResponse("STORAGE_UNAVAILABLE", "Image storage is temporarily unavailable"))
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse("IMAGE_NOT_FOUND", "No such reference image"))
		return
	}

	presigned, err := h.images.PresignDownload(c.Request.Context(), req.Key)
	if err != nil {
		h.logger.Error("failed to presign reform image download", zap.String("key", req.Key), zap.Error(err))
		c.JSON(http.StatusBadGateway, dto.NewErrorResponse("STORAGE_UNAVAILABLE", "Image storage is temporarily unavailable"))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(presigned))
}

// respondError maps engine errors onto HTTP statuses
func (h *CartHandler) respondError(c *gin.Context, err error) {
	var domainErr *shared.DomainError
	switch {
	case errors.As(err, &domainErr):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(domainErr.Code, domainErr.Message))
	case shared.IsSessionError(err):
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse("SESSION_REQUIRED", "An authenticated session is required"))
	case shared.IsStorageError(err):
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse("CART_STORAGE_UNAVAILABLE", "Cart storage is temporarily unavailable"))
	case shared.IsNetworkError(err):
		c.JSON(http.StatusBadGateway, dto.NewErrorResponse("CART_SYNC_FAILED", "Cart could not be synced to the server"))
	default:
		h.logger.Error("unexpected cart error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("INTERNAL_ERROR", "Unexpected error"))
	}
}
