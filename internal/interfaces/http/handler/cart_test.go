package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reformshop/backend/internal/application/cartsync"
	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/domain/shared"
	"github.com/reformshop/backend/internal/infrastructure/auth"
	"github.com/reformshop/backend/internal/infrastructure/cache"
	"github.com/reformshop/backend/internal/infrastructure/config"
	"github.com/reformshop/backend/internal/infrastructure/storage"
	"github.com/reformshop/backend/internal/interfaces/http/dto"
	"github.com/reformshop/backend/internal/interfaces/http/middleware"
	"github.com/reformshop/backend/internal/interfaces/http/router"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRemote is an in-memory cart repository with an injectable failure
type stubRemote struct {
	mu         sync.Mutex
	carts      map[string][]cart.Item
	replaceErr error
}

func newStubRemote() *stubRemote {
	return &stubRemote{carts: make(map[string][]cart.Item)}
}

func (s *stubRemote) Fetch(_ context.Context, identity cart.Identity) ([]cart.Item, error) {
	if !identity.IsAuthenticated() {
		return nil, shared.NewSessionError("no authenticated context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cart.CloneItems(s.carts[identity.Key()]), nil
}

func (s *stubRemote) ReplaceAll(_ context.Context, identity cart.Identity, items []cart.Item) error {
	if !identity.IsAuthenticated() {
		return shared.NewSessionError("no authenticated context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.carts[identity.Key()] = cart.CloneItems(items)
	return nil
}

func (s *stubRemote) Clear(_ context.Context, identity cart.Identity) error {
	if !identity.IsAuthenticated() {
		return shared.NewSessionError("no authenticated context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, identity.Key())
	return nil
}

type cartAPI struct {
	engine  *gin.Engine
	remote  *stubRemote
	store   *cache.InMemoryCartStore
	jwt     *auth.JWTService
	manager *cartsync.Manager
}

func newCartAPI(t *testing.T) *cartAPI {
	t.Helper()
	store := cache.NewInMemoryCartStore()
	remote := newStubRemote()
	manager := cartsync.NewManager(store, remote, zap.NewNop())
	manager.SetReady()

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-at-least-32-characters!!",
		Issuer:                "reformshop-test",
		AccessTokenExpiration: time.Minute,
	})

	engine := gin.New()
	r := router.NewRouter(engine,
		router.WithGroupMiddleware(middleware.Identity(jwtService, nil)))
	r.Register(NewCartHandler(manager, storage.NewStubReformImageStorage(), zap.NewNop()))
	r.Register(NewSystemHandler(func() bool { return true }))
	r.Setup()

	return &cartAPI{
		engine:  engine,
		remote:  remote,
		store:   store,
		jwt:     jwtService,
		manager: manager,
	}
}

type cartEnvelope struct {
	Success bool             `json:"success"`
	Data    dto.CartResponse `json:"data"`
	Error   *dto.ErrorInfo   `json:"error"`
}

func (a *cartAPI) do(t *testing.T, method, path string, body interface{}, device, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if device != "" {
		req.Header.Set(middleware.DeviceHeaderKey, device)
	}
	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) cartEnvelope {
	t.Helper()
	var envelope cartEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func productRequest(qty int64, productRef uuid.UUID, optionRef *uuid.UUID) dto.CartItemRequest {
	req := dto.CartItemRequest{
		ID:         uuid.NewString(),
		Kind:       "PRODUCT",
		Quantity:   qty,
		ProductRef: productRef.String(),
	}
	if optionRef != nil {
		s := optionRef.String()
		req.SelectedOptionRef = &s
	}
	return req
}

func TestCartAPI_RequiresDeviceHeader(t *testing.T) {
	api := newCartAPI(t)
	w := api.do(t, http.MethodGet, "/api/v1/cart", nil, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_DEVICE_ID")
}

func TestCartAPI_AnonymousRoundTrip(t *testing.T) {
	api := newCartAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/cart", nil, "dev-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeCart(t, w)
	assert.Equal(t, cart.AnonymousKey, envelope.Data.Identity)
	assert.Empty(t, envelope.Data.Items)

	put := dto.ReplaceCartRequest{Items: []dto.CartItemRequest{productRequest(2, uuid.New(), nil)}}
	w = api.do(t, http.MethodPut, "/api/v1/cart/items", put, "dev-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/cart", nil, "dev-1", "")
	envelope = decodeCart(t, w)
	require.Len(t, envelope.Data.Items, 1)
	assert.Equal(t, int64(2), envelope.Data.Items[0].Quantity)

	// another device sees its own empty cart
	w = api.do(t, http.MethodGet, "/api/v1/cart", nil, "dev-2", "")
	envelope = decodeCart(t, w)
	assert.Empty(t, envelope.Data.Items)
}

func TestCartAPI_SignInMergesAnonymousCart(t *testing.T) {
	api := newCartAPI(t)
	userID := uuid.New()
	user := cart.Authenticated(userID)
	productRef := uuid.New()

	put := dto.ReplaceCartRequest{Items: []dto.CartItemRequest{productRequest(2, productRef, nil)}}
	w := api.do(t, http.MethodPut, "/api/v1/cart/items", put, "dev-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	remoteLine, err := cart.NewProductItem(productRef, nil, 1)
	require.NoError(t, err)
	api.remote.carts[user.Key()] = []cart.Item{*remoteLine}

	token, _, err := api.jwt.GenerateToken(userID)
	require.NoError(t, err)

	w = api.do(t, http.MethodGet, "/api/v1/cart", nil, "dev-1", token)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeCart(t, w)
	assert.Equal(t, userID.String(), envelope.Data.Identity)
	require.Len(t, envelope.Data.Items, 1)
	assert.Equal(t, int64(3), envelope.Data.Items[0].Quantity)

	anon, err := api.store.AnonymousItems(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Empty(t, anon, "anonymous cart is consumed by the merge")
}

func TestCartAPI_RejectsInvalidSnapshot(t *testing.T) {
	api := newCartAPI(t)
	put := dto.ReplaceCartRequest{Items: []dto.CartItemRequest{{
		ID:       uuid.NewString(),
		Kind:     "PRODUCT",
		Quantity: 0,
	}}}
	w := api.do(t, http.MethodPut, "/api/v1/cart/items", put, "dev-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp cartEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	require.NotEmpty(t, resp.Error.Details)
}

func TestCartAPI_RemoteFailureReportedAsBadGateway(t *testing.T) {
	api := newCartAPI(t)
	api.remote.replaceErr = shared.NewNetworkError("replace cart", assert.AnError)
	token, _, err := api.jwt.GenerateToken(uuid.New())
	require.NoError(t, err)

	put := dto.ReplaceCartRequest{Items: []dto.CartItemRequest{productRequest(1, uuid.New(), nil)}}
	w := api.do(t, http.MethodPut, "/api/v1/cart/items", put, "dev-1", token)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "CART_SYNC_FAILED")
}

func TestCartAPI_ClearCart(t *testing.T) {
	api := newCartAPI(t)
	put := dto.ReplaceCartRequest{Items: []dto.CartItemRequest{productRequest(1, uuid.New(), nil)}}
	w := api.do(t, http.MethodPut, "/api/v1/cart/items", put, "dev-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodDelete, "/api/v1/cart", nil, "dev-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/cart", nil, "dev-1", "")
	envelope := decodeCart(t, w)
	assert.Empty(t, envelope.Data.Items)
}

func TestCartAPI_ReformImagePresign(t *testing.T) {
	api := newCartAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/cart/reform-images/presign",
		dto.PresignUploadRequest{ContentType: "image/jpeg"}, "dev-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var uploadEnvelope struct {
		Data storage.PresignedURL `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploadEnvelope))
	assert.True(t, storage.IsReformImageKey(uploadEnvelope.Data.Key))
	assert.NotEmpty(t, uploadEnvelope.Data.URL)

	w = api.do(t, http.MethodPost, "/api/v1/cart/reform-images/presign-download",
		dto.PresignDownloadRequest{Key: uploadEnvelope.Data.Key}, "dev-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/cart/reform-images/presign-download",
		dto.PresignDownloadRequest{Key: "reform-images/unknown.jpg"}, "dev-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/cart/reform-images/presign-download",
		dto.PresignDownloadRequest{Key: "catalog/foreign.jpg"}, "dev-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/cart/reform-images/presign",
		dto.PresignUploadRequest{ContentType: "application/pdf"}, "dev-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartAPI_SystemEndpoints(t *testing.T) {
	api := newCartAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/health", nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/ready", nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/system/info", nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
