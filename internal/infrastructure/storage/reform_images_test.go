package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reformshop/backend/internal/domain/shared"
)

func TestNewReformImageKey(t *testing.T) {
	key, err := NewReformImageKey("image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "reform-images/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.True(t, IsReformImageKey(key))

	key2, err := NewReformImageKey("IMAGE/PNG")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key2, ".png"))
	assert.NotEqual(t, key, key2, "keys are unique per upload")
}

func TestNewReformImageKey_RejectsUnsupportedType(t *testing.T) {
	_, err := NewReformImageKey("application/pdf")
	require.Error(t, err)
	var domainErr *shared.DomainError
	assert.ErrorAs(t, err, &domainErr)
}

func TestIsReformImageKey(t *testing.T) {
	assert.False(t, IsReformImageKey("reform-images/"))
	assert.False(t, IsReformImageKey("catalog/foo.jpg"))
	assert.True(t, IsReformImageKey("reform-images/foo.jpg"))
}

func TestStubReformImageStorage_Lifecycle(t *testing.T) {
	stub := NewStubReformImageStorage()
	ctx := context.Background()

	key, err := NewReformImageKey("image/webp")
	require.NoError(t, err)

	up, err := stub.PresignUpload(ctx, key, "image/webp")
	require.NoError(t, err)
	assert.Contains(t, up.URL, key)
	assert.Equal(t, key, up.Key)

	exists, err := stub.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	down, err := stub.PresignDownload(ctx, key)
	require.NoError(t, err)
	assert.Contains(t, down.URL, key)

	require.NoError(t, stub.Delete(ctx, key))
	exists, err = stub.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestS3ReformImageStorage_ConfigValidation(t *testing.T) {
	_, err := NewS3ReformImageStorage(nil)
	assert.Error(t, err)
}
