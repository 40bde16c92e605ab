package photostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	ep, err := Options{Endpoint: "minio.local:9000"}.endpointURL()
	require.NoError(t, err)
	assert.Equal(t, "http://minio.local:9000", ep.String())

	assert.Equal(t, "http://minio.local:9000/photos/moody/users/u1/a%20b.jpg",
		publicURL("", ep, "photos", "moody/users/u1/a b.jpg"))
	assert.Equal(t, "https://cdn.example.com/moody/x.png",
		publicURL("cdn.example.com/", ep, "photos", "/moody/x.png"))
}

func TestDefaultEndpoint(t *testing.T) {
	ep, err := Options{Region: "eu-west-1"}.endpointURL()
	require.NoError(t, err)
	assert.Equal(t, "https://s3.eu-west-1.amazonaws.com", ep.String())
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	_, err := New(Options{Driver: "s3", Bucket: "b"})
	assert.Error(t, err)
	_, err = New(Options{Driver: "minio", Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"})
	assert.Error(t, err)
	_, err = New(Options{Driver: "ftp"})
	assert.Error(t, err)
}

func TestMemoryDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("https://cdn.test")
	obj, err := m.Upload(ctx, "moody/users/u1/2025-04/a.jpg", []byte("x"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/moody/users/u1/2025-04/a.jpg", obj.URL)
	assert.True(t, m.Has(obj.Key))

	require.NoError(t, m.Delete(ctx, obj.Key))
	require.NoError(t, m.Delete(ctx, obj.Key))
	assert.Zero(t, m.Len())
}
