package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ghusn/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryBackend) EnsureBucket(context.Context) error { return nil }

func (m *memoryBackend) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryBackend) Bucket() string { return "test" }

func TestStorage_PutBytesReadAll(t *testing.T) {
	backend := newMemoryBackend()
	s := NewStorage(backend)
	ctx := context.Background()

	require.NoError(t, s.PutBytes(ctx, "mail/a.eml", []byte("hello"), "message/rfc822"))

	got, err := s.ReadAll(ctx, "mail/a.eml")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	assert.Equal(t, "message/rfc822", backend.types["mail/a.eml"])

	require.NoError(t, s.Delete(ctx, "mail/a.eml"))
	_, err = s.ReadAll(ctx, "mail/a.eml")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMailKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("X", 2*3600))

	key, err := MailKey(at, "2aBcD")
	require.NoError(t, err)
	assert.Equal(t, "mail/2024/03/09/2aBcD.eml", key)

	for _, id := range []string{"", "  ", "a/b", `a\b`} {
		_, err := MailKey(at, id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Storage: config.StorageConfig{Backend: "s3"}})
	assert.ErrorContains(t, err, `unknown storage backend "s3"`)
}

func TestNewMinioClient_RequiresSettings(t *testing.T) {
	_, err := NewMinioClient(config.MinioConfig{})
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "access key")

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.ErrorContains(t, err, "bucket")
}
