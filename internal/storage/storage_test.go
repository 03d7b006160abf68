package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/scout-reports/internal/config"
)

func TestObjectPath(t *testing.T) {
	userID := uuid.MustParse("0b5c3c8e-4b3a-4d5e-9f61-0a7c2d9e1f00")
	at := time.Date(2026, 4, 2, 17, 5, 9, 123_000_000, time.FixedZone("PDT", -7*3600))

	got := ObjectPath(userID, at, "JPG")
	assert.Equal(t, "0b5c3c8e-4b3a-4d5e-9f61-0a7c2d9e1f00/2026-04-03T00-05-09.123Z.jpg", got)
	assert.NotContains(t, got, ":")

	assert.True(t, strings.HasSuffix(ObjectPath(userID, at, ".webp"), ".webp"))
	assert.True(t, strings.HasSuffix(ObjectPath(userID, at, ""), ".jpg"))
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, "png", ExtensionOf("leaf.png"))
	assert.Equal(t, "jpeg", ExtensionOf("../../etc/photo.jpeg"))
	assert.Equal(t, "", ExtensionOf("noext"))
}

func TestLocalStore_PutAndDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, "http://localhost:8080/media/", 16)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "user/a.jpg", "image/jpeg", strings.NewReader("hello")))
	data, err := os.ReadFile(filepath.Join(root, "user", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "http://localhost:8080/media/user/a.jpg", store.PublicURL("user/a.jpg"))

	err = store.Put(ctx, "user/big.jpg", "image/jpeg", strings.NewReader(strings.Repeat("x", 17)))
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(root, "user", "big.jpg.tmp"))
	assert.True(t, os.IsNotExist(statErr))

	require.NoError(t, store.Put(ctx, "../../escape.jpg", "image/jpeg", strings.NewReader("x")))
	_, statErr = os.Stat(filepath.Join(root, "escape.jpg"))
	assert.NoError(t, statErr, "путь должен остаться внутри хранилища")

	require.NoError(t, store.Delete(ctx, "user/a.jpg"))
	require.NoError(t, store.Delete(ctx, "user/a.jpg"))
}

type fakeS3 struct {
	put    *s3.PutObjectInput
	body   string
	err    error
	delKey string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.put = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.delKey = aws.ToString(in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_Put(t *testing.T) {
	api := &fakeS3{}
	store := newS3Store(api, "report-images", "https://images.example.org")

	require.NoError(t, store.Put(context.Background(), "u1/2026-01-01T00-00-00.000Z.png", "image/png", strings.NewReader("png-bytes")))
	assert.Equal(t, "report-images", aws.ToString(api.put.Bucket))
	assert.Equal(t, "u1/2026-01-01T00-00-00.000Z.png", aws.ToString(api.put.Key))
	assert.Equal(t, "image/png", aws.ToString(api.put.ContentType))
	assert.Equal(t, CacheControl, aws.ToString(api.put.CacheControl))
	assert.Equal(t, int64(9), aws.ToInt64(api.put.ContentLength))
	assert.Equal(t, "png-bytes", api.body)
	assert.Equal(t, "https://images.example.org/u1/a.png", store.PublicURL("u1/a.png"))

	require.NoError(t, store.Delete(context.Background(), "u1/a.png"))
	assert.Equal(t, "u1/a.png", api.delKey)
}

func TestS3Store_PutError(t *testing.T) {
	store := newS3Store(&fakeS3{err: errors.New("access denied")}, "b", "https://x.org/")
	err := store.Put(context.Background(), "u/a.jpg", "image/jpeg", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.BlobConfig{Backend: "ftp"}, 0)
	assert.Error(t, err)

	s, err := New(context.Background(), config.BlobConfig{
		Backend:       config.BlobBackendLocal,
		LocalPath:     t.TempDir(),
		PublicBaseURL: "http://localhost/media/",
	}, 1024)
	require.NoError(t, err)
	_, ok := s.(*LocalStore)
	assert.True(t, ok)
}
