package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/BradenHooton/sentinel/internal/config"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		endpoint string
		secure   bool
		wantErr  bool
	}{
		{"minio:9000", "minio:9000", false, false},
		{"http://minio:9000", "minio:9000", false, false},
		{"https://s3.example.com", "s3.example.com", true, false},
		{"https://s3.example.com/", "s3.example.com", true, false},
		{"https://s3.example.com/bucket", "", false, true},
		{"   ", "", false, true},
		{"http://", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			endpoint, secure, err := normaliseEndpoint(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.endpoint, endpoint)
			assert.Equal(t, tt.secure, secure)
		})
	}
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/image/a.jpg", objectURL("https://cdn.example.com/", "/image/a.jpg"))
	assert.Equal(t, "https://cdn.example.com/image/a.jpg", objectURL("https://cdn.example.com", "image/a.jpg"))
}

func TestNew_NoDriver(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{}, discardLogger())
	assert.Nil(t, store)
	assert.ErrorIs(t, err, models.ErrStorageNotConfigured)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Driver: "ftp"}, discardLogger())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrStorageNotConfigured)
}

func TestNewMinioStore_Incomplete(t *testing.T) {
	_, err := NewMinioStore(context.Background(), config.StorageConfig{Driver: DriverMinio, Endpoint: "minio:9000"}, discardLogger())
	assert.Error(t, err)
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Put(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3StoreWithClient(fake, "uploads", "https://cdn.example.com", discardLogger())

	url, err := store.Put(context.Background(), "image/u1/abc.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/image/u1/abc.jpg", url)
	assert.Equal(t, "uploads", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "image/u1/abc.jpg", aws.ToString(fake.input.Key))
	assert.Equal(t, "image/jpeg", aws.ToString(fake.input.ContentType))
	assert.Equal(t, int64(10), aws.ToInt64(fake.input.ContentLength))
	assert.Equal(t, []byte("jpeg-bytes"), fake.body)
}

func TestS3Store_PutError(t *testing.T) {
	fake := &fakeS3{err: errors.New("access denied")}
	store := NewS3StoreWithClient(fake, "uploads", "https://cdn.example.com", discardLogger())

	_, err := store.Put(context.Background(), "k", "image/jpeg", []byte("x"))
	assert.ErrorContains(t, err, "access denied")
}
