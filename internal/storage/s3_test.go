package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/yt-link-bot/internal/model"
)

type fakeS3 struct {
	mu      sync.Mutex
	putKeys []string
	deleted []string
	objects []types.Object
	putErr  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.putKeys = append(f.putKeys, aws.ToString(in.Key))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return &s3.ListObjectsV2Output{Contents: f.objects}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://s3.example.com/" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key) + "?sig=1"}, nil
}

func TestS3Placer_Place(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip_abc123.mp3")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	client := &fakeS3{}
	p := NewS3PlacerWithClient(client, fakePresigner{}, "bucket", time.Hour)

	placement, err := p.Place(context.Background(), 42, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"42/clip_abc123.mp3"}, client.putKeys)
	assert.Equal(t, "s3://bucket/42/clip_abc123.mp3", placement.Location)
	assert.Equal(t, "https://s3.example.com/bucket/42/clip_abc123.mp3?sig=1", placement.URL)
	assert.Equal(t, int64(3), placement.Size)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "local copy should be removed after upload")
}

func TestS3Placer_PlaceUploadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	p := NewS3PlacerWithClient(&fakeS3{putErr: errors.New("denied")}, fakePresigner{}, "bucket", time.Hour)
	_, err := p.Place(context.Background(), 42, path)
	assert.ErrorIs(t, err, model.ErrPlacementFailed)

	_, err = os.Stat(path)
	assert.NoError(t, err, "local copy must survive a failed upload")
}

func TestS3Placer_Remove(t *testing.T) {
	client := &fakeS3{}
	p := NewS3PlacerWithClient(client, fakePresigner{}, "bucket", time.Hour)

	require.NoError(t, p.Remove(context.Background(), "s3://bucket/42/clip.mp4"))
	assert.Equal(t, []string{"42/clip.mp4"}, client.deleted)

	err := p.Remove(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"))
	assert.True(t, os.IsNotExist(err))
}

func TestS3Placer_Expire(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeS3{objects: []types.Object{
		{Key: aws.String("old"), LastModified: aws.Time(now.Add(-2 * time.Hour))},
		{Key: aws.String("edge"), LastModified: aws.Time(now.Add(-time.Hour))},
		{Key: aws.String("fresh"), LastModified: aws.Time(now.Add(-time.Minute))},
	}}
	p := NewS3PlacerWithClient(client, fakePresigner{}, "bucket", time.Hour)
	p.now = func() time.Time { return now }

	n, err := p.Expire(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"old", "edge"}, client.deleted)
}

func TestParseS3Location(t *testing.T) {
	tests := []struct {
		loc    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://b/42/f.mp4", "b", "42/f.mp4", true},
		{"s3://b/", "", "", false},
		{"s3://", "", "", false},
		{"/local/path.mp4", "", "", false},
	}
	for _, tt := range tests {
		b, k, ok := ParseS3Location(tt.loc)
		assert.Equal(t, tt.ok, ok, tt.loc)
		assert.Equal(t, tt.bucket, b, tt.loc)
		assert.Equal(t, tt.key, k, tt.loc)
	}
}
