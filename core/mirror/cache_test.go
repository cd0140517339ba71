package mirror_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"facts/core/catalog"
	"facts/core/mirror"
	"facts/core/mirror/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBucket = "archives-test"

var testID = catalog.Identifier{Major: 1, Minor: 1, Patch: 87, Channel: catalog.ChannelStable}

const testObject = "archives/1.1.87-stable.tar.xz"

type fakeUpstream struct {
	data     []byte
	checksum string
	err      error
	calls    int
}

func (f *fakeUpstream) FetchArchive(ctx context.Context, id catalog.Identifier) (io.ReadCloser, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), f.checksum, nil
}

func notFoundErr() error {
	return minio.ErrorResponse{Code: "NoSuchKey", Message: "object not found"}
}

// newTestCache wires a cache over an already existing mirror bucket.
func newTestCache(client *mocks.Client, upstream mirror.Upstream) *mirror.ArchiveCache {
	client.On("BucketExists", mock.Anything, testBucket).Return(true, nil).Once()
	return mirror.NewArchiveCache(context.Background(), client, testBucket, upstream, zap.NewNop())
}

func TestNewArchiveCache_CreatesMissingBucket(t *testing.T) {
	client := &mocks.Client{}
	client.On("BucketExists", mock.Anything, testBucket).Return(false, nil)
	client.On("MakeBucket", mock.Anything, testBucket, mock.Anything).Return(nil)

	mirror.NewArchiveCache(context.Background(), client, testBucket, &fakeUpstream{}, zap.NewNop())
	client.AssertExpectations(t)
}

func TestNewArchiveCache_BucketCheckFailureTolerated(t *testing.T) {
	client := &mocks.Client{}
	client.On("BucketExists", mock.Anything, testBucket).Return(false, errors.New("connection refused"))

	// Construction succeeds; fetches fall back to upstream until the
	// mirror comes back.
	cache := mirror.NewArchiveCache(context.Background(), client, testBucket, &fakeUpstream{}, zap.NewNop())
	require.NotNil(t, cache)
	client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchArchive_MirrorHit(t *testing.T) {
	client := &mocks.Client{}
	client.On("StatObject", mock.Anything, testBucket, testObject, mock.Anything).
		Return(minio.ObjectInfo{UserMetadata: map[string]string{"Sha256": "abc123"}}, nil)
	client.On("GetObject", mock.Anything, testBucket, testObject, mock.Anything).
		Return(io.NopCloser(bytes.NewReader([]byte("cached-bytes"))), nil)

	upstream := &fakeUpstream{}
	cache := newTestCache(client, upstream)

	stream, checksum, err := cache.FetchArchive(context.Background(), testID)
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "cached-bytes", string(data))
	assert.Equal(t, "abc123", checksum)
	assert.Zero(t, upstream.calls, "a mirror hit must not contact upstream")
	client.AssertExpectations(t)
}

func TestFetchArchive_MirrorMissUploadsAndServes(t *testing.T) {
	client := &mocks.Client{}
	client.On("StatObject", mock.Anything, testBucket, testObject, mock.Anything).
		Return(minio.ObjectInfo{}, notFoundErr())
	client.On("PutObject", mock.Anything, testBucket, testObject, mock.Anything, int64(14),
		mock.MatchedBy(func(opts minio.PutObjectOptions) bool {
			return opts.UserMetadata["Sha256"] == "abc123"
		})).
		Return(minio.UploadInfo{}, nil)

	upstream := &fakeUpstream{data: []byte("upstream-bytes"), checksum: "abc123"}
	cache := newTestCache(client, upstream)

	stream, checksum, err := cache.FetchArchive(context.Background(), testID)
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "upstream-bytes", string(data))
	assert.Equal(t, "abc123", checksum)
	assert.Equal(t, 1, upstream.calls)
	client.AssertExpectations(t)
}

func TestFetchArchive_MirrorUnreachableFallsBack(t *testing.T) {
	client := &mocks.Client{}
	client.On("StatObject", mock.Anything, testBucket, testObject, mock.Anything).
		Return(minio.ObjectInfo{}, errors.New("connection refused"))
	client.On("PutObject", mock.Anything, testBucket, testObject, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, errors.New("connection refused"))

	upstream := &fakeUpstream{data: []byte("upstream-bytes"), checksum: "abc123"}
	cache := newTestCache(client, upstream)

	// An unreachable mirror degrades to a plain catalog download; the
	// failed upload is logged, not surfaced.
	stream, checksum, err := cache.FetchArchive(context.Background(), testID)
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "upstream-bytes", string(data))
	assert.Equal(t, "abc123", checksum)
}

func TestFetchArchive_UpstreamError(t *testing.T) {
	client := &mocks.Client{}
	client.On("StatObject", mock.Anything, testBucket, testObject, mock.Anything).
		Return(minio.ObjectInfo{}, notFoundErr())

	upstream := &fakeUpstream{err: catalog.ErrDownloadFailed}
	cache := newTestCache(client, upstream)

	_, _, err := cache.FetchArchive(context.Background(), testID)
	assert.ErrorIs(t, err, catalog.ErrDownloadFailed)
}

func TestFetchArchive_MirrorReadError(t *testing.T) {
	client := &mocks.Client{}
	client.On("StatObject", mock.Anything, testBucket, testObject, mock.Anything).
		Return(minio.ObjectInfo{}, nil)
	client.On("GetObject", mock.Anything, testBucket, testObject, mock.Anything).
		Return(nil, errors.New("read failed"))

	upstream := &fakeUpstream{}
	cache := newTestCache(client, upstream)

	_, _, err := cache.FetchArchive(context.Background(), testID)
	assert.ErrorIs(t, err, catalog.ErrDownloadFailed)
	assert.Zero(t, upstream.calls)
}
