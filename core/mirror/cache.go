package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"facts/core/catalog"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// checksumMetaKey is the object user-metadata key carrying the upstream
// archive checksum, so mirror hits stay verifiable without feed access.
const checksumMetaKey = "Sha256"

// Upstream is the fallback archive source, satisfied by catalog.Client.
type Upstream interface {
	FetchArchive(ctx context.Context, id catalog.Identifier) (io.ReadCloser, string, error)
}

// ArchiveCache serves release archives from an S3-compatible mirror,
// falling back to the upstream catalog on a miss. Downloaded archives are
// uploaded back to the mirror best-effort, so a fleet of hosts behind one
// mirror downloads each version from the vendor exactly once.
type ArchiveCache struct {
	client   Client
	bucket   string
	upstream Upstream
	logger   *zap.Logger
}

// NewArchiveCache creates an archive cache over the given mirror bucket,
// creating the bucket when absent. A mirror that cannot be reached here is
// not fatal; fetches fall back to the upstream until it comes back.
func NewArchiveCache(ctx context.Context, client Client, bucket string, upstream Upstream, logger *zap.Logger) *ArchiveCache {
	c := &ArchiveCache{
		client:   client,
		bucket:   bucket,
		upstream: upstream,
		logger:   logger,
	}
	c.ensureBucket(ctx)
	return c
}

// ensureBucket creates the mirror bucket if it does not exist yet.
// Failures are logged and swallowed.
func (c *ArchiveCache) ensureBucket(ctx context.Context) {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		c.logger.Warn("Mirror bucket check failed",
			zap.String("bucket", c.bucket), zap.Error(err))
		return
	}
	if exists {
		return
	}
	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		c.logger.Warn("Mirror bucket creation failed",
			zap.String("bucket", c.bucket), zap.Error(err))
		return
	}
	c.logger.Info("Created mirror bucket", zap.String("bucket", c.bucket))
}

// objectName returns the bucket key for an identifier's archive.
func objectName(id catalog.Identifier) string {
	return "archives/" + id.Key() + ".tar.xz"
}

// FetchArchive implements the store's archive fetcher contract. It returns
// the archive stream plus the expected hex SHA256 checksum (empty when
// neither the mirror metadata nor the feed provides one).
func (c *ArchiveCache) FetchArchive(ctx context.Context, id catalog.Identifier) (io.ReadCloser, string, error) {
	name := objectName(id)

	info, err := c.client.StatObject(ctx, c.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		obj, err := c.client.GetObject(ctx, c.bucket, name, minio.GetObjectOptions{})
		if err != nil {
			return nil, "", fmt.Errorf("%w: mirror read: %v", catalog.ErrDownloadFailed, err)
		}
		c.logger.Debug("Serving archive from mirror", zap.String("version", id.Key()))
		return obj, info.UserMetadata[checksumMetaKey], nil
	}
	if !isNotFound(err) {
		// Mirror unreachable is not fatal; fall back to upstream
		c.logger.Warn("Mirror lookup failed, falling back to catalog",
			zap.String("version", id.Key()), zap.Error(err))
	}

	stream, checksum, err := c.upstream.FetchArchive(ctx, id)
	if err != nil {
		return nil, "", err
	}
	defer stream.Close()

	// Spool to a temporary file so the archive can be both uploaded to the
	// mirror and returned to the caller
	tmp, err := os.CreateTemp("", "facts-archive-*.tar.xz")
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", catalog.ErrDownloadFailed, err)
	}
	size, err := io.Copy(tmp, stream)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, "", fmt.Errorf("%w: %v", catalog.ErrDownloadFailed, err)
	}

	c.upload(ctx, name, tmp, size, checksum, id)

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, "", fmt.Errorf("%w: %v", catalog.ErrDownloadFailed, err)
	}

	return &deletingFile{File: tmp}, checksum, nil
}

// upload pushes a freshly downloaded archive to the mirror. Failures are
// logged and swallowed; the download itself already succeeded.
func (c *ArchiveCache) upload(ctx context.Context, name string, tmp *os.File, size int64, checksum string, id catalog.Identifier) {
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		c.logger.Warn("Skipping mirror upload", zap.Error(err))
		return
	}

	opts := minio.PutObjectOptions{ContentType: "application/x-xz"}
	if checksum != "" {
		opts.UserMetadata = map[string]string{checksumMetaKey: checksum}
	}

	if _, err := c.client.PutObject(ctx, c.bucket, name, tmp, size, opts); err != nil {
		c.logger.Warn("Mirror upload failed",
			zap.String("version", id.Key()), zap.Error(err))
		return
	}
	c.logger.Info("Archive uploaded to mirror", zap.String("version", id.Key()))
}

// isNotFound reports whether a minio error means the object is absent.
func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
	}
	return false
}

// deletingFile removes the spool file when the stream is closed.
type deletingFile struct {
	*os.File
}

func (f *deletingFile) Close() error {
	err := f.File.Close()
	os.Remove(f.Name())
	return err
}
