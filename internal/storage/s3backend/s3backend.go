// Package s3backend implements the storage.Backend interface over an
// S3-compatible remote, grounded on the teacher's storage/s3aws.go
// upload/list/get conventions and its storage/s3_interface.go
// dependency-injection boundary.
package s3backend

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"archivecore.io/core/internal/domain"
	"archivecore.io/core/internal/storage"
)

// Client is the subset of the AWS SDK v2 S3 client the backend needs,
// mirroring the teacher's S3Client interface
// (storage/s3_interface.go) so tests can inject a fake.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	ListObjectVersions(ctx context.Context, in *s3.ListObjectVersionsInput, opts ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// Backend is an S3-compatible object store (§4.5 "S3 backend").
type Backend struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	presign  *s3.PresignClient
}

// New builds a Backend from an already-configured SDK client, the
// same injection boundary as the teacher's S3Client usage
// (storage/s3_interface.go). A *s3.Client satisfies Client directly;
// tests inject a fake the way the teacher's MockS3Client does
// (storage/s3_mock.go).
func New(client Client, bucket string) *Backend {
	b := &Backend{client: client, bucket: bucket}
	if uploadClient, ok := client.(manager.UploadAPIClient); ok {
		b.uploader = manager.NewUploader(uploadClient)
	}
	if real, ok := client.(*s3.Client); ok {
		b.presign = s3.NewPresignClient(real)
	}
	return b
}

func (b *Backend) Name() domain.StorageBackend { return domain.BackendS3 }

// Put uploads data to key via the multipart manager (teacher's
// `HetznerUploadFile`/`lakeFsUploadFile` concurrency pattern collapses
// to the manager's own internal part concurrency here). A client that
// does not implement the multipart upload calls gets a single
// PutObject instead. Versioning uses the bucket's native S3 version
// ids (§4.5).
func (b *Backend) Put(ctx context.Context, key string, data io.Reader, contentType string, metadata map[string]string, storageClass string) (storage.PutResult, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return storage.PutResult{}, fmt.Errorf("buffer payload: %w", err)
	}
	sum := md5.Sum(buf)
	etag := hex.EncodeToString(sum[:])

	in := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	}
	if storageClass != "" {
		in.StorageClass = types.StorageClass(storageClass)
	}

	versionID := ""
	if b.uploader == nil {
		out, err := b.client.PutObject(ctx, in)
		if err != nil {
			return storage.PutResult{}, fmt.Errorf("%w: s3 put %s: %v", domain.ErrBackendUnavailable, key, err)
		}
		if out.VersionId != nil {
			versionID = *out.VersionId
		}
		return storage.PutResult{VersionID: versionID, ETag: etag}, nil
	}

	out, err := b.uploader.Upload(ctx, in)
	if err != nil {
		return storage.PutResult{}, fmt.Errorf("%w: s3 put %s: %v", domain.ErrBackendUnavailable, key, err)
	}
	if out.VersionID != nil {
		versionID = *out.VersionID
	}
	return storage.PutResult{VersionID: versionID, ETag: etag}, nil
}

// Get downloads key (optionally a specific version).
func (b *Backend) Get(ctx context.Context, key, versionID string) (io.ReadCloser, map[string]string, error) {
	in := &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)}
	if versionID != "" {
		in.VersionId = aws.String(versionID)
	}
	out, err := b.client.GetObject(ctx, in)
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: s3 get %s: %v", domain.ErrBackendUnavailable, key, err)
	}
	meta := out.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	if out.ContentType != nil {
		meta["content_type"] = *out.ContentType
	}
	if out.ETag != nil {
		meta["etag"] = *out.ETag
	}
	return out.Body, meta, nil
}

// Delete removes one version, or the whole object if versionID is empty.
func (b *Backend) Delete(ctx context.Context, key, versionID string) error {
	in := &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)}
	if versionID != "" {
		in.VersionId = aws.String(versionID)
	}
	_, err := b.client.DeleteObject(ctx, in)
	if err != nil {
		return fmt.Errorf("%w: s3 delete %s: %v", domain.ErrBackendUnavailable, key, err)
	}
	return nil
}

// List returns objects under prefix (§4.5). S3 pagination is folded
// into a single limit/offset view for interface uniformity with the
// filesystem backend.
func (b *Backend) List(ctx context.Context, prefix string, limit, offset int) ([]domain.ObjectDescriptor, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(b.bucket), Prefix: aws.String(prefix)}
	out, err := b.client.ListObjectsV2(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 list %s: %v", domain.ErrBackendUnavailable, prefix, err)
	}
	var all []domain.ObjectDescriptor
	for _, obj := range out.Contents {
		d := domain.ObjectDescriptor{Size: aws.ToInt64(obj.Size)}
		if obj.Key != nil {
			d.Key = *obj.Key
		}
		if obj.ETag != nil {
			d.ETag = *obj.ETag
		}
		if obj.LastModified != nil {
			d.LastModified = *obj.LastModified
		}
		all = append(all, d)
	}
	if offset > 0 && offset < len(all) {
		all = all[offset:]
	} else if offset >= len(all) {
		all = nil
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Exists reports whether key currently exists.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Copy duplicates srcKey to dstKey server-side.
func (b *Backend) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(b.bucket + "/" + srcKey),
	})
	if err != nil {
		return fmt.Errorf("%w: s3 copy %s->%s: %v", domain.ErrBackendUnavailable, srcKey, dstKey, err)
	}
	return nil
}

// ListVersions returns every native S3 version of key, newest first.
func (b *Backend) ListVersions(ctx context.Context, key string) ([]domain.Version, error) {
	out, err := b.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: s3 list versions %s: %v", domain.ErrBackendUnavailable, key, err)
	}
	result := make([]domain.Version, 0, len(out.Versions))
	for _, v := range out.Versions {
		if v.Key == nil || *v.Key != key {
			continue
		}
		ver := domain.Version{ObjectKey: key, IsLatest: aws.ToBool(v.IsLatest), Size: aws.ToInt64(v.Size)}
		if v.VersionId != nil {
			ver.VersionID = *v.VersionId
		}
		if v.ETag != nil {
			ver.ETag = *v.ETag
		}
		if v.LastModified != nil {
			ver.CreatedAt = *v.LastModified
		}
		result = append(result, ver)
	}
	return result, nil
}

// URL returns a presigned GET URL, TTL bounded by the backend maximum
// (typically 7 days, §4.5).
func (b *Backend) URL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if b.presign == nil {
		return "", fmt.Errorf("%w: presigning unavailable for this client", domain.ErrBackendUnavailable)
	}
	if expiresIn <= 0 || expiresIn > 7*24*time.Hour {
		expiresIn = 7 * 24 * time.Hour
	}
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

var _ storage.Backend = (*Backend)(nil)
