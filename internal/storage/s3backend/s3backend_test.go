package s3backend

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivecore.io/core/internal/domain"
)

// fakeObject mirrors the teacher's MockS3Object (storage/s3_mock.go).
type fakeObject struct {
	content  string
	metadata map[string]string
}

// fakeClient is a hand-rolled stand-in for the teacher's MockS3Client,
// adapted to the archivecore Client boundary.
type fakeClient struct {
	objects map[string]*fakeObject
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string]*fakeObject)}
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = &fakeObject{content: string(data), metadata: in.Metadata}
	return &s3.PutObjectOutput{VersionId: aws.String("v1")}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(strings.NewReader(obj.content)),
		Metadata:    obj.metadata,
		ContentType: aws.String("application/octet-stream"),
	}, nil
}

func (f *fakeClient) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	var contents []types.Object
	for key, obj := range f.objects {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			contents = append(contents, types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(obj.content)))})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func (f *fakeClient) ListObjectVersions(_ context.Context, in *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	key := aws.ToString(in.Prefix)
	if _, ok := f.objects[key]; !ok {
		return &s3.ListObjectVersionsOutput{}, nil
	}
	return &s3.ListObjectVersionsOutput{
		Versions: []types.ObjectVersion{
			{Key: aws.String(key), VersionId: aws.String("v1"), IsLatest: aws.Bool(true)},
		},
	}, nil
}

func (f *fakeClient) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	src := strings.SplitN(aws.ToString(in.CopySource), "/", 2)[1]
	obj, ok := f.objects[src]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	f.objects[*in.Key] = &fakeObject{content: obj.content, metadata: obj.metadata}
	return &s3.CopyObjectOutput{}, nil
}

func TestPutGetRoundTrip(t *testing.T) {
	b := New(newFakeClient(), "archive-bucket")
	ctx := context.Background()

	res, err := b.Put(ctx, "acme/2024/invoice/b1/p1.png", strings.NewReader("hello"), "image/png", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.VersionID)
	assert.NotEmpty(t, res.ETag)

	r, meta, err := b.Get(ctx, "acme/2024/invoice/b1/p1.png", "")
	require.NoError(t, err)
	defer r.Close()
	data, _ := io.ReadAll(r)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "application/octet-stream", meta["content_type"])
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	b := New(newFakeClient(), "archive-bucket")
	_, _, err := b.Get(context.Background(), "missing", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExistsAndDelete(t *testing.T) {
	b := New(newFakeClient(), "archive-bucket")
	ctx := context.Background()
	_, err := b.Put(ctx, "k", strings.NewReader("v"), "text/plain", nil, "")
	require.NoError(t, err)

	ok, err := b.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.Delete(ctx, "k", ""))
	ok, err = b.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListFiltersByPrefixAndPaginates(t *testing.T) {
	b := New(newFakeClient(), "archive-bucket")
	ctx := context.Background()
	for _, k := range []string{"acme/a", "acme/b", "other/c"} {
		_, err := b.Put(ctx, k, strings.NewReader("x"), "text/plain", nil, "")
		require.NoError(t, err)
	}

	out, err := b.List(ctx, "acme/", 0, 0)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestCopyDuplicatesObject(t *testing.T) {
	b := New(newFakeClient(), "archive-bucket")
	ctx := context.Background()
	_, err := b.Put(ctx, "src", strings.NewReader("payload"), "text/plain", nil, "")
	require.NoError(t, err)

	require.NoError(t, b.Copy(ctx, "src", "dst"))
	r, _, err := b.Get(ctx, "dst", "")
	require.NoError(t, err)
	defer r.Close()
	data, _ := io.ReadAll(r)
	assert.Equal(t, "payload", string(data))
}

func TestListVersionsReturnsNativeVersionIDs(t *testing.T) {
	b := New(newFakeClient(), "archive-bucket")
	ctx := context.Background()
	_, err := b.Put(ctx, "k", strings.NewReader("v"), "text/plain", nil, "")
	require.NoError(t, err)

	versions, err := b.ListVersions(ctx, "k")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "v1", versions[0].VersionID)
	assert.True(t, versions[0].IsLatest)
}

func TestURLWithoutPresignClientReturnsError(t *testing.T) {
	b := New(newFakeClient(), "archive-bucket")
	_, err := b.URL(context.Background(), "k", 0)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}
