package fsbackend

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	b, err := New(t.TempDir(), 10)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := b.Put(ctx, "acme/2024/invoice/b1/p1.png", strings.NewReader("hello"), "image/png", nil, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.VersionID)
	assert.NotEmpty(t, res.ETag)

	r, meta, err := b.Get(ctx, "acme/2024/invoice/b1/p1.png", "")
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "image/png", meta["content_type"])
}

func TestPutIdempotentOnUnchangedBytes(t *testing.T) {
	b, err := New(t.TempDir(), 10)
	require.NoError(t, err)
	ctx := context.Background()

	res1, err := b.Put(ctx, "k", strings.NewReader("same"), "text/plain", nil, "")
	require.NoError(t, err)
	res2, err := b.Put(ctx, "k", strings.NewReader("same"), "text/plain", nil, "")
	require.NoError(t, err)
	assert.Equal(t, res1.ETag, res2.ETag)

	versions, err := b.ListVersions(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestPutDifferentBytesCreatesNewVersion(t *testing.T) {
	b, err := New(t.TempDir(), 10)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = b.Put(ctx, "k", strings.NewReader("v1"), "text/plain", nil, "")
	require.NoError(t, err)
	_, err = b.Put(ctx, "k", strings.NewReader("v2"), "text/plain", nil, "")
	require.NoError(t, err)

	versions, err := b.ListVersions(ctx, "k")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.True(t, versions[0].IsLatest)
	assert.True(t, versions[0].CreatedAt.After(versions[1].CreatedAt) || versions[0].CreatedAt.Equal(versions[1].CreatedAt))
}

func TestListVersionsNewestFirstAndIsLatest(t *testing.T) {
	b, err := New(t.TempDir(), 10)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = b.Put(ctx, "k", strings.NewReader("v1"), "text/plain", nil, "")
	require.NoError(t, err)
	res2, err := b.Put(ctx, "k", strings.NewReader("v2"), "text/plain", nil, "")
	require.NoError(t, err)

	versions, err := b.ListVersions(ctx, "k")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, res2.VersionID, versions[0].VersionID)
	assert.True(t, versions[0].IsLatest)
	assert.False(t, versions[1].IsLatest)
}

func TestListVersionsReportsEachVersionsOwnETag(t *testing.T) {
	b, err := New(t.TempDir(), 10)
	require.NoError(t, err)
	ctx := context.Background()

	res1, err := b.Put(ctx, "k", strings.NewReader("v1"), "text/plain", nil, "")
	require.NoError(t, err)
	res2, err := b.Put(ctx, "k", strings.NewReader("v2"), "text/plain", nil, "")
	require.NoError(t, err)
	require.NotEqual(t, res1.ETag, res2.ETag)

	versions, err := b.ListVersions(ctx, "k")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, res2.ETag, versions[0].ETag)
	assert.Equal(t, res1.ETag, versions[1].ETag)

	r, meta, err := b.Get(ctx, "k", versions[1].VersionID)
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, res1.ETag, meta["etag"])
}
