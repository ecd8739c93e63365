package gallery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldreport/internal/artifact"
)

func img(name string, size int) artifact.Artifact {
	return artifact.Artifact{Name: name, MIME: "image/jpeg", Kind: artifact.KindImage, Data: make([]byte, size)}
}

func vid(name string, size int) artifact.Artifact {
	return artifact.Artifact{Name: name, MIME: "video/webm", Kind: artifact.KindVideo, Data: make([]byte, size)}
}

func TestAddAllocatesOnePreviewHandle(t *testing.T) {
	reg := NewRegistry()
	c := NewCollection(reg, DefaultLimits())

	a := img("a.jpg", 100)
	res, err := c.Add(a)
	require.NoError(t, err)
	assert.Equal(t, Added, res)
	assert.True(t, c.Contains(a))
	assert.Equal(t, 1, reg.LiveCount())
}

func TestAddTwiceIsDuplicate(t *testing.T) {
	c := NewCollection(nil, DefaultLimits())
	a := img("a.jpg", 100)

	res, err := c.Add(a)
	require.NoError(t, err)
	require.Equal(t, Added, res)

	res, err = c.Add(a)
	require.NoError(t, err)
	assert.Equal(t, SkippedDuplicate, res)
	assert.Equal(t, 1, c.Len())
}

func TestVideoSizeSimilarityDedup(t *testing.T) {
	c := NewCollection(nil, DefaultLimits())
	_, err := c.Add(vid("clip_abc.webm", 10000))
	require.NoError(t, err)

	// Different generated name, size within 5%: treated as the same recording.
	res, err := c.Add(vid("clip_xyz.webm", 10300))
	require.NoError(t, err)
	assert.Equal(t, SkippedDuplicate, res)

	// Outside the tolerance: genuinely different recording.
	res, err = c.Add(vid("clip_far.webm", 12000))
	require.NoError(t, err)
	assert.Equal(t, Added, res)
}

func TestImageCapRejectsSixth(t *testing.T) {
	c := NewCollection(nil, DefaultLimits())
	for i := 0; i < 5; i++ {
		res, err := c.Add(img(string(rune('a'+i))+".jpg", 100+i))
		require.NoError(t, err)
		require.Equal(t, Added, res)
	}
	res, err := c.Add(img("f.jpg", 999))
	require.NoError(t, err)
	assert.Equal(t, RejectedOverCapacity, res)
	assert.Equal(t, 5, c.Len())
}

func TestCapsAreIndependentPerKind(t *testing.T) {
	c := NewCollection(nil, Limits{MaxImages: 1, MaxVideos: 1})
	res, _ := c.Add(img("a.jpg", 10))
	require.Equal(t, Added, res)
	// Image cap full; a video still fits.
	res, _ = c.Add(vid("v.webm", 5000))
	assert.Equal(t, Added, res)
}

func TestRemoveRevokesExactlyThatHandle(t *testing.T) {
	reg := NewRegistry()
	c := NewCollection(reg, DefaultLimits())
	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		_, err := c.Add(img(name, 100+i))
		require.NoError(t, err)
	}
	items := c.Items()
	require.Len(t, items, 3)

	require.NoError(t, c.Remove(1))

	assert.False(t, reg.Valid(items[1].Preview), "removed handle must be revoked")
	assert.True(t, reg.Valid(items[0].Preview))
	assert.True(t, reg.Valid(items[2].Preview))
	assert.Equal(t, 2, c.Len())
}

func TestRemoveOutOfRange(t *testing.T) {
	c := NewCollection(nil, DefaultLimits())
	assert.Error(t, c.Remove(0))
	assert.Error(t, c.Remove(-1))
}

func TestClearRevokesEverything(t *testing.T) {
	reg := NewRegistry()
	c := NewCollection(reg, DefaultLimits())
	for i := 0; i < 3; i++ {
		_, err := c.Add(img(string(rune('a'+i))+".jpg", 50+i))
		require.NoError(t, err)
	}
	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, reg.LiveCount())

	created, revoked := reg.Stats()
	assert.Equal(t, created, revoked, "every created handle must be revoked")
}

func TestReplaceRevokesPriorHandles(t *testing.T) {
	reg := NewRegistry()
	c := NewCollection(reg, DefaultLimits())
	_, err := c.Add(img("a.jpg", 10))
	require.NoError(t, err)
	_, err = c.Add(img("b.jpg", 20))
	require.NoError(t, err)

	res, err := c.Replace(img("c.jpg", 30))
	require.NoError(t, err)
	assert.Equal(t, Added, res)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, reg.LiveCount())
}

func TestRegistryBytesFollowHandleLifecycle(t *testing.T) {
	reg := NewRegistry()
	a := img("a.jpg", 16)
	h, err := reg.Create(a)
	require.NoError(t, err)

	got, ok := reg.Bytes(h)
	require.True(t, ok)
	assert.Len(t, got, 16)

	reg.Revoke(h)
	_, ok = reg.Bytes(h)
	assert.False(t, ok, "revoked handle must not serve bytes")
}
