package blob

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamer_ObjectPath(t *testing.T) {
	n, err := NewNamer(3)
	require.NoError(t, err)

	p1 := n.ObjectPath("p1", "a1", "i1", "IMG 001.jpg")
	p2 := n.ObjectPath("p1", "a1", "i1", "IMG 001.jpg")
	general := n.ObjectPath("p1", "a1", "", "../../etc/passwd")

	assert.True(t, strings.HasPrefix(p1, "p1/a1/i1/"), p1)
	assert.True(t, strings.HasSuffix(p1, "_IMG_001.jpg"), p1)
	assert.NotEqual(t, p1, p2)
	assert.Less(t, p1, p2, "later uploads sort after earlier ones")
	assert.True(t, strings.HasPrefix(general, "p1/a1/general/"), general)
	assert.True(t, strings.HasSuffix(general, "_passwd"), general)

	_, err = NewNamer(5000)
	assert.Error(t, err)
}

func TestMemory_RoundTrip(t *testing.T) {
	m := NewMemory("https://cdn.example.com/photos/")
	ctx := context.Background()

	require.NoError(t, m.Upload(ctx, "p1/a1/general/1_x.jpg", strings.NewReader("jpeg"), "image/jpeg"))
	assert.Equal(t, "https://cdn.example.com/photos/p1/a1/general/1_x.jpg", m.PublicURL("p1/a1/general/1_x.jpg"))

	var buf bytes.Buffer
	require.NoError(t, m.Open(ctx, "p1/a1/general/1_x.jpg", &buf))
	assert.Equal(t, "jpeg", buf.String())

	require.NoError(t, m.Remove(ctx, "p1/a1/general/1_x.jpg"))
	assert.ErrorIs(t, m.Remove(ctx, "p1/a1/general/1_x.jpg"), ErrNotFound)
	assert.ErrorIs(t, m.Open(ctx, "missing", &buf), ErrNotFound)
	assert.Zero(t, m.Len())
}

func TestPublicURL_NoBase(t *testing.T) {
	assert.Equal(t, "/p1/a1/x.jpg", NewMemory("").PublicURL("p1/a1/x.jpg"))
}
