package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(body string) Entry {
	return Entry{Status: 200, URL: "https://pleiades.stoa.org/places/295374/json", Body: []byte(body)}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1700000000, 0)}
	m := NewMemory(2)
	m.now = clk.now

	require.NoError(t, m.Set(ctx, "a", entry("A"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", entry("B"), time.Minute))
	_, ok, _ := m.Get(ctx, "a") // a becomes most recent
	require.True(t, ok)
	require.NoError(t, m.Set(ctx, "c", entry("C"), time.Minute))

	_, ok, _ = m.Get(ctx, "b")
	assert.False(t, ok, "b should have been evicted")
	e, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", string(e.Body))

	clk.t = clk.t.Add(2 * time.Minute)
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok, "a should have expired")

	require.NoError(t, m.Set(ctx, "z", entry("Z"), 0))
	_, ok, _ = m.Get(ctx, "z")
	assert.False(t, ok, "zero ttl is not stored")

	require.NoError(t, m.Delete(ctx, "c"))
	assert.Equal(t, 0, m.Len())
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "webi_cache")
	f, err := NewFile(dir)
	require.NoError(t, err)
	clk := &clock{t: time.Unix(1700000000, 0)}
	f.now = clk.now

	k := Key("GET", "https://pleiades.stoa.org/places/295374/json")
	_, ok, err := f.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Set(ctx, k, entry(`{"title":"Zucchabar"}`), time.Hour))
	e, ok, err := f.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"title":"Zucchabar"}`, string(e.Body))
	assert.Equal(t, 200, e.Status)

	// a second store over the same directory sees the entry
	f2, err := NewFile(dir)
	require.NoError(t, err)
	f2.now = clk.now
	_, ok, err = f2.Get(ctx, k)
	require.NoError(t, err)
	assert.True(t, ok)

	clk.t = clk.t.Add(2 * time.Hour)
	_, ok, err = f.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
	_, statErr := os.Stat(f.path(k))
	assert.True(t, os.IsNotExist(statErr), "expired entry should be removed")
}

func TestFileStore_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.path("k"), []byte("{not json"), 0o644))
	_, ok, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, f.Delete(ctx, "k"))
	require.NoError(t, f.Delete(ctx, "k"))
}

func TestNewFile_EmptyDir(t *testing.T) {
	_, err := NewFile("")
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()
	r := NewRedis(rc, "")

	require.NoError(t, r.Set(ctx, "k", entry("R"), time.Minute))
	assert.True(t, mr.Exists("pleiades:webi:k"))
	e, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "R", string(e.Body))

	mr.FastForward(2 * time.Minute)
	_, ok, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mr.Set("pleiades:webi:bad", "garbage"))
	_, ok, err = r.Get(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("pleiades:webi:bad"))
}

func TestRedisStore_NilClient(t *testing.T) {
	ctx := context.Background()
	r := NewRedis(nil, "x:")
	require.NoError(t, r.Set(ctx, "k", entry("R"), time.Minute))
	_, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, r.Delete(ctx, "k"))
}

func TestChain_Backfill(t *testing.T) {
	ctx := context.Background()
	front := NewMemory(8)
	back, err := NewFile(t.TempDir())
	require.NoError(t, err)
	c := NewChain(front, nil, back)

	require.NoError(t, back.Set(ctx, "k", entry("B"), time.Hour))
	_, ok, _ := front.Get(ctx, "k")
	require.False(t, ok)

	e, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "B", string(e.Body))

	e, ok, _ = front.Get(ctx, "k")
	require.True(t, ok, "front layer should be backfilled")
	assert.Equal(t, "B", string(e.Body))

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "n", entry("N"), time.Hour))
	_, ok, _ = back.Get(ctx, "n")
	assert.True(t, ok, "writes go through to every layer")
}
