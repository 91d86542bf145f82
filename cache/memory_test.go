package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory[string](time.Minute, clock.Now)

	require.NoError(t, m.Set(ctx, "k", "v"))

	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(59 * time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.True(t, ok, "entry lives until the TTL elapses")

	clock.Advance(time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok, "entry expires at the TTL")
	assert.Equal(t, 0, m.Len(), "expired entry dropped on read")
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory[int](0, nil)
	assert.Equal(t, DefaultTTL, m.TTL())

	require.NoError(t, m.Set(ctx, "k", 1))
	require.NoError(t, m.Delete(ctx, "k"))

	_, ok, _ := m.Get(ctx, "k")
	assert.False(t, ok)
	assert.NoError(t, m.Delete(ctx, "missing"))
}

func TestMemory_SetRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := NewMemory[string](time.Minute, clock.Now)

	require.NoError(t, m.Set(ctx, "k", "old"))
	clock.Advance(50 * time.Second)
	require.NoError(t, m.Set(ctx, "k", "new"))
	clock.Advance(50 * time.Second)

	v, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory[int](time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key("t", string(rune('a'+i%5)))
			_ = m.Set(ctx, key, i)
			_, _, _ = m.Get(ctx, key)
			if i%3 == 0 {
				_ = m.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 5)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "schema:t1:invoice", Key("schema", "t1", "invoice"))
	assert.Equal(t, "", Key())
}
