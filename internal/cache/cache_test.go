package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ristretto applies sets asynchronously through its internal ring buffer, so
// tests give it a moment to land before asserting visibility.
func settle() { time.Sleep(20 * time.Millisecond) }

func TestGeneric_SetThenGet(t *testing.T) {
	c, err := New[string]("test")
	require.NoError(t, err)

	ctx := context.Background()
	c.Set(ctx, "PEPE", "resolved-symbol", time.Minute)
	settle()

	val, ok := c.Get(ctx, "PEPE")
	require.True(t, ok)
	assert.Equal(t, "resolved-symbol", val)
}

func TestGeneric_GetMissReturnsZeroValue(t *testing.T) {
	c, err := New[string]("test")
	require.NoError(t, err)

	val, ok := c.Get(context.Background(), "never-set")
	assert.False(t, ok)
	assert.Equal(t, "", val)
}

func TestGeneric_Delete(t *testing.T) {
	c, err := New[int]("test")
	require.NoError(t, err)

	ctx := context.Background()
	c.Set(ctx, "k", 42, time.Minute)
	settle()
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	c.Delete(ctx, "k")
	settle()

	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestGeneric_WorksWithStructValues(t *testing.T) {
	type resolved struct {
		Symbol string
		Ok     bool
	}
	c, err := New[resolved]("test")
	require.NoError(t, err)

	ctx := context.Background()
	c.Set(ctx, "BONK", resolved{Symbol: "BONK", Ok: true}, time.Minute)
	settle()

	val, ok := c.Get(ctx, "BONK")
	require.True(t, ok)
	assert.Equal(t, resolved{Symbol: "BONK", Ok: true}, val)
}
