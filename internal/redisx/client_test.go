package redisx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCmdable answers Get and Set from a map.
type stubCmdable struct {
	redis.Cmdable
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func (s *stubCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	switch v, ok := s.values[key]; {
	case s.err != nil:
		cmd.SetErr(s.err)
	case !ok:
		cmd.SetErr(redis.Nil)
	default:
		cmd.SetVal(v)
	}
	return cmd
}

func (s *stubCmdable) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	s.values[key] = string(value.([]byte))
	s.ttls[key] = ttl
	cmd.SetVal("OK")
	return cmd
}

func TestCache_GetSet(t *testing.T) {
	stub := &stubCmdable{values: map[string]string{}, ttls: map[string]time.Duration{}}
	c := NewCache(stub)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "search:flights:jfk:lax:2025-03-10:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "search:flights:jfk:lax:2025-03-10:1", []byte(`[]`), 30*time.Second))
	v, ok, err := c.Get(ctx, "search:flights:jfk:lax:2025-03-10:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(v))
	assert.Equal(t, 30*time.Second, stub.ttls["search:flights:jfk:lax:2025-03-10:1"])
}

func TestCache_Errors(t *testing.T) {
	stub := &stubCmdable{values: map[string]string{}, ttls: map[string]time.Duration{}, err: errors.New("dial tcp: refused")}
	c := NewCache(stub)

	_, ok, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Set(context.Background(), "k", []byte("v"), time.Second))
}
