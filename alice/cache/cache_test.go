// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/stretchr/testify/assert"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := New(rdb, Config{
		L1TTL:        5 * time.Minute,
		L2TTL:        5 * time.Minute,
		NegativeTTL:  time.Minute,
		SimThreshold: 0.85,
		L2SearchCap:  10,
	}, nil)
	return c, mr
}

func TestCacheMissThenExactHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	res := c.Get(ctx, "greeting.hello", "hej", "micro-v1", "v4")
	assert.False(t, res.Hit)

	c.Set(ctx, "greeting.hello", "hej", map[string]any{"response": "Hej!"}, "micro-v1", "v4", 5*time.Minute)

	res = c.Get(ctx, "greeting.hello", "hej", "micro-v1", "v4")
	require.True(t, res.Hit)
	assert.Equal(t, SourceL1, res.Source)
	assert.Equal(t, "Hej!", res.Payload["response"])
}

func TestCacheSemanticNearDuplicateHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "flight.book", "book a flight to paris tomorrow", map[string]any{"response": "ok"}, "planner-v1", "v4", 5*time.Minute)

	res := c.Get(ctx, "flight.book", "book a flight to paris tomorrow please", "planner-v1", "v4")
	require.True(t, res.Hit)
	assert.Equal(t, SourceL2, res.Source)
}

func TestCacheSemanticMissBelowThreshold(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "flight.book", "book a flight to paris", map[string]any{"response": "ok"}, "planner-v1", "v4", 5*time.Minute)

	res := c.Get(ctx, "flight.book", "cancel my hotel reservation in tokyo", "planner-v1", "v4")
	assert.False(t, res.Hit)
}

func TestCacheNegativeHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.SetNegative(ctx, "do something impossible", "unknown", time.Minute)

	res := c.Get(ctx, "unknown", "do something impossible", "planner-v1", "v4")
	require.True(t, res.Hit)
	assert.Equal(t, SourceNegative, res.Source)
}

func TestCacheInvalidateByTag(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "flight.book", "book a flight to paris", map[string]any{"response": "ok"}, "planner-v1", "v4", 5*time.Minute)
	c.InvalidateByTag(ctx, "flight.book")

	res := c.Get(ctx, "flight.book", "book a flight to paris", "planner-v1", "v4")
	assert.False(t, res.Hit)
}

func TestCacheFailOpenOnRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	c := New(rdb, Config{SimThreshold: 0.85}, nil)

	res := c.Get(context.Background(), "greeting.hello", "hej", "micro-v1", "v4")
	assert.False(t, res.Hit)
	assert.Equal(t, SourceMiss, res.Source)
}
