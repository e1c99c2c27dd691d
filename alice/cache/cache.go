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

// Package cache implements the orchestrator's Redis-backed multi-tier
// cache: exact (L1), semantic-similar (L2), negative, and pattern
// tiers. It talks to Redis directly through go-redis/v8 rather than
// through the platform's generic MCP Query/Execute connector
// abstraction (connectors/redis/connector.go) — the cache needs
// tier-specific key shapes and a Jaccard scan over a namespace that the
// connector's generic GET/SET verbs don't express — but keeps that
// connector's client construction (DialTimeout/ReadTimeout/WriteTimeout,
// pool sizing) and fail-open-on-error posture.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/DanielWarg/alice-orchestrator/alice/canon"
	"github.com/DanielWarg/alice-orchestrator/alice/types"
	"github.com/DanielWarg/alice-orchestrator/shared/logger"
)

// Source identifies which tier served a hit, recorded in telemetry.
type Source string

const (
	SourceL1       Source = "l1_exact"
	SourceL2       Source = "l2_semantic"
	SourceNegative Source = "negative"
	SourcePattern  Source = "pattern"
	SourceMiss     Source = "miss"
)

// Config controls per-tier TTLs and the L2 similarity threshold.
type Config struct {
	L1TTL        time.Duration
	L2TTL        time.Duration
	NegativeTTL  time.Duration
	SimThreshold float64
	L2SearchCap  int
}

// Cache is the orchestrator's handle onto the shared Redis cache store.
type Cache struct {
	rdb *redis.Client
	cfg Config
	log *logger.Logger
}

// New creates a Cache over an already-constructed Redis client, pooled
// and timed out the way the platform's RedisConnector.Connect does.
func New(rdb *redis.Client, cfg Config, log *logger.Logger) *Cache {
	if cfg.L2SearchCap <= 0 {
		cfg.L2SearchCap = 10
	}
	return &Cache{rdb: rdb, cfg: cfg, log: log}
}

// NewClient builds a pooled go-redis client with the same timeouts the
// platform's Redis MCP connector uses.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     100,
		MinIdleConns: 10,
	})
}

// ExactKey computes the deterministic L1 key: schema_version, model_id,
// intent, a 5-minute time bucket, and the canonicalized text.
func ExactKey(schemaVersion, modelID, intent, canonicalText string, now time.Time) string {
	bucket := now.UTC().Unix() / 300
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d|%s", schemaVersion, modelID, intent, bucket, canonicalText)))
	return "l1:" + hex.EncodeToString(sum[:16])
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

func l2IndexKey(intent string) string {
	return "l2idx:" + intent
}

func negKey(canonicalText string) string {
	return "neg:" + shortHash(canonicalText)
}

type l2Record struct {
	CanonicalText string         `json:"canonical_text"`
	OriginalText  string         `json:"original_text"`
	Intent        string         `json:"intent"`
	ModelID       string         `json:"model_id"`
	SchemaVersion string         `json:"schema_version"`
	Payload       map[string]any `json:"payload"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Result is the outcome of a Get call.
type Result struct {
	Hit     bool
	Payload map[string]any
	Source  Source
	Latency time.Duration
}

// Get attempts L1 exact, then L2 semantic, then negative, in ascending
// cost order, stopping on first hit. Redis errors are treated as a
// miss; cache failures never propagate to the request.
func (c *Cache) Get(ctx context.Context, intent, rawText, modelID, schemaVersion string) Result {
	start := time.Now()
	canonical := canon.Text(rawText)

	l1Key := ExactKey(schemaVersion, modelID, intent, canonical, time.Now())
	if raw, err := c.rdb.Get(ctx, l1Key).Result(); err == nil {
		var entry types.CacheEntry
		if jsonErr := json.Unmarshal([]byte(raw), &entry); jsonErr == nil {
			return Result{Hit: true, Payload: entry.Payload, Source: SourceL1, Latency: time.Since(start)}
		}
	} else if err != redis.Nil {
		c.warn("l1 get failed", err)
	}

	if payload, ok := c.getSemantic(ctx, intent, canonical); ok {
		return Result{Hit: true, Payload: payload, Source: SourceL2, Latency: time.Since(start)}
	}

	if exists, err := c.rdb.Exists(ctx, negKey(canonical)).Result(); err == nil && exists > 0 {
		return Result{
			Hit:     true,
			Payload: map[string]any{"response": "Tyvärr, jag kunde inte hantera den förfrågan just nu."},
			Source:  SourceNegative,
			Latency: time.Since(start),
		}
	} else if err != nil && err != redis.Nil {
		c.warn("negative get failed", err)
	}

	return Result{Hit: false, Source: SourceMiss, Latency: time.Since(start)}
}

func (c *Cache) getSemantic(ctx context.Context, intent, canonical string) (map[string]any, bool) {
	members, err := c.rdb.SRandMemberN(ctx, l2IndexKey(intent), int64(c.cfg.L2SearchCap)).Result()
	if err != nil {
		if err != redis.Nil {
			c.warn("l2 index scan failed", err)
		}
		return nil, false
	}

	tokens := canon.Tokens(canonical)

	for _, key := range members {
		raw, err := c.rdb.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var rec l2Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		sim := canon.Jaccard(tokens, canon.Tokens(rec.CanonicalText))
		if sim >= c.cfg.SimThreshold {
			return rec.Payload, true
		}
	}
	return nil, false
}

// Set writes an L1 exact entry and an L2 semantic record. Write
// failures are logged but never fail the request.
func (c *Cache) Set(ctx context.Context, intent, rawText string, payload map[string]any, modelID, schemaVersion string, ttl time.Duration) {
	canonical := canon.Text(rawText)
	now := time.Now()

	entry := types.CacheEntry{
		Payload:       payload,
		CreatedAt:     now,
		TTL:           ttl,
		Tier:          string(SourceL1),
		CanonicalText: canonical,
		OriginalText:  rawText,
		Intent:        intent,
		ModelID:       modelID,
		SchemaVersion: schemaVersion,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		c.warn("l1 marshal failed", err)
		return
	}
	if err := c.rdb.Set(ctx, ExactKey(schemaVersion, modelID, intent, canonical, now), raw, ttl).Err(); err != nil {
		c.warn("l1 set failed", err)
	}

	rec := l2Record{
		CanonicalText: canonical,
		OriginalText:  rawText,
		Intent:        intent,
		ModelID:       modelID,
		SchemaVersion: schemaVersion,
		Payload:       payload,
		CreatedAt:     now,
	}
	recRaw, err := json.Marshal(rec)
	if err != nil {
		c.warn("l2 marshal failed", err)
		return
	}
	l2Key := "l2:" + intent + ":" + shortHash(canonical)
	if err := c.rdb.Set(ctx, l2Key, recRaw, c.cfg.L2TTL).Err(); err != nil {
		c.warn("l2 set failed", err)
		return
	}
	if err := c.rdb.SAdd(ctx, l2IndexKey(intent), l2Key).Err(); err != nil {
		c.warn("l2 index add failed", err)
	}
	c.rdb.Expire(ctx, l2IndexKey(intent), c.cfg.L2TTL)
}

// SetNegative writes a negative-cache marker so repeat failures on the
// same text return a fixed apologetic payload instead of retrying.
func (c *Cache) SetNegative(ctx context.Context, rawText, intent string, ttl time.Duration) {
	canonical := canon.Text(rawText)
	if err := c.rdb.Set(ctx, negKey(canonical), intent, ttl).Err(); err != nil {
		c.warn("negative set failed", err)
	}
}

// InvalidateByTag removes every L2 record indexed under an intent
// namespace, used on schema upgrades.
func (c *Cache) InvalidateByTag(ctx context.Context, intent string) {
	idxKey := l2IndexKey(intent)
	members, err := c.rdb.SMembers(ctx, idxKey).Result()
	if err != nil {
		c.warn("invalidate scan failed", err)
		return
	}
	if len(members) > 0 {
		if err := c.rdb.Del(ctx, members...).Err(); err != nil {
			c.warn("invalidate del failed", err)
		}
	}
	c.rdb.Del(ctx, idxKey)
}

func (c *Cache) warn(msg string, err error) {
	if c.log != nil {
		c.log.Warn("", "", msg, map[string]interface{}{"error": err.Error()})
	}
}
