package rediscache

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ragqa/internal/embedding"
)

const defaultKeyPrefix = "ragqa:emb:"

// Embedder is a read-through cache in front of another Embedder.
// Redis failures never fail an embedding; they are logged and bypassed.
type Embedder struct {
	inner     embedding.Embedder
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// Config configures the cache.
type Config struct {
	TTL       time.Duration
	KeyPrefix string
}

// New wraps inner with a Redis-backed cache.
func New(inner embedding.Embedder, client *redis.Client, cfg Config, logger *zap.Logger) *Embedder {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{inner: inner, client: client, ttl: cfg.TTL, keyPrefix: cfg.KeyPrefix, logger: logger}
}

func (e *Embedder) Name() string   { return e.inner.Name() }
func (e *Embedder) Dimension() int { return e.inner.Dimension() }

// Embed returns the cached vector for text, computing and storing it on a miss.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)
	raw, err := e.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, ok := decode(raw, e.inner.Dimension()); ok {
			return vec, nil
		}
		e.logger.Warn("discarding malformed cached embedding", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		e.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.client.Set(ctx, key, encode(vec), e.ttl).Err(); err != nil {
		e.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

func (e *Embedder) key(text string) string {
	sum := sha1.Sum([]byte(text))
	return fmt.Sprintf("%s%s:%d:%s", e.keyPrefix, e.inner.Name(), e.inner.Dimension(), hex.EncodeToString(sum[:]))
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decode(buf []byte, dimension int) ([]float32, bool) {
	if len(buf) != 4*dimension {
		return nil, false
	}
	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, true
}
