package preview

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/gravitypreview/internal/bundle"
	"github.com/wolfeidau/gravitypreview/internal/telemetry"
)

// DefaultMemoSize is the number of normalized bundles a Memo retains
const DefaultMemoSize = 128

type memoKey struct {
	sum   uint64
	token string
}

// memoEntry keeps the encoded input so checksum collisions are detected on lookup
type memoEntry struct {
	input string
	out   *bundle.Bundle
}

// Memo caches Normalize results keyed on the bundle contents and the caller's
// refresh token. It is safe for concurrent use.
type Memo struct {
	cache   *lru.Cache[memoKey, memoEntry]
	metrics *telemetry.Metrics
}

// NewMemo creates a memo holding up to size bundles
func NewMemo(size int) (*Memo, error) {
	cache, err := lru.New[memoKey, memoEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memo cache: %w", err)
	}

	return &Memo{
		cache:   cache,
		metrics: telemetry.GetMetrics(),
	}, nil
}

// Normalize returns the cached result for (b, token) or computes and stores it.
// Failures are not cached. The returned bundle is owned by the caller.
func (m *Memo) Normalize(ctx context.Context, b *bundle.Bundle, token any) (*bundle.Bundle, error) {
	if b == nil {
		return nil, nil
	}

	input, err := bundle.Encode(b, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundle for memo key: %w", err)
	}
	key := keyFor(input, token)

	if cached, ok := m.cache.Get(key); ok {
		if cached.input == string(input) {
			m.metrics.CacheHitsTotal.Add(ctx, 1)
			zerolog.Ctx(ctx).Debug().Uint64("sum", key.sum).Str("token", key.token).Msg("memo hit")
			return cached.out.Clone(), nil
		}
		zerolog.Ctx(ctx).Debug().Uint64("sum", key.sum).Str("token", key.token).Msg("memo checksum collision")
	}
	m.metrics.CacheMissesTotal.Add(ctx, 1)

	started := time.Now()
	out, err := Normalize(b, token)
	m.metrics.NormalizeTotal.Add(ctx, 1)
	m.metrics.NormalizeDuration.Record(ctx, float64(time.Since(started).Microseconds())/1000)
	if err != nil {
		m.metrics.NormalizeErrorsTotal.Add(ctx, 1)
		return nil, err
	}
	m.metrics.ModulesEmitted.Record(ctx, int64(out.Modules.Len()), metric.WithAttributes(attribute.String("kind", out.Kind)))

	m.cache.Add(key, memoEntry{input: string(input), out: out})

	return out.Clone(), nil
}

// Len reports the number of cached bundles
func (m *Memo) Len() int {
	return m.cache.Len()
}

// Purge drops every cached bundle
func (m *Memo) Purge() {
	m.cache.Purge()
}

func keyFor(input []byte, token any) memoKey {
	h := crc64nvme.New()
	h.Write(input)

	key := memoKey{sum: h.Sum64()}
	if token != nil {
		key.token = fmt.Sprint(token)
	}
	return key
}
