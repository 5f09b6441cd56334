package evaluation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/oscelab/osce-backend/internal/config"
	"github.com/oscelab/osce-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedEvaluator memoizes evaluation results in Redis, keyed by a digest of
// the case and transcript content. Retrying a completion after a transient
// failure — or a double-submit racing the first — reuses the stored verdict
// instead of paying for a second LLM call. Cache failures degrade to a
// direct evaluation; they never fail the request.
type CachedEvaluator struct {
	inner Evaluator
	rdb   *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedEvaluator wraps inner with a Redis result cache.
func NewCachedEvaluator(inner Evaluator, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedEvaluator {
	return &CachedEvaluator{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With().Str("component", "evaluation_cache").Logger(),
	}
}

// Evaluate returns the cached result for identical content, otherwise
// delegates and stores the outcome.
func (c *CachedEvaluator) Evaluate(ctx context.Context, cs *model.Case, transcript []model.TranscriptTurn) (*model.EvaluationResult, error) {
	key := config.CacheKey.EvaluationResultKey(ContentHash(cs, transcript))

	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var cached model.EvaluationResult
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return &cached, nil
		}
		c.log.Warn().Str("key", key).Msg("Discarding corrupt cached evaluation")
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Msg("Evaluation cache read failed")
	}

	result, err := c.inner.Evaluate(ctx, cs, transcript)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Msg("Evaluation cache write failed")
		}
	}
	return result, nil
}

// ContentHash digests the case identity, checklist and transcript into a
// stable cache key. Timestamps are excluded so a replayed transcript with
// identical content hits the cache.
func ContentHash(cs *model.Case, transcript []model.TranscriptTurn) string {
	h := sha256.New()
	h.Write([]byte(cs.ID.String()))
	for _, item := range cs.Checklist {
		h.Write([]byte{0})
		h.Write([]byte(item.Description))
	}
	for _, turn := range transcript {
		h.Write([]byte{0})
		h.Write([]byte(turn.Role))
		h.Write([]byte{0x1f})
		h.Write([]byte(turn.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}
