package ws

import (
	"context"
	"encoding/json"

	"github.com/oscelab/osce-backend/internal/competition"
	"github.com/oscelab/osce-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisPublisher fans competition events out over a per-session Redis PubSub
// channel. Every attached monitor socket — on any server instance — receives
// them. Failures are logged and swallowed: the engine's transitions must
// never depend on monitor delivery.
type RedisPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisPublisher creates a RedisPublisher.
func NewRedisPublisher(rdb *redis.Client, log zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		rdb: rdb,
		log: log.With().Str("component", "ws_publisher").Logger(),
	}
}

var _ competition.Publisher = (*RedisPublisher)(nil)

// Publish serializes the event and sends it on the session's monitor channel.
func (p *RedisPublisher) Publish(ctx context.Context, ev competition.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Str("type", string(ev.Type)).Msg("Failed to marshal monitor event")
		return
	}

	channel := config.CacheKey.SessionMonitorChannel(ev.SessionID.String())
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		p.log.Warn().Err(err).Str("channel", channel).Msg("Failed to publish monitor event")
	}
}
