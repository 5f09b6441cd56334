package evaluation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/config"
	"github.com/oscelab/osce-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// TranscriptBuffer holds the live conversation of an in-progress station in
// Redis. Turns are appended as the student talks to the simulated patient and
// read back in full when the station is submitted for evaluation. A buffer
// outlives a server restart, so a crash mid-station loses nothing.
type TranscriptBuffer struct {
	rdb *redis.Client
}

// NewTranscriptBuffer creates a TranscriptBuffer.
func NewTranscriptBuffer(rdb *redis.Client) *TranscriptBuffer {
	return &TranscriptBuffer{rdb: rdb}
}

// Append pushes one turn onto the end of the assignment's transcript.
func (b *TranscriptBuffer) Append(ctx context.Context, assignmentID uuid.UUID, turn model.TranscriptTurn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := config.CacheKey.StationTranscriptKey(assignmentID.String())
	if err := b.rdb.RPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("push turn: %w", err)
	}
	return nil
}

// Load returns the full transcript of one assignment, oldest first.
func (b *TranscriptBuffer) Load(ctx context.Context, assignmentID uuid.UUID) ([]model.TranscriptTurn, error) {
	key := config.CacheKey.StationTranscriptKey(assignmentID.String())
	raw, err := b.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	turns := make([]model.TranscriptTurn, 0, len(raw))
	for _, item := range raw {
		var turn model.TranscriptTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Clear removes the assignment's transcript buffer. Called by the persistence
// worker after the transcript has been flushed to the database.
func (b *TranscriptBuffer) Clear(ctx context.Context, assignmentID uuid.UUID) error {
	key := config.CacheKey.StationTranscriptKey(assignmentID.String())
	return b.rdb.Del(ctx, key).Err()
}
