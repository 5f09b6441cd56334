package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/config"
	"github.com/oscelab/osce-backend/internal/evaluation"
	"github.com/oscelab/osce-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TranscriptWorker consumes persist_transcripts_queue and flushes completed
// station transcripts from their Redis buffers into PostgreSQL. The buffer is
// only cleared after a successful write, so a crash between the two never
// loses a conversation.
type TranscriptWorker struct {
	transcriptRepo *repository.TranscriptRepository
	buffer         *evaluation.TranscriptBuffer
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewTranscriptWorker creates a new TranscriptWorker.
func NewTranscriptWorker(
	transcriptRepo *repository.TranscriptRepository,
	buffer *evaluation.TranscriptBuffer,
	rdb *redis.Client,
	log zerolog.Logger,
) *TranscriptWorker {
	return &TranscriptWorker{
		transcriptRepo: transcriptRepo,
		buffer:         buffer,
		rdb:            rdb,
		log:            log.With().Str("component", "transcript_worker").Logger(),
	}
}

type transcriptJob struct {
	AssignmentID string `json:"assignment_id"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *TranscriptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *TranscriptWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistTranscriptsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var job transcriptJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistTranscript(ctx, &job); err != nil {
		w.log.Error().Err(err).
			Str("assignment_id", job.AssignmentID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistTranscriptsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *TranscriptWorker) persistTranscript(ctx context.Context, job *transcriptJob) error {
	assignmentID, err := uuid.Parse(job.AssignmentID)
	if err != nil {
		return err
	}

	turns, err := w.buffer.Load(ctx, assignmentID)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		// Silent station: nothing buffered, nothing to flush.
		return nil
	}

	if err := w.transcriptRepo.SaveTurns(ctx, assignmentID, turns); err != nil {
		return err
	}

	return w.buffer.Clear(ctx, assignmentID)
}

// drain processes all remaining items in the queue before shutdown.
func (w *TranscriptWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistTranscriptsQueue).Result()
		if err != nil {
			break
		}

		var job transcriptJob
		if err := json.Unmarshal([]byte(result), &job); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistTranscript(ctx, &job); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistTranscriptsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining transcripts")
	}
}
