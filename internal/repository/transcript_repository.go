package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oscelab/osce-backend/internal/model"
)

// TranscriptRepository persists station conversation transcripts. The hot
// path buffers turns in Redis; this repository is the durable sink the
// persistence worker flushes into after a station completes.
type TranscriptRepository struct {
	pool *pgxpool.Pool
}

// NewTranscriptRepository creates a new TranscriptRepository.
func NewTranscriptRepository(pool *pgxpool.Pool) *TranscriptRepository {
	return &TranscriptRepository{pool: pool}
}

// SaveTurns bulk-inserts the full transcript of one assignment. The worker
// may retry after partial failures, so earlier rows are cleared first.
func (r *TranscriptRepository) SaveTurns(ctx context.Context, assignmentID uuid.UUID, turns []model.TranscriptTurn) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM station_transcripts WHERE assignment_id = $1`, assignmentID); err != nil {
		return fmt.Errorf("clear transcript: %w", err)
	}

	roles := make([]string, len(turns))
	contents := make([]string, len(turns))
	ats := make([]time.Time, len(turns))
	seqs := make([]int, len(turns))
	for i, t := range turns {
		roles[i] = t.Role
		contents[i] = t.Content
		ats[i] = t.At
		seqs[i] = i + 1
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO station_transcripts (assignment_id, seq, role, content, at)
		 SELECT $1, u.seq, u.role, u.content, u.at
		 FROM UNNEST($2::int[], $3::text[], $4::text[], $5::timestamptz[]) AS u (seq, role, content, at)`,
		assignmentID, seqs, roles, contents, ats); err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return tx.Commit(ctx)
}

// GetTurns retrieves the persisted transcript of one assignment in order.
func (r *TranscriptRepository) GetTurns(ctx context.Context, assignmentID uuid.UUID) ([]model.TranscriptTurn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role, content, at FROM station_transcripts
		 WHERE assignment_id = $1 ORDER BY seq`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []model.TranscriptTurn
	for rows.Next() {
		var t model.TranscriptTurn
		if err := rows.Scan(&t.Role, &t.Content, &t.At); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
