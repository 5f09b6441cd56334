package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oscelab/osce-backend/internal/model"
)

// CaseRepository handles OSCE case data access. Checklists are stored as a
// jsonb column; the rubric is read and written as one unit.
type CaseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository creates a new CaseRepository.
func NewCaseRepository(pool *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{pool: pool}
}

func scanCase(row pgx.Row) (*model.Case, error) {
	c := &model.Case{}
	var checklist []byte
	err := row.Scan(&c.ID, &c.Title, &c.Specialty, &c.PresentingComplaint,
		&c.PatientPrompt, &checklist, &c.AuthorID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(checklist, &c.Checklist); err != nil {
		return nil, fmt.Errorf("unmarshal checklist: %w", err)
	}
	return c, nil
}

// GetByID retrieves a case by ID.
func (r *CaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	return scanCase(r.pool.QueryRow(ctx,
		`SELECT id, title, specialty, presenting_complaint, patient_prompt, checklist,
		        author_id, created_at, updated_at
		 FROM cases WHERE id = $1`, id))
}

// List retrieves all cases without their checklists or patient prompts.
func (r *CaseRepository) List(ctx context.Context) ([]model.Case, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, specialty, presenting_complaint, author_id, created_at, updated_at
		 FROM cases ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []model.Case
	for rows.Next() {
		var c model.Case
		if err := rows.Scan(&c.ID, &c.Title, &c.Specialty, &c.PresentingComplaint,
			&c.AuthorID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// Create inserts a new case.
func (r *CaseRepository) Create(ctx context.Context, c *model.Case) error {
	checklist, err := json.Marshal(c.Checklist)
	if err != nil {
		return fmt.Errorf("marshal checklist: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO cases (id, title, specialty, presenting_complaint, patient_prompt, checklist, author_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		c.ID, c.Title, c.Specialty, c.PresentingComplaint, c.PatientPrompt, checklist, c.AuthorID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// Update writes the case's editable fields.
func (r *CaseRepository) Update(ctx context.Context, c *model.Case) error {
	checklist, err := json.Marshal(c.Checklist)
	if err != nil {
		return fmt.Errorf("marshal checklist: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE cases
		 SET title = $1, specialty = $2, presenting_complaint = $3, patient_prompt = $4,
		     checklist = $5, updated_at = NOW()
		 WHERE id = $6`,
		c.Title, c.Specialty, c.PresentingComplaint, c.PatientPrompt, checklist, c.ID)
	return err
}

// Delete removes a case.
func (r *CaseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cases WHERE id = $1`, id)
	return err
}

// CountByIDs returns how many of the given case IDs exist.
func (r *CaseRepository) CountByIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cases WHERE id = ANY($1::uuid[])`, ids,
	).Scan(&count)
	return count, err
}

// InUse reports whether the case appears in any session's station bank.
func (r *CaseRepository) InUse(ctx context.Context, id uuid.UUID) (bool, error) {
	var inUse bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM station_bank WHERE case_id = $1)`, id,
	).Scan(&inUse)
	return inUse, err
}
