package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oscelab/osce-backend/internal/model"
)

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id int) (*model.Student, error) {
	student := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_number, name, year, password_hash, created_at, updated_at
		 FROM students WHERE id = $1`, id,
	).Scan(&student.ID, &student.StudentNumber, &student.Name, &student.Year,
		&student.PasswordHash, &student.CreatedAt, &student.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return student, nil
}

// GetByStudentNumber retrieves a student by their student number.
func (r *StudentRepository) GetByStudentNumber(ctx context.Context, studentNumber string) (*model.Student, error) {
	student := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_number, name, year, password_hash, created_at, updated_at
		 FROM students WHERE student_number = $1`, studentNumber,
	).Scan(&student.ID, &student.StudentNumber, &student.Name, &student.Year,
		&student.PasswordHash, &student.CreatedAt, &student.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return student, nil
}

// List retrieves all students ordered by student number.
func (r *StudentRepository) List(ctx context.Context) ([]model.Student, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_number, name, year, created_at, updated_at
		 FROM students ORDER BY student_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var s model.Student
		if err := rows.Scan(&s.ID, &s.StudentNumber, &s.Name, &s.Year, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, student *model.Student) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO students (student_number, name, year, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		student.StudentNumber, student.Name, student.Year, student.PasswordHash,
	).Scan(&student.ID, &student.CreatedAt, &student.UpdatedAt)
}

// Update writes the student's profile fields.
func (r *StudentRepository) Update(ctx context.Context, student *model.Student) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE students SET name = $1, year = $2, updated_at = NOW() WHERE id = $3`,
		student.Name, student.Year, student.ID)
	return err
}

// UpdatePassword replaces the student's password hash.
func (r *StudentRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE students SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		passwordHash, id)
	return err
}

// Delete removes a student.
func (r *StudentRepository) Delete(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	return err
}

// CountByIDs returns how many of the given IDs exist.
func (r *StudentRepository) CountByIDs(ctx context.Context, ids []int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM students WHERE id = ANY($1::int[])`, ids,
	).Scan(&count)
	return count, err
}
