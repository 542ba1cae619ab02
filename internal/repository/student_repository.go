package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hwlab/labtrack-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByYear returns the students of a year ordered by matrikel.
func (r *StudentRepository) ListByYear(ctx context.Context, year int) ([]models.Student, error) {
	students := []models.Student{}
	query := "SELECT id, matrikel, given_name, family_name, year, username, instructed FROM students WHERE year = $1 ORDER BY matrikel ASC"
	if err := r.db.SelectContext(ctx, &students, query, year); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Find returns a single student.
func (r *StudentRepository) Find(ctx context.Context, id int64) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT id, matrikel, given_name, family_name, year, username, instructed FROM students WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a student and returns the generated id.
func (r *StudentRepository) Create(ctx context.Context, q sqlx.ExtContext, student models.Student) (int64, error) {
	var id int64
	query := "INSERT INTO students (matrikel, given_name, family_name, year, username, instructed) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id"
	if err := sqlx.GetContext(ctx, q, &id, query, student.Matrikel, student.GivenName, student.FamilyName, student.Year, student.Username, student.Instructed); err != nil {
		return 0, classify(err, "create student")
	}
	return id, nil
}

// Delete removes a student row. Fails with a constraint violation while
// the student is still mapped into a group.
func (r *StudentRepository) Delete(ctx context.Context, q sqlx.ExtContext, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return classify(err, "delete student")
	}
	return expectOne(res, "delete student")
}

// SetInstructed records whether the student received the safety instruction.
func (r *StudentRepository) SetInstructed(ctx context.Context, q sqlx.ExtContext, id int64, instructed bool) error {
	res, err := q.ExecContext(ctx, "UPDATE students SET instructed = $1 WHERE id = $2", instructed, id)
	if err != nil {
		return fmt.Errorf("set student instructed: %w", err)
	}
	return expectOne(res, "set student instructed")
}

// Search finds students in a year matching every given term against
// name and matrikel, ordered by matrikel.
func (r *StudentRepository) Search(ctx context.Context, year int, terms []string) ([]models.Student, error) {
	conditions := []string{"year = $1"}
	args := []interface{}{year}
	for _, term := range terms {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(given_name ILIKE $%d OR family_name ILIKE $%d OR matrikel ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+term+"%")
	}
	query := fmt.Sprintf("SELECT id, matrikel, given_name, family_name, year, username, instructed FROM students WHERE %s ORDER BY matrikel ASC", strings.Join(conditions, " AND "))

	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("search students: %w", err)
	}
	return students, nil
}

// GroupsForStudent returns the ids of the groups a student belongs to.
func (r *StudentRepository) GroupsForStudent(ctx context.Context, id int64) ([]int64, error) {
	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, "SELECT group_id FROM group_mappings WHERE student_id = $1 ORDER BY group_id ASC", id); err != nil {
		return nil, fmt.Errorf("groups for student: %w", err)
	}
	return ids, nil
}

// DeleteForYear removes the student rows of a year. Mappings must
// already be gone because groups are torn down first.
func (r *StudentRepository) DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM students WHERE year = $1", year); err != nil {
		return classify(err, "delete students for year")
	}
	return nil
}
