package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hwlab/labtrack-api/internal/models"
)

// CompletionRow joins a task completion with the student it counts for.
// One completion fans out to every member of the group.
type CompletionRow struct {
	TaskID     int64   `db:"task_id"`
	GroupID    int64   `db:"group_id"`
	StudentID  int64   `db:"student_id"`
	Matrikel   string  `db:"matrikel"`
	GivenName  string  `db:"given_name"`
	FamilyName string  `db:"family_name"`
	Username   *string `db:"username"`
	Instructed bool    `db:"instructed"`
}

// ElaborationRow joins an elaboration state with the student it counts for.
type ElaborationRow struct {
	ExperimentID   int64   `db:"experiment_id"`
	GroupID        int64   `db:"group_id"`
	ReworkRequired bool    `db:"rework_required"`
	Accepted       bool    `db:"accepted"`
	StudentID      int64   `db:"student_id"`
	Matrikel       string  `db:"matrikel"`
	GivenName      string  `db:"given_name"`
	FamilyName     string  `db:"family_name"`
	Username       *string `db:"username"`
	Instructed     bool    `db:"instructed"`
}

// AnalysisRepository reads the denormalized progress rows the analyzer
// folds into per-student bitsets.
type AnalysisRepository struct {
	db *sqlx.DB
}

// NewAnalysisRepository constructs an AnalysisRepository.
func NewAnalysisRepository(db *sqlx.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Tasks returns the year's tasks in the canonical analyzer order:
// experiment id ascending, then name ascending. Extra tasks are
// excluded unless requested.
func (r *AnalysisRepository) Tasks(ctx context.Context, year int, includeExtra bool) ([]models.Task, error) {
	query := `SELECT t.id, t.name, t.experiment_id FROM tasks t
        JOIN experiments e ON e.id = t.experiment_id
        WHERE e.year = $1`
	if !includeExtra {
		query += " AND t.name NOT ILIKE 'Z%'"
	}
	query += " ORDER BY t.experiment_id ASC, t.name ASC"

	tasks := []models.Task{}
	if err := r.db.SelectContext(ctx, &tasks, query, year); err != nil {
		return nil, fmt.Errorf("analysis tasks: %w", err)
	}
	return tasks, nil
}

// Experiments returns the year's experiments ordered by id.
func (r *AnalysisRepository) Experiments(ctx context.Context, year int) ([]models.Experiment, error) {
	experiments := []models.Experiment{}
	if err := r.db.SelectContext(ctx, &experiments, "SELECT id, name, year FROM experiments WHERE year = $1 ORDER BY id ASC", year); err != nil {
		return nil, fmt.Errorf("analysis experiments: %w", err)
	}
	return experiments, nil
}

// Students returns the full roster of a year ordered by id. Exports walk
// this list so students without any record still produce a row.
func (r *AnalysisRepository) Students(ctx context.Context, year int) ([]models.Student, error) {
	students := []models.Student{}
	query := `SELECT id, matrikel, given_name, family_name, year, username, instructed
        FROM students WHERE year = $1 ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &students, query, year); err != nil {
		return nil, fmt.Errorf("analysis students: %w", err)
	}
	return students, nil
}

// Completions returns every (completion, student) pair of a year,
// ordered by student so the analyzer can fold rows into one record per
// student in a single pass.
func (r *AnalysisRepository) Completions(ctx context.Context, year int) ([]CompletionRow, error) {
	query := `SELECT c.task_id, c.group_id, s.id AS student_id, s.matrikel, s.given_name, s.family_name, s.username, s.instructed
        FROM completions c
        JOIN group_mappings gm ON gm.group_id = c.group_id
        JOIN students s ON s.id = gm.student_id
        WHERE s.year = $1 ORDER BY s.id ASC, c.task_id ASC`

	rows := []CompletionRow{}
	if err := r.db.SelectContext(ctx, &rows, query, year); err != nil {
		return nil, fmt.Errorf("analysis completions: %w", err)
	}
	return rows, nil
}

// Elaborations returns every (elaboration, student) pair of a year.
// Optional rework and accepted filters narrow the rows in SQL.
func (r *AnalysisRepository) Elaborations(ctx context.Context, year int, reworkRequired, accepted *bool) ([]ElaborationRow, error) {
	conditions := []string{"s.year = $1"}
	args := []interface{}{year}
	if reworkRequired != nil {
		conditions = append(conditions, fmt.Sprintf("el.rework_required = $%d", len(args)+1))
		args = append(args, *reworkRequired)
	}
	if accepted != nil {
		conditions = append(conditions, fmt.Sprintf("el.accepted = $%d", len(args)+1))
		args = append(args, *accepted)
	}

	query := fmt.Sprintf(`SELECT el.experiment_id, el.group_id, el.rework_required, el.accepted,
        s.id AS student_id, s.matrikel, s.given_name, s.family_name, s.username, s.instructed
        FROM elaborations el
        JOIN group_mappings gm ON gm.group_id = el.group_id
        JOIN students s ON s.id = gm.student_id
        WHERE %s ORDER BY s.id ASC, el.experiment_id ASC`, strings.Join(conditions, " AND "))

	rows := []ElaborationRow{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("analysis elaborations: %w", err)
	}
	return rows, nil
}

// DisqualifiedGroups returns the ids of groups in a year whose comment
// carries the disqualification marker.
func (r *AnalysisRepository) DisqualifiedGroups(ctx context.Context, year int) ([]int64, error) {
	query := `SELECT g.id FROM groups g
        JOIN days d ON d.id = g.day_id
        WHERE d.year = $1 AND g.comment LIKE '%' || $2 || '%'`

	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, query, year, models.DisqualifiedMarker); err != nil {
		return nil, fmt.Errorf("disqualified groups: %w", err)
	}
	return ids, nil
}

// Student converts the row's student columns into the analyzer's
// student shape, without group information.
func (c CompletionRow) Student() models.AnalysisStudent {
	return models.AnalysisStudent{
		ID:         c.StudentID,
		Matrikel:   c.Matrikel,
		Name:       c.GivenName + " " + c.FamilyName,
		Username:   c.Username,
		Instructed: c.Instructed,
	}
}

// Student converts the row's student columns into the analyzer's
// student shape, without group information.
func (e ElaborationRow) Student() models.AnalysisStudent {
	return models.AnalysisStudent{
		ID:         e.StudentID,
		Matrikel:   e.Matrikel,
		Name:       e.GivenName + " " + e.FamilyName,
		Username:   e.Username,
		Instructed: e.Instructed,
	}
}
