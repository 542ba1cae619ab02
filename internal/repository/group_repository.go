package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hwlab/labtrack-api/internal/models"
)

// GroupRepository manages lab groups, their member mappings, task
// completions and elaboration states.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Find returns a single group.
func (r *GroupRepository) Find(ctx context.Context, id int64) (*models.Group, error) {
	var group models.Group
	if err := r.db.GetContext(ctx, &group, "SELECT id, desk, day_id, comment FROM groups WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &group, nil
}

// ListByDay returns the groups of a day ordered by desk.
func (r *GroupRepository) ListByDay(ctx context.Context, dayID int64) ([]models.Group, error) {
	groups := []models.Group{}
	if err := r.db.SelectContext(ctx, &groups, "SELECT id, desk, day_id, comment FROM groups WHERE day_id = $1 ORDER BY desk ASC", dayID); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Create inserts a group and returns the generated id.
func (r *GroupRepository) Create(ctx context.Context, q sqlx.ExtContext, group models.Group) (int64, error) {
	var id int64
	if err := sqlx.GetContext(ctx, q, &id, "INSERT INTO groups (desk, day_id, comment) VALUES ($1, $2, $3) RETURNING id", group.Desk, group.DayID, group.Comment); err != nil {
		return 0, classify(err, "create group")
	}
	return id, nil
}

// UpdateComment replaces the free-text comment of a group.
func (r *GroupRepository) UpdateComment(ctx context.Context, q sqlx.ExtContext, id int64, comment string) error {
	res, err := q.ExecContext(ctx, "UPDATE groups SET comment = $1 WHERE id = $2", comment, id)
	if err != nil {
		return fmt.Errorf("update group comment: %w", err)
	}
	return expectOne(res, "update group comment")
}

// UpdateDesk moves a group to another desk.
func (r *GroupRepository) UpdateDesk(ctx context.Context, q sqlx.ExtContext, id int64, desk int) error {
	res, err := q.ExecContext(ctx, "UPDATE groups SET desk = $1 WHERE id = $2", desk, id)
	if err != nil {
		return classify(err, "update group desk")
	}
	return expectOne(res, "update group desk")
}

// IDsForDays returns the group ids hosted on the given days.
func (r *GroupRepository) IDsForDays(ctx context.Context, q sqlx.ExtContext, dayIDs []int64) ([]int64, error) {
	if len(dayIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT id FROM groups WHERE day_id IN (?)", dayIDs)
	if err != nil {
		return nil, fmt.Errorf("group ids for days: %w", err)
	}
	ids := []int64{}
	if err := sqlx.SelectContext(ctx, q, &ids, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("group ids for days: %w", err)
	}
	return ids, nil
}

// DependentCount reports how many completions and elaborations hang off
// a group. Deleting a group with recorded progress requires the force
// flag, so callers check this first.
func (r *GroupRepository) DependentCount(ctx context.Context, q sqlx.ExtContext, groupID int64) (int64, error) {
	var count int64
	query := `SELECT (SELECT COUNT(*) FROM completions WHERE group_id = $1)
        + (SELECT COUNT(*) FROM elaborations WHERE group_id = $1)`
	if err := sqlx.GetContext(ctx, q, &count, query, groupID); err != nil {
		return 0, fmt.Errorf("count group dependents: %w", err)
	}
	return count, nil
}

// DeleteCascade removes a group and everything attached to it. Students
// themselves survive; only their mapping into the group is dropped. The
// order matters: progress rows first, then mappings, then the group.
func (r *GroupRepository) DeleteCascade(ctx context.Context, q sqlx.ExtContext, groupID int64) error {
	steps := []struct {
		op    string
		query string
	}{
		{"delete group completions", "DELETE FROM completions WHERE group_id = $1"},
		{"delete group elaborations", "DELETE FROM elaborations WHERE group_id = $1"},
		{"delete group mappings", "DELETE FROM group_mappings WHERE group_id = $1"},
		{"delete group", "DELETE FROM groups WHERE id = $1"},
	}
	for _, step := range steps {
		if _, err := q.ExecContext(ctx, step.query, groupID); err != nil {
			return classify(err, step.op)
		}
	}
	return nil
}

// AddStudent maps a student into a group.
func (r *GroupRepository) AddStudent(ctx context.Context, q sqlx.ExtContext, studentID, groupID int64) error {
	if _, err := q.ExecContext(ctx, "INSERT INTO group_mappings (student_id, group_id) VALUES ($1, $2)", studentID, groupID); err != nil {
		return classify(err, "add student to group")
	}
	return nil
}

// RemoveStudent drops a student's mapping from a group.
func (r *GroupRepository) RemoveStudent(ctx context.Context, q sqlx.ExtContext, studentID, groupID int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM group_mappings WHERE student_id = $1 AND group_id = $2", studentID, groupID)
	if err != nil {
		return fmt.Errorf("remove student from group: %w", err)
	}
	return expectOne(res, "remove student from group")
}

// StudentsForGroup returns the members of a group ordered by matrikel.
func (r *GroupRepository) StudentsForGroup(ctx context.Context, groupID int64) ([]models.Student, error) {
	students := []models.Student{}
	query := `SELECT s.id, s.matrikel, s.given_name, s.family_name, s.year, s.username, s.instructed
        FROM students s JOIN group_mappings gm ON gm.student_id = s.id
        WHERE gm.group_id = $1 ORDER BY s.matrikel ASC`
	if err := r.db.SelectContext(ctx, &students, query, groupID); err != nil {
		return nil, fmt.Errorf("list group students: %w", err)
	}
	return students, nil
}

// SetCompletion marks a task as completed for a group. Re-marking an
// already completed task is a no-op.
func (r *GroupRepository) SetCompletion(ctx context.Context, q sqlx.ExtContext, completion models.Completion) error {
	query := `INSERT INTO completions (group_id, task_id) VALUES ($1, $2)
        ON CONFLICT (group_id, task_id) DO NOTHING`
	if _, err := q.ExecContext(ctx, query, completion.GroupID, completion.TaskID); err != nil {
		return classify(err, "set completion")
	}
	return nil
}

// DeleteCompletion withdraws a completed task from a group.
func (r *GroupRepository) DeleteCompletion(ctx context.Context, q sqlx.ExtContext, groupID, taskID int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM completions WHERE group_id = $1 AND task_id = $2", groupID, taskID)
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return expectOne(res, "delete completion")
}

// UpsertElaboration records or updates the elaboration state of a group
// for one experiment.
func (r *GroupRepository) UpsertElaboration(ctx context.Context, q sqlx.ExtContext, elaboration models.Elaboration) error {
	query := `INSERT INTO elaborations (group_id, experiment_id, rework_required, accepted) VALUES ($1, $2, $3, $4)
        ON CONFLICT (group_id, experiment_id) DO UPDATE SET rework_required = EXCLUDED.rework_required, accepted = EXCLUDED.accepted`
	if _, err := q.ExecContext(ctx, query, elaboration.GroupID, elaboration.ExperimentID, elaboration.ReworkRequired, elaboration.Accepted); err != nil {
		return classify(err, "upsert elaboration")
	}
	return nil
}

// DeleteElaboration removes the elaboration record of a group for one
// experiment.
func (r *GroupRepository) DeleteElaboration(ctx context.Context, q sqlx.ExtContext, groupID, experimentID int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM elaborations WHERE group_id = $1 AND experiment_id = $2", groupID, experimentID)
	if err != nil {
		return fmt.Errorf("delete elaboration: %w", err)
	}
	return expectOne(res, "delete elaboration")
}

// CompletionsForGroup returns the completed tasks of a group.
func (r *GroupRepository) CompletionsForGroup(ctx context.Context, groupID int64) ([]models.Completion, error) {
	completions := []models.Completion{}
	if err := r.db.SelectContext(ctx, &completions, "SELECT group_id, task_id FROM completions WHERE group_id = $1 ORDER BY task_id ASC", groupID); err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return completions, nil
}

// ElaborationsForGroup returns the elaboration states of a group.
func (r *GroupRepository) ElaborationsForGroup(ctx context.Context, groupID int64) ([]models.Elaboration, error) {
	elaborations := []models.Elaboration{}
	if err := r.db.SelectContext(ctx, &elaborations, "SELECT group_id, experiment_id, rework_required, accepted FROM elaborations WHERE group_id = $1 ORDER BY experiment_id ASC", groupID); err != nil {
		return nil, fmt.Errorf("list elaborations: %w", err)
	}
	return elaborations, nil
}

// Search finds groups in a year whose members match every given term.
// Terms are matched case-insensitively against the student name and
// matrikel; results come back ordered by day then desk.
func (r *GroupRepository) Search(ctx context.Context, year int, terms []string) ([]models.Group, error) {
	conditions := []string{"s.year = $1"}
	args := []interface{}{year}
	for _, term := range terms {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(s.given_name ILIKE $%d OR s.family_name ILIKE $%d OR s.matrikel ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+term+"%")
	}
	query := fmt.Sprintf(`SELECT DISTINCT g.id, g.desk, g.day_id, g.comment FROM groups g
        JOIN group_mappings gm ON gm.group_id = g.id
        JOIN students s ON s.id = gm.student_id
        WHERE %s ORDER BY g.day_id ASC, g.desk ASC`, strings.Join(conditions, " AND "))

	groups := []models.Group{}
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("search groups: %w", err)
	}
	return groups, nil
}
