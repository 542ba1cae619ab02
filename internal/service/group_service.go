package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	"github.com/hwlab/labtrack-api/pkg/database"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

type groupRepository interface {
	Find(ctx context.Context, id int64) (*models.Group, error)
	ListByDay(ctx context.Context, dayID int64) ([]models.Group, error)
	Create(ctx context.Context, q sqlx.ExtContext, group models.Group) (int64, error)
	UpdateComment(ctx context.Context, q sqlx.ExtContext, id int64, comment string) error
	UpdateDesk(ctx context.Context, q sqlx.ExtContext, id int64, desk int) error
	DependentCount(ctx context.Context, q sqlx.ExtContext, groupID int64) (int64, error)
	DeleteCascade(ctx context.Context, q sqlx.ExtContext, groupID int64) error
	AddStudent(ctx context.Context, q sqlx.ExtContext, studentID, groupID int64) error
	RemoveStudent(ctx context.Context, q sqlx.ExtContext, studentID, groupID int64) error
	StudentsForGroup(ctx context.Context, groupID int64) ([]models.Student, error)
	SetCompletion(ctx context.Context, q sqlx.ExtContext, completion models.Completion) error
	DeleteCompletion(ctx context.Context, q sqlx.ExtContext, groupID, taskID int64) error
	UpsertElaboration(ctx context.Context, q sqlx.ExtContext, elaboration models.Elaboration) error
	DeleteElaboration(ctx context.Context, q sqlx.ExtContext, groupID, experimentID int64) error
	CompletionsForGroup(ctx context.Context, groupID int64) ([]models.Completion, error)
	ElaborationsForGroup(ctx context.Context, groupID int64) ([]models.Elaboration, error)
	Search(ctx context.Context, year int, terms []string) ([]models.Group, error)
}

type groupYearRepository interface {
	Find(ctx context.Context, id int) (*models.Year, error)
	FindWritableYearForGroup(ctx context.Context, q sqlx.ExtContext, groupID int64) (*models.Year, error)
}

type groupDayRepository interface {
	Find(ctx context.Context, id int64) (*models.Day, error)
}

type groupStudentRepository interface {
	Find(ctx context.Context, id int64) (*models.Student, error)
}

type groupTaskRepository interface {
	FindTask(ctx context.Context, id int64) (*models.TaskDetail, error)
	Find(ctx context.Context, id int64) (*models.Experiment, error)
}

// GroupDetail is a group together with its members and recorded progress.
type GroupDetail struct {
	Group        models.Group         `json:"group"`
	Students     []models.Student     `json:"students"`
	Completions  []models.Completion  `json:"completions"`
	Elaborations []models.Elaboration `json:"elaborations"`
}

// GroupService implements the tutor-facing mutation surface: groups,
// memberships, task completions and elaboration states. Every mutation
// resolves the owning year, checks tutor rights and writability, applies
// the change and its audit line in one transaction, and only then fires
// the push notification.
type GroupService struct {
	db       *sqlx.DB
	groups   groupRepository
	years    groupYearRepository
	days     groupDayRepository
	students groupStudentRepository
	tasks    groupTaskRepository
	audit    *AuditService
	cache    *CacheService
	notifier *NotifierService
	logger   *zap.Logger
}

// NewGroupService constructs a GroupService.
func NewGroupService(db *sqlx.DB, groups groupRepository, years groupYearRepository, days groupDayRepository, students groupStudentRepository, tasks groupTaskRepository, audit *AuditService, cache *CacheService, notifier *NotifierService, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{
		db:       db,
		groups:   groups,
		years:    years,
		days:     days,
		students: students,
		tasks:    tasks,
		audit:    audit,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
	}
}

// writableYearFor resolves the year owning a group and enforces the two
// mutation guards: the caller must tutor that year, and the year must
// still be writable. A missing group is 404, a closed year 423.
func (s *GroupService) writableYearFor(ctx context.Context, q sqlx.ExtContext, principal *models.Principal, groupID int64) (int, error) {
	year, err := s.years.FindWritableYearForGroup(ctx, q, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve group year")
	}
	if err := principal.EnsureTutorFor(year.ID); err != nil {
		return 0, err
	}
	if !year.Writable {
		return 0, appErrors.Clone(appErrors.ErrLocked, "")
	}
	return year.ID, nil
}

func (s *GroupService) afterMutation(ctx context.Context, year int, topic string, payload interface{}) {
	if s.cache != nil {
		s.cache.InvalidateYear(ctx, year)
	}
	if s.notifier != nil {
		s.notifier.Notify(year, topic, payload)
	}
}

// ListByDay returns the groups of a day with their members.
func (s *GroupService) ListByDay(ctx context.Context, principal *models.Principal, dayID int64) ([]GroupDetail, error) {
	day, err := s.days.Find(ctx, dayID)
	if err != nil {
		return nil, serviceError(err, "failed to fetch day")
	}
	if err := principal.EnsureTutorFor(day.Year); err != nil {
		return nil, err
	}

	groups, err := s.groups.ListByDay(ctx, dayID)
	if err != nil {
		return nil, serviceError(err, "failed to list groups")
	}

	details := make([]GroupDetail, 0, len(groups))
	for _, group := range groups {
		detail, err := s.detail(ctx, group)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, nil
}

// Detail returns one group with members and progress.
func (s *GroupService) Detail(ctx context.Context, principal *models.Principal, groupID int64) (*GroupDetail, error) {
	year, err := s.years.FindWritableYearForGroup(ctx, s.db, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, serviceError(err, "failed to resolve group year")
	}
	if err := principal.EnsureTutorFor(year.ID); err != nil {
		return nil, err
	}

	group, err := s.groups.Find(ctx, groupID)
	if err != nil {
		return nil, serviceError(err, "failed to fetch group")
	}
	detail, err := s.detail(ctx, *group)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (s *GroupService) detail(ctx context.Context, group models.Group) (GroupDetail, error) {
	students, err := s.groups.StudentsForGroup(ctx, group.ID)
	if err != nil {
		return GroupDetail{}, serviceError(err, "failed to list group members")
	}
	completions, err := s.groups.CompletionsForGroup(ctx, group.ID)
	if err != nil {
		return GroupDetail{}, serviceError(err, "failed to list completions")
	}
	elaborations, err := s.groups.ElaborationsForGroup(ctx, group.ID)
	if err != nil {
		return GroupDetail{}, serviceError(err, "failed to list elaborations")
	}
	return GroupDetail{Group: group, Students: students, Completions: completions, Elaborations: elaborations}, nil
}

// Create places a new group on a day.
func (s *GroupService) Create(ctx context.Context, principal *models.Principal, group models.Group) (*models.Group, error) {
	day, err := s.days.Find(ctx, group.DayID)
	if err != nil {
		return nil, serviceError(err, "failed to fetch day")
	}
	if err := principal.EnsureTutorFor(day.Year); err != nil {
		return nil, err
	}

	yearRec, err := s.years.Find(ctx, day.Year)
	if err != nil {
		return nil, serviceError(err, "failed to fetch year")
	}
	if !yearRec.Writable {
		return nil, appErrors.Clone(appErrors.ErrLocked, "")
	}

	var created models.Group
	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		id, err := s.groups.Create(ctx, tx, group)
		if err != nil {
			return err
		}
		created = group
		created.ID = id
		return s.audit.Record(ctx, tx, day.Year, principal.Name, &id, "Created group %d at desk %d on %s", id, group.Desk, day.Name)
	})
	if err != nil {
		return nil, serviceError(err, "failed to create group")
	}

	s.afterMutation(ctx, day.Year, TopicGroup, created)
	return &created, nil
}

// UpdateComment replaces the group comment. A comment containing the
// disqualification marker excludes the group's members from eligibility.
func (s *GroupService) UpdateComment(ctx context.Context, principal *models.Principal, groupID int64, comment string) error {
	var year int
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		year, err = s.writableYearFor(ctx, tx, principal, groupID)
		if err != nil {
			return err
		}
		if err := s.groups.UpdateComment(ctx, tx, groupID, comment); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, year, principal.Name, &groupID, "Set comment of group %d to %q", groupID, comment)
	})
	if err != nil {
		return serviceError(err, "failed to update comment")
	}

	s.afterMutation(ctx, year, TopicComment, map[string]interface{}{"group": groupID, "comment": comment})
	return nil
}

// UpdateDesk moves the group to another desk.
func (s *GroupService) UpdateDesk(ctx context.Context, principal *models.Principal, groupID int64, desk int) error {
	var year int
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		year, err = s.writableYearFor(ctx, tx, principal, groupID)
		if err != nil {
			return err
		}
		if err := s.groups.UpdateDesk(ctx, tx, groupID, desk); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, year, principal.Name, &groupID, "Moved group %d to desk %d", groupID, desk)
	})
	if err != nil {
		return serviceError(err, "failed to update desk")
	}

	s.afterMutation(ctx, year, TopicGroup, map[string]interface{}{"group": groupID, "desk": desk})
	return nil
}

// Delete removes a group, its memberships and recorded progress. Unless
// forced, a group with recorded progress is protected. Students always
// survive a group deletion.
func (s *GroupService) Delete(ctx context.Context, principal *models.Principal, groupID int64, force bool) error {
	var year int
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		year, err = s.writableYearFor(ctx, tx, principal, groupID)
		if err != nil {
			return err
		}
		if !force {
			dependents, err := s.groups.DependentCount(ctx, tx, groupID)
			if err != nil {
				return err
			}
			if dependents > 0 {
				return appErrors.Clone(appErrors.ErrConstraintViolation, "group still has recorded progress")
			}
		}
		if err := s.groups.DeleteCascade(ctx, tx, groupID); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, year, principal.Name, &groupID, "Deleted group %d", groupID)
	})
	if err != nil {
		return serviceError(err, "failed to delete group")
	}

	s.afterMutation(ctx, year, TopicGroup, map[string]interface{}{"group": groupID, "deleted": true})
	return nil
}

// AddStudent maps a student into a group. The student must belong to the
// same year as the group.
func (s *GroupService) AddStudent(ctx context.Context, principal *models.Principal, studentID, groupID int64) error {
	var year int
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		year, err = s.writableYearFor(ctx, tx, principal, groupID)
		if err != nil {
			return err
		}
		student, err := s.students.Find(ctx, studentID)
		if err != nil {
			return err
		}
		if student.Year != year {
			return appErrors.Clone(appErrors.ErrConstraintViolation, "student belongs to a different year")
		}
		if err := s.groups.AddStudent(ctx, tx, studentID, groupID); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, year, principal.Name, &groupID, "Added %s to group %d", student.Name(), groupID)
	})
	if err != nil {
		return serviceError(err, "failed to add student to group")
	}

	s.afterMutation(ctx, year, TopicStudent, map[string]interface{}{"group": groupID, "student": studentID})
	return nil
}

// RemoveStudent drops a student's membership. The student record stays.
// Rejected while the group still has completions or elaborations, since
// removal would silently strip the student of recorded progress.
func (s *GroupService) RemoveStudent(ctx context.Context, principal *models.Principal, studentID, groupID int64) error {
	var year int
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		year, err = s.writableYearFor(ctx, tx, principal, groupID)
		if err != nil {
			return err
		}
		student, err := s.students.Find(ctx, studentID)
		if err != nil {
			return err
		}
		dependents, err := s.groups.DependentCount(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if dependents > 0 {
			return appErrors.Clone(appErrors.ErrConstraintViolation, "group still has recorded progress")
		}
		if err := s.groups.RemoveStudent(ctx, tx, studentID, groupID); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, year, principal.Name, &groupID, "Removed %s from group %d", student.Name(), groupID)
	})
	if err != nil {
		return serviceError(err, "failed to remove student from group")
	}

	s.afterMutation(ctx, year, TopicStudent, map[string]interface{}{"group": groupID, "student": studentID, "removed": true})
	return nil
}

// SetCompletion marks a task as completed for a group.
func (s *GroupService) SetCompletion(ctx context.Context, principal *models.Principal, groupID, taskID int64) error {
	var year int
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		year, err = s.writableYearFor(ctx, tx, principal, groupID)
		if err != nil {
			return err
		}
		task, err := s.tasks.FindTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task.Year != year {
			return appErrors.Clone(appErrors.ErrConstraintViolation, "task belongs to a different year")
		}
		if err := s.groups.SetCompletion(ctx, tx, models.Completion{GroupID: groupID, TaskID: taskID}); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, year, principal.Name, &groupID, "Mark task %s (#%d) of group %d as completed", task.Name, task.ID, groupID)
	})
	if err != nil {
		return serviceError(err, "failed to set completion")
	}

	s.afterMutation(ctx, year, TopicCompletion, map[string]interface{}{"group": groupID, "task": taskID, "completed": true})
	return nil
}

// DeleteCompletion withdraws a completed task from a group.
func (s *GroupService) DeleteCompletion(ctx context.Context, principal *models.Principal, groupID, taskID int64) error {
	var year int
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		year, err = s.writableYearFor(ctx, tx, principal, groupID)
		if err != nil {
			return err
		}
		task, err := s.tasks.FindTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := s.groups.DeleteCompletion(ctx, tx, groupID, taskID); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, year, principal.Name, &groupID, "Withdraw completed task %s (#%d) of group %d", task.Name, task.ID, groupID)
	})
	if err != nil {
		return serviceError(err, "failed to delete completion")
	}

	s.afterMutation(ctx, year, TopicCompletion, map[string]interface{}{"group": groupID, "task": taskID, "completed": false})
	return nil
}

// SetElaboration records or updates the elaboration state of a group for
// one experiment. Writes are upserts; the audit line carries the
// resulting state.
func (s *GroupService) SetElaboration(ctx context.Context, principal *models.Principal, elaboration models.Elaboration) error {
	var year int
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		year, err = s.writableYearFor(ctx, tx, principal, elaboration.GroupID)
		if err != nil {
			return err
		}
		experiment, err := s.tasks.Find(ctx, elaboration.ExperimentID)
		if err != nil {
			return err
		}
		if experiment.Year != year {
			return appErrors.Clone(appErrors.ErrConstraintViolation, "experiment belongs to a different year")
		}
		if err := s.groups.UpsertElaboration(ctx, tx, elaboration); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, year, principal.Name, &elaboration.GroupID, "Mark elaboration for %s of group %d as %s", experiment.Name, elaboration.GroupID, elaboration.StatusLabel())
	})
	if err != nil {
		return serviceError(err, "failed to set elaboration")
	}

	s.afterMutation(ctx, year, TopicElaboration, elaboration)
	return nil
}

// DeleteElaboration removes the elaboration record of a group for one
// experiment.
func (s *GroupService) DeleteElaboration(ctx context.Context, principal *models.Principal, groupID, experimentID int64) error {
	var year int
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		year, err = s.writableYearFor(ctx, tx, principal, groupID)
		if err != nil {
			return err
		}
		experiment, err := s.tasks.Find(ctx, experimentID)
		if err != nil {
			return err
		}
		if err := s.groups.DeleteElaboration(ctx, tx, groupID, experimentID); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, year, principal.Name, &groupID, "Withdraw elaboration for %s of group %d", experiment.Name, groupID)
	})
	if err != nil {
		return serviceError(err, "failed to delete elaboration")
	}

	s.afterMutation(ctx, year, TopicElaboration, map[string]interface{}{"group": groupID, "experiment": experimentID, "deleted": true})
	return nil
}

// Search finds groups in a year whose members match every whitespace
// separated term, returned with their members.
func (s *GroupService) Search(ctx context.Context, principal *models.Principal, year int, query string) ([]GroupDetail, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}

	groups, err := s.groups.Search(ctx, year, strings.Fields(query))
	if err != nil {
		return nil, serviceError(err, "failed to search groups")
	}

	details := make([]GroupDetail, 0, len(groups))
	for _, group := range groups {
		detail, err := s.detail(ctx, group)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, nil
}
