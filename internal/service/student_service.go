package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	"github.com/hwlab/labtrack-api/pkg/database"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

type studentRepository interface {
	ListByYear(ctx context.Context, year int) ([]models.Student, error)
	Find(ctx context.Context, id int64) (*models.Student, error)
	Create(ctx context.Context, q sqlx.ExtContext, student models.Student) (int64, error)
	Delete(ctx context.Context, q sqlx.ExtContext, id int64) error
	SetInstructed(ctx context.Context, q sqlx.ExtContext, id int64, instructed bool) error
	Search(ctx context.Context, year int, terms []string) ([]models.Student, error)
	GroupsForStudent(ctx context.Context, id int64) ([]int64, error)
}

// CreateStudentRequest is the payload for registering one student.
type CreateStudentRequest struct {
	Matrikel   string  `json:"matrikel" validate:"required"`
	GivenName  string  `json:"given_name" validate:"required"`
	FamilyName string  `json:"family_name" validate:"required"`
	Username   *string `json:"username,omitempty"`
}

// StudentService manages the student roster of a year.
type StudentService struct {
	db        *sqlx.DB
	students  studentRepository
	years     *YearService
	audit     *AuditService
	cache     *CacheService
	notifier  *NotifierService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(db *sqlx.DB, students studentRepository, years *YearService, audit *AuditService, cache *CacheService, notifier *NotifierService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{
		db:        db,
		students:  students,
		years:     years,
		audit:     audit,
		cache:     cache,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
}

func (s *StudentService) guardMutation(ctx context.Context, principal *models.Principal, year int) error {
	if err := principal.EnsureTutorFor(year); err != nil {
		return err
	}
	return s.years.EnsureWritable(ctx, year)
}

// ListByYear returns the roster of a year.
func (s *StudentService) ListByYear(ctx context.Context, principal *models.Principal, year int) ([]models.Student, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}
	students, err := s.students.ListByYear(ctx, year)
	if err != nil {
		return nil, serviceError(err, "failed to list students")
	}
	return students, nil
}

// Search finds students in a year by name or matrikel terms.
func (s *StudentService) Search(ctx context.Context, principal *models.Principal, year int, query string) ([]models.Student, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}
	students, err := s.students.Search(ctx, year, strings.Fields(query))
	if err != nil {
		return nil, serviceError(err, "failed to search students")
	}
	return students, nil
}

// Create registers a single student in a year.
func (s *StudentService) Create(ctx context.Context, principal *models.Principal, year int, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if err := s.guardMutation(ctx, principal, year); err != nil {
		return nil, err
	}

	student := models.Student{
		Matrikel:   req.Matrikel,
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
		Year:       year,
		Username:   req.Username,
	}

	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		id, err := s.students.Create(ctx, tx, student)
		if err != nil {
			return err
		}
		student.ID = id
		return s.audit.Record(ctx, tx, year, principal.Name, nil, "Created student %s (%s)", student.Name(), student.Matrikel)
	})
	if err != nil {
		return nil, serviceError(err, "failed to create student")
	}

	if s.cache != nil {
		s.cache.InvalidateYear(ctx, year)
	}
	if s.notifier != nil {
		s.notifier.Notify(year, TopicStudent, student)
	}
	return &student, nil
}

// Delete removes an unmapped student. A student still belonging to a
// group fails with a constraint violation.
func (s *StudentService) Delete(ctx context.Context, principal *models.Principal, id int64) error {
	student, err := s.students.Find(ctx, id)
	if err != nil {
		return serviceError(err, "failed to fetch student")
	}
	if err := s.guardMutation(ctx, principal, student.Year); err != nil {
		return err
	}

	groups, err := s.students.GroupsForStudent(ctx, id)
	if err != nil {
		return serviceError(err, "failed to check memberships")
	}
	if len(groups) > 0 {
		return appErrors.Clone(appErrors.ErrConstraintViolation, "student is still a member of a group")
	}

	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.students.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, student.Year, principal.Name, nil, "Deleted student %s (%s)", student.Name(), student.Matrikel)
	})
	if err != nil {
		return serviceError(err, "failed to delete student")
	}

	if s.cache != nil {
		s.cache.InvalidateYear(ctx, student.Year)
	}
	if s.notifier != nil {
		s.notifier.Notify(student.Year, TopicStudent, map[string]interface{}{"student": id, "deleted": true})
	}
	return nil
}

// SetInstructed records whether the student received the safety briefing.
func (s *StudentService) SetInstructed(ctx context.Context, principal *models.Principal, id int64, instructed bool) error {
	student, err := s.students.Find(ctx, id)
	if err != nil {
		return serviceError(err, "failed to fetch student")
	}
	if err := s.guardMutation(ctx, principal, student.Year); err != nil {
		return err
	}

	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.students.SetInstructed(ctx, tx, id, instructed); err != nil {
			return err
		}
		verb := "Mark"
		if !instructed {
			verb = "Unmark"
		}
		return s.audit.Record(ctx, tx, student.Year, principal.Name, nil, "%s %s as instructed", verb, student.Name())
	})
	if err != nil {
		return serviceError(err, "failed to update instruction state")
	}

	if s.cache != nil {
		s.cache.InvalidateYear(ctx, student.Year)
	}
	if s.notifier != nil {
		s.notifier.Notify(student.Year, TopicStudent, map[string]interface{}{"student": id, "instructed": instructed})
	}
	return nil
}

// ImportCSV bulk-registers students from CSV content with the columns
// matrikel, given name, family name and an optional username. Admin
// rights for the year are required; the whole import is one transaction.
func (s *StudentService) ImportCSV(ctx context.Context, principal *models.Principal, year int, content []byte) (int, error) {
	if err := principal.EnsureAdminFor(year); err != nil {
		return 0, err
	}
	if err := s.years.EnsureWritable(ctx, year); err != nil {
		return 0, err
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	students := []models.Student{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed CSV input")
		}
		if len(record) < 3 {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("expected at least 3 columns, got %d", len(record)))
		}
		student := models.Student{
			Matrikel:   strings.TrimSpace(record[0]),
			GivenName:  strings.TrimSpace(record[1]),
			FamilyName: strings.TrimSpace(record[2]),
			Year:       year,
		}
		if student.Matrikel == "" || student.GivenName == "" || student.FamilyName == "" {
			return 0, appErrors.Clone(appErrors.ErrValidation, "matrikel and name columns must not be empty")
		}
		if len(record) > 3 {
			if username := strings.TrimSpace(record[3]); username != "" {
				student.Username = &username
			}
		}
		students = append(students, student)
	}

	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, student := range students {
			if _, err := s.students.Create(ctx, tx, student); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, tx, year, principal.Name, nil, "Imported %d students", len(students))
	})
	if err != nil {
		return 0, serviceError(err, "failed to import students")
	}

	if s.cache != nil {
		s.cache.InvalidateYear(ctx, year)
	}
	s.logger.Info("students imported", zap.Int("year", year), zap.Int("count", len(students)))
	return len(students), nil
}
