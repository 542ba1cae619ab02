package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	"github.com/hwlab/labtrack-api/pkg/database"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

type yearRepository interface {
	List(ctx context.Context) ([]models.Year, error)
	Find(ctx context.Context, id int) (*models.Year, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, q sqlx.ExtContext, id int) error
	SetWritable(ctx context.Context, q sqlx.ExtContext, id int, writable bool) error
	DeleteRow(ctx context.Context, q sqlx.ExtContext, id int) error
}

type yearDayRepository interface {
	IDsForYear(ctx context.Context, q sqlx.ExtContext, year int) ([]int64, error)
	DeleteEventsForDays(ctx context.Context, q sqlx.ExtContext, dayIDs []int64) error
	DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error
}

type yearGroupRepository interface {
	IDsForDays(ctx context.Context, q sqlx.ExtContext, dayIDs []int64) ([]int64, error)
	DeleteCascade(ctx context.Context, q sqlx.ExtContext, groupID int64) error
}

type yearExperimentRepository interface {
	IDsForYear(ctx context.Context, q sqlx.ExtContext, year int) ([]int64, error)
	DeleteTasksForExperiments(ctx context.Context, q sqlx.ExtContext, experimentIDs []int64) error
	DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error
}

type yearScopedRepository interface {
	DeleteForYear(ctx context.Context, q sqlx.ExtContext, year int) error
}

// YearService manages course years: listing, creation, the writable
// flag, and whole-year teardown.
type YearService struct {
	db          *sqlx.DB
	years       yearRepository
	days        yearDayRepository
	groups      yearGroupRepository
	experiments yearExperimentRepository
	students    yearScopedRepository
	tutors      yearScopedRepository
	whitelist   yearScopedRepository
	auditRows   yearScopedRepository
	audit       *AuditService
	cache       *CacheService
	logger      *zap.Logger
}

// NewYearService constructs a YearService.
func NewYearService(db *sqlx.DB, years yearRepository, days yearDayRepository, groups yearGroupRepository, experiments yearExperimentRepository, students, tutors, whitelist, auditRows yearScopedRepository, audit *AuditService, cache *CacheService, logger *zap.Logger) *YearService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YearService{
		db:          db,
		years:       years,
		days:        days,
		groups:      groups,
		experiments: experiments,
		students:    students,
		tutors:      tutors,
		whitelist:   whitelist,
		auditRows:   auditRows,
		audit:       audit,
		cache:       cache,
		logger:      logger,
	}
}

// List returns every year.
func (s *YearService) List(ctx context.Context) ([]models.Year, error) {
	years, err := s.years.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list years")
	}
	return years, nil
}

// Find returns one year.
func (s *YearService) Find(ctx context.Context, id int) (*models.Year, error) {
	year, err := s.years.Find(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch year")
	}
	return year, nil
}

// EnsureWritable fails with 404 for a missing year and 423 for a closed
// one. Every mutation in a year goes through this guard.
func (s *YearService) EnsureWritable(ctx context.Context, id int) error {
	year, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	if !year.Writable {
		return appErrors.Clone(appErrors.ErrLocked, "")
	}
	return nil
}

// Create registers a new writable year. Site admins only.
func (s *YearService) Create(ctx context.Context, principal *models.Principal, id int) (*models.Year, error) {
	if err := principal.EnsureSiteAdmin(); err != nil {
		return nil, err
	}

	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.years.Create(ctx, tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, id, principal.Name, nil, "Created year %d", id)
	})
	if err != nil {
		return nil, serviceError(err, "failed to create year")
	}

	s.logger.Info("year created", zap.Int("year", id), zap.String("author", principal.Name))
	return &models.Year{ID: id, Writable: true}, nil
}

// Close makes a year read-only. Reserved for site administrators.
// There is no reopen: a closed year stays an archive.
func (s *YearService) Close(ctx context.Context, principal *models.Principal, id int) error {
	if err := principal.EnsureSiteAdmin(); err != nil {
		return err
	}

	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.years.SetWritable(ctx, tx, id, false); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, id, principal.Name, nil, "Closed year %d", id)
	})
	if err != nil {
		return serviceError(err, "failed to close year")
	}

	s.logger.Info("year closed", zap.Int("year", id), zap.String("author", principal.Name))
	return nil
}

// Delete tears down a year and everything in it. Site admins only. The
// step order mirrors the dependency chain so no foreign key is ever left
// dangling mid-transaction: groups with their progress first, then
// events and days, tasks and experiments, and finally the year-scoped
// rows and the year itself.
func (s *YearService) Delete(ctx context.Context, principal *models.Principal, id int) error {
	if err := principal.EnsureSiteAdmin(); err != nil {
		return err
	}

	if _, err := s.Find(ctx, id); err != nil {
		return err
	}

	if err := s.deleteCascade(ctx, id); err != nil {
		return serviceError(err, "failed to delete year")
	}

	if s.cache != nil {
		s.cache.InvalidateYear(ctx, id)
	}
	s.logger.Info("year deleted", zap.Int("year", id), zap.String("author", principal.Name))
	return nil
}

func (s *YearService) deleteCascade(ctx context.Context, id int) error {
	return database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		dayIDs, err := s.days.IDsForYear(ctx, tx, id)
		if err != nil {
			return err
		}

		groupIDs, err := s.groups.IDsForDays(ctx, tx, dayIDs)
		if err != nil {
			return err
		}
		for _, groupID := range groupIDs {
			if err := s.groups.DeleteCascade(ctx, tx, groupID); err != nil {
				return err
			}
		}

		if err := s.days.DeleteEventsForDays(ctx, tx, dayIDs); err != nil {
			return err
		}
		if err := s.days.DeleteForYear(ctx, tx, id); err != nil {
			return err
		}

		experimentIDs, err := s.experiments.IDsForYear(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.experiments.DeleteTasksForExperiments(ctx, tx, experimentIDs); err != nil {
			return err
		}
		if err := s.experiments.DeleteForYear(ctx, tx, id); err != nil {
			return err
		}

		if err := s.students.DeleteForYear(ctx, tx, id); err != nil {
			return err
		}
		if err := s.tutors.DeleteForYear(ctx, tx, id); err != nil {
			return err
		}
		if err := s.whitelist.DeleteForYear(ctx, tx, id); err != nil {
			return err
		}
		if err := s.auditRows.DeleteForYear(ctx, tx, id); err != nil {
			return err
		}

		return s.years.DeleteRow(ctx, tx, id)
	})
}

// Bootstrap applies startup housekeeping: optionally truncating all data
// and seeding the current year into an empty database. Used by demo and
// test deployments.
func (s *YearService) Bootstrap(ctx context.Context, truncate bool, seedYear int) error {
	if truncate {
		years, err := s.years.List(ctx)
		if err != nil {
			return serviceError(err, "failed to list years for truncate")
		}
		for _, year := range years {
			if err := s.deleteCascade(ctx, year.ID); err != nil {
				return serviceError(err, "failed to truncate year")
			}
		}
		s.logger.Warn("truncated all years on startup", zap.Int("count", len(years)))
	}

	if seedYear > 0 {
		count, err := s.years.Count(ctx)
		if err != nil {
			return serviceError(err, "failed to count years")
		}
		if count == 0 {
			err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
				if err := s.years.Create(ctx, tx, seedYear); err != nil {
					return err
				}
				return s.audit.Record(ctx, tx, seedYear, "system", nil, "Created year %d", seedYear)
			})
			if err != nil {
				return serviceError(err, "failed to seed year")
			}
			s.logger.Info("seeded initial year", zap.Int("year", seedYear))
		}
	}

	return nil
}
