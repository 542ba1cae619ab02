package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	"github.com/hwlab/labtrack-api/internal/repository"
)

type analysisRepository interface {
	Tasks(ctx context.Context, year int, includeExtra bool) ([]models.Task, error)
	Experiments(ctx context.Context, year int) ([]models.Experiment, error)
	Completions(ctx context.Context, year int) ([]repository.CompletionRow, error)
	Elaborations(ctx context.Context, year int, reworkRequired, accepted *bool) ([]repository.ElaborationRow, error)
	DisqualifiedGroups(ctx context.Context, year int) ([]int64, error)
	Students(ctx context.Context, year int) ([]models.Student, error)
}

// ProgressRow is one student's bit row over the columns of a matrix.
type ProgressRow struct {
	Student models.AnalysisStudent `json:"student"`
	Done    []bool                 `json:"done"`
}

// TaskMatrix is the per-student completion state over the year's tasks.
type TaskMatrix struct {
	Year  int           `json:"year"`
	Tasks []models.Task `json:"tasks"`
	Rows  []ProgressRow `json:"rows"`
}

// ElaborationMatrix is the per-student elaboration state over the year's
// experiments, under the requested state filter.
type ElaborationMatrix struct {
	Year        int                 `json:"year"`
	Experiments []models.Experiment `json:"experiments"`
	Rows        []ProgressRow       `json:"rows"`
}

// MissingRework names the experiments a student still owes a rework for.
type MissingRework struct {
	Student     models.AnalysisStudent `json:"student"`
	Experiments []string               `json:"experiments"`
}

// AnalysisService computes per-student progress from group-level records.
// Group records fan out to every member; a student who changed groups
// accumulates records from all of them. Results are cached per year and
// invalidated by any mutation in that year.
type AnalysisService struct {
	repo    analysisRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAnalysisService constructs an AnalysisService.
func NewAnalysisService(repo analysisRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// studentRecord accumulates one student's bits and associated groups
// while folding the joined rows.
type studentRecord struct {
	student models.AnalysisStudent
	bits    models.Bitset
	groups  map[int64]bool
}

func (r *studentRecord) addGroup(id int64) {
	r.groups[id] = true
}

func (r *studentRecord) finalize() {
	groups := make([]int64, 0, len(r.groups))
	for id := range r.groups {
		groups = append(groups, id)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	r.student.Groups = groups
}

// TasksByStudent returns the completion matrix of a year. Students
// without any completion do not appear; a row referencing a task outside
// the requested set (an extra task when those are excluded) contributes
// nothing.
func (s *AnalysisService) TasksByStudent(ctx context.Context, principal *models.Principal, year int, includeExtra bool) (*TaskMatrix, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}

	kind := "tasks"
	if includeExtra {
		kind = "tasks-extra"
	}
	key := AnalysisKey(year, kind)
	cached := &TaskMatrix{}
	if hit, _ := s.cache.Get(ctx, key, cached); hit {
		return cached, nil
	}

	start := time.Now()
	matrix, err := s.taskMatrix(ctx, year, includeExtra)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveAnalysis(kind, time.Since(start))
	}

	s.cache.Set(ctx, key, matrix)
	return matrix, nil
}

func (s *AnalysisService) taskMatrix(ctx context.Context, year int, includeExtra bool) (*TaskMatrix, error) {
	tasks, err := s.repo.Tasks(ctx, year, includeExtra)
	if err != nil {
		return nil, serviceError(err, "failed to load tasks")
	}
	taskIndex := make(map[int64]int, len(tasks))
	for i, task := range tasks {
		taskIndex[task.ID] = i
	}

	rows, err := s.repo.Completions(ctx, year)
	if err != nil {
		return nil, serviceError(err, "failed to load completions")
	}

	records := map[int64]*studentRecord{}
	for _, row := range rows {
		idx, ok := taskIndex[row.TaskID]
		if !ok {
			continue
		}
		record, ok := records[row.StudentID]
		if !ok {
			record = &studentRecord{
				student: row.Student(),
				bits:    models.NewBitset(len(tasks)),
				groups:  map[int64]bool{},
			}
			records[row.StudentID] = record
		}
		record.bits.Set(idx)
		record.addGroup(row.GroupID)
	}

	return &TaskMatrix{Year: year, Tasks: tasks, Rows: s.toRows(records, len(tasks))}, nil
}

// ElaborationsByStudent returns the elaboration matrix of a year under
// an optional state filter.
func (s *AnalysisService) ElaborationsByStudent(ctx context.Context, principal *models.Principal, year int, reworkRequired, accepted *bool) (*ElaborationMatrix, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}

	start := time.Now()
	matrix, err := s.elaborationMatrix(ctx, year, reworkRequired, accepted)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveAnalysis("elaborations", time.Since(start))
	}
	return matrix, nil
}

func (s *AnalysisService) elaborationMatrix(ctx context.Context, year int, reworkRequired, accepted *bool) (*ElaborationMatrix, error) {
	experiments, err := s.repo.Experiments(ctx, year)
	if err != nil {
		return nil, serviceError(err, "failed to load experiments")
	}
	experimentIndex := make(map[int64]int, len(experiments))
	for i, experiment := range experiments {
		experimentIndex[experiment.ID] = i
	}

	rows, err := s.repo.Elaborations(ctx, year, reworkRequired, accepted)
	if err != nil {
		return nil, serviceError(err, "failed to load elaborations")
	}

	records := map[int64]*studentRecord{}
	for _, row := range rows {
		idx, ok := experimentIndex[row.ExperimentID]
		if !ok {
			continue
		}
		record, ok := records[row.StudentID]
		if !ok {
			record = &studentRecord{
				student: row.Student(),
				bits:    models.NewBitset(len(experiments)),
				groups:  map[int64]bool{},
			}
			records[row.StudentID] = record
		}
		record.bits.Set(idx)
		record.addGroup(row.GroupID)
	}

	return &ElaborationMatrix{Year: year, Experiments: experiments, Rows: s.toRows(records, len(experiments))}, nil
}

func (s *AnalysisService) toRows(records map[int64]*studentRecord, width int) []ProgressRow {
	list := make([]*studentRecord, 0, len(records))
	for _, record := range records {
		record.finalize()
		list = append(list, record)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].student.ID < list[j].student.ID })

	rows := make([]ProgressRow, 0, len(list))
	for _, record := range list {
		done := make([]bool, width)
		for i := 0; i < width; i++ {
			done[i] = record.bits.Test(i)
		}
		rows = append(rows, ProgressRow{Student: record.student, Done: done})
	}
	return rows
}

// EligibleStudents returns the students who completed every required
// task and whose elaborations were all accepted. A student who only
// appears in one of the two record sets is held to the full requirement
// of the other side too, so they only pass when that side has no
// requirements at all. Membership in a disqualified group does not
// remove a student from the set; it is surfaced on the result so that
// callers can flag it.
func (s *AnalysisService) EligibleStudents(ctx context.Context, principal *models.Principal, year int) ([]models.AnalysisStudent, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}

	key := AnalysisKey(year, "eligible")
	cached := []models.AnalysisStudent{}
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	start := time.Now()

	taskMatrix, err := s.taskMatrix(ctx, year, false)
	if err != nil {
		return nil, err
	}
	acceptedFilter := true
	elaborationMatrix, err := s.elaborationMatrix(ctx, year, nil, &acceptedFilter)
	if err != nil {
		return nil, err
	}
	disqualified, err := s.repo.DisqualifiedGroups(ctx, year)
	if err != nil {
		return nil, serviceError(err, "failed to load disqualified groups")
	}
	disqualifiedSet := make(map[int64]bool, len(disqualified))
	for _, id := range disqualified {
		disqualifiedSet[id] = true
	}

	taskRows := indexRows(taskMatrix.Rows)
	elaborationRows := indexRows(elaborationMatrix.Rows)

	ids := map[int64]bool{}
	for id := range taskRows {
		ids[id] = true
	}
	for id := range elaborationRows {
		ids[id] = true
	}

	eligible := []models.AnalysisStudent{}
	for id := range ids {
		taskRow, hasTasks := taskRows[id]
		elaborationRow, hasElaborations := elaborationRows[id]

		if !allDone(taskRow.Done, len(taskMatrix.Tasks), hasTasks) {
			continue
		}
		if !allDone(elaborationRow.Done, len(elaborationMatrix.Experiments), hasElaborations) {
			continue
		}

		student := mergeStudent(taskRow, elaborationRow, hasTasks, hasElaborations)
		student.Disqualified = anyDisqualified(student.Groups, disqualifiedSet)
		eligible = append(eligible, student)
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })

	if s.metrics != nil {
		s.metrics.ObserveAnalysis("eligible", time.Since(start))
	}
	s.cache.Set(ctx, key, eligible)
	return eligible, nil
}

// MissingReworks returns the students who completed every required task
// but still owe at least one rework: an elaboration flagged
// rework-required that was never accepted. Both conditions are computed
// independently and intersected by student, so an open rework alone does
// not put a student on the list while their tasks are incomplete. Rows
// come back ordered by the largest associated group id, so the result
// roughly follows the course's group numbering; ties break by student.
func (s *AnalysisService) MissingReworks(ctx context.Context, principal *models.Principal, year int) ([]MissingRework, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}

	key := AnalysisKey(year, "missing-reworks")
	cached := []MissingRework{}
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	start := time.Now()

	taskMatrix, err := s.taskMatrix(ctx, year, false)
	if err != nil {
		return nil, err
	}
	allTasksDone := make(map[int64]bool, len(taskMatrix.Rows))
	for _, row := range taskMatrix.Rows {
		if allDone(row.Done, len(taskMatrix.Tasks), true) {
			allTasksDone[row.Student.ID] = true
		}
	}

	reworkRequired := true
	notAccepted := false
	matrix, err := s.elaborationMatrix(ctx, year, &reworkRequired, &notAccepted)
	if err != nil {
		return nil, err
	}

	missing := make([]MissingRework, 0, len(matrix.Rows))
	for _, row := range matrix.Rows {
		if !allTasksDone[row.Student.ID] {
			continue
		}
		names := []string{}
		for i, done := range row.Done {
			if done {
				names = append(names, matrix.Experiments[i].Name)
			}
		}
		if len(names) == 0 {
			continue
		}
		missing = append(missing, MissingRework{Student: row.Student, Experiments: names})
	}

	sort.Slice(missing, func(i, j int) bool {
		gi, gj := missing[i].Student.MaxGroup(), missing[j].Student.MaxGroup()
		if gi != gj {
			return gi < gj
		}
		return missing[i].Student.ID < missing[j].Student.ID
	})

	if s.metrics != nil {
		s.metrics.ObserveAnalysis("missing-reworks", time.Since(start))
	}
	s.cache.Set(ctx, key, missing)
	return missing, nil
}

// Roster returns every student enrolled in the year ordered by id,
// whether or not they have any recorded progress. Exports iterate the
// roster so that students without records still get a row.
func (s *AnalysisService) Roster(ctx context.Context, principal *models.Principal, year int) ([]models.Student, error) {
	if err := principal.EnsureTutorFor(year); err != nil {
		return nil, err
	}
	students, err := s.repo.Students(ctx, year)
	if err != nil {
		return nil, serviceError(err, "failed to load students")
	}
	return students, nil
}

func indexRows(rows []ProgressRow) map[int64]ProgressRow {
	indexed := make(map[int64]ProgressRow, len(rows))
	for _, row := range rows {
		indexed[row.Student.ID] = row
	}
	return indexed
}

// allDone treats a student absent from a result set as an all-false row:
// they only pass that side when it has no requirements at all.
func allDone(done []bool, width int, present bool) bool {
	if !present {
		return width == 0
	}
	for _, d := range done {
		if !d {
			return false
		}
	}
	return true
}

func mergeStudent(taskRow, elaborationRow ProgressRow, hasTasks, hasElaborations bool) models.AnalysisStudent {
	switch {
	case hasTasks && hasElaborations:
		student := taskRow.Student
		groups := map[int64]bool{}
		for _, id := range taskRow.Student.Groups {
			groups[id] = true
		}
		for _, id := range elaborationRow.Student.Groups {
			groups[id] = true
		}
		merged := make([]int64, 0, len(groups))
		for id := range groups {
			merged = append(merged, id)
		}
		sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
		student.Groups = merged
		return student
	case hasTasks:
		return taskRow.Student
	default:
		return elaborationRow.Student
	}
}

func anyDisqualified(groups []int64, disqualified map[int64]bool) bool {
	for _, id := range groups {
		if disqualified[id] {
			return true
		}
	}
	return false
}
