package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	"github.com/hwlab/labtrack-api/pkg/export"
)

// ExportService renders analysis results as downloadable CSV and PDF
// documents. Authorization rides on the underlying analysis calls.
type ExportService struct {
	analysis *AnalysisService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(analysis *AnalysisService, csv *export.CSVExporter, pdf *export.PDFExporter, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{analysis: analysis, csv: csv, pdf: pdf, logger: logger}
}

// TaskMatrixCSV renders the completion matrix of a year. One column per
// task, prefixed with its experiment id to keep duplicate task names
// apart; an X marks a completed task.
func (s *ExportService) TaskMatrixCSV(ctx context.Context, principal *models.Principal, year int, includeExtra bool) ([]byte, error) {
	matrix, err := s.analysis.TasksByStudent(ctx, principal, year, includeExtra)
	if err != nil {
		return nil, err
	}

	headers := []string{"Matrikel", "Name", "Groups"}
	for _, task := range matrix.Tasks {
		headers = append(headers, fmt.Sprintf("%d/%s", task.ExperimentID, task.Name))
	}

	rows := make([][]string, 0, len(matrix.Rows))
	for _, row := range matrix.Rows {
		record := []string{row.Student.Matrikel, row.Student.Name, joinGroups(row.Student.Groups)}
		for _, done := range row.Done {
			mark := ""
			if done {
				mark = "X"
			}
			record = append(record, mark)
		}
		rows = append(rows, record)
	}

	return s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
}

// ResultsCSV renders the full year results: one row per enrolled
// student in id order, one column per experiment (accepted elaboration)
// followed by one column per task including extra tasks. Students
// without any record still get a row with empty marks.
func (s *ExportService) ResultsCSV(ctx context.Context, principal *models.Principal, year int) ([]byte, error) {
	roster, err := s.analysis.Roster(ctx, principal, year)
	if err != nil {
		return nil, err
	}
	tasks, err := s.analysis.TasksByStudent(ctx, principal, year, true)
	if err != nil {
		return nil, err
	}
	accepted := true
	elaborations, err := s.analysis.ElaborationsByStudent(ctx, principal, year, nil, &accepted)
	if err != nil {
		return nil, err
	}

	headers := []string{"Matrikel", "Name", "Username", "Instructed"}
	for _, experiment := range elaborations.Experiments {
		headers = append(headers, experiment.Name)
	}
	for _, task := range tasks.Tasks {
		headers = append(headers, fmt.Sprintf("%d/%s", task.ExperimentID, task.Name))
	}

	taskRows := indexRows(tasks.Rows)
	elaborationRows := indexRows(elaborations.Rows)

	rows := make([][]string, 0, len(roster))
	for _, student := range roster {
		username := ""
		if student.Username != nil {
			username = *student.Username
		}
		instructed := ""
		if student.Instructed {
			instructed = "X"
		}
		record := []string{student.Matrikel, student.Name(), username, instructed}
		record = append(record, marks(elaborationRows[student.ID].Done, len(elaborations.Experiments))...)
		record = append(record, marks(taskRows[student.ID].Done, len(tasks.Tasks))...)
		rows = append(rows, record)
	}

	return s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
}

func marks(done []bool, width int) []string {
	out := make([]string, width)
	for i := range out {
		if i < len(done) && done[i] {
			out[i] = "X"
		}
	}
	return out
}

// EligibleCSV renders the pass list of a year: the complete roster with
// the students who passed sorted to the front.
func (s *ExportService) EligibleCSV(ctx context.Context, principal *models.Principal, year int) ([]byte, error) {
	dataset, err := s.eligibleDataset(ctx, principal, year)
	if err != nil {
		return nil, err
	}
	return s.csv.Render(*dataset)
}

// EligiblePDF renders the pass list of a year as a PDF suitable for
// handing to the examination office.
func (s *ExportService) EligiblePDF(ctx context.Context, principal *models.Principal, year int) ([]byte, error) {
	dataset, err := s.eligibleDataset(ctx, principal, year)
	if err != nil {
		return nil, err
	}
	return s.pdf.Render(*dataset, fmt.Sprintf("Eligible students %d", year))
}

// eligibleDataset builds one row per enrolled student ordered by
// matrikel, stable-sorted so everyone who passed comes first, with a
// passed / not passed column.
func (s *ExportService) eligibleDataset(ctx context.Context, principal *models.Principal, year int) (*export.Dataset, error) {
	eligible, err := s.analysis.EligibleStudents(ctx, principal, year)
	if err != nil {
		return nil, err
	}
	passed := make(map[int64]bool, len(eligible))
	for _, student := range eligible {
		passed[student.ID] = true
	}

	roster, err := s.analysis.Roster(ctx, principal, year)
	if err != nil {
		return nil, err
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].Matrikel < roster[j].Matrikel })
	sort.SliceStable(roster, func(i, j int) bool { return passed[roster[i].ID] && !passed[roster[j].ID] })

	rows := make([][]string, 0, len(roster))
	for _, student := range roster {
		username := ""
		if student.Username != nil {
			username = *student.Username
		}
		status := "not passed"
		if passed[student.ID] {
			status = "passed"
		}
		rows = append(rows, []string{student.Matrikel, student.Name(), username, status})
	}

	return &export.Dataset{
		Headers: []string{"Matrikel", "Name", "Username", "Status"},
		Rows:    rows,
	}, nil
}

func joinGroups(groups []int64) string {
	parts := make([]string, 0, len(groups))
	for _, id := range groups {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, " ")
}
