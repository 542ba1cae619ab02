package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/export"
)

func newExportService(repo *mockAnalysisRepo) *ExportService {
	analysis := newAnalysisService(repo)
	return NewExportService(analysis, export.NewCSVExporter(), export.NewPDFExporter(), zap.NewNop())
}

func TestExportTaskMatrixCSV(t *testing.T) {
	svc := newExportService(newAnalysisFixture())

	raw, err := svc.TaskMatrixCSV(context.Background(), tutorFor(2025), 2025, false)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)

	assert.Equal(t, []string{"Matrikel", "Name", "Groups", "1/1.1", "1/1.2"}, records[0])
	// Ada completed everything, Bob only the first task.
	assert.Equal(t, []string{"Ada", "Ada Test", "100", "X", "X"}, records[1])
	assert.Equal(t, []string{"Bob", "Bob Test", "101", "X", ""}, records[2])
}

func TestExportResultsCSV(t *testing.T) {
	svc := newExportService(newAnalysisFixture())

	raw, err := svc.ResultsCSV(context.Background(), tutorFor(2025), 2025)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)

	assert.Equal(t, []string{"Matrikel", "Name", "Username", "Instructed", "Oszilloskop", "Transistor", "1/1.1", "1/1.2", "1/Z1"}, records[0])
	assert.Equal(t, []string{"Ada", "Ada Test", "", "", "X", "X", "X", "X", "X"}, records[1])
	// Bob's Transistor elaboration is not accepted yet.
	assert.Equal(t, []string{"Bob", "Bob Test", "", "", "X", "", "X", "", ""}, records[2])
	// Eve never completed a task; her task columns render empty.
	assert.Equal(t, []string{"Eve", "Eve Test", "", "", "X", "X", "", "", ""}, records[5])
	// Nora has no record at all but still gets a roster row.
	assert.Equal(t, []string{"Nora", "Nora Test", "", "", "", "", "", "", ""}, records[6])
}

func TestExportEligibleCSV(t *testing.T) {
	svc := newExportService(newAnalysisFixture())

	raw, err := svc.EligibleCSV(context.Background(), tutorFor(2025), 2025)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	// The full roster, with the two students who passed sorted to the
	// front and the rest in matrikel order.
	require.Len(t, records, 7)
	assert.Equal(t, []string{"Matrikel", "Name", "Username", "Status"}, records[0])
	assert.Equal(t, []string{"Ada", "Ada Test", "", "passed"}, records[1])
	assert.Equal(t, []string{"Dan", "Dan Test", "", "passed"}, records[2])
	assert.Equal(t, []string{"Bob", "Bob Test", "", "not passed"}, records[3])
	assert.Equal(t, []string{"Cara", "Cara Test", "", "not passed"}, records[4])
	assert.Equal(t, []string{"Eve", "Eve Test", "", "not passed"}, records[5])
	assert.Equal(t, []string{"Nora", "Nora Test", "", "not passed"}, records[6])
}

func TestExportEligiblePDF(t *testing.T) {
	svc := newExportService(newAnalysisFixture())

	raw, err := svc.EligiblePDF(context.Background(), tutorFor(2025), 2025)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestExportForbiddenPropagates(t *testing.T) {
	svc := newExportService(newAnalysisFixture())

	_, err := svc.TaskMatrixCSV(context.Background(), tutorFor(2024), 2025, false)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
