package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

func TestClassifyConstraintViolations(t *testing.T) {
	fk := &pq.Error{Code: "23503", Message: "violates foreign key constraint"}
	err := classify(fk, "delete day")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConstraintViolation))

	unique := &pq.Error{Code: "23505", Message: "duplicate key value"}
	err = classify(unique, "insert student")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConstraintViolation))
}

func TestClassifyPassesOtherErrorsThrough(t *testing.T) {
	base := errors.New("connection reset")
	err := classify(base, "list groups")
	require.Error(t, err)
	assert.False(t, appErrors.Is(err, appErrors.ErrConstraintViolation))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "list groups")

	assert.NoError(t, classify(nil, "noop"))
}

func TestClassifyWrappedPqError(t *testing.T) {
	wrapped := fmt.Errorf("exec: %w", &pq.Error{Code: "23505"})
	err := classify(wrapped, "insert")
	assert.True(t, appErrors.Is(err, appErrors.ErrConstraintViolation))
}

type fakeResult struct {
	affected int64
	err      error
}

func (r fakeResult) RowsAffected() (int64, error) { return r.affected, r.err }

func TestExpectOne(t *testing.T) {
	assert.NoError(t, expectOne(fakeResult{affected: 1}, "update"))

	err := expectOne(fakeResult{affected: 0}, "update")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	err = expectOne(fakeResult{err: errors.New("driver gone")}, "update")
	require.Error(t, err)
	assert.NotErrorIs(t, err, sql.ErrNoRows)
}
