// Package service implements the application use cases on top of the
// repository layer: authorization-checked mutations, the progress
// analysis, audit recording and exports.
package service

import (
	"database/sql"
	"errors"

	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

// serviceError normalises repository failures for the handler layer.
// Typed domain errors pass through untouched, a missing row becomes 404,
// anything else is treated as internal with the given message.
func serviceError(err error, message string) error {
	if err == nil {
		return nil
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
