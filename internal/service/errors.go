package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/seat-allotment/internal/allotment"
	"github.com/iliyamo/seat-allotment/internal/repository"
)

// classify turns any error into an *allotment.Error.  Errors that already
// carry a kind pass through unchanged.
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var ae *allotment.Error
	if errors.As(err, &ae) {
		return ae
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return allotment.NotFound("%s: not found", msg)
	case errors.Is(err, repository.ErrConflict):
		return allotment.Transient(err, "%s: concurrent update, retry", msg)
	}
	return allotment.Transient(err, "%s", msg)
}

// notFoundOr reports a missing row with the given message and passes every
// other error through.
func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return allotment.NotFound(format, args...)
	}
	return err
}
