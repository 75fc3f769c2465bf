package service

import (
	"context"
	"errors"

	"github.com/ecorvi/schmng-api/internal/viewstate"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

// gatewayError maps document store and controller failures onto the API taxonomy.
// Errors that are already typed pass through. Apart from not-found, which uses the
// caller's message, the gateway text is kept verbatim.
func gatewayError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, viewstate.ErrUnknownItem):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, notFound)
	case errors.Is(err, docstore.ErrInvalidDocument):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	case errors.Is(err, docstore.ErrPermissionDenied):
		return appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, err.Error())
	case errors.Is(err, docstore.ErrUnavailable), errors.Is(err, docstore.ErrClosed),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return appErrors.Wrap(err, appErrors.ErrNetwork.Code, appErrors.ErrNetwork.Status, err.Error())
	case errors.Is(err, viewstate.ErrSubmitInProgress), errors.Is(err, viewstate.ErrNotReady):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, err.Error())
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, err.Error())
}

// asAppError converts err for JSON payloads such as list stream events.
func asAppError(err error, notFound string) *appErrors.Error {
	if err == nil {
		return nil
	}
	return appErrors.FromError(gatewayError(err, notFound))
}

func forbidden(message string) error {
	return appErrors.Clone(appErrors.ErrForbidden, message)
}
