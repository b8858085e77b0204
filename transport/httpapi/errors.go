package httpapi

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/railsonsantospb/unifi-relay/core"
)

func transportWrapError(source error, message string, code int, metadata map[string]any) error {
	err := goerrors.Wrap(source, goerrors.CategoryBadInput, message).
		WithCode(code).
		WithTextCode(core.ErrorPayloadMalformed)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// responseError returns the status and the body error text for err.
// Client-facing failures below 500 report their text code, everything else
// reports the raw message.
func responseError(err error) (int, string) {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return http.StatusInternalServerError, err.Error()
	}
	rich = core.ToErrorEnvelope(rich)
	if rich.Code < http.StatusInternalServerError {
		return rich.Code, rich.TextCode
	}
	return rich.Code, rich.Message
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
