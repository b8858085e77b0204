package telegram

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/railsonsantospb/unifi-relay/core"
)

func providerError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ErrorNotifyFailed)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func providerWrapError(source error, message string, metadata map[string]any) error {
	if source == nil {
		return providerError(message, metadata)
	}
	err := goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ErrorNotifyFailed)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func configError(message string) error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}
