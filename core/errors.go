package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorInvalidSignature   = "invalid_signature"
	ErrorInvalidPayloadType = "invalid_payload_type"
	ErrorPayloadMalformed   = "PAYLOAD_MALFORMED"
	ErrorStatePersist       = "STATE_PERSIST_FAILED"
	ErrorNotifyFailed       = "NOTIFY_FAILED"
	ErrorInternal           = "RELAY_INTERNAL_ERROR"
	ErrorSiteRequired       = "site_required"
)

type Stage string

const (
	StageVerify  Stage = "verify"
	StageParse   Stage = "parse"
	StageDedup   Stage = "dedup"
	StageNotify  Stage = "notify"
	StageUnknown Stage = "unknown"
)

func stageError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	stage Stage,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	err.WithMetadata(stageMetadata(stage, metadata))
	return err
}

func stageWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	stage Stage,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return stageError(message, category, code, textCode, stage, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	err.WithMetadata(stageMetadata(stage, metadata))
	return err
}

func stageMetadata(stage Stage, metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for key, value := range metadata {
		out[key] = value
	}
	out["stage"] = string(stage)
	return out
}

// NewAuthError is returned when the inbound signature is missing or wrong.
func NewAuthError(source error, metadata map[string]any) error {
	return stageWrapError(
		source,
		goerrors.CategoryAuth,
		"signature verification failed",
		http.StatusUnauthorized,
		ErrorInvalidSignature,
		StageVerify,
		metadata,
	)
}

func NewValidationError(payloadType string, metadata map[string]any) error {
	meta := stageMetadata(StageParse, metadata)
	meta["payload_type"] = payloadType
	return stageError(
		fmt.Sprintf("unsupported payload type %q", payloadType),
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		ErrorInvalidPayloadType,
		StageParse,
		meta,
	)
}

// NewUnexpectedError covers malformed bodies and missing fields. It keeps the
// 500 status and the raw message so existing agents see the same responses.
func NewUnexpectedError(source error, metadata map[string]any) error {
	message := "unexpected payload error"
	if source != nil {
		message = source.Error()
	}
	return stageWrapError(
		source,
		goerrors.CategoryBadInput,
		message,
		http.StatusInternalServerError,
		ErrorPayloadMalformed,
		StageParse,
		metadata,
	)
}

func NewPersistError(source error, metadata map[string]any) error {
	message := "state persist failed"
	if source != nil {
		message += ": " + source.Error()
	}
	return stageWrapError(
		source,
		goerrors.CategoryInternal,
		message,
		http.StatusInternalServerError,
		ErrorStatePersist,
		StageDedup,
		metadata,
	)
}

func NewNotifyError(source error, metadata map[string]any) error {
	message := "notification failed"
	if source != nil {
		message += ": " + errorMessage(source)
	}
	return stageWrapError(
		source,
		goerrors.CategoryExternal,
		message,
		http.StatusInternalServerError,
		ErrorNotifyFailed,
		StageNotify,
		metadata,
	)
}

// StageOf reports which pipeline stage produced err.
func StageOf(err error) Stage {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return StageUnknown
	}
	if value, ok := rich.Metadata["stage"].(string); ok && value != "" {
		return Stage(value)
	}
	return StageUnknown
}

// ToErrorEnvelope normalizes any error into a go-errors envelope with a
// status code and text code set.
func ToErrorEnvelope(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	if mapped == nil {
		mapped = goerrors.New(err.Error(), goerrors.CategoryInternal)
	}
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryAuth:
		return ErrorInvalidSignature
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorPayloadMalformed
	case goerrors.CategoryExternal:
		return ErrorNotifyFailed
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil && strings.TrimSpace(rich.Message) != "" {
		return rich.Message
	}
	return err.Error()
}

