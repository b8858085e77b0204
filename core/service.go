package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	verifier        SignatureVerifier
	stateStore      StateStore
	notifier        Notifier
	formatter       ReportFormatter
	now             func() time.Time
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("relay", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("relay"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.formatter == nil {
		builder.formatter = FormatReport
	}
	if builder.now == nil {
		builder.now = time.Now
	}

	finalConfig, err := ResolveConfig(context.Background(), builder.runtimeConfig, builder.configProvider, builder.optionsResolver)
	if err != nil {
		return nil, err
	}

	if builder.verifier == nil {
		return nil, fmt.Errorf("core: signature verifier is required")
	}
	if builder.stateStore == nil {
		return nil, fmt.Errorf("core: state store is required")
	}
	if builder.notifier == nil {
		return nil, fmt.Errorf("core: notifier is required")
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		verifier:        builder.verifier,
		stateStore:      builder.stateStore,
		notifier:        builder.notifier,
		formatter:       builder.formatter,
		now:             builder.now,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

// decodePayloadType reads only the type discriminator so reports of another
// type are rejected before their layout is checked. A non-string type is
// returned in its raw JSON form.
func decodePayloadType(body []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", err
	}
	if fields == nil {
		return "", ErrPayloadNotObject
	}
	raw, ok := fields["type"]
	if !ok {
		return "", nil
	}
	var payloadType string
	if err := json.Unmarshal(raw, &payloadType); err != nil {
		return string(raw), nil
	}
	return payloadType, nil
}

// Ingest runs one signed report through verify, parse, dedup and notify.
// State is written before the notifier is called and is kept when the
// notifier fails, so a given hash is notified at most once.
func (s *Service) Ingest(ctx context.Context, req InboundRequest) (result IngestResult, err error) {
	startedAt := s.now()
	fields := map[string]any{"request_id": req.RequestID}
	defer func() {
		fields["changed"] = result.Changed
		if err != nil {
			fields["stage"] = string(StageOf(err))
		}
		s.observeOperation(ctx, startedAt, "ingest", err, fields)
	}()

	result.RequestID = req.RequestID
	meta := map[string]any{"request_id": req.RequestID}

	if verifyErr := s.verifier.Verify(ctx, req); verifyErr != nil {
		return result, NewAuthError(verifyErr, meta)
	}

	payloadType, decodeErr := decodePayloadType(req.Body)
	if decodeErr != nil {
		return result, NewUnexpectedError(decodeErr, meta)
	}
	if payloadType != PayloadTypeDevicesV1 {
		return result, NewValidationError(payloadType, meta)
	}
	var payload Payload
	if decodeErr := json.Unmarshal(req.Body, &payload); decodeErr != nil {
		return result, NewUnexpectedError(decodeErr, meta)
	}
	if fieldErr := payload.CheckFields(); fieldErr != nil {
		return result, NewUnexpectedError(fieldErr, meta)
	}

	key := StateKey(payload.Site)
	result.Key = key
	fields["site"] = payload.Site
	meta["site"] = payload.Site

	changed, swapErr := s.stateStore.CompareAndSwap(ctx, key, StateEntry{
		Hash: payload.Hash,
		TS:   payload.TS,
	})
	if swapErr != nil {
		return result, NewPersistError(swapErr, meta)
	}
	if !changed {
		return result, nil
	}
	result.Changed = true

	text := s.formatter(payload)
	if sendErr := s.notifier.Send(ctx, text); sendErr != nil {
		return result, NewNotifyError(sendErr, meta)
	}
	return result, nil
}

// LastState returns the stored entry for site, if any.
func (s *Service) LastState(ctx context.Context, site string) (StateEntry, bool, error) {
	if strings.TrimSpace(site) == "" {
		return StateEntry{}, false, ErrSiteRequired
	}
	return s.stateStore.Load(ctx, StateKey(site))
}
