package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type SignatureVerifier interface {
	Verify(ctx context.Context, req InboundRequest) error
}

// StateStore keeps the last notified hash per state key.
type StateStore interface {
	Load(ctx context.Context, key string) (StateEntry, bool, error)
	// CompareAndSwap writes next when the stored hash differs from next.Hash
	// (or no entry exists) and reports whether it wrote.
	CompareAndSwap(ctx context.Context, key string, next StateEntry) (bool, error)
}

type Notifier interface {
	Send(ctx context.Context, text string) error
}

type ReportFormatter func(payload Payload) string

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
