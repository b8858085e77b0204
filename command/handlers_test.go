package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/railsonsantospb/unifi-relay/core"
)

type stubIngestService struct {
	ingestFn func(ctx context.Context, req core.InboundRequest) (core.IngestResult, error)
}

func (s stubIngestService) Ingest(ctx context.Context, req core.InboundRequest) (core.IngestResult, error) {
	return s.ingestFn(ctx, req)
}

func TestIngestCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	called := false
	svc := stubIngestService{
		ingestFn: func(_ context.Context, req core.InboundRequest) (core.IngestResult, error) {
			called = true
			if req.RequestID != "req_1" || string(req.Body) != "{}" {
				t.Fatalf("unexpected request: %#v", req)
			}
			return core.IngestResult{RequestID: req.RequestID, Key: "unifi:home", Changed: true}, nil
		},
	}

	cmd := NewIngestCommand(svc)
	collector := gocmd.NewResult[core.IngestResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	msg := IngestMessage{Request: core.InboundRequest{RequestID: "req_1", Body: []byte("{}")}}
	if err := cmd.Execute(ctx, msg); err != nil {
		t.Fatalf("execute ingest: %v", err)
	}
	if !called {
		t.Fatalf("expected ingest service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Key != "unifi:home" || !result.Changed {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestIngestCommand_ExecuteReturnsServiceError(t *testing.T) {
	svc := stubIngestService{
		ingestFn: func(context.Context, core.InboundRequest) (core.IngestResult, error) {
			return core.IngestResult{Key: "unifi:home", Changed: true}, errors.New("notify failed")
		},
	}
	collector := gocmd.NewResult[core.IngestResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := NewIngestCommand(svc).Execute(ctx, IngestMessage{Request: core.InboundRequest{Body: []byte("{}")}})
	if err == nil || err.Error() != "notify failed" {
		t.Fatalf("expected service error, got %v", err)
	}
	result, ok := collector.Load()
	if !ok || !result.Changed {
		t.Fatalf("expected partial result to be stored, got %#v ok=%v", result, ok)
	}
}

func TestIngestCommand_WithoutCollector(t *testing.T) {
	svc := stubIngestService{
		ingestFn: func(context.Context, core.InboundRequest) (core.IngestResult, error) {
			return core.IngestResult{}, nil
		},
	}
	if err := NewIngestCommand(svc).Execute(context.Background(), IngestMessage{}); err != nil {
		t.Fatalf("execute without collector: %v", err)
	}
}

func TestIngestCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *IngestCommand
	err := cmd.Execute(context.Background(), IngestMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

func TestIngestMessage_ValidateRequiresBody(t *testing.T) {
	err := (IngestMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if (IngestMessage{Request: core.InboundRequest{Body: []byte("{}")}}).Validate() != nil {
		t.Fatalf("expected message with body to validate")
	}
	if (IngestMessage{}).Type() != TypeIngest {
		t.Fatalf("unexpected message type")
	}
}
