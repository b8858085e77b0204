package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/railsonsantospb/unifi-relay/core"
)

type IngestService interface {
	Ingest(ctx context.Context, req core.InboundRequest) (core.IngestResult, error)
}

type IngestCommand struct {
	service IngestService
}

func NewIngestCommand(service IngestService) *IngestCommand {
	return &IngestCommand{service: service}
}

// Execute runs the ingest pipeline and stores the result in the collector
// carried by ctx, if any. The result is stored even when the pipeline fails
// after the state write so callers can see Changed.
func (c *IngestCommand) Execute(ctx context.Context, msg IngestMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: ingest service is required")
	}
	out, err := c.service.Ingest(ctx, msg.Request)
	storeResult(ctx, out)
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
