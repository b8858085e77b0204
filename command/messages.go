package command

import "github.com/railsonsantospb/unifi-relay/core"

const TypeIngest = "relay.command.ingest"

type IngestMessage struct {
	Request core.InboundRequest
}

func (IngestMessage) Type() string { return TypeIngest }

func (m IngestMessage) Validate() error {
	if len(m.Request.Body) == 0 {
		return commandValidationError("body", "request body is required")
	}
	return nil
}
