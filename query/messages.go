package query

import "strings"

const TypeLastState = "relay.query.state.last"

type LastStateMessage struct {
	Site string
}

func (LastStateMessage) Type() string { return TypeLastState }

func (m LastStateMessage) Validate() error {
	if strings.TrimSpace(m.Site) == "" {
		return queryValidationError("site", "site is required")
	}
	return nil
}
