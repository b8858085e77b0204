package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/railsonsantospb/unifi-relay/core"
)

var _ gocmd.Querier[LastStateMessage, core.SiteState] = (*LastStateQuery)(nil)
