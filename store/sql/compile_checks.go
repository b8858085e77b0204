package sqlstore

import "github.com/railsonsantospb/unifi-relay/core"

var (
	_ core.StateStore = (*StateStore)(nil)
	_ core.StateStore = (*CachedStateStore)(nil)
)
