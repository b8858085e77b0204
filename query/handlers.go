// Package query exposes read-side lookups over the relay state.
package query

import (
	"context"

	"github.com/railsonsantospb/unifi-relay/core"
)

type StateReader interface {
	LastState(ctx context.Context, site string) (core.StateEntry, bool, error)
}

type LastStateQuery struct {
	reader StateReader
}

func NewLastStateQuery(reader StateReader) *LastStateQuery {
	return &LastStateQuery{reader: reader}
}

func (q *LastStateQuery) Query(ctx context.Context, msg LastStateMessage) (core.SiteState, error) {
	if q == nil || q.reader == nil {
		return core.SiteState{}, queryDependencyError("query: state reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.SiteState{}, err
	}
	entry, found, err := q.reader.LastState(ctx, msg.Site)
	if err != nil {
		return core.SiteState{}, err
	}
	return core.SiteState{
		Site:  msg.Site,
		Key:   core.StateKey(msg.Site),
		Hash:  entry.Hash,
		TS:    entry.TS,
		Found: found,
	}, nil
}
