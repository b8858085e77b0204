package sqlstore

import (
	"time"

	"github.com/railsonsantospb/unifi-relay/core"
	"github.com/uptrace/bun"
)

type siteStateRecord struct {
	bun.BaseModel `bun:"table:relay_site_states,alias:rss"`

	ID        string    `bun:"id,pk"`
	SiteKey   string    `bun:"site_key,notnull"`
	Hash      string    `bun:"hash,notnull"`
	TS        string    `bun:"ts,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *siteStateRecord) toDomain() core.StateEntry {
	if r == nil {
		return core.StateEntry{}
	}
	return core.StateEntry{Hash: r.Hash, TS: r.TS}
}
