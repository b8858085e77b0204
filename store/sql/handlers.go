package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func siteStateHandlers() repository.ModelHandlers[*siteStateRecord] {
	return repository.ModelHandlers[*siteStateRecord]{
		NewRecord: func() *siteStateRecord {
			return &siteStateRecord{}
		},
		GetID: func(record *siteStateRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *siteStateRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "site_key"
		},
		GetIdentifierValue: func(record *siteStateRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.SiteKey)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
