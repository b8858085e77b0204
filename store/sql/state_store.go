package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/railsonsantospb/unifi-relay/core"
	"github.com/uptrace/bun"
)

// StateStore keeps one row per state key. Swaps run in a transaction so the
// read and the conditional write see the same row.
type StateStore struct {
	db   *bun.DB
	repo repository.Repository[*siteStateRecord]
	now  func() time.Time
}

func NewStateStore(db *bun.DB) (*StateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*siteStateRecord](db, siteStateHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid site state repository wiring: %w", err)
		}
	}
	return &StateStore{
		db:   db,
		repo: repo,
		now:  time.Now,
	}, nil
}

func (s *StateStore) Load(ctx context.Context, key string) (core.StateEntry, bool, error) {
	if s == nil || s.repo == nil {
		return core.StateEntry{}, false, fmt.Errorf("sqlstore: state store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.StateEntry{}, false, fmt.Errorf("sqlstore: state key is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("site_key", "=", key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.StateEntry{}, false, err
	}
	if len(records) == 0 {
		return core.StateEntry{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *StateStore) CompareAndSwap(ctx context.Context, key string, next core.StateEntry) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: state store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("sqlstore: state key is required")
	}
	now := s.now().UTC()

	changed := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findSiteStateTx(ctx, tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			record = &siteStateRecord{
				ID:        uuid.NewString(),
				SiteKey:   key,
				Hash:      next.Hash,
				TS:        next.TS,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if _, createErr := s.repo.CreateTx(ctx, tx, record); createErr != nil {
				return createErr
			}
			changed = true
			return nil
		}
		if record.Hash == next.Hash {
			return nil
		}
		record.Hash = next.Hash
		record.TS = next.TS
		record.UpdatedAt = now
		if _, updateErr := s.repo.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID)); updateErr != nil {
			return updateErr
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("sqlstore: swap %s: %w", key, err)
	}
	return changed, nil
}

func findSiteStateTx(ctx context.Context, tx bun.Tx, key string) (*siteStateRecord, error) {
	record := &siteStateRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.site_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
