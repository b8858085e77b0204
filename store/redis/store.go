// Package redis keeps relay state as one msgpack-encoded key per site.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/go-redis/redis/v8"
	"github.com/railsonsantospb/unifi-relay/core"
	"github.com/vmihailenco/msgpack/v5"
)

const defaultMaxRetries = 5

var ErrSwapContention = errors.New("redis: state swap kept conflicting")

type Options struct {
	KeyPrefix  string
	MaxRetries int
}

type StateStore struct {
	client     goredis.UniversalClient
	prefix     string
	maxRetries int
}

// NewClient parses a redis:// URL into a client.
func NewClient(rawURL string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return goredis.NewClient(opt), nil
}

func NewStateStore(client goredis.UniversalClient, opts Options) (*StateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis: client is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = core.DefaultRedisKeyPrefix
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &StateStore{client: client, prefix: prefix, maxRetries: retries}, nil
}

func (s *StateStore) redisKey(key string) string {
	return s.prefix + key
}

func (s *StateStore) Load(ctx context.Context, key string) (core.StateEntry, bool, error) {
	raw, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return core.StateEntry{}, false, nil
		}
		return core.StateEntry{}, false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		return core.StateEntry{}, false, err
	}
	return entry, true, nil
}

// CompareAndSwap watches the key, so a concurrent writer aborts this
// transaction and the swap is retried against the new value.
func (s *StateStore) CompareAndSwap(ctx context.Context, key string, next core.StateEntry) (bool, error) {
	redisKey := s.redisKey(key)
	encoded, err := msgpack.Marshal(&next)
	if err != nil {
		return false, fmt.Errorf("redis: encode state: %w", err)
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		changed := false
		err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
			raw, getErr := tx.Get(ctx, redisKey).Bytes()
			switch {
			case errors.Is(getErr, goredis.Nil):
			case getErr != nil:
				return getErr
			default:
				current, decodeErr := decodeEntry(raw)
				if decodeErr == nil && current.Hash == next.Hash {
					return nil
				}
			}
			_, pipeErr := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, redisKey, encoded, 0)
				return nil
			})
			if pipeErr != nil {
				return pipeErr
			}
			changed = true
			return nil
		}, redisKey)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("redis: swap %s: %w", key, err)
		}
		return changed, nil
	}
	return false, fmt.Errorf("%w: %s", ErrSwapContention, key)
}

func decodeEntry(raw []byte) (core.StateEntry, error) {
	var entry core.StateEntry
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		return core.StateEntry{}, fmt.Errorf("redis: decode state: %w", err)
	}
	return entry, nil
}

var _ core.StateStore = (*StateStore)(nil)
