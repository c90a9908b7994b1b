package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultRulesKey holds the rule document when no key is configured.
const DefaultRulesKey = "retry_robot_rules"

// RuleStore keeps the rule document in Redis next to a version counter.
// It implements rules.Loader.
type RuleStore struct {
	rdb *redis.Client
	key string
}

// NewRuleStore creates a rule store under key.
func NewRuleStore(client *Client, key string) *RuleStore {
	if key == "" {
		key = DefaultRulesKey
	}
	return &RuleStore{rdb: client.rdb, key: key}
}

// Key helpers
func (s *RuleStore) versionKey() string {
	return fmt.Sprintf("%s:version", s.key)
}

// Version returns the current document version, 0 if never published.
func (s *RuleStore) Version(ctx context.Context) (int64, error) {
	val, err := s.rdb.Get(ctx, s.versionKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get rules version failed: %w", err)
	}
	return strconv.ParseInt(val, 10, 64)
}

// Fetch returns the document and its version in one round trip.
func (s *RuleStore) Fetch(ctx context.Context) ([]byte, int64, error) {
	var docCmd, verCmd *redis.StringCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		docCmd = p.Get(ctx, s.key)
		verCmd = p.Get(ctx, s.versionKey())
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("fetch rules failed: %w", err)
	}

	doc, err := docCmd.Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("get rules failed: %w", err)
	}

	var version int64
	if raw, err := verCmd.Result(); err == nil {
		version, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid rules version %q: %w", raw, err)
		}
	}
	return doc, version, nil
}

// Publish replaces the document and bumps the version so every cache
// reloads on its next check.
func (s *RuleStore) Publish(ctx context.Context, doc []byte) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key, doc, 0)
		incr = p.Incr(ctx, s.versionKey())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("publish rules failed: %w", err)
	}
	return incr.Val(), nil
}
