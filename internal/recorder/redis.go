package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"SignalSentinel/internal/model"
)

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps the correlation snapshot in one hash and each latest
// decision under its own key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions, log zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	log.Info().Str("addr", opts.Addr).Msg("redis store connected")
	return NewRedisStoreFromClient(client, opts.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "sentinel"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) correlationsKey() string { return s.prefix + ":correlations" }

func (s *RedisStore) decisionKey(symbol string) string { return s.prefix + ":decision:" + symbol }

func pairField(a, b string) string { return a + "|" + b }

// ReplaceAll writes the new snapshot to a staging hash and renames it over
// the live one inside MULTI/EXEC.
func (s *RedisStore) ReplaceAll(ctx context.Context, entries []model.CorrelationEntry) error {
	live := s.correlationsKey()
	staging := live + ":staging:" + uuid.NewString()

	values := make([]any, 0, len(entries)*2)
	for _, e := range entries {
		e.SymbolA, e.SymbolB = model.CanonicalPair(e.SymbolA, e.SymbolB)
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", e.SymbolA, e.SymbolB, err)
		}
		values = append(values, pairField(e.SymbolA, e.SymbolB), raw)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(values) == 0 {
			pipe.Del(ctx, live)
			return nil
		}
		pipe.HSet(ctx, staging, values...)
		pipe.Rename(ctx, staging, live)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace correlations: %w", err)
	}
	return nil
}

func (s *RedisStore) FindBySymbol(ctx context.Context, symbol string) ([]model.CorrelationEntry, error) {
	all, err := s.client.HGetAll(ctx, s.correlationsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load correlations: %w", err)
	}
	return decodeEntries(all, symbol)
}

func decodeEntries(raw map[string]string, symbol string) ([]model.CorrelationEntry, error) {
	var out []model.CorrelationEntry
	for field, v := range raw {
		var e model.CorrelationEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", field, err)
		}
		if e.SymbolA == symbol || e.SymbolB == symbol {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (s *RedisStore) RecordDecision(ctx context.Context, rec *DecisionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode decision %s: %w", rec.Symbol, err)
	}
	if err := s.client.Set(ctx, s.decisionKey(rec.Symbol), raw, 0).Err(); err != nil {
		return fmt.Errorf("store decision %s: %w", rec.Symbol, err)
	}
	return nil
}

func (s *RedisStore) LatestDecision(ctx context.Context, symbol string) (*DecisionRecord, error) {
	raw, err := s.client.Get(ctx, s.decisionKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load decision %s: %w", symbol, err)
	}
	var rec DecisionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode decision %s: %w", symbol, err)
	}
	return &rec, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
