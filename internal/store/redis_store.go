package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionField = "_version"

// RedisStore implements the Store interface using Redis.
// Each session is one hash (record key -> JSON) plus a version field; commits
// run under WATCH inside MULTI/EXEC so all records of a call land together.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration // Time-to-live for ledgers (0 = no expiration)
}

// RedisOptions holds Redis connection configuration
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore creates a new Redis store instance and checks the connection.
func NewRedisStore(opts RedisOptions, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// CreateSession creates a new ledger hash in Redis.
func (s *RedisStore) CreateSession(ctx context.Context, ledger *Ledger) error {
	key := ledgerKey(ledger.Session.ID)

	records, err := ledger.EncodeDirty()
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check session existence: %w", err)
		}
		if exists > 0 {
			return ErrSessionExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hashValues(records, 1)...)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return ErrSessionExists
		}
		if errors.Is(err, ErrSessionExists) {
			return ErrSessionExists
		}
		return fmt.Errorf("failed to store session: %w", err)
	}

	ledger.Committed(1)
	return nil
}

// Load retrieves every record of a session from Redis.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Ledger, error) {
	fields, err := s.client.HGetAll(ctx, ledgerKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}

	version, err := strconv.ParseInt(fields[versionField], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger version: %w", err)
	}

	records := make(map[string][]byte, len(fields))
	for k, v := range fields {
		if k == versionField {
			continue
		}
		records[k] = []byte(v)
	}

	return DecodeLedger(version, records)
}

// Commit writes the dirty records if the stored version is unchanged.
func (s *RedisStore) Commit(ctx context.Context, ledger *Ledger) error {
	key := ledgerKey(ledger.Session.ID)

	records, err := ledger.EncodeDirty()
	if err != nil {
		return err
	}

	next := ledger.Version() + 1
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, versionField).Int64()
		if err != nil {
			if err == redis.Nil {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to read ledger version: %w", err)
		}
		if current != ledger.Version() {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hashValues(records, next)...)
			// Refresh TTL on every write
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txf, key); err != nil {
		switch {
		case errors.Is(err, redis.TxFailedErr), errors.Is(err, ErrConflict):
			return ErrConflict
		case errors.Is(err, ErrSessionNotFound):
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to update session: %w", err)
	}

	ledger.Committed(next)
	return nil
}

func hashValues(records map[string][]byte, version int64) []interface{} {
	values := make([]interface{}, 0, 2*len(records)+2)
	for k, v := range records {
		values = append(values, k, v)
	}
	return append(values, versionField, version)
}

// ledgerKey generates a Redis key for a session ledger.
func ledgerKey(id string) string {
	return fmt.Sprintf("ledger:%s", id)
}
