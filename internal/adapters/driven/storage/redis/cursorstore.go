// Package redis keeps change consumer checkpoints in Redis, so consumers
// on several hosts can share one cursor.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure CursorStore implements the interface.
var _ driven.CursorStore = (*CursorStore)(nil)

// DefaultKeyPrefix namespaces cursor keys.
const DefaultKeyPrefix = "sercha-ingest:cursor:"

// connectionTimeout bounds the ping in NewClient.
const connectionTimeout = 5 * time.Second

// Hash fields of a cursor key.
const (
	fieldSequence  = "sequence"
	fieldUpdatedAt = "updated_at"
)

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// Config holds Redis connection configuration.
type Config struct {
	Address  string
	Password string
	DB       int

	// Timeout bounds reads and writes. Zero keeps the client defaults.
	Timeout time.Duration
}

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// CursorStore stores each cursor as a hash holding its sequence and the
// time it was saved.
type CursorStore struct {
	client *redis.Client
	prefix string
}

// NewCursorStore creates a cursor store. An empty prefix uses
// DefaultKeyPrefix.
func NewCursorStore(client *redis.Client, prefix string) *CursorStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &CursorStore{client: client, prefix: prefix}
}

// Load retrieves a cursor by name.
// Returns nil and no error if the cursor has never been saved.
func (s *CursorStore) Load(ctx context.Context, name string) (*domain.ChangeCursor, error) {
	values, err := s.client.HGetAll(ctx, s.key(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor %s: %w", name, domain.NewTransportError("redis", "hgetall", err))
	}
	if len(values) == 0 {
		return nil, nil
	}

	seq, err := strconv.ParseInt(values[fieldSequence], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cursor %s has invalid sequence %q: %w", name, values[fieldSequence], err)
	}
	cur := &domain.ChangeCursor{Name: name, Sequence: seq}
	if at := values[fieldUpdatedAt]; at != "" {
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			cur.UpdatedAt = t
		}
	}
	return cur, nil
}

// Save stores or updates a cursor.
func (s *CursorStore) Save(ctx context.Context, cursor domain.ChangeCursor) error {
	if cursor.Name == "" {
		return fmt.Errorf("%w: cursor has no name", domain.ErrInvalidInput)
	}
	values := map[string]any{
		fieldSequence:  strconv.FormatInt(cursor.Sequence, 10),
		fieldUpdatedAt: cursor.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := s.client.HSet(ctx, s.key(cursor.Name), values).Err(); err != nil {
		return fmt.Errorf("failed to save cursor %s: %w", cursor.Name, domain.NewTransportError("redis", "hset", err))
	}
	return nil
}

func (s *CursorStore) key(name string) string {
	return s.prefix + name
}
