package driver

import (
	"context"
	"errors"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

// RedisMailbox keeps the three slots as Redis keys
type RedisMailbox struct {
	client *backend.Client
	prefix string
}

type RedisOption func(*RedisMailbox)

// WithPrefix sets the key prefix for the slots.
func WithPrefix(prefix string) RedisOption {
	return func(m *RedisMailbox) {
		m.prefix = prefix
	}
}

// NewRedisMailbox connects using a redis:// URL
func NewRedisMailbox(url string, opts ...RedisOption) (*RedisMailbox, error) {
	options, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewRedisMailboxFromClient(backend.NewClient(options), opts...), nil
}

// NewRedisMailboxFromClient creates a mailbox from an existing client.
func NewRedisMailboxFromClient(client *backend.Client, opts ...RedisOption) *RedisMailbox {
	m := &RedisMailbox{
		client: client,
		prefix: "grocerybot:driver:",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *RedisMailbox) key(slot string) string {
	return m.prefix + slot
}

func (m *RedisMailbox) PutCommand(ctx context.Context, payload []byte) error {
	if err := m.client.Set(ctx, m.key("command"), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

func (m *RedisMailbox) CommandPending(ctx context.Context) (bool, error) {
	n, err := m.client.Exists(ctx, m.key("command")).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check command: %w", err)
	}
	return n > 0, nil
}

func (m *RedisMailbox) TakeResponse(ctx context.Context) ([]byte, bool, error) {
	data, err := m.client.GetDel(ctx, m.key("response")).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response: %w", err)
	}
	return data, true, nil
}

func (m *RedisMailbox) TakeStatus(ctx context.Context) (string, bool, error) {
	st, err := m.client.GetDel(ctx, m.key("status")).Result()
	if errors.Is(err, backend.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read status: %w", err)
	}
	return st, true, nil
}

func (m *RedisMailbox) Reset(ctx context.Context) error {
	if err := m.client.Del(ctx, m.key("command"), m.key("response")).Err(); err != nil {
		return fmt.Errorf("failed to clear slots: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (m *RedisMailbox) Close() error {
	return m.client.Close()
}
