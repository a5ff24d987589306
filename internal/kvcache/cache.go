// Package kvcache provides the durable per-session key/value store that mirrors
// cart, favorites, gift and consent state across reloads.
package kvcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Cache is a durable key/value store. Get distinguishes an absent key (ok=false)
// from a stored empty value.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Well-known keys written by the session stores.
const (
	KeyCart            = "cart"
	KeyFavorites       = "favorites"
	KeyGiftEnabled     = "gift_enabled"
	KeyGiftMessage     = "gift_message"
	KeyGiftHideInvoice = "gift_hide_invoice"
	KeyConsent         = "consent"
	KeyUser            = "user_id"
)

// GetJSON decodes the value stored under key into v. It reports ok=false when
// the key has never been written.
func GetJSON(ctx context.Context, c Cache, key string, v interface{}) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, raw)
}

type namespaced struct {
	prefix string
	inner  Cache
}

// Namespace scopes every key of inner under "<ns>:".
func Namespace(inner Cache, ns string) Cache {
	return &namespaced{prefix: ns + ":", inner: inner}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

// Memory is an in-process Cache used by tests and single-shot tools.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
