package storage

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"sync"

	"github.com/stellarnodeN/recrusearch/pkg/platform/sentinel"
)

// MemoryClient is an in-process content-addressed store for tests and local
// development. Identifiers are derived from a SHA-256 of the bytes, matching
// the determinism of a real content-addressed network.
type MemoryClient struct {
	mu    sync.RWMutex
	blobs map[ContentID][]byte
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{blobs: make(map[ContentID][]byte)}
}

func (c *MemoryClient) Put(_ context.Context, blob []byte) (ContentID, error) {
	sum := sha256.Sum256(blob)
	id := ContentID("mem" + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:]))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[id] = append([]byte(nil), blob...)
	return id, nil
}

func (c *MemoryClient) Get(_ context.Context, id ContentID) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	blob, ok := c.blobs[id]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", id, sentinel.ErrNotFound)
	}
	return append([]byte(nil), blob...), nil
}
