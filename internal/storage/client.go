// Package storage talks to a content-addressed storage network. Providers
// implement the two-method Client capability set; selection happens once at
// construction from configuration, and the Retrying wrapper adds bounded
// exponential backoff on transient failures.
package storage

import (
	"context"
	"fmt"

	dErrors "github.com/stellarnodeN/recrusearch/pkg/domain-errors"
)

// ContentID addresses a blob in the storage network. The identifier is a
// deterministic function of the bytes, computed by the network's own
// addressing scheme, never generated by this core.
type ContentID string

// CID length bounds accepted by the ledger; anything outside is malformed.
const (
	minContentIDLen = 10
	maxContentIDLen = 100
)

// Validate rejects identifiers the ledger would refuse to record.
func (id ContentID) Validate() error {
	if n := len(id); n < minContentIDLen || n > maxContentIDLen {
		return dErrors.Newf(dErrors.CodeInvalidInput, "content id length %d outside [%d, %d]", n, minContentIDLen, maxContentIDLen)
	}
	return nil
}

func (id ContentID) String() string { return string(id) }

//go:generate mockgen -source=client.go -destination=mocks/storage-mocks.go -package=mocks Client

// Client is the capability set every storage provider must offer. Blobs are
// opaque: providers never inspect or transform payload bytes.
//
// Error contract: Get returns sentinel.ErrNotFound (wrapped) for a valid,
// reachable network that does not hold the identifier, and
// sentinel.ErrUnavailable (wrapped) when the network cannot be reached.
// Only the latter is retryable.
type Client interface {
	Put(ctx context.Context, blob []byte) (ContentID, error)
	Get(ctx context.Context, id ContentID) ([]byte, error)
}

// Provider enumerates the supported storage backends.
type Provider string

const (
	ProviderMemory Provider = "memory"
	ProviderIPFS   Provider = "ipfs"
)

var validProviders = map[Provider]bool{
	ProviderMemory: true,
	ProviderIPFS:   true,
}

// ParseProvider validates a configured provider name. Unrecognized values
// fail here, at construction, not on first use.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if !validProviders[p] {
		return "", fmt.Errorf("unrecognized storage provider %q", s)
	}
	return p, nil
}
