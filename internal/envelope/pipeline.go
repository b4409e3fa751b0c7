package envelope

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellarnodeN/recrusearch/internal/storage"
	dErrors "github.com/stellarnodeN/recrusearch/pkg/domain-errors"
	"github.com/stellarnodeN/recrusearch/pkg/platform/sentinel"
)

// Pipeline seals payloads and persists the envelopes through a storage
// client. The only durable reference to a sealed payload is the content
// identifier; the ledger stores that plus the integrity hash, never the
// envelope.
type Pipeline struct {
	store storage.Client
}

func NewPipeline(store storage.Client) *Pipeline {
	return &Pipeline{store: store}
}

// SealResult is what the caller records with the ledger after a submission.
type SealResult struct {
	ContentID     storage.ContentID
	IntegrityHash [32]byte
	// Size is the serialized envelope length, exposed for observability.
	Size int
}

// Seal encrypts payload to the recipient's public key and stores the
// serialized envelope. Two seals of identical payloads yield different
// content identifiers because the ephemeral key and nonce are fresh each
// call; deduplication by identifier would leak that two participants
// submitted identical answers, so this must stay non-deterministic.
func (p *Pipeline) Seal(ctx context.Context, payload []byte, recipientPK *[32]byte) (SealResult, error) {
	env, err := seal(payload, recipientPK)
	if err != nil {
		return SealResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "seal payload")
	}

	serialized := env.Marshal()
	id, err := p.store.Put(ctx, serialized)
	if err != nil {
		return SealResult{}, translateStorageErr(err)
	}

	return SealResult{
		ContentID:     id,
		IntegrityHash: IntegrityHash(serialized),
		Size:          len(serialized),
	}, nil
}

// Open fetches the envelope at id and decrypts it with the recipient's
// private key, returning the exact original payload bytes. The three
// failure classes stay distinct: storage unavailable (retry later), not
// found (identifier wrong or content gone), and integrity failure (wrong
// key or tampered data, where retrying cannot help).
func (p *Pipeline) Open(ctx context.Context, id storage.ContentID, recipientSK *[32]byte) ([]byte, error) {
	raw, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, translateStorageErr(err)
	}

	env, err := Parse(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIntegrity, "parse envelope")
	}

	payload, err := open(env, recipientSK)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIntegrity, "open envelope")
	}
	return payload, nil
}

func translateStorageErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "content not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "storage operation abandoned")
	default:
		return fmt.Errorf("storage operation: %w", err)
	}
}
