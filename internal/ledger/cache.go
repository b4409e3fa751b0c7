package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stellarnodeN/recrusearch/pkg/domain"
)

// CampaignCacheTTL bounds how stale a cached campaign snapshot may be.
// Time-driven phase transitions are recomputed by the gate on every call,
// but a cached draft status would keep a just-published campaign closed, so
// publishes go through WrapCampaignWriter and invalidate the entry.
const CampaignCacheTTL = 30 * time.Second

// CachedReader decorates a Reader with short-TTL campaign snapshot caching
// in Redis. Consent snapshots are never cached: a stale entry there could
// let a revoked consent authorize a submission.
type CachedReader struct {
	inner  Reader
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func NewCachedReader(inner Reader, client *redis.Client, logger *slog.Logger) *CachedReader {
	return &CachedReader{inner: inner, client: client, logger: logger, ttl: CampaignCacheTTL}
}

func (r *CachedReader) CampaignSnapshot(ctx context.Context, campaignID domain.CampaignID) (CampaignSnapshot, error) {
	key := campaignCacheKey(campaignID)

	raw, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached cachedCampaign
		if err := json.Unmarshal(raw, &cached); err == nil {
			if snapshot, ok := cached.toSnapshot(campaignID); ok {
				return snapshot, nil
			}
		}
		// Corrupt entry: fall through to the source and overwrite it.
		r.logger.WarnContext(ctx, "discarding corrupt campaign cache entry", "campaign_id", campaignID.String())
	} else if !errors.Is(err, redis.Nil) {
		// Cache unavailability must not take down reads; log and fall through.
		r.logger.WarnContext(ctx, "campaign cache read failed", "campaign_id", campaignID.String(), "error", err)
	}

	snapshot, err := r.inner.CampaignSnapshot(ctx, campaignID)
	if err != nil {
		return CampaignSnapshot{}, err
	}

	encoded, err := json.Marshal(fromSnapshot(snapshot))
	if err == nil {
		if err := r.client.Set(ctx, key, encoded, r.ttl).Err(); err != nil {
			r.logger.WarnContext(ctx, "campaign cache write failed", "campaign_id", campaignID.String(), "error", err)
		}
	}
	return snapshot, nil
}

func (r *CachedReader) ConsentSnapshot(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID) (*ConsentRecord, error) {
	return r.inner.ConsentSnapshot(ctx, campaignID, participantID)
}

// Invalidate drops the cached snapshot, used after a caller observes a
// ledger write for the campaign (e.g. its own consent being recorded).
func (r *CachedReader) Invalidate(ctx context.Context, campaignID domain.CampaignID) {
	if err := r.client.Del(ctx, campaignCacheKey(campaignID)).Err(); err != nil {
		r.logger.WarnContext(ctx, "campaign cache invalidation failed", "campaign_id", campaignID.String(), "error", err)
	}
}

// WrapCampaignWriter decorates a CampaignWriter so a successful publish
// drops the cached snapshot. Without this a cached draft status would block
// enrollment for up to the TTL after the campaign goes live.
func (r *CachedReader) WrapCampaignWriter(inner CampaignWriter) CampaignWriter {
	return &invalidatingCampaignWriter{inner: inner, cache: r}
}

type invalidatingCampaignWriter struct {
	inner CampaignWriter
	cache *CachedReader
}

func (w *invalidatingCampaignWriter) CreateCampaign(ctx context.Context, snapshot CampaignSnapshot) error {
	return w.inner.CreateCampaign(ctx, snapshot)
}

func (w *invalidatingCampaignWriter) PublishCampaign(ctx context.Context, campaignID domain.CampaignID) error {
	if err := w.inner.PublishCampaign(ctx, campaignID); err != nil {
		return err
	}
	w.cache.Invalidate(ctx, campaignID)
	return nil
}

func campaignCacheKey(campaignID domain.CampaignID) string {
	return fmt.Sprintf("recrusearch:campaign:%s", campaignID)
}

// cachedCampaign is the wire shape for cached snapshots. Kept separate from
// CampaignSnapshot so the cache encoding can evolve without touching the
// domain model.
type cachedCampaign struct {
	CreatedBy       string          `json:"created_by"`
	OwnerPublicKey  []byte          `json:"owner_public_key"`
	Status          string          `json:"status"`
	EnrollmentStart time.Time       `json:"enrollment_start"`
	EnrollmentEnd   time.Time       `json:"enrollment_end"`
	CollectionEnd   time.Time       `json:"collection_end"`
	MaxParticipants int             `json:"max_participants"`
	EnrolledCount   int             `json:"enrolled_count"`
	Rules           json.RawMessage `json:"rules,omitempty"`
}

func fromSnapshot(s CampaignSnapshot) cachedCampaign {
	rules, _ := json.Marshal(s.Rules)
	return cachedCampaign{
		CreatedBy:       s.CreatedBy.String(),
		OwnerPublicKey:  s.OwnerPublicKey[:],
		Status:          string(s.Status),
		EnrollmentStart: s.EnrollmentStart,
		EnrollmentEnd:   s.EnrollmentEnd,
		CollectionEnd:   s.CollectionEnd,
		MaxParticipants: s.MaxParticipants,
		EnrolledCount:   s.EnrolledCount,
		Rules:           rules,
	}
}

// toSnapshot rebuilds the domain snapshot. ok is false for corrupt entries:
// a rule set that fails to decode must never degrade to "no restrictions".
func (c cachedCampaign) toSnapshot(id domain.CampaignID) (CampaignSnapshot, bool) {
	createdBy, err := uuid.Parse(c.CreatedBy)
	if err != nil {
		return CampaignSnapshot{}, false
	}
	snapshot := CampaignSnapshot{
		ID:              id,
		CreatedBy:       domain.ParticipantID(createdBy),
		Status:          CampaignStatus(c.Status),
		EnrollmentStart: c.EnrollmentStart,
		EnrollmentEnd:   c.EnrollmentEnd,
		CollectionEnd:   c.CollectionEnd,
		MaxParticipants: c.MaxParticipants,
		EnrolledCount:   c.EnrolledCount,
	}
	if len(c.OwnerPublicKey) != len(snapshot.OwnerPublicKey) {
		return CampaignSnapshot{}, false
	}
	copy(snapshot.OwnerPublicKey[:], c.OwnerPublicKey)
	if len(c.Rules) > 0 {
		if err := json.Unmarshal(c.Rules, &snapshot.Rules); err != nil {
			return CampaignSnapshot{}, false
		}
	}
	return snapshot, true
}
