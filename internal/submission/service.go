// Package submission orchestrates one participant interaction end to end:
// gate authorization, payload sealing, and production of the values the
// external ledger's write calls need. The service holds no mutable state of
// its own; every call is a function of its inputs plus the ledger snapshot
// and storage round trip.
package submission

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stellarnodeN/recrusearch/internal/eligibility"
	"github.com/stellarnodeN/recrusearch/internal/envelope"
	"github.com/stellarnodeN/recrusearch/internal/gate"
	"github.com/stellarnodeN/recrusearch/internal/ledger"
	"github.com/stellarnodeN/recrusearch/internal/platform/metrics"
	"github.com/stellarnodeN/recrusearch/internal/storage"
	"github.com/stellarnodeN/recrusearch/pkg/domain"
	dErrors "github.com/stellarnodeN/recrusearch/pkg/domain-errors"
	"github.com/stellarnodeN/recrusearch/pkg/platform/sentinel"
)

// Ledger is the combined surface the service needs. The read half is this
// core's own dependency; the write half is the external ledger call the
// service performs on the caller's behalf after authorization succeeds.
type Ledger interface {
	ledger.Reader
	ledger.Writer
}

type Service struct {
	ledger   Ledger
	pipeline *envelope.Pipeline
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(l Ledger, pipeline *envelope.Pipeline, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		ledger:   l,
		pipeline: pipeline,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock fixes the service clock; tests use it to step through phases.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// EnrollResult summarizes a recorded consent.
type EnrollResult struct {
	GrantedAt time.Time
	Decision  eligibility.Decision
}

// SubmitResult is what the caller forwards to the ledger's
// record-submission call: the content identifier and integrity hash.
type SubmitResult struct {
	ContentID     storage.ContentID
	IntegrityHash [32]byte
	SubmittedAt   time.Time
}

// Enroll authorizes enrollment and records consent. The attribute record is
// consumed here once and never persisted; only the decision summary reaches
// the ledger inside the consent record.
func (s *Service) Enroll(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID, attrs eligibility.AttributeRecord) (EnrollResult, error) {
	snapshot, consent, err := s.readSnapshots(ctx, campaignID, participantID)
	if err != nil {
		return EnrollResult{}, err
	}

	now := s.now()
	decision, err := gate.AuthorizeEnrollment(snapshot, consent, attrs, now)
	if err != nil {
		s.metrics.ObserveGateDecision("enroll", "rejected")
		return EnrollResult{}, translateGateErr(err)
	}
	s.metrics.ObserveGateDecision("enroll", "admitted")

	record := ledger.ConsentRecord{
		CampaignID:    campaignID,
		ParticipantID: participantID,
		GrantedAt:     now,
	}
	if err := s.ledger.RecordConsent(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a race past our snapshot, either to another agent for
			// the same identity or to the campaign's last open slot; the
			// ledger's linearization wins.
			return EnrollResult{}, dErrors.Wrap(err, dErrors.CodeConflict, "enrollment not accepted")
		}
		return EnrollResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "record consent")
	}

	s.logger.InfoContext(ctx, "consent recorded",
		"campaign_id", campaignID.String(),
		"participant_id", participantID.String(),
	)
	return EnrollResult{GrantedAt: now, Decision: decision}, nil
}

// Submit authorizes the submission, seals the payload to the campaign
// owner's public key, and records the content identifier with the ledger.
// Eligibility is not re-evaluated: the consent-time decision stands.
func (s *Service) Submit(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID, payload []byte) (SubmitResult, error) {
	if len(payload) == 0 {
		return SubmitResult{}, dErrors.New(dErrors.CodeInvalidInput, "payload cannot be empty")
	}

	snapshot, consent, err := s.readSnapshots(ctx, campaignID, participantID)
	if err != nil {
		return SubmitResult{}, err
	}

	now := s.now()
	if err := gate.AuthorizeSubmission(snapshot, consent, now); err != nil {
		s.metrics.ObserveGateDecision("submit", "rejected")
		return SubmitResult{}, translateGateErr(err)
	}
	s.metrics.ObserveGateDecision("submit", "admitted")

	sealed, err := s.pipeline.Seal(ctx, payload, &snapshot.OwnerPublicKey)
	if err != nil {
		return SubmitResult{}, err
	}
	s.metrics.ObserveSeal(sealed.Size)

	record := ledger.SubmissionRecord{
		CampaignID:    campaignID,
		ParticipantID: participantID,
		ContentID:     sealed.ContentID.String(),
		IntegrityHash: sealed.IntegrityHash,
		SubmittedAt:   now,
	}
	if err := s.ledger.RecordSubmission(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return SubmitResult{}, dErrors.Wrap(err, dErrors.CodeConflict, "data already submitted for this campaign")
		}
		return SubmitResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "record submission")
	}

	s.logger.InfoContext(ctx, "submission recorded",
		"campaign_id", campaignID.String(),
		"participant_id", participantID.String(),
		"content_id", sealed.ContentID.String(),
		"envelope_bytes", sealed.Size,
	)
	return SubmitResult{ContentID: sealed.ContentID, IntegrityHash: sealed.IntegrityHash, SubmittedAt: now}, nil
}

// RevokeConsent withdraws the identity's consent on the campaign.
func (s *Service) RevokeConsent(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID) error {
	err := s.ledger.RevokeConsent(ctx, campaignID, participantID)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "consent revoked",
			"campaign_id", campaignID.String(),
			"participant_id", participantID.String(),
		)
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "no consent to revoke")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, "consent already revoked")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke consent")
	}
}

// Retrieve fetches and decrypts one submission for the researcher holding
// the campaign's private key. The key stays with the caller; it is used for
// this one call and never stored.
func (s *Service) Retrieve(ctx context.Context, contentID storage.ContentID, ownerPrivateKey *[32]byte) ([]byte, error) {
	payload, err := s.pipeline.Open(ctx, contentID, ownerPrivateKey)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveOpen()
	return payload, nil
}

// readSnapshots fetches the campaign and consent snapshots concurrently.
// Both reads are independent single-snapshot calls, so the only ordering
// requirement is that both complete before the gate runs.
func (s *Service) readSnapshots(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID) (ledger.CampaignSnapshot, *ledger.ConsentRecord, error) {
	var (
		snapshot ledger.CampaignSnapshot
		consent  *ledger.ConsentRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = s.ledger.CampaignSnapshot(gctx, campaignID)
		return err
	})
	g.Go(func() error {
		var err error
		consent, err = s.ledger.ConsentSnapshot(gctx, campaignID, participantID)
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ledger.CampaignSnapshot{}, nil, dErrors.Wrap(err, dErrors.CodeNotFound, "campaign not found")
		}
		return ledger.CampaignSnapshot{}, nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger read failed")
	}
	return snapshot, consent, nil
}

// translateGateErr maps typed gate rejections onto coded domain errors so
// the transport can pick a status without knowing gate internals.
func translateGateErr(err error) error {
	var phaseErr *gate.PhaseNotOpenError
	var notEligible *gate.NotEligibleError
	switch {
	case errors.As(err, &phaseErr):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "campaign phase not open for this operation")
	case errors.As(err, &notEligible):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "eligibility rules not met")
	case errors.Is(err, gate.ErrCampaignFull):
		return dErrors.Wrap(err, dErrors.CodeConflict, "campaign is full")
	case errors.Is(err, gate.ErrAlreadyConsented):
		return dErrors.Wrap(err, dErrors.CodeConflict, "consent already granted")
	case errors.Is(err, gate.ErrConsentMissing):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "no consent on record")
	case errors.Is(err, gate.ErrConsentRevoked):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "consent revoked")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "authorization failed")
	}
}
