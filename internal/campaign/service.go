// Package campaign provides the researcher-facing provisioning surface:
// creating draft campaigns, publishing them, and reading their public state.
// Participant-facing authorization lives in the gate; this package only
// shapes what the gate later reads.
package campaign

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stellarnodeN/recrusearch/internal/eligibility"
	"github.com/stellarnodeN/recrusearch/internal/gate"
	"github.com/stellarnodeN/recrusearch/internal/ledger"
	"github.com/stellarnodeN/recrusearch/pkg/domain"
	dErrors "github.com/stellarnodeN/recrusearch/pkg/domain-errors"
	"github.com/stellarnodeN/recrusearch/pkg/platform/sentinel"
)

// Ledger is the slice of the ledger this service needs.
type Ledger interface {
	CampaignSnapshot(ctx context.Context, campaignID domain.CampaignID) (ledger.CampaignSnapshot, error)
	ledger.CampaignWriter
}

type Service struct {
	ledger Ledger
	logger *slog.Logger
	now    func() time.Time
}

func NewService(l Ledger, logger *slog.Logger) *Service {
	return &Service{
		ledger: l,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock fixes the service clock; tests use it to step through phases.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Definition is everything a researcher supplies to create a campaign.
type Definition struct {
	OwnerPublicKey  [32]byte
	EnrollmentStart time.Time
	EnrollmentEnd   time.Time
	CollectionEnd   time.Time
	MaxParticipants int
	Rules           eligibility.RuleSet
}

func (d Definition) validate() error {
	if d.OwnerPublicKey == ([32]byte{}) {
		return dErrors.New(dErrors.CodeInvalidInput, "owner public key is required")
	}
	if d.EnrollmentStart.IsZero() || d.EnrollmentEnd.IsZero() || d.CollectionEnd.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "enrollment and collection timestamps are required")
	}
	if !d.EnrollmentStart.Before(d.EnrollmentEnd) {
		return dErrors.New(dErrors.CodeInvalidInput, "enrollment must start before it ends")
	}
	if !d.EnrollmentEnd.Before(d.CollectionEnd) {
		return dErrors.New(dErrors.CodeInvalidInput, "collection must end after enrollment ends")
	}
	if d.MaxParticipants < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max participants cannot be negative")
	}
	return d.Rules.Validate()
}

// Create registers a draft campaign owned by the caller. Drafts are invisible
// to participants until published.
func (s *Service) Create(ctx context.Context, creator domain.ParticipantID, def Definition) (domain.CampaignID, error) {
	if err := def.validate(); err != nil {
		return domain.CampaignID{}, err
	}

	snapshot := ledger.CampaignSnapshot{
		ID:              domain.NewCampaignID(),
		CreatedBy:       creator,
		OwnerPublicKey:  def.OwnerPublicKey,
		Status:          ledger.StatusDraft,
		EnrollmentStart: def.EnrollmentStart,
		EnrollmentEnd:   def.EnrollmentEnd,
		CollectionEnd:   def.CollectionEnd,
		MaxParticipants: def.MaxParticipants,
		Rules:           def.Rules,
	}
	if err := s.ledger.CreateCampaign(ctx, snapshot); err != nil {
		return domain.CampaignID{}, dErrors.Wrap(err, dErrors.CodeInternal, "create campaign")
	}

	s.logger.InfoContext(ctx, "campaign created",
		"campaign_id", snapshot.ID.String(),
		"created_by", creator.String(),
	)
	return snapshot.ID, nil
}

// Publish opens a draft for enrollment per its timestamps. Only the creator
// may publish.
func (s *Service) Publish(ctx context.Context, caller domain.ParticipantID, campaignID domain.CampaignID) error {
	snapshot, err := s.ledger.CampaignSnapshot(ctx, campaignID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "campaign not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger read failed")
	}
	if snapshot.CreatedBy != caller {
		return dErrors.New(dErrors.CodeForbidden, "only the campaign creator can publish it")
	}

	err = s.ledger.PublishCampaign(ctx, campaignID)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "campaign published", "campaign_id", campaignID.String())
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "campaign not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, "campaign is not a draft")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "publish campaign")
	}
}

// View is the public read of one campaign: enough for a participant client to
// decide whether and when to enroll, nothing more.
type View struct {
	ID              domain.CampaignID
	Phase           gate.Phase
	EnrollmentStart time.Time
	EnrollmentEnd   time.Time
	CollectionEnd   time.Time
	MaxParticipants int
	EnrolledCount   int
	Rules           eligibility.RuleSet
}

// Get returns the public view. Draft campaigns are only visible to their
// creator; everyone else sees not-found rather than learning the draft
// exists.
func (s *Service) Get(ctx context.Context, caller domain.ParticipantID, campaignID domain.CampaignID) (View, error) {
	snapshot, err := s.ledger.CampaignSnapshot(ctx, campaignID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return View{}, dErrors.Wrap(err, dErrors.CodeNotFound, "campaign not found")
		}
		return View{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger read failed")
	}
	if snapshot.Status == ledger.StatusDraft && snapshot.CreatedBy != caller {
		return View{}, dErrors.New(dErrors.CodeNotFound, "campaign not found")
	}

	return View{
		ID:              snapshot.ID,
		Phase:           gate.CurrentPhase(snapshot, s.now()),
		EnrollmentStart: snapshot.EnrollmentStart,
		EnrollmentEnd:   snapshot.EnrollmentEnd,
		CollectionEnd:   snapshot.CollectionEnd,
		MaxParticipants: snapshot.MaxParticipants,
		EnrolledCount:   snapshot.EnrolledCount,
		Rules:           snapshot.Rules,
	}, nil
}
