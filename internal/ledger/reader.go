package ledger

import (
	"context"

	"github.com/stellarnodeN/recrusearch/pkg/domain"
)

// Reader is the read half this core consumes from the external ledger.
// One synchronous snapshot read per call; no polling, no held connections.
type Reader interface {
	// CampaignSnapshot returns the current state of a campaign, or
	// sentinel.ErrNotFound when the campaign does not exist.
	CampaignSnapshot(ctx context.Context, campaignID domain.CampaignID) (CampaignSnapshot, error)

	// ConsentSnapshot returns the consent record for the identity on the
	// campaign, or nil when none was ever granted. Absence of consent is a
	// normal state, not an error.
	ConsentSnapshot(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID) (*ConsentRecord, error)
}

// Writer is the write half invoked by callers of this core after an
// authorization succeeds. The external ledger provides atomic accept-or-
// reject semantics for consent and submission uniqueness; this interface
// only consumes the result.
type Writer interface {
	RecordConsent(ctx context.Context, record ConsentRecord) error
	RevokeConsent(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID) error
	RecordSubmission(ctx context.Context, record SubmissionRecord) error
}

// CampaignWriter covers campaign provisioning. Campaigns start as drafts and
// become visible to participants on publish; PublishCampaign returns
// sentinel.ErrInvalidState for any campaign not in draft.
type CampaignWriter interface {
	CreateCampaign(ctx context.Context, snapshot CampaignSnapshot) error
	PublishCampaign(ctx context.Context, campaignID domain.CampaignID) error
}
