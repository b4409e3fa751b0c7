// Package domain holds typed identifiers shared across the submission core.
// Distinct Go types keep a participant identity from ever being passed where
// a campaign identifier is expected; the compiler enforces the distinction.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/stellarnodeN/recrusearch/pkg/domain-errors"
)

// CampaignID identifies one bounded collection effort ("study").
type CampaignID uuid.UUID

// ParticipantID is the pseudonymous cryptographic identity of one
// participant. It carries no linkable personal data.
type ParticipantID uuid.UUID

// ParseCampaignID constructs a CampaignID from external input.
//
// Invariant: IDs must be valid, non-nil UUIDs. Construct via Parse* at trust
// boundaries; direct casting bypasses validation.
func ParseCampaignID(s string) (CampaignID, error) {
	id, err := parseUUID(s, "campaign id")
	return CampaignID(id), err
}

// ParseParticipantID constructs a ParticipantID from external input.
func ParseParticipantID(s string) (ParticipantID, error) {
	id, err := parseUUID(s, "participant id")
	return ParticipantID(id), err
}

// NewCampaignID returns a fresh random CampaignID.
func NewCampaignID() CampaignID { return CampaignID(uuid.New()) }

// NewParticipantID returns a fresh random ParticipantID.
func NewParticipantID() ParticipantID { return ParticipantID(uuid.New()) }

func (id CampaignID) String() string    { return uuid.UUID(id).String() }
func (id ParticipantID) String() string { return uuid.UUID(id).String() }

func (id CampaignID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ParticipantID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", what)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", what)
	}
	return id, nil
}
