// Package ledger defines the read interface this core consumes from the
// external authorization ledger, plus snapshot models. The authoritative
// copy of every record here lives outside this process; stores in this
// package are adapters that surface immutable snapshots, never owners.
package ledger

import (
	"time"

	"github.com/stellarnodeN/recrusearch/internal/eligibility"
	"github.com/stellarnodeN/recrusearch/pkg/domain"
)

// CampaignStatus is the ledger's stored lifecycle state. The gate recomputes
// the effective phase from the timestamps and never trusts this field to be
// current; the ledger may lag a time-driven transition. Draft is the one
// exception: a draft campaign is closed to participants regardless of clock.
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusPublished CampaignStatus = "published"
	StatusActive    CampaignStatus = "active"
	StatusClosed    CampaignStatus = "closed"
)

// CampaignSnapshot is a point-in-time read of one campaign's state.
type CampaignSnapshot struct {
	ID              domain.CampaignID
	CreatedBy       domain.ParticipantID
	OwnerPublicKey  [32]byte // campaign owner's X25519 public key; submissions are sealed to it
	Status          CampaignStatus
	EnrollmentStart time.Time
	EnrollmentEnd   time.Time
	CollectionEnd   time.Time
	MaxParticipants int
	EnrolledCount   int
	Rules           eligibility.RuleSet
}

// ConsentRecord is a point-in-time read of one (campaign, identity) consent.
type ConsentRecord struct {
	CampaignID    domain.CampaignID
	ParticipantID domain.ParticipantID
	GrantedAt     time.Time
	Revoked       bool
	RevokedAt     *time.Time
}

// SubmissionRecord summarizes one accepted submission as the ledger stores
// it: the content identifier and a short integrity digest, never the
// envelope itself.
type SubmissionRecord struct {
	CampaignID    domain.CampaignID
	ParticipantID domain.ParticipantID
	ContentID     string
	IntegrityHash [32]byte
	SubmittedAt   time.Time
}
