// Package gate composes campaign temporal state, per-identity consent
// status, and eligibility evaluation into a single authorization decision.
// Both entry points are pure functions of their snapshot inputs and an
// explicit clock reading; all I/O stays with the caller.
package gate

import (
	"time"

	"github.com/stellarnodeN/recrusearch/internal/eligibility"
	"github.com/stellarnodeN/recrusearch/internal/ledger"
)

// Phase is the effective lifecycle phase of a campaign at one instant,
// computed from the snapshot's timestamps. The stored status field is not
// trusted for time-driven transitions because the ledger may lag them;
// Draft is the exception, it blocks everything regardless of clock.
type Phase string

const (
	PhasePending    Phase = "pending"    // before enrollment_start
	PhaseEnrollment Phase = "enrollment" // enrollment open, submissions not yet
	PhaseCollection Phase = "collection" // submissions allowed, enrollment closed
	PhaseClosed     Phase = "closed"     // after collection_end
)

// CurrentPhase recomputes the phase defensively from timestamps and now.
func CurrentPhase(snapshot ledger.CampaignSnapshot, now time.Time) Phase {
	if snapshot.Status == ledger.StatusDraft {
		return PhasePending
	}
	switch {
	case now.Before(snapshot.EnrollmentStart):
		return PhasePending
	case now.Before(snapshot.EnrollmentEnd):
		return PhaseEnrollment
	case now.Before(snapshot.CollectionEnd):
		return PhaseCollection
	default:
		return PhaseClosed
	}
}

// AuthorizeEnrollment decides whether the identity behind consent may enroll
// now. Admission requires the enrollment window to be open, free capacity,
// no live consent for the identity, and an admitting eligibility decision.
// The eligibility decision is returned on success so the caller can record
// its summary with the consent.
func AuthorizeEnrollment(snapshot ledger.CampaignSnapshot, consent *ledger.ConsentRecord, attrs eligibility.AttributeRecord, now time.Time) (eligibility.Decision, error) {
	if phase := CurrentPhase(snapshot, now); phase != PhaseEnrollment {
		return eligibility.Decision{}, &PhaseNotOpenError{Phase: phase, Required: PhaseEnrollment}
	}
	if snapshot.MaxParticipants > 0 && snapshot.EnrolledCount >= snapshot.MaxParticipants {
		return eligibility.Decision{}, ErrCampaignFull
	}
	if consent != nil && !consent.Revoked {
		return eligibility.Decision{}, ErrAlreadyConsented
	}

	decision := eligibility.Evaluate(snapshot.Rules, attrs)
	if !decision.Admit {
		return eligibility.Decision{}, &NotEligibleError{Decision: decision}
	}
	return decision, nil
}

// AuthorizeSubmission decides whether the identity behind consent may submit
// now. Eligibility is not re-evaluated here: consent and submission are
// temporally decoupled, and the decision recorded at consent time stands.
func AuthorizeSubmission(snapshot ledger.CampaignSnapshot, consent *ledger.ConsentRecord, now time.Time) error {
	if phase := CurrentPhase(snapshot, now); phase != PhaseCollection {
		return &PhaseNotOpenError{Phase: phase, Required: PhaseCollection}
	}
	if consent == nil {
		return ErrConsentMissing
	}
	if consent.Revoked {
		return ErrConsentRevoked
	}
	return nil
}
