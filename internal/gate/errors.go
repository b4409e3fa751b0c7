package gate

import (
	"errors"
	"fmt"

	"github.com/stellarnodeN/recrusearch/internal/eligibility"
)

// Every rejection is a specific typed error, never a bare boolean, so
// callers can branch on the reason and present an actionable message.
var (
	ErrCampaignFull     = errors.New("campaign has reached maximum participant capacity")
	ErrAlreadyConsented = errors.New("consent already granted for this identity")
	ErrConsentMissing   = errors.New("no consent record exists for this identity")
	ErrConsentRevoked   = errors.New("consent has been revoked")
)

// PhaseNotOpenError reports that the campaign is not in the phase the
// operation requires.
type PhaseNotOpenError struct {
	Phase    Phase
	Required Phase
}

func (e *PhaseNotOpenError) Error() string {
	return fmt.Sprintf("campaign phase is %s, operation requires %s", e.Phase, e.Required)
}

// NotEligibleError carries the rejecting eligibility decision.
type NotEligibleError struct {
	Decision eligibility.Decision
}

func (e *NotEligibleError) Error() string {
	if e.Decision.Detail != "" {
		return fmt.Sprintf("not eligible: %s (%s)", e.Decision.Violation, e.Decision.Detail)
	}
	return fmt.Sprintf("not eligible: %s", e.Decision.Violation)
}
