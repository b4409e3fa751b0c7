// Package eligibility evaluates a campaign's declared rule set against a
// participant's self-declared attributes. Evaluation is a pure function: no
// I/O, no ledger access, no clock. The same (RuleSet, AttributeRecord) pair
// always produces the same Decision, which keeps consent-time decisions
// reproducible for auditing.
package eligibility

import (
	"strings"

	dErrors "github.com/stellarnodeN/recrusearch/pkg/domain-errors"
)

// Age limits a campaign may declare. Campaigns recruit adults only.
const (
	MinAgeLimit = 18
	MaxAgeLimit = 100
)

// AttributeRecord is a participant's declared self-attributes at the moment
// of one enrollment attempt. It is constructed by the participant's agent,
// consumed once, and never persisted in plaintext by this core.
type AttributeRecord struct {
	Age          int      `json:"age"`
	Gender       string   `json:"gender,omitempty"`
	Region       string   `json:"region,omitempty"`
	Conditions   []string `json:"conditions,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// RuleSet is a campaign's eligibility policy. A nil pointer field means the
// rule is not declared and admits everything. RuleSets are immutable once
// the campaign leaves draft; the ledger enforces that, this package only
// consumes the result.
type RuleSet struct {
	MinAge *int    `json:"min_age,omitempty"`
	MaxAge *int    `json:"max_age,omitempty"`
	Gender *string `json:"gender,omitempty"`
	Region *string `json:"region,omitempty"`
	// ExcludedConditions disqualifies when ANY listed tag is declared.
	ExcludedConditions []string `json:"excluded_conditions,omitempty"`
	// RequiredCapabilities must ALL be present in the declared set.
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
}

// IsEmpty reports whether no rule is declared at all.
func (r RuleSet) IsEmpty() bool {
	return r.MinAge == nil && r.MaxAge == nil && r.Gender == nil && r.Region == nil &&
		len(r.ExcludedConditions) == 0 && len(r.RequiredCapabilities) == 0
}

// Validate checks declared bounds at campaign-definition boundaries. It is
// deliberately not called from Evaluate, which must stay total: a rule set
// already accepted by the ledger is evaluated as-is.
func (r RuleSet) Validate() error {
	if r.MinAge != nil && *r.MinAge < MinAgeLimit {
		return dErrors.Newf(dErrors.CodeInvalidInput, "min age must be at least %d", MinAgeLimit)
	}
	if r.MaxAge != nil && *r.MaxAge > MaxAgeLimit {
		return dErrors.Newf(dErrors.CodeInvalidInput, "max age must be at most %d", MaxAgeLimit)
	}
	if r.MinAge != nil && r.MaxAge != nil && *r.MinAge > *r.MaxAge {
		return dErrors.New(dErrors.CodeInvalidInput, "min age exceeds max age")
	}
	return nil
}

// Violation identifies the first rule an attribute record failed.
type Violation string

const (
	ViolationNone                      Violation = ""
	ViolationAgeBelowMin               Violation = "age_below_min"
	ViolationAgeAboveMax               Violation = "age_above_max"
	ViolationCategoryMismatch          Violation = "category_mismatch"
	ViolationExcludedConditionPresent  Violation = "excluded_condition_present"
	ViolationMissingRequiredCapability Violation = "missing_required_capability"
)

// Decision is the outcome of evaluating one attribute record. Exactly one
// violation is reported even when several rules fail; the fixed evaluation
// order below makes the choice deterministic.
type Decision struct {
	Admit     bool
	Violation Violation
	// Detail names the mismatched field or offending tag for the violation
	// kinds that have one; empty otherwise.
	Detail string
}

func admit() Decision { return Decision{Admit: true} }

func reject(v Violation, detail string) Decision {
	return Decision{Admit: false, Violation: v, Detail: detail}
}

// Evaluate applies rules to attrs. Evaluation order is fixed: numeric range
// checks, then categorical exact matches (gender before region, lexical
// field order), then the exclusion-set check, then required capabilities.
// The ordering is a determinism guarantee for audit reproducibility, not a
// domain requirement. An empty rule set admits every record.
func Evaluate(rules RuleSet, attrs AttributeRecord) Decision {
	if rules.MinAge != nil && attrs.Age < *rules.MinAge {
		return reject(ViolationAgeBelowMin, "age")
	}
	if rules.MaxAge != nil && attrs.Age > *rules.MaxAge {
		return reject(ViolationAgeAboveMax, "age")
	}
	if rules.Gender != nil && !strings.EqualFold(attrs.Gender, *rules.Gender) {
		return reject(ViolationCategoryMismatch, "gender")
	}
	if rules.Region != nil && !strings.EqualFold(attrs.Region, *rules.Region) {
		return reject(ViolationCategoryMismatch, "region")
	}
	if tag, ok := firstOverlap(rules.ExcludedConditions, attrs.Conditions); ok {
		return reject(ViolationExcludedConditionPresent, tag)
	}
	if tag, ok := firstMissing(rules.RequiredCapabilities, attrs.Capabilities); ok {
		return reject(ViolationMissingRequiredCapability, tag)
	}
	return admit()
}

// firstOverlap returns the first excluded tag (in declaration order) that the
// participant also declared. Tag comparison is case-insensitive, matching
// the categorical checks.
func firstOverlap(excluded, declared []string) (string, bool) {
	for _, ex := range excluded {
		for _, d := range declared {
			if strings.EqualFold(ex, d) {
				return ex, true
			}
		}
	}
	return "", false
}

// firstMissing returns the first required tag the participant did not declare.
func firstMissing(required, declared []string) (string, bool) {
	for _, req := range required {
		found := false
		for _, d := range declared {
			if strings.EqualFold(req, d) {
				found = true
				break
			}
		}
		if !found {
			return req, true
		}
	}
	return "", false
}
