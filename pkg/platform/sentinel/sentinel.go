package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Storage providers and ledger
// stores return these (optionally wrapped) so services can translate them
// into domain errors without inspecting error strings.
//
// These represent factual states about external resources:
// - ErrNotFound: content identifier or ledger entity does not exist
// - ErrConflict: uniqueness violated (consent or submission already recorded)
// - ErrUnavailable: storage network or ledger temporarily unreachable
// - ErrInvalidState: entity in wrong state for the requested operation
//
// "unavailable" and "not found" must stay distinct: only the former is
// retryable. For validation errors (bad input, malformed envelopes), use
// pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
