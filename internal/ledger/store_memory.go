package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stellarnodeN/recrusearch/pkg/domain"
	"github.com/stellarnodeN/recrusearch/pkg/platform/sentinel"
)

// InMemoryStore is a full in-process ledger implementing both halves of the
// interface. It backs unit tests, e2e runs, and local development; the
// postgres store is the deployment-shaped read adapter.
type InMemoryStore struct {
	mu          sync.RWMutex
	campaigns   map[domain.CampaignID]CampaignSnapshot
	consents    map[consentKey]ConsentRecord
	submissions map[consentKey]SubmissionRecord
}

type consentKey struct {
	campaign    domain.CampaignID
	participant domain.ParticipantID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		campaigns:   make(map[domain.CampaignID]CampaignSnapshot),
		consents:    make(map[consentKey]ConsentRecord),
		submissions: make(map[consentKey]SubmissionRecord),
	}
}

// SeedCampaign installs a campaign snapshot, replacing any prior state.
func (s *InMemoryStore) SeedCampaign(snapshot CampaignSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[snapshot.ID] = snapshot
}

func (s *InMemoryStore) CreateCampaign(_ context.Context, snapshot CampaignSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[snapshot.ID]; ok {
		return fmt.Errorf("campaign %s: %w", snapshot.ID, sentinel.ErrConflict)
	}
	s.campaigns[snapshot.ID] = snapshot
	return nil
}

func (s *InMemoryStore) PublishCampaign(_ context.Context, campaignID domain.CampaignID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("campaign %s: %w", campaignID, sentinel.ErrNotFound)
	}
	if campaign.Status != StatusDraft {
		return fmt.Errorf("campaign is %s, only drafts can be published: %w", campaign.Status, sentinel.ErrInvalidState)
	}
	campaign.Status = StatusPublished
	s.campaigns[campaignID] = campaign
	return nil
}

func (s *InMemoryStore) CampaignSnapshot(_ context.Context, campaignID domain.CampaignID) (CampaignSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.campaigns[campaignID]
	if !ok {
		return CampaignSnapshot{}, fmt.Errorf("campaign %s: %w", campaignID, sentinel.ErrNotFound)
	}
	return snapshot, nil
}

func (s *InMemoryStore) ConsentSnapshot(_ context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID) (*ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.consents[consentKey{campaignID, participantID}]
	if !ok {
		return nil, nil
	}
	copied := record
	return &copied, nil
}

// RecordConsent enforces one-consent-per-identity-per-campaign and campaign
// capacity: a second grant for the same pair is a conflict, and so is a grant
// against a full campaign. Both checks happen under the write lock, mirroring
// the external ledger's linearizable accept-or-reject semantics, so the gate's
// snapshot-based pre-checks can be stale without overfilling a campaign.
func (s *InMemoryStore) RecordConsent(_ context.Context, record ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[record.CampaignID]
	if !ok {
		return fmt.Errorf("campaign %s: %w", record.CampaignID, sentinel.ErrNotFound)
	}
	key := consentKey{record.CampaignID, record.ParticipantID}
	if existing, ok := s.consents[key]; ok && !existing.Revoked {
		return fmt.Errorf("consent already granted: %w", sentinel.ErrConflict)
	}
	if campaign.MaxParticipants > 0 && campaign.EnrolledCount >= campaign.MaxParticipants {
		return fmt.Errorf("campaign %s is full: %w", record.CampaignID, sentinel.ErrConflict)
	}
	s.consents[key] = record
	campaign.EnrolledCount++
	s.campaigns[record.CampaignID] = campaign
	return nil
}

func (s *InMemoryStore) RevokeConsent(_ context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := consentKey{campaignID, participantID}
	record, ok := s.consents[key]
	if !ok {
		return fmt.Errorf("consent for participant %s: %w", participantID, sentinel.ErrNotFound)
	}
	if record.Revoked {
		return fmt.Errorf("consent already revoked: %w", sentinel.ErrInvalidState)
	}
	now := time.Now().UTC()
	record.Revoked = true
	record.RevokedAt = &now
	s.consents[key] = record
	return nil
}

// RecordSubmission enforces one submission per identity per campaign.
func (s *InMemoryStore) RecordSubmission(_ context.Context, record SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := consentKey{record.CampaignID, record.ParticipantID}
	if _, ok := s.submissions[key]; ok {
		return fmt.Errorf("submission already recorded: %w", sentinel.ErrConflict)
	}
	s.submissions[key] = record
	return nil
}

// Submission returns the recorded submission for the pair, if any.
func (s *InMemoryStore) Submission(campaignID domain.CampaignID, participantID domain.ParticipantID) (SubmissionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.submissions[consentKey{campaignID, participantID}]
	return record, ok
}
