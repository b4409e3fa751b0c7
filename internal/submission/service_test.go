package submission

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stellarnodeN/recrusearch/internal/eligibility"
	"github.com/stellarnodeN/recrusearch/internal/envelope"
	"github.com/stellarnodeN/recrusearch/internal/ledger"
	"github.com/stellarnodeN/recrusearch/internal/storage"
	"github.com/stellarnodeN/recrusearch/internal/storage/mocks"
	"github.com/stellarnodeN/recrusearch/pkg/domain"
	dErrors "github.com/stellarnodeN/recrusearch/pkg/domain-errors"
	"github.com/stellarnodeN/recrusearch/pkg/platform/sentinel"
)

var (
	enrollmentStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	enrollmentEnd   = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	collectionEnd   = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	duringEnrollment = enrollmentStart.Add(time.Hour)
	duringCollection = enrollmentEnd.Add(time.Hour)
)

type fixture struct {
	service    *Service
	store      *ledger.InMemoryStore
	campaign   ledger.CampaignSnapshot
	ownerSK    *[32]byte
	clock      *fakeClock
	campaignID domain.CampaignID
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) read() time.Time { return c.now }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ownerPK, ownerSK, err := envelope.GenerateRecipientKeyPair()
	require.NoError(t, err)

	campaign := ledger.CampaignSnapshot{
		ID:              domain.NewCampaignID(),
		OwnerPublicKey:  *ownerPK,
		Status:          ledger.StatusPublished,
		EnrollmentStart: enrollmentStart,
		EnrollmentEnd:   enrollmentEnd,
		CollectionEnd:   collectionEnd,
		MaxParticipants: 50,
	}
	store := ledger.NewInMemoryStore()
	store.SeedCampaign(campaign)

	clock := &fakeClock{now: duringEnrollment}
	pipeline := envelope.NewPipeline(storage.NewMemoryClient())
	logger := slog.New(slog.DiscardHandler)
	service := NewService(store, pipeline, logger, nil).WithClock(clock.read)

	return &fixture{
		service:    service,
		store:      store,
		campaign:   campaign,
		ownerSK:    ownerSK,
		clock:      clock,
		campaignID: campaign.ID,
	}
}

func (f *fixture) enroll(t *testing.T, participant domain.ParticipantID) {
	t.Helper()
	_, err := f.service.Enroll(context.Background(), f.campaignID, participant, eligibility.AttributeRecord{Age: 30})
	require.NoError(t, err)
}

func TestService_EnrollThenSubmitThenRetrieve(t *testing.T) {
	f := newFixture(t)
	participant := domain.NewParticipantID()
	ctx := context.Background()
	payload := []byte(`{"q1":"yes","q2":"sometimes"}`)

	result, err := f.service.Enroll(ctx, f.campaignID, participant, eligibility.AttributeRecord{Age: 30})
	require.NoError(t, err)
	assert.Equal(t, duringEnrollment, result.GrantedAt)
	assert.True(t, result.Decision.Admit)

	f.clock.now = duringCollection
	submitted, err := f.service.Submit(ctx, f.campaignID, participant, payload)
	require.NoError(t, err)
	require.NoError(t, submitted.ContentID.Validate())
	assert.Equal(t, duringCollection, submitted.SubmittedAt)

	record, ok := f.store.Submission(f.campaignID, participant)
	require.True(t, ok)
	assert.Equal(t, submitted.ContentID.String(), record.ContentID)
	assert.Equal(t, submitted.IntegrityHash, record.IntegrityHash)

	recovered, err := f.service.Retrieve(ctx, submitted.ContentID, f.ownerSK)
	require.NoError(t, err)
	assert.Equal(t, payload, recovered)
}

func TestService_Enroll_Rejections(t *testing.T) {
	t.Run("unknown campaign", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Enroll(context.Background(), domain.NewCampaignID(), domain.NewParticipantID(), eligibility.AttributeRecord{Age: 30})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("outside enrollment window", func(t *testing.T) {
		f := newFixture(t)
		f.clock.now = duringCollection
		_, err := f.service.Enroll(context.Background(), f.campaignID, domain.NewParticipantID(), eligibility.AttributeRecord{Age: 30})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("double enrollment", func(t *testing.T) {
		f := newFixture(t)
		participant := domain.NewParticipantID()
		f.enroll(t, participant)
		_, err := f.service.Enroll(context.Background(), f.campaignID, participant, eligibility.AttributeRecord{Age: 30})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("campaign full", func(t *testing.T) {
		f := newFixture(t)
		full := f.campaign
		full.MaxParticipants = 1
		full.EnrolledCount = 1
		f.store.SeedCampaign(full)
		_, err := f.service.Enroll(context.Background(), f.campaignID, domain.NewParticipantID(), eligibility.AttributeRecord{Age: 30})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("not eligible", func(t *testing.T) {
		f := newFixture(t)
		minAge := 40
		restricted := f.campaign
		restricted.Rules = eligibility.RuleSet{MinAge: &minAge}
		f.store.SeedCampaign(restricted)
		_, err := f.service.Enroll(context.Background(), f.campaignID, domain.NewParticipantID(), eligibility.AttributeRecord{Age: 30})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestService_Submit_Rejections(t *testing.T) {
	t.Run("empty payload", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Submit(context.Background(), f.campaignID, domain.NewParticipantID(), nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("during enrollment even with consent", func(t *testing.T) {
		f := newFixture(t)
		participant := domain.NewParticipantID()
		f.enroll(t, participant)
		_, err := f.service.Submit(context.Background(), f.campaignID, participant, []byte("early"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("without consent", func(t *testing.T) {
		f := newFixture(t)
		f.clock.now = duringCollection
		_, err := f.service.Submit(context.Background(), f.campaignID, domain.NewParticipantID(), []byte("data"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("after revocation", func(t *testing.T) {
		f := newFixture(t)
		participant := domain.NewParticipantID()
		f.enroll(t, participant)
		require.NoError(t, f.service.RevokeConsent(context.Background(), f.campaignID, participant))

		f.clock.now = duringCollection
		_, err := f.service.Submit(context.Background(), f.campaignID, participant, []byte("data"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("second submission", func(t *testing.T) {
		f := newFixture(t)
		participant := domain.NewParticipantID()
		f.enroll(t, participant)
		f.clock.now = duringCollection
		ctx := context.Background()

		_, err := f.service.Submit(ctx, f.campaignID, participant, []byte("first"))
		require.NoError(t, err)
		_, err = f.service.Submit(ctx, f.campaignID, participant, []byte("second"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("after collection ends", func(t *testing.T) {
		f := newFixture(t)
		participant := domain.NewParticipantID()
		f.enroll(t, participant)
		f.clock.now = collectionEnd.Add(time.Hour)
		_, err := f.service.Submit(context.Background(), f.campaignID, participant, []byte("late"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestService_SubmitStorageOutage(t *testing.T) {
	f := newFixture(t)
	participant := domain.NewParticipantID()
	ctx := context.Background()
	f.enroll(t, participant)
	f.clock.now = duringCollection

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	store := mocks.NewMockClient(ctrl)
	store.EXPECT().Put(gomock.Any(), gomock.Any()).
		Return(storage.ContentID(""), fmt.Errorf("connection refused: %w", sentinel.ErrUnavailable))

	f.service.pipeline = envelope.NewPipeline(store)

	_, err := f.service.Submit(ctx, f.campaignID, participant, []byte(`{"q1":"yes"}`))
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(err))

	// The outage must not consume the participant's single submission slot.
	_, ok := f.store.Submission(f.campaignID, participant)
	assert.False(t, ok)
}

func TestService_RevokeConsent(t *testing.T) {
	f := newFixture(t)
	participant := domain.NewParticipantID()
	ctx := context.Background()

	err := f.service.RevokeConsent(ctx, f.campaignID, participant)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	f.enroll(t, participant)
	require.NoError(t, f.service.RevokeConsent(ctx, f.campaignID, participant))

	err = f.service.RevokeConsent(ctx, f.campaignID, participant)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

// Re-enrollment after revocation is a fresh consent, and submission proceeds
// under it.
func TestService_ReEnrollAfterRevocation(t *testing.T) {
	f := newFixture(t)
	participant := domain.NewParticipantID()
	ctx := context.Background()

	f.enroll(t, participant)
	require.NoError(t, f.service.RevokeConsent(ctx, f.campaignID, participant))
	f.enroll(t, participant)

	f.clock.now = duringCollection
	_, err := f.service.Submit(ctx, f.campaignID, participant, []byte("data"))
	require.NoError(t, err)
}

// The wrong private key must not recover a payload.
func TestService_RetrieveWrongKey(t *testing.T) {
	f := newFixture(t)
	participant := domain.NewParticipantID()
	ctx := context.Background()

	f.enroll(t, participant)
	f.clock.now = duringCollection
	submitted, err := f.service.Submit(ctx, f.campaignID, participant, []byte("secret"))
	require.NoError(t, err)

	_, wrongSK, err := envelope.GenerateRecipientKeyPair()
	require.NoError(t, err)
	_, err = f.service.Retrieve(ctx, submitted.ContentID, wrongSK)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}
