package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stellarnodeN/recrusearch/internal/eligibility"
	"github.com/stellarnodeN/recrusearch/pkg/domain"
	"github.com/stellarnodeN/recrusearch/pkg/platform/sentinel"
)

// PostgresStore adapts a PostgreSQL-backed authorization ledger. Uniqueness
// of consents and submissions is enforced by primary-key constraints, which
// gives the atomic accept-or-reject semantics the gate's snapshot reads
// assume: whoever commits first wins, regardless of what any snapshot said.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
	CREATE TABLE IF NOT EXISTS campaigns (
		id UUID PRIMARY KEY,
		created_by UUID NOT NULL,
		owner_public_key BYTEA NOT NULL,
		status VARCHAR(16) NOT NULL,
		enrollment_start TIMESTAMP WITH TIME ZONE NOT NULL,
		enrollment_end TIMESTAMP WITH TIME ZONE NOT NULL,
		collection_end TIMESTAMP WITH TIME ZONE NOT NULL,
		max_participants INTEGER NOT NULL DEFAULT 0,
		enrolled_count INTEGER NOT NULL DEFAULT 0,
		rules JSONB
	);

	CREATE TABLE IF NOT EXISTS consents (
		campaign_id UUID NOT NULL,
		participant_id UUID NOT NULL,
		granted_at TIMESTAMP WITH TIME ZONE NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMP WITH TIME ZONE,
		PRIMARY KEY (campaign_id, participant_id)
	);

	CREATE TABLE IF NOT EXISTS submissions (
		campaign_id UUID NOT NULL,
		participant_id UUID NOT NULL,
		content_id VARCHAR(100) NOT NULL,
		integrity_hash BYTEA NOT NULL,
		submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
		PRIMARY KEY (campaign_id, participant_id)
	);

	CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
	CREATE INDEX IF NOT EXISTS idx_submissions_campaign ON submissions(campaign_id);
	`

// InitSchema creates the ledger tables when they do not exist. The composite
// primary keys on consents and submissions are what make RecordConsent and
// RecordSubmission atomic accept-or-reject operations.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CampaignSnapshot(ctx context.Context, campaignID domain.CampaignID) (CampaignSnapshot, error) {
	const query = `
		SELECT id, created_by, owner_public_key, status,
		       enrollment_start, enrollment_end, collection_end,
		       max_participants, enrolled_count, rules
		FROM campaigns
		WHERE id = $1`

	var (
		id        uuid.UUID
		createdBy uuid.UUID
		ownerKey  []byte
		status    string
		snapshot  CampaignSnapshot
		rulesRaw  []byte
	)
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(campaignID))
	err := row.Scan(&id, &createdBy, &ownerKey, &status,
		&snapshot.EnrollmentStart, &snapshot.EnrollmentEnd, &snapshot.CollectionEnd,
		&snapshot.MaxParticipants, &snapshot.EnrolledCount, &rulesRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CampaignSnapshot{}, fmt.Errorf("campaign %s: %w", campaignID, sentinel.ErrNotFound)
		}
		return CampaignSnapshot{}, fmt.Errorf("read campaign snapshot: %w", err)
	}

	snapshot.ID = domain.CampaignID(id)
	snapshot.CreatedBy = domain.ParticipantID(createdBy)
	snapshot.Status = CampaignStatus(status)
	if len(ownerKey) != len(snapshot.OwnerPublicKey) {
		return CampaignSnapshot{}, fmt.Errorf("campaign %s owner key has %d bytes: %w",
			campaignID, len(ownerKey), sentinel.ErrInvalidState)
	}
	copy(snapshot.OwnerPublicKey[:], ownerKey)

	var rules eligibility.RuleSet
	if len(rulesRaw) > 0 {
		if err := json.Unmarshal(rulesRaw, &rules); err != nil {
			return CampaignSnapshot{}, fmt.Errorf("decode campaign rules: %w", err)
		}
	}
	snapshot.Rules = rules
	return snapshot, nil
}

func (s *PostgresStore) ConsentSnapshot(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID) (*ConsentRecord, error) {
	const query = `
		SELECT campaign_id, participant_id, granted_at, revoked, revoked_at
		FROM consents
		WHERE campaign_id = $1 AND participant_id = $2`

	var (
		cid, pid uuid.UUID
		record   ConsentRecord
		revoked  sql.NullTime
	)
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(campaignID), uuid.UUID(participantID))
	err := row.Scan(&cid, &pid, &record.GrantedAt, &record.Revoked, &revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read consent snapshot: %w", err)
	}

	record.CampaignID = domain.CampaignID(cid)
	record.ParticipantID = domain.ParticipantID(pid)
	if revoked.Valid {
		t := revoked.Time
		record.RevokedAt = &t
	}
	return &record, nil
}

// RecordConsent inserts a consent row and consumes one enrollment slot in a
// single transaction. The slot is reserved with a conditional update, so two
// grants racing for the last slot serialize here and the loser gets
// sentinel.ErrConflict even when both passed the gate's snapshot checks.
// A live consent for the pair is also a conflict.
func (s *PostgresStore) RecordConsent(ctx context.Context, record ConsentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record consent: %w", err)
	}
	defer tx.Rollback()

	const reserve = `
		UPDATE campaigns SET enrolled_count = enrolled_count + 1
		WHERE id = $1 AND (max_participants = 0 OR enrolled_count < max_participants)`

	result, err := tx.ExecContext(ctx, reserve, uuid.UUID(record.CampaignID))
	if err != nil {
		return fmt.Errorf("reserve enrollment slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve enrollment slot: %w", err)
	}
	if affected == 0 {
		var exists bool
		row := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`,
			uuid.UUID(record.CampaignID))
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("reserve enrollment slot: %w", err)
		}
		if !exists {
			return fmt.Errorf("campaign %s: %w", record.CampaignID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("campaign %s is full: %w", record.CampaignID, sentinel.ErrConflict)
	}

	const insert = `
		INSERT INTO consents (campaign_id, participant_id, granted_at, revoked, revoked_at)
		VALUES ($1, $2, $3, FALSE, NULL)
		ON CONFLICT (campaign_id, participant_id) DO UPDATE
		SET granted_at = EXCLUDED.granted_at, revoked = FALSE, revoked_at = NULL
		WHERE consents.revoked`

	result, err = tx.ExecContext(ctx, insert,
		uuid.UUID(record.CampaignID), uuid.UUID(record.ParticipantID), record.GrantedAt)
	if err != nil {
		return fmt.Errorf("record consent: %w", err)
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record consent: %w", err)
	}
	if affected == 0 {
		// Rollback releases the reserved slot.
		return fmt.Errorf("consent already granted: %w", sentinel.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record consent: %w", err)
	}
	return nil
}

// RevokeConsent marks the pair's consent revoked.
func (s *PostgresStore) RevokeConsent(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID) error {
	const query = `
		UPDATE consents
		SET revoked = TRUE, revoked_at = NOW()
		WHERE campaign_id = $1 AND participant_id = $2 AND NOT revoked`

	result, err := s.db.ExecContext(ctx, query, uuid.UUID(campaignID), uuid.UUID(participantID))
	if err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	if affected == 0 {
		// Either no consent exists or it is already revoked; distinguish so
		// the service can answer precisely.
		existing, err := s.ConsentSnapshot(ctx, campaignID, participantID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("consent for participant %s: %w", participantID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("consent already revoked: %w", sentinel.ErrInvalidState)
	}
	return nil
}

// CreateCampaign inserts a draft campaign row.
func (s *PostgresStore) CreateCampaign(ctx context.Context, snapshot CampaignSnapshot) error {
	rules, err := json.Marshal(snapshot.Rules)
	if err != nil {
		return fmt.Errorf("encode campaign rules: %w", err)
	}

	const query = `
		INSERT INTO campaigns (id, created_by, owner_public_key, status,
		                       enrollment_start, enrollment_end, collection_end,
		                       max_participants, enrolled_count, rules)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9)
		ON CONFLICT (id) DO NOTHING`

	result, err := s.db.ExecContext(ctx, query,
		uuid.UUID(snapshot.ID), uuid.UUID(snapshot.CreatedBy), snapshot.OwnerPublicKey[:],
		string(snapshot.Status), snapshot.EnrollmentStart, snapshot.EnrollmentEnd,
		snapshot.CollectionEnd, snapshot.MaxParticipants, rules)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("campaign %s: %w", snapshot.ID, sentinel.ErrConflict)
	}
	return nil
}

// PublishCampaign transitions a draft to published. The status predicate in
// the UPDATE makes the transition atomic.
func (s *PostgresStore) PublishCampaign(ctx context.Context, campaignID domain.CampaignID) error {
	const query = `UPDATE campaigns SET status = 'published' WHERE id = $1 AND status = 'draft'`

	result, err := s.db.ExecContext(ctx, query, uuid.UUID(campaignID))
	if err != nil {
		return fmt.Errorf("publish campaign: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("publish campaign: %w", err)
	}
	if affected == 0 {
		if _, err := s.CampaignSnapshot(ctx, campaignID); err != nil {
			return err
		}
		return fmt.Errorf("campaign is not a draft: %w", sentinel.ErrInvalidState)
	}
	return nil
}

// RecordSubmission inserts a submission row; the primary key rejects a
// second submission for the same pair.
func (s *PostgresStore) RecordSubmission(ctx context.Context, record SubmissionRecord) error {
	const query = `
		INSERT INTO submissions (campaign_id, participant_id, content_id, integrity_hash, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (campaign_id, participant_id) DO NOTHING`

	result, err := s.db.ExecContext(ctx, query,
		uuid.UUID(record.CampaignID), uuid.UUID(record.ParticipantID),
		record.ContentID, record.IntegrityHash[:], record.SubmittedAt)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("submission already recorded: %w", sentinel.ErrConflict)
	}
	return nil
}
