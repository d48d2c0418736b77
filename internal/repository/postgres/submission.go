package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
)

// SubmissionRepo stores registration audit records.
type SubmissionRepo struct{ db *sql.DB }

// NewSubmissionRepo creates a Postgres-backed submission repository.
func NewSubmissionRepo(db *sql.DB) *SubmissionRepo { return &SubmissionRepo{db: db} }

// Create persists one audit record. A missing ID is assigned here.
func (r *SubmissionRepo) Create(ctx context.Context, s *domain.Submission) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO funnel_submissions (
			id, funnel_id, email, first_name, last_name, phone, sms_consent,
			session_date, session_day, session_id, cid,
			crm_success, crm_error, widget_success, widget_error,
			ip_address, user_agent, submitted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW())`,
		s.ID, s.FunnelID, s.Email, s.FirstName, s.LastName, s.Phone, s.SMSConsent,
		nullTime(s.SessionDate), s.SessionDay, s.SessionID, s.CID,
		s.CRMSuccess, s.CRMError, s.WidgetSuccess, s.WidgetError,
		s.IPAddress, s.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// HasDuplicate reports whether this email already registered for the funnel.
func (r *SubmissionRepo) HasDuplicate(ctx context.Context, funnelID int64, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM funnel_submissions
		WHERE funnel_id = $1 AND LOWER(email) = LOWER($2)`,
		funnelID, email,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return count > 0, nil
}

// ListByFunnel returns a funnel's submissions, newest first.
func (r *SubmissionRepo) ListByFunnel(ctx context.Context, funnelID int64, limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, funnel_id, email,
		       COALESCE(first_name,''), COALESCE(last_name,''), COALESCE(phone,''),
		       sms_consent,
		       COALESCE(session_date, 'epoch'::timestamptz), COALESCE(session_day,''),
		       COALESCE(session_id,0), COALESCE(cid,''),
		       crm_success, COALESCE(crm_error,''),
		       widget_success, COALESCE(widget_error,''),
		       COALESCE(ip_address,''), COALESCE(user_agent,''), submitted_at
		FROM funnel_submissions
		WHERE funnel_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2`,
		funnelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		var s domain.Submission
		if err := rows.Scan(
			&s.ID, &s.FunnelID, &s.Email,
			&s.FirstName, &s.LastName, &s.Phone,
			&s.SMSConsent,
			&s.SessionDate, &s.SessionDay,
			&s.SessionID, &s.CID,
			&s.CRMSuccess, &s.CRMError,
			&s.WidgetSuccess, &s.WidgetError,
			&s.IPAddress, &s.UserAgent, &s.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
