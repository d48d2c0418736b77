// Package postgres implements the funnel builder's storage against
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
)

// ErrNotFound is returned when a funnel or submission does not exist.
var ErrNotFound = errors.New("not found")

// FunnelRepo provides CRUD over funnel records.
type FunnelRepo struct{ db *sql.DB }

// NewFunnelRepo creates a Postgres-backed funnel repository.
func NewFunnelRepo(db *sql.DB) *FunnelRepo { return &FunnelRepo{db: db} }

const funnelColumns = `
	id, slug, name, status, created_at, updated_at,
	COALESCE(crm_form_html,''), COALESCE(crm_extraction::text,''),
	COALESCE(widget_html,''), COALESCE(widget_url,''),
	COALESCE(webinar_id,0), COALESCE(widget_id,0), COALESCE(widget_version_id,0),
	COALESCE(widget_type,''), COALESCE(schedule_json::text,''),
	COALESCE(webinar_title,''), COALESCE(webinar_description,''),
	COALESCE(target_audience,''), COALESCE(main_benefits,''),
	COALESCE(social_proof,''), COALESCE(host_info,''),
	COALESCE(urgency,''), COALESCE(additional_notes,''),
	COALESCE(registration_page_html,''), COALESCE(confirmation_page_html,''),
	total_views, total_submissions`

func scanFunnel(row interface{ Scan(...any) error }) (*domain.Funnel, error) {
	f := &domain.Funnel{}
	err := row.Scan(
		&f.ID, &f.Slug, &f.Name, &f.Status, &f.CreatedAt, &f.UpdatedAt,
		&f.CRMFormHTML, &f.CRMExtraction,
		&f.WidgetHTML, &f.WidgetURL,
		&f.WebinarID, &f.WidgetID, &f.WidgetVersionID,
		&f.WidgetType, &f.ScheduleJSON,
		&f.WebinarTitle, &f.WebinarDescription,
		&f.TargetAudience, &f.MainBenefits,
		&f.SocialProof, &f.HostInfo,
		&f.Urgency, &f.AdditionalNotes,
		&f.RegistrationPageHTML, &f.ConfirmationPageHTML,
		&f.TotalViews, &f.TotalSubmissions,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan funnel: %w", err)
	}
	return f, nil
}

// Create inserts a new funnel and returns it with generated fields populated.
func (r *FunnelRepo) Create(ctx context.Context, f *domain.Funnel) (*domain.Funnel, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO funnels (
			slug, name, status,
			crm_form_html, crm_extraction,
			widget_html, widget_url, webinar_id, widget_id, widget_version_id,
			widget_type, schedule_json,
			webinar_title, webinar_description, target_audience, main_benefits,
			social_proof, host_info, urgency, additional_notes
		) VALUES (
			$1, $2, $3, $4, NULLIF($5,'')::jsonb, $6, $7, $8, $9, $10,
			$11, NULLIF($12,'')::jsonb, $13, $14, $15, $16, $17, $18, $19, $20
		)
		RETURNING `+funnelColumns,
		f.Slug, f.Name, f.Status,
		f.CRMFormHTML, f.CRMExtraction,
		f.WidgetHTML, f.WidgetURL, f.WebinarID, f.WidgetID, f.WidgetVersionID,
		f.WidgetType, f.ScheduleJSON,
		f.WebinarTitle, f.WebinarDescription, f.TargetAudience, f.MainBenefits,
		f.SocialProof, f.HostInfo, f.Urgency, f.AdditionalNotes,
	)
	return scanFunnel(row)
}

// GetByID fetches one funnel by primary key.
func (r *FunnelRepo) GetByID(ctx context.Context, id int64) (*domain.Funnel, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+funnelColumns+` FROM funnels WHERE id = $1`, id)
	return scanFunnel(row)
}

// GetBySlug fetches one funnel by its public slug.
func (r *FunnelRepo) GetBySlug(ctx context.Context, slug string) (*domain.Funnel, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+funnelColumns+` FROM funnels WHERE slug = $1`, slug)
	return scanFunnel(row)
}

// List returns all funnels, most recently updated first.
func (r *FunnelRepo) List(ctx context.Context) ([]domain.Funnel, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+funnelColumns+` FROM funnels ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list funnels: %w", err)
	}
	defer rows.Close()

	var funnels []domain.Funnel
	for rows.Next() {
		f, err := scanFunnel(rows)
		if err != nil {
			return nil, err
		}
		funnels = append(funnels, *f)
	}
	return funnels, rows.Err()
}

// Update rewrites the mutable funnel fields and bumps updated_at.
func (r *FunnelRepo) Update(ctx context.Context, f *domain.Funnel) (*domain.Funnel, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE funnels SET
			slug = $2, name = $3, status = $4,
			crm_form_html = $5, crm_extraction = NULLIF($6,'')::jsonb,
			widget_html = $7, widget_url = $8, webinar_id = $9, widget_id = $10,
			widget_version_id = $11, widget_type = $12, schedule_json = NULLIF($13,'')::jsonb,
			webinar_title = $14, webinar_description = $15, target_audience = $16,
			main_benefits = $17, social_proof = $18, host_info = $19,
			urgency = $20, additional_notes = $21,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+funnelColumns,
		f.ID, f.Slug, f.Name, f.Status,
		f.CRMFormHTML, f.CRMExtraction,
		f.WidgetHTML, f.WidgetURL, f.WebinarID, f.WidgetID,
		f.WidgetVersionID, f.WidgetType, f.ScheduleJSON,
		f.WebinarTitle, f.WebinarDescription, f.TargetAudience,
		f.MainBenefits, f.SocialProof, f.HostInfo,
		f.Urgency, f.AdditionalNotes,
	)
	return scanFunnel(row)
}

// SetGeneratedPages stores freshly generated page HTML.
func (r *FunnelRepo) SetGeneratedPages(ctx context.Context, id int64, registrationHTML, confirmationHTML string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE funnels SET
			registration_page_html = $2,
			confirmation_page_html = $3,
			updated_at = NOW()
		WHERE id = $1`,
		id, registrationHTML, confirmationHTML,
	)
	if err != nil {
		return fmt.Errorf("set generated pages: %w", err)
	}
	return requireRow(res)
}

// Delete removes a funnel and, via cascade, its submissions.
func (r *FunnelRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM funnels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete funnel: %w", err)
	}
	return requireRow(res)
}

// AddCounters folds view/submission deltas into the rollup columns. Used by
// the analytics flusher.
func (r *FunnelRepo) AddCounters(ctx context.Context, id, views, submissions int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE funnels SET
			total_views = total_views + $2,
			total_submissions = total_submissions + $3
		WHERE id = $1`,
		id, views, submissions,
	)
	if err != nil {
		return fmt.Errorf("add counters: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
