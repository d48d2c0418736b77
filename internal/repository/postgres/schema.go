package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the funnel tables. Idempotent; richer migration tooling is
// deliberately out of scope.
const Schema = `
CREATE TABLE IF NOT EXISTS funnels (
	id                     BIGSERIAL PRIMARY KEY,
	slug                   TEXT NOT NULL UNIQUE,
	name                   TEXT NOT NULL,
	status                 TEXT NOT NULL DEFAULT 'draft',
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),

	crm_form_html          TEXT,
	crm_extraction         JSONB,

	widget_html            TEXT,
	widget_url             TEXT,
	webinar_id             BIGINT,
	widget_id              BIGINT,
	widget_version_id      BIGINT,
	widget_type            TEXT,
	schedule_json          JSONB,

	webinar_title          TEXT,
	webinar_description    TEXT,
	target_audience        TEXT,
	main_benefits          TEXT,
	social_proof           TEXT,
	host_info              TEXT,
	urgency                TEXT,
	additional_notes       TEXT,

	registration_page_html TEXT,
	confirmation_page_html TEXT,

	total_views            BIGINT NOT NULL DEFAULT 0,
	total_submissions      BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS funnel_submissions (
	id             TEXT PRIMARY KEY,
	funnel_id      BIGINT NOT NULL REFERENCES funnels(id) ON DELETE CASCADE,
	email          TEXT NOT NULL,
	first_name     TEXT,
	last_name      TEXT,
	phone          TEXT,
	sms_consent    BOOLEAN NOT NULL DEFAULT FALSE,

	session_date   TIMESTAMPTZ,
	session_day    TEXT,
	session_id     BIGINT,
	cid            TEXT,

	crm_success    BOOLEAN NOT NULL DEFAULT FALSE,
	crm_error      TEXT,
	widget_success BOOLEAN NOT NULL DEFAULT FALSE,
	widget_error   TEXT,

	ip_address     TEXT,
	user_agent     TEXT,
	submitted_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_submissions_funnel_email ON funnel_submissions (funnel_id, email);
`

// EnsureSchema applies the schema to the connected database.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
