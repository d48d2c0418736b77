package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/generator"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/register"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/widget"
)

// FunnelStore is the funnel persistence surface the handlers need.
type FunnelStore interface {
	Create(ctx context.Context, f *domain.Funnel) (*domain.Funnel, error)
	GetByID(ctx context.Context, id int64) (*domain.Funnel, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Funnel, error)
	List(ctx context.Context) ([]domain.Funnel, error)
	Update(ctx context.Context, f *domain.Funnel) (*domain.Funnel, error)
	SetGeneratedPages(ctx context.Context, id int64, registrationHTML, confirmationHTML string) error
	Delete(ctx context.Context, id int64) error
}

// SubmissionStore records registration attempts for audit.
type SubmissionStore interface {
	Create(ctx context.Context, s *domain.Submission) error
	HasDuplicate(ctx context.Context, funnelID int64, email string) (bool, error)
	ListByFunnel(ctx context.Context, funnelID int64, limit int) ([]domain.Submission, error)
}

// Registrar performs the dual origin submission.
type Registrar interface {
	Submit(ctx context.Context, req register.Request) register.Outcome
}

// PageGenerator produces and edits funnel page HTML.
type PageGenerator interface {
	GenerateRegistrationPage(ctx context.Context, fc generator.FunnelContext) (string, error)
	GenerateConfirmationPage(ctx context.Context, fc generator.FunnelContext) (string, error)
	EditPage(ctx context.Context, html, instruction string) (string, error)
}

// ViewCounter tracks page views and submissions.
type ViewCounter interface {
	RecordView(ctx context.Context, funnelID int64) error
	RecordSubmission(ctx context.Context, funnelID int64) error
	FirstRegistration(ctx context.Context, funnelID int64, email string) (bool, error)
}

// SessionLister fetches live webinar sessions from the widget service.
type SessionLister interface {
	Sessions(ctx context.Context, webinarID int64) ([]widget.Session, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	funnels     FunnelStore
	submissions SubmissionStore
	counter     ViewCounter
	registrar   Registrar
	generator   PageGenerator
	widgetAPI   SessionLister
}

// NewHandlers creates a new Handlers instance
func NewHandlers(funnels FunnelStore, submissions SubmissionStore, counter ViewCounter, registrar Registrar, gen PageGenerator) *Handlers {
	return &Handlers{
		funnels:     funnels,
		submissions: submissions,
		counter:     counter,
		registrar:   registrar,
		generator:   gen,
	}
}

// SetWidgetAPI wires the live session lister
func (h *Handlers) SetWidgetAPI(c SessionLister) {
	h.widgetAPI = c
}

// HealthCheck returns server liveness
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
