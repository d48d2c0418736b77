package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/crmform"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/repository/postgres"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/schedule"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/widget"
)

// funnelInput is the admin payload for creating or updating a funnel.
// Zero-valued fields are left untouched on update.
type funnelInput struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Status string `json:"status"`

	CRMFormHTML string `json:"crm_form_html"`
	WidgetHTML  string `json:"widget_html"`
	WidgetURL   string `json:"widget_url"`
	WidgetType  string `json:"widget_type"`

	Schedule schedule.Schedule `json:"schedule"`

	WebinarTitle       string `json:"webinar_title"`
	WebinarDescription string `json:"webinar_description"`
	TargetAudience     string `json:"target_audience"`
	MainBenefits       string `json:"main_benefits"`
	SocialProof        string `json:"social_proof"`
	HostInfo           string `json:"host_info"`
	Urgency            string `json:"urgency"`
	AdditionalNotes    string `json:"additional_notes"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

func funnelID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// HandleListFunnels returns all funnels
func (h *Handlers) HandleListFunnels(w http.ResponseWriter, r *http.Request) {
	funnels, err := h.funnels.List(r.Context())
	if err != nil {
		log.Printf("[api] list funnels: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list funnels")
		return
	}
	if funnels == nil {
		funnels = []domain.Funnel{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"funnels": funnels, "total": len(funnels)})
}

// HandleCreateFunnel creates a funnel from pasted embed code. Extraction runs
// inline; a funnel is created even when the embeds carry validation warnings,
// but hard parse failures reject the request.
func (h *Handlers) HandleCreateFunnel(w http.ResponseWriter, r *http.Request) {
	var input funnelInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if input.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if input.Slug == "" {
		input.Slug = slugify(input.Name)
	}

	f := &domain.Funnel{
		Name:   input.Name,
		Slug:   input.Slug,
		Status: domain.FunnelStatusDraft,
	}
	applyContent(f, &input)

	warnings, err := h.applyEmbeds(f, &input)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.applySchedule(f, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.funnels.Create(r.Context(), f)
	if err != nil {
		log.Printf("[api] create funnel %q: %v", input.Slug, err)
		respondError(w, http.StatusInternalServerError, "failed to create funnel")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"funnel": created, "warnings": warnings})
}

// HandleGetFunnel returns a single funnel by id
func (h *Handlers) HandleGetFunnel(w http.ResponseWriter, r *http.Request) {
	id, err := funnelID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid funnel id")
		return
	}

	f, err := h.funnels.GetByID(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		respondError(w, http.StatusNotFound, "funnel not found")
		return
	}
	if err != nil {
		log.Printf("[api] get funnel %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load funnel")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"funnel": f})
}

// HandleUpdateFunnel updates funnel fields. Pasting new embed HTML re-runs
// extraction; extraction results are otherwise immutable.
func (h *Handlers) HandleUpdateFunnel(w http.ResponseWriter, r *http.Request) {
	id, err := funnelID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid funnel id")
		return
	}

	var input funnelInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	f, err := h.funnels.GetByID(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		respondError(w, http.StatusNotFound, "funnel not found")
		return
	}
	if err != nil {
		log.Printf("[api] get funnel %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load funnel")
		return
	}

	if input.Name != "" {
		f.Name = input.Name
	}
	if input.Slug != "" {
		f.Slug = input.Slug
	}
	applyContent(f, &input)

	warnings, err := h.applyEmbeds(f, &input)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.applySchedule(f, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if input.Status != "" {
		if err := h.applyStatus(f, input.Status); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	updated, err := h.funnels.Update(r.Context(), f)
	if err != nil {
		log.Printf("[api] update funnel %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to update funnel")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"funnel": updated, "warnings": warnings})
}

// HandleDeleteFunnel deletes a funnel
func (h *Handlers) HandleDeleteFunnel(w http.ResponseWriter, r *http.Request) {
	id, err := funnelID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid funnel id")
		return
	}

	err = h.funnels.Delete(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		respondError(w, http.StatusNotFound, "funnel not found")
		return
	}
	if err != nil {
		log.Printf("[api] delete funnel %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to delete funnel")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleReextract re-runs extraction against the stored embed HTML. Useful
// after parser fixes without forcing the admin to re-paste.
func (h *Handlers) HandleReextract(w http.ResponseWriter, r *http.Request) {
	id, err := funnelID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid funnel id")
		return
	}

	f, err := h.funnels.GetByID(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		respondError(w, http.StatusNotFound, "funnel not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load funnel")
		return
	}

	input := funnelInput{
		CRMFormHTML: f.CRMFormHTML,
		WidgetHTML:  f.WidgetHTML,
		WidgetURL:   f.WidgetURL,
	}
	warnings, err := h.applyEmbeds(f, &input)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	updated, err := h.funnels.Update(r.Context(), f)
	if err != nil {
		log.Printf("[api] re-extract funnel %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to update funnel")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"funnel": updated, "warnings": warnings})
}

// HandleFunnelSessions proxies the widget service's live session list for a
// funnel's webinar. Used by the admin UI when configuring recurring schedules.
func (h *Handlers) HandleFunnelSessions(w http.ResponseWriter, r *http.Request) {
	id, err := funnelID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid funnel id")
		return
	}
	if h.widgetAPI == nil {
		respondError(w, http.StatusServiceUnavailable, "widget service not configured")
		return
	}

	f, err := h.funnels.GetByID(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		respondError(w, http.StatusNotFound, "funnel not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load funnel")
		return
	}
	if f.WebinarID == 0 {
		respondError(w, http.StatusConflict, "funnel has no widget extraction")
		return
	}

	sessions, err := h.widgetAPI.Sessions(r.Context(), f.WebinarID)
	if err != nil {
		log.Printf("[api] list sessions for funnel %d: %v", id, err)
		respondError(w, http.StatusBadGateway, "failed to fetch sessions")
		return
	}
	if sessions == nil {
		sessions = []widget.Session{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions, "total": len(sessions)})
}

// HandleFunnelSubmissions returns recent registration attempts for a funnel
func (h *Handlers) HandleFunnelSubmissions(w http.ResponseWriter, r *http.Request) {
	id, err := funnelID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid funnel id")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	subs, err := h.submissions.ListByFunnel(r.Context(), id, limit)
	if err != nil {
		log.Printf("[api] list submissions for funnel %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	if subs == nil {
		subs = []domain.Submission{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"submissions": subs, "total": len(subs)})
}

// HandleFunnelAnalytics returns rollup analytics for a funnel. Counts reflect
// the last flush; in-flight Redis deltas land within one flush interval.
func (h *Handlers) HandleFunnelAnalytics(w http.ResponseWriter, r *http.Request) {
	id, err := funnelID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid funnel id")
		return
	}

	f, err := h.funnels.GetByID(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		respondError(w, http.StatusNotFound, "funnel not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load funnel")
		return
	}

	var conversion float64
	if f.TotalViews > 0 {
		conversion = float64(f.TotalSubmissions) / float64(f.TotalViews)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"funnel_id":       f.ID,
		"views":           f.TotalViews,
		"submissions":     f.TotalSubmissions,
		"conversion_rate": conversion,
		"as_of":           time.Now().UTC().Format(time.RFC3339),
	})
}

// applyContent copies the webinar content fields that are set
func applyContent(f *domain.Funnel, input *funnelInput) {
	if input.WebinarTitle != "" {
		f.WebinarTitle = input.WebinarTitle
	}
	if input.WebinarDescription != "" {
		f.WebinarDescription = input.WebinarDescription
	}
	if input.TargetAudience != "" {
		f.TargetAudience = input.TargetAudience
	}
	if input.MainBenefits != "" {
		f.MainBenefits = input.MainBenefits
	}
	if input.SocialProof != "" {
		f.SocialProof = input.SocialProof
	}
	if input.HostInfo != "" {
		f.HostInfo = input.HostInfo
	}
	if input.Urgency != "" {
		f.Urgency = input.Urgency
	}
	if input.AdditionalNotes != "" {
		f.AdditionalNotes = input.AdditionalNotes
	}
}

// applyEmbeds runs extraction on any embed code carried in the input and
// stores both the raw markup and the extraction result on the funnel.
// Validation findings come back as warnings; parse failures are errors.
func (h *Handlers) applyEmbeds(f *domain.Funnel, input *funnelInput) ([]string, error) {
	warnings := []string{}

	if input.CRMFormHTML != "" {
		ex, err := crmform.Parse(input.CRMFormHTML)
		if err != nil {
			return nil, fmt.Errorf("CRM form extraction failed: %w", err)
		}
		encoded, err := json.Marshal(ex)
		if err != nil {
			return nil, fmt.Errorf("encode CRM extraction: %w", err)
		}
		f.CRMFormHTML = input.CRMFormHTML
		f.CRMExtraction = string(encoded)
		warnings = append(warnings, crmform.Validate(ex)...)
	}

	if input.WidgetHTML != "" {
		ex, err := widget.Parse(input.WidgetHTML, input.WidgetURL)
		if err != nil {
			return nil, fmt.Errorf("widget extraction failed: %w", err)
		}
		f.WidgetHTML = input.WidgetHTML
		f.WidgetURL = input.WidgetURL
		f.WebinarID = ex.WebinarID
		f.WidgetID = ex.WidgetID
		f.WidgetVersionID = ex.VersionID
		f.WidgetType = ex.WidgetType
	}

	return warnings, nil
}

// applySchedule handles the admin-assigned recurring widget type. recurring is
// never auto-detected; assigning it requires a schedule that passes a probe
// computation.
func (h *Handlers) applySchedule(f *domain.Funnel, input *funnelInput) error {
	if input.WidgetType == domain.WidgetTypeRecurring {
		if len(input.Schedule) == 0 && f.ScheduleJSON == "" {
			return fmt.Errorf("recurring widget type requires a schedule")
		}
		f.WidgetType = domain.WidgetTypeRecurring
	} else if input.WidgetType != "" && input.WidgetType != f.WidgetType {
		return fmt.Errorf("widget type %q cannot be assigned manually", input.WidgetType)
	}

	if len(input.Schedule) == 0 {
		return nil
	}

	if _, err := schedule.Next(input.Schedule, time.Now()); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	encoded, err := json.Marshal(input.Schedule)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	f.ScheduleJSON = string(encoded)
	return nil
}

// applyStatus enforces activation preconditions: a funnel cannot go live
// without both extractions and a generated registration page.
func (h *Handlers) applyStatus(f *domain.Funnel, status string) error {
	switch status {
	case domain.FunnelStatusDraft, domain.FunnelStatusPaused:
		f.Status = status
		return nil
	case domain.FunnelStatusActive:
		if f.CRMExtraction == "" {
			return fmt.Errorf("cannot activate: no CRM form extraction")
		}
		if f.WebinarID == 0 || f.WidgetID == 0 {
			return fmt.Errorf("cannot activate: no widget extraction")
		}
		if f.RegistrationPageHTML == "" {
			return fmt.Errorf("cannot activate: registration page not generated")
		}
		if f.WidgetType == domain.WidgetTypeRecurring && f.ScheduleJSON == "" {
			return fmt.Errorf("cannot activate: recurring funnel has no schedule")
		}
		f.Status = status
		return nil
	default:
		return fmt.Errorf("unknown status %q", status)
	}
}
