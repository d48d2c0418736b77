package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/crmform"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/generator"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/repository/postgres"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/widget"
)

// funnelContext assembles the generation prompt context from a funnel record,
// decoding the stored extraction JSON.
func funnelContext(f *domain.Funnel) generator.FunnelContext {
	fc := generator.FunnelContext{
		Name:               f.Name,
		WebinarTitle:       f.WebinarTitle,
		WebinarDescription: f.WebinarDescription,
		TargetAudience:     f.TargetAudience,
		MainBenefits:       f.MainBenefits,
		SocialProof:        f.SocialProof,
		HostInfo:           f.HostInfo,
		Urgency:            f.Urgency,
	}

	if f.CRMExtraction != "" {
		var ex crmform.Extraction
		if err := json.Unmarshal([]byte(f.CRMExtraction), &ex); err == nil {
			fc.CRM = &ex
		} else {
			log.Printf("[api] funnel %d: stored CRM extraction unreadable: %v", f.ID, err)
		}
	}
	if f.WebinarID != 0 {
		fc.Widget = &widget.Extraction{
			WebinarID:  f.WebinarID,
			WidgetID:   f.WidgetID,
			VersionID:  f.WidgetVersionID,
			WidgetType: f.WidgetType,
			EmbedCode:  f.WidgetHTML,
		}
	}
	return fc
}

// HandleGeneratePages generates both funnel pages and persists them
func (h *Handlers) HandleGeneratePages(w http.ResponseWriter, r *http.Request) {
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
	if f.CRMExtraction == "" {
		respondError(w, http.StatusConflict, "funnel has no CRM form extraction; paste the form embed first")
		return
	}
	if f.WebinarID == 0 || f.WidgetID == 0 {
		respondError(w, http.StatusConflict, "funnel has no widget extraction; paste the widget embed first")
		return
	}

	fc := funnelContext(f)
	if fc.CRM == nil {
		respondError(w, http.StatusConflict, "stored CRM extraction is unreadable; re-paste the form embed")
		return
	}

	registration, err := h.generator.GenerateRegistrationPage(r.Context(), fc)
	if err != nil {
		log.Printf("[api] generate registration page for funnel %d: %v", id, err)
		respondError(w, http.StatusBadGateway, "page generation failed")
		return
	}
	confirmation, err := h.generator.GenerateConfirmationPage(r.Context(), fc)
	if err != nil {
		log.Printf("[api] generate confirmation page for funnel %d: %v", id, err)
		respondError(w, http.StatusBadGateway, "page generation failed")
		return
	}

	if err := h.funnels.SetGeneratedPages(r.Context(), id, registration, confirmation); err != nil {
		log.Printf("[api] persist generated pages for funnel %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to save generated pages")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"registration_page_html": registration,
		"confirmation_page_html": confirmation,
	})
}

// HandleEditPage applies a natural-language edit to one generated page
func (h *Handlers) HandleEditPage(w http.ResponseWriter, r *http.Request) {
	id, err := funnelID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid funnel id")
		return
	}
	page := chi.URLParam(r, "page")
	if page != "registration" && page != "confirmation" {
		respondError(w, http.StatusBadRequest, "page must be registration or confirmation")
		return
	}

	var input struct {
		Instruction string `json:"instruction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Instruction == "" {
		respondError(w, http.StatusBadRequest, "instruction is required")
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

	current := f.RegistrationPageHTML
	if page == "confirmation" {
		current = f.ConfirmationPageHTML
	}
	if current == "" {
		respondError(w, http.StatusConflict, "page has not been generated yet")
		return
	}

	edited, err := h.generator.EditPage(r.Context(), current, input.Instruction)
	if err != nil {
		log.Printf("[api] edit %s page for funnel %d: %v", page, id, err)
		respondError(w, http.StatusBadGateway, "page edit failed")
		return
	}

	registration, confirmation := f.RegistrationPageHTML, f.ConfirmationPageHTML
	if page == "registration" {
		registration = edited
	} else {
		confirmation = edited
	}
	if err := h.funnels.SetGeneratedPages(r.Context(), id, registration, confirmation); err != nil {
		log.Printf("[api] persist edited page for funnel %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to save page")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"page": page, "html": edited})
}
