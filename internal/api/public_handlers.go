package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/calendar"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/crmform"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/register"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/repository/postgres"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/schedule"
)

// activeFunnel loads a funnel by slug and checks it is serving traffic.
// Writes the error response itself and returns nil when not servable.
func (h *Handlers) activeFunnel(w http.ResponseWriter, r *http.Request) *domain.Funnel {
	slug := chi.URLParam(r, "slug")
	f, err := h.funnels.GetBySlug(r.Context(), slug)
	if errors.Is(err, postgres.ErrNotFound) {
		http.NotFound(w, r)
		return nil
	}
	if err != nil {
		log.Printf("[public] load funnel %q: %v", slug, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil
	}
	if f.Status != domain.FunnelStatusActive {
		http.NotFound(w, r)
		return nil
	}
	return f
}

// HandleRegistrationPage serves a funnel's generated registration page
func (h *Handlers) HandleRegistrationPage(w http.ResponseWriter, r *http.Request) {
	f := h.activeFunnel(w, r)
	if f == nil {
		return
	}
	if f.RegistrationPageHTML == "" {
		http.NotFound(w, r)
		return
	}

	if err := h.counter.RecordView(r.Context(), f.ID); err != nil {
		// A broken counter must never block page serving.
		log.Printf("[public] record view for funnel %d: %v", f.ID, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(f.RegistrationPageHTML))
}

// HandleConfirmationPage serves the confirmation page with the booked
// session substituted into its placeholders.
func (h *Handlers) HandleConfirmationPage(w http.ResponseWriter, r *http.Request) {
	f := h.activeFunnel(w, r)
	if f == nil {
		return
	}
	if f.ConfirmationPageHTML == "" {
		http.NotFound(w, r)
		return
	}

	html := f.ConfirmationPageHTML
	html = strings.ReplaceAll(html, "{{session_date}}", r.URL.Query().Get("session_date"))
	html = strings.ReplaceAll(html, "{{session_day}}", r.URL.Query().Get("session_day"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// registerInput is the visitor registration payload, accepted as either a
// form post (from the generated page) or JSON.
type registerInput struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	SMSConsent bool   `json:"sms_consent"`

	// Two separately-gated phone-sharing decisions.
	SendPhoneToCRM       bool `json:"send_phone_to_crm"`
	SharePhoneWithWidget bool `json:"share_phone_with_widget"`

	// SessionID is required for dropdown and single-session widgets;
	// recurring funnels compute the session from their schedule.
	SessionID int64 `json:"session_id"`
}

func checked(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func decodeRegisterInput(r *http.Request) (registerInput, error) {
	var input registerInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&input)
		return input, err
	}

	if err := r.ParseForm(); err != nil {
		return input, err
	}
	input.FirstName = r.PostFormValue("first_name")
	input.LastName = r.PostFormValue("last_name")
	input.Email = r.PostFormValue("email")
	input.Phone = r.PostFormValue("phone")
	input.SMSConsent = checked(r.PostFormValue("sms_consent"))
	input.SendPhoneToCRM = checked(r.PostFormValue("send_phone_to_crm"))
	input.SharePhoneWithWidget = checked(r.PostFormValue("share_phone_with_widget"))
	if v := r.PostFormValue("session_id"); v != "" {
		input.SessionID, _ = strconv.ParseInt(v, 10, 64)
	}
	return input, nil
}

// HandleRegister runs the dual origin submission for a visitor registration
// and redirects to the confirmation page.
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	f := h.activeFunnel(w, r)
	if f == nil {
		return
	}

	input, err := decodeRegisterInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Email == "" || input.FirstName == "" {
		respondError(w, http.StatusBadRequest, "first name and email are required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	confirmURL := fmt.Sprintf("/f/%s/confirmation", f.Slug)

	// Duplicate guard: a repeat registration skips the origin calls and goes
	// straight to the confirmation page.
	first, err := h.counter.FirstRegistration(r.Context(), f.ID, email)
	if err != nil {
		log.Printf("[public] dedupe check for funnel %d: %v", f.ID, err)
		// Fall back to the audit trail when Redis is down.
		dup, dbErr := h.submissions.HasDuplicate(r.Context(), f.ID, email)
		if dbErr != nil {
			log.Printf("[public] duplicate lookup for funnel %d: %v", f.ID, dbErr)
		}
		first = !dup
	}
	if !first {
		http.Redirect(w, r, confirmURL+"?already=1", http.StatusSeeOther)
		return
	}

	var ex crmform.Extraction
	if err := json.Unmarshal([]byte(f.CRMExtraction), &ex); err != nil {
		log.Printf("[public] funnel %d: stored CRM extraction unreadable: %v", f.ID, err)
		respondError(w, http.StatusInternalServerError, "funnel misconfigured")
		return
	}

	// Resolve the session being booked.
	sessionID := input.SessionID
	var sessionDate time.Time
	var sessionDay string
	if f.WidgetType == domain.WidgetTypeRecurring {
		var sched schedule.Schedule
		if err := json.Unmarshal([]byte(f.ScheduleJSON), &sched); err != nil {
			log.Printf("[public] funnel %d: stored schedule unreadable: %v", f.ID, err)
			respondError(w, http.StatusInternalServerError, "funnel misconfigured")
			return
		}
		next, err := schedule.Next(sched, time.Now())
		if err != nil {
			log.Printf("[public] funnel %d: schedule: %v", f.ID, err)
			respondError(w, http.StatusInternalServerError, "funnel misconfigured")
			return
		}
		sessionID = next.SessionID
		sessionDate = next.Date
		sessionDay = next.DayOfWeek
	}

	user := domain.Registrant{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     email,
		Phone:     input.Phone,
	}

	outcome := h.registrar.Submit(r.Context(), register.Request{
		CRM:                  &ex,
		WebinarID:            f.WebinarID,
		SessionID:            sessionID,
		User:                 user,
		SMSConsent:           input.SMSConsent,
		SendPhoneToCRM:       input.SendPhoneToCRM,
		SharePhoneWithWidget: input.SharePhoneWithWidget,
	})

	// Audit record regardless of outcome.
	sub := &domain.Submission{
		FunnelID:      f.ID,
		Registrant:    user,
		SMSConsent:    input.SMSConsent,
		SessionDate:   sessionDate,
		SessionDay:    sessionDay,
		SessionID:     sessionID,
		CID:           outcome.Widget.CID,
		CRMSuccess:    outcome.CRM.Success,
		CRMError:      outcome.CRM.Error,
		WidgetSuccess: outcome.Widget.Success,
		WidgetError:   outcome.Widget.Error,
		IPAddress:     r.RemoteAddr,
		UserAgent:     r.UserAgent(),
		SubmittedAt:   time.Now().UTC(),
	}
	if err := h.submissions.Create(r.Context(), sub); err != nil {
		log.Printf("[public] record submission for funnel %d: %v", f.ID, err)
	}

	if !outcome.Success() {
		respondError(w, http.StatusBadGateway, "registration failed, please try again")
		return
	}

	if err := h.counter.RecordSubmission(r.Context(), f.ID); err != nil {
		log.Printf("[public] record submission counter for funnel %d: %v", f.ID, err)
	}

	// Pass the booked session through to the confirmation placeholders.
	if !sessionDate.IsZero() {
		params := url.Values{}
		params.Set("session_date", sessionDate.Format("January 2, 2006 at 3:04 PM"))
		params.Set("session_day", sessionDay)
		confirmURL += "?" + params.Encode()
	}
	http.Redirect(w, r, confirmURL, http.StatusSeeOther)
}

// calendarEvent builds the add-to-calendar event for a funnel session
func calendarEvent(f *domain.Funnel, start time.Time) calendar.Event {
	title := f.WebinarTitle
	if title == "" {
		title = f.Name
	}
	return calendar.Event{
		Title:       title,
		Description: f.WebinarDescription,
		Location:    "Online",
		StartTime:   start,
		EndTime:     calendar.EndAfter(start, 0),
	}
}

// sessionStart parses the session_date query parameter
func sessionStart(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("session_date")
	if v == "" {
		return time.Time{}, fmt.Errorf("session_date is required")
	}
	return time.Parse(time.RFC3339, v)
}

// HandleCalendarGoogle redirects to a pre-filled Google Calendar link
func (h *Handlers) HandleCalendarGoogle(w http.ResponseWriter, r *http.Request) {
	f := h.activeFunnel(w, r)
	if f == nil {
		return
	}
	start, err := sessionStart(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "session_date must be RFC3339")
		return
	}
	http.Redirect(w, r, calendar.GoogleURL(calendarEvent(f, start)), http.StatusFound)
}

// HandleCalendarICS serves an iCalendar download for the booked session
func (h *Handlers) HandleCalendarICS(w http.ResponseWriter, r *http.Request) {
	f := h.activeFunnel(w, r)
	if f == nil {
		return
	}
	start, err := sessionStart(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "session_date must be RFC3339")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="webinar.ics"`)
	w.Write([]byte(calendar.ICS(calendarEvent(f, start), time.Now())))
}
