package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/generator"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/register"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/repository/postgres"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/widget"
)

const sampleFormHTML = `<form accept-charset="UTF-8" action="https://xy123.infusionsoft.com/app/form/process/abc123" method="POST">
<input name="inf_form_xid" type="hidden" value="abc123def456"/>
<input name="inf_form_name" type="hidden" value="Webinar Registration"/>
<input id="inf_field_FirstName" name="inf_field_FirstName" type="text"/>
<input id="inf_field_Email" name="inf_field_Email" type="text"/>
<button type="submit">Register</button>
</form>`

const sampleWidgetURL = "https://app.webinarfuel.com/webinars/19570/widgets/80345/132194"
const sampleWidgetHTML = `<script>window._wf = window._wf || [];window._wf.push({id: '998_abc'});</script>`

// In-memory fakes

type fakeFunnelStore struct {
	byID   map[int64]*domain.Funnel
	nextID int64
}

func newFakeFunnelStore() *fakeFunnelStore {
	return &fakeFunnelStore{byID: map[int64]*domain.Funnel{}, nextID: 1}
}

func (s *fakeFunnelStore) Create(_ context.Context, f *domain.Funnel) (*domain.Funnel, error) {
	f.ID = s.nextID
	s.nextID++
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	cp := *f
	s.byID[f.ID] = &cp
	return f, nil
}

func (s *fakeFunnelStore) GetByID(_ context.Context, id int64) (*domain.Funnel, error) {
	f, ok := s.byID[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *fakeFunnelStore) GetBySlug(_ context.Context, slug string) (*domain.Funnel, error) {
	for _, f := range s.byID {
		if f.Slug == slug {
			cp := *f
			return &cp, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (s *fakeFunnelStore) List(_ context.Context) ([]domain.Funnel, error) {
	var out []domain.Funnel
	for _, f := range s.byID {
		out = append(out, *f)
	}
	return out, nil
}

func (s *fakeFunnelStore) Update(_ context.Context, f *domain.Funnel) (*domain.Funnel, error) {
	if _, ok := s.byID[f.ID]; !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *f
	s.byID[f.ID] = &cp
	return f, nil
}

func (s *fakeFunnelStore) SetGeneratedPages(_ context.Context, id int64, reg, conf string) error {
	f, ok := s.byID[id]
	if !ok {
		return postgres.ErrNotFound
	}
	f.RegistrationPageHTML = reg
	f.ConfirmationPageHTML = conf
	return nil
}

func (s *fakeFunnelStore) Delete(_ context.Context, id int64) error {
	if _, ok := s.byID[id]; !ok {
		return postgres.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

type fakeSubmissionStore struct {
	created []*domain.Submission
	dup     bool
}

func (s *fakeSubmissionStore) Create(_ context.Context, sub *domain.Submission) error {
	s.created = append(s.created, sub)
	return nil
}

func (s *fakeSubmissionStore) HasDuplicate(_ context.Context, _ int64, _ string) (bool, error) {
	return s.dup, nil
}

func (s *fakeSubmissionStore) ListByFunnel(_ context.Context, funnelID int64, _ int) ([]domain.Submission, error) {
	var out []domain.Submission
	for _, sub := range s.created {
		if sub.FunnelID == funnelID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

type fakeCounter struct {
	views       int
	submissions int
	repeat      bool
	err         error
}

func (c *fakeCounter) RecordView(_ context.Context, _ int64) error {
	c.views++
	return c.err
}

func (c *fakeCounter) RecordSubmission(_ context.Context, _ int64) error {
	c.submissions++
	return c.err
}

func (c *fakeCounter) FirstRegistration(_ context.Context, _ int64, _ string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return !c.repeat, nil
}

type fakeRegistrar struct {
	called  bool
	lastReq register.Request
	outcome register.Outcome
}

func (r *fakeRegistrar) Submit(_ context.Context, req register.Request) register.Outcome {
	r.called = true
	r.lastReq = req
	return r.outcome
}

type fakeGenerator struct {
	registration string
	confirmation string
	edited       string
	instruction  string
	err          error
}

func (g *fakeGenerator) GenerateRegistrationPage(_ context.Context, _ generator.FunnelContext) (string, error) {
	return g.registration, g.err
}

func (g *fakeGenerator) GenerateConfirmationPage(_ context.Context, _ generator.FunnelContext) (string, error) {
	return g.confirmation, g.err
}

func (g *fakeGenerator) EditPage(_ context.Context, _ string, instruction string) (string, error) {
	g.instruction = instruction
	return g.edited, g.err
}

type fakeSessionLister struct {
	sessions []widget.Session
	err      error
}

func (l *fakeSessionLister) Sessions(_ context.Context, _ int64) ([]widget.Session, error) {
	return l.sessions, l.err
}

type fixture struct {
	funnels     *fakeFunnelStore
	submissions *fakeSubmissionStore
	counter     *fakeCounter
	registrar   *fakeRegistrar
	generator   *fakeGenerator
	router      http.Handler
}

func newFixture() *fixture {
	fx := &fixture{
		funnels:     newFakeFunnelStore(),
		submissions: &fakeSubmissionStore{},
		counter:     &fakeCounter{},
		registrar:   &fakeRegistrar{},
		generator:   &fakeGenerator{registration: "<html>reg</html>", confirmation: "<html>conf</html>", edited: "<html>edited</html>"},
	}
	h := NewHandlers(fx.funnels, fx.submissions, fx.counter, fx.registrar, fx.generator)
	fx.router = SetupRoutes(h, nil)
	return fx
}

func (fx *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, r)
	return w
}

// activeFunnel seeds a live funnel ready to accept registrations.
func (fx *fixture) seedActiveFunnel(t *testing.T) *domain.Funnel {
	t.Helper()
	ex := map[string]interface{}{
		"action_url":     "https://xy123.infusionsoft.com/app/form/process/abc123",
		"xid":            "abc123def456",
		"form_name":      "Webinar Registration",
		"field_mappings": map[string]string{"firstname": "inf_field_FirstName", "email": "inf_field_Email"},
		"hidden_fields":  map[string]string{"inf_form_xid": "abc123def456"},
	}
	encoded, err := json.Marshal(ex)
	require.NoError(t, err)

	f, err := fx.funnels.Create(context.Background(), &domain.Funnel{
		Slug:                 "launch",
		Name:                 "Launch Webinar",
		Status:               domain.FunnelStatusActive,
		CRMExtraction:        string(encoded),
		WebinarID:            19570,
		WidgetID:             80345,
		WidgetType:           domain.WidgetTypeSingleSession,
		WebinarTitle:         "Scaling With Webinars",
		RegistrationPageHTML: "<html><body>register here</body></html>",
		ConfirmationPageHTML: "<html><body>See you on {{session_day}} ({{session_date}})</body></html>",
	})
	require.NoError(t, err)
	return f
}

func TestHealthCheck(t *testing.T) {
	fx := newFixture()
	w := fx.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCreateFunnelExtractsEmbeds(t *testing.T) {
	fx := newFixture()

	w := fx.do(t, http.MethodPost, "/api/funnels", map[string]interface{}{
		"name":          "Launch Webinar",
		"crm_form_html": sampleFormHTML,
		"widget_html":   sampleWidgetHTML,
		"widget_url":    sampleWidgetURL,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Funnel   domain.Funnel `json:"funnel"`
		Warnings []string      `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "launch-webinar", resp.Funnel.Slug)
	assert.Equal(t, domain.FunnelStatusDraft, resp.Funnel.Status)
	assert.Equal(t, int64(19570), resp.Funnel.WebinarID)
	assert.Equal(t, int64(80345), resp.Funnel.WidgetID)
	assert.Equal(t, int64(132194), resp.Funnel.WidgetVersionID)
	assert.Contains(t, resp.Funnel.CRMExtraction, "abc123def456")
	assert.Empty(t, resp.Warnings)
}

func TestCreateFunnelRejectsBadEmbed(t *testing.T) {
	fx := newFixture()
	w := fx.do(t, http.MethodPost, "/api/funnels", map[string]interface{}{
		"name":          "Broken",
		"crm_form_html": "<div>no form here</div>",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "extraction failed")
}

func TestCreateFunnelRequiresName(t *testing.T) {
	fx := newFixture()
	w := fx.do(t, http.MethodPost, "/api/funnels", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateFunnelActivationPreconditions(t *testing.T) {
	fx := newFixture()
	f, err := fx.funnels.Create(context.Background(), &domain.Funnel{Name: "Bare", Slug: "bare", Status: domain.FunnelStatusDraft})
	require.NoError(t, err)

	w := fx.do(t, http.MethodPut, fmt.Sprintf("/api/funnels/%d", f.ID), map[string]interface{}{
		"status": "active",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "cannot activate")
}

func TestUpdateFunnelRecurringRequiresSchedule(t *testing.T) {
	fx := newFixture()
	f := fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodPut, fmt.Sprintf("/api/funnels/%d", f.ID), map[string]interface{}{
		"widget_type": "recurring",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "requires a schedule")
}

func TestUpdateFunnelAssignRecurringSchedule(t *testing.T) {
	fx := newFixture()
	f := fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodPut, fmt.Sprintf("/api/funnels/%d", f.ID), map[string]interface{}{
		"widget_type": "recurring",
		"schedule": map[string]interface{}{
			"wednesday": map[string]interface{}{"time": "14:00", "session_id": 2071},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := fx.funnels.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WidgetTypeRecurring, stored.WidgetType)
	assert.Contains(t, stored.ScheduleJSON, "2071")
}

func TestUpdateFunnelRejectsMalformedSchedule(t *testing.T) {
	fx := newFixture()
	f := fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodPut, fmt.Sprintf("/api/funnels/%d", f.ID), map[string]interface{}{
		"widget_type": "recurring",
		"schedule": map[string]interface{}{
			"wednesday": map[string]interface{}{"time": "25:99", "session_id": 2071},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid schedule")
}

func TestFunnelSessions(t *testing.T) {
	fx := newFixture()
	f := fx.seedActiveFunnel(t)

	h := NewHandlers(fx.funnels, fx.submissions, fx.counter, fx.registrar, fx.generator)
	h.SetWidgetAPI(&fakeSessionLister{sessions: []widget.Session{
		{ID: 88, ScheduledAt: "2026-09-09T14:00:00Z", Status: "scheduled"},
	}})
	router := SetupRoutes(h, nil)

	r := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/funnels/%d/sessions", f.ID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"total":1`)
	assert.Contains(t, w.Body.String(), "2026-09-09T14:00:00Z")
}

func TestFunnelSessionsUnconfigured(t *testing.T) {
	fx := newFixture()
	f := fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodGet, fmt.Sprintf("/api/funnels/%d/sessions", f.ID), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetFunnelNotFound(t *testing.T) {
	fx := newFixture()
	w := fx.do(t, http.MethodGet, "/api/funnels/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGeneratePages(t *testing.T) {
	fx := newFixture()
	f := fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodPost, fmt.Sprintf("/api/funnels/%d/generate", f.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := fx.funnels.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, "<html>reg</html>", stored.RegistrationPageHTML)
	assert.Equal(t, "<html>conf</html>", stored.ConfirmationPageHTML)
}

func TestGeneratePagesRequiresExtraction(t *testing.T) {
	fx := newFixture()
	f, err := fx.funnels.Create(context.Background(), &domain.Funnel{Name: "Bare", Slug: "bare"})
	require.NoError(t, err)

	w := fx.do(t, http.MethodPost, fmt.Sprintf("/api/funnels/%d/generate", f.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGeneratePagesRequiresWidgetExtraction(t *testing.T) {
	fx := newFixture()
	f := fx.seedActiveFunnel(t)
	f.WebinarID = 0
	f.WidgetID = 0
	_, err := fx.funnels.Update(context.Background(), f)
	require.NoError(t, err)

	w := fx.do(t, http.MethodPost, fmt.Sprintf("/api/funnels/%d/generate", f.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "no widget extraction")
}

func TestGeneratePagesUnreadableExtraction(t *testing.T) {
	fx := newFixture()
	f := fx.seedActiveFunnel(t)
	f.CRMExtraction = "{not valid json"
	_, err := fx.funnels.Update(context.Background(), f)
	require.NoError(t, err)

	w := fx.do(t, http.MethodPost, fmt.Sprintf("/api/funnels/%d/generate", f.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "unreadable")
}

func TestEditPage(t *testing.T) {
	fx := newFixture()
	f := fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodPost, fmt.Sprintf("/api/funnels/%d/pages/registration/edit", f.ID), map[string]interface{}{
		"instruction": "make the headline bigger",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "make the headline bigger", fx.generator.instruction)

	stored, err := fx.funnels.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, "<html>edited</html>", stored.RegistrationPageHTML)
	// The other page is untouched
	assert.Equal(t, "<html><body>See you on {{session_day}} ({{session_date}})</body></html>", stored.ConfirmationPageHTML)
}

func TestRegistrationPageServesAndCounts(t *testing.T) {
	fx := newFixture()
	fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodGet, "/f/launch", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "register here")
	assert.Equal(t, 1, fx.counter.views)
}

func TestRegistrationPageHiddenWhenNotActive(t *testing.T) {
	fx := newFixture()
	f := fx.seedActiveFunnel(t)
	f.Status = domain.FunnelStatusPaused
	_, err := fx.funnels.Update(context.Background(), f)
	require.NoError(t, err)

	w := fx.do(t, http.MethodGet, "/f/launch", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, fx.counter.views)
}

func TestConfirmationPageSubstitutesPlaceholders(t *testing.T) {
	fx := newFixture()
	fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodGet, "/f/launch/confirmation?session_day=Wednesday&session_date=September+9%2C+2026", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "See you on Wednesday")
	assert.NotContains(t, w.Body.String(), "{{session_day}}")
}

func TestRegisterSuccess(t *testing.T) {
	fx := newFixture()
	fx.seedActiveFunnel(t)
	fx.registrar.outcome = register.Outcome{
		Widget: widget.RegisterResult{Success: true, CID: "cid-123"},
	}

	form := url.Values{}
	form.Set("first_name", "Ada")
	form.Set("last_name", "Lovelace")
	form.Set("email", "Ada@Example.com")
	form.Set("phone", "+1 555 0100")
	form.Set("sms_consent", "on")
	form.Set("share_phone_with_widget", "on")
	form.Set("session_id", "88")

	r := httptest.NewRequest(http.MethodPost, "/f/launch/register", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Location"), "/f/launch/confirmation")

	require.True(t, fx.registrar.called)
	assert.Equal(t, "ada@example.com", fx.registrar.lastReq.User.Email)
	assert.Equal(t, int64(88), fx.registrar.lastReq.SessionID)
	assert.True(t, fx.registrar.lastReq.SMSConsent)
	assert.False(t, fx.registrar.lastReq.SendPhoneToCRM)
	assert.True(t, fx.registrar.lastReq.SharePhoneWithWidget)

	require.Len(t, fx.submissions.created, 1)
	assert.Equal(t, "cid-123", fx.submissions.created[0].CID)
	assert.True(t, fx.submissions.created[0].WidgetSuccess)
	assert.Equal(t, 1, fx.counter.submissions)
}

func TestRegisterRecurringComputesSession(t *testing.T) {
	fx := newFixture()
	f := fx.seedActiveFunnel(t)
	f.WidgetType = domain.WidgetTypeRecurring
	f.ScheduleJSON = `{"wednesday":{"time":"14:00","session_id":2071}}`
	_, err := fx.funnels.Update(context.Background(), f)
	require.NoError(t, err)
	fx.registrar.outcome = register.Outcome{Widget: widget.RegisterResult{Success: true}}

	w := fx.do(t, http.MethodPost, "/f/launch/register", map[string]interface{}{
		"first_name": "Ada",
		"email":      "ada@example.com",
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	assert.Equal(t, int64(2071), fx.registrar.lastReq.SessionID)
	require.Len(t, fx.submissions.created, 1)
	assert.Equal(t, "Wednesday", fx.submissions.created[0].SessionDay)
	assert.False(t, fx.submissions.created[0].SessionDate.IsZero())
	assert.Contains(t, w.Header().Get("Location"), "session_day=Wednesday")
}

func TestRegisterDuplicateSkipsOrigins(t *testing.T) {
	fx := newFixture()
	fx.seedActiveFunnel(t)
	fx.counter.repeat = true

	w := fx.do(t, http.MethodPost, "/f/launch/register", map[string]interface{}{
		"first_name": "Ada",
		"email":      "ada@example.com",
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "already=1")
	assert.False(t, fx.registrar.called)
	assert.Empty(t, fx.submissions.created)
}

func TestRegisterBothOriginsFail(t *testing.T) {
	fx := newFixture()
	fx.seedActiveFunnel(t)
	fx.registrar.outcome = register.Outcome{}

	w := fx.do(t, http.MethodPost, "/f/launch/register", map[string]interface{}{
		"first_name": "Ada",
		"email":      "ada@example.com",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	// Failure is still recorded for audit
	require.Len(t, fx.submissions.created, 1)
	assert.False(t, fx.submissions.created[0].CRMSuccess)
	assert.False(t, fx.submissions.created[0].WidgetSuccess)
	assert.Equal(t, 0, fx.counter.submissions)
}

func TestRegisterRequiresNameAndEmail(t *testing.T) {
	fx := newFixture()
	fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodPost, "/f/launch/register", map[string]interface{}{
		"first_name": "Ada",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, fx.registrar.called)
}

func TestCalendarGoogleRedirect(t *testing.T) {
	fx := newFixture()
	fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodGet, "/f/launch/calendar/google?session_date=2026-09-09T14:00:00Z", nil)
	require.Equal(t, http.StatusFound, w.Code)
	loc := w.Header().Get("Location")
	assert.Contains(t, loc, "calendar.google.com")
	assert.Contains(t, loc, "20260909T140000Z")
}

func TestCalendarICSDownload(t *testing.T) {
	fx := newFixture()
	fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodGet, "/f/launch/calendar/ics?session_date=2026-09-09T14:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Body.String(), "BEGIN:VEVENT")
	assert.Contains(t, w.Body.String(), "Scaling With Webinars")
}

func TestCalendarRequiresSessionDate(t *testing.T) {
	fx := newFixture()
	fx.seedActiveFunnel(t)

	w := fx.do(t, http.MethodGet, "/f/launch/calendar/ics", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "launch-webinar", slugify("Launch Webinar"))
	assert.Equal(t, "q4-promo-2026", slugify("  Q4 Promo (2026)!  "))
	assert.Equal(t, "", slugify("!!!"))
}
