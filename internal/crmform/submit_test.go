package crmform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
)

func testExtraction() *Extraction {
	return &Extraction{
		ActionURL: "https://eu1.infusionsoft.com/app/form/process/abc123",
		XID:       "abc123def456",
		FormName:  "Masterclass Registration",
		FieldMappings: map[string]string{
			"firstname": "inf_field_FirstName",
			"lastname":  "inf_field_LastName",
			"email":     "inf_field_Email",
			"phone":     "inf_field_Phone1",
		},
		HiddenFields: map[string]string{
			"inf_form_xid":               "abc123def456",
			"inf_form_name":              "Masterclass Registration",
			"inf_custom_SMSOptInWebinar": "1",
		},
		HasSMSConsent:       true,
		SMSConsentFieldName: "inf_custom_SMSOptInWebinar",
	}
}

func TestBuildPayloadRoundTrip(t *testing.T) {
	ex := testExtraction()
	user := domain.Registrant{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Phone:     "+15551234567",
	}

	payload := BuildPayload(ex, user, true, true)

	// Every original hidden key must survive unchanged.
	for name, value := range ex.HiddenFields {
		if name == ex.SMSConsentFieldName {
			continue // overwritten by the consent gate below
		}
		require.Equal(t, value, payload.Get(name), "hidden field %s", name)
	}

	require.Equal(t, "Ada", payload.Get("inf_field_FirstName"))
	require.Equal(t, "Lovelace", payload.Get("inf_field_LastName"))
	require.Equal(t, "ada@example.com", payload.Get("inf_field_Email"))
	require.Equal(t, "+15551234567", payload.Get("inf_field_Phone1"))
	require.Equal(t, "1", payload.Get("inf_custom_SMSOptInWebinar"))

	// Exactly the hidden keys plus the mapped visible fields, nothing else.
	require.Len(t, payload, len(ex.HiddenFields)+4)
}

func TestBuildPayloadPhoneGate(t *testing.T) {
	ex := testExtraction()
	user := domain.Registrant{Email: "ada@example.com", Phone: "+15551234567"}

	withPhone := BuildPayload(ex, user, true, false)
	require.Equal(t, "+15551234567", withPhone.Get("inf_field_Phone1"))

	withoutPhone := BuildPayload(ex, user, false, false)
	require.Empty(t, withoutPhone.Get("inf_field_Phone1"))
}

func TestBuildPayloadConsentGate(t *testing.T) {
	ex := testExtraction()
	ex.HiddenFields = map[string]string{"inf_form_xid": "x"}
	user := domain.Registrant{Email: "ada@example.com"}

	// Canonical value defaults to "1" when the hidden fields carry none.
	consented := BuildPayload(ex, user, false, true)
	require.Equal(t, "1", consented.Get("inf_custom_SMSOptInWebinar"))

	declined := BuildPayload(ex, user, false, false)
	require.Empty(t, declined.Get("inf_custom_SMSOptInWebinar"))
}

func TestSubmit(t *testing.T) {
	var gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotBody = r.PostForm.Encode()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ex := testExtraction()
	ex.ActionURL = srv.URL

	res := Submit(context.Background(), NewClient(), ex, domain.Registrant{Email: "ada@example.com"}, false, false)
	require.True(t, res.Success)
	require.Empty(t, res.Error)
	require.Contains(t, gotContentType, "application/x-www-form-urlencoded")
	require.Contains(t, gotBody, "inf_form_xid=abc123def456")
}

func TestSubmitNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ex := testExtraction()
	ex.ActionURL = srv.URL

	res := Submit(context.Background(), NewClient(), ex, domain.Registrant{Email: "ada@example.com"}, false, false)
	require.False(t, res.Success)
	require.Contains(t, res.Error, "status 500")
}

func TestSubmitTransportErrorIsFailure(t *testing.T) {
	ex := testExtraction()
	ex.ActionURL = "http://127.0.0.1:1" // nothing listens here

	res := Submit(context.Background(), NewClient(), ex, domain.Registrant{Email: "ada@example.com"}, false, false)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Error)
}
