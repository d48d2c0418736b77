package crmform

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
)

// Result is the outcome of one direct submission attempt. Failures are
// captured as data, never raised past this boundary, so a CRM outage cannot
// take down the registration endpoint.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewClient returns the resty client used for direct CRM submissions: bounded
// wait per attempt plus a small number of backed-off retries for transient
// transport failures. Parse failures are never retried; only submissions are.
func NewClient() *resty.Client {
	return resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(8 * time.Second)
}

// BuildPayload assembles the flat key-value body the original embedded form
// would have POSTed: every hidden field verbatim, then the mapped visitor
// fields. includePhone is the CRM-side phone gate; it is independent of both
// smsConsent and the widget-side phone gate, because the CRM may need the
// number regardless of SMS opt-in. The consent field is set to its canonical
// hidden value (default "1") only when the visitor actually consented.
func BuildPayload(ex *Extraction, user domain.Registrant, includePhone, smsConsent bool) url.Values {
	payload := url.Values{}

	for name, value := range ex.HiddenFields {
		payload.Set(name, value)
	}

	if user.FirstName != "" && ex.FieldMappings["firstname"] != "" {
		payload.Set(ex.FieldMappings["firstname"], user.FirstName)
	}
	if user.LastName != "" && ex.FieldMappings["lastname"] != "" {
		payload.Set(ex.FieldMappings["lastname"], user.LastName)
	}
	if ex.FieldMappings["email"] != "" {
		payload.Set(ex.FieldMappings["email"], user.Email)
	}
	if includePhone && user.Phone != "" && ex.FieldMappings["phone"] != "" {
		payload.Set(ex.FieldMappings["phone"], user.Phone)
	}

	if smsConsent && ex.SMSConsentFieldName != "" {
		consentValue := ex.HiddenFields[ex.SMSConsentFieldName]
		if consentValue == "" {
			consentValue = "1"
		}
		payload.Set(ex.SMSConsentFieldName, consentValue)
	}

	return payload
}

// Submit POSTs the visitor's registration directly to the extracted form
// action URL as a URL-encoded body. Any non-2xx status or transport error is
// reported as a failed Result with the reason as a string.
func Submit(ctx context.Context, client *resty.Client, ex *Extraction, user domain.Registrant, includePhone, smsConsent bool) Result {
	payload := BuildPayload(ex, user, includePhone, smsConsent)

	resp, err := client.R().
		SetContext(ctx).
		SetFormDataFromValues(payload).
		Post(ex.ActionURL)
	if err != nil {
		return Result{Error: fmt.Sprintf("infusionsoft request failed: %v", err)}
	}
	if resp.IsError() {
		return Result{Error: fmt.Sprintf("infusionsoft submission failed: status %d", resp.StatusCode())}
	}

	return Result{Success: true}
}
