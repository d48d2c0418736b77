package widget

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
)

// DefaultBaseURL is the production WebinarFuel API endpoint.
const DefaultBaseURL = "https://api.webinarfuel.com"

// Client talks to the WebinarFuel API directly, bypassing the embedded
// widget's own submission mechanism.
type Client struct {
	http *resty.Client
}

// NewClient builds a WebinarFuel API client authenticated with the account's
// bearer credential. Each call gets a bounded wait plus a small number of
// backed-off retries for transient transport failures.
func NewClient(baseURL, bearerToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(bearerToken).
			SetHeader("Content-Type", "application/json").
			SetTimeout(30 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(1 * time.Second).
			SetRetryMaxWaitTime(8 * time.Second),
	}
}

// SetTimeout overrides the per-call wait bound.
func (c *Client) SetTimeout(d time.Duration) *Client {
	if d > 0 {
		c.http.SetTimeout(d)
	}
	return c
}

// RegisterResult is the outcome of one direct registration attempt. Failures
// are captured as data, never raised past this boundary.
type RegisterResult struct {
	Success bool   `json:"success"`
	CID     string `json:"cid,omitempty"`
	Error   string `json:"error,omitempty"`
}

type registrantPayload struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

type registerPayload struct {
	WebinarID  int64             `json:"webinar_id"`
	Registrant registrantPayload `json:"registrant"`
	Session    struct {
		WebinarSessionID int64 `json:"webinar_session_id"`
	} `json:"session"`
}

// Register books the visitor into the given session. The phone number is
// shared with WebinarFuel only when sharePhone is set, a consent gate
// independent of whether the CRM submission included the phone.
func (c *Client) Register(ctx context.Context, webinarID, sessionID int64, user domain.Registrant, sharePhone bool) RegisterResult {
	payload := registerPayload{
		WebinarID: webinarID,
		Registrant: registrantPayload{
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		},
	}
	payload.Session.WebinarSessionID = sessionID
	if sharePhone && user.Phone != "" {
		payload.Registrant.Phone = user.Phone
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/api/registrants")
	if err != nil {
		return RegisterResult{Error: fmt.Sprintf("webinarfuel request failed: %v", err)}
	}
	if resp.IsError() {
		return RegisterResult{Error: fmt.Sprintf("webinarfuel API error: status %d - %s", resp.StatusCode(), resp.String())}
	}

	// The confirmation id's location varies across response shapes.
	var body struct {
		CID               string `json:"cid"`
		RegistrantSession struct {
			CID string `json:"cid"`
		} `json:"registrant_session"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return RegisterResult{Error: fmt.Sprintf("webinarfuel response parse failed: %v", err)}
	}

	cid := body.RegistrantSession.CID
	if cid == "" {
		cid = body.CID
	}

	return RegisterResult{Success: true, CID: cid}
}

// Session is one scheduled webinar occurrence as reported by WebinarFuel.
type Session struct {
	ID          int64  `json:"id"`
	ScheduledAt string `json:"scheduled_at"`
	Status      string `json:"status"`
}

// Sessions lists the scheduled sessions for a webinar.
func (c *Client) Sessions(ctx context.Context, webinarID int64) ([]Session, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/api/webinars/%d/sessions", webinarID))
	if err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch sessions: status %d", resp.StatusCode())
	}

	var body struct {
		Sessions []Session `json:"sessions"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("parse sessions: %w", err)
	}
	return body.Sessions, nil
}
