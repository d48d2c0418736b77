// Package register orchestrates the two direct submissions performed for each
// visitor registration: the Infusionsoft form POST and the WebinarFuel API
// booking. The two calls run concurrently and are independently
// fault-tolerant; this is a marketing funnel, not a financial transaction, so
// one integration's outage must not stop the visitor from proceeding.
package register

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/crmform"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/widget"
)

// DefaultAdapterTimeout bounds each adapter call so a hung origin service
// cannot block its sibling or the request indefinitely.
const DefaultAdapterTimeout = 45 * time.Second

// Request carries everything needed for one dual submission.
type Request struct {
	CRM       *crmform.Extraction
	WebinarID int64
	SessionID int64
	User      domain.Registrant

	// SMSConsent sets the CRM consent checkbox to its canonical value.
	SMSConsent bool
	// SendPhoneToCRM and SharePhoneWithWidget are two separately-gated
	// phone-sharing decisions. The two origins have different privacy
	// requirements; never couple these.
	SendPhoneToCRM       bool
	SharePhoneWithWidget bool
}

// Outcome aggregates both adapters' results. Both are always populated for
// audit, even when overall success was achieved via only one path.
type Outcome struct {
	CRM    crmform.Result
	Widget widget.RegisterResult
}

// Success applies the at-least-one-succeeds rule.
func (o Outcome) Success() bool {
	return o.CRM.Success || o.Widget.Success
}

// Service fans a registration out to both origin APIs.
type Service struct {
	crmClient    *resty.Client
	widgetClient *widget.Client
	timeout      time.Duration
}

// NewService wires the orchestrator with its two origin clients.
func NewService(widgetClient *widget.Client) *Service {
	return &Service{
		crmClient:    crmform.NewClient(),
		widgetClient: widgetClient,
		timeout:      DefaultAdapterTimeout,
	}
}

// SetTimeout overrides the per-adapter bound. Used by tests.
func (s *Service) SetTimeout(d time.Duration) { s.timeout = d }

// Submit runs both adapters concurrently and waits for both: an all-of join,
// not a race, because both outcomes are needed for the audit record. Neither
// adapter can abort the other; each catches its own transport errors and
// reports them as data.
func (s *Service) Submit(ctx context.Context, req Request) Outcome {
	var out Outcome
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		out.CRM = crmform.Submit(callCtx, s.crmClient, req.CRM, req.User, req.SendPhoneToCRM, req.SMSConsent)
	}()
	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		out.Widget = s.widgetClient.Register(callCtx, req.WebinarID, req.SessionID, req.User, req.SharePhoneWithWidget)
	}()
	wg.Wait()

	if !out.CRM.Success {
		log.Printf("[register] infusionsoft submission failed: %s", out.CRM.Error)
	}
	if !out.Widget.Success {
		log.Printf("[register] webinarfuel submission failed: %s", out.Widget.Error)
	}

	return out
}
