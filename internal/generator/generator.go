// Package generator turns funnel context into complete landing-page HTML via
// a generative language model. What comes back is opaque HTML; nothing in
// this system ever parses it.
package generator

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/crmform"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/widget"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// FunnelContext is the prompt context assembled from a funnel record and its
// extraction results.
type FunnelContext struct {
	Name               string
	WebinarTitle       string
	WebinarDescription string
	TargetAudience     string
	MainBenefits       string
	SocialProof        string
	HostInfo           string
	Urgency            string

	CRM    *crmform.Extraction
	Widget *widget.Extraction
}

// Provider produces raw model output for a prompt.
type Provider interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Service generates funnel pages. It prefers the direct Anthropic API and
// falls back to AWS Bedrock when configured, mirroring how the rest of the
// platform reaches Claude.
type Service struct {
	providers []Provider
	maxTokens int
}

// NewService builds a generator from the available providers, in preference
// order. At least one must be supplied.
func NewService(providers ...Provider) (*Service, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("generator: no model provider configured")
	}
	return &Service{providers: providers, maxTokens: 4096}, nil
}

// SetMaxTokens overrides the per-request output budget.
func (s *Service) SetMaxTokens(n int) {
	if n > 0 {
		s.maxTokens = n
	}
}

// GenerateRegistrationPage produces the full registration landing page.
func (s *Service) GenerateRegistrationPage(ctx context.Context, fc FunnelContext) (string, error) {
	return s.generate(ctx, registrationPrompt(fc))
}

// GenerateConfirmationPage produces the post-registration confirmation page.
func (s *Service) GenerateConfirmationPage(ctx context.Context, fc FunnelContext) (string, error) {
	return s.generate(ctx, confirmationPrompt(fc))
}

// EditPage applies an admin's free-form instruction to an existing generated
// page and returns the revised HTML.
func (s *Service) EditPage(ctx context.Context, html, instruction string) (string, error) {
	return s.generate(ctx, editPrompt(html, instruction))
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, p := range s.providers {
		out, err := p.Complete(ctx, prompt, s.maxTokens)
		if err == nil {
			return cleanHTML(out), nil
		}
		lastErr = err
		log.Printf("[generator] provider failed, trying next: %v", err)
	}
	return "", fmt.Errorf("generator: all providers failed: %w", lastErr)
}

// cleanHTML strips markdown code fences the model sometimes wraps around its
// output despite being told not to.
func cleanHTML(out string) string {
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, "```html")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}

// newHTTPClient is shared by the HTTP-backed providers. Generation is slow;
// the bound is generous but finite.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}
