// Package widget reverse-engineers pasted WebinarFuel embed snippets into
// numeric widget/webinar identifiers and talks to the WebinarFuel API for
// direct registration.
package widget

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/domain"
)

// Extraction is the normalized result of parsing a WebinarFuel widget embed.
type Extraction struct {
	WebinarID int64 `json:"webinar_id"`
	WidgetID  int64 `json:"widget_id"`
	// VersionID is present only when derivable from the companion URL path.
	VersionID int64 `json:"version_id,omitempty"`

	// WidgetType is dropdown or single_session as detected from the markup.
	// recurring is never auto-detected; the admin assigns it together with a
	// manually configured schedule.
	WidgetType string `json:"widget_type"`

	// EmbedCode is the original raw snippet, retained for fidelity.
	EmbedCode string `json:"embed_code"`
}

// ParseError reports that neither the companion URL nor the embedded scripts
// yielded both required identifiers.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("widget: %s", e.Reason)
}

var (
	// Companion URL shape: .../webinars/{id}/widgets/{id}(/{versionId})?/...
	urlPattern = regexp.MustCompile(`webinars/(\d+)/widgets/(\d+)(?:/(\d+))?`)

	// window._wf = window._wf || []; window._wf.push({ ... id: '...' ...
	wfPushPattern = regexp.MustCompile(`(?s)window\._wf\s*=\s*window\._wf\s*\|\|\s*\[\]\s*;\s*window\._wf\.push\(\{.*?id:\s*['"]([^'"]+)['"]`)

	// Generic webinar id key in embed script text.
	webinarIDPattern = regexp.MustCompile(`(?i)webinar[_-]?id['":\s]+(\d+)`)

	leadingDigits = regexp.MustCompile(`^(\d+)`)
)

// Parse extracts widget configuration from a pasted WebinarFuel snippet and
// an optional companion widget URL. Identifiers found in the URL are the
// higher-trust source and are never overwritten by script-derived values;
// conflicting ids resolve by that precedence, not by error.
func Parse(html string, widgetURL string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("widget: parse html: %w", err)
	}

	ex := &Extraction{
		WidgetType: domain.WidgetTypeSingleSession,
		EmbedCode:  html,
	}

	// Extraction strategies in priority order, first-non-zero-wins.
	idsFromURL(ex, widgetURL)
	idsFromScripts(ex, doc)

	if ex.WebinarID == 0 || ex.WidgetID == 0 {
		return nil, &ParseError{Reason: "could not extract webinar ID or widget ID from the provided code"}
	}

	if hasSessionSelector(doc) {
		ex.WidgetType = domain.WidgetTypeDropdown
	}

	return ex, nil
}

func idsFromURL(ex *Extraction, widgetURL string) {
	if widgetURL == "" {
		return
	}
	m := urlPattern.FindStringSubmatch(widgetURL)
	if m == nil {
		return
	}
	ex.WebinarID, _ = strconv.ParseInt(m[1], 10, 64)
	ex.WidgetID, _ = strconv.ParseInt(m[2], 10, 64)
	if m[3] != "" {
		ex.VersionID, _ = strconv.ParseInt(m[3], 10, 64)
	}
}

func idsFromScripts(ex *Extraction, doc *goquery.Document) {
	doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		text := script.Text()

		if ex.WidgetID == 0 {
			if m := wfPushPattern.FindStringSubmatch(text); m != nil {
				// The push token may be "998_abc"; only its leading numeric
				// portion is the widget id.
				if digits := leadingDigits.FindString(m[1]); digits != "" {
					ex.WidgetID, _ = strconv.ParseInt(digits, 10, 64)
				}
			}
		}

		if ex.WebinarID == 0 {
			if m := webinarIDPattern.FindStringSubmatch(text); m != nil {
				ex.WebinarID, _ = strconv.ParseInt(m[1], 10, 64)
			}
		}
	})
}

// hasSessionSelector reports whether the embed carries date- or
// session-selector markup. Keyword/selector based; vendors changing their
// class conventions can defeat it.
func hasSessionSelector(doc *goquery.Document) bool {
	dateSel := doc.Find(`.wf-date-select, [class*="date-select"], select[name*="date"]`)
	if dateSel.Length() > 0 {
		return true
	}
	sessionSel := doc.Find(`.wf-session-select, [class*="session"], select[name*="session"]`)
	return sessionSel.Length() > 0
}
