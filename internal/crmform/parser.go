// Package crmform reverse-engineers pasted Infusionsoft form embed HTML into a
// normalized structure that can be re-submitted directly to the Infusionsoft
// form endpoint, bypassing the scraped form's own POST mechanism.
package crmform

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Reserved Infusionsoft input names. Anything else is carried under its raw name.
const (
	fieldXID       = "inf_form_xid"
	fieldFormName  = "inf_form_name"
	fieldFirstName = "inf_field_FirstName"
	fieldLastName  = "inf_field_LastName"
	fieldEmail     = "inf_field_Email"
	fieldPhone     = "inf_field_Phone1"

	// DefaultFormName is used when the embed carries no inf_form_name input.
	DefaultFormName = "Webinar Registration"
)

// trackingScriptMarkers is the allow-list of src substrings for <script> tags
// that must be preserved verbatim on generated pages.
var trackingScriptMarkers = []string{
	"infusionsoft.com",
	"webTracking",
	"timezone",
	"jquery",
	"overwriteReferer",
}

// Extraction is the normalized result of parsing an Infusionsoft form embed.
// It is persisted on the funnel record and read (never mutated) at submission
// time.
type Extraction struct {
	ActionURL string `json:"action_url"`
	XID       string `json:"xid"`
	FormName  string `json:"form_name"`

	// FieldMappings maps logical field names (firstname, lastname, email,
	// phone) to the raw input names found in the embed. Non-reserved visible
	// inputs (checkboxes included) appear under their own raw name.
	FieldMappings map[string]string `json:"field_mappings"`

	// HiddenFields holds every hidden input's name/value pair. They are
	// replayed verbatim on direct submission.
	HiddenFields map[string]string `json:"hidden_fields"`

	HasSMSConsent       bool   `json:"has_sms_consent"`
	SMSConsentFieldName string `json:"sms_consent_field_name,omitempty"`

	// TrackingScripts are full serialized <script> tags matching the
	// allow-list, in document order.
	TrackingScripts []string `json:"tracking_scripts,omitempty"`

	// RawFormHTML is the original embed, kept for reference and regeneration.
	RawFormHTML string `json:"raw_form_html,omitempty"`
}

// ParseError reports a required structural element missing from the embed.
// It always aborts funnel creation; the admin must fix the pasted snippet.
type ParseError struct {
	Missing string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("crmform: %s not found in the provided HTML", e.Missing)
}

// Parse extracts a normalized Extraction from a pasted Infusionsoft form
// embed. Only the first <form> element is considered; later forms in the
// snippet are silently ignored (known limitation, matches the admin workflow
// this replaces). Parse performs no network calls and never mutates its input.
func Parse(html string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("crmform: parse html: %w", err)
	}

	form := doc.Find("form").First()
	if form.Length() == 0 {
		return nil, &ParseError{Missing: "form element"}
	}

	actionURL, ok := form.Attr("action")
	if !ok || actionURL == "" {
		return nil, &ParseError{Missing: "form action URL"}
	}

	xid, _ := doc.Find(`input[name="` + fieldXID + `"]`).Attr("value")
	if xid == "" {
		return nil, &ParseError{Missing: "form XID (" + fieldXID + ")"}
	}

	formName, _ := doc.Find(`input[name="` + fieldFormName + `"]`).Attr("value")
	if formName == "" {
		formName = DefaultFormName
	}

	ex := &Extraction{
		ActionURL:     actionURL,
		XID:           xid,
		FormName:      formName,
		FieldMappings: map[string]string{},
		HiddenFields:  map[string]string{},
		RawFormHTML:   html,
	}

	// Walk every input in document order. Duplicate hidden names resolve
	// last-wins via map overwrite.
	doc.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, _ := input.Attr("name")
		if name == "" {
			return
		}
		typ := strings.ToLower(input.AttrOr("type", "text"))
		value := input.AttrOr("value", "")

		switch typ {
		case "hidden":
			ex.HiddenFields[name] = value
		case "submit", "button":
			// not part of the data model
		default:
			switch name {
			case fieldFirstName:
				ex.FieldMappings["firstname"] = name
			case fieldLastName:
				ex.FieldMappings["lastname"] = name
			case fieldEmail:
				ex.FieldMappings["email"] = name
			case fieldPhone:
				ex.FieldMappings["phone"] = name
			default:
				ex.FieldMappings[name] = name
			}
		}
	})

	ex.SMSConsentFieldName = findSMSConsentField(doc)
	ex.HasSMSConsent = ex.SMSConsentFieldName != ""

	doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		src := script.AttrOr("src", "")
		for _, marker := range trackingScriptMarkers {
			if strings.Contains(src, marker) {
				if tag, err := goquery.OuterHtml(script); err == nil {
					ex.TrackingScripts = append(ex.TrackingScripts, tag)
				}
				break
			}
		}
	})

	return ex, nil
}

// findSMSConsentField returns the name of the first checkbox that looks like
// an SMS opt-in: its name contains "text" or "sms", or an adjacent label
// mentions "text message". The heuristic is keyword based and intentionally
// kept as-is; vendors changing their markup conventions can defeat it.
func findSMSConsentField(doc *goquery.Document) string {
	name := ""
	doc.Find(`input[type="checkbox"]`).EachWithBreak(func(_ int, box *goquery.Selection) bool {
		boxName := box.AttrOr("name", "")
		lower := strings.ToLower(boxName)
		if strings.Contains(lower, "text") || strings.Contains(lower, "sms") {
			name = boxName
			return false
		}
		label := strings.ToLower(box.Next().Filter("label").Text())
		if label == "" {
			label = strings.ToLower(box.Siblings().Filter("label").Text())
		}
		if strings.Contains(label, "text message") {
			name = boxName
			return false
		}
		return true
	})
	return name
}
