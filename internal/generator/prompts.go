package generator

import (
	"encoding/json"
	"fmt"
	"strings"
)

func contextBlock(fc FunnelContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", fc.WebinarTitle)
	fmt.Fprintf(&b, "Description: %s\n", fc.WebinarDescription)
	if fc.TargetAudience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", fc.TargetAudience)
	}
	if fc.MainBenefits != "" {
		fmt.Fprintf(&b, "Benefits: %s\n", fc.MainBenefits)
	}
	if fc.SocialProof != "" {
		fmt.Fprintf(&b, "Proof: %s\n", fc.SocialProof)
	}
	if fc.HostInfo != "" {
		fmt.Fprintf(&b, "Host: %s\n", fc.HostInfo)
	}
	if fc.Urgency != "" {
		fmt.Fprintf(&b, "Urgency: %s\n", fc.Urgency)
	}
	return b.String()
}

func registrationPrompt(fc FunnelContext) string {
	mappings, _ := json.Marshal(fc.CRM.FieldMappings)

	consentLine := "Not needed"
	if fc.CRM.HasSMSConsent {
		consentLine = "Required"
	}

	var b strings.Builder
	b.WriteString("Create a high-converting webinar registration page.\n\n")
	b.WriteString("CONTEXT:\n")
	b.WriteString(contextBlock(fc))

	b.WriteString("\nTECHNICAL INTEGRATION:\n")
	b.WriteString("Integrate these technical requirements seamlessly:\n\n")
	fmt.Fprintf(&b, "Infusionsoft Form:\n- Action URL: %s\n- XID: %s\n- Field Mappings: %s\n- SMS Consent Field: %s\n\n",
		fc.CRM.ActionURL, fc.CRM.XID, mappings, consentLine)
	fmt.Fprintf(&b, "WebinarFuel Widget:\n- Webinar ID: %d\n- Widget ID: %d\n- Widget Type: %s\n\n",
		fc.Widget.WebinarID, fc.Widget.WidgetID, fc.Widget.WidgetType)

	b.WriteString("REQUIREMENTS:\n")
	b.WriteString("- Modern hero with gradients, mobile-responsive Tailwind CSS\n")
	fmt.Fprintf(&b, "- HTML form POST to: %s\n", fc.CRM.ActionURL)
	fmt.Fprintf(&b, "- Hidden fields: inf_form_xid=%q\n", fc.CRM.XID)
	fmt.Fprintf(&b, "- Visible fields: %s\n", strings.Join(visibleFieldNames(fc), ", "))
	if fc.CRM.HasSMSConsent {
		b.WriteString("- SMS consent checkbox\n")
	}
	fmt.Fprintf(&b, "- WebinarFuel: <div data-webinarfuel-webinar=%q data-webinarfuel-widget=%q></div>\n",
		fmt.Sprint(fc.Widget.WebinarID), fmt.Sprint(fc.Widget.WidgetID))
	b.WriteString("- Script: https://app.webinarfuel.com/widgets/v2/embed.js\n\n")
	b.WriteString("Return complete HTML only (no markdown). Include <!DOCTYPE html>, inline CSS, compelling copy based on context.")

	return b.String()
}

func confirmationPrompt(fc FunnelContext) string {
	var b strings.Builder
	b.WriteString("Create a webinar confirmation page shown right after a successful registration.\n\n")
	b.WriteString("CONTEXT:\n")
	b.WriteString(contextBlock(fc))

	b.WriteString("\nREQUIREMENTS:\n")
	b.WriteString("- Confirm the registration and restate the webinar title prominently\n")
	b.WriteString("- Placeholders {{session_date}} and {{session_day}} where the booked session should appear\n")
	b.WriteString("- Add-to-calendar buttons linking to /api/calendar/google and /api/calendar/ics\n")
	b.WriteString("- Tell the visitor to watch their inbox for the access link\n")
	b.WriteString("- Mobile-responsive Tailwind CSS, consistent with a modern registration page\n\n")
	b.WriteString("Return complete HTML only (no markdown). Include <!DOCTYPE html> and inline CSS.")

	return b.String()
}

func editPrompt(html, instruction string) string {
	return fmt.Sprintf(`Apply the following change to this landing page HTML.

CHANGE REQUESTED:
%s

CURRENT HTML:
%s

Return the complete revised HTML only (no markdown, no commentary). Preserve all forms, hidden fields, scripts and tracking tags exactly unless the change explicitly asks otherwise.`, instruction, html)
}

func visibleFieldNames(fc FunnelContext) []string {
	names := make([]string, 0, len(fc.CRM.FieldMappings))
	for _, raw := range fc.CRM.FieldMappings {
		names = append(names, raw)
	}
	return names
}
