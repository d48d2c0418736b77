package crmform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleForm = `
<form accept-charset="UTF-8" action="https://eu1.infusionsoft.com/app/form/process/abc123" method="POST">
  <input name="inf_form_xid" type="hidden" value="abc123def456" />
  <input name="inf_form_name" type="hidden" value="Masterclass Registration" />
  <input name="infusionsoft_version" type="hidden" value="1.70.0.800357" />
  <input id="inf_field_FirstName" name="inf_field_FirstName" type="text" />
  <input id="inf_field_LastName" name="inf_field_LastName" type="text" />
  <input id="inf_field_Email" name="inf_field_Email" type="text" />
  <input id="inf_field_Phone1" name="inf_field_Phone1" type="text" />
  <input name="inf_custom_SMSOptInWebinar" type="checkbox" value="1" />
  <label for="inf_custom_SMSOptInWebinar">I agree to receive text message reminders</label>
  <input type="submit" value="Register Now" />
</form>
<script type="text/javascript" src="https://eu1.infusionsoft.com/app/webTracking/getTrackingCode"></script>
<script type="text/javascript" src="https://eu1.infusionsoft.com/app/timezone/timezoneInputJs?xid=abc123def456"></script>
<script type="text/javascript" src="https://eu1.infusionsoft.com/js/jquery/jquery-3.3.1.js"></script>
`

func TestParse(t *testing.T) {
	ex, err := Parse(sampleForm)
	require.NoError(t, err)

	require.Equal(t, "https://eu1.infusionsoft.com/app/form/process/abc123", ex.ActionURL)
	require.Equal(t, "abc123def456", ex.XID)
	require.Equal(t, "Masterclass Registration", ex.FormName)

	require.Equal(t, "inf_field_FirstName", ex.FieldMappings["firstname"])
	require.Equal(t, "inf_field_LastName", ex.FieldMappings["lastname"])
	require.Equal(t, "inf_field_Email", ex.FieldMappings["email"])
	require.Equal(t, "inf_field_Phone1", ex.FieldMappings["phone"])
	// Checkboxes land under their own raw name.
	require.Equal(t, "inf_custom_SMSOptInWebinar", ex.FieldMappings["inf_custom_SMSOptInWebinar"])

	require.Equal(t, map[string]string{
		"inf_form_xid":         "abc123def456",
		"inf_form_name":        "Masterclass Registration",
		"infusionsoft_version": "1.70.0.800357",
	}, ex.HiddenFields)

	require.True(t, ex.HasSMSConsent)
	require.Equal(t, "inf_custom_SMSOptInWebinar", ex.SMSConsentFieldName)

	require.Len(t, ex.TrackingScripts, 3)
	require.Contains(t, ex.TrackingScripts[0], "webTracking")
	require.Contains(t, ex.TrackingScripts[1], "timezone")
	require.Contains(t, ex.TrackingScripts[2], "jquery")

	require.Equal(t, sampleForm, ex.RawFormHTML)
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no form", `<div><input name="inf_form_xid" value="x"/></div>`},
		{"no action", `<form><input name="inf_form_xid" type="hidden" value="x"/></form>`},
		{"no xid", `<form action="https://eu1.infusionsoft.com/app/form/process/x"><input name="inf_field_Email" type="text"/></form>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.html)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseFormNameDefault(t *testing.T) {
	ex, err := Parse(`<form action="https://x.infusionsoft.com/p"><input name="inf_form_xid" type="hidden" value="x"/></form>`)
	require.NoError(t, err)
	require.Equal(t, DefaultFormName, ex.FormName)
}

func TestParseDuplicateHiddenLastWins(t *testing.T) {
	html := `<form action="https://x.infusionsoft.com/p">
		<input name="inf_form_xid" type="hidden" value="x"/>
		<input name="inf_custom_Source" type="hidden" value="first"/>
		<input name="inf_custom_Source" type="hidden" value="second"/>
	</form>`

	// Idempotent across repeated parses of the same input.
	for i := 0; i < 2; i++ {
		ex, err := Parse(html)
		require.NoError(t, err)
		require.Equal(t, "second", ex.HiddenFields["inf_custom_Source"])
	}
}

func TestParseOnlyFirstForm(t *testing.T) {
	html := `
	<form action="https://x.infusionsoft.com/first"><input name="inf_form_xid" type="hidden" value="one"/></form>
	<form action="https://x.infusionsoft.com/second"><input name="other" type="hidden" value="two"/></form>`

	ex, err := Parse(html)
	require.NoError(t, err)
	require.Equal(t, "https://x.infusionsoft.com/first", ex.ActionURL)
}

func TestParseConsentByCheckboxName(t *testing.T) {
	html := `<form action="https://x.infusionsoft.com/p">
		<input name="inf_form_xid" type="hidden" value="x"/>
		<input name="inf_custom_TextReminders" type="checkbox" value="1"/>
	</form>`

	ex, err := Parse(html)
	require.NoError(t, err)
	require.True(t, ex.HasSMSConsent)
	require.Equal(t, "inf_custom_TextReminders", ex.SMSConsentFieldName)
}

func TestParseNoConsentField(t *testing.T) {
	html := `<form action="https://x.infusionsoft.com/p">
		<input name="inf_form_xid" type="hidden" value="x"/>
		<input name="inf_custom_Newsletter" type="checkbox" value="1"/>
		<label for="inf_custom_Newsletter">Send me the newsletter</label>
	</form>`

	ex, err := Parse(html)
	require.NoError(t, err)
	require.False(t, ex.HasSMSConsent)
	require.Empty(t, ex.SMSConsentFieldName)
}

func TestValidate(t *testing.T) {
	ex, err := Parse(sampleForm)
	require.NoError(t, err)
	require.Empty(t, Validate(ex))
}

func TestValidateUnfitExtraction(t *testing.T) {
	// Structurally fine, unfit for submission: no email mapping, no names,
	// foreign action URL. Validation is a separate step; Parse must succeed.
	ex, err := Parse(`<form action="https://example.com/process">
		<input name="inf_form_xid" type="hidden" value="x"/>
		<input name="inf_custom_Company" type="text"/>
	</form>`)
	require.NoError(t, err)

	errs := Validate(ex)
	require.Len(t, errs, 3)
}
