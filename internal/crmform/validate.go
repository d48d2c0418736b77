package crmform

import "strings"

// originDomain is the expected host for Infusionsoft form action URLs.
const originDomain = "infusionsoft.com"

// Validate checks a completed Extraction for fitness for direct submission.
// Parse succeeding only guarantees structure; a form can parse cleanly and
// still be unusable (no email mapping, foreign action URL). Returns the full
// list of problems rather than failing on the first, so the admin can fix the
// snippet in one pass. Callers may treat the result as warnings.
func Validate(ex *Extraction) []string {
	var errs []string

	if ex.ActionURL == "" || !strings.Contains(ex.ActionURL, originDomain) {
		errs = append(errs, "action URL does not point at "+originDomain)
	}
	if ex.XID == "" {
		errs = append(errs, "missing form XID")
	}
	if ex.FieldMappings["email"] == "" {
		errs = append(errs, "email field mapping not found")
	}
	if ex.FieldMappings["firstname"] == "" && ex.FieldMappings["lastname"] == "" {
		errs = append(errs, "at least one name field (first or last) is required")
	}

	return errs
}
