package forms

import "strings"

// ProviderGravityForms identifies Gravity Forms.
const ProviderGravityForms = "gravity-forms"

// GravityFormsAdapter integrates Gravity Forms, which posts hidden inputs as
// input_<name> and the form id in gform_submit.
type GravityFormsAdapter struct {
	base
}

// NewGravityFormsAdapter creates the Gravity Forms adapter.
func NewGravityFormsAdapter(env Environment, settings Settings) *GravityFormsAdapter {
	return &GravityFormsAdapter{base{
		provider:   ProviderGravityForms,
		platform:   "Gravity Forms",
		fieldsHook: "gform_pre_render",
		submitHook: "gform_after_submission",
		env:        env,
		settings:   settings,
		postedNames: func(field string) []string {
			return []string{"input_" + field, field}
		},
		formID: func(sub *Submission) string {
			id := firstField(sub.Fields, "gform_submit", "form_id")
			return strings.TrimPrefix(id, "gform_")
		},
	}}
}
