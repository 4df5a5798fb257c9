package forms

// ProviderNinjaForms identifies Ninja Forms.
const ProviderNinjaForms = "ninja-forms"

// NinjaFormsAdapter integrates Ninja Forms.
type NinjaFormsAdapter struct {
	base
}

// NewNinjaFormsAdapter creates the Ninja Forms adapter.
func NewNinjaFormsAdapter(env Environment, settings Settings) *NinjaFormsAdapter {
	return &NinjaFormsAdapter{base{
		provider:   ProviderNinjaForms,
		platform:   "Ninja Forms",
		fieldsHook: "ninja_forms_display_fields",
		submitHook: "ninja_forms_after_submission",
		env:        env,
		settings:   settings,
		formID: func(sub *Submission) string {
			return firstField(sub.Fields, "form_id", "id")
		},
	}}
}
