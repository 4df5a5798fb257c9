package forms

// ProviderWPForms identifies WPForms.
const ProviderWPForms = "wpforms"

// WPFormsAdapter integrates WPForms. Every posted field is nested under
// wpforms[fields][...] and the form id is wpforms[id].
type WPFormsAdapter struct {
	base
}

// NewWPFormsAdapter creates the WPForms adapter.
func NewWPFormsAdapter(env Environment, settings Settings) *WPFormsAdapter {
	return &WPFormsAdapter{base{
		provider:   ProviderWPForms,
		platform:   "WPForms",
		fieldsHook: "wpforms_display_submit_before",
		submitHook: "wpforms_process_complete",
		env:        env,
		settings:   settings,
		postedNames: func(field string) []string {
			return []string{"wpforms[fields][" + field + "]"}
		},
		formID: func(sub *Submission) string {
			return firstField(sub.Fields, "wpforms[id]")
		},
	}}
}
