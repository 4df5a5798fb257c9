package forms

// ProviderCF7 identifies Contact Form 7.
const ProviderCF7 = "contact-form-7"

// CF7Adapter integrates Contact Form 7. Hidden fields are posted under their
// own names and the form id travels in _wpcf7.
type CF7Adapter struct {
	base
}

// NewCF7Adapter creates the Contact Form 7 adapter.
func NewCF7Adapter(env Environment, settings Settings) *CF7Adapter {
	return &CF7Adapter{base{
		provider:   ProviderCF7,
		platform:   "Contact Form 7",
		fieldsHook: "wpcf7_form_hidden_fields",
		submitHook: "wpcf7_before_send_mail",
		env:        env,
		settings:   settings,
		formID: func(sub *Submission) string {
			return firstField(sub.Fields, "_wpcf7")
		},
	}}
}
