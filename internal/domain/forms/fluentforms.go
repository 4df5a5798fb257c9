package forms

import (
	"context"
	"net/url"
)

// ProviderFluentForms identifies Fluent Forms.
const ProviderFluentForms = "fluent-forms"

// FluentFormsAdapter integrates Fluent Forms. Its AJAX submit sends the form
// serialized as a query string in the data field next to form_id.
type FluentFormsAdapter struct {
	base
}

// NewFluentFormsAdapter creates the Fluent Forms adapter.
func NewFluentFormsAdapter(env Environment, settings Settings) *FluentFormsAdapter {
	return &FluentFormsAdapter{base{
		provider:   ProviderFluentForms,
		platform:   "Fluent Forms",
		fieldsHook: "fluentform/rendering_form",
		submitHook: "fluentform/before_insert_submission",
		env:        env,
		settings:   settings,
		formID: func(sub *Submission) string {
			return firstField(sub.Fields, "form_id")
		},
	}}
}

// RegisterHooks binds the Fluent-specific submission handler.
func (a *FluentFormsAdapter) RegisterHooks(h *Hooks) {
	h.AddFilter(a.fieldsHook, a.PopulateFields)
	h.AddAction(a.submitHook, a.OnSubmission)
}

// OnSubmission unpacks the serialized data field before handing off.
func (a *FluentFormsAdapter) OnSubmission(ctx context.Context, sub *Submission) {
	if sub == nil {
		return
	}
	expanded := expandSerialized(sub)
	a.base.OnSubmission(ctx, expanded)
	sub.Lead = expanded.Lead
}

func expandSerialized(sub *Submission) *Submission {
	raw, ok := sub.Fields["data"]
	if !ok {
		return sub
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return sub
	}
	fields := make(map[string]string, len(sub.Fields)+len(values))
	for k := range values {
		fields[k] = values.Get(k)
	}
	for k, v := range sub.Fields {
		if k != "data" {
			fields[k] = v
		}
	}
	expanded := *sub
	expanded.Fields = fields
	return &expanded
}
