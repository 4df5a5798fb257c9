// Package templates renders notification emails.
package templates

import (
	"bytes"
	"html/template"
)

// LeadEmailProps is the data shown in a lead notification.
type LeadEmailProps struct {
	Provider     string
	FormID       string
	LeadID       string
	SessionCount int
	Rows         []Row
}

// Row is one attribution field.
type Row struct {
	Key   string
	Value string
}

var leadTemplate = template.Must(template.New("lead").Parse(`<!doctype html>
<html lang="en">
  <head><meta http-equiv="Content-Type" content="text/html; charset=UTF-8"><title>New lead</title></head>
  <body style="font-family: Helvetica, sans-serif; font-size: 15px; background-color: #f4f5f6; margin: 0; padding: 16px;">
    <h2 style="margin: 0 0 12px 0;">New {{.Provider}} lead</h2>
    <p style="margin: 0 0 12px 0;">Form {{if .FormID}}{{.FormID}}{{else}}(unknown){{end}} &middot; lead {{.LeadID}} &middot; sessions {{.SessionCount}}</p>
    {{if .Rows}}
    <table role="presentation" cellpadding="4" cellspacing="0" style="border-collapse: collapse; background-color: #ffffff;">
      {{range .Rows}}<tr><td style="color: #6e7681;">{{.Key}}</td><td>{{.Value}}</td></tr>
      {{end}}
    </table>
    {{else}}
    <p>No attribution was captured for this visitor.</p>
    {{end}}
  </body>
</html>`))

// GetLeadEmailContent renders the lead notification body.
func GetLeadEmailContent(props LeadEmailProps) (string, error) {
	var buf bytes.Buffer
	if err := leadTemplate.Execute(&buf, props); err != nil {
		return "", err
	}
	return buf.String(), nil
}
