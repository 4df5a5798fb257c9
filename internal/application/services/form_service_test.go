package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/events"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/forms"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/metrics"
)

func newFormService(t *testing.T, requireConsent bool, repo *fakeLeadRepo) *FormService {
	t.Helper()
	f := newFixture(t, requireConsent)
	logger := logging.NewDiscardLogger()
	leads := NewLeadService(repo, nil, metrics.New(), logger)
	registry := forms.NewRegistry(forms.NewPlatformSet(forms.ProviderCF7, forms.ProviderGravityForms), forms.Settings{
		RequireConsent: requireConsent,
		Recorder:       leads,
		Logger:         logger.Forms(),
	})
	return NewFormService(registry, f.svc, logger)
}

func TestFormServiceSubmit(t *testing.T) {
	repo := &fakeLeadRepo{}
	svc := newFormService(t, false, repo)

	req := CollectRequest{
		URL:     "https://shop.test/contact",
		Cookies: []*http.Cookie{{Name: "ct_attribution", Value: url.QueryEscape(storedRecord(t, 3))}},
	}
	sub := &forms.Submission{Fields: map[string]string{"_wpcf7": "77", "your-email": "a@b.c"}}

	res, err := svc.Submit(context.Background(), forms.ProviderCF7, req, sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(res.DataLayer) != 2 || res.DataLayer[0].Name() != events.EventLead || res.DataLayer[1].Name() != events.EventLegacyLead {
		t.Fatalf("data layer = %v", res.DataLayer)
	}
	if res.DataLayer[0]["ft_source"] != "newsletter" || res.DataLayer[0]["form_id"] != "77" {
		t.Fatalf("lead event = %v", res.DataLayer[0])
	}
	if res.Lead == nil || len(repo.leads) != 1 || repo.leads[0].Attribution.SessionCount != 3 {
		t.Fatalf("lead not recorded: %+v", res.Lead)
	}
}

func TestFormServiceSubmitForwardsToTagger(t *testing.T) {
	svc := newFormService(t, false, &fakeLeadRepo{})

	var names []string
	var params map[string]any
	req := CollectRequest{
		URL:     "https://shop.test/contact",
		Cookies: []*http.Cookie{{Name: "ct_attribution", Value: url.QueryEscape(storedRecord(t, 2))}},
		Tagger: events.TaggerFunc(func(name string, p map[string]any) {
			names = append(names, name)
			params = p
		}),
	}
	sub := &forms.Submission{Fields: map[string]string{"_wpcf7": "9"}}
	if _, err := svc.Submit(context.Background(), forms.ProviderCF7, req, sub); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(names) != 1 || names[0] != events.EventLead {
		t.Fatalf("tagger calls = %v", names)
	}
	if params["ft_source"] != "newsletter" || params["form_id"] != "9" {
		t.Fatalf("params = %v", params)
	}
}

func TestFormServiceFields(t *testing.T) {
	req := CollectRequest{
		URL:     "https://shop.test/contact",
		Cookies: []*http.Cookie{{Name: "ct_attribution", Value: url.QueryEscape(storedRecord(t, 1))}},
	}

	gated := newFormService(t, true, &fakeLeadRepo{})
	fields, err := gated.Fields(context.Background(), forms.ProviderGravityForms, req)
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("no consent, expected no fields: %v", fields)
	}

	req.Cookies = append(req.Cookies, consentCookie(true))
	fields, err = gated.Fields(context.Background(), forms.ProviderGravityForms, req)
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	if fields["ct_ft_source"] != "newsletter" || fields["ct_session_count"] != "1" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestFormServiceProviders(t *testing.T) {
	svc := newFormService(t, false, &fakeLeadRepo{})
	req := CollectRequest{URL: "https://shop.test/"}

	if _, err := svc.Fields(context.Background(), forms.ProviderWPForms, req); !errors.Is(err, forms.ErrInactiveProvider) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Submit(context.Background(), "typeform", req, &forms.Submission{}); !errors.Is(err, forms.ErrUnknownProvider) {
		t.Fatalf("err = %v", err)
	}
}
