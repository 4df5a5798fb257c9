// Package reporting delivers PII risk reports to the site's AJAX endpoint.
package reporting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/security"
)

const reportTimeout = 10 * time.Second

// NonceSource issues nonces for an action.
type NonceSource interface {
	Issue(action string) (string, error)
}

// PIIReporter posts a multipart risk report in the background. Responses are
// ignored and failures are only logged; there is no retry.
type PIIReporter struct {
	endpoint string
	nonces   NonceSource
	client   *http.Client
	logger   *logging.ChanneledLogger
	wg       sync.WaitGroup
}

// NewPIIReporter creates a reporter. nonces may be nil.
func NewPIIReporter(endpoint string, nonces NonceSource, client *http.Client, logger *logging.ChanneledLogger) *PIIReporter {
	if client == nil {
		client = &http.Client{Timeout: reportTimeout}
	}
	return &PIIReporter{endpoint: endpoint, nonces: nonces, client: client, logger: logger}
}

// ReportRisk sends the report without waiting for it. The request outlives
// ctx's cancellation but not its values.
func (r *PIIReporter) ReportRisk(ctx context.Context, pageURL string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
		defer cancel()
		if err := r.send(sendCtx, pageURL); err != nil {
			r.logger.WithContext(logging.ChannelPII, ctx).Error("Error logging PII risk", "error", err.Error(), "endpoint", r.endpoint)
			return
		}
		r.logger.PII().Debug("PII risk report sent", "endpoint", r.endpoint)
	}()
}

// Wait blocks until every in-flight report has finished.
func (r *PIIReporter) Wait() {
	r.wg.Wait()
}

func (r *PIIReporter) send(ctx context.Context, pageURL string) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := [][2]string{
		{"action", security.NonceAction},
		{"pii_found", "true"},
	}
	if r.nonces != nil {
		nonce, err := r.nonces.Issue(security.NonceAction)
		if err != nil {
			return fmt.Errorf("failed to issue nonce: %w", err)
		}
		fields = append(fields, [2]string{"nonce", nonce})
	}
	if pageURL != "" {
		fields = append(fields, [2]string{"page_url", pageURL})
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
