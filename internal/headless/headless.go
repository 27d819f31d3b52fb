// Package headless dispatches verifications to a browser-automation
// backend for providers whose SMTP servers answer everything with
// 250. The backend drives the provider's password-recovery flow and
// reports the shaped outcome; which WebDriver runs it is its business.
package headless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/circuitbreaker"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/metrics"
)

const requestTimeout = 45 * time.Second

// Client talks to the headless verification endpoint. The SOCKS5 proxy
// is deliberately not applied here: browser traffic carries no
// deliverability signal worth attributing to a probe IP.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

type checkRequest struct {
	Input    string            `json:"input"`
	Provider model.ProviderTag `json:"provider"`
}

type checkResponse struct {
	Input   string       `json:"input"`
	Outcome model.Status `json:"outcome"`
	Reason  model.Reason `json:"reason,omitempty"`
}

// Check asks the backend about one address. Every failure mode of the
// backend (unconfigured, open breaker, network trouble, non-2xx,
// garbage body) collapses into Unknown(backend_unreachable); the
// backend never gets to mark an address invalid by being broken.
func (c *Client) Check(ctx context.Context, email string, provider model.ProviderTag) model.SmtpDetails {
	if c.baseURL == "" {
		return model.SmtpDetails{
			Outcome: model.Unknown(model.ReasonBackendUnreachable, "no webdriver_addr configured"),
		}
	}

	var resp checkResponse
	start := time.Now()
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.post(ctx, checkRequest{Input: email, Provider: provider}, &resp)
	})
	metrics.RecordBackendCallLatency(c.baseURL, statusLabel(err), time.Since(start))

	if err != nil {
		c.logger.Warn("headless backend call failed",
			zap.String("provider", string(provider)),
			zap.Error(err),
		)
		return model.SmtpDetails{
			Outcome: model.Unknown(model.ReasonBackendUnreachable, err.Error()),
		}
	}

	return shape(resp)
}

func (c *Client) post(ctx context.Context, reqBody checkRequest, out *checkResponse) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/check_email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("headless backend returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// shape translates the backend's canonical result into SmtpDetails.
// The backend observed the provider's account machinery, so a positive
// answer counts as a connected, deliverable mailbox.
func shape(resp checkResponse) model.SmtpDetails {
	details := model.SmtpDetails{
		Outcome:    model.Outcome{Status: resp.Outcome, Reason: resp.Reason},
		CanConnect: true,
	}

	switch resp.Outcome {
	case model.StatusDeliverable:
		details.IsDeliverable = true
	case model.StatusUndeliverable, model.StatusRisky, model.StatusUnknown:
		// Reason carries the detail.
	default:
		details.Outcome = model.Unknown(model.ReasonBackendUnreachable,
			fmt.Sprintf("unrecognized outcome %q", resp.Outcome))
		details.CanConnect = false
	}

	switch resp.Reason {
	case model.ReasonMailboxFull:
		details.HasFullInbox = true
	case model.ReasonMailboxDisabled:
		details.IsDisabled = true
	}
	return details
}

func statusLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
