package headless

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
)

const apiTimeout = 12 * time.Second

// APIClient verifies addresses against provider account endpoints
// instead of SMTP. Only gmail and yahoo expose something usable; other
// providers configured "api" come back Unknown(skipped). Like the
// headless path, API calls never ride the SOCKS5 proxy.
type APIClient struct {
	http      *http.Client
	gmailBase string
	yahooBase string
	logger    *zap.Logger
}

func NewAPIClient(logger *zap.Logger) *APIClient {
	return &APIClient{
		http:      &http.Client{Timeout: apiTimeout},
		gmailBase: "https://mail.google.com/mail/gxlu",
		yahooBase: "https://login.yahoo.com/account/module/create",
		logger:    logger,
	}
}

// Check dispatches to the provider's endpoint.
func (c *APIClient) Check(ctx context.Context, email string, provider model.ProviderTag) model.SmtpDetails {
	switch provider {
	case model.ProviderGmail:
		return c.checkGmail(ctx, email)
	case model.ProviderYahoo:
		return c.checkYahoo(ctx, email)
	default:
		return model.SmtpDetails{
			Outcome: model.Unknown(model.ReasonSkipped,
				fmt.Sprintf("no API endpoint for provider %s", provider)),
		}
	}
}

// checkGmail uses the gxlu autocomplete endpoint: Gmail sets a cookie
// on the response exactly when the account exists.
func (c *APIClient) checkGmail(ctx context.Context, email string) model.SmtpDetails {
	reqURL := c.gmailBase + "?email=" + url.QueryEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return backendFailed(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("gmail API lookup failed", zap.Error(err))
		return backendFailed(err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Set-Cookie") != "" {
		return model.SmtpDetails{
			Outcome:       model.Deliverable(),
			CanConnect:    true,
			IsDeliverable: true,
		}
	}
	return model.SmtpDetails{
		Outcome:    model.Undeliverable(model.ReasonMailboxDoesNotExist, "gmail account lookup found no account"),
		CanConnect: true,
	}
}

// checkYahoo drives the signup validation endpoint: asking to create
// an account with a taken user id comes back IDENTIFIER_EXISTS.
func (c *APIClient) checkYahoo(ctx context.Context, email string) model.SmtpDetails {
	local := email[:strings.LastIndex(email, "@")]

	form := url.Values{}
	form.Set("specId", "yidregsimplified")
	form.Set("userId", local)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.yahooBase+"?validateField=userId", strings.NewReader(form.Encode()))
	if err != nil {
		return backendFailed(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("yahoo API lookup failed", zap.Error(err))
		return backendFailed(err)
	}
	defer resp.Body.Close()

	var body struct {
		Errors []struct {
			Name  string `json:"name"`
			Error string `json:"error"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return backendFailed(err)
	}

	for _, e := range body.Errors {
		if e.Name != "userId" {
			continue
		}
		switch e.Error {
		case "IDENTIFIER_EXISTS", "RESERVED_WORD_PRESENT":
			return model.SmtpDetails{
				Outcome:       model.Deliverable(),
				CanConnect:    true,
				IsDeliverable: true,
			}
		}
	}
	return model.SmtpDetails{
		Outcome:    model.Undeliverable(model.ReasonMailboxDoesNotExist, "yahoo account lookup found no account"),
		CanConnect: true,
	}
}

func backendFailed(err error) model.SmtpDetails {
	return model.SmtpDetails{
		Outcome: model.Unknown(model.ReasonBackendUnreachable, err.Error()),
	}
}
