package misc

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
)

const lookupTimeout = 5 * time.Second

// Checker gathers account-quality signals: bundled list membership plus
// optional external lookups. External failures degrade to absent
// signals, never to a failed check.
type Checker struct {
	client       *http.Client
	gravatarBase string
	hibpBase     string
	hibpKey      string
	hibpEnabled  bool
	logger       *zap.Logger
}

func NewChecker(hibpEnabled bool, hibpKey string, logger *zap.Logger) *Checker {
	return &Checker{
		client:       &http.Client{Timeout: lookupTimeout},
		gravatarBase: "https://www.gravatar.com/avatar/",
		hibpBase:     "https://haveibeenpwned.com/api/v3/breachedaccount/",
		hibpKey:      hibpKey,
		hibpEnabled:  hibpEnabled,
		logger:       logger,
	}
}

// Check runs all signals for local@domain. The list lookups are pure;
// gravatar and HIBP go out concurrently with independent timeouts.
func (c *Checker) Check(ctx context.Context, local, domain string) model.MiscDetails {
	details := model.MiscDetails{
		IsDisposable:  IsDisposableDomain(domain),
		IsRoleAccount: IsRoleAccount(local),
		IsFreeEmail:   IsFreeDomain(domain),
	}

	email := strings.ToLower(local + "@" + domain)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		details.GravatarURL = c.gravatar(gctx, email)
		return nil
	})
	g.Go(func() error {
		details.IsBreached = c.haveIBeenPwned(gctx, email)
		return nil
	})
	_ = g.Wait()

	return details
}

// gravatar returns the avatar URL when one is registered for the
// address, nil otherwise.
func (c *Checker) gravatar(ctx context.Context, email string) *string {
	avatarURL := c.gravatarBase + Hash(email) + "?d=404"

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("gravatar lookup failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	return &avatarURL
}

// haveIBeenPwned asks the breach directory about the address. Requires
// an API key; disabled or failing lookups report nil.
func (c *Checker) haveIBeenPwned(ctx context.Context, email string) *bool {
	if !c.hibpEnabled || c.hibpKey == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	reqURL := c.hibpBase + url.PathEscape(email) + "?truncateResponse=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("hibp-api-key", c.hibpKey)
	req.Header.Set("user-agent", "check-if-email-exists")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("hibp lookup failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		breached := true
		return &breached
	case http.StatusNotFound:
		breached := false
		return &breached
	default:
		c.logger.Debug("hibp lookup returned unexpected status",
			zap.Int("status", resp.StatusCode))
		return nil
	}
}

// Hash returns the md5 hex digest gravatar uses to identify an
// address: lowercased and trimmed before hashing.
func Hash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
