// Package probe verifies a mailbox by walking a minimal SMTP dialog
// (EHLO, MAIL FROM, RCPT TO, QUIT) against the domain's exchangers and
// classifying their replies. It never sends mail.
package probe

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/metrics"
)

const smtpPort = 25

// Prober owns the session parameters shared by all probes of one
// process. Immutable after construction.
type Prober struct {
	helloName string
	fromEmail string
	dial      dialFunc
	port      int
	logger    *zap.Logger
}

// New builds a prober. proxyURL is empty for direct connections or a
// socks5:// URL; a malformed URL is a configuration error.
func New(helloName, fromEmail, proxyURL string, logger *zap.Logger) (*Prober, error) {
	dial := directDialer()
	if proxyURL != "" {
		var err error
		if dial, err = socksDialer(proxyURL); err != nil {
			return nil, err
		}
	}
	return &Prober{
		helloName: helloName,
		fromEmail: fromEmail,
		dial:      dial,
		port:      smtpPort,
		logger:    logger,
	}, nil
}

// Probe checks whether the exchangers accept mail for the normalized
// address. Hosts are tried in MX preference order: a definitive answer
// (2xx or 5xx on RCPT) from any host ends the walk, transient trouble
// moves to the next one. Exhausting every host without a definitive
// answer yields Unknown.
func (p *Prober) Probe(ctx context.Context, email string, records []model.MxRecord, provider model.ProviderTag) model.SmtpDetails {
	details := model.SmtpDetails{
		Outcome: model.Unknown(model.ReasonSMTPTransient, "no exchanger gave a definitive answer"),
	}
	if len(records) == 0 {
		details.Outcome = model.Undeliverable(model.ReasonNoSuchHost, "no mail exchangers")
		return details
	}

	domain := email[strings.LastIndex(email, "@")+1:]

	for _, rec := range records {
		if ctx.Err() != nil {
			details.Outcome = model.Unknown(model.ReasonTimeout, "verification budget exhausted")
			return details
		}

		outcome, connected, terminal := p.probeHost(ctx, rec.Host, email, domain, provider)
		details.CanConnect = details.CanConnect || connected

		metrics.IncrementSMTPSession(string(provider), string(outcome.Status))

		if terminal {
			details.Outcome = outcome
			break
		}
		// Keep the most specific transient reason seen so far;
		// greylisting in particular must survive the host walk.
		if outcome.Reason != model.ReasonSMTPTransient || details.Outcome.Reason == model.ReasonSMTPTransient {
			details.Outcome = outcome
		}
	}

	switch details.Outcome.Status {
	case model.StatusDeliverable:
		details.IsDeliverable = true
	case model.StatusRisky:
		details.IsDeliverable = details.Outcome.Reason == model.ReasonCatchAll
		details.IsCatchAll = details.Outcome.Reason == model.ReasonCatchAll
	}
	switch details.Outcome.Reason {
	case model.ReasonMailboxFull:
		details.HasFullInbox = true
	case model.ReasonMailboxDisabled:
		details.IsDisabled = true
	}
	return details
}

// probeHost runs the dialog against one exchanger. terminal reports
// whether the outcome settles the whole probe (a definitive server
// judgment, a catch-all verdict, or a proxy/TLS failure that would
// repeat identically on every other host).
func (p *Prober) probeHost(ctx context.Context, host, email, domain string, provider model.ProviderTag) (outcome model.Outcome, connected, terminal bool) {
	retried := false

	for {
		var r model.Outcome
		r, connected = p.runSession(ctx, host, email, domain, provider)

		// One 4xx retry per host, greylisting included: some servers
		// accept the second attempt immediately.
		if r.Status == model.StatusUnknown && retryableOnHost(r.Reason) && !retried {
			retried = true
			continue
		}

		switch {
		case r.Status != model.StatusUnknown:
			return r, connected, true
		case r.Reason == model.ReasonProxyError, r.Reason == model.ReasonTLSError:
			return r, connected, true
		default:
			return r, connected, false
		}
	}
}

// runSession is one full SMTP conversation: connect, EHLO, optional
// STARTTLS, MAIL FROM, RCPT TO, catch-all RCPT, QUIT.
func (p *Prober) runSession(ctx context.Context, host, email, domain string, provider model.ProviderTag) (model.Outcome, bool) {
	s, err := open(ctx, p.dial, host, p.port)
	if err != nil {
		return p.classifyDialError(host, err), false
	}
	defer s.quit()

	if _, err := s.hello(p.helloName); err != nil {
		return p.classifyIOError(host, err), true
	}
	if err := s.maybeStartTLS(p.helloName); err != nil {
		var tlsErr errTLS
		if errors.As(err, &tlsErr) {
			return model.Unknown(model.ReasonTLSError, err.Error()), true
		}
		return p.classifyIOError(host, err), true
	}

	mr, rr, err := s.mailAndRcpt(p.fromEmail, email)
	if err != nil {
		return p.classifyIOError(host, err), true
	}
	if mr.code >= 400 {
		return Classify(provider, mr.code, mr.text, false), true
	}

	outcome := Classify(provider, rr.code, rr.text, true)
	if outcome.Status != model.StatusDeliverable {
		return outcome, true
	}

	// The target was accepted; only a rejected random local-part
	// proves the acceptance meant anything.
	return p.catchAllCheck(ctx, s, host, domain, provider), true
}

// catchAllCheck issues the companion RCPT with a random local-part. A
// second acceptance downgrades the positive target reply to a
// catch-all signal. Servers that drop the session after one RCPT get a
// fresh session instead.
func (p *Prober) catchAllCheck(ctx context.Context, s *session, host, domain string, provider model.ProviderTag) model.Outcome {
	random := randomLocalPart() + "@" + domain

	r, err := s.rcptTo(random)
	if err != nil {
		// Session gone; retry the catch-all probe on a fresh one.
		fresh, openErr := open(ctx, p.dial, host, p.port)
		if openErr != nil {
			p.logger.Debug("catch-all re-session failed",
				zap.String("host", host), zap.Error(openErr))
			return model.Deliverable()
		}
		defer fresh.quit()

		if _, err := fresh.hello(p.helloName); err != nil {
			return model.Deliverable()
		}
		if err := fresh.maybeStartTLS(p.helloName); err != nil {
			return model.Deliverable()
		}
		_, r, err = fresh.mailAndRcpt(p.fromEmail, random)
		if err != nil {
			return model.Deliverable()
		}
	}

	if r.code >= 200 && r.code < 300 {
		return model.Risky(model.ReasonCatchAll, "domain accepts any local-part")
	}
	return model.Deliverable()
}

func (p *Prober) classifyDialError(host string, err error) model.Outcome {
	var pe errProxy
	if errors.As(err, &pe) {
		return model.Unknown(model.ReasonProxyError, err.Error())
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() || errors.Is(err, context.DeadlineExceeded) {
		return model.Unknown(model.ReasonConnectTimeout, "connect to "+host+" timed out")
	}
	// Refused or unreachable exchangers are transient for the walk: the
	// next host, or a redelivery, may still answer.
	p.logger.Debug("SMTP connect failed", zap.String("host", host), zap.Error(err))
	return model.Unknown(model.ReasonSMTPTransient, err.Error())
}

func (p *Prober) classifyIOError(host string, err error) model.Outcome {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() || errors.Is(err, context.DeadlineExceeded) {
		return model.Unknown(model.ReasonReadTimeout, "command to "+host+" timed out")
	}
	p.logger.Debug("SMTP session failed", zap.String("host", host), zap.Error(err))
	return model.Unknown(model.ReasonSMTPTransient, err.Error())
}

// retryableOnHost covers the 4xx-born reasons worth one immediate
// second attempt against the same exchanger.
func retryableOnHost(r model.Reason) bool {
	switch r {
	case model.ReasonSMTPTransient, model.ReasonGreylisted, model.ReasonRateLimited:
		return true
	}
	return false
}

const localPartAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomLocalPart builds the 32-character local-part for the catch-all
// probe. Collisions with a real mailbox are astronomically unlikely.
func randomLocalPart() string {
	b := make([]byte, 32)
	for i := range b {
		b[i] = localPartAlphabet[rand.Intn(len(localPartAlphabet))]
	}
	return string(b)
}
