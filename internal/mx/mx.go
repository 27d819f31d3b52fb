package mx

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
)

// DefaultTimeout bounds one MX resolution end to end, fallback
// included.
const DefaultTimeout = 5 * time.Second

// Resolver is the subset of net.Resolver the lookup needs. Tests swap
// in a scripted implementation.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Lookup resolves and ranks the mail exchangers of a domain.
type Lookup struct {
	resolver Resolver
	timeout  time.Duration
	logger   *zap.Logger
}

func NewLookup(logger *zap.Logger) *Lookup {
	return &Lookup{
		resolver: &net.Resolver{PreferGo: true},
		timeout:  DefaultTimeout,
		logger:   logger,
	}
}

// Resolve returns the ranked MX set for domain. A non-nil outcome is
// terminal for the whole check: either the domain can never receive
// mail (no_such_host) or DNS did not answer in time (dns_timeout).
func (l *Lookup) Resolve(ctx context.Context, domain string) (model.MxDetails, *model.Outcome) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	records, err := l.resolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		switch {
		case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
			return l.implicitMX(ctx, domain)
		case errors.As(err, &dnsErr) && dnsErr.IsTimeout,
			errors.Is(err, context.DeadlineExceeded):
			outcome := model.Unknown(model.ReasonDNSTimeout, "MX lookup timed out")
			return model.MxDetails{}, &outcome
		default:
			l.logger.Debug("MX lookup failed", zap.String("domain", domain), zap.Error(err))
			outcome := model.Unknown(model.ReasonDNSTimeout, err.Error())
			return model.MxDetails{}, &outcome
		}
	}

	if len(records) == 0 {
		return l.implicitMX(ctx, domain)
	}

	// RFC 7505: a single "." exchanger means the domain refuses mail
	// outright.
	if len(records) == 1 && records[0].Host == "." {
		outcome := model.Undeliverable(model.ReasonNoSuchHost, "domain publishes a null MX record")
		return model.MxDetails{AcceptsMail: false}, &outcome
	}

	ranked := make([]model.MxRecord, 0, len(records))
	for _, r := range records {
		if r.Host == "" || r.Host == "." {
			continue
		}
		ranked = append(ranked, model.MxRecord{
			Pref: r.Pref,
			Host: canonicalHost(r.Host),
		})
	}
	if len(ranked) == 0 {
		return l.implicitMX(ctx, domain)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Pref != ranked[j].Pref {
			return ranked[i].Pref < ranked[j].Pref
		}
		return ranked[i].Host < ranked[j].Host
	})

	return model.MxDetails{AcceptsMail: true, Records: ranked}, nil
}

// implicitMX applies the RFC 5321 §5.1 fallback: a domain with no MX
// but at least one address record is its own mail exchanger at
// preference zero.
func (l *Lookup) implicitMX(ctx context.Context, domain string) (model.MxDetails, *model.Outcome) {
	addrs, err := l.resolver.LookupIPAddr(ctx, domain)
	if err != nil || len(addrs) == 0 {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsTimeout || errors.Is(err, context.DeadlineExceeded) {
			outcome := model.Unknown(model.ReasonDNSTimeout, "address lookup timed out")
			return model.MxDetails{}, &outcome
		}
		outcome := model.Undeliverable(model.ReasonNoSuchHost, "no MX or address records for domain")
		return model.MxDetails{AcceptsMail: false}, &outcome
	}

	return model.MxDetails{
		AcceptsMail: true,
		Records:     []model.MxRecord{{Pref: 0, Host: canonicalHost(domain)}},
	}, nil
}

// canonicalHost lowercases and keeps the trailing dot, so provider
// suffix matching sees one spelling of every exchanger.
func canonicalHost(host string) string {
	host = strings.ToLower(host)
	if !strings.HasSuffix(host, ".") {
		host += "."
	}
	return host
}
