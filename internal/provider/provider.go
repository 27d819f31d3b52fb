package provider

import (
	"strings"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
)

// DNS zones operated by the big providers. MX hosts are canonical
// (lowercase, trailing dot) by the time they get here.
var (
	googleZones = []string{"google.com.", "googlemail.com."}
	outlookZones = []string{
		"mail.protection.outlook.com.",
		"olc.protection.outlook.com.",
		"outlook.com.",
	}
	yahooZones  = []string{"yahoodns.net."}
	protonZones = []string{"protonmail.ch."}
)

// Mailbox domains the providers run themselves, beyond the prefixed
// country variants.
var (
	yahooDomains = map[string]struct{}{
		"ymail.com":      {},
		"rocketmail.com": {},
		"aol.com":        {},
		"aim.com":        {},
	}
	protonDomains = map[string]struct{}{
		"proton.me":      {},
		"protonmail.com": {},
		"protonmail.ch":  {},
		"pm.me":          {},
	}
)

// Classify maps an address domain and its MX set to a provider tag.
// The domain alone settles the provider-owned consumer domains; MX
// zone suffixes catch custom domains hosted on a big provider. The
// zone order is significant because several zones nest (outlook.com.
// is a suffix of mail.protection.outlook.com.).
func Classify(domain string, records []model.MxRecord) model.ProviderTag {
	if tag, ok := ClassifyDomain(domain); ok {
		return tag
	}
	switch {
	case anyInZones(records, googleZones):
		return model.ProviderGmail
	case anyInZones(records, outlookZones):
		return model.ProviderHotmailB2B
	case anyInZones(records, yahooZones):
		return model.ProviderYahoo
	case anyInZones(records, protonZones):
		return model.ProviderProton
	default:
		return model.ProviderGeneric
	}
}

// ClassifyDomain maps a bare address domain to a provider tag without
// DNS evidence. ok reports whether the domain alone was conclusive;
// routing decisions made before any MX lookup must treat a false
// answer as "unknown", not as generic.
func ClassifyDomain(domain string) (model.ProviderTag, bool) {
	switch {
	case domain == "gmail.com" || domain == "googlemail.com":
		return model.ProviderGmail, true
	case isMicrosoftConsumerDomain(domain):
		return model.ProviderHotmailB2C, true
	case isYahooDomain(domain):
		return model.ProviderYahoo, true
	case isProtonDomain(domain):
		return model.ProviderProton, true
	}
	return model.ProviderGeneric, false
}

// isMicrosoftConsumerDomain covers the Microsoft free mailbox domains
// in every country variant: outlook.*, hotmail.*, live.* and msn.com.
// A corporate tenant behind Outlook MX is not on this list and ends up
// hotmail_b2b instead.
func isMicrosoftConsumerDomain(domain string) bool {
	if domain == "msn.com" {
		return true
	}
	for _, prefix := range []string{"outlook.", "hotmail.", "live."} {
		if strings.HasPrefix(domain, prefix) {
			return true
		}
	}
	return false
}

// isYahooDomain covers the Yahoo free mailbox domains: yahoo.* in
// every country variant plus the acquired brands.
func isYahooDomain(domain string) bool {
	if _, ok := yahooDomains[domain]; ok {
		return true
	}
	return strings.HasPrefix(domain, "yahoo.")
}

func isProtonDomain(domain string) bool {
	_, ok := protonDomains[domain]
	return ok
}

func anyInZones(records []model.MxRecord, zones []string) bool {
	for _, rec := range records {
		for _, zone := range zones {
			if inZone(rec.Host, zone) {
				return true
			}
		}
	}
	return false
}

// inZone matches on label boundaries so notgoogle.com. never matches
// the google.com. zone.
func inZone(host, zone string) bool {
	return host == zone || strings.HasSuffix(host, "."+zone)
}
