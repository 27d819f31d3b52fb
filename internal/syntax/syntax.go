package syntax

import (
	"strings"

	"github.com/badoux/checkmail"
	"golang.org/x/net/idna"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
)

// RFC 5321 §4.5.3.1 size limits.
const (
	maxLocalLen  = 64
	maxDomainLen = 255
)

// Check parses input into its canonical form. No network I/O happens
// here; an invalid result stops the pipeline before any lookup runs.
//
// The domain is lowercased and IDN-mapped to ASCII. The local part
// keeps its wire case in Local but is lowercased in Normalized, since
// mailbox names compare case-insensitively in practice.
func Check(input string) model.SyntaxDetails {
	addr := strings.TrimSpace(input)

	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return model.SyntaxDetails{}
	}

	local, rawDomain := addr[:at], addr[at+1:]
	if len(local) > maxLocalLen || len(rawDomain) > maxDomainLen {
		return model.SyntaxDetails{}
	}

	domain, err := idna.Lookup.ToASCII(strings.ToLower(rawDomain))
	if err != nil {
		return model.SyntaxDetails{}
	}

	normalized := strings.ToLower(local) + "@" + domain
	if err := checkmail.ValidateFormat(normalized); err != nil {
		return model.SyntaxDetails{}
	}

	details := model.SyntaxDetails{
		IsValid:    true,
		Local:      local,
		Domain:     domain,
		Normalized: normalized,
	}
	if corrected := SuggestDomain(domain); corrected != "" {
		details.Suggestion = strings.ToLower(local) + "@" + corrected
	}
	return details
}
