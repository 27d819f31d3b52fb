package probe

import (
	"strconv"
	"strings"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
)

// rule is one declarative reply pattern. A reply matches when its code
// starts with codePrefix (empty matches any code) and its text contains
// any of the substrings (lowercase). New provider signals are new rows
// here, never new branches in the prober.
type rule struct {
	codePrefix string
	substrings []string
	status     model.Status
	reason     model.Reason
}

// providerRules are consulted before genericRules, in declaration
// order. The texts mirror what the providers actually send on RCPT;
// most are stable across years even though none are documented.
var providerRules = map[model.ProviderTag][]rule{
	model.ProviderGmail: {
		{"550", []string{"the email account that you tried to reach does not exist"},
			model.StatusUndeliverable, model.ReasonMailboxDoesNotExist},
		{"452", []string{"the email account that you tried to reach is over quota"},
			model.StatusUndeliverable, model.ReasonMailboxFull},
		{"550", []string{"the account or domain may not exist"},
			model.StatusUndeliverable, model.ReasonMailboxDoesNotExist},
		{"550", []string{"this message does not have authentication information",
			"does not pass authentication checks"},
			model.StatusRisky, model.ReasonAntiSpoofingDetected},
		{"421", []string{"our system has detected an unusual rate"},
			model.StatusUnknown, model.ReasonRateLimited},
	},
	model.ProviderHotmailB2B: {
		{"550", []string{"requested action not taken: mailbox unavailable"},
			model.StatusUndeliverable, model.ReasonMailboxDoesNotExist},
		{"550", []string{"5.4.1", "recipient address rejected: access denied"},
			model.StatusUndeliverable, model.ReasonMailboxDoesNotExist},
		{"5", []string{"5.7.606", "banned sending ip"},
			model.StatusUnknown, model.ReasonBlockedIP},
		{"5", []string{"5.7.1", "unfortunately, messages from"},
			model.StatusUnknown, model.ReasonBlockedReputation},
	},
	model.ProviderHotmailB2C: {
		{"550", []string{"requested action not taken: mailbox unavailable"},
			model.StatusUndeliverable, model.ReasonMailboxDoesNotExist},
		{"5", []string{"5.7.606", "banned sending ip"},
			model.StatusUnknown, model.ReasonBlockedIP},
	},
	model.ProviderYahoo: {
		{"554", []string{"dd this user doesn't have a", "dd requested mail action aborted"},
			model.StatusUndeliverable, model.ReasonMailboxDoesNotExist},
		{"554", []string{"delivery error: dd"},
			model.StatusUndeliverable, model.ReasonMailboxDoesNotExist},
		{"421", []string{"temporarily deferred"},
			model.StatusUnknown, model.ReasonRateLimited},
		{"553", []string{"mail from must match authenticated user"},
			model.StatusRisky, model.ReasonAntiSpoofingDetected},
		{"", []string{"captcha"},
			model.StatusRisky, model.ReasonNeedsCaptcha},
	},
	model.ProviderProton: {
		{"550", []string{"address does not exist"},
			model.StatusUndeliverable, model.ReasonMailboxDoesNotExist},
		{"421", []string{"climbing the reputation"},
			model.StatusUnknown, model.ReasonBlockedReputation},
	},
}

// genericRules cover the phrasing shared by the long tail of mail
// servers. Ordering matters: the narrow greylist rows must fire before
// the broad rate-limit rows.
var genericRules = []rule{
	// Mailbox does not exist.
	{"5", []string{
		"does not exist",
		"unknown user", "user unknown", "user not found", "nosuchuser",
		"no such user", "no such recipient", "no such address",
		"no such mailbox", "invalid mailbox", "mailbox not found",
		"invalid recipient", "recipient not found", "recipient rejected",
		"recipient address rejected", "address rejected",
		"unrouteable address", "undeliverable address",
		"invalid address", "address unknown", "address not found",
		"5.1.1",
	}, model.StatusUndeliverable, model.ReasonMailboxDoesNotExist},

	// Full inbox. Some servers signal it with a 4xx, some with a 5xx.
	{"", []string{
		"mailbox full", "mailbox is full", "over quota", "quota exceeded",
		"exceeded storage allocation", "insufficient system storage",
		"user has exhausted allowed storage space",
		"user has too many messages on the server",
		"4.2.2",
	}, model.StatusUndeliverable, model.ReasonMailboxFull},

	// Disabled or suspended accounts.
	{"5", []string{
		"account disabled", "account inactive", "account has been suspended",
		"mailbox disabled", "mailbox unavailable", "mailbox currently suspended",
		"address no longer accepts mail", "recipient suspend",
		"deactivated", "discontinued",
	}, model.StatusUndeliverable, model.ReasonMailboxDisabled},

	// Greylisting, before the generic transient rows.
	{"4", []string{
		"greylist", "greylisted", "please try later",
	}, model.StatusUnknown, model.ReasonGreylisted},

	// Sending IP on a blocklist.
	{"", []string{
		"blocked using", "spamhaus", "blacklist", "black list",
		"blocklist", "client host rejected", "banned sending ip",
		"denied by policy", "access denied, banned",
		"ip address is blocked", "refused by abuse",
	}, model.StatusUnknown, model.ReasonBlockedIP},

	// Sender reputation trouble.
	{"", []string{
		"poor reputation", "bad reputation", "low reputation",
		"sender ip reputation", "because of the reputation",
	}, model.StatusUnknown, model.ReasonBlockedReputation},

	// Receiver-side pacing.
	{"4", []string{
		"too many connections", "too many requests", "too many errors",
		"rate limit", "ratelimit", "throttl", "slow down",
		"try again later", "temporarily deferred", "temporarily rejected",
		"connection limit exceeded",
	}, model.StatusUnknown, model.ReasonRateLimited},

	// Whole-domain rejection at MAIL FROM / RCPT.
	{"5", []string{
		"domain not found", "relay access denied", "relaying denied",
		"not accepting mail for this domain",
	}, model.StatusUndeliverable, model.ReasonDomainRejected},

	// Anti-spoofing checks on the probe's MAIL FROM identity.
	{"5", []string{
		"anti-spoofing", "spf check failed", "dmarc",
		"sender address rejected: not owned by user",
	}, model.StatusRisky, model.ReasonAntiSpoofingDetected},
}

// Classify canonicalizes one SMTP reply into an outcome. atRcpt tells
// the defaults apart: an unexplained 5xx on RCPT is a judgment about
// the mailbox, anywhere else it says nothing about it.
func Classify(provider model.ProviderTag, code int, text string, atRcpt bool) model.Outcome {
	lower := strings.ToLower(text)
	codeStr := strconv.Itoa(code)

	for _, r := range providerRules[provider] {
		if r.matches(codeStr, lower) {
			return model.Outcome{Status: r.status, Reason: r.reason, Detail: text}
		}
	}
	for _, r := range genericRules {
		if r.matches(codeStr, lower) {
			return model.Outcome{Status: r.status, Reason: r.reason, Detail: text}
		}
	}

	switch {
	case code >= 200 && code < 300:
		if atRcpt {
			return model.Deliverable()
		}
		return model.Outcome{Status: model.StatusDeliverable, Detail: text}
	case code >= 500:
		if atRcpt {
			return model.Undeliverable(model.ReasonMailboxRejected, text)
		}
		return model.Unknown(model.ReasonSMTPUnknown, text)
	default:
		return model.Unknown(model.ReasonSMTPTransient, text)
	}
}

func (r rule) matches(code, lowerText string) bool {
	if r.codePrefix != "" && !strings.HasPrefix(code, r.codePrefix) {
		return false
	}
	for _, s := range r.substrings {
		if strings.Contains(lowerText, s) {
			return true
		}
	}
	return false
}
