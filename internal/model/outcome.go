package model

// Status is the SMTP-level classification of a probe.
type Status string

const (
	StatusDeliverable   Status = "deliverable"
	StatusUndeliverable Status = "undeliverable"
	StatusRisky         Status = "risky"
	StatusUnknown       Status = "unknown"
)

// Reason is the closed taxonomy attached to non-deliverable outcomes.
// New signals require extending this list, not ad-hoc strings.
type Reason string

const (
	// Input errors.
	ReasonSyntaxInvalid Reason = "syntax_invalid"
	ReasonDomainInvalid Reason = "domain_invalid"

	// Transport transient.
	ReasonDNSTimeout     Reason = "dns_timeout"
	ReasonConnectTimeout Reason = "connect_timeout"
	ReasonReadTimeout    Reason = "read_timeout"
	ReasonProxyError     Reason = "proxy_error"
	ReasonTLSError       Reason = "tls_error"
	ReasonSMTPTransient  Reason = "smtp_transient"

	// SMTP categorical.
	ReasonMailboxDoesNotExist Reason = "mailbox_does_not_exist"
	ReasonMailboxFull         Reason = "mailbox_full"
	ReasonMailboxDisabled     Reason = "mailbox_disabled"
	ReasonMailboxRejected     Reason = "mailbox_rejected"
	ReasonDomainRejected      Reason = "domain_rejected"
	ReasonNoSuchHost          Reason = "no_such_host"

	// SMTP policy signals.
	ReasonBlockedIP            Reason = "blocked_ip"
	ReasonBlockedReputation    Reason = "blocked_reputation"
	ReasonRateLimited          Reason = "rate_limited"
	ReasonGreylisted           Reason = "greylisted"
	ReasonAntiSpoofingDetected Reason = "anti_spoofing_detected"
	ReasonNeedsCaptcha         Reason = "needs_captcha"
	ReasonCatchAll             Reason = "catch_all"

	// Everything else.
	ReasonBackendUnreachable Reason = "backend_unreachable"
	ReasonTimeout            Reason = "timeout"
	ReasonSMTPUnknown        Reason = "smtp_unknown"
	ReasonSkipped            Reason = "skipped"
	ReasonInternalError      Reason = "internal_error"
)

// Outcome is the canonical result of one verification path (SMTP dialog,
// headless probe, or provider API). Detail carries the raw server text
// that produced the classification, when there is one.
type Outcome struct {
	Status Status `json:"status"`
	Reason Reason `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func Deliverable() Outcome {
	return Outcome{Status: StatusDeliverable}
}

func Undeliverable(reason Reason, detail string) Outcome {
	return Outcome{Status: StatusUndeliverable, Reason: reason, Detail: detail}
}

func Risky(reason Reason, detail string) Outcome {
	return Outcome{Status: StatusRisky, Reason: reason, Detail: detail}
}

func Unknown(reason Reason, detail string) Outcome {
	return Outcome{Status: StatusUnknown, Reason: reason, Detail: detail}
}

// IsTransient reports whether the outcome is worth a redelivery: the
// remote state was not observed, so a later attempt may do better.
func (o Outcome) IsTransient() bool {
	if o.Status != StatusUnknown {
		return false
	}
	switch o.Reason {
	case ReasonDNSTimeout, ReasonConnectTimeout, ReasonReadTimeout,
		ReasonProxyError, ReasonTLSError, ReasonSMTPTransient,
		ReasonGreylisted, ReasonBackendUnreachable, ReasonTimeout:
		return true
	}
	return false
}
