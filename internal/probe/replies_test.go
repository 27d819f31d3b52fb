package probe

import (
	"testing"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		provider   model.ProviderTag
		code       int
		text       string
		atRcpt     bool
		wantStatus model.Status
		wantReason model.Reason
	}{
		{
			name:       "gmail nonexistent account",
			provider:   model.ProviderGmail,
			code:       550,
			text:       "5.1.1 The email account that you tried to reach does not exist. Please try double-checking the recipient's email address for typos",
			atRcpt:     true,
			wantStatus: model.StatusUndeliverable,
			wantReason: model.ReasonMailboxDoesNotExist,
		},
		{
			name:       "gmail over quota",
			provider:   model.ProviderGmail,
			code:       452,
			text:       "4.2.2 The email account that you tried to reach is over quota",
			atRcpt:     true,
			wantStatus: model.StatusUndeliverable,
			wantReason: model.ReasonMailboxFull,
		},
		{
			name:       "yahoo nonexistent account",
			provider:   model.ProviderYahoo,
			code:       554,
			text:       "delivery error: dd This user doesn't have a yahoo.com account (nobody@yahoo.com)",
			atRcpt:     true,
			wantStatus: model.StatusUndeliverable,
			wantReason: model.ReasonMailboxDoesNotExist,
		},
		{
			name:       "yahoo deferral",
			provider:   model.ProviderYahoo,
			code:       421,
			text:       "4.7.0 [TSS04] Messages from 1.2.3.4 temporarily deferred due to unexpected volume or user complaints",
			atRcpt:     true,
			wantStatus: model.StatusUnknown,
			wantReason: model.ReasonRateLimited,
		},
		{
			name:       "hotmail mailbox unavailable",
			provider:   model.ProviderHotmailB2B,
			code:       550,
			text:       "Requested action not taken: mailbox unavailable",
			atRcpt:     true,
			wantStatus: model.StatusUndeliverable,
			wantReason: model.ReasonMailboxDoesNotExist,
		},
		{
			name:       "hotmail banned ip",
			provider:   model.ProviderHotmailB2C,
			code:       550,
			text:       "5.7.606 Access denied, banned sending IP [1.2.3.4]",
			atRcpt:     true,
			wantStatus: model.StatusUnknown,
			wantReason: model.ReasonBlockedIP,
		},
		{
			name:       "generic user unknown",
			provider:   model.ProviderGeneric,
			code:       550,
			text:       "550 5.1.1 <nobody@example.org>: Recipient address rejected: User unknown in virtual mailbox table",
			atRcpt:     true,
			wantStatus: model.StatusUndeliverable,
			wantReason: model.ReasonMailboxDoesNotExist,
		},
		{
			name:       "generic greylisting",
			provider:   model.ProviderGeneric,
			code:       451,
			text:       "4.7.1 Greylisted, please try again later",
			atRcpt:     true,
			wantStatus: model.StatusUnknown,
			wantReason: model.ReasonGreylisted,
		},
		{
			name:       "greylisting by phrase only",
			provider:   model.ProviderGeneric,
			code:       421,
			text:       "Service not available, please try later",
			atRcpt:     true,
			wantStatus: model.StatusUnknown,
			wantReason: model.ReasonGreylisted,
		},
		{
			name:       "generic full inbox on 4xx",
			provider:   model.ProviderGeneric,
			code:       452,
			text:       "4.2.2 Mailbox full, try again later",
			atRcpt:     true,
			wantStatus: model.StatusUndeliverable,
			wantReason: model.ReasonMailboxFull,
		},
		{
			name:       "generic disabled account",
			provider:   model.ProviderGeneric,
			code:       550,
			text:       "5.2.1 The email account has been suspended",
			atRcpt:     true,
			wantStatus: model.StatusUndeliverable,
			wantReason: model.ReasonMailboxDisabled,
		},
		{
			name:       "spamhaus listing",
			provider:   model.ProviderGeneric,
			code:       554,
			text:       "Service unavailable; Client host [1.2.3.4] blocked using zen.spamhaus.org",
			atRcpt:     true,
			wantStatus: model.StatusUnknown,
			wantReason: model.ReasonBlockedIP,
		},
		{
			name:       "reputation block",
			provider:   model.ProviderGeneric,
			code:       550,
			text:       "Message rejected because of the poor reputation of your sending IP",
			atRcpt:     true,
			wantStatus: model.StatusUnknown,
			wantReason: model.ReasonBlockedReputation,
		},
		{
			name:       "provider rows win over generic",
			provider:   model.ProviderGmail,
			code:       550,
			text:       "the email account that you tried to reach does not exist",
			atRcpt:     false,
			wantStatus: model.StatusUndeliverable,
			wantReason: model.ReasonMailboxDoesNotExist,
		},
		{
			name:       "unmatched 2xx at rcpt is deliverable",
			provider:   model.ProviderGeneric,
			code:       250,
			text:       "2.1.5 OK",
			atRcpt:     true,
			wantStatus: model.StatusDeliverable,
			wantReason: "",
		},
		{
			name:       "unmatched 5xx at rcpt is rejected",
			provider:   model.ProviderGeneric,
			code:       554,
			text:       "Transaction failed",
			atRcpt:     true,
			wantStatus: model.StatusUndeliverable,
			wantReason: model.ReasonMailboxRejected,
		},
		{
			name:       "unmatched 5xx elsewhere is unknown",
			provider:   model.ProviderGeneric,
			code:       554,
			text:       "Transaction failed",
			atRcpt:     false,
			wantStatus: model.StatusUnknown,
			wantReason: model.ReasonSMTPUnknown,
		},
		{
			name:       "unmatched 4xx is transient",
			provider:   model.ProviderGeneric,
			code:       451,
			text:       "Requested action aborted: local error in processing",
			atRcpt:     true,
			wantStatus: model.StatusUnknown,
			wantReason: model.ReasonSMTPTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.provider, tt.code, tt.text, tt.atRcpt)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}
