package verifier

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/internal/config"
	"github.com/salmanbareesh039/check-if-email-exists/internal/misc"
	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
)

type fakeMx struct {
	calls    int
	details  model.MxDetails
	terminal *model.Outcome
}

func (f *fakeMx) Resolve(ctx context.Context, domain string) (model.MxDetails, *model.Outcome) {
	f.calls++
	return f.details, f.terminal
}

type fakeSmtp struct {
	calls   int
	details model.SmtpDetails
}

func (f *fakeSmtp) Probe(ctx context.Context, email string, records []model.MxRecord, tag model.ProviderTag) model.SmtpDetails {
	f.calls++
	return f.details
}

type fakeBackend struct {
	calls   int
	details model.SmtpDetails
}

func (f *fakeBackend) Check(ctx context.Context, email string, tag model.ProviderTag) model.SmtpDetails {
	f.calls++
	return f.details
}

func defaultMethods() config.VerifMethodConfig {
	return config.VerifMethodConfig{
		Gmail:      "smtp",
		HotmailB2B: "smtp",
		HotmailB2C: "headless",
		Yahoo:      "headless",
	}
}

// listMisc runs only the pure list lookups, keeping the tests off the
// network.
type listMisc struct{}

func (listMisc) Check(ctx context.Context, local, domain string) model.MiscDetails {
	return model.MiscDetails{
		IsDisposable:  misc.IsDisposableDomain(domain),
		IsRoleAccount: misc.IsRoleAccount(local),
		IsFreeEmail:   misc.IsFreeDomain(domain),
	}
}

func newTestVerifier(mxr *fakeMx, smtp *fakeSmtp, backend *fakeBackend) *Verifier {
	return &Verifier{
		backendName: "backend-test",
		methods:     defaultMethods(),
		mx:          mxr,
		misc:        listMisc{},
		smtp:        smtp,
		headless:    backend,
		api:         backend,
		logger:      zap.NewNop(),
	}
}

func gmailMx() *fakeMx {
	return &fakeMx{details: model.MxDetails{
		AcceptsMail: true,
		Records:     []model.MxRecord{{Pref: 5, Host: "gmail-smtp-in.l.google.com."}},
	}}
}

func genericMx(host string) *fakeMx {
	return &fakeMx{details: model.MxDetails{
		AcceptsMail: true,
		Records:     []model.MxRecord{{Pref: 10, Host: host}},
	}}
}

func TestCheckDeliverableGmail(t *testing.T) {
	smtp := &fakeSmtp{details: model.SmtpDetails{
		Outcome:       model.Deliverable(),
		CanConnect:    true,
		IsDeliverable: true,
	}}
	v := newTestVerifier(gmailMx(), smtp, &fakeBackend{})

	verdict := v.Check(context.Background(), "Alice@GMAIL.com")

	if verdict.Normalized != "alice@gmail.com" {
		t.Errorf("normalized = %q, want alice@gmail.com", verdict.Normalized)
	}
	if verdict.Debug.Provider != model.ProviderGmail {
		t.Errorf("provider = %q, want gmail", verdict.Debug.Provider)
	}
	if verdict.IsReachable != model.ReachableSafe {
		t.Errorf("is_reachable = %q, want safe", verdict.IsReachable)
	}
	if smtp.calls != 1 {
		t.Errorf("smtp probes = %d, want 1", smtp.calls)
	}
}

func TestCheckNoSuchDomain(t *testing.T) {
	terminal := model.Undeliverable(model.ReasonNoSuchHost, "no MX or address records for domain")
	mxr := &fakeMx{terminal: &terminal}
	smtp := &fakeSmtp{}
	v := newTestVerifier(mxr, smtp, &fakeBackend{})

	verdict := v.Check(context.Background(), "bob@no-such-domain.example")

	if verdict.IsReachable != model.ReachableInvalid {
		t.Errorf("is_reachable = %q, want invalid", verdict.IsReachable)
	}
	if verdict.SMTP.Reason != model.ReasonNoSuchHost {
		t.Errorf("reason = %q, want no_such_host", verdict.SMTP.Reason)
	}
	if smtp.calls != 0 {
		t.Errorf("smtp probes = %d, want 0 after terminal MX outcome", smtp.calls)
	}
}

func TestCheckCatchAllIsRisky(t *testing.T) {
	smtp := &fakeSmtp{details: model.SmtpDetails{
		Outcome:       model.Risky(model.ReasonCatchAll, "domain accepts any local-part"),
		CanConnect:    true,
		IsDeliverable: true,
		IsCatchAll:    true,
	}}
	v := newTestVerifier(genericMx("mail.catchall.test."), smtp, &fakeBackend{})

	verdict := v.Check(context.Background(), "carol@catchall.test")

	if !verdict.SMTP.IsCatchAll {
		t.Error("want is_catch_all")
	}
	if verdict.IsReachable != model.ReachableRisky {
		t.Errorf("is_reachable = %q, want risky", verdict.IsReachable)
	}
}

func TestCheckHeadlessBackendUnreachable(t *testing.T) {
	backend := &fakeBackend{details: model.SmtpDetails{
		Outcome: model.Unknown(model.ReasonBackendUnreachable, "connection refused"),
	}}
	smtp := &fakeSmtp{}
	v := newTestVerifier(genericMx("mta7.am0.yahoodns.net."), smtp, backend)

	verdict := v.Check(context.Background(), "dave@yahoo.com")

	if verdict.Debug.VerifMethod != model.MethodHeadless {
		t.Fatalf("method = %q, want headless", verdict.Debug.VerifMethod)
	}
	if verdict.IsReachable != model.ReachableUnknown {
		t.Errorf("is_reachable = %q, want unknown", verdict.IsReachable)
	}
	if smtp.calls != 0 {
		t.Errorf("smtp probes = %d, headless unknown must not fall back to SMTP", smtp.calls)
	}
}

func TestCheckSyntaxInvalidShortCircuits(t *testing.T) {
	mxr := &fakeMx{}
	smtp := &fakeSmtp{}
	backend := &fakeBackend{}
	v := newTestVerifier(mxr, smtp, backend)

	verdict := v.Check(context.Background(), "not-an-address")

	if verdict.IsReachable != model.ReachableInvalid {
		t.Errorf("is_reachable = %q, want invalid", verdict.IsReachable)
	}
	if verdict.SMTP.Reason != model.ReasonSyntaxInvalid {
		t.Errorf("reason = %q, want syntax_invalid", verdict.SMTP.Reason)
	}
	if mxr.calls+smtp.calls+backend.calls != 0 {
		t.Errorf("network stages ran %d times on invalid syntax, want 0",
			mxr.calls+smtp.calls+backend.calls)
	}
}

func TestCheckRoleAccountIsRisky(t *testing.T) {
	smtp := &fakeSmtp{details: model.SmtpDetails{
		Outcome:       model.Deliverable(),
		CanConnect:    true,
		IsDeliverable: true,
	}}
	v := newTestVerifier(genericMx("mail.acme.com."), smtp, &fakeBackend{})

	verdict := v.Check(context.Background(), "info@acme.com")

	if !verdict.Misc.IsRoleAccount {
		t.Fatal("info@ should be flagged as a role account")
	}
	if verdict.IsReachable != model.ReachableRisky {
		t.Errorf("is_reachable = %q, want risky", verdict.IsReachable)
	}
}

func TestReachabilityTable(t *testing.T) {
	tests := []struct {
		name string
		smtp model.SmtpDetails
		misc model.MiscDetails
		want model.Reachable
	}{
		{
			name: "deliverable clean",
			smtp: model.SmtpDetails{Outcome: model.Deliverable()},
			want: model.ReachableSafe,
		},
		{
			name: "deliverable catch-all",
			smtp: model.SmtpDetails{Outcome: model.Deliverable(), IsCatchAll: true},
			want: model.ReachableRisky,
		},
		{
			name: "deliverable disposable",
			smtp: model.SmtpDetails{Outcome: model.Deliverable()},
			misc: model.MiscDetails{IsDisposable: true},
			want: model.ReachableRisky,
		},
		{
			name: "undeliverable",
			smtp: model.SmtpDetails{Outcome: model.Undeliverable(model.ReasonMailboxDoesNotExist, "")},
			want: model.ReachableInvalid,
		},
		{
			name: "risky outcome",
			smtp: model.SmtpDetails{Outcome: model.Risky(model.ReasonNeedsCaptcha, "")},
			want: model.ReachableRisky,
		},
		{
			name: "unknown outcome",
			smtp: model.SmtpDetails{Outcome: model.Unknown(model.ReasonGreylisted, "")},
			want: model.ReachableUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reachability(tt.smtp, tt.misc); got != tt.want {
				t.Errorf("Reachability() = %q, want %q", got, tt.want)
			}
		})
	}
}
