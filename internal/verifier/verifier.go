// Package verifier runs the per-address verification pipeline: syntax,
// MX, provider classification, the provider-appropriate probe in
// parallel with the account-quality signals, and the final assembly
// into one verdict.
package verifier

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/salmanbareesh039/check-if-email-exists/internal/config"
	"github.com/salmanbareesh039/check-if-email-exists/internal/headless"
	"github.com/salmanbareesh039/check-if-email-exists/internal/misc"
	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
	"github.com/salmanbareesh039/check-if-email-exists/internal/mx"
	"github.com/salmanbareesh039/check-if-email-exists/internal/probe"
	"github.com/salmanbareesh039/check-if-email-exists/internal/provider"
	"github.com/salmanbareesh039/check-if-email-exists/internal/syntax"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/metrics"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/otel"
)

// checkBudget bounds one verification end to end. Blowing it yields
// Unknown(timeout), never a partial verdict.
const checkBudget = 60 * time.Second

// smtpChecker is the SMTP path; satisfied by *probe.Prober.
type smtpChecker interface {
	Probe(ctx context.Context, email string, records []model.MxRecord, tag model.ProviderTag) model.SmtpDetails
}

// backendChecker is the headless/API path shape.
type backendChecker interface {
	Check(ctx context.Context, email string, tag model.ProviderTag) model.SmtpDetails
}

// miscChecker gathers account-quality signals.
type miscChecker interface {
	Check(ctx context.Context, local, domain string) model.MiscDetails
}

// mxResolver resolves the ranked MX set.
type mxResolver interface {
	Resolve(ctx context.Context, domain string) (model.MxDetails, *model.Outcome)
}

// Verifier wires the pipeline stages together. Immutable after
// construction; safe for concurrent checks.
type Verifier struct {
	backendName string
	methods     config.VerifMethodConfig

	mx       mxResolver
	misc     miscChecker
	smtp     smtpChecker
	headless backendChecker
	api      backendChecker

	logger *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) (*Verifier, error) {
	proxyURL := ""
	if cfg.Proxy != nil {
		proxyURL = cfg.Proxy.URL()
	}
	prober, err := probe.New(cfg.HelloName, cfg.FromEmail, proxyURL, logger)
	if err != nil {
		return nil, err
	}

	return &Verifier{
		backendName: cfg.BackendName,
		methods:     cfg.VerifMethod,
		mx:          mx.NewLookup(logger),
		misc:        misc.NewChecker(cfg.Hibp.Enabled, cfg.Hibp.APIKey, logger),
		smtp:        prober,
		headless:    headless.NewClient(cfg.WebdriverAddr, logger),
		api:         headless.NewAPIClient(logger),
		logger:      logger,
	}, nil
}

// Check verifies one address and always returns a complete verdict.
func (v *Verifier) Check(ctx context.Context, input string) model.Verdict {
	ctx, cancel := context.WithTimeout(ctx, checkBudget)
	defer cancel()

	ctx, span := otel.StartSpan(ctx, "verifier.check")
	defer span.End()

	start := time.Now()
	verdict := model.Verdict{
		Input: input,
		Debug: model.DebugDetails{
			ID:          uuid.NewString(),
			StartTime:   start,
			BackendName: v.backendName,
		},
	}
	defer func() {
		verdict.Debug.EndTime = time.Now()
		verdict.Debug.DurationMs = time.Since(start).Milliseconds()
		metrics.RecordVerification(
			string(verdict.Debug.Provider),
			string(verdict.Debug.VerifMethod),
			string(verdict.IsReachable),
			time.Since(start),
		)
	}()

	// Syntax gates everything: an unparsable input must not trigger a
	// single network call.
	verdict.Syntax = syntax.Check(input)
	if !verdict.Syntax.IsValid {
		verdict.IsReachable = model.ReachableInvalid
		verdict.SMTP.Outcome = model.Undeliverable(model.ReasonSyntaxInvalid, "address does not parse")
		return verdict
	}
	verdict.Normalized = verdict.Syntax.Normalized

	mxDetails, terminal := v.mx.Resolve(ctx, verdict.Syntax.Domain)
	verdict.MX = mxDetails
	if terminal != nil {
		verdict.SMTP.Outcome = *terminal
		verdict.IsReachable = Reachability(verdict.SMTP, verdict.Misc)
		return verdict
	}

	tag := provider.Classify(verdict.Syntax.Domain, mxDetails.Records)
	method := v.methods.For(tag)
	verdict.Debug.Provider = tag
	verdict.Debug.VerifMethod = method

	// The mailbox probe and the account-quality signals run
	// concurrently; neither can fail the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		verdict.SMTP = v.dispatch(gctx, method, verdict.Normalized, mxDetails.Records, tag)
		return nil
	})
	g.Go(func() error {
		verdict.Misc = v.misc.Check(gctx, verdict.Syntax.Local, verdict.Syntax.Domain)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil && verdict.SMTP.Status == "" {
		verdict.SMTP.Outcome = model.Unknown(model.ReasonTimeout, "verification budget exhausted")
	}

	verdict.IsReachable = Reachability(verdict.SMTP, verdict.Misc)
	v.logger.Debug("check done",
		zap.String("email", verdict.Normalized),
		zap.String("provider", string(tag)),
		zap.String("method", string(method)),
		zap.String("is_reachable", string(verdict.IsReachable)),
	)
	return verdict
}

// dispatch selects the probe path from the (provider, method) pair.
func (v *Verifier) dispatch(ctx context.Context, method model.VerifMethod, email string, records []model.MxRecord, tag model.ProviderTag) model.SmtpDetails {
	switch method {
	case model.MethodHeadless:
		// Headless unknown deliberately does not fall back to SMTP:
		// the providers routed here poison SMTP results anyway.
		return v.headless.Check(ctx, email, tag)
	case model.MethodAPI:
		return v.api.Check(ctx, email, tag)
	case model.MethodSkip:
		return model.SmtpDetails{
			Outcome: model.Unknown(model.ReasonSkipped, "verification disabled for provider"),
		}
	default:
		return v.smtp.Probe(ctx, email, records, tag)
	}
}
