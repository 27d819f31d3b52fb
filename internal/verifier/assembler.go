package verifier

import (
	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
)

// Reachability folds the partial signals into the final four-valued
// classification. The SMTP outcome dominates; account-quality signals
// can only demote a deliverable mailbox to risky, never promote one.
func Reachability(smtp model.SmtpDetails, misc model.MiscDetails) model.Reachable {
	switch smtp.Status {
	case model.StatusDeliverable:
		if smtp.IsCatchAll || misc.IsDisposable || misc.IsRoleAccount {
			return model.ReachableRisky
		}
		return model.ReachableSafe
	case model.StatusUndeliverable:
		return model.ReachableInvalid
	case model.StatusRisky:
		return model.ReachableRisky
	default:
		return model.ReachableUnknown
	}
}
