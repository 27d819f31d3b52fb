package model

// ProviderTag identifies the operator behind a domain's mail
// infrastructure. It selects the verification strategy and the reply
// pattern table.
type ProviderTag string

const (
	ProviderGmail      ProviderTag = "gmail"
	ProviderHotmailB2B ProviderTag = "hotmail_b2b"
	ProviderHotmailB2C ProviderTag = "hotmail_b2c"
	ProviderYahoo      ProviderTag = "yahoo"
	ProviderProton     ProviderTag = "proton"
	ProviderGeneric    ProviderTag = "generic"
)

// VerifMethod is how a given provider gets probed.
type VerifMethod string

const (
	MethodSMTP     VerifMethod = "smtp"
	MethodHeadless VerifMethod = "headless"
	MethodAPI      VerifMethod = "api"
	MethodSkip     VerifMethod = "skip"
)

func (m VerifMethod) Valid() bool {
	switch m {
	case MethodSMTP, MethodHeadless, MethodAPI, MethodSkip:
		return true
	}
	return false
}
