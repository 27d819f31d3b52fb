package model

import "time"

// Reachable is the final four-valued classification of an address.
type Reachable string

const (
	ReachableSafe    Reachable = "safe"
	ReachableRisky   Reachable = "risky"
	ReachableInvalid Reachable = "invalid"
	ReachableUnknown Reachable = "unknown"
)

// MxRecord is one entry of the ranked MX set.
type MxRecord struct {
	Pref uint16 `json:"pref"`
	Host string `json:"host"`
}

type SyntaxDetails struct {
	IsValid    bool   `json:"is_valid_syntax"`
	Local      string `json:"local_part"`
	Domain     string `json:"domain"`
	Normalized string `json:"normalized"`
	Suggestion string `json:"suggestion,omitempty"`
}

type MxDetails struct {
	AcceptsMail bool       `json:"accepts_mail"`
	Records     []MxRecord `json:"records"`
}

// SmtpDetails carries the probe outcome plus the flat signal panel
// consumers key on.
type SmtpDetails struct {
	Outcome
	CanConnect    bool `json:"can_connect_smtp"`
	IsDeliverable bool `json:"is_deliverable"`
	IsCatchAll    bool `json:"is_catch_all"`
	HasFullInbox  bool `json:"has_full_inbox"`
	IsDisabled    bool `json:"is_disabled"`
}

type MiscDetails struct {
	IsDisposable  bool    `json:"is_disposable"`
	IsRoleAccount bool    `json:"is_role_account"`
	IsFreeEmail   bool    `json:"is_free_email"`
	GravatarURL   *string `json:"gravatar_url"`
	IsBreached    *bool   `json:"haveibeenpwned"`
}

// DebugDetails is diagnostic metadata. Timestamps are excluded from
// idempotence comparisons.
type DebugDetails struct {
	ID          string      `json:"uuid"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     time.Time   `json:"end_time"`
	DurationMs  int64       `json:"duration_ms"`
	BackendName string      `json:"backend_name"`
	Provider    ProviderTag `json:"provider"`
	VerifMethod VerifMethod `json:"verif_method"`
}

// Verdict is the full result of one verification.
type Verdict struct {
	Input       string        `json:"input"`
	Normalized  string        `json:"normalized"`
	IsReachable Reachable     `json:"is_reachable"`
	Syntax      SyntaxDetails `json:"syntax"`
	MX          MxDetails     `json:"mx"`
	SMTP        SmtpDetails   `json:"smtp"`
	Misc        MiscDetails   `json:"misc"`
	Debug       DebugDetails  `json:"debug"`
}
