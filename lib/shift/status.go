package shift

// Status classifies the terminal state of a redemption attempt.
// Business outcomes are values, not errors: the caller decides what to
// persist or when to back off.
type Status int

const (
	StatusNone Status = iota
	// non-terminal hint: retry later against Outcome.RedirectUrl
	StatusRedirect
	// a SHiFT-enabled title must be launched first, or the hourly
	// limit was reached
	StatusTryLater
	StatusExpired
	// already redeemed on this account
	StatusRedeemed
	StatusSuccess
	StatusInvalid
	// not available for the requested platform
	StatusUnavailable
	// rate limited, caller must back off
	StatusSlowdown
	StatusUnknown
)

var statusNames = map[Status]string{
	StatusNone:        "NONE",
	StatusRedirect:    "REDIRECT",
	StatusTryLater:    "TRYLATER",
	StatusExpired:     "EXPIRED",
	StatusRedeemed:    "REDEEMED",
	StatusSuccess:     "SUCCESS",
	StatusInvalid:     "INVALID",
	StatusUnavailable: "UNAVAILABLE",
	StatusSlowdown:    "SLOWDOWN",
	StatusUnknown:     "UNKNOWN",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "NONE"
}

// Outcome is the classified result of one Redeem call. It is consumed
// immediately, never persisted.
type Outcome struct {
	Status  Status
	Message string
	// set on StatusRedirect: where a later retry should look
	RedirectUrl string
}

func outcome(s Status, msg string) Outcome {
	return Outcome{Status: s, Message: msg}
}
