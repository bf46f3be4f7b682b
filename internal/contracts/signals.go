package contracts

import (
	"errors"
	"fmt"
)

// Reason names why a ticker produced no reportable row
type Reason string

const (
	ReasonEmptyData          Reason = "empty_data"
	ReasonEligibilityNotMet  Reason = "eligibility_not_met"
	ReasonNotNewlyListed     Reason = "not_newly_listed"
	ReasonNotStageTwo        Reason = "not_stage_two"
	ReasonInsufficientVolume Reason = "insufficient_volume"
	ReasonPriceOutOfRange    Reason = "price_out_of_range"
	ReasonDownloadOnly       Reason = "download_only"
	ReasonNotReportable      Reason = "not_reportable"
	ReasonInterrupted        Reason = "interrupted"
)

// Signal is a control signal that short-circuits one ticker.
// It is not a fault: callers convert it to NotEligible.
type Signal struct {
	Reason Reason
	Detail string
}

// Control signals, matched with errors.Is
var (
	ErrEmptyData          = &Signal{Reason: ReasonEmptyData}
	ErrEligibilityNotMet  = &Signal{Reason: ReasonEligibilityNotMet}
	ErrNotNewlyListed     = &Signal{Reason: ReasonNotNewlyListed}
	ErrNotStageTwo        = &Signal{Reason: ReasonNotStageTwo}
	ErrInsufficientVolume = &Signal{Reason: ReasonInsufficientVolume}
	ErrPriceOutOfRange    = &Signal{Reason: ReasonPriceOutOfRange}
	ErrDownloadOnly       = &Signal{Reason: ReasonDownloadOnly}
	ErrNotReportable      = &Signal{Reason: ReasonNotReportable}
	ErrInterrupted        = &Signal{Reason: ReasonInterrupted}
)

func (s *Signal) Error() string {
	if s.Detail == "" {
		return string(s.Reason)
	}
	return fmt.Sprintf("%s: %s", s.Reason, s.Detail)
}

// Is matches any signal with the same reason, regardless of detail
func (s *Signal) Is(target error) bool {
	t, ok := target.(*Signal)
	return ok && t.Reason == s.Reason
}

// With returns a copy of the signal carrying a diagnostic detail
func (s *Signal) With(format string, args ...any) *Signal {
	return &Signal{Reason: s.Reason, Detail: fmt.Sprintf(format, args...)}
}

// AsSignal extracts a control signal from an error chain
func AsSignal(err error) (*Signal, bool) {
	var sig *Signal
	if errors.As(err, &sig) {
		return sig, true
	}
	return nil, false
}
