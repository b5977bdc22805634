package domain

import "fmt"

// ErrorCode is delivered through the error signal, one at a time.
type ErrorCode int

const (
	ErrorDenied           ErrorCode = 1 << 0
	ErrorNetwork          ErrorCode = 1 << 1
	ErrorHeadingFailure   ErrorCode = 1 << 2
	ErrorLocationUnknown  ErrorCode = 1 << 3
	ErrorTimeout          ErrorCode = 1 << 4
	ErrorUnsupported      ErrorCode = 1 << 5
	ErrorLocationDisabled ErrorCode = 1 << 6
	ErrorUnknown          ErrorCode = 1 << 7
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorDenied:
		return "denied"
	case ErrorNetwork:
		return "network"
	case ErrorHeadingFailure:
		return "heading_failure"
	case ErrorLocationUnknown:
		return "location_unknown"
	case ErrorTimeout:
		return "timeout"
	case ErrorUnsupported:
		return "unsupported"
	case ErrorLocationDisabled:
		return "location_disabled"
	case ErrorUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("error_code(%d)", int(c))
	}
}

// Signals is the consumer-side notification surface. Implementations must
// be safe for use from multiple goroutines.
type Signals interface {
	Log(message string, number float64)
	Error(code ErrorCode)
	AuthorizationChanged(status AuthorizationStatus)
	LocationUpdate(data LocationData)
	HeadingUpdate(data HeadingData)
	LocationCapabilityResult(capable bool)
}
