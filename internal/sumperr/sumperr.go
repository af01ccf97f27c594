// Package sumperr defines the error taxonomy shared across the
// acquisition pipeline (transport, driver, topology, decoders).
//
// Every error carries a stable code so callers can distinguish
// categories with errors.Is without parsing message text, and a
// human-readable message for logging, per the propagation policy of
// the acquisition pipeline: transport/hardware errors bubble to the
// caller of the compound operation (arm/acquire/download); parse and
// decode errors are recovered locally and annotated on the offending
// entity instead of aborting the whole operation.
package sumperr

import "fmt"

// Code identifies one of the error categories.
type Code string

const (
	TransportUnavailable Code = "transport_unavailable"
	TransportAuth        Code = "transport_auth"
	TransportTimeout     Code = "transport_timeout"
	HardwareMissing      Code = "hardware_missing"
	HardwareStuck        Code = "hardware_stuck"
	ConfigParse          Code = "config_parse"
	SampleDecode         Code = "sample_decode"
	ViewConflict         Code = "view_conflict"
	UserCtrlInvalid      Code = "user_ctrl_invalid"
)

// Error is a sentinel-comparable, code-tagged error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, sumperr.TransportTimeout) work by comparing
// on Code alone; codes are sentinels, not values to construct outside
// this package's constructors.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}

	return other.Code == e.Code && other.Message == ""
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Sentinel returns a zero-message error usable as an errors.Is target,
// e.g. errors.Is(err, sumperr.Sentinel(sumperr.TransportTimeout)).
func Sentinel(code Code) *Error { return &Error{Code: code} }
