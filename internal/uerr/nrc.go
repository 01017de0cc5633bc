// Package uerr defines the error/result vocabulary shared by the UDS client
// and server: negative response codes and the dispatcher's three-way
// handler outcome.
package uerr

import "fmt"

// NRC is a UDS negative response code, the third byte of a `0x7F SID NRC`
// frame (ISO 14229-1 Annex A).
type NRC uint8

const (
	// NRCNone is not a wire value; it marks "no negative response" (the
	// request succeeded). Handlers never return it as a negative outcome.
	NRCNone NRC = 0x00

	NRCServiceNotSupported               NRC = 0x11
	NRCSubFunctionNotSupported           NRC = 0x12
	NRCIncorrectMessageLength            NRC = 0x13
	NRCConditionsNotCorrect              NRC = 0x22
	NRCRequestSequenceError              NRC = 0x24
	NRCRequestOutOfRange                 NRC = 0x31
	NRCSecurityAccessDenied              NRC = 0x33
	NRCInvalidKey                        NRC = 0x35
	NRCGeneralProgrammingFailure         NRC = 0x72
	NRCResponsePending                   NRC = 0x78
	NRCSubFunctionNotSupportedInSession  NRC = 0x7E
	NRCServiceNotSupportedInSession      NRC = 0x7F

	// NRCNonNRCError is not part of ISO 14229: the client core uses it to
	// flag a transport/protocol error that did not carry a `0x00XX`-shaped
	// NRC word (spec §4.2 "poll()").
	NRCNonNRCError NRC = 0xFF
)

var names = map[NRC]string{
	NRCNone:                             "OK",
	NRCServiceNotSupported:              "ServiceNotSupported",
	NRCSubFunctionNotSupported:          "SubFunctionNotSupported",
	NRCIncorrectMessageLength:           "IncorrectMessageLengthOrInvalidFormat",
	NRCConditionsNotCorrect:             "ConditionsNotCorrect",
	NRCRequestSequenceError:             "RequestSequenceError",
	NRCRequestOutOfRange:                "RequestOutOfRange",
	NRCSecurityAccessDenied:             "SecurityAccessDenied",
	NRCInvalidKey:                       "InvalidKey",
	NRCGeneralProgrammingFailure:        "GeneralProgrammingFailure",
	NRCResponsePending:                  "RequestCorrectlyReceived-ResponsePending",
	NRCSubFunctionNotSupportedInSession: "SubFunctionNotSupportedInActiveSession",
	NRCServiceNotSupportedInSession:     "ServiceNotSupportedInActiveSession",
	NRCNonNRCError:                      "NonNRCError",
}

// String renders the NRC for logging, e.g. "0x31 (RequestOutOfRange)".
func (n NRC) String() string {
	if name, ok := names[n]; ok {
		return fmt.Sprintf("0x%02X (%s)", uint8(n), name)
	}
	return fmt.Sprintf("0x%02X", uint8(n))
}

// Error satisfies the error interface so an NRC can be returned/wrapped
// directly from handler code, matching the fmt.Errorf("...: %w") idiom
// used throughout this module.
func (n NRC) Error() string {
	return n.String()
}
