package domain

import (
	"fmt"
	"strings"
)

// ErrorCode is the numeric code carried by the service error envelope.
// The set is closed: codes outside it are reported as Unrecognized by the
// generic classifier.
type ErrorCode int

const (
	CodeQueued              ErrorCode = 1610
	CodeInProgress          ErrorCode = 1620
	CodeNonstandardResponse ErrorCode = 1630
	CodeInvalidParam        ErrorCode = 1640
	CodeParseError          ErrorCode = 1650
	CodeUnknownError        ErrorCode = 1660
	CodeHTTPError           ErrorCode = 1670
	CodeConnectionError     ErrorCode = 1680
	CodeIOError             ErrorCode = 1690
	CodeTimeout             ErrorCode = 1700 // poll budget exhausted
	CodeCancelled           ErrorCode = 1710 // job abandoned by the caller
)

var codeNames = map[ErrorCode]string{
	CodeQueued:              "QUEUED",
	CodeInProgress:          "IN_PROGRESS",
	CodeNonstandardResponse: "NONSTANDARD_RESPONSE",
	CodeInvalidParam:        "INVALID_PARAM",
	CodeParseError:          "PARSE_ERROR",
	CodeUnknownError:        "UNKNOWN_ERROR",
	CodeHTTPError:           "HTTP_ERROR",
	CodeConnectionError:     "CONNECTION_ERROR",
	CodeIOError:             "IO_ERROR",
	CodeTimeout:             "TIMEOUT",
	CodeCancelled:           "CANCELLED",
}

// Known reports whether c belongs to the closed set above.
func (c ErrorCode) Known() bool {
	_, ok := codeNames[c]
	return ok
}

// ParseErrorCode resolves a code name such as "IN_PROGRESS". Matching ignores
// case and accepts spaces in place of underscores.
func ParseErrorCode(name string) (ErrorCode, bool) {
	name = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
	for code, n := range codeNames {
		if n == name {
			return code, true
		}
	}
	return 0, false
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// ErrorObject is one entry of the service error envelope.
type ErrorObject struct {
	Code   ErrorCode `json:"error"`
	Reason string    `json:"reason"`
	Detail string    `json:"detail,omitempty"`
	JobID  JobHandle `json:"jobID,omitempty"`
}
