package jsonrpc

import (
	"errors"
	"fmt"
	"time"
)

const (
	ParseError     = -32700 // Invalid JSON was received.
	InvalidRequest = -32600 // The JSON sent is not a valid Request object.
	MethodNotFound = -32601 // The method does not exist / is not available.
	InvalidParams  = -32602 // Invalid method parameter(s).
	InternalError  = -32603 // Internal JSON-RPC error.

	// Reserved for implementation-defined server errors, both ends inclusive.
	ServerErrorMin = -32099
	ServerErrorMax = -32000
)

var (
	ErrNoSender    = errors.New("no sender registered")
	ErrDuplicateID = errors.New("a call with the same id is already outstanding")
)

// Error is the JSON-RPC error object. It is also a Go error, so handlers can
// return it directly to control the code and data sent back to the peer.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds an error object. An empty message is replaced by the
// standard text for the code.
func NewError(code int, message string, data any) *Error {
	if message == "" {
		message = defaultMessage(code)
	}
	return &Error{Code: code, Message: message, Data: data}
}

// Err returns an error object with the standard message for code.
func Err(code int, data any) *Error {
	return NewError(code, "", data)
}

// IsServerError reports whether code lies in the reserved server error band.
func IsServerError(code int) bool {
	return code >= ServerErrorMin && code <= ServerErrorMax
}

func defaultMessage(code int) string {
	switch code {
	case ParseError:
		return "Parse error"
	case InvalidRequest:
		return "Invalid Request"
	case MethodNotFound:
		return "Method not found"
	case InvalidParams:
		return "Invalid params"
	case InternalError:
		return "Internal error"
	}
	if IsServerError(code) {
		return "Server error"
	}
	return "Unknown Error"
}

// Coder is implemented by errors that carry their own JSON-RPC error code.
type Coder interface {
	ErrorCode() int
}

// DataCarrier is implemented by errors that carry auxiliary error data.
type DataCarrier interface {
	ErrorData() any
}

// Convert normalises any failure into an error object. Error objects, also
// when wrapped, are returned as they are. Other errors keep their message and
// default to InternalError unless they implement Coder or DataCarrier. Any
// other value is formatted into the message.
func Convert(v any) *Error {
	switch failure := v.(type) {
	case nil:
		return Err(InternalError, nil)
	case *Error:
		if failure == nil {
			return Err(InternalError, nil)
		}
		return failure
	case error:
		var rpcErr *Error
		if errors.As(failure, &rpcErr) && rpcErr != nil {
			return rpcErr
		}

		code := InternalError
		var coder Coder
		if errors.As(failure, &coder) {
			code = coder.ErrorCode()
		}
		var data any
		var carrier DataCarrier
		if errors.As(failure, &carrier) {
			data = carrier.ErrorData()
		}
		return NewError(code, failure.Error(), data)
	default:
		return NewError(InternalError, fmt.Sprint(failure), nil)
	}
}

// TimeoutError is returned by Call when no response arrived in time. It never
// leaves the process. The remote peer may still process the request.
type TimeoutError struct {
	Timeout time.Duration
	// Request is the serialized request that went unanswered.
	Request []byte
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call timed out after %s: %s", e.Timeout, e.Request)
}
