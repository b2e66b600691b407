package request

import "fmt"

// ConstantResponse is a fixed reply without payload
type ConstantResponse int32

const (
	OK ConstantResponse = 0
)

// RequestErrorType classifies a failed request
type RequestErrorType int32

const (
	ErrorUnspecified RequestErrorType = iota
	ErrorExecAbort
	ErrorTimeout
	ErrorDisconnect
)

func (t RequestErrorType) String() string {
	switch t {
	case ErrorUnspecified:
		return "unspecified"
	case ErrorExecAbort:
		return "exec abort"
	case ErrorTimeout:
		return "timeout"
	case ErrorDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("RequestErrorType(%d)", int32(t))
	}
}

// Value is the value field of a response. It is implemented by InlineValue,
// HandleValue, ConstantValue, *RequestError and ClosingError.
type Value interface {
	isValue()
}

// InlineValue carries the reply inside the message
type InlineValue [][]byte

// HandleValue references a reply registered in the argument table
type HandleValue uint64

// ConstantValue is a payload-free reply such as OK
type ConstantValue ConstantResponse

// RequestError reports a failed request. The connection stays usable.
type RequestError struct {
	Type    RequestErrorType
	Message string
}

// ClosingError reports a failure after which the engine closes the connection
type ClosingError string

func (InlineValue) isValue()   {}
func (HandleValue) isValue()   {}
func (ConstantValue) isValue() {}
func (*RequestError) isValue() {}
func (ClosingError) isValue()  {}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request error (%s): %s", e.Type, e.Message)
}

func (e ClosingError) Error() string {
	return "closing error: " + string(e)
}

// Response answers the request with the same callback index
type Response struct {
	CallbackIdx uint32
	Value       Value
}

// NewOKResponse creates a constant OK response
func NewOKResponse(callbackIdx uint32) *Response {
	return &Response{CallbackIdx: callbackIdx, Value: ConstantValue(OK)}
}

// NewValueResponse creates a response carrying the reply inline
func NewValueResponse(callbackIdx uint32, values ...[]byte) *Response {
	return &Response{CallbackIdx: callbackIdx, Value: InlineValue(values)}
}

// NewHandleResponse creates a response whose reply lives in the argument table
func NewHandleResponse(callbackIdx uint32, handle uint64) *Response {
	return &Response{CallbackIdx: callbackIdx, Value: HandleValue(handle)}
}

// NewErrorResponse creates a request error response
func NewErrorResponse(callbackIdx uint32, t RequestErrorType, msg string) *Response {
	return &Response{CallbackIdx: callbackIdx, Value: &RequestError{Type: t, Message: msg}}
}

// NewClosingResponse creates a closing error response
func NewClosingResponse(callbackIdx uint32, msg string) *Response {
	return &Response{CallbackIdx: callbackIdx, Value: ClosingError(msg)}
}
