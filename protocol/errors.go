package protocol

import "fmt"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// MCP-specific error codes, drawn from the JSON-RPC server-error range.
const (
	CodeToolError     = -32001
	CodeResourceError = -32002
	CodeTimeoutError  = -32003
	CodeRateLimited   = -32004
)

// Bounds of the JSON-RPC server-error range.
const (
	ServerErrorStart = -32099
	ServerErrorEnd   = -32000
)

// IsServerError reports whether code falls in the reserved server-error range.
func IsServerError(code int) bool {
	return code >= ServerErrorStart && code <= ServerErrorEnd
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("mcp: %s (code: %d)", e.Message, e.Code)
}

// Is implements errors.Is comparison by error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithData returns a copy of the error with additional data attached.
func (e *Error) WithData(data map[string]any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Data:    data,
	}
}

// NewParseError creates a parse error (-32700).
func NewParseError(msg string) *Error {
	return &Error{Code: CodeParseError, Message: msg}
}

// NewInvalidRequest creates an invalid request error (-32600).
func NewInvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

// NewMethodNotFound creates a method not found error (-32601).
func NewMethodNotFound(msg string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: msg}
}

// NewInvalidParams creates an invalid params error (-32602).
func NewInvalidParams(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: msg}
}

// NewInternalError creates an internal error (-32603).
func NewInternalError(msg string) *Error {
	return &Error{Code: CodeInternalError, Message: msg}
}

// NewToolError creates a tool execution error (-32001).
func NewToolError(msg string) *Error {
	return &Error{Code: CodeToolError, Message: msg}
}

// NewResourceError creates a resource error (-32002).
func NewResourceError(msg string) *Error {
	return &Error{Code: CodeResourceError, Message: msg}
}

// NewTimeoutError creates a timeout error (-32003).
func NewTimeoutError(msg string) *Error {
	return &Error{Code: CodeTimeoutError, Message: msg}
}
