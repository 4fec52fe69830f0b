// Package protocol defines the MCP JSON-RPC 2.0 message model and error codes.
//
// This package provides the low-level wire structures used by the transport
// and handler packages. Most users should use the higher-level mcp package
// instead.
//
// # Messages
//
// Every wire message is carried by the Message envelope. Which fields are
// populated determines what the message is:
//
//	Request:      id + method (+ optional params)
//	Response:     id + exactly one of result/error
//	Notification: method, no id
//
// Message.Kind applies that classification. Outbound messages are built with
// NewRequest, NewResponse, NewErrorResponse and NewNotification, which
// enforce the envelope invariants.
//
// # Request IDs
//
// JSON-RPC permits both string and numeric ids, and peers do not always
// agree on the type. ParseID canonicalizes an id to a single string form so
// that a response carrying id 7 matches a request sent with id "7".
//
// # Error Codes
//
// Standard JSON-RPC 2.0 error codes are defined as constants:
//
//	CodeParseError     = -32700  // Invalid JSON
//	CodeInvalidRequest = -32600  // Invalid Request object
//	CodeMethodNotFound = -32601  // Method not found
//	CodeInvalidParams  = -32602  // Invalid method parameters
//	CodeInternalError  = -32603  // Internal server error
//
// MCP adds domain codes in the server-error range:
//
//	CodeToolError     = -32001
//	CodeResourceError = -32002
//	CodeTimeoutError  = -32003
//
// Helper functions create properly formatted errors:
//
//	err := protocol.NewMethodNotFound("unknown/method")
//	err := protocol.NewInvalidParams("missing required field: name")
package protocol
