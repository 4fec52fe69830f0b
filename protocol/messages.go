package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a wire message by its populated fields.
type Kind int

const (
	// KindInvalid marks messages that fail envelope validation.
	KindInvalid Kind = iota
	// KindRequest has an id and a method.
	KindRequest
	// KindResponse has an id and no method.
	KindResponse
	// KindNotification has a method and no id.
	KindNotification
)

// Message is the JSON-RPC 2.0 wire envelope. A decoded inbound message is
// classified by Kind; outbound messages are built with the New* constructors,
// which populate exactly the fields the message kind requires.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// HasID reports whether the message carries a usable id.
func (m *Message) HasID() bool {
	return len(m.ID) > 0 && string(m.ID) != "null"
}

// Kind classifies the message. Classification order follows the protocol
// contract: version check first, then id/method presence.
func (m *Message) Kind() Kind {
	if m == nil || m.JSONRPC != JSONRPCVersion {
		return KindInvalid
	}
	switch {
	case m.HasID() && m.Method != "":
		return KindRequest
	case m.HasID():
		return KindResponse
	case m.Method != "":
		return KindNotification
	default:
		return KindInvalid
	}
}

// Request is the decoded view of an inbound request message.
type Request struct {
	ID     json.RawMessage
	Method string
	Params map[string]any
}

// Notification is the decoded view of an inbound notification message.
type Notification struct {
	Method string
	Params map[string]any
}

// Response is the decoded view of an inbound response message.
type Response struct {
	ID     json.RawMessage
	Result map[string]any
	Error  *Error
}

// NewRequest builds an outbound request envelope. A nil params map is
// encoded as an empty object.
func NewRequest(id json.RawMessage, method string, params map[string]any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %q: %w", method, err)
	}
	return &Message{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  raw,
	}, nil
}

// NewNotification builds an outbound notification envelope.
func NewNotification(method string, params map[string]any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %q: %w", method, err)
	}
	return &Message{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  raw,
	}, nil
}

// NewResponse builds a successful response envelope. A nil result map is
// encoded as an empty object, keeping the result-xor-error invariant: a
// response built here always carries a result and never an error.
func NewResponse(id json.RawMessage, result map[string]any) (*Message, error) {
	raw, err := marshalParams(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Message{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  raw,
	}, nil
}

// NewErrorResponse builds an error response envelope. Passing a nil error is
// a programming mistake, not a wire condition, and panics.
func NewErrorResponse(id json.RawMessage, e *Error) *Message {
	if e == nil {
		panic("protocol: NewErrorResponse requires a non-nil error")
	}
	return &Message{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   e,
	}
}

// AsRequest decodes the envelope into a Request view. Absent params default
// to an empty map; non-object params are rejected.
func (m *Message) AsRequest() (*Request, error) {
	params, err := decodeParams(m.Params)
	if err != nil {
		return nil, fmt.Errorf("request %q: %w", m.Method, err)
	}
	return &Request{ID: m.ID, Method: m.Method, Params: params}, nil
}

// AsNotification decodes the envelope into a Notification view.
func (m *Message) AsNotification() (*Notification, error) {
	params, err := decodeParams(m.Params)
	if err != nil {
		return nil, fmt.Errorf("notification %q: %w", m.Method, err)
	}
	return &Notification{Method: m.Method, Params: params}, nil
}

// AsResponse decodes the envelope into a Response view. When an error is
// present the result is ignored; an absent result defaults to an empty map.
func (m *Message) AsResponse() (*Response, error) {
	resp := &Response{ID: m.ID, Error: m.Error}
	if m.Error != nil {
		return resp, nil
	}
	result, err := decodeParams(m.Result)
	if err != nil {
		return nil, fmt.Errorf("response id %s: %w", m.ID, err)
	}
	resp.Result = result
	return resp, nil
}

func marshalParams(params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	return json.Marshal(params)
}

func decodeParams(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("params must be an object: %w", err)
	}
	return params, nil
}
