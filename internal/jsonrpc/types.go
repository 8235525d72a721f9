// Package jsonrpc implements the minimal JSON-RPC 2.0 framing used to talk
// to an out-of-process host.
package jsonrpc

import "encoding/json"

// Version is the JSON-RPC version.
const Version = "2.0"

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ID represents a JSON-RPC request/response ID. It can be a string, a
// number, or null.
type ID struct {
	value interface{}
}

// NewIDInt creates an ID from an integer.
func NewIDInt(n int64) ID {
	return ID{value: n}
}

// NewIDString creates an ID from a string.
func NewIDString(s string) ID {
	return ID{value: s}
}

// IsNull returns true if the ID is null.
func (id ID) IsNull() bool {
	return id.value == nil
}

// Int64 returns the ID as an int64, if it is numeric.
func (id ID) Int64() (int64, bool) {
	switch v := id.value.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &id.value)
}

// Error represents a JSON-RPC error.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new JSON-RPC error.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorWithData creates a new JSON-RPC error carrying structured data.
func NewErrorWithData(code int, message string, data interface{}) *Error {
	e := &Error{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			e.Data = raw
		}
	}
	return e
}
