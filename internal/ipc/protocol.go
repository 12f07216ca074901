package ipc

import (
	"encoding/json"
	"fmt"
)

// Commands understood by the daemon.
const (
	CmdStatus  = "status"
	CmdRestore = "restore"
	CmdPersist = "persist"
	CmdCancel  = "cancel"
	CmdHistory = "history"
	CmdClear   = "clear"
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Request represents a command sent from the CLI to the daemon.
type Request struct {
	Command string         `json:"command"`        // e.g. "status", "restore"
	Args    map[string]any `json:"args,omitempty"` // Command-specific arguments
}

// Response represents a reply from the daemon to the CLI.
type Response struct {
	Status  string          `json:"status"`            // "ok" or "error"
	Message string          `json:"message,omitempty"` // Human-readable message or error
	Data    json.RawMessage `json:"data,omitempty"`    // Command-specific payload
}

// IntArg returns the named numeric argument or def. JSON numbers decode
// as float64.
func (r *Request) IntArg(name string, def int) int {
	switch v := r.Args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// OK builds a successful response carrying data encoded as JSON.
func OK(message string, data any) *Response {
	resp := &Response{Status: StatusOK, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Errorf("failed to encode response: %v", err)
		}
		resp.Data = raw
	}
	return resp
}

// Errorf builds an error response.
func Errorf(format string, args ...any) *Response {
	return &Response{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// Err returns the response as an error when it reports failure.
func (r *Response) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	if r.Message == "" {
		return fmt.Errorf("daemon returned status %q", r.Status)
	}
	return fmt.Errorf("daemon: %s", r.Message)
}

// Decode unmarshals the response data into v.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("response has no data")
	}
	return json.Unmarshal(r.Data, v)
}
