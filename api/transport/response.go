package transport

import "encoding/json"

// Envelope is the REST response body. Code 0 means success; failures carry
// a non-zero code with a message or err.
type Envelope struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Err     interface{} `json:"err,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}) Envelope {
	return Envelope{Code: 0, Data: data}
}

// NewMessage returns an envelope carrying only a code and a message.
func NewMessage(code int, message string) Envelope {
	return Envelope{Code: code, Message: message}
}

// NewError returns a failure envelope.
func NewError(code int, err interface{}) Envelope {
	return Envelope{Code: code, Err: err}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
