package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event names the channel a frame is delivered on.
type Event string

const (
	EventMessage      Event = "message"
	EventNotification Event = "notification"
)

const (
	typeSystem          = "system"
	loginRequiredNotice = "LOGIN_REQUIRED"
)

// Payload is implemented by every frame body the server emits.
type Payload interface {
	Event() Event
}

// System is a control message on the "message" event.
type System struct {
	Message string `json:"message"`
	Role    string `json:"role,omitempty"`
	Type    string `json:"type"`
}

func (System) Event() Event { return EventMessage }

// Welcome greets a freshly identified connection with its current role.
func Welcome(key, role string, now time.Time) System {
	return System{
		Message: fmt.Sprintf("Welcome %s to __ocxers__...%d", key, now.UnixMilli()),
		Role:    role,
		Type:    typeSystem,
	}
}

// LoginRequired tells the client to discard its session.
func LoginRequired() System {
	return System{Message: loginRequiredNotice, Type: typeSystem}
}

// IsLoginRequired reports whether s is the login-required notice.
func (s System) IsLoginRequired() bool {
	return s.Type == typeSystem && s.Message == loginRequiredNotice
}

// Party identifies the sender or recipient of a notification.
type Party struct {
	ID          string `json:"id,omitempty"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

// Notification is an application message on the "notification" event.
type Notification struct {
	Message      string `json:"message,omitempty"`
	Email        string `json:"email,omitempty"`
	Type         string `json:"type,omitempty"`
	From         *Party `json:"from,omitempty"`
	To           *Party `json:"to,omitempty"`
	ExtraMessage string `json:"extraMessage,omitempty"`
}

func (Notification) Event() Event { return EventNotification }

// Frame is the wire form of every server-to-client message.
type Frame struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode renders a payload as a frame.
func Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: p.Event(), Data: data})
}

// Inbound is a client-to-server message. The only event understood is
// "message" carrying the connection key in Data.Email.
type Inbound struct {
	Event Event `json:"event"`
	Data  struct {
		Email string `json:"email"`
	} `json:"data"`
}
