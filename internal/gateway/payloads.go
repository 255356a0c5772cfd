package gateway

import "strings"

// EventMessage is the webhook event carrying an inbound chat message. Other
// event types (session status changes, acks) are ignored by the pipeline.
const EventMessage = "message"

const chatIDSuffix = "@c.us"

// Event is the envelope the gateway posts to the webhook endpoint.
type Event struct {
	Event   string  `json:"event"`
	Session string  `json:"session"`
	Payload Payload `json:"payload"`
}

// Payload holds the message fields of an Event.
type Payload struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	FromMe   bool   `json:"fromMe"`
	Body     string `json:"body"`
	FromName string `json:"from_name"`
}

// SenderPhone returns the customer phone in E.164-like form, stripped of the
// gateway chat id suffix. Empty when the payload has no usable sender.
func (p Payload) SenderPhone() string {
	return NormalizePhone(p.From)
}

// NormalizePhone strips the gateway chat id suffix and whitespace from an
// address like "33612345678@c.us".
func NormalizePhone(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimSuffix(addr, chatIDSuffix)
	return addr
}

// ChatID converts a phone number to the gateway's chat id form. Numbers that
// already carry the suffix pass through unchanged; a leading "+" is dropped.
func ChatID(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasSuffix(phone, chatIDSuffix) {
		return phone
	}
	return strings.TrimPrefix(phone, "+") + chatIDSuffix
}
