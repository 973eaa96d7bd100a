package bus

import "github.com/groupwarden/groupwarden/pkg/moderation"

// Event is one inbound unit of work from the gateway: either a group
// message to moderate or a member join to screen. Exactly one field is
// set.
type Event struct {
	Message *moderation.Message
	Join    *moderation.JoinEvent
}

// Notice is an outbound message for an admin or group chat, e.g. a
// scheduled moderation digest.
type Notice struct {
	ChatID int64
	Text   string
}
