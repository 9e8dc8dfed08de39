package hub

import (
	"context"
	"strings"
)

const (
	AdminRoom        = "admins"
	NotificationType = "notification"
	inboxRoomPrefix  = "inbox:"
)

// InboxRoom names the room that carries one address's notifications.
func InboxRoom(address string) string {
	return inboxRoomPrefix + strings.ToLower(strings.TrimSpace(address))
}

type Notification struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier pushes registration notifications to connected clients.
type Notifier struct {
	Hub *Hub
}

func (n Notifier) NotifyUser(ctx context.Context, address, subject, body string) error {
	return n.Hub.BroadcastToRoom(InboxRoom(address), Message{
		Type:    NotificationType,
		Payload: Notification{Subject: subject, Body: body},
	})
}

// NotifyAdmins broadcasts once to the admins room; connected administrators
// all share it, so addresses are not needed.
func (n Notifier) NotifyAdmins(ctx context.Context, subject, body string, addresses []string) error {
	return n.Hub.BroadcastToRoom(AdminRoom, Message{
		Type:    NotificationType,
		Payload: Notification{Subject: subject, Body: body},
	})
}
