package webhooks

import "time"

// NotificationType identifies a collaboration event emitted to the external
// delivery collaborator (email/push sender).
type NotificationType string

const (
	NotificationCollaborationInvited  NotificationType = "collaboration.invited"
	NotificationCollaborationAccepted NotificationType = "collaboration.accepted"
	NotificationCollaborationDeclined NotificationType = "collaboration.declined"
	NotificationCollaborationRemoved  NotificationType = "collaboration.removed"
	NotificationCollaborationDisabled NotificationType = "collaboration.disabled"
)

// Notification is the structured event handed to the delivery collaborator.
// Delivery success is not awaited by the emitter.
type Notification struct {
	ID             string            `json:"id"`
	Type           NotificationType  `json:"type"`
	RecipientEmail string            `json:"recipient_email"`
	RegistryID     int64             `json:"registry_id"`
	CollaboratorID string            `json:"collaborator_id,omitempty"`
	Payload        map[string]string `json:"payload,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}
