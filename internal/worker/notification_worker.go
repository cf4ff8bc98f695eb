package worker

import (
	"github.com/spec-kit/storefront-chat/internal/events"
	"github.com/spec-kit/storefront-chat/internal/service"
)

// StartNotificationWorker registers notification handlers on a session's
// event registry. Run it before the session connects.
func StartNotificationWorker(notificationService *service.NotificationService, registry *events.Registry) {
	if notificationService == nil || registry == nil {
		return
	}
	notificationService.RegisterHandlers(registry)
}
