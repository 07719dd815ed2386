package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// EventType records the webhook event type under the key "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// CustomerID records the payment processor customer id under the key "customer_id".
func CustomerID(id string) slog.Attr {
	return slog.String("customer_id", id)
}

// SubscriptionID records the processor subscription id under the key "subscription_id".
func SubscriptionID(id string) slog.Attr {
	return slog.String("subscription_id", id)
}

// Template records a notification template name under the key "template".
func Template(name string) slog.Attr {
	return slog.String("template", name)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the domain event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}
