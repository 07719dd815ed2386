package notify

import "context"

// Template identifies a notification kind. Template content lives with the
// dispatcher implementation; callers only choose the kind and parameters.
type Template string

const (
	TemplatePaymentFailed   Template = "payment_failed"
	TemplateTrialEnding     Template = "trial_ending"
	TemplateTrialEnded      Template = "trial_ended"
	TemplateRenewalReminder Template = "renewal_reminder"
)

// Message is a structured notification request.
type Message struct {
	To       string            // recipient email address
	Locale   string            // BCP-47 tag; empty falls back to the default locale
	Template Template
	Params   map[string]any
}

// Dispatcher sends a notification. Failures come back as errors; callers
// decide whether to swallow (webhook path) or record (scanner path) them.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}
