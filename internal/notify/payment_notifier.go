package notify

import (
	"context"

	"github.com/physioflow/billing/internal/billing"
	"github.com/physioflow/billing/internal/user"
)

// PaymentFailureNotifier adapts the dispatcher to the synchronizer's
// payment failure hook.
type PaymentFailureNotifier struct {
	dispatcher Dispatcher
}

func NewPaymentFailureNotifier(dispatcher Dispatcher) *PaymentFailureNotifier {
	if dispatcher == nil {
		panic("notify: dispatcher is required")
	}
	return &PaymentFailureNotifier{dispatcher: dispatcher}
}

// PaymentFailed sends the payment failure notification to the affected user.
func (n *PaymentFailureNotifier) PaymentFailed(ctx context.Context, u *user.User, notice billing.PaymentFailureNotice) error {
	tag := matchLocale(u.PreferredLocale())
	return n.dispatcher.Send(ctx, Message{
		To:       u.Email,
		Locale:   u.PreferredLocale(),
		Template: TemplatePaymentFailed,
		Params: map[string]any{
			"amount":         notice.Amount.Format(tag),
			"reason":         notice.Reason,
			"grace_deadline": formatDate(tag, notice.GraceDeadline),
		},
	})
}
