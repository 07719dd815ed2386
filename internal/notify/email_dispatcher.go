package notify

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/physioflow/billing/pkg/email"
	"github.com/physioflow/billing/pkg/logger"
)

// EmailDispatcher renders notification templates and delivers them through
// the email boundary. Subject lines are localized per supported language
// with an English fallback; body copy is English-only for now (translation
// content is owned by the web app).
type EmailDispatcher struct {
	sender email.EmailSender
	log    *slog.Logger
}

func NewEmailDispatcher(sender email.EmailSender, log *slog.Logger) *EmailDispatcher {
	if sender == nil {
		panic("notify: email sender is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &EmailDispatcher{sender: sender, log: log}
}

var subjects = map[string]map[Template]string{
	"en": {
		TemplatePaymentFailed:   "Your payment failed",
		TemplateTrialEnding:     "Your trial is ending soon",
		TemplateTrialEnded:      "Your trial has ended",
		TemplateRenewalReminder: "Your subscription renews soon",
	},
	"nl": {
		TemplatePaymentFailed:   "Je betaling is mislukt",
		TemplateTrialEnding:     "Je proefperiode loopt bijna af",
		TemplateTrialEnded:      "Je proefperiode is afgelopen",
		TemplateRenewalReminder: "Je abonnement wordt binnenkort verlengd",
	},
	"de": {
		TemplatePaymentFailed:   "Deine Zahlung ist fehlgeschlagen",
		TemplateTrialEnding:     "Deine Testphase endet bald",
		TemplateTrialEnded:      "Deine Testphase ist beendet",
		TemplateRenewalReminder: "Dein Abo verlängert sich bald",
	},
}

var bodies = map[Template]*template.Template{
	TemplatePaymentFailed: template.Must(template.New("payment_failed").Parse(`
		<p>We could not collect your payment of {{.amount}}.{{if .reason}} The processor reported: {{.reason}}.{{end}}</p>
		<p>Please update your payment method. You keep full access until {{.grace_deadline}}.</p>`)),
	TemplateTrialEnding: template.Must(template.New("trial_ending").Parse(`
		<p>Your free trial ends in {{.days}} day(s), on {{.trial_end_date}}.</p>
		<p>Add a payment method to keep access to your exercise program.</p>`)),
	TemplateTrialEnded: template.Must(template.New("trial_ended").Parse(`
		<p>Your free trial ended on {{.trial_end_date}}.</p>
		<p>Subscribe to pick up your exercise program where you left off.</p>`)),
	TemplateRenewalReminder: template.Must(template.New("renewal_reminder").Parse(`
		<p>Your {{.plan}} subscription renews on {{.renewal_date}} for {{.amount}}.</p>
		<p>No action is needed if you want to continue.</p>`)),
}

// Send renders and delivers one notification.
func (d *EmailDispatcher) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("notify: message without recipient")
	}

	body, ok := bodies[msg.Template]
	if !ok {
		return fmt.Errorf("notify: unknown template %q", msg.Template)
	}

	var buf strings.Builder
	if err := body.Execute(&buf, msg.Params); err != nil {
		return fmt.Errorf("notify: failed to render template %q: %w", msg.Template, err)
	}

	tag := matchLocale(msg.Locale)
	if err := d.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   msg.To,
		Subject:  subjectFor(tag, msg.Template),
		BodyHTML: buf.String(),
		Tag:      string(msg.Template),
	}); err != nil {
		return err
	}

	d.log.InfoContext(ctx, "notification sent", logger.Template(string(msg.Template)))
	return nil
}

func subjectFor(tag language.Tag, tpl Template) string {
	base, _ := tag.Base()
	if byLang, ok := subjects[base.String()]; ok {
		if s, ok := byLang[tpl]; ok {
			return s
		}
	}
	return subjects[DefaultLocale][tpl]
}
