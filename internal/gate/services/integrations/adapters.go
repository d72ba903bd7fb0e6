package integrations

import (
	"strings"

	"github.com/haukened/tempmail-gate/internal/gate/domain"
)

// Adapter is one host hook point. The dispatcher owns the decision flow;
// an adapter only knows which fields carry emails and how its host expects
// a rejection to be surfaced.
type Adapter interface {
	// Name is the registry key used in API routes.
	Name() string
	// Label is the source recorded in the attempt log and notifications.
	Label() string
	// ToggleKey is the settings key that enables this integration.
	ToggleKey() string
	// ExtractEmails returns the submitted fields that hold email addresses.
	ExtractEmails(sub domain.Submission) []domain.Field
	// ReportRejection surfaces a rejection on out through the host's error channel.
	ReportRejection(out *domain.Outcome, field domain.Field, rej *domain.RejectionError)
}

// fieldsNamed returns fields whose name matches one of names exactly.
func fieldsNamed(sub domain.Submission, names ...string) []domain.Field {
	var out []domain.Field
	for _, f := range sub.Fields {
		for _, n := range names {
			if f.Name == n {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// registration validates the account email of a new user.
type registration struct{}

func (registration) Name() string      { return "registration" }
func (registration) Label() string     { return "Registration" }
func (registration) ToggleKey() string { return domain.KeyEnableRegistration }

func (registration) ExtractEmails(sub domain.Submission) []domain.Field {
	return fieldsNamed(sub, "user_email")
}

func (registration) ReportRejection(out *domain.Outcome, f domain.Field, rej *domain.RejectionError) {
	out.Errors = append(out.Errors, domain.FieldError{Field: f.Name, Message: rej.Message})
}

// wooCommerce validates the billing email at checkout. Rejections are
// reported as checkout notices.
type wooCommerce struct{}

func (wooCommerce) Name() string      { return "woocommerce" }
func (wooCommerce) Label() string     { return "WooCommerce" }
func (wooCommerce) ToggleKey() string { return domain.KeyEnableWooCommerce }

func (wooCommerce) ExtractEmails(sub domain.Submission) []domain.Field {
	return fieldsNamed(sub, "billing_email")
}

func (wooCommerce) ReportRejection(out *domain.Outcome, _ domain.Field, rej *domain.RejectionError) {
	out.Notices = append(out.Notices, rej.Message)
}

// contactForm7 validates email-typed tags and the conventional your-email field.
type contactForm7 struct{}

func (contactForm7) Name() string      { return "cf7" }
func (contactForm7) Label() string     { return "Contact Form 7" }
func (contactForm7) ToggleKey() string { return domain.KeyEnableCF7 }

func (contactForm7) ExtractEmails(sub domain.Submission) []domain.Field {
	var out []domain.Field
	for _, f := range sub.Fields {
		if strings.TrimSuffix(f.Type, "*") == "email" || f.Name == "your-email" {
			out = append(out, f)
		}
	}
	return out
}

func (contactForm7) ReportRejection(out *domain.Outcome, f domain.Field, rej *domain.RejectionError) {
	out.Errors = append(out.Errors, domain.FieldError{Field: f.Name, Message: rej.Message})
}

// wpForms validates email and email-confirmation fields.
type wpForms struct{}

func (wpForms) Name() string      { return "wpforms" }
func (wpForms) Label() string     { return "WPForms" }
func (wpForms) ToggleKey() string { return domain.KeyEnableWPForms }

func (wpForms) ExtractEmails(sub domain.Submission) []domain.Field {
	var out []domain.Field
	for _, f := range sub.Fields {
		if f.Type == "email" || f.Type == "email-confirmation" {
			out = append(out, f)
		}
	}
	return out
}

func (wpForms) ReportRejection(out *domain.Outcome, f domain.Field, rej *domain.RejectionError) {
	out.Errors = append(out.Errors, domain.FieldError{Field: f.Name, Message: rej.Message})
}

// fluentForms validates every field whose key contains "email" and halts
// the whole submission on the first rejection.
type fluentForms struct{}

func (fluentForms) Name() string      { return "fluentforms" }
func (fluentForms) Label() string     { return "Fluent Forms" }
func (fluentForms) ToggleKey() string { return domain.KeyEnableFluentForms }

func (fluentForms) ExtractEmails(sub domain.Submission) []domain.Field {
	var out []domain.Field
	for _, f := range sub.Fields {
		if strings.Contains(f.Name, "email") {
			out = append(out, f)
		}
	}
	return out
}

func (fluentForms) ReportRejection(out *domain.Outcome, f domain.Field, rej *domain.RejectionError) {
	out.Errors = append(out.Errors, domain.FieldError{Field: f.Name, Message: rej.Message})
	out.Halted = true
}

// Builtin returns the adapters for the supported host hook points.
func Builtin() []Adapter {
	return []Adapter{registration{}, wooCommerce{}, contactForm7{}, wpForms{}, fluentForms{}}
}
