// Package mail turns account notifications into delivered email.
//
// Services hand a Notification to a Dispatcher, which publishes it to the
// message queue without blocking the caller. A Worker consumes the queue,
// renders the notification's templates and passes the result to a Sender.
package mail

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Template identifies the pair of embedded templates used to render a
// notification body.
type Template string

const (
	TemplateConfirm        Template = "confirm"
	TemplateChangeEmail    Template = "change_email"
	TemplateChangePassword Template = "change_password"
	TemplateResetPassword  Template = "reset_password"
)

// Templates lists every template id the renderer knows.
var Templates = []Template{
	TemplateConfirm,
	TemplateChangeEmail,
	TemplateChangePassword,
	TemplateResetPassword,
}

// Notification is the queued request to send one email. It is encoded as
// JSON on the wire.
type Notification struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template Template       `json:"template"`
	Context  map[string]any `json:"context,omitempty"`
}

// Validate checks that the notification can be rendered and addressed.
func (n Notification) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.To, validation.Required, is.Email),
		validation.Field(&n.Subject, validation.Required),
		validation.Field(&n.Template, validation.Required, validation.In(templateValues()...)),
	)
}

func templateValues() []interface{} {
	out := make([]interface{}, len(Templates))
	for i, t := range Templates {
		out[i] = t
	}
	return out
}
