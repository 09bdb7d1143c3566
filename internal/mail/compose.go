// Package mail composes and delivers the portal's transactional
// emails. Bodies are rendered through html/template so user-supplied
// names are escaped before they reach a mail client.
package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

// Message is a fully rendered email ready for delivery.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

var activationTemplate = template.Must(template.New("activation").Parse(`<html>
  <body>
    <h1>Hello {{.FirstName}} {{.LastName}}</h1>
    <p>Click <a href="{{.Link}}">here</a> to activate your account.</p>
    <p>The link is valid for 7 days.</p>
  </body>
</html>`))

var resetTemplate = template.Must(template.New("reset").Parse(`<html>
  <body>
    <p>Click <a href="{{.Link}}">here</a> to reset your password.</p>
    <p>The link expires in one hour. If you did not request a reset, ignore this email.</p>
  </body>
</html>`))

// Composer renders the lifecycle emails.
type Composer struct{}

// Activation renders the account activation email.
func (Composer) Activation(to, firstName, lastName, link string) (Message, error) {
	var buf bytes.Buffer
	data := struct {
		FirstName, LastName string
		Link                template.URL
	}{firstName, lastName, template.URL(link)}
	if err := activationTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("mail: render activation: %w", err)
	}
	return Message{To: to, Subject: "Activate your account", HTMLBody: buf.String()}, nil
}

// PasswordReset renders the password reset email.
func (Composer) PasswordReset(to, link string) (Message, error) {
	var buf bytes.Buffer
	data := struct{ Link template.URL }{template.URL(link)}
	if err := resetTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("mail: render reset: %w", err)
	}
	return Message{To: to, Subject: "Your password reset link", HTMLBody: buf.String()}, nil
}
