package mailer

import (
	"bytes"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"
)

// PasswordResetSubject is the subject of the reset email.
const PasswordResetSubject = "Password Reset"

var (
	passwordResetHTML = htmltemplate.Must(htmltemplate.New("reset.html").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hello {{if .FirstName}}{{.FirstName}}{{else}}there{{end}},</p>
<p>We received a request to reset the password for {{.Email}}.</p>
<p><a href="{{.ResetURL}}">Reset your password</a></p>
<p>If you did not ask for this, you can ignore this email.</p>
</body>
</html>
`))

	passwordResetText = texttemplate.Must(texttemplate.New("reset.txt").Parse(`Hello {{if .FirstName}}{{.FirstName}}{{else}}there{{end}},

We received a request to reset the password for {{.Email}}.

Reset your password: {{.ResetURL}}

If you did not ask for this, you can ignore this email.
`))
)

// PasswordReset is the data rendered into the reset email.
type PasswordReset struct {
	FirstName string
	Email     string
	ResetURL  string
}

// ResetURL builds "<frontendURL>/?token=<token>".
func ResetURL(frontendURL, token string) string {
	return frontendURL + "/?token=" + url.QueryEscape(token)
}

// RenderPasswordReset renders both bodies of the reset email addressed to data.Email.
func RenderPasswordReset(data PasswordReset) (Message, error) {
	var html, text bytes.Buffer
	if err := passwordResetHTML.Execute(&html, data); err != nil {
		return Message{}, err
	}
	if err := passwordResetText.Execute(&text, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{data.Email},
		Subject: PasswordResetSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
