package notifications

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*.txt templates/*.html
var templatesFS embed.FS

var (
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/*.txt"))
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/*.html"))
)

// TemplateKind names an email template.
type TemplateKind string

const (
	TemplateRequestCreated      TemplateKind = "request_created"
	TemplateRequestAccepted     TemplateKind = "request_accepted"
	TemplateRequestRejected     TemplateKind = "request_rejected"
	TemplateConnectionCompleted TemplateKind = "connection_completed"
	TemplateConnectionDetached  TemplateKind = "connection_detached"
)

var subjects = map[TemplateKind]string{
	TemplateRequestCreated:      "New mentorship request from %s",
	TemplateRequestAccepted:     "%s accepted your mentorship request",
	TemplateRequestRejected:     "Update on your mentorship request to %s",
	TemplateConnectionCompleted: "%s marked your mentorship as complete",
	TemplateConnectionDetached:  "%s ended your mentorship connection",
}

// Payload is the data available to every template.
type Payload struct {
	AppName         string
	RecipientName   string
	CounterpartName string
	MessagePreview  string
	Reason          string
	ContactEmail    string
	ActionURL       string
}

// Rendered is a template expanded into a subject plus text and HTML bodies.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// Render expands the template named by kind.
func Render(kind TemplateKind, payload Payload) (Rendered, error) {
	subject, ok := subjects[kind]
	if !ok {
		return Rendered{}, fmt.Errorf("notifications: unknown template %q", kind)
	}

	var text bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, string(kind)+".txt", payload); err != nil {
		return Rendered{}, fmt.Errorf("notifications: render %s text: %w", kind, err)
	}

	var html bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, string(kind)+".html", payload); err != nil {
		return Rendered{}, fmt.Errorf("notifications: render %s html: %w", kind, err)
	}

	return Rendered{
		Subject: fmt.Sprintf(subject, payload.CounterpartName),
		Text:    strings.TrimSpace(text.String()) + "\n",
		HTML:    html.String(),
	}, nil
}
