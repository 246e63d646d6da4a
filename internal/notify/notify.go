// Package notify delivers best-effort notifications about inbound contact
// messages. Delivery never affects the request that triggered it.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"

	"github.com/jonathan/portfolio-api/internal/types"
)

// Notification is a rendered notification ready for delivery.
type Notification struct {
	Subject string
	// HTML is the message body. Every interpolated value is escaped.
	HTML string
}

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

var messageTemplate = template.Must(template.New("message").Parse(`<h2>New Message</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Company:</strong> {{.Company}}</p>
<p><strong>Type:</strong> {{.Type}}</p>
<p><strong>Message:</strong></p>
<p>{{.Message}}</p>
`))

// MessageSubject returns the subject line for a contact message.
func MessageSubject(m types.Message) string {
	return fmt.Sprintf("New Portfolio Inquiry: %s from %s", m.Type, m.Name)
}

// ForMessage renders the notification for a newly stored contact message.
func ForMessage(m types.Message) (Notification, error) {
	company := "-"
	if m.Company != nil && *m.Company != "" {
		company = *m.Company
	}

	var body bytes.Buffer
	err := messageTemplate.Execute(&body, map[string]string{
		"Name":    m.Name,
		"Email":   m.Email,
		"Company": company,
		"Type":    m.Type,
		"Message": m.Message,
	})
	if err != nil {
		return Notification{}, fmt.Errorf("failed to render message notification: %w", err)
	}

	return Notification{Subject: MessageSubject(m), HTML: body.String()}, nil
}

// LogNotifier writes notifications to the log instead of sending them. It is
// used when mail delivery is not configured.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, n Notification) error {
	log.Printf("[notify] mail disabled, skipping %q", n.Subject)
	return nil
}
