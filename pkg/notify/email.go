// Package notify tells the team when a push does not fully succeed.
package notify

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/jordanlanch/funnelsync/pkg/ledger"
)

const (
	defaultHost  = "https://api.sendgrid.com"
	sendEndpoint = "/v3/mail/send"

	// maxListedFailures caps the failed keys written into one email
	maxListedFailures = 25
)

// Options configures the email notifier
type Options struct {
	FromEmail string
	FromName  string
	ToEmail   string
	APIKey    string
	// Host overrides the SendGrid API host
	Host string
}

// EmailNotifier sends push outcome emails through SendGrid.
// Without an API key or recipient it only logs.
type EmailNotifier struct {
	fromEmail   string
	fromName    string
	toEmail     string
	apiKey      string
	host        string
	useSendGrid bool
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(opts Options) *EmailNotifier {
	useSendGrid := opts.APIKey != "" && opts.ToEmail != ""
	if useSendGrid {
		log.Printf("✅ Push notifications enabled via SendGrid (to: %s)", opts.ToEmail)
	} else {
		log.Printf("⚠️  Push notifications in console-only mode (set SENDGRID_API_KEY and PUSH_NOTIFY_EMAIL)")
	}

	host := opts.Host
	if host == "" {
		host = defaultHost
	}

	return &EmailNotifier{
		fromEmail:   opts.FromEmail,
		fromName:    opts.FromName,
		toEmail:     opts.ToEmail,
		apiKey:      opts.APIKey,
		host:        host,
		useSendGrid: useSendGrid,
	}
}

// NotifyPush reports a partial or failed push
func (n *EmailNotifier) NotifyPush(ctx context.Context, op *ledger.Operation) error {
	subject := Subject(op)

	if !n.useSendGrid {
		log.Printf("📧 [PUSH] %s", subject)
		log.Printf("   Operation: %s", op.ID)
		if op.Error != "" {
			log.Printf("   Error: %s", op.Error)
		}
		log.Printf("   ⚠️  Email NOT sent (console mode)")
		return nil
	}

	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail("", n.toEmail)
	message := mail.NewSingleEmail(from, subject, to, PlainText(op), HTML(op))

	request := sendgrid.GetRequest(n.apiKey, sendEndpoint, n.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}
	return nil
}

// Subject is the email subject line for an operation
func Subject(op *ledger.Operation) string {
	s := op.Summary()
	switch op.Status {
	case ledger.StatusFailed:
		return fmt.Sprintf("Push failed for funnel %s", op.FunnelID)
	default:
		return fmt.Sprintf("Push finished with %d failed of %d custom values for funnel %s", s.Failed, s.Total, op.FunnelID)
	}
}

// PlainText renders the plain text body
func PlainText(op *ledger.Operation) string {
	s := op.Summary()
	var b strings.Builder

	fmt.Fprintf(&b, "Push operation %s for funnel %s ended with status %s.\n\n", op.ID, op.FunnelID, op.Status)
	fmt.Fprintf(&b, "Created: %d\nUpdated: %d\nSkipped: %d\nFailed: %d\nSuccess rate: %.2f%%\n",
		s.Created, s.Updated, s.Skipped, s.Failed, s.SuccessRate)

	if op.Error != "" {
		fmt.Fprintf(&b, "\nError: %s\n", op.Error)
	}

	if len(op.Pushed.Failed) > 0 {
		b.WriteString("\nFailed keys:\n")
		for i, f := range op.Pushed.Failed {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "- ... and %d more\n", len(op.Pushed.Failed)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", f.Key, f.Error)
		}
	}
	return b.String()
}

// HTML renders the HTML body
func HTML(op *ledger.Operation) string {
	s := op.Summary()
	var b strings.Builder

	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>Push %s</h2>", html.EscapeString(string(op.Status)))
	fmt.Fprintf(&b, "<p>Funnel <strong>%s</strong>, operation <code>%s</code>.</p>",
		html.EscapeString(op.FunnelID), html.EscapeString(op.ID))
	fmt.Fprintf(&b, "<table><tr><td>Created</td><td>%d</td></tr><tr><td>Updated</td><td>%d</td></tr>"+
		"<tr><td>Skipped</td><td>%d</td></tr><tr><td>Failed</td><td>%d</td></tr>"+
		"<tr><td>Success rate</td><td>%.2f%%</td></tr></table>",
		s.Created, s.Updated, s.Skipped, s.Failed, s.SuccessRate)

	if op.Error != "" {
		fmt.Fprintf(&b, "<p style=\"color: #b91c1c;\">%s</p>", html.EscapeString(op.Error))
	}

	if len(op.Pushed.Failed) > 0 {
		b.WriteString("<h3>Failed keys</h3><ul>")
		for i, f := range op.Pushed.Failed {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "<li>... and %d more</li>", len(op.Pushed.Failed)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "<li><code>%s</code>: %s</li>", html.EscapeString(f.Key), html.EscapeString(f.Error))
		}
		b.WriteString("</ul>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
