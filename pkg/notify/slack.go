package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jordanlanch/funnelsync/pkg/ledger"
)

// maxSlackFailures caps the failed keys listed in one Slack message
const maxSlackFailures = 10

// ErrSlackSendFailed is returned when the Slack webhook rejects a message
var ErrSlackSendFailed = errors.New("failed to send Slack notification")

// Message represents a Slack message
type Message struct {
	Text string `json:"text"`
}

// SlackClient sends Slack messages
type SlackClient interface {
	SendMessage(ctx context.Context, msg Message) error
}

// WebhookClient implements SlackClient using an incoming webhook
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new Slack webhook client
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendMessage posts a message to the webhook
func (c *WebhookClient) SendMessage(ctx context.Context, msg Message) error {
	if c.webhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSlackSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrSlackSendFailed, resp.StatusCode)
	}
	return nil
}

// SlackNotifier posts push outcomes to a channel. A nil client disables it.
type SlackNotifier struct {
	client SlackClient
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(client SlackClient) *SlackNotifier {
	return &SlackNotifier{client: client}
}

// IsEnabled returns true if Slack notifications are enabled
func (n *SlackNotifier) IsEnabled() bool {
	return n.client != nil
}

// NotifyPush reports a partial or failed push
func (n *SlackNotifier) NotifyPush(ctx context.Context, op *ledger.Operation) error {
	if !n.IsEnabled() {
		return nil
	}
	return n.client.SendMessage(ctx, Message{Text: SlackText(op)})
}

// SlackText renders the message for an operation
func SlackText(op *ledger.Operation) string {
	s := op.Summary()

	icon := "⚠️"
	if op.Status == ledger.StatusFailed {
		icon = "❌"
	}
	text := fmt.Sprintf("%s *%s*\n"+
		"• Operation: %s\n"+
		"• Created: %d, Updated: %d, Skipped: %d, Failed: %d\n"+
		"• Success rate: %.2f%%",
		icon, Subject(op), op.ID, s.Created, s.Updated, s.Skipped, s.Failed, s.SuccessRate)

	if op.Error != "" {
		text += fmt.Sprintf("\n• Error: %s", op.Error)
	}
	for i, f := range op.Pushed.Failed {
		if i == maxSlackFailures {
			text += fmt.Sprintf("\n• ... and %d more failed keys", len(op.Pushed.Failed)-maxSlackFailures)
			break
		}
		text += fmt.Sprintf("\n• `%s`: %s", f.Key, f.Error)
	}
	return text
}

// Notifier reports a finished push
type Notifier interface {
	NotifyPush(ctx context.Context, op *ledger.Operation) error
}

// Multi fans a notification out to several notifiers. Every notifier is
// tried and the errors are joined.
type Multi []Notifier

// NotifyPush calls each notifier in order
func (m Multi) NotifyPush(ctx context.Context, op *ledger.Operation) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyPush(ctx, op); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
