package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

type emailSender interface {
	NewMessage() *mailersend.Message
	Send(ctx context.Context, message *mailersend.Message) (*mailersend.Response, error)
}

// MailNotifier emails a summary of each run
type MailNotifier struct {
	sender   emailSender
	fromName string
	from     string
	to       string
	timeout  time.Duration
}

// NewMailNotifier creates a MailNotifier backed by MailerSend
func NewMailNotifier(apiKey, fromName, from, to string) *MailNotifier {
	ms := mailersend.NewMailersend(apiKey)
	return &MailNotifier{
		sender:   ms.Email,
		fromName: fromName,
		from:     from,
		to:       to,
		timeout:  5 * time.Second,
	}
}

// Notify sends one email describing the report and the run error, if any.
func (m *MailNotifier) Notify(ctx context.Context, report *domain.Report, runErr error) error {
	if report == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	text, htmlBody := summary(report, runErr)

	message := m.sender.NewMessage()
	message.SetFrom(mailersend.From{Name: m.fromName, Email: m.from})
	message.SetRecipients([]mailersend.Recipient{{Email: m.to}})
	message.SetSubject(fmt.Sprintf("Generated images for %q", report.Prompt))
	message.SetText(text)
	message.SetHTML(htmlBody)

	if _, err := m.sender.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func summary(report *domain.Report, runErr error) (string, string) {
	var text, body strings.Builder

	fmt.Fprintf(&text, "Run %s\nPrompt: %s\n%s\n\n", report.RunID, report.Prompt, RunMessage(report, runErr))
	fmt.Fprintf(&body, "<h1>%s</h1><p>Run %s</p><ul>", html.EscapeString(report.Prompt), html.EscapeString(report.RunID))

	for _, res := range report.Results {
		line := Message(res)
		fmt.Fprintf(&text, "- %s\n", line)
		fmt.Fprintf(&body, "<li>%s</li>", html.EscapeString(line))
	}
	body.WriteString("</ul>")

	for _, img := range report.Images {
		fmt.Fprintf(&body, `<img src="%s" width="256">`, html.EscapeString(img.URL))
	}

	return text.String(), body.String()
}
