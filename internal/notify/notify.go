// Package notify delivers purge warnings to flagged users and reports to
// operators by email.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/metrics"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
)

const (
	ReportSubject  = "[LOG] Jira Purge Users Report"
	WarningSubject = "[WARNING] Your Jira account is scheduled for removal"
)

// Message is a rendered plain-text email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender transports a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier renders messages and hands them to a Sender. It implements
// purge.Notifier.
type Notifier struct {
	sender Sender
	log    zerolog.Logger
}

func New(sender Sender, log zerolog.Logger) *Notifier {
	return &Notifier{sender: sender, log: log}
}

// SendWarning tells the flagged user when the account will be removed.
func (n *Notifier) SendWarning(ctx context.Context, robot *model.Robot, rec *model.PurgeRecord) error {
	if rec.Subject.Email == "" {
		metrics.NotificationsTotal.WithLabelValues("warning", "skipped").Inc()
		return fmt.Errorf("user %s has no email address", rec.Subject.UserID)
	}
	return n.send(ctx, "warning", RenderWarning(robot, rec))
}

// SendReport emails report to an operator as indented JSON.
func (n *Notifier) SendReport(ctx context.Context, to string, report *model.Report) error {
	msg, err := RenderReport(to, report)
	if err != nil {
		return err
	}
	return n.send(ctx, "report", msg)
}

func (n *Notifier) send(ctx context.Context, kind string, msg Message) error {
	if err := n.sender.Send(ctx, msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("send %s: %w", kind, err)
	}
	metrics.NotificationsTotal.WithLabelValues(kind, "ok").Inc()
	n.log.Debug().Str("kind", kind).Strs("to", msg.To).Msg("Notification sent")
	return nil
}

// RenderWarning builds the pre-removal warning for rec.
func RenderWarning(robot *model.Robot, rec *model.PurgeRecord) Message {
	reasons := make([]string, 0, len(rec.Reasons))
	for _, r := range rec.Reasons {
		reasons = append(reasons, describeReason(r))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", rec.Subject.DisplayName)
	fmt.Fprintf(&b, "Your Jira account (%s) has been flagged by %s and will be removed on %s.\n\n",
		rec.Subject.Email, robot.Name, rec.ScheduledRemovalAt.UTC().Format(time.RFC1123))
	b.WriteString("Reasons:\n")
	for _, r := range reasons {
		fmt.Fprintf(&b, "  - %s\n", r)
	}
	b.WriteString("\nSign in to Jira before that date to keep your account.\n")
	return Message{To: []string{rec.Subject.Email}, Subject: WarningSubject, Body: b.String()}
}

// RenderReport builds the operator report email.
func RenderReport(to string, report *model.Report) (Message, error) {
	if report == nil {
		report = &model.Report{}
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return Message{}, fmt.Errorf("encode report: %w", err)
	}
	return Message{To: []string{to}, Subject: ReportSubject, Body: string(body)}, nil
}

func describeReason(r model.PurgeReason) string {
	switch r {
	case model.ReasonActiveStatus:
		return "the account is deactivated"
	case model.ReasonLastActive:
		return "no recent activity"
	case model.ReasonDuplicateEmail:
		return "the email address duplicates an older account"
	case model.ReasonDuplicateName:
		return "the display name duplicates an older account"
	default:
		return string(r)
	}
}
