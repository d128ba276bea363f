package email

import (
	"context"

	"github.com/pinkbeam/platform/pkg/config"
	"github.com/pinkbeam/platform/pkg/observability"
)

// Dispatcher pairs business events with their templates and routes the
// rendered email to the right recipient. Template selection is the only
// logic here; rendering stays in the template functions and transport in
// the Client.
//
// Unlike the notification service, dispatch errors propagate to the caller.
type Dispatcher struct {
	client  *Client
	cfg     config.EmailConfig
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(client *Client, cfg config.EmailConfig, metrics *observability.Metrics, logger *observability.Logger) *Dispatcher {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Dispatcher{client: client, cfg: cfg, metrics: metrics, logger: logger}
}

// send handles the shared skip/send/metrics flow. A zero-value template
// means the event intentionally has no email; that is a silent skip, never
// an error.
func (d *Dispatcher) send(ctx context.Context, templateName string, tpl Template, to, replyTo string) (bool, error) {
	if tpl.Empty() {
		d.logger.WithFields(map[string]interface{}{
			"template": templateName,
		}).Debug("no email template for event, skipping")
		if d.metrics != nil {
			d.metrics.EmailsSkippedTotal.WithLabelValues(templateName).Inc()
		}
		return false, nil
	}

	sent, err := d.client.Send(ctx, Message{
		To:      []string{to},
		Subject: tpl.Subject,
		HTML:    tpl.HTML,
		ReplyTo: replyTo,
		Tags:    []Tag{{Name: "template", Value: templateName}},
	})
	if err != nil {
		if d.metrics != nil {
			d.metrics.EmailErrorsTotal.Inc()
		}
		d.logger.WithError(err).WithFields(map[string]interface{}{
			"template": templateName,
		}).Error("email send failed")
		return false, err
	}
	if sent && d.metrics != nil {
		d.metrics.EmailsSentTotal.WithLabelValues(templateName).Inc()
	}
	return sent, nil
}

// SendQuoteNotification alerts the internal team about a new quote request.
// Replies go straight to the requester.
func (d *Dispatcher) SendQuoteNotification(ctx context.Context, q Quote) (bool, error) {
	return d.send(ctx, "quote_admin_notification", AdminNotification(q), d.cfg.QuoteNotifyEmail, q.Email)
}

// SendClientAutoResponse confirms receipt to the quote requester.
func (d *Dispatcher) SendClientAutoResponse(ctx context.Context, q Quote) (bool, error) {
	return d.send(ctx, "quote_auto_response", ClientAutoResponse(q), q.Email, "")
}

// SendFollowUpEmail sends the nurture email for the given stage: 1 is the
// day-1 template, 2 is day-3, anything else is the day-7 closer.
func (d *Dispatcher) SendFollowUpEmail(ctx context.Context, q Quote, stage int) (bool, error) {
	var tpl Template
	var name string
	switch stage {
	case 1:
		tpl, name = FollowUpDay1(q), "follow_up_day1"
	case 2:
		tpl, name = FollowUpDay3(q), "follow_up_day3"
	default:
		tpl, name = FollowUpDay7(q), "follow_up_day7"
	}
	return d.send(ctx, name, tpl, q.Email, "")
}

// SendStatusUpdateEmail notifies the requester of a quote status change.
// Statuses without client-facing copy are skipped silently.
func (d *Dispatcher) SendStatusUpdateEmail(ctx context.Context, q Quote, newStatus string) (bool, error) {
	return d.send(ctx, "quote_status_update", StatusUpdate(q, newStatus), q.Email, "")
}

// SendTicketCreatedEmail confirms ticket receipt to the client.
func (d *Dispatcher) SendTicketCreatedEmail(ctx context.Context, t Ticket) (bool, error) {
	return d.send(ctx, "ticket_created", TicketCreated(t), t.ClientEmail, "")
}

// SendTicketAdminNotification alerts the support team about a new ticket.
func (d *Dispatcher) SendTicketAdminNotification(ctx context.Context, t Ticket) (bool, error) {
	return d.send(ctx, "ticket_admin_notification", TicketAdminNotification(t), d.cfg.SupportNotifyEmail, t.ClientEmail)
}

// SendTicketStatusUpdateEmail notifies the client of a ticket status change.
// Statuses without client-facing copy are skipped silently.
func (d *Dispatcher) SendTicketStatusUpdateEmail(ctx context.Context, t Ticket, newStatus string) (bool, error) {
	return d.send(ctx, "ticket_status_update", TicketStatusUpdate(t, newStatus), t.ClientEmail, "")
}

// SendTicketCommentEmail notifies the client of a new reply on their ticket.
func (d *Dispatcher) SendTicketCommentEmail(ctx context.Context, t Ticket, commentBody, authorName string) (bool, error) {
	return d.send(ctx, "ticket_comment", TicketCommentNotification(t, commentBody, authorName), t.ClientEmail, "")
}
