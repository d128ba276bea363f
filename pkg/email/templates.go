package email

import (
	"fmt"
	"strings"
)

// Template is a rendered email. The zero value signals "no email for this
// event"; dispatch checks Empty and skips sending rather than mailing a
// blank message.
type Template struct {
	Subject string
	HTML    string
}

// Empty reports whether the template carries nothing to send.
func (t Template) Empty() bool {
	return t.Subject == "" && t.HTML == ""
}

// Quote is the subset of a quote request that templates render.
type Quote struct {
	ID          string
	Name        string
	Email       string
	Company     string
	ProjectType string
	Budget      string
	Timeline    string
	Message     string
	LeadQuality string
	Status      string
}

// Ticket is the subset of a support ticket that templates render.
type Ticket struct {
	ID          string
	Title       string
	Description string
	ClientName  string
	ClientEmail string
	Priority    string
	Category    string
	Status      string
}

// Shared layout primitives. These are pure string builders; no I/O, no
// clock, no randomness, so template output is fully determined by input.

func layout(body, footer string) string {
	if footer == "" {
		footer = "Pink Beam · hello@pinkbeam.ai"
	}
	return `<div style="max-width: 600px; margin: 0 auto; font-family: -apple-system, 'Segoe UI', Helvetica, Arial, sans-serif; color: #1f2937;">` +
		body +
		`<hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0 16px;">` +
		`<p style="font-size: 12px; color: #9ca3af; text-align: center;">` + footer + `</p>` +
		`</div>`
}

func header(title, subtitle string) string {
	h := `<div style="background: linear-gradient(135deg, #ec4899 0%, #8b5cf6 100%); padding: 32px 24px; border-radius: 8px 8px 0 0; text-align: center;">` +
		`<h1 style="color: #ffffff; margin: 0; font-size: 24px;">` + title + `</h1>`
	if subtitle != "" {
		h += `<p style="color: #fce7f3; margin: 8px 0 0; font-size: 14px;">` + subtitle + `</p>`
	}
	return h + `</div>`
}

func card(content string) string {
	return `<div style="background: #f9fafb; border-radius: 8px; padding: 20px; margin: 16px 0;">` + content + `</div>`
}

func button(text, url string) string {
	return `<div style="text-align: center; margin: 24px 0;">` +
		`<a href="` + url + `" style="display: inline-block; background: #ec4899; color: #ffffff; padding: 12px 28px; border-radius: 6px; text-decoration: none; font-weight: 600;">` + text + `</a>` +
		`</div>`
}

// firstName returns everything before the first space, for greeting lines.
func firstName(full string) string {
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}

// shortID truncates an id to its first 8 characters for human display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func detailRow(label, value string) string {
	return `<p style="margin: 4px 0;"><strong>` + label + `:</strong> ` + value + `</p>`
}

// leadBadge renders the color-coded lead-quality badge. Hot leads are red,
// warm leads amber, anything else gray.
func leadBadge(quality string) string {
	color := "#6b7280"
	switch quality {
	case "HOT":
		color = "#dc2626"
	case "WARM":
		color = "#d97706"
	}
	return `<span style="display: inline-block; background: ` + color + `; color: #ffffff; padding: 2px 10px; border-radius: 12px; font-size: 12px; font-weight: 600;">` + quality + `</span>`
}

// AdminNotification renders the internal alert for a new quote request.
func AdminNotification(q Quote) Template {
	details := detailRow("Name", q.Name) +
		detailRow("Email", q.Email)
	if q.Company != "" {
		details += detailRow("Company", q.Company)
	}
	details += detailRow("Project type", q.ProjectType)
	if q.Budget != "" {
		details += detailRow("Budget", q.Budget)
	}
	if q.Timeline != "" {
		details += detailRow("Timeline", q.Timeline)
	}
	if q.LeadQuality != "" {
		details += `<p style="margin: 12px 0 4px;">` + leadBadge(q.LeadQuality) + `</p>`
	}

	body := header("New quote request", q.ProjectType) +
		card(details)
	if q.Message != "" {
		body += card(`<p style="margin: 0; white-space: pre-wrap;">` + q.Message + `</p>`)
	}

	return Template{
		Subject: fmt.Sprintf("New quote request from %s", q.Name),
		HTML:    layout(body, ""),
	}
}

// ClientAutoResponse renders the confirmation sent back to the submitter.
func ClientAutoResponse(q Quote) Template {
	body := header("We got your request!", "") +
		`<div style="padding: 24px;">` +
		`<p>Hi ` + firstName(q.Name) + `,</p>` +
		`<p>Thanks for reaching out about your ` + q.ProjectType + ` project. We review every request personally and will get back to you within one business day.</p>` +
		card(`<p style="margin: 0;">In the meantime, feel free to reply to this email with anything you'd like to add.</p>`) +
		`<p>Talk soon,<br>The Pink Beam team</p>` +
		`</div>`

	return Template{
		Subject: "We received your quote request",
		HTML:    layout(body, ""),
	}
}

// FollowUpDay1 is the first nurture email, sent a day after the request.
func FollowUpDay1(q Quote) Template {
	body := header("Quick follow-up", "") +
		`<div style="padding: 24px;">` +
		`<p>Hi ` + firstName(q.Name) + `,</p>` +
		`<p>Just checking in on your ` + q.ProjectType + ` request. We've started sketching some initial ideas and would love to hear more about what success looks like for ` + companyOr(q, "your team") + `.</p>` +
		button("Book a 15-minute call", "https://pinkbeam.ai/schedule") +
		`</div>`

	return Template{
		Subject: "Following up on your " + q.ProjectType + " project",
		HTML:    layout(body, ""),
	}
}

// FollowUpDay3 is the second nurture email.
func FollowUpDay3(q Quote) Template {
	body := header("Still thinking it over?", "") +
		`<div style="padding: 24px;">` +
		`<p>Hi ` + firstName(q.Name) + `,</p>` +
		`<p>We wanted to share a couple of recent ` + q.ProjectType + ` projects we've shipped for teams like ` + companyOr(q, "yours") + `. No pressure, just proof of work.</p>` +
		button("See our recent work", "https://pinkbeam.ai/work") +
		`</div>`

	return Template{
		Subject: "Some work we think you'll like",
		HTML:    layout(body, ""),
	}
}

// FollowUpDay7 is the final nurture email.
func FollowUpDay7(q Quote) Template {
	body := header("Last check-in", "") +
		`<div style="padding: 24px;">` +
		`<p>Hi ` + firstName(q.Name) + `,</p>` +
		`<p>This is our last note about your ` + q.ProjectType + ` request. If the timing isn't right for ` + companyOr(q, "you") + `, no worries at all. We'll keep your details on file in case things change.</p>` +
		`<p>Wishing you the best with the project either way.</p>` +
		`</div>`

	return Template{
		Subject: "Closing the loop on your quote request",
		HTML:    layout(body, ""),
	}
}

func companyOr(q Quote, fallback string) string {
	if q.Company != "" {
		return q.Company
	}
	return fallback
}

type statusCopy struct {
	heading string
	body    string
}

var quoteStatusCopy = map[string]statusCopy{
	"CONTACTED": {
		heading: "We're on it",
		body:    "A member of our team has picked up your request and will be in touch shortly.",
	},
	"QUALIFIED": {
		heading: "Great fit!",
		body:    "We've reviewed your request and think we're a strong match for this project.",
	},
	"PROPOSAL": {
		heading: "Your proposal is ready",
		body:    "We've put together a proposal for your project. Keep an eye on your inbox for the details.",
	},
	"ACCEPTED": {
		heading: "Welcome aboard!",
		body:    "We're thrilled to get started. Your project lead will reach out with next steps.",
	},
	"DECLINED": {
		heading: "Thanks for considering us",
		body:    "We're not the right fit for this project, but we appreciate you reaching out and wish you the best.",
	},
}

// StatusUpdate renders the client-facing email for a quote status change.
// Statuses without client-facing copy return the zero Template; dispatch
// must check Empty and skip rather than send a blank email.
func StatusUpdate(q Quote, newStatus string) Template {
	cc, ok := quoteStatusCopy[newStatus]
	if !ok {
		return Template{}
	}

	body := header(cc.heading, "") +
		`<div style="padding: 24px;">` +
		`<p>Hi ` + firstName(q.Name) + `,</p>` +
		`<p>` + cc.body + `</p>` +
		`</div>`

	return Template{
		Subject: cc.heading + " - an update on your quote request",
		HTML:    layout(body, ""),
	}
}

// TicketCreated renders the confirmation sent to a client who opened a
// support ticket.
func TicketCreated(t Ticket) Template {
	body := header("Ticket received", "#"+shortID(t.ID)) +
		`<div style="padding: 24px;">` +
		`<p>Hi ` + firstName(t.ClientName) + `,</p>` +
		`<p>We've received your support ticket and our team will take a look shortly.</p>` +
		card(
			detailRow("Ticket", "#"+shortID(t.ID))+
				detailRow("Title", t.Title)+
				detailRow("Priority", t.Priority)+
				detailRow("Category", t.Category),
		) +
		`<p>We'll email you as soon as there's an update.</p>` +
		`</div>`

	return Template{
		Subject: "Ticket received: " + t.Title,
		HTML:    layout(body, ""),
	}
}

// TicketAdminNotification renders the internal alert for a new ticket.
func TicketAdminNotification(t Ticket) Template {
	body := header("New support ticket", "#"+shortID(t.ID)) +
		card(
			detailRow("Client", t.ClientName)+
				detailRow("Email", t.ClientEmail)+
				detailRow("Title", t.Title)+
				detailRow("Priority", t.Priority)+
				detailRow("Category", t.Category),
		)
	if t.Description != "" {
		body += card(`<p style="margin: 0; white-space: pre-wrap;">` + t.Description + `</p>`)
	}

	return Template{
		Subject: fmt.Sprintf("[%s] New ticket: %s", t.Priority, t.Title),
		HTML:    layout(body, ""),
	}
}

var ticketStatusCopy = map[string]statusCopy{
	"IN_PROGRESS": {
		heading: "We're working on it",
		body:    "Your ticket is now being worked on. We'll let you know as soon as we have something for you.",
	},
	"WAITING_CLIENT": {
		heading: "We need your input",
		body:    "We need some more information from you to keep things moving. Please reply to this email when you get a chance.",
	},
	"RESOLVED": {
		heading: "Your ticket is resolved",
		body:    "We believe this is sorted. If anything still looks off, just reply and we'll reopen it.",
	},
	"CLOSED": {
		heading: "Ticket closed",
		body:    "This ticket has been closed. You can always open a new one if you need anything else.",
	},
}

// TicketStatusUpdate renders the client-facing email for a ticket status
// change. Same zero-Template convention as StatusUpdate.
func TicketStatusUpdate(t Ticket, newStatus string) Template {
	cc, ok := ticketStatusCopy[newStatus]
	if !ok {
		return Template{}
	}

	body := header(cc.heading, "#"+shortID(t.ID)) +
		`<div style="padding: 24px;">` +
		`<p>Hi ` + firstName(t.ClientName) + `,</p>` +
		`<p>` + cc.body + `</p>` +
		card(detailRow("Ticket", "#"+shortID(t.ID)) + detailRow("Title", t.Title)) +
		`</div>`

	return Template{
		Subject: cc.heading + ": " + t.Title,
		HTML:    layout(body, ""),
	}
}

// TicketCommentNotification renders the email sent to a client when someone
// replies on their ticket. The comment body keeps its original whitespace.
func TicketCommentNotification(t Ticket, commentBody, authorName string) Template {
	body := header("New reply on your ticket", "#"+shortID(t.ID)) +
		`<div style="padding: 24px;">` +
		`<p>Hi ` + firstName(t.ClientName) + `,</p>` +
		`<p>` + authorName + ` replied on <strong>` + t.Title + `</strong>:</p>` +
		card(`<p style="margin: 0; white-space: pre-wrap;">`+commentBody+`</p>`) +
		`<p>Reply to this email to continue the conversation.</p>` +
		`</div>`

	return Template{
		Subject: "New reply on ticket #" + shortID(t.ID) + ": " + t.Title,
		HTML:    layout(body, ""),
	}
}
