package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackMessage is the payload for a Slack incoming webhook.
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment is one colored block in a Slack message.
type SlackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Title  string       `json:"title,omitempty"`
	Text   string       `json:"text,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackField is a titled value within an attachment.
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// TeamsMessage is the MessageCard payload for a Microsoft Teams webhook.
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	Summary    string         `json:"summary,omitempty"`
	Title      string         `json:"title,omitempty"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

// TeamsSection is one section of a Teams MessageCard.
type TeamsSection struct {
	Facts []TeamsFact `json:"facts,omitempty"`
	Text  string      `json:"text,omitempty"`
}

// TeamsFact is a name/value row in a Teams section.
type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FormatSlackMessage renders a platform event as a Slack message.
func FormatSlackMessage(event *Event) SlackMessage {
	fields := []SlackField{
		{Title: "Event", Value: string(event.Type), Short: true},
		{Title: "Time", Value: event.Timestamp.Format(time.RFC3339), Short: true},
	}

	data := eventData(event)
	for _, key := range []string{"title", "name", "email", "status", "priority", "type"} {
		if value, ok := data[key].(string); ok && value != "" {
			fields = append(fields, SlackField{Title: key, Value: value, Short: true})
		}
	}
	if message, ok := data["message"].(string); ok && message != "" {
		fields = append(fields, SlackField{Title: "message", Value: message, Short: false})
	}

	return SlackMessage{
		Attachments: []SlackAttachment{{
			Color:  eventColor(event.Type),
			Title:  eventTitle(event.Type),
			Fields: fields,
		}},
	}
}

// FormatTeamsMessage renders a platform event as a Teams MessageCard.
func FormatTeamsMessage(event *Event) TeamsMessage {
	facts := []TeamsFact{
		{Name: "Event", Value: string(event.Type)},
		{Name: "Time", Value: event.Timestamp.Format(time.RFC3339)},
	}

	data := eventData(event)
	for _, key := range []string{"title", "name", "email", "status", "priority"} {
		if value, ok := data[key].(string); ok && value != "" {
			facts = append(facts, TeamsFact{Name: key, Value: value})
		}
	}
	var text string
	if message, ok := data["message"].(string); ok {
		text = message
	}

	return TeamsMessage{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		Summary:    eventTitle(event.Type),
		Title:      eventTitle(event.Type),
		ThemeColor: eventThemeColor(event.Type),
		Sections:   []TeamsSection{{Facts: facts, Text: text}},
	}
}

// eventData extracts a map view of the event payload, tolerating payloads
// that are structs by round-tripping through JSON.
func eventData(event *Event) map[string]interface{} {
	if data, ok := event.Data.(map[string]interface{}); ok {
		return data
	}
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return map[string]interface{}{}
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string]interface{}{}
	}
	return data
}

// SendSlackNotification posts a formatted event to a Slack webhook URL.
func SendSlackNotification(ctx context.Context, webhookURL string, event *Event) error {
	return sendJSON(ctx, webhookURL, FormatSlackMessage(event))
}

// SendTeamsNotification posts a formatted event to a Teams webhook URL.
func SendTeamsNotification(ctx context.Context, webhookURL string, event *Event) error {
	return sendJSON(ctx, webhookURL, FormatTeamsMessage(event))
}

func sendJSON(ctx context.Context, url string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

func eventColor(eventType EventType) string {
	switch eventType {
	case EventQuoteCreated, EventTicketCreated:
		return "good"
	case EventTicketComment:
		return "warning"
	default:
		return "#439FE0"
	}
}

func eventThemeColor(eventType EventType) string {
	switch eventType {
	case EventQuoteCreated, EventTicketCreated:
		return "28a745"
	case EventTicketComment:
		return "ffc107"
	default:
		return "007bff"
	}
}

func eventTitle(eventType EventType) string {
	switch eventType {
	case EventQuoteCreated:
		return "New Quote Request"
	case EventQuoteStatusChanged:
		return "Quote Status Changed"
	case EventTicketCreated:
		return "New Support Ticket"
	case EventTicketStatusChanged:
		return "Ticket Status Changed"
	case EventTicketComment:
		return "New Ticket Comment"
	case EventNotificationCreated:
		return "Notification Created"
	default:
		return string(eventType)
	}
}
