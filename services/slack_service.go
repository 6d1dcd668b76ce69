package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bimworks/bimworks-api/config"
	"github.com/bimworks/bimworks-api/models"
)

// Slack Block Kit message types. Only the subset of the schema this service
// emits is modeled.

// TextObject is a Block Kit text object (mrkdwn or plain_text)
type TextObject struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// ButtonElement is a Block Kit button inside an actions block
type ButtonElement struct {
	Type     string      `json:"type"`
	Text     *TextObject `json:"text"`
	Style    string      `json:"style,omitempty"`
	URL      string      `json:"url,omitempty"`
	ActionID string      `json:"action_id"`
	Value    string      `json:"value,omitempty"`
}

// Block is a single Block Kit block (header, section or actions)
type Block struct {
	Type     string          `json:"type"`
	Text     *TextObject     `json:"text,omitempty"`
	Fields   []TextObject    `json:"fields,omitempty"`
	Elements []ButtonElement `json:"elements,omitempty"`
}

// Message is the webhook payload: a plain-text summary plus structured blocks
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks"`
}

var serviceEmojis = map[string]string{
	models.ServiceScanToBIM:       "🏗️",
	models.ServiceBIMModeling:     "🏢",
	models.ServiceCADDrafting:     "📐",
	models.Service3DVisualization: "🎨",
	models.ServiceMEPFPModeling:   "⚡",
	models.ServiceAsBuiltDrawings: "📋",
}

var urgencyEmojis = map[string]string{
	models.UrgencyStandard: "🟢",
	models.UrgencyPriority: "🟡",
	models.UrgencyRush:     "🔴",
}

var statusEmojis = map[models.Status]string{
	models.StatusSubmitted:   "📝",
	models.StatusAssigned:    "📌",
	models.StatusInProgress:  "⚙️",
	models.StatusForRevision: "🔄",
	models.StatusDelivered:   "✅",
	models.StatusCancelled:   "❌",
}

// SlackService formats and delivers order notifications to the configured
// Slack incoming webhook. Delivery is best-effort: failures are logged and
// reported as a boolean, never as an error, so a failed notification can
// never affect the order it describes.
type SlackService struct {
	webhookURL string
	appURL     string
	httpClient *http.Client
}

// NewSlackService creates a new Slack notification service
func NewSlackService(cfg *config.Config) *SlackService {
	return &SlackService{
		webhookURL: cfg.SlackWebhookURL,
		appURL:     cfg.AppURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IsConfigured reports whether a webhook URL is set
func (s *SlackService) IsConfigured() bool {
	return s.webhookURL != ""
}

// formatDate renders a timestamp as a long-form en-US date, e.g.
// "January 15, 2024". Unset dates render as "TBD".
func formatDate(t *time.Time) string {
	if t == nil {
		return "TBD"
	}
	return t.Format("January 2, 2006")
}

// capitalize upper-cases the first character of a word
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// serviceField renders a service code with its emoji and display name.
// Unrecognized codes fall back to the raw code with a default icon.
func serviceField(code string) string {
	emoji, ok := serviceEmojis[code]
	if !ok {
		emoji = "📋"
	}
	return emoji + " " + models.ServiceDisplayName(code)
}

// BuildOrderMessage builds the new-order notification. It is a pure function
// of its inputs: the same order and profile always produce the same message.
// profile may be nil, in which case the customer section is omitted.
func (s *SlackService) BuildOrderMessage(order *models.Order, profile *models.Profile) *Message {
	message := &Message{
		Text: fmt.Sprintf("🎉 New Order Received! Order #%s", order.OrderNumber),
		Blocks: []Block{
			{
				Type: "header",
				Text: &TextObject{
					Type:  "plain_text",
					Text:  "🎉 New Order Received!",
					Emoji: true,
				},
			},
			{
				Type: "section",
				Fields: []TextObject{
					{Type: "mrkdwn", Text: fmt.Sprintf("*Order ID:*\n%s", order.OrderNumber)},
					{Type: "mrkdwn", Text: "*Status:*\n📝 Submitted"},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Service:*\n%s", serviceField(order.Service))},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Urgency:*\n%s %s", urgencyEmojis[order.Urgency], capitalize(order.Urgency))},
				},
			},
			{
				Type: "section",
				Text: &TextObject{Type: "mrkdwn", Text: fmt.Sprintf("*Project Title:*\n%s", order.ProjectTitle)},
			},
			{
				Type: "section",
				Text: &TextObject{Type: "mrkdwn", Text: fmt.Sprintf("*Description:*\n%s", order.Description)},
			},
		},
	}

	// Customer information, when available
	if profile != nil {
		company := profile.Company
		if company == "" {
			company = "N/A"
		}
		message.Blocks = append(message.Blocks, Block{
			Type: "section",
			Fields: []TextObject{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Customer:*\n%s", profile.DisplayName())},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Company:*\n%s", company)},
			},
		})
	}

	// Optional fields
	var optionalFields []TextObject

	if order.PolycamLink != nil && *order.PolycamLink != "" {
		optionalFields = append(optionalFields, TextObject{
			Type: "mrkdwn",
			Text: fmt.Sprintf("*Polycam Link:*\n<%s|View 3D Scan>", *order.PolycamLink),
		})
	}

	if order.Budget != nil && *order.Budget != "" {
		optionalFields = append(optionalFields, TextObject{
			Type: "mrkdwn",
			Text: fmt.Sprintf("*Budget Range:*\n%s", models.BudgetDisplay(*order.Budget)),
		})
	}

	if len(optionalFields) > 0 {
		message.Blocks = append(message.Blocks, Block{
			Type:   "section",
			Fields: optionalFields,
		})
	}

	// Delivery information
	message.Blocks = append(message.Blocks, Block{
		Type: "section",
		Fields: []TextObject{
			{Type: "mrkdwn", Text: fmt.Sprintf("*Estimated Delivery:*\n📅 %s", formatDate(order.DeliveryDate))},
			{Type: "mrkdwn", Text: fmt.Sprintf("*Order Date:*\n📆 %s", formatDate(&order.CreatedAt))},
		},
	})

	// Action buttons for the admin channel
	message.Blocks = append(message.Blocks, Block{
		Type: "actions",
		Elements: []ButtonElement{
			{
				Type:     "button",
				Text:     &TextObject{Type: "plain_text", Text: "View Order Details", Emoji: true},
				Style:    "primary",
				URL:      fmt.Sprintf("%s/admin/orders/%d", s.appURL, order.ID),
				ActionID: "view_order",
			},
			{
				Type:     "button",
				Text:     &TextObject{Type: "plain_text", Text: "Mark In Progress", Emoji: true},
				Style:    "default",
				ActionID: "mark_in_progress",
				Value:    fmt.Sprintf("%d", order.ID),
			},
		},
	})

	return message
}

// SendOrderNotification delivers the new-order message to the webhook.
// Returns true on delivery, false on any failure. Never returns an error.
func (s *SlackService) SendOrderNotification(order *models.Order, profile *models.Profile) bool {
	message := s.BuildOrderMessage(order, profile)
	return s.deliver(message)
}

// BuildOrderUpdateMessage builds the status-change notification
func (s *SlackService) BuildOrderUpdateMessage(order *models.Order, oldStatus, newStatus models.Status) *Message {
	return &Message{
		Text: fmt.Sprintf("Order #%s status updated", order.OrderNumber),
		Blocks: []Block{
			{
				Type: "section",
				Text: &TextObject{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Order Status Updated*\n\nOrder #%s - %s\n\n%s %s → %s %s",
						order.OrderNumber,
						order.ProjectTitle,
						statusEmojis[oldStatus],
						strings.ReplaceAll(string(oldStatus), "-", " "),
						statusEmojis[newStatus],
						strings.ReplaceAll(string(newStatus), "-", " "),
					),
				},
			},
		},
	}
}

// SendOrderUpdateNotification delivers the status-change message to the
// webhook with the same best-effort semantics as SendOrderNotification.
func (s *SlackService) SendOrderUpdateNotification(order *models.Order, oldStatus, newStatus models.Status) bool {
	message := s.BuildOrderUpdateMessage(order, oldStatus, newStatus)
	return s.deliver(message)
}

// deliver posts the message to the webhook. Any failure is logged together
// with the intended notification text so it can be reconstructed manually.
func (s *SlackService) deliver(message *Message) bool {
	if s.webhookURL == "" {
		log.Printf("Slack webhook URL not configured, dropping notification: %s", message.Text)
		return false
	}

	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to encode Slack notification (%s): %v", message.Text, err)
		return false
	}

	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Printf("Failed to send Slack notification (%s): %v", message.Text, err)
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Slack webhook returned status %d for notification: %s", resp.StatusCode, message.Text)
		return false
	}

	return true
}
