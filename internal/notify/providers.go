package notify

import (
	"context"
	"net/http"
	"time"

	"vault-backup/internal/vb"
)

// Embed colors used by Discord.
const (
	discordGreen = 5763719
	discordRed   = 15548997
)

// Discord posts an embed to a Discord webhook.
type Discord struct {
	URL       string
	Username  string
	AvatarURL string
	Client    *http.Client
}

func (d *Discord) Name() string { return "discord" }

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Embeds    []discordEmbed `json:"embeds"`
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
}

func (d *Discord) Send(ctx context.Context, n vb.Notification) error {
	color := discordGreen
	if !n.Success {
		color = discordRed
	}
	return postJSON(ctx, d.Client, d.URL, discordPayload{
		Embeds: []discordEmbed{{
			Title:       n.Title,
			Description: n.Message,
			Color:       color,
			Timestamp:   n.Timestamp.UTC().Format(time.RFC3339),
		}},
		Username:  d.Username,
		AvatarURL: d.AvatarURL,
	})
}

// Slack posts a header and a markdown section to a Slack incoming webhook.
type Slack struct {
	URL    string
	Client *http.Client
}

func (s *Slack) Name() string { return "slack" }

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
}

func (s *Slack) Send(ctx context.Context, n vb.Notification) error {
	emoji := ":white_check_mark:"
	if !n.Success {
		emoji = ":x:"
	}
	return postJSON(ctx, s.Client, s.URL, map[string][]slackBlock{
		"blocks": {
			{Type: "header", Text: slackText{Type: "plain_text", Text: emoji + " " + n.Title}},
			{Type: "section", Text: slackText{Type: "mrkdwn", Text: n.Message}},
		},
	})
}

// Webhook posts a flat JSON document to any URL.
type Webhook struct {
	URL    string
	Client *http.Client
}

func (w *Webhook) Name() string { return "webhook" }

type webhookPayload struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (w *Webhook) Send(ctx context.Context, n vb.Notification) error {
	status := "success"
	if !n.Success {
		status = "error"
	}
	return postJSON(ctx, w.Client, w.URL, webhookPayload{
		Title:     n.Title,
		Message:   n.Message,
		Status:    status,
		Timestamp: n.Timestamp.UTC().Format(time.RFC3339),
	})
}
