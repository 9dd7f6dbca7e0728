// Package notify posts backup outcomes to chat and generic webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"vault-backup/internal/config"
	"vault-backup/internal/vb"
)

// DefaultTimeout bounds each webhook POST.
const DefaultTimeout = 10 * time.Second

// Level selects which outcomes are delivered.
type Level string

const (
	LevelAll     Level = "all"
	LevelErrors  Level = "errors"
	LevelSuccess Level = "success"
	LevelNone    Level = "none"
)

// ParseLevel maps a config value to a Level. Unknown values mean LevelAll.
func ParseLevel(s string) Level {
	switch l := Level(s); l {
	case LevelErrors, LevelSuccess, LevelNone:
		return l
	}
	return LevelAll
}

// Allows reports whether a notification passes the level filter.
func (l Level) Allows(n vb.Notification) bool {
	switch l {
	case LevelNone:
		return false
	case LevelErrors:
		return !n.Success
	case LevelSuccess:
		return n.Success
	}
	return true
}

// Provider is one webhook target.
type Provider interface {
	Name() string
	Send(ctx context.Context, n vb.Notification) error
}

// Dispatcher fans a notification out to every provider that passes the level filter.
type Dispatcher struct {
	level     Level
	providers []Provider
	logger    vb.Logger
}

var _ vb.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher. A nil logger discards output.
func NewDispatcher(level Level, logger vb.Logger, providers ...Provider) *Dispatcher {
	if logger == nil {
		logger = vb.NewNopLogger()
	}
	return &Dispatcher{level: level, providers: providers, logger: logger}
}

// Enabled reports whether any notification could be delivered.
func (d *Dispatcher) Enabled() bool {
	return d.level != LevelNone && len(d.providers) > 0
}

// Notify sends n to all providers. Every provider is attempted; failures are
// logged and joined into the returned error.
func (d *Dispatcher) Notify(ctx context.Context, n vb.Notification) error {
	if !d.level.Allows(n) {
		return nil
	}
	var errs []error
	for _, p := range d.providers {
		if err := p.Send(ctx, n); err != nil {
			d.logger.Warn("notification failed", "provider", p.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		d.logger.Debug("notification sent", "provider", p.Name(), "title", n.Title)
	}
	return errors.Join(errs...)
}

// NewFromConfig builds a Dispatcher for the configured providers.
func NewFromConfig(cfg config.NotifyConfig, logger vb.Logger) (*Dispatcher, error) {
	client := &http.Client{Timeout: DefaultTimeout}
	var providers []Provider
	for _, p := range cfg.Providers {
		if p.URL == "" {
			return nil, fmt.Errorf("%s notification provider requires url", p.Type)
		}
		switch p.Type {
		case "discord":
			providers = append(providers, &Discord{URL: p.URL, Username: p.Username, AvatarURL: p.AvatarURL, Client: client})
		case "slack":
			providers = append(providers, &Slack{URL: p.URL, Client: client})
		case "webhook":
			providers = append(providers, &Webhook{URL: p.URL, Client: client})
		default:
			return nil, fmt.Errorf("unknown notification provider: %s", p.Type)
		}
	}
	return NewDispatcher(ParseLevel(cfg.Level), logger, providers...), nil
}

// postJSON sends payload to url. Any status of 400 or above is an error.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
