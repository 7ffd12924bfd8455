// Package mailerlite upserts quiz takers as MailerLite subscribers with their
// plan and product picks stored in custom fields.
package mailerlite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/dailynoats/planner/internal/ports/outbound"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://connect.mailerlite.com/api"

	// FieldBudget is the maximum length, in characters, of each custom field
	FieldBudget = 900
	ellipsis    = "..."

	maxErrorBody = 2 << 10
)

// Config holds the MailerLite settings
type Config struct {
	APIKey  string
	GroupID string
	BaseURL string
	Timeout time.Duration
}

// Client implements outbound.PlanSyncer for MailerLite
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

var _ outbound.PlanSyncer = (*Client)(nil)

// NewClient creates a MailerLite client. transport may be nil.
func NewClient(cfg Config, transport http.RoundTripper, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger: logger.Named("mailerlite"),
	}
}

// Name implements outbound.PlanSyncer
func (c *Client) Name() string { return "mailerlite" }

// Enabled reports whether an API key and a group are configured
func (c *Client) Enabled() bool {
	return strings.TrimSpace(c.cfg.APIKey) != "" && strings.TrimSpace(c.cfg.GroupID) != ""
}

type subscriberRequest struct {
	Email  string            `json:"email"`
	Groups []string          `json:"groups"`
	Fields map[string]string `json:"fields"`
}

// SyncPlan creates or updates the subscriber
func (c *Client) SyncPlan(ctx context.Context, record outbound.SyncRecord) error {
	if !c.Enabled() || record.Email == "" {
		return nil
	}

	payload, err := json.Marshal(subscriberRequest{
		Email:  record.Email,
		Groups: []string{c.cfg.GroupID},
		Fields: map[string]string{
			"ai_plan":     Truncate(record.PlanMarkdown, FieldBudget),
			"ai_products": Truncate(ProductSummary(record.Recommendations), FieldBudget),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal subscriber: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/subscribers", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mailerlite request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("mailerlite upsert: status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Info("Synced plan to MailerLite", zap.Int("status", resp.StatusCode))
	return nil
}

// ProductSummary renders recommendations as one HTML paragraph each, the
// shape the email templates expect for {$ai_products}
func ProductSummary(products []planner.RecommendedProduct) string {
	lines := make([]string, 0, len(products))
	for _, p := range products {
		name := p.Name
		if name == "" {
			name = p.ID
		}
		lines = append(lines, fmt.Sprintf("<p><strong>%s</strong><br>%s</p>",
			html.EscapeString(name), html.EscapeString(p.Reason)))
	}
	return strings.Join(lines, "\n")
}

// Truncate limits s to budget characters. Longer text keeps budget-3
// characters followed by "...".
func Truncate(s string, budget int) string {
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	if budget <= len(ellipsis) {
		return string(runes[:budget])
	}
	return string(runes[:budget-len(ellipsis)]) + ellipsis
}
