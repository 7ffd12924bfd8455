// Package shopify forwards sanitized plans to the Shopify Admin API: it finds
// or creates the customer, stores the plan as an ai_plan metaobject and links
// that metaobject to the customer through the ai.plan metafield.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dailynoats/planner/internal/ports/outbound"
	"go.uber.org/zap"
)

const (
	DefaultAPIVersion = "2024-10"
	QuizTag           = "AI_Nutrition_Quiz"

	metaobjectType = "ai_plan"
	maxErrorBody   = 2 << 10
)

var (
	ErrCustomerNotFound = errors.New("shopify customer could not be found or created")
	ErrNoMetaobjectID   = errors.New("shopify did not return a metaobject id")
)

// Config holds the Admin API settings. Store is the shop subdomain
// ("daily-noats") or a full host ("daily-noats.myshopify.com").
type Config struct {
	Store       string
	AccessToken string
	APIVersion  string
	// BaseURL overrides the computed admin URL
	BaseURL string
	Timeout time.Duration
}

// Client implements outbound.PlanSyncer for Shopify
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

var _ outbound.PlanSyncer = (*Client)(nil)

// NewClient creates a Shopify client. transport may be nil.
func NewClient(cfg Config, transport http.RoundTripper, logger *zap.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger: logger.Named("shopify"),
	}
}

// Name implements outbound.PlanSyncer
func (c *Client) Name() string { return "shopify" }

// Enabled reports whether a store and token are configured
func (c *Client) Enabled() bool {
	return strings.TrimSpace(c.cfg.Store) != "" && strings.TrimSpace(c.cfg.AccessToken) != ""
}

func (c *Client) baseURL() string {
	if c.cfg.BaseURL != "" {
		return strings.TrimRight(c.cfg.BaseURL, "/")
	}
	host := strings.TrimSpace(c.cfg.Store)
	if !strings.Contains(host, ".") {
		host += ".myshopify.com"
	}
	return "https://" + host + "/admin/api/" + c.cfg.APIVersion
}

type customer struct {
	ID   int64  `json:"id"`
	Tags string `json:"tags"`
}

type metafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

type metaobjectField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SyncPlan upserts the customer and attaches the plan to them
func (c *Client) SyncPlan(ctx context.Context, record outbound.SyncRecord) error {
	if !c.Enabled() || record.Email == "" {
		return nil
	}

	cust, err := c.findOrCreateCustomer(ctx, record.Email)
	if err != nil {
		return err
	}

	metaobjectID, err := c.createPlanMetaobject(ctx, record)
	if err != nil {
		return err
	}

	if err := c.attachPlan(ctx, cust, metaobjectID); err != nil {
		return err
	}

	c.logger.Info("Synced plan to Shopify",
		zap.Int64("customer_id", cust.ID),
		zap.String("metaobject_id", metaobjectID),
	)
	return nil
}

func (c *Client) findOrCreateCustomer(ctx context.Context, email string) (customer, error) {
	var search struct {
		Customers []customer `json:"customers"`
	}
	path := "/customers/search.json?query=" + url.QueryEscape("email:"+email)
	if err := c.do(ctx, http.MethodGet, path, nil, &search); err != nil {
		return customer{}, fmt.Errorf("search customer: %w", err)
	}
	if len(search.Customers) > 0 && search.Customers[0].ID != 0 {
		return search.Customers[0], nil
	}

	body := map[string]interface{}{
		"customer": map[string]string{"email": email, "tags": QuizTag},
	}
	var created struct {
		Customer customer `json:"customer"`
	}
	if err := c.do(ctx, http.MethodPost, "/customers.json", body, &created); err != nil {
		return customer{}, fmt.Errorf("create customer: %w", err)
	}
	if created.Customer.ID == 0 {
		return customer{}, ErrCustomerNotFound
	}
	return created.Customer, nil
}

func (c *Client) createPlanMetaobject(ctx context.Context, record outbound.SyncRecord) (string, error) {
	products, err := json.Marshal(record.Recommendations)
	if err != nil {
		return "", fmt.Errorf("encode products: %w", err)
	}

	body := map[string]interface{}{
		"metaobject": map[string]interface{}{
			"type": metaobjectType,
			"fields": []metaobjectField{
				{Key: "plan_text", Value: record.PlanMarkdown},
				{Key: "products", Value: string(products)},
			},
		},
	}

	var created struct {
		Metaobject struct {
			ID json.RawMessage `json:"id"`
		} `json:"metaobject"`
	}
	if err := c.do(ctx, http.MethodPost, "/metaobjects/"+metaobjectType+".json", body, &created); err != nil {
		return "", fmt.Errorf("create metaobject: %w", err)
	}

	id := strings.Trim(string(created.Metaobject.ID), `"`)
	if id == "" || id == "null" {
		return "", ErrNoMetaobjectID
	}
	return id, nil
}

func (c *Client) attachPlan(ctx context.Context, cust customer, metaobjectID string) error {
	body := map[string]interface{}{
		"customer": map[string]interface{}{
			"id":   cust.ID,
			"tags": MergeTags(cust.Tags, QuizTag),
			"metafields": []metafield{{
				Namespace: "ai",
				Key:       "plan",
				Type:      "metaobject_reference",
				Value:     metaobjectID,
			}},
		},
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/customers/%d.json", cust.ID), body, nil); err != nil {
		return fmt.Errorf("attach plan: %w", err)
	}
	return nil
}

// MergeTags appends tag to a comma separated tag list unless it is present
func MergeTags(existing, tag string) string {
	tags := []string{}
	for _, t := range strings.Split(existing, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return strings.Join(tags, ", ")
		}
	}
	return strings.Join(append(tags, tag), ", ")
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("shopify %s %s: status %d: %s", method, strings.SplitN(path, "?", 2)[0], resp.StatusCode, strings.TrimSpace(string(text)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
