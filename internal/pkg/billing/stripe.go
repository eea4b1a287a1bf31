package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/config"
	"github.com/ManuelReschke/projecthub/internal/pkg/metrics"
)

const defaultStripeBaseURL = "https://api.stripe.com"

// Customer is a billing provider customer.
type Customer struct {
	ID    string
	Email string
}

// RemoteSubscription is an active subscription as reported by the provider.
type RemoteSubscription struct {
	ID        string
	PeriodEnd time.Time
}

// Provider is the read-only billing source of truth. A nil customer with a
// nil error means the provider authoritatively has no such customer.
type Provider interface {
	FindCustomer(ctx context.Context, email string) (*Customer, error)
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]RemoteSubscription, error)
}

type StripeClient struct {
	SecretKey string
	BaseURL   string

	HTTPClient *http.Client
}

func NewStripeClient(cfg config.BillingConfig) *StripeClient {
	base := strings.TrimSpace(cfg.StripeBaseURL)
	if base == "" {
		base = defaultStripeBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &StripeClient{
		SecretKey: strings.TrimSpace(cfg.StripeSecretKey),
		BaseURL:   strings.TrimRight(base, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type stripeList[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

type stripeCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type stripeSubscription struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// periodEnd returns the latest period end, looking at the subscription and
// its items since newer API versions only report it per item.
func (s stripeSubscription) periodEnd() int64 {
	end := s.CurrentPeriodEnd
	for _, it := range s.Items.Data {
		if it.CurrentPeriodEnd > end {
			end = it.CurrentPeriodEnd
		}
	}
	return end
}

func (c *StripeClient) FindCustomer(ctx context.Context, email string) (*Customer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: billing email is empty", autherr.ErrExternalService)
	}
	q := url.Values{}
	q.Set("email", email)
	q.Set("limit", "1")

	var out stripeList[stripeCustomer]
	if err := c.get(ctx, "find_customer", "/v1/customers", q, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, nil
	}
	return &Customer{ID: out.Data[0].ID, Email: out.Data[0].Email}, nil
}

func (c *StripeClient) ListActiveSubscriptions(ctx context.Context, customerID string) ([]RemoteSubscription, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}
	q := url.Values{}
	q.Set("customer", customerID)
	q.Set("status", "active")
	q.Set("limit", "100")

	var out stripeList[stripeSubscription]
	if err := c.get(ctx, "list_subscriptions", "/v1/subscriptions", q, &out); err != nil {
		return nil, err
	}

	subs := make([]RemoteSubscription, 0, len(out.Data))
	for _, s := range out.Data {
		end := s.periodEnd()
		if end <= 0 {
			continue
		}
		subs = append(subs, RemoteSubscription{ID: s.ID, PeriodEnd: time.Unix(end, 0).UTC()})
	}
	if len(subs) == 0 && len(out.Data) > 0 {
		return nil, fmt.Errorf("%w: stripe: %d active subscriptions without period end", autherr.ErrExternalService, len(out.Data))
	}
	return subs, nil
}

// get performs an authenticated GET. Anything but a decodable 2xx answer is
// reported as an external service error so callers never mutate local state
// on it.
func (c *StripeClient) get(ctx context.Context, op, path string, q url.Values, out interface{}) error {
	if c.SecretKey == "" {
		return fmt.Errorf("%w: STRIPE_SECRET_KEY is not configured", autherr.ErrExternalService)
	}
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	metrics.ExternalCallDuration.WithLabelValues("stripe", op).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: stripe %s: %v", autherr.ErrExternalService, op, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: stripe %s failed: status=%d body=%s", autherr.ErrExternalService, op, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: stripe %s: decode: %v", autherr.ErrExternalService, op, err)
	}
	return nil
}
