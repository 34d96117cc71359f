// Package stripe wraps the Stripe API for payment-link creation.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/inamasaru/leadsync/internal/resilience"
)

// Default base URL for the Stripe API.
const defaultBaseURL = "https://api.stripe.com"

const (
	checkoutSessionsPath = "/v1/checkout/sessions"
	productsPath         = "/v1/products"
	pricesPath           = "/v1/prices"
	paymentLinksPath     = "/v1/payment_links"
)

// listLimit is the page size used when scanning for existing products and
// prices.
const listLimit = "100"

// LinkCreator creates a hosted payment link for a product, or reports that
// link creation is disabled by returning an empty URL without a network call.
type LinkCreator interface {
	CreateLink(ctx context.Context, productName string, price int64) (string, error)
}

// LinkGenerator provisions durable payment links: a Stripe Product and Price
// are created on demand (or reused when they already exist) and a shareable
// PaymentLink is minted for them.
type LinkGenerator interface {
	GeneratePaymentLink(ctx context.Context, productName, description string, price int64) (string, error)
}

// sessionResponse is the subset of the checkout session object we read.
type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// product is the subset of the Stripe product object we read.
type product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// price is the subset of the Stripe price object we read.
type price struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

// paymentLinkResponse is the subset of the payment link object we read.
type paymentLinkResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// list is the envelope of Stripe list endpoints.
type list[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

// APIError is returned when Stripe responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the default retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithMode sets the checkout mode ("subscription" or "payment").
func WithMode(mode string) Option {
	return func(c *httpClient) {
		if mode != "" {
			c.mode = mode
		}
	}
}

// WithRedirectURLs sets the post-checkout success and cancel URLs.
func WithRedirectURLs(success, cancel string) Option {
	return func(c *httpClient) {
		if success != "" {
			c.successURL = success
		}
		if cancel != "" {
			c.cancelURL = cancel
		}
	}
}

// httpClient implements LinkCreator and LinkGenerator against the Stripe API.
type httpClient struct {
	secretKey  string
	baseURL    string
	mode       string
	successURL string
	cancelURL  string
	http       *http.Client
	retry      resilience.RetryConfig
}

// NewClient creates a Stripe client with the given secret key. NewLinkCreator
// is the usual constructor; it handles the unconfigured case.
func NewClient(secretKey string, opts ...Option) LinkCreator {
	return newHTTPClient(secretKey, opts...)
}

// NewLinkGenerator creates a Stripe client for durable payment-link
// provisioning. Unlike checkout links, link generation is never optional:
// the caller must have a configured secret key.
func NewLinkGenerator(secretKey string, opts ...Option) LinkGenerator {
	return newHTTPClient(secretKey, opts...)
}

func newHTTPClient(secretKey string, opts ...Option) *httpClient {
	c := &httpClient{
		secretKey:  secretKey,
		baseURL:    defaultBaseURL,
		mode:       "subscription",
		successURL: "https://example.com/success",
		cancelURL:  "https://example.com/cancel",
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewLinkCreator returns a Stripe-backed LinkCreator, or a no-op creator
// when secretKey is empty.
func NewLinkCreator(secretKey string, opts ...Option) LinkCreator {
	if secretKey == "" {
		return noopCreator{}
	}
	return NewClient(secretKey, opts...)
}

// noopCreator is used when no Stripe credential is configured.
type noopCreator struct{}

func (noopCreator) CreateLink(ctx context.Context, productName string, price int64) (string, error) {
	zap.L().Info("stripe key not configured, skipping checkout link creation")
	return "", nil
}

// CreateLink creates a checkout session for the product and returns its
// hosted URL. Price is in whole yen; Stripe wants the minor unit.
func (c *httpClient) CreateLink(ctx context.Context, productName string, price int64) (string, error) {
	form := url.Values{}
	form.Set("payment_method_types[]", "card")
	form.Set("mode", c.mode)
	form.Set("line_items[0][price_data][currency]", "jpy")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(price*100, 10))
	form.Set("line_items[0][price_data][product_data][name]", productName)
	form.Set("line_items[0][quantity]", "1")
	if c.mode == "subscription" {
		form.Set("line_items[0][price_data][recurring][interval]", "month")
	}
	form.Set("success_url", c.successURL)
	form.Set("cancel_url", c.cancelURL)

	var sess sessionResponse
	if err := c.postForm(ctx, "create_checkout_session", checkoutSessionsPath, form, &sess); err != nil {
		return "", eris.Wrap(err, "stripe: create checkout session")
	}

	zap.L().Info("created stripe checkout session", zap.String("url", sess.URL))
	return sess.URL, nil
}

// GeneratePaymentLink provisions a durable payment link for a product:
// create-or-get the Product by name, create-or-get a Price for the amount,
// then mint a PaymentLink with promotion codes enabled.
func (c *httpClient) GeneratePaymentLink(ctx context.Context, productName, description string, amount int64) (string, error) {
	productID, err := c.ensureProduct(ctx, productName, description)
	if err != nil {
		return "", eris.Wrap(err, "stripe: ensure product")
	}

	priceID, err := c.ensurePrice(ctx, productID, amount*100, "jpy")
	if err != nil {
		return "", eris.Wrap(err, "stripe: ensure price")
	}

	link, err := c.createPaymentLink(ctx, priceID, productName)
	if err != nil {
		return "", eris.Wrap(err, "stripe: create payment link")
	}
	return link, nil
}

// ensureProduct returns the ID of the product named name, creating it when
// no existing product matches.
func (c *httpClient) ensureProduct(ctx context.Context, name, description string) (string, error) {
	var existing list[product]
	query := url.Values{"limit": {listLimit}}
	if err := c.getJSON(ctx, "list_products", productsPath, query, &existing); err != nil {
		return "", err
	}
	for _, p := range existing.Data {
		if p.Name == name {
			zap.L().Info("found existing stripe product",
				zap.String("name", name),
				zap.String("product_id", p.ID),
			)
			return p.ID, nil
		}
	}

	form := url.Values{}
	form.Set("name", name)
	if description != "" {
		form.Set("description", description)
	}

	var created product
	if err := c.postForm(ctx, "create_product", productsPath, form, &created); err != nil {
		return "", err
	}
	zap.L().Info("created stripe product",
		zap.String("name", name),
		zap.String("product_id", created.ID),
	)
	return created.ID, nil
}

// ensurePrice returns the ID of a price on productID matching unitAmount and
// currency, creating one when none exists. unitAmount is in minor units.
func (c *httpClient) ensurePrice(ctx context.Context, productID string, unitAmount int64, currency string) (string, error) {
	var existing list[price]
	query := url.Values{"product": {productID}, "limit": {listLimit}}
	if err := c.getJSON(ctx, "list_prices", pricesPath, query, &existing); err != nil {
		return "", err
	}
	for _, p := range existing.Data {
		if p.UnitAmount == unitAmount && p.Currency == currency {
			zap.L().Info("found existing stripe price",
				zap.Int64("unit_amount", unitAmount),
				zap.String("price_id", p.ID),
			)
			return p.ID, nil
		}
	}

	form := url.Values{}
	form.Set("product", productID)
	form.Set("unit_amount", strconv.FormatInt(unitAmount, 10))
	form.Set("currency", currency)

	var created price
	if err := c.postForm(ctx, "create_price", pricesPath, form, &created); err != nil {
		return "", err
	}
	zap.L().Info("created stripe price",
		zap.Int64("unit_amount", unitAmount),
		zap.String("price_id", created.ID),
	)
	return created.ID, nil
}

// createPaymentLink mints a shareable payment link for priceID.
func (c *httpClient) createPaymentLink(ctx context.Context, priceID, productName string) (string, error) {
	form := url.Values{}
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("after_completion[type]", "redirect")
	form.Set("after_completion[redirect][url]", c.successURL)
	form.Set("allow_promotion_codes", "true")
	form.Set("billing_address_collection", "auto")
	form.Set("metadata[product_name]", productName)
	form.Set("metadata[created_by]", "leadsync")

	var link paymentLinkResponse
	if err := c.postForm(ctx, "create_payment_link", paymentLinksPath, form, &link); err != nil {
		return "", err
	}
	zap.L().Info("created stripe payment link", zap.String("url", link.URL))
	return link.URL, nil
}

// postForm sends a form-encoded POST and decodes the response into out.
// Every POST carries one idempotency key across all retry attempts.
func (c *httpClient) postForm(ctx context.Context, operation, path string, form url.Values, out any) error {
	body := form.Encode()
	idemKey := uuid.NewString()

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("stripe", operation)

	return resilience.Do(ctx, retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Idempotency-Key", idemKey)
		req.SetBasicAuth(c.secretKey, "")

		return c.do(req, out)
	})
}

// getJSON sends a GET with the given query and decodes the response into out.
func (c *httpClient) getJSON(ctx context.Context, operation, path string, query url.Values, out any) error {
	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("stripe", operation)

	return resilience.Do(ctx, retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.SetBasicAuth(c.secretKey, "")

		return c.do(req, out)
	})
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		zap.L().Error("stripe request failed",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(data)),
		)
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
