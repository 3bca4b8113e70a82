package moneymotion

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

	"github.com/rs/zerolog/log"

	"github.com/parallax/parallax-api/internal/pkg/gateway"
)

// Config holds MoneyMotion API configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the MoneyMotion checkout API and implements gateway.Adapter.
type Client struct {
	httpClient *http.Client
	config     Config
}

// CheckoutSessionRequest is the body of POST /v1/checkout/sessions.
type CheckoutSessionRequest struct {
	Amount     int64             `json:"amount"` // cents
	Currency   string            `json:"currency"`
	Metadata   map[string]string `json:"metadata"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Email      string            `json:"customer_email,omitempty"`
	Reference  string            `json:"description,omitempty"`
}

// CheckoutSessionResponse is the subset of the session object we read.
type CheckoutSessionResponse struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	CheckoutURL string `json:"checkout_url"`
}

// RedirectURL returns whichever redirect field the API populated.
func (r *CheckoutSessionResponse) RedirectURL() string {
	if r.URL != "" {
		return r.URL
	}
	return r.CheckoutURL
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.moneymotion.io"
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
	}
}

func (c *Client) Code() string { return gateway.ProviderMoneyMotion }

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.config.APIKey) != ""
}

// InitiateCheckout opens a hosted checkout session and returns its redirect URL.
func (c *Client) InitiateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.Checkout, error) {
	if !c.Configured() {
		return nil, gateway.NewError(c.Code(), gateway.KindNotConfigured, errors.New("MONEYMOTION_API_KEY is not set"))
	}

	body := CheckoutSessionRequest{
		Amount:   req.USDAmount.Shift(2).Round(0).IntPart(),
		Currency: "usd",
		Metadata: map[string]string{
			"moneymotionId": req.CorrelationID,
			"userId":        req.UserID,
			"prxAmount":     fmt.Sprintf("%d", req.PRXAmount),
		},
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Email:      req.UserEmail,
		Reference:  req.Description,
	}

	var out CheckoutSessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", body, &out, map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
	}); err != nil {
		return nil, err
	}

	if out.RedirectURL() == "" {
		return nil, gateway.NewError(c.Code(), gateway.KindGatewayError, errors.New("checkout session has no redirect url"))
	}

	return &gateway.Checkout{RedirectURL: out.RedirectURL(), CheckoutID: out.ID}, nil
}

type rpcEnvelope[T any] struct {
	Result struct {
		Data struct {
			JSON T `json:"json"`
		} `json:"data"`
	} `json:"result"`
}

type checkoutInfo struct {
	Status        string `json:"status"`
	CustomerEmail string `json:"customerEmail"`
}

type billingInfo struct {
	PaymentInformation struct {
		LastFourDigits string `json:"lastFourDigits"`
	} `json:"paymentInformation"`
}

// FailureDetails looks up why a checkout failed and which card was used.
// Missing pieces are left empty; only transport failures are returned as errors.
func (c *Client) FailureDetails(ctx context.Context, checkoutID string) (*gateway.FailureDetails, error) {
	if !c.Configured() {
		return nil, gateway.NewError(c.Code(), gateway.KindNotConfigured, errors.New("MONEYMOTION_API_KEY is not set"))
	}

	headers := map[string]string{
		"x-api-key":  c.config.APIKey,
		"x-currency": "usd",
	}

	var session rpcEnvelope[checkoutInfo]
	path := "/checkoutSessions.getCompletedOrPendingCheckoutSessionInfo?json.checkoutId=" + url.QueryEscape(checkoutID)
	if err := c.do(ctx, http.MethodGet, path, nil, &session, headers); err != nil {
		return nil, err
	}

	details := &gateway.FailureDetails{}
	info := session.Result.Data.JSON
	if strings.EqualFold(info.Status, "failed") {
		details.Reason = "Payment declined by issuing bank"
	}
	if info.CustomerEmail == "" {
		return details, nil
	}

	var billing rpcEnvelope[billingInfo]
	path = "/customers.getBillingInformation?json.id=" + url.QueryEscape(info.CustomerEmail)
	if err := c.do(ctx, http.MethodGet, path, nil, &billing, headers); err != nil {
		log.Warn().Err(err).Str("checkout_id", checkoutID).Msg("MoneyMotion billing lookup failed")
		return details, nil
	}
	details.LastFourDigits = billing.Result.Data.JSON.PaymentInformation.LastFourDigits

	return details, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, headers map[string]string) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return gateway.NewError(c.Code(), gateway.KindGatewayError, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return gateway.NewError(c.Code(), gateway.KindGatewayError, err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return gateway.NewError(c.Code(), gateway.KindUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gateway.NewError(c.Code(), gateway.KindUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gateway.NewError(c.Code(), gateway.KindGatewayError,
			fmt.Errorf("moneymotion api returned status %d: %s", resp.StatusCode, truncate(string(body), 512)))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return gateway.NewError(c.Code(), gateway.KindGatewayError, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
