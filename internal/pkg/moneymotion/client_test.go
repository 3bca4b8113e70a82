package moneymotion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/parallax/parallax-api/internal/pkg/gateway"
)

func checkoutRequest() gateway.CheckoutRequest {
	return gateway.CheckoutRequest{
		CorrelationID: "moneymotion_abc",
		UserID:        "u-1",
		UserEmail:     "user@parallax.gg",
		PRXAmount:     1000,
		USDAmount:     decimal.RequireFromString("10.00"),
		SuccessURL:    "http://localhost:3000/topup/success",
		CancelURL:     "http://localhost:3000/topup/cancel",
	}
}

func TestInitiateCheckoutSendsCentsAndMetadata(t *testing.T) {
	var got CheckoutSessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_1","checkout_url":"https://pay.example/cs_1"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	out, err := c.InitiateCheckout(context.Background(), checkoutRequest())
	require.NoError(t, err)

	require.Equal(t, "https://pay.example/cs_1", out.RedirectURL)
	require.Equal(t, "cs_1", out.CheckoutID)
	require.Equal(t, int64(1000), got.Amount)
	require.Equal(t, "usd", got.Currency)
	require.Equal(t, "moneymotion_abc", got.Metadata["moneymotionId"])
	require.Equal(t, "1000", got.Metadata["prxAmount"])
}

func TestInitiateCheckoutNotConfigured(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.InitiateCheckout(context.Background(), checkoutRequest())
	require.Equal(t, gateway.KindNotConfigured, gateway.KindOf(err))
}

func TestInitiateCheckoutNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad amount"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	_, err := c.InitiateCheckout(context.Background(), checkoutRequest())
	require.Equal(t, gateway.KindGatewayError, gateway.KindOf(err))
}

func TestInitiateCheckoutTimeoutIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key", Timeout: 50 * time.Millisecond})
	_, err := c.InitiateCheckout(context.Background(), checkoutRequest())
	require.Equal(t, gateway.KindUnreachable, gateway.KindOf(err))
}

func TestInitiateCheckoutMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"cs_1"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	_, err := c.InitiateCheckout(context.Background(), checkoutRequest())
	require.Equal(t, gateway.KindGatewayError, gateway.KindOf(err))
}

func TestFailureDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key", r.Header.Get("x-api-key"))
		require.Equal(t, "usd", r.Header.Get("x-currency"))
		switch r.URL.Path {
		case "/checkoutSessions.getCompletedOrPendingCheckoutSessionInfo":
			require.Equal(t, "cs_1", r.URL.Query().Get("json.checkoutId"))
			w.Write([]byte(`{"result":{"data":{"json":{"status":"failed","customerEmail":"user@parallax.gg"}}}}`))
		case "/customers.getBillingInformation":
			w.Write([]byte(`{"result":{"data":{"json":{"paymentInformation":{"lastFourDigits":"4242"}}}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	details, err := c.FailureDetails(context.Background(), "cs_1")
	require.NoError(t, err)
	require.Equal(t, "Payment declined by issuing bank", details.Reason)
	require.Equal(t, "4242", details.LastFourDigits)
}
