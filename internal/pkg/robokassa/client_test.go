package robokassa

import (
	"context"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/parallax/parallax-api/internal/pkg/gateway"
)

func TestInitiateCheckoutBuildsSignedURL(t *testing.T) {
	client := NewClient(Config{MerchantLogin: "merchant", Password1: "p1", TestMode: true})

	out, err := client.InitiateCheckout(context.Background(), gateway.CheckoutRequest{
		CorrelationID: "robokassa_abc",
		InvoiceNo:     7,
		USDAmount:     decimal.RequireFromString("10.5"),
		Description:   "1050 PRX",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, err := url.Parse(out.RedirectURL)
	if err != nil {
		t.Fatalf("failed to parse url: %v", err)
	}
	q := u.Query()
	if q.Get("OutSum") != "10.50" || q.Get("InvId") != "7" || q.Get("IsTest") != "1" {
		t.Fatalf("unexpected query: %s", u.RawQuery)
	}
	if q.Get(ShpCorrelation) != "robokassa_abc" {
		t.Fatalf("expected %s param, got query: %s", ShpCorrelation, u.RawQuery)
	}

	want, _ := Sign(StartSignatureBase("merchant", "10.50", "7", "p1", map[string]string{ShpCorrelation: "robokassa_abc"}), HashSHA256)
	if q.Get("SignatureValue") != want {
		t.Fatalf("unexpected signature %s", q.Get("SignatureValue"))
	}
}

func TestInitiateCheckoutNotConfigured(t *testing.T) {
	_, err := NewClient(Config{}).InitiateCheckout(context.Background(), gateway.CheckoutRequest{
		InvoiceNo: 1,
		USDAmount: decimal.NewFromInt(1),
	})
	if gateway.KindOf(err) != gateway.KindNotConfigured {
		t.Fatalf("expected not_configured, got %v", err)
	}
}
