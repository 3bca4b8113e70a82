package robokassa

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func signedForm(t *testing.T, outSum, invID, password2 string, shp map[string]string) map[string][]string {
	t.Helper()
	sig, err := Sign(ResultSignatureBase(outSum, invID, password2, shp), HashSHA256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	form := map[string][]string{
		"OutSum":         {outSum},
		"InvId":          {invID},
		"SignatureValue": {sig},
	}
	for k, v := range shp {
		form[k] = []string{v}
	}
	return form
}

func TestParseAndVerifyResult(t *testing.T) {
	form := signedForm(t, "10.00", "42", "p2", map[string]string{"Shp_tx": "robokassa_abc"})

	n, err := ParseResultForm(form)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := VerifyResult(n, "p2", HashSHA256); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if n.CorrelationID() != "robokassa_abc" {
		t.Fatalf("unexpected correlation id %q", n.CorrelationID())
	}
	amount, err := n.Amount()
	if err != nil || !AmountsEqual(amount, decimal.NewFromInt(10)) {
		t.Fatalf("unexpected amount %s (%v)", amount, err)
	}
}

func TestVerifyResultWrongPassword(t *testing.T) {
	form := signedForm(t, "10.00", "42", "p2", map[string]string{"Shp_tx": "robokassa_abc"})
	n, _ := ParseResultForm(form)

	if err := VerifyResult(n, "other", HashSHA256); !errors.Is(err, ErrInvalidResultSignature) {
		t.Fatalf("expected ErrInvalidResultSignature, got %v", err)
	}
}

func TestVerifyResultTamperedShp(t *testing.T) {
	form := signedForm(t, "10.00", "42", "p2", map[string]string{"Shp_tx": "robokassa_abc"})
	form["Shp_tx"] = []string{"robokassa_other"}
	n, _ := ParseResultForm(form)

	if err := VerifyResult(n, "p2", HashSHA256); !errors.Is(err, ErrInvalidResultSignature) {
		t.Fatalf("expected ErrInvalidResultSignature, got %v", err)
	}
}

func TestParseResultFormRequiresFields(t *testing.T) {
	if _, err := ParseResultForm(map[string][]string{"OutSum": {"1"}}); err == nil {
		t.Fatal("expected error for missing InvId")
	}
}

func TestParseResultForm_PreservesShpKeyCase(t *testing.T) {
	n, err := ParseResultForm(map[string][]string{
		"OutSum":         {"100.00"},
		"InvId":          {"42"},
		"SignatureValue": {"sig"},
		"Shp_orderId":    {"A-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Shp["Shp_orderId"] != "A-1" {
		t.Fatalf("expected original shp key preserved, got: %#v", n.Shp)
	}
}

func TestAmountsEqual_DifferentScale(t *testing.T) {
	a := decimal.RequireFromString("100.10")
	b := decimal.RequireFromString("100.100000")
	if !AmountsEqual(a, b) {
		t.Fatal("amounts should be numerically equal")
	}
}
