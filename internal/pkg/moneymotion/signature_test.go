package moneymotion

import (
	"strings"
	"testing"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	body := []byte(`{"event":"complete","moneymotionId":"mm_1"}`)
	sig := Sign(body, "whsec")

	if !VerifySignature(body, sig, "whsec") {
		t.Fatal("expected signature to verify")
	}
	if !VerifySignature(body, strings.ToUpper(sig), "whsec") {
		t.Fatal("hex case must not matter")
	}
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"event":"complete","moneymotionId":"mm_1"}`)
	sig := Sign(body, "whsec")

	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		if VerifySignature(tampered, sig, "whsec") {
			t.Fatalf("tampered byte %d still verified", i)
		}
	}
}

func TestVerifySignatureRejectsEmptyAndMalformed(t *testing.T) {
	body := []byte("{}")
	if VerifySignature(body, Sign(body, "s"), "") {
		t.Fatal("empty secret must never verify")
	}
	if VerifySignature(body, "", "s") {
		t.Fatal("empty signature must never verify")
	}
	if VerifySignature(body, "zz-not-hex", "s") {
		t.Fatal("malformed hex must never verify")
	}
}
