package webhook

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parallax/parallax-api/internal/domain/ledger"
	"github.com/parallax/parallax-api/internal/pkg/moneymotion"
)

func post(t *testing.T, svc *Service, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	NewHandler(svc).Routes().ServeHTTP(w, req)
	return w
}

func TestMoneyMotionHandlerStatuses(t *testing.T) {
	store := newMemStore()
	pending := store.add(ledger.TxPending, 1050, 0)
	poor := store.add(ledger.TxCompleted, 500, 10)
	svc := NewService(store, nil, Config{MoneyMotionSecret: secret})

	body, sig := signedEvent("complete", pending.ExternalID)
	w := post(t, svc, "/moneymotion", body, map[string]string{"x-moneymotion-signature": sig})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true,"credited":1050}`, w.Body.String())

	w = post(t, svc, "/moneymotion", body, map[string]string{"x-signature": sig})
	require.Equal(t, http.StatusOK, w.Code, "fallback header")
	require.JSONEq(t, `{"ok":true,"message":"Already processed"}`, w.Body.String())

	w = post(t, svc, "/moneymotion", body, map[string]string{"x-webhook-signature": "00"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	bad := []byte(`{"event":"complete"}`)
	w = post(t, svc, "/moneymotion", bad, map[string]string{"x-moneymotion-signature": sign(bad)})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body, sig = signedEvent("complete", "mm_nope")
	w = post(t, svc, "/moneymotion", body, map[string]string{"x-moneymotion-signature": sig})
	require.Equal(t, http.StatusNotFound, w.Code)

	body, sig = signedEvent("refunded", poor.ExternalID)
	w = post(t, svc, "/moneymotion", body, map[string]string{"x-moneymotion-signature": sig})
	require.Equal(t, http.StatusConflict, w.Code)

	w = post(t, NewService(store, nil, Config{}), "/moneymotion", body, map[string]string{"x-moneymotion-signature": sig})
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func sign(body []byte) string {
	return moneymotion.Sign(body, secret)
}

func TestWebhookHandlersRejectOversizedBodies(t *testing.T) {
	store := newMemStore()
	pending := store.add(ledger.TxPending, 1050, 0)
	svc := NewService(store, nil, Config{MoneyMotionSecret: secret, RoboKassa: roboCreds{}})

	padding := strings.Repeat(" ", maxWebhookBody)
	body := []byte(`{"event":"complete","moneymotionId":"` + pending.ExternalID + `"}` + padding)
	w := post(t, svc, "/moneymotion", body, map[string]string{"x-moneymotion-signature": sign(body)})
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	form := []byte("OutSum=10.00&InvId=1&Shp_tx=" + pending.ExternalID + "&pad=" + padding)
	w = post(t, svc, "/robokassa/result", form, map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	require.Equal(t, ledger.TxPending, store.txs[pending.ExternalID].Status)
}

func TestRoboKassaHandler(t *testing.T) {
	store := newMemStore()
	tx := store.add(ledger.TxPending, 1050, 0)
	svc := NewService(store, nil, Config{RoboKassa: roboCreds{}})

	form := roboForm(t, "10.50", tx.InvoiceNo, tx.ExternalID)
	w := post(t, svc, "/robokassa/result", []byte(form.Encode()), map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, fmt.Sprintf("OK%d", tx.InvoiceNo), w.Body.String())
	require.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))

	form.Set("SignatureValue", "bad")
	w = post(t, svc, "/robokassa/result", []byte(form.Encode()), map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
