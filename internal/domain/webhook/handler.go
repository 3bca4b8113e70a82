package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parallax/parallax-api/internal/domain/ledger"
	"github.com/parallax/parallax-api/internal/pkg/errorhandler"
	"github.com/parallax/parallax-api/internal/pkg/moneymotion"
	"github.com/parallax/parallax-api/internal/pkg/response"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// MoneyMotion handles POST /webhooks/moneymotion
// @Summary Webhook MoneyMotion
// @Tags Webhooks
// @Param x-moneymotion-signature header string true "HMAC-SHA512"
// @Success 200 {object} Ack
// @Router /webhooks/moneymotion [post]
func (h *Handler) MoneyMotion(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		readError(w, err)
		return
	}

	var signature string
	for _, name := range moneymotion.SignatureHeaders {
		if signature = r.Header.Get(name); signature != "" {
			break
		}
	}

	ack, err := h.svc.HandleEvent(r.Context(), raw, signature)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Raw(w, http.StatusOK, ack)
}

// RoboKassaResult handles POST /webhooks/robokassa/result
// @Summary RoboKassa ResultURL
// @Tags Webhooks
// @Accept application/x-www-form-urlencoded
// @Produce plain
// @Router /webhooks/robokassa/result [post]
func (h *Handler) RoboKassaResult(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	if err := r.ParseForm(); err != nil {
		readError(w, err)
		return
	}

	body, err := h.svc.HandleRoboKassaResult(r.Context(), r.Form)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// readError answers a body that could not be read. Oversized bodies get 413
// so they are not mistaken for a bad signature.
func readError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
		return
	}
	response.BadRequest(w, "Failed to read body")
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSecretNotConfigured):
		response.Error(w, http.StatusInternalServerError, "SERVER_MISCONFIGURED", "Server misconfigured")
	case errors.Is(err, ErrInvalidSignature):
		response.Unauthorized(w, "Invalid signature")
	case errors.Is(err, ErrMalformedPayload):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrAmountMismatch):
		response.BadRequest(w, "Amount mismatch")
	case errors.Is(err, ledger.ErrTransactionNotFound):
		response.NotFound(w, "Transaction not found")
	case errors.Is(err, ledger.ErrRefundExceedsBalance):
		response.Conflict(w, "Refund exceeds current balance")
	default:
		errorhandler.Internal(r.Context(), w, "webhook", err)
	}
}

// Routes mounts provider callbacks. They authenticate by signature, not JWT.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/moneymotion", h.MoneyMotion)
	r.Post("/robokassa/result", h.RoboKassaResult)
	return r
}
