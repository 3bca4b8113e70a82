package topup

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parallax/parallax-api/internal/domain/ledger"
	"github.com/parallax/parallax-api/internal/middleware"
	"github.com/parallax/parallax-api/internal/pkg/errorhandler"
	"github.com/parallax/parallax-api/internal/pkg/gateway"
	"github.com/parallax/parallax-api/internal/pkg/response"
	"github.com/parallax/parallax-api/internal/pkg/validator"
)

const gatewayUnavailableMessage = "Payment provider is temporarily unavailable. Please try again later or choose another method."

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func callerFrom(r *http.Request) Caller {
	return Caller{
		UserID: middleware.GetUserID(r.Context()),
		Role:   ledger.Role(middleware.GetRole(r.Context())),
	}
}

// Start handles POST /topup
// @Summary Пополнение баланса PRX
// @Tags TopUp
// @Security BearerAuth
// @Param body body StartRequest true "Сумма и способ оплаты"
// @Success 200 {object} response.Response{data=StartResult}
// @Failure 400,403,404,429,503 {object} response.Response
// @Router /topup [post]
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	if caller.UserID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req StartRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	// The service checks the amount before the method id.
	result, err := h.svc.StartTopUp(r.Context(), caller, req.PRXAmount, req.PaymentMethodID)
	if err != nil {
		h.startError(w, r, caller, err)
		return
	}

	response.OK(w, result)
}

func (h *Handler) startError(w http.ResponseWriter, r *http.Request, caller Caller, err error) {
	var disabled *MethodDisabledError
	var failure *GatewayFailureError
	switch {
	case errors.Is(err, ErrInvalidAmount):
		p := h.svc.cfg.Pricing
		response.Error(w, http.StatusBadRequest, "INVALID_AMOUNT",
			fmt.Sprintf("Top-up amount must be a whole number between %d and %d PRX", p.Min, p.Max))
	case errors.Is(err, ledger.ErrMethodNotFound):
		response.NotFound(w, "Payment method not found")
	case errors.As(err, &disabled):
		response.Error(w, http.StatusForbidden, "METHOD_DISABLED", disabled.Error())
	case errors.Is(err, ledger.ErrUserNotFound):
		response.NotFound(w, "User not found")
	case errors.Is(err, gateway.ErrNoHandlerForMethod):
		admin := ""
		if caller.IsAdmin() {
			admin = err.Error()
		}
		response.ServiceUnavailable(w, gatewayUnavailableMessage, admin)
	case errors.As(err, &failure):
		admin := ""
		if caller.IsAdmin() {
			admin = failure.Diagnostic()
		}
		response.ServiceUnavailable(w, gatewayUnavailableMessage, admin)
	default:
		errorhandler.Internal(r.Context(), w, "start_topup", err)
	}
}

// Status handles GET /topup/status?txId=
// @Summary Статус пополнения
// @Tags TopUp
// @Security BearerAuth
// @Param txId query string true "Transaction ID"
// @Router /topup/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	if caller.UserID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	raw := r.URL.Query().Get("txId")
	if raw == "" {
		response.BadRequest(w, "Missing txId")
		return
	}
	txID, err := uuid.Parse(raw)
	if err != nil {
		response.NotFound(w, "Transaction not found")
		return
	}

	status, err := h.svc.Status(r.Context(), caller, txID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			response.NotFound(w, "Transaction not found")
		case errors.Is(err, ErrForbidden):
			response.Forbidden(w, "Forbidden")
		default:
			errorhandler.Internal(r.Context(), w, "topup_status", err)
		}
		return
	}

	response.OK(w, status)
}

// ListTransactions handles GET /transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	txs, total, err := h.svc.ListTransactions(r.Context(), userID, page, limit)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "list_transactions", err)
		return
	}

	response.WithMeta(w, txs, response.NewMeta(total, page, limit))
}

// ListMethods handles GET /payment-methods
// @Summary Способы оплаты
// @Tags TopUp
// @Router /payment-methods [get]
func (h *Handler) ListMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.svc.ListMethods(r.Context())
	if err != nil {
		errorhandler.Internal(r.Context(), w, "list_payment_methods", err)
		return
	}
	response.OK(w, methods)
}

// SetMethodEnabled handles PATCH /api/admin/payment-methods
func (h *Handler) SetMethodEnabled(w http.ResponseWriter, r *http.Request) {
	var req SetMethodRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", errs)
		return
	}

	m, err := h.svc.SetMethodEnabled(r.Context(), uuid.MustParse(req.ID), *req.Enabled)
	if err != nil {
		if errors.Is(err, ledger.ErrMethodNotFound) {
			response.NotFound(w, "Payment method not found")
			return
		}
		errorhandler.Internal(r.Context(), w, "set_payment_method", err)
		return
	}
	response.OK(w, m)
}

// Routes mounts /topup. rateLimit guards session creation only.
func (h *Handler) Routes(authMiddleware, rateLimit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.With(rateLimit).Post("/", h.Start)
	r.Get("/status", h.Status)
	return r
}

func (h *Handler) TransactionRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.ListTransactions)
	return r
}

func (h *Handler) MethodRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListMethods)
	return r
}

// AdminRoutes mounts /api/admin/payment-methods.
func (h *Handler) AdminRoutes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware, adminOnly)
	r.Patch("/", h.SetMethodEnabled)
	return r
}
