package purchase

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parallax/parallax-api/internal/domain/ledger"
	"github.com/parallax/parallax-api/internal/middleware"
	"github.com/parallax/parallax-api/internal/pkg/errorhandler"
	"github.com/parallax/parallax-api/internal/pkg/response"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Purchase handles POST /products/{id}/purchase
// @Summary Покупка товара за PRX
// @Tags Purchase
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 200 {object} response.Response{data=Result}
// @Failure 400,401,404 {object} response.Response
// @Router /products/{id}/purchase [post]
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.NotFound(w, "Product not found")
		return
	}

	result, err := h.svc.Purchase(r.Context(), userID, productID)
	if err != nil {
		var insufficient *ledger.InsufficientBalanceError
		switch {
		case errors.As(err, &insufficient):
			response.ErrorWithDetails(w, http.StatusBadRequest, "INSUFFICIENT_BALANCE", "Insufficient PRX balance", map[string]string{
				"needed": strconv.FormatInt(insufficient.Needed, 10),
				"have":   strconv.FormatInt(insufficient.Have, 10),
			})
		case errors.Is(err, ledger.ErrOutOfStock):
			response.Error(w, http.StatusBadRequest, "OUT_OF_STOCK", "Product is out of stock")
		case errors.Is(err, ledger.ErrProductNotFound):
			response.NotFound(w, "Product not found")
		case errors.Is(err, ledger.ErrUserNotFound):
			response.NotFound(w, "User not found")
		default:
			errorhandler.Internal(r.Context(), w, "purchase", err)
		}
		return
	}

	response.OK(w, result)
}

// ListOrders handles GET /orders
// @Summary Мои заказы
// @Tags Purchase
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Router /orders [get]
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, limit := Pagination(r)
	orders, total, err := h.svc.ListOrders(r.Context(), userID, page, limit)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "list_orders", err)
		return
	}

	response.WithMeta(w, orders, response.NewMeta(total, page, limit))
}

// Balance handles GET /balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		errorhandler.Internal(r.Context(), w, "get_balance", err)
		return
	}

	response.OK(w, map[string]int64{"balance": balance})
}

// Pagination reads page and limit query params with defaults and bounds.
func Pagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// Routes mounts purchase endpoints. All require authentication.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/products/{id}/purchase", h.Purchase)
	r.Get("/orders", h.ListOrders)
	r.Get("/balance", h.Balance)
	return r
}
