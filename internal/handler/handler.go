// Package handler содержит HTTP-обработчики API сервиса бустмарт.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/akazantsev/boostmart/internal/boost"
	"github.com/akazantsev/boostmart/internal/lifecycle"
	"github.com/akazantsev/boostmart/internal/middleware"
	"github.com/akazantsev/boostmart/internal/model"
	"github.com/akazantsev/boostmart/internal/payment"
	"github.com/akazantsev/boostmart/internal/pricing"
	"github.com/akazantsev/boostmart/internal/repository"
	"github.com/akazantsev/boostmart/internal/service"
	"github.com/akazantsev/boostmart/internal/validation"
)

// UserService определяет контракт операций над пользователями.
type UserService interface {
	RegisterUser(ctx context.Context, login, password string, role model.Role) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (*model.User, error)
	UpdateBoosterProfile(ctx context.Context, userID int64, assignable bool, commission int64, soloLimit, duoLimit, documents int, services []model.BoosterService) error
	ListOrders(ctx context.Context, customerID int64) ([]model.Order, error)
}

// OrderRepository определяет операции хранилища, нужные обработчикам напрямую.
type OrderRepository interface {
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	SaveRateTable(ctx context.Context, service string, rows [][]string) error
}

// Handler реализует HTTP-обработчики API сервиса бустмарт.
type Handler struct {
	users          UserService
	builder        *boost.Builder
	lifecycle      *lifecycle.Manager
	payments       *payment.Processor
	repo           OrderRepository
	store          *pricing.Store
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(users UserService, builder *boost.Builder, lc *lifecycle.Manager, payments *payment.Processor, repo OrderRepository, store *pricing.Store, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		users:          users,
		builder:        builder,
		lifecycle:      lc,
		payments:       payments,
		repo:           repo,
		store:          store,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Register обрабатывает регистрацию нового пользователя. Допустимые роли —
// покупатель и бустер; администраторы не регистрируются через API.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	role := model.RoleCustomer
	if req.Role != "" {
		role = model.Role(req.Role)
	}
	if role != model.RoleCustomer && role != model.RoleBooster {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.users.RegisterUser(r.Context(), req.Login, req.Password, role)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID, role)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.users.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, user.ID, user.Role)
	w.WriteHeader(http.StatusOK)
}

type boosterProfileRequest struct {
	Assignable     bool                   `json:"assignable"`
	Commission     int64                  `json:"commission"`
	SoloClaimLimit int                    `json:"solo_claim_limit"`
	DuoClaimLimit  int                    `json:"duo_claim_limit"`
	DocumentsCount int                    `json:"documents_count"`
	Services       []model.BoosterService `json:"services"`
}

// UpdateBoosterProfile сохраняет настройки текущего бустера.
func (h *Handler) UpdateBoosterProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req boosterProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.users.UpdateBoosterProfile(r.Context(), userID, req.Assignable, req.Commission, req.SoloClaimLimit, req.DuoClaimLimit, req.DocumentsCount, req.Services); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		h.logger.Error("update booster profile error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Calculate возвращает расчёт цены без создания заказа.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req validation.BoostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	req.Checkout = false

	calc, ok, msg := h.builder.Init(&req)
	if !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	result, _, err := calc.Process(r.Context(), 0)
	if err != nil {
		h.writePricingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type checkoutResponse struct {
	Order  orderResponse          `json:"order"`
	Result *model.CalculateResult `json:"result"`
}

// Checkout рассчитывает цену и создаёт заказ в состоянии NOT_PAID.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req validation.BoostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	req.Checkout = true

	calc, ok, msg := h.builder.Init(&req)
	if !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	result, order, err := calc.Process(r.Context(), userID)
	if err != nil {
		h.writePricingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		Order:  toOrderResponse(order),
		Result: result,
	})
}

// writePricingError сопоставляет ошибки расчёта и оформления с HTTP-статусами.
// Ошибки данных таблиц считаются серверными: платёжеспособный запрос не должен
// получать отказ из-за дырявого прайса.
func (h *Handler) writePricingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidServer),
		errors.Is(err, pricing.ErrUnknownTier),
		errors.Is(err, pricing.ErrWrongRankOrder),
		errors.Is(err, pricing.ErrMinPointDelta),
		errors.Is(err, boost.ErrCouponInvalid),
		errors.Is(err, boost.ErrFilterMissing),
		errors.Is(err, boost.ErrBoosterNotFound),
		errors.Is(err, boost.ErrBoosterNotAssignable),
		errors.Is(err, boost.ErrBoosterNotEligible):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, boost.ErrZeroTotal):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("pricing error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type orderResponse struct {
	ID         int64  `json:"id"`
	OrderID    int64  `json:"order_id"`
	Title      string `json:"title"`
	Service    string `json:"service"`
	State      string `json:"state"`
	TotalPrice int64  `json:"total_price"`
	CreatedAt  string `json:"created_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:         o.ID,
		OrderID:    o.OrderID,
		Title:      o.Title,
		Service:    o.Service,
		State:      string(o.State),
		TotalPrice: o.TotalPrice,
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
	}
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.users.ListOrders(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

func orderIDFromURL(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

type accountCredentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// SubmitCredentials принимает учётные данные игрового аккаунта покупателя.
func (h *Handler) SubmitCredentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	orderID, ok := orderIDFromURL(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req accountCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.lifecycle.SubmitCredentials(r.Context(), orderID, userID, req.Login, req.Password); err != nil {
		h.writeLifecycleError(w, err, orderID)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ClaimOrder назначает заказ текущему бустеру.
func (h *Handler) ClaimOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	orderID, ok := orderIDFromURL(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.lifecycle.ClaimBoost(r.Context(), orderID, userID); err != nil {
		var claimErr *lifecycle.ClaimError
		if errors.As(err, &claimErr) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: claimErr.Message, Code: claimErr.Code})
			return
		}
		h.writeLifecycleError(w, err, orderID)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// RequestVerification переводит заказ на проверку выполненной работы.
func (h *Handler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	h.boosterTransition(w, r, h.lifecycle.RequestVerification)
}

// FinishOrder завершает заказ и выплачивает долю бустера.
func (h *Handler) FinishOrder(w http.ResponseWriter, r *http.Request) {
	h.boosterTransition(w, r, h.lifecycle.FinishBoost)
}

func (h *Handler) boosterTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID, boosterID int64) error) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	orderID, ok := orderIDFromURL(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := fn(r.Context(), orderID, userID); err != nil {
		h.writeLifecycleError(w, err, orderID)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// CancelOrder отменяет заказ текущего покупателя.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	orderID, ok := orderIDFromURL(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.lifecycle.Cancel(r.Context(), orderID, userID); err != nil {
		h.writeLifecycleError(w, err, orderID)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeLifecycleError(w http.ResponseWriter, err error, orderID int64) {
	switch {
	case errors.Is(err, lifecycle.ErrOrderNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrNotAssigned):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, lifecycle.ErrWrongState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		var claimErr *lifecycle.ClaimError
		if errors.As(err, &claimErr) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: claimErr.Message, Code: claimErr.Code})
			return
		}
		h.logger.Error("order transition error", zap.Error(err), zap.Int64("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type payRequest struct {
	Provider   string `json:"provider"`
	UseBalance bool   `json:"use_balance"`
}

type payResponse struct {
	PaymentID   string `json:"payment_id"`
	Amount      int64  `json:"amount"`
	BalanceUsed int64  `json:"balance_used"`
	Status      string `json:"status"`
}

// PayOrder открывает платёж за заказ текущего покупателя.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	orderID, ok := orderIDFromURL(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Provider == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.repo.GetOrderByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.Int64("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if order.CustomerID != userID {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	pay, err := h.payments.Create(r.Context(), order, userID, req.Provider, req.UseBalance)
	if err != nil {
		if errors.Is(err, payment.ErrWrongOrderState) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("create payment error", zap.Error(err), zap.Int64("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, payResponse{
		PaymentID:   pay.ID,
		Amount:      pay.Amount,
		BalanceUsed: pay.BalanceUsed,
		Status:      string(pay.Status),
	})
}

type webhookRequest struct {
	PaymentID string `json:"payment_id"`
	Success   bool   `json:"success"`
}

// PaymentWebhook применяет решение платёжного шлюза. Повторные вебхуки
// подтверждаются без побочных эффектов.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.payments.Process(r.Context(), req.PaymentID, req.Success); err != nil {
		switch {
		case errors.Is(err, payment.ErrAlreadyProcessed):
			w.WriteHeader(http.StatusOK)
		case errors.Is(err, payment.ErrPaymentNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, payment.ErrWrongOrderState):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("payment webhook error", zap.Error(err), zap.String("payment", req.PaymentID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// UploadRateTable принимает TSV-таблицу цен услуги, сохраняет её в базе
// и заменяет таблицу в памяти целиком.
func (h *Handler) UploadRateTable(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "service")
	if _, ok := pricing.ServiceConfig(code); !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rows := pricing.ParseTSV(string(body))
	if len(rows) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.repo.SaveRateTable(r.Context(), code, rows); err != nil {
		h.logger.Error("save rate table error", zap.Error(err), zap.String("service", code))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.store.Load(code, rows)
	w.WriteHeader(http.StatusOK)
}
