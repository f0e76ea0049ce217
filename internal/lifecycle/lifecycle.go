// Package lifecycle управляет переходами заказа между состояниями:
// от оплаты через взятие бустером до завершения и выплаты.
package lifecycle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/akazantsev/boostmart/internal/model"
	"github.com/akazantsev/boostmart/internal/pricing"
	"github.com/akazantsev/boostmart/internal/repository"
)

// Ошибки переходов жизненного цикла.
var (
	ErrOrderNotFound = errors.New("order not found")
	ErrWrongState    = errors.New("order is in the wrong state")
	ErrNotAssigned   = errors.New("order is assigned to another booster")
)

// ClaimError описывает отказ при взятии заказа бустером. Код стабилен и
// предназначен для клиента, сообщение — для человека.
type ClaimError struct {
	Code    string
	Message string
}

func (e *ClaimError) Error() string {
	return e.Message
}

// Коды отказов взятия заказа.
const (
	ClaimBoosterNotFound = "booster_not_found"
	ClaimDocumentNeeded  = "document_required"
	ClaimUnavailable     = "order_unavailable"
	ClaimConfigMissing   = "config_missing"
	ClaimFilterMissing   = "filter_missing"
	ClaimNotEligible     = "not_eligible"
	ClaimLimitReached    = "claim_limit_reached"
)

func claimErr(code, format string, args ...any) *ClaimError {
	return &ClaimError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Repository описывает операции хранилища, нужные жизненному циклу заказа.
type Repository interface {
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateOrderState(ctx context.Context, id int64, from, to model.OrderState) error
	SetOrderCredentials(ctx context.Context, id int64, credentialsHash string, to model.OrderState) error
	ClaimOrder(ctx context.Context, orderID, boosterID int64, duo bool, limit int) error
	CompleteOrder(ctx context.Context, orderID, boosterID, payout int64, description, tag string) error
	CancelOrder(ctx context.Context, id int64) error
	InsertAuditLog(ctx context.Context, userID, orderID int64, action, details string) error
}

// Notifier отправляет best-effort уведомления о переходах заказа.
type Notifier interface {
	SystemChat(ctx context.Context, orderID int64, text string)
	NotifyUser(ctx context.Context, userID, orderID int64, text string)
}

// Manager выполняет переходы заказа, фиксируя их в журнале аудита.
type Manager struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
}

// NewManager создаёт координатор жизненного цикла заказов.
func NewManager(repo Repository, notifier Notifier, logger *zap.Logger) *Manager {
	return &Manager{repo: repo, notifier: notifier, logger: logger}
}

// NextState возвращает состояние, в которое заказ переходит после оплаты.
// Тренерские сессии и duo-заказы играются на аккаунте покупателя, поэтому
// учётные данные не запрашиваются.
func NextState(o *model.Order) model.OrderState {
	switch {
	case o.Details.General.SessionTime > 0:
		return model.StateBoosting
	case o.Details.General.DuoOrder && o.BoosterID != 0:
		return model.StateBoosting
	case o.Details.General.DuoOrder:
		return model.StateWaitingForBooster
	default:
		return model.StateWaitingForAccount
	}
}

// ClaimBoost назначает заказ бустеру. Предусловия проверяются по порядку,
// отказ возвращается с первым нарушенным; гонка одновременных взятий
// разрешается на уровне хранилища.
func (m *Manager) ClaimBoost(ctx context.Context, orderID, boosterID int64) error {
	booster, err := m.repo.GetUserByID(ctx, boosterID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return claimErr(ClaimBoosterNotFound, "booster %d not found", boosterID)
		}
		return err
	}
	if booster.Role != model.RoleBooster {
		return claimErr(ClaimBoosterNotFound, "user %d is not a booster", boosterID)
	}
	if booster.DocumentsCount < 1 {
		return claimErr(ClaimDocumentNeeded, "booster must upload an identity document first")
	}

	order, err := m.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	if order.State != model.StateWaitingForBooster {
		return claimErr(ClaimUnavailable, "order %d is not waiting for a booster", order.OrderID)
	}
	if len(booster.Services) == 0 {
		return claimErr(ClaimConfigMissing, "booster has no configured services")
	}
	if order.FilterID == 0 {
		return claimErr(ClaimFilterMissing, "order %d has no service filter", order.OrderID)
	}

	svc, ok := booster.ServiceFor(order.FilterID)
	if !ok {
		return claimErr(ClaimNotEligible, "booster is not configured for this service and server")
	}
	if ref := order.RankRef(); ref != 0 && !containsID(svc.RankIDs, ref) {
		return claimErr(ClaimNotEligible, "order rank is outside the booster range")
	}

	duo := order.Details.General.DuoOrder
	limit := booster.SoloClaimLimit
	if duo {
		limit = booster.DuoClaimLimit
	}

	if err := m.repo.ClaimOrder(ctx, orderID, boosterID, duo, limit); err != nil {
		switch {
		case errors.Is(err, repository.ErrClaimLimitReached):
			return claimErr(ClaimLimitReached, "booster already has %d active orders of this kind", limit)
		case errors.Is(err, repository.ErrOrderUnavailable):
			return claimErr(ClaimUnavailable, "order %d was just taken", order.OrderID)
		default:
			return err
		}
	}

	m.audit(ctx, boosterID, orderID, "order_claimed", fmt.Sprintf("booster %d", boosterID))
	m.notifier.SystemChat(ctx, orderID, "Booster assigned, boosting started")
	m.notifier.NotifyUser(ctx, order.CustomerID, orderID, "A booster has taken your order")

	return nil
}

// SubmitCredentials принимает учётные данные аккаунта покупателя.
// Хранится только хеш; открытые данные не пишутся ни в базу, ни в логи.
func (m *Manager) SubmitCredentials(ctx context.Context, orderID, customerID int64, login, password string) error {
	order, err := m.getOwnOrder(ctx, orderID, customerID)
	if err != nil {
		return err
	}
	if order.State != model.StateWaitingForAccount {
		return ErrWrongState
	}

	sum := sha256.Sum256([]byte(login + ":" + password))
	hash := hex.EncodeToString(sum[:])

	next := model.StateWaitingForBooster
	if order.BoosterID != 0 {
		next = model.StateBoosting
	}

	if err := m.repo.SetOrderCredentials(ctx, orderID, hash, next); err != nil {
		if errors.Is(err, repository.ErrOrderUnavailable) {
			return ErrWrongState
		}
		return err
	}

	m.audit(ctx, customerID, orderID, "credentials_submitted", "")
	m.notifier.SystemChat(ctx, orderID, "Account credentials received")

	return nil
}

// RequestVerification переводит заказ на проверку выполненной работы.
func (m *Manager) RequestVerification(ctx context.Context, orderID, boosterID int64) error {
	order, err := m.getAssignedOrder(ctx, orderID, boosterID)
	if err != nil {
		return err
	}
	if order.State != model.StateBoosting {
		return ErrWrongState
	}

	if err := m.repo.UpdateOrderState(ctx, orderID, model.StateBoosting, model.StateVerificationRequired); err != nil {
		if errors.Is(err, repository.ErrOrderUnavailable) {
			return ErrWrongState
		}
		return err
	}

	m.audit(ctx, boosterID, orderID, "verification_requested", "")
	m.notifier.NotifyUser(ctx, order.CustomerID, orderID, "Your order is ready for verification")

	return nil
}

// FinishBoost завершает заказ и выплачивает бустеру его долю. Комиссия
// берётся из настройки бустера для фильтра заказа; перевод состояния и
// выплата выполняются одной операцией хранилища.
func (m *Manager) FinishBoost(ctx context.Context, orderID, boosterID int64) error {
	order, err := m.getAssignedOrder(ctx, orderID, boosterID)
	if err != nil {
		return err
	}
	if order.State != model.StateVerificationRequired {
		return ErrWrongState
	}

	booster, err := m.repo.GetUserByID(ctx, boosterID)
	if err != nil {
		return err
	}

	svc, ok := booster.ServiceFor(order.FilterID)
	if !ok {
		return claimErr(ClaimNotEligible, "booster is not configured for this service and server")
	}

	commission := svc.Commission
	if commission == 0 {
		commission = booster.Commission
	}

	payout := pricing.PercentOf(order.TotalPrice, commission)
	description := fmt.Sprintf("Payout for order #%d", order.OrderID)

	if err := m.repo.CompleteOrder(ctx, orderID, boosterID, payout, description, "payout"); err != nil {
		if errors.Is(err, repository.ErrOrderUnavailable) {
			return ErrWrongState
		}
		return err
	}

	m.audit(ctx, boosterID, orderID, "order_completed", fmt.Sprintf("payout %d", payout))
	m.notifier.SystemChat(ctx, orderID, "Order completed")
	m.notifier.NotifyUser(ctx, order.CustomerID, orderID, "Your order has been completed")

	return nil
}

// Cancel отменяет заказ покупателя, если тот ещё не завершён.
func (m *Manager) Cancel(ctx context.Context, orderID, customerID int64) error {
	order, err := m.getOwnOrder(ctx, orderID, customerID)
	if err != nil {
		return err
	}
	if order.State.Terminal() {
		return ErrWrongState
	}

	if err := m.repo.CancelOrder(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrOrderUnavailable) {
			return ErrWrongState
		}
		return err
	}

	m.audit(ctx, customerID, orderID, "order_cancelled", "")
	m.notifier.SystemChat(ctx, orderID, "Order cancelled by the customer")

	return nil
}

func (m *Manager) getOwnOrder(ctx context.Context, orderID, customerID int64) (*model.Order, error) {
	order, err := m.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (m *Manager) getAssignedOrder(ctx context.Context, orderID, boosterID int64) (*model.Order, error) {
	order, err := m.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.BoosterID != boosterID {
		return nil, ErrNotAssigned
	}
	return order, nil
}

func (m *Manager) audit(ctx context.Context, userID, orderID int64, action, details string) {
	if err := m.repo.InsertAuditLog(ctx, userID, orderID, action, details); err != nil {
		m.logger.Warn("audit log write failed",
			zap.Int64("order", orderID), zap.String("action", action), zap.Error(err))
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
