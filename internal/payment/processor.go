// Package payment создаёт платежи за заказы и обрабатывает вебхуки
// платёжного шлюза. Обработка идемпотентна: повторный вебхук по уже
// закрытому платежу ничего не меняет.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akazantsev/boostmart/internal/lifecycle"
	"github.com/akazantsev/boostmart/internal/model"
	"github.com/akazantsev/boostmart/internal/repository"
)

// Ошибки обработки платежей.
var (
	ErrAlreadyProcessed = errors.New("payment already processed")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrWrongOrderState  = errors.New("order is not awaiting payment")
)

// Repository описывает операции хранилища, нужные платёжному процессору.
type Repository interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	UpdateOrderState(ctx context.Context, id int64, from, to model.OrderState) error
	CreatePayment(ctx context.Context, p *model.Payment) error
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
	SettlePayment(ctx context.Context, id string, to model.PaymentStatus) (bool, error)
	UpdateBalance(ctx context.Context, kind model.TransactionKind, userID, amount int64, description, tag string) error
	ConsumeCoupon(ctx context.Context, id int64) (bool, error)
	GetCouponByID(ctx context.Context, id int64) (*model.Coupon, error)
	InsertAuditLog(ctx context.Context, userID, orderID int64, action, details string) error
}

// Notifier отправляет best-effort уведомления об исходе оплаты.
type Notifier interface {
	SystemChat(ctx context.Context, orderID int64, text string)
	NotifyUser(ctx context.Context, userID, orderID int64, text string)
}

// Processor создаёт платёжные записи и применяет решения шлюза к заказам.
type Processor struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
}

// NewProcessor создаёт платёжный процессор.
func NewProcessor(repo Repository, notifier Notifier, logger *zap.Logger) *Processor {
	return &Processor{repo: repo, notifier: notifier, logger: logger}
}

// Create открывает платёж за заказ. При useBalance часть суммы списывается
// с баланса покупателя сразу; остаток уходит на оплату через провайдера.
// Если баланс покрывает заказ целиком, платёж закрывается без вебхука.
func (p *Processor) Create(ctx context.Context, order *model.Order, userID int64, provider string, useBalance bool) (*model.Payment, error) {
	if order.State != model.StateNotPaid {
		return nil, ErrWrongOrderState
	}

	var balanceUsed int64
	if useBalance {
		user, err := p.repo.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		balanceUsed = user.Balance
		if balanceUsed > order.TotalPrice {
			balanceUsed = order.TotalPrice
		}
	}

	pay := &model.Payment{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		UserID:      userID,
		Provider:    provider,
		Amount:      order.TotalPrice - balanceUsed,
		BalanceUsed: balanceUsed,
		CouponID:    order.Details.CouponID,
		Status:      model.PaymentPending,
	}

	if balanceUsed > 0 {
		description := fmt.Sprintf("Payment for order #%d", order.OrderID)
		if err := p.repo.UpdateBalance(ctx, model.SubtractBalance, userID, balanceUsed, description, pay.ID); err != nil {
			return nil, err
		}
	}

	if err := p.repo.CreatePayment(ctx, pay); err != nil {
		p.refundBalance(ctx, pay)
		return nil, err
	}

	if pay.Amount == 0 {
		if err := p.Process(ctx, pay.ID, true); err != nil {
			return nil, err
		}
		pay.Status = model.PaymentCompleted
	}

	return pay, nil
}

// Process применяет решение шлюза к платежу. Статус переводится условным
// обновлением из PENDING, поэтому из конкурирующих вебхуков выигрывает
// ровно один; остальные получают ErrAlreadyProcessed.
func (p *Processor) Process(ctx context.Context, paymentID string, success bool) error {
	pay, err := p.repo.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}

	target := model.PaymentCompleted
	if !success {
		target = model.PaymentFailed
	}

	won, err := p.repo.SettlePayment(ctx, paymentID, target)
	if err != nil {
		return err
	}
	if !won {
		p.audit(ctx, pay.UserID, pay.OrderID, "duplicate_webhook", paymentID)
		return ErrAlreadyProcessed
	}

	if success {
		return p.applySuccess(ctx, pay)
	}
	return p.applyFailure(ctx, pay)
}

func (p *Processor) applySuccess(ctx context.Context, pay *model.Payment) error {
	order, err := p.repo.GetOrderByID(ctx, pay.OrderID)
	if err != nil {
		return err
	}

	next := lifecycle.NextState(order)
	if err := p.repo.UpdateOrderState(ctx, pay.OrderID, model.StateNotPaid, next); err != nil {
		if errors.Is(err, repository.ErrOrderUnavailable) {
			// Заказ отменили, пока шла оплата: деньги возвращаются на баланс.
			p.refundBalance(ctx, pay)
			return fmt.Errorf("order %d left NOT_PAID before settlement: %w", pay.OrderID, ErrWrongOrderState)
		}
		return err
	}

	if pay.CouponID != 0 {
		used, err := p.repo.ConsumeCoupon(ctx, pay.CouponID)
		if err != nil {
			return err
		}
		if !used {
			code := ""
			if coupon, cerr := p.repo.GetCouponByID(ctx, pay.CouponID); cerr == nil {
				code = coupon.Code
			}
			p.logger.Warn("coupon exhausted after checkout",
				zap.Int64("coupon", pay.CouponID), zap.String("code", code),
				zap.Int64("order", pay.OrderID))
		}
	}

	p.audit(ctx, pay.UserID, pay.OrderID, "payment_completed", pay.ID)
	p.notifier.SystemChat(ctx, pay.OrderID, "Payment received")
	p.notifier.NotifyUser(ctx, pay.UserID, pay.OrderID, "Your payment was accepted")

	return nil
}

func (p *Processor) applyFailure(ctx context.Context, pay *model.Payment) error {
	// Возврат баланса идёт первым: запись платежа уже переведена в FAILED,
	// и повторный вебхук сюда не вернётся.
	p.refundBalance(ctx, pay)

	// Отменяется только неоплаченный заказ: покупатель мог успеть
	// оплатить повторным платежом.
	if err := p.repo.UpdateOrderState(ctx, pay.OrderID, model.StateNotPaid, model.StateCancelled); err != nil {
		if !errors.Is(err, repository.ErrOrderUnavailable) {
			return err
		}
	}

	p.audit(ctx, pay.UserID, pay.OrderID, "payment_failed", pay.ID)
	p.notifier.NotifyUser(ctx, pay.UserID, pay.OrderID, "Your payment was declined")

	return nil
}

// refundBalance возвращает удержанную с баланса часть платежа.
func (p *Processor) refundBalance(ctx context.Context, pay *model.Payment) {
	if pay.BalanceUsed <= 0 {
		return
	}
	description := fmt.Sprintf("Refund for payment %s", pay.ID)
	if err := p.repo.UpdateBalance(ctx, model.AddBalance, pay.UserID, pay.BalanceUsed, description, pay.ID); err != nil {
		p.logger.Error("balance refund failed",
			zap.String("payment", pay.ID), zap.Int64("user", pay.UserID), zap.Error(err))
	}
}

func (p *Processor) audit(ctx context.Context, userID, orderID int64, action, details string) {
	if err := p.repo.InsertAuditLog(ctx, userID, orderID, action, details); err != nil {
		p.logger.Warn("audit log write failed",
			zap.Int64("order", orderID), zap.String("action", action), zap.Error(err))
	}
}
