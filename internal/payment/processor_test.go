package payment

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/akazantsev/boostmart/internal/model"
	"github.com/akazantsev/boostmart/internal/repository"
)

type stubRepo struct {
	users    map[int64]*model.User
	orders   map[int64]*model.Order
	payments map[string]*model.Payment
	coupons  map[int64]int

	balanceOps []string
	audits     []string
	updateErr  error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:    make(map[int64]*model.User),
		orders:   make(map[int64]*model.Order),
		payments: make(map[string]*model.Payment),
		coupons:  make(map[int64]int),
	}
}

func (s *stubRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) GetOrderByID(_ context.Context, id int64) (*model.Order, error) {
	if o, ok := s.orders[id]; ok {
		return o, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (s *stubRepo) UpdateOrderState(_ context.Context, id int64, from, to model.OrderState) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	o, ok := s.orders[id]
	if !ok || o.State != from {
		return repository.ErrOrderUnavailable
	}
	o.State = to
	return nil
}

func (s *stubRepo) CreatePayment(_ context.Context, p *model.Payment) error {
	s.payments[p.ID] = p
	return nil
}

func (s *stubRepo) GetPayment(_ context.Context, id string) (*model.Payment, error) {
	if p, ok := s.payments[id]; ok {
		return p, nil
	}
	return nil, repository.ErrPaymentNotFound
}

func (s *stubRepo) SettlePayment(_ context.Context, id string, to model.PaymentStatus) (bool, error) {
	p, ok := s.payments[id]
	if !ok || p.Status != model.PaymentPending {
		return false, nil
	}
	p.Status = to
	return true, nil
}

func (s *stubRepo) UpdateBalance(_ context.Context, kind model.TransactionKind, userID, amount int64, _, _ string) error {
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if kind == model.SubtractBalance {
		if u.Balance < amount {
			return repository.ErrInsufficientBalance
		}
		u.Balance -= amount
	} else {
		u.Balance += amount
	}
	s.balanceOps = append(s.balanceOps, string(kind))
	return nil
}

func (s *stubRepo) ConsumeCoupon(_ context.Context, id int64) (bool, error) {
	if s.coupons[id] <= 0 {
		return false, nil
	}
	s.coupons[id]--
	return true, nil
}

func (s *stubRepo) GetCouponByID(_ context.Context, id int64) (*model.Coupon, error) {
	if _, ok := s.coupons[id]; !ok {
		return nil, repository.ErrCouponNotFound
	}
	return &model.Coupon{ID: id, Code: "STUB"}, nil
}

func (s *stubRepo) InsertAuditLog(_ context.Context, _, _ int64, action, _ string) error {
	s.audits = append(s.audits, action)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) SystemChat(context.Context, int64, string)        {}
func (noopNotifier) NotifyUser(context.Context, int64, int64, string) {}

func unpaidOrder() *model.Order {
	return &model.Order{
		ID:         1,
		OrderID:    1001,
		TotalPrice: 1500,
		CustomerID: 42,
		State:      model.StateNotPaid,
		Details:    model.OrderDetails{CouponID: 5},
	}
}

func TestCreateUsesBalance(t *testing.T) {
	repo := newStubRepo()
	repo.users[42] = &model.User{ID: 42, Balance: 400}
	repo.orders[1] = unpaidOrder()
	proc := NewProcessor(repo, noopNotifier{}, zap.NewNop())

	pay, err := proc.Create(context.Background(), repo.orders[1], 42, "stripe", true)
	if err != nil {
		t.Fatal(err)
	}
	if pay.ID == "" {
		t.Error("payment id must be set")
	}
	if pay.BalanceUsed != 400 {
		t.Errorf("balance used = %d, want 400", pay.BalanceUsed)
	}
	if pay.Amount != 1100 {
		t.Errorf("amount = %d, want 1100", pay.Amount)
	}
	if pay.CouponID != 5 {
		t.Errorf("coupon = %d, want 5", pay.CouponID)
	}
	if pay.Status != model.PaymentPending {
		t.Errorf("status = %s, want PENDING", pay.Status)
	}
	if repo.users[42].Balance != 0 {
		t.Errorf("balance = %d, want 0", repo.users[42].Balance)
	}
}

func TestCreateFullBalanceSettlesImmediately(t *testing.T) {
	repo := newStubRepo()
	repo.users[42] = &model.User{ID: 42, Balance: 5000}
	repo.orders[1] = unpaidOrder()
	repo.coupons[5] = 1
	proc := NewProcessor(repo, noopNotifier{}, zap.NewNop())

	pay, err := proc.Create(context.Background(), repo.orders[1], 42, "balance", true)
	if err != nil {
		t.Fatal(err)
	}
	if pay.Status != model.PaymentCompleted {
		t.Errorf("status = %s, want COMPLETED", pay.Status)
	}
	if pay.BalanceUsed != 1500 {
		t.Errorf("balance used = %d, want 1500", pay.BalanceUsed)
	}
	if repo.users[42].Balance != 3500 {
		t.Errorf("balance = %d, want 3500", repo.users[42].Balance)
	}
	if repo.orders[1].State != model.StateWaitingForAccount {
		t.Errorf("order state = %s, want WAITING_FOR_ACCOUNT", repo.orders[1].State)
	}
}

func TestCreateRejectsPaidOrder(t *testing.T) {
	repo := newStubRepo()
	order := unpaidOrder()
	order.State = model.StateBoosting
	proc := NewProcessor(repo, noopNotifier{}, zap.NewNop())

	if _, err := proc.Create(context.Background(), order, 42, "stripe", false); !errors.Is(err, ErrWrongOrderState) {
		t.Errorf("err = %v, want ErrWrongOrderState", err)
	}
}

func TestProcessSuccess(t *testing.T) {
	repo := newStubRepo()
	repo.users[42] = &model.User{ID: 42}
	repo.orders[1] = unpaidOrder()
	repo.coupons[5] = 2
	repo.payments["p1"] = &model.Payment{
		ID: "p1", OrderID: 1, UserID: 42, Amount: 1500, CouponID: 5,
		Status: model.PaymentPending,
	}
	proc := NewProcessor(repo, noopNotifier{}, zap.NewNop())

	if err := proc.Process(context.Background(), "p1", true); err != nil {
		t.Fatal(err)
	}
	if repo.payments["p1"].Status != model.PaymentCompleted {
		t.Errorf("status = %s, want COMPLETED", repo.payments["p1"].Status)
	}
	if repo.orders[1].State != model.StateWaitingForAccount {
		t.Errorf("order state = %s, want WAITING_FOR_ACCOUNT", repo.orders[1].State)
	}
	if repo.coupons[5] != 1 {
		t.Errorf("coupon uses left = %d, want 1", repo.coupons[5])
	}
}

func TestProcessDuplicateWebhook(t *testing.T) {
	repo := newStubRepo()
	repo.users[42] = &model.User{ID: 42}
	repo.orders[1] = unpaidOrder()
	repo.coupons[5] = 2
	repo.payments["p1"] = &model.Payment{
		ID: "p1", OrderID: 1, UserID: 42, Amount: 1500, CouponID: 5,
		Status: model.PaymentPending,
	}
	proc := NewProcessor(repo, noopNotifier{}, zap.NewNop())

	if err := proc.Process(context.Background(), "p1", true); err != nil {
		t.Fatal(err)
	}
	if err := proc.Process(context.Background(), "p1", true); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("err = %v, want ErrAlreadyProcessed", err)
	}

	// Повтор не трогает ни заказ, ни купон.
	if repo.orders[1].State != model.StateWaitingForAccount {
		t.Errorf("order state = %s", repo.orders[1].State)
	}
	if repo.coupons[5] != 1 {
		t.Errorf("coupon uses left = %d, want 1", repo.coupons[5])
	}
	if len(repo.audits) == 0 || repo.audits[len(repo.audits)-1] != "duplicate_webhook" {
		t.Errorf("audits = %v, want trailing duplicate_webhook", repo.audits)
	}
}

func TestProcessFailureRefundsDespiteCancelError(t *testing.T) {
	repo := newStubRepo()
	repo.users[42] = &model.User{ID: 42, Balance: 0}
	repo.orders[1] = unpaidOrder()
	repo.updateErr = errors.New("connection reset")
	repo.payments["p1"] = &model.Payment{
		ID: "p1", OrderID: 1, UserID: 42, Amount: 1100, BalanceUsed: 400,
		Status: model.PaymentPending,
	}
	proc := NewProcessor(repo, noopNotifier{}, zap.NewNop())

	if err := proc.Process(context.Background(), "p1", false); err == nil {
		t.Fatal("cancel error must propagate")
	}
	// Возврат не зависит от исхода отмены: повторный вебхук после FAILED
	// обрывается на проверке идемпотентности и сюда не дойдёт.
	if repo.users[42].Balance != 400 {
		t.Errorf("balance = %d, want 400", repo.users[42].Balance)
	}
}

func TestProcessFailureRefundsBalance(t *testing.T) {
	repo := newStubRepo()
	repo.users[42] = &model.User{ID: 42, Balance: 0}
	repo.orders[1] = unpaidOrder()
	repo.payments["p1"] = &model.Payment{
		ID: "p1", OrderID: 1, UserID: 42, Amount: 1100, BalanceUsed: 400,
		Status: model.PaymentPending,
	}
	proc := NewProcessor(repo, noopNotifier{}, zap.NewNop())

	if err := proc.Process(context.Background(), "p1", false); err != nil {
		t.Fatal(err)
	}
	if repo.payments["p1"].Status != model.PaymentFailed {
		t.Errorf("status = %s, want FAILED", repo.payments["p1"].Status)
	}
	if repo.orders[1].State != model.StateCancelled {
		t.Errorf("order state = %s, want CANCELLED", repo.orders[1].State)
	}
	if repo.users[42].Balance != 400 {
		t.Errorf("balance = %d, want 400 after refund", repo.users[42].Balance)
	}
}

func TestProcessFailureKeepsRepaidOrder(t *testing.T) {
	repo := newStubRepo()
	repo.users[42] = &model.User{ID: 42}
	order := unpaidOrder()
	order.State = model.StateBoosting
	repo.orders[1] = order
	repo.payments["p1"] = &model.Payment{
		ID: "p1", OrderID: 1, UserID: 42, Amount: 1500,
		Status: model.PaymentPending,
	}
	proc := NewProcessor(repo, noopNotifier{}, zap.NewNop())

	if err := proc.Process(context.Background(), "p1", false); err != nil {
		t.Fatal(err)
	}
	// Заказ уже оплачен другим платежом и не отменяется.
	if repo.orders[1].State != model.StateBoosting {
		t.Errorf("order state = %s, want BOOSTING", repo.orders[1].State)
	}
}

func TestProcessUnknownPayment(t *testing.T) {
	proc := NewProcessor(newStubRepo(), noopNotifier{}, zap.NewNop())

	if err := proc.Process(context.Background(), "ghost", true); !errors.Is(err, ErrPaymentNotFound) {
		t.Errorf("err = %v, want ErrPaymentNotFound", err)
	}
}
