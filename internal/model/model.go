// Package model содержит доменные сущности маркетплейса бустинга.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleBooster  Role = "booster"
	RoleAdmin    Role = "admin"
)

// User представляет пользователя: покупателя, бустера или администратора.
type User struct {
	ID             int64
	Login          string
	PasswordHash   []byte
	Role           Role
	Balance        int64
	Commission     int64
	Assignable     bool
	SoloClaimLimit int
	DuoClaimLimit  int
	DocumentsCount int
	Services       []BoosterService
	CreatedAt      time.Time
}

// BoosterService описывает настройку бустера для одной комбинации (игра, услуга, сервер).
// Нулевая комиссия означает, что действует комиссия по умолчанию из профиля.
type BoosterService struct {
	FilterID   int64   `json:"filter_id"`
	Commission int64   `json:"commission"`
	RankIDs    []int64 `json:"rank_ids"`
}

// ServiceFor возвращает настройку бустера для указанного фильтра.
func (u *User) ServiceFor(filterID int64) (BoosterService, bool) {
	for _, s := range u.Services {
		if s.FilterID == filterID {
			return s, true
		}
	}
	return BoosterService{}, false
}

// OrderState описывает состояние заказа в жизненном цикле.
type OrderState string

const (
	StateNotPaid              OrderState = "NOT_PAID"
	StateWaitingForAccount    OrderState = "WAITING_FOR_ACCOUNT"
	StateWaitingForBooster    OrderState = "WAITING_FOR_BOOSTER"
	StateBoosting             OrderState = "BOOSTING"
	StateVerificationRequired OrderState = "VERIFICATION_REQUIRED"
	StateCompleted            OrderState = "COMPLETED"
	StateCancelled            OrderState = "CANCELLED"
)

// Terminal сообщает, является ли состояние конечным.
func (s OrderState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// PriceType описывает роль ценового слоя в итоговой сумме.
type PriceType string

const (
	PriceMain     PriceType = "main"
	PriceExtra    PriceType = "extra"
	PriceDiscount PriceType = "discount"
)

// IncreaseType описывает способ применения суммы слоя.
type IncreaseType string

const (
	IncreaseDirect     IncreaseType = "direct"
	IncreasePercentage IncreaseType = "percentage"
)

// PriceLayer представляет один слой цены. Amount для direct-слоёв задан в копейках,
// для percentage-слоёв — целым числом процентов.
type PriceLayer struct {
	Label        string       `json:"label"`
	PriceType    PriceType    `json:"price_type"`
	IncreaseType IncreaseType `json:"increase_type"`
	Amount       int64        `json:"amount"`
}

// CalculateResult содержит итог расчёта цены заказа.
type CalculateResult struct {
	Layers               []PriceLayer `json:"layers"`
	Total                int64        `json:"total"`
	TotalWithoutDiscount int64        `json:"total_without_discount"`
	Coupon               *Coupon      `json:"coupon,omitempty"`
	BoosterID            int64        `json:"booster_id,omitempty"`
}

// CouponType описывает тип скидки купона.
type CouponType string

const (
	CouponDirect     CouponType = "direct"
	CouponPercentage CouponType = "percentage"
)

// Coupon описывает скидочный купон с ограничением по числу использований и сроку действия.
type Coupon struct {
	ID       int64      `json:"id"`
	Code     string     `json:"code"`
	Discount int64      `json:"discount"`
	Type     CouponType `json:"type"`
	Services []string   `json:"services"`
	Limit    int        `json:"limit"`
	ExpireAt time.Time  `json:"expire_at"`
}

// Usable сообщает, можно ли применить купон к услуге service в момент now.
func (c *Coupon) Usable(service string, now time.Time) bool {
	if c.Limit <= 0 || now.After(c.ExpireAt) {
		return false
	}
	if len(c.Services) == 0 {
		return true
	}
	for _, s := range c.Services {
		if s == service {
			return true
		}
	}
	return false
}

// ServiceFilter — денормализованный дескриптор (игра, услуга, сервер),
// по которому заказы сопоставляются с настройками бустеров.
type ServiceFilter struct {
	ID      int64
	Game    string
	Service string
	Server  string
}

// Rank описывает ссылку на позицию рейтинговой лестницы игры.
type Rank struct {
	ID    int64
	Game  string
	Code  string
	MinLP int64
	MaxLP int64
}

// OrderGeneral содержит основные параметры заказа.
type OrderGeneral struct {
	CurrentTier     string `json:"current_tier,omitempty"`
	CurrentDivision int    `json:"current_division,omitempty"`
	CurrentBracket  string `json:"current_bracket,omitempty"`
	CurrentLP       int64  `json:"current_lp,omitempty"`
	TargetTier      string `json:"target_tier,omitempty"`
	TargetDivision  int    `json:"target_division,omitempty"`
	TargetLP        int64  `json:"target_lp,omitempty"`
	Server          string `json:"server"`
	Queue           string `json:"queue,omitempty"`
	GainSpeed       string `json:"gain_speed,omitempty"`
	SessionTime     int    `json:"session_time,omitempty"`
	MatchCount      int    `json:"match_count,omitempty"`
	WinCount        int    `json:"win_count,omitempty"`
	ExtraWins       int    `json:"extra_wins,omitempty"`
	DuoOrder        bool   `json:"duo_order"`
	CurrentRankID   int64  `json:"current_rank_id,omitempty"`
	TargetRankID    int64  `json:"target_rank_id,omitempty"`
}

// OrderDetails объединяет параметры, выбранные опции и слои цены заказа.
// Summary хранит использованные при расчёте слои как аудиторский след.
type OrderDetails struct {
	General  OrderGeneral `json:"general"`
	Extras   []string     `json:"extras"`
	Summary  []PriceLayer `json:"summary"`
	CouponID int64        `json:"coupon_id,omitempty"`
}

// Order — центральная сущность заказа на бустинг.
type Order struct {
	ID              int64
	OrderID         int64
	Game            string
	Service         string
	FilterID        int64
	Title           string
	TotalPrice      int64
	Details         OrderDetails
	CustomerID      int64
	BoosterID       int64
	CredentialsHash string
	State           OrderState
	StartedAt       *time.Time
	DeletionFlag    bool
	FlagTime        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RankRef возвращает ссылку на ранг, по которой проверяется допуск бустера:
// целевой ранг, а при его отсутствии — текущий.
func (o *Order) RankRef() int64 {
	if o.Details.General.TargetRankID != 0 {
		return o.Details.General.TargetRankID
	}
	return o.Details.General.CurrentRankID
}

// PaymentStatus описывает состояние платёжной записи.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Payment описывает платёж за заказ через внешний платёжный шлюз.
type Payment struct {
	ID          string
	OrderID     int64
	UserID      int64
	Provider    string
	Amount      int64
	BalanceUsed int64
	CouponID    int64
	Status      PaymentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TransactionKind описывает направление операции по балансу.
type TransactionKind string

const (
	AddBalance      TransactionKind = "ADD"
	SubtractBalance TransactionKind = "SUBTRACT"
)

// Transaction — неизменяемая запись журнала операций по балансу пользователя.
type Transaction struct {
	ID          int64
	UserID      int64
	Kind        TransactionKind
	Amount      int64
	Description string
	Tag         string
	CreatedAt   time.Time
}
