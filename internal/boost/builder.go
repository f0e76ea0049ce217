// Package boost оркестрирует расчёт цены и оформление заказа на бустинг.
package boost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akazantsev/boostmart/internal/model"
	"github.com/akazantsev/boostmart/internal/notify"
	"github.com/akazantsev/boostmart/internal/pricing"
	"github.com/akazantsev/boostmart/internal/repository"
	"github.com/akazantsev/boostmart/internal/validation"
)

// ErrCouponInvalid возвращается для неизвестного, исчерпанного или просроченного купона.
var (
	ErrCouponInvalid = errors.New("coupon is not applicable")
	// ErrZeroTotal возвращается при попытке оформить заказ с нулевой или отрицательной суммой.
	ErrZeroTotal = errors.New("order total must be positive")
	// ErrFilterMissing возвращается, если для пары (услуга, сервер) не настроен фильтр.
	ErrFilterMissing = errors.New("service filter is not configured")
	// ErrBoosterNotFound возвращается, если предвыбранный бустер не существует или не является бустером.
	ErrBoosterNotFound = errors.New("booster not found")
	// ErrBoosterNotAssignable возвращается, если бустера нельзя назначать на заказы.
	ErrBoosterNotAssignable = errors.New("booster is not assignable")
	// ErrBoosterNotEligible возвращается, если настройки бустера не покрывают ранг заказа.
	ErrBoosterNotEligible = errors.New("booster is not eligible for this order")
)

// Repository описывает контракт доступа к данным, используемый построителем заказов.
type Repository interface {
	FindFilter(ctx context.Context, service, server string) (*model.ServiceFilter, error)
	FindFilterWithoutServer(ctx context.Context, service string) (*model.ServiceFilter, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	FindRankByCode(ctx context.Context, game, code string) (*model.Rank, error)
	FindRankByLP(ctx context.Context, game string, lp int64) (*model.Rank, error)
	GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	CreateOrder(ctx context.Context, o *model.Order) (int64, int64, error)
}

// Notifier отправляет best-effort уведомления о созданном заказе.
type Notifier interface {
	SystemChat(ctx context.Context, orderID int64, text string)
}

// Builder строит расчёты цены и заказы по запросам покупателей.
type Builder struct {
	repo      Repository
	store     *pricing.Store
	resolver  *pricing.Resolver
	validator *validation.Validator
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewBuilder создаёт построитель заказов.
func NewBuilder(repo Repository, store *pricing.Store, validator *validation.Validator, notifier Notifier, logger *zap.Logger) *Builder {
	if notifier == nil {
		notifier = notify.New("", "", logger)
	}
	return &Builder{
		repo:      repo,
		store:     store,
		resolver:  pricing.NewResolver(store),
		validator: validator,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Calculation — один расчёт цены: слои собираются заново для каждого запроса,
// общие конфигурации услуг не мутируются.
type Calculation struct {
	b   *Builder
	cfg *pricing.Config
	req *validation.BoostRequest
}

// Init проверяет payload по схеме услуги и убеждается, что таблица цен загружена.
// Контракт невыбрасывающий: ok=false с человекочитаемым сообщением при любой
// ошибке валидации.
func (b *Builder) Init(req *validation.BoostRequest) (*Calculation, bool, string) {
	cfg, ok := pricing.ServiceConfig(req.Service)
	if !ok {
		return nil, false, fmt.Sprintf("unknown service %q", req.Service)
	}

	if ok, msg := b.validator.Validate(cfg, req); !ok {
		return nil, false, msg
	}

	if _, ok := b.store.Get(cfg.Code); !ok {
		return nil, false, fmt.Sprintf("price table for %q is not loaded", cfg.Code)
	}

	return &Calculation{b: b, cfg: cfg, req: req}, true, ""
}

// Process рассчитывает цену. При req.Checkout дополнительно создаёт заказ
// в состоянии NOT_PAID и возвращает его.
func (c *Calculation) Process(ctx context.Context, customerID int64) (*model.CalculateResult, *model.Order, error) {
	general := c.general()

	layers, err := c.b.resolver.Resolve(c.cfg, general)
	if err != nil {
		return nil, nil, err
	}

	for _, code := range c.req.Extras {
		opt, ok := c.cfg.Extras[code]
		if !ok {
			continue // схема отклоняет неизвестные опции до расчёта
		}
		layers = append(layers, model.PriceLayer{
			Label:        opt.Label,
			PriceType:    model.PriceExtra,
			IncreaseType: opt.IncreaseType,
			Amount:       opt.Amount,
		})
	}

	coupon, err := c.coupon(ctx)
	if err != nil {
		return nil, nil, err
	}
	if coupon != nil {
		increase := model.IncreaseDirect
		if coupon.Type == model.CouponPercentage {
			increase = model.IncreasePercentage
		}
		layers = append(layers, model.PriceLayer{
			Label:        "Coupon " + coupon.Code,
			PriceType:    model.PriceDiscount,
			IncreaseType: increase,
			Amount:       coupon.Discount,
		})
	}

	total, totalWithoutDiscount := pricing.Fold(layers)

	result := &model.CalculateResult{
		Layers:               layers,
		Total:                total,
		TotalWithoutDiscount: totalWithoutDiscount,
		Coupon:               coupon,
		BoosterID:            c.req.BoosterID,
	}

	if !c.req.Checkout {
		return result, nil, nil
	}

	order, err := c.checkout(ctx, customerID, general, result)
	if err != nil {
		return nil, nil, err
	}

	return result, order, nil
}

// general собирает параметры заказа из запроса. Duo-заказом считается заказ
// с выбранной опцией duo_boost либо заказ изначально duo-услуги.
func (c *Calculation) general() model.OrderGeneral {
	duo := c.cfg.InherentDuo
	for _, extra := range c.req.Extras {
		if extra == "duo_boost" {
			duo = true
		}
	}

	return model.OrderGeneral{
		CurrentTier:     c.req.CurrentTier,
		CurrentDivision: c.req.CurrentDivision,
		CurrentBracket:  c.req.CurrentBracket,
		CurrentLP:       c.req.CurrentLP,
		TargetTier:      c.req.TargetTier,
		TargetDivision:  c.req.TargetDivision,
		TargetLP:        c.req.TargetLP,
		Server:          c.req.Server,
		Queue:           c.req.Queue,
		GainSpeed:       c.req.GainSpeed,
		SessionTime:     c.req.SessionTime,
		MatchCount:      c.req.MatchCount,
		WinCount:        c.req.WinCount,
		ExtraWins:       c.req.ExtraWins,
		DuoOrder:        duo,
	}
}

func (c *Calculation) coupon(ctx context.Context) (*model.Coupon, error) {
	if c.req.CouponCode == "" {
		return nil, nil
	}

	coupon, err := c.b.repo.GetCouponByCode(ctx, c.req.CouponCode)
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCouponInvalid, c.req.CouponCode)
		}
		return nil, err
	}

	if !coupon.Usable(c.cfg.Code, c.b.now()) {
		return nil, fmt.Errorf("%w: %s", ErrCouponInvalid, coupon.Code)
	}

	return coupon, nil
}

// checkout создаёт заказ: проверяет сумму, фильтр услуги и предвыбранного
// бустера, подставляет ссылки на ранги и сохраняет слои как аудиторский след.
func (c *Calculation) checkout(ctx context.Context, customerID int64, general model.OrderGeneral, result *model.CalculateResult) (*model.Order, error) {
	if result.Total <= 0 {
		return nil, ErrZeroTotal
	}

	filter, err := c.b.repo.FindFilter(ctx, c.cfg.Code, c.req.Server)
	if errors.Is(err, repository.ErrFilterNotFound) {
		// Услуги без привязки к серверу регистрируются одним фильтром.
		filter, err = c.b.repo.FindFilterWithoutServer(ctx, c.cfg.Code)
	}
	if err != nil {
		if errors.Is(err, repository.ErrFilterNotFound) {
			return nil, ErrFilterMissing
		}
		return nil, err
	}

	c.resolveRankRefs(ctx, &general)

	if c.req.BoosterID != 0 {
		if err := c.checkBooster(ctx, filter.ID, &general); err != nil {
			return nil, err
		}
	}

	order := &model.Order{
		Game:       c.cfg.Game,
		Service:    c.cfg.Code,
		FilterID:   filter.ID,
		Title:      c.title(general),
		TotalPrice: result.Total,
		Details: model.OrderDetails{
			General: general,
			Extras:  c.req.Extras,
			Summary: result.Layers,
		},
		CustomerID: customerID,
		BoosterID:  c.req.BoosterID,
		State:      model.StateNotPaid,
	}
	if result.Coupon != nil {
		order.Details.CouponID = result.Coupon.ID
	}

	id, orderID, err := c.b.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	order.ID = id
	order.OrderID = orderID

	c.b.notifier.SystemChat(ctx, id, fmt.Sprintf("Order #%d created: %s", orderID, order.Title))

	return order, nil
}

// resolveRankRefs подставляет ссылки на ранги для последующих проверок допуска
// бустера. Отсутствие ранга в справочнике не является ошибкой оформления.
func (c *Calculation) resolveRankRefs(ctx context.Context, general *model.OrderGeneral) {
	if c.cfg.Family != pricing.FamilyEloBoost && c.cfg.Family != pricing.FamilyDuoBoost {
		return
	}

	if general.TargetTier == c.cfg.PointTier {
		if rank, err := c.b.repo.FindRankByLP(ctx, c.cfg.Game, general.TargetLP); err == nil {
			general.TargetRankID = rank.ID
		}
	} else if rank, err := c.b.repo.FindRankByCode(ctx, c.cfg.Game, rankCode(general.TargetTier, general.TargetDivision)); err == nil {
		general.TargetRankID = rank.ID
	}

	if general.CurrentTier == c.cfg.PointTier {
		if rank, err := c.b.repo.FindRankByLP(ctx, c.cfg.Game, general.CurrentLP); err == nil {
			general.CurrentRankID = rank.ID
		}
	} else if rank, err := c.b.repo.FindRankByCode(ctx, c.cfg.Game, rankCode(general.CurrentTier, general.CurrentDivision)); err == nil {
		general.CurrentRankID = rank.ID
	}
}

// checkBooster проверяет предвыбранного бустера: роль, доступность и покрытие
// ранга заказа его настройками.
func (c *Calculation) checkBooster(ctx context.Context, filterID int64, general *model.OrderGeneral) error {
	booster, err := c.b.repo.GetUserByID(ctx, c.req.BoosterID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrBoosterNotFound
		}
		return err
	}

	if booster.Role != model.RoleBooster {
		return ErrBoosterNotFound
	}
	if !booster.Assignable {
		return ErrBoosterNotAssignable
	}

	svc, ok := booster.ServiceFor(filterID)
	if !ok {
		return ErrBoosterNotEligible
	}

	rankRef := general.TargetRankID
	if rankRef == 0 {
		rankRef = general.CurrentRankID
	}
	if rankRef != 0 && !containsID(svc.RankIDs, rankRef) {
		return ErrBoosterNotEligible
	}

	return nil
}

// title строит человекочитаемый заголовок заказа. Формат зависит от семейства,
// но всегда заканчивается сервером и названием услуги.
func (c *Calculation) title(general model.OrderGeneral) string {
	var head string
	switch c.cfg.Family {
	case pricing.FamilyEloBoost, pricing.FamilyDuoBoost:
		head = fmt.Sprintf("%s → %s", rankLabel(c.cfg, general.CurrentTier, general.CurrentDivision, general.CurrentLP),
			rankLabel(c.cfg, general.TargetTier, general.TargetDivision, general.TargetLP))
	case pricing.FamilyPlacement:
		head = fmt.Sprintf("%d placement matches (%s)", general.MatchCount, general.CurrentTier)
	case pricing.FamilyWinBoost:
		head = fmt.Sprintf("%d wins (%s %d)", general.WinCount, general.CurrentTier, general.CurrentDivision)
	case pricing.FamilyCoaching:
		head = fmt.Sprintf("%dh coaching session", general.SessionTime)
	}
	return fmt.Sprintf("%s | %s | %s", head, general.Server, c.cfg.Name)
}

func rankLabel(cfg *pricing.Config, tier string, division int, lp int64) string {
	if tier == cfg.PointTier {
		return fmt.Sprintf("%s %d LP", tier, lp)
	}
	return fmt.Sprintf("%s %d", tier, division)
}

func rankCode(tier string, division int) string {
	return fmt.Sprintf("%s_%d", tier, division)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
