// Package validation содержит схемы и проверку входных данных заказа на бустинг.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/akazantsev/boostmart/internal/pricing"
)

// BoostRequest — сырой payload расчёта или оформления заказа.
type BoostRequest struct {
	Service         string   `json:"service" validate:"required"`
	Server          string   `json:"server" validate:"required"`
	CurrentTier     string   `json:"current_tier"`
	CurrentDivision int      `json:"current_division"`
	CurrentBracket  string   `json:"current_bracket"`
	CurrentLP       int64    `json:"current_lp"`
	TargetTier      string   `json:"target_tier"`
	TargetDivision  int      `json:"target_division"`
	TargetLP        int64    `json:"target_lp"`
	Queue           string   `json:"queue"`
	GainSpeed       string   `json:"gain_speed"`
	SessionTime     int      `json:"session_time"`
	MatchCount      int      `json:"match_count"`
	WinCount        int      `json:"win_count"`
	ExtraWins       int      `json:"extra_wins"`
	Extras          []string `json:"extras"`
	CouponCode      string   `json:"coupon_code"`
	BoosterID       int64    `json:"booster_id"`
	Checkout        bool     `json:"checkout"`
}

// ladderView — структурная схема запроса eloboost/duoboost.
type ladderView struct {
	Server      string `json:"server" validate:"required"`
	CurrentTier string `json:"current_tier" validate:"required"`
	TargetTier  string `json:"target_tier" validate:"required"`
	CurrentLP   int64  `json:"current_lp" validate:"min=0"`
	TargetLP    int64  `json:"target_lp" validate:"min=0"`
	ExtraWins   int    `json:"extra_wins" validate:"min=0,max=20"`
}

// placementView — структурная схема запроса калибровочных матчей.
type placementView struct {
	Server      string `json:"server" validate:"required"`
	CurrentTier string `json:"current_tier" validate:"required"`
	MatchCount  int    `json:"match_count" validate:"required,min=1,max=10"`
}

// winBoostView — структурная схема запроса win-буста.
type winBoostView struct {
	Server          string `json:"server" validate:"required"`
	CurrentTier     string `json:"current_tier" validate:"required"`
	CurrentDivision int    `json:"current_division" validate:"required,min=1,max=4"`
	WinCount        int    `json:"win_count" validate:"required,min=1,max=50"`
}

// coachingView — структурная схема запроса тренерской сессии.
type coachingView struct {
	Server      string `json:"server" validate:"required"`
	SessionTime int    `json:"session_time" validate:"required,min=1,max=12"`
}

// Validator проверяет payload заказа против схемы семейства услуги.
// Контракт невыбрасывающий: результат — признак валидности и человекочитаемое
// сообщение о первой группе нарушений.
type Validator struct {
	validate *validator.Validate
}

// New создаёт валидатор с именами полей из json-тегов.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate проверяет запрос против схемы услуги cfg.
func (v *Validator) Validate(cfg *pricing.Config, req *BoostRequest) (bool, string) {
	var view any
	switch cfg.Family {
	case pricing.FamilyEloBoost, pricing.FamilyDuoBoost:
		view = ladderView{
			Server:      req.Server,
			CurrentTier: req.CurrentTier,
			TargetTier:  req.TargetTier,
			CurrentLP:   req.CurrentLP,
			TargetLP:    req.TargetLP,
			ExtraWins:   req.ExtraWins,
		}
	case pricing.FamilyPlacement:
		view = placementView{Server: req.Server, CurrentTier: req.CurrentTier, MatchCount: req.MatchCount}
	case pricing.FamilyWinBoost:
		view = winBoostView{
			Server:          req.Server,
			CurrentTier:     req.CurrentTier,
			CurrentDivision: req.CurrentDivision,
			WinCount:        req.WinCount,
		}
	case pricing.FamilyCoaching:
		view = coachingView{Server: req.Server, SessionTime: req.SessionTime}
	default:
		return false, fmt.Sprintf("unknown service family %q", cfg.Family)
	}

	if err := v.validate.Struct(view); err != nil {
		return false, formatError(err)
	}

	if msg := v.checkAgainstConfig(cfg, req); msg != "" {
		return false, msg
	}

	return true, ""
}

// checkAgainstConfig выполняет проверки, зависящие от констант услуги:
// лиги лестницы, дивизионы и диапазоны, скорость буста, известные опции.
func (v *Validator) checkAgainstConfig(cfg *pricing.Config, req *BoostRequest) string {
	if cfg.Family == pricing.FamilyEloBoost || cfg.Family == pricing.FamilyDuoBoost {
		for _, tier := range []string{req.CurrentTier, req.TargetTier} {
			if cfg.TierIndex(tier) == -1 && tier != cfg.PointTier {
				return fmt.Sprintf("unknown tier %q", tier)
			}
		}
		if req.CurrentTier != cfg.PointTier {
			if req.CurrentDivision < 1 || req.CurrentDivision > 4 {
				return "current_division must be between 1 and 4"
			}
			if !containsString(cfg.Brackets, req.CurrentBracket) {
				return fmt.Sprintf("unknown bracket %q", req.CurrentBracket)
			}
		}
		if req.TargetTier != cfg.PointTier {
			if req.TargetDivision < 1 || req.TargetDivision > 4 {
				return "target_division must be between 1 and 4"
			}
		}
		if req.GainSpeed != "" {
			if _, ok := cfg.GainSpeeds[req.GainSpeed]; !ok {
				return fmt.Sprintf("unknown gain speed %q", req.GainSpeed)
			}
		}
	}

	for _, extra := range req.Extras {
		if _, ok := cfg.Extras[extra]; !ok {
			return fmt.Sprintf("unknown extra option %q", extra)
		}
	}

	return ""
}

// formatError превращает ошибки валидатора в одно человекочитаемое сообщение.
func formatError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = fmt.Sprintf("field %q is required", fe.Field())
		case "min":
			msg = fmt.Sprintf("field %q must be at least %s", fe.Field(), fe.Param())
		case "max":
			msg = fmt.Sprintf("field %q must be at most %s", fe.Field(), fe.Param())
		default:
			msg = fmt.Sprintf("field %q is invalid: %s", fe.Field(), fe.Tag())
		}
		messages = append(messages, msg)
	}
	return strings.Join(messages, "; ")
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
