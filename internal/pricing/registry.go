package pricing

import "github.com/akazantsev/boostmart/internal/model"

// Family обозначает семейство алгоритма расчёта услуги.
type Family string

const (
	FamilyEloBoost  Family = "eloboost"
	FamilyDuoBoost  Family = "duoboost"
	FamilyPlacement Family = "placement"
	FamilyWinBoost  Family = "winboost"
	FamilyCoaching  Family = "coaching"
)

// ExtraOption описывает платную опцию заказа, добавляемую отдельным слоем.
type ExtraOption struct {
	Label        string
	IncreaseType model.IncreaseType
	Amount       int64
}

// Config содержит константы семейства услуги: карту серверов, форму таблицы
// и правила верхней «очковой» лиги. Поведение семейств задаётся данными,
// диспетчеризация — закрытым реестром по коду услуги.
type Config struct {
	Code    string
	Game    string
	Family  Family
	Name    string
	Servers map[string]int

	// Лестница рангов для eloboost/duoboost.
	TierOrder       []string
	Brackets        []string
	StepSize        int
	LastLeagueIndex int

	// Очковая верхняя лига (Master+/Immortal+); пустое значение — лига отсутствует.
	PointTier     string
	MinPointDelta int64

	// Услуга, таблица которой прайсит дополнительные победы.
	ExtraWinService string
	// Колонка duo всегда следует за соответствующей solo-колонкой.
	ExtraWinServers map[string]int

	InherentDuo bool
	GainSpeeds  map[string]int64
	Extras      map[string]ExtraOption
}

// TierIndex возвращает позицию лиги в фиксированном порядке лестницы или -1.
func (c *Config) TierIndex(tier string) int {
	for i, t := range c.TierOrder {
		if t == tier {
			return i
		}
	}
	return -1
}

var lolTiers = []string{"Iron", "Bronze", "Silver", "Gold", "Platinum", "Emerald", "Diamond"}

var lolBrackets = []string{"0-20", "21-40", "41-60", "61-80", "81-100"}

// lolServers: колонки 0..2 — лига, дивизион, диапазон LP; далее цены по серверам.
// Сервер со значением -1 объявлен, но не обслуживается.
var lolServers = map[string]int{
	"EUW":  3,
	"EUNE": 4,
	"NA":   5,
	"OCE":  6,
	"TR":   -1,
}

var lolWinServers = map[string]int{
	"EUW":  2,
	"EUNE": 4,
	"NA":   6,
	"OCE":  8,
	"TR":   -1,
}

var valorantTiers = []string{"Iron", "Bronze", "Silver", "Gold", "Platinum", "Diamond", "Ascendant"}

var valorantBrackets = []string{"0-25", "26-50", "51-75", "76-100"}

var valorantServers = map[string]int{
	"EU":   3,
	"NA":   4,
	"APAC": 5,
}

var defaultGainSpeeds = map[string]int64{
	"normal":  0,
	"express": 15,
	"turbo":   30,
}

var boostExtras = map[string]ExtraOption{
	"duo_boost":    {Label: "Duo boost", IncreaseType: model.IncreasePercentage, Amount: 65},
	"priority":     {Label: "Priority order", IncreaseType: model.IncreasePercentage, Amount: 20},
	"solo_only":    {Label: "Solo only", IncreaseType: model.IncreasePercentage, Amount: 40},
	"stream":       {Label: "Stream games", IncreaseType: model.IncreasePercentage, Amount: 15},
	"offline_mode": {Label: "Offline mode", IncreaseType: model.IncreasePercentage, Amount: 10},
}

var services = map[string]*Config{
	"lol_eloboost": {
		Code:            "lol_eloboost",
		Game:            "lol",
		Family:          FamilyEloBoost,
		Name:            "Elo-Boost",
		Servers:         lolServers,
		TierOrder:       lolTiers,
		Brackets:        lolBrackets,
		StepSize:        len(lolBrackets),
		LastLeagueIndex: len(lolTiers)*4*len(lolBrackets) - len(lolBrackets),
		PointTier:       "Master",
		MinPointDelta:   25,
		ExtraWinService: "lol_winboost",
		ExtraWinServers: lolWinServers,
		GainSpeeds:      defaultGainSpeeds,
		Extras:          boostExtras,
	},
	"lol_duoboost": {
		Code:            "lol_duoboost",
		Game:            "lol",
		Family:          FamilyDuoBoost,
		Name:            "Duo-Boost",
		Servers:         lolServers,
		TierOrder:       lolTiers,
		Brackets:        lolBrackets,
		StepSize:        len(lolBrackets),
		LastLeagueIndex: len(lolTiers)*4*len(lolBrackets) - len(lolBrackets),
		PointTier:       "Master",
		MinPointDelta:   25,
		ExtraWinService: "lol_winboost",
		ExtraWinServers: lolWinServers,
		InherentDuo:     true,
		GainSpeeds:      defaultGainSpeeds,
		Extras:          boostExtras,
	},
	"lol_placement": {
		Code:    "lol_placement",
		Game:    "lol",
		Family:  FamilyPlacement,
		Name:    "Placement Games",
		Servers: map[string]int{"EUW": 1, "EUNE": 2, "NA": 3, "OCE": 4},
		Extras:  boostExtras,
	},
	"lol_winboost": {
		Code:    "lol_winboost",
		Game:    "lol",
		Family:  FamilyWinBoost,
		Name:    "Win-Boost",
		Servers: lolWinServers,
		Extras:  boostExtras,
	},
	"lol_coaching": {
		Code:    "lol_coaching",
		Game:    "lol",
		Family:  FamilyCoaching,
		Name:    "Coaching",
		Servers: map[string]int{"EUW": 1, "EUNE": 2, "NA": 3, "OCE": 4},
	},
	"valorant_eloboost": {
		Code:            "valorant_eloboost",
		Game:            "valorant",
		Family:          FamilyEloBoost,
		Name:            "Elo-Boost",
		Servers:         valorantServers,
		TierOrder:       valorantTiers,
		Brackets:        valorantBrackets,
		StepSize:        len(valorantBrackets),
		LastLeagueIndex: len(valorantTiers)*3*len(valorantBrackets) - len(valorantBrackets),
		PointTier:       "Immortal",
		MinPointDelta:   20,
		GainSpeeds:      defaultGainSpeeds,
		Extras:          boostExtras,
	},
	"valorant_duoboost": {
		Code:            "valorant_duoboost",
		Game:            "valorant",
		Family:          FamilyDuoBoost,
		Name:            "Duo-Boost",
		Servers:         valorantServers,
		TierOrder:       valorantTiers,
		Brackets:        valorantBrackets,
		StepSize:        len(valorantBrackets),
		LastLeagueIndex: len(valorantTiers)*3*len(valorantBrackets) - len(valorantBrackets),
		PointTier:       "Immortal",
		MinPointDelta:   20,
		InherentDuo:     true,
		GainSpeeds:      defaultGainSpeeds,
		Extras:          boostExtras,
	},
}

// ServiceConfig возвращает конфигурацию услуги по её коду.
func ServiceConfig(code string) (*Config, bool) {
	cfg, ok := services[code]
	return cfg, ok
}

// ServiceCodes возвращает коды всех зарегистрированных услуг.
func ServiceCodes() []string {
	out := make([]string, 0, len(services))
	for code := range services {
		out = append(out, code)
	}
	return out
}
