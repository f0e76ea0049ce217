package pricing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akazantsev/boostmart/internal/model"
)

// Resolver рассчитывает основной слой цены по таблицам хранилища.
// Алгоритм выбирается конфигурацией услуги; сами функции не имеют состояния.
type Resolver struct {
	store *Store
}

// NewResolver создаёт резолвер над хранилищем таблиц цен.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve возвращает слои цены для параметров заказа: main-слой семейства
// услуги и, если запрошены дополнительные победы, direct-слой с их ценой.
func (r *Resolver) Resolve(cfg *Config, g model.OrderGeneral) ([]model.PriceLayer, error) {
	serverCol, err := serverColumn(cfg.Servers, g.Server)
	if err != nil {
		return nil, err
	}

	tbl, ok := r.store.Get(cfg.Code)
	if !ok {
		return nil, ErrTableMissing
	}

	var main int64
	switch cfg.Family {
	case FamilyEloBoost, FamilyDuoBoost:
		main, err = r.resolveLadder(tbl, cfg, serverCol, g)
	case FamilyPlacement:
		main, err = resolvePlacement(tbl, serverCol, g)
	case FamilyWinBoost:
		main, err = resolveWinBoost(tbl, serverCol, g)
	case FamilyCoaching:
		main, err = resolveCoaching(tbl, serverCol, g)
	default:
		return nil, fmt.Errorf("%w: unknown family %q", ErrPricingData, cfg.Family)
	}
	if err != nil {
		return nil, err
	}

	layers := []model.PriceLayer{{
		Label:        cfg.Name,
		PriceType:    model.PriceMain,
		IncreaseType: model.IncreaseDirect,
		Amount:       main,
	}}

	if g.ExtraWins > 0 && cfg.ExtraWinService != "" {
		extra, err := r.resolveExtraWins(cfg, g)
		if err != nil {
			return nil, err
		}
		if extra != nil {
			layers = append(layers, *extra)
		}
	}

	return layers, nil
}

// resolveLadder суммирует цену прохождения лестницы от текущего ранга к целевому.
func (r *Resolver) resolveLadder(tbl *Table, cfg *Config, serverCol int, g model.OrderGeneral) (int64, error) {
	curIdx := cfg.TierIndex(g.CurrentTier)
	tgtIdx := cfg.TierIndex(g.TargetTier)

	curPoint := g.CurrentTier == cfg.PointTier
	tgtPoint := g.TargetTier == cfg.PointTier

	if (curIdx == -1 && !curPoint) || (tgtIdx == -1 && !tgtPoint) {
		return 0, ErrUnknownTier
	}

	// Очковая лига стоит выше всех лиг лестницы.
	if curPoint {
		curIdx = len(cfg.TierOrder)
	}
	if tgtPoint {
		tgtIdx = len(cfg.TierOrder)
	}

	// Целевая лига не ниже текущей; при равных лигах целевой дивизион
	// строго меньше текущего (дивизионы убывают к единице с ростом ранга).
	if tgtIdx < curIdx {
		return 0, ErrWrongRankOrder
	}
	if tgtIdx == curIdx && !curPoint && g.TargetDivision >= g.CurrentDivision {
		return 0, ErrWrongRankOrder
	}

	if curPoint {
		if g.TargetLP-g.CurrentLP < cfg.MinPointDelta {
			return 0, fmt.Errorf("%w: at least %d points", ErrMinPointDelta, cfg.MinPointDelta)
		}
		main, err := r.pointWalk(tbl, cfg, serverCol, g.CurrentLP, g.TargetLP)
		if err != nil {
			return 0, err
		}
		return applyGainSpeed(cfg, g.GainSpeed, main), nil
	}

	startIndex := tbl.FindRowIndex(func(row []string) bool {
		return rankRowMatch(row, g.CurrentTier, g.CurrentDivision, g.CurrentBracket)
	}, 0)
	if startIndex == -1 {
		return 0, fmt.Errorf("%w: no row for %s %d %s", ErrPricingData, g.CurrentTier, g.CurrentDivision, g.CurrentBracket)
	}

	// Начало следующего дивизиона; если текущий дивизион последний,
	// используется смещение верхней неочковой лиги.
	firstStep := tbl.FindRowIndex(func(row []string) bool {
		return len(row) > 2 && row[2] == cfg.Brackets[0]
	}, startIndex+1)
	if firstStep == -1 {
		firstStep = cfg.LastLeagueIndex
	}

	var lastStep int
	if tgtPoint {
		lastStep = cfg.LastLeagueIndex
	} else {
		lastStep = tbl.FindRowIndex(func(row []string) bool {
			return rankRowMatch(row, g.TargetTier, g.TargetDivision, cfg.Brackets[0])
		}, 0)
		if lastStep == -1 {
			return 0, fmt.Errorf("%w: no row for %s %d", ErrPricingData, g.TargetTier, g.TargetDivision)
		}
	}

	main := tbl.Cell(startIndex, serverCol)
	for i := firstStep; i <= lastStep; i += cfg.StepSize {
		main += tbl.Cell(i, serverCol)
	}

	// Нулевая цель означает повышение до порога очковой лиги,
	// без набора очков сверху.
	if tgtPoint && g.TargetLP > 0 {
		points, err := r.pointWalk(tbl, cfg, serverCol, 0, g.TargetLP)
		if err != nil {
			return 0, err
		}
		main += points
	}

	return applyGainSpeed(cfg, g.GainSpeed, main), nil
}

// pointWalk суммирует цену набора очков в верхней лиге: каждое очко
// оценивается строкой, в диапазон которой оно попадает.
func (r *Resolver) pointWalk(tbl *Table, cfg *Config, serverCol int, from, to int64) (int64, error) {
	if to <= from {
		return 0, ErrWrongRankOrder
	}

	var sum int64
	for p := from; p < to; p++ {
		point := p
		idx := tbl.FindRowIndex(func(row []string) bool {
			return len(row) > 2 && row[0] == cfg.PointTier && pointInRange(row[2], point)
		}, 0)
		if idx == -1 {
			return 0, fmt.Errorf("%w: no point row for %d", ErrPricingData, point)
		}
		sum += tbl.Cell(idx, serverCol)
	}
	return sum, nil
}

// resolveExtraWins оценивает дополнительные победы по таблице win-буста
// целевого ранга. Для duo-заказов цена берётся из колонки, следующей за
// solo-колонкой сервера. Для очковой лиги опция не предлагается.
func (r *Resolver) resolveExtraWins(cfg *Config, g model.OrderGeneral) (*model.PriceLayer, error) {
	if g.TargetTier == cfg.PointTier {
		return nil, nil
	}

	col, err := serverColumn(cfg.ExtraWinServers, g.Server)
	if err != nil {
		return nil, err
	}
	if g.DuoOrder || cfg.InherentDuo {
		col++
	}

	winTbl, ok := r.store.Get(cfg.ExtraWinService)
	if !ok {
		return nil, ErrTableMissing
	}

	idx := winTbl.FindRowIndex(func(row []string) bool {
		return len(row) > 1 && row[0] == g.TargetTier && row[1] == strconv.Itoa(g.TargetDivision)
	}, 0)
	if idx == -1 {
		return nil, fmt.Errorf("%w: no win row for %s %d", ErrPricingData, g.TargetTier, g.TargetDivision)
	}

	price := winTbl.Cell(idx, col) * int64(g.ExtraWins)
	if price <= 0 {
		return nil, nil
	}

	return &model.PriceLayer{
		Label:        fmt.Sprintf("Extra wins x%d", g.ExtraWins),
		PriceType:    model.PriceExtra,
		IncreaseType: model.IncreaseDirect,
		Amount:       price,
	}, nil
}

// resolvePlacement оценивает калибровочные матчи: цена строки прошлой лиги,
// умноженная на число матчей.
func resolvePlacement(tbl *Table, serverCol int, g model.OrderGeneral) (int64, error) {
	idx := tbl.FindRowIndex(func(row []string) bool {
		return len(row) > 0 && row[0] == g.CurrentTier
	}, 0)
	if idx == -1 {
		return 0, fmt.Errorf("%w: no placement row for %s", ErrPricingData, g.CurrentTier)
	}
	return tbl.Cell(idx, serverCol) * int64(g.MatchCount), nil
}

// resolveWinBoost оценивает победы: цена строки (лига, дивизион),
// умноженная на число побед.
func resolveWinBoost(tbl *Table, serverCol int, g model.OrderGeneral) (int64, error) {
	idx := tbl.FindRowIndex(func(row []string) bool {
		return len(row) > 1 && row[0] == g.CurrentTier && row[1] == strconv.Itoa(g.CurrentDivision)
	}, 0)
	if idx == -1 {
		return 0, fmt.Errorf("%w: no win row for %s %d", ErrPricingData, g.CurrentTier, g.CurrentDivision)
	}
	return tbl.Cell(idx, serverCol) * int64(g.WinCount), nil
}

// resolveCoaching оценивает тренерские сессии по часовой ставке.
func resolveCoaching(tbl *Table, serverCol int, g model.OrderGeneral) (int64, error) {
	idx := tbl.FindRowIndex(func(row []string) bool {
		return len(row) > 0 && row[0] == "hour"
	}, 0)
	if idx == -1 {
		return 0, fmt.Errorf("%w: no hourly rate row", ErrPricingData)
	}
	return tbl.Cell(idx, serverCol) * int64(g.SessionTime), nil
}

// serverColumn возвращает колонку цен сервера. Сервер вне карты или
// помеченный значением -1 не обслуживается.
func serverColumn(servers map[string]int, server string) (int, error) {
	col, ok := servers[server]
	if !ok || col == -1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidServer, server)
	}
	return col, nil
}

// applyGainSpeed добавляет к основной сумме процент выбранной скорости буста.
func applyGainSpeed(cfg *Config, speed string, main int64) int64 {
	if speed == "" {
		return main
	}
	pct, ok := cfg.GainSpeeds[speed]
	if !ok || pct == 0 {
		return main
	}
	return main + PercentOf(main, pct)
}

// rankRowMatch сверяет строку таблицы с позицией ранга (лига, дивизион, диапазон).
func rankRowMatch(row []string, tier string, division int, bracket string) bool {
	return len(row) > 2 && row[0] == tier && row[1] == strconv.Itoa(division) && row[2] == bracket
}

// pointInRange сообщает, попадает ли значение очков в диапазон вида "500-599".
func pointInRange(cell string, p int64) bool {
	parts := strings.SplitN(strings.TrimSpace(cell), "-", 2)
	if len(parts) != 2 {
		return false
	}
	lo, err1 := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	hi, err2 := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err1 != nil || err2 != nil {
		return false
	}
	return p >= lo && p <= hi
}
