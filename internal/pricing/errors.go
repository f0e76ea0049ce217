package pricing

import "errors"

// ErrTableMissing возвращается, если таблица цен услуги не загружена.
var (
	ErrTableMissing = errors.New("price table is not loaded")
	// ErrInvalidServer возвращается для сервера, отсутствующего в карте колонок услуги.
	ErrInvalidServer = errors.New("server is not supported")
	// ErrUnknownTier возвращается для лиги, не входящей в лестницу игры.
	ErrUnknownTier = errors.New("unknown tier")
	// ErrWrongRankOrder возвращается, если целевой ранг не выше текущего.
	ErrWrongRankOrder = errors.New("target rank must be above current rank")
	// ErrMinPointDelta возвращается, если разница очков меньше минимально допустимой.
	ErrMinPointDelta = errors.New("point difference is below the minimum")
	// ErrPricingData сигнализирует о несогласованной таблице цен: отсутствует строка,
	// которую алгоритм обязан найти. Это ошибка данных администратора, а не пользователя.
	ErrPricingData = errors.New("pricing data inconsistent")
)
