package pricing

import "github.com/akazantsev/boostmart/internal/model"

// foldScale задаёт точность свёртки: суммы накапливаются в сотых долях
// копейки, до копеек итог округляется один раз.
const foldScale = 100

// Fold сворачивает упорядоченный список ценовых слоёв в итоговую сумму.
// Порядок слоёв значим: main задаёт базу, процентные extra считаются от main,
// процентные скидки — от текущей суммы на момент применения. Дробные части
// процентных слоёв сохраняются по ходу свёртки; округление половиной вверх
// выполняется один раз, после обрезки отрицательного итога.
// TotalWithoutDiscount фиксируется один раз, при первом слое скидки;
// последующие скидки снимок не обновляют. Корректность списка (ровно один
// main-слой) обеспечивается вызывающей стороной.
func Fold(layers []model.PriceLayer) (total, totalWithoutDiscount int64) {
	var main int64
	for _, l := range layers {
		if l.PriceType == model.PriceMain {
			main = l.Amount
			break
		}
	}

	sum := main * foldScale
	var snapshot int64
	snapshotted := false

	for _, l := range layers {
		switch l.PriceType {
		case model.PriceExtra:
			if l.IncreaseType == model.IncreaseDirect {
				sum += l.Amount * foldScale
			} else {
				sum += main * foldScale * l.Amount / 100
			}
		case model.PriceDiscount:
			if !snapshotted {
				snapshot = sum
				snapshotted = true
			}
			if l.IncreaseType == model.IncreaseDirect {
				sum -= l.Amount * foldScale
			} else {
				sum -= roundHalfUp(sum*l.Amount, 100)
			}
		}
	}

	if sum < 0 {
		sum = 0
	}
	if !snapshotted {
		snapshot = sum
	}

	return roundHalfUp(sum, foldScale), roundHalfUp(snapshot, foldScale)
}

// PercentOf возвращает pct процентов от суммы v в копейках,
// округляя половину вверх.
func PercentOf(v, pct int64) int64 {
	return roundHalfUp(v*pct, 100)
}

func roundHalfUp(p, q int64) int64 {
	if p >= 0 {
		return (p + q/2) / q
	}
	return -((-p + q/2) / q)
}
