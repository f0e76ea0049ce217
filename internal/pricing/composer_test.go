package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akazantsev/boostmart/internal/model"
)

func mainLayer(amount int64) model.PriceLayer {
	return model.PriceLayer{Label: "Elo-Boost", PriceType: model.PriceMain, IncreaseType: model.IncreaseDirect, Amount: amount}
}

func extraDirect(amount int64) model.PriceLayer {
	return model.PriceLayer{Label: "extra", PriceType: model.PriceExtra, IncreaseType: model.IncreaseDirect, Amount: amount}
}

func extraPercent(pct int64) model.PriceLayer {
	return model.PriceLayer{Label: "extra", PriceType: model.PriceExtra, IncreaseType: model.IncreasePercentage, Amount: pct}
}

func discountDirect(amount int64) model.PriceLayer {
	return model.PriceLayer{Label: "coupon", PriceType: model.PriceDiscount, IncreaseType: model.IncreaseDirect, Amount: amount}
}

func discountPercent(pct int64) model.PriceLayer {
	return model.PriceLayer{Label: "coupon", PriceType: model.PriceDiscount, IncreaseType: model.IncreasePercentage, Amount: pct}
}

func TestFold(t *testing.T) {
	tests := []struct {
		name      string
		layers    []model.PriceLayer
		wantTotal int64
		wantFull  int64
	}{
		{
			name:      "only main",
			layers:    []model.PriceLayer{mainLayer(1700)},
			wantTotal: 1700,
			wantFull:  1700,
		},
		{
			name:      "direct extra added to total",
			layers:    []model.PriceLayer{mainLayer(1000), extraDirect(250)},
			wantTotal: 1250,
			wantFull:  1250,
		},
		{
			name: "percentage extras are relative to main, not running total",
			// 1000 + 20% от 1000 + 30% от 1000, а не от 1200.
			layers:    []model.PriceLayer{mainLayer(1000), extraPercent(20), extraPercent(30)},
			wantTotal: 1500,
			wantFull:  1500,
		},
		{
			name:      "percentage discount from running total",
			layers:    []model.PriceLayer{mainLayer(1000), discountPercent(10)},
			wantTotal: 900,
			wantFull:  1000,
		},
		{
			name:      "direct discount",
			layers:    []model.PriceLayer{mainLayer(1000), extraDirect(200), discountDirect(300)},
			wantTotal: 900,
			wantFull:  1200,
		},
		{
			name: "second discount does not re-snapshot totalWithoutDiscount",
			// Снимок берётся при первой скидке: 1000; далее 1000-100=900, 900-10%=810.
			layers:    []model.PriceLayer{mainLayer(1000), discountDirect(100), discountPercent(10)},
			wantTotal: 810,
			wantFull:  1000,
		},
		{
			name:      "negative total clamped to zero",
			layers:    []model.PriceLayer{mainLayer(500), discountDirect(900)},
			wantTotal: 0,
			wantFull:  500,
		},
		{
			name:      "percentage rounding half up",
			layers:    []model.PriceLayer{mainLayer(1005), discountPercent(10)},
			wantTotal: 905, // 1005 - 100.5 = 904.5, округляется вверх
			wantFull:  1005,
		},
		{
			name: "fraction survives until the final rounding",
			// 1005 + 10% = 1105.5, округляется один раз в конце.
			layers:    []model.PriceLayer{mainLayer(1005), extraPercent(10)},
			wantTotal: 1106,
			wantFull:  1106,
		},
		{
			name: "chained percentage discounts keep the fraction",
			// 1005 * 0.9 * 0.9 = 814.05, без промежуточных округлений.
			layers:    []model.PriceLayer{mainLayer(1005), discountPercent(10), discountPercent(10)},
			wantTotal: 814,
			wantFull:  1005,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, full := Fold(tt.layers)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantFull, full)
		})
	}
}

func TestFoldDeterministic(t *testing.T) {
	layers := []model.PriceLayer{mainLayer(1000), extraPercent(20), extraDirect(150), discountPercent(15)}

	t1, f1 := Fold(layers)
	t2, f2 := Fold(layers)
	assert.Equal(t, t1, t2)
	assert.Equal(t, f1, f2)
}

func TestFoldOrderSensitive(t *testing.T) {
	// Скидка до extra-слоя даёт другой итог: процент скидки считается
	// от суммы на момент применения.
	ordered := []model.PriceLayer{mainLayer(1000), extraDirect(500), discountPercent(10)}
	permuted := []model.PriceLayer{mainLayer(1000), discountPercent(10), extraDirect(500)}

	t1, _ := Fold(ordered)   // 1500 - 150 = 1350
	t2, _ := Fold(permuted)  // 1000 - 100 + 500 = 1400
	assert.Equal(t, int64(1350), t1)
	assert.Equal(t, int64(1400), t2)
	assert.NotEqual(t, t1, t2)
}

func TestFoldDiscountNeverIncreasesTotal(t *testing.T) {
	tests := [][]model.PriceLayer{
		{mainLayer(1000), discountPercent(1)},
		{mainLayer(1000), extraPercent(50), discountDirect(10)},
		{mainLayer(1), discountPercent(100)},
	}

	for _, layers := range tests {
		total, full := Fold(layers)
		assert.LessOrEqual(t, total, full)
		assert.GreaterOrEqual(t, total, int64(0))
	}
}
