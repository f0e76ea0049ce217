package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/akazantsev/boostmart/internal/model"
)

func testLadderConfig() *Config {
	return &Config{
		Code:            "lol_eloboost",
		Game:            "lol",
		Family:          FamilyEloBoost,
		Name:            "Elo-Boost",
		Servers:         map[string]int{"EUW": 3, "EUNE": 4, "TR": -1},
		TierOrder:       []string{"Silver", "Gold", "Platinum"},
		Brackets:        []string{"0-20", "21-40", "41-60", "61-80", "81-100"},
		StepSize:        5,
		LastLeagueIndex: 55,
		PointTier:       "Master",
		MinPointDelta:   25,
		ExtraWinService: "lol_winboost",
		ExtraWinServers: map[string]int{"EUW": 2, "TR": -1},
		GainSpeeds:      map[string]int64{"normal": 0, "turbo": 30},
	}
}

// ladderRows строит таблицу лестницы: три лиги по четыре дивизиона с пятью
// диапазонами LP, затем очковые строки Master. Базовая цена шага 2.00,
// переопределения задаются ключом "лига|дивизион|диапазон".
func ladderRows(overrides map[string]string) [][]string {
	tiers := []string{"Silver", "Gold", "Platinum"}
	brackets := []string{"0-20", "21-40", "41-60", "61-80", "81-100"}

	var rows [][]string
	for _, tier := range tiers {
		for div := 4; div >= 1; div-- {
			for _, b := range brackets {
				price := "2.00"
				if v, ok := overrides[fmt.Sprintf("%s|%d|%s", tier, div, b)]; ok {
					price = v
				}
				rows = append(rows, []string{tier, strconv.Itoa(div), b, price, "1.00"})
			}
		}
	}
	rows = append(rows,
		[]string{"Master", "0", "0-99", "1.00", "0.50"},
		[]string{"Master", "0", "100-199", "1.50", "0.75"},
	)
	return rows
}

func newLadderResolver(t *testing.T, overrides map[string]string) (*Resolver, *Config) {
	t.Helper()

	store := NewStore()
	store.Load("lol_eloboost", ladderRows(overrides))
	return NewResolver(store), testLadderConfig()
}

func TestResolveSimpleEloBoost(t *testing.T) {
	r, cfg := newLadderResolver(t, map[string]string{
		"Gold|3|0-20": "5.00",
		"Gold|2|0-20": "7.00",
		"Gold|1|0-20": "5.00",
	})

	layers, err := r.Resolve(cfg, model.OrderGeneral{
		CurrentTier:     "Gold",
		CurrentDivision: 3,
		CurrentBracket:  "0-20",
		TargetTier:      "Gold",
		TargetDivision:  1,
		Server:          "EUW",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(layers) != 1 {
		t.Fatalf("layers = %d, want 1", len(layers))
	}
	if layers[0].PriceType != model.PriceMain {
		t.Errorf("layer type = %s, want main", layers[0].PriceType)
	}
	if layers[0].Amount != 1700 {
		t.Errorf("main amount = %d, want 1700", layers[0].Amount)
	}
}

func TestResolveGainSpeedSurcharge(t *testing.T) {
	r, cfg := newLadderResolver(t, map[string]string{
		"Gold|3|0-20": "5.00",
		"Gold|2|0-20": "7.00",
		"Gold|1|0-20": "5.00",
	})

	layers, err := r.Resolve(cfg, model.OrderGeneral{
		CurrentTier:     "Gold",
		CurrentDivision: 3,
		CurrentBracket:  "0-20",
		TargetTier:      "Gold",
		TargetDivision:  1,
		Server:          "EUW",
		GainSpeed:       "turbo",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// 1700 + 30% = 2210.
	if layers[0].Amount != 2210 {
		t.Errorf("main amount = %d, want 2210", layers[0].Amount)
	}
}

func TestResolveInvalidServer(t *testing.T) {
	// Пустое хранилище: ошибка сервера должна случиться до чтения таблицы.
	r := NewResolver(NewStore())
	cfg := testLadderConfig()

	for _, server := range []string{"mars", "TR"} {
		_, err := r.Resolve(cfg, model.OrderGeneral{
			CurrentTier: "Gold", CurrentDivision: 3, CurrentBracket: "0-20",
			TargetTier: "Gold", TargetDivision: 1,
			Server: server,
		})
		if !errors.Is(err, ErrInvalidServer) {
			t.Errorf("server %q: err = %v, want ErrInvalidServer", server, err)
		}
	}
}

func TestResolveTableMissing(t *testing.T) {
	r := NewResolver(NewStore())
	cfg := testLadderConfig()

	_, err := r.Resolve(cfg, model.OrderGeneral{
		CurrentTier: "Gold", CurrentDivision: 3, CurrentBracket: "0-20",
		TargetTier: "Gold", TargetDivision: 1,
		Server: "EUW",
	})
	if !errors.Is(err, ErrTableMissing) {
		t.Errorf("err = %v, want ErrTableMissing", err)
	}
}

func TestResolveTierOrdering(t *testing.T) {
	r, cfg := newLadderResolver(t, nil)

	tests := []struct {
		name    string
		general model.OrderGeneral
		wantErr error
	}{
		{
			name: "target tier below current",
			general: model.OrderGeneral{
				CurrentTier: "Gold", CurrentDivision: 3, CurrentBracket: "0-20",
				TargetTier: "Silver", TargetDivision: 1, Server: "EUW",
			},
			wantErr: ErrWrongRankOrder,
		},
		{
			name: "same tier, same division",
			general: model.OrderGeneral{
				CurrentTier: "Gold", CurrentDivision: 2, CurrentBracket: "0-20",
				TargetTier: "Gold", TargetDivision: 2, Server: "EUW",
			},
			wantErr: ErrWrongRankOrder,
		},
		{
			name: "same tier, target division numerically above",
			general: model.OrderGeneral{
				CurrentTier: "Gold", CurrentDivision: 2, CurrentBracket: "0-20",
				TargetTier: "Gold", TargetDivision: 3, Server: "EUW",
			},
			wantErr: ErrWrongRankOrder,
		},
		{
			name: "unknown tier",
			general: model.OrderGeneral{
				CurrentTier: "Wood", CurrentDivision: 2, CurrentBracket: "0-20",
				TargetTier: "Gold", TargetDivision: 1, Server: "EUW",
			},
			wantErr: ErrUnknownTier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(cfg, tt.general)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolvePointWalk(t *testing.T) {
	r, cfg := newLadderResolver(t, nil)

	layers, err := r.Resolve(cfg, model.OrderGeneral{
		CurrentTier: "Master", CurrentLP: 100,
		TargetTier: "Master", TargetLP: 130,
		Server: "EUW",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// 30 очков в диапазоне 100-199 по 1.50 за очко.
	if layers[0].Amount != 4500 {
		t.Errorf("main amount = %d, want 4500", layers[0].Amount)
	}
}

func TestResolveMinPointDelta(t *testing.T) {
	r, cfg := newLadderResolver(t, nil)

	_, err := r.Resolve(cfg, model.OrderGeneral{
		CurrentTier: "Master", CurrentLP: 100,
		TargetTier: "Master", TargetLP: 120,
		Server: "EUW",
	})
	if !errors.Is(err, ErrMinPointDelta) {
		t.Errorf("err = %v, want ErrMinPointDelta", err)
	}
}

func TestResolveLadderIntoPointTier(t *testing.T) {
	r, cfg := newLadderResolver(t, nil)

	layers, err := r.Resolve(cfg, model.OrderGeneral{
		CurrentTier: "Platinum", CurrentDivision: 2, CurrentBracket: "0-20",
		TargetTier: "Master", TargetLP: 10,
		Server: "EUW",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Шаг текущего дивизиона 2.00, шаг последнего дивизиона 2.00,
	// десять очков Master по 1.00.
	if layers[0].Amount != 1400 {
		t.Errorf("main amount = %d, want 1400", layers[0].Amount)
	}
}

func TestResolveLadderIntoPointTierZeroLP(t *testing.T) {
	r, cfg := newLadderResolver(t, nil)

	layers, err := r.Resolve(cfg, model.OrderGeneral{
		CurrentTier: "Platinum", CurrentDivision: 2, CurrentBracket: "0-20",
		TargetTier: "Master", Server: "EUW",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Повышение до нуля очков Master: только шаги лестницы, 2.00 + 2.00.
	if layers[0].Amount != 400 {
		t.Errorf("main amount = %d, want 400", layers[0].Amount)
	}
}

func TestResolveExtraWins(t *testing.T) {
	store := NewStore()
	store.Load("lol_eloboost", ladderRows(nil))
	store.Load("lol_winboost", [][]string{
		{"Gold", "1", "3.00", "4.00"},
		{"Platinum", "1", "0.00", "0.00"},
	})
	r := NewResolver(store)
	cfg := testLadderConfig()

	tests := []struct {
		name       string
		general    model.OrderGeneral
		wantLayers int
		wantExtra  int64
	}{
		{
			name: "solo extra wins use solo column",
			general: model.OrderGeneral{
				CurrentTier: "Gold", CurrentDivision: 3, CurrentBracket: "0-20",
				TargetTier: "Gold", TargetDivision: 1, Server: "EUW", ExtraWins: 2,
			},
			wantLayers: 2,
			wantExtra:  600,
		},
		{
			name: "duo extra wins use the next column",
			general: model.OrderGeneral{
				CurrentTier: "Gold", CurrentDivision: 3, CurrentBracket: "0-20",
				TargetTier: "Gold", TargetDivision: 1, Server: "EUW", ExtraWins: 2, DuoOrder: true,
			},
			wantLayers: 2,
			wantExtra:  800,
		},
		{
			name: "zero priced row is skipped",
			general: model.OrderGeneral{
				CurrentTier: "Gold", CurrentDivision: 3, CurrentBracket: "0-20",
				TargetTier: "Platinum", TargetDivision: 1, Server: "EUW", ExtraWins: 2,
			},
			wantLayers: 1,
		},
		{
			name: "not offered for the point tier",
			general: model.OrderGeneral{
				CurrentTier: "Platinum", CurrentDivision: 2, CurrentBracket: "0-20",
				TargetTier: "Master", TargetLP: 30, Server: "EUW", ExtraWins: 2,
			},
			wantLayers: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layers, err := r.Resolve(cfg, tt.general)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if len(layers) != tt.wantLayers {
				t.Fatalf("layers = %d, want %d", len(layers), tt.wantLayers)
			}
			if tt.wantLayers == 2 {
				extra := layers[1]
				if extra.PriceType != model.PriceExtra || extra.IncreaseType != model.IncreaseDirect {
					t.Errorf("extra layer type = %s/%s, want extra/direct", extra.PriceType, extra.IncreaseType)
				}
				if extra.Amount != tt.wantExtra {
					t.Errorf("extra amount = %d, want %d", extra.Amount, tt.wantExtra)
				}
			}
		})
	}
}

func TestResolvePlacement(t *testing.T) {
	store := NewStore()
	store.Load("lol_placement", [][]string{{"Gold", "3.00", "2.00"}})
	r := NewResolver(store)
	cfg := &Config{
		Code:    "lol_placement",
		Family:  FamilyPlacement,
		Name:    "Placement Games",
		Servers: map[string]int{"EUW": 1, "EUNE": 2},
	}

	layers, err := r.Resolve(cfg, model.OrderGeneral{CurrentTier: "Gold", MatchCount: 3, Server: "EUW"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if layers[0].Amount != 900 {
		t.Errorf("main amount = %d, want 900", layers[0].Amount)
	}
}

func TestResolveWinBoost(t *testing.T) {
	store := NewStore()
	store.Load("lol_winboost", [][]string{{"Gold", "2", "4.00", "5.00"}})
	r := NewResolver(store)
	cfg := &Config{
		Code:    "lol_winboost",
		Family:  FamilyWinBoost,
		Name:    "Win-Boost",
		Servers: map[string]int{"EUW": 2},
	}

	layers, err := r.Resolve(cfg, model.OrderGeneral{CurrentTier: "Gold", CurrentDivision: 2, WinCount: 2, Server: "EUW"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if layers[0].Amount != 800 {
		t.Errorf("main amount = %d, want 800", layers[0].Amount)
	}
}

func TestResolveCoaching(t *testing.T) {
	store := NewStore()
	store.Load("lol_coaching", [][]string{{"hour", "10.00"}})
	r := NewResolver(store)
	cfg := &Config{
		Code:    "lol_coaching",
		Family:  FamilyCoaching,
		Name:    "Coaching",
		Servers: map[string]int{"EUW": 1},
	}

	layers, err := r.Resolve(cfg, model.OrderGeneral{SessionTime: 2, Server: "EUW"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if layers[0].Amount != 2000 {
		t.Errorf("main amount = %d, want 2000", layers[0].Amount)
	}
}

func TestResolveMissingRowIsDataError(t *testing.T) {
	store := NewStore()
	// Таблица без строки текущего ранга.
	store.Load("lol_eloboost", [][]string{{"Silver", "4", "0-20", "2.00"}})
	r := NewResolver(store)
	cfg := testLadderConfig()

	_, err := r.Resolve(cfg, model.OrderGeneral{
		CurrentTier: "Gold", CurrentDivision: 3, CurrentBracket: "0-20",
		TargetTier: "Gold", TargetDivision: 1, Server: "EUW",
	})
	if !errors.Is(err, ErrPricingData) {
		t.Errorf("err = %v, want ErrPricingData", err)
	}
}
