// Package pricing содержит таблицы цен, свёртку ценовых слоёв и расчёт стоимости буста.
package pricing

import (
	"math"
	"strconv"
	"strings"
	"sync"
)

// Table — неизменяемая таблица цен: упорядоченные строки строковых ячеек.
// Первые колонки кодируют позицию ранга, остальные — цены по серверам.
type Table struct {
	rows [][]string
}

// NewTable создаёт таблицу из набора строк.
func NewTable(rows [][]string) *Table {
	return &Table{rows: rows}
}

// Len возвращает число строк таблицы.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row возвращает строку по индексу или nil, если индекс вне таблицы.
func (t *Table) Row(i int) []string {
	if i < 0 || i >= len(t.rows) {
		return nil
	}
	return t.rows[i]
}

// FindRowIndex возвращает индекс первой строки, удовлетворяющей предикату,
// начиная с позиции from. Если такой строки нет, возвращается -1.
func (t *Table) FindRowIndex(pred func(row []string) bool, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(t.rows); i++ {
		if pred(t.rows[i]) {
			return i
		}
	}
	return -1
}

// Cell возвращает ячейку как цену в копейках. Десятичные значения таблицы
// умножаются на 100; нечитаемая или отсутствующая ячейка даёт 0.
func (t *Table) Cell(row, col int) int64 {
	r := t.Row(row)
	if r == nil || col < 0 || col >= len(r) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(r[col]), 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(v * 100))
}

// Store хранит таблицы цен по коду услуги. Таблица заменяется целиком при
// загрузке, поэтому чтение во время загрузки видит либо старую, либо новую
// версию, но никогда их смесь.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewStore создаёт пустое хранилище таблиц цен.
func NewStore() *Store {
	return &Store{tables: make(map[string]*Table)}
}

// Load заменяет таблицу услуги service целиком. Строки копируются,
// чтобы загруженная таблица не зависела от среза вызывающей стороны.
func (s *Store) Load(service string, rows [][]string) {
	cp := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		copy(cells, row)
		cp[i] = cells
	}
	t := NewTable(cp)

	s.mu.Lock()
	s.tables[service] = t
	s.mu.Unlock()
}

// Get возвращает текущую таблицу услуги service.
func (s *Store) Get(service string) (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[service]
	return t, ok
}

// ParseTSV разбирает загруженный администратором текст с табуляцией
// в строки и ячейки таблицы. Пустые строки пропускаются.
func ParseTSV(raw string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Split(line, "\t"))
	}
	return rows
}
