package radar

import (
	"slices"
	"sync"

	"arbradar/internal/model"
)

// Change describes how a table update must be announced to viewers.
type Change struct {
	// Reset is set when the ordered pair sequence changed; viewers reload everything.
	Reset bool
	// Changed lists row indexes whose values changed when Reset is false.
	Changed []int
}

// Table holds the most recently published rows.
type Table struct {
	mu   sync.RWMutex
	rows []model.OpportunityRow
}

func NewTable() *Table {
	return &Table{}
}

// Apply replaces the rows and reports the minimal change set.
func (t *Table) Apply(rows []model.OpportunityRow) Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !samePairs(t.rows, rows) {
		t.rows = slices.Clone(rows)
		return Change{Reset: true}
	}
	var change Change
	for i := range rows {
		if !t.rows[i].Equal(rows[i]) {
			t.rows[i] = rows[i]
			change.Changed = append(change.Changed, i)
		}
	}
	return change
}

// UpdateRows satisfies the controller's row sink.
func (t *Table) UpdateRows(rows []model.OpportunityRow) {
	t.Apply(rows)
}

func samePairs(a, b []model.OpportunityRow) bool {
	return slices.EqualFunc(a, b, func(x, y model.OpportunityRow) bool {
		return x.Pair == y.Pair
	})
}

func (t *Table) Rows() []model.OpportunityRow {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.rows)
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// RowAt returns the row at index i.
func (t *Table) RowAt(i int) (model.OpportunityRow, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.rows) {
		return model.OpportunityRow{}, false
	}
	return t.rows[i], true
}
