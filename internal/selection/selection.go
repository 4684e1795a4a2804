package selection

import "sync"

// Catalog is the set of documents a selection may reference.
type Catalog interface {
	Has(id string) bool
	IDs() []string
}

// Model tracks which documents are active context for question answering.
// Every selected id references a document in the catalog.
type Model struct {
	mu       sync.Mutex
	catalog  Catalog
	selected map[string]struct{}
}

func New(catalog Catalog) *Model {
	return &Model{catalog: catalog, selected: make(map[string]struct{})}
}

// Toggle flips membership of id. Ids unknown to the catalog are ignored.
func (m *Model) Toggle(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.selected[id]; ok {
		delete(m.selected, id)
		return
	}
	if !m.catalog.Has(id) {
		return
	}
	m.selected[id] = struct{}{}
}

// Select adds the given ids, skipping ids unknown to the catalog.
func (m *Model) Select(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if m.catalog.Has(id) {
			m.selected[id] = struct{}{}
		}
	}
}

// SelectAll selects every document in the catalog at call time.
func (m *Model) SelectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectAllLocked(m.catalog.IDs())
}

func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = make(map[string]struct{})
}

// ToggleAll clears the selection when every document is selected and
// selects all otherwise. Both counts are read live on each call.
func (m *Model) ToggleAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.catalog.IDs()
	if len(ids) > 0 && m.countLocked(ids) == len(ids) {
		m.selected = make(map[string]struct{})
		return
	}
	m.selectAllLocked(ids)
}

// Purge drops id from the selection.
func (m *Model) Purge(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.selected, id)
}

func (m *Model) IsSelected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.selected[id]
	return ok
}

func (m *Model) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.selected)
}

// Selected returns the selected ids in catalog order.
func (m *Model) Selected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.selected))
	for _, id := range m.catalog.IDs() {
		if _, ok := m.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (m *Model) selectAllLocked(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	m.selected = next
}

// countLocked counts selected ids that are still live in the catalog.
func (m *Model) countLocked(ids []string) int {
	n := 0
	for _, id := range ids {
		if _, ok := m.selected[id]; ok {
			n++
		}
	}
	return n
}
