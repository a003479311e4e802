package fpindex

// MemStore is an in-memory block store. It backs tests and short-lived
// scans that never touch the database.
type MemStore struct {
	byBlock map[string]map[int64]bool
	byKey   map[int64][]string
}

// NewMemStore creates an empty in-memory block store
func NewMemStore() *MemStore {
	return &MemStore{
		byBlock: make(map[string]map[int64]bool),
		byKey:   make(map[int64][]string),
	}
}

// ReplaceBlocks implements BlockWriter
func (m *MemStore) ReplaceBlocks(key int64, blocks []string) error {
	if err := m.DeleteBlocks(key); err != nil {
		return err
	}
	m.byKey[key] = append([]string(nil), blocks...)
	for _, b := range blocks {
		if m.byBlock[b] == nil {
			m.byBlock[b] = make(map[int64]bool)
		}
		m.byBlock[b][key] = true
	}
	return nil
}

// DeleteBlocks implements BlockWriter
func (m *MemStore) DeleteBlocks(key int64) error {
	for _, b := range m.byKey[key] {
		delete(m.byBlock[b], key)
		if len(m.byBlock[b]) == 0 {
			delete(m.byBlock, b)
		}
	}
	delete(m.byKey, key)
	return nil
}

// KeysForBlocks implements BlockQuerier
func (m *MemStore) KeysForBlocks(blocks []string) ([]int64, error) {
	seen := make(map[int64]bool)
	keys := []int64{}
	for _, b := range blocks {
		for key := range m.byBlock[b] {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}
