package tuple

import "sync"

// Store is an in-memory Sink. Rows are kept in arrival order.
type Store struct {
	mu   sync.Mutex
	desc *Desc
	rows []Row
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// PutValues appends the row. The descriptor of the first row is kept.
func (s *Store) PutValues(desc *Desc, row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.desc == nil {
		s.desc = desc
	}
	s.rows = append(s.rows, row)
}

// Desc returns the descriptor rows were put with, or nil if the store is empty.
func (s *Store) Desc() *Desc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

// Rows returns a copy of the stored rows.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
