package shares

import "royalty-dag/models"

// Set is an insertion-ordered set of accounts.
type Set struct {
	order []models.Account
	index map[models.Account]int
}

func NewSet() *Set {
	return &Set{index: make(map[models.Account]int)}
}

// Add appends account unless it is already present.
func (s *Set) Add(account models.Account) bool {
	if _, ok := s.index[account]; ok {
		return false
	}
	s.index[account] = len(s.order)
	s.order = append(s.order, account)
	return true
}

// Remove deletes account and keeps the order of the others.
func (s *Set) Remove(account models.Account) bool {
	i, ok := s.index[account]
	if !ok {
		return false
	}
	copy(s.order[i:], s.order[i+1:])
	s.order = s.order[:len(s.order)-1]
	delete(s.index, account)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
	return true
}

func (s *Set) Contains(account models.Account) bool {
	_, ok := s.index[account]
	return ok
}

func (s *Set) Len() int { return len(s.order) }

// Items returns a copy of the members in insertion order.
func (s *Set) Items() []models.Account {
	return append([]models.Account{}, s.order...)
}

func (s *Set) Clear() {
	s.order = nil
	s.index = make(map[models.Account]int)
}
