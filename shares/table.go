// Package shares holds the weight ledgers royalty claims are computed over.
package shares

import (
	"fmt"

	"github.com/holiman/uint256"

	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

// table is the weight store shared by both ledger flavours. Accounts with
// zero weight are never stored and never members.
type table struct {
	weights map[models.Account]*uint256.Int
	total   *uint256.Int
	members *Set
}

func newTable() table {
	return table{
		weights: make(map[models.Account]*uint256.Int),
		total:   new(uint256.Int),
		members: NewSet(),
	}
}

// SharesOf returns the weight of account, zero when absent.
func (t *table) SharesOf(account models.Account) *uint256.Int {
	if w, ok := t.weights[account]; ok {
		return w.Clone()
	}
	return new(uint256.Int)
}

func (t *table) TotalShares() *uint256.Int { return t.total.Clone() }

// Accounts returns members with non-zero weight in insertion order.
func (t *table) Accounts() []models.Account { return t.members.Items() }

func (t *table) add(account models.Account, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	total, overflow := new(uint256.Int).AddOverflow(t.total, amount)
	if overflow {
		return fmt.Errorf("%w: total shares overflow", rerrors.ErrConfiguration)
	}
	if w, ok := t.weights[account]; ok {
		w.Add(w, amount)
	} else {
		t.weights[account] = amount.Clone()
		t.members.Add(account)
	}
	t.total = total
	return nil
}

func (t *table) sub(account models.Account, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	w, ok := t.weights[account]
	if !ok || w.Lt(amount) {
		return fmt.Errorf("%w: %s holds fewer than %s shares", rerrors.ErrInsufficientBalance, account, amount.Dec())
	}
	w.Sub(w, amount)
	if w.IsZero() {
		delete(t.weights, account)
		t.members.Remove(account)
	}
	t.total.Sub(t.total, amount)
	return nil
}

func (t *table) clear() {
	t.weights = make(map[models.Account]*uint256.Int)
	t.total = new(uint256.Int)
	t.members.Clear()
}

// Snapshot copies the weights and membership order.
func (t *table) Snapshot() ([]models.Account, map[models.Account]*uint256.Int, *uint256.Int) {
	weights := make(map[models.Account]*uint256.Int, len(t.weights))
	for a, w := range t.weights {
		weights[a] = w.Clone()
	}
	return t.members.Items(), weights, t.total.Clone()
}

// load replaces the contents with persisted state after checking that the
// membership, weights and total agree with each other.
func (t *table) load(accounts []models.Account, weights map[models.Account]*uint256.Int) error {
	next := newTable()
	for _, a := range accounts {
		w, ok := weights[a]
		if !ok || w == nil || w.IsZero() {
			return fmt.Errorf("%w: member %s has no weight", rerrors.ErrConfiguration, a)
		}
		if next.members.Contains(a) {
			return fmt.Errorf("%w: %s", rerrors.ErrDuplicate, a)
		}
		if err := next.add(a, w); err != nil {
			return err
		}
	}
	if len(next.weights) != len(weights) {
		return fmt.Errorf("%w: weights without membership", rerrors.ErrConfiguration)
	}
	*t = next
	return nil
}
