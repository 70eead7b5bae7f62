package shares

import (
	"fmt"

	"github.com/holiman/uint256"

	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

// Payees is the payee-style ledger: explicitly registered weights.
type Payees struct {
	table
}

func NewPayees() *Payees {
	return &Payees{table: newTable()}
}

// Init replaces the whole payee set. On error the previous set is kept.
func (p *Payees) Init(accounts []models.Account, weights []*uint256.Int) error {
	next, err := buildPayees(accounts, weights)
	if err != nil {
		return err
	}
	p.table = next
	return nil
}

// Add registers a new payee.
func (p *Payees) Add(account models.Account, weight *uint256.Int) error {
	if weight == nil || weight.IsZero() {
		return fmt.Errorf("%w: zero weight for %s", rerrors.ErrConfiguration, account)
	}
	if p.members.Contains(account) {
		return fmt.Errorf("%w: %s", rerrors.ErrDuplicate, account)
	}
	return p.add(account, weight)
}

func (p *Payees) Reset() {
	p.clear()
}

// Load restores persisted payees.
func (p *Payees) Load(accounts []models.Account, weights map[models.Account]*uint256.Int) error {
	return p.load(accounts, weights)
}

func buildPayees(accounts []models.Account, weights []*uint256.Int) (table, error) {
	if len(accounts) != len(weights) {
		return table{}, fmt.Errorf("%w: %d accounts, %d weights", rerrors.ErrLengthMismatch, len(accounts), len(weights))
	}
	next := newTable()
	for i, account := range accounts {
		if weights[i] == nil || weights[i].IsZero() {
			return table{}, fmt.Errorf("%w: zero weight for %s", rerrors.ErrConfiguration, account)
		}
		if next.members.Contains(account) {
			return table{}, fmt.Errorf("%w: %s", rerrors.ErrDuplicate, account)
		}
		if err := next.add(account, weights[i]); err != nil {
			return table{}, err
		}
	}
	return next, nil
}
