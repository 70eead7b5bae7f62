// Package token is the fungible token collaborator royalty ledgers move funds with.
package token

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

// Token is the ERC-20-like interface the ledgers depend on. Errors returned by
// an implementation are passed through to callers untouched.
type Token interface {
	ID() models.TokenID
	BalanceOf(account models.Account) *uint256.Int
	TotalSupply() *uint256.Int
	Transfer(from, to models.Account, amount *uint256.Int) error
	Approve(owner, spender models.Account, amount *uint256.Int) error
	Allowance(owner, spender models.Account) *uint256.Int
	TransferFrom(spender, from, to models.Account, amount *uint256.Int) error
	Mint(to models.Account, amount *uint256.Int) error
	Burn(from models.Account, amount *uint256.Int) error
}

// Ledger is an in-memory Token.
type Ledger struct {
	id          models.TokenID
	mu          sync.Mutex
	totalSupply *uint256.Int
	balances    map[models.Account]*uint256.Int
	allowances  map[models.Account]map[models.Account]*uint256.Int
}

func NewLedger(id models.TokenID) *Ledger {
	return &Ledger{
		id:          id,
		totalSupply: new(uint256.Int),
		balances:    make(map[models.Account]*uint256.Int),
		allowances:  make(map[models.Account]map[models.Account]*uint256.Int),
	}
}

func (l *Ledger) ID() models.TokenID { return l.id }

func (l *Ledger) BalanceOf(account models.Account) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceOf(account).Clone()
}

func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalSupply.Clone()
}

func (l *Ledger) Allowance(owner, spender models.Account) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.allowances[owner][spender]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

func (l *Ledger) Transfer(from, to models.Account, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// Approve sets the allowance of spender over owner's balance.
func (l *Ledger) Approve(owner, spender models.Account, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[models.Account]*uint256.Int)
	}
	if amount == nil || amount.IsZero() {
		delete(l.allowances[owner], spender)
		return nil
	}
	l.allowances[owner][spender] = amount.Clone()
	return nil
}

// TransferFrom spends spender's allowance over from. An owner moving its own
// funds needs no allowance.
func (l *Ledger) TransferFrom(spender, from, to models.Account, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == nil || amount.IsZero() {
		return nil
	}
	var allowance *uint256.Int
	if spender != from {
		allowance = l.allowances[from][spender]
		if allowance == nil || allowance.Lt(amount) {
			return fmt.Errorf("%w: %s may not spend %s of %s for %s", rerrors.ErrInsufficientAllowance, spender, amount.Dec(), l.id, from)
		}
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	if allowance != nil {
		allowance.Sub(allowance, amount)
		if allowance.IsZero() {
			delete(l.allowances[from], spender)
		}
	}
	return nil
}

func (l *Ledger) Mint(to models.Account, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == nil || amount.IsZero() {
		return nil
	}
	supply, overflow := new(uint256.Int).AddOverflow(l.totalSupply, amount)
	if overflow {
		return fmt.Errorf("%w: %s supply overflow", rerrors.ErrConfiguration, l.id)
	}
	l.totalSupply = supply
	l.credit(to, amount)
	return nil
}

func (l *Ledger) Burn(from models.Account, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == nil || amount.IsZero() {
		return nil
	}
	if l.totalSupply.Lt(amount) {
		return fmt.Errorf("%w: burn amount exceeds %s total supply", rerrors.ErrInsufficientBalance, l.id)
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.totalSupply.Sub(l.totalSupply, amount)
	return nil
}

func (l *Ledger) balanceOf(account models.Account) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

func (l *Ledger) move(from, to models.Account, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	return nil
}

func (l *Ledger) debit(account models.Account, amount *uint256.Int) error {
	b, ok := l.balances[account]
	if !ok || b.Lt(amount) {
		return fmt.Errorf("%w: %s holds less than %s of %s", rerrors.ErrInsufficientBalance, account, amount.Dec(), l.id)
	}
	b.Sub(b, amount)
	if b.IsZero() {
		delete(l.balances, account)
	}
	return nil
}

// credit cannot overflow: every balance is bounded by the total supply.
func (l *Ledger) credit(account models.Account, amount *uint256.Int) {
	if b, ok := l.balances[account]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[account] = amount.Clone()
}

// Snapshot returns the persisted form of the ledger.
func (l *Ledger) Snapshot() *models.TokenState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := &models.TokenState{
		ID:          l.id,
		TotalSupply: l.totalSupply.Clone(),
		Balances:    make(map[models.Account]*uint256.Int, len(l.balances)),
		Allowances:  make(map[models.Account]map[models.Account]*uint256.Int, len(l.allowances)),
	}
	for a, b := range l.balances {
		st.Balances[a] = b.Clone()
	}
	for owner, spenders := range l.allowances {
		if len(spenders) == 0 {
			continue
		}
		st.Allowances[owner] = make(map[models.Account]*uint256.Int, len(spenders))
		for spender, a := range spenders {
			st.Allowances[owner][spender] = a.Clone()
		}
	}
	return st
}

// RestoreLedger rebuilds a ledger and checks that balances add up to the supply.
func RestoreLedger(st *models.TokenState) (*Ledger, error) {
	l := NewLedger(st.ID)
	sum := new(uint256.Int)
	for a, b := range st.Balances {
		if b == nil || b.IsZero() {
			continue
		}
		if _, overflow := sum.AddOverflow(sum, b); overflow {
			return nil, fmt.Errorf("%w: %s balances overflow", rerrors.ErrConfiguration, st.ID)
		}
		l.balances[a] = b.Clone()
	}
	if st.TotalSupply != nil {
		l.totalSupply = st.TotalSupply.Clone()
	}
	if !sum.Eq(l.totalSupply) {
		return nil, fmt.Errorf("%w: %s balances do not sum to total supply", rerrors.ErrConfiguration, st.ID)
	}
	for owner, spenders := range st.Allowances {
		l.allowances[owner] = make(map[models.Account]*uint256.Int, len(spenders))
		for spender, a := range spenders {
			if a != nil && !a.IsZero() {
				l.allowances[owner][spender] = a.Clone()
			}
		}
	}
	return l, nil
}
