package claimright

import (
	"fmt"

	"github.com/holiman/uint256"

	"royalty-dag/access"
	"royalty-dag/models"
	"royalty-dag/shares"
	"royalty-dag/token"
)

// Managed is a holder-style claim-right: shares are transferable balances
// minted and burned by the controller. Flooring dust stays in the right.
type Managed struct {
	*ClaimRight
	balances *shares.Balances
}

// NewManaged returns an empty holder-style claim-right.
func NewManaged(name string, address models.Account, controller *access.Controller) *Managed {
	b := shares.NewBalances()
	return &Managed{
		ClaimRight: newClaimRight(name, address, controller, b, RemainderStays),
		balances:   b,
	}
}

// Mint adds amount claim shares to account.
func (m *Managed) Mint(caller, account models.Account, amount *uint256.Int) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances.Mint(account, amount)
}

// BatchMint mints amounts[i] to accounts[i]; the slices must have equal length.
func (m *Managed) BatchMint(caller models.Account, accounts []models.Account, amounts []*uint256.Int) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances.BatchMint(accounts, amounts)
}

// Burn removes amount claim shares from account.
func (m *Managed) Burn(caller, account models.Account, amount *uint256.Int) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances.Burn(account, amount)
}

// BurnAll clears every holder. Release cursors are kept.
func (m *Managed) BurnAll(caller models.Account) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances.BurnAll()
	return nil
}

// Transfer moves claim shares from the calling holder to another account.
func (m *Managed) Transfer(from, to models.Account, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances.Transfer(from, to, amount)
}

// BalanceOf is account's claim share balance.
func (m *Managed) BalanceOf(account models.Account) *uint256.Int { return m.SharesOf(account) }

// TotalSupply is the sum of all claim share balances.
func (m *Managed) TotalSupply() *uint256.Int { return m.TotalShares() }

// Fixed is a payee-style claim-right whose weights never change once
// registered. Accounts may only be appended.
type Fixed struct {
	*ClaimRight
	payees *shares.Payees
}

// NewFixed fails with ErrDuplicate if accounts repeats an entry.
func NewFixed(name string, address models.Account, controller *access.Controller, accounts []models.Account, weights []*uint256.Int) (*Fixed, error) {
	p := shares.NewPayees()
	if err := p.Init(accounts, weights); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Fixed{
		ClaimRight: newClaimRight(name, address, controller, p, RemainderToFirstClaimant),
		payees:     p,
	}, nil
}

// AddAccount appends a payee. Existing payees cannot be re-added.
func (f *Fixed) AddAccount(caller, account models.Account, weight *uint256.Int) error {
	if err := f.requireOwner(caller); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payees.Add(account, weight)
}

// Dynamic is a payee-style claim-right whose payee set the controller may
// replace at any time. Replacing payees does not reset release cursors.
type Dynamic struct {
	*ClaimRight
	payees *shares.Payees
}

// NewDynamic returns a payee-style claim-right with no payees.
func NewDynamic(name string, address models.Account, controller *access.Controller) *Dynamic {
	p := shares.NewPayees()
	return &Dynamic{
		ClaimRight: newClaimRight(name, address, controller, p, RemainderToFirstClaimant),
		payees:     p,
	}
}

// InitPayees replaces the payee set with accounts weighted by weights.
func (d *Dynamic) InitPayees(caller models.Account, accounts []models.Account, weights []*uint256.Int) error {
	if err := d.requireOwner(caller); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.payees.Init(accounts, weights)
}

// AddPayee appends one payee to the current set.
func (d *Dynamic) AddPayee(caller, account models.Account, weight *uint256.Int) error {
	if err := d.requireOwner(caller); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.payees.Add(account, weight)
}

// ResetPayees drops every payee. Amounts already released stay counted.
func (d *Dynamic) ResetPayees(caller models.Account) error {
	if err := d.requireOwner(caller); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payees.Reset()
	return nil
}

// Release is the payee-facing name for ClaimAll.
func (d *Dynamic) Release(tok token.Token, account models.Account) (*uint256.Int, error) {
	return d.ClaimAll(account, tok)
}

// RestoreManaged rebuilds a holder-style claim-right from persisted state.
func RestoreManaged(st *models.ClaimRightState) (*Managed, error) {
	m := NewManaged(st.Name, st.Address, access.NewController(st.Owner))
	if err := m.balances.Load(st.Accounts, st.Shares); err != nil {
		return nil, fmt.Errorf("%s: %w", st.Name, err)
	}
	if err := m.loadTokens(st); err != nil {
		return nil, err
	}
	return m, nil
}

// RestoreFixed rebuilds a fixed payee claim-right from persisted state.
func RestoreFixed(st *models.ClaimRightState) (*Fixed, error) {
	f, err := NewFixed(st.Name, st.Address, access.NewController(st.Owner), nil, nil)
	if err != nil {
		return nil, err
	}
	if err := f.payees.Load(st.Accounts, st.Shares); err != nil {
		return nil, fmt.Errorf("%s: %w", st.Name, err)
	}
	if err := f.loadTokens(st); err != nil {
		return nil, err
	}
	return f, nil
}

// RestoreDynamic rebuilds a dynamic payee claim-right from persisted state.
func RestoreDynamic(st *models.ClaimRightState) (*Dynamic, error) {
	d := NewDynamic(st.Name, st.Address, access.NewController(st.Owner))
	if err := d.payees.Load(st.Accounts, st.Shares); err != nil {
		return nil, fmt.Errorf("%s: %w", st.Name, err)
	}
	if err := d.loadTokens(st); err != nil {
		return nil, err
	}
	return d, nil
}
