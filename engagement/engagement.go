// Package engagement mints holder shares from off-chain engagement reports.
package engagement

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

// Oracle reports how much engagement an account gained since the last
// acknowledged mint. AdditionalAmount does not consume the delta; Acknowledge does.
type Oracle interface {
	AdditionalAmount(account models.Account) (*uint256.Int, error)
	Acknowledge(account models.Account, amount *uint256.Int) error
}

// HolderMinter mints holder shares on behalf of caller.
type HolderMinter interface {
	MintHolderShares(caller, account models.Account, amount *uint256.Int) error
}

// CounterOracle accumulates reported event counts per account and hands out
// the part not yet acknowledged.
type CounterOracle struct {
	mu       sync.Mutex
	reported map[models.Account]*uint256.Int
	queried  map[models.Account]*uint256.Int
}

func NewCounterOracle() *CounterOracle {
	return &CounterOracle{
		reported: make(map[models.Account]*uint256.Int),
		queried:  make(map[models.Account]*uint256.Int),
	}
}

// Report records count new events for account.
func (o *CounterOracle) Report(account models.Account, count *uint256.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.reported[account]; ok {
		r.Add(r, count)
		return
	}
	o.reported[account] = count.Clone()
}

func (o *CounterOracle) AdditionalAmount(account models.Account) (*uint256.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	reported, ok := o.reported[account]
	if !ok {
		return new(uint256.Int), nil
	}
	queried, ok := o.queried[account]
	if !ok {
		queried = new(uint256.Int)
	}
	return new(uint256.Int).Sub(reported, queried), nil
}

// Acknowledge marks amount of account's engagement as minted.
func (o *CounterOracle) Acknowledge(account models.Account, amount *uint256.Int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	queried, ok := o.queried[account]
	if !ok {
		queried = new(uint256.Int)
	}
	next := new(uint256.Int).Add(queried, amount)
	if reported, ok := o.reported[account]; !ok || next.Gt(reported) {
		return fmt.Errorf("%w: acknowledged more than reported for %s", rerrors.ErrConfiguration, account)
	}
	o.queried[account] = next
	return nil
}

// Minter turns engagement deltas into holder shares.
type Minter struct {
	self   models.Account
	oracle Oracle
	target HolderMinter
}

// NewMinter returns a minter acting as self, which needs the engagement role
// on the target.
func NewMinter(self models.Account, oracle Oracle, target HolderMinter) *Minter {
	return &Minter{self: self, oracle: oracle, target: target}
}

// Mint mints account's new engagement as holder shares and returns the amount.
func (m *Minter) Mint(account models.Account) (*uint256.Int, error) {
	amount, err := m.oracle.AdditionalAmount(account)
	if err != nil {
		return nil, fmt.Errorf("engagement oracle: %w", err)
	}
	if amount == nil || amount.IsZero() {
		return nil, fmt.Errorf("%w: %s", rerrors.ErrNoAdditionalAmount, account)
	}
	if err := m.target.MintHolderShares(m.self, account, amount); err != nil {
		return nil, err
	}
	if err := m.oracle.Acknowledge(account, amount); err != nil {
		return nil, fmt.Errorf("engagement oracle: %w", err)
	}
	return amount, nil
}
