// Package staking wraps a stake token: staked amounts become staker shares on
// a content node after a lock interval, and are paid back the same way.
package staking

import (
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	rerrors "royalty-dag/errors"
	"royalty-dag/models"
	"royalty-dag/token"
)

// ShareMinter mints and burns staker shares on behalf of caller.
type ShareMinter interface {
	MintStakerShares(caller, account models.Account, amount *uint256.Int) error
	BurnStakerShares(caller, account models.Account, amount *uint256.Int) error
}

type request struct {
	amount      *uint256.Int
	requestedAt time.Time
}

// Vault holds staked tokens for one content node.
type Vault struct {
	mu           sync.Mutex
	address      models.Account
	stakeToken   token.Token
	shares       ShareMinter
	clock        clockwork.Clock
	lockInterval time.Duration
	minAmount    *uint256.Int
	pending      map[models.Account]*request
	paybacks     map[models.Account]*request
}

type Config struct {
	Address      models.Account
	StakeToken   token.Token
	Shares       ShareMinter
	Clock        clockwork.Clock
	LockInterval time.Duration
}

func NewVault(cfg Config) *Vault {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Vault{
		address:      cfg.Address,
		stakeToken:   cfg.StakeToken,
		shares:       cfg.Shares,
		clock:        cfg.Clock,
		lockInterval: cfg.LockInterval,
		minAmount:    new(uint256.Int),
		pending:      make(map[models.Account]*request),
		paybacks:     make(map[models.Account]*request),
	}
}

func (v *Vault) Address() models.Account { return v.address }

func (v *Vault) SetMinAmount(amount *uint256.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.minAmount = amount.Clone()
}

// Stake pulls amount of the stake token from account and opens a stake
// request. Repeated stakes add to the request and restart its lock.
func (v *Vault) Stake(account models.Account, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if amount == nil || amount.IsZero() || amount.Lt(v.minAmount) {
		return fmt.Errorf("%w: stake below %s", rerrors.ErrBelowMinimum, v.minAmount.Dec())
	}
	if err := v.stakeToken.TransferFrom(v.address, account, v.address, amount); err != nil {
		return fmt.Errorf("stake: %w", err)
	}
	total := amount.Clone()
	if req, ok := v.pending[account]; ok {
		total.Add(total, req.amount)
	}
	v.pending[account] = &request{amount: total, requestedAt: v.clock.Now()}
	return nil
}

// Accept turns account's pending stake into staker shares.
func (v *Vault) Accept(account models.Account) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	req, err := v.due(v.pending, account)
	if err != nil {
		return nil, err
	}
	if err := v.shares.MintStakerShares(v.address, account, req.amount); err != nil {
		return nil, err
	}
	delete(v.pending, account)
	return req.amount.Clone(), nil
}

// Pending returns the amount account has staked but not yet accepted.
func (v *Vault) Pending(account models.Account) *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if req, ok := v.pending[account]; ok {
		return req.amount.Clone()
	}
	return new(uint256.Int)
}

// RequestPayback burns amount of account's staker shares and opens a payback request.
func (v *Vault) RequestPayback(account models.Account, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: payback amount must be positive", rerrors.ErrConfiguration)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.shares.BurnStakerShares(v.address, account, amount); err != nil {
		return err
	}
	total := amount.Clone()
	if req, ok := v.paybacks[account]; ok {
		total.Add(total, req.amount)
	}
	v.paybacks[account] = &request{amount: total, requestedAt: v.clock.Now()}
	return nil
}

// AcceptPayback returns the stake token of a matured payback request.
func (v *Vault) AcceptPayback(account models.Account) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	req, err := v.due(v.paybacks, account)
	if err != nil {
		return nil, err
	}
	if v.stakeToken.BalanceOf(v.address).Lt(req.amount) {
		return nil, fmt.Errorf("%w: vault lacks stake token", rerrors.ErrInsufficientBalance)
	}
	if err := v.stakeToken.Transfer(v.address, account, req.amount); err != nil {
		return nil, fmt.Errorf("payback: %w", err)
	}
	delete(v.paybacks, account)
	return req.amount.Clone(), nil
}

func (v *Vault) due(requests map[models.Account]*request, account models.Account) (*request, error) {
	req, ok := requests[account]
	if !ok {
		return nil, fmt.Errorf("%w: %s", rerrors.ErrNoPendingRequest, account)
	}
	if ready := req.requestedAt.Add(v.lockInterval); v.clock.Now().Before(ready) {
		return nil, fmt.Errorf("%w: %s until %s", rerrors.ErrLockInterval, account, ready.Format(time.RFC3339))
	}
	return req, nil
}
