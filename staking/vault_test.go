package staking_test

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	rerrors "royalty-dag/errors"
	"royalty-dag/models"
	"royalty-dag/staking"
	"royalty-dag/token"
)

const (
	vaultAddr = models.Account("vault")
	staker    = models.Account("staker")
)

type fakeShares struct {
	balances map[models.Account]uint64
	callers  []models.Account
}

func (f *fakeShares) MintStakerShares(caller, account models.Account, amount *uint256.Int) error {
	f.callers = append(f.callers, caller)
	f.balances[account] += amount.Uint64()
	return nil
}

func (f *fakeShares) BurnStakerShares(caller, account models.Account, amount *uint256.Int) error {
	f.callers = append(f.callers, caller)
	if f.balances[account] < amount.Uint64() {
		return rerrors.ErrInsufficientBalance
	}
	f.balances[account] -= amount.Uint64()
	return nil
}

func setup(t *testing.T) (*staking.Vault, *token.Ledger, *fakeShares, *clockwork.FakeClock) {
	cbt := token.NewLedger("CBT")
	require.NoError(t, cbt.Mint(staker, uint256.NewInt(1000)))
	shares := &fakeShares{balances: make(map[models.Account]uint64)}
	clock := clockwork.NewFakeClock()
	v := staking.NewVault(staking.Config{
		Address:      vaultAddr,
		StakeToken:   cbt,
		Shares:       shares,
		Clock:        clock,
		LockInterval: time.Hour,
	})
	return v, cbt, shares, clock
}

func TestStakeAcceptAfterLock(t *testing.T) {
	v, cbt, shares, clock := setup(t)
	require.NoError(t, cbt.Approve(staker, vaultAddr, uint256.NewInt(300)))
	require.NoError(t, v.Stake(staker, uint256.NewInt(300)))
	require.Equal(t, uint64(300), cbt.BalanceOf(vaultAddr).Uint64())
	require.Equal(t, uint64(300), v.Pending(staker).Uint64())

	_, err := v.Accept(staker)
	require.ErrorIs(t, err, rerrors.ErrLockInterval)

	clock.Advance(time.Hour)
	minted, err := v.Accept(staker)
	require.NoError(t, err)
	require.Equal(t, uint64(300), minted.Uint64())
	require.Equal(t, uint64(300), shares.balances[staker])
	require.Equal(t, []models.Account{vaultAddr}, shares.callers)
	require.True(t, v.Pending(staker).IsZero())

	_, err = v.Accept(staker)
	require.ErrorIs(t, err, rerrors.ErrNoPendingRequest)
}

func TestRepeatedStakeRestartsLock(t *testing.T) {
	v, cbt, _, clock := setup(t)
	require.NoError(t, cbt.Approve(staker, vaultAddr, uint256.NewInt(500)))
	require.NoError(t, v.Stake(staker, uint256.NewInt(200)))
	clock.Advance(50 * time.Minute)
	require.NoError(t, v.Stake(staker, uint256.NewInt(300)))
	clock.Advance(20 * time.Minute)

	_, err := v.Accept(staker)
	require.ErrorIs(t, err, rerrors.ErrLockInterval)

	clock.Advance(40 * time.Minute)
	minted, err := v.Accept(staker)
	require.NoError(t, err)
	require.Equal(t, uint64(500), minted.Uint64())
}

func TestStakeBelowMinimum(t *testing.T) {
	v, cbt, _, _ := setup(t)
	v.SetMinAmount(uint256.NewInt(100))
	require.NoError(t, cbt.Approve(staker, vaultAddr, uint256.NewInt(1000)))

	err := v.Stake(staker, uint256.NewInt(99))
	require.ErrorIs(t, err, rerrors.ErrBelowMinimum)
	err = v.Stake(staker, new(uint256.Int))
	require.ErrorIs(t, err, rerrors.ErrBelowMinimum)
	require.True(t, cbt.BalanceOf(vaultAddr).IsZero())
}

func TestStakeWithoutAllowance(t *testing.T) {
	v, _, _, _ := setup(t)
	err := v.Stake(staker, uint256.NewInt(10))
	require.ErrorIs(t, err, rerrors.ErrInsufficientAllowance)
	require.True(t, v.Pending(staker).IsZero())
}

func TestPayback(t *testing.T) {
	v, cbt, shares, clock := setup(t)
	require.NoError(t, cbt.Approve(staker, vaultAddr, uint256.NewInt(400)))
	require.NoError(t, v.Stake(staker, uint256.NewInt(400)))
	clock.Advance(time.Hour)
	_, err := v.Accept(staker)
	require.NoError(t, err)

	err = v.RequestPayback(staker, uint256.NewInt(500))
	require.ErrorIs(t, err, rerrors.ErrInsufficientBalance)

	require.NoError(t, v.RequestPayback(staker, uint256.NewInt(150)))
	require.Equal(t, uint64(250), shares.balances[staker])

	_, err = v.AcceptPayback(staker)
	require.ErrorIs(t, err, rerrors.ErrLockInterval)

	clock.Advance(time.Hour)
	paid, err := v.AcceptPayback(staker)
	require.NoError(t, err)
	require.Equal(t, uint64(150), paid.Uint64())
	require.Equal(t, uint64(750), cbt.BalanceOf(staker).Uint64())
	require.Equal(t, uint64(250), cbt.BalanceOf(vaultAddr).Uint64())

	_, err = v.AcceptPayback(staker)
	require.ErrorIs(t, err, rerrors.ErrNoPendingRequest)
}

func TestRequestPaybackRejectsEmptyAmount(t *testing.T) {
	v, _, shares, _ := setup(t)
	require.ErrorIs(t, v.RequestPayback(staker, nil), rerrors.ErrConfiguration)
	require.ErrorIs(t, v.RequestPayback(staker, new(uint256.Int)), rerrors.ErrConfiguration)
	require.Empty(t, shares.callers)
	_, err := v.AcceptPayback(staker)
	require.ErrorIs(t, err, rerrors.ErrNoPendingRequest)
}

func TestSnapshotLoad(t *testing.T) {
	v, cbt, _, clock := setup(t)
	require.NoError(t, cbt.Approve(staker, vaultAddr, uint256.NewInt(300)))
	require.NoError(t, v.Stake(staker, uint256.NewInt(300)))
	st := v.Snapshot()
	require.Equal(t, uint64(300), st.Pending[staker].Amount.Uint64())
	require.Equal(t, clock.Now().UnixMilli(), st.Pending[staker].RequestedAt)

	fresh, _, shares, _ := setup(t)
	require.NoError(t, fresh.Load(st))
	require.Equal(t, uint64(300), fresh.Pending(staker).Uint64())

	bad := &models.VaultState{Pending: map[models.Account]*models.StakeRequest{staker: {Amount: new(uint256.Int)}}}
	require.ErrorIs(t, fresh.Load(bad), rerrors.ErrConfiguration)
	require.Equal(t, uint64(300), fresh.Pending(staker).Uint64())
	require.Empty(t, shares.callers)
}
