package token_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	rerrors "royalty-dag/errors"
	"royalty-dag/models"
	"royalty-dag/token"
)

const (
	owner   = models.Account("owner")
	spender = models.Account("spender")
	alice   = models.Account("alice")
)

func TestTransferAndBalances(t *testing.T) {
	l := token.NewLedger("RBT")
	require.NoError(t, l.Mint(owner, uint256.NewInt(1000)))
	require.NoError(t, l.Transfer(owner, alice, uint256.NewInt(100)))
	require.Equal(t, uint64(900), l.BalanceOf(owner).Uint64())
	require.Equal(t, uint64(100), l.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(1000), l.TotalSupply().Uint64())

	err := l.Transfer(alice, owner, uint256.NewInt(101))
	require.ErrorIs(t, err, rerrors.ErrInsufficientBalance)
	require.Equal(t, uint64(100), l.BalanceOf(alice).Uint64())
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	l := token.NewLedger("RBT")
	require.NoError(t, l.Mint(owner, uint256.NewInt(10)))

	err := l.TransferFrom(spender, owner, spender, uint256.NewInt(1))
	require.ErrorIs(t, err, rerrors.ErrInsufficientAllowance)

	require.NoError(t, l.Approve(owner, spender, uint256.NewInt(3)))
	require.NoError(t, l.TransferFrom(spender, owner, spender, uint256.NewInt(2)))
	require.Equal(t, uint64(1), l.Allowance(owner, spender).Uint64())
	require.NoError(t, l.TransferFrom(spender, owner, alice, uint256.NewInt(1)))
	require.True(t, l.Allowance(owner, spender).IsZero())
	require.Equal(t, uint64(7), l.BalanceOf(owner).Uint64())
}

func TestTransferFromFailureKeepsAllowance(t *testing.T) {
	l := token.NewLedger("RBT")
	require.NoError(t, l.Mint(owner, uint256.NewInt(1)))
	require.NoError(t, l.Approve(owner, spender, uint256.NewInt(5)))
	err := l.TransferFrom(spender, owner, spender, uint256.NewInt(5))
	require.ErrorIs(t, err, rerrors.ErrInsufficientBalance)
	require.Equal(t, uint64(5), l.Allowance(owner, spender).Uint64())
}

func TestBurn(t *testing.T) {
	l := token.NewLedger("RBT")
	require.NoError(t, l.Mint(owner, uint256.NewInt(1000)))
	require.NoError(t, l.Mint(alice, uint256.NewInt(1000)))
	require.ErrorIs(t, l.Burn(owner, uint256.NewInt(1100)), rerrors.ErrInsufficientBalance)
	require.ErrorIs(t, l.Burn(owner, uint256.NewInt(2100)), rerrors.ErrInsufficientBalance)
	require.NoError(t, l.Burn(owner, uint256.NewInt(100)))
	require.Equal(t, uint64(1900), l.TotalSupply().Uint64())
}

func TestSnapshotRestore(t *testing.T) {
	l := token.NewLedger("RBT")
	require.NoError(t, l.Mint(owner, uint256.NewInt(50)))
	require.NoError(t, l.Approve(owner, spender, uint256.NewInt(7)))

	restored, err := token.RestoreLedger(l.Snapshot())
	require.NoError(t, err)
	require.Equal(t, uint64(50), restored.BalanceOf(owner).Uint64())
	require.Equal(t, uint64(7), restored.Allowance(owner, spender).Uint64())

	st := l.Snapshot()
	st.TotalSupply = uint256.NewInt(51)
	_, err = token.RestoreLedger(st)
	require.ErrorIs(t, err, rerrors.ErrConfiguration)
}
