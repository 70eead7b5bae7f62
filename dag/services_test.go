package dag_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"royalty-dag/dag"
	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

func TestStakingThroughGraph(t *testing.T) {
	g, _, clock := newGraph(t)
	err := g.Stake("A", "s1", u(1))
	require.Error(t, err)

	addNode(t, g, "A", models.Proportions{Stakers: 10000}, "")
	err = g.Stake("A", "s1", u(10))
	require.ErrorIs(t, err, rerrors.ErrConfiguration)

	_, err = g.RegisterToken("CBT")
	require.NoError(t, err)
	g.EnableStaking(dag.StakingConfig{Token: "CBT", LockInterval: time.Hour, MinAmount: u(5)})

	vault, err := g.VaultAddress("A")
	require.NoError(t, err)
	require.Equal(t, models.Account("A#vault"), vault)

	require.NoError(t, g.MintToken("CBT", "s1", u(100)))
	require.NoError(t, g.ApproveSpend("CBT", "s1", vault, u(100)))
	require.ErrorIs(t, g.Stake("A", "s1", u(4)), rerrors.ErrBelowMinimum)
	require.NoError(t, g.Stake("A", "s1", u(100)))

	_, err = g.AcceptStake("A", "s1")
	require.ErrorIs(t, err, rerrors.ErrLockInterval)
	clock.Advance(time.Hour)
	minted, err := g.AcceptStake("A", "s1")
	require.NoError(t, err)
	require.Equal(t, uint64(100), minted.Uint64())

	distribute(t, g, "A", 500)
	require.Equal(t, uint64(500), claim(t, g, "A", models.ClassStakers, "s1"))

	require.NoError(t, g.RequestPayback("A", "s1", u(40)))
	clock.Advance(time.Hour)
	paid, err := g.AcceptPayback("A", "s1")
	require.NoError(t, err)
	require.Equal(t, uint64(40), paid.Uint64())
	bal, err := g.BalanceOf("CBT", "s1")
	require.NoError(t, err)
	require.Equal(t, uint64(40), bal.Uint64())

	n, err := g.Node("A")
	require.NoError(t, err)
	require.Equal(t, uint64(60), n.Stakers.BalanceOf("s1").Uint64())
}

func TestRecordEngagement(t *testing.T) {
	g, _, _ := newGraph(t)
	addNode(t, g, "A", models.Proportions{Holders: 10000}, "")

	_, err := g.RecordEngagement("A", "fan", nil)
	require.ErrorIs(t, err, rerrors.ErrNoAdditionalAmount)

	minted, err := g.RecordEngagement("A", "fan", u(4))
	require.NoError(t, err)
	require.Equal(t, uint64(4), minted.Uint64())
	minted, err = g.RecordEngagement("B", "fan", u(4))
	require.ErrorIs(t, err, rerrors.ErrNotFound)
	require.Nil(t, minted)

	_, err = g.RecordEngagement("A", "other", u(12))
	require.NoError(t, err)

	distribute(t, g, "A", 160)
	require.Equal(t, uint64(40), claim(t, g, "A", models.ClassHolders, "fan"))
	require.Equal(t, uint64(120), claim(t, g, "A", models.ClassHolders, "other"))
}

func TestVaultRequestsSurviveRestore(t *testing.T) {
	g, repo, clock := newGraph(t)
	addNode(t, g, "A", models.Proportions{Stakers: 10000}, "")
	_, err := g.RegisterToken("CBT")
	require.NoError(t, err)
	cfg := dag.StakingConfig{Token: "CBT", LockInterval: time.Hour}
	g.EnableStaking(cfg)

	vault, err := g.VaultAddress("A")
	require.NoError(t, err)
	require.NoError(t, g.MintToken("CBT", "s1", u(100)))
	require.NoError(t, g.ApproveSpend("CBT", "s1", vault, u(100)))
	require.NoError(t, g.Stake("A", "s1", u(60)))
	clock.Advance(time.Hour)
	_, err = g.AcceptStake("A", "s1")
	require.NoError(t, err)
	require.ErrorIs(t, g.RequestPayback("A", "s1", nil), rerrors.ErrConfiguration)
	require.NoError(t, g.RequestPayback("A", "s1", u(20)))
	require.NoError(t, g.Stake("A", "s1", u(40)))

	restarted := dag.NewGraph(repo, clock)
	require.NoError(t, restarted.Restore())
	restarted.EnableStaking(cfg)

	_, err = restarted.AcceptStake("A", "s1")
	require.ErrorIs(t, err, rerrors.ErrLockInterval)
	clock.Advance(time.Hour)
	minted, err := restarted.AcceptStake("A", "s1")
	require.NoError(t, err)
	require.Equal(t, uint64(40), minted.Uint64())
	paid, err := restarted.AcceptPayback("A", "s1")
	require.NoError(t, err)
	require.Equal(t, uint64(20), paid.Uint64())

	n, err := restarted.Node("A")
	require.NoError(t, err)
	require.Equal(t, uint64(80), n.Stakers.BalanceOf("s1").Uint64())
	bal, err := restarted.BalanceOf("CBT", "s1")
	require.NoError(t, err)
	require.Equal(t, uint64(20), bal.Uint64())

	// Settled requests are gone after a second restart too.
	again := dag.NewGraph(repo, clock)
	require.NoError(t, again.Restore())
	again.EnableStaking(cfg)
	_, err = again.AcceptStake("A", "s1")
	require.ErrorIs(t, err, rerrors.ErrNoPendingRequest)
}
