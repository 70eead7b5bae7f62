package dag

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"royalty-dag/access"
	"royalty-dag/content"
	"royalty-dag/engagement"
	rerrors "royalty-dag/errors"
	"royalty-dag/logger"
	"royalty-dag/models"
	"royalty-dag/staking"
	"royalty-dag/token"
)

// StakingConfig enables a stake vault per node.
type StakingConfig struct {
	Token        models.TokenID
	LockInterval time.Duration
	MinAmount    *uint256.Int
}

// EnableStaking turns on stake vaults. Open vault requests are persisted
// with their node and picked up again when the vault is first used.
func (g *Graph) EnableStaking(cfg StakingConfig) {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.stakingCfg = &cfg
}

func serviceAccount(n *content.Node, name string) models.Account {
	return models.Account(n.ID() + "#" + name)
}

func (g *Graph) vault(id string) (*staking.Vault, *content.Node, *token.Ledger, error) {
	if g.stakingCfg == nil {
		return nil, nil, nil, fmt.Errorf("%w: staking disabled", rerrors.ErrConfiguration)
	}
	n, err := g.node(id)
	if err != nil {
		return nil, nil, nil, err
	}
	t, err := g.token(g.stakingCfg.Token)
	if err != nil {
		return nil, nil, nil, err
	}
	if v, ok := g.vaults[id]; ok {
		return v, n, t, nil
	}
	addr := serviceAccount(n, "vault")
	v := staking.NewVault(staking.Config{
		Address:      addr,
		StakeToken:   t,
		Shares:       n,
		Clock:        g.clock,
		LockInterval: g.stakingCfg.LockInterval,
	})
	if g.stakingCfg.MinAmount != nil {
		v.SetMinAmount(g.stakingCfg.MinAmount)
	}
	if err := v.Load(g.vaultStates[id]); err != nil {
		return nil, nil, nil, fmt.Errorf("vault %s: %w", id, err)
	}
	if err := n.Controller().Grant(n.Controller().Owner(), access.RoleStaking, addr); err != nil {
		return nil, nil, nil, err
	}
	g.vaults[id] = v
	logger.Logger.Info("Opened stake vault", zap.String("node_id", id), zap.String("vault", string(addr)))
	return v, n, t, nil
}

// VaultAddress is the account stakers approve before staking into node id.
func (g *Graph) VaultAddress(id string) (models.Account, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	v, _, _, err := g.vault(id)
	if err != nil {
		return "", err
	}
	return v.Address(), nil
}

func (g *Graph) Stake(id string, account models.Account, amount *uint256.Int) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	v, n, t, err := g.vault(id)
	if err != nil {
		return err
	}
	if err := v.Stake(account, amount); err != nil {
		return err
	}
	return g.persist([]*token.Ledger{t}, n)
}

// AcceptStake mints staker shares for a stake whose lock interval has passed.
func (g *Graph) AcceptStake(id string, account models.Account) (*uint256.Int, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	v, n, _, err := g.vault(id)
	if err != nil {
		return nil, err
	}
	minted, err := v.Accept(account)
	if err != nil {
		return nil, err
	}
	return minted, g.persist(nil, n)
}

func (g *Graph) RequestPayback(id string, account models.Account, amount *uint256.Int) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	v, n, _, err := g.vault(id)
	if err != nil {
		return err
	}
	if err := v.RequestPayback(account, amount); err != nil {
		return err
	}
	return g.persist(nil, n)
}

func (g *Graph) AcceptPayback(id string, account models.Account) (*uint256.Int, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	v, n, t, err := g.vault(id)
	if err != nil {
		return nil, err
	}
	paid, err := v.AcceptPayback(account)
	if err != nil {
		return nil, err
	}
	return paid, g.persist([]*token.Ledger{t}, n)
}

// RecordEngagement reports count new engagement events for account on node
// id and mints the new engagement as holder shares.
func (g *Graph) RecordEngagement(id string, account models.Account, count *uint256.Int) (*uint256.Int, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	n, err := g.node(id)
	if err != nil {
		return nil, err
	}
	oracle, ok := g.oracles[id]
	if !ok {
		oracle = engagement.NewCounterOracle()
		g.oracles[id] = oracle
	}
	if count != nil && !count.IsZero() {
		oracle.Report(account, count)
	}

	self := serviceAccount(n, "engagement")
	if !n.Controller().HasRole(self, access.RoleEngagement) {
		if err := n.Controller().Grant(n.Controller().Owner(), access.RoleEngagement, self); err != nil {
			return nil, err
		}
	}
	minted, err := engagement.NewMinter(self, oracle, n).Mint(account)
	if err != nil {
		return nil, err
	}
	logger.Logger.Debug("Minted holder shares", zap.String("node_id", id), zap.String("account", string(account)), zap.Stringer("amount", minted))
	return minted, g.persist(nil, n)
}
