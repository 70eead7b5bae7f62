package dag_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"royalty-dag/access"
	"royalty-dag/content"
	"royalty-dag/dag"
	rerrors "royalty-dag/errors"
	"royalty-dag/models"
	"royalty-dag/staking"
)

const (
	owner = models.Account("owner")
	rbt   = models.TokenID("RBT")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

// mockRepo keeps JSON copies so tests exercise the persisted encoding.
type mockRepo struct {
	mu          sync.Mutex
	nodes       map[string][]byte
	tokens      map[models.TokenID][]byte
	checkpoints []*models.Checkpoint
}

func newMockRepo() *mockRepo {
	return &mockRepo{nodes: make(map[string][]byte), tokens: make(map[models.TokenID][]byte)}
}

func (m *mockRepo) PutNode(node *models.NodeState) error {
	return m.PutState(nil, []*models.NodeState{node})
}

func (m *mockRepo) GetNode(id string) (*models.NodeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.nodes[id]
	if !ok {
		return nil, rerrors.ErrNotFound
	}
	var st models.NodeState
	return &st, json.Unmarshal(data, &st)
}

func (m *mockRepo) GetAllNodes() ([]*models.NodeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.NodeState
	for _, data := range m.nodes {
		var st models.NodeState
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, err
		}
		out = append(out, &st)
	}
	return out, nil
}

func (m *mockRepo) PutToken(tok *models.TokenState) error {
	return m.PutState([]*models.TokenState{tok}, nil)
}

func (m *mockRepo) GetAllTokens() ([]*models.TokenState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TokenState
	for _, data := range m.tokens {
		var st models.TokenState
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, err
		}
		out = append(out, &st)
	}
	return out, nil
}

func (m *mockRepo) PutState(tokens []*models.TokenState, nodes []*models.NodeState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tokens {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		m.tokens[t.ID] = data
	}
	for _, n := range nodes {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		m.nodes[n.ID] = data
	}
	return nil
}

func (m *mockRepo) PutCheckpoint(cp *models.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints = append(m.checkpoints, cp)
	return nil
}

func (m *mockRepo) GetLatestCheckpoint() (*models.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Checkpoint
	for _, cp := range m.checkpoints {
		if latest == nil || cp.Timestamp > latest.Timestamp {
			latest = cp
		}
	}
	return latest, nil
}

func newGraph(t *testing.T) (*dag.Graph, *mockRepo, *clockwork.FakeClock) {
	repo := newMockRepo()
	clock := clockwork.NewFakeClock()
	g := dag.NewGraph(repo, clock)
	_, err := g.RegisterToken(rbt)
	require.NoError(t, err)
	return g, repo, clock
}

func addNode(t *testing.T, g *dag.Graph, id string, p models.Proportions, creator models.Account, primaries ...models.Account) {
	t.Helper()
	cfg := content.Config{ID: id, Owner: owner, Proportions: p, Tokens: []models.TokenID{rbt}}
	if creator != "" {
		cfg.Creators = []models.Account{creator}
		cfg.CreatorShares = []*uint256.Int{u(1)}
	}
	for _, prim := range primaries {
		cfg.Primaries = append(cfg.Primaries, prim)
		cfg.PrimaryShares = append(cfg.PrimaryShares, u(1))
	}
	_, err := g.AddNode(cfg)
	require.NoError(t, err)
}

func distribute(t *testing.T, g *dag.Graph, id string, amount uint64) {
	t.Helper()
	require.NoError(t, g.MintToken(rbt, owner, u(amount)))
	require.NoError(t, g.ApproveSpend(rbt, owner, models.Account(id), u(amount)))
	require.NoError(t, g.Distribute(owner, id, rbt, u(amount)))
}

func claim(t *testing.T, g *dag.Graph, id string, class models.ClaimClass, account models.Account) uint64 {
	t.Helper()
	paid, err := g.Claim(id, class, account, rbt, models.ClaimNext, 0)
	require.NoError(t, err)
	return paid.Uint64()
}

func TestAddNodeValidation(t *testing.T) {
	g, _, _ := newGraph(t)
	addNode(t, g, "A", models.Proportions{Creators: 10000}, "alice")

	_, err := g.AddNode(content.Config{ID: "A", Owner: owner})
	require.ErrorIs(t, err, rerrors.ErrDuplicate)

	_, err = g.AddNode(content.Config{ID: "B", Owner: owner,
		Primaries: []models.Account{"missing"}, PrimaryShares: []*uint256.Int{u(1)}})
	require.ErrorIs(t, err, rerrors.ErrNotFound)

	n, err := g.AddNode(content.Config{Owner: owner})
	require.NoError(t, err)
	require.Len(t, n.ID(), 36)
	require.Len(t, g.Nodes(), 2)

	_, err = g.RegisterToken(rbt)
	require.ErrorIs(t, err, rerrors.ErrDuplicate)
}

func TestAddPrimaryRejectsCycles(t *testing.T) {
	g, _, _ := newGraph(t)
	addNode(t, g, "A", models.Proportions{}, "")
	addNode(t, g, "B", models.Proportions{}, "", "A")
	addNode(t, g, "C", models.Proportions{}, "", "B")

	err := g.AddPrimary(owner, "A", "C", u(1))
	require.ErrorIs(t, err, rerrors.ErrCyclicEdge)
	require.ErrorIs(t, err, rerrors.ErrConfiguration)
	err = g.AddPrimary(owner, "A", "A", u(1))
	require.ErrorIs(t, err, rerrors.ErrDuplicateEdge)
	err = g.AddPrimary(owner, "C", "B", u(1))
	require.ErrorIs(t, err, rerrors.ErrDuplicateEdge)
	err = g.AddPrimary(owner, "C", "nowhere", u(1))
	require.ErrorIs(t, err, rerrors.ErrNotFound)

	require.NoError(t, g.AddPrimary(owner, "C", "A", u(1)))
	require.Empty(t, g.Validate())
}

// C4 -> {C2, C3} -> C1; C1 pays its stakers.
func TestSettleStakersCascade(t *testing.T) {
	g, _, clock := newGraph(t)
	addNode(t, g, "C1", models.Proportions{Stakers: 9000}, "")
	mid := models.Proportions{Creators: 9000, Primaries: 1000}
	addNode(t, g, "C2", mid, "s3", "C1")
	addNode(t, g, "C3", mid, "s4", "C1")
	addNode(t, g, "C4", models.Proportions{Creators: 8000, Primaries: 2000}, "s5", "C2", "C3")

	cbt, err := g.RegisterToken("CBT")
	require.NoError(t, err)
	c1, err := g.Node("C1")
	require.NoError(t, err)
	vault := staking.NewVault(staking.Config{
		Address:      "C1-vault",
		StakeToken:   cbt,
		Shares:       c1,
		Clock:        clock,
		LockInterval: time.Hour,
	})
	require.NoError(t, c1.Controller().Grant(owner, access.RoleStaking, vault.Address()))
	for _, s := range []models.Account{"s1", "s2"} {
		require.NoError(t, cbt.Mint(s, u(100)))
		require.NoError(t, cbt.Approve(s, vault.Address(), u(100)))
		require.NoError(t, vault.Stake(s, u(100)))
	}
	clock.Advance(time.Hour)
	_, err = vault.Accept("s1")
	require.NoError(t, err)

	distribute(t, g, "C4", 10000)
	allocated, err := g.Settle(rbt, "C4")
	require.NoError(t, err)
	require.Equal(t, uint64(1000), allocated["C2"].Uint64())
	require.Equal(t, uint64(1000), allocated["C3"].Uint64())
	require.Equal(t, uint64(200), allocated["C1"].Uint64())

	require.Equal(t, uint64(8000), claim(t, g, "C4", models.ClassCreators, "s5"))
	require.Equal(t, uint64(900), claim(t, g, "C2", models.ClassCreators, "s3"))
	require.Equal(t, uint64(900), claim(t, g, "C3", models.ClassCreators, "s4"))
	require.Equal(t, uint64(180), claim(t, g, "C1", models.ClassStakers, "s1"))

	_, err = g.Claim("C1", models.ClassStakers, "s2", rbt, models.ClaimNext, 0)
	require.ErrorIs(t, err, rerrors.ErrNoIncomingAmount)

	treasury, err := g.Claimable("C1", models.ClassTreasury, owner, rbt)
	require.NoError(t, err)
	require.True(t, treasury.IsZero())
	require.Empty(t, g.Validate())

	top, total, err := g.HighestReceivedNode(rbt)
	require.NoError(t, err)
	require.Equal(t, "C4", top.ID())
	require.Equal(t, uint64(10000), total.Uint64())
}

// C6 -> {C4, C5}; C4 -> {C1, C2}; C5 -> {C2, C3}.
func TestSettleSharedPrimary(t *testing.T) {
	g, _, _ := newGraph(t)
	leaf := models.Proportions{Creators: 10000}
	addNode(t, g, "C1", leaf, "s1")
	addNode(t, g, "C2", leaf, "s2")
	addNode(t, g, "C3", leaf, "s3")
	mid := models.Proportions{Creators: 9000, Primaries: 1000}
	_, err := g.AddNode(content.Config{ID: "C4", Owner: owner, Proportions: mid, Tokens: []models.TokenID{rbt},
		Creators: []models.Account{"s4"}, CreatorShares: []*uint256.Int{u(1)},
		Primaries: []models.Account{"C1", "C2"}, PrimaryShares: []*uint256.Int{u(2), u(1)}})
	require.NoError(t, err)
	_, err = g.AddNode(content.Config{ID: "C5", Owner: owner, Proportions: mid, Tokens: []models.TokenID{rbt},
		Creators: []models.Account{"s5"}, CreatorShares: []*uint256.Int{u(1)},
		Primaries: []models.Account{"C2", "C3"}, PrimaryShares: []*uint256.Int{u(1), u(2)}})
	require.NoError(t, err)
	addNode(t, g, "C6", models.Proportions{Creators: 8000, Primaries: 2000}, "s6", "C4", "C5")

	distribute(t, g, "C6", 10000)
	allocated, err := g.Settle(rbt, "C6")
	require.NoError(t, err)
	require.Equal(t, uint64(67), allocated["C1"].Uint64())
	require.Equal(t, uint64(67), allocated["C2"].Uint64())
	require.Equal(t, uint64(66), allocated["C3"].Uint64())

	require.Equal(t, uint64(8000), claim(t, g, "C6", models.ClassCreators, "s6"))
	require.Equal(t, uint64(900), claim(t, g, "C4", models.ClassCreators, "s4"))
	require.Equal(t, uint64(900), claim(t, g, "C5", models.ClassCreators, "s5"))
	require.Equal(t, uint64(67), claim(t, g, "C2", models.ClassCreators, "s2"))

	again, err := g.Settle(rbt, "C6")
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestRestoreFromRepository(t *testing.T) {
	g, repo, clock := newGraph(t)
	addNode(t, g, "A", models.Proportions{Creators: 5000, Holders: 5000}, "alice")
	addNode(t, g, "B", models.Proportions{Creators: 9000, Primaries: 1000}, "bob", "A")
	a, err := g.Node("A")
	require.NoError(t, err)
	require.NoError(t, a.Controller().Grant(owner, access.RoleEngagement, "oracle"))
	require.NoError(t, a.MintHolderShares("oracle", "fan", u(3)))
	require.NoError(t, g.ApproveToken(owner, "A", rbt, true))

	distribute(t, g, "B", 1000)
	distribute(t, g, "B", 1000)
	_, err = g.Settle(rbt, "B")
	require.NoError(t, err)
	paid, err := g.Claim("B", models.ClassCreators, "bob", rbt, models.ClaimIterate, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(900), paid.Uint64())

	clock.Advance(time.Minute)
	cp, err := g.Checkpoint()
	require.NoError(t, err)
	require.Equal(t, 2, cp.Nodes)

	restored := dag.NewGraph(repo, clock)
	require.NoError(t, restored.Restore())
	require.Len(t, restored.Nodes(), 2)

	for _, id := range []string{"A", "B"} {
		before, err := g.Node(id)
		require.NoError(t, err)
		after, err := restored.Node(id)
		require.NoError(t, err)
		require.Equal(t, before.Snapshot(), after.Snapshot())
	}

	require.Equal(t, uint64(900), claim(t, restored, "B", models.ClassCreators, "bob"))
	require.Equal(t, uint64(100), claim(t, restored, "A", models.ClassCreators, "alice"))
	require.Equal(t, uint64(100), claim(t, restored, "A", models.ClassHolders, "fan"))
	bal, err := restored.BalanceOf(rbt, "bob")
	require.NoError(t, err)
	require.Equal(t, uint64(1800), bal.Uint64())

	latest, err := restored.LatestCheckpoint()
	require.NoError(t, err)
	require.Equal(t, cp.ID, latest.ID)
}

func TestHighestReceivedNodeEmpty(t *testing.T) {
	g := dag.NewGraph(newMockRepo(), nil)
	_, _, err := g.HighestReceivedNode(rbt)
	require.ErrorIs(t, err, rerrors.ErrNotFound)
	_, err = g.LatestCheckpoint()
	require.ErrorIs(t, err, rerrors.ErrNotFound)
}
