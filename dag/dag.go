// Package dag keeps the registry of content nodes and tokens, enforces that
// primary edges stay acyclic, and settles royalty down the graph.
package dag

import (
	stderrors "errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"royalty-dag/content"
	"royalty-dag/engagement"
	rerrors "royalty-dag/errors"
	"royalty-dag/logger"
	"royalty-dag/metrics"
	"royalty-dag/models"
	"royalty-dag/repository"
	"royalty-dag/staking"
	"royalty-dag/token"
)

// Graph owns every node and token and writes each change through the repository.
type Graph struct {
	repo   repository.NodeRepositoryInterface
	clock  clockwork.Clock
	mux    sync.Mutex
	nodes  map[string]*content.Node
	tokens map[models.TokenID]*token.Ledger

	stakingCfg *StakingConfig
	vaults     map[string]*staking.Vault
	// vaultStates holds restored vault requests until the vault is reopened.
	vaultStates map[string]*models.VaultState
	oracles     map[string]*engagement.CounterOracle
}

func NewGraph(repo repository.NodeRepositoryInterface, clock clockwork.Clock) *Graph {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Graph{
		repo:        repo,
		clock:       clock,
		nodes:       make(map[string]*content.Node),
		tokens:      make(map[models.TokenID]*token.Ledger),
		vaults:      make(map[string]*staking.Vault),
		vaultStates: make(map[string]*models.VaultState),
		oracles:     make(map[string]*engagement.CounterOracle),
	}
}

func (g *Graph) persist(tokens []*token.Ledger, nodes ...*content.Node) error {
	ts := make([]*models.TokenState, len(tokens))
	for i, t := range tokens {
		ts[i] = t.Snapshot()
	}
	ns := make([]*models.NodeState, len(nodes))
	for i, n := range nodes {
		ns[i] = n.Snapshot()
		if v, ok := g.vaults[n.ID()]; ok {
			ns[i].Vault = v.Snapshot()
		} else {
			ns[i].Vault = g.vaultStates[n.ID()]
		}
	}
	if err := g.repo.PutState(ts, ns); err != nil {
		metrics.PersistErrorsTotal.WithLabelValues("state").Inc()
		logger.Logger.Error("Failed to persist graph state", zap.Int("tokens", len(ts)), zap.Int("nodes", len(ns)), zap.Error(err))
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func (g *Graph) node(id string) (*content.Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", rerrors.ErrNotFound, id)
	}
	return n, nil
}

func (g *Graph) token(id models.TokenID) (*token.Ledger, error) {
	t, ok := g.tokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: token %s", rerrors.ErrNotFound, id)
	}
	return t, nil
}

// RegisterToken creates an empty token ledger.
func (g *Graph) RegisterToken(id models.TokenID) (*token.Ledger, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	if id == "" {
		return nil, fmt.Errorf("%w: token id required", rerrors.ErrConfiguration)
	}
	if _, ok := g.tokens[id]; ok {
		return nil, fmt.Errorf("%w: token %s", rerrors.ErrDuplicate, id)
	}
	t := token.NewLedger(id)
	if err := g.persist([]*token.Ledger{t}); err != nil {
		return nil, err
	}
	g.tokens[id] = t
	logger.Logger.Info("Registered token", zap.String("token", string(id)))
	return t, nil
}

func (g *Graph) Token(id models.TokenID) (*token.Ledger, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.token(id)
}

func (g *Graph) MintToken(id models.TokenID, to models.Account, amount *uint256.Int) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	t, err := g.token(id)
	if err != nil {
		return err
	}
	if err := t.Mint(to, amount); err != nil {
		return err
	}
	return g.persist([]*token.Ledger{t})
}

// ApproveSpend lets spender move amount of owner's tokens.
func (g *Graph) ApproveSpend(id models.TokenID, owner, spender models.Account, amount *uint256.Int) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	t, err := g.token(id)
	if err != nil {
		return err
	}
	if err := t.Approve(owner, spender, amount); err != nil {
		return err
	}
	return g.persist([]*token.Ledger{t})
}

func (g *Graph) BalanceOf(id models.TokenID, account models.Account) (*uint256.Int, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	t, err := g.token(id)
	if err != nil {
		return nil, err
	}
	return t.BalanceOf(account), nil
}

// AddNode creates a node. Its primaries must already exist; a fresh id is
// generated when cfg has none.
func (g *Graph) AddNode(cfg content.Config) (*content.Node, error) {
	g.mux.Lock()
	defer g.mux.Unlock()

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if _, ok := g.nodes[cfg.ID]; ok {
		return nil, fmt.Errorf("%w: node %s", rerrors.ErrDuplicate, cfg.ID)
	}
	for _, p := range cfg.Primaries {
		if _, ok := g.nodes[string(p)]; !ok && string(p) != cfg.ID {
			return nil, fmt.Errorf("%w: primary %s", rerrors.ErrNotFound, p)
		}
	}
	cfg.CreatedAt = g.clock.Now().UnixMilli()

	n, err := content.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := g.persist(nil, n); err != nil {
		return nil, err
	}
	g.nodes[n.ID()] = n
	metrics.NodesTotal.Set(float64(len(g.nodes)))
	logger.Logger.Info("Added node", zap.String("node_id", n.ID()), zap.Int("primaries", len(cfg.Primaries)))
	return n, nil
}

func (g *Graph) Node(id string) (*content.Node, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.node(id)
}

// Nodes returns every node ordered by id.
func (g *Graph) Nodes() []*content.Node {
	g.mux.Lock()
	defer g.mux.Unlock()
	return g.sorted()
}

func (g *Graph) sorted() []*content.Node {
	out := make([]*content.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// reaches reports whether to is reachable from from along primary edges.
func (g *Graph) reaches(from, to string) bool {
	seen := make(map[string]bool)
	var visit func(id string) bool
	visit = func(id string) bool {
		if id == to {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		n, ok := g.nodes[id]
		if !ok {
			return false
		}
		for _, e := range n.Edges() {
			if visit(string(e.Primary)) {
				return true
			}
		}
		return false
	}
	return visit(from)
}

// AddPrimary links node id to an existing upstream node.
func (g *Graph) AddPrimary(caller models.Account, id, primaryID string, weight *uint256.Int) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	n, err := g.node(id)
	if err != nil {
		return err
	}
	if _, err := g.node(primaryID); err != nil {
		return err
	}
	if primaryID != id && g.reaches(primaryID, id) {
		return fmt.Errorf("%w: %s -> %s", rerrors.ErrCyclicEdge, id, primaryID)
	}
	if err := n.AddPrimary(caller, models.Account(primaryID), weight); err != nil {
		return err
	}
	logger.Logger.Info("Added primary edge", zap.String("node_id", id), zap.String("primary", primaryID), zap.Stringer("weight", weight))
	return g.persist(nil, n)
}

func (g *Graph) SetProportions(caller models.Account, id string, p models.Proportions) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	n, err := g.node(id)
	if err != nil {
		return err
	}
	if err := n.SetProportions(caller, p); err != nil {
		return err
	}
	return g.persist(nil, n)
}

func (g *Graph) ApproveToken(caller models.Account, id string, tokID models.TokenID, approved bool) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	n, err := g.node(id)
	if err != nil {
		return err
	}
	if err := n.ApproveToken(caller, tokID, approved); err != nil {
		return err
	}
	return g.persist(nil, n)
}

// Distribute pays amount from caller into node id.
func (g *Graph) Distribute(caller models.Account, id string, tokID models.TokenID, amount *uint256.Int) error {
	g.mux.Lock()
	defer g.mux.Unlock()
	n, err := g.node(id)
	if err != nil {
		return err
	}
	t, err := g.token(tokID)
	if err != nil {
		return err
	}
	err = n.Distribute(caller, t, amount)
	metrics.DistributionsTotal.WithLabelValues(string(tokID), metrics.Status(err)).Inc()
	if err != nil {
		logger.Logger.Warn("Distribution rejected", zap.String("node_id", id), zap.String("token", string(tokID)), zap.Error(err))
		return err
	}
	logger.Logger.Info("Distributed", zap.String("node_id", id), zap.String("token", string(tokID)), zap.Stringer("amount", amount))
	return g.persist([]*token.Ledger{t}, n)
}

// ForceClaimAll splits what node id holds of the token into its claim-rights.
func (g *Graph) ForceClaimAll(id string, tokID models.TokenID) (*uint256.Int, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	n, err := g.node(id)
	if err != nil {
		return nil, err
	}
	t, err := g.token(tokID)
	if err != nil {
		return nil, err
	}
	moved, err := n.ForceClaimAll(t)
	if err != nil {
		return nil, err
	}
	return moved, g.persist([]*token.Ledger{t}, n)
}

func (g *Graph) Claim(id string, class models.ClaimClass, account models.Account, tokID models.TokenID, mode models.ClaimMode, maxSteps int) (*uint256.Int, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	n, err := g.node(id)
	if err != nil {
		return nil, err
	}
	t, err := g.token(tokID)
	if err != nil {
		return nil, err
	}
	paid, err := n.Claim(class, account, t, mode, maxSteps)
	metrics.ClaimsTotal.WithLabelValues(string(class), string(mode), metrics.Status(err)).Inc()
	if err != nil {
		return nil, err
	}
	logger.Logger.Debug("Claimed", zap.String("node_id", id), zap.String("class", string(class)),
		zap.String("account", string(account)), zap.Stringer("amount", paid))
	return paid, g.persist([]*token.Ledger{t}, n)
}

func (g *Graph) Claimable(id string, class models.ClaimClass, account models.Account, tokID models.TokenID) (*uint256.Int, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	n, err := g.node(id)
	if err != nil {
		return nil, err
	}
	return n.Claimable(class, account, tokID)
}

// upstream orders the nodes reachable from root so that every node comes
// after all reachable nodes that list it as a primary.
func (g *Graph) upstream(root *content.Node) []*content.Node {
	indegree := map[string]int{root.ID(): 0}
	stack := []*content.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range n.Edges() {
			p, ok := g.nodes[string(e.Primary)]
			if !ok {
				continue
			}
			if _, seen := indegree[p.ID()]; !seen {
				stack = append(stack, p)
			}
			indegree[p.ID()]++
		}
	}

	order := []*content.Node{root}
	for i := 0; i < len(order); i++ {
		for _, e := range order[i].Edges() {
			p, ok := g.nodes[string(e.Primary)]
			if !ok {
				continue
			}
			if indegree[p.ID()]--; indegree[p.ID()] == 0 {
				order = append(order, p)
			}
		}
	}
	return order
}

func ignorable(err error) bool {
	return stderrors.Is(err, rerrors.ErrNoIncomingAmount) || stderrors.Is(err, rerrors.ErrTokenNotApproved)
}

// Settle pushes royalty from root towards every upstream node: each node in
// turn allocates what it holds, then claims each primary edge into the
// upstream node. It returns the amount each node allocated.
func (g *Graph) Settle(tokID models.TokenID, rootID string) (map[string]*uint256.Int, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	root, err := g.node(rootID)
	if err != nil {
		return nil, err
	}
	t, err := g.token(tokID)
	if err != nil {
		return nil, err
	}

	order := g.upstream(root)
	allocated := make(map[string]*uint256.Int)
	err = g.settle(t, order, allocated)
	metrics.SettlementsTotal.WithLabelValues(string(tokID), metrics.Status(err)).Inc()
	metrics.SettledNodes.Observe(float64(len(order)))
	if perr := g.persist([]*token.Ledger{t}, order...); err == nil {
		err = perr
	}
	if err != nil {
		logger.Logger.Error("Settlement failed", zap.String("root", rootID), zap.String("token", string(tokID)), zap.Error(err))
		return allocated, err
	}
	logger.Logger.Info("Settled", zap.String("root", rootID), zap.String("token", string(tokID)), zap.Int("nodes", len(order)))
	return allocated, nil
}

func (g *Graph) settle(t *token.Ledger, order []*content.Node, allocated map[string]*uint256.Int) error {
	for _, n := range order {
		moved, err := n.ForceClaimAll(t)
		switch {
		case err == nil:
			allocated[n.ID()] = moved
		case ignorable(err):
			logger.Logger.Debug("Nothing to allocate", zap.String("node_id", n.ID()), zap.Error(err))
		default:
			return err
		}
		for _, e := range n.Edges() {
			if _, err := n.Claim(models.ClassPrimaries, e.Primary, t, models.ClaimAll, 0); err != nil && !ignorable(err) {
				return err
			}
		}
	}
	return nil
}

// received sums what all claim-rights of n ever received of id.
func received(n *content.Node, id models.TokenID) *uint256.Int {
	total := new(uint256.Int)
	for _, class := range models.Classes {
		r, _ := n.Right(class)
		total.Add(total, r.TotalReceived(id))
	}
	return total
}

// HighestReceivedNode returns the node that received the most of the token.
func (g *Graph) HighestReceivedNode(tokID models.TokenID) (*content.Node, *uint256.Int, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	nodes := g.sorted()
	if len(nodes) == 0 {
		return nil, nil, fmt.Errorf("%w: no nodes in graph", rerrors.ErrNotFound)
	}
	highest, most := nodes[0], received(nodes[0], tokID)
	for _, n := range nodes[1:] {
		if r := received(n, tokID); r.Gt(most) {
			highest, most = n, r
		}
	}
	return highest, most, nil
}

// Validate lists inconsistencies: missing primaries, cycles, and claim-rights
// holding less than their unreleased pool.
func (g *Graph) Validate() []string {
	g.mux.Lock()
	defer g.mux.Unlock()
	var issues []string
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.nodes))
	var visit func(n *content.Node)
	visit = func(n *content.Node) {
		state[n.ID()] = active
		for _, e := range n.Edges() {
			p, ok := g.nodes[string(e.Primary)]
			if !ok {
				issues = append(issues, fmt.Sprintf("node %s: primary %s missing", n.ID(), e.Primary))
				continue
			}
			switch state[p.ID()] {
			case active:
				issues = append(issues, fmt.Sprintf("node %s: cycle through %s", n.ID(), p.ID()))
			case unvisited:
				visit(p)
			}
		}
		state[n.ID()] = done
	}
	for _, n := range g.sorted() {
		if state[n.ID()] == unvisited {
			visit(n)
		}
		for _, class := range models.Classes {
			r, _ := n.Right(class)
			for _, id := range r.Tokens() {
				t, ok := g.tokens[id]
				if !ok {
					continue
				}
				if pool, held := r.Pool(id), t.BalanceOf(r.Address()); held.Lt(pool) {
					issues = append(issues, fmt.Sprintf("node %s: %s holds %s %s, owes %s", n.ID(), class, held.Dec(), id, pool.Dec()))
				}
			}
		}
	}
	return issues
}

// Checkpoint records the current distribution totals.
func (g *Graph) Checkpoint() (*models.Checkpoint, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	cp := &models.Checkpoint{
		ID:        uuid.NewString(),
		Timestamp: g.clock.Now().UnixMilli(),
		Nodes:     len(g.nodes),
		Received:  make(map[models.TokenID]*uint256.Int, len(g.tokens)),
	}
	for id := range g.tokens {
		total := new(uint256.Int)
		for _, n := range g.nodes {
			total.Add(total, received(n, id))
		}
		cp.Received[id] = total
	}
	if err := g.repo.PutCheckpoint(cp); err != nil {
		metrics.PersistErrorsTotal.WithLabelValues("checkpoint").Inc()
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	metrics.CheckpointsTotal.Inc()
	logger.Logger.Info("Checkpoint written", zap.String("checkpoint_id", cp.ID), zap.Int("nodes", cp.Nodes))
	return cp, nil
}

func (g *Graph) LatestCheckpoint() (*models.Checkpoint, error) {
	cp, err := g.repo.GetLatestCheckpoint()
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: no checkpoint", rerrors.ErrNotFound)
	}
	return cp, nil
}

// Restore replaces the in-memory graph with what the repository holds.
func (g *Graph) Restore() error {
	tokenStates, err := g.repo.GetAllTokens()
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	nodeStates, err := g.repo.GetAllNodes()
	if err != nil {
		return fmt.Errorf("load nodes: %w", err)
	}
	tokens := make(map[models.TokenID]*token.Ledger, len(tokenStates))
	for _, st := range tokenStates {
		t, err := token.RestoreLedger(st)
		if err != nil {
			return fmt.Errorf("token %s: %w", st.ID, err)
		}
		tokens[t.ID()] = t
	}
	nodes := make(map[string]*content.Node, len(nodeStates))
	vaultStates := make(map[string]*models.VaultState)
	for _, st := range nodeStates {
		n, err := content.Restore(st)
		if err != nil {
			return fmt.Errorf("node %s: %w", st.ID, err)
		}
		nodes[n.ID()] = n
		if st.Vault != nil {
			vaultStates[n.ID()] = st.Vault
		}
	}

	g.mux.Lock()
	defer g.mux.Unlock()
	g.tokens, g.nodes = tokens, nodes
	g.vaults, g.vaultStates = make(map[string]*staking.Vault), vaultStates
	g.oracles = make(map[string]*engagement.CounterOracle)
	metrics.NodesTotal.Set(float64(len(nodes)))
	logger.Logger.Info("Restored graph", zap.Int("nodes", len(nodes)), zap.Int("tokens", len(tokens)))
	return nil
}
