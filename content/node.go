// Package content implements a content node: a royalty recipient that splits
// every distribution among its creators, engagement holders, stakers,
// upstream primaries and treasury.
package content

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"royalty-dag/access"
	"royalty-dag/claimright"
	rerrors "royalty-dag/errors"
	"royalty-dag/models"
	"royalty-dag/splitter"
	"royalty-dag/token"
)

// Config describes a node at construction.
type Config struct {
	ID            string
	Owner         models.Account
	Proportions   models.Proportions
	Creators      []models.Account
	CreatorShares []*uint256.Int
	Primaries     []models.Account
	PrimaryShares []*uint256.Int
	Tokens        []models.TokenID
	CreatedAt     int64
}

// Node owns one claim-right per constituency. The node's own account is its
// id; each claim-right holds its tokens under "<id>#<class>".
type Node struct {
	mu          sync.Mutex
	id          string
	controller  *access.Controller
	proportions models.Proportions
	splitter    *splitter.Splitter
	tokens      map[models.TokenID]*models.TokenSettings
	createdAt   int64

	Creators  *claimright.Dynamic
	Holders   *claimright.Managed
	Stakers   *claimright.Managed
	Primaries *claimright.Fixed
	Treasury  *claimright.Managed
}

// RightAddress is the account the claim-right of class holds tokens under.
func RightAddress(id string, class models.ClaimClass) models.Account {
	return models.Account(id + "#" + string(class))
}

func newSplitter(p models.Proportions) (*splitter.Splitter, error) {
	return splitter.New(splitter.Denominator,
		splitter.Proportion{Name: string(models.ClassCreators), Parts: p.Creators},
		splitter.Proportion{Name: string(models.ClassHolders), Parts: p.Holders},
		splitter.Proportion{Name: string(models.ClassStakers), Parts: p.Stakers},
		splitter.Proportion{Name: string(models.ClassPrimaries), Parts: p.Primaries},
	)
}

// checkEdges rejects self edges and repeated primaries.
func checkEdges(self models.Account, primaries []models.Account) error {
	seen := make(map[models.Account]bool, len(primaries))
	for _, p := range primaries {
		if p == self {
			return fmt.Errorf("%w: %s references itself", rerrors.ErrDuplicateEdge, self)
		}
		if seen[p] {
			return fmt.Errorf("%w: %s -> %s", rerrors.ErrDuplicateEdge, self, p)
		}
		seen[p] = true
	}
	return nil
}

// New builds a node. Nothing is created if any part of cfg is invalid.
func New(cfg Config) (*Node, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: node id required", rerrors.ErrConfiguration)
	}
	split, err := newSplitter(cfg.Proportions)
	if err != nil {
		return nil, err
	}
	self := models.Account(cfg.ID)
	if err := checkEdges(self, cfg.Primaries); err != nil {
		return nil, err
	}
	primaries, err := claimright.NewFixed(string(models.ClassPrimaries), RightAddress(cfg.ID, models.ClassPrimaries),
		access.NewController(self), cfg.Primaries, cfg.PrimaryShares)
	if err != nil {
		return nil, err
	}
	n := &Node{
		id:          cfg.ID,
		controller:  access.NewController(cfg.Owner),
		proportions: cfg.Proportions,
		splitter:    split,
		tokens:      make(map[models.TokenID]*models.TokenSettings),
		createdAt:   cfg.CreatedAt,
		Creators:    claimright.NewDynamic(string(models.ClassCreators), RightAddress(cfg.ID, models.ClassCreators), access.NewController(self)),
		Holders:     claimright.NewManaged(string(models.ClassHolders), RightAddress(cfg.ID, models.ClassHolders), access.NewController(self)),
		Stakers:     claimright.NewManaged(string(models.ClassStakers), RightAddress(cfg.ID, models.ClassStakers), access.NewController(self)),
		Primaries:   primaries,
		Treasury:    claimright.NewManaged(string(models.ClassTreasury), RightAddress(cfg.ID, models.ClassTreasury), access.NewController(self)),
	}
	if err := n.Creators.InitPayees(self, cfg.Creators, cfg.CreatorShares); err != nil {
		return nil, fmt.Errorf("creators: %w", err)
	}
	for _, id := range cfg.Tokens {
		n.approve(id, true)
	}
	return n, nil
}

func (n *Node) ID() string { return n.id }

// Address is the account the node receives tokens under.
func (n *Node) Address() models.Account { return models.Account(n.id) }

func (n *Node) Controller() *access.Controller { return n.controller }

func (n *Node) CreatedAt() int64 { return n.createdAt }

func (n *Node) Proportions() models.Proportions {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.proportions
}

// TreasuryParts is the share of the denominator the treasury receives.
func (n *Node) TreasuryParts() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.splitter.TreasuryParts()
}

// Right returns the claim-right of class.
func (n *Node) Right(class models.ClaimClass) (*claimright.ClaimRight, error) {
	switch class {
	case models.ClassCreators:
		return n.Creators.ClaimRight, nil
	case models.ClassHolders:
		return n.Holders.ClaimRight, nil
	case models.ClassStakers:
		return n.Stakers.ClaimRight, nil
	case models.ClassPrimaries:
		return n.Primaries.ClaimRight, nil
	case models.ClassTreasury:
		return n.Treasury.ClaimRight, nil
	}
	return nil, fmt.Errorf("%w: claim class %q", rerrors.ErrNotFound, class)
}

// rights lists the claim-rights in split order, treasury last.
func (n *Node) rights() []*claimright.ClaimRight {
	return []*claimright.ClaimRight{
		n.Creators.ClaimRight,
		n.Holders.ClaimRight,
		n.Stakers.ClaimRight,
		n.Primaries.ClaimRight,
		n.Treasury.ClaimRight,
	}
}

// Edges lists the node's primaries with their weights, in insertion order.
func (n *Node) Edges() []models.Edge {
	accounts := n.Primaries.Accounts()
	edges := make([]models.Edge, len(accounts))
	for i, a := range accounts {
		edges[i] = models.Edge{Primary: a, Weight: n.Primaries.SharesOf(a)}
	}
	return edges
}

func (n *Node) approve(id models.TokenID, approved bool) {
	settings, ok := n.tokens[id]
	if !ok {
		settings = &models.TokenSettings{MinIncoming: new(uint256.Int)}
		n.tokens[id] = settings
	}
	settings.Approved = approved
	for _, r := range n.rights() {
		// The node owns its claim-rights, so this cannot be refused.
		_ = r.SetApprovalForIncomingToken(n.Address(), id, approved)
	}
}

// ApproveToken allows or forbids distributions of id into the node and all
// of its claim-rights.
func (n *Node) ApproveToken(caller models.Account, id models.TokenID, approved bool) error {
	if err := n.controller.Require(caller, access.RoleOwner); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approve(id, approved)
	return nil
}

// SetMinIncomingAmount gates node distributions of id below amount.
func (n *Node) SetMinIncomingAmount(caller models.Account, id models.TokenID, amount *uint256.Int) error {
	if err := n.controller.Require(caller, access.RoleOwner); err != nil {
		return err
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	settings, ok := n.tokens[id]
	if !ok {
		settings = &models.TokenSettings{}
		n.tokens[id] = settings
	}
	settings.MinIncoming = amount.Clone()
	return nil
}

func (n *Node) IsApprovedToken(id models.TokenID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.tokens[id]
	return ok && s.Approved
}

// SetProportions changes the split of future distributions.
func (n *Node) SetProportions(caller models.Account, p models.Proportions) error {
	if err := n.controller.Require(caller, access.RoleOwner); err != nil {
		return err
	}
	split, err := newSplitter(p)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.proportions = p
	n.splitter = split
	return nil
}

// AddPrimary records a weighted edge to an upstream node.
func (n *Node) AddPrimary(caller, primary models.Account, weight *uint256.Int) error {
	if err := n.controller.Require(caller, access.RoleOwner); err != nil {
		return err
	}
	if err := checkEdges(n.Address(), []models.Account{primary}); err != nil {
		return err
	}
	err := n.Primaries.AddAccount(n.Address(), primary, weight)
	if stderrors.Is(err, rerrors.ErrDuplicate) {
		return fmt.Errorf("%w: %s -> %s", rerrors.ErrDuplicateEdge, n.id, primary)
	}
	return err
}

func (n *Node) InitCreators(caller models.Account, accounts []models.Account, weights []*uint256.Int) error {
	if err := n.controller.Require(caller, access.RoleOwner); err != nil {
		return err
	}
	return n.Creators.InitPayees(n.Address(), accounts, weights)
}

func (n *Node) AddCreator(caller, account models.Account, weight *uint256.Int) error {
	if err := n.controller.Require(caller, access.RoleOwner); err != nil {
		return err
	}
	return n.Creators.AddPayee(n.Address(), account, weight)
}

func (n *Node) ResetCreators(caller models.Account) error {
	if err := n.controller.Require(caller, access.RoleOwner); err != nil {
		return err
	}
	return n.Creators.ResetPayees(n.Address())
}

func (n *Node) MintHolderShares(caller, account models.Account, amount *uint256.Int) error {
	if err := n.controller.Require(caller, access.RoleEngagement); err != nil {
		return err
	}
	return n.Holders.Mint(n.Address(), account, amount)
}

func (n *Node) BurnAllHolderShares(caller models.Account) error {
	if err := n.controller.Require(caller, access.RoleEngagement); err != nil {
		return err
	}
	return n.Holders.BurnAll(n.Address())
}

func (n *Node) MintStakerShares(caller, account models.Account, amount *uint256.Int) error {
	if err := n.controller.Require(caller, access.RoleStaking); err != nil {
		return err
	}
	return n.Stakers.Mint(n.Address(), account, amount)
}

func (n *Node) BurnStakerShares(caller, account models.Account, amount *uint256.Int) error {
	if err := n.controller.Require(caller, access.RoleStaking); err != nil {
		return err
	}
	return n.Stakers.Burn(n.Address(), account, amount)
}

func (n *Node) MintTreasuryShares(caller, account models.Account, amount *uint256.Int) error {
	if err := n.controller.Require(caller, access.RoleTreasurer); err != nil {
		return err
	}
	return n.Treasury.Mint(n.Address(), account, amount)
}

type allocation struct {
	right  *claimright.ClaimRight
	amount *uint256.Int
}

// plan splits amount and checks every non-zero part against its claim-right,
// so that no tokens move unless all of them will be accepted.
func (n *Node) plan(id models.TokenID, amount *uint256.Int) ([]allocation, error) {
	res := n.splitter.Split(amount)
	parts := append(append([]*uint256.Int{}, res.Amounts...), res.Treasury)
	var plan []allocation
	for i, r := range n.rights() {
		if parts[i].IsZero() {
			continue
		}
		if err := r.CheckIncoming(id, parts[i]); err != nil {
			return nil, err
		}
		plan = append(plan, allocation{right: r, amount: parts[i]})
	}
	return plan, nil
}

func (n *Node) push(tok token.Token, plan []allocation) error {
	for _, a := range plan {
		if err := tok.Approve(n.Address(), a.right.Address(), a.amount); err != nil {
			return fmt.Errorf("node %s: %w", n.id, err)
		}
		if err := a.right.Distribute(n.Address(), tok, a.amount); err != nil {
			return fmt.Errorf("node %s: %w", n.id, err)
		}
	}
	return nil
}

// Distribute pulls amount of tok from caller, who must have approved the
// node as spender, and splits it across the claim-rights.
func (n *Node) Distribute(caller models.Account, tok token.Token, amount *uint256.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	settings, ok := n.tokens[tok.ID()]
	if !ok || !settings.Approved {
		return fmt.Errorf("node %s: %w: %s", n.id, rerrors.ErrTokenNotApproved, tok.ID())
	}
	if amount == nil || amount.Lt(settings.MinIncoming) {
		return fmt.Errorf("node %s: %w: %s", n.id, rerrors.ErrBelowMinimum, settings.MinIncoming.Dec())
	}
	plan, err := n.plan(tok.ID(), amount)
	if err != nil {
		return err
	}
	if err := tok.TransferFrom(n.Address(), caller, n.Address(), amount); err != nil {
		return fmt.Errorf("node %s: %w", n.id, err)
	}
	return n.push(tok, plan)
}

// ForceClaimAll splits whatever the node itself holds of tok, typically
// royalty it claimed as a primary of downstream nodes, into its claim-rights.
func (n *Node) ForceClaimAll(tok token.Token) (*uint256.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if settings, ok := n.tokens[tok.ID()]; !ok || !settings.Approved {
		return nil, fmt.Errorf("node %s: %w: %s", n.id, rerrors.ErrTokenNotApproved, tok.ID())
	}
	held := tok.BalanceOf(n.Address())
	if held.IsZero() {
		return nil, fmt.Errorf("node %s: %w", n.id, rerrors.ErrNoIncomingAmount)
	}
	plan, err := n.plan(tok.ID(), held)
	if err != nil {
		return nil, err
	}
	if err := n.push(tok, plan); err != nil {
		return nil, err
	}
	return held, nil
}

// Claim pays account from the claim-right of class.
func (n *Node) Claim(class models.ClaimClass, account models.Account, tok token.Token, mode models.ClaimMode, maxSteps int) (*uint256.Int, error) {
	r, err := n.Right(class)
	if err != nil {
		return nil, err
	}
	switch mode {
	case models.ClaimNext, "":
		return r.ClaimNext(account, tok)
	case models.ClaimIterate:
		return r.ClaimIterate(account, tok, maxSteps)
	case models.ClaimAll:
		return r.ClaimAll(account, tok)
	}
	return nil, fmt.Errorf("%w: claim mode %q", rerrors.ErrConfiguration, mode)
}

// Claimable is what account could claim from class right now.
func (n *Node) Claimable(class models.ClaimClass, account models.Account, id models.TokenID) (*uint256.Int, error) {
	r, err := n.Right(class)
	if err != nil {
		return nil, err
	}
	return r.Claimable(account, id), nil
}
