// Package claimright implements pull-based royalty accounting: distributions
// bump a cumulative per-token counter, and each account withdraws the gap
// between its current entitlement and what it already received.
package claimright

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"royalty-dag/access"
	rerrors "royalty-dag/errors"
	"royalty-dag/models"
	"royalty-dag/token"
)

// RemainderPolicy decides who receives flooring dust.
type RemainderPolicy int

const (
	// RemainderStays leaves dust in the claim-right.
	RemainderStays RemainderPolicy = iota
	// RemainderToFirstClaimant pays the dust to the first member claiming after it appears.
	RemainderToFirstClaimant
)

// weightLedger is what a claim-right computes entitlements over.
type weightLedger interface {
	SharesOf(account models.Account) *uint256.Int
	TotalShares() *uint256.Int
	Accounts() []models.Account
	Snapshot() ([]models.Account, map[models.Account]*uint256.Int, *uint256.Int)
}

type tokenLedger struct {
	approved      bool
	minIncoming   *uint256.Int
	totalReceived *uint256.Int
	totalReleased *uint256.Int
	dustReleased  *uint256.Int
	released      map[models.Account]*uint256.Int
	// dustAdvance is swept dust, counted against the sweeper's later share.
	dustAdvance map[models.Account]*uint256.Int
	cursors     map[models.Account]int
	// history[i] is totalReceived right after the i-th distribution.
	history []*uint256.Int
}

func newTokenLedger() *tokenLedger {
	return &tokenLedger{
		minIncoming:   new(uint256.Int),
		totalReceived: new(uint256.Int),
		totalReleased: new(uint256.Int),
		dustReleased:  new(uint256.Int),
		released:      make(map[models.Account]*uint256.Int),
		dustAdvance:   make(map[models.Account]*uint256.Int),
		cursors:       make(map[models.Account]int),
	}
}

func (tl *tokenLedger) releasedOf(account models.Account) *uint256.Int {
	if r, ok := tl.released[account]; ok {
		return r
	}
	return new(uint256.Int)
}

func (tl *tokenLedger) advanceOf(account models.Account) *uint256.Int {
	if a, ok := tl.dustAdvance[account]; ok {
		return a
	}
	return new(uint256.Int)
}

// paidOf is everything account has withdrawn, swept dust included.
func (tl *tokenLedger) paidOf(account models.Account) *uint256.Int {
	return new(uint256.Int).Add(tl.releasedOf(account), tl.advanceOf(account))
}

// ClaimRight is the accounting core shared by every claim class. All
// operations on one instance are serialized; a failed operation changes nothing.
type ClaimRight struct {
	mu         sync.Mutex
	name       string
	address    models.Account
	controller *access.Controller
	shares     weightLedger
	policy     RemainderPolicy
	tokens     map[models.TokenID]*tokenLedger
}

func newClaimRight(name string, address models.Account, controller *access.Controller, shares weightLedger, policy RemainderPolicy) *ClaimRight {
	return &ClaimRight{
		name:       name,
		address:    address,
		controller: controller,
		shares:     shares,
		policy:     policy,
		tokens:     make(map[models.TokenID]*tokenLedger),
	}
}

// Name identifies the claim-right in errors and logs.
func (r *ClaimRight) Name() string { return r.name }

// Address is the account the claim-right holds tokens under.
func (r *ClaimRight) Address() models.Account { return r.address }

// Controller guards the owner-only operations of the claim-right.
func (r *ClaimRight) Controller() *access.Controller { return r.controller }

func (r *ClaimRight) requireOwner(caller models.Account) error {
	return r.controller.Require(caller, access.RoleOwner)
}

func (r *ClaimRight) ledger(id models.TokenID) *tokenLedger {
	tl, ok := r.tokens[id]
	if !ok {
		tl = newTokenLedger()
		r.tokens[id] = tl
	}
	return tl
}

// SetApprovalForIncomingToken allows or forbids distributions of id.
func (r *ClaimRight) SetApprovalForIncomingToken(caller models.Account, id models.TokenID, approved bool) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger(id).approved = approved
	return nil
}

// ApproveTokens approves several tokens at once.
func (r *ClaimRight) ApproveTokens(caller models.Account, ids ...models.TokenID) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.ledger(id).approved = true
	}
	return nil
}

// SetMinIncomingAmount gates distributions smaller than amount. Zero disables the gate.
func (r *ClaimRight) SetMinIncomingAmount(caller models.Account, id models.TokenID, amount *uint256.Int) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger(id).minIncoming = amount.Clone()
	return nil
}

// IsApprovedToken reports whether distributions of id are accepted.
func (r *ClaimRight) IsApprovedToken(id models.TokenID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	tl, ok := r.tokens[id]
	return ok && tl.approved
}

// MinIncomingAmount is the smallest distribution of id accepted; zero means no gate.
func (r *ClaimRight) MinIncomingAmount(id models.TokenID) *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tl, ok := r.tokens[id]; ok {
		return tl.minIncoming.Clone()
	}
	return new(uint256.Int)
}

// CheckIncoming reports whether a distribution of amount would pass the gates.
func (r *ClaimRight) CheckIncoming(id models.TokenID, amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkIncoming(id, amount)
}

func (r *ClaimRight) checkIncoming(id models.TokenID, amount *uint256.Int) error {
	tl, ok := r.tokens[id]
	if !ok || !tl.approved {
		return fmt.Errorf("%s: %w: %s", r.name, rerrors.ErrTokenNotApproved, id)
	}
	if amount == nil || amount.Lt(tl.minIncoming) {
		return fmt.Errorf("%s: %w: %s", r.name, rerrors.ErrBelowMinimum, tl.minIncoming.Dec())
	}
	return nil
}

// Distribute pulls amount of tok from the from account, which must have
// approved this claim-right as spender, and adds it to the cumulative counter.
// Its cost does not depend on the number of claimants.
func (r *ClaimRight) Distribute(from models.Account, tok token.Token, amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIncoming(tok.ID(), amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	if err := tok.TransferFrom(r.address, from, r.address, amount); err != nil {
		return fmt.Errorf("%s: distribute: %w", r.name, err)
	}
	tl := r.tokens[tok.ID()]
	tl.totalReceived = new(uint256.Int).Add(tl.totalReceived, amount)
	tl.history = append(tl.history, tl.totalReceived.Clone())
	return nil
}

// entitlement is floor(received × shares / totalShares) at the current weights.
func (r *ClaimRight) entitlement(account models.Account, received *uint256.Int) *uint256.Int {
	total := r.shares.TotalShares()
	if total.IsZero() {
		return new(uint256.Int)
	}
	// shares <= total, so the result never exceeds received.
	ent, _ := new(uint256.Int).MulDivOverflow(received, r.shares.SharesOf(account), total)
	return ent
}

// unreserved is what received leaves once every release and every
// member's outstanding share are accounted for.
func (r *ClaimRight) unreserved(tl *tokenLedger, received *uint256.Int) *uint256.Int {
	owed := tl.totalReleased.Clone()
	for _, a := range r.shares.Accounts() {
		if ent, paid := r.entitlement(a, received), tl.paidOf(a); ent.Gt(paid) {
			owed.Add(owed, new(uint256.Int).Sub(ent, paid))
		}
	}
	if !received.Gt(owed) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(received, owed)
}

// due splits what account may withdraw against received into its
// proportional part and the dust it would sweep, capped by the unreleased pool.
// Dust swept earlier is deducted from the proportional part.
func (r *ClaimRight) due(tl *tokenLedger, account models.Account, received *uint256.Int) (share, dust *uint256.Int) {
	share, dust = new(uint256.Int), new(uint256.Int)
	if ent, paid := r.entitlement(account, received), tl.paidOf(account); ent.Gt(paid) {
		share.Sub(ent, paid)
	}
	pool := new(uint256.Int).Sub(tl.totalReceived, tl.totalReleased)
	if share.Gt(pool) {
		share.Set(pool)
	}
	if r.policy != RemainderToFirstClaimant || r.shares.SharesOf(account).IsZero() {
		return share, dust
	}
	dust = r.unreserved(tl, received)
	if rest := pool.Sub(pool, share); dust.Gt(rest) {
		dust.Set(rest)
	}
	return share, dust
}

// Entitlement is account's share of everything ever received, at current weights.
func (r *ClaimRight) Entitlement(account models.Account, id models.TokenID) *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	tl, ok := r.tokens[id]
	if !ok {
		return new(uint256.Int)
	}
	return r.entitlement(account, tl.totalReceived)
}

// Claimable is what a claim by account would pay right now.
func (r *ClaimRight) Claimable(account models.Account, id models.TokenID) *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	tl, ok := r.tokens[id]
	if !ok {
		return new(uint256.Int)
	}
	share, dust := r.due(tl, account, tl.totalReceived)
	return share.Add(share, dust)
}

// ClaimNext pays account everything currently claimable.
func (r *ClaimRight) ClaimNext(account models.Account, tok token.Token) (*uint256.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claim(account, tok, -1)
}

// ClaimAll is ClaimNext under the cumulative-counter model.
func (r *ClaimRight) ClaimAll(account models.Account, tok token.Token) (*uint256.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claim(account, tok, -1)
}

// ClaimIterate advances account's cursor by at most maxSteps distributions
// and pays the entitlement accumulated up to that point. It fails only when
// nothing at all is claimable; a window worth nothing still moves the cursor.
func (r *ClaimRight) ClaimIterate(account models.Account, tok token.Token, maxSteps int) (*uint256.Int, error) {
	if maxSteps <= 0 {
		return nil, fmt.Errorf("%s: %w: max steps %d", r.name, rerrors.ErrConfiguration, maxSteps)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claim(account, tok, maxSteps)
}

func (r *ClaimRight) claim(account models.Account, tok token.Token, maxSteps int) (*uint256.Int, error) {
	tl, ok := r.tokens[tok.ID()]
	if !ok || len(tl.history) == 0 {
		return nil, fmt.Errorf("%s: %w", r.name, rerrors.ErrNoIncomingAmount)
	}
	if share, dust := r.due(tl, account, tl.totalReceived); share.IsZero() && dust.IsZero() {
		return nil, fmt.Errorf("%s: %w", r.name, rerrors.ErrNoIncomingAmount)
	}

	target := len(tl.history)
	if maxSteps > 0 && tl.cursors[account]+maxSteps < target {
		target = tl.cursors[account] + maxSteps
	}
	share, dust := r.due(tl, account, tl.history[target-1])
	amount := new(uint256.Int).Add(share, dust)
	if !amount.IsZero() {
		if err := tok.Transfer(r.address, account, amount); err != nil {
			return nil, fmt.Errorf("%s: claim: %w", r.name, err)
		}
	}

	tl.released[account] = new(uint256.Int).Add(tl.releasedOf(account), share)
	if !dust.IsZero() {
		tl.dustAdvance[account] = new(uint256.Int).Add(tl.advanceOf(account), dust)
		tl.dustReleased = new(uint256.Int).Add(tl.dustReleased, dust)
	}
	tl.totalReleased = new(uint256.Int).Add(tl.totalReleased, amount)
	tl.cursors[account] = target
	return amount, nil
}

// TotalReceived is the cumulative amount of id ever distributed to the claim-right.
func (r *ClaimRight) TotalReceived(id models.TokenID) *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tl, ok := r.tokens[id]; ok {
		return tl.totalReceived.Clone()
	}
	return new(uint256.Int)
}

// TotalReleased is the cumulative amount of id paid out, swept dust included.
func (r *ClaimRight) TotalReleased(id models.TokenID) *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tl, ok := r.tokens[id]; ok {
		return tl.totalReleased.Clone()
	}
	return new(uint256.Int)
}

// Pool is what the claim-right still owes for id: received minus released.
func (r *ClaimRight) Pool(id models.TokenID) *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tl, ok := r.tokens[id]; ok {
		return new(uint256.Int).Sub(tl.totalReceived, tl.totalReleased)
	}
	return new(uint256.Int)
}

// AlreadyReleased is the proportional amount account has withdrawn for id.
// Swept dust is not included; it is deducted from account's later shares instead.
func (r *ClaimRight) AlreadyReleased(account models.Account, id models.TokenID) *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tl, ok := r.tokens[id]; ok {
		return tl.releasedOf(account).Clone()
	}
	return new(uint256.Int)
}

// Distributions counts the distribution events recorded for id.
func (r *ClaimRight) Distributions(id models.TokenID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tl, ok := r.tokens[id]; ok {
		return len(tl.history)
	}
	return 0
}

// Tokens lists every token id the claim-right has settings or counters for.
func (r *ClaimRight) Tokens() []models.TokenID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]models.TokenID, 0, len(r.tokens))
	for id := range r.tokens {
		ids = append(ids, id)
	}
	return ids
}

// SharesOf is account's current weight.
func (r *ClaimRight) SharesOf(account models.Account) *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shares.SharesOf(account)
}

// TotalShares is the sum of all current weights.
func (r *ClaimRight) TotalShares() *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shares.TotalShares()
}

// Accounts returns the members with non-zero shares in insertion order.
func (r *ClaimRight) Accounts() []models.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shares.Accounts()
}
