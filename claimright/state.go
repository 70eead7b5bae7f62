package claimright

import (
	"fmt"

	"github.com/holiman/uint256"

	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

// Snapshot returns the persisted layout of the claim-right.
func (r *ClaimRight) Snapshot() *models.ClaimRightState {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, weights, total := r.shares.Snapshot()
	st := &models.ClaimRightState{
		Name:        r.name,
		Address:     r.address,
		Owner:       r.controller.Owner(),
		Accounts:    accounts,
		Shares:      weights,
		TotalShares: total,
		Tokens:      make(map[models.TokenID]*models.TokenLedgerState, len(r.tokens)),
	}
	for id, tl := range r.tokens {
		ts := &models.TokenLedgerState{
			Approved:      tl.approved,
			MinIncoming:   tl.minIncoming.Clone(),
			TotalReceived: tl.totalReceived.Clone(),
			TotalReleased: tl.totalReleased.Clone(),
			DustReleased:  tl.dustReleased.Clone(),
			Released:      make(map[models.Account]*uint256.Int, len(tl.released)),
			DustAdvance:   make(map[models.Account]*uint256.Int, len(tl.dustAdvance)),
			Cursors:       make(map[models.Account]int, len(tl.cursors)),
			History:       make([]*uint256.Int, len(tl.history)),
		}
		for a, v := range tl.released {
			ts.Released[a] = v.Clone()
		}
		for a, v := range tl.dustAdvance {
			ts.DustAdvance[a] = v.Clone()
		}
		for a, c := range tl.cursors {
			ts.Cursors[a] = c
		}
		for i, h := range tl.history {
			ts.History[i] = h.Clone()
		}
		st.Tokens[id] = ts
	}
	return st
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

// loadTokens restores per-token counters, rejecting states where more was
// released than received.
func (r *ClaimRight) loadTokens(st *models.ClaimRightState) error {
	tokens := make(map[models.TokenID]*tokenLedger, len(st.Tokens))
	for id, ts := range st.Tokens {
		tl := newTokenLedger()
		tl.approved = ts.Approved
		tl.minIncoming = orZero(ts.MinIncoming)
		tl.totalReceived = orZero(ts.TotalReceived)
		tl.totalReleased = orZero(ts.TotalReleased)
		tl.dustReleased = orZero(ts.DustReleased)
		if tl.totalReleased.Gt(tl.totalReceived) {
			return fmt.Errorf("%s: %w: %s released more than received", st.Name, rerrors.ErrConfiguration, id)
		}
		for a, v := range ts.Released {
			tl.released[a] = orZero(v)
		}
		for a, v := range ts.DustAdvance {
			tl.dustAdvance[a] = orZero(v)
		}
		for a, c := range ts.Cursors {
			if c < 0 || c > len(ts.History) {
				return fmt.Errorf("%s: %w: cursor %d out of range", st.Name, rerrors.ErrConfiguration, c)
			}
			tl.cursors[a] = c
		}
		for _, h := range ts.History {
			tl.history = append(tl.history, orZero(h))
		}
		tokens[id] = tl
	}
	r.tokens = tokens
	return nil
}
