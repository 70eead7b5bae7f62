package content

import (
	"fmt"

	"github.com/holiman/uint256"

	"royalty-dag/access"
	"royalty-dag/claimright"
	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

// Snapshot returns the persisted form of the node.
func (n *Node) Snapshot() *models.NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	st := &models.NodeState{
		ID:          n.id,
		Owner:       n.controller.Owner(),
		Roles:       n.controller.Grants(),
		Proportions: n.proportions,
		Tokens:      make(map[models.TokenID]*models.TokenSettings, len(n.tokens)),
		Rights:      make(map[models.ClaimClass]*models.ClaimRightState, len(models.Classes)),
		CreatedAt:   n.createdAt,
	}
	for id, s := range n.tokens {
		st.Tokens[id] = &models.TokenSettings{Approved: s.Approved, MinIncoming: orZero(s.MinIncoming)}
	}
	for i, r := range n.rights() {
		st.Rights[models.Classes[i]] = r.Snapshot()
	}
	return st
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

// Restore rebuilds a node from its persisted form.
func Restore(st *models.NodeState) (*Node, error) {
	if st == nil || st.ID == "" {
		return nil, fmt.Errorf("%w: empty node state", rerrors.ErrConfiguration)
	}
	split, err := newSplitter(st.Proportions)
	if err != nil {
		return nil, err
	}
	rights := make(map[models.ClaimClass]*models.ClaimRightState, len(models.Classes))
	for _, class := range models.Classes {
		rs, ok := st.Rights[class]
		if !ok || rs == nil {
			return nil, fmt.Errorf("%w: node %s has no %s state", rerrors.ErrConfiguration, st.ID, class)
		}
		rights[class] = rs
	}
	n := &Node{
		id:          st.ID,
		controller:  access.Restore(st.Owner, st.Roles),
		proportions: st.Proportions,
		splitter:    split,
		tokens:      make(map[models.TokenID]*models.TokenSettings, len(st.Tokens)),
		createdAt:   st.CreatedAt,
	}
	for id, s := range st.Tokens {
		n.tokens[id] = &models.TokenSettings{Approved: s.Approved, MinIncoming: orZero(s.MinIncoming)}
	}
	if n.Creators, err = claimright.RestoreDynamic(rights[models.ClassCreators]); err != nil {
		return nil, err
	}
	if n.Holders, err = claimright.RestoreManaged(rights[models.ClassHolders]); err != nil {
		return nil, err
	}
	if n.Stakers, err = claimright.RestoreManaged(rights[models.ClassStakers]); err != nil {
		return nil, err
	}
	if n.Primaries, err = claimright.RestoreFixed(rights[models.ClassPrimaries]); err != nil {
		return nil, err
	}
	if n.Treasury, err = claimright.RestoreManaged(rights[models.ClassTreasury]); err != nil {
		return nil, err
	}
	return n, nil
}
