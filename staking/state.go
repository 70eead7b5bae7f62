package staking

import (
	"fmt"
	"time"

	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

// Snapshot returns the open requests of the vault.
func (v *Vault) Snapshot() *models.VaultState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return &models.VaultState{
		Pending:  dumpRequests(v.pending),
		Paybacks: dumpRequests(v.paybacks),
	}
}

func dumpRequests(requests map[models.Account]*request) map[models.Account]*models.StakeRequest {
	out := make(map[models.Account]*models.StakeRequest, len(requests))
	for a, req := range requests {
		out[a] = &models.StakeRequest{Amount: req.amount.Clone(), RequestedAt: req.requestedAt.UnixMilli()}
	}
	return out
}

// Load replaces the open requests of the vault with st.
func (v *Vault) Load(st *models.VaultState) error {
	if st == nil {
		return nil
	}
	pending, err := loadRequests(st.Pending)
	if err != nil {
		return err
	}
	paybacks, err := loadRequests(st.Paybacks)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending, v.paybacks = pending, paybacks
	return nil
}

func loadRequests(in map[models.Account]*models.StakeRequest) (map[models.Account]*request, error) {
	out := make(map[models.Account]*request, len(in))
	for a, req := range in {
		if req == nil || req.Amount == nil || req.Amount.IsZero() {
			return nil, fmt.Errorf("%w: empty request for %s", rerrors.ErrConfiguration, a)
		}
		out[a] = &request{amount: req.Amount.Clone(), requestedAt: time.UnixMilli(req.RequestedAt)}
	}
	return out, nil
}
