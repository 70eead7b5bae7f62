package shares

import (
	"fmt"

	"github.com/holiman/uint256"

	rerrors "royalty-dag/errors"
	"royalty-dag/models"
)

// Balances is the holder-style ledger: the weight is a transferable balance.
type Balances struct {
	table
}

func NewBalances() *Balances {
	return &Balances{table: newTable()}
}

func (b *Balances) Mint(account models.Account, amount *uint256.Int) error {
	return b.add(account, amount)
}

// BatchMint mints every pair or nothing. Repeated accounts accumulate.
func (b *Balances) BatchMint(accounts []models.Account, amounts []*uint256.Int) error {
	if len(accounts) != len(amounts) {
		return fmt.Errorf("%w: %d accounts, %d amounts", rerrors.ErrLengthMismatch, len(accounts), len(amounts))
	}
	sum := new(uint256.Int)
	for _, amount := range amounts {
		if amount == nil {
			continue
		}
		if _, overflow := sum.AddOverflow(sum, amount); overflow {
			return fmt.Errorf("%w: batch overflows", rerrors.ErrConfiguration)
		}
	}
	if _, overflow := new(uint256.Int).AddOverflow(b.total, sum); overflow {
		return fmt.Errorf("%w: total shares overflow", rerrors.ErrConfiguration)
	}
	for i, account := range accounts {
		if err := b.add(account, amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Balances) Burn(account models.Account, amount *uint256.Int) error {
	return b.sub(account, amount)
}

// BurnAll clears every balance. Calling it on an empty ledger is a no-op.
func (b *Balances) BurnAll() {
	b.clear()
}

// Transfer moves weight between holders. The total is unchanged.
func (b *Balances) Transfer(from, to models.Account, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if from == to {
		if b.SharesOf(from).Lt(amount) {
			return fmt.Errorf("%w: %s holds fewer than %s shares", rerrors.ErrInsufficientBalance, from, amount.Dec())
		}
		return nil
	}
	if err := b.sub(from, amount); err != nil {
		return err
	}
	// sub lowered the total by amount, so adding it back cannot overflow.
	return b.add(to, amount)
}

// Load restores persisted balances.
func (b *Balances) Load(accounts []models.Account, weights map[models.Account]*uint256.Int) error {
	return b.load(accounts, weights)
}
