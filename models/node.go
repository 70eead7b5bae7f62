package models

import (
	"github.com/holiman/uint256"
)

// Account is an opaque identity. Content nodes are accounts too.
type Account string

// TokenID identifies a fungible token.
type TokenID string

// ClaimClass names one of the constituencies of a content node.
type ClaimClass string

const (
	ClassCreators  ClaimClass = "creators"
	ClassStakers   ClaimClass = "stakers"
	ClassHolders   ClaimClass = "holders"
	ClassPrimaries ClaimClass = "primaries"
	ClassTreasury  ClaimClass = "treasury"
)

// Classes lists the claim classes in split order, treasury last.
var Classes = []ClaimClass{ClassCreators, ClassHolders, ClassStakers, ClassPrimaries, ClassTreasury}

// Proportions are parts of 10000 assigned to each named constituency.
// Whatever is left over belongs to the treasury.
type Proportions struct {
	Creators  int64 `json:"creators"`
	Holders   int64 `json:"holders"`
	Stakers   int64 `json:"stakers"`
	Primaries int64 `json:"primaries"`
}

// NodeState is the persisted form of a content node.
type NodeState struct {
	ID          string                          `json:"id"`
	Owner       Account                         `json:"owner"`
	Roles       map[string][]Account            `json:"roles"`
	Proportions Proportions                     `json:"proportions"`
	Tokens      map[TokenID]*TokenSettings      `json:"tokens"`
	Rights      map[ClaimClass]*ClaimRightState `json:"rights"`
	CreatedAt   int64                           `json:"created_at"` // unix timestamp in ms
	Vault       *VaultState                     `json:"vault,omitempty"`
}

// VaultState holds the open stake and payback requests of a node's vault.
type VaultState struct {
	Pending  map[Account]*StakeRequest `json:"pending"`
	Paybacks map[Account]*StakeRequest `json:"paybacks"`
}

// StakeRequest is one locked stake or payback amount.
type StakeRequest struct {
	Amount      *uint256.Int `json:"amount"`
	RequestedAt int64        `json:"requested_at"` // unix timestamp in ms
}

// TokenSettings is the approval entry of one incoming token.
type TokenSettings struct {
	Approved    bool         `json:"approved"`
	MinIncoming *uint256.Int `json:"min_incoming"`
}

// ClaimRightState is the persisted layout of one claim-right.
type ClaimRightState struct {
	Name        string                        `json:"name"`
	Address     Account                       `json:"address"`
	Owner       Account                       `json:"owner"`
	Accounts    []Account                     `json:"accounts"`
	Shares      map[Account]*uint256.Int      `json:"shares"`
	TotalShares *uint256.Int                  `json:"total_shares"`
	Tokens      map[TokenID]*TokenLedgerState `json:"tokens"`
}

// TokenLedgerState holds the per-token counters of a claim-right.
type TokenLedgerState struct {
	Approved      bool                     `json:"approved"`
	MinIncoming   *uint256.Int             `json:"min_incoming"`
	TotalReceived *uint256.Int             `json:"total_received"`
	TotalReleased *uint256.Int             `json:"total_released"`
	DustReleased  *uint256.Int             `json:"dust_released"`
	Released      map[Account]*uint256.Int `json:"released"`
	DustAdvance   map[Account]*uint256.Int `json:"dust_advance"`
	Cursors       map[Account]int          `json:"cursors"`
	History       []*uint256.Int           `json:"history"`
}

// TokenState is the persisted form of a token ledger.
type TokenState struct {
	ID          TokenID                              `json:"id"`
	TotalSupply *uint256.Int                         `json:"total_supply"`
	Balances    map[Account]*uint256.Int             `json:"balances"`
	Allowances  map[Account]map[Account]*uint256.Int `json:"allowances"`
}

// Checkpoint records the distribution totals of the graph at a point in time.
type Checkpoint struct {
	ID        string                   `json:"id"`
	Timestamp int64                    `json:"timestamp"`
	Nodes     int                      `json:"nodes"`
	Received  map[TokenID]*uint256.Int `json:"received"`
}

// ClaimMode selects how a claim walks the distribution history.
type ClaimMode string

const (
	ClaimNext    ClaimMode = "next"
	ClaimIterate ClaimMode = "iterate"
	ClaimAll     ClaimMode = "all"
)

// Edge is a weighted link from a node to one of its primaries.
type Edge struct {
	Primary Account      `json:"primary"`
	Weight  *uint256.Int `json:"weight"`
}
