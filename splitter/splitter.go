// Package splitter partitions an integer amount by parts of a fixed denominator.
package splitter

import (
	"fmt"

	"github.com/holiman/uint256"

	rerrors "royalty-dag/errors"
)

// Denominator is 100.00% expressed in parts.
const Denominator = 10000

// Proportion is a named share of the denominator.
type Proportion struct {
	Name  string
	Parts int64
}

// Splitter computes exact integer partitions. The treasury receives the
// unassigned parts plus every flooring remainder, so the outputs always sum
// to the input.
type Splitter struct {
	denominator int64
	proportions []Proportion
}

// Result is the outcome of one split.
type Result struct {
	Amounts  []*uint256.Int
	Treasury *uint256.Int
}

// New validates the proportions against the denominator.
func New(denominator int64, proportions ...Proportion) (*Splitter, error) {
	if denominator <= 0 {
		return nil, fmt.Errorf("%w: denominator %d", rerrors.ErrConfiguration, denominator)
	}
	var sum int64
	for _, p := range proportions {
		if p.Parts < 0 {
			return nil, fmt.Errorf("%w: negative proportion %s=%d", rerrors.ErrConfiguration, p.Name, p.Parts)
		}
		sum += p.Parts
		if sum > denominator {
			return nil, fmt.Errorf("%w: proportions exceed %d", rerrors.ErrConfiguration, denominator)
		}
	}
	return &Splitter{
		denominator: denominator,
		proportions: append([]Proportion(nil), proportions...),
	}, nil
}

// Proportions returns a copy of the configured proportions.
func (s *Splitter) Proportions() []Proportion {
	return append([]Proportion(nil), s.proportions...)
}

// TreasuryParts is the part of the denominator no named proportion claims.
func (s *Splitter) TreasuryParts() int64 {
	rest := s.denominator
	for _, p := range s.proportions {
		rest -= p.Parts
	}
	return rest
}

// Split divides total. Amounts follow the order of the proportions.
func (s *Splitter) Split(total *uint256.Int) Result {
	if total == nil {
		total = new(uint256.Int)
	}
	d := uint256.NewInt(uint64(s.denominator))
	res := Result{Amounts: make([]*uint256.Int, len(s.proportions))}
	assigned := new(uint256.Int)
	for i, p := range s.proportions {
		// parts <= denominator, so the quotient never exceeds total.
		amount, _ := new(uint256.Int).MulDivOverflow(total, uint256.NewInt(uint64(p.Parts)), d)
		res.Amounts[i] = amount
		assigned.Add(assigned, amount)
	}
	res.Treasury = new(uint256.Int).Sub(total, assigned)
	return res
}
