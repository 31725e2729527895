// Package pubinput defines how the application-level public inputs of
// aggregated proofs are combined into the public inputs of the aggregate
// proof. A Scheme fixes the number of leading public inputs every
// aggregatable circuit exposes and the fold that merges them, both natively
// and inside the aggregation circuit.
package pubinput

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// Scheme is the pluggable public-input aggregation strategy.
//
// Aggregate and AggregatePair must compute the same fold natively through
// NativeAggregate. Schemes whose fold embeds assertions (like the chained
// state scheme) must be able to satisfy those assertions on padding values,
// and report it through CanAggregateDummies; schemes that cannot are only
// folded conditionally by the aggregation circuit, guarded so that padding
// never reaches the unconditional part of the fold.
type Scheme interface {
	// Name identifies the scheme. Engines built with different schemes are
	// never interchangeable.
	Name() string

	// NumPublicInputs is the number of leading public inputs of every
	// aggregatable proof, and of the aggregate proof itself.
	NumPublicInputs() int

	// Aggregate folds all slot states at once. It may assert relations
	// between consecutive states, so it is only used when
	// CanAggregateDummies reports true.
	Aggregate(api frontend.API, states [][]frontend.Variable) ([]frontend.Variable, error)

	// AggregatePair folds next into acc. When CanAggregateDummies reports
	// false the result is discarded for padding slots, so the fold must be
	// assertion-free.
	AggregatePair(api frontend.API, acc, next []frontend.Variable) ([]frontend.Variable, error)

	// NativeAggregate is the out-of-circuit mirror of Aggregate. It returns
	// an error where the in-circuit fold would fail an assertion.
	NativeAggregate(states [][]*big.Int) ([]*big.Int, error)

	// CanAggregateDummies reports whether padding values produced by
	// DummyAssignment flow through the fold without changing the result.
	CanAggregateDummies() bool

	// ConstrainDummy adds the padding circuit constraints over its scheme
	// public inputs.
	ConstrainDummy(api frontend.API, pubs []frontend.Variable) error

	// DummyAssignment derives padding public inputs from the scheme public
	// inputs of the last real proof of a batch.
	DummyAssignment(seed []*big.Int) ([]*big.Int, error)
}

// StateOf validates that pubs carries at least the scheme public inputs and
// returns them.
func StateOf(s Scheme, pubs []*big.Int) ([]*big.Int, error) {
	k := s.NumPublicInputs()
	if len(pubs) < k {
		return nil, fmt.Errorf("scheme %s needs %d public inputs, proof carries %d", s.Name(), k, len(pubs))
	}
	return pubs[:k], nil
}

// ConditionalAggregatePair folds next into acc and keeps the result only when
// enabled is set, element-wise.
func ConditionalAggregatePair(api frontend.API, s Scheme, acc, next []frontend.Variable, enabled frontend.Variable) ([]frontend.Variable, error) {
	folded, err := s.AggregatePair(api, acc, next)
	if err != nil {
		return nil, err
	}
	out := make([]frontend.Variable, len(acc))
	for i := range out {
		out[i] = api.Select(enabled, folded[i], acc[i])
	}
	return out, nil
}

// CheckDummyConsistency validates, natively, that the padding values of a
// dummy-capable scheme are inert: folding a batch with appended padding must
// equal folding the batch alone. Schemes that cannot aggregate dummies are
// vacuously consistent since the engine never folds their padding.
func CheckDummyConsistency(s Scheme, states [][]*big.Int) error {
	if !s.CanAggregateDummies() {
		return nil
	}
	if len(states) == 0 {
		return fmt.Errorf("need at least one state")
	}
	base, err := s.NativeAggregate(states)
	if err != nil {
		return fmt.Errorf("aggregate without padding: %w", err)
	}
	dummy, err := s.DummyAssignment(states[len(states)-1])
	if err != nil {
		return fmt.Errorf("dummy assignment: %w", err)
	}
	padded, err := s.NativeAggregate(append(append([][]*big.Int{}, states...), dummy, dummy))
	if err != nil {
		return fmt.Errorf("aggregate with padding: %w", err)
	}
	for i := range base {
		if base[i].Cmp(padded[i]) != 0 {
			return fmt.Errorf("padding changes aggregate at output %d: %s != %s", i, base[i], padded[i])
		}
	}
	return nil
}
