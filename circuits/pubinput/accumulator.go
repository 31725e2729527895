package pubinput

import (
	"fmt"
	"math/big"

	fr_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	native_mimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// AccumulatorScheme keeps a single running MiMC accumulator over the
// aggregated proofs. The fold is order-dependent hashing, so there is no
// padding value that leaves the accumulator unchanged: the scheme cannot
// aggregate dummies and relies on the aggregation circuit folding padding
// slots conditionally.
type AccumulatorScheme struct{}

func NewAccumulatorScheme() *AccumulatorScheme { return &AccumulatorScheme{} }

func (s *AccumulatorScheme) Name() string { return "mimc-accumulator" }

func (s *AccumulatorScheme) NumPublicInputs() int { return 1 }

func (s *AccumulatorScheme) CanAggregateDummies() bool { return false }

// Aggregate folds all states pairwise, left to right.
func (s *AccumulatorScheme) Aggregate(api frontend.API, states [][]frontend.Variable) ([]frontend.Variable, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("no states to aggregate")
	}
	acc := states[0]
	var err error
	for _, next := range states[1:] {
		if acc, err = s.AggregatePair(api, acc, next); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// AggregatePair hashes the two accumulators together. Assertion-free, so the
// result can be discarded for padding slots.
func (s *AccumulatorScheme) AggregatePair(api frontend.API, acc, next []frontend.Variable) ([]frontend.Variable, error) {
	if len(acc) != 1 || len(next) != 1 {
		return nil, fmt.Errorf("expected single-element states, got %d and %d", len(acc), len(next))
	}
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, fmt.Errorf("new mimc: %w", err)
	}
	h.Write(acc[0], next[0])
	return []frontend.Variable{h.Sum()}, nil
}

// NativeAggregate mirrors Aggregate out of circuit.
func (s *AccumulatorScheme) NativeAggregate(states [][]*big.Int) ([]*big.Int, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("no states to aggregate")
	}
	for i := range states {
		if len(states[i]) != 1 {
			return nil, fmt.Errorf("state %d has %d elements, expected 1", i, len(states[i]))
		}
	}
	acc := new(big.Int).Set(states[0][0])
	for _, next := range states[1:] {
		acc = hashPair(acc, next[0])
	}
	return []*big.Int{acc}, nil
}

// ConstrainDummy leaves the padding accumulator unconstrained; guarded slots
// never fold it.
func (s *AccumulatorScheme) ConstrainDummy(_ frontend.API, pubs []frontend.Variable) error {
	if len(pubs) != 1 {
		return fmt.Errorf("expected 1 scheme public input, got %d", len(pubs))
	}
	return nil
}

// DummyAssignment copies the seed accumulator.
func (s *AccumulatorScheme) DummyAssignment(seed []*big.Int) ([]*big.Int, error) {
	if len(seed) < 1 {
		return nil, fmt.Errorf("empty seed")
	}
	return []*big.Int{new(big.Int).Set(seed[0])}, nil
}

func hashPair(a, b *big.Int) *big.Int {
	h := native_mimc.NewMiMC()
	var ea, eb fr_bn254.Element
	ea.SetBigInt(a)
	eb.SetBigInt(b)
	ba, bb := ea.Bytes(), eb.Bytes()
	_, _ = h.Write(ba[:])
	_, _ = h.Write(bb[:])
	var out fr_bn254.Element
	out.SetBytes(h.Sum(nil))
	return out.BigInt(new(big.Int))
}
