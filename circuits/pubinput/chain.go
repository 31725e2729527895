package pubinput

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// ChainScheme aggregates proofs about consecutive state transitions. Each
// proof exposes an initial and an end state of StateLen elements; folding
// asserts that every proof starts where the previous one ended and keeps the
// overall [initial, end] pair. Padding copies the end state of the last real
// proof into both halves, so it extends the chain with a no-op transition and
// the equality assertions hold on padding slots too.
type ChainScheme struct {
	StateLen int
}

// NewChainScheme returns a chained-state scheme with stateLen elements per
// state. Panics if stateLen is not positive.
func NewChainScheme(stateLen int) *ChainScheme {
	if stateLen <= 0 {
		panic(fmt.Sprintf("invalid state length %d", stateLen))
	}
	return &ChainScheme{StateLen: stateLen}
}

func (s *ChainScheme) Name() string { return fmt.Sprintf("chained-state-%d", s.StateLen) }

// NumPublicInputs returns the per-proof public input count: an initial and an
// end state.
func (s *ChainScheme) NumPublicInputs() int { return 2 * s.StateLen }

func (s *ChainScheme) CanAggregateDummies() bool { return true }

func (s *ChainScheme) initial(state []frontend.Variable) []frontend.Variable {
	return state[:s.StateLen]
}

func (s *ChainScheme) end(state []frontend.Variable) []frontend.Variable {
	return state[s.StateLen:]
}

// Aggregate asserts the chain between consecutive states and returns the
// composite [initial of first, end of last] state.
func (s *ChainScheme) Aggregate(api frontend.API, states [][]frontend.Variable) ([]frontend.Variable, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("no states to aggregate")
	}
	for i := range states {
		if len(states[i]) != s.NumPublicInputs() {
			return nil, fmt.Errorf("state %d has %d elements, expected %d", i, len(states[i]), s.NumPublicInputs())
		}
	}
	for i := 0; i < len(states)-1; i++ {
		endPrev := s.end(states[i])
		initNext := s.initial(states[i+1])
		for j := range endPrev {
			api.AssertIsEqual(endPrev[j], initNext[j])
		}
	}
	out := make([]frontend.Variable, 0, s.NumPublicInputs())
	out = append(out, s.initial(states[0])...)
	out = append(out, s.end(states[len(states)-1])...)
	return out, nil
}

// AggregatePair folds next into acc, asserting that next starts at the end
// state of acc.
func (s *ChainScheme) AggregatePair(api frontend.API, acc, next []frontend.Variable) ([]frontend.Variable, error) {
	return s.Aggregate(api, [][]frontend.Variable{acc, next})
}

// NativeAggregate mirrors Aggregate out of circuit; a broken chain is
// reported as an error.
func (s *ChainScheme) NativeAggregate(states [][]*big.Int) ([]*big.Int, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("no states to aggregate")
	}
	for i := range states {
		if len(states[i]) != s.NumPublicInputs() {
			return nil, fmt.Errorf("state %d has %d elements, expected %d", i, len(states[i]), s.NumPublicInputs())
		}
	}
	for i := 0; i < len(states)-1; i++ {
		for j := range s.StateLen {
			if states[i][s.StateLen+j].Cmp(states[i+1][j]) != 0 {
				return nil, fmt.Errorf("chain broken between states %d and %d at element %d", i, i+1, j)
			}
		}
	}
	out := make([]*big.Int, 0, s.NumPublicInputs())
	out = append(out, states[0][:s.StateLen]...)
	out = append(out, states[len(states)-1][s.StateLen:]...)
	return out, nil
}

// ConstrainDummy forces the padding proof to be a no-op transition: its
// initial and end states coincide.
func (s *ChainScheme) ConstrainDummy(api frontend.API, pubs []frontend.Variable) error {
	if len(pubs) != s.NumPublicInputs() {
		return fmt.Errorf("expected %d scheme public inputs, got %d", s.NumPublicInputs(), len(pubs))
	}
	for j := range s.StateLen {
		api.AssertIsEqual(pubs[j], pubs[s.StateLen+j])
	}
	return nil
}

// DummyAssignment repeats the end state of the seed proof in both halves.
func (s *ChainScheme) DummyAssignment(seed []*big.Int) ([]*big.Int, error) {
	if len(seed) < s.NumPublicInputs() {
		return nil, fmt.Errorf("seed has %d elements, expected at least %d", len(seed), s.NumPublicInputs())
	}
	out := make([]*big.Int, 0, s.NumPublicInputs())
	for range 2 {
		for j := range s.StateLen {
			out = append(out, new(big.Int).Set(seed[s.StateLen+j]))
		}
	}
	return out, nil
}
