package aggregator

import (
	"context"
	"fmt"

	"github.com/zkmesh/recursion/log"
	"github.com/zkmesh/recursion/types"
)

// AggregateAll folds an arbitrarily large batch into one proof through
// repeated merge rounds. The first round takes up to arity proofs; every
// following round carries the running aggregate in slot zero and fills the
// remaining arity-1 slots from the batch. The context is checked between
// rounds, so a cancellation loses at most one merge of work.
func (e *Engine) AggregateAll(ctx context.Context, proofs []*types.Proof, data []*types.VerifierData) (*types.Proof, error) {
	if len(proofs) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewProofs, len(proofs))
	}
	if len(data) != len(proofs) {
		return nil, fmt.Errorf("got %d proofs but %d verifier data entries", len(proofs), len(data))
	}

	first := min(e.arity, len(proofs))
	cur, err := e.Merge(proofs[:first], data[:first])
	if err != nil {
		return nil, fmt.Errorf("merge round 0: %w", err)
	}
	proofs, data = proofs[first:], data[first:]

	round := 1
	for len(proofs) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("aggregation interrupted after %d rounds: %w", round, err)
		}
		n := min(e.arity-1, len(proofs))
		chunkProofs := append([]*types.Proof{cur}, proofs[:n]...)
		chunkData := append([]*types.VerifierData{e.OutputVerifierData()}, data[:n]...)
		cur, err = e.Merge(chunkProofs, chunkData)
		if err != nil {
			return nil, fmt.Errorf("merge round %d: %w", round, err)
		}
		proofs, data = proofs[n:], data[n:]
		round++
	}
	log.Infow("aggregated batch", "rounds", round)
	return cur, nil
}
