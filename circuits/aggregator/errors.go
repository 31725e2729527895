package aggregator

import "errors"

var (
	// ErrArityTooSmall is returned by Build when the requested arity cannot
	// host two real proofs.
	ErrArityTooSmall = errors.New("aggregation arity must be at least 2")
	// ErrTooFewProofs is returned by Merge when there is nothing to
	// aggregate. A single proof is already its own aggregate.
	ErrTooFewProofs = errors.New("at least two proofs are needed to aggregate")
	// ErrTooManyProofs is returned by Merge when the batch exceeds the
	// engine arity. Use AggregateAll to fold larger batches.
	ErrTooManyProofs = errors.New("batch exceeds the aggregation arity")
)
