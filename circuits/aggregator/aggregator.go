// Package aggregator implements the recursive proof aggregation engine. An
// engine is built once for a fixed arity, public input scheme and set of
// accepted circuits, and then merges batches of proofs into a single proof of
// constant shape. Merged proofs are themselves aggregatable, so arbitrarily
// large batches fold down through repeated rounds.
package aggregator

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"

	"github.com/zkmesh/recursion/circuits"
	"github.com/zkmesh/recursion/circuits/pubinput"
	"github.com/zkmesh/recursion/circuits/registry"
)

// AggregationCircuit verifies a fixed number of slot proofs, checks every
// slot circuit is registered, and folds the slot public inputs into the
// aggregated state. Slots holding padding proofs are detected by digest and
// excluded from the fold when the scheme cannot absorb them.
type AggregationCircuit struct {
	// AggregatedInputs is the folded scheme state of the batch.
	AggregatedInputs []frontend.Variable `gnark:",public"`
	// RegistryDigest is the cap of the accepted-circuit tree. Every slot
	// proof must carry the same digest in its trailing public inputs.
	RegistryDigest []frontend.Variable `gnark:",public"`

	Proofs      []circuits.InnerProof
	Witnesses   []circuits.InnerWitness
	VKs         []circuits.InnerVerifyingKey
	Memberships []registry.Membership

	// Scheme and DummyDigest are fixed at compile time.
	Scheme      pubinput.Scheme   `gnark:"-"`
	DummyDigest frontend.Variable `gnark:"-"`
}

func (c *AggregationCircuit) Define(api frontend.API) error {
	arity := len(c.Proofs)
	if len(c.Witnesses) != arity || len(c.VKs) != arity || len(c.Memberships) != arity {
		return fmt.Errorf("slot witness lengths do not match arity %d", arity)
	}
	k := c.Scheme.NumPublicInputs()
	if len(c.AggregatedInputs) != k {
		return fmt.Errorf("aggregated state has %d inputs, scheme %s needs %d",
			len(c.AggregatedInputs), c.Scheme.Name(), k)
	}

	verifier, err := stdgroth16.NewVerifier[circuits.ScalarField, circuits.G1Affine, circuits.G2Affine, circuits.GTEl](api)
	if err != nil {
		return fmt.Errorf("new verifier: %w", err)
	}

	states := make([][]frontend.Variable, arity)
	isReal := make([]frontend.Variable, arity)
	for i := range c.Proofs {
		if err := verifier.AssertProof(c.VKs[i], c.Proofs[i], c.Witnesses[i], stdgroth16.WithCompleteArithmetic()); err != nil {
			return fmt.Errorf("verify slot %d: %w", i, err)
		}
		// the digest is recomputed from the key the proof was verified
		// against, never taken from the slot public inputs
		digest, err := circuits.DigestVerifyingKey(api, c.VKs[i])
		if err != nil {
			return fmt.Errorf("digest slot %d: %w", i, err)
		}
		if err := c.Memberships[i].Verify(api, digest, c.RegistryDigest); err != nil {
			return fmt.Errorf("membership slot %d: %w", i, err)
		}
		pubs, err := circuits.PackPublicInputs(api, c.Witnesses[i].Public)
		if err != nil {
			return fmt.Errorf("pack slot %d inputs: %w", i, err)
		}
		if len(pubs) != k+len(c.RegistryDigest) {
			return fmt.Errorf("slot %d carries %d public inputs, expected %d",
				i, len(pubs), k+len(c.RegistryDigest))
		}
		// every slot proof commits to the same registry digest
		for j := range c.RegistryDigest {
			api.AssertIsEqual(pubs[k+j], c.RegistryDigest[j])
		}
		states[i] = pubs[:k]
		isReal[i] = api.Sub(1, api.IsZero(api.Sub(digest, c.DummyDigest)))
	}

	var agg []frontend.Variable
	if c.Scheme.CanAggregateDummies() {
		agg, err = c.Scheme.Aggregate(api, states)
		if err != nil {
			return fmt.Errorf("aggregate: %w", err)
		}
	} else {
		// the first two slots always hold real proofs, padding starts after
		api.AssertIsEqual(isReal[0], 1)
		api.AssertIsEqual(isReal[1], 1)
		agg, err = c.Scheme.AggregatePair(api, states[0], states[1])
		if err != nil {
			return fmt.Errorf("aggregate slots 0,1: %w", err)
		}
		for i := 2; i < arity; i++ {
			agg, err = pubinput.ConditionalAggregatePair(api, c.Scheme, agg, states[i], isReal[i])
			if err != nil {
				return fmt.Errorf("aggregate slot %d: %w", i, err)
			}
		}
	}
	if len(agg) != k {
		return fmt.Errorf("scheme %s folded to %d values, expected %d", c.Scheme.Name(), len(agg), k)
	}
	for i := range agg {
		api.AssertIsEqual(c.AggregatedInputs[i], agg[i])
	}
	return nil
}
