// Package aggregatortest holds the end to end tests of the aggregation
// engine. They compile and set up the full circuit stack, so they only run
// when RUN_CIRCUIT_TESTS is set.
package aggregatortest

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/std/hash/mimc"
	fr_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	native_mimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/zkmesh/recursion/circuits"
	"github.com/zkmesh/recursion/circuits/pubinput"
	"github.com/zkmesh/recursion/circuits/registry"
	"github.com/zkmesh/recursion/circuits/wrap"
	"github.com/zkmesh/recursion/types"
)

// counterCircuit proves one hop of a counter chain: To = From + Step. Its
// public inputs are exactly the state of a chain scheme with one element per
// side.
type counterCircuit struct {
	From frontend.Variable `gnark:",public"`
	To   frontend.Variable `gnark:",public"`
	Step frontend.Variable
}

func (c *counterCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.To, api.Add(c.From, c.Step))
	return nil
}

// doublerCircuit proves the hop To = 2*From. A second registered circuit, so
// batches mix proofs of different circuits.
type doublerCircuit struct {
	From frontend.Variable `gnark:",public"`
	To   frontend.Variable `gnark:",public"`
	Half frontend.Variable
}

func (c *doublerCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.From, c.Half)
	api.AssertIsEqual(c.To, api.Mul(c.Half, 2))
	return nil
}

// leafCircuit proves knowledge of a MiMC preimage. Its single public input
// feeds the accumulator scheme.
type leafCircuit struct {
	Value    frontend.Variable `gnark:",public"`
	Preimage frontend.Variable
}

func (c *leafCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Preimage)
	api.AssertIsEqual(c.Value, h.Sum())
	return nil
}

// baseKit bundles a compiled base circuit with its aggregation wrapper, so
// tests can mint aggregatable proofs in one call.
type baseKit struct {
	ccs     constraint.ConstraintSystem
	pk      groth16.ProvingKey
	wrapper *wrap.Wrapper
}

func newBaseKit(base frontend.Circuit, scheme pubinput.Scheme, regCfg registry.Config) (*baseKit, error) {
	ccs, err := frontend.Compile(circuits.AggregationField(), r1cs.NewBuilder, base)
	if err != nil {
		return nil, fmt.Errorf("compile base circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup base circuit: %w", err)
	}
	wrapper, err := wrap.ForBase(ccs, vk, scheme, regCfg)
	if err != nil {
		return nil, err
	}
	return &baseKit{ccs: ccs, pk: pk, wrapper: wrapper}, nil
}

// VerifierData identifies the wrapped form of the base circuit; this is the
// digest to register in the engine.
func (k *baseKit) VerifierData() *types.VerifierData {
	return k.wrapper.VerifierData()
}

// prove generates a base proof and wraps it against the registry digest.
func (k *baseKit) prove(assignment frontend.Circuit, digest registry.Digest) (*types.Proof, error) {
	w, err := frontend.NewWitness(assignment, circuits.AggregationField())
	if err != nil {
		return nil, fmt.Errorf("base witness: %w", err)
	}
	proof, err := types.ProveWithWitness(k.ccs, k.pk, w, circuits.RecursiveProverOptions())
	if err != nil {
		return nil, fmt.Errorf("prove base circuit: %w", err)
	}
	p, err := types.NewProof(proof, w)
	if err != nil {
		return nil, err
	}
	return k.wrapper.Wrap(p, digest.Flatten())
}

func mimcHash(preimage *big.Int) *big.Int {
	h := native_mimc.NewMiMC()
	var el fr_bn254.Element
	el.SetBigInt(preimage)
	b := el.Bytes()
	_, _ = h.Write(b[:])
	return new(big.Int).SetBytes(h.Sum(nil))
}
