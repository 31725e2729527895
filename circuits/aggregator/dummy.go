package aggregator

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"

	"github.com/zkmesh/recursion/circuits"
	"github.com/zkmesh/recursion/circuits/pubinput"
	"github.com/zkmesh/recursion/circuits/registry"
	"github.com/zkmesh/recursion/log"
	"github.com/zkmesh/recursion/types"
)

// fillerCircuit is a minimal inner circuit whose only purpose is to give the
// dummy circuit a proof to verify, so that dummy proofs carry the same
// commitment layout as real wrapped proofs.
type fillerCircuit struct {
	Challenge frontend.Variable `gnark:",public"`
	Root      frontend.Variable
}

func (c *fillerCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Mul(c.Root, c.Root), c.Challenge)
	return nil
}

// DummyCircuit fills the aggregation slots left empty by short batches. It
// has the exact public input shape of a wrapped proof: the scheme state,
// constrained to the scheme's inert form, followed by the registry digest,
// left free and bound by the aggregation circuit. Verifying the filler proof
// gives it the same commitment shape as every other slot circuit.
type DummyCircuit struct {
	SchemeInputs   []frontend.Variable `gnark:",public"`
	RegistryDigest []frontend.Variable `gnark:",public"`

	FillerProof   circuits.InnerProof
	FillerWitness circuits.InnerWitness

	FillerVK circuits.InnerVerifyingKey `gnark:"-"`
	Scheme   pubinput.Scheme            `gnark:"-"`
}

func (c *DummyCircuit) Define(api frontend.API) error {
	if err := c.Scheme.ConstrainDummy(api, c.SchemeInputs); err != nil {
		return fmt.Errorf("constrain dummy state: %w", err)
	}
	verifier, err := stdgroth16.NewVerifier[circuits.ScalarField, circuits.G1Affine, circuits.G2Affine, circuits.GTEl](api)
	if err != nil {
		return fmt.Errorf("new verifier: %w", err)
	}
	if err := verifier.AssertProof(c.FillerVK, c.FillerProof, c.FillerWitness, stdgroth16.WithCompleteArithmetic()); err != nil {
		return fmt.Errorf("verify filler proof: %w", err)
	}
	return nil
}

// dummyKit holds everything needed to generate padding proofs: the compiled
// dummy circuit, its verification data, and the filler proof assignment every
// padding proof reuses.
type dummyKit struct {
	arts types.CircuitArtifacts
	vd   *types.VerifierData

	scheme        pubinput.Scheme
	fillerProof   circuits.InnerProof
	fillerWitness circuits.InnerWitness
}

func buildDummy(scheme pubinput.Scheme, regCfg registry.Config) (*dummyKit, error) {
	fillerCCS, err := frontend.Compile(circuits.AggregationField(), r1cs.NewBuilder, &fillerCircuit{})
	if err != nil {
		return nil, fmt.Errorf("compile filler circuit: %w", err)
	}
	fillerPK, fillerVK, err := groth16.Setup(fillerCCS)
	if err != nil {
		return nil, fmt.Errorf("setup filler circuit: %w", err)
	}
	fillerAssignment := &fillerCircuit{Challenge: 9, Root: 3}
	fillerWitness, err := frontend.NewWitness(fillerAssignment, circuits.AggregationField())
	if err != nil {
		return nil, fmt.Errorf("filler witness: %w", err)
	}
	fillerProof, err := types.ProveWithWitness(fillerCCS, fillerPK, fillerWitness, circuits.RecursiveProverOptions())
	if err != nil {
		return nil, fmt.Errorf("prove filler circuit: %w", err)
	}

	fixedFillerVK, err := stdgroth16.ValueOfVerifyingKeyFixed[circuits.G1Affine, circuits.G2Affine, circuits.GTEl](fillerVK)
	if err != nil {
		return nil, fmt.Errorf("fix filler verification key: %w", err)
	}
	placeholder := &DummyCircuit{
		SchemeInputs:   make([]frontend.Variable, scheme.NumPublicInputs()),
		RegistryDigest: make([]frontend.Variable, regCfg.CapSize()),
		FillerProof:    stdgroth16.PlaceholderProof[circuits.G1Affine, circuits.G2Affine](fillerCCS),
		FillerWitness:  stdgroth16.PlaceholderWitness[circuits.ScalarField](fillerCCS),
		FillerVK:       fixedFillerVK,
		Scheme:         scheme,
	}
	ccs, err := frontend.Compile(circuits.AggregationField(), r1cs.NewBuilder, placeholder)
	if err != nil {
		return nil, fmt.Errorf("compile dummy circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup dummy circuit: %w", err)
	}
	digest, err := circuits.ComputeCircuitDigest(vk)
	if err != nil {
		return nil, fmt.Errorf("digest dummy circuit: %w", err)
	}

	proofVal, err := stdgroth16.ValueOfProof[circuits.G1Affine, circuits.G2Affine](fillerProof)
	if err != nil {
		return nil, fmt.Errorf("filler proof assignment: %w", err)
	}
	fillerPub, err := fillerWitness.Public()
	if err != nil {
		return nil, fmt.Errorf("filler public witness: %w", err)
	}
	witnessVal, err := stdgroth16.ValueOfWitness[circuits.ScalarField](fillerPub)
	if err != nil {
		return nil, fmt.Errorf("filler witness assignment: %w", err)
	}
	log.Infow("dummy circuit ready",
		"constraints", ccs.GetNbConstraints(),
		"scheme", scheme.Name(),
		"digest", digest.String())
	return &dummyKit{
		arts:          types.CircuitArtifacts{CCS: ccs, PK: pk, VK: vk},
		vd:            &types.VerifierData{VK: vk, Digest: digest},
		scheme:        scheme,
		fillerProof:   proofVal,
		fillerWitness: witnessVal,
	}, nil
}

// generate proves one padding proof. The scheme state is derived from seed,
// the public inputs of the last real proof of the batch, so that dummy slots
// are inert with respect to the batch being folded.
func (d *dummyKit) generate(seed []*big.Int, digest registry.Digest) (*types.Proof, error) {
	state, err := d.scheme.DummyAssignment(seed)
	if err != nil {
		return nil, fmt.Errorf("dummy state from seed: %w", err)
	}
	schemeInputs := make([]frontend.Variable, len(state))
	for i, v := range state {
		schemeInputs[i] = v
	}
	digestInputs := make([]frontend.Variable, len(digest))
	for i, v := range digest.Flatten() {
		digestInputs[i] = v
	}
	assignment := &DummyCircuit{
		SchemeInputs:   schemeInputs,
		RegistryDigest: digestInputs,
		FillerProof:    d.fillerProof,
		FillerWitness:  d.fillerWitness,
	}
	fullWitness, err := frontend.NewWitness(assignment, circuits.AggregationField())
	if err != nil {
		return nil, fmt.Errorf("dummy witness: %w", err)
	}
	proof, err := types.ProveWithWitness(d.arts.CCS, d.arts.PK, fullWitness, circuits.RecursiveProverOptions())
	if err != nil {
		return nil, fmt.Errorf("prove dummy circuit: %w", err)
	}
	return types.NewProof(proof, fullWitness)
}
