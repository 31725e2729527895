// Package wrap normalizes proofs to the canonical aggregatable shape. A
// wrapper bakes the verification key of one inner circuit into a small outer
// circuit that verifies a single inner proof and republishes its public
// inputs. Wrapping the output of every aggregation round keeps the proof
// shape constant regardless of arity and chaining depth; wrapping base proofs
// extends them with the registry digest tail so they fit the aggregation
// slots.
package wrap

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"

	"github.com/zkmesh/recursion/circuits"
	"github.com/zkmesh/recursion/circuits/pubinput"
	"github.com/zkmesh/recursion/circuits/registry"
	"github.com/zkmesh/recursion/log"
	"github.com/zkmesh/recursion/types"
)

// Circuit verifies one inner proof against a baked verification key and
// forwards its public inputs. When the inner circuit carries fewer public
// inputs than the wrapper, the trailing wrapper inputs are free and get bound
// by whoever verifies the wrapped proof; this is how base proofs acquire
// their registry digest tail.
type Circuit struct {
	PublicInputs []frontend.Variable `gnark:",public"`

	Proof        circuits.InnerProof
	InnerWitness circuits.InnerWitness

	InnerVK circuits.InnerVerifyingKey `gnark:"-"`
}

func (c *Circuit) Define(api frontend.API) error {
	verifier, err := stdgroth16.NewVerifier[circuits.ScalarField, circuits.G1Affine, circuits.G2Affine, circuits.GTEl](api)
	if err != nil {
		return fmt.Errorf("new verifier: %w", err)
	}
	if err := verifier.AssertProof(c.InnerVK, c.Proof, c.InnerWitness, stdgroth16.WithCompleteArithmetic()); err != nil {
		return fmt.Errorf("verify inner proof: %w", err)
	}
	forwarded, err := circuits.PackPublicInputs(api, c.InnerWitness.Public)
	if err != nil {
		return err
	}
	if len(forwarded) > len(c.PublicInputs) {
		return fmt.Errorf("inner circuit has %d public inputs, wrapper only %d", len(forwarded), len(c.PublicInputs))
	}
	for i := range forwarded {
		api.AssertIsEqual(c.PublicInputs[i], forwarded[i])
	}
	return nil
}

// Wrapper holds the compiled wrap circuit for one inner circuit.
type Wrapper struct {
	arts types.CircuitArtifacts
	vd   *types.VerifierData

	nbForwarded int
	nbPublic    int
}

// ForAggregate builds the wrapper of an aggregation circuit. All inner public
// inputs (scheme state plus registry digest) are forwarded.
func ForAggregate(innerCCS constraint.ConstraintSystem, innerVK groth16.VerifyingKey, scheme pubinput.Scheme, regCfg registry.Config) (*Wrapper, error) {
	nbPublic := scheme.NumPublicInputs() + regCfg.CapSize()
	return newWrapper(innerCCS, innerVK, nbPublic, nbPublic, "aggregate")
}

// ForBase builds the wrapper of a base circuit, the step that makes an
// application circuit aggregatable. The base circuit must expose exactly the
// scheme public inputs; the wrapper appends the registry digest tail,
// assigned at wrap time.
func ForBase(baseCCS constraint.ConstraintSystem, baseVK groth16.VerifyingKey, scheme pubinput.Scheme, regCfg registry.Config) (*Wrapper, error) {
	nbInner := baseCCS.GetNbPublicVariables() - 1
	if nbInner != scheme.NumPublicInputs() {
		return nil, fmt.Errorf("base circuit has %d public inputs, scheme %s needs %d",
			nbInner, scheme.Name(), scheme.NumPublicInputs())
	}
	return newWrapper(baseCCS, baseVK, nbInner, nbInner+regCfg.CapSize(), "base")
}

func newWrapper(innerCCS constraint.ConstraintSystem, innerVK groth16.VerifyingKey, nbForwarded, nbPublic int, kind string) (*Wrapper, error) {
	fixedVK, err := stdgroth16.ValueOfVerifyingKeyFixed[circuits.G1Affine, circuits.G2Affine, circuits.GTEl](innerVK)
	if err != nil {
		return nil, fmt.Errorf("fix inner verification key: %w", err)
	}
	placeholder := &Circuit{
		PublicInputs: make([]frontend.Variable, nbPublic),
		Proof:        stdgroth16.PlaceholderProof[circuits.G1Affine, circuits.G2Affine](innerCCS),
		InnerWitness: stdgroth16.PlaceholderWitness[circuits.ScalarField](innerCCS),
		InnerVK:      fixedVK,
	}
	ccs, err := frontend.Compile(circuits.AggregationField(), r1cs.NewBuilder, placeholder)
	if err != nil {
		return nil, fmt.Errorf("compile %s wrap circuit: %w", kind, err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup %s wrap circuit: %w", kind, err)
	}
	digest, err := circuits.ComputeCircuitDigest(vk)
	if err != nil {
		return nil, fmt.Errorf("digest %s wrap circuit: %w", kind, err)
	}
	log.Infow("wrap circuit ready",
		"kind", kind,
		"constraints", ccs.GetNbConstraints(),
		"publicInputs", nbPublic,
		"digest", digest.String())
	return &Wrapper{
		arts:        types.CircuitArtifacts{CCS: ccs, PK: pk, VK: vk},
		vd:          &types.VerifierData{VK: vk, Digest: digest},
		nbForwarded: nbForwarded,
		nbPublic:    nbPublic,
	}, nil
}

// VerifierData returns the verification data of the wrap circuit itself.
// For base wrappers this digest is what gets registered in the engine; for
// aggregate wrappers it identifies the engine output circuit.
func (w *Wrapper) VerifierData() *types.VerifierData {
	return w.vd
}

// Shape is the outer form of a wrapped proof: its public input count and its
// commitment count.
type Shape struct {
	PublicInputs int
	Commitments  int
}

// Shape returns the shape of the proofs this wrapper produces. Every wrapper
// of an engine produces the same shape, regardless of arity or chaining
// depth: the wrap circuit carries exactly one commitment, from the emulated
// verifier's range checker.
func (w *Wrapper) Shape() Shape {
	return Shape{PublicInputs: w.nbPublic, Commitments: 1}
}

// Wrap proves the wrap circuit over an inner proof. tail holds the values of
// the free trailing public inputs, the registry digest for base wrappers;
// aggregate wrappers forward everything, so tail must be empty.
func (w *Wrapper) Wrap(inner *types.Proof, tail []*big.Int) (*types.Proof, error) {
	if len(inner.PublicInputs) != w.nbForwarded {
		return nil, fmt.Errorf("inner proof carries %d public inputs, expected %d", len(inner.PublicInputs), w.nbForwarded)
	}
	if len(inner.PublicInputs)+len(tail) != w.nbPublic {
		return nil, fmt.Errorf("tail of %d values does not complete %d public inputs to %d",
			len(tail), len(inner.PublicInputs), w.nbPublic)
	}
	proofVal, err := stdgroth16.ValueOfProof[circuits.G1Affine, circuits.G2Affine](inner.Proof)
	if err != nil {
		return nil, fmt.Errorf("inner proof assignment: %w", err)
	}
	innerPub, err := inner.PublicWitness()
	if err != nil {
		return nil, err
	}
	witnessVal, err := stdgroth16.ValueOfWitness[circuits.ScalarField](innerPub)
	if err != nil {
		return nil, fmt.Errorf("inner witness assignment: %w", err)
	}
	pubs := make([]frontend.Variable, 0, w.nbPublic)
	for _, v := range inner.PublicInputs {
		pubs = append(pubs, v)
	}
	for _, v := range tail {
		pubs = append(pubs, v)
	}
	assignment := &Circuit{
		PublicInputs: pubs,
		Proof:        proofVal,
		InnerWitness: witnessVal,
	}
	fullWitness, err := frontend.NewWitness(assignment, circuits.AggregationField())
	if err != nil {
		return nil, fmt.Errorf("wrap witness: %w", err)
	}
	proof, err := types.ProveWithWitness(w.arts.CCS, w.arts.PK, fullWitness, circuits.RecursiveProverOptions())
	if err != nil {
		return nil, fmt.Errorf("wrap proving: %w", err)
	}
	return types.NewProof(proof, fullWitness)
}
