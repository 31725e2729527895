package aggregator

import (
	"fmt"
	"math/big"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"

	"github.com/zkmesh/recursion/circuits"
	"github.com/zkmesh/recursion/circuits/pubinput"
	"github.com/zkmesh/recursion/circuits/registry"
	"github.com/zkmesh/recursion/circuits/wrap"
	"github.com/zkmesh/recursion/log"
	"github.com/zkmesh/recursion/types"
)

// Config holds the engine parameters that are not part of the arity or the
// scheme.
type Config struct {
	Registry registry.Config
}

// DefaultConfig returns an engine configuration with a single-root registry
// digest.
func DefaultConfig() Config {
	return Config{Registry: registry.DefaultConfig()}
}

// Engine aggregates batches of up to arity proofs into one wrapped proof.
// Engines are immutable after Build and safe for concurrent Merge calls.
type Engine struct {
	cfg    Config
	arity  int
	scheme pubinput.Scheme

	set     *registry.CircuitSet
	arts    types.CircuitArtifacts
	dummy   *dummyKit
	wrapper *wrap.Wrapper
}

// Build compiles the full circuit stack of an aggregation engine: the dummy
// padding circuit, the aggregation circuit and its wrapper. The registry is
// sealed over the initial digests plus the dummy and wrap circuit digests, so
// wrapped engine outputs feed back into the engine slots.
func Build(cfg Config, arity int, scheme pubinput.Scheme, initial []types.CircuitDigest) (*Engine, error) {
	if arity < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrArityTooSmall, arity)
	}
	start := time.Now()
	k := scheme.NumPublicInputs()
	capSize := cfg.Registry.CapSize()
	log.Infow("building aggregation engine",
		"arity", arity,
		"scheme", scheme.Name(),
		"initialCircuits", len(initial),
		"capHeight", cfg.Registry.CapHeight)

	dummy, err := buildDummy(scheme, cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("build dummy kit: %w", err)
	}
	// the dummy circuit donates the slot shape, so it must expose exactly
	// the canonical public inputs
	if got := dummy.arts.CCS.GetNbPublicVariables() - 1; got != k+capSize {
		return nil, fmt.Errorf("dummy circuit exposes %d public inputs, canonical shape needs %d", got, k+capSize)
	}

	// dummy and wrap digests join the initial ones, so the tree geometry is
	// known before the wrap circuit exists
	nbDigests := len(initial) + 2
	pathDepth := registry.PathDepthFor(nbDigests, cfg.Registry)

	placeholder := &AggregationCircuit{
		AggregatedInputs: make([]frontend.Variable, k),
		RegistryDigest:   make([]frontend.Variable, capSize),
		Proofs:           make([]circuits.InnerProof, arity),
		Witnesses:        make([]circuits.InnerWitness, arity),
		VKs:              make([]circuits.InnerVerifyingKey, arity),
		Memberships:      make([]registry.Membership, arity),
		Scheme:           scheme,
		DummyDigest:      dummy.vd.Digest.BigInt(),
	}
	for i := 0; i < arity; i++ {
		placeholder.Proofs[i] = stdgroth16.PlaceholderProof[circuits.G1Affine, circuits.G2Affine](dummy.arts.CCS)
		placeholder.Witnesses[i] = stdgroth16.PlaceholderWitness[circuits.ScalarField](dummy.arts.CCS)
		placeholder.VKs[i] = stdgroth16.PlaceholderVerifyingKey[circuits.G1Affine, circuits.G2Affine, circuits.GTEl](dummy.arts.CCS)
		placeholder.Memberships[i] = registry.PlaceholderMembership(pathDepth, cfg.Registry.CapHeight)
	}
	ccs, err := frontend.Compile(circuits.AggregationField(), r1cs.NewBuilder, placeholder)
	if err != nil {
		return nil, fmt.Errorf("compile aggregation circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup aggregation circuit: %w", err)
	}
	log.Infow("aggregation circuit ready", "constraints", ccs.GetNbConstraints())

	wrapper, err := wrap.ForAggregate(ccs, vk, scheme, cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("build aggregate wrapper: %w", err)
	}

	digests := make([]types.CircuitDigest, 0, nbDigests)
	digests = append(digests, initial...)
	digests = append(digests, dummy.vd.Digest, wrapper.VerifierData().Digest)
	set, err := registry.New(digests, cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("seal registry: %w", err)
	}
	if set.PathDepth() != pathDepth {
		return nil, fmt.Errorf("registry path depth %d does not match compiled depth %d", set.PathDepth(), pathDepth)
	}

	log.Infow("aggregation engine ready",
		"registrySize", set.Size(),
		"pathDepth", set.PathDepth(),
		"took", time.Since(start).String())
	return &Engine{
		cfg:     cfg,
		arity:   arity,
		scheme:  scheme,
		set:     set,
		arts:    types.CircuitArtifacts{CCS: ccs, PK: pk, VK: vk},
		dummy:   dummy,
		wrapper: wrapper,
	}, nil
}

// Arity returns the number of proof slots of the aggregation circuit.
func (e *Engine) Arity() int { return e.arity }

// Scheme returns the public input scheme the engine folds with.
func (e *Engine) Scheme() pubinput.Scheme { return e.scheme }

// Registry returns the sealed circuit set.
func (e *Engine) Registry() *registry.CircuitSet { return e.set }

// RegistryDigest returns the digest every accepted proof must commit to.
func (e *Engine) RegistryDigest() registry.Digest { return e.set.Digest() }

// DummyDigest returns the digest of the padding circuit.
func (e *Engine) DummyDigest() types.CircuitDigest { return e.dummy.vd.Digest }

// OutputVerifierData returns the verification data of merged proofs. Its
// digest is registered, so engine outputs chain into further merges.
func (e *Engine) OutputVerifierData() *types.VerifierData {
	return e.wrapper.VerifierData()
}

// Merge folds a batch of at most arity proofs into one wrapped proof. Every
// proof must carry the scheme state followed by the registry digest as public
// inputs, and data[i] must hold the verification key and digest of the
// circuit proofs[i] was generated with. Batches shorter than the arity are
// padded with dummy proofs seeded from the last real proof.
func (e *Engine) Merge(proofs []*types.Proof, data []*types.VerifierData) (*types.Proof, error) {
	if len(proofs) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewProofs, len(proofs))
	}
	if len(proofs) > e.arity {
		return nil, fmt.Errorf("%w: got %d proofs for arity %d", ErrTooManyProofs, len(proofs), e.arity)
	}
	if len(data) != len(proofs) {
		return nil, fmt.Errorf("got %d proofs but %d verifier data entries", len(proofs), len(data))
	}
	start := time.Now()
	k := e.scheme.NumPublicInputs()
	capSize := e.cfg.Registry.CapSize()
	digest := e.set.Digest()
	digestInts := digest.Flatten()

	assignment := &AggregationCircuit{
		AggregatedInputs: make([]frontend.Variable, k),
		RegistryDigest:   make([]frontend.Variable, capSize),
		Proofs:           make([]circuits.InnerProof, e.arity),
		Witnesses:        make([]circuits.InnerWitness, e.arity),
		VKs:              make([]circuits.InnerVerifyingKey, e.arity),
		Memberships:      make([]registry.Membership, e.arity),
	}
	for i, v := range digestInts {
		assignment.RegistryDigest[i] = v
	}

	// validate the whole batch before any proving work
	states := make([][]*big.Int, 0, e.arity)
	for i, p := range proofs {
		if len(p.PublicInputs) != k+capSize {
			return nil, fmt.Errorf("proof %d carries %d public inputs, expected %d",
				i, len(p.PublicInputs), k+capSize)
		}
		state, err := pubinput.StateOf(e.scheme, p.PublicInputs[:k])
		if err != nil {
			return nil, fmt.Errorf("proof %d state: %w", i, err)
		}
		membership, err := e.set.ProveMembership(data[i].Digest)
		if err != nil {
			return nil, fmt.Errorf("proof %d: %w", i, err)
		}
		if err := e.assignSlot(assignment, i, p, data[i].VK, membership); err != nil {
			return nil, fmt.Errorf("proof %d: %w", i, err)
		}
		states = append(states, state)
	}

	// fold the real states first, so scheme violations like a broken chain
	// surface before any proving work
	if _, err := e.scheme.NativeAggregate(states); err != nil {
		return nil, fmt.Errorf("aggregate public inputs: %w", err)
	}

	nativeStates := states
	if len(proofs) < e.arity {
		seed := states[len(states)-1]
		dummyProof, err := e.dummy.generate(seed, digest)
		if err != nil {
			return nil, fmt.Errorf("generate padding proof: %w", err)
		}
		dummyMembership, err := e.set.ProveMembership(e.dummy.vd.Digest)
		if err != nil {
			return nil, fmt.Errorf("padding membership: %w", err)
		}
		for i := len(proofs); i < e.arity; i++ {
			if err := e.assignSlot(assignment, i, dummyProof, e.dummy.vd.VK, dummyMembership); err != nil {
				return nil, fmt.Errorf("padding slot %d: %w", i, err)
			}
			if e.scheme.CanAggregateDummies() {
				nativeStates = append(nativeStates, dummyProof.PublicInputs[:k])
			}
		}
	}

	// fold again with the padding states to obtain the public outputs;
	// consistent padding leaves the result unchanged
	agg, err := e.scheme.NativeAggregate(nativeStates)
	if err != nil {
		return nil, fmt.Errorf("aggregate public inputs: %w", err)
	}
	for i, v := range agg {
		assignment.AggregatedInputs[i] = v
	}

	fullWitness, err := frontend.NewWitness(assignment, circuits.AggregationField())
	if err != nil {
		return nil, fmt.Errorf("aggregation witness: %w", err)
	}
	proof, err := types.ProveWithWitness(e.arts.CCS, e.arts.PK, fullWitness, circuits.RecursiveProverOptions())
	if err != nil {
		return nil, fmt.Errorf("aggregation proving: %w", err)
	}
	aggProof, err := types.NewProof(proof, fullWitness)
	if err != nil {
		return nil, err
	}
	wrapped, err := e.wrapper.Wrap(aggProof, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap aggregate proof: %w", err)
	}
	log.Debugw("merged batch",
		"proofs", len(proofs),
		"padding", e.arity-len(proofs),
		"took", time.Since(start).String())
	return wrapped, nil
}

func (e *Engine) assignSlot(assignment *AggregationCircuit, i int, p *types.Proof, vk groth16.VerifyingKey, membership *registry.MembershipProof) error {
	proofVal, err := stdgroth16.ValueOfProof[circuits.G1Affine, circuits.G2Affine](p.Proof)
	if err != nil {
		return fmt.Errorf("proof assignment: %w", err)
	}
	pubWitness, err := p.PublicWitness()
	if err != nil {
		return err
	}
	witnessVal, err := stdgroth16.ValueOfWitness[circuits.ScalarField](pubWitness)
	if err != nil {
		return fmt.Errorf("witness assignment: %w", err)
	}
	vkVal, err := stdgroth16.ValueOfVerifyingKey[circuits.G1Affine, circuits.G2Affine, circuits.GTEl](vk)
	if err != nil {
		return fmt.Errorf("verification key assignment: %w", err)
	}
	assignment.Proofs[i] = proofVal
	assignment.Witnesses[i] = witnessVal
	assignment.VKs[i] = vkVal
	assignment.Memberships[i] = e.set.MembershipWitness(membership)
	return nil
}

// WrapBase builds the wrapper that lifts proofs of an application circuit
// into the aggregatable shape. Register the returned wrapper's digest among
// the initial digests of Build.
func WrapBase(baseCCS constraint.ConstraintSystem, baseVK groth16.VerifyingKey, scheme pubinput.Scheme, regCfg registry.Config) (*wrap.Wrapper, error) {
	return wrap.ForBase(baseCCS, baseVK, scheme, regCfg)
}

// VerifyProof natively verifies a proof against its verification data.
func VerifyProof(vd *types.VerifierData, p *types.Proof) error {
	pubWitness, err := p.PublicWitness()
	if err != nil {
		return err
	}
	if err := groth16.Verify(p.Proof, vd.VK, pubWitness, circuits.RecursiveVerifierOptions()); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}
