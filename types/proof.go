package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"

	"github.com/consensys/gnark-crypto/ecc"
	fr_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// CircuitDigest identifies the structure of a circuit. It is derived from the
// circuit verification key, so two circuits share a digest iff they share a
// verification key. The zero digest is reserved as the empty-leaf sentinel of
// circuit registries and never identifies a real circuit.
type CircuitDigest fr_bn254.Element

// CircuitDigestFromBigInt reduces v into the scalar field and returns it as a
// CircuitDigest.
func CircuitDigestFromBigInt(v *big.Int) CircuitDigest {
	var e fr_bn254.Element
	e.SetBigInt(v)
	return CircuitDigest(e)
}

// BigInt returns the digest as a big.Int.
func (d CircuitDigest) BigInt() *big.Int {
	e := fr_bn254.Element(d)
	return e.BigInt(new(big.Int))
}

// Bytes returns the 32-byte big-endian representation of the digest.
func (d CircuitDigest) Bytes() HexBytes {
	e := fr_bn254.Element(d)
	b := e.Bytes()
	return b[:]
}

// Equal reports whether two digests are the same.
func (d CircuitDigest) Equal(other CircuitDigest) bool {
	a, b := fr_bn254.Element(d), fr_bn254.Element(other)
	return a.Equal(&b)
}

// IsZero reports whether the digest is the empty-leaf sentinel.
func (d CircuitDigest) IsZero() bool {
	e := fr_bn254.Element(d)
	return e.IsZero()
}

func (d CircuitDigest) String() string {
	b := d.Bytes()
	return b.String()
}

// VerifierData carries everything needed to verify proofs of a single
// circuit: its groth16 verification key and its digest. The digest is the
// value registered in the circuit registry of an aggregation engine.
type VerifierData struct {
	VK     groth16.VerifyingKey
	Digest CircuitDigest
}

// Proof is an aggregatable proof: the groth16 argument plus the ordered
// public inputs it was proven against. Proofs are immutable once built.
type Proof struct {
	Proof        groth16.Proof
	PublicInputs []*big.Int
}

// NewProof extracts the public inputs from the full witness w and pairs them
// with the groth16 argument.
func NewProof(proof groth16.Proof, w witness.Witness) (*Proof, error) {
	pubw, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("extract public witness: %w", err)
	}
	vec, ok := pubw.Vector().(fr_bn254.Vector)
	if !ok {
		return nil, fmt.Errorf("expected bn254 witness vector, got %T", pubw.Vector())
	}
	pubs := make([]*big.Int, len(vec))
	for i := range vec {
		pubs[i] = vec[i].BigInt(new(big.Int))
	}
	return &Proof{Proof: proof, PublicInputs: pubs}, nil
}

// PublicWitness rebuilds the gnark public witness from the stored public
// inputs.
func (p *Proof) PublicWitness() (witness.Witness, error) {
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("new witness: %w", err)
	}
	values := make(chan any, len(p.PublicInputs))
	for _, v := range p.PublicInputs {
		values <- v
	}
	close(values)
	if err := w.Fill(len(p.PublicInputs), 0, values); err != nil {
		return nil, fmt.Errorf("fill public witness: %w", err)
	}
	return w, nil
}

type proofEnvelope struct {
	Proof        HexBytes  `json:"proof"`
	PublicInputs []*BigInt `json:"publicInputs"`
}

// MarshalJSON encodes the proof as hex bytes plus the decimal public inputs.
func (p *Proof) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.Proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}
	return json.Marshal(proofEnvelope{
		Proof:        buf.Bytes(),
		PublicInputs: SliceOf(p.PublicInputs, BigIntConverter),
	})
}

// UnmarshalJSON decodes a proof produced by MarshalJSON.
func (p *Proof) UnmarshalJSON(data []byte) error {
	var env proofEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(env.Proof)); err != nil {
		return fmt.Errorf("deserialize proof: %w", err)
	}
	p.Proof = proof
	p.PublicInputs = SliceOf(env.PublicInputs, func(v *BigInt) *big.Int { return v.MathBigInt() })
	return nil
}

type verifierDataEnvelope struct {
	VK     HexBytes `json:"vk"`
	Digest HexBytes `json:"digest"`
}

// MarshalJSON encodes the verification key bytes and the digest.
func (vd *VerifierData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vd.VK.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize verification key: %w", err)
	}
	return json.Marshal(verifierDataEnvelope{
		VK:     buf.Bytes(),
		Digest: vd.Digest.Bytes(),
	})
}

// UnmarshalJSON decodes verifier data produced by MarshalJSON.
func (vd *VerifierData) UnmarshalJSON(data []byte) error {
	var env verifierDataEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(env.VK)); err != nil {
		return fmt.Errorf("deserialize verification key: %w", err)
	}
	vd.VK = vk
	vd.Digest = CircuitDigestFromBigInt(new(big.Int).SetBytes(env.Digest))
	return nil
}

// CircuitArtifacts groups the outcome of compiling and setting up a circuit.
type CircuitArtifacts struct {
	CCS constraint.ConstraintSystem
	PK  groth16.ProvingKey
	VK  groth16.VerifyingKey
}
