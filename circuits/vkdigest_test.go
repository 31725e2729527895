package circuits

import (
	"testing"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
	"github.com/consensys/gnark/test"
	qt "github.com/frankban/quicktest"
)

type digestTestCircuit struct {
	A frontend.Variable `gnark:",public"`
	B frontend.Variable
}

func (c *digestTestCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Mul(c.B, c.B), c.A)
	return nil
}

func TestComputeCircuitDigest(t *testing.T) {
	c := qt.New(t)
	ccs, err := frontend.Compile(AggregationField(), r1cs.NewBuilder, &digestTestCircuit{})
	c.Assert(err, qt.IsNil)

	_, vk1, err := groth16.Setup(ccs)
	c.Assert(err, qt.IsNil)
	_, vk2, err := groth16.Setup(ccs)
	c.Assert(err, qt.IsNil)

	d1, err := ComputeCircuitDigest(vk1)
	c.Assert(err, qt.IsNil)
	c.Assert(d1.IsZero(), qt.IsFalse)

	// deterministic over the same key
	again, err := ComputeCircuitDigest(vk1)
	c.Assert(err, qt.IsNil)
	c.Assert(again.Equal(d1), qt.IsTrue)

	// a fresh setup of the same circuit yields a different key and digest
	d2, err := ComputeCircuitDigest(vk2)
	c.Assert(err, qt.IsNil)
	c.Assert(d2.Equal(d1), qt.IsFalse)
}

type digestCheckCircuit struct {
	Digest frontend.Variable `gnark:",public"`
	VK     InnerVerifyingKey
}

func (c *digestCheckCircuit) Define(api frontend.API) error {
	d, err := DigestVerifyingKey(api, c.VK)
	if err != nil {
		return err
	}
	api.AssertIsEqual(d, c.Digest)
	return nil
}

// The native digest and the one recomputed in-circuit from the witness key
// must agree, otherwise every registry membership check fails at proving.
func TestDigestAgreementInCircuit(t *testing.T) {
	c := qt.New(t)
	ccs, err := frontend.Compile(AggregationField(), r1cs.NewBuilder, &digestTestCircuit{})
	c.Assert(err, qt.IsNil)
	_, vk, err := groth16.Setup(ccs)
	c.Assert(err, qt.IsNil)

	digest, err := ComputeCircuitDigest(vk)
	c.Assert(err, qt.IsNil)
	wvk, err := stdgroth16.ValueOfVerifyingKey[G1Affine, G2Affine, GTEl](vk)
	c.Assert(err, qt.IsNil)

	placeholder := &digestCheckCircuit{
		VK: stdgroth16.PlaceholderVerifyingKey[G1Affine, G2Affine, GTEl](ccs),
	}
	assignment := &digestCheckCircuit{
		Digest: digest.BigInt(),
		VK:     wvk,
	}
	c.Assert(test.IsSolved(placeholder, assignment, AggregationField()), qt.IsNil)
}
