package circuits

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bn254"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
)

// AggregationCurve is the curve every circuit of this module is compiled
// over. Recursive verification uses the emulated BN254 verifier, so inner and
// outer circuits share the curve and a wrapped aggregate proof is a valid
// input for further aggregation rounds.
const AggregationCurve = ecc.BN254

// Typed shorthands for the emulated BN254 recursion machinery.
type (
	ScalarField = sw_bn254.ScalarField
	G1Affine    = sw_bn254.G1Affine
	G2Affine    = sw_bn254.G2Affine
	GTEl        = sw_bn254.GTEl

	InnerProof        = stdgroth16.Proof[sw_bn254.G1Affine, sw_bn254.G2Affine]
	InnerWitness      = stdgroth16.Witness[sw_bn254.ScalarField]
	InnerVerifyingKey = stdgroth16.VerifyingKey[sw_bn254.G1Affine, sw_bn254.G2Affine, sw_bn254.GTEl]
)

// AggregationField returns the scalar field order of the aggregation curve.
func AggregationField() *big.Int {
	return AggregationCurve.ScalarField()
}

// RecursiveProverOptions returns the prover options every proof of this
// module must be generated with so that it remains verifiable inside the
// emulated BN254 verifier of the next aggregation round.
func RecursiveProverOptions() backend.ProverOption {
	return stdgroth16.GetNativeProverOptions(AggregationCurve.ScalarField(), AggregationCurve.ScalarField())
}

// RecursiveVerifierOptions returns the native verifier options matching
// [RecursiveProverOptions].
func RecursiveVerifierOptions() backend.VerifierOption {
	return stdgroth16.GetNativeVerifierOptions(AggregationCurve.ScalarField(), AggregationCurve.ScalarField())
}
