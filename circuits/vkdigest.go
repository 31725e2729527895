package circuits

import (
	"fmt"
	"math/big"

	fr_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	native_mimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/fields_bn254"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bn254"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/math/emulated"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"

	"github.com/zkmesh/recursion/types"
)

// The circuit digest is a MiMC hash over the verification key in its witness
// form, limb by limb. Both sides flatten the key through
// [verifyingKeyLimbs], so the native digest stored in the registry and the
// digest the aggregation circuit recomputes from the witness key it actually
// verifies against agree element for element. Hashing the witness form (and
// not the native key) matters: the witness pairing result E lives in the
// direct extension basis, which is not the basis of the native tower.

// verifyingKeyLimbs flattens a witness verification key into its limbs, in a
// fixed traversal order.
func verifyingKeyLimbs(vk *InnerVerifyingKey) []frontend.Variable {
	var limbs []frontend.Variable
	el := func(e *emulated.Element[emulated.BN254Fp]) {
		// Outside a circuit, elements built by emulated.ValueOf keep their
		// value unexported and only materialize Limbs on Initialize; inside a
		// circuit the witness parser has already populated them.
		if len(e.Limbs) == 0 {
			e.Initialize(AggregationField())
		}
		limbs = append(limbs, e.Limbs...)
	}
	e2 := func(e *fields_bn254.E2) {
		el(&e.A0)
		el(&e.A1)
	}
	g2 := func(p *sw_bn254.G2Affine) {
		e2(&p.P.X)
		e2(&p.P.Y)
	}

	for _, a := range []*emulated.Element[emulated.BN254Fp]{
		&vk.E.A0, &vk.E.A1, &vk.E.A2, &vk.E.A3, &vk.E.A4, &vk.E.A5,
		&vk.E.A6, &vk.E.A7, &vk.E.A8, &vk.E.A9, &vk.E.A10, &vk.E.A11,
	} {
		el(a)
	}
	for i := range vk.G1.K {
		el(&vk.G1.K[i].X)
		el(&vk.G1.K[i].Y)
	}
	g2(&vk.G2.GammaNeg)
	g2(&vk.G2.DeltaNeg)
	for i := range vk.CommitmentKeys {
		g2(&vk.CommitmentKeys[i].G)
		g2(&vk.CommitmentKeys[i].GSigmaNeg)
	}
	return limbs
}

// ComputeCircuitDigest derives the digest of a circuit from its groth16
// verification key. The key is first converted to the exact witness values an
// outer circuit would be assigned, then hashed natively.
func ComputeCircuitDigest(vk groth16.VerifyingKey) (types.CircuitDigest, error) {
	wvk, err := stdgroth16.ValueOfVerifyingKey[G1Affine, G2Affine, GTEl](vk)
	if err != nil {
		return types.CircuitDigest{}, fmt.Errorf("witness form of verifying key: %w", err)
	}
	h := native_mimc.NewMiMC()
	for _, limb := range verifyingKeyLimbs(&wvk) {
		var e fr_bn254.Element
		switch v := limb.(type) {
		case *big.Int:
			e.SetBigInt(v)
		case big.Int:
			e.SetBigInt(&v)
		case uint64:
			e.SetUint64(v)
		default:
			return types.CircuitDigest{}, fmt.Errorf("unexpected limb value of type %T", limb)
		}
		b := e.Bytes()
		_, _ = h.Write(b[:])
	}
	var d fr_bn254.Element
	d.SetBytes(h.Sum(nil))
	return types.CircuitDigest(d), nil
}

// DigestVerifyingKey recomputes the circuit digest from a verification key
// inside the circuit. The traversal order mirrors [ComputeCircuitDigest].
func DigestVerifyingKey(api frontend.API, vk InnerVerifyingKey) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, fmt.Errorf("new mimc: %w", err)
	}
	h.Write(verifyingKeyLimbs(&vk)...)
	return h.Sum(), nil
}
