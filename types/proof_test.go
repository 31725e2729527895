package types

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCircuitDigest(t *testing.T) {
	c := qt.New(t)

	c.Assert(CircuitDigest{}.IsZero(), qt.IsTrue)

	d := CircuitDigestFromBigInt(big.NewInt(42))
	c.Assert(d.IsZero(), qt.IsFalse)
	c.Assert(d.BigInt().Cmp(big.NewInt(42)), qt.Equals, 0)
	c.Assert(d.Equal(CircuitDigestFromBigInt(big.NewInt(42))), qt.IsTrue)
	c.Assert(d.Equal(CircuitDigestFromBigInt(big.NewInt(43))), qt.IsFalse)

	// bytes roundtrip through the big-endian form
	restored := CircuitDigestFromBigInt(new(big.Int).SetBytes(d.Bytes()))
	c.Assert(restored.Equal(d), qt.IsTrue)
	c.Assert(d.Bytes(), qt.HasLen, 32)
	c.Assert(d.String(), qt.Matches, `0x[0-9a-f]{64}`)
}
