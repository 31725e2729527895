package registry

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	qt "github.com/frankban/quicktest"
)

type membershipCircuit struct {
	Digest []frontend.Variable `gnark:",public"`
	Leaf   frontend.Variable
	Path   Membership
}

func (c *membershipCircuit) Define(api frontend.API) error {
	return c.Path.Verify(api, c.Leaf, c.Digest)
}

func TestMembershipGadget(t *testing.T) {
	c := qt.New(t)
	assert := test.NewAssert(t)
	for _, cfg := range []Config{DefaultConfig(), {CapHeight: 1}} {
		digests := randomDigests(5)
		set, err := New(digests, cfg)
		c.Assert(err, qt.IsNil)

		placeholder := &membershipCircuit{
			Digest: make([]frontend.Variable, cfg.CapSize()),
			Path:   PlaceholderMembership(set.PathDepth(), cfg.CapHeight),
		}
		digestVars := make([]frontend.Variable, cfg.CapSize())
		for i, v := range set.Digest().Flatten() {
			digestVars[i] = v
		}
		for _, d := range digests {
			proof, err := set.ProveMembership(d)
			c.Assert(err, qt.IsNil)
			assert.SolvingSucceeded(placeholder, &membershipCircuit{
				Digest: digestVars,
				Leaf:   d.BigInt(),
				Path:   set.MembershipWitness(proof),
			}, test.WithCurves(ecc.BN254))
		}

		// a path only authenticates its own leaf
		proof, err := set.ProveMembership(digests[0])
		c.Assert(err, qt.IsNil)
		assert.SolvingFailed(placeholder, &membershipCircuit{
			Digest: digestVars,
			Leaf:   digests[1].BigInt(),
			Path:   set.MembershipWitness(proof),
		}, test.WithCurves(ecc.BN254))
	}
}
