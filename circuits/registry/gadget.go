package registry

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/selector"
)

// Membership is the in-circuit witness of a registry membership proof. The
// shape is fixed at compile time by the registry geometry; assignments come
// from [CircuitSet.MembershipWitness].
type Membership struct {
	// Siblings of the path from the leaf to the cap layer, bottom up.
	Siblings []frontend.Variable
	// PathBits is the little-endian bit decomposition of the leaf index over
	// the full tree depth. The low PathDepth bits steer the path walk, the
	// remaining CapHeight bits select the cap element.
	PathBits []frontend.Variable
}

// PlaceholderMembership allocates an unassigned membership witness for a
// registry with the given geometry.
func PlaceholderMembership(pathDepth, capHeight int) Membership {
	return Membership{
		Siblings: make([]frontend.Variable, pathDepth),
		PathBits: make([]frontend.Variable, pathDepth+capHeight),
	}
}

// MembershipWitness assigns the membership proof of a registered digest.
func (s *CircuitSet) MembershipWitness(proof *MembershipProof) Membership {
	m := PlaceholderMembership(s.PathDepth(), s.cfg.CapHeight)
	for i := range proof.Siblings {
		m.Siblings[i] = proof.Siblings[i]
	}
	for i := range m.PathBits {
		m.PathBits[i] = (proof.LeafIndex >> i) & 1
	}
	return m
}

// Verify walks the merkle path from leaf to the cap layer and asserts the
// reached node equals the cap element addressed by the high index bits.
// digest must hold the registry digest in cap index order.
func (m *Membership) Verify(api frontend.API, leaf frontend.Variable, digest []frontend.Variable) error {
	pathDepth := len(m.Siblings)
	capHeight := len(m.PathBits) - pathDepth
	if capHeight < 0 {
		return fmt.Errorf("fewer path bits (%d) than siblings (%d)", len(m.PathBits), pathDepth)
	}
	if len(digest) != 1<<capHeight {
		return fmt.Errorf("digest size %d does not match cap height %d", len(digest), capHeight)
	}
	for i := range m.PathBits {
		api.AssertIsBoolean(m.PathBits[i])
	}

	cur := leaf
	for level := 0; level < pathDepth; level++ {
		bit := m.PathBits[level]
		sib := m.Siblings[level]
		left := api.Select(bit, sib, cur)
		right := api.Select(bit, cur, sib)
		h, err := mimc.NewMiMC(api)
		if err != nil {
			return fmt.Errorf("new mimc: %w", err)
		}
		h.Write(left, right)
		cur = h.Sum()
	}

	expected := digest[0]
	if capHeight > 0 {
		capIndex := api.FromBinary(m.PathBits[pathDepth:]...)
		expected = selector.Mux(api, capIndex, digest...)
	}
	api.AssertIsEqual(cur, expected)
	return nil
}
