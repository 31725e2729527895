// Package registry implements the committed set of circuits an aggregation
// engine accepts proofs from. Circuit digests are the leaves of a MiMC merkle
// tree; the registry digest is the cap of the tree, the layer of nodes at a
// configurable height below the root. With cap height zero the digest is the
// single root. Aggregation circuits verify merkle membership of every slot
// digest against the cap, which travels as trailing public inputs of every
// aggregatable proof.
package registry

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"

	fr_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	native_mimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/zkmesh/recursion/types"
)

// ErrDigestNotRegistered is returned when verifier data references a circuit
// that is not part of the registry.
var ErrDigestNotRegistered = errors.New("circuit digest not registered")

// Config holds the registry parameters.
type Config struct {
	// CapHeight is the height of the cap layer: the registry digest has
	// 1<<CapHeight elements. Zero means the digest is the merkle root.
	CapHeight int
}

// DefaultConfig returns the default registry configuration, with a single
// root element as digest.
func DefaultConfig() Config {
	return Config{CapHeight: 0}
}

// CapSize returns the number of elements of the registry digest.
func (c Config) CapSize() int {
	return 1 << c.CapHeight
}

// Digest is the registry digest: the cap layer of the registry tree, root
// first in index order.
type Digest []fr_bn254.Element

// DefaultDigest returns the digest of an empty registry: the cap of a tree
// with only sentinel leaves, before any circuit is registered.
func DefaultDigest(cfg Config) Digest {
	d := make(Digest, cfg.CapSize())
	return d
}

// Flatten returns the digest elements as big.Ints, in cap index order. This
// is the exact form the digest takes as trailing public inputs.
func (d Digest) Flatten() []*big.Int {
	out := make([]*big.Int, len(d))
	for i := range d {
		out[i] = d[i].BigInt(new(big.Int))
	}
	return out
}

// DigestFromBigInts rebuilds a digest from its public input form.
func DigestFromBigInts(values []*big.Int) (Digest, error) {
	if len(values) == 0 || bits.OnesCount(uint(len(values))) != 1 {
		return nil, fmt.Errorf("digest size %d is not a power of two", len(values))
	}
	d := make(Digest, len(values))
	for i := range values {
		d[i].SetBigInt(values[i])
	}
	return d, nil
}

// Equal reports whether two digests are identical.
func (d Digest) Equal(other Digest) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if !d[i].Equal(&other[i]) {
			return false
		}
	}
	return true
}

// MembershipProof authenticates one leaf against the cap of the registry
// tree.
type MembershipProof struct {
	// LeafIndex is the position of the digest in the padded leaf layer.
	LeafIndex int
	// Siblings holds the sibling node of every level of the path, bottom up,
	// stopping below the cap layer.
	Siblings []fr_bn254.Element
}

// CircuitSet is the immutable registry of circuit digests. Build it with New
// once the full digest list is known; there is no way to add leaves
// afterwards.
type CircuitSet struct {
	cfg     Config
	digests []types.CircuitDigest
	// layers[0] is the padded leaf layer; the last layer is the cap.
	layers [][]fr_bn254.Element
	index  map[types.CircuitDigest]int
}

// New builds the registry tree over the given digests. Leaves are padded with
// the zero sentinel to a power of two of at least the cap size. Duplicate or
// sentinel digests are rejected.
func New(digests []types.CircuitDigest, cfg Config) (*CircuitSet, error) {
	if cfg.CapHeight < 0 {
		return nil, fmt.Errorf("negative cap height %d", cfg.CapHeight)
	}
	if len(digests) == 0 {
		return nil, fmt.Errorf("empty digest list")
	}
	index := make(map[types.CircuitDigest]int, len(digests))
	for i, d := range digests {
		if d.IsZero() {
			return nil, fmt.Errorf("digest %d is the empty-leaf sentinel", i)
		}
		if prev, ok := index[d]; ok {
			return nil, fmt.Errorf("digest %d duplicates digest %d (%s)", i, prev, d)
		}
		index[d] = i
	}

	nbLeaves := max(nextPowerOfTwo(len(digests)), cfg.CapSize())
	leaves := make([]fr_bn254.Element, nbLeaves)
	for i, d := range digests {
		leaves[i] = fr_bn254.Element(d)
	}

	s := &CircuitSet{
		cfg:     cfg,
		digests: append([]types.CircuitDigest{}, digests...),
		layers:  [][]fr_bn254.Element{leaves},
		index:   index,
	}
	for width := nbLeaves; width > cfg.CapSize(); width /= 2 {
		prev := s.layers[len(s.layers)-1]
		next := make([]fr_bn254.Element, width/2)
		for i := range next {
			next[i] = hashNodes(prev[2*i], prev[2*i+1])
		}
		s.layers = append(s.layers, next)
	}
	return s, nil
}

// PathDepthFor returns the membership path depth of a registry holding
// nbDigests entries under cfg, without building the tree. Aggregation
// circuits need this at compile time, before the final digest list exists.
func PathDepthFor(nbDigests int, cfg Config) int {
	nbLeaves := max(nextPowerOfTwo(nbDigests), cfg.CapSize())
	return bits.TrailingZeros(uint(nbLeaves)) - cfg.CapHeight
}

// Digests returns the registered digests in registration order.
func (s *CircuitSet) Digests() []types.CircuitDigest {
	return append([]types.CircuitDigest{}, s.digests...)
}

// Size returns the number of registered circuits, padding excluded.
func (s *CircuitSet) Size() int {
	return len(s.digests)
}

// Config returns the registry configuration.
func (s *CircuitSet) Config() Config {
	return s.cfg
}

// TotalDepth returns the depth of the full tree, leaf to root.
func (s *CircuitSet) TotalDepth() int {
	return bits.TrailingZeros(uint(len(s.layers[0])))
}

// PathDepth returns the length of a membership path, leaf to cap.
func (s *CircuitSet) PathDepth() int {
	return len(s.layers) - 1
}

// Contains reports whether the digest is registered.
func (s *CircuitSet) Contains(d types.CircuitDigest) bool {
	_, ok := s.index[d]
	return ok
}

// LeafIndex returns the leaf position of a registered digest.
func (s *CircuitSet) LeafIndex(d types.CircuitDigest) (int, bool) {
	i, ok := s.index[d]
	return i, ok
}

// Digest returns the registry digest.
func (s *CircuitSet) Digest() Digest {
	capLayer := s.layers[len(s.layers)-1]
	return append(Digest{}, capLayer...)
}

// ProveMembership builds the merkle path of a registered digest. Returns
// ErrDigestNotRegistered when the digest is not part of the set.
func (s *CircuitSet) ProveMembership(d types.CircuitDigest) (*MembershipProof, error) {
	leaf, ok := s.index[d]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDigestNotRegistered, d)
	}
	proof := &MembershipProof{
		LeafIndex: leaf,
		Siblings:  make([]fr_bn254.Element, s.PathDepth()),
	}
	idx := leaf
	for level := 0; level < s.PathDepth(); level++ {
		proof.Siblings[level] = s.layers[level][idx^1]
		idx /= 2
	}
	return proof, nil
}

// VerifyMembership is the native mirror of the in-circuit membership check.
func VerifyMembership(d types.CircuitDigest, proof *MembershipProof, digest Digest) bool {
	cur := fr_bn254.Element(d)
	idx := proof.LeafIndex
	for _, sib := range proof.Siblings {
		if idx%2 == 0 {
			cur = hashNodes(cur, sib)
		} else {
			cur = hashNodes(sib, cur)
		}
		idx /= 2
	}
	if idx >= len(digest) {
		return false
	}
	return cur.Equal(&digest[idx])
}

func hashNodes(left, right fr_bn254.Element) fr_bn254.Element {
	h := native_mimc.NewMiMC()
	lb, rb := left.Bytes(), right.Bytes()
	_, _ = h.Write(lb[:])
	_, _ = h.Write(rb[:])
	var out fr_bn254.Element
	out.SetBytes(h.Sum(nil))
	return out
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
