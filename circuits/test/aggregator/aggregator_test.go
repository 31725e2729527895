package aggregatortest

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"golang.org/x/sync/errgroup"

	"github.com/zkmesh/recursion/circuits/aggregator"
	"github.com/zkmesh/recursion/circuits/pubinput"
	"github.com/zkmesh/recursion/circuits/registry"
	"github.com/zkmesh/recursion/circuits/wrap"
	"github.com/zkmesh/recursion/types"
)

func skipUnlessCircuitTests(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_CIRCUIT_TESTS") == "" || os.Getenv("RUN_CIRCUIT_TESTS") == "false" {
		t.Skip("skipping circuit tests...")
	}
}

func TestChainAggregation(t *testing.T) {
	skipUnlessCircuitTests(t)
	c := qt.New(t)
	const arity = 4

	scheme := pubinput.NewChainScheme(1)
	cfg := aggregator.DefaultConfig()

	now := time.Now()
	adder, err := newBaseKit(&counterCircuit{}, scheme, cfg.Registry)
	c.Assert(err, qt.IsNil)
	doubler, err := newBaseKit(&doublerCircuit{}, scheme, cfg.Registry)
	c.Assert(err, qt.IsNil)
	c.Logf("base kits took %s", time.Since(now).String())

	now = time.Now()
	engine, err := aggregator.Build(cfg, arity, scheme, []types.CircuitDigest{
		adder.VerifierData().Digest,
		doubler.VerifierData().Digest,
	})
	c.Assert(err, qt.IsNil)
	c.Logf("engine build took %s", time.Since(now).String())

	digest := engine.RegistryDigest()
	c.Assert(digest, qt.HasLen, 1)
	c.Assert(engine.Registry().Contains(adder.VerifierData().Digest), qt.IsTrue)
	c.Assert(engine.Registry().Contains(doubler.VerifierData().Digest), qt.IsTrue)
	c.Assert(engine.Registry().Contains(engine.OutputVerifierData().Digest), qt.IsTrue)

	// ten chained hops mixing both circuits: add 5 everywhere except two
	// doubling hops
	now = time.Now()
	proofs := make([]*types.Proof, 0, 10)
	data := make([]*types.VerifierData, 0, 10)
	cur := int64(1)
	for i := 0; i < 10; i++ {
		if i == 3 || i == 7 {
			p, err := doubler.prove(&doublerCircuit{From: cur, To: 2 * cur, Half: cur}, digest)
			c.Assert(err, qt.IsNil)
			proofs, data = append(proofs, p), append(data, doubler.VerifierData())
			cur *= 2
		} else {
			p, err := adder.prove(&counterCircuit{From: cur, To: cur + 5, Step: 5}, digest)
			c.Assert(err, qt.IsNil)
			proofs, data = append(proofs, p), append(data, adder.VerifierData())
			cur += 5
		}
	}
	c.Logf("base proofs took %s", time.Since(now).String())

	// ten proofs fold in three rounds: 4, then 3, then 3
	now = time.Now()
	out, err := engine.AggregateAll(context.Background(), proofs, data)
	c.Assert(err, qt.IsNil)
	c.Logf("aggregation took %s", time.Since(now).String())

	c.Assert(aggregator.VerifyProof(engine.OutputVerifierData(), out), qt.IsNil)

	// output shape is fixed: scheme state then registry digest
	c.Assert(out.PublicInputs, qt.HasLen, scheme.NumPublicInputs()+cfg.Registry.CapSize())
	c.Assert(adder.wrapper.Shape(), qt.Equals, wrap.Shape{
		PublicInputs: scheme.NumPublicInputs() + cfg.Registry.CapSize(),
		Commitments:  1,
	})
	c.Assert(doubler.wrapper.Shape(), qt.Equals, adder.wrapper.Shape())
	c.Assert(out.PublicInputs[0].Cmp(big.NewInt(1)), qt.Equals, 0)
	c.Assert(out.PublicInputs[1].Cmp(big.NewInt(cur)), qt.Equals, 0)
	c.Assert(out.PublicInputs[2].Cmp(digest.Flatten()[0]), qt.Equals, 0)

	t.Run("flipped public inputs fail verification", func(t *testing.T) {
		c := qt.New(t)
		for i := range out.PublicInputs {
			tampered := &types.Proof{Proof: out.Proof, PublicInputs: append([]*big.Int{}, out.PublicInputs...)}
			tampered.PublicInputs[i] = new(big.Int).Add(tampered.PublicInputs[i], big.NewInt(1))
			c.Assert(aggregator.VerifyProof(engine.OutputVerifierData(), tampered), qt.IsNotNil,
				qt.Commentf("public input %d", i))
		}
	})

	t.Run("padding is idempotent", func(t *testing.T) {
		c := qt.New(t)
		// two proofs in a four slot circuit, two dummy slots
		short, err := engine.Merge(proofs[:2], data[:2])
		c.Assert(err, qt.IsNil)
		c.Assert(aggregator.VerifyProof(engine.OutputVerifierData(), short), qt.IsNil)
		c.Assert(short.PublicInputs[0].Cmp(big.NewInt(1)), qt.Equals, 0)
		c.Assert(short.PublicInputs[1].Cmp(big.NewInt(11)), qt.Equals, 0)
	})

	t.Run("merged proofs chain", func(t *testing.T) {
		c := qt.New(t)
		left, err := engine.Merge(proofs[:2], data[:2])
		c.Assert(err, qt.IsNil)
		// 1 -> 11 merged with 11 -> 16 -> 32
		mixed, err := engine.Merge(
			[]*types.Proof{left, proofs[2], proofs[3]},
			[]*types.VerifierData{engine.OutputVerifierData(), data[2], data[3]},
		)
		c.Assert(err, qt.IsNil)
		c.Assert(aggregator.VerifyProof(engine.OutputVerifierData(), mixed), qt.IsNil)
		c.Assert(mixed.PublicInputs[0].Cmp(big.NewInt(1)), qt.Equals, 0)
		c.Assert(mixed.PublicInputs[1].Cmp(big.NewInt(32)), qt.Equals, 0)
	})

	t.Run("merge errors", func(t *testing.T) {
		c := qt.New(t)
		_, err := engine.Merge(proofs[:1], data[:1])
		c.Assert(errors.Is(err, aggregator.ErrTooFewProofs), qt.IsTrue)

		_, err = engine.Merge(proofs[:arity+1], data[:arity+1])
		c.Assert(errors.Is(err, aggregator.ErrTooManyProofs), qt.IsTrue)

		// same circuit, fresh setup: digest not in the registry
		stranger, err := newBaseKit(&counterCircuit{}, scheme, cfg.Registry)
		c.Assert(err, qt.IsNil)
		strangerProof, err := stranger.prove(&counterCircuit{From: 1, To: 6, Step: 5}, digest)
		c.Assert(err, qt.IsNil)
		_, err = engine.Merge(
			[]*types.Proof{strangerProof, proofs[1]},
			[]*types.VerifierData{stranger.VerifierData(), data[1]},
		)
		c.Assert(errors.Is(err, registry.ErrDigestNotRegistered), qt.IsTrue)

		// registered digest paired with a key it does not belong to
		forged := &types.VerifierData{VK: stranger.VerifierData().VK, Digest: adder.VerifierData().Digest}
		_, err = engine.Merge(
			[]*types.Proof{strangerProof, proofs[1]},
			[]*types.VerifierData{forged, data[1]},
		)
		c.Assert(err, qt.IsNotNil)

		// chain broken between the two proofs
		_, err = engine.Merge(
			[]*types.Proof{proofs[0], proofs[2]},
			[]*types.VerifierData{data[0], data[2]},
		)
		c.Assert(err, qt.IsNotNil)
	})

	t.Run("concurrent merges", func(t *testing.T) {
		c := qt.New(t)
		g := new(errgroup.Group)
		for i := 0; i < 2; i++ {
			chunk := proofs[2*i : 2*i+2]
			chunkData := data[2*i : 2*i+2]
			g.Go(func() error {
				out, err := engine.Merge(chunk, chunkData)
				if err != nil {
					return err
				}
				return aggregator.VerifyProof(engine.OutputVerifierData(), out)
			})
		}
		c.Assert(g.Wait(), qt.IsNil)
	})
}

func TestAccumulatorAggregation(t *testing.T) {
	skipUnlessCircuitTests(t)
	c := qt.New(t)
	const arity = 3

	scheme := pubinput.NewAccumulatorScheme()
	cfg := aggregator.Config{Registry: registry.Config{CapHeight: 1}}

	kit, err := newBaseKit(&leafCircuit{}, scheme, cfg.Registry)
	c.Assert(err, qt.IsNil)
	engine, err := aggregator.Build(cfg, arity, scheme, []types.CircuitDigest{kit.VerifierData().Digest})
	c.Assert(err, qt.IsNil)

	digest := engine.RegistryDigest()
	c.Assert(digest, qt.HasLen, 2)

	values := make([][]*big.Int, 3)
	proofs := make([]*types.Proof, 3)
	data := make([]*types.VerifierData, 3)
	for i := range proofs {
		preimage := big.NewInt(int64(100 + i))
		value := mimcHash(preimage)
		proofs[i], err = kit.prove(&leafCircuit{Value: value, Preimage: preimage}, digest)
		c.Assert(err, qt.IsNil)
		data[i] = kit.VerifierData()
		values[i] = []*big.Int{value}
	}

	// short batch: dummy slots must not enter the accumulator
	out, err := engine.Merge(proofs[:2], data[:2])
	c.Assert(err, qt.IsNil)
	c.Assert(aggregator.VerifyProof(engine.OutputVerifierData(), out), qt.IsNil)
	expected, err := scheme.NativeAggregate(values[:2])
	c.Assert(err, qt.IsNil)
	c.Assert(out.PublicInputs[0].Cmp(expected[0]), qt.Equals, 0)

	// full batch
	out, err = engine.Merge(proofs, data)
	c.Assert(err, qt.IsNil)
	expected, err = scheme.NativeAggregate(values)
	c.Assert(err, qt.IsNil)
	c.Assert(out.PublicInputs[0].Cmp(expected[0]), qt.Equals, 0)
	c.Assert(out.PublicInputs[1].Cmp(digest.Flatten()[0]), qt.Equals, 0)
	c.Assert(out.PublicInputs[2].Cmp(digest.Flatten()[1]), qt.Equals, 0)
}
