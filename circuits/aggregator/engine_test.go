package aggregator

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/zkmesh/recursion/circuits/pubinput"
	"github.com/zkmesh/recursion/circuits/registry"
)

func TestBuildRejectsSmallArity(t *testing.T) {
	c := qt.New(t)
	for _, arity := range []int{-1, 0, 1} {
		_, err := Build(DefaultConfig(), arity, pubinput.NewChainScheme(1), nil)
		c.Assert(errors.Is(err, ErrArityTooSmall), qt.IsTrue, qt.Commentf("arity %d", arity))
	}
}

func TestEngineKey(t *testing.T) {
	c := qt.New(t)
	scheme := pubinput.NewChainScheme(2)

	k1, err := engineKey(DefaultConfig(), 4, scheme, nil)
	c.Assert(err, qt.IsNil)
	again, err := engineKey(DefaultConfig(), 4, scheme, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(again, qt.Equals, k1)

	k2, err := engineKey(DefaultConfig(), 5, scheme, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(k2, qt.Not(qt.Equals), k1)

	k3, err := engineKey(Config{Registry: registry.Config{CapHeight: 1}}, 4, scheme, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(k3, qt.Not(qt.Equals), k1)

	k4, err := engineKey(DefaultConfig(), 4, pubinput.NewChainScheme(3), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(k4, qt.Not(qt.Equals), k1)
}
