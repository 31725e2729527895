package aggregator

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zkmesh/recursion/circuits"
	"github.com/zkmesh/recursion/circuits/pubinput"
	"github.com/zkmesh/recursion/log"
	"github.com/zkmesh/recursion/types"
)

// EngineCache memoizes built engines. Building an engine compiles and sets up
// three circuits, which takes minutes; callers that aggregate for the same
// circuit set over and over should go through the cache.
type EngineCache struct {
	engines *lru.Cache[string, *Engine]
}

// NewEngineCache creates a cache holding up to size engines.
func NewEngineCache(size int) (*EngineCache, error) {
	engines, err := lru.New[string, *Engine](size)
	if err != nil {
		return nil, fmt.Errorf("new engine cache: %w", err)
	}
	return &EngineCache{engines: engines}, nil
}

// Engine returns the cached engine for the given parameters, building and
// caching it on a miss.
func (c *EngineCache) Engine(cfg Config, arity int, scheme pubinput.Scheme, initial []types.CircuitDigest) (*Engine, error) {
	key, err := engineKey(cfg, arity, scheme, initial)
	if err != nil {
		return nil, err
	}
	if e, ok := c.engines.Get(key); ok {
		log.Debugw("engine cache hit", "key", key)
		return e, nil
	}
	e, err := Build(cfg, arity, scheme, initial)
	if err != nil {
		return nil, err
	}
	c.engines.Add(key, e)
	return e, nil
}

// Len returns the number of cached engines.
func (c *EngineCache) Len() int {
	return c.engines.Len()
}

func engineKey(cfg Config, arity int, scheme pubinput.Scheme, initial []types.CircuitDigest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d/%s", arity, cfg.Registry.CapHeight, scheme.Name())
	for _, d := range initial {
		b.WriteByte('/')
		b.WriteString(d.String())
	}
	return circuits.HashBytesSHA256([]byte(b.String()))
}
