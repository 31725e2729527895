package circuits

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bn254"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/vocdoni/gnark-crypto-primitives/utils"
)

// PackPublicInputs converts the emulated public inputs of an inner witness to
// native variables. Inner and outer field coincide, so the conversion is
// value-preserving even for non-canonical limb representations.
func PackPublicInputs(api frontend.API, pubs []emulated.Element[sw_bn254.ScalarField]) ([]frontend.Variable, error) {
	vars := make([]frontend.Variable, len(pubs))
	for i := range pubs {
		v, err := utils.PackScalarToVar(api, pubs[i])
		if err != nil {
			return nil, fmt.Errorf("pack public input %d: %w", i, err)
		}
		vars[i] = v
	}
	return vars, nil
}
