package types

import (
	"os"

	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/accelerated/icicle"
	gpugroth16 "github.com/consensys/gnark/backend/accelerated/icicle/groth16"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"

	"github.com/zkmesh/recursion/log"
)

// UseGPUProver indicates whether to use the GPU-accelerated prover, using Icicle.
var UseGPUProver = false

func init() {
	switch os.Getenv("GPU_PROVER") {
	case "true", "y", "1", "yes":
		UseGPUProver = true
		log.Infow("GPU prover enabled")
	}
}

// ProveWithWitness generates a groth16 proof from a full witness, using GPU
// acceleration when enabled via the GPU_PROVER environment variable.
func ProveWithWitness(
	ccs constraint.ConstraintSystem,
	pk groth16.ProvingKey,
	w witness.Witness,
	opts ...backend.ProverOption,
) (groth16.Proof, error) {
	if UseGPUProver {
		var icicleOpts []icicle.Option
		if len(opts) > 0 {
			icicleOpts = append(icicleOpts, icicle.WithProverOptions(opts...))
		}
		return gpugroth16.Prove(ccs, pk, w, icicleOpts...)
	}
	return groth16.Prove(ccs, pk, w, opts...)
}
