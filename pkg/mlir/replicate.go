package mlir

import (
	"github.com/pkg/errors"

	"github.com/gomlx/go-mlir/internal/optypes"
	"github.com/gomlx/go-mlir/pkg/types/shapes"
)

// ReplicateOp is a view over a tf_device.replicate operation: N-way
// replicated execution of a single-block body.
//
// Operand layout: the body block argument i is fed, on replica r, by the flat
// operand at position i*n + r. The operand list length is therefore always
// (number of body arguments) * n.
type ReplicateOp struct {
	op *Operation
}

// AsReplicate returns a ReplicateOp view if op is a replicate construct.
func AsReplicate(op *Operation) (ReplicateOp, bool) {
	if op == nil || op.opType != optypes.Replicate {
		return ReplicateOp{}, false
	}
	return ReplicateOp{op: op}, true
}

// Operation returns the underlying operation.
func (r ReplicateOp) Operation() *Operation {
	return r.op
}

// NumReplicas returns the replica count, the `n` attribute.
func (r ReplicateOp) NumReplicas() int {
	n, ok := r.op.IntAttr("n")
	if !ok {
		return 0
	}
	return n
}

// BodyRegion returns the single body region.
func (r ReplicateOp) BodyRegion() *Region {
	return r.op.Region(0)
}

// Body returns the single block of the body region.
func (r ReplicateOp) Body() *Block {
	return r.BodyRegion().EntryBlock()
}

// ReplicatedOperand returns the operand feeding body block argument argIndex
// on the given replica, per the i*n + r layout.
func (r ReplicateOp) ReplicatedOperand(argIndex, replica int) *Value {
	return r.op.Operand(argIndex*r.NumReplicas() + replica)
}

// ReplicatedInputSpec describes one replicated argument of a replicate
// construct being built: the per-replica operands and the shape of the body
// block argument they feed.
type ReplicatedInputSpec struct {
	PerReplica []*Value
	Shape      shapes.Shape
	// Name for the body block argument; auto-named when empty.
	Name string
}

// NewReplicate creates a detached replicate construct with numReplicas
// replicas, one body block argument per input spec and the flat operand list
// in i*n + r order. The body block is created without a terminator: the
// caller populates it and closes it with a tf_device.return.
func NewReplicate(fn *Func, numReplicas int, inputs []ReplicatedInputSpec, resultShapes []shapes.Shape) (ReplicateOp, error) {
	if numReplicas < 1 {
		return ReplicateOp{}, errors.Errorf("replicate requires at least 1 replica, got %d", numReplicas)
	}
	operands := make([]*Value, 0, len(inputs)*numReplicas)
	for i, input := range inputs {
		if len(input.PerReplica) != numReplicas {
			return ReplicateOp{}, errors.Errorf(
				"replicated input %d has %d operands, the construct requires one per replica (%d)",
				i, len(input.PerReplica), numReplicas)
		}
		operands = append(operands, input.PerReplica...)
	}
	op := fn.NewOp(optypes.Replicate, resultShapes, operands, map[string]any{"n": numReplicas})
	body := op.AddRegion().AddBlock()
	for _, input := range inputs {
		body.AddArgument(input.Name, input.Shape)
	}
	return ReplicateOp{op: op}, nil
}
