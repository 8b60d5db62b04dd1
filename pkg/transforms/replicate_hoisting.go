package transforms

import (
	"github.com/gomlx/go-mlir/internal/optypes"
	"github.com/gomlx/go-mlir/pkg/mlir"
	"github.com/gomlx/go-mlir/pkg/types/shapes"
)

// This pass hoists replicate invariant ops, or ops that yield the same
// result(s) regardless of replication, out of their respective replicate.

type replicateInvariantOpHoisting struct{}

func (replicateInvariantOpHoisting) Name() string {
	return "replicate-invariant-op-hoisting"
}

func (replicateInvariantOpHoisting) Description() string {
	return "Hoists replicate invariant operations out of replicate"
}

func init() {
	Register(func() Pass { return replicateInvariantOpHoisting{} })
}

// makeShapeOpInvariant makes a tf.Shape op replicate invariant if it is
// possible. This currently updates or replaces tf.Shape ops of replicated
// arguments, either tensors or resources.
//
// For example, the following:
//
//	tf_device.replicate([%0, %1] as %ri: tensor<*xi32>) {n = 2} {
//	  %2 = "tf.Shape"(%ri) : (tensor<*xi32>) -> tensor<?xi32>
//	  tf_device.return
//	}
//
// gets converted to:
//
//	tf_device.replicate([%0, %1] as %ri: tensor<*xi32>) {n = 2} {
//	  %2 = "tf.Shape"(%0) : (tensor<*xi32>) -> tensor<?xi32>
//	  tf_device.return
//	}
//
// and for resource variables:
//
//	tf_device.replicate([%0, %1] as %ri: tensor<*x!tf.resource>) {n = 2} {
//	  %2 = "tf.ReadVariableOp"(%ri) : tensor<*x!tf.resource> -> tensor<*xi32>
//	  %3 = "tf.Shape"(%2) : (tensor<*xi32>) -> tensor<?xi32>
//	  tf_device.return
//	}
//
// gets converted to:
//
//	tf_device.replicate([%0, %1] as %ri: tensor<*x!tf.resource>) {n = 2} {
//	  %2 = "tf.ReadVariableOp"(%ri) : tensor<*x!tf.resource> -> tensor<*xi32>
//	  %3 = "tf.VariableShape"(%0) : (tensor<*x!tf.resource>) -> tensor<?xi32>
//	  tf_device.return
//	}
//
// Precondition for the resource form: the resource is not written inside the
// replicate before the read. This is not checked here; resource lifting runs
// earlier in the pipeline and leaves no writes before the corresponding
// tf.ReadVariableOp.
func makeShapeOpInvariant(replicate mlir.ReplicateOp, numReplicas int, replicateBlock *mlir.Block, shapeOp *mlir.Operation) error {
	input := shapeOp.Operand(0)

	// If the tf.Shape operand is a replicate tensor block argument, replace it
	// with the associated first replica operand.
	if input.IsBlockArgument() {
		if input.Owner() != replicateBlock {
			return nil
		}
		shapeOp.SetOperand(0, replicate.Operation().Operand(numReplicas*input.ArgIndex()))
		return nil
	}

	// If the tf.Shape operand is a tf.ReadVariableOp result where the
	// tf.ReadVariableOp operand is a replicate resource block argument,
	// replace the tf.Shape with a tf.VariableShape reading the associated
	// first replica operand directly.
	readVarOp := input.DefiningOp()
	if readVarOp == nil || readVarOp.OpType() != optypes.ReadVariable {
		return nil
	}
	resource := readVarOp.Operand(0)
	if !resource.IsBlockArgument() || resource.Owner() != replicateBlock {
		return nil
	}

	fn := replicate.Operation().Func()
	variableShapeOp := fn.NewOp(optypes.VariableShape,
		[]shapes.Shape{shapeOp.Result(0).Shape()},
		[]*mlir.Value{replicate.Operation().Operand(numReplicas * resource.ArgIndex())},
		nil)
	if err := shapeOp.Block().InsertBefore(shapeOp, variableShapeOp); err != nil {
		return err
	}
	if err := shapeOp.ReplaceAllUsesWith(variableShapeOp); err != nil {
		return err
	}
	return shapeOp.Erase()
}

// isOpReplicateInvariant checks if the op, and any op nested in its regions,
// only has operands defined in regions strictly enclosing the replicate body
// region. Operands with no parent region (detached values) conservatively
// fail the test.
func isOpReplicateInvariant(replicateRegion *mlir.Region, op *mlir.Operation) bool {
	result := op.Walk(func(innerOp *mlir.Operation) mlir.WalkResult {
		for _, operand := range innerOp.Operands() {
			parentRegion := operand.ParentRegion()
			if parentRegion == nil || !parentRegion.IsProperAncestorOf(replicateRegion) {
				return mlir.Interrupt
			}
		}
		return mlir.Advance
	})
	return !result.WasInterrupted()
}

// hoistReplicateInvariantOps hoists replicate invariant ops out of the given
// tf_device.replicate op. Ops to be hoisted are determined by if all of their
// operands are replicate invariant. tf.Shape ops are rewritten to be
// invariant when possible, prior to hoisting ops.
func hoistReplicateInvariantOps(replicate mlir.ReplicateOp) error {
	numReplicas := replicate.NumReplicas()
	replicateBlock := replicate.Body()

	var err error
	replicate.Operation().Walk(func(op *mlir.Operation) mlir.WalkResult {
		if op.OpType() != optypes.Shape {
			return mlir.Advance
		}
		if err = makeShapeOpInvariant(replicate, numReplicas, replicateBlock, op); err != nil {
			return mlir.Interrupt
		}
		return mlir.Advance
	})
	if err != nil {
		return err
	}

	replicateRegion := replicate.BodyRegion()
	// Snapshot the op list: hoisting mutates it while iterating.
	innerOps := make([]*mlir.Operation, len(replicateBlock.Operations()))
	copy(innerOps, replicateBlock.Operations())
	for _, innerOp := range innerOps {
		if innerOp.IsTerminator() {
			continue
		}
		if isOpReplicateInvariant(replicateRegion, innerOp) {
			if err := innerOp.MoveBefore(replicate.Operation()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run hoists replicate invariant ops out of every tf_device.replicate in the
// function.
func (p replicateInvariantOpHoisting) Run(fn *mlir.Func) error {
	dumpFunc("replicate_invariant_op_hoisting_before", fn)

	var replicates []mlir.ReplicateOp
	fn.Walk(func(op *mlir.Operation) mlir.WalkResult {
		if replicate, ok := mlir.AsReplicate(op); ok {
			replicates = append(replicates, replicate)
		}
		return mlir.Advance
	})
	for _, replicate := range replicates {
		if err := hoistReplicateInvariantOps(replicate); err != nil {
			return err
		}
	}

	dumpFunc("replicate_invariant_op_hoisting_after", fn)
	return nil
}
