// Package mlir implements a small region-based IR in the spirit of MLIR's
// tf/tf_device dialects: operations carry ordered operands and results, may
// own nested regions of blocks, and are mutable in place. It is the substrate
// consumed by the transforms in pkg/transforms.
package mlir

import (
	"fmt"

	"github.com/gomlx/go-mlir/pkg/types/shapes"
)

// Value represents an SSA value in a function, like `%0` or `%arg0`.
//
// A Value is either the result of an operation (def != nil) or an argument of
// a block (owner != nil). Exactly one of the two is set.
//
// The value keeps a use list: every operand slot currently referencing it.
// All mutators in this package (SetOperand, ReplaceAllUsesWith, Erase)
// maintain it, so Uses is always accurate.
type Value struct {
	name  string
	shape shapes.Shape

	// def is the operation that created this value. It is nil for block arguments.
	def *Operation
	// defIndex is the index of this value in def.Results. Only valid when def != nil.
	defIndex int

	// owner is the block this value belongs to when it is a block argument.
	owner *Block
	// argIndex is the index of this value in owner's argument list. Only valid when owner != nil.
	argIndex int

	uses []Use
}

// Use identifies one operand slot of an operation.
type Use struct {
	Op    *Operation
	Index int
}

// Shape returns the shape of the value.
func (v *Value) Shape() shapes.Shape {
	return v.shape
}

// Name returns the value name, without the leading '%'.
func (v *Value) Name() string {
	return v.name
}

// String implements fmt.Stringer.
func (v *Value) String() string {
	return "%" + v.name
}

// IsBlockArgument returns whether the value is an argument of a block
// (as opposed to the result of an operation).
func (v *Value) IsBlockArgument() bool {
	return v.owner != nil
}

// DefiningOp returns the operation that produced this value, or nil for
// block arguments.
func (v *Value) DefiningOp() *Operation {
	return v.def
}

// ResultIndex returns the index of this value among its defining operation's
// results. Only meaningful when DefiningOp() != nil.
func (v *Value) ResultIndex() int {
	return v.defIndex
}

// Owner returns the block owning this value when it is a block argument,
// nil otherwise.
func (v *Value) Owner() *Block {
	return v.owner
}

// ArgIndex returns the index of this value in its owner block's argument
// list. Only meaningful for block arguments.
func (v *Value) ArgIndex() int {
	return v.argIndex
}

// ParentRegion returns the region this value is defined in: the region of
// its owner block for block arguments, or the region of the defining
// operation's block for results. Returns nil for detached values.
func (v *Value) ParentRegion() *Region {
	if v.owner != nil {
		return v.owner.region
	}
	if v.def != nil && v.def.block != nil {
		return v.def.block.region
	}
	return nil
}

// HasUses returns whether any operand slot still references this value.
func (v *Value) HasUses() bool {
	return len(v.uses) > 0
}

// Uses returns a copy of the operand slots referencing this value.
func (v *Value) Uses() []Use {
	uses := make([]Use, len(v.uses))
	copy(uses, v.uses)
	return uses
}

// ReplaceAllUsesWith redirects every use of v to newValue.
func (v *Value) ReplaceAllUsesWith(newValue *Value) {
	// Uses are detached one by one; iterate over a snapshot.
	for _, use := range v.Uses() {
		use.Op.SetOperand(use.Index, newValue)
	}
}

func (v *Value) addUse(op *Operation, index int) {
	v.uses = append(v.uses, Use{Op: op, Index: index})
}

func (v *Value) removeUse(op *Operation, index int) {
	for i, use := range v.uses {
		if use.Op == op && use.Index == index {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("removeUse: %s is not an operand %d of %s", v, index, op.OpType()))
}
