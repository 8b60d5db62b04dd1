package mlir

import (
	"github.com/pkg/errors"

	"github.com/gomlx/go-mlir/internal/optypes"
)

// Operation is a node of the IR: an op kind, ordered operand and result
// values, an attribute map and zero or more nested regions.
//
// Operations are mutable in place: operands can be swapped, the operation can
// be moved to a different position and, once its results have no remaining
// uses, erased.
type Operation struct {
	opType   optypes.OpType
	block    *Block
	operands []*Value
	results  []*Value
	regions  []*Region

	// Attributes of the operation. Values are int, string, bool or Literal.
	Attributes map[string]any
}

// OpType returns the kind of the operation.
func (op *Operation) OpType() optypes.OpType {
	return op.opType
}

// Block returns the block currently containing the operation, or nil if the
// operation is detached.
func (op *Operation) Block() *Block {
	return op.block
}

// ParentRegion returns the region of the containing block, or nil when detached.
func (op *Operation) ParentRegion() *Region {
	if op.block == nil {
		return nil
	}
	return op.block.region
}

// Func returns the function this operation ultimately belongs to, or nil when
// the operation (or an ancestor) is detached.
func (op *Operation) Func() *Func {
	region := op.ParentRegion()
	for region != nil {
		if region.fn != nil {
			return region.fn
		}
		if region.owner == nil {
			return nil
		}
		region = region.owner.ParentRegion()
	}
	return nil
}

// NumOperands returns the number of operands.
func (op *Operation) NumOperands() int {
	return len(op.operands)
}

// Operand returns the i-th operand.
func (op *Operation) Operand(i int) *Value {
	return op.operands[i]
}

// Operands returns the operand list. The returned slice must not be mutated
// directly; use SetOperand.
func (op *Operation) Operands() []*Value {
	return op.operands
}

// SetOperand replaces the i-th operand, updating use lists.
func (op *Operation) SetOperand(i int, value *Value) {
	if old := op.operands[i]; old != nil {
		old.removeUse(op, i)
	}
	op.operands[i] = value
	if value != nil {
		value.addUse(op, i)
	}
}

// NumResults returns the number of results.
func (op *Operation) NumResults() int {
	return len(op.results)
}

// Result returns the i-th result value.
func (op *Operation) Result(i int) *Value {
	return op.results[i]
}

// Results returns the result values.
func (op *Operation) Results() []*Value {
	return op.results
}

// Regions returns the nested regions of the operation.
func (op *Operation) Regions() []*Region {
	return op.regions
}

// Region returns the i-th nested region.
func (op *Operation) Region(i int) *Region {
	return op.regions[i]
}

// AddRegion appends a new, empty nested region to the operation.
func (op *Operation) AddRegion() *Region {
	region := &Region{owner: op}
	op.regions = append(op.regions, region)
	return region
}

// IsTerminator returns whether the operation terminates its block.
func (op *Operation) IsTerminator() bool {
	return op.opType.IsTerminator()
}

// IntAttr returns the named attribute as an int. The second result is false
// when the attribute is absent or not integer-typed.
func (op *Operation) IntAttr(name string) (int, bool) {
	attr, ok := op.Attributes[name]
	if !ok {
		return 0, false
	}
	switch v := attr.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

// StrAttr returns the named attribute as a string.
func (op *Operation) StrAttr(name string) (string, bool) {
	attr, ok := op.Attributes[name]
	if !ok {
		return "", false
	}
	s, ok := attr.(string)
	return s, ok
}

// RemoveAttr deletes the named attribute, if present.
func (op *Operation) RemoveAttr(name string) {
	delete(op.Attributes, name)
}

// ReplaceAllUsesWith redirects every use of op's results to the results of
// other, pairing them by index. Both operations must have the same number of
// results.
func (op *Operation) ReplaceAllUsesWith(other *Operation) error {
	if len(op.results) != len(other.results) {
		return errors.Errorf("cannot replace uses of %s (%d results) with %s (%d results)",
			op.opType, len(op.results), other.opType, len(other.results))
	}
	for i, result := range op.results {
		result.ReplaceAllUsesWith(other.results[i])
	}
	return nil
}

// MoveBefore detaches the operation from its current block and re-inserts it
// immediately before mark, in mark's block. mark must be attached.
func (op *Operation) MoveBefore(mark *Operation) error {
	if mark.block == nil {
		return errors.Errorf("cannot move %s before detached operation %s", op.opType, mark.opType)
	}
	if op == mark {
		return errors.Errorf("cannot move %s before itself", op.opType)
	}
	op.detach()
	return mark.block.insertBefore(mark, op)
}

// MoveAfter detaches the operation and re-inserts it immediately after mark.
func (op *Operation) MoveAfter(mark *Operation) error {
	if mark.block == nil {
		return errors.Errorf("cannot move %s after detached operation %s", op.opType, mark.opType)
	}
	if op == mark {
		return errors.Errorf("cannot move %s after itself", op.opType)
	}
	op.detach()
	return mark.block.insertAfter(mark, op)
}

// Erase removes the operation from its block and drops its operand uses.
// It fails if any result still has uses: the caller must redirect them first
// (see ReplaceAllUsesWith).
func (op *Operation) Erase() error {
	for _, result := range op.results {
		if result.HasUses() {
			return errors.Errorf("cannot erase %s: result %s still has %d use(s)",
				op.opType, result, len(result.uses))
		}
	}
	for i, operand := range op.operands {
		if operand != nil {
			operand.removeUse(op, i)
			op.operands[i] = nil
		}
	}
	op.detach()
	return nil
}

// detach removes the operation from its containing block's op list, if any.
func (op *Operation) detach() {
	if op.block == nil {
		return
	}
	block := op.block
	for i, other := range block.ops {
		if other == op {
			block.ops = append(block.ops[:i], block.ops[i+1:]...)
			break
		}
	}
	op.block = nil
}
