package mlir

import (
	"github.com/pkg/errors"

	"github.com/gomlx/go-mlir/internal/utils"
	"github.com/gomlx/go-mlir/pkg/types/shapes"
)

// Region is an ordered sequence of blocks owned by an operation, or the body
// of a function (in which case fn is set and owner is nil).
type Region struct {
	owner  *Operation
	fn     *Func
	blocks []*Block
}

// Owner returns the operation owning this region, or nil for a function body.
func (r *Region) Owner() *Operation {
	return r.owner
}

// Blocks returns the blocks of the region.
func (r *Region) Blocks() []*Block {
	return r.blocks
}

// EntryBlock returns the first block of the region, or nil if empty.
func (r *Region) EntryBlock() *Block {
	if len(r.blocks) == 0 {
		return nil
	}
	return r.blocks[0]
}

// AddBlock appends a new empty block to the region.
func (r *Region) AddBlock() *Block {
	block := &Block{region: r}
	r.blocks = append(r.blocks, block)
	return block
}

// parent returns the region lexically containing r, or nil at the function
// body (or when r is detached).
func (r *Region) parent() *Region {
	if r.owner == nil {
		return nil
	}
	return r.owner.ParentRegion()
}

// IsProperAncestorOf returns whether r strictly contains other: other's
// parent chain reaches r without other itself being r.
func (r *Region) IsProperAncestorOf(other *Region) bool {
	if other == nil {
		return false
	}
	for ancestor := other.parent(); ancestor != nil; ancestor = ancestor.parent() {
		if ancestor == r {
			return true
		}
	}
	return false
}

// Block holds an ordered list of operations, usually ending in a terminator,
// plus the block arguments (values supplied externally per invocation of the
// block).
type Block struct {
	region *Region
	args   []*Value
	ops    []*Operation
}

// Region returns the region containing the block.
func (b *Block) Region() *Region {
	return b.region
}

// Arguments returns the block argument values.
func (b *Block) Arguments() []*Value {
	return b.args
}

// NumArguments returns the number of block arguments.
func (b *Block) NumArguments() int {
	return len(b.args)
}

// Argument returns the i-th block argument.
func (b *Block) Argument(i int) *Value {
	return b.args[i]
}

// AddArgument appends a block argument with the given name and shape and
// returns its value. An empty name gets an automatic one from the enclosing
// function's counter.
func (b *Block) AddArgument(name string, shape shapes.Shape) *Value {
	if name == "" {
		if fn := b.fn(); fn != nil {
			name = fn.nextValueName()
		}
	}
	value := &Value{
		name:     utils.NormalizeIdentifier(name),
		shape:    shape,
		owner:    b,
		argIndex: len(b.args),
	}
	b.args = append(b.args, value)
	return value
}

// Operations returns the block's operation list. The returned slice aliases
// the block's storage: callers that mutate the block while iterating should
// copy it first.
func (b *Block) Operations() []*Operation {
	return b.ops
}

// Terminator returns the block's final operation if it is a terminator, or nil.
func (b *Block) Terminator() *Operation {
	if len(b.ops) == 0 {
		return nil
	}
	last := b.ops[len(b.ops)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

// Append attaches a detached operation at the end of the block.
func (b *Block) Append(op *Operation) error {
	if op.block != nil {
		return errors.Errorf("cannot append %s: already attached to a block", op.opType)
	}
	op.block = b
	b.ops = append(b.ops, op)
	return nil
}

// InsertBefore attaches a detached operation immediately before mark, which
// must belong to this block.
func (b *Block) InsertBefore(mark, op *Operation) error {
	if op.block != nil {
		return errors.Errorf("cannot insert %s: already attached to a block", op.opType)
	}
	return b.insertBefore(mark, op)
}

func (b *Block) insertBefore(mark, op *Operation) error {
	i, err := b.indexOf(mark)
	if err != nil {
		return err
	}
	op.block = b
	b.ops = append(b.ops, nil)
	copy(b.ops[i+1:], b.ops[i:])
	b.ops[i] = op
	return nil
}

func (b *Block) insertAfter(mark, op *Operation) error {
	i, err := b.indexOf(mark)
	if err != nil {
		return err
	}
	op.block = b
	b.ops = append(b.ops, nil)
	copy(b.ops[i+2:], b.ops[i+1:])
	b.ops[i+1] = op
	return nil
}

func (b *Block) indexOf(op *Operation) (int, error) {
	for i, other := range b.ops {
		if other == op {
			return i, nil
		}
	}
	return -1, errors.Errorf("operation %s is not in the block", op.opType)
}

// FindAncestorOp walks up from op through its enclosing operations until it
// finds the one directly contained in this block, or nil if op is not nested
// within the block.
func (b *Block) FindAncestorOp(op *Operation) *Operation {
	for op != nil {
		if op.Block() == b {
			return op
		}
		region := op.ParentRegion()
		if region == nil {
			return nil
		}
		op = region.Owner()
	}
	return nil
}

// fn returns the function this block ultimately belongs to, or nil.
func (b *Block) fn() *Func {
	region := b.region
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
