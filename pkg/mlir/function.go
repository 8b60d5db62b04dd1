package mlir

import (
	"strconv"

	"github.com/gomlx/go-mlir/internal/optypes"
	"github.com/gomlx/go-mlir/internal/utils"
	"github.com/gomlx/go-mlir/pkg/types/shapes"
)

// Func is a function being built or transformed: a name plus a body region
// with a single entry block whose arguments are the function inputs.
type Func struct {
	// Name of the function, e.g. "main".
	Name string

	body *Region

	// valueCounter names operation results sequentially: %0, %1, ...
	valueCounter int
}

// NewFunc creates a function with one entry block and one block argument per
// input shape, named %arg0, %arg1, ...
func NewFunc(name string, inputs ...shapes.Shape) *Func {
	fn := &Func{Name: utils.NormalizeIdentifier(name)}
	fn.body = &Region{fn: fn}
	entry := fn.body.AddBlock()
	for i, shape := range inputs {
		entry.AddArgument("arg"+strconv.Itoa(i), shape)
	}
	return fn
}

// Body returns the function body region.
func (fn *Func) Body() *Region {
	return fn.body
}

// EntryBlock returns the entry block of the function body.
func (fn *Func) EntryBlock() *Block {
	return fn.body.EntryBlock()
}

// Argument returns the i-th function input value.
func (fn *Func) Argument(i int) *Value {
	return fn.EntryBlock().Argument(i)
}

// NumArguments returns the number of function inputs.
func (fn *Func) NumArguments() int {
	return fn.EntryBlock().NumArguments()
}

func (fn *Func) nextValueName() string {
	name := strconv.Itoa(fn.valueCounter)
	fn.valueCounter++
	return name
}

// NewOp creates a detached operation with freshly named result values and
// registers the operand uses. Attach it with Block.Append, Block.InsertBefore
// or Operation.MoveBefore.
func (fn *Func) NewOp(opType optypes.OpType, resultShapes []shapes.Shape, operands []*Value, attributes map[string]any) *Operation {
	op := &Operation{
		opType:     opType,
		operands:   make([]*Value, len(operands)),
		Attributes: attributes,
	}
	if op.Attributes == nil {
		op.Attributes = make(map[string]any)
	}
	for i, operand := range operands {
		op.operands[i] = operand
		operand.addUse(op, i)
	}
	op.results = make([]*Value, len(resultShapes))
	for i, shape := range resultShapes {
		op.results[i] = &Value{
			name:     fn.nextValueName(),
			shape:    shape,
			def:      op,
			defIndex: i,
		}
	}
	return op
}

// AppendOp creates an operation with NewOp and appends it to the entry block.
func (fn *Func) AppendOp(opType optypes.OpType, resultShapes []shapes.Shape, operands []*Value, attributes map[string]any) *Operation {
	op := fn.NewOp(opType, resultShapes, operands, attributes)
	// Append to an entry block cannot fail: the op is freshly detached.
	_ = fn.EntryBlock().Append(op)
	return op
}

// Walk traverses every operation of the function in pre-order, nested regions
// included, until visit interrupts.
func (fn *Func) Walk(visit func(*Operation) WalkResult) WalkResult {
	return fn.body.Walk(visit)
}
