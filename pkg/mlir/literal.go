package mlir

import (
	"strings"

	"github.com/gomlx/go-mlir/pkg/types/dtypes"
	"github.com/gomlx/go-mlir/pkg/types/shapes"
)

// Literal is a dense tensor constant, used as the "value" attribute of
// tf.Const operations. Scalars are stored in the raw representation defined
// by dtypes.FormatScalar (value for integers, IEEE bits for floats).
type Literal struct {
	Shape  shapes.Shape
	Values []uint64
}

// ScalarLiteral returns a Literal holding one scalar of the given dtype.
func ScalarLiteral(dtype dtypes.DType, value float64) Literal {
	return Literal{
		Shape:  shapes.Make(dtype),
		Values: []uint64{dtypes.ScalarBits(dtype, value)},
	}
}

// VectorLiteral returns a 1D Literal with the given values.
func VectorLiteral(dtype dtypes.DType, values ...float64) Literal {
	raw := make([]uint64, len(values))
	for i, v := range values {
		raw[i] = dtypes.ScalarBits(dtype, v)
	}
	return Literal{
		Shape:  shapes.Make(dtype, len(values)),
		Values: raw,
	}
}

// Ints extracts the literal's scalars as ints. It returns false for float
// literals: shape arithmetic only ever consumes integer tensors.
func (l Literal) Ints() ([]int, bool) {
	if l.Shape.DType != dtypes.Int32 && l.Shape.DType != dtypes.Int64 && l.Shape.DType != dtypes.Bool {
		return nil, false
	}
	result := make([]int, len(l.Values))
	for i, raw := range l.Values {
		if l.Shape.DType == dtypes.Int32 {
			result[i] = int(int32(raw))
		} else {
			result[i] = int(int64(raw))
		}
	}
	return result, true
}

// String implements fmt.Stringer, rendering the MLIR dense form,
// e.g. `dense<[1, 2]> : tensor<2xi32>`.
func (l Literal) String() string {
	var sb strings.Builder
	sb.WriteString("dense<")
	if len(l.Values) == 1 && l.Shape.IsScalar() {
		sb.WriteString(l.Shape.DType.FormatScalar(l.Values[0]))
	} else {
		sb.WriteString("[")
		for i, raw := range l.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(l.Shape.DType.FormatScalar(raw))
		}
		sb.WriteString("]")
	}
	sb.WriteString("> : ")
	sb.WriteString(l.Shape.ToMLIR())
	return sb.String()
}

// ConstIntValues extracts the integer contents of a tf.Const operation's
// value attribute, when it holds an integer literal.
func (op *Operation) ConstIntValues() ([]int, bool) {
	attr, ok := op.Attributes["value"]
	if !ok {
		return nil, false
	}
	literal, ok := attr.(Literal)
	if !ok {
		return nil, false
	}
	return literal.Ints()
}
