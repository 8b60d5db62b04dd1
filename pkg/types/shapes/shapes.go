// Package shapes defines the Shape of tensors moved through the device IR.
//
// A Shape carries the element type (DType) and the dimensions, when ranked.
// Shapes with unknown rank are common in this IR: the whole point of the
// tf.Shape operation is to recover dimensions only known at runtime.
package shapes

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomlx/go-mlir/pkg/types/dtypes"
)

// DimUnknown is the value used for dimensions not known at compile time.
// It renders as '?' in the MLIR text form.
const DimUnknown = -1

// Shape of a tensor: element DType plus dimensions.
//
// If Unranked is true the Dimensions are meaningless (the rank itself is
// only known at runtime), rendered as `tensor<*x...>`.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
	Unranked   bool
}

// Make returns a ranked Shape with the given dimensions.
// Use no dimensions for a scalar.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	return Shape{DType: dtype, Dimensions: dimensions}
}

// MakeUnranked returns a Shape whose rank is only known at runtime.
func MakeUnranked(dtype dtypes.DType) Shape {
	return Shape{DType: dtype, Unranked: true}
}

// Rank of the shape. Scalars have rank 0; unranked shapes return -1.
func (s Shape) Rank() int {
	if s.Unranked {
		return -1
	}
	return len(s.Dimensions)
}

// IsScalar returns whether the shape is ranked with rank 0.
func (s Shape) IsScalar() bool {
	return !s.Unranked && len(s.Dimensions) == 0
}

// IsResource returns whether the element type is a variable handle.
func (s Shape) IsResource() bool {
	return s.DType == dtypes.Resource
}

// Equal compares two shapes for structural equality.
func (s Shape) Equal(other Shape) bool {
	if s.DType != other.DType || s.Unranked != other.Unranked || len(s.Dimensions) != len(other.Dimensions) {
		return false
	}
	for i, dim := range s.Dimensions {
		if other.Dimensions[i] != dim {
			return false
		}
	}
	return true
}

// ToMLIR returns the MLIR representation of the shape's type,
// e.g. `tensor<2x?xf32>` or `tensor<*x!tf.resource>`.
func (s Shape) ToMLIR() string {
	var sb strings.Builder
	_ = s.WriteMLIR(&sb)
	return sb.String()
}

// WriteMLIR writes the MLIR representation of the shape's type to the given writer.
func (s Shape) WriteMLIR(writer io.Writer) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}

	w("tensor<")
	if s.Unranked {
		w("*x")
	} else {
		for _, dim := range s.Dimensions {
			if dim < 0 {
				w("?")
			} else {
				w("%d", dim)
			}
			w("x")
		}
	}
	w("%s", s.DType.ToMLIR())
	w(">")
	return err
}

// String implements fmt.Stringer, it returns the MLIR form of the shape.
func (s Shape) String() string {
	return s.ToMLIR()
}
